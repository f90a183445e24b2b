package enums

import "strings"

type Decision string

const (
	DecisionLike Decision = "like"
	DecisionPass Decision = "pass"
)

// ParseDecision accepts the client spellings still sent by older app builds.
func ParseDecision(raw string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "like", "right":
		return DecisionLike, true
	case "pass", "dislike", "left":
		return DecisionPass, true
	default:
		return "", false
	}
}
