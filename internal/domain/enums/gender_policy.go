package enums

import "strings"

// GenderPolicy controls whether gender preference excludes candidates or only ranks them.
type GenderPolicy string

const (
	GenderPolicyHard GenderPolicy = "hard"
	GenderPolicySoft GenderPolicy = "soft"
)

func ParseGenderPolicy(raw string) GenderPolicy {
	if strings.EqualFold(strings.TrimSpace(raw), string(GenderPolicySoft)) {
		return GenderPolicySoft
	}
	return GenderPolicyHard
}
