package model

import (
	"time"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
)

type Match struct {
	ID        int64             `json:"id"`
	UserAID   int64             `json:"user_a_id"`
	UserBID   int64             `json:"user_b_id"`
	Status    enums.MatchStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// CanonicalPair orders two user ids so that a pair maps to exactly one matches row.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (m Match) HasParticipant(userID int64) bool {
	return userID > 0 && (m.UserAID == userID || m.UserBID == userID)
}

// Counterpart returns the other participant, or 0 when userID is not a participant.
func (m Match) Counterpart(userID int64) int64 {
	switch userID {
	case m.UserAID:
		return m.UserBID
	case m.UserBID:
		return m.UserAID
	default:
		return 0
	}
}

func (m Match) Active() bool {
	return m.Status == "" || m.Status == enums.MatchStatusActive
}

// MatchSummary is a match as listed for one of its participants.
type MatchSummary struct {
	ID           int64     `json:"id"`
	TargetUserID int64     `json:"target_user_id"`
	DisplayName  string    `json:"display_name"`
	Course       string    `json:"course"`
	PhotoKey     string    `json:"-"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	UnreadCount  int       `json:"unread_count"`
	CreatedAt    time.Time `json:"created_at"`
}
