package dto

import "time"

type MatchItemResponse struct {
	ID           int64     `json:"id"`
	TargetUserID int64     `json:"target_user_id"`
	DisplayName  string    `json:"display_name"`
	Course       string    `json:"course"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	UnreadCount  int       `json:"unread_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}
