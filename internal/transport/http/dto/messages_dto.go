package dto

import "time"

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type AckRequest struct {
	MessageIDs []string `json:"message_ids" validate:"required,max=200,dive,ulid"`
}

type AckResponse struct {
	OK         bool     `json:"ok"`
	MessageIDs []string `json:"message_ids"`
}

type TypingRequest struct {
	IsTyping *bool `json:"is_typing" validate:"required"`
}

type MessageResponse struct {
	ID          string     `json:"id"`
	MatchID     int64      `json:"match_id"`
	SenderID    int64      `json:"sender_id"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type MessagesResponse struct {
	Items      []MessageResponse `json:"items"`
	NextBefore string            `json:"next_before,omitempty"`
}

type UnreadResponse struct {
	MatchID int64 `json:"match_id"`
	Unread  int   `json:"unread"`
}
