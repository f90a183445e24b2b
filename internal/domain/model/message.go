package model

import (
	"time"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
)

type Message struct {
	ID          string              `json:"id"`
	MatchID     int64               `json:"match_id"`
	SenderID    int64               `json:"sender_id"`
	Content     string              `json:"content"`
	Status      enums.MessageStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	DeliveredAt *time.Time          `json:"delivered_at,omitempty"`
	ReadAt      *time.Time          `json:"read_at,omitempty"`
}
