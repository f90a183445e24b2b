package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/model"
)

type EventType string

const (
	EventNewMessage   EventType = "new-message"
	EventTyping       EventType = "typing"
	EventMessagesRead EventType = "messages-read"
	EventMatchCreated EventType = "match-created"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Payload is implemented only by the payload types of this package, one per
// EventType.
type Payload interface {
	eventType() EventType
}

type NewMessagePayload struct {
	ID        string              `json:"id"`
	SenderID  int64               `json:"senderId"`
	Content   string              `json:"content"`
	Status    enums.MessageStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

type TypingPayload struct {
	UserID   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

type MessagesReadPayload struct {
	ReaderID   int64    `json:"readerId"`
	MessageIDs []string `json:"messageIds"`
}

type MatchCreatedPayload struct {
	MatchID   int64     `json:"matchId"`
	UserAID   int64     `json:"userAId"`
	UserBID   int64     `json:"userBId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (NewMessagePayload) eventType() EventType   { return EventNewMessage }
func (TypingPayload) eventType() EventType       { return EventTyping }
func (MessagesReadPayload) eventType() EventType { return EventMessagesRead }
func (MatchCreatedPayload) eventType() EventType { return EventMatchCreated }

func NewMessagePayloadFrom(msg model.Message) NewMessagePayload {
	return NewMessagePayload{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Status:    msg.Status,
		CreatedAt: msg.CreatedAt,
	}
}

func MatchCreatedPayloadFrom(m model.Match) MatchCreatedPayload {
	return MatchCreatedPayload{
		MatchID:   m.ID,
		UserAID:   m.UserAID,
		UserBID:   m.UserBID,
		CreatedAt: m.CreatedAt,
	}
}

type Event struct {
	Type      EventType
	MatchID   int64
	Payload   Payload
	Timestamp time.Time
}

// NewEvent derives the event type from the payload so the two cannot disagree.
func NewEvent(matchID int64, payload Payload, at time.Time) Event {
	return Event{
		Type:      payload.eventType(),
		MatchID:   matchID,
		Payload:   payload,
		Timestamp: at.UTC(),
	}
}

type wireEvent struct {
	Type      EventType       `json:"type"`
	MatchID   int64           `json:"matchId"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("event %q has no payload", e.Type)
	}
	if e.Type != e.Payload.eventType() {
		return nil, fmt.Errorf("event type %q does not match payload %T", e.Type, e.Payload)
	}

	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(wireEvent{
		Type:      e.Type,
		MatchID:   e.MatchID,
		Payload:   raw,
		Timestamp: e.Timestamp,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return err
	}

	*e = Event{
		Type:      w.Type,
		MatchID:   w.MatchID,
		Payload:   payload,
		Timestamp: w.Timestamp,
	}
	return nil
}

func decodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	switch t {
	case EventNewMessage:
		var p NewMessagePayload
		if err := unmarshalPayload(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventTyping:
		var p TypingPayload
		if err := unmarshalPayload(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventMessagesRead:
		var p MessagesReadPayload
		if err := unmarshalPayload(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventMatchCreated:
		var p MatchCreatedPayload
		if err := unmarshalPayload(t, raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
}

func unmarshalPayload(t EventType, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("event %q has no payload", t)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", t, err)
	}
	return nil
}
