package dto

// StreamFrame is a client-to-server WebSocket frame. Type selects which of the
// remaining fields are read.
type StreamFrame struct {
	Type       string   `json:"type"`
	MatchID    int64    `json:"match_id,omitempty"`
	IsTyping   bool     `json:"is_typing,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

type StreamError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
