package enums

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Rank orders statuses along the delivery lifecycle. Unknown values rank below sent.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	default:
		return 0
	}
}

// Advances reports whether moving from s to next is a forward transition.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.Rank() > s.Rank()
}
