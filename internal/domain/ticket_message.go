package domain

import "time"

// MessageType differentiates customer-visible replies from internal notes.
type MessageType string

const (
	MessagePublic       MessageType = "public"
	MessageInternalNote MessageType = "internal_note"
)

// Valid reports whether the message type is a known enumeration value.
func (m MessageType) Valid() bool {
	return m == MessagePublic || m == MessageInternalNote
}

// TicketMessage is one entry in a ticket thread. Append-only; never edited
// or deleted.
type TicketMessage struct {
	ID          string
	TicketID    string
	SenderID    string
	MessageType MessageType
	Body        string
	CreatedAt   time.Time
}
