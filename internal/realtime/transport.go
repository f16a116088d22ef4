package realtime

import "context"

// Table names whose row changes are propagated to open ticket views.
const (
	TableTicketMessages = "ticket_messages"
	TableTicketEvents   = "ticket_events"
)

// Notification is a change signal for one ticket. It carries no row
// payload: consumers discard local state and re-run the full projection.
type Notification struct {
	Table    string `json:"table"`
	TicketID string `json:"ticket_id"`
}

// Channel derives the scoped channel name for a ticket and table, so that
// multiple tickets viewed in one session never interfere.
func Channel(table, ticketID string) string {
	return "ticket:" + ticketID + ":" + table
}

// Publisher is the mutation-side half of the change-notification transport.
type Publisher interface {
	PublishChange(ctx context.Context, n Notification) error
}

// Subscription is one open channel subscription. Close is idempotent.
type Subscription interface {
	Notifications() <-chan Notification
	Close() error
}

// Transport is the subscriber-side half: subscribe(channel) yields an async
// stream of change notifications.
type Transport interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}
