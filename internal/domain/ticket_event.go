package domain

import "time"

// TicketEventType captures what changed in an audit entry.
type TicketEventType string

const (
	EventCreated            TicketEventType = "created"
	EventUpdatedDescription TicketEventType = "updated_description"
	EventCommentAdded       TicketEventType = "comment_added"
	EventAssigned           TicketEventType = "assigned"
	EventPriorityChanged    TicketEventType = "priority_changed"
	EventTopicChanged       TicketEventType = "topic_changed"
	EventTypeChanged        TicketEventType = "type_changed"
	EventTagsAdded          TicketEventType = "tags_added"
	EventTagsRemoved        TicketEventType = "tags_removed"
	EventStatusChanged      TicketEventType = "status_changed"
	EventClosed             TicketEventType = "closed"
	EventReopened           TicketEventType = "reopened"
	EventMerged             TicketEventType = "merged"
)

// TicketEvent is an immutable audit trail entry. One event is written per
// mutating field change.
type TicketEvent struct {
	ID          string
	TicketID    string
	EventType   TicketEventType
	OldValue    *string
	NewValue    *string
	TriggeredBy *string
	CreatedAt   time.Time
}
