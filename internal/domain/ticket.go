package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusPending TicketStatus = "pending"
	TicketStatusClosed  TicketStatus = "closed"
)

// Valid reports whether the status is a known enumeration value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusPending, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether the priority is a known enumeration value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// TicketTopic categorizes what a ticket is about.
type TicketTopic string

const (
	TopicSupport   TicketTopic = "support"
	TopicBilling   TicketTopic = "billing"
	TopicTechnical TicketTopic = "technical"
)

// Valid reports whether the topic is a known enumeration value.
func (t TicketTopic) Valid() bool {
	switch t {
	case TopicSupport, TopicBilling, TopicTechnical:
		return true
	}
	return false
}

// TicketType classifies the kind of request.
type TicketType string

const (
	TypeQuestion       TicketType = "question"
	TypeProblem        TicketType = "problem"
	TypeFeatureRequest TicketType = "feature_request"
)

// Valid reports whether the type is a known enumeration value.
func (t TicketType) Valid() bool {
	switch t {
	case TypeQuestion, TypeProblem, TypeFeatureRequest:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Tickets are never
// hard-deleted; a closed ticket may still receive messages and edits.
type Ticket struct {
	ID          string
	Subject     string
	Description *string
	Status      TicketStatus
	Priority    TicketPriority
	Topic       *TicketTopic
	Type        *TicketType
	CompanyID   string
	CreatedBy   string
	AssignedTo  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
