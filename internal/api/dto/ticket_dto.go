package dto

import (
	"github.com/desk-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject"`
	Description *string               `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Topic       *domain.TicketTopic   `json:"topic"`
	Type        *domain.TicketType    `json:"type"`
	CreatedFor  string                `json:"created_for,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
}

// UpdateTicketFieldRequest applies one named-field change.
type UpdateTicketFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string              `json:"body"`
	MessageType *domain.MessageType `json:"message_type,omitempty"`
}

// ReconcileTagsRequest replaces a ticket's tag set. Each ref is either a
// tag id or a free-text name to resolve.
type ReconcileTagsRequest struct {
	Tags []string `json:"tags"`
}
