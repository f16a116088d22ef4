package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/desk-kit/support-desk/internal/domain"
	"github.com/desk-kit/support-desk/internal/events"
	"github.com/desk-kit/support-desk/internal/realtime"
	"github.com/desk-kit/support-desk/internal/repository"
	"github.com/desk-kit/support-desk/pkg/util"
)

// TicketService applies validated single-field mutations, creates tickets
// and appends thread messages. Each successful mutation writes one audit
// event and signals the realtime transport.
type TicketService struct {
	tickets  repository.TicketRepository
	messages repository.TicketMessageRepository
	audit    repository.TicketEventRepository
	users    repository.UserRepository

	locks      *KeyedMutex
	dispatcher events.Dispatcher
	notifier   realtime.Publisher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.TicketMessageRepository
	EventRepo   repository.TicketEventRepository
	UserRepo    repository.UserRepository
	Locks       *KeyedMutex
	Dispatcher  events.Dispatcher
	Notifier    realtime.Publisher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description *string
	Priority    domain.TicketPriority
	Topic       *domain.TicketTopic
	Type        *domain.TicketType
	// CreatedFor lets an agent or admin open a ticket on a customer's
	// behalf. Empty means the actor is the requester.
	CreatedFor string
}

// FieldChange is the result of a single-field mutation.
type FieldChange struct {
	TicketID string  `json:"ticket_id"`
	Field    string  `json:"field"`
	OldValue *string `json:"old_value"`
	NewValue *string `json:"new_value"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	locks := deps.Locks
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		audit:      deps.EventRepo,
		users:      deps.UserRepo,
		locks:      locks,
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
	}
}

// CreateTicket opens a new ticket for the actor, or on a customer's behalf
// when CreatedFor is set and the actor is staff.
func (s *TicketService) CreateTicket(ctx context.Context, actor Actor, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, util.NewValidationError("subject required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, util.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}
	if input.Topic != nil && !input.Topic.Valid() {
		return nil, util.NewValidationError("invalid topic", map[string]any{"topic": *input.Topic})
	}
	if input.Type != nil && !input.Type.Valid() {
		return nil, util.NewValidationError("invalid type", map[string]any{"type": *input.Type})
	}

	createdBy := actor.ID
	if input.CreatedFor != "" && input.CreatedFor != actor.ID {
		if !actor.IsStaff() {
			return nil, util.NewForbidden("only agents and admins can open tickets on a customer's behalf")
		}
		requester, err := s.users.GetByID(ctx, input.CreatedFor)
		if err != nil {
			return nil, util.MapError(err)
		}
		if requester.CompanyID != actor.CompanyID {
			return nil, util.NewValidationError("requester belongs to a different company", nil)
		}
		createdBy = requester.ID
	}

	ticket := &domain.Ticket{
		Subject:     subject,
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		Topic:       input.Topic,
		Type:        input.Type,
		CompanyID:   actor.CompanyID,
		CreatedBy:   createdBy,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	if err := s.appendEvent(ctx, ticket.ID, domain.EventCreated, nil, nil, actor.ID); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ActorID:   actor.ID,
		CompanyID: actor.CompanyID,
		Payload: events.TicketCreatedPayload{
			Subject:  ticket.Subject,
			Priority: ticket.Priority,
			Status:   ticket.Status,
		},
	})
	return ticket, nil
}

// eventForField maps mutable fields to their audit event type.
var eventForField = map[string]domain.TicketEventType{
	"status":      domain.EventStatusChanged,
	"priority":    domain.EventPriorityChanged,
	"topic":       domain.EventTopicChanged,
	"type":        domain.EventTypeChanged,
	"assigned_to": domain.EventAssigned,
	"description": domain.EventUpdatedDescription,
}

// customerEditableFields is the subset a non-staff creator may change on
// their own tickets. Triage fields (priority, topic, type, assignee) are
// staff-only.
var customerEditableFields = map[string]struct{}{
	"status":      {},
	"description": {},
}

// UpdateField applies a single named-field change. Unknown field names are
// rejected before any store call; enum-valued fields are validated against
// their enumeration regardless of the caller. Non-staff callers may only
// touch the fields in customerEditableFields, and only on tickets they
// created. Tag edits go through TagService.Reconcile instead.
func (s *TicketService) UpdateField(ctx context.Context, actor Actor, ticketID, field, value string) (*FieldChange, error) {
	eventType, known := eventForField[field]
	if !known {
		return nil, util.NewValidationError("unknown field", map[string]any{"field": field})
	}

	newValue, err := s.validateFieldValue(ctx, actor, field, value)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.CompanyID != actor.CompanyID {
		return nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	if !actor.IsStaff() {
		if ticket.CreatedBy != actor.ID {
			return nil, util.NewForbidden("customers can only edit their own tickets")
		}
		if _, editable := customerEditableFields[field]; !editable {
			return nil, util.NewForbidden("field is restricted to agents and admins")
		}
	}

	oldValue := fieldValue(ticket, field)
	var column any
	if newValue != nil {
		column = *newValue
	}
	if err := s.tickets.UpdateField(ctx, ticketID, field, column); err != nil {
		return nil, util.MapError(err)
	}

	if err := s.appendEvent(ctx, ticketID, eventType, oldValue, newValue, actor.ID); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventTicketFieldChanged,
		TicketID:  ticketID,
		ActorID:   actor.ID,
		CompanyID: actor.CompanyID,
		Payload: events.TicketFieldChangedPayload{
			Field:    field,
			OldValue: oldValue,
			NewValue: newValue,
		},
	})
	return &FieldChange{TicketID: ticketID, Field: field, OldValue: oldValue, NewValue: newValue}, nil
}

// AddMessage appends a thread message. Closed tickets still accept
// messages; there is deliberately no transition guard.
func (s *TicketService) AddMessage(ctx context.Context, actor Actor, ticketID, body string, messageType domain.MessageType) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, util.NewValidationError("message body required", nil)
	}
	if !messageType.Valid() {
		return nil, util.NewValidationError("invalid message type", map[string]any{"message_type": messageType})
	}
	if messageType == domain.MessageInternalNote && !actor.IsStaff() {
		return nil, util.NewForbidden("internal notes are restricted to agents and admins")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.CompanyID != actor.CompanyID {
		return nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	if !actor.IsStaff() && ticket.CreatedBy != actor.ID {
		return nil, util.NewForbidden("customers can only message their own tickets")
	}

	msg := &domain.TicketMessage{
		TicketID:    ticketID,
		SenderID:    actor.ID,
		MessageType: messageType,
		Body:        body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, util.MapError(err)
	}

	if err := s.appendEvent(ctx, ticketID, domain.EventCommentAdded, nil, nil, actor.ID); err != nil {
		return nil, err
	}
	s.notify(ctx, realtime.TableTicketMessages, ticketID)
	s.publish(ctx, events.Event{
		Type:      events.EventTicketMessageAdded,
		TicketID:  ticketID,
		ActorID:   actor.ID,
		CompanyID: actor.CompanyID,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			MessageType: msg.MessageType,
			SenderID:    msg.SenderID,
			BodyPreview: bodyPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// validateFieldValue checks the value against the field's enumeration and
// returns the normalized column value (nil clears a nullable field).
func (s *TicketService) validateFieldValue(ctx context.Context, actor Actor, field, value string) (*string, error) {
	value = strings.TrimSpace(value)
	switch field {
	case "status":
		if !domain.TicketStatus(value).Valid() {
			return nil, util.NewValidationError("invalid status", map[string]any{"status": value})
		}
	case "priority":
		if !domain.TicketPriority(value).Valid() {
			return nil, util.NewValidationError("invalid priority", map[string]any{"priority": value})
		}
	case "topic":
		if value == "" {
			return nil, nil
		}
		if !domain.TicketTopic(value).Valid() {
			return nil, util.NewValidationError("invalid topic", map[string]any{"topic": value})
		}
	case "type":
		if value == "" {
			return nil, nil
		}
		if !domain.TicketType(value).Valid() {
			return nil, util.NewValidationError("invalid type", map[string]any{"type": value})
		}
	case "assigned_to":
		if value == "" {
			return nil, nil
		}
		if _, err := uuid.Parse(value); err != nil {
			return nil, util.NewValidationError("assignee must be a user id", nil)
		}
		assignee, err := s.users.GetByID(ctx, value)
		if err != nil {
			return nil, util.MapError(err)
		}
		if assignee.CompanyID != actor.CompanyID {
			return nil, util.NewValidationError("assignee belongs to a different company", nil)
		}
		if assignee.Role == domain.RoleCustomer {
			return nil, util.NewValidationError("tickets can only be assigned to agents or admins", nil)
		}
	case "description":
		if value == "" {
			return nil, nil
		}
	}
	return &value, nil
}

func fieldValue(ticket *domain.Ticket, field string) *string {
	switch field {
	case "status":
		v := string(ticket.Status)
		return &v
	case "priority":
		v := string(ticket.Priority)
		return &v
	case "topic":
		if ticket.Topic == nil {
			return nil
		}
		v := string(*ticket.Topic)
		return &v
	case "type":
		if ticket.Type == nil {
			return nil
		}
		v := string(*ticket.Type)
		return &v
	case "assigned_to":
		return ticket.AssignedTo
	case "description":
		return ticket.Description
	}
	return nil
}

func (s *TicketService) appendEvent(ctx context.Context, ticketID string, eventType domain.TicketEventType, oldValue, newValue *string, actorID string) error {
	event := &domain.TicketEvent{
		TicketID:    ticketID,
		EventType:   eventType,
		OldValue:    oldValue,
		NewValue:    newValue,
		TriggeredBy: &actorID,
	}
	if err := s.audit.Create(ctx, event); err != nil {
		return util.MapError(err)
	}
	s.notify(ctx, realtime.TableTicketEvents, ticketID)
	return nil
}

func (s *TicketService) notify(ctx context.Context, table, ticketID string) {
	if s.notifier == nil {
		return
	}
	// Best effort: a dropped signal is reconciled by the next one.
	_ = s.notifier.PublishChange(ctx, realtime.Notification{Table: table, TicketID: ticketID})
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// bodyPreview truncates to max runes so a multi-byte character is never
// split mid-sequence.
func bodyPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
