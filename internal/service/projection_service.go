package service

import (
	"context"
	"time"

	"github.com/desk-kit/support-desk/internal/domain"
	"github.com/desk-kit/support-desk/internal/repository"
	"github.com/desk-kit/support-desk/pkg/util"
)

// UserSummary is the display-ready profile embedded in projections.
type UserSummary struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	FullName string          `json:"full_name"`
	Role     domain.UserRole `json:"role"`
}

// TagView is a tag as shown on a ticket.
type TagView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// MessageView is one thread entry with its sender resolved.
type MessageView struct {
	ID          string             `json:"id"`
	MessageType domain.MessageType `json:"message_type"`
	Body        string             `json:"body"`
	Sender      UserSummary        `json:"sender"`
	CreatedAt   time.Time          `json:"created_at"`
}

// EventView is one audit entry with its actor resolved.
type EventView struct {
	ID          string                 `json:"id"`
	EventType   domain.TicketEventType `json:"event_type"`
	OldValue    *string                `json:"old_value"`
	NewValue    *string                `json:"new_value"`
	TriggeredBy *UserSummary           `json:"triggered_by"`
	CreatedAt   time.Time              `json:"created_at"`
}

// TicketSummary is the list projection: no messages or events.
type TicketSummary struct {
	ID         string                `json:"id"`
	Subject    string                `json:"subject"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	CreatedBy  UserSummary           `json:"created_by"`
	AssignedTo *UserSummary          `json:"assigned_to"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketView is the full single-ticket projection.
type TicketView struct {
	ID          string                `json:"id"`
	Subject     string                `json:"subject"`
	Description *string               `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Topic       *domain.TicketTopic   `json:"topic"`
	Type        *domain.TicketType    `json:"type"`
	CreatedBy   UserSummary           `json:"created_by"`
	AssignedTo  *UserSummary          `json:"assigned_to"`
	Tags        []TagView             `json:"tags"`
	Messages    []MessageView         `json:"messages"`
	Events      []EventView           `json:"events"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// ProjectionService assembles denormalized read models scoped by the
// caller's role. The schema carries no row-level policy, so the company
// and role checks here are the authoritative visibility boundary.
type ProjectionService struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	tags     repository.TagRepository
	messages repository.TicketMessageRepository
	audit    repository.TicketEventRepository
	teams    repository.TeamRepository
}

// ProjectionDependencies bundles repositories for the projection service.
type ProjectionDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	TagRepo     repository.TagRepository
	MessageRepo repository.TicketMessageRepository
	EventRepo   repository.TicketEventRepository
	TeamRepo    repository.TeamRepository
}

// NewProjectionService constructs the service.
func NewProjectionService(deps ProjectionDependencies) *ProjectionService {
	return &ProjectionService{
		tickets:  deps.TicketRepo,
		users:    deps.UserRepo,
		tags:     deps.TagRepo,
		messages: deps.MessageRepo,
		audit:    deps.EventRepo,
		teams:    deps.TeamRepo,
	}
}

// GetTicket loads the single-ticket projection: ticket fields, requester
// and assignee profiles, tags, messages ascending, events ascending.
func (s *ProjectionService) GetTicket(ctx context.Context, actor Actor, ticketID string) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.CompanyID != actor.CompanyID {
		return nil, util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	switch actor.Role {
	case domain.RoleCustomer:
		if ticket.CreatedBy != actor.ID {
			return nil, util.NewForbidden("customers see only their own tickets")
		}
	case domain.RoleAgent:
		if ticket.AssignedTo == nil || *ticket.AssignedTo != actor.ID {
			return nil, util.NewForbidden("agents see only tickets assigned to them")
		}
	}

	cache := newUserCache(s.users)
	view := &TicketView{
		ID:          ticket.ID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		Topic:       ticket.Topic,
		Type:        ticket.Type,
		Tags:        []TagView{},
		Messages:    []MessageView{},
		Events:      []EventView{},
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}

	creator, err := cache.get(ctx, ticket.CreatedBy)
	if err != nil {
		return nil, err
	}
	view.CreatedBy = creator
	if ticket.AssignedTo != nil {
		assignee, err := cache.get(ctx, *ticket.AssignedTo)
		if err != nil {
			return nil, err
		}
		view.AssignedTo = &assignee
	}

	tags, err := s.tags.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	for _, tag := range tags {
		view.Tags = append(view.Tags, TagView{ID: tag.ID, Name: tag.Name, Color: tag.Color})
	}

	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	for _, msg := range msgs {
		if msg.MessageType == domain.MessageInternalNote && !actor.IsStaff() {
			continue
		}
		sender, err := cache.get(ctx, msg.SenderID)
		if err != nil {
			return nil, err
		}
		view.Messages = append(view.Messages, MessageView{
			ID:          msg.ID,
			MessageType: msg.MessageType,
			Body:        msg.Body,
			Sender:      sender,
			CreatedAt:   msg.CreatedAt,
		})
	}

	auditEntries, err := s.audit.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	for _, entry := range auditEntries {
		eventView := EventView{
			ID:        entry.ID,
			EventType: entry.EventType,
			OldValue:  entry.OldValue,
			NewValue:  entry.NewValue,
			CreatedAt: entry.CreatedAt,
		}
		if entry.TriggeredBy != nil {
			actorSummary, err := cache.get(ctx, *entry.TriggeredBy)
			if err != nil {
				return nil, err
			}
			eventView.TriggeredBy = &actorSummary
		}
		view.Events = append(view.Events, eventView)
	}

	return view, nil
}

// ListTickets returns summaries for the actor's scope, newest-first.
func (s *ProjectionService) ListTickets(ctx context.Context, actor Actor) ([]TicketSummary, error) {
	scope := repository.Scope{CompanyID: actor.CompanyID, Role: actor.Role, UserID: actor.ID}
	tickets, err := s.tickets.List(ctx, scope)
	if err != nil {
		return nil, util.MapError(err)
	}

	cache := newUserCache(s.users)
	summaries := make([]TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		summary := TicketSummary{
			ID:        ticket.ID,
			Subject:   ticket.Subject,
			Status:    ticket.Status,
			Priority:  ticket.Priority,
			CreatedAt: ticket.CreatedAt,
			UpdatedAt: ticket.UpdatedAt,
		}
		creator, err := cache.get(ctx, ticket.CreatedBy)
		if err != nil {
			return nil, err
		}
		summary.CreatedBy = creator
		if ticket.AssignedTo != nil {
			assignee, err := cache.get(ctx, *ticket.AssignedTo)
			if err != nil {
				return nil, err
			}
			summary.AssignedTo = &assignee
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Stats aggregates status/priority counts for the actor's scope.
func (s *ProjectionService) Stats(ctx context.Context, actor Actor) (*repository.TicketStats, error) {
	scope := repository.Scope{CompanyID: actor.CompanyID, Role: actor.Role, UserID: actor.ID}
	stats, err := s.tickets.Stats(ctx, scope)
	if err != nil {
		return nil, util.MapError(err)
	}
	return stats, nil
}

// ListAgents returns the company's agents and admins for assignee pickers.
func (s *ProjectionService) ListAgents(ctx context.Context, actor Actor) ([]UserSummary, error) {
	if !actor.IsStaff() {
		return nil, util.NewForbidden("agent directory is restricted to agents and admins")
	}
	agents, err := s.users.ListAgents(ctx, actor.CompanyID)
	if err != nil {
		return nil, util.MapError(err)
	}
	summaries := make([]UserSummary, 0, len(agents))
	for _, agent := range agents {
		summaries = append(summaries, summarize(agent))
	}
	return summaries, nil
}

// ListTeams returns teams with member profiles. Admin only.
func (s *ProjectionService) ListTeams(ctx context.Context, actor Actor) ([]domain.TeamWithMembers, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, util.NewForbidden("teams view is restricted to admins")
	}
	teams, err := s.teams.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, util.MapError(err)
	}
	result := make([]domain.TeamWithMembers, 0, len(teams))
	for _, team := range teams {
		members, err := s.teams.ListMembers(ctx, team.ID)
		if err != nil {
			return nil, util.MapError(err)
		}
		result = append(result, domain.TeamWithMembers{Team: team, Members: members})
	}
	return result, nil
}

func summarize(user domain.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName(),
		Role:     user.Role,
	}
}

// userCache memoizes profile lookups within one projection call.
type userCache struct {
	users repository.UserRepository
	seen  map[string]UserSummary
}

func newUserCache(users repository.UserRepository) *userCache {
	return &userCache{users: users, seen: make(map[string]UserSummary)}
}

func (c *userCache) get(ctx context.Context, id string) (UserSummary, error) {
	if summary, ok := c.seen[id]; ok {
		return summary, nil
	}
	user, err := c.users.GetByID(ctx, id)
	if err != nil {
		return UserSummary{}, util.MapError(err)
	}
	summary := summarize(*user)
	c.seen[id] = summary
	return summary, nil
}
