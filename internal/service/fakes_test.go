package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/desk-kit/support-desk/internal/domain"
	"github.com/desk-kit/support-desk/internal/events"
	"github.com/desk-kit/support-desk/internal/realtime"
	"github.com/desk-kit/support-desk/internal/repository"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) UpdateField(ctx context.Context, ticketID, column string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	var str *string
	if value != nil {
		v := value.(string)
		str = &v
	}
	switch column {
	case "status":
		ticket.Status = domain.TicketStatus(*str)
	case "priority":
		ticket.Priority = domain.TicketPriority(*str)
	case "topic":
		if str == nil {
			ticket.Topic = nil
		} else {
			v := domain.TicketTopic(*str)
			ticket.Topic = &v
		}
	case "type":
		if str == nil {
			ticket.Type = nil
		} else {
			v := domain.TicketType(*str)
			ticket.Type = &v
		}
	case "assigned_to":
		ticket.AssignedTo = str
	case "description":
		ticket.Description = str
	}
	ticket.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) List(ctx context.Context, scope repository.Scope) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if !inScope(ticket, scope) {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *fakeTicketRepo) Stats(ctx context.Context, scope repository.Scope) (*repository.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int),
		ByPriority: make(map[domain.TicketPriority]int),
	}
	for _, ticket := range r.tickets {
		if !inScope(ticket, scope) {
			continue
		}
		stats.ByStatus[ticket.Status]++
		stats.ByPriority[ticket.Priority]++
	}
	return stats, nil
}

func inScope(ticket *domain.Ticket, scope repository.Scope) bool {
	if ticket.CompanyID != scope.CompanyID {
		return false
	}
	switch scope.Role {
	case domain.RoleCustomer:
		return ticket.CreatedBy == scope.UserID
	case domain.RoleAgent:
		return ticket.AssignedTo != nil && *ticket.AssignedTo == scope.UserID
	}
	return true
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) ListAgents(ctx context.Context, companyID string) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.CompanyID == companyID && user.Role != domain.RoleCustomer {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Email < result[j].Email })
	return result, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.TicketMessage
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketMessage
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.TicketEvent
}

func (r *fakeEventRepo) Create(ctx context.Context, event *domain.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now()
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeEventRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketEvent
	for _, event := range r.events {
		if event.TicketID == ticketID {
			result = append(result, event)
		}
	}
	return result, nil
}

func (r *fakeEventRepo) byType(eventType domain.TicketEventType) []domain.TicketEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketEvent
	for _, event := range r.events {
		if event.EventType == eventType {
			result = append(result, event)
		}
	}
	return result
}

type fakeTagRepo struct {
	mu    sync.Mutex
	tags  map[string]*domain.Tag
	assoc map[string]map[string]struct{}
	// onInsert runs before Insert checks for duplicates, letting tests
	// simulate a concurrent reconciliation winning the race.
	onInsert func(name string)
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{
		tags:  make(map[string]*domain.Tag),
		assoc: make(map[string]map[string]struct{}),
	}
}

func (r *fakeTagRepo) seed(companyID, name, color string) *domain.Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seedLocked(companyID, name, color)
}

func (r *fakeTagRepo) seedLocked(companyID, name, color string) *domain.Tag {
	tag := &domain.Tag{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		CompanyID: companyID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.tags[tag.ID] = tag
	return tag
}

func (r *fakeTagRepo) lookupLocked(companyID, name string) *domain.Tag {
	for _, tag := range r.tags {
		if tag.CompanyID == companyID && tag.Name == name {
			return tag
		}
	}
	return nil
}

func (r *fakeTagRepo) GetByID(ctx context.Context, companyID, id string) (*domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag, ok := r.tags[id]; ok && tag.CompanyID == companyID {
		copied := *tag
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTagRepo) GetByName(ctx context.Context, companyID, name string) (*domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag := r.lookupLocked(companyID, name); tag != nil {
		copied := *tag
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTagRepo) Insert(ctx context.Context, tag *domain.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onInsert != nil {
		r.onInsert(tag.Name)
	}
	if r.lookupLocked(tag.CompanyID, tag.Name) != nil {
		return &pgconn.PgError{Code: "23505", ConstraintName: "tags_company_id_name_key"}
	}
	stored := r.seedLocked(tag.CompanyID, tag.Name, tag.Color)
	tag.ID = stored.ID
	tag.CreatedAt = stored.CreatedAt
	tag.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *fakeTagRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Tag
	for id := range r.assoc[ticketID] {
		if tag, ok := r.tags[id]; ok {
			result = append(result, *tag)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *fakeTagRepo) SyncTicketTags(ctx context.Context, ticketID string, tagIDs []string) (*repository.TagDiff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.assoc[ticketID]
	if current == nil {
		current = make(map[string]struct{})
	}
	target := make(map[string]struct{}, len(tagIDs))
	diff := &repository.TagDiff{}
	for _, id := range tagIDs {
		if _, dup := target[id]; dup {
			continue
		}
		target[id] = struct{}{}
		if _, exists := current[id]; !exists {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range current {
		if _, keep := target[id]; !keep {
			diff.Removed = append(diff.Removed, id)
		}
	}
	r.assoc[ticketID] = target
	return diff, nil
}

type fakeTeamRepo struct {
	teams   []domain.Team
	members map[string][]domain.TeamMember
}

func (r *fakeTeamRepo) ListByCompany(ctx context.Context, companyID string) ([]domain.Team, error) {
	var result []domain.Team
	for _, team := range r.teams {
		if team.CompanyID == companyID {
			result = append(result, team)
		}
	}
	return result, nil
}

func (r *fakeTeamRepo) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	return r.members[teamID], nil
}

type fakePublisher struct {
	mu            sync.Mutex
	notifications []realtime.Notification
}

func (p *fakePublisher) PublishChange(ctx context.Context, n realtime.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
	return nil
}

func (p *fakePublisher) forTable(table string) []realtime.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []realtime.Notification
	for _, n := range p.notifications {
		if n.Table == table {
			result = append(result, n)
		}
	}
	return result
}

type fakeDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *fakeDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *fakeDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *fakeDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.published {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

func strptr(s string) *string { return &s }
