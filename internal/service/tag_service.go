package service

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/desk-kit/support-desk/internal/domain"
	"github.com/desk-kit/support-desk/internal/events"
	"github.com/desk-kit/support-desk/internal/realtime"
	"github.com/desk-kit/support-desk/internal/repository"
	"github.com/desk-kit/support-desk/pkg/util"
)

// tagRefPattern is the lexical shape separating canonical identifiers from
// free-text names: anything matching is resolved as an existing tag id
// within the actor's company, anything else by name or created.
var tagRefPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// tagPalette supplies display colors for newly created tags.
var tagPalette = []string{
	"#ef4444", "#f97316", "#f59e0b", "#84cc16", "#22c55e",
	"#14b8a6", "#3b82f6", "#8b5cf6", "#d946ef", "#64748b",
}

// TagService reconciles loosely-specified tag references into canonical
// per-company tag records and keeps a ticket's association set in sync.
type TagService struct {
	tags    repository.TagRepository
	tickets repository.TicketRepository
	audit   repository.TicketEventRepository

	locks      *KeyedMutex
	dispatcher events.Dispatcher
	notifier   realtime.Publisher
	colorPick  func() string
}

// TagDependencies bundles collaborators for the tag service.
type TagDependencies struct {
	TagRepo    repository.TagRepository
	TicketRepo repository.TicketRepository
	EventRepo  repository.TicketEventRepository
	Locks      *KeyedMutex
	Dispatcher events.Dispatcher
	Notifier   realtime.Publisher
}

// NewTagService constructs the service. Locks should be shared with the
// ticket service so tag edits serialize with field edits per ticket.
func NewTagService(deps TagDependencies) *TagService {
	locks := deps.Locks
	if locks == nil {
		locks = NewKeyedMutex()
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &TagService{
		tags:       deps.TagRepo,
		tickets:    deps.TicketRepo,
		audit:      deps.EventRepo,
		locks:      locks,
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		colorPick: func() string {
			return tagPalette[rng.Intn(len(tagPalette))]
		},
	}
}

// Reconcile resolves refs (existing tag ids or free-text names) into
// canonical tags, creating missing names exactly once per company, then
// diffs the ticket's association set against the resolved set. Calling it
// twice with the same refs is a no-op the second time.
func (s *TagService) Reconcile(ctx context.Context, actor Actor, ticketID string, refs []string) ([]domain.Tag, error) {
	if !actor.IsStaff() {
		return nil, util.NewForbidden("tag edits are restricted to agents and admins")
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

	tagIDs, err := s.resolveRefs(ctx, ticket.CompanyID, refs)
	if err != nil {
		return nil, err
	}

	diff, err := s.tags.SyncTicketTags(ctx, ticketID, tagIDs)
	if err != nil {
		return nil, util.MapError(err)
	}

	resolved, err := s.tags.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}

	if err := s.auditDiff(ctx, actor, ticketID, diff, resolved); err != nil {
		return nil, err
	}
	if len(diff.Added) > 0 || len(diff.Removed) > 0 {
		s.publish(ctx, events.Event{
			Type:      events.EventTicketTagsChanged,
			TicketID:  ticketID,
			ActorID:   actor.ID,
			CompanyID: actor.CompanyID,
			Payload: events.TicketTagsChangedPayload{
				Added:   diff.Added,
				Removed: diff.Removed,
			},
		})
	}
	return resolved, nil
}

// resolveRefs turns each reference into a canonical tag id. Id-shaped refs
// are looked up within the company; a tag owned elsewhere or not at all is
// NOT_FOUND. Creation races are settled by the store's unique constraint:
// a conflicting insert is converted into a lookup of the winner's row.
func (s *TagService) resolveRefs(ctx context.Context, companyID string, refs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}

		var id string
		if tagRefPattern.MatchString(strings.ToLower(ref)) {
			tag, err := s.tags.GetByID(ctx, companyID, strings.ToLower(ref))
			if err != nil {
				mapped := util.MapError(err)
				if util.IsNotFound(mapped) {
					return nil, util.NewNotFound("tag", map[string]any{"id": ref})
				}
				return nil, mapped
			}
			id = tag.ID
		} else {
			tag, err := s.findOrCreate(ctx, companyID, ref)
			if err != nil {
				return nil, err
			}
			id = tag.ID
		}

		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *TagService) findOrCreate(ctx context.Context, companyID, name string) (*domain.Tag, error) {
	tag, err := s.tags.GetByName(ctx, companyID, name)
	if err == nil {
		return tag, nil
	}
	if !util.IsNotFound(err) {
		return nil, util.MapError(err)
	}

	created := &domain.Tag{
		Name:      name,
		Color:     s.colorPick(),
		CompanyID: companyID,
	}
	insertErr := s.tags.Insert(ctx, created)
	if insertErr == nil {
		return created, nil
	}
	if !util.IsConflict(insertErr) {
		return nil, util.MapError(insertErr)
	}

	// A concurrent reconciliation won the insert; reuse its row.
	tag, err = s.tags.GetByName(ctx, companyID, name)
	if err != nil {
		return nil, util.MapError(err)
	}
	return tag, nil
}

func (s *TagService) auditDiff(ctx context.Context, actor Actor, ticketID string, diff *repository.TagDiff, resolved []domain.Tag) error {
	names := make(map[string]string, len(resolved))
	for _, tag := range resolved {
		names[tag.ID] = tag.Name
	}

	if len(diff.Added) > 0 {
		added := displayNames(diff.Added, names)
		event := &domain.TicketEvent{
			TicketID:    ticketID,
			EventType:   domain.EventTagsAdded,
			NewValue:    &added,
			TriggeredBy: &actor.ID,
		}
		if err := s.audit.Create(ctx, event); err != nil {
			return util.MapError(err)
		}
	}
	if len(diff.Removed) > 0 {
		// Removed tags are no longer joined to the ticket, so only their
		// ids are available here.
		removed := displayNames(diff.Removed, names)
		event := &domain.TicketEvent{
			TicketID:    ticketID,
			EventType:   domain.EventTagsRemoved,
			OldValue:    &removed,
			TriggeredBy: &actor.ID,
		}
		if err := s.audit.Create(ctx, event); err != nil {
			return util.MapError(err)
		}
	}
	if len(diff.Added) > 0 || len(diff.Removed) > 0 {
		s.notifyEvents(ctx, ticketID)
	}
	return nil
}

func displayNames(ids []string, names map[string]string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			parts = append(parts, name)
		} else {
			parts = append(parts, id)
		}
	}
	return strings.Join(parts, ", ")
}

func (s *TagService) notifyEvents(ctx context.Context, ticketID string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.PublishChange(ctx, realtime.Notification{Table: realtime.TableTicketEvents, TicketID: ticketID})
}

func (s *TagService) publish(ctx context.Context, event events.Event) {
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
