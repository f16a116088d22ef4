package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desk-kit/support-desk/internal/domain"
	"github.com/desk-kit/support-desk/internal/events"
	"github.com/desk-kit/support-desk/internal/realtime"
	"github.com/desk-kit/support-desk/pkg/util"
)

const companyID = "11111111-1111-1111-1111-111111111111"

var (
	adminActor    = Actor{ID: "aaaaaaaa-0000-0000-0000-000000000001", Email: "admin@acme.test", Role: domain.RoleAdmin, CompanyID: companyID}
	agentActor    = Actor{ID: "aaaaaaaa-0000-0000-0000-000000000002", Email: "agent@acme.test", Role: domain.RoleAgent, CompanyID: companyID}
	customerActor = Actor{ID: "aaaaaaaa-0000-0000-0000-000000000003", Email: "jane@customer.test", Role: domain.RoleCustomer, CompanyID: companyID}
)

func seedUsers() *fakeUserRepo {
	return newFakeUserRepo(
		&domain.User{ID: adminActor.ID, Email: adminActor.Email, Role: domain.RoleAdmin, CompanyID: companyID},
		&domain.User{ID: agentActor.ID, Email: agentActor.Email, FirstName: strptr("Avery"), Role: domain.RoleAgent, CompanyID: companyID},
		&domain.User{ID: customerActor.ID, Email: customerActor.Email, FirstName: strptr("Jane"), LastName: strptr("Doe"), Role: domain.RoleCustomer, CompanyID: companyID},
	)
}

type ticketFixture struct {
	service    *TicketService
	tickets    *fakeTicketRepo
	messages   *fakeMessageRepo
	audit      *fakeEventRepo
	users      *fakeUserRepo
	dispatcher *fakeDispatcher
	notifier   *fakePublisher
}

func newTicketFixture() *ticketFixture {
	f := &ticketFixture{
		tickets:    newFakeTicketRepo(),
		messages:   &fakeMessageRepo{},
		audit:      &fakeEventRepo{},
		users:      seedUsers(),
		dispatcher: &fakeDispatcher{},
		notifier:   &fakePublisher{},
	}
	f.service = NewTicketService(TicketDependencies{
		TicketRepo:  f.tickets,
		MessageRepo: f.messages,
		EventRepo:   f.audit,
		UserRepo:    f.users,
		Dispatcher:  f.dispatcher,
		Notifier:    f.notifier,
	})
	return f
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newTicketFixture()

	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "  printer on fire  "})
	require.NoError(t, err)

	assert.Equal(t, "printer on fire", ticket.Subject)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, customerActor.ID, ticket.CreatedBy)
	assert.Equal(t, companyID, ticket.CompanyID)

	created := f.audit.byType(domain.EventCreated)
	require.Len(t, created, 1)
	assert.Equal(t, ticket.ID, created[0].TicketID)

	require.Len(t, f.dispatcher.byType(events.EventTicketCreated), 1)
}

func TestCreateTicketRequiresSubject(t *testing.T) {
	f := newTicketFixture()

	_, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "   "})
	require.Error(t, err)
	assert.Equal(t, util.CodeValidation, util.ToDomainError(err).Code)
}

func TestCreateTicketOnBehalf(t *testing.T) {
	f := newTicketFixture()

	ticket, err := f.service.CreateTicket(context.Background(), agentActor, TicketCreateInput{
		Subject:    "billing question",
		CreatedFor: customerActor.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, customerActor.ID, ticket.CreatedBy)

	_, err = f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{
		Subject:    "sneaky",
		CreatedFor: agentActor.ID,
	})
	require.Error(t, err)
	assert.Equal(t, util.CodeForbidden, util.ToDomainError(err).Code)
}

func TestUpdateFieldRoundTrip(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{
		Subject:  "slow dashboard",
		Priority: domain.TicketPriorityLow,
	})
	require.NoError(t, err)

	change, err := f.service.UpdateField(context.Background(), agentActor, ticket.ID, "priority", "high")
	require.NoError(t, err)
	require.NotNil(t, change.OldValue)
	require.NotNil(t, change.NewValue)
	assert.Equal(t, "low", *change.OldValue)
	assert.Equal(t, "high", *change.NewValue)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, stored.Priority)

	changes := f.audit.byType(domain.EventPriorityChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, "low", *changes[0].OldValue)
	assert.Equal(t, "high", *changes[0].NewValue)

	assert.NotEmpty(t, f.notifier.forTable(realtime.TableTicketEvents))
}

func TestUpdateFieldRejectsUnknownField(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "hello"})
	require.NoError(t, err)

	before := len(f.audit.events)
	_, err = f.service.UpdateField(context.Background(), adminActor, ticket.ID, "subject", "renamed")
	require.Error(t, err)
	assert.Equal(t, util.CodeValidation, util.ToDomainError(err).Code)
	assert.Len(t, f.audit.events, before)
}

func TestUpdateFieldRejectsBadEnum(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "hello"})
	require.NoError(t, err)

	_, err = f.service.UpdateField(context.Background(), adminActor, ticket.ID, "status", "archived")
	require.Error(t, err)
	assert.Equal(t, util.CodeValidation, util.ToDomainError(err).Code)
}

func TestUpdateFieldCrossCompanyHidden(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "hello"})
	require.NoError(t, err)

	outsider := Actor{ID: "bbbbbbbb-0000-0000-0000-000000000001", Role: domain.RoleAdmin, CompanyID: "22222222-2222-2222-2222-222222222222"}
	_, err = f.service.UpdateField(context.Background(), outsider, ticket.ID, "status", "closed")
	require.Error(t, err)
	assert.True(t, util.IsNotFound(err))
}

func TestUpdateFieldCustomerOwnTicketsOnly(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "hello"})
	require.NoError(t, err)

	otherCustomer := Actor{ID: "aaaaaaaa-0000-0000-0000-000000000009", Role: domain.RoleCustomer, CompanyID: companyID}
	_, err = f.service.UpdateField(context.Background(), otherCustomer, ticket.ID, "status", "closed")
	require.Error(t, err)
	assert.Equal(t, util.CodeForbidden, util.ToDomainError(err).Code)
}

func TestUpdateFieldCustomerSubset(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "vpn down"})
	require.NoError(t, err)

	// The creator may close their ticket and amend the description.
	_, err = f.service.UpdateField(context.Background(), customerActor, ticket.ID, "status", "closed")
	require.NoError(t, err)
	_, err = f.service.UpdateField(context.Background(), customerActor, ticket.ID, "description", "also affects the office wifi")
	require.NoError(t, err)

	// Triage fields stay staff-only even on the creator's own ticket.
	for _, tc := range []struct{ field, value string }{
		{"priority", "high"},
		{"topic", string(domain.TopicTechnical)},
		{"type", string(domain.TypeProblem)},
		{"assigned_to", agentActor.ID},
	} {
		_, err = f.service.UpdateField(context.Background(), customerActor, ticket.ID, tc.field, tc.value)
		require.Error(t, err, tc.field)
		assert.Equal(t, util.CodeForbidden, util.ToDomainError(err).Code, tc.field)
	}

	assert.Empty(t, f.audit.byType(domain.EventPriorityChanged))
	assert.Empty(t, f.audit.byType(domain.EventAssigned))
}

func TestAssignValidation(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "assign me"})
	require.NoError(t, err)

	_, err = f.service.UpdateField(context.Background(), adminActor, ticket.ID, "assigned_to", customerActor.ID)
	require.Error(t, err)
	assert.Equal(t, util.CodeValidation, util.ToDomainError(err).Code)

	change, err := f.service.UpdateField(context.Background(), adminActor, ticket.ID, "assigned_to", agentActor.ID)
	require.NoError(t, err)
	assert.Equal(t, agentActor.ID, *change.NewValue)

	// Empty value clears the assignee.
	change, err = f.service.UpdateField(context.Background(), adminActor, ticket.ID, "assigned_to", "")
	require.NoError(t, err)
	assert.Nil(t, change.NewValue)
}

func TestAddMessageRejectsEmptyBody(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "hello"})
	require.NoError(t, err)

	_, err = f.service.AddMessage(context.Background(), customerActor, ticket.ID, "   \n\t ", domain.MessagePublic)
	require.Error(t, err)
	assert.Equal(t, util.CodeValidation, util.ToDomainError(err).Code)
	assert.Empty(t, f.messages.messages)
}

func TestAddMessageInternalNoteStaffOnly(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "hello"})
	require.NoError(t, err)

	_, err = f.service.AddMessage(context.Background(), customerActor, ticket.ID, "observed", domain.MessageInternalNote)
	require.Error(t, err)
	assert.Equal(t, util.CodeForbidden, util.ToDomainError(err).Code)

	msg, err := f.service.AddMessage(context.Background(), agentActor, ticket.ID, "observed", domain.MessageInternalNote)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageInternalNote, msg.MessageType)
}

func TestAddMessageToClosedTicket(t *testing.T) {
	f := newTicketFixture()
	ticket, err := f.service.CreateTicket(context.Background(), customerActor, TicketCreateInput{Subject: "wrap up"})
	require.NoError(t, err)
	_, err = f.service.UpdateField(context.Background(), adminActor, ticket.ID, "status", "closed")
	require.NoError(t, err)

	// Closed tickets still take messages; there is no transition guard.
	msg, err := f.service.AddMessage(context.Background(), customerActor, ticket.ID, "one more thing", domain.MessagePublic)
	require.NoError(t, err)
	assert.Equal(t, "one more thing", msg.Body)

	require.Len(t, f.audit.byType(domain.EventCommentAdded), 1)
	assert.NotEmpty(t, f.notifier.forTable(realtime.TableTicketMessages))
	require.Len(t, f.dispatcher.byType(events.EventTicketMessageAdded), 1)
}

func TestBodyPreviewTruncatesOnRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 200)
	preview := bodyPreview(long, 120)
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, 120, utf8.RuneCountInString(preview))
	assert.Equal(t, strings.Repeat("é", 117)+"...", preview)

	assert.Equal(t, "héllo", bodyPreview("  héllo  ", 120))
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := NewKeyedMutex()

	unlock := locks.Lock("ticket-1")
	acquired := make(chan struct{})
	go func() {
		second := locks.Lock("ticket-1")
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired while first still held")
	default:
	}

	// A different key must not block.
	other := locks.Lock("ticket-2")
	other()

	unlock()
	<-acquired
}
