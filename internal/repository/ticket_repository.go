package repository

import (
	"fmt"
	"strings"

	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desk-kit/support-desk/internal/domain"
)

// Scope captures the caller's visibility window: customers see their own
// tickets, agents see tickets assigned to them, admins see the whole
// company. This shapes queries; the store-side policy remains authoritative.
type Scope struct {
	CompanyID string
	Role      domain.UserRole
	UserID    string
}

// TicketStats aggregates counts for the dashboards.
type TicketStats struct {
	ByStatus   map[domain.TicketStatus]int
	ByPriority map[domain.TicketPriority]int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateField(ctx context.Context, ticketID, column string, value any) error
	List(ctx context.Context, scope Scope) ([]domain.Ticket, error)
	Stats(ctx context.Context, scope Scope) (*TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, subject, description, status, priority, topic, type,
               company_id, created_by, assigned_to, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (subject, description, status, priority, topic, type, company_id, created_by, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Topic,
		ticket.Type,
		ticket.CompanyID,
		ticket.CreatedBy,
		ticket.AssignedTo,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Topic,
		&ticket.Type,
		&ticket.CompanyID,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// updatableColumns whitelists the columns UpdateField may touch. The
// service validates field names before calling; this is the second line.
var updatableColumns = map[string]struct{}{
	"status":      {},
	"priority":    {},
	"topic":       {},
	"type":        {},
	"assigned_to": {},
	"description": {},
}

// UpdateField sets exactly one column plus updated_at.
func (r *ticketRepository) UpdateField(ctx context.Context, ticketID, column string, value any) error {
	if _, ok := updatableColumns[column]; !ok {
		return fmt.Errorf("column %q is not updatable", column)
	}
	query := fmt.Sprintf(`UPDATE tickets SET %s=$1, updated_at=NOW() WHERE id=$2`, column)
	cmd, err := r.pool.Exec(ctx, query, value, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, scope Scope) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses, args := scopeClauses(scope)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC`, base, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Stats(ctx context.Context, scope Scope) (*TicketStats, error) {
	clauses, args := scopeClauses(scope)
	query := fmt.Sprintf(`SELECT status, priority, COUNT(*) FROM tickets WHERE %s GROUP BY status, priority`,
		strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &TicketStats{
		ByStatus:   make(map[domain.TicketStatus]int),
		ByPriority: make(map[domain.TicketPriority]int),
	}
	for rows.Next() {
		var status domain.TicketStatus
		var priority domain.TicketPriority
		var count int
		if err := rows.Scan(&status, &priority, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
	}
	return stats, rows.Err()
}

func scopeClauses(scope Scope) ([]string, []any) {
	args := []any{scope.CompanyID}
	clauses := []string{"company_id=$1"}
	switch scope.Role {
	case domain.RoleCustomer:
		args = append(args, scope.UserID)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	case domain.RoleAgent:
		args = append(args, scope.UserID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	return clauses, args
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Subject,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Topic,
			&ticket.Type,
			&ticket.CompanyID,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
