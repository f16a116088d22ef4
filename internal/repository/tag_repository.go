package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desk-kit/support-desk/internal/domain"
)

// TagDiff reports what a SyncTicketTags call changed.
type TagDiff struct {
	Added   []string
	Removed []string
}

// TagRepository encapsulates tag persistence. Insert relies on the store's
// UNIQUE (company_id, name) constraint as the final arbiter under
// concurrent creation.
type TagRepository interface {
	// GetByID is company-scoped: a tag owned by another company is
	// indistinguishable from a missing one.
	GetByID(ctx context.Context, companyID, id string) (*domain.Tag, error)
	GetByName(ctx context.Context, companyID, name string) (*domain.Tag, error)
	Insert(ctx context.Context, tag *domain.Tag) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Tag, error)
	// SyncTicketTags diffs the ticket's current association set against
	// tagIDs inside a single transaction: missing pairs are inserted,
	// extras deleted. Associations present in both are left untouched.
	SyncTicketTags(ctx context.Context, ticketID string, tagIDs []string) (*TagDiff, error)
}

type tagRepository struct {
	pool *pgxpool.Pool
}

// NewTagRepository instantiates repository.
func NewTagRepository(pool *pgxpool.Pool) TagRepository {
	return &tagRepository{pool: pool}
}

const tagColumns = `id, name, color, company_id, created_at, updated_at`

func (r *tagRepository) GetByID(ctx context.Context, companyID, id string) (*domain.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE id=$1 AND company_id=$2`
	var tag domain.Tag
	if err := r.pool.QueryRow(ctx, query, id, companyID).Scan(
		&tag.ID,
		&tag.Name,
		&tag.Color,
		&tag.CompanyID,
		&tag.CreatedAt,
		&tag.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) GetByName(ctx context.Context, companyID, name string) (*domain.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE company_id=$1 AND name=$2`
	var tag domain.Tag
	if err := r.pool.QueryRow(ctx, query, companyID, name).Scan(
		&tag.ID,
		&tag.Name,
		&tag.Color,
		&tag.CompanyID,
		&tag.CreatedAt,
		&tag.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) Insert(ctx context.Context, tag *domain.Tag) error {
	const query = `
        INSERT INTO tags (name, color, company_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		tag.Name,
		tag.Color,
		tag.CompanyID,
	).Scan(&tag.ID, &tag.CreatedAt, &tag.UpdatedAt)
}

func (r *tagRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Tag, error) {
	query := `SELECT t.id, t.name, t.color, t.company_id, t.created_at, t.updated_at
        FROM tags t
        JOIN ticket_tags tt ON tt.tag_id = t.id
        WHERE tt.ticket_id=$1
        ORDER BY t.name`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(
			&tag.ID,
			&tag.Name,
			&tag.Color,
			&tag.CompanyID,
			&tag.CreatedAt,
			&tag.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

func (r *tagRepository) SyncTicketTags(ctx context.Context, ticketID string, tagIDs []string) (*TagDiff, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `SELECT tag_id FROM ticket_tags WHERE ticket_id=$1 FOR UPDATE`, ticketID)
	if err != nil {
		return nil, err
	}
	current := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		current[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	target := make(map[string]struct{}, len(tagIDs))
	diff := &TagDiff{}
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

	for _, id := range diff.Added {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ticket_tags (ticket_id, tag_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			ticketID, id); err != nil {
			return nil, err
		}
	}
	for _, id := range diff.Removed {
		if _, err := tx.Exec(ctx,
			`DELETE FROM ticket_tags WHERE ticket_id=$1 AND tag_id=$2`,
			ticketID, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return diff, nil
}
