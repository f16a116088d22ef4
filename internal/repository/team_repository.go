package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desk-kit/support-desk/internal/domain"
)

// TeamRepository encapsulates team persistence.
type TeamRepository interface {
	ListByCompany(ctx context.Context, companyID string) ([]domain.Team, error)
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
}

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository instantiates repository.
func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &teamRepository{pool: pool}
}

func (r *teamRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Team, error) {
	const query = `
        SELECT id, name, company_id, created_at, updated_at
        FROM teams WHERE company_id=$1 ORDER BY name`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Team
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(
			&team.ID,
			&team.Name,
			&team.CompanyID,
			&team.CreatedAt,
			&team.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, team)
	}
	return result, rows.Err()
}

func (r *teamRepository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	const query = `
        SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.company_id, u.created_at, u.updated_at,
               ut.assigned_at, ut.assigned_by
        FROM user_teams ut
        JOIN users u ON u.id = ut.user_id
        WHERE ut.team_id=$1
        ORDER BY ut.assigned_at`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TeamMember
	for rows.Next() {
		var member domain.TeamMember
		if err := rows.Scan(
			&member.User.ID,
			&member.User.Email,
			&member.User.FirstName,
			&member.User.LastName,
			&member.User.Role,
			&member.User.CompanyID,
			&member.User.CreatedAt,
			&member.User.UpdatedAt,
			&member.AssignedAt,
			&member.AssignedBy,
		); err != nil {
			return nil, err
		}
		result = append(result, member)
	}
	return result, rows.Err()
}
