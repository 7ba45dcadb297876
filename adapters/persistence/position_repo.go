package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/linkgraph/internal/domain/position"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

type postgresPositionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresPositionRepo(db *pgxpool.Pool) position.Repository {
	return &postgresPositionRepo{db: db}
}

func (r *postgresPositionRepo) InsertIfAbsent(ctx context.Context, p *position.Position) (bool, error) {
	query := `
		INSERT INTO positions (id, profile_id, company_id, company_name, title, description, location, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT positions_natural_key DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.ProfileID, p.CompanyID, p.CompanyName, p.Title,
		p.Description, p.Location, p.StartDate, p.EndDate,
	)
	if err != nil {
		return false, apperror.NewInternal("failed to insert position", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresPositionRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]position.Position, error) {
	query := `
		SELECT id, profile_id, company_id, company_name, title, description, location, start_date, end_date
		FROM positions
		WHERE profile_id = $1
		ORDER BY start_date DESC NULLS LAST, title
	`
	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, apperror.NewInternal("failed to query positions", err)
	}
	defer rows.Close()

	out := make([]position.Position, 0)
	for rows.Next() {
		var p position.Position
		if err := rows.Scan(
			&p.ID, &p.ProfileID, &p.CompanyID, &p.CompanyName, &p.Title,
			&p.Description, &p.Location, &p.StartDate, &p.EndDate,
		); err != nil {
			return nil, apperror.NewInternal("failed to scan position", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating positions", err)
	}
	return out, nil
}

func (r *postgresPositionRepo) Update(ctx context.Context, p *position.Position) error {
	query := `
		UPDATE positions SET
			company_id = $3, company_name = $4, title = $5, description = $6,
			location = $7, start_date = $8, end_date = $9
		WHERE id = $1 AND profile_id = $2
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.ProfileID, p.CompanyID, p.CompanyName, p.Title,
		p.Description, p.Location, p.StartDate, p.EndDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict("position", "company and title", p.CompanyName+" / "+p.Title)
		}
		return apperror.NewInternal("failed to update position", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("position", p.ID.String())
	}
	return nil
}

func (r *postgresPositionRepo) Delete(ctx context.Context, profileID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM positions WHERE profile_id = $1 AND id = ANY($2)`, profileID, ids); err != nil {
		return apperror.NewInternal("failed to delete positions", err)
	}
	return nil
}
