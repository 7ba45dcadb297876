package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/linkgraph/internal/domain/education"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

type postgresEducationRepo struct {
	db *pgxpool.Pool
}

func NewPostgresEducationRepo(db *pgxpool.Pool) education.Repository {
	return &postgresEducationRepo{db: db}
}

func (r *postgresEducationRepo) InsertIfAbsent(ctx context.Context, e *education.Education) (bool, error) {
	query := `
		INSERT INTO education (id, profile_id, institution_id, institution_name, degree, notes, activities, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT education_natural_key DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		e.ID, e.ProfileID, e.InstitutionID, e.InstitutionName, e.Degree,
		e.Notes, e.Activities, e.StartDate, e.EndDate,
	)
	if err != nil {
		return false, apperror.NewInternal("failed to insert education", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresEducationRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]education.Education, error) {
	query := `
		SELECT id, profile_id, institution_id, institution_name, degree, notes, activities, start_date, end_date
		FROM education
		WHERE profile_id = $1
		ORDER BY start_date DESC NULLS LAST, institution_name
	`
	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, apperror.NewInternal("failed to query education", err)
	}
	defer rows.Close()

	out := make([]education.Education, 0)
	for rows.Next() {
		var e education.Education
		if err := rows.Scan(
			&e.ID, &e.ProfileID, &e.InstitutionID, &e.InstitutionName, &e.Degree,
			&e.Notes, &e.Activities, &e.StartDate, &e.EndDate,
		); err != nil {
			return nil, apperror.NewInternal("failed to scan education", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating education", err)
	}
	return out, nil
}

func (r *postgresEducationRepo) Update(ctx context.Context, e *education.Education) error {
	query := `
		UPDATE education SET
			institution_id = $3, institution_name = $4, degree = $5, notes = $6,
			activities = $7, start_date = $8, end_date = $9
		WHERE id = $1 AND profile_id = $2
	`
	tag, err := r.db.Exec(ctx, query,
		e.ID, e.ProfileID, e.InstitutionID, e.InstitutionName, e.Degree,
		e.Notes, e.Activities, e.StartDate, e.EndDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict("education", "institution", e.InstitutionName)
		}
		return apperror.NewInternal("failed to update education", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("education", e.ID.String())
	}
	return nil
}

func (r *postgresEducationRepo) Delete(ctx context.Context, profileID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM education WHERE profile_id = $1 AND id = ANY($2)`, profileID, ids); err != nil {
		return apperror.NewInternal("failed to delete education", err)
	}
	return nil
}
