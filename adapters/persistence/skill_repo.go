package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/linkgraph/internal/domain/skill"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

type postgresSkillRepo struct {
	db *pgxpool.Pool
}

func NewPostgresSkillRepo(db *pgxpool.Pool) skill.Repository {
	return &postgresSkillRepo{db: db}
}

func (r *postgresSkillRepo) Add(ctx context.Context, profileID uuid.UUID, name string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO skills (id, profile_id, name) VALUES ($1, $2, $3) ON CONFLICT (profile_id, name) DO NOTHING`,
		uuid.New(), profileID, name,
	)
	if err != nil {
		return false, apperror.NewInternal("failed to insert skill", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresSkillRepo) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]skill.Skill, error) {
	rows, err := r.db.Query(ctx, `SELECT id, profile_id, name FROM skills WHERE profile_id = $1 ORDER BY name`, profileID)
	if err != nil {
		return nil, apperror.NewInternal("failed to query skills", err)
	}
	defer rows.Close()

	out := make([]skill.Skill, 0)
	for rows.Next() {
		var s skill.Skill
		if err := rows.Scan(&s.ID, &s.ProfileID, &s.Name); err != nil {
			return nil, apperror.NewInternal("failed to scan skill", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating skills", err)
	}
	return out, nil
}

func (r *postgresSkillRepo) Rename(ctx context.Context, s *skill.Skill) error {
	tag, err := r.db.Exec(ctx, `UPDATE skills SET name = $3 WHERE id = $1 AND profile_id = $2`, s.ID, s.ProfileID, s.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewConflict("skill", "name", s.Name)
		}
		return apperror.NewInternal("failed to rename skill", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("skill", s.ID.String())
	}
	return nil
}

func (r *postgresSkillRepo) Delete(ctx context.Context, profileID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM skills WHERE profile_id = $1 AND id = ANY($2)`, profileID, ids); err != nil {
		return apperror.NewInternal("failed to delete skills", err)
	}
	return nil
}
