package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

const profileColumns = `id, account_id, first_name, last_name, headline, summary, industry, location,
	email, linkedin_slug, is_shadow, claim_conflict_slug, created_at, updated_at`

type postgresProfileRepo struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresProfileRepo(db *pgxpool.Pool, logger logger.Logger) profile.Repository {
	return &postgresProfileRepo{db: db, logger: logger}
}

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	p := &profile.Profile{}
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.FirstName,
		&p.LastName,
		&p.Headline,
		&p.Summary,
		&p.Industry,
		&p.Location,
		&p.Email,
		&p.LinkedInSlug,
		&p.IsShadow,
		&p.ClaimConflictSlug,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrProfileNotFound
		}
		return nil, apperror.NewInternal("failed to scan profile row", err)
	}
	return p, nil
}

func (r *postgresProfileRepo) FindByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, id))
}

func (r *postgresProfileRepo) FindBySlug(ctx context.Context, slug string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE linkedin_slug = $1`
	return scanProfile(r.db.QueryRow(ctx, query, slug))
}

func (r *postgresProfileRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]profile.Profile, error) {
	if len(ids) == 0 {
		return []profile.Profile{}, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, apperror.NewInternal("failed to query profiles", err)
	}
	defer rows.Close()

	out := make([]profile.Profile, 0, len(ids))
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating profiles", err)
	}
	return out, nil
}

func (r *postgresProfileRepo) FindOrCreateByAccount(ctx context.Context, accountID string, email *string) (*profile.Profile, error) {
	insert := `
		INSERT INTO profiles (id, account_id, email, is_shadow)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (account_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, uuid.New(), accountID, email); err != nil {
		return nil, apperror.NewInternal("failed to create account profile", err)
	}

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE account_id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, accountID))
}

func (r *postgresProfileRepo) CreateShadow(ctx context.Context, seed profile.ShadowSeed) (*profile.Profile, error) {
	query := `
		INSERT INTO profiles (id, first_name, last_name, headline, linkedin_slug, is_shadow)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (linkedin_slug) DO NOTHING
		RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRow(ctx, query, uuid.New(), seed.FirstName, seed.LastName, seed.Headline, seed.Slug))
	if errors.Is(err, profile.ErrProfileNotFound) {
		return nil, nil
	}
	return p, err
}

func (r *postgresProfileRepo) FillBlanks(ctx context.Context, id uuid.UUID, d profile.Details) (*profile.Profile, error) {
	query := `
		UPDATE profiles SET
			first_name = COALESCE(first_name, $2),
			last_name  = COALESCE(last_name, $3),
			headline   = COALESCE(headline, $4),
			summary    = COALESCE(summary, $5),
			industry   = COALESCE(industry, $6),
			location   = COALESCE(location, $7),
			email      = COALESCE(email, $8),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, query, id,
		d.FirstName, d.LastName, d.Headline, d.Summary, d.Industry, d.Location, d.Email))
}

func (r *postgresProfileRepo) UpdateDetails(ctx context.Context, id uuid.UUID, d profile.Details) (*profile.Profile, error) {
	query := `
		UPDATE profiles SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			headline   = COALESCE($4, headline),
			summary    = COALESCE($5, summary),
			industry   = COALESCE($6, industry),
			location   = COALESCE($7, location),
			email      = COALESCE($8, email),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, query, id,
		d.FirstName, d.LastName, d.Headline, d.Summary, d.Industry, d.Location, d.Email))
}

// ClaimSlug runs in one transaction that locks both the claimant and the
// current slug holder, so concurrent claims serialize and the first commit wins.
func (r *postgresProfileRepo) ClaimSlug(ctx context.Context, id uuid.UUID, slug string) (*profile.ClaimResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, apperror.NewInternal("failed to begin claim transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id)); err != nil {
		return nil, err
	}

	var (
		holderID     uuid.UUID
		holderShadow bool
	)
	err = tx.QueryRow(ctx, `SELECT id, is_shadow FROM profiles WHERE linkedin_slug = $1 FOR UPDATE`, slug).
		Scan(&holderID, &holderShadow)
	held := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NewInternal("failed to lock slug holder", err)
	}

	switch {
	case held && holderID == id:
		return &profile.ClaimResult{AlreadyHeld: true}, tx.Commit(ctx)
	case held && !holderShadow:
		if _, err := tx.Exec(ctx, `UPDATE profiles SET claim_conflict_slug = $2, updated_at = NOW() WHERE id = $1`, id, slug); err != nil {
			return nil, apperror.NewInternal("failed to flag slug conflict", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, apperror.NewInternal("failed to commit slug conflict", err)
		}
		return nil, profile.ErrSlugClaimed
	}

	res := &profile.ClaimResult{}
	if held {
		if err := mergeShadow(ctx, tx, holderID, id); err != nil {
			return nil, err
		}
		res.MergedShadowID = &holderID
	}

	_, err = tx.Exec(ctx, `
		UPDATE profiles
		SET linkedin_slug = $2, is_shadow = FALSE, claim_conflict_slug = NULL, updated_at = NOW()
		WHERE id = $1`, id, slug)
	if err != nil {
		if isUniqueViolation(err) {
			// A shadow with this slug was inserted after our holder lookup.
			r.logger.Warn("Slug claim lost to concurrent insert", zap.String("slug", slug))
			_ = tx.Rollback(ctx)
			r.flagConflict(ctx, id, slug)
			return nil, profile.ErrSlugClaimed
		}
		return nil, apperror.NewInternal("failed to claim slug", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.NewInternal("failed to commit slug claim", err)
	}
	return res, nil
}

func (r *postgresProfileRepo) flagConflict(ctx context.Context, id uuid.UUID, slug string) {
	if _, err := r.db.Exec(ctx, `UPDATE profiles SET claim_conflict_slug = $2, updated_at = NOW() WHERE id = $1`, id, slug); err != nil {
		r.logger.Error("Failed to flag slug conflict", err, zap.String("profile_id", id.String()))
	}
}

// mergeShadow moves everything the shadow owns onto owner, fills owner's blank
// fields from the shadow and deletes the shadow.
func mergeShadow(ctx context.Context, tx pgx.Tx, shadowID, ownerID uuid.UUID) error {
	both := []any{shadowID, ownerID}
	onlyShadow := []any{shadowID}
	steps := []struct {
		what  string
		query string
		args  []any
	}{
		{"re-point connections", `
			INSERT INTO connections (profile_a, profile_b, connected_on, created_at)
			SELECT LEAST(e.other, $2), GREATEST(e.other, $2), e.connected_on, e.created_at
			FROM (
				SELECT CASE WHEN profile_a = $1 THEN profile_b ELSE profile_a END AS other, connected_on, created_at
				FROM connections
				WHERE profile_a = $1 OR profile_b = $1
			) e
			WHERE e.other <> $2
			ON CONFLICT (profile_a, profile_b) DO NOTHING`, both},
		{"drop shadow connections", `DELETE FROM connections WHERE profile_a = $1 OR profile_b = $1`, onlyShadow},
		{"move positions", `
			UPDATE positions p SET profile_id = $2
			WHERE p.profile_id = $1 AND NOT EXISTS (
				SELECT 1 FROM positions o
				WHERE o.profile_id = $2 AND o.company_name = p.company_name AND o.title = p.title
				AND o.start_date IS NOT DISTINCT FROM p.start_date)`, both},
		{"move education", `
			UPDATE education e SET profile_id = $2
			WHERE e.profile_id = $1 AND NOT EXISTS (
				SELECT 1 FROM education o
				WHERE o.profile_id = $2 AND o.institution_name = e.institution_name
				AND o.degree IS NOT DISTINCT FROM e.degree AND o.start_date IS NOT DISTINCT FROM e.start_date)`, both},
		{"move skills", `
			UPDATE skills s SET profile_id = $2
			WHERE s.profile_id = $1 AND NOT EXISTS (
				SELECT 1 FROM skills o WHERE o.profile_id = $2 AND o.name = s.name)`, both},
		{"fill owner blanks", `
			UPDATE profiles o SET
				first_name = COALESCE(o.first_name, s.first_name),
				last_name  = COALESCE(o.last_name, s.last_name),
				headline   = COALESCE(o.headline, s.headline),
				summary    = COALESCE(o.summary, s.summary),
				industry   = COALESCE(o.industry, s.industry),
				location   = COALESCE(o.location, s.location)
			FROM profiles s
			WHERE o.id = $2 AND s.id = $1`, both},
		{"delete shadow", `DELETE FROM profiles WHERE id = $1 AND is_shadow`, onlyShadow},
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step.query, step.args...); err != nil {
			return apperror.NewInternal(fmt.Sprintf("shadow merge failed to %s", step.what), err)
		}
	}
	return nil
}
