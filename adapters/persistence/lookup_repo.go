package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/linkgraph/internal/domain/company"
	"github.com/khoahotran/linkgraph/internal/domain/institution"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

// findOrCreateByName is the get-or-create shared by the companies and
// institutions lookup tables. Concurrent callers converge on one row.
func findOrCreateByName(ctx context.Context, db *pgxpool.Pool, table, name string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := db.QueryRow(ctx,
		`INSERT INTO `+table+` (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING RETURNING id`,
		uuid.New(), name,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, apperror.NewInternal("failed to insert into "+table, err)
	}

	if err := db.QueryRow(ctx, `SELECT id FROM `+table+` WHERE name = $1`, name).Scan(&id); err != nil {
		return uuid.Nil, false, apperror.NewInternal("failed to read from "+table, err)
	}
	return id, false, nil
}

type postgresCompanyRepo struct {
	db *pgxpool.Pool
}

func NewPostgresCompanyRepo(db *pgxpool.Pool) company.Repository {
	return &postgresCompanyRepo{db: db}
}

func (r *postgresCompanyRepo) FindOrCreate(ctx context.Context, name string) (*company.Company, bool, error) {
	id, created, err := findOrCreateByName(ctx, r.db, "companies", name)
	if err != nil {
		return nil, false, err
	}
	return &company.Company{ID: id, Name: name}, created, nil
}

type postgresInstitutionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresInstitutionRepo(db *pgxpool.Pool) institution.Repository {
	return &postgresInstitutionRepo{db: db}
}

func (r *postgresInstitutionRepo) FindOrCreate(ctx context.Context, name string) (*institution.Institution, bool, error) {
	id, created, err := findOrCreateByName(ctx, r.db, "institutions", name)
	if err != nil {
		return nil, false, err
	}
	return &institution.Institution{ID: id, Name: name}, created, nil
}
