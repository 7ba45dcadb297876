package persistence

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type postgresConnectionRepo struct {
	db *pgxpool.Pool
}

func NewPostgresConnectionRepo(db *pgxpool.Pool) connection.Repository {
	return &postgresConnectionRepo{db: db}
}

func (r *postgresConnectionRepo) Exists(ctx context.Context, e connection.Edge) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM connections WHERE profile_a = $1 AND profile_b = $2)`, e.A, e.B,
	).Scan(&exists)
	if err != nil {
		return false, apperror.NewInternal("failed to check connection", err)
	}
	return exists, nil
}

func (r *postgresConnectionRepo) Insert(ctx context.Context, e connection.Edge) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO connections (profile_a, profile_b, connected_on)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_a, profile_b) DO NOTHING`,
		e.A, e.B, e.ConnectedOn,
	)
	if err != nil {
		return false, apperror.NewInternal("failed to insert connection", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresConnectionRepo) ListByProfile(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]connection.Edge, error) {
	builder := psql.Select("profile_a", "profile_b", "connected_on").
		From("connections").
		Where(sq.Or{sq.Eq{"profile_a": profileID}, sq.Eq{"profile_b": profileID}}).
		OrderBy("connected_on DESC NULLS LAST", "profile_a", "profile_b")
	if limit > 0 {
		builder = builder.Limit(uint64(limit)).Offset(uint64(max(offset, 0)))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build connections query", err)
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to query connections", err)
	}
	defer rows.Close()

	out := make([]connection.Edge, 0)
	for rows.Next() {
		var e connection.Edge
		if err := rows.Scan(&e.A, &e.B, &e.ConnectedOn); err != nil {
			return nil, apperror.NewInternal("failed to scan connection", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating connections", err)
	}
	return out, nil
}

func (r *postgresConnectionRepo) CountByProfile(ctx context.Context, profileID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM connections WHERE profile_a = $1 OR profile_b = $1`, profileID,
	).Scan(&n)
	if err != nil {
		return 0, apperror.NewInternal("failed to count connections", err)
	}
	return n, nil
}
