package persistence

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/khoahotran/linkgraph/internal/domain/search"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type postgresSearchRepo struct {
	db     *pgxpool.Pool
	logger logger.Logger
}

func NewPostgresSearchRepo(db *pgxpool.Pool, logger logger.Logger) search.Repository {
	return &postgresSearchRepo{db: db, logger: logger}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *postgresSearchRepo) searchBase(ctx context.Context, builder sq.SelectBuilder) ([]search.Result, error) {
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, apperror.NewInternal("failed to build search query", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperror.NewInternal("failed to execute search query", err)
	}
	defer rows.Close()

	results := make([]search.Result, 0)
	for rows.Next() {
		var res search.Result
		if err := rows.Scan(&res.ID, &res.Score, &res.FirstName, &res.LastName, &res.Headline, &res.IsShadow); err != nil {
			return nil, apperror.NewInternal("failed to scan search result", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating search results", err)
	}
	return results, nil
}

// Keyword matches the full-text index, falling back to a name substring match
// for queries the tokenizer drops.
func (r *postgresSearchRepo) Keyword(ctx context.Context, query string, limit int) ([]search.Result, error) {
	builder := psql.Select("id").
		Column(sq.Expr("ts_rank_cd(search, plainto_tsquery('simple', ?))::real AS score", query)).
		Columns("first_name", "last_name", "headline", "is_shadow").
		From("profiles").
		Where(sq.Or{
			sq.Expr("search @@ plainto_tsquery('simple', ?)", query),
			sq.ILike{"concat_ws(' ', first_name, last_name)": "%" + likeEscaper.Replace(query) + "%"},
		}).
		OrderBy("score DESC", "is_shadow", "id").
		Limit(uint64(limit))
	return r.searchBase(ctx, builder)
}

func (r *postgresSearchRepo) Nearest(ctx context.Context, vec pgvector.Vector, k int, filter []uuid.UUID) ([]search.Result, error) {
	builder := psql.Select("id").
		Column(sq.Expr("(1 - (embedding <=> ?))::real AS score", vec)).
		Columns("first_name", "last_name", "headline", "is_shadow").
		From("profiles").
		Where("embedding IS NOT NULL").
		OrderByClause("embedding <=> ?", vec).
		Limit(uint64(k))
	if len(filter) > 0 {
		builder = builder.Where(sq.Expr("id = ANY(?)", filter))
	}
	return r.searchBase(ctx, builder)
}

func (r *postgresSearchRepo) SetEmbedding(ctx context.Context, profileID uuid.UUID, vec pgvector.Vector) error {
	if _, err := r.db.Exec(ctx, `UPDATE profiles SET embedding = $2 WHERE id = $1`, profileID, vec); err != nil {
		return apperror.NewInternal("failed to store embedding", err)
	}
	return nil
}
