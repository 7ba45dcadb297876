package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khoahotran/linkgraph/internal/domain/upload"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

type postgresUploadRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUploadRepo(db *pgxpool.Pool) upload.Repository {
	return &postgresUploadRepo{db: db}
}

func (r *postgresUploadRepo) Save(ctx context.Context, u *upload.Upload) error {
	query := `
		INSERT INTO uploads (id, run_id, profile_id, file_name, storage_path, content_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		u.ID, u.RunID, u.ProfileID, u.FileName, u.StoragePath, u.ContentType, u.SizeBytes, u.CreatedAt,
	)
	if err != nil {
		return apperror.NewInternal("failed to record upload", err)
	}
	return nil
}

func (r *postgresUploadRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]upload.Upload, error) {
	query := `
		SELECT id, run_id, profile_id, file_name, storage_path, content_type, size_bytes, created_at
		FROM uploads
		WHERE run_id = $1
		ORDER BY created_at, file_name
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, apperror.NewInternal("failed to query uploads", err)
	}
	defer rows.Close()

	out := make([]upload.Upload, 0)
	for rows.Next() {
		var u upload.Upload
		if err := rows.Scan(
			&u.ID, &u.RunID, &u.ProfileID, &u.FileName, &u.StoragePath, &u.ContentType, &u.SizeBytes, &u.CreatedAt,
		); err != nil {
			return nil, apperror.NewInternal("failed to scan upload", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal("error iterating uploads", err)
	}
	return out, nil
}
