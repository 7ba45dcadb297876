package upload

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Upload is an append-only record of one stored export file.
type Upload struct {
	ID          uuid.UUID `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	ProfileID   uuid.UUID `json:"profile_id"`
	FileName    string    `json:"file_name"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, u *Upload) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Upload, error)
}
