package search

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Result is one ranked directory hit.
type Result struct {
	ID        uuid.UUID `json:"id"`
	Score     float32   `json:"score"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Headline  *string   `json:"headline"`
	IsShadow  bool      `json:"is_shadow"`
}

type Repository interface {
	Keyword(ctx context.Context, query string, limit int) ([]Result, error)
	// Nearest ranks profiles by cosine similarity to vec. A non-empty filter
	// restricts candidates to those ids.
	Nearest(ctx context.Context, vec pgvector.Vector, k int, filter []uuid.UUID) ([]Result, error)
	SetEmbedding(ctx context.Context, profileID uuid.UUID, vec pgvector.Vector) error
}
