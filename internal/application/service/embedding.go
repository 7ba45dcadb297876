package service

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingService turns text into a fixed-length vector.
type EmbeddingService interface {
	GenerateEmbeddings(ctx context.Context, text string) (pgvector.Vector, error)
}
