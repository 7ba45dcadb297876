package service

import (
	"context"
)

// BlobStore keeps raw uploaded export files.
type BlobStore interface {
	// Put stores data under path and returns the path to read it back with.
	Put(ctx context.Context, path string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}
