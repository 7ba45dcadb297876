package institution

import (
	"context"

	"github.com/google/uuid"
)

type Institution struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Repository interface {
	FindOrCreate(ctx context.Context, name string) (i *Institution, created bool, err error)
}
