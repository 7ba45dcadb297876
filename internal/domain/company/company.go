package company

import (
	"context"

	"github.com/google/uuid"
)

// Company is a shared lookup row keyed by its exact name.
type Company struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Repository interface {
	// FindOrCreate returns the company named name. created reports whether this
	// call inserted it.
	FindOrCreate(ctx context.Context, name string) (c *Company, created bool, err error)
}
