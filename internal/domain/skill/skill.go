package skill

import (
	"context"

	"github.com/google/uuid"
)

type Skill struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profile_id"`
	Name      string    `json:"name"`
}

type Repository interface {
	// Add is idempotent on (profile, name).
	Add(ctx context.Context, profileID uuid.UUID, name string) (bool, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]Skill, error)
	Rename(ctx context.Context, s *Skill) error
	Delete(ctx context.Context, profileID uuid.UUID, ids []uuid.UUID) error
}
