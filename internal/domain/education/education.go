package education

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Education struct {
	ID              uuid.UUID  `json:"id"`
	ProfileID       uuid.UUID  `json:"profile_id"`
	InstitutionID   *uuid.UUID `json:"institution_id"`
	InstitutionName string     `json:"institution_name"`
	Degree          *string    `json:"degree"`
	Notes           *string    `json:"notes"`
	Activities      *string    `json:"activities"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
}

type Repository interface {
	// InsertIfAbsent skips the insert when a row with the same profile,
	// institution, degree and start date exists.
	InsertIfAbsent(ctx context.Context, e *Education) (bool, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]Education, error)
	Update(ctx context.Context, e *Education) error
	Delete(ctx context.Context, profileID uuid.UUID, ids []uuid.UUID) error
}
