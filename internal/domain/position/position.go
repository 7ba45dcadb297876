package position

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Position is a job held by a profile. EndDate nil means "present".
type Position struct {
	ID          uuid.UUID  `json:"id"`
	ProfileID   uuid.UUID  `json:"profile_id"`
	CompanyID   *uuid.UUID `json:"company_id"`
	CompanyName string     `json:"company_name"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type Repository interface {
	// InsertIfAbsent skips the insert when a row with the same profile, company,
	// title and start date exists.
	InsertIfAbsent(ctx context.Context, p *Position) (bool, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]Position, error)
	Update(ctx context.Context, p *Position) error
	Delete(ctx context.Context, profileID uuid.UUID, ids []uuid.UUID) error
}
