package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	// ErrSlugClaimed is returned when a different non-shadow profile already holds a slug.
	ErrSlugClaimed = errors.New("linkedin slug already claimed")
)

// Profile is a person in the directory. Shadow profiles are placeholders for
// connections who have not signed up; they carry no AccountID.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	AccountID         *string   `json:"account_id,omitempty"`
	FirstName         *string   `json:"first_name"`
	LastName          *string   `json:"last_name"`
	Headline          *string   `json:"headline"`
	Summary           *string   `json:"summary"`
	Industry          *string   `json:"industry"`
	Location          *string   `json:"location"`
	Email             *string   `json:"email,omitempty"`
	LinkedInSlug      *string   `json:"linkedin_slug"`
	IsShadow          bool      `json:"is_shadow"`
	ClaimConflictSlug *string   `json:"claim_conflict_slug,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p *Profile) DisplayName() string {
	name := deref(p.FirstName)
	if last := deref(p.LastName); last != "" {
		if name != "" {
			name += " "
		}
		name += last
	}
	return name
}

// Details is a partial set of profile attributes. Nil fields mean "no value".
type Details struct {
	FirstName *string
	LastName  *string
	Headline  *string
	Summary   *string
	Industry  *string
	Location  *string
	Email     *string
}

func (d Details) IsEmpty() bool {
	return d.FirstName == nil && d.LastName == nil && d.Headline == nil &&
		d.Summary == nil && d.Industry == nil && d.Location == nil && d.Email == nil
}

// Blanks keeps only the fields of d that are currently nil on p.
func (d Details) Blanks(p *Profile) Details {
	var out Details
	if p.FirstName == nil {
		out.FirstName = d.FirstName
	}
	if p.LastName == nil {
		out.LastName = d.LastName
	}
	if p.Headline == nil {
		out.Headline = d.Headline
	}
	if p.Summary == nil {
		out.Summary = d.Summary
	}
	if p.Industry == nil {
		out.Industry = d.Industry
	}
	if p.Location == nil {
		out.Location = d.Location
	}
	if p.Email == nil {
		out.Email = d.Email
	}
	return out
}

// ShadowSeed is what a connection row knows about a person.
type ShadowSeed struct {
	Slug      string
	FirstName *string
	LastName  *string
	Headline  *string
}

// ClaimResult describes what ClaimSlug did.
type ClaimResult struct {
	AlreadyHeld    bool
	MergedShadowID *uuid.UUID
}

type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	FindBySlug(ctx context.Context, slug string) (*Profile, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Profile, error)
	// FindOrCreateByAccount returns the non-shadow profile owned by accountID,
	// creating it on first use.
	FindOrCreateByAccount(ctx context.Context, accountID string, email *string) (*Profile, error)
	// CreateShadow inserts a shadow profile keyed by slug. It returns nil, nil
	// when another writer created the slug first.
	CreateShadow(ctx context.Context, seed ShadowSeed) (*Profile, error)
	// FillBlanks sets only the columns that are still NULL.
	FillBlanks(ctx context.Context, id uuid.UUID, d Details) (*Profile, error)
	// UpdateDetails overwrites every non-nil field of d.
	UpdateDetails(ctx context.Context, id uuid.UUID, d Details) (*Profile, error)
	// ClaimSlug attaches slug to the real profile id. A shadow holding the slug is
	// merged into id and deleted. A different real holder yields ErrSlugClaimed and
	// records the slug in claim_conflict_slug.
	ClaimSlug(ctx context.Context, id uuid.UUID, slug string) (*ClaimResult, error)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
