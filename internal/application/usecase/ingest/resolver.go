package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type Outcome int

const (
	// OutcomeUnchanged: an existing profile was reused as is.
	OutcomeUnchanged Outcome = iota
	// OutcomeCreated: a new shadow profile was inserted.
	OutcomeCreated
	// OutcomeEnriched: blank fields of an existing shadow were filled.
	OutcomeEnriched
)

// IdentityResolver maps a connection row onto a profile by slug.
type IdentityResolver struct {
	profiles profile.Repository
	logger   logger.Logger
}

func NewIdentityResolver(profiles profile.Repository, log logger.Logger) *IdentityResolver {
	return &IdentityResolver{profiles: profiles, logger: log}
}

// Resolve never mutates a non-shadow profile and never overwrites a non-null
// shadow field.
func (r *IdentityResolver) Resolve(ctx context.Context, rec export.ConnectionRecord) (*profile.Profile, Outcome, error) {
	seed := profile.ShadowSeed{
		Slug:      rec.Slug,
		FirstName: nonEmpty(rec.FirstName),
		LastName:  nonEmpty(rec.LastName),
		Headline:  profile.DerivedHeadline(rec.Position, rec.Company),
	}

	existing, err := r.profiles.FindBySlug(ctx, rec.Slug)
	if err != nil && !errors.Is(err, profile.ErrProfileNotFound) {
		return nil, OutcomeUnchanged, err
	}

	if existing == nil {
		created, err := r.profiles.CreateShadow(ctx, seed)
		if err != nil {
			return nil, OutcomeUnchanged, err
		}
		if created != nil {
			return created, OutcomeCreated, nil
		}

		// Another run inserted the slug between our lookup and insert.
		r.logger.Debug("Shadow insert lost race, re-reading", zap.String("slug", rec.Slug))
		existing, err = r.profiles.FindBySlug(ctx, rec.Slug)
		if err != nil {
			return nil, OutcomeUnchanged, apperror.NewAppError(apperror.ErrConflictRace,
				"profile changed during import", fmt.Sprintf("slug %s vanished after conflict", rec.Slug), err)
		}
	}

	if !existing.IsShadow {
		return existing, OutcomeUnchanged, nil
	}

	patch := profile.Details{
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
		Headline:  seed.Headline,
	}.Blanks(existing)
	if patch.IsEmpty() {
		return existing, OutcomeUnchanged, nil
	}

	enriched, err := r.profiles.FillBlanks(ctx, existing.ID, patch)
	if err != nil {
		return nil, OutcomeUnchanged, err
	}
	return enriched, OutcomeEnriched, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
