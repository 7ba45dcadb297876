package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/domain/position"
	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/internal/domain/search"
	"github.com/khoahotran/linkgraph/internal/domain/skill"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

var tracer = otel.Tracer("index_usecase")

// IndexProfilesUseCase refreshes the search embedding of profiles touched by
// an import or an edit.
type IndexProfilesUseCase struct {
	profileRepo  profile.Repository
	positionRepo position.Repository
	skillRepo    skill.Repository
	searchRepo   search.Repository
	embedder     service.EmbeddingService
	logger       logger.Logger
}

func NewIndexProfilesUseCase(
	pr profile.Repository,
	pos position.Repository,
	sk skill.Repository,
	sr search.Repository,
	e service.EmbeddingService,
	log logger.Logger,
) *IndexProfilesUseCase {
	return &IndexProfilesUseCase{profileRepo: pr, positionRepo: pos, skillRepo: sk, searchRepo: sr, embedder: e, logger: log}
}

// Execute embeds every profile in the payload. It keeps going past a failed
// profile and returns the joined errors so the event is redelivered.
func (uc *IndexProfilesUseCase) Execute(ctx context.Context, payload service.ProfileEventPayload) error {
	ctx, span := tracer.Start(ctx, "IndexProfiles")
	defer span.End()
	span.SetAttributes(attribute.Int("profiles", len(payload.ProfileIDs)))

	profiles, err := uc.profileRepo.FindByIDs(ctx, payload.ProfileIDs)
	if err != nil {
		return apperror.NewInternal("failed to load profiles for indexing", err)
	}

	var errs []error
	for i := range profiles {
		p := &profiles[i]
		if err := uc.indexOne(ctx, p); err != nil {
			uc.logger.Error("Failed to index profile", err, zap.String("profile_id", p.ID.String()))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		span.RecordError(errs[0])
	}
	return errors.Join(errs...)
}

func (uc *IndexProfilesUseCase) indexOne(ctx context.Context, p *profile.Profile) error {
	positions, err := uc.positionRepo.ListByProfile(ctx, p.ID)
	if err != nil {
		return err
	}
	skills, err := uc.skillRepo.ListByProfile(ctx, p.ID)
	if err != nil {
		return err
	}

	text := ProfileText(p, positions, skills)
	if text == "" {
		return nil
	}
	vec, err := uc.embedder.GenerateEmbeddings(ctx, text)
	if err != nil {
		return fmt.Errorf("embed profile %s: %w", p.ID, err)
	}
	return uc.searchRepo.SetEmbedding(ctx, p.ID, vec)
}

// ProfileText is the document embedded for p.
func ProfileText(p *profile.Profile, positions []position.Position, skills []skill.Skill) string {
	var parts []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	add("Name", p.DisplayName())
	add("Headline", deref(p.Headline))
	add("Summary", deref(p.Summary))
	add("Industry", deref(p.Industry))
	add("Location", deref(p.Location))

	titles := make([]string, 0, len(positions))
	for _, pos := range positions {
		t := pos.Title
		if pos.CompanyName != "" {
			t = strings.TrimSpace(t + " at " + pos.CompanyName)
		}
		titles = append(titles, t)
	}
	add("Experience", strings.Join(titles, "; "))

	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	add("Skills", strings.Join(names, ", "))

	return strings.Join(parts, "\n")
}
