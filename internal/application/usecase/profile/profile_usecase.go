package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/application/usecase/ingest"
	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/internal/domain/education"
	"github.com/khoahotran/linkgraph/internal/domain/position"
	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/internal/domain/skill"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

var tracer = otel.Tracer("profile_usecase")

const maxConnectionPage = 200

type ProfileUseCase struct {
	profileRepo    profile.Repository
	positionRepo   position.Repository
	educationRepo  education.Repository
	skillRepo      skill.Repository
	connectionRepo connection.Repository
	writer         *ingest.GraphWriter
	publisher      service.EventPublisher
	logger         logger.Logger
}

func NewProfileUseCase(
	pr profile.Repository,
	pos position.Repository,
	edu education.Repository,
	sk skill.Repository,
	conn connection.Repository,
	w *ingest.GraphWriter,
	pub service.EventPublisher,
	log logger.Logger,
) *ProfileUseCase {
	return &ProfileUseCase{
		profileRepo:    pr,
		positionRepo:   pos,
		educationRepo:  edu,
		skillRepo:      sk,
		connectionRepo: conn,
		writer:         w,
		publisher:      pub,
		logger:         log,
	}
}

type EnsureAccountInput struct {
	AccountID string
	Email     string
}

// ExecuteEnsureAccount returns the caller's own profile, creating it on the
// first authenticated request.
func (uc *ProfileUseCase) ExecuteEnsureAccount(ctx context.Context, input EnsureAccountInput) (*profile.Profile, error) {
	if input.AccountID == "" {
		return nil, apperror.NewUnauthorized("token has no subject", nil)
	}
	var email *string
	if input.Email != "" {
		email = &input.Email
	}
	p, err := uc.profileRepo.FindOrCreateByAccount(ctx, input.AccountID, email)
	if err != nil {
		return nil, apperror.NewInternal("failed to load account profile", err)
	}
	return p, nil
}

type GetProfileInput struct {
	ProfileID uuid.UUID
}

type GetProfileOutput struct {
	Profile         *profile.Profile
	Positions       []position.Position
	Education       []education.Education
	Skills          []skill.Skill
	ConnectionCount int
}

func (uc *ProfileUseCase) ExecuteGetProfile(ctx context.Context, input GetProfileInput) (*GetProfileOutput, error) {
	ctx, span := tracer.Start(ctx, "GetProfile")
	defer span.End()

	p, err := uc.profileRepo.FindByID(ctx, input.ProfileID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, apperror.NewNotFound("profile", input.ProfileID.String())
		}
		return nil, apperror.NewInternal("get profile failed", err)
	}

	out := &GetProfileOutput{Profile: p}
	if out.Positions, err = uc.positionRepo.ListByProfile(ctx, p.ID); err != nil {
		return nil, apperror.NewInternal("list positions failed", err)
	}
	if out.Education, err = uc.educationRepo.ListByProfile(ctx, p.ID); err != nil {
		return nil, apperror.NewInternal("list education failed", err)
	}
	if out.Skills, err = uc.skillRepo.ListByProfile(ctx, p.ID); err != nil {
		return nil, apperror.NewInternal("list skills failed", err)
	}
	if out.ConnectionCount, err = uc.connectionRepo.CountByProfile(ctx, p.ID); err != nil {
		return nil, apperror.NewInternal("count connections failed", err)
	}
	return out, nil
}

// UpdateProfileInput edits the caller's profile. A nil list is left as is;
// a non-nil list replaces the stored one.
type UpdateProfileInput struct {
	ProfileID uuid.UUID
	Details   profile.Details
	Positions []position.Position
	Education []education.Education
	Skills    []skill.Skill
}

type UpdateProfileOutput struct {
	Profile   *profile.Profile
	Positions *ingest.EditResult
	Education *ingest.EditResult
	Skills    *ingest.EditResult
}

func (uc *ProfileUseCase) ExecuteUpdateProfile(ctx context.Context, input UpdateProfileInput) (*UpdateProfileOutput, error) {
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()
	log := uc.logger.With(zap.String("profile_id", input.ProfileID.String()))

	if err := validateEdits(input); err != nil {
		return nil, err
	}

	p, err := uc.profileRepo.UpdateDetails(ctx, input.ProfileID, input.Details)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, apperror.NewNotFound("profile", input.ProfileID.String())
		}
		return nil, apperror.NewInternal("update profile failed", err)
	}
	out := &UpdateProfileOutput{Profile: p}

	if input.Positions != nil {
		if out.Positions, err = uc.writer.ReplacePositions(ctx, p.ID, input.Positions); err != nil {
			return nil, wrapEdit("positions", err)
		}
	}
	if input.Education != nil {
		if out.Education, err = uc.writer.ReplaceEducation(ctx, p.ID, input.Education); err != nil {
			return nil, wrapEdit("education", err)
		}
	}
	if input.Skills != nil {
		if out.Skills, err = uc.writer.ReplaceSkills(ctx, p.ID, input.Skills); err != nil {
			return nil, wrapEdit("skills", err)
		}
	}

	if uc.publisher != nil {
		payload := service.ProfileEventPayload{EventType: service.ProfileEventTypeDirty, ProfileIDs: []uuid.UUID{p.ID}}
		if err := uc.publisher.PublishProfileEvent(ctx, payload); err != nil {
			log.Error("Failed to publish Kafka 'profile.dirty' event", err)
		}
	}

	log.Info("Profile updated")
	return out, nil
}

func validateEdits(input UpdateProfileInput) error {
	for i, p := range input.Positions {
		if p.CompanyName == "" {
			return apperror.NewInvalidInput(fmt.Sprintf("position %d has no company", i+1), nil)
		}
	}
	for i, e := range input.Education {
		if e.InstitutionName == "" {
			return apperror.NewInvalidInput(fmt.Sprintf("education %d has no school", i+1), nil)
		}
	}
	for i, s := range input.Skills {
		if s.Name == "" {
			return apperror.NewInvalidInput(fmt.Sprintf("skill %d has no name", i+1), nil)
		}
	}
	return nil
}

func wrapEdit(what string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.NewInternal(fmt.Sprintf("update %s failed", what), err)
}

type ListConnectionsInput struct {
	ProfileID uuid.UUID
	Limit     int
	Offset    int
}

type ConnectionView struct {
	Profile     profile.Profile
	ConnectedOn *time.Time
}

type ListConnectionsOutput struct {
	Connections []ConnectionView
	Total       int
}

func (uc *ProfileUseCase) ExecuteListConnections(ctx context.Context, input ListConnectionsInput) (*ListConnectionsOutput, error) {
	if input.Limit <= 0 || input.Limit > maxConnectionPage {
		input.Limit = 50
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	edges, err := uc.connectionRepo.ListByProfile(ctx, input.ProfileID, input.Limit, input.Offset)
	if err != nil {
		return nil, apperror.NewInternal("list connections failed", err)
	}
	total, err := uc.connectionRepo.CountByProfile(ctx, input.ProfileID)
	if err != nil {
		return nil, apperror.NewInternal("count connections failed", err)
	}

	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Other(input.ProfileID))
	}
	profiles, err := uc.profileRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.NewInternal("load connection profiles failed", err)
	}
	byID := make(map[uuid.UUID]profile.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	out := &ListConnectionsOutput{Connections: make([]ConnectionView, 0, len(edges)), Total: total}
	for _, e := range edges {
		p, ok := byID[e.Other(input.ProfileID)]
		if !ok {
			continue
		}
		out.Connections = append(out.Connections, ConnectionView{Profile: p, ConnectedOn: e.ConnectedOn})
	}
	return out, nil
}
