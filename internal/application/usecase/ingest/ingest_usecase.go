package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/internal/domain/profile"
	"github.com/khoahotran/linkgraph/internal/domain/upload"
	"github.com/khoahotran/linkgraph/internal/ingest/archive"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

var tracer = otel.Tracer("ingest_usecase")

const (
	warnSelfConnection = "SelfConnection"
	warnSlugConflict   = "SlugClaimConflict"
	kindCancelled      = "Cancelled"
)

// Source tells which entrypoint received the files. Every source runs the
// same pipeline.
type Source string

const (
	SourceAPI          Source = "api"
	SourceUpload       Source = "upload"
	SourceStorageEvent Source = "storage_event"
)

type IngestInput struct {
	// RunID is generated when zero.
	RunID          uuid.UUID
	Source         Source
	OwnerProfileID uuid.UUID
	// Files may contain loose CSVs and/or .zip bundles.
	Files []export.File
}

type IngestOutput struct {
	RunID    uuid.UUID
	Profile  *profile.Profile
	Counts   upload.Counts
	Warnings []upload.Warning
}

type IngestUseCase struct {
	profiles   profile.Repository
	resolver   *IdentityResolver
	writer     *GraphWriter
	runs       upload.RunStore
	publisher  service.EventPublisher
	logger     logger.Logger
	maxEntry   int64
	runTimeout time.Duration
}

func NewIngestUseCase(
	profiles profile.Repository,
	resolver *IdentityResolver,
	writer *GraphWriter,
	runs upload.RunStore,
	publisher service.EventPublisher,
	log logger.Logger,
	maxEntryBytes int64,
	runTimeout time.Duration,
) *IngestUseCase {
	return &IngestUseCase{
		profiles:   profiles,
		resolver:   resolver,
		writer:     writer,
		runs:       runs,
		publisher:  publisher,
		logger:     log,
		maxEntry:   maxEntryBytes,
		runTimeout: runTimeout,
	}
}

// run carries the mutable state of one Execute call.
type run struct {
	uc     *IngestUseCase
	status *upload.Run
	log    logger.Logger
	span   trace.Span
	out    *IngestOutput
}

func (r *run) enter(ctx context.Context, next upload.State) {
	if !r.status.State.CanTransition(next) {
		r.log.Error("Illegal run transition", nil,
			zap.String("from", string(r.status.State)), zap.String("to", string(next)))
	}
	r.status.State = next
	r.status.UpdatedAt = time.Now().UTC()
	r.span.AddEvent(string(next))
	r.save(ctx)
}

func (r *run) save(ctx context.Context) {
	r.status.Counts = r.out.Counts
	r.status.Warnings = r.out.Warnings
	if r.uc.runs == nil {
		return
	}
	// Status writes outlive a cancelled run so the caller can see why it stopped.
	if err := r.uc.runs.Save(context.WithoutCancel(ctx), r.status); err != nil {
		r.log.Warn("Failed to save run status", zap.Error(err))
	}
}

func (r *run) warn(kind, file string, line int, reason string) {
	r.out.Warnings = append(r.out.Warnings, upload.Warning{Kind: kind, File: file, Line: line, Reason: reason})
	r.log.Warn("Ingestion row skipped", zap.String("kind", kind), zap.String("file", file), zap.Int("line", line), zap.String("reason", reason))
}

func (r *run) fail(ctx context.Context, err error) error {
	r.status.ErrorKind = apperror.Kind(err)
	r.status.Reason = apperror.UserMessage(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.status.ErrorKind = kindCancelled
		r.status.Reason = "The import was cancelled before it finished"
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if missing, ok := appErr.Meta["missing"].([]string); ok {
			r.status.Missing = missing
		}
	}
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, r.status.ErrorKind)
	r.log.Error("Ingestion failed", err, zap.String("state", string(r.status.State)))
	r.enter(ctx, upload.StateFailed)
	return err
}

// Execute runs the whole pipeline for one file set. Fatal errors end the run
// in Failed; row-level problems are returned as warnings. Writes already made
// are kept either way.
func (uc *IngestUseCase) Execute(ctx context.Context, in IngestInput) (*IngestOutput, error) {
	if in.RunID == uuid.Nil {
		in.RunID = uuid.New()
	}
	if uc.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.runTimeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "Execute", trace.WithAttributes(
		attribute.String("run_id", in.RunID.String()),
		attribute.String("source", string(in.Source)),
		attribute.String("owner_profile_id", in.OwnerProfileID.String()),
	))
	defer span.End()

	now := time.Now().UTC()
	r := &run{
		uc: uc,
		status: &upload.Run{
			ID:        in.RunID,
			ProfileID: in.OwnerProfileID,
			Source:    string(in.Source),
			State:     upload.StateAwaitingFiles,
			StartedAt: now,
			UpdatedAt: now,
		},
		log:  uc.logger.With(zap.String("run_id", in.RunID.String()), zap.String("source", string(in.Source))),
		span: span,
		out:  &IngestOutput{RunID: in.RunID, Warnings: []upload.Warning{}},
	}
	r.save(ctx)

	r.enter(ctx, upload.StateValidating)
	files, err := uc.expand(in.Files)
	if err != nil {
		return r.out, r.fail(ctx, err)
	}
	if err := export.Validate(files); err != nil {
		return r.out, r.fail(ctx, err)
	}

	r.enter(ctx, upload.StateNormalizing)
	processed, err := export.Normalize(files)
	if err != nil {
		return r.out, r.fail(ctx, err)
	}
	for _, w := range processed.Warnings {
		r.out.Warnings = append(r.out.Warnings, upload.Warning{Kind: w.Kind, File: w.File, Line: w.Line, Reason: w.Reason})
	}
	r.out.Counts.RowsDropped = processed.Dropped()

	r.enter(ctx, upload.StateResolvingIdentities)
	owner, err := uc.writeOwner(ctx, r, in.OwnerProfileID, processed.Profile)
	if err != nil {
		return r.out, r.fail(ctx, err)
	}
	r.out.Profile = owner

	links, touched, err := uc.resolveConnections(ctx, r, owner, processed.Connections)
	if err != nil {
		return r.out, r.fail(ctx, err)
	}

	r.enter(ctx, upload.StateWritingGraph)
	if err := uc.writeGraph(ctx, r, owner.ID, links, processed); err != nil {
		return r.out, r.fail(ctx, err)
	}

	r.enter(ctx, upload.StateDone)
	span.SetAttributes(
		attribute.Int("connections_written", r.out.Counts.ConnectionsWritten),
		attribute.Int("warnings", len(r.out.Warnings)),
	)
	r.log.Info("Ingestion finished",
		zap.Int("connections_written", r.out.Counts.ConnectionsWritten),
		zap.Int("positions_written", r.out.Counts.PositionsWritten),
		zap.Int("warnings", len(r.out.Warnings)),
	)

	uc.publishIndexing(ctx, r, append([]uuid.UUID{owner.ID}, touched...))
	return r.out, nil
}

// expand replaces .zip members of the upload with the files they contain.
func (uc *IngestUseCase) expand(files []export.File) ([]export.File, error) {
	var loose, extracted []export.File
	for _, f := range files {
		if !archive.IsZip(f.Name) {
			loose = append(loose, f)
			continue
		}
		members, err := archive.Extract(f.Content, uc.maxEntry)
		if err != nil {
			return nil, err
		}
		extracted = append(extracted, members...)
	}
	return append(loose, extracted...), nil
}

// writeOwner applies the uploader's own Profile.csv and claims its slug. A
// failure here is fatal; a slug held by someone else is only a warning.
func (uc *IngestUseCase) writeOwner(ctx context.Context, r *run, ownerID uuid.UUID, rec export.ProfileRecord) (*profile.Profile, error) {
	ctx, span := tracer.Start(ctx, "WriteOwnerProfile")
	defer span.End()

	owner, err := uc.profiles.UpdateDetails(ctx, ownerID, profile.Details{
		FirstName: nonEmpty(rec.FirstName),
		LastName:  nonEmpty(rec.LastName),
		Headline:  rec.Headline,
		Summary:   rec.Summary,
		Industry:  rec.Industry,
		Location:  rec.Location,
		Email:     rec.Email,
	})
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, apperror.NewNotFound("profile", ownerID.String())
		}
		return nil, apperror.NewEntityWrite("profile", "owner profile update failed", err)
	}

	if rec.Slug == nil {
		return owner, nil
	}

	res, err := uc.profiles.ClaimSlug(ctx, ownerID, *rec.Slug)
	switch {
	case errors.Is(err, profile.ErrSlugClaimed):
		r.warn(warnSlugConflict, export.FileProfile, 0,
			fmt.Sprintf("linkedin slug %q is already claimed by another member; flagged for review", *rec.Slug))
	case err != nil:
		return nil, apperror.NewEntityWrite("profile", "slug claim failed", err)
	case res.MergedShadowID != nil:
		r.log.Info("Merged shadow profile into owner", zap.String("shadow_id", res.MergedShadowID.String()), zap.String("slug", *rec.Slug))
	}

	return uc.profiles.FindByID(ctx, ownerID)
}

type link struct {
	line        int
	profileID   uuid.UUID
	connectedOn *time.Time
}

func (uc *IngestUseCase) resolveConnections(ctx context.Context, r *run, owner *profile.Profile, recs []export.ConnectionRecord) ([]link, []uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "ResolveIdentities", trace.WithAttributes(attribute.Int("rows", len(recs))))
	defer span.End()

	links := make([]link, 0, len(recs))
	var touched []uuid.UUID
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if owner.LinkedInSlug != nil && *owner.LinkedInSlug == rec.Slug {
			r.warn(warnSelfConnection, export.FileConnections, rec.Line, "connection to own profile skipped")
			continue
		}

		p, outcome, err := uc.resolver.Resolve(ctx, rec)
		if err != nil {
			r.out.Counts.WriteFailures++
			r.warn(apperror.KindEntityWrite, export.FileConnections, rec.Line,
				fmt.Sprintf("could not resolve %s: %v", rec.Slug, err))
			continue
		}
		switch outcome {
		case OutcomeCreated:
			r.out.Counts.ShadowsCreated++
			touched = append(touched, p.ID)
		case OutcomeEnriched:
			r.out.Counts.ShadowsEnriched++
			touched = append(touched, p.ID)
		}
		links = append(links, link{line: rec.Line, profileID: p.ID, connectedOn: rec.ConnectedOn})
	}
	return links, touched, nil
}

func (uc *IngestUseCase) writeGraph(ctx context.Context, r *run, ownerID uuid.UUID, links []link, processed *export.ProcessedExport) error {
	ctx, span := tracer.Start(ctx, "WriteGraph")
	defer span.End()

	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		inserted, err := uc.writer.Connect(ctx, ownerID, l.profileID, l.connectedOn)
		if errors.Is(err, connection.ErrSelfConnection) {
			continue
		}
		if err != nil {
			r.out.Counts.WriteFailures++
			r.warn(apperror.KindEntityWrite, export.FileConnections, l.line, fmt.Sprintf("connection write failed: %v", err))
			continue
		}
		if inserted {
			r.out.Counts.ConnectionsWritten++
		}
	}

	if processed.Positions != nil {
		res := uc.writer.WritePositions(ctx, ownerID, processed.Positions)
		r.out.Counts.PositionsWritten = res.Written
		r.out.Counts.CompaniesCreated = res.LookupsCreated
		r.batchFailures(export.FilePositions, res)
	}
	if processed.Education != nil {
		res := uc.writer.WriteEducation(ctx, ownerID, processed.Education)
		r.out.Counts.EducationWritten = res.Written
		r.out.Counts.InstitutionsCreated = res.LookupsCreated
		r.batchFailures(export.FileEducation, res)
	}
	if processed.Skills != nil {
		res := uc.writer.WriteSkills(ctx, ownerID, processed.Skills)
		r.out.Counts.SkillsWritten = res.Written
		r.batchFailures(export.FileSkills, res)
	}
	return ctx.Err()
}

func (r *run) batchFailures(file string, res BatchResult) {
	r.out.Counts.WriteFailures += len(res.Failures)
	for _, err := range res.Failures {
		r.warn(apperror.Kind(err), file, 0, err.Error())
	}
}

func (uc *IngestUseCase) publishIndexing(ctx context.Context, r *run, ids []uuid.UUID) {
	if uc.publisher == nil || len(ids) == 0 {
		return
	}
	payload := service.ProfileEventPayload{
		EventType:  service.ProfileEventTypeDirty,
		RunID:      r.status.ID,
		ProfileIDs: ids,
	}
	if err := uc.publisher.PublishProfileEvent(context.WithoutCancel(ctx), payload); err != nil {
		r.log.Error("Failed to publish profile event", err, zap.Int("profiles", len(ids)))
	}
}
