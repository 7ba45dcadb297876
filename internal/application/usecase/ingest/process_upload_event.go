package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/domain/upload"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

// ProcessUploadEventUseCase runs ingestion for files announced on upload.events.
type ProcessUploadEventUseCase struct {
	blobs    service.BlobStore
	ingest   *IngestUseCase
	notifier service.Notifier
	logger   logger.Logger
}

func NewProcessUploadEventUseCase(b service.BlobStore, i *IngestUseCase, n service.Notifier, log logger.Logger) *ProcessUploadEventUseCase {
	return &ProcessUploadEventUseCase{blobs: b, ingest: i, notifier: n, logger: log}
}

// Execute returns an error only when the whole run should be retried. Runs
// that failed because of the uploaded content are final.
func (uc *ProcessUploadEventUseCase) Execute(ctx context.Context, payload service.UploadEventPayload) error {
	log := uc.logger.With(zap.String("run_id", payload.RunID.String()), zap.String("profile_id", payload.ProfileID.String()))

	files := make([]export.File, 0, len(payload.Files))
	for _, f := range payload.Files {
		data, err := uc.blobs.Get(ctx, f.Path)
		if err != nil {
			log.Error("Failed to load stored file", err, zap.String("path", f.Path))
			return apperror.NewAppError(apperror.ErrInternal,
				"We could not read your uploaded files. Please upload the export again",
				fmt.Sprintf("cannot load %s", f.Name), err)
		}
		files = append(files, export.File{Name: f.Name, Content: data})
	}

	out, err := uc.ingest.Execute(ctx, IngestInput{
		RunID:          payload.RunID,
		Source:         SourceStorageEvent,
		OwnerProfileID: payload.ProfileID,
		Files:          files,
	})
	if err != nil && !Permanent(err) {
		return err
	}

	uc.notify(ctx, log, payload.Email, out, err)
	return nil
}

// Abandon is called once the worker stops retrying payload. The run is
// recorded as Failed unless it already finished, and the uploader is told.
func (uc *ProcessUploadEventUseCase) Abandon(ctx context.Context, payload service.UploadEventPayload, cause error) {
	log := uc.logger.With(zap.String("run_id", payload.RunID.String()), zap.String("profile_id", payload.ProfileID.String()))
	if err := uc.markFailed(ctx, payload, cause); err != nil {
		log.Error("Failed to record abandoned run", err)
	}
	uc.notify(ctx, log, payload.Email, nil, cause)
}

func (uc *ProcessUploadEventUseCase) markFailed(ctx context.Context, payload service.UploadEventPayload, cause error) error {
	now := time.Now().UTC()
	r, err := uc.ingest.runs.Get(ctx, payload.RunID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		r = &upload.Run{
			ID:        payload.RunID,
			ProfileID: payload.ProfileID,
			Source:    string(SourceStorageEvent),
			State:     upload.StateAwaitingFiles,
			StartedAt: now,
		}
	case err != nil:
		return err
	}
	if r.State.Terminal() {
		return nil
	}

	r.State = upload.StateFailed
	r.ErrorKind = apperror.Kind(cause)
	r.Reason = apperror.UserMessage(cause)
	r.UpdatedAt = now
	return uc.ingest.runs.Save(ctx, r)
}

// Permanent reports whether retrying the same files cannot succeed.
func Permanent(err error) bool {
	return errors.Is(err, apperror.ErrMissingRequiredFiles) ||
		errors.Is(err, apperror.ErrInvalidArchive) ||
		errors.Is(err, apperror.ErrMissingRequiredField) ||
		errors.Is(err, apperror.ErrNotFound)
}

func (uc *ProcessUploadEventUseCase) notify(ctx context.Context, log logger.Logger, to string, out *IngestOutput, runErr error) {
	if uc.notifier == nil || to == "" {
		return
	}

	var subject, body string
	if runErr != nil {
		subject = "Your LinkedIn import failed"
		body = fmt.Sprintf("We could not import your LinkedIn export: %s", apperror.UserMessage(runErr))
	} else {
		subject = "Your LinkedIn import is ready"
		body = fmt.Sprintf(
			"Processed with %d warnings.\nConnections: %d\nPositions: %d\nEducation: %d\nSkills: %d\n",
			len(out.Warnings),
			out.Counts.ConnectionsWritten,
			out.Counts.PositionsWritten,
			out.Counts.EducationWritten,
			out.Counts.SkillsWritten,
		)
	}

	if err := uc.notifier.Notify(ctx, to, subject, body); err != nil {
		log.Warn("Failed to send import notification", zap.Error(err))
	}
}
