package upload

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/domain/upload"
	"github.com/khoahotran/linkgraph/internal/ingest/archive"
	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

// UploadExportUseCase stores the files of an export and hands the run to the
// worker through upload.events.
type UploadExportUseCase struct {
	blobs     service.BlobStore
	uploads   upload.Repository
	runs      upload.RunStore
	publisher service.EventPublisher
	folder    string
	maxBytes  int64
	logger    logger.Logger
}

func NewUploadExportUseCase(
	b service.BlobStore,
	u upload.Repository,
	r upload.RunStore,
	p service.EventPublisher,
	folder string,
	maxBytes int64,
	log logger.Logger,
) *UploadExportUseCase {
	return &UploadExportUseCase{blobs: b, uploads: u, runs: r, publisher: p, folder: folder, maxBytes: maxBytes, logger: log}
}

type UploadedFile struct {
	Name        string
	ContentType string
	Content     []byte
}

type UploadExportInput struct {
	ProfileID uuid.UUID
	Email     string
	Files     []UploadedFile
}

type UploadExportOutput struct {
	Run *upload.Run
}

func (uc *UploadExportUseCase) Execute(ctx context.Context, input UploadExportInput) (*UploadExportOutput, error) {
	if err := uc.check(input.Files); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	run := &upload.Run{
		ID:        uuid.New(),
		ProfileID: input.ProfileID,
		Source:    "upload",
		State:     upload.StateAwaitingFiles,
		StartedAt: now,
		UpdatedAt: now,
	}
	log := uc.logger.With(zap.String("run_id", run.ID.String()), zap.String("profile_id", input.ProfileID.String()))

	payload := service.UploadEventPayload{
		EventType: service.UploadEventTypeStored,
		RunID:     run.ID,
		ProfileID: input.ProfileID,
		Email:     input.Email,
	}
	for _, f := range input.Files {
		key := path.Join(uc.folder, input.ProfileID.String(), run.ID.String(), path.Base(f.Name))
		stored, err := uc.blobs.Put(ctx, key, f.Content)
		if err != nil {
			log.Error("Failed to store export file", err, zap.String("file", f.Name))
			return nil, apperror.NewInternal(fmt.Sprintf("failed to store %s", f.Name), err)
		}

		rec := &upload.Upload{
			ID:          uuid.New(),
			RunID:       run.ID,
			ProfileID:   input.ProfileID,
			FileName:    f.Name,
			StoragePath: stored,
			ContentType: f.ContentType,
			SizeBytes:   int64(len(f.Content)),
			CreatedAt:   now,
		}
		if err := uc.uploads.Save(ctx, rec); err != nil {
			return nil, err
		}
		payload.Files = append(payload.Files, service.StoredFile{Name: f.Name, Path: stored})
	}

	if err := uc.runs.Save(ctx, run); err != nil {
		return nil, apperror.NewInternal("failed to record import run", err)
	}

	if err := uc.publisher.PublishUploadEvent(ctx, payload); err != nil {
		log.Error("Failed to publish Kafka 'upload.stored' event", err)
		run.State = upload.StateFailed
		run.ErrorKind = apperror.KindInternal
		run.Reason = "The import could not be queued. Please try again"
		run.UpdatedAt = time.Now().UTC()
		if saveErr := uc.runs.Save(context.WithoutCancel(ctx), run); saveErr != nil {
			log.Warn("Failed to save run status", zap.Error(saveErr))
		}
		return nil, apperror.NewInternal("failed to queue import", err)
	}

	log.Info("Export stored and queued", zap.Int("files", len(input.Files)))
	return &UploadExportOutput{Run: run}, nil
}

func (uc *UploadExportUseCase) check(files []UploadedFile) error {
	if len(files) == 0 {
		return apperror.NewInvalidInput("no files uploaded", nil)
	}
	var total int64
	for _, f := range files {
		if !export.IsRecognized(f.Name) && !archive.IsZip(f.Name) {
			return apperror.NewInvalidInput(fmt.Sprintf("%s is not a LinkedIn export file", f.Name), nil)
		}
		total += int64(len(f.Content))
	}
	if uc.maxBytes > 0 && total > uc.maxBytes {
		return apperror.NewInvalidInput(fmt.Sprintf("upload is %d bytes, limit is %d", total, uc.maxBytes), nil)
	}
	return nil
}
