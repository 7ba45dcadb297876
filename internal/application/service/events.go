package service

import (
	"context"

	"github.com/google/uuid"
)

const (
	UploadEventTypeStored = "upload.stored"
	ProfileEventTypeDirty = "profile.dirty"
)

// UploadEventPayload announces a stored file set that still has to be ingested.
type UploadEventPayload struct {
	EventType string       `json:"event_type"`
	RunID     uuid.UUID    `json:"run_id"`
	ProfileID uuid.UUID    `json:"profile_id"`
	Email     string       `json:"email,omitempty"`
	Files     []StoredFile `json:"files"`
}

type StoredFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ProfileEventPayload lists profiles whose searchable text changed.
type ProfileEventPayload struct {
	EventType  string      `json:"event_type"`
	RunID      uuid.UUID   `json:"run_id,omitempty"`
	ProfileIDs []uuid.UUID `json:"profile_ids"`
}

type EventPublisher interface {
	PublishUploadEvent(ctx context.Context, payload UploadEventPayload) error
	PublishProfileEvent(ctx context.Context, payload ProfileEventPayload) error
}
