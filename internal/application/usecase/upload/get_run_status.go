package upload

import (
	"context"

	"github.com/google/uuid"

	"github.com/khoahotran/linkgraph/internal/domain/upload"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

type GetRunStatusUseCase struct {
	runs upload.RunStore
}

func NewGetRunStatusUseCase(r upload.RunStore) *GetRunStatusUseCase {
	return &GetRunStatusUseCase{runs: r}
}

type GetRunStatusInput struct {
	RunID     uuid.UUID
	ProfileID uuid.UUID
}

func (uc *GetRunStatusUseCase) Execute(ctx context.Context, input GetRunStatusInput) (*upload.Run, error) {
	run, err := uc.runs.Get(ctx, input.RunID)
	if err != nil {
		return nil, err
	}
	if run.ProfileID != input.ProfileID {
		return nil, apperror.NewPermissionDenied("import run belongs to another profile")
	}
	return run, nil
}
