package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/khoahotran/linkgraph/internal/domain/upload"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

const runKeyPrefix = "ingest:run:"

type redisRunStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRunStore keeps each run's latest status for ttl after its last change.
func NewRedisRunStore(rdb *redis.Client, ttl time.Duration) upload.RunStore {
	return &redisRunStore{rdb: rdb, ttl: ttl}
}

func (s *redisRunStore) Save(ctx context.Context, run *upload.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return apperror.NewInternal("failed to marshal run status", err)
	}
	if err := s.rdb.Set(ctx, runKeyPrefix+run.ID.String(), data, s.ttl).Err(); err != nil {
		return apperror.NewInternal("failed to save run status", err)
	}
	return nil
}

func (s *redisRunStore) Get(ctx context.Context, id uuid.UUID) (*upload.Run, error) {
	data, err := s.rdb.Get(ctx, runKeyPrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperror.NewNotFound("import run", id.String())
		}
		return nil, apperror.NewInternal("failed to read run status", err)
	}
	var run upload.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, apperror.NewInternal("corrupt run status", err)
	}
	return &run, nil
}
