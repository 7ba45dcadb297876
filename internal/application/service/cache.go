package service

import (
	"context"
	"time"

	"github.com/khoahotran/linkgraph/internal/domain/search"
)

// SearchCache memoizes keyword search results. A miss is (nil, false, nil).
type SearchCache interface {
	Get(ctx context.Context, key string) ([]search.Result, bool, error)
	Set(ctx context.Context, key string, results []search.Result, ttl time.Duration) error
}
