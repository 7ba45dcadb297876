package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/domain/connection"
	"github.com/khoahotran/linkgraph/internal/domain/search"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

var tracer = otel.Tracer("search_usecase")

const maxLimit = 100

type SearchUseCase struct {
	searchRepo     search.Repository
	connectionRepo connection.Repository
	embedder       service.EmbeddingService
	cache          service.SearchCache
	cacheTTL       time.Duration
	defaultLimit   int
	logger         logger.Logger
}

func NewSearchUseCase(
	sr search.Repository,
	cr connection.Repository,
	e service.EmbeddingService,
	c service.SearchCache,
	cacheTTL time.Duration,
	defaultLimit int,
	log logger.Logger,
) *SearchUseCase {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &SearchUseCase{
		searchRepo:     sr,
		connectionRepo: cr,
		embedder:       e,
		cache:          c,
		cacheTTL:       cacheTTL,
		defaultLimit:   defaultLimit,
		logger:         log,
	}
}

type SearchInput struct {
	Query string
	Limit int
}

type SearchOutput struct {
	Results []search.Result
	Cached  bool
}

func (uc *SearchUseCase) limit(n int) int {
	if n <= 0 {
		return uc.defaultLimit
	}
	return min(n, maxLimit)
}

// KeywordCacheKey is the cache key for a normalized query and limit.
func KeywordCacheKey(query string, limit int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d", strings.ToLower(query), limit))
	return "search:kw:" + hex.EncodeToString(sum[:16])
}

func (uc *SearchUseCase) Execute(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	query := strings.Join(strings.Fields(input.Query), " ")
	if query == "" {
		return &SearchOutput{Results: []search.Result{}}, nil
	}
	limit := uc.limit(input.Limit)
	key := KeywordCacheKey(query, limit)

	if uc.cache != nil {
		cached, ok, err := uc.cache.Get(ctx, key)
		if err != nil {
			uc.logger.Warn("Search cache read failed", zap.Error(err))
		} else if ok {
			return &SearchOutput{Results: cached, Cached: true}, nil
		}
	}

	uc.logger.Info("Executing keyword search", zap.String("query", query))
	results, err := uc.searchRepo.Keyword(ctx, query, limit)
	if err != nil {
		uc.logger.Error("Search execution failed", err)
		return nil, apperror.NewInternal("search failed", err)
	}

	if uc.cache != nil && uc.cacheTTL > 0 {
		if err := uc.cache.Set(ctx, key, results, uc.cacheTTL); err != nil {
			uc.logger.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return &SearchOutput{Results: results}, nil
}

type SemanticSearchInput struct {
	Query string
	Limit int
	// ConnectionsOf restricts results to the direct connections of this profile.
	ConnectionsOf *uuid.UUID
}

func (uc *SearchUseCase) ExecuteSemantic(ctx context.Context, input SemanticSearchInput) (*SearchOutput, error) {
	ctx, span := tracer.Start(ctx, "SemanticSearch")
	defer span.End()

	if uc.embedder == nil {
		return nil, apperror.NewInternal("semantic search is not configured", nil)
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return &SearchOutput{Results: []search.Result{}}, nil
	}
	limit := uc.limit(input.Limit)

	var filter []uuid.UUID
	if input.ConnectionsOf != nil {
		edges, err := uc.connectionRepo.ListByProfile(ctx, *input.ConnectionsOf, 0, 0)
		if err != nil {
			return nil, apperror.NewInternal("load connections failed", err)
		}
		if len(edges) == 0 {
			return &SearchOutput{Results: []search.Result{}}, nil
		}
		filter = make([]uuid.UUID, 0, len(edges))
		for _, e := range edges {
			filter = append(filter, e.Other(*input.ConnectionsOf))
		}
	}
	span.SetAttributes(attribute.Int("filter_size", len(filter)))

	vec, err := uc.embedder.GenerateEmbeddings(ctx, query)
	if err != nil {
		span.RecordError(err)
		uc.logger.Error("Failed to embed search query", err)
		return nil, apperror.NewInternal("failed to embed query", err)
	}

	results, err := uc.searchRepo.Nearest(ctx, vec, limit, filter)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.NewInternal("semantic search failed", err)
	}
	return &SearchOutput{Results: results}, nil
}
