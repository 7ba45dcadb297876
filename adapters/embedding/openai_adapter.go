package embedding

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

// Dimensions must match profiles.embedding.
const Dimensions = 768

type ollamaAdapter struct {
	client *openai.Client
	model  string
	log    logger.Logger
}

func NewOllamaAdapter(cfg config.Config, log logger.Logger) (service.EmbeddingService, error) {
	if cfg.Ollama.Host == "" {
		return nil, fmt.Errorf("ollama Host is not configured")
	}

	config := openai.DefaultConfig("ollama")
	config.BaseURL = cfg.Ollama.Host

	log.Info("Ollama Embedding Adapter initialized",
		zap.String("host", cfg.Ollama.Host),
		zap.String("model", cfg.Ollama.EmbeddingModel))
	return &ollamaAdapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Ollama.EmbeddingModel,
		log:    log,
	}, nil
}

func (a *ollamaAdapter) GenerateEmbeddings(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(a.model),
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("ollama embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return pgvector.Vector{}, fmt.Errorf("ollama returned no embeddings")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != Dimensions {
		return pgvector.Vector{}, fmt.Errorf("ollama returned %d dimensions, want %d", len(vec), Dimensions)
	}
	return pgvector.NewVector(vec), nil
}
