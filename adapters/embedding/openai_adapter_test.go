package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

func fakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		vec := make([]float32, dims)
		vec[0] = 1
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"model":  req.Model,
		})
	}))
}

func newAdapter(t *testing.T, host string) *ollamaAdapter {
	t.Helper()
	var cfg config.Config
	cfg.Ollama.Host = host
	cfg.Ollama.EmbeddingModel = "nomic-embed-text"
	svc, err := NewOllamaAdapter(cfg, logger.NewNop())
	require.NoError(t, err)
	return svc.(*ollamaAdapter)
}

func TestGenerateEmbeddings(t *testing.T) {
	srv := fakeOllama(t, Dimensions)
	defer srv.Close()

	vec, err := newAdapter(t, srv.URL).GenerateEmbeddings(context.Background(), "Name: Ada Lovelace")
	require.NoError(t, err)
	require.Len(t, vec.Slice(), Dimensions)
	assert.Equal(t, float32(1), vec.Slice()[0])
}

func TestGenerateEmbeddingsWrongDimensions(t *testing.T) {
	srv := fakeOllama(t, 3)
	defer srv.Close()

	_, err := newAdapter(t, srv.URL).GenerateEmbeddings(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 dimensions")
}

func TestNewOllamaAdapterNeedsHost(t *testing.T) {
	_, err := NewOllamaAdapter(config.Config{}, logger.NewNop())
	assert.Error(t, err)
}
