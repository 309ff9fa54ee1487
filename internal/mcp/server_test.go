package mcp

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/catalog"
	"github.com/fyrsmithlabs/promptd/internal/config"
	"github.com/fyrsmithlabs/promptd/internal/library"
	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
)

// markerTokens drive the deterministic test embedder: one dimension per
// token plus a shared bias dimension, so texts with common tokens score
// close without a real model.
var markerTokens = []string{"refactor", "solid", "retry", "backoff", "parser", "yaml", "session"}

type markerEmbedder struct{}

func embedMarkers(text string) []float32 {
	vec := make([]float32, len(markerTokens)+1)
	vec[0] = 1
	lower := strings.ToLower(text)
	for i, tok := range markerTokens {
		if strings.Contains(lower, tok) {
			vec[i+1] = 1
		}
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	scale := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (markerEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedMarkers(t)
	}
	return out, nil
}

func (markerEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return embedMarkers(text), nil
}

func newTestLibrary(t *testing.T) (*library.Library, string) {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{
		Library: config.LibraryConfig{
			BaseDir:     base,
			PromptsDir:  filepath.Join(base, "prompts"),
			SessionsDir: filepath.Join(base, "sessions"),
			VectorDBDir: filepath.Join(base, "vectordb"),
		},
		Chunking: config.ChunkingConfig{Size: 200, Overlap: 20},
		RAG:      config.RAGConfig{Enabled: true, ReindexInterval: time.Hour, InsertBatchSize: 50},
	}

	col, err := vectorstore.Open(vectorstore.Config{
		Path:         cfg.Library.VectorDBDir,
		ProviderName: "fastembed/test-model",
		Dimension:    len(markerTokens) + 1,
	}, markerEmbedder{}, zap.NewNop())
	require.NoError(t, err)

	cat, err := catalog.New(cfg.Library.PromptsDir, zap.NewNop())
	require.NoError(t, err)

	lib, err := library.New(cfg, col, cat, zap.NewNop())
	require.NoError(t, err)
	return lib, cfg.Library.PromptsDir
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	lib, promptsDir := newTestLibrary(t)
	srv, err := NewServer(nil, lib)
	require.NoError(t, err)
	return srv, promptsDir
}

func TestNewServer(t *testing.T) {
	lib, _ := newTestLibrary(t)

	t.Run("successful creation", func(t *testing.T) {
		cfg := &Config{
			Name:    "test-server",
			Version: "1.0.0",
			Logger:  zap.NewNop(),
		}

		server, err := NewServer(cfg, lib)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NotNil(t, server.mcp)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		server, err := NewServer(nil, lib)
		require.NoError(t, err)
		require.NotNil(t, server)
		require.NotNil(t, server.logger)
	})

	t.Run("missing library", func(t *testing.T) {
		_, err := NewServer(DefaultConfig(), nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "library is required")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	require.Equal(t, "promptd", cfg.Name)
	require.Equal(t, "1.0.0", cfg.Version)
	require.NotNil(t, cfg.Logger)
}
