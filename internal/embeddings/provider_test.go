package embeddings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/config"
)

func TestNewProvider_LMStudio(t *testing.T) {
	srv := newLMStudioServer(t, nil)
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Embedding.Provider = config.ProviderLMStudio
	cfg.LMStudio.BaseURL = srv.URL
	cfg.LMStudio.Model = "nomic-embed-text"
	cfg.LMStudio.Dimension = 768

	p, err := NewProvider(cfg, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "lmstudio/nomic-embed-text", p.Name())
	assert.Equal(t, 768, p.Dimension())
}

// requireFastEmbedPath asserts the factory went down the FastEmbed
// route. FastEmbed needs a local ONNX runtime, so both a working
// provider and FastEmbed's own init failure count as proof.
func requireFastEmbedPath(t *testing.T, p Provider, err error) {
	t.Helper()

	if err != nil {
		require.ErrorIs(t, err, ErrProviderInit)
		assert.Contains(t, err.Error(), "fastembed")
		return
	}
	defer p.Close()
	assert.True(t, strings.HasPrefix(p.Name(), "fastembed/"), "got provider %q", p.Name())
}

func TestNewProvider_FallsBackWhenLMStudioUnreachable(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = config.ProviderLMStudio
	cfg.Embedding.Model = "BAAI/bge-small-en-v1.5"
	cfg.LMStudio.BaseURL = "http://127.0.0.1:1"

	p, err := NewProvider(cfg, zap.NewNop())
	requireFastEmbedPath(t, p, err)
}

func TestNewProvider_UnknownProviderFallsBack(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "BAAI/bge-small-en-v1.5"

	p, err := NewProvider(cfg, zap.NewNop())
	requireFastEmbedPath(t, p, err)
}

func TestNewProvider_FastEmbedInitFailureSurfaces(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = config.ProviderFastEmbed
	cfg.Embedding.Model = "not-a-real-model"

	_, err := NewProvider(cfg, zap.NewNop())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrProviderInit)
}
