// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/promptd/internal/config"
	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrProviderInit indicates a provider could not be constructed.
	ErrProviderInit = errors.New("provider initialization failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Name returns the provider identifier. It feeds the collection name,
	// so two providers producing incompatible spaces must differ here.
	Name() string
	// Close releases resources held by the provider.
	Close() error
}

// NewProvider creates an embedding provider based on the configuration.
//
// Selection is by embedding.provider. An initialization failure of a
// non-default provider downgrades to the local FastEmbed provider with a
// logged warning instead of failing: availability wins over fail-fast
// here, and callers detect the active provider via Name(). Unknown
// provider names downgrade the same way.
func NewProvider(cfg *config.Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Embedding.Provider {
	case config.ProviderLMStudio:
		p, err := NewLMStudioProvider(LMStudioConfig{
			BaseURL:   cfg.LMStudio.BaseURL,
			Model:     cfg.LMStudio.Model,
			Dimension: cfg.LMStudio.Dimension,
			Timeout:   cfg.LMStudio.Timeout,
			BatchSize: cfg.LMStudio.BatchSize,
		}, logger)
		if err == nil {
			logger.Info("embedding provider ready",
				zap.String("provider", p.Name()),
				zap.Int("dimension", p.Dimension()),
			)
			return p, nil
		}
		logger.Warn("lmstudio provider unavailable, falling back to fastembed",
			zap.String("base_url", cfg.LMStudio.BaseURL),
			zap.Error(err),
		)

	case config.ProviderFastEmbed, "":
		// Default provider, constructed below.

	default:
		logger.Warn("unknown embedding provider, falling back to fastembed",
			zap.String("provider", cfg.Embedding.Provider),
		)
	}

	p, err := NewFastEmbedProvider(FastEmbedConfig{
		Model:    cfg.Embedding.Model,
		CacheDir: cfg.Embedding.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fastembed: %v", ErrProviderInit, err)
	}

	logger.Info("embedding provider ready",
		zap.String("provider", p.Name()),
		zap.Int("dimension", p.Dimension()),
	)
	return p, nil
}
