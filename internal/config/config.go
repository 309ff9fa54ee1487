// Package config provides configuration loading for promptd.
//
// Configuration is loaded from a YAML file and overridden by PROMPTD_*
// environment variables. Defaults produce a self-contained library under
// ~/.promptd with no external services required.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Embedding provider names accepted by the factory.
const (
	ProviderFastEmbed = "fastembed"
	ProviderLMStudio  = "lmstudio"
)

// ErrInvalidConfig wraps all validation failures. Configuration errors
// are fatal at startup; there is no degraded mode for a broken config.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete promptd configuration.
type Config struct {
	Library   LibraryConfig   `koanf:"library"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	LMStudio  LMStudioConfig  `koanf:"lmstudio"`
	Chunking  ChunkingConfig  `koanf:"chunking"`
	RAG       RAGConfig       `koanf:"rag"`
	Watcher   WatcherConfig   `koanf:"watcher"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// LibraryConfig holds the on-disk layout of the prompt library.
// PromptsDir, SessionsDir and VectorDBDir derive from BaseDir when unset.
type LibraryConfig struct {
	BaseDir     string `koanf:"base_dir"`
	PromptsDir  string `koanf:"prompts_dir"`
	SessionsDir string `koanf:"sessions_dir"`
	VectorDBDir string `koanf:"vectordb_dir"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	CacheDir string `koanf:"cache_dir"`
}

// LMStudioConfig holds settings for the remote LM Studio provider.
// Only consulted when embedding.provider is "lmstudio".
type LMStudioConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	Dimension int           `koanf:"dimension"`
	Timeout   time.Duration `koanf:"timeout"`
	BatchSize int           `koanf:"batch_size"`
}

// ChunkingConfig controls the word-window chunker.
type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

// RAGConfig controls semantic indexing and drift repair.
type RAGConfig struct {
	Enabled         bool          `koanf:"enabled"`
	ReindexInterval time.Duration `koanf:"reindex_interval"`
	InsertBatchSize int           `koanf:"insert_batch_size"`
}

// WatcherConfig controls the session file watcher.
type WatcherConfig struct {
	Enabled     bool          `koanf:"enabled"`
	SettleDelay time.Duration `koanf:"settle_delay"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate validates the configuration.
//
// Provider names are deliberately not validated here: an unknown
// provider falls back to the default at factory time instead of
// refusing to start.
func (c *Config) Validate() error {
	if c.Library.BaseDir == "" {
		return fmt.Errorf("%w: library.base_dir must not be empty", ErrInvalidConfig)
	}
	if c.Chunking.Size < 1 {
		return fmt.Errorf("%w: chunking.size must be positive, got %d", ErrInvalidConfig, c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("%w: chunking.overlap must not be negative, got %d", ErrInvalidConfig, c.Chunking.Overlap)
	}
	if c.LMStudio.Dimension < 1 {
		return fmt.Errorf("%w: lmstudio.dimension must be positive, got %d", ErrInvalidConfig, c.LMStudio.Dimension)
	}
	if c.LMStudio.Timeout <= 0 {
		return fmt.Errorf("%w: lmstudio.timeout must be positive", ErrInvalidConfig)
	}
	if c.LMStudio.BatchSize < 1 {
		return fmt.Errorf("%w: lmstudio.batch_size must be positive, got %d", ErrInvalidConfig, c.LMStudio.BatchSize)
	}
	if c.RAG.ReindexInterval <= 0 {
		return fmt.Errorf("%w: rag.reindex_interval must be positive", ErrInvalidConfig)
	}
	if c.RAG.InsertBatchSize < 1 {
		return fmt.Errorf("%w: rag.insert_batch_size must be positive, got %d", ErrInvalidConfig, c.RAG.InsertBatchSize)
	}
	if c.Watcher.SettleDelay <= 0 {
		return fmt.Errorf("%w: watcher.settle_delay must be positive", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults fills the path fields that derive from each other.
// Scalar defaults live in defaultYAML; paths need the home directory
// and the resolved BaseDir, so they are computed here.
func applyDefaults(cfg *Config) error {
	if cfg.Library.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.Library.BaseDir = filepath.Join(home, ".promptd")
	}
	base, err := expandPath(cfg.Library.BaseDir)
	if err != nil {
		return err
	}
	cfg.Library.BaseDir = base

	if cfg.Library.PromptsDir == "" {
		cfg.Library.PromptsDir = filepath.Join(base, "prompts")
	} else if cfg.Library.PromptsDir, err = expandPath(cfg.Library.PromptsDir); err != nil {
		return err
	}
	if cfg.Library.SessionsDir == "" {
		cfg.Library.SessionsDir = filepath.Join(base, "sessions")
	} else if cfg.Library.SessionsDir, err = expandPath(cfg.Library.SessionsDir); err != nil {
		return err
	}
	if cfg.Library.VectorDBDir == "" {
		cfg.Library.VectorDBDir = filepath.Join(cfg.Library.PromptsDir, ".vectordb")
	} else if cfg.Library.VectorDBDir, err = expandPath(cfg.Library.VectorDBDir); err != nil {
		return err
	}
	if cfg.Embedding.CacheDir == "" {
		cfg.Embedding.CacheDir = filepath.Join(base, ".fastembed")
	} else if cfg.Embedding.CacheDir, err = expandPath(cfg.Embedding.CacheDir); err != nil {
		return err
	}
	return nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
