// Package main implements the promptctl CLI for direct operations on the
// prompt library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/catalog"
	"github.com/fyrsmithlabs/promptd/internal/config"
	"github.com/fyrsmithlabs/promptd/internal/embeddings"
	"github.com/fyrsmithlabs/promptd/internal/library"
	"github.com/fyrsmithlabs/promptd/internal/logging"
	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
)

var (
	// configPath overrides the default config file lookup
	configPath string
	// verbose enables operation logging to stderr
	verbose bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "promptctl",
	Short: "CLI for prompt library operations",
	Long: `promptctl is a command-line interface for operating on the prompt library
directly. It shares its configuration with the promptd server and works on
the same files, so the server does not need to be running.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.config/promptd/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log operations to stderr")
}

// openLibrary loads configuration and assembles the library stack the same
// way the promptd server does. The returned cleanup releases the vector
// collection and the embedding provider.
func openLibrary() (*library.Library, func(), error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = logging.New("debug", "console")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	var (
		provider   embeddings.Provider
		collection *vectorstore.Collection
	)
	cleanup := func() {
		if collection != nil {
			_ = collection.Close()
		}
		if provider != nil {
			_ = provider.Close()
		}
	}

	if cfg.RAG.Enabled {
		provider, err = embeddings.NewProvider(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create embedding provider: %w", err)
		}
		collection, err = vectorstore.Open(vectorstore.Config{
			Path:            cfg.Library.VectorDBDir,
			ProviderName:    provider.Name(),
			Dimension:       provider.Dimension(),
			InsertBatchSize: cfg.RAG.InsertBatchSize,
		}, provider, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open vector collection: %w", err)
		}
	}

	cat, err := catalog.New(cfg.Library.PromptsDir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	lib, err := library.New(cfg, collection, cat, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create library: %w", err)
	}
	return lib, cleanup, nil
}
