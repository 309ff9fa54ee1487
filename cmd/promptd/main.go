// Promptd serves a personal prompt library over the Model Context
// Protocol on stdio.
//
// On startup the daemon loads its configuration, opens the library and
// the local vector collection, starts the session-export watcher, and
// then speaks MCP on stdin/stdout until it receives SIGINT or SIGTERM.
// All logging goes to stderr; stdout belongs to the protocol.
//
// Usage:
//
//	# Start with defaults (library under ~/.promptd)
//	promptd
//
//	# Custom config file
//	promptd -config ~/.config/promptd/config.yaml
//
//	# Configure via environment
//	PROMPTD_LIBRARY_BASE_DIR=~/prompt-library promptd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptd/internal/catalog"
	"github.com/fyrsmithlabs/promptd/internal/config"
	"github.com/fyrsmithlabs/promptd/internal/embeddings"
	"github.com/fyrsmithlabs/promptd/internal/library"
	"github.com/fyrsmithlabs/promptd/internal/logging"
	"github.com/fyrsmithlabs/promptd/internal/mcp"
	"github.com/fyrsmithlabs/promptd/internal/vectorstore"
	"github.com/fyrsmithlabs/promptd/internal/watcher"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/promptd/config.yaml)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  promptd           Start the MCP stdio server\n")
			fmt.Fprintf(os.Stderr, "  promptd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("promptd: %v", err)
	}

	log.Println("Shutdown complete")
}

func printVersion() {
	fmt.Printf("promptd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the promptd server and blocks until the context is
// cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize the stderr logger
//  3. Open embedding provider and vector collection (when RAG is enabled)
//  4. Open the catalog and the library coordinator
//  5. Start the session watcher (when enabled)
//  6. Serve MCP on stdio
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting promptd",
		zap.String("version", version),
		zap.String("base_dir", cfg.Library.BaseDir),
		zap.Bool("rag_enabled", cfg.RAG.Enabled),
		zap.Bool("watcher_enabled", cfg.Watcher.Enabled))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "promptd",
		Version: version,
		Logger:  logger,
	}, deps.library)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	return srv.Run(ctx)
}

// dependencies holds everything the MCP server is built on.
type dependencies struct {
	provider   embeddings.Provider
	collection *vectorstore.Collection
	library    *library.Library
	watcher    *watcher.Watcher
}

// Close releases resources in reverse initialization order.
func (d *dependencies) Close() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.collection != nil {
		_ = d.collection.Close()
	}
	if d.provider != nil {
		_ = d.provider.Close()
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if cfg.RAG.Enabled {
		provider, err := embeddings.NewProvider(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		deps.provider = provider

		collection, err := vectorstore.Open(vectorstore.Config{
			Path:            cfg.Library.VectorDBDir,
			ProviderName:    provider.Name(),
			Dimension:       provider.Dimension(),
			InsertBatchSize: cfg.RAG.InsertBatchSize,
		}, provider, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("opening vector collection: %w", err)
		}
		deps.collection = collection
	} else {
		logger.Info("semantic indexing disabled, search tools will report it")
	}

	cat, err := catalog.New(cfg.Library.PromptsDir, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	lib, err := library.New(cfg, deps.collection, cat, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("creating library: %w", err)
	}
	deps.library = lib

	if cfg.Watcher.Enabled {
		organize := func(ctx context.Context, path string) error {
			_, err := lib.OrganizeNewSession(ctx, path)
			return err
		}
		w, err := watcher.New(cfg.Library.SessionsDir, cfg.Watcher.SettleDelay, organize, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("creating session watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			deps.Close()
			return nil, fmt.Errorf("starting session watcher: %w", err)
		}
		deps.watcher = w
	}

	return deps, nil
}
