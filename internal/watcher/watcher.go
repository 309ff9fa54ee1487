// Package watcher ingests session exports dropped into the sessions
// directory.
//
// Exporters write transcripts incrementally, so the watcher waits for a
// settle delay after the last filesystem event before reading a file.
// The delay reduces, but does not eliminate, the chance of reading a
// partially written export; a file is ingested once, so a torn read
// stands until the session is organized by hand.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettleDelay is how long a session file must stay quiet before
// it is read.
const DefaultSettleDelay = 1500 * time.Millisecond

// sessionFilePrefix matches the naming scheme of Copilot CLI exports.
// Other markdown files in the directory are ignored.
const sessionFilePrefix = "copilot-session-"

// OrganizeFunc ingests one session export. The watcher calls it
// sequentially; implementations must tolerate seeing the same path more
// than once.
type OrganizeFunc func(ctx context.Context, path string) error

// Watcher monitors a sessions directory and feeds settled session files
// to an OrganizeFunc.
type Watcher struct {
	dir         string
	settleDelay time.Duration
	organize    OrganizeFunc
	fsw         *fsnotify.Watcher
	logger      *zap.Logger
	stop        chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer

	// ingestMu serializes organize calls; processed is only touched
	// while it is held.
	ingestMu  sync.Mutex
	processed map[string]bool
}

// New creates a watcher for dir. A non-positive settleDelay falls back
// to DefaultSettleDelay.
func New(dir string, settleDelay time.Duration, organize OrganizeFunc, logger *zap.Logger) (*Watcher, error) {
	if organize == nil {
		return nil, errors.New("organize func is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	return &Watcher{
		dir:         dir,
		settleDelay: settleDelay,
		organize:    organize,
		fsw:         fsw,
		logger:      logger,
		stop:        make(chan struct{}),
		pending:     make(map[string]*time.Timer),
		processed:   make(map[string]bool),
	}, nil
}

// Start ingests session files already present in the directory, then
// begins watching for new ones. Exports dropped while the process was
// down are therefore not missed. Call Stop to release the watch.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating sessions directory: %w", err)
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.ingestExisting(ctx)

	go w.processEvents(ctx)

	w.logger.Info("watching for session exports",
		zap.String("dir", w.dir),
		zap.Duration("settle_delay", w.settleDelay))
	return nil
}

// Stop ends the watch and cancels pending settle timers. Safe to call
// more than once.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.fsw.Close()
	}

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isSessionFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule arms the settle timer for path. Every further event on the
// same file pushes ingestion back by the full delay.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		w.settled(ctx, path)
	})
}

func (w *Watcher) settled(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}
	if ctx.Err() != nil {
		return
	}

	w.ingest(ctx, path)
}

// ingest runs the organize callback. A failed file stays unmarked so
// the next event on it retries.
func (w *Watcher) ingest(ctx context.Context, path string) {
	w.ingestMu.Lock()
	defer w.ingestMu.Unlock()

	if w.processed[path] {
		w.logger.Debug("session already ingested", zap.String("path", path))
		return
	}

	if err := w.organize(ctx, path); err != nil {
		w.logger.Error("session ingestion failed",
			zap.String("path", path),
			zap.Error(err))
		return
	}
	w.processed[path] = true
}

// ingestExisting picks up exports that arrived while nothing was
// watching. They are complete files, so no settle delay applies.
func (w *Watcher) ingestExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("scanning sessions directory failed", zap.Error(err))
		return
	}

	var found int
	for _, entry := range entries {
		if entry.IsDir() || !isSessionFile(entry.Name()) {
			continue
		}
		found++
		w.ingest(ctx, filepath.Join(w.dir, entry.Name()))
	}
	if found > 0 {
		w.logger.Info("ingested existing session files", zap.Int("count", found))
	}
}

func isSessionFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, sessionFilePrefix) && filepath.Ext(name) == ".md"
}
