package library

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultReindexInterval = 30 * time.Second

// DriftMonitor watches for divergence between the documents on disk and
// the vector collection and repairs it with a full reindex. Checks are
// rate limited so that search traffic cannot trigger back-to-back
// rebuilds.
type DriftMonitor struct {
	library *Library
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewDriftMonitor(library *Library, interval time.Duration) *DriftMonitor {
	if interval <= 0 {
		interval = defaultReindexInterval
	}
	return &DriftMonitor{
		library: library,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  library.logger,
	}
}

// CheckAndReindex compares the document count on disk with the chunk
// count in the collection and rebuilds the collection when they differ.
// The counts only agree while every document fits in a single chunk, so
// a library with long documents rebuilds at most once per interval.
// Returns whether a repair ran. Within the rate limit window, and when
// counting fails, the check is a silent no-op: search proceeds against
// the existing index.
func (d *DriftMonitor) CheckAndReindex(ctx context.Context) (bool, error) {
	if !d.limiter.Allow() {
		return false, nil
	}
	if d.library.collection == nil {
		return false, nil
	}

	files, err := d.library.promptFiles()
	if err != nil {
		d.logger.Warn("drift check could not count documents", zap.Error(err))
		return false, nil
	}
	chunks := d.library.collection.Count()
	if len(files) == chunks {
		return false, nil
	}

	d.logger.Info("index drift detected, rebuilding",
		zap.Int("documents", len(files)),
		zap.Int("chunks", chunks))
	if _, err := d.library.Reindex(ctx, true); err != nil {
		return true, err
	}
	return true, nil
}
