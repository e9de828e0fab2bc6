package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/shef-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	doneDir   = "done"
	failedDir = "failed"
)

// FeedFunc opens a file path as a SourceFeed.
type FeedFunc func(path string) SourceFeed

// Watcher polls an inbox directory and runs the loader once per file.
// Decoded files move to done/, files with no blocks or with sink failures
// move to failed/.
type Watcher struct {
	loader   *Loader
	crit     SourceFeed
	dir      string
	interval time.Duration
	feed     FeedFunc
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// NewWatcher creates a Watcher over dir.
func NewWatcher(loader *Loader, crit SourceFeed, dir string, interval time.Duration, feed FeedFunc, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Watcher {
	return &Watcher{
		loader:   loader,
		crit:     crit,
		dir:      dir,
		interval: interval,
		feed:     feed,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once the first scan has completed.
func (w *Watcher) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("inbox has not been scanned yet")
	}
	return nil
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{doneDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}

	w.logger.Info("inbox watcher started", "dir", w.dir, "interval", w.interval)
	w.metrics.PipelineRunning.Set(1)
	defer w.metrics.PipelineRunning.Set(0)

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Scan(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("inbox scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// Scan processes every regular, non-hidden file currently in the inbox in
// name order. A cross reference failure stops the scan and leaves the
// remaining files in place.
func (w *Watcher) Scan(ctx context.Context) error {
	files, err := w.pending()
	if err != nil {
		return err
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.dir, name)

		sum, err := w.loader.Run(ctx, w.crit, w.feed(path))
		switch {
		case errors.Is(err, ErrNoInput):
			w.logger.Warn("file has no SHEF blocks", "file", name)
			w.finish(name, failedDir, "empty")
		case err != nil:
			return fmt.Errorf("process %s: %w", name, err)
		case len(sum.SinkFailures) > 0:
			w.finish(name, failedDir, "sink_failure")
		default:
			w.finish(name, doneDir, "success")
		}
	}

	w.ready.Store(true)
	return nil
}

func (w *Watcher) pending() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (w *Watcher) finish(name, sub, outcome string) {
	w.metrics.FilesProcessed.WithLabelValues(outcome).Inc()
	if err := os.Rename(filepath.Join(w.dir, name), filepath.Join(w.dir, sub, name)); err != nil {
		w.logger.Error("move processed file failed", "file", name, "to", sub, "error", err)
		return
	}
	w.logger.Info("file processed", "file", name, "outcome", outcome)
}
