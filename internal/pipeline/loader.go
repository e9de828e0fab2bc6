package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/shef-etl/internal/observability"
	"github.com/couchcryptid/shef-etl/internal/shef"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

// ErrNoInput is returned when the inputs hold no SHEF blocks at all.
var ErrNoInput = errors.New("no SHEF blocks in input")

// Loader runs one decode pass: load the cross reference, decode every input
// and store the merged series.
type Loader struct {
	sink    TimeSeriesSink
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    []shef.DecoderOption
}

// NewLoader creates a Loader writing to sink.
func NewLoader(sink TimeSeriesSink, logger *slog.Logger, metrics *observability.Metrics, opts ...shef.DecoderOption) *Loader {
	return &Loader{sink: sink, logger: logger, metrics: metrics, opts: opts}
}

// LoadCrossReference reads and parses the cross reference feed.
func LoadCrossReference(ctx context.Context, crit SourceFeed, logger *slog.Logger) (*xref.Table, error) {
	rc, err := crit.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open cross reference %s: %w", crit.Name(), err)
	}
	defer rc.Close()

	table, err := xref.Load(rc)
	if err != nil {
		return nil, fmt.Errorf("load cross reference %s: %w", crit.Name(), err)
	}
	for _, k := range table.Redefined() {
		logger.Warn("cross reference key redefined, last entry wins", "key", k.String())
	}
	logger.Info("cross reference loaded", "source", crit.Name(), "entries", table.Len())
	return table, nil
}

// Run decodes inputs against the cross reference in crit. Only cross
// reference failures, context cancellation and ErrNoInput are returned;
// per-block and per-series failures are reported in the Summary.
func (l *Loader) Run(ctx context.Context, crit SourceFeed, inputs ...SourceFeed) (Summary, error) {
	table, err := LoadCrossReference(ctx, crit, l.logger)
	if err != nil {
		return Summary{}, err
	}

	c := newCollector(shef.NewDecoder(table, l.opts...), l.logger, l.metrics)
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return c.summary, err
		}
		if err := l.readFeed(ctx, c, in); err != nil {
			l.logger.Error("input skipped", "source", in.Name(), "error", err)
		}
	}
	if c.summary.Blocks == 0 {
		return c.summary, ErrNoInput
	}

	for _, ts := range c.results() {
		if err := l.sink.Store(ctx, ts); err != nil {
			l.logger.Error("store series failed", "path", ts.Path, "error", err)
			c.summary.SinkFailures = append(c.summary.SinkFailures, SinkFailure{Path: ts.Path, Err: err})
			l.metrics.SeriesStored.WithLabelValues("error").Inc()
			continue
		}
		c.summary.Stored++
		l.metrics.SeriesStored.WithLabelValues("success").Inc()
	}

	l.logger.Info("decode run complete", "summary", c.summary)
	return c.summary, nil
}

func (l *Loader) readFeed(ctx context.Context, c *collector, in SourceFeed) error {
	rc, err := in.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	return c.read(in.Name(), rc)
}
