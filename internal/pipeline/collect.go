package pipeline

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/observability"
	"github.com/couchcryptid/shef-etl/internal/shef"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

// BlockFailure is a malformed block skipped during decoding.
type BlockFailure struct {
	Source string
	Line   int
	Err    error
}

// SinkFailure is a series the sink rejected.
type SinkFailure struct {
	Path string
	Err  error
}

// Summary reports one decode run.
type Summary struct {
	Blocks       int
	Observations int
	Samples      int
	Stored       int
	Unsupported  int
	Unresolved   []xref.Key
	Malformed    []BlockFailure
	SinkFailures []SinkFailure
}

// LogValue renders the summary as a log group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("blocks", s.Blocks),
		slog.Int("observations", s.Observations),
		slog.Int("samples", s.Samples),
		slog.Int("stored", s.Stored),
		slog.Int("unsupported", s.Unsupported),
		slog.Int("unresolved", len(s.Unresolved)),
		slog.Int("malformed", len(s.Malformed)),
		slog.Int("sink_failures", len(s.SinkFailures)),
	)
}

// collector decodes SHEF text and merges observations per destination path.
type collector struct {
	dec     *shef.Decoder
	logger  *slog.Logger
	metrics *observability.Metrics

	summary Summary
	series  map[string]*domain.TimeSeries
	order   []string
	seen    map[xref.Key]struct{}
}

func newCollector(dec *shef.Decoder, logger *slog.Logger, metrics *observability.Metrics) *collector {
	return &collector{
		dec:     dec,
		logger:  logger,
		metrics: metrics,
		series:  make(map[string]*domain.TimeSeries),
		seen:    make(map[xref.Key]struct{}),
	}
}

// read decodes every block in r. Only read errors are returned.
func (c *collector) read(source string, r io.Reader) error {
	for b, err := range shef.NewTokenizer(r).Blocks() {
		if err != nil {
			return fmt.Errorf("read %s: %w", source, err)
		}
		c.summary.Blocks++
		c.decode(source, b)
	}
	return nil
}

func (c *collector) decode(source string, b shef.Block) {
	res, err := c.dec.Decode(b)
	if err != nil {
		c.logger.Warn("malformed block skipped", "source", source, "line", b.Line, "error", err)
		c.summary.Malformed = append(c.summary.Malformed, BlockFailure{Source: source, Line: b.Line, Err: err})
		c.metrics.BlocksDecoded.WithLabelValues("malformed").Inc()
		return
	}
	if res.Unsupported {
		c.logger.Info("block type not decoded", "source", source, "line", b.Line, "kind", b.Kind)
		c.summary.Unsupported++
		c.metrics.BlocksDecoded.WithLabelValues("unsupported").Inc()
		return
	}
	for _, k := range res.Unresolved {
		if _, ok := c.seen[k]; !ok {
			c.seen[k] = struct{}{}
			c.summary.Unresolved = append(c.summary.Unresolved, k)
			c.logger.Debug("no cross reference entry", "source", source, "line", b.Line, "key", k.String())
		}
	}
	if len(res.Unresolved) > 0 {
		c.metrics.BlocksDecoded.WithLabelValues("unresolved").Inc()
		return
	}

	c.metrics.BlocksDecoded.WithLabelValues("decoded").Inc()
	for _, obs := range res.Observations {
		c.summary.Observations++
		c.summary.Samples += len(obs.Values)
		c.metrics.SamplesDecoded.Add(float64(len(obs.Values)))
		if ts, ok := c.series[obs.Path]; ok {
			ts.Merge(obs)
			continue
		}
		ts := domain.TimeSeries{Path: obs.Path, Units: obs.Units}
		ts.Merge(obs)
		c.series[obs.Path] = &ts
		c.order = append(c.order, obs.Path)
	}
}

// results returns the merged series in first-seen order.
func (c *collector) results() []domain.TimeSeries {
	out := make([]domain.TimeSeries, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, *c.series[p])
	}
	return out
}
