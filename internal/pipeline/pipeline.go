package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/observability"
	"github.com/couchcryptid/shef-etl/internal/shef"
)

// Pipeline orchestrates the extract-decode-store loop over a product stream.
type Pipeline struct {
	extractor ProductExtractor
	decoder   *shef.Decoder
	sink      BatchSink
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability.
func New(e ProductExtractor, d *shef.Decoder, s TimeSeriesSink, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		decoder:   d,
		sink:      AsBatch(s),
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has stored at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not stored any products yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-decode-store cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.ProductsConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	*backoff = 200 * time.Millisecond

	stored, ok := p.decodeAndStore(ctx, batch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if stored > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// decodeAndStore decodes every product in the batch, stores the merged
// series and commits offsets. Products that cannot be read are committed
// and skipped. Returns the number of stored series and false if the
// pipeline should stop.
func (p *Pipeline) decodeAndStore(ctx context.Context, batch []domain.Product, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	c := newCollector(p.decoder, p.logger, p.metrics)
	decoded := make([]domain.Product, 0, len(batch))

	for _, prod := range batch {
		if err := c.read(prod.Name(), bytes.NewReader(prod.Value)); err != nil {
			p.logger.Warn("product unreadable, skipping",
				"error", err,
				"topic", prod.Topic,
				"partition", prod.Partition,
				"offset", prod.Offset,
			)
			p.commitOffset(ctx, prod)
			continue
		}
		decoded = append(decoded, prod)
	}

	series := c.results()
	if len(series) == 0 {
		for _, prod := range decoded {
			p.commitOffset(ctx, prod)
		}
		return 0, true
	}

	if err := p.sink.StoreBatch(ctx, series); err != nil {
		p.logger.Error("store batch failed", "error", err, "series", len(series))
		p.metrics.SeriesStored.WithLabelValues("error").Add(float64(len(series)))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.SeriesStored.WithLabelValues("success").Add(float64(len(series)))
	p.logger.Debug("batch stored", "summary", c.summary)

	for _, prod := range decoded {
		p.commitOffset(ctx, prod)
	}

	return len(series), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the product offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, prod domain.Product) {
	if prod.Commit == nil {
		return
	}
	if err := prod.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", prod.Topic, "partition", prod.Partition, "offset", prod.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
