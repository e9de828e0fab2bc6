package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

// TimeSeriesSink stores destination records. Implementations upsert by
// timestamp, so storing the same series twice is harmless.
type TimeSeriesSink interface {
	Store(ctx context.Context, ts domain.TimeSeries) error
}

// BatchSink stores several series in one call.
type BatchSink interface {
	StoreBatch(ctx context.Context, series []domain.TimeSeries) error
}

// SourceFeed supplies raw SHEF, cross reference or mesonet text.
type SourceFeed interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ProductExtractor reads up to batchSize raw products from a broker.
type ProductExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.Product, error)
}

// MultiSink fans series out to every sink. All sinks are attempted; the
// errors are joined.
type MultiSink []TimeSeriesSink

func (m MultiSink) Store(ctx context.Context, ts domain.TimeSeries) error {
	var errs []error
	for _, s := range m {
		if err := s.Store(ctx, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsBatch adapts a sink for batch use. Sinks that already batch are returned
// unchanged.
func AsBatch(s TimeSeriesSink) BatchSink {
	if b, ok := s.(BatchSink); ok {
		return b
	}
	return eachSink{s}
}

type eachSink struct {
	sink TimeSeriesSink
}

func (e eachSink) StoreBatch(ctx context.Context, series []domain.TimeSeries) error {
	var errs []error
	for _, ts := range series {
		if err := e.sink.Store(ctx, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
