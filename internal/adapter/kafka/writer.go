package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/shef-etl/internal/config"
	"github.com/couchcryptid/shef-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces decoded series to a Kafka topic.
// It implements pipeline.TimeSeriesSink and pipeline.BatchSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Store publishes one series.
func (w *Writer) Store(ctx context.Context, ts domain.TimeSeries) error {
	return w.StoreBatch(ctx, []domain.TimeSeries{ts})
}

// StoreBatch publishes several series in a single WriteMessages call. The
// message key is the destination path so one series always lands on the
// same partition.
func (w *Writer) StoreBatch(ctx context.Context, series []domain.TimeSeries) error {
	if len(series) == 0 {
		return nil
	}
	decodedAt := domain.Now()
	msgs := make([]kafkago.Message, len(series))
	for i := range series {
		msg, err := serializeToMessage(series[i], decodedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d series: %w", len(msgs), err)
	}
	w.logger.Debug("series published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a TimeSeries into a Kafka message.
func serializeToMessage(ts domain.TimeSeries, decodedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(ts)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize series %s: %w", ts.Path, err)
	}
	return kafkago.Message{
		Key:   []byte(ts.Path),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "units", Value: []byte(ts.Units)},
			{Key: "decoded_at", Value: []byte(decodedAt.Format(time.RFC3339))},
		},
	}, nil
}
