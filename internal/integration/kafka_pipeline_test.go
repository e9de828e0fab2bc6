//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/shef-etl/internal/adapter/kafka"
	"github.com/couchcryptid/shef-etl/internal/config"
	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/observability"
	"github.com/couchcryptid/shef-etl/internal/pipeline"
	"github.com/couchcryptid/shef-etl/internal/shef"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

const (
	testSourceTopic = "test-shef-products"
	testSinkTopic   = "test-decoded-timeseries"
)

const testCrit = `ABCD.HG.RZZ.Z=Loc1.Stage.Inst.0.RZZ;Units=ft
EFGH.PP.RZZ.Z=Loc2.Precip.Inst.0.RZZ;Units=in
`

const (
	stagePath  = "Loc1.Stage.Inst.0.RZZ"
	precipPath = "Loc2.Precip.Inst.0.RZZ"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("shef-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err, "dial controller")
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func testDecoder(t *testing.T) *shef.Decoder {
	t.Helper()
	table, err := xref.Load(strings.NewReader(testCrit))
	require.NoError(t, err)
	return shef.NewDecoder(table)
}

func publish(ctx context.Context, t *testing.T, broker string, msgs ...kafkago.Message) {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// decodedMessage holds a deserialized message read from the sink topic.
type decodedMessage struct {
	Series  domain.TimeSeries
	Key     string
	Headers map[string]string
}

func readDecoded(ctx context.Context, t *testing.T, consumer *kafkago.Reader) decodedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var ts domain.TimeSeries
	require.NoError(t, json.Unmarshal(msg.Value, &ts), "unmarshal sink message")

	return decodedMessage{Series: ts, Key: string(msg.Key), Headers: headers}
}

func runPipeline(ctx context.Context, t *testing.T, cfg *config.Config) (stop func()) {
	t.Helper()
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(reader, testDecoder(t), writer, discardLogger(), observability.NewMetricsForTesting(), 50)

	pipelineCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	return func() {
		cancel()
		require.NoError(t, <-errCh)
	}
}

// TestKafkaReaderWriter round-trips one product through kafka.Reader and one
// series through kafka.Writer.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := []byte(".E ABCD 20240101 Z1200/DC/HG/DIH1\n.E1 12.5/12.7\n")
	publish(ctx, t, broker, kafkago.Message{Key: []byte("RRABCD"), Value: payload})

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	// The consumer group may need a rebalance before partitions are assigned.
	var batch []domain.Product
	for len(batch) == 0 {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for product on source topic")
		}
	}
	require.Len(t, batch, 1)
	prod := batch[0]
	assert.Equal(t, []byte("RRABCD"), prod.Key)
	assert.Equal(t, payload, prod.Value)
	assert.Equal(t, testSourceTopic, prod.Topic)
	require.NotNil(t, prod.Commit, "commit callback should be set")
	require.NoError(t, prod.Commit(ctx))

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	series := domain.TimeSeries{
		Path:   stagePath,
		Units:  "ft",
		Values: []domain.Sample{{Time: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli(), Value: 12.5}},
	}
	require.NoError(t, writer.StoreBatch(ctx, []domain.TimeSeries{series}))

	dm := readDecoded(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, stagePath, dm.Key)
	assert.Equal(t, "ft", dm.Headers["units"])
	_, err := time.Parse(time.RFC3339, dm.Headers["decoded_at"])
	assert.NoError(t, err, "decoded_at should be valid RFC3339")
	assert.Equal(t, series, dm.Series)
}

// TestPipelineEndToEnd wires Reader, Decoder and Writer against a real broker.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	publish(ctx, t, broker,
		kafkago.Message{Key: []byte("p1"), Value: []byte(".E ABCD 20240101 Z1200/DC/HG/DIH1\n.E1 12.5/12.7\n")},
		kafkago.Message{Key: []byte("p2"), Value: []byte(".A EFGH 20240101 Z DH06/PP 0.25\n")},
		// Overlaps p1 at 13:00; the later product wins.
		kafkago.Message{Key: []byte("p3"), Value: []byte(".A ABCD 20240101 Z DH13/HG 12.9\n")},
	)

	stop := runPipeline(ctx, t, cfg)
	consumer := sinkConsumer(t, broker)

	got := map[string]decodedMessage{}
	for len(got) < 2 {
		dm := readDecoded(ctx, t, consumer)
		got[dm.Key] = dm
		assert.NotEmpty(t, dm.Headers["units"], "missing units header")
		_, err := time.Parse(time.RFC3339, dm.Headers["decoded_at"])
		assert.NoError(t, err, "invalid decoded_at format")
	}
	stop()

	stage, ok := got[stagePath]
	require.True(t, ok, "stage series not published")
	assert.Equal(t, "ft", stage.Series.Units)
	var stageValues []float64
	for _, s := range stage.Series.Values {
		stageValues = append(stageValues, s.Value)
	}
	// Products in one batch merge into one series; later batches publish again.
	assert.Subset(t, []float64{12.5, 12.7, 12.9}, stageValues)

	precip, ok := got[precipPath]
	require.True(t, ok, "precip series not published")
	assert.Equal(t, "in", precip.Series.Units)
	require.Len(t, precip.Series.Values, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), precip.Series.Values[0].At())
	assert.InDelta(t, 0.25, precip.Series.Values[0].Value, 1e-9)
}

// TestPipelineUnresolvedProduct verifies that a product with no cross
// reference entry is committed without publishing and the pipeline keeps going.
func TestPipelineUnresolvedProduct(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-unresolved")

	publish(ctx, t, broker,
		kafkago.Message{Key: []byte("unknown"), Value: []byte(".A WXYZ 20240101 Z DH12/HG 3.0\n")},
		kafkago.Message{Key: []byte("noise"), Value: []byte("ZCZC SRUS53\nNNNN\n")},
		kafkago.Message{Key: []byte("good"), Value: []byte(".A ABCD 20240101 Z DH12/HG 10.1\n")},
	)

	stop := runPipeline(ctx, t, cfg)
	consumer := sinkConsumer(t, broker)

	dm := readDecoded(ctx, t, consumer)
	assert.Equal(t, stagePath, dm.Key)
	require.Len(t, dm.Series.Values, 1)
	assert.InDelta(t, 10.1, dm.Series.Values[0].Value, 1e-9)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	stop()
}
