package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.BlocksDecoded.WithLabelValues("decoded").Inc()
	assert.InDelta(t, 1, counterValue(t, a.BlocksDecoded.WithLabelValues("decoded")), 0)
	assert.InDelta(t, 0, counterValue(t, b.BlocksDecoded.WithLabelValues("decoded")), 0)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "warn")

	logger.Info("dropped")
	logger.Warn("kept", "block", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "shef-etl", entry["app"])
	assert.InDelta(t, 3, entry["block"], 0)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "text", "debug")
	logger.Debug("decoded block", "line", 12)
	assert.Contains(t, buf.String(), "decoded block")
	assert.Contains(t, buf.String(), "12")
}
