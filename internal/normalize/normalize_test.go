package normalize

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

func TestToEnglish(t *testing.T) {
	tests := []struct {
		unit     string
		in       float64
		want     float64
		wantUnit string
	}{
		{"mm", 25.4, 1, "in"},
		{"kph", 16.09, 10, "mph"},
		{"C", 100, 212, "F"},
		{"C", -40, -40, "F"},
		{"in", 3, 3, "in"},
	}
	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got, unit, err := ToEnglish(tt.in, tt.unit)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.wantUnit, unit)
		})
	}
}

func TestToMetric(t *testing.T) {
	got, unit, err := ToMetric(212, "F")
	require.NoError(t, err)
	assert.InDelta(t, 100, got, 1e-9)
	assert.Equal(t, "C", unit)

	got, unit, err = ToMetric(2, "langley/min")
	require.NoError(t, err)
	assert.InDelta(t, 1394.6, got, 1e-9)
	assert.Equal(t, "W/m^2", unit)
}

func TestUnsupportedUnit(t *testing.T) {
	got, unit, err := ToEnglish(4.2, "furlong")
	require.ErrorIs(t, err, ErrUnsupportedUnit)
	var uerr *UnsupportedUnitError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "furlong", uerr.Unit)
	assert.InDelta(t, 4.2, got, 0)
	assert.Equal(t, "furlong", unit)
}

func TestConversionRoundTrip(t *testing.T) {
	for _, unit := range []string{"in", "mph", "F", "langley/min"} {
		for _, v := range []float64{-40, 0, 0.01, 12.5, 1234.5678} {
			t.Run(fmt.Sprintf("%s/%g", unit, v), func(t *testing.T) {
				metric, mu, err := ToMetric(v, unit)
				require.NoError(t, err)
				back, eu, err := ToEnglish(metric, mu)
				require.NoError(t, err)
				assert.Equal(t, unit, eu)
				assert.InDelta(t, v, back, 1e-6)
			})
		}
	}
}

func TestHourlyAccumulator(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fill := func(acc *HourlyAccumulator, key string, from time.Time, n int, v float64) {
		for i := 1; i <= n; i++ {
			acc.Add(key, from.Add(time.Duration(i)*5*time.Minute), v)
		}
	}

	t.Run("complete hour", func(t *testing.T) {
		acc := NewHourlyAccumulator()
		fill(acc, "k", start, SamplesPerHour, 0.5)
		sum, ok := acc.Close("k", start.Add(time.Hour))
		assert.True(t, ok)
		assert.InDelta(t, 6.0, sum, 1e-9)
		assert.Zero(t, acc.pending("k"))
	})

	t.Run("eleven samples", func(t *testing.T) {
		acc := NewHourlyAccumulator()
		fill(acc, "k", start, SamplesPerHour-1, 0.5)
		_, ok := acc.Close("k", start.Add(time.Hour))
		assert.False(t, ok)
		assert.Zero(t, acc.pending("k"))
	})

	t.Run("samples from two hours are not pooled", func(t *testing.T) {
		acc := NewHourlyAccumulator()
		fill(acc, "k", start, SamplesPerHour-1, 1)
		acc.Add("k", start.Add(2*time.Hour), 1)
		assert.Equal(t, 1, acc.pending("k"))
		_, ok := acc.Close("k", start.Add(2*time.Hour))
		assert.False(t, ok)
	})

	t.Run("close for another hour", func(t *testing.T) {
		acc := NewHourlyAccumulator()
		fill(acc, "k", start, SamplesPerHour, 1)
		_, ok := acc.Close("k", start.Add(2*time.Hour))
		assert.False(t, ok)
	})

	t.Run("keys are independent", func(t *testing.T) {
		acc := NewHourlyAccumulator()
		acc.Add("a", start.Add(5*time.Minute), 1)
		acc.Add("b", start.Add(5*time.Minute), 1)
		acc.Add("b", start.Add(10*time.Minute), 1)
		assert.Equal(t, 1, acc.pending("a"))
		assert.Equal(t, 2, acc.pending("b"))
	})
}

func TestVector(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		v     float64
		want  string
	}{
		{"positive", 4, 25.3, "4.0253"},
		{"negative", 8, -1.5, "-8.0015"},
		{"zero", 2, 0, "2.0000"},
		{"large", 20, 999.9, "20.9999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeVector(tt.depth, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			depth, v, err := DecodeVector(got)
			require.NoError(t, err)
			assert.Equal(t, tt.depth, depth)
			assert.InDelta(t, tt.v, v, 0.05)
		})
	}
}

func TestVectorOutOfRange(t *testing.T) {
	_, err := EncodeVector(4, 1000)
	require.ErrorIs(t, err, ErrVectorRange)
	_, err = EncodeVector(4, -2500)
	require.ErrorIs(t, err, ErrVectorRange)
}

func TestDecodeVectorMalformed(t *testing.T) {
	for _, s := range []string{"", "4", ".0253", "x.0253", "4.ab"} {
		_, _, err := DecodeVector(s)
		assert.ErrorIs(t, err, ErrVectorFormat, s)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     string
	}{
		{12.3, 2, "12.30"},
		{2.675, 2, "2.68"},
		{2.5, 0, "3"},
		{-2.5, 0, "-3"},
		{9.995, 2, "10.00"},
		{0.004, 2, "0.00"},
		{-0.004, 2, "0.00"},
		{271, 0, "271"},
		{1.23456, 4, "1.2346"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%g/%d", tt.v, tt.decimals), func(t *testing.T) {
			assert.Equal(t, tt.want, Round(tt.v, tt.decimals))
		})
	}
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing("M", SHEFMissingTokens...))
	assert.True(t, IsMissing(" MM ", SHEFMissingTokens...))
	assert.True(t, IsMissing("-9999"))
	assert.True(t, IsMissing("-9999.00"))
	assert.False(t, IsMissing("12.5", SHEFMissingTokens...))
	assert.False(t, IsMissing("", SHEFMissingTokens...))
}

func TestDestinationSample(t *testing.T) {
	s, err := DestinationSample(1000, "M", SHEFMissingTokens...)
	require.NoError(t, err)
	assert.True(t, s.Missing())
	assert.Equal(t, domain.MissingQuality, s.Quality)
	assert.InDelta(t, domain.MissingValue, s.Value, 0)

	s, err = DestinationSample(1000, "12.5", SHEFMissingTokens...)
	require.NoError(t, err)
	assert.Equal(t, domain.Sample{Time: 1000, Value: 12.5}, s)

	_, err = DestinationSample(1000, "abc")
	require.Error(t, err)
}

type idMap map[string]string

func (m idMap) Lookup(raw string) (string, bool) {
	id, ok := m[raw]
	return id, ok
}

func fiveMinuteReadings(station, param, unit string, start time.Time, values ...string) []domain.StationReading {
	out := make([]domain.StationReading, len(values))
	for i, v := range values {
		out[i] = domain.StationReading{
			StationID: station,
			Parameter: param,
			Unit:      unit,
			Time:      start.Add(time.Duration(i) * 5 * time.Minute),
			Value:     v,
		}
	}
	return out
}

func TestStationsHourlySum(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 5, 0, 0, time.UTC)
	values := make([]string, SamplesPerHour)
	for i := range values {
		values[i] = "2.54"
	}
	n := New(domain.DefaultParameters(), domain.DefaultRegions(), nil)
	stations := n.Stations(fiveMinuteReadings("BOZM8", "Precip", "mm", start, values...))

	require.Len(t, stations, 1)
	require.Len(t, stations[0].Series, 1)
	series := stations[0].Series[0]
	assert.Equal(t, "in", series.Unit)
	require.Len(t, series.Values, 1)
	assert.False(t, series.Values[0].Missing)
	assert.InDelta(t, 1.2, series.Values[0].Value, 1e-9)
	assert.Equal(t, time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), series.Values[0].Time)
}

func TestStationsIncompleteHourIsMissing(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 5, 0, 0, time.UTC)
	values := make([]string, SamplesPerHour)
	for i := range values {
		values[i] = "1"
	}
	values[3] = "M"
	n := New(domain.DefaultParameters(), domain.DefaultRegions(), nil)
	stations := n.Stations(fiveMinuteReadings("BOZM8", "Precip", "mm", start, values...))

	require.Len(t, stations[0].Series[0].Values, 1)
	assert.True(t, stations[0].Series[0].Values[0].Missing)
}

func TestStationsHourlyGapDoesNotPoolHours(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 5, 0, 0, time.UTC)
	values := make([]string, SamplesPerHour-1)
	for i := range values {
		values[i] = "1"
	}
	readings := fiveMinuteReadings("BOZM8", "Precip", "in", start, values...)
	readings = append(readings, fiveMinuteReadings("BOZM8", "Precip", "in", start.Add(2*time.Hour-5*time.Minute), "1")...)

	n := New(domain.DefaultParameters(), domain.DefaultRegions(), nil)
	stations := n.Stations(readings)

	require.Len(t, stations, 1)
	got := stations[0].Series[0].Values
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC), got[0].Time)
	assert.True(t, got[0].Missing)
}

func TestStationsKeepsTopOfHourOnly(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	readings := fiveMinuteReadings("BOZM8", "Temp-Air", "C", start, "0", "1", "2")
	readings = append(readings, fiveMinuteReadings("BOZM8", "Temp-Air", "C", start.Add(time.Hour), "M")...)

	n := New(domain.DefaultParameters(), domain.DefaultRegions(), nil)
	stations := n.Stations(readings)

	series := stations[0].Series[0]
	require.Len(t, series.Values, 2)
	assert.InDelta(t, 32.0, series.Values[0].Value, 1e-9)
	assert.Equal(t, "F", series.Unit)
	assert.True(t, series.Values[1].Missing)
}

func TestStationsDepthSeries(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	readings := []domain.StationReading{
		{StationID: "BOZM8", Parameter: "%-SoilMoisture", Depth: "4", Unit: "%", Time: start, Value: "25.3"},
		{StationID: "BOZM8", Parameter: "%-SoilMoisture", Depth: "8", Unit: "%", Time: start, Value: "28.1"},
	}
	n := New(domain.DefaultParameters(), domain.DefaultRegions(), nil)
	stations := n.Stations(readings)

	require.Len(t, stations[0].Series, 2)
	assert.Equal(t, "%-SoilMoisture_4", stations[0].Series[0].Column())
	assert.Equal(t, "%-SoilMoisture_8", stations[0].Series[1].Column())
}

func TestShefID(t *testing.T) {
	n := New(domain.DefaultParameters(), domain.DefaultRegions(), nil,
		WithStationIDs(idMap{"aceroute": "acrm8"}))

	tests := []struct {
		raw      string
		want     string
		wantNote bool
	}{
		{"bozm8", "BOZM8", false},
		{"aceroute", "ACRM8", false},
		{"mtsite", "MTSITE", false},
		{"montanasite1", "MONTANAS", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, note := n.ShefID(tt.raw)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, tt.wantNote, note != "")
		})
	}
}

func TestStationsRegion(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	readings := []domain.StationReading{
		{StationID: "bozm8", Parameter: "Temp-Air", Unit: "F", Time: start, Value: "50"},
		{StationID: "ndsite", Parameter: "Temp-Air", Unit: "F", Time: start, Value: "50"},
		{StationID: "zzsite", Parameter: "Temp-Air", Unit: "F", Time: start, Value: "50"},
	}
	n := New(domain.DefaultParameters(), domain.DefaultRegions(), nil)
	stations := n.Stations(readings)

	require.Len(t, stations, 3)
	assert.Equal(t, "MT", stations[0].Region)
	assert.Equal(t, "ND", stations[1].Region)
	assert.Equal(t, domain.UnknownRegion, stations[2].Region)
}
