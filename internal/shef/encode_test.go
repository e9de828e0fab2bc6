package shef

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

var issued = time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(issued))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func testEncoder() *Encoder {
	return NewEncoder(DefaultEncoderConfig(), domain.DefaultParameters(), domain.DefaultRegions(), nil)
}

func hourly(start time.Time, values ...float64) []domain.Reading {
	out := make([]domain.Reading, len(values))
	for i, v := range values {
		out[i] = domain.Reading{Time: start.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return out
}

func station(id string, series ...domain.StationSeries) domain.Station {
	return domain.Station{RawID: strings.ToLower(id), ShefID: id, Region: "MT", Series: series}
}

func TestEncodeMessageLayout(t *testing.T) {
	freezeClock(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st := station("BOZM8",
		domain.StationSeries{Parameter: "Temp-Air", Unit: "F", Values: hourly(start, 12.3, 13.1, 14)},
	)

	msgs, report := testEncoder().Encode([]domain.Station{st})
	require.Len(t, msgs, 1)
	assert.Empty(t, report.Skipped)

	want := "\nSRUS83 KKRF 011430\nRR8KRF\n\n" +
		": US Army Corp of Engineers\n" +
		": Upper Missouri River Basin Plains\n" +
		": Snow and Soil Moisture Network\n" +
		"\n: Montana Mesonet Data\n\n\n" +
		": Air temperature (F)\n" +
		".E BOZM8 240501 Z DH0000/DUE/TAIRZ/DIH1\n" +
		".E1 12.30/13.10/14.00\n\n\n" +
		"\n:END OF MESSAGE\nNNNN"
	assert.Equal(t, want, msgs[0].String())
	assert.Equal(t, 1, msgs[0].Locations)
}

func TestEncodeHourlyAndVector(t *testing.T) {
	freezeClock(t)
	start := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	st := station("BOZM8",
		domain.StationSeries{Parameter: "Precip", Unit: "in", Values: hourly(start, 0.1)},
		domain.StationSeries{Parameter: "%-SoilMoisture", Depth: "4", Unit: "%", Values: []domain.Reading{
			{Time: start, Value: 25.3},
			{Time: start.Add(time.Hour), Missing: true},
		}},
	)

	msgs, _ := testEncoder().Encode([]domain.Station{st})
	require.Len(t, msgs, 1)
	body := msgs[0].Body
	assert.Contains(t, body, ".E BOZM8 240501 Z DH0600/DUE/PPHRZ/DIH1\n.E1 0.10\n")
	assert.Contains(t, body, ": Soil moisture (pct at 4 inch depth)\n")
	assert.Contains(t, body, ".E BOZM8 240501 Z DH0600/MVIRZ/DIH1\n.E1 4.0253/-9999\n")
}

func TestEncodeVectorOutOfRangeIsMissing(t *testing.T) {
	freezeClock(t)
	start := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	st := station("BOZM8",
		domain.StationSeries{Parameter: "%-SoilMoisture", Depth: "4", Unit: "%", Values: hourly(start, 25.3, 1500, 30)},
	)

	msgs, report := testEncoder().Encode([]domain.Station{st})
	assert.Empty(t, report.Skipped)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, ".E BOZM8 240501 Z DH0600/MVIRZ/DIH1\n.E1 4.0253/-9999/4.0300\n")
}

func TestEncodeLineLength(t *testing.T) {
	freezeClock(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 48)
	for i := range values {
		values[i] = 100 + float64(i)/3
	}
	st := station("BOZM8", domain.StationSeries{Parameter: "Temp-Air", Unit: "F", Values: hourly(start, values...)})

	msgs, _ := testEncoder().Encode([]domain.Station{st})
	require.Len(t, msgs, 1)

	var count int
	for _, line := range strings.Split(msgs[0].String(), "\n") {
		assert.LessOrEqual(t, len(line), DefaultMaxLineLength, line)
		if strings.HasPrefix(line, ".E1 ") {
			count += len(strings.Split(strings.TrimPrefix(line, ".E1 "), "/"))
		}
	}
	assert.Equal(t, len(values), count)
}

func TestEncodeLocationCap(t *testing.T) {
	freezeClock(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, n := range []int{1, 60, 61, 150} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			stations := make([]domain.Station, n)
			for i := range stations {
				stations[i] = station(fmt.Sprintf("S%03dM8", i),
					domain.StationSeries{Parameter: "Temp-Air", Unit: "F", Values: hourly(start, 50)})
			}
			msgs, _ := testEncoder().Encode(stations)
			require.Len(t, msgs, (n+DefaultMaxLocations-1)/DefaultMaxLocations)

			total := 0
			for i, m := range msgs {
				assert.LessOrEqual(t, m.Locations, DefaultMaxLocations)
				assert.Equal(t, i+1, m.Sequence)
				assert.Equal(t, m.Locations, strings.Count(m.Body, "\n.E "))
				total += m.Locations
			}
			assert.Equal(t, n, total)
		})
	}
}

func TestEncodeSkipsAndDrops(t *testing.T) {
	freezeClock(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	stations := []domain.Station{
		station("BOZM8",
			domain.StationSeries{Parameter: "Battery", Unit: "V", Values: hourly(start, 12)},
			domain.StationSeries{Parameter: "Temp-Air", Unit: "F"},
			domain.StationSeries{Parameter: "%-SoilMoisture", Depth: "x", Unit: "%", Values: hourly(start, 20)},
		),
		{RawID: "zzsite", ShefID: "ZZSITE", Region: domain.UnknownRegion, Series: []domain.StationSeries{
			{Parameter: "Temp-Air", Unit: "F", Values: hourly(start, 50)},
		}},
	}

	msgs, report := testEncoder().Encode(stations)
	assert.Empty(t, msgs)
	require.Len(t, report.Skipped, 3)
	assert.Equal(t, "unmapped parameter", report.Skipped[0].Reason)
	assert.Equal(t, "no values", report.Skipped[1].Reason)
	assert.Equal(t, []DroppedRegion{{Region: domain.UnknownRegion, Stations: []string{"zzsite"}}}, report.DroppedRegions)
}

func TestMessageFileName(t *testing.T) {
	m := Message{Region: domain.Region{Abbr: "MT"}, Sequence: 2, Issued: issued}
	assert.Equal(t, "MT_Mesonet_SHEF_20240501_143000_2.txt", m.FileName(""))
	assert.Equal(t, "MT_mesonet_20240501_143000_2.shef", m.FileName("mesonet.shef"))
	assert.Equal(t, "MT_mesonet_20240501_143000_2.txt", m.FileName("mesonet"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	freezeClock(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st := station("BOZM8",
		domain.StationSeries{Parameter: "Temp-Air", Unit: "F", Values: hourly(start, 41.2, 42)},
		domain.StationSeries{Parameter: "Precip", Unit: "in", Values: []domain.Reading{{Time: start, Missing: true}}},
	)
	msgs, _ := testEncoder().Encode([]domain.Station{st})
	require.Len(t, msgs, 1)

	table, err := xref.Load(strings.NewReader(
		"BOZM8.TA.IRZ.Z=Bozeman.Temp-Air.Inst.1Hour.0.Mesonet;Units=F\n" +
			"BOZM8.PP.HRZ.Z=Bozeman.Precip.Total.1Hour.1Hour.Mesonet;Units=in\n"))
	require.NoError(t, err)

	results, errs := decodeText(t, NewDecoder(table), msgs[0].String())
	require.Empty(t, errs)
	var got []domain.TimeSeries
	for _, r := range results {
		assert.Empty(t, r.Unresolved)
		got = append(got, r.Observations...)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "Bozeman.Temp-Air.Inst.1Hour.0.Mesonet", got[0].Path)
	assert.Equal(t, []domain.Sample{
		{Time: start.UnixMilli(), Value: 41.2},
		{Time: start.Add(time.Hour).UnixMilli(), Value: 42},
	}, got[0].Values)
	require.Len(t, got[1].Values, 1)
	assert.True(t, got[1].Values[0].Missing())
}
