package mesonet

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

const sample = `B,MT Mesonet,aceabsar,,Sensor-D4,Sensor-D8
C,Record,UTC,Temp-Air,%-SoilMoisture,%-SoilMoisture
Units,,,C,%,%
1,,01May2024 0000,10.5,25.3,28.1
2,,01May2024 0005,10.6,M,28.0

B,MT Mesonet,bozm8,
C,Record,UTC,Precip
Units,,,mm
1,,01May2024 0000,0.2
2,,bad time,0.1
`

func TestParse(t *testing.T) {
	export, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, export.Readings, 7)
	first := export.Readings[0]
	assert.Equal(t, domain.StationReading{
		StationID: "aceabsar",
		Parameter: "Temp-Air",
		Unit:      "C",
		Time:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Value:     "10.5",
	}, first)

	assert.Equal(t, "%-SoilMoisture_4", export.Readings[1].Column())
	assert.Equal(t, "%-SoilMoisture_8", export.Readings[2].Column())
	assert.Equal(t, "M", export.Readings[4].Value)

	last := export.Readings[6]
	assert.Equal(t, "bozm8", last.StationID)
	assert.Equal(t, "mm", last.Unit)

	require.Len(t, export.Skipped, 1)
	assert.Equal(t, 11, export.Skipped[0].Line)
	assert.Contains(t, export.Skipped[0].Error(), "mesonet line 11")
}

func TestParseDataBeforeStation(t *testing.T) {
	export, err := Parse(strings.NewReader("1,,01May2024 0000,1\n"))
	require.NoError(t, err)
	assert.Empty(t, export.Readings)
	require.Len(t, export.Skipped, 1)
	assert.Contains(t, export.Skipped[0].Msg, "before station")
}

func TestParseMissingUTC(t *testing.T) {
	export, err := Parse(strings.NewReader("B,,st\nC,Record,Time,Temp-Air\n1,,x,1\n"))
	require.NoError(t, err)
	require.Len(t, export.Skipped, 1)
	assert.Equal(t, "no UTC column", export.Skipped[0].Msg)
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cols := []Column{{Name: "Temp-Air", Unit: "C"}, {Name: "Temp-Soil", Unit: "C", Depth: "4"}}
	rows := []Row{
		{Time: start, Values: []string{"1.5", "8.2"}},
		{Time: start.Add(5 * time.Minute), Values: []string{"M", "8.3"}},
	}
	require.NoError(t, w.WriteStation("bozm8", cols, rows))
	require.NoError(t, w.Flush())

	export, err := Parse(&buf)
	require.NoError(t, err)
	require.Empty(t, export.Skipped)
	require.Len(t, export.Readings, 4)
	assert.Equal(t, "Temp-Soil_4", export.Readings[1].Column())
	assert.Equal(t, start.Add(5*time.Minute), export.Readings[2].Time)
	assert.Equal(t, "M", export.Readings[2].Value)
}

func TestWriterRejectsShortRow(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	err := w.WriteStation("bozm8", []Column{{Name: "Temp-Air"}}, []Row{{Values: nil}})
	require.Error(t, err)
}
