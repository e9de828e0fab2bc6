package main

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/shef-etl/internal/mesonet"
)

func generate(t *testing.T, seed uint64) []byte {
	t.Helper()
	var buf bytes.Buffer
	g := generator{rng: rand.New(rand.NewPCG(seed, 0)), missing: 0.02}
	rows, err := g.write(&buf, 12, 2)
	require.NoError(t, err)
	assert.Equal(t, 24, rows)
	return buf.Bytes()
}

func TestGeneratorOutputParses(t *testing.T) {
	export, err := mesonet.Parse(bytes.NewReader(generate(t, 7)))
	require.NoError(t, err)
	assert.Empty(t, export.Skipped)
	assert.Len(t, export.Readings, 12*24*len(stationCols))

	ids := map[string]bool{}
	for _, r := range export.Readings {
		ids[r.StationID] = true
	}
	assert.Len(t, ids, 12)
	assert.True(t, ids["AAAM8"])
	assert.True(t, ids["AALW4"])
}

func TestGeneratorIsReproducible(t *testing.T) {
	assert.Equal(t, generate(t, 3), generate(t, 3))
	assert.NotEqual(t, generate(t, 3), generate(t, 4))
}

func TestStationID(t *testing.T) {
	assert.Equal(t, "AAAM8", stationID(0, "M8"))
	assert.Equal(t, "ABAK1", stationID(26, "K1"))
	assert.Len(t, stationID(700, "M7"), 5)
}
