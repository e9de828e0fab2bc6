package domain

import (
	"math"
	"sort"
	"time"
)

const (
	// MissingValue is the destination database's missing-value convention.
	MissingValue = -math.MaxFloat32
	// MissingQuality accompanies MissingValue in a destination sample.
	MissingQuality = 5
	// MissingText is the SHEF textual sentinel written on the encode path.
	MissingText = "-9999"
)

// Sample is one (timestamp, value, quality) triple.
type Sample struct {
	Time    int64   `json:"time"` // epoch milliseconds, UTC
	Value   float64 `json:"value"`
	Quality int     `json:"quality"`
}

// At returns the sample timestamp as a UTC time.
func (s Sample) At() time.Time {
	return time.UnixMilli(s.Time).UTC()
}

// Missing reports whether the sample carries the destination missing value.
func (s Sample) Missing() bool {
	return s.Quality == MissingQuality && s.Value == MissingValue
}

// TimeSeries is a decoded observation addressed to a destination path.
type TimeSeries struct {
	Path   string   `json:"path"`
	Units  string   `json:"units"`
	Values []Sample `json:"values"`
}

// Merge appends the samples of other, then sorts by time keeping the last
// sample written for any repeated timestamp.
func (ts *TimeSeries) Merge(other TimeSeries) {
	if ts.Units == "" {
		ts.Units = other.Units
	}
	ts.Values = append(ts.Values, other.Values...)

	sort.SliceStable(ts.Values, func(i, j int) bool {
		return ts.Values[i].Time < ts.Values[j].Time
	})

	out := ts.Values[:0]
	for i, s := range ts.Values {
		if i+1 < len(ts.Values) && ts.Values[i+1].Time == s.Time {
			continue
		}
		out = append(out, s)
	}
	ts.Values = out
}

// MissingSample returns a sample holding the destination missing value.
func MissingSample(t int64) Sample {
	return Sample{Time: t, Value: MissingValue, Quality: MissingQuality}
}
