package domain

import (
	"sort"
	"time"
)

// StationReading is one raw mesonet cell: a station, a parameter column and
// the text found at one timestamp.
type StationReading struct {
	StationID string
	Parameter string // column base name, e.g. "Temp-Soil"
	Depth     string // depth suffix for profile columns, e.g. "4"; empty otherwise
	Unit      string
	Time      time.Time
	Value     string
}

// Column returns the parameter name joined with its depth suffix.
func (r StationReading) Column() string {
	if r.Depth == "" {
		return r.Parameter
	}
	return r.Parameter + "_" + r.Depth
}

// Reading is a normalized value ready for encoding.
type Reading struct {
	Time    time.Time
	Value   float64
	Missing bool
}

// StationSeries holds the normalized values of one parameter at one station.
type StationSeries struct {
	Parameter string
	Depth     string
	Unit      string
	Values    []Reading
}

// Column returns the parameter name joined with its depth suffix.
func (s StationSeries) Column() string {
	if s.Depth == "" {
		return s.Parameter
	}
	return s.Parameter + "_" + s.Depth
}

// Start returns the earliest reading time, or false for an empty series.
func (s StationSeries) Start() (time.Time, bool) {
	if len(s.Values) == 0 {
		return time.Time{}, false
	}
	start := s.Values[0].Time
	for _, r := range s.Values[1:] {
		if r.Time.Before(start) {
			start = r.Time
		}
	}
	return start, true
}

// Sorted returns the readings ordered by time.
func (s StationSeries) Sorted() []Reading {
	out := make([]Reading, len(s.Values))
	copy(out, s.Values)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Station groups the normalized series of one mesonet site.
type Station struct {
	RawID  string // identifier used by the mesonet export
	ShefID string // NWS location identifier written to SHEF
	Region string // region abbreviation, e.g. "MT"
	Note   string // set when the SHEF id had to be generated
	Series []StationSeries
}
