package normalize

import "time"

// SamplesPerHour is the number of 5-minute samples that make a complete hour.
const SamplesPerHour = 12

type bucket struct {
	hour  time.Time
	sum   float64
	count int
}

// HourlyAccumulator sums sub-hourly samples per station+parameter key. It is
// order dependent and must only see one time-ordered stream per key.
type HourlyAccumulator struct {
	buckets map[string]*bucket
}

// NewHourlyAccumulator returns an empty accumulator.
func NewHourlyAccumulator() *HourlyAccumulator {
	return &HourlyAccumulator{buckets: make(map[string]*bucket)}
}

// hourEnding maps a sample time onto the start of the hour it closes, so
// 00:05 through 01:00 share one bucket.
func hourEnding(at time.Time) time.Time {
	return at.Add(-time.Nanosecond).Truncate(time.Hour)
}

// Add records one sample for key taken at at. A sample from a later hour
// discards whatever the previous hour still held.
func (a *HourlyAccumulator) Add(key string, at time.Time, v float64) {
	hour := hourEnding(at)
	b, ok := a.buckets[key]
	if !ok || !b.hour.Equal(hour) {
		b = &bucket{hour: hour}
		a.buckets[key] = b
	}
	b.sum += v
	b.count++
}

// Close ends the hour finishing at at and resets key. The sum is returned
// only when exactly SamplesPerHour samples were added within that hour.
func (a *HourlyAccumulator) Close(key string, at time.Time) (float64, bool) {
	b, ok := a.buckets[key]
	if !ok {
		return 0, false
	}
	delete(a.buckets, key)
	if !b.hour.Equal(hourEnding(at)) || b.count != SamplesPerHour {
		return 0, false
	}
	return b.sum, true
}

func (a *HourlyAccumulator) pending(key string) int {
	if b, ok := a.buckets[key]; ok {
		return b.count
	}
	return 0
}
