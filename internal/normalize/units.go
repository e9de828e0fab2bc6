// Package normalize holds the value transforms shared by the SHEF decode and
// encode paths: unit conversion, hourly sums, vector coding, rounding and
// missing-value handling.
package normalize

import (
	"errors"
	"fmt"
)

// ErrUnsupportedUnit is wrapped by UnsupportedUnitError.
var ErrUnsupportedUnit = errors.New("unsupported unit conversion")

// UnsupportedUnitError reports a unit without a registered conversion. The
// value is returned unchanged alongside it.
type UnsupportedUnitError struct {
	Unit   string
	System string
}

func (e *UnsupportedUnitError) Error() string {
	return fmt.Sprintf("%s is not supported for conversion to %s units", e.Unit, e.System)
}

func (e *UnsupportedUnitError) Unwrap() error { return ErrUnsupportedUnit }

type conversion struct {
	to   string
	conv func(float64) float64
}

var toEnglish = map[string]conversion{
	"mm":    {"in", func(v float64) float64 { return v / 25.4 }},
	"kph":   {"mph", func(v float64) float64 { return v / 1.609 }},
	"C":     {"F", func(v float64) float64 { return v*9/5 + 32 }},
	"W/m^2": {"langley/min", func(v float64) float64 { return v / 697.3 }},
}

var toMetric = map[string]conversion{
	"in":          {"mm", func(v float64) float64 { return v * 25.4 }},
	"mph":         {"kph", func(v float64) float64 { return v * 1.609 }},
	"F":           {"C", func(v float64) float64 { return (v - 32) * 5 / 9 }},
	"langley/min": {"W/m^2", func(v float64) float64 { return v * 697.3 }},
}

// ToEnglish converts a metric value. Values already in an English unit pass
// through without error.
func ToEnglish(v float64, unit string) (float64, string, error) {
	return convert(v, unit, toEnglish, "English")
}

// ToMetric converts an English value. Values already in a metric unit pass
// through without error.
func ToMetric(v float64, unit string) (float64, string, error) {
	return convert(v, unit, toMetric, "metric")
}

func convert(v float64, unit string, table map[string]conversion, system string) (float64, string, error) {
	if c, ok := table[unit]; ok {
		return c.conv(v), c.to, nil
	}
	for _, c := range table {
		if c.to == unit {
			return v, unit, nil
		}
	}
	return v, unit, &UnsupportedUnitError{Unit: unit, System: system}
}
