// Package mesonet reads the Montana Mesonet CSV export. Each station block is
// a 'B' row carrying the station id and sensor depths, a 'C' row of column
// names, a 'Units' row and then data rows that start with a record number.
package mesonet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

// TimeLayout is the UTC column format, e.g. "01May2024 1300".
const TimeLayout = "02Jan2006 1504"

const timeColumn = "UTC"

// RowError describes a data row that could not be read.
type RowError struct {
	Line int
	Msg  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("mesonet line %d: %s", e.Line, e.Msg)
}

// Export is the parsed CSV. Rows that failed to parse are listed in Skipped.
type Export struct {
	Readings []domain.StationReading
	Skipped  []*RowError
}

type block struct {
	station string
	depths  []string
	cols    []string
	units   []string
	utc     int
}

// Parse reads an export. Only I/O and CSV syntax errors are returned; bad
// data rows are recorded in Export.Skipped.
func Parse(r io.Reader) (*Export, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := &Export{}
	var cur *block
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read mesonet csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) == 0 || row[0] == "" {
			continue
		}

		switch {
		case row[0] == "B":
			if len(row) < 3 || strings.TrimSpace(row[2]) == "" {
				out.Skipped = append(out.Skipped, &RowError{Line: line, Msg: "station row without id"})
				cur = nil
				continue
			}
			cur = &block{station: strings.TrimSpace(row[2]), depths: depths(row), utc: -1}
		case row[0] == "C":
			if cur == nil {
				continue
			}
			cur.cols = row
			cur.utc = indexOf(row, timeColumn)
		case row[0] == "Units":
			if cur != nil {
				cur.units = row
			}
		case isDigits(row[0]):
			readings, rerr := cur.readings(row)
			if rerr != nil {
				rerr.Line = line
				out.Skipped = append(out.Skipped, rerr)
				continue
			}
			out.Readings = append(out.Readings, readings...)
		}
	}
}

// ParseFile parses the export at path.
func ParseFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (b *block) readings(row []string) ([]domain.StationReading, *RowError) {
	switch {
	case b == nil:
		return nil, &RowError{Msg: "data row before station row"}
	case b.utc < 0 || b.utc >= len(row):
		return nil, &RowError{Msg: "no UTC column"}
	}
	at, err := time.Parse(TimeLayout, strings.TrimSpace(row[b.utc]))
	if err != nil {
		return nil, &RowError{Msg: fmt.Sprintf("time %q: %v", row[b.utc], err)}
	}

	out := make([]domain.StationReading, 0, len(b.cols))
	for i, col := range b.cols {
		if i <= 1 || col == timeColumn {
			continue
		}
		r := domain.StationReading{
			StationID: b.station,
			Parameter: strings.TrimSpace(col),
			Depth:     field(b.depths, i),
			Unit:      strings.TrimSpace(field(b.units, i)),
			Time:      at,
			Value:     strings.TrimSpace(field(row, i)),
		}
		out = append(out, r)
	}
	return out, nil
}

// depths extracts sensor depths from fields like "Sensor-D4".
func depths(row []string) []string {
	out := make([]string, len(row))
	for i, f := range row {
		if _, d, ok := strings.Cut(f, "-D"); ok {
			out[i] = strings.TrimSpace(d)
		}
	}
	return out
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func indexOf(row []string, name string) int {
	for i, f := range row {
		if strings.TrimSpace(f) == name {
			return i
		}
	}
	return -1
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
