package mesonet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Column describes one parameter column of a station block.
type Column struct {
	Name  string
	Unit  string
	Depth string
}

// Row is one data row: a timestamp and a value per column.
type Row struct {
	Time   time.Time
	Values []string
}

// Writer emits station blocks in the export layout read by Parse.
type Writer struct {
	w *csv.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// WriteStation writes the B, C and Units rows followed by the data rows.
func (w *Writer) WriteStation(station string, cols []Column, rows []Row) error {
	b := []string{"B", "", station}
	c := []string{"C", "Record", timeColumn}
	u := []string{"Units", "", ""}
	for _, col := range cols {
		depth := ""
		if col.Depth != "" {
			depth = "Sensor-D" + col.Depth
		}
		b = append(b, depth)
		c = append(c, col.Name)
		u = append(u, col.Unit)
	}
	for _, rec := range [][]string{b, c, u} {
		if err := w.w.Write(rec); err != nil {
			return err
		}
	}

	for i, r := range rows {
		if len(r.Values) != len(cols) {
			return fmt.Errorf("row %d: %d values for %d columns", i, len(r.Values), len(cols))
		}
		rec := append([]string{strconv.Itoa(i + 1), "", r.Time.UTC().Format(TimeLayout)}, r.Values...)
		if err := w.w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}
