package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/mesonet"
	"github.com/couchcryptid/shef-etl/internal/normalize"
	"github.com/couchcryptid/shef-etl/internal/observability"
	"github.com/couchcryptid/shef-etl/internal/shef"
	"github.com/mholt/archiver/v3"
)

// EncodeRun turns mesonet CSV exports into SHEF message files.
type EncodeRun struct {
	Normalizer *normalize.Normalizer
	Encoder    *shef.Encoder
	OutDir     string
	// BaseName overrides the default message file naming.
	BaseName string
	// Compress gzips each message file and removes the plain copy.
	Compress bool

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Run reads every input, encodes the normalized stations and writes one file
// per message. It returns the written paths and the encoder report.
func (e *EncodeRun) Run(ctx context.Context, inputs ...SourceFeed) ([]string, shef.Report, error) {
	var readings []domain.StationReading
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, shef.Report{}, err
		}
		export, err := e.parse(ctx, in)
		if err != nil {
			e.Logger.Error("input skipped", "source", in.Name(), "error", err)
			continue
		}
		for _, re := range export.Skipped {
			e.Logger.Warn("mesonet row skipped", "source", in.Name(), "line", re.Line, "error", re.Msg)
		}
		readings = append(readings, export.Readings...)
	}
	if len(readings) == 0 {
		return nil, shef.Report{}, ErrNoInput
	}

	stations := e.Normalizer.Stations(readings)
	messages, report := e.Encoder.Encode(stations)
	for _, s := range report.Skipped {
		e.Logger.Warn("section skipped", "station", s.Station, "column", s.Column, "reason", s.Reason)
		e.Metrics.SectionsSkipped.Inc()
	}
	for _, d := range report.DroppedRegions {
		e.Logger.Warn("unknown region, stations dropped", "region", d.Region, "stations", len(d.Stations))
	}

	if err := os.MkdirAll(e.OutDir, 0o755); err != nil {
		return nil, report, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(messages))
	for _, m := range messages {
		path, err := e.write(m)
		if err != nil {
			return paths, report, err
		}
		e.Metrics.MessagesEncoded.WithLabelValues(m.Region.Abbr).Inc()
		paths = append(paths, path)
	}

	e.Logger.Info("encode run complete",
		"readings", len(readings),
		"stations", len(stations),
		"messages", len(messages),
		"skipped_sections", len(report.Skipped),
	)
	return paths, report, nil
}

func (e *EncodeRun) parse(ctx context.Context, in SourceFeed) (*mesonet.Export, error) {
	rc, err := in.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return mesonet.Parse(rc)
}

func (e *EncodeRun) write(m shef.Message) (string, error) {
	path := filepath.Join(e.OutDir, m.FileName(e.BaseName))
	if err := os.WriteFile(path, []byte(m.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if !e.Compress {
		return path, nil
	}

	gz := path + ".gz"
	if err := archiver.CompressFile(path, gz); err != nil {
		return "", fmt.Errorf("compress %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove %s: %w", path, err)
	}
	return gz, nil
}
