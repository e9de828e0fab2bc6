package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/shef-etl/internal/adapter/cda"
	"github.com/couchcryptid/shef-etl/internal/adapter/file"
	kafkaadapter "github.com/couchcryptid/shef-etl/internal/adapter/kafka"
	"github.com/couchcryptid/shef-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/shef-etl/internal/config"
	"github.com/couchcryptid/shef-etl/internal/pipeline"
)

// sinks is the configured fan-out plus everything that must be closed
// on exit.
type sinks struct {
	pipeline.MultiSink
	closers []io.Closer
}

// openSinks builds one sink per name in cfg.Sinks. out is the JSON lines
// destination; "-" or empty writes to stdout.
func (a *app) openSinks(ctx context.Context, out string) (*sinks, error) {
	s := &sinks{}
	for _, name := range a.cfg.Sinks {
		switch name {
		case config.SinkJSONL:
			if out == "" || out == "-" {
				s.MultiSink = append(s.MultiSink, file.NewJSONLines(os.Stdout))
				continue
			}
			j, err := file.CreateJSONLines(out)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.add(j, j)
		case config.SinkSQLite:
			st, err := sqlite.Open(ctx, a.cfg.SQLitePath, a.logger)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.add(st, st)
		case config.SinkKafka:
			w := kafkaadapter.NewWriter(a.cfg, a.logger)
			s.add(w, w)
		case config.SinkCDA:
			s.MultiSink = append(s.MultiSink, cda.NewClient(a.cfg.CDAURL, a.cfg.CDAAPIKey, a.cfg.CDAOffice, a.cfg.CDATimeout, a.logger, a.metrics))
		default:
			s.Close()
			return nil, fmt.Errorf("unknown sink %q", name)
		}
		a.logger.Debug("sink enabled", "sink", name)
	}
	return s, nil
}

func (s *sinks) add(sink pipeline.TimeSeriesSink, c io.Closer) {
	s.MultiSink = append(s.MultiSink, sink)
	s.closers = append(s.closers, c)
}

func (s *sinks) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// inputs maps paths to feeds; "-" reads stdin.
func inputs(paths []string) ([]pipeline.SourceFeed, error) {
	feeds := make([]pipeline.SourceFeed, 0, len(paths))
	for _, p := range paths {
		if p != "-" {
			feeds = append(feeds, file.New(p))
			continue
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		feeds = append(feeds, file.NewBytes("stdin", data))
	}
	return feeds, nil
}
