package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/shef-etl/internal/adapter/file"
	"github.com/couchcryptid/shef-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/shef-etl/internal/adapter/kafka"
	"github.com/couchcryptid/shef-etl/internal/pipeline"
	"github.com/couchcryptid/shef-etl/internal/shef"
)

// runner is a long-running mode with a readiness probe.
type runner interface {
	Run(ctx context.Context) error
	CheckReadiness(ctx context.Context) error
}

// serve runs r next to the health server until SIGINT or SIGTERM, then drains
// the server within the shutdown timeout.
func (a *app) serve(parent context.Context, r runner) error {
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, r, a.logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	var err error
	select {
	case <-ctx.Done():
		err = <-runErr
	case err = <-runErr:
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return err
}

func (a *app) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "poll an inbox directory and decode each product file",
		Flags: []cli.Flag{
			critFlag(),
			&cli.StringFlag{Name: "inbox", Usage: "directory to poll (default $INBOX_DIR)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "JSON lines output file for the jsonl sink", Value: "-"},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("inbox")
			if dir == "" {
				dir = a.cfg.InboxDir
			}

			sinks, err := a.openSinks(c.Context, c.String("out"))
			if err != nil {
				return err
			}
			defer sinks.Close()

			loader := pipeline.NewLoader(sinks.MultiSink, a.logger, a.metrics, a.decoderOptions()...)
			feed := func(path string) pipeline.SourceFeed { return file.New(path) }
			w := pipeline.NewWatcher(loader, file.New(c.String("crit")), dir, a.cfg.PollInterval, feed,
				clockwork.NewRealClock(), a.logger, a.metrics)
			return a.serve(c.Context, w)
		},
	}
}

func (a *app) consumeCommand() *cli.Command {
	return &cli.Command{
		Name:  "consume",
		Usage: "decode SHEF products from the Kafka source topic",
		Flags: []cli.Flag{
			critFlag(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "JSON lines output file for the jsonl sink", Value: "-"},
		},
		Action: func(c *cli.Context) error {
			table, err := pipeline.LoadCrossReference(c.Context, file.New(c.String("crit")), a.logger)
			if err != nil {
				return err
			}

			sinks, err := a.openSinks(c.Context, c.String("out"))
			if err != nil {
				return err
			}
			defer sinks.Close()

			reader := kafkaadapter.NewReader(a.cfg, a.logger)
			defer func() {
				if err := reader.Close(); err != nil {
					a.logger.Error("kafka reader close error", "error", err)
				}
			}()

			dec := shef.NewDecoder(table, a.decoderOptions()...)
			p := pipeline.New(reader, dec, sinks.MultiSink, a.logger, a.metrics, a.cfg.BatchSize)
			return a.serve(c.Context, p)
		},
	}
}
