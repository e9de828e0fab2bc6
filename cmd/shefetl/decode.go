package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/shef-etl/internal/adapter/file"
	"github.com/couchcryptid/shef-etl/internal/pipeline"
	"github.com/couchcryptid/shef-etl/internal/shef"
)

func (a *app) decoderOptions() []shef.DecoderOption {
	return []shef.DecoderOption{shef.WithDefaultVersion(a.cfg.DefaultVersion)}
}

func (a *app) decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode SHEF products once and store the series",
		ArgsUsage: "PRODUCT... (- for stdin)",
		Flags: []cli.Flag{
			critFlag(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "JSON lines output file for the jsonl sink (- for stdout)",
				Value:   "-",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("decode needs at least one product", 2)
			}
			feeds, err := inputs(c.Args().Slice())
			if err != nil {
				return err
			}

			sinks, err := a.openSinks(c.Context, c.String("out"))
			if err != nil {
				return err
			}
			defer sinks.Close()

			loader := pipeline.NewLoader(sinks.MultiSink, a.logger, a.metrics, a.decoderOptions()...)
			sum, err := loader.Run(c.Context, file.New(c.String("crit")), feeds...)
			if errors.Is(err, pipeline.ErrNoInput) {
				return cli.Exit(err.Error(), 3)
			}
			if err != nil {
				return err
			}
			if len(sum.SinkFailures) > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d series were not stored", len(sum.SinkFailures), len(sum.SinkFailures)+sum.Stored), 4)
			}
			return nil
		},
	}
}
