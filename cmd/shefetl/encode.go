package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/normalize"
	"github.com/couchcryptid/shef-etl/internal/pipeline"
	"github.com/couchcryptid/shef-etl/internal/shef"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

func (a *app) encodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "encode mesonet CSV exports as SHEF .E messages",
		ArgsUsage: "EXPORT.csv...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory", Value: "."},
			&cli.StringFlag{Name: "name", Usage: "base file name, e.g. mesonet.shef (default {ST}_Mesonet_SHEF_...)"},
			&cli.StringFlag{Name: "stations", Usage: "station id cross reference (id|nwsid per line)"},
			&cli.BoolFlag{Name: "gzip", Usage: "gzip each message file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("encode needs at least one export", 2)
			}
			feeds, err := inputs(c.Args().Slice())
			if err != nil {
				return err
			}

			params, regions := domain.DefaultParameters(), domain.DefaultRegions()
			opts := []normalize.Option{normalize.WithMissingTokens(a.cfg.MesonetMissing)}
			if path := c.String("stations"); path != "" {
				ids, err := loadStationIDs(path)
				if err != nil {
					return err
				}
				opts = append(opts, normalize.WithStationIDs(ids))
			}

			encCfg := shef.DefaultEncoderConfig()
			encCfg.MaxLineLength = a.cfg.MaxLineLength
			encCfg.MaxLocations = a.cfg.MaxLocations

			run := &pipeline.EncodeRun{
				Normalizer: normalize.New(params, regions, a.logger, opts...),
				Encoder:    shef.NewEncoder(encCfg, params, regions, a.logger),
				OutDir:     c.String("out"),
				BaseName:   c.String("name"),
				Compress:   c.Bool("gzip"),
				Logger:     a.logger,
				Metrics:    a.metrics,
			}
			paths, _, err := run.Run(c.Context, feeds...)
			if errors.Is(err, pipeline.ErrNoInput) {
				return cli.Exit(err.Error(), 3)
			}
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(c.App.Writer, p)
			}
			return nil
		},
	}
}

func loadStationIDs(path string) (xref.StationIDs, error) {
	rc, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	ids, err := xref.LoadStationIDs(rc)
	if err != nil {
		return nil, fmt.Errorf("load station ids %s: %w", path, err)
	}
	return ids, nil
}
