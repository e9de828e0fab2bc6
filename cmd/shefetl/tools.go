package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/shef-etl/internal/adapter/cda"
	"github.com/couchcryptid/shef-etl/internal/adapter/file"
	"github.com/couchcryptid/shef-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/shef-etl/internal/config"
	"github.com/couchcryptid/shef-etl/internal/ratingini"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

// groupAssigner stores .crit aliases under a time series group.
type groupAssigner interface {
	AssignGroup(ctx context.Context, group string, aliases []xref.Alias) error
}

func openFile(path string) (io.ReadCloser, error) {
	return file.New(path).Open(context.Background())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) critCommand() *cli.Command {
	return &cli.Command{
		Name:      "crit",
		Usage:     "import .crit aliases into the SHEF acquisition time series group",
		ArgsUsage: "FILE.crit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Usage: "time series group (default $CDA_GROUP)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("crit needs exactly one file", 2)
			}
			rc, err := openFile(c.Args().First())
			if err != nil {
				return err
			}
			aliases, err := xref.ParseAliases(rc)
			rc.Close()
			if err != nil {
				return err
			}

			group := c.String("group")
			if group == "" {
				group = a.cfg.CDAGroup
			}

			var targets []groupAssigner
			if a.cfg.HasSink(config.SinkCDA) {
				targets = append(targets, cda.NewClient(a.cfg.CDAURL, a.cfg.CDAAPIKey, a.cfg.CDAOffice, a.cfg.CDATimeout, a.logger, a.metrics))
			}
			if a.cfg.HasSink(config.SinkSQLite) {
				st, err := sqlite.Open(c.Context, a.cfg.SQLitePath, a.logger)
				if err != nil {
					return err
				}
				defer st.Close()
				targets = append(targets, st)
			}
			if len(targets) == 0 {
				return writeJSON(c.App.Writer, aliases)
			}

			for _, t := range targets {
				if err := t.AssignGroup(c.Context, group, aliases); err != nil {
					return err
				}
			}
			a.logger.Info("crit aliases imported", "group", group, "aliases", len(aliases))
			return nil
		},
	}
}

func (a *app) ratingsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ratings",
		Usage:     "list the rating specifications defined in a rating ini file",
		ArgsUsage: "FILE.ini",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("ratings needs exactly one file", 2)
			}
			rc, err := openFile(c.Args().First())
			if err != nil {
				return err
			}
			defer rc.Close()

			updates, err := ratingini.Parse(rc)
			if err != nil {
				return fmt.Errorf("parse %s: %w", c.Args().First(), err)
			}
			specs := ratingini.Collapse(updates)
			a.logger.Info("rating specs parsed", "updates", len(updates), "specs", len(specs))
			return writeJSON(c.App.Writer, specs)
		},
	}
}
