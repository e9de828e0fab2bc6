// Command shefetl decodes SHEF hydrometeorological products into destination
// time series and encodes mesonet exports as SHEF messages.
//
// Usage:
//
//	shefetl decode --crit shef.crit products/*.txt
//	shefetl watch --crit shef.crit --inbox /data/inbox
//	shefetl consume --crit shef.crit
//	shefetl encode --out outgoing export.csv
//	shefetl crit shef.crit
//	shefetl ratings ratings.ini
//
// Settings come from the environment (see internal/config); flags override
// the matching variables.
package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/shef-etl/internal/config"
	"github.com/couchcryptid/shef-etl/internal/observability"
)

// app carries the loaded settings into every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func main() {
	a := &app{}
	cliApp := &cli.App{
		Name:  "shefetl",
		Usage: "SHEF decoding and encoding for CWMS/CHPS data loading",
		Before: func(_ *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return cli.Exit("failed to load config: "+err.Error(), 1)
			}
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg)
			a.metrics = observability.NewMetrics()
			return nil
		},
		Commands: []*cli.Command{
			a.decodeCommand(),
			a.watchCommand(),
			a.consumeCommand(),
			a.encodeCommand(),
			a.critCommand(),
			a.ratingsCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("shefetl failed", "error", err)
		os.Exit(1)
	}
}

func critFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "crit",
		Aliases:  []string{"x"},
		Usage:    "SHEF cross reference file",
		EnvVars:  []string{"SHEF_CRIT"},
		Required: true,
	}
}
