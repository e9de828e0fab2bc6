// Command validate checks that a mesonet export survives the trip through the
// SHEF encoder and back through the decoder: message layout limits, section
// coverage, and value agreement within the encoded precision.
//
// Usage:
//
//	go run ./cmd/genmock --out data/mock/mesonet.csv
//	go run ./cmd/validate data/mock/mesonet.csv
package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/mesonet"
	"github.com/couchcryptid/shef-etl/internal/normalize"
	"github.com/couchcryptid/shef-etl/internal/shef"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	app := &cli.App{
		Name:      "validate",
		Usage:     "round trip a mesonet export through the SHEF encoder and decoder",
		ArgsUsage: "EXPORT.csv",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-line", Value: shef.DefaultMaxLineLength, Usage: "maximum .E1 line length"},
			&cli.IntFlag{Name: "max-locations", Value: shef.DefaultMaxLocations, Usage: "maximum stations per message"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("validate needs one export file", 1)
			}
			cfg := shef.DefaultEncoderConfig()
			cfg.MaxLineLength = c.Int("max-line")
			cfg.MaxLocations = c.Int("max-locations")
			if code := run(c.Args().First(), cfg); code != 0 {
				return cli.Exit("", code)
			}
			return nil
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string, cfg shef.EncoderConfig) int {
	// Fixed issue time so message file names are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.May, 2, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== SHEF Round Trip Validation ===")
	fmt.Println()

	export, err := mesonet.ParseFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load export: %v\n", err)
		return 1
	}

	params, regions := domain.DefaultParameters(), domain.DefaultRegions()
	stations := normalize.New(params, regions, nil).Stations(export.Readings)
	messages, report := shef.NewEncoder(cfg, params, regions, nil).Encode(stations)

	decoded, err := decodeAll(messages, stations, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode messages: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateExport(export),
		validateLayout(messages, cfg),
		validateCoverage(stations, report, messages),
		validateValues(stations, decoded, params),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d readings, %d stations, %d messages, %d decoded paths\n",
		len(export.Readings), len(stations), len(messages), len(decoded))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// seriesPath names the destination series for one station parameter. Vector
// sections of every depth share one SHEF element, so they share a path and
// are told apart by the depth carried in each value.
func seriesPath(shefID string, spec domain.ParameterSpec, s domain.StationSeries) string {
	if spec.Vector {
		return shefID + "." + spec.Name
	}
	return shefID + "." + s.Column()
}

// crossReference builds a table routing every encoded section to its own
// destination path.
func crossReference(stations []domain.Station, params *domain.ParameterTable) (*xref.Table, error) {
	var b strings.Builder
	for _, st := range stations {
		for _, s := range st.Series {
			spec, ok := params.Lookup(s.Column())
			if !ok {
				continue
			}
			version := "IRZ"
			if spec.Hourly {
				version = "HRZ"
			}
			fmt.Fprintf(&b, "%s.%s.%s.Z=%s;Units=%s\n", st.ShefID, spec.Code, version, seriesPath(st.ShefID, spec, s), s.Unit)
		}
	}
	return xref.Load(strings.NewReader(b.String()))
}

// decodeAll decodes every message and returns the observations of each block
// by path.
func decodeAll(messages []shef.Message, stations []domain.Station, params *domain.ParameterTable) (map[string][]domain.TimeSeries, error) {
	table, err := crossReference(stations, params)
	if err != nil {
		return nil, err
	}
	dec := shef.NewDecoder(table)
	out := make(map[string][]domain.TimeSeries)
	for _, m := range messages {
		for b, err := range shef.NewTokenizer(strings.NewReader(m.String())).Blocks() {
			if err != nil {
				return nil, err
			}
			res, err := dec.Decode(b)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", m.FileName(""), b.Line, err)
			}
			for _, obs := range res.Observations {
				out[obs.Path] = append(out[obs.Path], obs)
			}
		}
	}
	return out, nil
}

func validateExport(export *mesonet.Export) *phase {
	p := &phase{name: "Mesonet Export"}
	fmt.Println("Phase 1: Mesonet Export")
	if len(export.Readings) == 0 {
		p.errorf("no readings in export")
	}
	for _, re := range export.Skipped {
		p.errorf("%v", re)
	}
	return p
}

func validateLayout(messages []shef.Message, cfg shef.EncoderConfig) *phase {
	p := &phase{name: "Message Layout"}
	fmt.Println("Phase 2: Message Layout")
	for _, m := range messages {
		name := m.FileName("")
		if m.Locations < 1 || m.Locations > cfg.MaxLocations {
			p.errorf("%s: %d locations, want 1..%d", name, m.Locations, cfg.MaxLocations)
		}
		if !strings.HasSuffix(m.Footer, "NNNN") {
			p.errorf("%s: footer %q", name, m.Footer)
		}
		for i, line := range strings.Split(m.Body, "\n") {
			if strings.HasPrefix(line, ".E1") && len(line) > cfg.MaxLineLength {
				p.errorf("%s body line %d: %d chars", name, i+1, len(line))
			}
		}
	}
	return p
}

func validateCoverage(stations []domain.Station, report shef.Report, messages []shef.Message) *phase {
	p := &phase{name: "Station Coverage"}
	fmt.Println("Phase 3: Station Coverage")

	encoded := 0
	for _, m := range messages {
		encoded += m.Locations
	}
	dropped := 0
	for _, d := range report.DroppedRegions {
		dropped += len(d.Stations)
		p.errorf("region %q dropped with %d stations", d.Region, len(d.Stations))
	}
	if encoded+dropped != len(stations) {
		p.errorf("%d stations in, %d encoded, %d dropped", len(stations), encoded, dropped)
	}
	for _, s := range report.Skipped {
		p.errorf("%s %s skipped: %s", s.Station, s.Column, s.Reason)
	}
	return p
}

func validateValues(stations []domain.Station, decoded map[string][]domain.TimeSeries, params *domain.ParameterTable) *phase {
	p := &phase{name: "Round Trip Values"}
	fmt.Println("Phase 4: Round Trip Values")

	for _, st := range stations {
		for _, s := range st.Series {
			spec, ok := params.Lookup(s.Column())
			if !ok || len(s.Values) == 0 {
				continue
			}
			path := seriesPath(st.ShefID, spec, s)
			ts, ok := pick(decoded[path], spec, s)
			if !ok {
				p.errorf("%s: not decoded", path)
				continue
			}
			compareSeries(p, path, spec, s, ts)
		}
	}
	return p
}

// pick returns the decoded block matching s. Vector blocks are matched on
// the depth encoded in their first present value.
func pick(blocks []domain.TimeSeries, spec domain.ParameterSpec, s domain.StationSeries) (domain.TimeSeries, bool) {
	if !spec.Vector {
		if len(blocks) == 0 {
			return domain.TimeSeries{}, false
		}
		return blocks[0], true
	}
	want, err := strconv.Atoi(s.Depth)
	if err != nil {
		return domain.TimeSeries{}, false
	}
	for _, ts := range blocks {
		for _, sm := range ts.Values {
			if sm.Missing() {
				continue
			}
			depth, _, err := normalize.DecodeVector(fmt.Sprintf("%.4f", sm.Value))
			if err == nil && depth == want {
				return ts, true
			}
			break
		}
	}
	return domain.TimeSeries{}, false
}

func compareSeries(p *phase, path string, spec domain.ParameterSpec, s domain.StationSeries, ts domain.TimeSeries) {
	want := s.Sorted()
	start := want[0].Time
	got := make(map[int64]domain.Sample, len(ts.Values))
	for _, v := range ts.Values {
		got[v.Time] = v
	}

	tolerance := 0.5 * math.Pow(10, -float64(spec.Precision()))
	if spec.Vector {
		tolerance = 0.05
	}

	for i, r := range want {
		// Sections are written hourly from the first reading.
		at := start.Add(time.Duration(i) * time.Hour).UnixMilli()
		sm, ok := got[at]
		if !ok {
			p.errorf("%s: no sample at %s", path, time.UnixMilli(at).UTC().Format(time.RFC3339))
			continue
		}
		if r.Missing {
			if !sm.Missing() {
				p.errorf("%s at %d: want missing, got %v", path, at, sm.Value)
			}
			continue
		}
		v := sm.Value
		if spec.Vector {
			_, dv, err := normalize.DecodeVector(fmt.Sprintf("%.4f", v))
			if err != nil {
				p.errorf("%s at %d: %v", path, at, err)
				continue
			}
			v = dv
		}
		if math.Abs(v-r.Value) > tolerance+1e-9 {
			p.errorf("%s at %d: want %.4f, got %.4f", path, at, r.Value, v)
		}
	}
	if len(ts.Values) != len(want) {
		p.errorf("%s: decoded %d samples, encoded %d", path, len(ts.Values), len(want))
	}
}
