package shef

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/normalize"
)

const (
	DefaultMaxLineLength = 65
	DefaultMaxLocations  = 60
)

// EncoderConfig controls message layout.
type EncoderConfig struct {
	MaxLineLength int
	MaxLocations  int
	// Routing is the WMO heading written before the issue time.
	Routing string
	// Product is the AFOS product line.
	Product string
	Banner  []string
}

// DefaultEncoderConfig returns the MBRFC mesonet product layout.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		MaxLineLength: DefaultMaxLineLength,
		MaxLocations:  DefaultMaxLocations,
		Routing:       "SRUS83 KKRF",
		Product:       "RR8KRF",
		Banner: []string{
			"US Army Corp of Engineers",
			"Upper Missouri River Basin Plains",
			"Snow and Soil Moisture Network",
		},
	}
}

// Message is one SHEF product for a region.
type Message struct {
	Region    domain.Region
	Sequence  int
	Issued    time.Time
	Locations int
	Header    string
	Body      string
	Footer    string
}

func (m Message) String() string {
	return m.Header + m.Body + m.Footer
}

// FileName names the message file. An empty base gives the default
// "{ST}_Mesonet_SHEF_{stamp}_{seq}.txt"; otherwise the base name and
// extension are kept around the region and stamp.
func (m Message) FileName(base string) string {
	stamp := m.Issued.Format("20060102_150405")
	if base == "" {
		return fmt.Sprintf("%s_Mesonet_SHEF_%s_%d.txt", m.Region.Abbr, stamp, m.Sequence)
	}
	name, ext, ok := strings.Cut(base, ".")
	if !ok || ext == "" {
		ext = "txt"
	}
	return fmt.Sprintf("%s_%s_%s_%d.%s", m.Region.Abbr, name, stamp, m.Sequence, ext)
}

// SkippedSection is a station parameter that was not encoded.
type SkippedSection struct {
	Station string
	Column  string
	Reason  string
}

// DroppedRegion is a region with no known message routing.
type DroppedRegion struct {
	Region   string
	Stations []string
}

// Report lists what an encode run left out.
type Report struct {
	Skipped        []SkippedSection
	DroppedRegions []DroppedRegion
}

// Encoder writes stations as .E messages grouped by region.
type Encoder struct {
	cfg     EncoderConfig
	params  *domain.ParameterTable
	regions *domain.RegionTable
	logger  *slog.Logger
}

// NewEncoder returns an encoder. Zero limits in cfg fall back to the defaults.
func NewEncoder(cfg EncoderConfig, params *domain.ParameterTable, regions *domain.RegionTable, logger *slog.Logger) *Encoder {
	def := DefaultEncoderConfig()
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = def.MaxLineLength
	}
	if cfg.MaxLocations <= 0 {
		cfg.MaxLocations = def.MaxLocations
	}
	if cfg.Routing == "" {
		cfg.Routing = def.Routing
	}
	if cfg.Product == "" {
		cfg.Product = def.Product
	}
	if cfg.Banner == nil {
		cfg.Banner = def.Banner
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Encoder{cfg: cfg, params: params, regions: regions, logger: logger}
}

// Encode groups stations by region and builds messages for each known
// region, ordered by region abbreviation.
func (e *Encoder) Encode(stations []domain.Station) ([]Message, Report) {
	byRegion := make(map[string][]domain.Station)
	for _, st := range stations {
		byRegion[st.Region] = append(byRegion[st.Region], st)
	}
	abbrs := make([]string, 0, len(byRegion))
	for abbr := range byRegion {
		abbrs = append(abbrs, abbr)
	}
	sort.Strings(abbrs)

	var msgs []Message
	var report Report
	for _, abbr := range abbrs {
		group := byRegion[abbr]
		region, ok := e.regions.ByAbbr(abbr)
		if !ok {
			ids := make([]string, len(group))
			for i, st := range group {
				ids[i] = st.RawID
			}
			e.logger.Warn("invalid region, data skipped", "region", abbr, "stations", ids)
			report.DroppedRegions = append(report.DroppedRegions, DroppedRegion{Region: abbr, Stations: ids})
			continue
		}
		m, r := e.Messages(region, group)
		msgs = append(msgs, m...)
		report.Skipped = append(report.Skipped, r.Skipped...)
	}
	return msgs, report
}

// Messages builds the messages for one region, starting a new message after
// every MaxLocations stations that produced at least one section.
func (e *Encoder) Messages(region domain.Region, stations []domain.Station) ([]Message, Report) {
	issued := domain.Now()
	var report Report
	var msgs []Message

	var body strings.Builder
	locations := 0
	flush := func() {
		if locations == 0 {
			return
		}
		msgs = append(msgs, Message{
			Region:    region,
			Sequence:  len(msgs) + 1,
			Issued:    issued,
			Locations: locations,
			Header:    e.header(region, issued),
			Body:      body.String(),
			Footer:    "\n:END OF MESSAGE\nNNNN",
		})
		body.Reset()
		locations = 0
	}

	for _, st := range stations {
		text := e.station(st, &report)
		if text == "" {
			continue
		}
		if locations == e.cfg.MaxLocations {
			flush()
		}
		body.WriteString(text)
		locations++
	}
	flush()
	return msgs, report
}

func (e *Encoder) header(region domain.Region, issued time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s\n%s\n\n", e.cfg.Routing, issued.Format("021504"), e.cfg.Product)
	for _, line := range e.cfg.Banner {
		fmt.Fprintf(&b, ": %s\n", line)
	}
	fmt.Fprintf(&b, "\n: %s Mesonet Data\n\n\n", region.Name)
	return b.String()
}

// station writes every encodable parameter section of st.
func (e *Encoder) station(st domain.Station, report *Report) string {
	var b strings.Builder
	for _, series := range st.Series {
		skip := func(reason string) {
			e.logger.Warn("parameter not encoded", "station", st.RawID, "column", series.Column(), "reason", reason)
			report.Skipped = append(report.Skipped, SkippedSection{Station: st.RawID, Column: series.Column(), Reason: reason})
		}

		spec, ok := e.params.Lookup(series.Column())
		if !ok {
			skip("unmapped parameter")
			continue
		}
		start, ok := series.Start()
		if !ok {
			skip("no values")
			continue
		}
		values, err := e.values(st.RawID, spec, series)
		if err != nil {
			skip(err.Error())
			continue
		}
		e.section(&b, st.ShefID, spec, series, start, values)
	}
	return b.String()
}

func (e *Encoder) section(b *strings.Builder, shefID string, spec domain.ParameterSpec, series domain.StationSeries, start time.Time, values []string) {
	unit := strings.ReplaceAll(series.Unit, "%", "pct")
	if spec.Vector {
		fmt.Fprintf(b, ": %s (%s at %s inch depth)\n", spec.Description, unit, series.Depth)
	} else {
		fmt.Fprintf(b, ": %s (%s)\n", spec.Description, unit)
	}

	duration := "I"
	if spec.Hourly {
		duration = "H"
	}
	start = start.UTC()
	fmt.Fprintf(b, ".E %s %s Z DH%s%s/%s%sRZ/DIH1\n",
		shefID, start.Format("060102"), start.Format("1504"), unitsFlag(series.Unit), spec.Code, duration)

	line := ""
	for _, v := range values {
		switch {
		case line == "":
			line = ".E1 " + v
		case len(line)+1+len(v) > e.cfg.MaxLineLength:
			b.WriteString(line + "\n")
			line = ".E1 " + v
		default:
			line += "/" + v
		}
	}
	if line != "" {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n\n")
}

func (e *Encoder) values(stationID string, spec domain.ParameterSpec, series domain.StationSeries) ([]string, error) {
	depth := 0
	if spec.Vector {
		d, err := strconv.Atoi(series.Depth)
		if err != nil {
			return nil, fmt.Errorf("invalid depth %q", series.Depth)
		}
		depth = d
	}

	readings := series.Sorted()
	out := make([]string, 0, len(readings))
	for _, r := range readings {
		if r.Missing || r.Value == -9999 {
			out = append(out, domain.MissingText)
			continue
		}
		if !spec.Vector {
			out = append(out, normalize.Round(r.Value, spec.Precision()))
			continue
		}
		v, err := normalize.EncodeVector(depth, r.Value)
		if err != nil {
			e.logger.Warn("vector value written as missing",
				"station", stationID, "column", series.Column(), "time", r.Time, "error", err)
			v = domain.MissingText
		}
		out = append(out, v)
	}
	return out, nil
}

// unitsFlag returns the /DUE or /DUS units field. Unitless parameters carry none.
func unitsFlag(unit string) string {
	switch unit {
	case "%", "pct", "deg":
		return ""
	case "in", "ft", "F", "mph":
		return "/DUE"
	}
	return "/DUS"
}
