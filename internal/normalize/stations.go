package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

// IDResolver maps a mesonet station id onto a NWS location id.
type IDResolver interface {
	Lookup(raw string) (string, bool)
}

// Normalizer groups mesonet readings into stations ready for SHEF encoding.
type Normalizer struct {
	params  *domain.ParameterTable
	regions *domain.RegionTable
	ids     IDResolver
	missing []string
	logger  *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStationIDs sets the station id cross reference.
func WithStationIDs(ids IDResolver) Option {
	return func(n *Normalizer) { n.ids = ids }
}

// WithMissingTokens replaces the missing-data markers recognized in readings.
func WithMissingTokens(tokens ...string) Option {
	return func(n *Normalizer) { n.missing = tokens }
}

// New creates a Normalizer. A nil logger discards output.
func New(params *domain.ParameterTable, regions *domain.RegionTable, logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Normalizer{
		params:  params,
		regions: regions,
		missing: []string{DefaultMissingToken},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type stationBuild struct {
	station domain.Station
	series  map[string]int
}

// Stations converts time-ordered readings into stations. Only top-of-hour
// rows are kept; hourly parameters carry the sum of the preceding twelve
// 5-minute samples, or missing when the hour is incomplete.
func (n *Normalizer) Stations(readings []domain.StationReading) []domain.Station {
	acc := NewHourlyAccumulator()
	builds := make(map[string]*stationBuild)
	var order []string

	for _, r := range readings {
		b, ok := builds[r.StationID]
		if !ok {
			b = n.newStation(r.StationID)
			builds[r.StationID] = b
			order = append(order, r.StationID)
		}

		spec, mapped := n.params.Lookup(r.Column())
		topOfHour := r.Time.Minute() == 0 && r.Time.Second() == 0
		text := strings.TrimSpace(r.Value)

		var reading domain.Reading
		switch {
		case mapped && spec.Hourly:
			key := r.StationID + "|" + r.Column()
			v, numErr := strconv.ParseFloat(text, 64)
			numeric := numErr == nil && !IsMissing(text, n.missing...)
			if numeric {
				acc.Add(key, r.Time, v)
			}
			if !topOfHour {
				continue
			}
			sum, complete := acc.Close(key, r.Time)
			reading = domain.Reading{Time: r.Time, Value: sum, Missing: !complete}
		case !topOfHour || text == "":
			continue
		case IsMissing(text, n.missing...):
			reading = domain.Reading{Time: r.Time, Missing: true}
		default:
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				n.logger.Warn("non-numeric reading treated as missing",
					"station", r.StationID, "column", r.Column(), "value", text)
				reading = domain.Reading{Time: r.Time, Missing: true}
				break
			}
			reading = domain.Reading{Time: r.Time, Value: v}
		}

		unit := r.Unit
		if mapped && spec.Units != domain.UnitsAsIs {
			unit = n.convert(&reading, r, spec.Units)
		}
		n.append(b, r, unit, reading)
	}

	out := make([]domain.Station, 0, len(order))
	for _, id := range order {
		out = append(out, builds[id].station)
	}
	return out
}

func (n *Normalizer) convert(reading *domain.Reading, r domain.StationReading, system domain.UnitSystem) string {
	fn := ToEnglish
	if system == domain.UnitsMetric {
		fn = ToMetric
	}
	v, unit, err := fn(reading.Value, r.Unit)
	var uerr *UnsupportedUnitError
	if errors.As(err, &uerr) {
		n.logger.Warn("unit conversion skipped",
			"station", r.StationID, "column", r.Column(), "unit", r.Unit)
		return r.Unit
	}
	if !reading.Missing {
		reading.Value = v
	}
	return unit
}

func (n *Normalizer) append(b *stationBuild, r domain.StationReading, unit string, reading domain.Reading) {
	col := r.Column()
	i, ok := b.series[col]
	if !ok {
		i = len(b.station.Series)
		b.series[col] = i
		b.station.Series = append(b.station.Series, domain.StationSeries{
			Parameter: r.Parameter,
			Depth:     r.Depth,
			Unit:      unit,
		})
	}
	b.station.Series[i].Values = append(b.station.Series[i].Values, reading)
}

func (n *Normalizer) newStation(raw string) *stationBuild {
	shefID, note := n.ShefID(raw)
	region, ok := n.regions.Resolve(raw, shefID)
	if !ok {
		n.logger.Warn("no region for station", "station", raw, "shef_id", shefID)
	}
	return &stationBuild{
		station: domain.Station{RawID: raw, ShefID: shefID, Region: region.Abbr, Note: note},
		series:  make(map[string]int),
	}
}

// ShefID resolves the NWS location id for a mesonet station. The note is set
// when the id had to be generated from the raw id.
func (n *Normalizer) ShefID(raw string) (string, string) {
	if isNWSID(raw) {
		return strings.ToUpper(raw), ""
	}
	if n.ids != nil {
		if id, ok := n.ids.Lookup(raw); ok {
			return strings.ToUpper(id), ""
		}
	}
	if len(raw) <= 8 {
		n.logger.Warn("station id not in cross reference, using as-is", "station", raw)
		return strings.ToUpper(raw), ""
	}
	id := strings.ToUpper(raw[:8])
	note := fmt.Sprintf("No valid lid was found for %s. Using %s", raw, id)
	n.logger.Warn("generated station id", "station", raw, "shef_id", id)
	return id, note
}

// isNWSID matches the 5 character NWS location form, e.g. BOZM8.
func isNWSID(s string) bool {
	return len(s) == 5 && unicode.IsLetter(rune(s[3])) && unicode.IsDigit(rune(s[4]))
}
