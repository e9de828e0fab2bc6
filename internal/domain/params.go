package domain

import "strings"

// DefaultDecimals is the rounding applied to values without an explicit R<n> modifier.
const DefaultDecimals = 2

// UnitSystem selects the conversion applied before encoding.
type UnitSystem int

const (
	UnitsAsIs UnitSystem = iota
	UnitsEnglish
	UnitsMetric
)

// ParameterSpec describes how a mesonet parameter maps onto a SHEF element.
type ParameterSpec struct {
	Name        string // mesonet column base name
	Code        string // SHEF physical element code
	Description string // comment text, units are appended on encode
	Units       UnitSystem
	Hourly      bool // sum 5-minute samples into hourly totals
	Vector      bool // depth-prefixed vector encoding
	Rounded     bool // Decimals overrides DefaultDecimals
	Decimals    int
}

// Precision returns the number of decimals to round to.
func (p ParameterSpec) Precision() int {
	if p.Rounded {
		return p.Decimals
	}
	return DefaultDecimals
}

// ParameterTable is an immutable set of parameter mappings.
type ParameterTable struct {
	specs  []ParameterSpec
	byName map[string]int
}

// NewParameterTable builds a table; later specs with the same name replace earlier ones.
func NewParameterTable(specs ...ParameterSpec) *ParameterTable {
	t := &ParameterTable{byName: make(map[string]int, len(specs))}
	for _, s := range specs {
		if i, ok := t.byName[s.Name]; ok {
			t.specs[i] = s
			continue
		}
		t.byName[s.Name] = len(t.specs)
		t.specs = append(t.specs, s)
	}
	return t
}

// Lookup finds the spec for a column name such as "Temp-Soil_4". The base name
// before any depth suffix is matched exactly first, then by containment.
func (t *ParameterTable) Lookup(column string) (ParameterSpec, bool) {
	base, _, _ := strings.Cut(column, "_")
	if i, ok := t.byName[base]; ok {
		return t.specs[i], true
	}
	for _, s := range t.specs {
		if strings.Contains(column, s.Name) {
			return s, true
		}
	}
	return ParameterSpec{}, false
}

// Specs returns a copy of the table entries in declaration order.
func (t *ParameterTable) Specs() []ParameterSpec {
	out := make([]ParameterSpec, len(t.specs))
	copy(out, t.specs)
	return out
}

// DefaultParameters returns the mesonet network parameter table.
func DefaultParameters() *ParameterTable {
	return NewParameterTable(
		ParameterSpec{Name: "%-RelativeHumidity", Code: "XR", Description: "Relative humidity"},
		ParameterSpec{Name: "Depth-Snow", Code: "SD", Description: "Snow depth", Units: UnitsEnglish},
		ParameterSpec{Name: "Dir-Wind", Code: "UD", Description: "Wind direction", Rounded: true, Decimals: 0},
		ParameterSpec{Name: "Irrad", Code: "RW", Description: "Solar radiation", Hourly: true},
		ParameterSpec{Name: "Precip", Code: "PP", Description: "Precipitation", Hourly: true, Units: UnitsEnglish},
		ParameterSpec{Name: "Speed-Wind", Code: "US", Description: "Wind speed", Units: UnitsEnglish},
		ParameterSpec{Name: "Temp-Air", Code: "TA", Description: "Air temperature", Units: UnitsEnglish},
		ParameterSpec{Name: "%-SoilMoisture", Code: "MV", Description: "Soil moisture", Vector: true},
		ParameterSpec{Name: "Temp-Soil", Code: "TB", Description: "Soil temperature", Vector: true, Units: UnitsEnglish},
	)
}
