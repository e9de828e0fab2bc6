package domain

import "strings"

// UnknownRegion is assigned to stations that match no region table entry.
const UnknownRegion = "MSG"

// Region is a state-level routing group for SHEF messages.
type Region struct {
	Code string // NWS location id suffix, e.g. "M8"
	Abbr string // postal abbreviation, e.g. "MT"
	Name string
}

// RegionTable is an immutable lookup of regions by id suffix and abbreviation.
type RegionTable struct {
	byCode map[string]Region
	byAbbr map[string]Region
}

// NewRegionTable builds a table from the given regions.
func NewRegionTable(regions ...Region) *RegionTable {
	t := &RegionTable{
		byCode: make(map[string]Region, len(regions)),
		byAbbr: make(map[string]Region, len(regions)),
	}
	for _, r := range regions {
		t.byCode[r.Code] = r
		t.byAbbr[r.Abbr] = r
	}
	return t
}

// Resolve picks the region for a station. A five character SHEF id ending in a
// known state suffix wins, then the first two characters of the raw id are
// tried as a postal abbreviation.
func (t *RegionTable) Resolve(rawID, shefID string) (Region, bool) {
	if len(shefID) == 5 {
		if r, ok := t.byCode[shefID[3:]]; ok {
			return r, true
		}
	}
	if len(rawID) >= 2 {
		if r, ok := t.byAbbr[strings.ToUpper(rawID[:2])]; ok {
			return r, true
		}
	}
	return Region{Abbr: UnknownRegion}, false
}

// ByAbbr returns the region with the given postal abbreviation.
func (t *RegionTable) ByAbbr(abbr string) (Region, bool) {
	r, ok := t.byAbbr[abbr]
	return r, ok
}

// DefaultRegions returns the Missouri Basin state table.
func DefaultRegions() *RegionTable {
	return NewRegionTable(
		Region{Code: "M8", Abbr: "MT", Name: "Montana"},
		Region{Code: "W4", Abbr: "WY", Name: "Wyoming"},
		Region{Code: "C2", Abbr: "CO", Name: "Colorado"},
		Region{Code: "N8", Abbr: "ND", Name: "North Dakota"},
		Region{Code: "S2", Abbr: "SD", Name: "South Dakota"},
		Region{Code: "N1", Abbr: "NE", Name: "Nebraska"},
		Region{Code: "K1", Abbr: "KS", Name: "Kansas"},
		Region{Code: "M5", Abbr: "MN", Name: "Minnesota"},
		Region{Code: "I4", Abbr: "IA", Name: "Iowa"},
		Region{Code: "M7", Abbr: "MO", Name: "Missouri"},
	)
}
