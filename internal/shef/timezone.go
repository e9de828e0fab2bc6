package shef

import (
	"fmt"
	"strings"
	"sync"
	"time"

	// Zone names must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// SHEF single letter zones follow local clock time.
var localZones = map[string]struct {
	name     string
	standard int
}{
	"C": {"America/Chicago", -6},
	"E": {"America/New_York", -5},
	"M": {"America/Denver", -7},
	"P": {"America/Los_Angeles", -8},
}

var fixedZones = map[string]int{
	"UTC": 0,
	"CST": -6,
	"CDT": -5,
	"EST": -5,
	"EDT": -4,
	"MST": -7,
	"MDT": -6,
	"PST": -8,
	"PDT": -7,
}

var zoneCache sync.Map // code -> *time.Location

// ResolveZone maps a SHEF time zone code onto a location. "Z" is UTC, two
// letter codes such as "CD" expand to "CDT", and single letters C, E, M, P
// are the corresponding US local zones.
func ResolveZone(code string) (*time.Location, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if loc, ok := zoneCache.Load(code); ok {
		return loc.(*time.Location), nil
	}
	loc, err := loadZone(code)
	if err != nil {
		return nil, err
	}
	zoneCache.Store(code, loc)
	return loc, nil
}

func loadZone(code string) (*time.Location, error) {
	switch code {
	case "":
		return nil, fmt.Errorf("%w: empty", ErrUnknownZone)
	case "Z":
		return time.UTC, nil
	}

	if z, ok := localZones[code]; ok {
		if loc, err := time.LoadLocation(z.name); err == nil {
			return loc, nil
		}
		return time.FixedZone(z.name, z.standard*3600), nil
	}

	abbr := code
	if len(abbr) == 2 {
		abbr += "T"
	}
	if hours, ok := fixedZones[abbr]; ok {
		return time.FixedZone(abbr, hours*3600), nil
	}
	if loc, err := time.LoadLocation(code); err == nil {
		return loc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownZone, code)
}
