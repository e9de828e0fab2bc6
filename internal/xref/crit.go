package xref

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// critAliasRe splits alias=timeseries_id;remainder.
var critAliasRe = regexp.MustCompile(`^([^=]+)=([^;]+);(.+)$`)

// Alias assigns a destination time series to a group under a SHEF alias.
type Alias struct {
	Name         string `json:"alias"`
	TimeseriesID string `json:"timeseries_id"`
}

// ParseAliases reads the .crit alias dialect. Each alias is the SHEF key joined
// to the attribute remainder with ':'. Lines that do not match are skipped.
func ParseAliases(r io.Reader) ([]Alias, error) {
	var out []Alias
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := critAliasRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, Alias{
			Name:         strings.TrimSpace(m[1]) + ":" + strings.TrimSpace(m[3]),
			TimeseriesID: strings.TrimSpace(m[2]),
		})
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read crit aliases: %w", err)
	}
	return out, nil
}
