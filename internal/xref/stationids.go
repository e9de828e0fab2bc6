package xref

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// StationIDs maps mesonet station identifiers to NWS location identifiers.
type StationIDs map[string]string

// LoadStationIDs reads "mesonet_id | nws_id" lines. Lines containing '#' or
// lacking a separator are ignored.
func LoadStationIDs(r io.Reader) (StationIDs, error) {
	ids := StationIDs{}
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := scan.Text()
		if strings.Contains(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		raw, nws, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		ids[strings.TrimSpace(raw)] = strings.TrimSpace(nws)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read station ids: %w", err)
	}
	return ids, nil
}

// Lookup returns the NWS id for a mesonet id.
func (s StationIDs) Lookup(raw string) (string, bool) {
	id, ok := s[raw]
	return id, ok && id != ""
}
