// Package ratingini reads USGS rating ini files and extracts the rating
// specifications that should be flagged for automatic USGS updates.
package ratingini

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"
)

// Keywords assigned with key=value lines.
var Keywords = []string{"cwms_office", "db_base", "db_exsa", "db_corr", "localid"}

// ratingType maps a store directive onto its database keyword and the
// description appended to the specification.
type ratingType struct {
	dbType      string
	description string
}

var ratingTypes = map[string]ratingType{
	"store_corr": {"db_corr", "USGS-CORR"},
	"store_base": {"db_base", "USGS-BASE"},
	"store_exsa": {"db_exsa", "USGS-EXSA"},
}

// SpecUpdate is one rating specification to update.
type SpecUpdate struct {
	RatingID    string `json:"rating_id"`
	Office      string `json:"office_id"`
	Description string `json:"description"`
}

// ParseLine splits an ini line into fields. Quoted fields keep their spaces
// and a doubled backslash is a literal backslash; otherwise tabs separate fields
// when present and whitespace when not.
func ParseLine(line string) []string {
	if strings.IndexAny(line, `'"`) > 0 {
		return splitQuoted(line)
	}
	if strings.Index(line, "\t") > 0 {
		return strings.Split(line, "\t")
	}
	return strings.Fields(line)
}

func splitQuoted(line string) []string {
	var fields []string
	var cur strings.Builder
	inField := false
	escape := false
	var quote rune

	for _, c := range line {
		switch {
		case c == '\\':
			escape = !escape
			if !escape {
				cur.WriteRune(c)
				inField = true
			}
			continue
		case (c == '"' || c == '\'') && quote == 0:
			quote = c
			inField = true
			continue
		case c == quote:
			quote = 0
			continue
		case unicode.IsSpace(c) && quote == 0:
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
			continue
		}
		cur.WriteRune(c)
		inField = true
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields
}

// Parse reads an ini file and returns the specification updates it names,
// in file order. A directive that references an unassigned keyword is an
// error.
func Parse(r io.Reader) ([]SpecUpdate, error) {
	params := make(map[string]string)
	var out []SpecUpdate

	scan := bufio.NewScanner(r)
	lineNum := 0
	for scan.Scan() {
		lineNum++
		line := strings.TrimSpace(scan.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		if key, value, ok := strings.Cut(line, "="); ok {
			if slices.Contains(Keywords, key) {
				params[key] = value
			}
			continue
		}

		fields := ParseLine(line)
		if len(fields) == 0 {
			continue
		}
		rt, ok := ratingTypes[fields[0]]
		if !ok || !slices.Contains(fields, "$(${"+rt.dbType+"})") {
			continue
		}
		spec, ok := params[rt.dbType]
		if !ok {
			return nil, fmt.Errorf("line %d: %s used before assignment", lineNum, rt.dbType)
		}
		localID := params["localid"]
		spec = strings.ReplaceAll(spec, `\$localid`, localID)
		spec = strings.ReplaceAll(spec, "$localid", localID)
		out = append(out, SpecUpdate{RatingID: spec, Office: params["cwms_office"], Description: rt.description})
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read rating ini: %w", err)
	}
	return out, nil
}

// MergeDescription appends the update description to an existing
// specification description unless it is already present.
func MergeDescription(existing, description string) string {
	switch {
	case existing == "":
		return description
	case strings.Contains(existing, description):
		return existing
	}
	return existing + " " + description
}


// Collapse folds updates that name the same rating and office into one,
// merging their descriptions. First-seen order is kept.
func Collapse(updates []SpecUpdate) []SpecUpdate {
	out := make([]SpecUpdate, 0, len(updates))
	index := make(map[[2]string]int)
	for _, u := range updates {
		k := [2]string{u.Office, u.RatingID}
		if i, ok := index[k]; ok {
			out[i].Description = MergeDescription(out[i].Description, u.Description)
			continue
		}
		index[k] = len(out)
		out = append(out, u)
	}
	return out
}
