package shef

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

// header is the positional part of a block: location, date, zone and the
// observation time, followed by the remaining slash delimited fields.
type header struct {
	location string
	ref      time.Time
	fields   []string
}

func parseHeader(b Block) (header, error) {
	head, rest, _ := strings.Cut(stripComment(b.Header()), "/")
	tokens := strings.Fields(head)
	if len(tokens) < 4 {
		return header{}, malformed(b, "expected location, date and time zone", nil)
	}

	year, month, day, err := parseDate(tokens[2])
	if err != nil {
		return header{}, malformed(b, fmt.Sprintf("date %q", tokens[2]), err)
	}

	zoneCode, clock := splitZone(tokens[3])
	switch {
	case len(tokens) == 5 && clock == "" && strings.HasPrefix(strings.ToUpper(tokens[4]), "DH"):
		clock = tokens[4][2:]
	case len(tokens) > 4:
		return header{}, malformed(b, fmt.Sprintf("unexpected token %q", tokens[4]), nil)
	}

	var fields []string
	if rest != "" {
		fields = strings.Split(rest, "/")
	}
	fields, clock = dateFields(fields, clock)

	zone, err := ResolveZone(zoneCode)
	if err != nil {
		return header{}, malformed(b, "time zone", err)
	}
	hh, mm, ss, err := parseClock(clock)
	if err != nil {
		return header{}, malformed(b, fmt.Sprintf("time %q", clock), err)
	}

	// Hour 24 rolls forward to midnight of the next day.
	ref := time.Date(year, month, day, hh, mm, ss, 0, zone).UTC()
	return header{location: tokens[1], ref: ref, fields: fields}, nil
}

// dateFields consumes the leading date and data type fields (D prefixed,
// other than the DI interval). A DH field sets the observation time.
func dateFields(fields []string, clock string) ([]string, string) {
	for len(fields) > 0 {
		f := strings.ToUpper(strings.TrimSpace(fields[0]))
		if f == "" {
			fields = fields[1:]
			continue
		}
		if f[0] != 'D' || strings.HasPrefix(f, "DI") {
			break
		}
		if strings.HasPrefix(f, "DH") {
			clock = f[2:]
		}
		fields = fields[1:]
	}
	return fields, clock
}

// splitZone separates "Z1200" or "ZDH1200" into the zone code and the time
// digits.
func splitZone(tok string) (string, string) {
	i := strings.IndexFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) })
	if i < 0 {
		i = len(tok)
	}
	letters, digits := strings.ToUpper(tok[:i]), tok[i:]
	switch {
	case letters == "DH":
		letters = "Z"
	case len(letters) > 2 && strings.HasSuffix(letters, "DH"):
		letters = letters[:len(letters)-2]
	}
	return letters, digits
}

func parseDate(s string) (int, time.Month, int, error) {
	if !isDigits(s) {
		return 0, 0, 0, errors.New("not numeric")
	}
	var y, m, d int
	switch len(s) {
	case 8:
		y, _ = strconv.Atoi(s[:4])
		m, _ = strconv.Atoi(s[4:6])
		d, _ = strconv.Atoi(s[6:])
	case 6:
		y, _ = strconv.Atoi(s[:2])
		y += 2000
		m, _ = strconv.Atoi(s[2:4])
		d, _ = strconv.Atoi(s[4:])
	case 4:
		y = domain.Now().Year()
		m, _ = strconv.Atoi(s[:2])
		d, _ = strconv.Atoi(s[2:])
	default:
		return 0, 0, 0, errors.New("expected YYYYMMDD, YYMMDD or MMDD")
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(m) || t.Day() != d {
		return 0, 0, 0, errors.New("no such day")
	}
	return y, time.Month(m), d, nil
}

func parseClock(s string) (int, int, int, error) {
	if s == "" {
		return 0, 0, 0, nil
	}
	if !isDigits(s) {
		return 0, 0, 0, errors.New("not numeric")
	}
	var hh, mm, ss int
	switch len(s) {
	case 6:
		ss, _ = strconv.Atoi(s[4:6])
		fallthrough
	case 4:
		mm, _ = strconv.Atoi(s[2:4])
		fallthrough
	case 2:
		hh, _ = strconv.Atoi(s[:2])
	default:
		return 0, 0, 0, errors.New("expected HH, HHMM or HHMMSS")
	}
	if hh > 24 || mm > 59 || ss > 59 || (hh == 24 && (mm > 0 || ss > 0)) {
		return 0, 0, 0, errors.New("out of range")
	}
	return hh, mm, ss, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
