package shef

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/couchcryptid/shef-etl/internal/domain"
	"github.com/couchcryptid/shef-etl/internal/normalize"
	"github.com/couchcryptid/shef-etl/internal/xref"
)

// Resolver maps a SHEF location, parameter and version onto a destination.
type Resolver interface {
	Lookup(location, parameter, version string) (xref.Entry, bool)
}

// Result is the outcome of decoding one block. Unresolved lists keys that
// had no cross reference entry; those values are dropped. Unsupported is set
// for block types that are recognized but not decoded.
type Result struct {
	Observations []domain.TimeSeries
	Unresolved   []xref.Key
	Unsupported  bool
}

// Decoder turns blocks into destination time series.
type Decoder struct {
	xref           Resolver
	defaultVersion string
	missing        []string
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDefaultVersion sets the version used when a parameter code has none.
func WithDefaultVersion(v string) DecoderOption {
	return func(d *Decoder) { d.defaultVersion = strings.ToUpper(v) }
}

// WithMissingTokens replaces the tokens decoded as missing values.
func WithMissingTokens(tokens ...string) DecoderOption {
	return func(d *Decoder) { d.missing = tokens }
}

// NewDecoder returns a decoder resolving keys through r.
func NewDecoder(r Resolver, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		xref:           r,
		defaultVersion: xref.DefaultVersion,
		missing:        normalize.SHEFMissingTokens,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode decodes a single block. Errors are *MalformedBlockError.
func (d *Decoder) Decode(b Block) (Result, error) {
	switch b.Kind {
	case KindE, KindER:
		return d.decodeE(b)
	case KindA, KindAR:
		return d.decodeA(b)
	case KindB:
		return Result{Unsupported: true}, nil
	}
	return Result{}, malformed(b, "unknown block type", nil)
}

func (d *Decoder) decodeE(b Block) (Result, error) {
	h, err := parseHeader(b)
	if err != nil {
		return Result{}, err
	}
	if len(h.fields) == 0 {
		return Result{}, malformed(b, "missing parameter code", nil)
	}
	code, version, err := d.parameterCode(b, h.fields[0], 3)
	if err != nil {
		return Result{}, err
	}

	// Values follow the first DI field, which may sit on a continuation line.
	var stream []string
	for _, f := range h.fields[1:] {
		stream = append(stream, strings.Fields(f)...)
	}
	for _, line := range b.Lines[1:] {
		for _, f := range strings.Split(stripComment(line), "/") {
			stream = append(stream, valueTokens(strings.Fields(f))...)
		}
	}
	di := slices.IndexFunc(stream, func(tok string) bool {
		return strings.HasPrefix(strings.ToUpper(tok), "DI")
	})
	if di < 0 {
		return Result{}, malformed(b, "missing interval", nil)
	}
	step, err := parseInterval(stream[di])
	if err != nil {
		return Result{}, malformed(b, "interval", err)
	}
	tokens := valueTokens(stream[di+1:])

	samples := make([]domain.Sample, 0, len(tokens))
	for i, tok := range tokens {
		at := h.ref.Add(time.Duration(i) * step)
		s, err := d.sample(at, tok)
		if err != nil {
			return Result{}, malformed(b, fmt.Sprintf("value %q", tok), err)
		}
		samples = append(samples, s)
	}

	entry, ok := d.xref.Lookup(h.location, code, version)
	if !ok {
		return Result{Unresolved: []xref.Key{{Location: h.location, Parameter: code, Version: version}}}, nil
	}
	if len(samples) == 0 {
		return Result{}, nil
	}
	return Result{Observations: []domain.TimeSeries{{Path: entry.Path, Units: entry.Units, Values: samples}}}, nil
}

func (d *Decoder) decodeA(b Block) (Result, error) {
	h, err := parseHeader(b)
	if err != nil {
		return Result{}, err
	}

	var data []string
	for _, f := range h.fields {
		if f = strings.TrimSpace(f); f != "" {
			data = append(data, f)
		}
	}
	for _, line := range b.Lines[1:] {
		for _, f := range strings.Split(stripComment(line), "/") {
			if f = strings.TrimSpace(f); f != "" {
				data = append(data, f)
			}
		}
	}
	switch len(data) {
	case 0:
		return Result{}, malformed(b, "missing data field", nil)
	case 1:
	default:
		return Result{}, malformed(b, fmt.Sprintf("expected one data field, got %d", len(data)), nil)
	}

	codeText, valueText, ok := d.splitDataField(data[0])
	if !ok {
		return Result{}, malformed(b, fmt.Sprintf("data field %q", data[0]), nil)
	}
	code, version, err := d.parameterCode(b, codeText, 0)
	if err != nil {
		return Result{}, err
	}
	s, err := d.sample(h.ref, valueText)
	if err != nil {
		return Result{}, malformed(b, fmt.Sprintf("value %q", valueText), err)
	}

	entry, ok := d.xref.Lookup(h.location, code, version)
	if !ok {
		return Result{Unresolved: []xref.Key{{Location: h.location, Parameter: code, Version: version}}}, nil
	}
	return Result{Observations: []domain.TimeSeries{{Path: entry.Path, Units: entry.Units, Values: []domain.Sample{s}}}}, nil
}

// parameterCode splits a PE field into its two character code and version.
// A positive width takes a fixed length version suffix, zero takes the whole
// remainder. A bare code gets the default version.
func (d *Decoder) parameterCode(b Block, field string, width int) (string, string, error) {
	pe := strings.TrimSpace(field)
	if len(pe) < 2 || !isAlpha(pe[:2]) {
		return "", "", malformed(b, fmt.Sprintf("parameter code %q", field), nil)
	}
	switch {
	case len(pe) == 2:
		return pe, d.defaultVersion, nil
	case width == 0:
		return pe[:2], pe[2:], nil
	case len(pe) >= 2+width:
		return pe[:2], pe[2 : 2+width], nil
	}
	return pe[:2], d.defaultVersion, nil
}

// splitDataField separates "HG 12.5" and the compact "HG12.5" forms.
func (d *Decoder) splitDataField(f string) (string, string, bool) {
	parts := strings.Fields(f)
	switch len(parts) {
	case 2:
		return parts[0], parts[1], true
	case 1:
	default:
		return "", "", false
	}

	i := strings.IndexFunc(f, func(r rune) bool {
		return unicode.IsDigit(r) || r == '-' || r == '+' || r == '.'
	})
	if i >= 2 {
		return f[:i], f[i:], true
	}
	for _, n := range []int{5, 2} {
		if len(f) > n && normalize.IsMissing(f[n:], d.missing...) {
			return f[:n], f[n:], true
		}
	}
	return "", "", false
}

func (d *Decoder) sample(at time.Time, tok string) (domain.Sample, error) {
	ms := at.UnixMilli()
	if normalize.IsMissing(tok, d.missing...) {
		return domain.MissingSample(ms), nil
	}
	s, err := normalize.DestinationSample(ms, tok)
	if err == nil {
		return s, nil
	}
	// trailing data qualifier, e.g. 12.5E
	if n := len(tok); n > 1 && unicode.IsLetter(rune(tok[n-1])) {
		if s, qerr := normalize.DestinationSample(ms, tok[:n-1]); qerr == nil {
			return s, nil
		}
	}
	return domain.Sample{}, err
}

func parseInterval(s string) (time.Duration, error) {
	s = strings.ToUpper(s)
	if len(s) < 4 {
		return 0, fmt.Errorf("interval %q too short", s)
	}
	n, err := strconv.Atoi(s[3:])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("interval %q: bad multiplier", s)
	}
	var unit time.Duration
	switch s[2] {
	case 'S':
		unit = time.Second
	case 'N', 'M':
		unit = time.Minute
	case 'H':
		unit = time.Hour
	case 'D':
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("interval %q: unsupported unit %q", s, s[2])
	}
	return time.Duration(n) * unit, nil
}

// valueTokens drops continuation tags such as ".E1" left in a field.
func valueTokens(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if len(t) > 1 && t[0] == '.' && unicode.IsLetter(rune(t[1])) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ':'); i >= 0 {
		return line[:i]
	}
	return line
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
