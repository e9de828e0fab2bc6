// Package xref loads the station/parameter cross-reference tables that map
// agency SHEF identifiers onto destination time-series paths.
package xref

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultVersion is substituted when a SHEF message omits the version code.
const DefaultVersion = "RZZ"

// ErrMalformedEntry is wrapped by every ParseError.
var ErrMalformedEntry = errors.New("malformed cross-reference entry")

// ParseError reports the line that aborted a table load.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

func (e *ParseError) Unwrap() error { return ErrMalformedEntry }

// Key identifies an entry.
type Key struct {
	Location  string
	Parameter string
	Version   string
}

func (k Key) String() string {
	return k.Location + "." + k.Parameter + "." + k.Version
}

// Entry maps one SHEF series onto its destination.
type Entry struct {
	Location   string
	Parameter  string
	Version    string
	Qualifier  string
	Path       string
	Units      string
	Attributes map[string]string
}

// Key returns the lookup key of the entry.
func (e Entry) Key() Key {
	return Key{Location: e.Location, Parameter: e.Parameter, Version: e.Version}
}

// Table is read-only after Load returns.
type Table struct {
	entries   map[Key]Entry
	redefined []Key
}

// Load parses LOC.PE.VERSION.Q=path;Attr=value lines. A key that does not
// split into exactly four parts aborts the whole load.
func Load(r io.Reader) (*Table, error) {
	t := &Table{entries: make(map[Key]Entry)}

	scan := bufio.NewScanner(r)
	lineNum := 0
	for scan.Scan() {
		lineNum++
		line := strings.TrimRight(scan.Text(), "\r")
		if skipLine(line) {
			continue
		}

		e, err := parseEntry(line)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: line, Msg: err.Error()}
		}
		if _, dup := t.entries[e.Key()]; dup {
			t.redefined = append(t.redefined, e.Key())
		}
		t.entries[e.Key()] = e
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read cross-reference: %w", err)
	}
	return t, nil
}

// LoadFile opens and loads a cross-reference file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cross-reference: %w", err)
	}
	defer f.Close()

	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Lookup returns the entry for an exact, case-sensitive key. An empty version
// is replaced by DefaultVersion.
func (t *Table) Lookup(location, parameter, version string) (Entry, bool) {
	if version == "" {
		version = DefaultVersion
	}
	e, ok := t.entries[Key{Location: location, Parameter: parameter, Version: version}]
	return e, ok
}

// Len returns the number of distinct keys.
func (t *Table) Len() int { return len(t.entries) }

// Redefined lists keys that appeared more than once; the last definition won.
func (t *Table) Redefined() []Key { return t.redefined }

func skipLine(line string) bool {
	return strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, " ")
}

func parseEntry(line string) (Entry, error) {
	key, rest, ok := strings.Cut(line, "=")
	if !ok {
		return Entry{}, errors.New("missing '='")
	}
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) != 4 {
		return Entry{}, fmt.Errorf("key has %d dot-separated parts, want 4", len(parts))
	}

	fields := strings.Split(rest, ";")
	e := Entry{
		Location:   parts[0],
		Parameter:  parts[1],
		Version:    parts[2],
		Qualifier:  parts[3],
		Path:       strings.TrimSpace(fields[0]),
		Attributes: make(map[string]string, len(fields)-1),
	}
	if e.Path == "" {
		return Entry{}, errors.New("empty destination path")
	}
	for _, f := range fields[1:] {
		name, value, _ := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		e.Attributes[name] = strings.TrimSpace(value)
	}
	e.Units = e.Attributes["Units"]
	return e, nil
}
