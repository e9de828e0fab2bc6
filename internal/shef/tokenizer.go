package shef

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

// Kind tags the block variant.
type Kind string

const (
	KindE  Kind = ".E"
	KindER Kind = ".ER"
	KindA  Kind = ".A"
	KindAR Kind = ".AR"
	KindB  Kind = ".B"
)

// blockEnd closes a .B block.
const blockEnd = ".END"

var kinds = map[string]Kind{
	".E":  KindE,
	".ER": KindER,
	".A":  KindA,
	".AR": KindAR,
	".B":  KindB,
}

// Block is one logical SHEF message: the header line followed by the content
// of its continuation lines with the leading type token removed.
type Block struct {
	Kind  Kind
	Line  int // input line of the header
	Lines []string
}

// Header returns the first line of the block.
func (b Block) Header() string {
	if len(b.Lines) == 0 {
		return ""
	}
	return b.Lines[0]
}

// Text joins the header and continuation content into a single record.
func (b Block) Text() string {
	return strings.Join(b.Lines, "")
}

// Tokenizer splits a SHEF text stream into blocks.
type Tokenizer struct {
	scan    *bufio.Scanner
	lineNum int
	err     error
}

// NewTokenizer returns a tokenizer reading from r.
func NewTokenizer(r io.Reader) *Tokenizer {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Tokenizer{scan: scan}
}

// Blocks yields blocks in input order. The sequence can be ranged over once;
// a read error is yielded last and is also available from Err.
func (t *Tokenizer) Blocks() iter.Seq2[Block, error] {
	return func(yield func(Block, error) bool) {
		var open *Block

		flush := func() bool {
			if open == nil {
				return true
			}
			b := *open
			open = nil
			return yield(b, nil)
		}

		for t.readLine() {
			line := strings.TrimRight(t.scan.Text(), "\r")

			if kind, ok := blockStart(line); ok {
				if !flush() {
					return
				}
				open = &Block{Kind: kind, Line: t.lineNum, Lines: []string{line}}
				continue
			}

			if open == nil {
				continue
			}

			switch {
			case isContinuation(open.Kind, line):
				open.Lines = append(open.Lines, line[len(continuationTag(line)):])
			case open.Kind == KindB && strings.HasPrefix(strings.TrimSpace(line), blockEnd):
				if !flush() {
					return
				}
			case open.Kind == KindB:
				if data, ok := bodyLine(line); ok {
					open.Lines = append(open.Lines, data)
				}
			default:
				if !flush() {
					return
				}
			}
		}

		if !flush() {
			return
		}
		if err := t.scan.Err(); err != nil {
			t.err = err
			yield(Block{}, err)
		}
	}
}

// Err returns the first read error encountered.
func (t *Tokenizer) Err() error {
	return t.err
}

func (t *Tokenizer) readLine() bool {
	if ok := t.scan.Scan(); !ok {
		return false
	}
	t.lineNum++
	return true
}

func blockStart(line string) (Kind, bool) {
	k, ok := kinds[firstToken(line)]
	return k, ok
}

// isContinuation reports whether line continues a block of the given kind,
// e.g. ".E1" and ".E12" for ".E" and ".ER".
func isContinuation(kind Kind, line string) bool {
	return len(line) >= 2 && line[:2] == string(kind)[:2]
}

// bodyLine filters a .B data line: comments and short lines are dropped and
// anything after ':' is treated as a comment.
func bodyLine(line string) (string, bool) {
	if strings.HasPrefix(line, "#") || len(line) <= 4 {
		return "", false
	}
	if i := strings.IndexByte(line, ':'); i >= 0 {
		line = line[:i]
	}
	return line, true
}

// continuationTag returns the leading ".E1" style tag of a continuation line.
func continuationTag(line string) string {
	if i := strings.IndexAny(line, " \t/"); i >= 0 {
		return line[:i]
	}
	return line
}

func firstToken(line string) string {
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i]
	}
	return line
}
