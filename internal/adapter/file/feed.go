package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
)

// Feed reads a local file. Files ending in .gz are decompressed on the fly.
// It implements pipeline.SourceFeed.
type Feed struct {
	path string
}

// New returns a Feed for path.
func New(path string) *Feed {
	return &Feed{path: path}
}

func (f *Feed) Name() string { return filepath.Base(f.path) }

// Open opens the file for reading.
func (f *Feed) Open(_ context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(f.path), ".gz") {
		return fh, nil
	}

	pr, pw := io.Pipe()
	go func() {
		defer fh.Close()
		if err := archiver.NewGz().Decompress(fh, pw); err != nil {
			pw.CloseWithError(fmt.Errorf("decompress %s: %w", f.path, err))
			return
		}
		pw.Close()
	}()
	return pr, nil
}

// Bytes is an in-memory feed, used for stdin and broker payloads.
type Bytes struct {
	name string
	data []byte
}

// NewBytes returns a feed over data.
func NewBytes(name string, data []byte) *Bytes {
	return &Bytes{name: name, data: data}
}

func (b *Bytes) Name() string { return b.name }

func (b *Bytes) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}
