package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/couchcryptid/shef-etl/internal/domain"
)

// JSONLines writes one TimeSeries JSON object per line.
// It implements pipeline.TimeSeriesSink.
type JSONLines struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONLines writes to w. The caller keeps ownership of w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// CreateJSONLines appends to the file at path, creating it if needed.
func CreateJSONLines(path string) (*JSONLines, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &JSONLines{enc: json.NewEncoder(fh), closer: fh}, nil
}

func (j *JSONLines) Store(ctx context.Context, ts domain.TimeSeries) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(ts); err != nil {
		return fmt.Errorf("write series %s: %w", ts.Path, err)
	}
	return nil
}

func (j *JSONLines) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
