package domain

import (
	"context"
	"fmt"
	"time"
)

// Product is one raw SHEF product read from a message broker. Commit, when
// set, acknowledges the product at the source.
type Product struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
	Commit    func(ctx context.Context) error
}

// Name identifies the product in logs and failure reports.
func (p Product) Name() string {
	if p.Topic == "" {
		return string(p.Key)
	}
	return fmt.Sprintf("%s/%d@%d", p.Topic, p.Partition, p.Offset)
}
