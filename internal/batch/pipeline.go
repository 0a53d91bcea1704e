package batch

import (
	"context"
	"time"

	"github.com/eventlake/eventlake/internal/changefeed"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/pkg/types"
)

// Status values reported by Pipeline.Process.
const (
	StatusOK      = "ok"
	StatusNoItems = "no_items"
)

// Result describes the outcome of processing one change-feed batch.
type Result struct {
	Status string `json:"status"`
	Key    string `json:"s3_key,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// Pipeline extracts change records and writes the resulting batch.
type Pipeline struct {
	writer  *Writer
	now     func() time.Time
	metrics *observability.Metrics
}

// NewPipeline creates a pipeline around writer. A nil now uses time.Now.
func NewPipeline(writer *Writer, now func() time.Time, metrics *observability.Metrics) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{writer: writer, now: now, metrics: metrics}
}

// Process runs extraction over records. An empty extraction short-circuits
// with StatusNoItems and no storage call.
func (p *Pipeline) Process(ctx context.Context, records []types.ChangeRecord) (*Result, error) {
	items := changefeed.Extract(records)
	p.metrics.ChangesExtracted(len(items), len(records)-len(items))

	if len(items) == 0 {
		return &Result{Status: StatusNoItems}, nil
	}

	key, err := p.writer.Write(ctx, items, p.now())
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusOK, Key: key, Count: len(items)}, nil
}
