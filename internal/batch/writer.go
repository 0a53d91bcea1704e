// Package batch writes decoded change records to the data lake as
// date-partitioned JSON batch objects.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/internal/storage"
	"github.com/eventlake/eventlake/pkg/types"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "events"

// ErrEmptyBatch is returned by Write when there is nothing to write.
var ErrEmptyBatch = types.ErrEmptyBatch

// PartitionKey builds the object key for a batch written at now:
// <prefix>/year=YYYY/month=MM/day=DD/HHMMSS-<id>.json, with fields taken
// from now in UTC.
func PartitionKey(prefix string, now time.Time, id string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	now = now.UTC()
	return fmt.Sprintf("%s/year=%04d/month=%02d/day=%02d/%s-%s.json",
		prefix, now.Year(), int(now.Month()), now.Day(), now.Format("150405"), id)
}

// Writer serializes batches and writes each as one object.
type Writer struct {
	storage storage.ObjectStorage
	prefix  string
	newID   func() string
	log     *zap.Logger
	metrics *observability.Metrics
}

// Option configures a Writer.
type Option func(*Writer)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(w *Writer) {
		if prefix != "" {
			w.prefix = prefix
		}
	}
}

// WithIDGenerator overrides the unique id source used in keys.
func WithIDGenerator(fn func() string) Option {
	return func(w *Writer) { w.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Writer) {
		if log != nil {
			w.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter creates a batch writer over the given object storage.
func NewWriter(store storage.ObjectStorage, opts ...Option) *Writer {
	w := &Writer{
		storage: store,
		prefix:  DefaultPrefix,
		newID:   func() string { return uuid.New().String() },
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stores items as a single batch object and returns its key.
// It performs exactly one storage write, and none when items is empty.
func (w *Writer) Write(ctx context.Context, items []types.DecodedRecord, now time.Time) (string, error) {
	if len(items) == 0 {
		return "", ErrEmptyBatch
	}

	body, err := json.Marshal(types.NewBatch(items, now))
	if err != nil {
		return "", pipeerrors.NewInternalError("failed to serialize batch", err)
	}

	key := PartitionKey(w.prefix, now, w.newID())
	if err := w.storage.Put(ctx, key, body, "application/json"); err != nil {
		w.metrics.BatchWritten(len(items), err)
		w.log.Error("batch write failed", zap.String("key", key), zap.Int("count", len(items)), zap.Error(err))
		return "", pipeerrors.NewStorageError(pipeerrors.CodeUploadFailed, "failed to write batch", err).
			WithDetails(map[string]interface{}{"key": key})
	}

	w.metrics.BatchWritten(len(items), nil)
	w.log.Info("batch written", zap.String("key", key), zap.Int("count", len(items)))
	return key, nil
}
