// Package ingest accepts single interaction events, normalizes them into the
// canonical raw record, writes them to the source-of-record store and,
// when configured, publishes them to the record stream.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/internal/store"
	"github.com/eventlake/eventlake/internal/stream"
	"github.com/eventlake/eventlake/pkg/types"
)

// Defaults applied to absent submission fields.
const (
	DefaultUserID    = "anonymous"
	DefaultEventType = "unknown"
	DefaultItemID    = "none"
)

// Ingestor turns submissions into stored (and optionally streamed) events.
type Ingestor struct {
	store     store.Store
	publisher stream.Publisher
	now       func() time.Time
	log       *zap.Logger
	metrics   *observability.Metrics
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithPublisher enables stream publishing. A nil publisher disables it.
func WithPublisher(p stream.Publisher) Option {
	return func(i *Ingestor) { i.publisher = p }
}

// WithClock overrides the time source used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(i *Ingestor) {
		if log != nil {
			i.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

// New creates an Ingestor writing to s.
func New(s store.Store, opts ...Option) *Ingestor {
	i := &Ingestor{
		store: s,
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Normalize applies field defaults to a submission. A missing or
// non-numeric timestamp becomes the current time in milliseconds.
func (i *Ingestor) Normalize(sub Submission) types.RawEvent {
	ts, ok := sub.millis("timestamp")
	if !ok {
		ts = i.now().UnixMilli()
	}
	return types.RawEvent{
		UserID:    sub.text("user_id", DefaultUserID),
		EventTime: ts,
		EventType: sub.text("event_type", DefaultEventType),
		ItemID:    sub.text("item_id", DefaultItemID),
	}
}

// Ingest writes one event to the store, then publishes it if a publisher is
// configured. A store failure aborts before publishing. The two writes are
// not transactional: a publish failure leaves the stored record in place.
func (i *Ingestor) Ingest(ctx context.Context, sub Submission) (types.RawEvent, error) {
	ev := i.Normalize(sub)

	if err := i.store.PutEvent(ctx, ev); err != nil {
		i.metrics.EventIngested(err)
		i.log.Error("store write failed", zap.String("user_id", ev.UserID), zap.Error(err))
		if pipeerrors.GetCategory(err) == "" {
			err = pipeerrors.NewStoreError(pipeerrors.CodeWriteFailed, "failed to write event", err)
		}
		return ev, err
	}

	if i.publisher == nil {
		i.metrics.StreamPublished(true, nil)
		i.metrics.EventIngested(nil)
		return ev, nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		i.metrics.EventIngested(err)
		return ev, pipeerrors.NewInternalError("failed to serialize event", err)
	}

	err = i.publisher.Publish(ctx, ev.UserID, data)
	i.metrics.StreamPublished(false, err)
	i.metrics.EventIngested(err)
	if err != nil {
		i.log.Error("stream publish failed", zap.String("user_id", ev.UserID), zap.Error(err))
		if pipeerrors.GetCategory(err) == "" {
			err = pipeerrors.NewStreamError("failed to publish event", err)
		}
		return ev, err
	}

	i.log.Debug("event ingested", zap.String("user_id", ev.UserID), zap.Int64("event_time", ev.EventTime))
	return ev, nil
}
