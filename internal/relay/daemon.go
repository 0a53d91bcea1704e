// Package relay forwards the local store's change feed into the batch
// pipeline, standing in for a managed stream trigger in local deployments.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eventlake/eventlake/internal/batch"
	"github.com/eventlake/eventlake/internal/notify"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/internal/store"
	"github.com/eventlake/eventlake/pkg/types"
)

// ChangeSource is a sequenced change feed with a persisted read position.
type ChangeSource interface {
	Changes(ctx context.Context, after int64, limit int) ([]store.Change, error)
	Checkpoint(ctx context.Context, name string) (int64, error)
	SaveCheckpoint(ctx context.Context, name string, seq int64) error
}

// Config holds configuration for the relay daemon.
type Config struct {
	// PollInterval is how often the daemon checks for new changes (default: 5s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// BatchSize is the most change records handed to one pipeline run (default: 500).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Name identifies the checkpoint (default: "relay").
	Name string `json:"name" yaml:"name"`

	// WakeDelay is how long a wake-up waits for further writes before
	// running a cycle (default: 200ms).
	WakeDelay time.Duration `json:"wake_delay" yaml:"wake_delay"`
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    500,
		Name:         "relay",
		WakeDelay:    200 * time.Millisecond,
	}
}

// Daemon polls a change source and runs each page through the pipeline.
// The checkpoint only advances after a page has been written, so a crash
// re-delivers at most one page.
type Daemon struct {
	config   Config
	source   ChangeSource
	pipeline *batch.Pipeline
	log      *zap.Logger
	metrics  *observability.Metrics

	wake <-chan notify.Notification

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDaemon creates a new relay daemon.
func NewDaemon(config Config, source ChangeSource, pipeline *batch.Pipeline, log *zap.Logger, metrics *observability.Metrics) *Daemon {
	d := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = d.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = d.BatchSize
	}
	if config.Name == "" {
		config.Name = d.Name
	}
	if config.WakeDelay <= 0 {
		config.WakeDelay = d.WakeDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Daemon{
		config:   config,
		source:   source,
		pipeline: pipeline,
		log:      log.Named("relay"),
		metrics:  metrics,
	}
}

// WakeOn makes the daemon run soon after each notification on ch instead of
// waiting for the next poll. Call it before Start.
func (d *Daemon) WakeOn(ch <-chan notify.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wake = ch
}

// Start begins the relay loop. It runs until the context is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("relay: daemon is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})
	wake := d.wake
	d.mu.Unlock()

	go d.run(ctx, wake)
	return nil
}

// Stop stops the loop and waits for the current cycle to finish.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.cancel()
	<-d.done
	d.running = false
	return nil
}

func (d *Daemon) run(ctx context.Context, wake <-chan notify.Notification) {
	defer close(d.done)

	d.cycle(ctx)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	// settle is armed by the first wake-up and coalesces the writes that
	// follow it into one cycle.
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cycle(ctx)
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if settle == nil {
				settle = time.After(d.config.WakeDelay)
			}
		case <-settle:
			settle = nil
			d.cycle(ctx)
		}
	}
}

func (d *Daemon) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
		d.log.Warn("relay cycle failed", zap.Error(err))
	}
}

// RunOnce drains the change feed page by page and returns how many records
// were written to batches.
func (d *Daemon) RunOnce(ctx context.Context) (int, error) {
	after, err := d.source.Checkpoint(ctx, d.config.Name)
	if err != nil {
		return 0, err
	}

	forwarded := 0
	for {
		if err := ctx.Err(); err != nil {
			return forwarded, err
		}

		changes, err := d.source.Changes(ctx, after, d.config.BatchSize)
		if err != nil {
			return forwarded, err
		}
		if len(changes) == 0 {
			return forwarded, nil
		}

		records := make([]types.ChangeRecord, len(changes))
		for i, c := range changes {
			records[i] = c.Record
		}

		res, err := d.pipeline.Process(ctx, records)
		if err != nil {
			return forwarded, err
		}

		last := changes[len(changes)-1].Seq
		if err := d.source.SaveCheckpoint(ctx, d.config.Name, last); err != nil {
			return forwarded, err
		}
		after = last
		forwarded += res.Count
		d.metrics.RelayForwarded(res.Count)
		d.log.Info("changes relayed",
			zap.Int("changes", len(changes)),
			zap.Int("items", res.Count),
			zap.String("status", res.Status),
			zap.String("key", res.Key),
			zap.Int64("checkpoint", last))

		if len(changes) < d.config.BatchSize {
			return forwarded, nil
		}
	}
}
