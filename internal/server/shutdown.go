// Package server provides server lifecycle management including graceful shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// ShutdownManager handles graceful shutdown of server components.
// It coordinates signal handling, in-flight request tracking, and resource cleanup.
type ShutdownManager struct {
	shutdownTimeout time.Duration
	drainTimeout    time.Duration
	log             *zap.Logger

	shutdownCh     chan struct{}
	shutdownOnce   sync.Once
	shutdownErr    error
	inFlight       int64
	isShuttingDown int32

	// Closers to clean up on shutdown
	closers   []io.Closer
	closersMu sync.Mutex
}

// ShutdownConfig holds configuration for the shutdown manager.
type ShutdownConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// DrainTimeout is the time to wait for in-flight requests to complete.
	// Default: 15 seconds
	DrainTimeout time.Duration
}

// DefaultShutdownConfig returns the default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		ShutdownTimeout: 30 * time.Second,
		DrainTimeout:    15 * time.Second,
	}
}

// NewShutdownManager creates a new shutdown manager with the given configuration.
func NewShutdownManager(config ShutdownConfig, log *zap.Logger) *ShutdownManager {
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if config.DrainTimeout == 0 {
		config.DrainTimeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &ShutdownManager{
		shutdownTimeout: config.ShutdownTimeout,
		drainTimeout:    config.DrainTimeout,
		log:             log,
		shutdownCh:      make(chan struct{}),
	}
}

// RegisterCloser adds a closer to be called during shutdown.
// Closers are called in reverse order of registration (LIFO).
func (sm *ShutdownManager) RegisterCloser(closer io.Closer) {
	sm.closersMu.Lock()
	defer sm.closersMu.Unlock()
	sm.closers = append(sm.closers, closer)
}

// ListenForSignals blocks until SIGTERM or SIGINT arrives, ctx is done, or
// shutdown was started elsewhere, and then shuts down.
func (sm *ShutdownManager) ListenForSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sm.Shutdown(context.Background(), fmt.Sprintf("received signal: %v", sig))
	case <-ctx.Done():
		return sm.Shutdown(context.Background(), "context cancelled")
	case <-sm.shutdownCh:
		return sm.Shutdown(context.Background(), "")
	}
}

// Shutdown drains in-flight requests and closes all registered resources.
// Only the first call does any work; later calls return its result.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	sm.shutdownOnce.Do(func() {
		atomic.StoreInt32(&sm.isShuttingDown, 1)
		close(sm.shutdownCh)
		sm.log.Info("shutting down", zap.String("reason", reason))

		shutdownCtx, cancel := context.WithTimeout(ctx, sm.shutdownTimeout)
		defer cancel()

		var group errs.Group
		if err := sm.drainInFlight(shutdownCtx); err != nil {
			group.Add(fmt.Errorf("drain failed: %w", err))
		}

		sm.closersMu.Lock()
		closers := sm.closers
		sm.closersMu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			group.Add(closers[i].Close())
		}

		sm.shutdownErr = group.Err()
		if sm.shutdownErr != nil {
			sm.log.Warn("shutdown finished with errors", zap.Error(sm.shutdownErr))
		}
	})

	return sm.shutdownErr
}

// drainInFlight waits for all in-flight requests to complete.
func (sm *ShutdownManager) drainInFlight(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, sm.drainTimeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if atomic.LoadInt64(&sm.inFlight) == 0 {
			return nil
		}

		select {
		case <-drainCtx.Done():
			if remaining := atomic.LoadInt64(&sm.inFlight); remaining > 0 {
				return fmt.Errorf("timeout waiting for %d in-flight requests", remaining)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// TrackRequest increments the in-flight request counter.
// Returns false if shutdown is in progress and the request should be rejected.
func (sm *ShutdownManager) TrackRequest() bool {
	if atomic.LoadInt32(&sm.isShuttingDown) == 1 {
		return false
	}
	atomic.AddInt64(&sm.inFlight, 1)
	return true
}

// UntrackRequest decrements the in-flight request counter.
func (sm *ShutdownManager) UntrackRequest() {
	atomic.AddInt64(&sm.inFlight, -1)
}

// IsShuttingDown returns true if shutdown has been initiated.
func (sm *ShutdownManager) IsShuttingDown() bool {
	return atomic.LoadInt32(&sm.isShuttingDown) == 1
}

// InFlightCount returns the current number of in-flight requests.
func (sm *ShutdownManager) InFlightCount() int64 {
	return atomic.LoadInt64(&sm.inFlight)
}

// ShutdownCh returns a channel that is closed when shutdown begins.
func (sm *ShutdownManager) ShutdownCh() <-chan struct{} {
	return sm.shutdownCh
}

// HTTPServerCloser adapts an http.Server to io.Closer with a graceful shutdown.
func HTTPServerCloser(server *http.Server, timeout time.Duration) io.Closer {
	return CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return server.Shutdown(ctx)
	})
}

// ShutdownMiddleware creates HTTP middleware that tracks in-flight requests
// and rejects new requests during shutdown.
func ShutdownMiddleware(sm *ShutdownManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sm.TrackRequest() {
				w.Header().Set("Connection", "close")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"shutting down"}`))
				return
			}
			defer sm.UntrackRequest()

			next.ServeHTTP(w, r)
		})
	}
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}

// MultiCloser combines multiple closers into one.
type MultiCloser struct {
	closers []io.Closer
}

// NewMultiCloser creates a new multi-closer.
func NewMultiCloser(closers ...io.Closer) *MultiCloser {
	return &MultiCloser{closers: closers}
}

// Close closes every underlying closer and combines their errors.
func (mc *MultiCloser) Close() error {
	var group errs.Group
	for _, c := range mc.closers {
		group.Add(c.Close())
	}
	return group.Err()
}
