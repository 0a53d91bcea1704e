// Package app provides the unified application lifecycle management for eventlake.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"

	httpapi "github.com/eventlake/eventlake/internal/api/http"
	"github.com/eventlake/eventlake/internal/batch"
	"github.com/eventlake/eventlake/internal/config"
	"github.com/eventlake/eventlake/internal/ingest"
	"github.com/eventlake/eventlake/internal/notify"
	"github.com/eventlake/eventlake/internal/observability"
	"github.com/eventlake/eventlake/internal/relay"
	"github.com/eventlake/eventlake/internal/server"
	"github.com/eventlake/eventlake/internal/storage"
	"github.com/eventlake/eventlake/internal/store"
	"github.com/eventlake/eventlake/internal/stream"
)

// App manages all eventlake service lifecycles.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *observability.Metrics

	// Shared resources
	lake      storage.ObjectStorage
	store     store.Store
	changes   *store.SQLiteStore
	publisher stream.Publisher
	pipeline  *batch.Pipeline
	shutdown  *server.ShutdownManager

	// Service components
	httpServer  *http.Server
	listener    net.Listener
	relayDaemon *relay.Daemon

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &App{
		cfg:     cfg,
		log:     log,
		metrics: observability.NewMetrics(),
	}, nil
}

// Metrics returns the process metrics.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Addr returns the address the HTTP server listens on, once started.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Start initializes shared resources and starts all configured services.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{
		ShutdownTimeout: a.cfg.HTTP.ShutdownTimeout,
	}, a.log)

	if err := a.initSharedResources(ctx); err != nil {
		return a.abort(fmt.Errorf("failed to initialize shared resources: %w", err))
	}

	if err := a.startHTTP(); err != nil {
		return a.abort(fmt.Errorf("failed to start http server: %w", err))
	}

	if a.cfg.ShouldRunRelay() {
		if err := a.startRelay(ctx); err != nil {
			return a.abort(fmt.Errorf("failed to start relay: %w", err))
		}
	}

	a.log.Info("eventlake started",
		zap.String("mode", string(a.cfg.Mode)),
		zap.String("addr", a.Addr()),
		zap.String("store", a.cfg.Store.Type),
		zap.String("storage", a.cfg.Storage.Type),
		zap.String("stream", a.cfg.Stream.Type),
		zap.Bool("relay", a.relayDaemon != nil))
	return nil
}

// abort releases whatever Start opened before failing with err.
func (a *App) abort(err error) error {
	a.shutdown.Shutdown(context.Background(), "startup failed")
	a.cancel()
	a.wg.Wait()

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
	return err
}

// initSharedResources opens the store, the data lake and the stream.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	a.lake, err = OpenStorage(ctx, a.cfg, a.cfg.Storage.Bucket)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.pipeline = NewPipeline(a.cfg, a.lake, a.log.Named("batch"), a.metrics)

	var closeStore server.CloserFunc
	a.store, a.changes, closeStore, err = OpenStore(ctx, a.cfg, a.log.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	a.shutdown.RegisterCloser(closeStore)

	var closePublisher server.CloserFunc
	a.publisher, closePublisher, err = OpenPublisher(ctx, a.cfg, a.log.Named("stream"))
	if err != nil {
		return fmt.Errorf("failed to initialize stream: %w", err)
	}
	a.shutdown.RegisterCloser(closePublisher)

	return nil
}

// startHTTP serves the API. Relay-only processes serve health and metrics.
func (a *App) startHTTP() error {
	routes := httpapi.RouterConfig{
		Service:      "eventlake-" + string(a.cfg.Mode),
		Wrap:         server.ShutdownMiddleware(a.shutdown),
		MaxBodyBytes: a.cfg.HTTP.MaxBodyBytes,
		Metrics:      a.metrics,
		Logger:       a.log.Named("http"),
	}

	if a.cfg.ShouldRunIngest() {
		opts := []ingest.Option{
			ingest.WithLogger(a.log.Named("ingest")),
			ingest.WithMetrics(a.metrics),
		}
		if a.publisher != nil {
			opts = append(opts, ingest.WithPublisher(a.publisher))
		}
		ingestor := ingest.New(a.store, opts...)

		routes.Events = httpapi.NewEventsHandler(ingestor, a.log.Named("http"))
		routes.Changes = httpapi.NewChangesHandler(a.pipeline, a.log.Named("http"))
	}

	listener, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.HTTP.Addr, err)
	}

	a.mu.Lock()
	a.listener = listener
	a.httpServer = &http.Server{
		Handler:      httpapi.NewRouter(routes),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.mu.Unlock()

	a.shutdown.RegisterCloser(server.HTTPServerCloser(a.httpServer, a.cfg.HTTP.ShutdownTimeout))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

// startRelay forwards the local change feed into the data lake.
func (a *App) startRelay(ctx context.Context) error {
	if a.changes == nil {
		return fmt.Errorf("relay requires the sqlite store")
	}

	rc := relay.DefaultConfig()
	if a.cfg.Relay.PollInterval > 0 {
		rc.PollInterval = a.cfg.Relay.PollInterval
	}
	if a.cfg.Relay.BatchSize > 0 {
		rc.BatchSize = a.cfg.Relay.BatchSize
	}

	a.relayDaemon = relay.NewDaemon(rc, a.changes, a.pipeline, a.log, a.metrics)

	// Local writes wake the relay instead of waiting out the poll interval.
	notifier := notify.NewNotifier(256)
	a.changes.SetNotifier(notifier)
	a.relayDaemon.WakeOn(notifier.Subscribe(rc.Name).Ch)

	if err := a.relayDaemon.Start(ctx); err != nil {
		return err
	}

	// Registered after the store, so both run before the store closes.
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.changes.SetNotifier(nil)
		notifier.Unsubscribe(rc.Name)
		return nil
	}))
	a.shutdown.RegisterCloser(server.CloserFunc(a.relayDaemon.Stop))
	return nil
}

// Stop gracefully shuts down all services.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	a.log.Info("initiating graceful shutdown")

	err := a.shutdown.Shutdown(ctx, "stop requested")
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.log.Info("eventlake stopped")
	return err
}

// Wait blocks until a termination signal arrives or ctx is done, then stops.
func (a *App) Wait(ctx context.Context) error {
	a.shutdown.ListenForSignals(ctx)
	return a.Stop(context.Background())
}
