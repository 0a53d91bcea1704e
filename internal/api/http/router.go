package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/eventlake/eventlake/internal/observability"
)

// RouterConfig holds everything the API router serves.
type RouterConfig struct {
	// Service names the process in health responses
	Service string

	// Events serves POST /v1/events; nil leaves the route unregistered
	Events http.Handler

	// Changes serves POST /v1/changes; nil leaves the route unregistered
	Changes http.Handler

	// Wrap is applied outside every API route (shutdown tracking, for one)
	Wrap func(http.Handler) http.Handler

	MaxBodyBytes int64
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewRouter builds the API mux.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	route := func(path string, h http.Handler) {
		chain := []func(http.Handler) http.Handler{
			MetricsMiddleware(cfg.Metrics, path),
			RequestIDMiddleware,
			RecoveryMiddleware(cfg.Logger),
			ContentTypeMiddleware,
			BodyLimitMiddleware(cfg.MaxBodyBytes),
		}
		if cfg.Wrap != nil {
			chain = append([]func(http.Handler) http.Handler{cfg.Wrap}, chain...)
		}
		mux.Handle(path, ChainMiddleware(chain...)(h))
	}

	if cfg.Events != nil {
		route("/v1/events", cfg.Events)
	}
	if cfg.Changes != nil {
		route("/v1/changes", cfg.Changes)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: cfg.Service})
	})
	mux.Handle("/metrics", cfg.Metrics.Handler())

	return mux
}
