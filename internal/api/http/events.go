package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/internal/ingest"
	"github.com/eventlake/eventlake/pkg/types"
)

// EventIngestor accepts one interaction submission.
type EventIngestor interface {
	Ingest(ctx context.Context, sub ingest.Submission) (types.RawEvent, error)
}

// StatusResponse is the body of a successful write.
type StatusResponse struct {
	Status string `json:"status"`
}

// EventsHandler handles POST /v1/events requests.
type EventsHandler struct {
	ingestor EventIngestor
	log      *zap.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(ingestor EventIngestor, log *zap.Logger) *EventsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventsHandler{ingestor: ingestor, log: log}
}

// ServeHTTP handles the events HTTP request.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, bodyStatus(err), err.Error(), requestID)
		return
	}

	sub, err := ingest.ParseSubmission(body)
	if err != nil {
		writeError(w, pipeerrors.HTTPStatus(err), err.Error(), requestID)
		return
	}

	if _, err := h.ingestor.Ingest(r.Context(), sub); err != nil {
		h.log.Warn("ingest failed",
			zap.String("request_id", requestID),
			zap.String("code", pipeerrors.GetCode(err)),
			zap.Error(err))
		writeError(w, pipeerrors.HTTPStatus(err), err.Error(), requestID)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// readBody reads the whole request body.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
