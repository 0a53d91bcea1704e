package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/eventlake/eventlake/internal/batch"
	"github.com/eventlake/eventlake/internal/changefeed"
	pipeerrors "github.com/eventlake/eventlake/internal/errors"
	"github.com/eventlake/eventlake/pkg/types"
)

// ChangeProcessor turns a change-feed batch into one stored object.
type ChangeProcessor interface {
	Process(ctx context.Context, records []types.ChangeRecord) (*batch.Result, error)
}

// ChangesHandler handles POST /v1/changes requests.
type ChangesHandler struct {
	processor ChangeProcessor
	log       *zap.Logger
}

// NewChangesHandler creates a new change-feed handler.
func NewChangesHandler(processor ChangeProcessor, log *zap.Logger) *ChangesHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChangesHandler{processor: processor, log: log}
}

// ServeHTTP handles the change-feed HTTP request.
func (h *ChangesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	records, err := changefeed.ParseEvent(body)
	if err != nil {
		writeError(w, pipeerrors.HTTPStatus(err), err.Error(), requestID)
		return
	}

	res, err := h.processor.Process(r.Context(), records)
	if err != nil {
		h.log.Error("change batch failed",
			zap.String("request_id", requestID),
			zap.Int("records", len(records)),
			zap.Error(err))
		writeError(w, pipeerrors.HTTPStatus(err), err.Error(), requestID)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
