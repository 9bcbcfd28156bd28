package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"storesync-api/internal/model"
	sync "storesync-api/internal/sync"
	"storesync-api/pkg/apierror"
	"storesync-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SyncHandler exposes the bulk-sync trigger and status polling endpoints.
type SyncHandler struct {
	pipeline *sync.Pipeline
	results  SyncResultReader
}

// SyncResultReader is the read side of the sync result store.
type SyncResultReader interface {
	Get(ctx context.Context, syncID string) (*model.SyncResult, error)
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(pipeline *sync.Pipeline, results SyncResultReader) *SyncHandler {
	return &SyncHandler{pipeline: pipeline, results: results}
}

// SyncRequest is the body of POST /api/v1/sync.
type SyncRequest struct {
	LicenseID int64    `json:"license_id"`
	Operation string   `json:"operation"`
	Codes     []string `json:"codes,omitempty"`
}

// SyncAccepted is the 202 body returned when work was queued.
type SyncAccepted struct {
	SyncID    string `json:"sync_id"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// Trigger handles POST /api/v1/sync
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if req.LicenseID <= 0 {
		response.Error(w, apierror.BadRequest("license_id is required"))
		return
	}
	if req.Operation == "" {
		response.Error(w, apierror.BadRequest("operation is required"))
		return
	}

	syncID, err := h.pipeline.Coordinate(r.Context(), req.LicenseID, req.Operation, req.Codes)
	if err != nil {
		switch {
		case errors.Is(err, sync.ErrLicenseInvalid):
			response.Error(w, apierror.UnprocessableEntity("license invalid, inactive or missing credentials"))
		case errors.Is(err, sync.ErrUpstreamUnavailable):
			response.Error(w, apierror.BadGateway("target store is unreachable"))
		default:
			response.Error(w, err)
		}
		return
	}
	if syncID == "" {
		response.OK(w, SyncAccepted{Operation: req.Operation, Message: "nothing to do"})
		return
	}

	response.Accepted(w, SyncAccepted{
		SyncID:    syncID,
		Operation: req.Operation,
		Message:   "sync scheduled",
	})
}

// SyncStatusResponse is the body of GET /api/v1/sync/{sync_id}. Status is
// always one of not_found, processing, completed or failed.
type SyncStatusResponse struct {
	SyncID string            `json:"sync_id"`
	Status model.SyncStatus  `json:"status"`
	Result *model.SyncResult `json:"result,omitempty"`
}

// Status handles GET /api/v1/sync/{sync_id}
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "sync_id")
	if syncID == "" {
		response.Error(w, apierror.BadRequest("sync_id is required"))
		return
	}

	result, err := h.results.Get(r.Context(), syncID)
	if err != nil {
		response.Error(w, apierror.InternalError("failed to read sync status"))
		return
	}
	if result == nil {
		response.OK(w, SyncStatusResponse{SyncID: syncID, Status: model.SyncStatusNotFound})
		return
	}

	response.OK(w, SyncStatusResponse{
		SyncID: syncID,
		Status: result.Status(),
		Result: result,
	})
}
