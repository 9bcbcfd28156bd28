package handler

import (
	"context"
	"log"
	"net/http"

	"storesync-api/internal/queue"
	"storesync-api/internal/repository"
	"storesync-api/pkg/apierror"
	"storesync-api/pkg/response"
)

// AdminHandler exposes operational introspection: queue depths, product
// database stats, and the dead-letter backlog.
type AdminHandler struct {
	queue      queue.Queue
	products   repository.ProductRepository
	failedJobs repository.FailedJobRepository
	retry      RetryRunner
}

// RetryRunner triggers one dead-letter requeue pass on demand.
type RetryRunner interface {
	RunNow(ctx context.Context) (int, int, error)
}

// NewAdminHandler creates an admin handler. retry may be nil when no retry
// scheduler is configured.
func NewAdminHandler(q queue.Queue, products repository.ProductRepository, failedJobs repository.FailedJobRepository, retry RetryRunner) *AdminHandler {
	return &AdminHandler{queue: q, products: products, failedJobs: failedJobs, retry: retry}
}

// StatsResponse aggregates operational counters for the dashboard.
type StatsResponse struct {
	Queues     map[string]int64       `json:"queues"`
	Products   map[string]interface{} `json:"products"`
	FailedJobs FailedJobStats         `json:"failed_jobs"`
}

// FailedJobStats summarizes the dead-letter table.
type FailedJobStats struct {
	Pending   int64 `json:"pending"`
	Abandoned int64 `json:"abandoned"`
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	queues := make(map[string]int64)
	for _, name := range []string{queue.QueueFetch, queue.QueueBulkUpdate} {
		depth, err := h.queue.Depth(ctx, name)
		if err != nil {
			log.Printf("[AdminHandler] Failed to read depth of %s: %v", name, err)
			depth = -1
		}
		queues[name] = depth
	}

	productStats, err := h.products.GetStats(ctx)
	if err != nil {
		log.Printf("[AdminHandler] Failed to read product stats: %v", err)
		productStats = map[string]interface{}{"error": "unavailable"}
	}

	pending, abandoned, err := h.failedJobs.Counts(ctx)
	if err != nil {
		log.Printf("[AdminHandler] Failed to read dead-letter counts: %v", err)
		response.Error(w, apierror.InternalError("failed to read stats"))
		return
	}

	response.OK(w, StatsResponse{
		Queues:     queues,
		Products:   productStats,
		FailedJobs: FailedJobStats{Pending: pending, Abandoned: abandoned},
	})
}

// RetryResponse reports the outcome of a manual requeue pass.
type RetryResponse struct {
	Requeued  int `json:"requeued"`
	Abandoned int `json:"abandoned"`
}

// RunRetry handles POST /api/v1/admin/retry - requeues dead-lettered jobs
// immediately instead of waiting for the scheduler's next cycle.
func (h *AdminHandler) RunRetry(w http.ResponseWriter, r *http.Request) {
	if h.retry == nil {
		response.Error(w, apierror.ServiceUnavailable("retry scheduler not configured"))
		return
	}

	requeued, abandoned, err := h.retry.RunNow(r.Context())
	if err != nil {
		log.Printf("[AdminHandler] Manual retry pass failed: %v", err)
		response.Error(w, apierror.InternalError("retry pass failed"))
		return
	}

	response.OK(w, RetryResponse{Requeued: requeued, Abandoned: abandoned})
}
