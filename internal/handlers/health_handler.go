package handlers

import (
	"net/http"

	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/interfaces"
)

// HealthHandler reports process liveness. Healthy means the queue
// backend answers; the same check backs the worker's exit-code probe.
type HealthHandler struct {
	queue interfaces.TaskQueue
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(queue interfaces.TaskQueue) *HealthHandler {
	return &HealthHandler{queue: queue}
}

// HealthHandler handles GET /health
func (h *HealthHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	if _, err := h.queue.Stats(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": common.GetVersion(),
	})
}
