package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/models"
	"github.com/skuforge/skuforge/internal/queue"
	"github.com/skuforge/skuforge/internal/services/status"
)

// StatusHandler serves the read-only pipeline status view.
type StatusHandler struct {
	statusService *status.Service
	monitor       *queue.Monitor
	logger        arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(statusService *status.Service, monitor *queue.Monitor, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		monitor:       monitor,
		logger:        logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	syncStatus, err := h.statusService.Current()
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	lastSummary, err := h.statusService.LastSummary()
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sync":         syncStatus,
		"last_sync":    lastSummary,
		"queue":        h.monitor.Snapshot(),
		"sync_running": syncStatus.State != models.SyncIdle,
	})
}
