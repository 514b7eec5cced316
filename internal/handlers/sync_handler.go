package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
	"github.com/skuforge/skuforge/internal/services/status"
)

// SyncHandler triggers and reports master-sync runs.
type SyncHandler struct {
	statusService *status.Service
	queue         interfaces.TaskQueue
	logger        arbor.ILogger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(statusService *status.Service, queue interfaces.TaskQueue, logger arbor.ILogger) *SyncHandler {
	return &SyncHandler{statusService: statusService, queue: queue, logger: logger}
}

// TriggerHandler handles POST /api/sync/trigger. The trigger only
// enqueues; the worker runs the orchestrator. A trigger while a run is
// underway is rejected with 409.
func (h *SyncHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	current, err := h.statusService.Current()
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	if current.State != models.SyncIdle {
		WritePipelineError(w, models.ErrSyncInProgress)
		return
	}

	msg, err := models.NewTaskMessageWithID(common.NewTaskID(), models.TaskKindMasterSync, nil)
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	msg.Priority = models.PriorityHigh

	if err := h.queue.Enqueue(r.Context(), msg); err != nil && !errors.Is(err, models.ErrDuplicateTask) {
		WritePipelineError(w, err)
		return
	}

	h.logger.Info().
		Str("task_id", msg.TaskID).
		Msg("Master sync triggered")
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"task_id": msg.TaskID,
	})
}

// StatusHandler handles GET /api/sync/status
func (h *SyncHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	current, err := h.statusService.Current()
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, current)
}
