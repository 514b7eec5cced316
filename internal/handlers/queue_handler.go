package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
)

// QueueHandler exposes queue depths and the DLQ operator actions.
type QueueHandler struct {
	queue  interfaces.TaskQueue
	logger arbor.ILogger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queue interfaces.TaskQueue, logger arbor.ILogger) *QueueHandler {
	return &QueueHandler{queue: queue, logger: logger}
}

// StatsHandler handles GET /api/queue/stats
func (h *QueueHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		WritePipelineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// DLQListHandler handles GET /api/queue/dlq. Each entry carries the
// preserved payload, the final error, and the operator-facing retry
// summary string.
func (h *QueueHandler) DLQListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	entries, err := h.queue.DLQList(r.Context())
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	type dlqView struct {
		interfaces.DLQEntry
		RetrySummary string `json:"retry_summary"`
	}
	views := make([]dlqView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, dlqView{
			DLQEntry:     entry,
			RetrySummary: entry.Message.RetrySummary("failed"),
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": views,
		"count":   len(views),
	})
}

// DLQReprocessHandler handles POST /api/queue/dlq/{task_id}/reprocess.
// Reprocessing enqueues a fresh task with retry_count reset to zero.
func (h *QueueHandler) DLQReprocessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/queue/dlq/")
	taskID := strings.TrimSuffix(path, "/reprocess")
	if taskID == "" || taskID == path {
		WriteError(w, http.StatusBadRequest, "invalid dlq reprocess path")
		return
	}

	if err := h.queue.DLQReprocess(r.Context(), taskID); err != nil {
		WritePipelineError(w, err)
		return
	}

	h.logger.Info().
		Str("task_id", taskID).
		Msg("DLQ entry reprocessed")
	WriteSuccess(w, "task re-enqueued")
}
