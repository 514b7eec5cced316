package workers

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/mastersync"
	"github.com/skuforge/skuforge/internal/models"
)

// MasterSyncWorker executes master_sync messages. The orchestrator's
// status record is the single-flight gate; a task that arrives while a
// run is underway is dropped, not retried.
type MasterSyncWorker struct {
	orchestrator *mastersync.Orchestrator
	logger       arbor.ILogger
}

var _ interfaces.TaskWorker = (*MasterSyncWorker)(nil)

// NewMasterSyncWorker creates the master-sync worker.
func NewMasterSyncWorker(orchestrator *mastersync.Orchestrator, logger arbor.ILogger) *MasterSyncWorker {
	return &MasterSyncWorker{orchestrator: orchestrator, logger: logger}
}

func (w *MasterSyncWorker) Kind() models.TaskKind {
	return models.TaskKindMasterSync
}

func (w *MasterSyncWorker) Execute(ctx context.Context, msg *models.TaskMessage) error {
	summary, err := w.orchestrator.Run(ctx, msg.TaskID)
	if err != nil {
		if errors.Is(err, models.ErrSyncInProgress) {
			w.logger.Warn().
				Str("task_id", msg.TaskID).
				Msg("Master sync already running, dropping trigger")
			return nil
		}
		return err
	}

	w.logger.Info().
		Str("task_id", msg.TaskID).
		Str("status", string(summary.Status)).
		Float64("duration_seconds", summary.DurationSeconds).
		Msg("Master sync run finished")
	return nil
}
