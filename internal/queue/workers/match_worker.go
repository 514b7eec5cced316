package workers

import (
	"context"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/matching"
	"github.com/skuforge/skuforge/internal/models"
)

// MatchWorker executes match_items messages by draining the supplier's
// unmatched items in batches until none remain.
type MatchWorker struct {
	service *matching.Service
	logger  arbor.ILogger
}

var _ interfaces.TaskWorker = (*MatchWorker)(nil)

// NewMatchWorker creates the matching worker.
func NewMatchWorker(service *matching.Service, logger arbor.ILogger) *MatchWorker {
	return &MatchWorker{service: service, logger: logger}
}

func (w *MatchWorker) Kind() models.TaskKind {
	return models.TaskKindMatchItems
}

func (w *MatchWorker) Execute(ctx context.Context, msg *models.TaskMessage) error {
	var payload models.MatchItemsPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return err
	}

	var supplierID *uuid.UUID
	if payload.SupplierID != uuid.Nil {
		supplierID = &payload.SupplierID
	}

	total := matching.BatchSummary{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		summary, err := w.service.ProcessBatch(ctx, supplierID)
		if err != nil {
			return err
		}

		total.Claimed += summary.Claimed
		total.Matched += summary.Matched
		total.Potential += summary.Potential
		total.Created += summary.Created
		total.NeedsCategory += summary.NeedsCategory
		total.Failed += summary.Failed

		if summary.Claimed == 0 {
			break
		}
		// A pass where every claimed item failed made no progress: the
		// items stayed unmatched and the next pass would claim the same
		// ones again. Stop and leave them for a later run.
		if summary.Failed == summary.Claimed {
			break
		}
		if payload.Limit > 0 && total.Claimed >= payload.Limit {
			break
		}
	}

	w.logger.Info().
		Str("task_id", msg.TaskID).
		Int("claimed", total.Claimed).
		Int("matched", total.Matched).
		Int("potential", total.Potential).
		Int("created", total.Created).
		Int("needs_category", total.NeedsCategory).
		Int("failed", total.Failed).
		Msg("Matching pass completed")
	return nil
}
