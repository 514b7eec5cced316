package workers

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/aggregation"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// RecalcWorker executes recalc_aggregates messages. Tasks are keyed on
// the product id, so by the time one runs it sees the latest committed
// link state.
type RecalcWorker struct {
	service *aggregation.Service
	logger  arbor.ILogger
}

var _ interfaces.TaskWorker = (*RecalcWorker)(nil)

// NewRecalcWorker creates the aggregate recompute worker.
func NewRecalcWorker(service *aggregation.Service, logger arbor.ILogger) *RecalcWorker {
	return &RecalcWorker{service: service, logger: logger}
}

func (w *RecalcWorker) Kind() models.TaskKind {
	return models.TaskKindRecalc
}

func (w *RecalcWorker) Execute(ctx context.Context, msg *models.TaskMessage) error {
	var payload models.RecalcPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return err
	}
	return w.service.Recompute(ctx, payload.ProductID)
}
