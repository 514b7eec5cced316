package workers

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/extractors"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// EnrichWorker executes enrich_item messages: run the extractor pipeline
// over the item's free text and merge the findings into its
// characteristics. Extraction is deterministic, so a retried task merges
// the same keys and values.
type EnrichWorker struct {
	items    interfaces.SupplierItemRepository
	pipeline *extractors.Pipeline
	logger   arbor.ILogger
}

var _ interfaces.TaskWorker = (*EnrichWorker)(nil)

// NewEnrichWorker creates the enrichment worker.
func NewEnrichWorker(items interfaces.SupplierItemRepository, pipeline *extractors.Pipeline, logger arbor.ILogger) *EnrichWorker {
	return &EnrichWorker{items: items, pipeline: pipeline, logger: logger}
}

func (w *EnrichWorker) Kind() models.TaskKind {
	return models.TaskKindEnrichItem
}

func (w *EnrichWorker) Execute(ctx context.Context, msg *models.TaskMessage) error {
	var payload models.EnrichItemPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return err
	}

	item, err := w.items.GetByID(ctx, payload.SupplierItemID)
	if err != nil {
		return err
	}

	extracted := w.pipeline.Extract(extractionText(item))
	if len(extracted) == 0 {
		return nil
	}

	if err := w.items.MergeCharacteristics(ctx, item.ID, extracted); err != nil {
		return err
	}

	w.logger.Debug().
		Str("supplier_item_id", item.ID.String()).
		Int("features", len(extracted)).
		Msg("Item enriched")
	return nil
}

// extractionText joins the item name with any free-text characteristic
// values so features buried in description columns are found too.
func extractionText(item *models.SupplierItem) string {
	parts := []string{item.Name}
	for _, v := range item.Characteristics {
		if s, ok := v.(string); ok && !extractors.IsSentinel(s) {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
