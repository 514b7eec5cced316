// -----------------------------------------------------------------------
// Parse Worker - Runs a supplier price list through its parser
// -----------------------------------------------------------------------

package workers

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
	"github.com/skuforge/skuforge/internal/parsers"
	"github.com/skuforge/skuforge/internal/services/ingest"
)

// ParseWorker executes parse_task messages: select the parser, read the
// source, and hand the parsed items to the ingestion service.
type ParseWorker struct {
	registry  *parsers.Registry
	suppliers interfaces.SupplierRepository
	ingest    *ingest.Service
	logs      interfaces.ParsingLogRepository
	logger    arbor.ILogger
}

var _ interfaces.TaskWorker = (*ParseWorker)(nil)

// NewParseWorker creates the parse worker.
func NewParseWorker(registry *parsers.Registry, suppliers interfaces.SupplierRepository, ingestSvc *ingest.Service, logs interfaces.ParsingLogRepository, logger arbor.ILogger) *ParseWorker {
	return &ParseWorker{
		registry:  registry,
		suppliers: suppliers,
		ingest:    ingestSvc,
		logs:      logs,
		logger:    logger,
	}
}

func (w *ParseWorker) Kind() models.TaskKind {
	return models.TaskKindParse
}

func (w *ParseWorker) Execute(ctx context.Context, msg *models.TaskMessage) error {
	var payload models.ParseTaskPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	supplier, err := w.suppliers.GetByName(ctx, payload.SupplierName)
	if err != nil {
		return err
	}

	parser, err := w.registry.New(payload.ParserType)
	if err != nil {
		w.logFailure(ctx, msg.TaskID, supplier, err)
		return err
	}
	if err := parser.ValidateConfig(payload.SourceConfig); err != nil {
		w.logFailure(ctx, msg.TaskID, supplier, err)
		return err
	}

	items, rowErrs, err := parser.Parse(ctx, payload.SourceConfig)
	if err != nil {
		w.logFailure(ctx, msg.TaskID, supplier, err)
		return err
	}

	w.logger.Info().
		Str("task_id", msg.TaskID).
		Str("supplier", supplier.Name).
		Str("parser", parser.Name()).
		Int("items", len(items)).
		Int("row_errors", len(rowErrs)).
		Msg("Source parsed")

	_, err = w.ingest.IngestItems(ctx, msg.TaskID, supplier, items, rowErrs)
	return err
}

// logFailure records a whole-parse failure so every retry leaves a trace.
func (w *ParseWorker) logFailure(ctx context.Context, taskID string, supplier *models.Supplier, cause error) {
	entry := &models.ParsingLog{
		TaskID:       taskID,
		ErrorType:    string(models.KindOf(cause)),
		ErrorMessage: cause.Error(),
	}
	if supplier != nil {
		entry.SupplierID = &supplier.ID
	}
	if err := w.logs.Append(ctx, entry); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to append parsing log")
	}
}
