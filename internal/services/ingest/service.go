package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/matching"
	"github.com/skuforge/skuforge/internal/models"
)

// Result summarizes one ingest run.
type Result struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Dropped   int `json:"dropped"`
	Failed    int `json:"failed"`
}

// Service persists parsed items into supplier_items and fans out the
// follow-up tasks: one match_items per ingest, recalc for linked items
// whose price moved, and enrichment for rows that changed.
type Service struct {
	items  interfaces.SupplierItemRepository
	logs   interfaces.ParsingLogRepository
	queue  interfaces.TaskQueue
	logger arbor.ILogger
}

// NewService wires the ingestion service.
func NewService(items interfaces.SupplierItemRepository, logs interfaces.ParsingLogRepository, queue interfaces.TaskQueue, logger arbor.ILogger) *Service {
	return &Service{items: items, logs: logs, queue: queue, logger: logger}
}

// IngestItems upserts every parsed item for the supplier, records dropped
// rows, and enqueues the matching pass. A database failure on one row
// counts as failed but does not stop the run.
func (s *Service) IngestItems(ctx context.Context, taskID string, supplier *models.Supplier, parsed []models.ParsedSupplierItem, rowErrs []models.RowError) (*Result, error) {
	result := &Result{Dropped: len(rowErrs)}

	s.logRowErrors(ctx, taskID, supplier, rowErrs)

	for i := range parsed {
		item := &models.SupplierItem{
			SupplierID:   supplier.ID,
			SupplierSKU:  parsed[i].SupplierSKU,
			Name:         parsed[i].Name,
			CurrentPrice: parsed[i].Price,
			InStock:      parsed[i].InStock,
		}
		if parsed[i].PriceOpt != nil {
			item.PriceOpt.Decimal = *parsed[i].PriceOpt
			item.PriceOpt.Valid = true
		}
		if parsed[i].PriceRRC != nil {
			item.PriceRRC.Decimal = *parsed[i].PriceRRC
			item.PriceRRC.Valid = true
		}
		if len(parsed[i].Characteristics) > 0 {
			item.Characteristics = models.JSONMap(parsed[i].Characteristics)
		}

		outcome, err := s.items.Upsert(ctx, item)
		if err != nil {
			result.Failed++
			s.logger.Warn().
				Err(err).
				Str("supplier_sku", parsed[i].SupplierSKU).
				Msg("Failed to upsert supplier item")
			continue
		}

		switch outcome {
		case interfaces.UpsertInserted:
			result.Inserted++
			s.enqueueEnrich(ctx, item)
		case interfaces.UpsertUpdated:
			result.Updated++
			s.enqueueEnrich(ctx, item)
			// A linked item whose price or stock moved makes the product's
			// aggregates stale.
			if item.ProductID != nil {
				if err := matching.EnqueueRecalc(ctx, s.queue, *item.ProductID); err != nil {
					s.logger.Warn().
						Err(err).
						Str("product_id", item.ProductID.String()).
						Msg("Failed to enqueue recalc after price change")
				}
			}
		default:
			result.Unchanged++
		}
	}

	if err := s.enqueueMatch(ctx, taskID, supplier); err != nil {
		return result, err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("supplier", supplier.Name).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("dropped", result.Dropped).
		Int("failed", result.Failed).
		Msg("Ingest completed")
	return result, nil
}

func (s *Service) logRowErrors(ctx context.Context, taskID string, supplier *models.Supplier, rowErrs []models.RowError) {
	for _, rowErr := range rowErrs {
		rowNumber := rowErr.RowNumber
		rowData := rowErr.RowData
		entry := &models.ParsingLog{
			TaskID:       taskID,
			SupplierID:   &supplier.ID,
			ErrorType:    string(models.KindOf(rowErr.Err)),
			ErrorMessage: rowErr.Err.Error(),
		}
		if rowNumber > 0 {
			entry.RowNumber = &rowNumber
		}
		if rowData != "" {
			entry.RowData = &rowData
		}
		if err := s.logs.Append(ctx, entry); err != nil {
			s.logger.Warn().
				Err(err).
				Int("row", rowErr.RowNumber).
				Msg("Failed to append parsing log")
		}
	}
}

// enqueueMatch keys the match task on the task id of the parse run so a
// retried parse does not stack duplicate matching passes.
func (s *Service) enqueueMatch(ctx context.Context, taskID string, supplier *models.Supplier) error {
	payload := models.MatchItemsPayload{SupplierID: supplier.ID}
	msg, err := models.NewTaskMessageWithID("match:"+taskID, models.TaskKindMatchItems, payload)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil && !errors.Is(err, models.ErrDuplicateTask) {
		return fmt.Errorf("enqueue match task: %w", err)
	}
	return nil
}

func (s *Service) enqueueEnrich(ctx context.Context, item *models.SupplierItem) {
	payload := models.EnrichItemPayload{SupplierItemID: item.ID}
	msg, err := models.NewTaskMessageWithID("enrich:"+item.ID.String(), models.TaskKindEnrichItem, payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to build enrich task")
		return
	}
	msg.Priority = models.PriorityLow
	if err := s.queue.Enqueue(ctx, msg); err != nil && !errors.Is(err, models.ErrDuplicateTask) {
		s.logger.Warn().
			Err(err).
			Str("supplier_item_id", item.ID.String()).
			Msg("Failed to enqueue enrich task")
	}
}
