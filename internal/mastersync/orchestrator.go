package mastersync

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/common"
	"github.com/skuforge/skuforge/internal/httpclient"
	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
	"github.com/skuforge/skuforge/internal/parsers"
	"github.com/skuforge/skuforge/internal/services/status"
)

// Master sheet columns. Row 1 is headers, data starts at row 2.
var masterColumns = []string{"supplier_name", "source_url", "format", "is_active", "notes"}

// Orchestrator reconciles the supplier registry from the master supplier
// directory and fans out one parse task per active supplier. Only one run
// executes at a time; the status service is the gate.
type Orchestrator struct {
	suppliers interfaces.SupplierRepository
	queue     interfaces.TaskQueue
	status    *status.Service
	fetcher   *httpclient.Fetcher
	sheetURL  string
	logger    arbor.ILogger
}

// NewOrchestrator wires the master-sync orchestrator.
func NewOrchestrator(
	suppliers interfaces.SupplierRepository,
	queue interfaces.TaskQueue,
	statusSvc *status.Service,
	fetcher *httpclient.Fetcher,
	sheetURL string,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		suppliers: suppliers,
		queue:     queue,
		status:    statusSvc,
		fetcher:   fetcher,
		sheetURL:  sheetURL,
		logger:    logger,
	}
}

// Run executes one master-sync pass. A second trigger while a run is
// underway fails fast with ErrSyncInProgress. The summary is persisted
// even when the run aborts partway so operators can see what happened.
func (o *Orchestrator) Run(ctx context.Context, taskID string) (*models.SyncSummary, error) {
	if err := o.status.BeginSync(taskID); err != nil {
		return nil, err
	}

	started := time.Now()
	summary := &models.SyncSummary{TaskID: taskID}

	defer func() {
		summary.DurationSeconds = time.Since(started).Seconds()
		summary.Status = summary.Outcome()
		if err := o.status.Complete(summary); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to persist sync summary")
		}
	}()

	rows, parseErrs, err := o.fetchMasterRows(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}
	for _, rowErr := range parseErrs {
		summary.SuppliersSkipped++
		summary.Errors = append(summary.Errors, rowErr)
	}

	o.reconcile(ctx, rows, summary)

	if err := o.status.SetState(models.SyncProcessingSuppliers); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to publish sync state")
	}
	o.fanOut(ctx, summary)

	o.logger.Info().
		Str("task_id", taskID).
		Int("created", summary.SuppliersCreated).
		Int("updated", summary.SuppliersUpdated).
		Int("deactivated", summary.SuppliersDeactivated).
		Int("skipped", summary.SuppliersSkipped).
		Str("status", string(summary.Outcome())).
		Msg("Master sync completed")
	return summary, nil
}

// fetchMasterRows downloads and validates the master sheet. Rows that
// fail validation come back as error strings, not fatal failures.
func (o *Orchestrator) fetchMasterRows(ctx context.Context) ([]models.MasterRow, []string, error) {
	if o.sheetURL == "" {
		return nil, nil, models.NewValidationError("master sheet url is not configured", nil)
	}

	fetchURL := o.sheetURL
	if strings.Contains(o.sheetURL, "docs.google.com") {
		exportURL, err := parsers.ExportURL(o.sheetURL, "")
		if err != nil {
			return nil, nil, err
		}
		fetchURL = exportURL
	}

	body, err := o.fetcher.Get(ctx, fetchURL)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	grid, err := reader.ReadAll()
	if err != nil {
		return nil, nil, models.NewParserError("failed to read master sheet", err)
	}
	if len(grid) == 0 {
		return nil, nil, models.NewParserError("master sheet is empty", nil)
	}

	columns := make(map[string]int)
	for i, header := range grid[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range masterColumns[:4] {
		if _, ok := columns[required]; !ok {
			return nil, nil, models.NewValidationError("master sheet is missing a column", map[string]interface{}{
				"column": required,
			})
		}
	}

	var rows []models.MasterRow
	var rowErrs []string
	for i := 1; i < len(grid); i++ {
		row, err := parseMasterRow(grid[i], columns, i+1)
		if err != nil {
			rowErrs = append(rowErrs, err.Error())
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func parseMasterRow(cells []string, columns map[string]int, rowNumber int) (models.MasterRow, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	row := models.MasterRow{
		SupplierName: cell("supplier_name"),
		SourceURL:    cell("source_url"),
		Format:       strings.ToLower(cell("format")),
		Notes:        cell("notes"),
		RowNumber:    rowNumber,
	}

	switch strings.ToLower(cell("is_active")) {
	case "true", "1", "yes", "y":
		row.IsActive = true
	}

	if row.SupplierName == "" {
		return row, fmt.Errorf("row %d: supplier_name is empty", rowNumber)
	}
	if !models.ValidSourceType(row.Format) {
		return row, fmt.Errorf("row %d (%s): unknown format %q", rowNumber, row.SupplierName, row.Format)
	}
	if parsed, err := url.ParseRequestURI(row.SourceURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return row, fmt.Errorf("row %d (%s): invalid source_url %q", rowNumber, row.SupplierName, row.SourceURL)
	}
	return row, nil
}

// reconcile upserts each master row into the supplier registry.
// Deactivation is a soft flag flip; suppliers absent from the sheet are
// left untouched.
func (o *Orchestrator) reconcile(ctx context.Context, rows []models.MasterRow, summary *models.SyncSummary) {
	for _, row := range rows {
		existing, err := o.suppliers.GetByName(ctx, row.SupplierName)
		if err != nil && models.KindOf(err) != models.ErrorKindNotFound {
			summary.SuppliersSkipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d (%s): %v", row.RowNumber, row.SupplierName, err))
			continue
		}

		if existing == nil {
			supplier := &models.Supplier{
				Name:       row.SupplierName,
				SourceType: models.SourceType(row.Format),
				Notes:      row.Notes,
				IsActive:   row.IsActive,
				Meta:       models.JSONMap{"source_url": row.SourceURL},
			}
			if err := o.suppliers.Create(ctx, supplier); err != nil {
				summary.SuppliersSkipped++
				summary.Errors = append(summary.Errors, fmt.Sprintf("row %d (%s): %v", row.RowNumber, row.SupplierName, err))
				continue
			}
			summary.SuppliersCreated++
			continue
		}

		wasActive := existing.IsActive
		existing.SourceType = models.SourceType(row.Format)
		existing.Notes = row.Notes
		existing.IsActive = row.IsActive
		if existing.Meta == nil {
			existing.Meta = models.JSONMap{}
		}
		existing.Meta["source_url"] = row.SourceURL

		if err := o.suppliers.Update(ctx, existing); err != nil {
			summary.SuppliersSkipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d (%s): %v", row.RowNumber, row.SupplierName, err))
			continue
		}
		if wasActive && !row.IsActive {
			summary.SuppliersDeactivated++
		} else {
			summary.SuppliersUpdated++
		}
	}
}

// fanOut enqueues one parse task per active supplier, publishing progress
// as it goes.
func (o *Orchestrator) fanOut(ctx context.Context, summary *models.SyncSummary) {
	active, err := o.suppliers.ListActive(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list active suppliers: %v", err))
		return
	}

	for i, supplier := range active {
		if err := o.status.UpdateProgress(i+1, len(active)); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to publish sync progress")
		}

		payload := models.ParseTaskPayload{
			ParserType:   string(supplier.SourceType),
			SupplierName: supplier.Name,
			SupplierID:   supplier.ID,
			SourceConfig: SourceConfig(&supplier),
		}
		msg, err := models.NewTaskMessageWithID(common.NewTaskID(), models.TaskKindParse, payload)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("build parse task for %s: %v", supplier.Name, err))
			continue
		}
		if err := o.queue.Enqueue(ctx, msg); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("enqueue parse task for %s: %v", supplier.Name, err))
			continue
		}
		o.logger.Debug().
			Str("supplier", supplier.Name).
			Str("parser", string(supplier.SourceType)).
			Msg("Parse task enqueued")
	}
}

// SourceConfig builds the parser config for a supplier. A full
// meta.source_config object wins; otherwise a minimal config is derived
// from source_url by source type.
func SourceConfig(s *models.Supplier) map[string]interface{} {
	if s.Meta != nil {
		if raw, ok := s.Meta["source_config"].(map[string]interface{}); ok {
			return raw
		}
	}

	switch s.SourceType {
	case models.SourceGoogleSheets:
		sheetName := "Sheet1"
		if s.Meta != nil {
			if name, ok := s.Meta["sheet_name"].(string); ok && name != "" {
				sheetName = name
			}
		}
		return map[string]interface{}{
			"sheet_url":  s.SourceURL(),
			"sheet_name": sheetName,
		}
	case models.SourceCSV, models.SourceExcel:
		return map[string]interface{}{
			"file_path": s.SourceURL(),
		}
	default:
		return map[string]interface{}{}
	}
}
