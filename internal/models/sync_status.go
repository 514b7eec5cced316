package models

import (
	"errors"
	"time"
)

// ErrSyncInProgress is returned when a second master-sync trigger arrives
// while the orchestrator state is not idle.
var ErrSyncInProgress = errors.New("sync in progress")

// SyncState is the master-sync orchestrator state, published for pollers.
type SyncState string

const (
	SyncIdle                SyncState = "idle"
	SyncSyncingMaster       SyncState = "syncing_master"
	SyncProcessingSuppliers SyncState = "processing_suppliers"
)

// SyncStatus is the shared progress record external readers poll.
type SyncStatus struct {
	Key             string     `badgerhold:"key" json:"-"`
	State           SyncState  `json:"state"`
	TaskID          string     `json:"task_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	ProgressCurrent int        `json:"progress_current"`
	ProgressTotal   int        `json:"progress_total"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SyncResultStatus is the overall outcome of one master-sync run.
type SyncResultStatus string

const (
	SyncSuccess        SyncResultStatus = "success"
	SyncPartialSuccess SyncResultStatus = "partial_success"
	SyncError          SyncResultStatus = "error"
)

// SyncSummary reports one completed master-sync run.
type SyncSummary struct {
	Key                  string           `badgerhold:"key" json:"-"`
	TaskID               string           `json:"task_id"`
	SuppliersCreated     int              `json:"suppliers_created"`
	SuppliersUpdated     int              `json:"suppliers_updated"`
	SuppliersDeactivated int              `json:"suppliers_deactivated"`
	SuppliersSkipped     int              `json:"suppliers_skipped"`
	Errors               []string         `json:"errors"`
	DurationSeconds      float64          `json:"duration_seconds"`
	Status               SyncResultStatus `json:"status"`
	CompletedAt          time.Time        `json:"completed_at"`
}

// Outcome derives the run status. Any skipped row or recorded error
// downgrades the run: to partial_success when at least one supplier was
// still processed, to error when nothing was.
func (s *SyncSummary) Outcome() SyncResultStatus {
	processed := s.SuppliersCreated + s.SuppliersUpdated + s.SuppliersDeactivated
	degraded := s.SuppliersSkipped > 0 || len(s.Errors) > 0
	switch {
	case degraded && processed > 0:
		return SyncPartialSuccess
	case degraded:
		return SyncError
	default:
		return SyncSuccess
	}
}

// MasterRow is one validated row of the master supplier directory.
type MasterRow struct {
	SupplierName string `json:"supplier_name"`
	SourceURL    string `json:"source_url"`
	Format       string `json:"format"`
	IsActive     bool   `json:"is_active"`
	Notes        string `json:"notes,omitempty"`
	RowNumber    int    `json:"row_number"`
}
