package status

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/skuforge/skuforge/internal/models"
)

// Keys in the shared status store.
const (
	syncStatusKey  = "master_sync"
	lastSummaryKey = "master_sync:last"
)

// Service publishes the master-sync progress record and the last run
// summary to a badgerhold store so external readers can poll them. It is
// also the single-flight gate: BeginSync refuses when a run is underway.
type Service struct {
	store  *badgerhold.Store
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewService creates the sync status service.
func NewService(store *badgerhold.Store, logger arbor.ILogger) *Service {
	return &Service{store: store, logger: logger}
}

// Current returns the live status record, defaulting to idle when none
// has been written yet.
func (s *Service) Current() (*models.SyncStatus, error) {
	var status models.SyncStatus
	err := s.store.Get(syncStatusKey, &status)
	if err == badgerhold.ErrNotFound {
		return &models.SyncStatus{Key: syncStatusKey, State: models.SyncIdle}, nil
	}
	if err != nil {
		return nil, models.NewDatabaseError("failed to read sync status", err)
	}
	return &status, nil
}

// BeginSync transitions idle -> syncing_master. A second trigger while
// the state is not idle is rejected with ErrSyncInProgress.
func (s *Service) BeginSync(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Current()
	if err != nil {
		return err
	}
	if current.State != models.SyncIdle {
		return models.ErrSyncInProgress
	}

	now := time.Now().UTC()
	status := models.SyncStatus{
		Key:       syncStatusKey,
		State:     models.SyncSyncingMaster,
		TaskID:    taskID,
		StartedAt: &now,
		UpdatedAt: now,
	}
	if err := s.store.Upsert(syncStatusKey, &status); err != nil {
		return models.NewDatabaseError("failed to write sync status", err)
	}
	return nil
}

// SetState moves the orchestrator to a new phase, keeping progress.
func (s *Service) SetState(state models.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Current()
	if err != nil {
		return err
	}
	current.Key = syncStatusKey
	current.State = state
	current.UpdatedAt = time.Now().UTC()
	if err := s.store.Upsert(syncStatusKey, current); err != nil {
		return models.NewDatabaseError("failed to write sync status", err)
	}
	return nil
}

// UpdateProgress publishes progress within the current phase.
func (s *Service) UpdateProgress(current, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.Current()
	if err != nil {
		return err
	}
	status.Key = syncStatusKey
	status.ProgressCurrent = current
	status.ProgressTotal = total
	status.UpdatedAt = time.Now().UTC()
	if err := s.store.Upsert(syncStatusKey, status); err != nil {
		return models.NewDatabaseError("failed to write sync progress", err)
	}
	return nil
}

// Complete stores the run summary and returns the state to idle.
func (s *Service) Complete(summary *models.SyncSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary.Key = lastSummaryKey
	summary.CompletedAt = time.Now().UTC()
	if err := s.store.Upsert(lastSummaryKey, summary); err != nil {
		return models.NewDatabaseError("failed to write sync summary", err)
	}

	status := models.SyncStatus{
		Key:       syncStatusKey,
		State:     models.SyncIdle,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.Upsert(syncStatusKey, &status); err != nil {
		return models.NewDatabaseError("failed to reset sync status", err)
	}
	return nil
}

// LastSummary returns the most recent run summary, or nil when no run
// has completed yet.
func (s *Service) LastSummary() (*models.SyncSummary, error) {
	var summary models.SyncSummary
	err := s.store.Get(lastSummaryKey, &summary)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewDatabaseError("failed to read sync summary", err)
	}
	return &summary, nil
}
