package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// jobEntry represents a registered cron job with metadata.
type jobEntry struct {
	name     string
	schedule string
	cronID   cron.EntryID
	lastRun  *time.Time
}

// Service enqueues recurring pipeline tasks on cron schedules: the
// nightly master sync and the hourly review-expiry sweep. The scheduler
// only enqueues; workers do the actual work, so a missed tick is
// harmless.
type Service struct {
	queue   interfaces.TaskQueue
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	jobs    map[string]*jobEntry
	running bool
}

// NewService creates a scheduler service.
func NewService(queue interfaces.TaskQueue, logger arbor.ILogger) *Service {
	return &Service{
		queue:  queue,
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// RegisterMasterSync schedules the master-sync trigger. An empty
// expression disables the entry.
func (s *Service) RegisterMasterSync(cronExpr string) error {
	if cronExpr == "" {
		s.logger.Info().Msg("Master sync schedule disabled")
		return nil
	}
	return s.register("master_sync", cronExpr, func() error {
		msg, err := models.NewTaskMessage(models.TaskKindMasterSync, nil)
		if err != nil {
			return err
		}
		msg.Priority = models.PriorityHigh
		return s.queue.Enqueue(context.Background(), msg)
	})
}

// RegisterReviewExpiry schedules the review-queue TTL sweep. The task id
// is keyed per hour so overlapping triggers coalesce.
func (s *Service) RegisterReviewExpiry(cronExpr string) error {
	if cronExpr == "" {
		s.logger.Info().Msg("Review expiry schedule disabled")
		return nil
	}
	return s.register("review_expiry", cronExpr, func() error {
		taskID := fmt.Sprintf("review_expiry:%s", time.Now().UTC().Format("2006010215"))
		msg, err := models.NewTaskMessageWithID(taskID, models.TaskKindReviewSweep, nil)
		if err != nil {
			return err
		}
		msg.Priority = models.PriorityLow
		return s.queue.Enqueue(context.Background(), msg)
	})
}

func (s *Service) register(name, cronExpr string, enqueue func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler job %q already registered", name)
	}

	entry := &jobEntry{name: name, schedule: cronExpr}
	id, err := s.cron.AddFunc(cronExpr, func() {
		now := time.Now().UTC()
		s.mu.Lock()
		entry.lastRun = &now
		s.mu.Unlock()

		if err := enqueue(); err != nil {
			// A duplicate task means the previous trigger is still queued.
			if errors.Is(err, models.ErrDuplicateTask) {
				s.logger.Debug().
					Str("job", name).
					Msg("Scheduled task already queued, skipping")
				return
			}
			s.logger.Warn().
				Err(err).
				Str("job", name).
				Msg("Failed to enqueue scheduled task")
			return
		}
		s.logger.Info().
			Str("job", name).
			Str("schedule", cronExpr).
			Msg("Scheduled task enqueued")
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %q: %w", name, err)
	}

	entry.cronID = id
	s.jobs[name] = entry
	s.logger.Info().
		Str("job", name).
		Str("schedule", cronExpr).
		Msg("Scheduler job registered")
	return nil
}

// Start begins the cron loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.cron.Start()
	s.logger.Info().
		Int("jobs", len(s.jobs)).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop, waiting for a running trigger to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}
