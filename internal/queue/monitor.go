package queue

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
)

// Depth above which the monitor starts warning about backlog.
const depthWarnThreshold = 100

// Monitor periodically samples queue stats, logs warnings when the
// backlog grows or tasks land in the DLQ, and caches the last snapshot
// for the status endpoint.
type Monitor struct {
	queue    interfaces.TaskQueue
	logger   arbor.ILogger
	interval time.Duration

	mu   sync.RWMutex
	last interfaces.QueueStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a queue monitor sampling at the given interval.
func NewMonitor(queue interfaces.TaskQueue, logger arbor.ILogger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		queue:    queue,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins background sampling.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.sample()
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop stops background sampling.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Snapshot returns the most recent stats sample.
func (m *Monitor) Snapshot() interfaces.QueueStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) sample() {
	stats, err := m.queue.Stats(m.ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to sample queue stats")
		return
	}

	m.mu.Lock()
	m.last = stats
	m.mu.Unlock()

	if stats.DLQDepth > 0 {
		m.logger.Warn().
			Str("queue", stats.Name).
			Int("dlq_depth", stats.DLQDepth).
			Msg("Dead-letter queue is not empty")
	}
	if stats.Depth > depthWarnThreshold {
		m.logger.Warn().
			Str("queue", stats.Name).
			Int("depth", stats.Depth).
			Int("in_progress", stats.InProgress).
			Msg("Queue backlog exceeds threshold")
	}

	m.logger.Debug().
		Str("queue", stats.Name).
		Int("depth", stats.Depth).
		Int("in_progress", stats.InProgress).
		Int("dlq_depth", stats.DLQDepth).
		Msg("Queue stats sampled")
}
