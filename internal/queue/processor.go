// -----------------------------------------------------------------------
// Task Processor - Routes tasks from queue to registered workers
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// Backoff configuration for idle polling
const (
	minBackoff = 100 * time.Millisecond // Initial backoff when queue is empty
	maxBackoff = 5 * time.Second        // Maximum backoff duration
)

// Processor pulls tasks from the queue and routes them to registered
// workers by task kind. Multiple goroutines poll concurrently; each task
// runs under its own timeout context.
type Processor struct {
	queue       interfaces.TaskQueue
	workers     map[models.TaskKind]interfaces.TaskWorker
	logger      arbor.ILogger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
	concurrency int
	taskTimeout time.Duration
}

// NewProcessor creates a task processor. The concurrency parameter
// controls how many tasks can be processed in parallel.
func NewProcessor(queue interfaces.TaskQueue, logger arbor.ILogger, concurrency int, taskTimeout time.Duration) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	if concurrency < 1 {
		concurrency = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 10 * time.Minute
	}

	return &Processor{
		queue:       queue,
		workers:     make(map[models.TaskKind]interfaces.TaskWorker),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		concurrency: concurrency,
		taskTimeout: taskTimeout,
	}
}

// RegisterWorker registers a worker for its task kind. Registering two
// workers for the same kind is a wiring bug, so it panics at startup.
func (p *Processor) RegisterWorker(worker interfaces.TaskWorker) {
	kind := worker.Kind()
	if _, exists := p.workers[kind]; exists {
		panic(fmt.Sprintf("duplicate worker registration for task kind %q", kind))
	}
	p.workers[kind] = worker
	p.logger.Debug().
		Str("task_kind", string(kind)).
		Msg("Task worker registered")
}

// Start starts the processor goroutines.
// This should be called AFTER all services are fully initialized.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Warn().Msg("Task processor already running")
		return
	}

	p.running = true
	p.logger.Info().
		Int("concurrency", p.concurrency).
		Msg("Starting task processor")

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.processLoop(i)
	}
}

// Stop stops the processor gracefully. In-flight tasks are allowed to
// finish; their contexts are cancelled so long-running handlers can bail.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info().Msg("Stopping task processor...")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("Task processor stopped")
}

// processLoop is the main polling loop for one worker goroutine.
func (p *Processor) processLoop(workerID int) {
	defer p.wg.Done()

	// Panic recovery wrapper so a crash in queue plumbing is logged
	// instead of silently killing the goroutine.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Fatal().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", getStackTrace()).
				Int("worker_id", workerID).
				Msg("FATAL: Task processor goroutine panicked")
		}
	}()

	p.logger.Debug().
		Int("worker_id", workerID).
		Msg("Task processor worker started")

	// Backoff tracking for idle polling - reduces CPU when queue is empty
	currentBackoff := minBackoff

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().
				Int("worker_id", workerID).
				Msg("Task processor worker stopping")
			return
		default:
			processed := p.processNext(workerID)

			if processed {
				currentBackoff = minBackoff
			} else {
				select {
				case <-p.ctx.Done():
					return
				case <-time.After(currentBackoff):
				}

				currentBackoff = currentBackoff * 2
				if currentBackoff > maxBackoff {
					currentBackoff = maxBackoff
				}
			}
		}
	}
}

// getStackTrace returns a formatted stack trace for panic debugging
func getStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// processNext claims and processes a single task.
// Returns true if a task was claimed, false if the queue was empty.
func (p *Processor) processNext(workerID int) bool {
	var task *interfaces.ClaimedTask

	// Panic recovery for individual task execution. A panicking worker
	// counts as a retryable failure.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", getStackTrace()).
				Int("worker_id", workerID).
				Msg("Recovered from panic in task execution")

			if task != nil {
				if err := p.queue.Nack(p.ctx, task, fmt.Errorf("task panicked: %v", r)); err != nil {
					p.logger.Error().Err(err).
						Str("task_id", task.Message.TaskID).
						Msg("Failed to nack task after panic")
				}
			}
		}
	}()

	task, err := p.queue.Claim(p.ctx)
	if err != nil {
		if !errors.Is(err, models.ErrNoMessage) {
			p.logger.Warn().
				Err(err).
				Int("worker_id", workerID).
				Msg("Error claiming task")
		}
		return false
	}

	msg := task.Message
	startTime := time.Now()

	p.logger.Info().
		Str("task_id", msg.TaskID).
		Str("task_kind", string(msg.Kind)).
		Int("attempt", task.Attempt).
		Int("worker_id", workerID).
		Msg("Task started")

	worker, ok := p.workers[msg.Kind]
	if !ok {
		p.logger.Error().
			Str("task_kind", string(msg.Kind)).
			Str("task_id", msg.TaskID).
			Msg("No worker registered for task kind")

		// Nothing will ever handle it; retrying cannot help.
		if err := p.queue.Ack(p.ctx, task); err != nil {
			p.logger.Error().Err(err).Msg("Failed to ack unroutable task")
		}
		return true
	}

	taskCtx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	execErr := worker.Execute(taskCtx, msg)
	cancel()
	duration := time.Since(startTime)

	if execErr != nil {
		p.settleFailure(task, execErr, duration, workerID)
		return true
	}

	p.logger.Info().
		Str("task_id", msg.TaskID).
		Str("task_kind", string(msg.Kind)).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Task completed")

	if err := p.queue.Ack(p.ctx, task); err != nil {
		p.logger.Error().
			Err(err).
			Str("task_id", msg.TaskID).
			Msg("Failed to ack completed task")
	}
	return true
}

// settleFailure decides between retry and terminal failure. Validation
// and security errors are deterministic, so they are acked and logged
// rather than retried; everything else is nacked for backoff/DLQ.
func (p *Processor) settleFailure(task *interfaces.ClaimedTask, execErr error, duration time.Duration, workerID int) {
	msg := task.Message

	p.logger.Error().
		Err(execErr).
		Str("task_id", msg.TaskID).
		Str("task_kind", string(msg.Kind)).
		Str("error_kind", string(models.KindOf(execErr))).
		Int("retry_count", msg.RetryCount).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Task failed")

	if !models.Retryable(execErr) {
		p.logger.Warn().
			Str("task_id", msg.TaskID).
			Str("task_kind", string(msg.Kind)).
			Msg("Non-retryable error, dropping task")
		if err := p.queue.Ack(p.ctx, task); err != nil {
			p.logger.Error().Err(err).
				Str("task_id", msg.TaskID).
				Msg("Failed to ack non-retryable task")
		}
		return
	}

	if err := p.queue.Nack(p.ctx, task, execErr); err != nil {
		p.logger.Error().Err(err).
			Str("task_id", msg.TaskID).
			Msg("Failed to nack task")
	}
}
