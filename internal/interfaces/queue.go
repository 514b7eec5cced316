package interfaces

import (
	"context"
	"time"

	"github.com/skuforge/skuforge/internal/models"
)

// ClaimedTask is a message leased to one worker. The receipt is what Ack
// and Nack operate on; Attempt counts deliveries including this one.
type ClaimedTask struct {
	Message *models.TaskMessage
	Receipt string
	Attempt int
}

// DLQEntry is a dead-lettered task preserved with its final error.
type DLQEntry struct {
	Message    *models.TaskMessage `json:"message"`
	FinalError string              `json:"final_error"`
	MovedAt    time.Time           `json:"moved_at"`
}

// QueueStats is a point-in-time snapshot for the monitor and status view.
type QueueStats struct {
	Name       string `json:"name"`
	Depth      int    `json:"depth"`
	InProgress int    `json:"in_progress"`
	DLQDepth   int    `json:"dlq_depth"`
}

// TaskQueue accepts task messages and delivers each to exactly one worker.
// Failed tasks retry with exponential backoff up to max_retries, then move
// to the dead-letter set.
type TaskQueue interface {
	// Enqueue adds a message. Returns models.ErrDuplicateTask when the
	// task_id already exists anywhere in the queue keyspace.
	Enqueue(ctx context.Context, msg *models.TaskMessage) error

	// Claim leases the next ready message, highest priority first.
	// Returns models.ErrNoMessage when nothing is ready.
	Claim(ctx context.Context) (*ClaimedTask, error)

	// Ack removes a completed task.
	Ack(ctx context.Context, task *ClaimedTask) error

	// Nack re-enqueues a failed task with backoff, or dead-letters it when
	// retries are exhausted. The reason is preserved on the DLQ entry.
	Nack(ctx context.Context, task *ClaimedTask, reason error) error

	// Depth counts ready messages. InProgressDepth counts leased messages.
	Depth(ctx context.Context) (int, error)
	InProgressDepth(ctx context.Context) (int, error)

	// DLQDepth counts dead-lettered tasks; DLQList returns them.
	DLQDepth(ctx context.Context) (int, error)
	DLQList(ctx context.Context) ([]DLQEntry, error)

	// DLQReprocess is the explicit operator action: it re-enqueues the
	// dead-lettered task as a fresh message with retry_count = 0.
	DLQReprocess(ctx context.Context, taskID string) error

	// Stats aggregates the three depths.
	Stats(ctx context.Context) (QueueStats, error)

	Close() error
}

// TaskWorker executes one task kind. Workers are registered with the
// processor, which routes claimed messages by kind.
type TaskWorker interface {
	Kind() models.TaskKind
	Execute(ctx context.Context, msg *models.TaskMessage) error
}
