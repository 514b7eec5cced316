package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrNoMessage is returned when the queue has no ready messages.
var ErrNoMessage = errors.New("no messages in queue")

// ErrDuplicateTask is returned when a task_id is already present in the queue.
var ErrDuplicateTask = errors.New("duplicate task id")

// TaskKind identifies which worker handles a task.
type TaskKind string

const (
	TaskKindParse       TaskKind = "parse_task"
	TaskKindMatchItems  TaskKind = "match_items"
	TaskKindRecalc      TaskKind = "recalc_aggregates"
	TaskKindEnrichItem  TaskKind = "enrich_item"
	TaskKindMasterSync  TaskKind = "master_sync"
	TaskKindReviewSweep TaskKind = "review_expiry"
)

// TaskPriority affects dequeue preference only: high > normal > low.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
)

// Rank maps priority to its index-key prefix. Lower sorts first.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// DefaultMaxRetries applies when the enqueuer does not set max_retries.
const DefaultMaxRetries = 3

// TaskMessage is the common envelope for every queued task.
type TaskMessage struct {
	TaskID     string          `json:"task_id" validate:"required"`
	Kind       TaskKind        `json:"kind" validate:"required"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	RetryCount int             `json:"retry_count" validate:"gte=0"`
	MaxRetries int             `json:"max_retries" validate:"gte=1,lte=10"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Priority   TaskPriority    `json:"priority" validate:"omitempty,oneof=low normal high"`
}

var taskValidate = validator.New()

// NewTaskMessage builds an envelope with a random task id and defaults.
func NewTaskMessage(kind TaskKind, payload interface{}) (*TaskMessage, error) {
	return NewTaskMessageWithID(uuid.New().String(), kind, payload)
}

// NewTaskMessageWithID builds an envelope with a caller-supplied task id.
// Stable ids are how recompute tasks coalesce at the queue level.
func NewTaskMessageWithID(taskID string, kind TaskKind, payload interface{}) (*TaskMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = data
	}

	return &TaskMessage{
		TaskID:     taskID,
		Kind:       kind,
		Payload:    raw,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
		EnqueuedAt: time.Now().UTC(),
		Priority:   PriorityNormal,
	}, nil
}

// Validate checks the envelope against its constraints.
func (m *TaskMessage) Validate() error {
	if err := taskValidate.Struct(m); err != nil {
		return NewValidationError("invalid task message", map[string]interface{}{
			"task_id": m.TaskID,
			"error":   err.Error(),
		})
	}
	return nil
}

// ToJSON serializes the envelope.
func (m *TaskMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TaskMessageFromJSON deserializes an envelope.
func TaskMessageFromJSON(data []byte) (*TaskMessage, error) {
	var m TaskMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal task message: %w", err)
	}
	return &m, nil
}

// DecodePayload unmarshals the kind-specific payload into dst.
func (m *TaskMessage) DecodePayload(dst interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("task %s has no payload", m.TaskID)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return NewValidationError("invalid task payload", map[string]interface{}{
			"task_id": m.TaskID,
			"kind":    string(m.Kind),
			"error":   err.Error(),
		})
	}
	return nil
}

// RetrySummary builds the operator-facing retry string for the status view.
func (m *TaskMessage) RetrySummary(status string) string {
	if m.RetryCount == 0 {
		return ""
	}
	switch status {
	case "failed":
		return fmt.Sprintf("Failed after %d/%d retry attempts", m.RetryCount, m.MaxRetries)
	case "running", "pending":
		return fmt.Sprintf("Retry attempt %d/%d in progress", m.RetryCount, m.MaxRetries)
	default:
		return fmt.Sprintf("Completed after %d retry attempt(s)", m.RetryCount)
	}
}

// ParseTaskPayload is the payload for kind=parse_task.
type ParseTaskPayload struct {
	ParserType   string                 `json:"parser_type" validate:"required"`
	SupplierName string                 `json:"supplier_name" validate:"required"`
	SupplierID   uuid.UUID              `json:"supplier_id"`
	SourceConfig map[string]interface{} `json:"source_config"`
}

// Validate enforces the stub-parser exception: only the stub parser may run
// with an empty source config.
func (p *ParseTaskPayload) Validate() error {
	if err := taskValidate.Struct(p); err != nil {
		return NewValidationError("invalid parse task payload", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if p.ParserType != "stub" && len(p.SourceConfig) == 0 {
		return NewValidationError("source_config is required", map[string]interface{}{
			"parser_type": p.ParserType,
		})
	}
	return nil
}

// MatchItemsPayload is the payload for kind=match_items.
type MatchItemsPayload struct {
	SupplierID uuid.UUID `json:"supplier_id"`
	Limit      int       `json:"limit,omitempty"`
}

// RecalcPayload is the payload for kind=recalc_aggregates.
type RecalcPayload struct {
	ProductID uuid.UUID `json:"product_id"`
}

// EnrichItemPayload is the payload for kind=enrich_item.
type EnrichItemPayload struct {
	SupplierItemID uuid.UUID `json:"supplier_item_id"`
}

// RecalcTaskID keys recompute tasks on the product so rapid link changes
// collapse into one pending task.
func RecalcTaskID(productID uuid.UUID) string {
	return "recalc:" + productID.String()
}
