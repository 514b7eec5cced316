package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskMessageDefaults(t *testing.T) {
	msg, err := NewTaskMessage(TaskKindParse, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, msg.TaskID)
	assert.Equal(t, TaskKindParse, msg.Kind)
	assert.Equal(t, 0, msg.RetryCount)
	assert.Equal(t, DefaultMaxRetries, msg.MaxRetries)
	assert.Equal(t, PriorityNormal, msg.Priority)
	assert.False(t, msg.EnqueuedAt.IsZero())
}

func TestTaskMessageValidate(t *testing.T) {
	msg, err := NewTaskMessageWithID("task-1", TaskKindRecalc, nil)
	require.NoError(t, err)
	assert.NoError(t, msg.Validate())

	msg.TaskID = ""
	err = msg.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrorKindValidation, KindOf(err))

	msg.TaskID = "task-1"
	msg.Priority = "urgent"
	assert.Error(t, msg.Validate())

	msg.Priority = PriorityHigh
	msg.MaxRetries = 0
	assert.Error(t, msg.Validate())
}

func TestTaskMessageRoundTrip(t *testing.T) {
	payload := RecalcPayload{ProductID: uuid.New()}
	msg, err := NewTaskMessageWithID("task-1", TaskKindRecalc, payload)
	require.NoError(t, err)

	data, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := TaskMessageFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, msg.TaskID, decoded.TaskID)
	assert.Equal(t, msg.Kind, decoded.Kind)

	var got RecalcPayload
	require.NoError(t, decoded.DecodePayload(&got))
	assert.Equal(t, payload.ProductID, got.ProductID)
}

func TestDecodePayloadErrors(t *testing.T) {
	msg, err := NewTaskMessageWithID("task-1", TaskKindRecalc, nil)
	require.NoError(t, err)

	var payload RecalcPayload
	assert.Error(t, msg.DecodePayload(&payload), "empty payload")

	msg.Payload = []byte("{not json")
	err = msg.DecodePayload(&payload)
	require.Error(t, err)
	assert.Equal(t, ErrorKindValidation, KindOf(err))
}

func TestTaskPriorityRank(t *testing.T) {
	assert.Equal(t, 0, PriorityHigh.Rank())
	assert.Equal(t, 1, PriorityNormal.Rank())
	assert.Equal(t, 1, TaskPriority("").Rank())
	assert.Equal(t, 2, PriorityLow.Rank())
}

func TestRetrySummary(t *testing.T) {
	msg, err := NewTaskMessageWithID("task-1", TaskKindParse, nil)
	require.NoError(t, err)

	assert.Empty(t, msg.RetrySummary("failed"), "no retries yet")

	msg.RetryCount = 3
	assert.Equal(t, "Failed after 3/3 retry attempts", msg.RetrySummary("failed"))

	msg.RetryCount = 1
	assert.Equal(t, "Retry attempt 1/3 in progress", msg.RetrySummary("running"))
	assert.Equal(t, "Retry attempt 1/3 in progress", msg.RetrySummary("pending"))
	assert.Equal(t, "Completed after 1 retry attempt(s)", msg.RetrySummary("completed"))
}

func TestRecalcTaskID(t *testing.T) {
	productID := uuid.New()
	assert.Equal(t, "recalc:"+productID.String(), RecalcTaskID(productID))
	// Stable per product so pending recomputes coalesce.
	assert.Equal(t, RecalcTaskID(productID), RecalcTaskID(productID))
}

func TestParseTaskPayloadValidate(t *testing.T) {
	payload := &ParseTaskPayload{
		ParserType:   "csv",
		SupplierName: "Acme",
		SourceConfig: map[string]interface{}{"file_path": "acme.csv"},
	}
	assert.NoError(t, payload.Validate())

	// Only the stub parser may run without a source config.
	payload.SourceConfig = nil
	err := payload.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrorKindValidation, KindOf(err))

	payload.ParserType = "stub"
	assert.NoError(t, payload.Validate())

	payload.SupplierName = ""
	assert.Error(t, payload.Validate())
}
