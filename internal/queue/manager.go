package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/skuforge/skuforge/internal/interfaces"
	"github.com/skuforge/skuforge/internal/models"
)

// storedTask wraps an envelope with delivery state inside Badger.
type storedTask struct {
	Msg       *models.TaskMessage `json:"msg"`
	VisibleAt time.Time           `json:"visible_at"`
	Attempt   int                 `json:"attempt"`
	InFlight  bool                `json:"in_flight"`
	LastError string              `json:"last_error,omitempty"`
}

// Manager is a persistent task queue over BadgerDB.
//
// Key space:
//
//	queue:<name>:msg:<task_id>                    task body + delivery state
//	queue:<name>:index:<rank><visible_at>:<id>    readiness index, rank 0=high
//	queue:<name>:dlq:<task_id>                    dead-lettered tasks
//
// The readiness index is sorted by (priority rank, visible-at), so the
// first ready key per rank is the next message to deliver. Claiming moves
// the index key into the future by the visibility timeout; an expired
// lease makes the message claimable again without any reaper.
type Manager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	maxRetries        int
	backoffBase       time.Duration
	backoffCap        time.Duration
}

// Compile-time assertion
var _ interfaces.TaskQueue = (*Manager)(nil)

// NewManager creates a Badger-backed queue manager.
func NewManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, maxRetries int, backoffBase, backoffCap time.Duration) (*Manager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if backoffBase < time.Second {
		backoffBase = time.Second
	}
	if backoffCap <= 0 {
		backoffCap = 5 * time.Minute
	}
	if maxRetries < 1 || maxRetries > 10 {
		maxRetries = models.DefaultMaxRetries
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxRetries:        maxRetries,
		backoffBase:       backoffBase,
		backoffCap:        backoffCap,
	}, nil
}

// Name returns the queue name.
func (m *Manager) Name() string {
	return m.queueName
}

// Enqueue adds a message. task_id uniqueness is enforced by the message
// key itself, which is also what coalesces recalc:<product_id> tasks.
func (m *Manager) Enqueue(ctx context.Context, msg *models.TaskMessage) error {
	// Retry policy is owned by the queue, not the enqueuer.
	msg.MaxRetries = m.maxRetries
	if err := msg.Validate(); err != nil {
		return err
	}

	return m.db.Update(func(txn *badger.Txn) error {
		return m.insertTask(txn, msg)
	})
}

// insertTask writes a fresh message and its readiness index entry inside
// an open transaction, enforcing task_id uniqueness.
func (m *Manager) insertTask(txn *badger.Txn, msg *models.TaskMessage) error {
	st := storedTask{
		Msg:       msg,
		VisibleAt: time.Now(),
		Attempt:   0,
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal queued task: %w", err)
	}

	msgKey := m.msgKey(msg.TaskID)
	if _, err := txn.Get(msgKey); err == nil {
		return models.ErrDuplicateTask
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	if err := txn.Set(msgKey, data); err != nil {
		return err
	}
	return txn.Set(m.indexKey(msg.Priority.Rank(), st.VisibleAt, msg.TaskID), []byte{})
}

// Claim leases the next ready message, highest priority first. Messages
// whose delivery count exceeds max_retries+1 (lost leases) are moved to
// the DLQ during the scan.
func (m *Manager) Claim(ctx context.Context) (*interfaces.ClaimedTask, error) {
	// A poison message found mid-scan is dead-lettered in its own commit,
	// then the scan restarts.
	for {
		claimed, deadLettered, err := m.claimOnce()
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			return claimed, nil
		}
		if !deadLettered {
			return nil, models.ErrNoMessage
		}
	}
}

func (m *Manager) claimOnce() (*interfaces.ClaimedTask, bool, error) {
	var claimed *interfaces.ClaimedTask
	deadLettered := false

	err := m.db.Update(func(txn *badger.Txn) error {
		now := time.Now()

		for rank := 0; rank <= 2; rank++ {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			prefix := m.rankPrefix(rank)
			it := txn.NewIterator(opts)

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				key := it.Item().KeyCopy(nil)
				ts, id, err := m.parseIndexKey(rank, key)
				if err != nil {
					continue
				}
				if ts.After(now) {
					// Keys are sorted by visible-at within a rank, so
					// nothing later in this rank is ready either.
					break
				}

				item, err := txn.Get(m.msgKey(id))
				if err != nil {
					if errors.Is(err, badger.ErrKeyNotFound) {
						// Orphaned index entry; clean up and continue.
						if delErr := txn.Delete(key); delErr != nil {
							it.Close()
							return delErr
						}
						continue
					}
					it.Close()
					return err
				}

				var st storedTask
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &st)
				}); err != nil {
					it.Close()
					return err
				}

				if st.Attempt >= st.Msg.MaxRetries+1 {
					// Delivered repeatedly without an ack or nack: the
					// lease keeps expiring. Dead-letter to stop the loop.
					it.Close()
					if err := m.deadLetter(txn, key, &st, "visibility timeout exceeded"); err != nil {
						return err
					}
					deadLettered = true
					return nil
				}

				st.Attempt++
				st.InFlight = true
				st.VisibleAt = now.Add(m.visibilityTimeout)

				data, err := json.Marshal(st)
				if err != nil {
					it.Close()
					return err
				}
				it.Close()

				if err := txn.Set(m.msgKey(id), data); err != nil {
					return err
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Set(m.indexKey(rank, st.VisibleAt, id), []byte{}); err != nil {
					return err
				}

				claimed = &interfaces.ClaimedTask{
					Message: st.Msg,
					Receipt: id,
					Attempt: st.Attempt,
				}
				return nil
			}
			it.Close()
		}

		return nil
	})

	if err != nil {
		return nil, false, err
	}
	return claimed, deadLettered, nil
}

// Ack removes a completed task from the queue.
func (m *Manager) Ack(ctx context.Context, task *interfaces.ClaimedTask) error {
	return m.db.Update(func(txn *badger.Txn) error {
		st, err := m.readStored(txn, task.Receipt)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil // already removed
			}
			return err
		}
		return m.removeStored(txn, task.Receipt, st)
	})
}

// Nack re-enqueues a failed task with exponential backoff, or moves it to
// the dead-letter set once retries are exhausted. The original payload and
// the final error are preserved on the DLQ entry.
func (m *Manager) Nack(ctx context.Context, task *interfaces.ClaimedTask, reason error) error {
	reasonText := "unknown error"
	if reason != nil {
		reasonText = reason.Error()
	}

	return m.db.Update(func(txn *badger.Txn) error {
		st, err := m.readStored(txn, task.Receipt)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		oldIndexKey := m.indexKey(st.Msg.Priority.Rank(), st.VisibleAt, task.Receipt)

		if st.Msg.RetryCount >= st.Msg.MaxRetries {
			return m.deadLetter(txn, oldIndexKey, st, reasonText)
		}

		st.Msg.RetryCount++
		st.InFlight = false
		st.LastError = reasonText
		st.VisibleAt = time.Now().Add(m.backoffDelay(st.Msg.RetryCount))

		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(task.Receipt), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(m.indexKey(st.Msg.Priority.Rank(), st.VisibleAt, task.Receipt), []byte{})
	})
}

// backoffDelay is base * 2^retryCount, capped.
func (m *Manager) backoffDelay(retryCount int) time.Duration {
	delay := m.backoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= m.backoffCap {
			return m.backoffCap
		}
	}
	return delay
}

// Depth counts messages that are ready for delivery now.
func (m *Manager) Depth(ctx context.Context) (int, error) {
	return m.countMessages(func(st *storedTask, now time.Time) bool {
		return !st.InFlight && !st.VisibleAt.After(now)
	})
}

// InProgressDepth counts messages currently leased to a worker.
func (m *Manager) InProgressDepth(ctx context.Context) (int, error) {
	return m.countMessages(func(st *storedTask, now time.Time) bool {
		return st.InFlight && st.VisibleAt.After(now)
	})
}

func (m *Manager) countMessages(match func(*storedTask, time.Time) bool) (int, error) {
	count := 0
	now := time.Now()
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var st storedTask
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &st)
			}); err != nil {
				continue
			}
			if match(&st, now) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// DLQDepth counts dead-lettered tasks.
func (m *Manager) DLQDepth(ctx context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := m.dlqPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// DLQList returns all dead-lettered tasks.
func (m *Manager) DLQList(ctx context.Context) ([]interfaces.DLQEntry, error) {
	var entries []interfaces.DLQEntry
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := m.dlqPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry interfaces.DLQEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// DLQReprocess re-enqueues a dead-lettered task as a fresh message with
// retry_count = 0. DLQ entries are never retried any other way. Removal
// and re-insert share one transaction, so a failed re-enqueue (a live
// task already holds the task_id, say) leaves the DLQ entry in place.
func (m *Manager) DLQReprocess(ctx context.Context, taskID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		dlqKey := m.dlqKey(taskID)
		item, err := txn.Get(dlqKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.NewNotFoundError("dlq entry not found", map[string]interface{}{
					"task_id": taskID,
				})
			}
			return err
		}

		var entry interfaces.DLQEntry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return err
		}

		msg := entry.Message
		msg.RetryCount = 0
		msg.MaxRetries = m.maxRetries
		msg.EnqueuedAt = time.Now().UTC()
		if err := msg.Validate(); err != nil {
			return err
		}

		if err := m.insertTask(txn, msg); err != nil {
			return err
		}
		return txn.Delete(dlqKey)
	})
}

// Stats aggregates the three depths for the monitor.
func (m *Manager) Stats(ctx context.Context) (interfaces.QueueStats, error) {
	depth, err := m.Depth(ctx)
	if err != nil {
		return interfaces.QueueStats{}, err
	}
	inProgress, err := m.InProgressDepth(ctx)
	if err != nil {
		return interfaces.QueueStats{}, err
	}
	dlq, err := m.DLQDepth(ctx)
	if err != nil {
		return interfaces.QueueStats{}, err
	}
	return interfaces.QueueStats{
		Name:       m.queueName,
		Depth:      depth,
		InProgress: inProgress,
		DLQDepth:   dlq,
	}, nil
}

// Close is a no-op; the Badger handle is managed by the caller.
func (m *Manager) Close() error {
	return nil
}

// Helpers

func (m *Manager) readStored(txn *badger.Txn, id string) (*storedTask, error) {
	item, err := txn.Get(m.msgKey(id))
	if err != nil {
		return nil, err
	}
	var st storedTask
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &st)
	}); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *Manager) removeStored(txn *badger.Txn, id string, st *storedTask) error {
	idxKey := m.indexKey(st.Msg.Priority.Rank(), st.VisibleAt, id)
	if err := txn.Delete(idxKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Delete(m.msgKey(id))
}

func (m *Manager) deadLetter(txn *badger.Txn, indexKey []byte, st *storedTask, reason string) error {
	entry := interfaces.DLQEntry{
		Message:    st.Msg,
		FinalError: reason,
		MovedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := txn.Set(m.dlqKey(st.Msg.TaskID), data); err != nil {
		return err
	}
	if err := txn.Delete(indexKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Delete(m.msgKey(st.Msg.TaskID))
}

func (m *Manager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *Manager) dlqKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:dlq:%s", m.queueName, id))
}

func (m *Manager) dlqPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:dlq:", m.queueName))
}

func (m *Manager) rankPrefix(rank int) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:%d", m.queueName, rank))
}

func (m *Manager) indexKey(rank int, visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so string sorting matches numeric sorting.
	return []byte(fmt.Sprintf("queue:%s:index:%d%020d:%s", m.queueName, rank, visibleAt.UnixNano(), id))
}

func (m *Manager) parseIndexKey(rank int, key []byte) (time.Time, string, error) {
	prefix := string(m.rankPrefix(rank))
	if len(key) <= len(prefix) {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}
	suffix := string(key[len(prefix):])
	// Suffix is "{20-digit-ts}:{id}"
	if len(suffix) < 22 {
		return time.Time{}, "", fmt.Errorf("invalid index key suffix")
	}
	ts, err := strconv.ParseInt(suffix[:20], 10, 64)
	if err != nil {
		return time.Time{}, "", err
	}
	id := strings.TrimPrefix(suffix[20:], ":")
	return time.Unix(0, ts), id, nil
}
