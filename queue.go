package pagestash

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pagestash/pagestash/model"
)

const queueColumns = "id, type, status, priority, payload, created_at, updated_at, attempts, last_error"

// Enqueue adds a pending work item and returns its generated id. Higher
// priority dequeues first; ties break oldest-first.
func (s *Store) Enqueue(ctx context.Context, itemType string, priority int, payload []byte) (string, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := s.nowMillis()
	_, err = eng.DB().ExecContext(ctx, `
		INSERT INTO queue_items (`+queueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
		id, itemType, model.StatusPending, priority, payload, now, now)
	err = translateError(err)
	s.metrics.RecordQueueOp("enqueue", err)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Dequeue returns the next pending item without changing its status, or nil
// when the queue is empty. With types given, only items of those types are
// considered. The read is advisory: two concurrent callers can see the same
// item, and only Claim decides who runs it.
func (s *Store) Dequeue(ctx context.Context, types ...string) (*model.QueueItem, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}
	q := "SELECT " + queueColumns + " FROM queue_items WHERE status = ?"
	args := []any{model.StatusPending}
	if len(types) > 0 {
		q += " AND type IN (" + placeholders(len(types)) + ")"
		args = append(args, idArgs(types)...)
	}
	q += " ORDER BY priority DESC, created_at ASC, id ASC LIMIT 1"
	row := eng.DB().QueryRowContext(ctx, q, args...)

	item, err := scanQueueItem(row.Scan)
	if err == sql.ErrNoRows {
		s.metrics.RecordQueueOp("dequeue", nil)
		return nil, nil
	}
	err = translateError(err)
	s.metrics.RecordQueueOp("dequeue", err)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Claim atomically transitions a pending item to running. Returns false when
// the item was already claimed, finished, or never existed; exactly one of
// several racing claimers wins. Attempts are not touched here: they count
// failed executions and are incremented by MarkFailed.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return false, err
	}
	res, err := eng.DB().ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		model.StatusRunning, s.nowMillis(), id, model.StatusPending)
	err = translateError(err)
	s.metrics.RecordQueueOp("claim", err)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClaimNext picks the best pending item and claims it in one call, retrying
// the selection when a concurrent claimer wins the race. Returns nil when no
// pending item (of the given types) remains.
func (s *Store) ClaimNext(ctx context.Context, types ...string) (*model.QueueItem, error) {
	for {
		item, err := s.Dequeue(ctx, types...)
		if err != nil || item == nil {
			return nil, err
		}
		ok, err := s.Claim(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			item.Status = model.StatusRunning
			return item, nil
		}
		// Raced; the item went to another claimer. Pick again.
	}
}

// MarkDone records successful completion. Unknown ids are tolerated.
func (s *Store) MarkDone(ctx context.Context, id string) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	_, err = eng.DB().ExecContext(ctx, `
		UPDATE queue_items SET status = ?, updated_at = ?, last_error = NULL
		WHERE id = ?`,
		model.StatusDone, s.nowMillis(), id)
	err = translateError(err)
	s.metrics.RecordQueueOp("done", err)
	return err
}

// MarkFailed records a failed execution: increments attempts and stores the
// cause. Unknown ids are tolerated. The item stays in the table for
// inspection until RequeueFailed or a wipe removes it.
func (s *Store) MarkFailed(ctx context.Context, id string, cause string) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	_, err = eng.DB().ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, attempts = attempts + 1, updated_at = ?, last_error = ?
		WHERE id = ?`,
		model.StatusFailed, s.nowMillis(), nullable(cause), id)
	err = translateError(err)
	s.metrics.RecordQueueOp("failed", err)
	return err
}

// RequeueFailed flips failed items back to pending so workers pick them up
// again. With maxAttempts > 0, only items below that attempt count are
// requeued; the rest stay failed for inspection. last_error is kept so the
// history of an item survives the retry. Returns the number requeued.
func (s *Store) RequeueFailed(ctx context.Context, maxAttempts int) (int, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return 0, err
	}
	q := "UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ?"
	args := []any{model.StatusPending, s.nowMillis(), model.StatusFailed}
	if maxAttempts > 0 {
		q += " AND attempts < ?"
		args = append(args, maxAttempts)
	}
	res, err := eng.DB().ExecContext(ctx, q, args...)
	if err != nil {
		return 0, translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// PendingCount returns the number of pending items.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return 0, err
	}
	var n int
	err = eng.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM queue_items WHERE status = ?", model.StatusPending).Scan(&n)
	if err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

// GetQueueItem returns the item with the given id, or nil if absent.
func (s *Store) GetQueueItem(ctx context.Context, id string) (*model.QueueItem, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}
	row := eng.DB().QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanQueueItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return &item, nil
}

func scanQueueItem(scan func(dest ...any) error) (model.QueueItem, error) {
	var (
		item    model.QueueItem
		lastErr sql.NullString
	)
	err := scan(&item.ID, &item.Type, &item.Status, &item.Priority, &item.Payload,
		&item.CreatedAt, &item.UpdatedAt, &item.Attempts, &lastErr)
	if err != nil {
		return model.QueueItem{}, err
	}
	item.LastError = lastErr.String
	return item, nil
}
