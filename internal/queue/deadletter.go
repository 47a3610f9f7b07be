// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"context"
	"time"

	"github.com/casparianflow/flow/internal/store"
)

// DeadLetterEntry mirrors one cf_dead_letter row.
type DeadLetterEntry struct {
	ID             int64
	OriginalJobID  int64
	FileID         *int64
	PluginName     string
	ErrorMessage   *string
	RetryCount     int64
	MovedAt        int64
	Reason         string
}

// MoveToDeadLetter records the job in cf_dead_letter, then marks the
// original row failed/failed.
// errMessage may be empty (e.g. the max-retries-exceeded path, which
// already carries its story in reason).
func (q *Queue) MoveToDeadLetter(ctx context.Context, jobID int64, errMessage, reason string) error {
	j, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	now := nowMillis()
	return q.db.Transaction(ctx, func(tx store.Tx) error {
		if _, err := tx.Execute(ctx,
			`INSERT INTO cf_dead_letter (original_job_id, file_id, plugin_name, error_message, retry_count, moved_at, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			j.ID, j.FileID, j.PluginName, errMessage, j.RetryCount, now, reason); err != nil {
			return err
		}
		_, err := tx.Execute(ctx,
			"UPDATE cf_processing_queue SET status = ?, completion_status = ?, end_time = ? WHERE id = ?",
			string(JobFailed), string(CompletionFailed), now, jobID)
		return err
	})
}

// ListDeadLetters returns up to limit dead-letter rows, most recent first.
func (q *Queue) ListDeadLetters(ctx context.Context, limit int64) ([]DeadLetterEntry, error) {
	rows, err := q.db.QueryAll(ctx, "SELECT * FROM cf_dead_letter ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetterEntry, 0, len(rows))
	for _, row := range rows {
		e, err := rowToDeadLetter(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ReplayDeadLetter re-inserts a new queued job carrying the same
// (file_id, plugin_name) and removes the
// dead-letter row. The new job starts with retry_count 0 — it is a
// fresh attempt, not a continuation of the dead-lettered one's streak.
func (q *Queue) ReplayDeadLetter(ctx context.Context, deadLetterID int64) (Job, error) {
	row, err := q.db.QueryOptional(ctx, "SELECT * FROM cf_dead_letter WHERE id = ?", deadLetterID)
	if err != nil {
		return Job{}, err
	}
	if row == nil {
		return Job{}, &DeadLetterNotFound{ID: deadLetterID}
	}
	entry, err := rowToDeadLetter(*row)
	if err != nil {
		return Job{}, err
	}

	var replayed Job
	err = q.db.Transaction(ctx, func(tx store.Tx) error {
		now := nowMillis()
		v, err := tx.QueryScalar(ctx,
			`INSERT INTO cf_processing_queue (file_id, plugin_name, status, priority, retry_count, quarantine_row_count, created_at)
			 VALUES (?, ?, 'queued', 0, 0, 0, ?)
			 RETURNING id`,
			entry.FileID, entry.PluginName, now)
		if err != nil {
			return err
		}
		id, err := store.FromDbValue[int64](v)
		if err != nil {
			return err
		}
		newRow, err := tx.QueryOne(ctx, "SELECT * FROM cf_processing_queue WHERE id = ?", id)
		if err != nil {
			return err
		}
		replayed, err = rowToJob(newRow)
		if err != nil {
			return err
		}
		_, err = tx.Execute(ctx, "DELETE FROM cf_dead_letter WHERE id = ?", deadLetterID)
		return err
	})
	if err != nil {
		return Job{}, err
	}
	return replayed, nil
}

// SweepStaleFailures moves every terminally-failed job (FailJob, not a
// requeue-exhausted one — those are dead-lettered immediately by
// RequeueJob) older than olderThan into the dead-letter table. A job
// can sit in failed status without ever being requeued when nothing
// ever calls RequeueJob on it (e.g. a worker crashed between FailJob
// and its own retry decision); this is the periodic backstop that
// keeps such rows from lingering forever outside the dead-letter
// workflow. Returns the number of rows swept.
func (q *Queue) SweepStaleFailures(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	rows, err := q.db.QueryAll(ctx,
		`SELECT id FROM cf_processing_queue
		 WHERE status = ? AND end_time IS NOT NULL AND end_time < ?
		   AND NOT EXISTS (SELECT 1 FROM cf_dead_letter WHERE original_job_id = cf_processing_queue.id)`,
		string(JobFailed), cutoff)
	if err != nil {
		return 0, err
	}
	var swept int64
	for _, row := range rows {
		id, err := store.FromDbValue[int64](row.MustGet("id"))
		if err != nil {
			return swept, err
		}
		if err := q.MoveToDeadLetter(ctx, id, "", "stale_failure_sweep"); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

func rowToDeadLetter(row store.DbRow) (DeadLetterEntry, error) {
	get := func(col string) store.DbValue { return row.MustGet(col) }

	id, err := store.FromDbValue[int64](get("id"))
	if err != nil {
		return DeadLetterEntry{}, err
	}
	originalJobID, err := store.FromDbValue[int64](get("original_job_id"))
	if err != nil {
		return DeadLetterEntry{}, err
	}
	fileID, err := store.OptionalFromDbValue[int64](get("file_id"))
	if err != nil {
		return DeadLetterEntry{}, err
	}
	pluginName, err := store.FromDbValue[string](get("plugin_name"))
	if err != nil {
		return DeadLetterEntry{}, err
	}
	errMessage, err := store.OptionalFromDbValue[string](get("error_message"))
	if err != nil {
		return DeadLetterEntry{}, err
	}
	retryCount, err := store.FromDbValue[int64](get("retry_count"))
	if err != nil {
		return DeadLetterEntry{}, err
	}
	movedAt, err := store.FromDbValue[int64](get("moved_at"))
	if err != nil {
		return DeadLetterEntry{}, err
	}
	reason, err := store.FromDbValue[string](get("reason"))
	if err != nil {
		return DeadLetterEntry{}, err
	}

	return DeadLetterEntry{
		ID: id, OriginalJobID: originalJobID, FileID: fileID, PluginName: pluginName,
		ErrorMessage: errMessage, RetryCount: retryCount, MovedAt: movedAt, Reason: reason,
	}, nil
}
