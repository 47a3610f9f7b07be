// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

// Stats is a single aggregate SELECT's worth of counts by processing
// status, for dashboards.
type Stats struct {
	Queued    int64
	Running   int64
	Completed int64
	Failed    int64
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryAll(ctx, "SELECT status, COUNT(*) AS n FROM cf_processing_queue GROUP BY status")
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, row := range rows {
		statusRaw, err := store.FromDbValue[string](row.MustGet("status"))
		if err != nil {
			return Stats{}, err
		}
		n, err := store.FromDbValue[int64](row.MustGet("n"))
		if err != nil {
			return Stats{}, err
		}
		status, err := ParseJobStatus(statusRaw)
		if err != nil {
			return Stats{}, err
		}
		switch status {
		case JobQueued:
			s.Queued = n
		case JobRunning:
			s.Running = n
		case JobCompleted:
			s.Completed = n
		case JobFailed:
			s.Failed = n
		}
	}
	return s, nil
}

// CountDueRetries counts queued jobs that have been retried at least
// once and are past their scheduled_at, i.e. the backoff has already
// elapsed and they're only waiting on a free worker. The housekeeping
// scheduler's retry-due tick reports this as a backlog gauge; PopJob's
// own candidateSelect already includes these rows, so nothing here
// mutates state.
func (q *Queue) CountDueRetries(ctx context.Context) (int64, error) {
	v, err := q.db.QueryScalar(ctx,
		"SELECT COUNT(*) FROM cf_processing_queue WHERE status = 'queued' AND retry_count > 0 AND scheduled_at IS NOT NULL AND scheduled_at <= ?",
		nowMillis())
	if err != nil {
		return 0, err
	}
	return store.FromDbValue[int64](v)
}
