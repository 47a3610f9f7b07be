// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"context"
	"fmt"
	"math"

	"github.com/casparianflow/flow/internal/store"
)

// RowIndexOverflow is returned by ToRowIndex when a caller's running
// row counter has grown past what the schema's INTEGER row_index
// column can hold — the host must abort the job rather than wrap to a
// negative or truncated index.
type RowIndexOverflow struct {
	Counter uint64
}

func (e *RowIndexOverflow) Error() string {
	return fmt.Sprintf("queue: row counter %d overflows a signed 64-bit row_index", e.Counter)
}

// ToRowIndex converts a host-side running row counter (uint64, since
// it accumulates across many record batches) to the signed column
// type, failing closed on overflow instead of wrapping.
func ToRowIndex(counter uint64) (int64, error) {
	if counter > math.MaxInt64 {
		return 0, &RowIndexOverflow{Counter: counter}
	}
	return int64(counter), nil
}

// QuarantineRow records one row per bad source record, so the
// offending data is inspectable after the fact rather than silently
// dropped. CompleteJob's quarantineRowCount argument later receives
// the aggregate count.
func (q *Queue) QuarantineRow(ctx context.Context, jobID, rowIndex int64, reason string, rawBlob []byte) error {
	_, err := q.db.Execute(ctx,
		"INSERT INTO cf_quarantine (job_id, row_index, reason, raw_blob, created_at) VALUES (?, ?, ?, ?, ?)",
		jobID, rowIndex, reason, rawBlob, nowMillis())
	return err
}

// CountQuarantinedRows returns the number of quarantine rows recorded
// for jobID, the aggregate CompleteJob expects.
func (q *Queue) CountQuarantinedRows(ctx context.Context, jobID int64) (int64, error) {
	v, err := q.db.QueryScalar(ctx, "SELECT COUNT(*) FROM cf_quarantine WHERE job_id = ?", jobID)
	if err != nil {
		return 0, err
	}
	n, err := store.FromDbValue[int64](v)
	if err != nil {
		return 0, err
	}
	return n, nil
}
