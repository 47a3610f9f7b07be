// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

// MismatchKind is cf_schema_mismatch.kind's finite set: missing
// columns, extra columns, order mismatches, type mismatches.
type MismatchKind string

const (
	MismatchMissingColumn MismatchKind = "missing_column"
	MismatchExtraColumn   MismatchKind = "extra_column"
	MismatchOrderMismatch MismatchKind = "order_mismatch"
	MismatchTypeMismatch  MismatchKind = "type_mismatch"
)

// SchemaDiff is one discrepancy between a parser output's declared
// schema and the Arrow batch it actually sent.
type SchemaDiff struct {
	Kind       MismatchKind
	ColumnName string
	Expected   string
	Actual     string
}

// RecordSchemaMismatch expands a structured diff into one
// cf_schema_mismatch row per discrepancy, all tied to the same job for
// offline inspection.
func (q *Queue) RecordSchemaMismatch(ctx context.Context, jobID int64, diffs []SchemaDiff) error {
	if len(diffs) == 0 {
		return nil
	}
	now := nowMillis()
	columns := []string{"job_id", "kind", "column_name", "expected", "actual", "created_at"}
	rows := make([][]store.DbValue, 0, len(diffs))
	for _, d := range diffs {
		rows = append(rows, []store.DbValue{jobID, string(d.Kind), d.ColumnName, d.Expected, d.Actual, now})
	}
	return q.db.BulkInsertRows(ctx, "cf_schema_mismatch", columns, rows)
}

func (q *Queue) ListSchemaMismatches(ctx context.Context, jobID int64) ([]SchemaDiff, error) {
	rows, err := q.db.QueryAll(ctx, "SELECT * FROM cf_schema_mismatch WHERE job_id = ? ORDER BY id ASC", jobID)
	if err != nil {
		return nil, err
	}
	out := make([]SchemaDiff, 0, len(rows))
	for _, row := range rows {
		kindRaw, err := store.FromDbValue[string](row.MustGet("kind"))
		if err != nil {
			return nil, err
		}
		columnName, err := store.FromDbValue[string](row.MustGet("column_name"))
		if err != nil {
			return nil, err
		}
		expected, err := store.OptionalFromDbValue[string](row.MustGet("expected"))
		if err != nil {
			return nil, err
		}
		actual, err := store.OptionalFromDbValue[string](row.MustGet("actual"))
		if err != nil {
			return nil, err
		}
		diff := SchemaDiff{Kind: MismatchKind(kindRaw), ColumnName: columnName}
		if expected != nil {
			diff.Expected = *expected
		}
		if actual != nil {
			diff.Actual = *actual
		}
		out = append(out, diff)
	}
	return out, nil
}
