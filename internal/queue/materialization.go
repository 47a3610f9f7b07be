// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/casparianflow/flow/internal/store"
	"github.com/zeebo/blake3"
)

// OutputMaterialization is one cf_output_materializations row — a
// record that a given job's output was actually written somewhere.
type OutputMaterialization struct {
	ID                int64
	MaterializationKey string
	OutputTargetKey   string
	TableName         string
	SchemaHash        string
	RowCount          int64
	JobID             *int64
	CreatedAt         int64
}

// MaterializationKey derives a deterministic key from (file id, file
// mtime, file size, plugin name, parser fingerprint, output name, sink
// target). Same inputs always produce the same key, so a retried job
// either matches an existing materialization (and is ignored) or
// genuinely changed something upstream (and is recorded as new).
func MaterializationKey(fileID, fileMtimeMs, fileSizeBytes int64, pluginName, parserFingerprint, outputName, sinkTarget string) string {
	h := blake3.New()
	parts := []string{
		strconv.FormatInt(fileID, 10), strconv.FormatInt(fileMtimeMs, 10), strconv.FormatInt(fileSizeBytes, 10),
		pluginName, parserFingerprint, outputName, sinkTarget,
	}
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}

// InsertOutputMaterialization does INSERT ... ON
// CONFLICT(materialization_key) DO NOTHING, making repeated calls with
// the same key a no-op after the first.
func (q *Queue) InsertOutputMaterialization(ctx context.Context, m OutputMaterialization) error {
	now := nowMillis()
	_, err := q.db.Execute(ctx,
		`INSERT INTO cf_output_materializations (materialization_key, output_target_key, table_name, schema_hash, row_count, job_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(materialization_key) DO NOTHING`,
		m.MaterializationKey, m.OutputTargetKey, m.TableName, m.SchemaHash, m.RowCount, m.JobID, now)
	return err
}

func (q *Queue) GetOutputMaterialization(ctx context.Context, materializationKey string) (*OutputMaterialization, error) {
	row, err := q.db.QueryOptional(ctx, "SELECT * FROM cf_output_materializations WHERE materialization_key = ?", materializationKey)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	m, err := rowToMaterialization(*row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func rowToMaterialization(row store.DbRow) (OutputMaterialization, error) {
	get := func(col string) store.DbValue { return row.MustGet(col) }

	id, err := store.FromDbValue[int64](get("id"))
	if err != nil {
		return OutputMaterialization{}, err
	}
	key, err := store.FromDbValue[string](get("materialization_key"))
	if err != nil {
		return OutputMaterialization{}, err
	}
	targetKey, err := store.FromDbValue[string](get("output_target_key"))
	if err != nil {
		return OutputMaterialization{}, err
	}
	tableName, err := store.FromDbValue[string](get("table_name"))
	if err != nil {
		return OutputMaterialization{}, err
	}
	schemaHash, err := store.FromDbValue[string](get("schema_hash"))
	if err != nil {
		return OutputMaterialization{}, err
	}
	rowCount, err := store.FromDbValue[int64](get("row_count"))
	if err != nil {
		return OutputMaterialization{}, err
	}
	jobID, err := store.OptionalFromDbValue[int64](get("job_id"))
	if err != nil {
		return OutputMaterialization{}, err
	}
	createdAt, err := store.FromDbValue[int64](get("created_at"))
	if err != nil {
		return OutputMaterialization{}, err
	}

	return OutputMaterialization{
		ID: id, MaterializationKey: key, OutputTargetKey: targetKey, TableName: tableName,
		SchemaHash: schemaHash, RowCount: rowCount, JobID: jobID, CreatedAt: createdAt,
	}, nil
}
