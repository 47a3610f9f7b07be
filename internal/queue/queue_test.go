// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import (
	"context"
	"testing"
	"time"

	"github.com/casparianflow/flow/internal/repository"
	"github.com/casparianflow/flow/internal/schema"
	"github.com/casparianflow/flow/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, schema.Apply(ctx, b))
	return New(b)
}

// newTestQueueWithBackend is newTestQueue plus the backend handle, for
// tests that need to insert rows into tables queue.Queue itself has no
// write path for (e.g. scout_files, to exercise GetJobDetails' catalog
// join).
func newTestQueueWithBackend(t *testing.T) (*Queue, store.Backend) {
	t.Helper()
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, schema.Apply(ctx, b))
	return New(b), b
}

// TestQueueLifecycle covers enqueue, claim, complete, drain.
func TestQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	j1, err := q.Enqueue(ctx, NewJob{PluginName: "csv-parser"})
	require.NoError(t, err)

	popped, err := q.PopJob(ctx, "host-a", 123)
	require.NoError(t, err)
	require.NotNil(t, popped)
	require.Equal(t, j1.ID, popped.ID)
	require.Equal(t, JobRunning, popped.Status)
	require.NotNil(t, popped.ClaimTime)

	require.NoError(t, q.CompleteJob(ctx, j1.ID, CompletionSuccess, "ok", nil))

	done, err := q.GetJob(ctx, j1.ID)
	require.NoError(t, err)
	require.Equal(t, JobCompleted, done.Status)
	require.NotNil(t, done.CompletionStatus)
	require.Equal(t, CompletionSuccess, *done.CompletionStatus)
	require.NotNil(t, done.EndTime)

	none, err := q.PopJob(ctx, "host-a", 123)
	require.NoError(t, err)
	require.Nil(t, none)
}

// TestQueueRetryAndDeadLetter exhausts the retry ceiling and verifies
// the dead-letter/replay round trip.
func TestQueueRetryAndDeadLetter(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	j2, err := q.Enqueue(ctx, NewJob{PluginName: "csv-parser"})
	require.NoError(t, err)

	popped, err := q.PopJob(ctx, "host-a", 1)
	require.NoError(t, err)
	require.Equal(t, j2.ID, popped.ID)

	for i := int64(1); i <= MaxRetryCount; i++ {
		j, err := q.RequeueJob(ctx, j2.ID)
		require.NoError(t, err)
		require.Equal(t, i, j.RetryCount)
		require.Equal(t, JobQueued, j.Status)
		require.Nil(t, j.CompletionStatus)
		require.Nil(t, j.ClaimTime)
	}

	final, err := q.RequeueJob(ctx, j2.ID)
	require.NoError(t, err)
	require.Equal(t, JobFailed, final.Status)
	require.NotNil(t, final.CompletionStatus)
	require.Equal(t, CompletionFailed, *final.CompletionStatus)

	dead, err := q.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, j2.ID, dead[0].OriginalJobID)
	require.Equal(t, "max_retries_exceeded", dead[0].Reason)

	replayed, err := q.ReplayDeadLetter(ctx, dead[0].ID)
	require.NoError(t, err)
	require.Equal(t, JobQueued, replayed.Status)
	require.Equal(t, j2.PluginName, replayed.PluginName)
	require.Equal(t, int64(0), replayed.RetryCount)

	remaining, err := q.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestRetryCountMonotonic(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	j, err := q.Enqueue(ctx, NewJob{PluginName: "p"})
	require.NoError(t, err)
	_, err = q.PopJob(ctx, "h", 1)
	require.NoError(t, err)

	last := int64(0)
	for i := 0; i < MaxRetryCount; i++ {
		updated, err := q.RequeueJob(ctx, j.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, updated.RetryCount, last)
		last = updated.RetryCount
	}
}

func TestInsertOutputMaterializationIdempotent(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	key := MaterializationKey(1, 1000, 2000, "csv-parser", "v1", "rows", "duckdb")
	m := OutputMaterialization{MaterializationKey: key, OutputTargetKey: "rows@duckdb", TableName: "rows", SchemaHash: "abc", RowCount: 10}

	require.NoError(t, q.InsertOutputMaterialization(ctx, m))
	require.NoError(t, q.InsertOutputMaterialization(ctx, m))

	got, err := q.GetOutputMaterialization(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int64(10), got.RowCount)
}

func TestParserHealthAndPause(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.RecordParserSuccess(ctx, "p"))
	streak, err := q.RecordParserFailure(ctx, "p", "boom")
	require.NoError(t, err)
	require.Equal(t, int64(1), streak)

	streak, err = q.RecordParserFailure(ctx, "p", "boom again")
	require.NoError(t, err)
	require.Equal(t, int64(2), streak)

	require.NoError(t, q.RecordParserSuccess(ctx, "p"))
	h, err := q.GetParserHealth(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, int64(0), h.ConsecutiveFailures)

	paused, err := q.IsParserPaused(ctx, "p")
	require.NoError(t, err)
	require.False(t, paused)

	require.NoError(t, q.PauseParser(ctx, "p"))
	paused, err = q.IsParserPaused(ctx, "p")
	require.NoError(t, err)
	require.True(t, paused)

	_, err = q.Enqueue(ctx, NewJob{PluginName: "p"})
	require.NoError(t, err)
	none, err := q.PopJob(ctx, "h", 1)
	require.NoError(t, err)
	require.Nil(t, none)

	require.NoError(t, q.ResumeParser(ctx, "p"))
	got, err := q.PopJob(ctx, "h", 1)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestQuarantineRowIndexOverflow(t *testing.T) {
	_, err := ToRowIndex(uint64(1) << 63)
	require.Error(t, err)

	ok, err := ToRowIndex(42)
	require.NoError(t, err)
	require.Equal(t, int64(42), ok)
}

func TestRecordSchemaMismatchExpandsOneRowPerDiscrepancy(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	j, err := q.Enqueue(ctx, NewJob{PluginName: "p"})
	require.NoError(t, err)

	diffs := []SchemaDiff{
		{Kind: MismatchMissingColumn, ColumnName: "region", Expected: "string"},
		{Kind: MismatchTypeMismatch, ColumnName: "count", Expected: "int64", Actual: "string"},
	}
	require.NoError(t, q.RecordSchemaMismatch(ctx, j.ID, diffs))

	got, err := q.ListSchemaMismatches(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

// TestEnqueueGeneratesPipelineRunIDWhenAbsent covers the default case
// (no caller-supplied run id) and the explicit-grouping case (caller
// supplies one, shared across jobs).
func TestEnqueueGeneratesPipelineRunIDWhenAbsent(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	j1, err := q.Enqueue(ctx, NewJob{PluginName: "csv-parser"})
	require.NoError(t, err)
	require.NotNil(t, j1.PipelineRunID)
	require.NotEmpty(t, *j1.PipelineRunID)

	j2, err := q.Enqueue(ctx, NewJob{PluginName: "csv-parser"})
	require.NoError(t, err)
	require.NotEqual(t, *j1.PipelineRunID, *j2.PipelineRunID)

	shared := "run-group-1"
	j3, err := q.Enqueue(ctx, NewJob{PluginName: "csv-parser", PipelineRunID: &shared})
	require.NoError(t, err)
	require.Equal(t, shared, *j3.PipelineRunID)
}

// TestGetJobDetailsProductionPath covers a job dispatched against a
// catalog file, resolving its path via the file_id JOIN.
func TestGetJobDetailsProductionPath(t *testing.T) {
	ctx := context.Background()
	q, b := newTestQueueWithBackend(t)
	repo := repository.New(b)

	w, err := repo.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)
	src, err := repo.CreateSource(ctx, w.ID, "s", "/tmp/s", "local")
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	v, err := b.QueryScalar(ctx,
		`INSERT INTO scout_files (workspace_id, source_id, file_uid, path, rel_path, parent_path, basename, extension,
			is_dir, size_bytes, mtime_ms, status, extraction_status, first_seen_at, last_seen_at)
		 VALUES (?, ?, 'u1', '/tmp/s/a.csv', 'a.csv', '', 'a.csv', 'csv', 0, 10, ?, 'pending', 'pending', ?, ?)
		 RETURNING id`,
		w.ID, src.ID, now, now, now)
	require.NoError(t, err)
	fileID, err := store.FromDbValue[int64](v)
	require.NoError(t, err)

	j, err := q.Enqueue(ctx, NewJob{FileID: &fileID, PluginName: "csv-parser"})
	require.NoError(t, err)

	details, err := q.GetJobDetails(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, details)
	require.Equal(t, "csv-parser", details.PluginName)
	require.Equal(t, "/tmp/s/a.csv", details.FilePath)
	require.Nil(t, details.InputFile)
}

// TestGetJobDetailsAdHocFallback covers a job enqueued with only
// input_file, as the CLI/test path does.
func TestGetJobDetailsAdHocFallback(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	input := "/tmp/ad-hoc.csv"
	j, err := q.Enqueue(ctx, NewJob{PluginName: "csv-parser", InputFile: &input})
	require.NoError(t, err)

	details, err := q.GetJobDetails(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, details)
	require.Equal(t, "csv-parser", details.PluginName)
	require.Equal(t, input, details.FilePath)
	require.NotNil(t, details.InputFile)
	require.Equal(t, input, *details.InputFile)
}

func TestGetJobDetailsMissingJobReturnsNil(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	details, err := q.GetJobDetails(ctx, 999)
	require.NoError(t, err)
	require.Nil(t, details)
}

// TestDispatchMetadataSnapshot covers recording dispatch metadata onto
// an already-enqueued job and reading it back, independent of whatever
// was (or wasn't) supplied at Enqueue.
func TestDispatchMetadataSnapshot(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	j, err := q.Enqueue(ctx, NewJob{PluginName: "csv-parser"})
	require.NoError(t, err)

	before, err := q.GetDispatchMetadata(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, before)
	require.Nil(t, before.ParserVersion)

	require.NoError(t, q.RecordDispatchMetadata(ctx, j.ID, "1.2.0", "sha256:deadbeef", `{"target":"warehouse"}`))

	after, err := q.GetDispatchMetadata(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, after)
	require.Equal(t, "csv-parser", after.PluginName)
	require.NotNil(t, after.ParserVersion)
	require.Equal(t, "1.2.0", *after.ParserVersion)
	require.NotNil(t, after.ParserFingerprint)
	require.Equal(t, "sha256:deadbeef", *after.ParserFingerprint)
	require.NotNil(t, after.SinkConfigJSON)
	require.Equal(t, `{"target":"warehouse"}`, *after.SinkConfigJSON)
}
