// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue is the durable, at-least-once job queue: a
// priority FIFO with backoff, parser health tracking, quarantine,
// dead-letter, and idempotent output materialization, all implemented
// as SQL against one store.Backend.
package queue

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/casparianflow/flow/internal/store"
	"github.com/google/uuid"
)

// MaxRetryCount is the retry ceiling RequeueJob enforces: requeuing a
// job already at this count dead-letters it instead of resetting it
// to queued again.
const MaxRetryCount = 3

// JobStatus is the queue row's finite top-level state.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func ParseJobStatus(v string) (JobStatus, error) {
	switch JobStatus(v) {
	case JobQueued, JobRunning, JobCompleted, JobFailed:
		return JobStatus(v), nil
	default:
		return "", &InvalidState{Table: "cf_processing_queue", Column: "status", Value: v}
	}
}

// CompletionStatus is set only once a job reaches completed/failed.
type CompletionStatus string

const (
	CompletionSuccess               CompletionStatus = "success"
	CompletionPartialSuccess        CompletionStatus = "partial_success"
	CompletionCompletedWithWarnings CompletionStatus = "completed_with_warnings"
	CompletionFailed                CompletionStatus = "failed"
	CompletionRejected              CompletionStatus = "rejected"
	CompletionAborted               CompletionStatus = "aborted"
)

func ParseCompletionStatus(v string) (CompletionStatus, error) {
	switch CompletionStatus(v) {
	case CompletionSuccess, CompletionPartialSuccess, CompletionCompletedWithWarnings,
		CompletionFailed, CompletionRejected, CompletionAborted:
		return CompletionStatus(v), nil
	default:
		return "", &InvalidState{Table: "cf_processing_queue", Column: "completion_status", Value: v}
	}
}

// Job mirrors one cf_processing_queue row.
type Job struct {
	ID                 int64
	FileID             *int64
	PipelineRunID      *string
	PluginName         string
	InputFile          *string
	ConfigOverrides    *string
	ParserVersion      *string
	ParserFingerprint  *string
	SinkConfigJSON     *string
	Status             JobStatus
	CompletionStatus   *CompletionStatus
	Priority           int64
	WorkerHost         *string
	WorkerPID          *int64
	ClaimTime          *int64
	ScheduledAt        *int64
	EndTime            *int64
	ResultSummary      *string
	ErrorMessage       *string
	RetryCount         int64
	QuarantineRowCount int64
	CreatedAt          int64
}

// Queue bundles the job-queue operations over one opened, schema-applied
// backend, parallel to internal/repository.Repository.
type Queue struct {
	db store.Backend
}

func New(db store.Backend) *Queue {
	return &Queue{db: db}
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// NewJob is the input to Enqueue: everything a producer supplies up
// front, before the queue assigns an id or touches any state field.
type NewJob struct {
	FileID            *int64
	PipelineRunID     *string
	PluginName        string
	InputFile         *string
	ConfigOverrides   *string
	ParserVersion     *string
	ParserFingerprint *string
	SinkConfigJSON    *string
	Priority          int64
	ScheduledAt       *int64
}

// Enqueue inserts a new queued job. A caller that doesn't supply
// PipelineRunID gets one generated: every job belongs to some pipeline
// run, even a single-job one, so materialization and audit queries
// never need to special-case an absent run id. Pass a shared id
// explicitly to group several jobs (e.g. a fan-out over one file's
// sheets) under the same run.
func (q *Queue) Enqueue(ctx context.Context, j NewJob) (Job, error) {
	now := nowMillis()
	if j.PipelineRunID == nil {
		id := uuid.NewString()
		j.PipelineRunID = &id
	}
	v, err := q.db.QueryScalar(ctx,
		`INSERT INTO cf_processing_queue
		 (file_id, pipeline_run_id, plugin_name, input_file, config_overrides, parser_version,
		  parser_fingerprint, sink_config_json, status, priority, scheduled_at, retry_count,
		  quarantine_row_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'queued', ?, ?, 0, 0, ?)
		 RETURNING id`,
		j.FileID, j.PipelineRunID, j.PluginName, j.InputFile, j.ConfigOverrides, j.ParserVersion,
		j.ParserFingerprint, j.SinkConfigJSON, j.Priority, j.ScheduledAt, now)
	if err != nil {
		return Job{}, err
	}
	id, err := store.FromDbValue[int64](v)
	if err != nil {
		return Job{}, err
	}
	return q.GetJob(ctx, id)
}

func (q *Queue) GetJob(ctx context.Context, id int64) (Job, error) {
	row, err := q.db.QueryOne(ctx, "SELECT * FROM cf_processing_queue WHERE id = ?", id)
	if err != nil {
		return Job{}, err
	}
	return rowToJob(row)
}

// JobDetails is what a plugin runtime needs to actually process a job:
// which parser to run and which file to hand it. Production jobs carry
// a file_id into the catalog; ad-hoc jobs (CLI submissions, tests) carry
// only input_file.
type JobDetails struct {
	JobID      int64
	PluginName string
	FilePath   string
	InputFile  *string
}

// GetJobDetails resolves the file a job should process. It tries the
// production path first (a JOIN through file_id into scout_files, the
// catalog's canonical path for that file), then falls back to the job's
// own input_file column for ad-hoc jobs that were enqueued with no
// catalog entry at all.
func (q *Queue) GetJobDetails(ctx context.Context, jobID int64) (*JobDetails, error) {
	row, err := q.db.QueryOptional(ctx,
		`SELECT pq.plugin_name AS plugin_name, sf.path AS full_path
		 FROM cf_processing_queue pq
		 JOIN scout_files sf ON pq.file_id = sf.id
		 WHERE pq.id = ?`, jobID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		pluginName, err := store.FromDbValue[string](row.MustGet("plugin_name"))
		if err != nil {
			return nil, err
		}
		fullPath, err := store.FromDbValue[string](row.MustGet("full_path"))
		if err != nil {
			return nil, err
		}
		return &JobDetails{JobID: jobID, PluginName: pluginName, FilePath: fullPath}, nil
	}

	row, err = q.db.QueryOptional(ctx,
		"SELECT plugin_name, input_file FROM cf_processing_queue WHERE id = ? AND input_file IS NOT NULL", jobID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	pluginName, err := store.FromDbValue[string](row.MustGet("plugin_name"))
	if err != nil {
		return nil, err
	}
	inputFile, err := store.FromDbValue[string](row.MustGet("input_file"))
	if err != nil {
		return nil, err
	}
	return &JobDetails{JobID: jobID, PluginName: pluginName, FilePath: inputFile, InputFile: &inputFile}, nil
}

// pausedPluginsSubquery excludes any plugin currently paused: PopJob
// must never hand out work for a parser under an active pause.
const pausedPluginsSubquery = "plugin_name NOT IN (SELECT plugin_name FROM cf_parser_health WHERE paused_at IS NOT NULL)"

// candidateSelect is the shared selection predicate behind both
// PopJob and PeekJob: queued, due, and not belonging to a paused
// parser, ordered priority DESC then insertion order.
const candidateSelect = "SELECT id FROM cf_processing_queue WHERE status = 'queued' AND (scheduled_at IS NULL OR scheduled_at <= ?) AND " +
	pausedPluginsSubquery + " ORDER BY priority DESC, id ASC LIMIT 1"

// PopJob atomically claims the next eligible job with a single
// UPDATE ... RETURNING, closing the claim race a select-then-update
// pattern would expose to concurrent workers. Returns (nil, nil) when
// no job is eligible.
func (q *Queue) PopJob(ctx context.Context, workerHost string, workerPID int64) (*Job, error) {
	now := nowMillis()
	sqlText, args, err := sq.Update("cf_processing_queue").
		Set("status", string(JobRunning)).
		Set("worker_host", workerHost).
		Set("worker_pid", workerPID).
		Set("claim_time", now).
		Where(sq.Expr("id = ("+candidateSelect+")", now)).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, err
	}
	row, err := q.db.QueryOptional(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	j, err := rowToJob(*row)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// PeekJob runs the same selection predicate as PopJob without
// claiming, for schedulers that want to inspect what would run next.
func (q *Queue) PeekJob(ctx context.Context) (*Job, error) {
	now := nowMillis()
	sqlText := "SELECT * FROM cf_processing_queue WHERE id = (" + candidateSelect + ")"
	row, err := q.db.QueryOptional(ctx, sqlText, now)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	j, err := rowToJob(*row)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CompleteJob transitions a running job to completed, recording its
// completion status, result summary, and (if supplied) the number of
// quarantined rows observed along the way.
func (q *Queue) CompleteJob(ctx context.Context, jobID int64, completion CompletionStatus, resultSummary string, quarantineRowCount *int64) error {
	now := nowMillis()
	if quarantineRowCount != nil {
		_, err := q.db.Execute(ctx,
			"UPDATE cf_processing_queue SET status = ?, completion_status = ?, end_time = ?, result_summary = ?, quarantine_row_count = ? WHERE id = ?",
			string(JobCompleted), string(completion), now, resultSummary, *quarantineRowCount, jobID)
		return err
	}
	_, err := q.db.Execute(ctx,
		"UPDATE cf_processing_queue SET status = ?, completion_status = ?, end_time = ?, result_summary = ? WHERE id = ?",
		string(JobCompleted), string(completion), now, resultSummary, jobID)
	return err
}

// FailJob transitions a running job to failed terminally (no retry).
// completion should be one of CompletionFailed, CompletionRejected, or
// CompletionAborted — the three completion states a terminal failure
// can carry, distinguishing a parser crash/error (failed) from a
// deliberately rejected input (rejected) or an operator-initiated
// cancellation (aborted). Use RequeueJob instead when the job should
// be retried or dead-lettered per the retry policy.
func (q *Queue) FailJob(ctx context.Context, jobID int64, completion CompletionStatus, errMessage string) error {
	now := nowMillis()
	_, err := q.db.Execute(ctx,
		"UPDATE cf_processing_queue SET status = ?, completion_status = ?, end_time = ?, error_message = ? WHERE id = ?",
		string(JobFailed), string(completion), now, errMessage, jobID)
	return err
}

// DispatchMetadata is the parser version/fingerprint and resolved sink
// config snapshotted onto a job row at dispatch time, so a later
// materialization-key derivation stays reproducible even if the plugin
// registry changes afterward.
type DispatchMetadata struct {
	FileID            *int64
	PluginName        string
	ParserVersion     *string
	ParserFingerprint *string
	SinkConfigJSON    *string
}

// RecordDispatchMetadata snapshots the parser version, fingerprint, and
// sink config onto an already-enqueued job row. Unlike Enqueue's
// one-shot fields, this can be called again at dispatch time, after the
// plugin registry has been consulted, overwriting whatever the producer
// supplied (or omitted) up front.
func (q *Queue) RecordDispatchMetadata(ctx context.Context, jobID int64, parserVersion, parserFingerprint, sinkConfigJSON string) error {
	_, err := q.db.Execute(ctx,
		"UPDATE cf_processing_queue SET parser_version = ?, parser_fingerprint = ?, sink_config_json = ? WHERE id = ?",
		parserVersion, parserFingerprint, sinkConfigJSON, jobID)
	return err
}

// GetDispatchMetadata loads the dispatch metadata snapshotted onto a
// job row, for idempotent materialization tracking. Returns nil if the
// job does not exist.
func (q *Queue) GetDispatchMetadata(ctx context.Context, jobID int64) (*DispatchMetadata, error) {
	row, err := q.db.QueryOptional(ctx,
		"SELECT file_id, plugin_name, parser_version, parser_fingerprint, sink_config_json FROM cf_processing_queue WHERE id = ?", jobID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	fileID, err := store.OptionalFromDbValue[int64](row.MustGet("file_id"))
	if err != nil {
		return nil, err
	}
	pluginName, err := store.FromDbValue[string](row.MustGet("plugin_name"))
	if err != nil {
		return nil, err
	}
	parserVersion, err := store.OptionalFromDbValue[string](row.MustGet("parser_version"))
	if err != nil {
		return nil, err
	}
	parserFingerprint, err := store.OptionalFromDbValue[string](row.MustGet("parser_fingerprint"))
	if err != nil {
		return nil, err
	}
	sinkConfigJSON, err := store.OptionalFromDbValue[string](row.MustGet("sink_config_json"))
	if err != nil {
		return nil, err
	}
	return &DispatchMetadata{
		FileID: fileID, PluginName: pluginName, ParserVersion: parserVersion,
		ParserFingerprint: parserFingerprint, SinkConfigJSON: sinkConfigJSON,
	}, nil
}

// resetToQueued clears every terminal field a requeue/retry/defer
// touches, common to RequeueJob, ScheduleRetry and DeferJob: any
// transition back to queued NULLs completion_status, claim_time,
// end_time, and result_summary, and refreshes scheduled_at.
func (q *Queue) resetToQueued(ctx context.Context, jobID int64, scheduledAt int64, retryCountDelta int64, errMessage *string) error {
	_, err := q.db.Execute(ctx,
		`UPDATE cf_processing_queue
		 SET status = 'queued', completion_status = NULL, claim_time = NULL, end_time = NULL,
		     result_summary = NULL, scheduled_at = ?, retry_count = retry_count + ?, error_message = ?
		 WHERE id = ?`,
		scheduledAt, retryCountDelta, errMessage, jobID)
	return err
}

// RequeueJob resets a job back to queued for another attempt. At
// MaxRetryCount already, the job is routed to dead-letter instead of
// being requeued again.
func (q *Queue) RequeueJob(ctx context.Context, jobID int64) (Job, error) {
	j, err := q.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if j.RetryCount >= MaxRetryCount {
		if err := q.MoveToDeadLetter(ctx, jobID, "", "max_retries_exceeded"); err != nil {
			return Job{}, err
		}
		return q.GetJob(ctx, jobID)
	}
	if err := q.resetToQueued(ctx, jobID, nowMillis(), 1, nil); err != nil {
		return Job{}, err
	}
	return q.GetJob(ctx, jobID)
}

// ScheduleRetry is requeue with caller-computed backoff placement
// rather than the default "now".
func (q *Queue) ScheduleRetry(ctx context.Context, jobID int64, errMessage string, scheduledAt int64) error {
	return q.resetToQueued(ctx, jobID, scheduledAt, 1, &errMessage)
}

// DeferJob resets to queued without bumping retry_count, storing
// reason in error_message.
func (q *Queue) DeferJob(ctx context.Context, jobID int64, scheduledAt int64, reason string) error {
	return q.resetToQueued(ctx, jobID, scheduledAt, 0, &reason)
}

func rowToJob(row store.DbRow) (Job, error) {
	get := func(col string) store.DbValue { return row.MustGet(col) }

	id, err := store.FromDbValue[int64](get("id"))
	if err != nil {
		return Job{}, err
	}
	fileID, err := store.OptionalFromDbValue[int64](get("file_id"))
	if err != nil {
		return Job{}, err
	}
	pipelineRunID, err := store.OptionalFromDbValue[string](get("pipeline_run_id"))
	if err != nil {
		return Job{}, err
	}
	pluginName, err := store.FromDbValue[string](get("plugin_name"))
	if err != nil {
		return Job{}, err
	}
	inputFile, err := store.OptionalFromDbValue[string](get("input_file"))
	if err != nil {
		return Job{}, err
	}
	configOverrides, err := store.OptionalFromDbValue[string](get("config_overrides"))
	if err != nil {
		return Job{}, err
	}
	parserVersion, err := store.OptionalFromDbValue[string](get("parser_version"))
	if err != nil {
		return Job{}, err
	}
	parserFingerprint, err := store.OptionalFromDbValue[string](get("parser_fingerprint"))
	if err != nil {
		return Job{}, err
	}
	sinkConfigJSON, err := store.OptionalFromDbValue[string](get("sink_config_json"))
	if err != nil {
		return Job{}, err
	}
	statusRaw, err := store.FromDbValue[string](get("status"))
	if err != nil {
		return Job{}, err
	}
	status, err := ParseJobStatus(statusRaw)
	if err != nil {
		return Job{}, err
	}
	completionRaw, err := store.OptionalFromDbValue[string](get("completion_status"))
	if err != nil {
		return Job{}, err
	}
	var completion *CompletionStatus
	if completionRaw != nil {
		c, err := ParseCompletionStatus(*completionRaw)
		if err != nil {
			return Job{}, err
		}
		completion = &c
	}
	priority, err := store.FromDbValue[int64](get("priority"))
	if err != nil {
		return Job{}, err
	}
	workerHost, err := store.OptionalFromDbValue[string](get("worker_host"))
	if err != nil {
		return Job{}, err
	}
	workerPID, err := store.OptionalFromDbValue[int64](get("worker_pid"))
	if err != nil {
		return Job{}, err
	}
	claimTime, err := store.OptionalFromDbValue[int64](get("claim_time"))
	if err != nil {
		return Job{}, err
	}
	scheduledAt, err := store.OptionalFromDbValue[int64](get("scheduled_at"))
	if err != nil {
		return Job{}, err
	}
	endTime, err := store.OptionalFromDbValue[int64](get("end_time"))
	if err != nil {
		return Job{}, err
	}
	resultSummary, err := store.OptionalFromDbValue[string](get("result_summary"))
	if err != nil {
		return Job{}, err
	}
	errMessage, err := store.OptionalFromDbValue[string](get("error_message"))
	if err != nil {
		return Job{}, err
	}
	retryCount, err := store.FromDbValue[int64](get("retry_count"))
	if err != nil {
		return Job{}, err
	}
	quarantineRowCount, err := store.FromDbValue[int64](get("quarantine_row_count"))
	if err != nil {
		return Job{}, err
	}
	createdAt, err := store.FromDbValue[int64](get("created_at"))
	if err != nil {
		return Job{}, err
	}

	return Job{
		ID: id, FileID: fileID, PipelineRunID: pipelineRunID, PluginName: pluginName,
		InputFile: inputFile, ConfigOverrides: configOverrides, ParserVersion: parserVersion,
		ParserFingerprint: parserFingerprint, SinkConfigJSON: sinkConfigJSON, Status: status,
		CompletionStatus: completion, Priority: priority, WorkerHost: workerHost, WorkerPID: workerPID,
		ClaimTime: claimTime, ScheduledAt: scheduledAt, EndTime: endTime, ResultSummary: resultSummary,
		ErrorMessage: errMessage, RetryCount: retryCount, QuarantineRowCount: quarantineRowCount, CreatedAt: createdAt,
	}, nil
}
