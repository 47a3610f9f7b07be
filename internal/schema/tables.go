// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schema renders the canonical metadata/queue schema for either
// backend variant and enforces the column-presence check that
// replaces online migration tooling entirely: opening a store that
// lacks a required column is refused outright rather than patched up.
package schema

// Column describes one column of the canonical schema in backend-
// agnostic terms; RenderRow/RenderColumnar (render.go) decide how it becomes
// DDL text for each variant.
type Column struct {
	Name        string
	Type        string // INTEGER, TEXT, REAL, BLOB
	Widen       bool   // true: INTEGER becomes BIGINT in the columnar variant
	PrimaryKey  bool   // single-column integer primary key (AUTOINCREMENT in row variant)
	NotNull     bool
	Default     string // raw SQL literal, e.g. "'pending'" or "0"
	Check       string // raw CHECK expression body, e.g. "status IN ('a','b')"
	References  string // "table(col)", row variant only
}

// Table is one table in the canonical schema.
type Table struct {
	Name           string
	Columns        []Column
	PrimaryKeyCols []string   // composite primary key; mutually exclusive with a Column.PrimaryKey
	Unique         [][]string // composite unique constraints
	Indexes        [][]string // non-unique indexes
}

// Required lists the columns the column-presence check insists on for
// each critical table — the set whose absence means "delete the store
// and restart" rather than attempting any repair.
var Required = map[string][]string{
	"scout_files": {
		"workspace_id", "file_uid", "parent_path", "extension",
		"is_dir", "missing_scans", "status_before_delete", "deleted_at",
	},
	"cf_processing_queue": {
		"completion_status", "claim_time", "scheduled_at", "end_time",
		"result_summary", "retry_count",
	},
	"cf_output_materializations": {
		"materialization_key", "schema_hash",
	},
}

// fileStatuses, extractionStatuses and jobCompletionStatuses are the
// enum discriminator sets the canonical schema's CHECK constraints are
// rendered from — named placeholders for each enum's discriminator
// values, kept in one place so row and columnar variants never drift.
var (
	fileStatuses          = []string{"pending", "tagged", "queued", "processing", "processed", "failed", "deleted"}
	extractionStatuses    = []string{"pending", "extracted", "timeout", "crash", "stale", "error"}
	jobStatuses           = []string{"queued", "running", "completed", "failed"}
	jobCompletionStatuses = []string{"success", "partial_success", "completed_with_warnings", "failed", "rejected", "aborted"}
	tagSources            = []string{"rule", "manual"}
)

// Tables is the canonical schema, in dependency (leaf-first creation)
// order. Both render variants (RenderRow/RenderColumnar in render.go) consume the same
// list so there is exactly one place that knows the metadata/queue
// shape.
var Tables = []Table{
	{
		Name: "scout_workspaces",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "created_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		Unique: [][]string{{"name"}},
	},
	{
		Name: "scout_sources",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "workspace_id", Type: "INTEGER", NotNull: true, References: "scout_workspaces(id)"},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "canonical_path", Type: "TEXT", NotNull: true},
			{Name: "source_type", Type: "TEXT", NotNull: true, Default: "'local'"},
			{Name: "executable_hint", Type: "TEXT"},
			{Name: "poll_interval_seconds", Type: "INTEGER", Default: "300"},
			{Name: "enabled", Type: "INTEGER", Default: "1"},
			{Name: "file_count", Type: "INTEGER", Widen: true, Default: "0"},
			{Name: "created_at", Type: "INTEGER", Widen: true, NotNull: true},
			{Name: "updated_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		Unique: [][]string{{"workspace_id", "name"}, {"workspace_id", "canonical_path"}},
	},
	{
		Name: "scout_files",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "workspace_id", Type: "INTEGER", NotNull: true, References: "scout_workspaces(id)"},
			{Name: "source_id", Type: "INTEGER", NotNull: true, References: "scout_sources(id)"},
			{Name: "file_uid", Type: "TEXT", NotNull: true},
			{Name: "path", Type: "TEXT", NotNull: true},
			{Name: "rel_path", Type: "TEXT", NotNull: true},
			{Name: "parent_path", Type: "TEXT", NotNull: true, Default: "''"},
			{Name: "basename", Type: "TEXT", NotNull: true},
			{Name: "extension", Type: "TEXT", NotNull: true, Default: "''"},
			{Name: "is_dir", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "size_bytes", Type: "INTEGER", Widen: true, NotNull: true, Default: "0"},
			{Name: "mtime_ms", Type: "INTEGER", Widen: true, NotNull: true, Default: "0"},
			{Name: "content_hash", Type: "TEXT"},
			{Name: "status", Type: "TEXT", NotNull: true, Default: "'pending'", Check: inList("status", fileStatuses)},
			{Name: "status_before_delete", Type: "TEXT"},
			{Name: "missing_scans", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "deleted_at", Type: "INTEGER", Widen: true},
			{Name: "first_seen_at", Type: "INTEGER", Widen: true, NotNull: true},
			{Name: "last_seen_at", Type: "INTEGER", Widen: true, NotNull: true},
			{Name: "processed_at", Type: "INTEGER", Widen: true},
			{Name: "sentinel_job_id", Type: "INTEGER", Widen: true},
			{Name: "extraction_metadata", Type: "TEXT"},
			{Name: "extraction_status", Type: "TEXT", NotNull: true, Default: "'pending'", Check: inList("extraction_status", extractionStatuses)},
			{Name: "extracted_at", Type: "INTEGER", Widen: true},
		},
		Unique:  [][]string{{"source_id", "path"}},
		Indexes: [][]string{{"source_id", "parent_path"}, {"source_id", "extension"}, {"file_uid"}},
	},
	{
		Name: "scout_file_tags",
		Columns: []Column{
			{Name: "workspace_id", Type: "INTEGER", NotNull: true, References: "scout_workspaces(id)"},
			{Name: "file_id", Type: "INTEGER", NotNull: true, References: "scout_files(id)"},
			{Name: "tag", Type: "TEXT", NotNull: true},
			{Name: "tag_source", Type: "TEXT", NotNull: true, Default: "'manual'", Check: inList("tag_source", tagSources)},
			{Name: "rule_id", Type: "INTEGER"},
			{Name: "assigned_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		PrimaryKeyCols: []string{"workspace_id", "file_id", "tag"},
	},
	{
		Name: "scout_tagging_rules",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "workspace_id", Type: "INTEGER", NotNull: true, References: "scout_workspaces(id)"},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "rule_kind", Type: "TEXT", NotNull: true, Default: "'tagging'"},
			{Name: "glob_pattern", Type: "TEXT", NotNull: true},
			{Name: "target_tag", Type: "TEXT", NotNull: true},
			{Name: "priority", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "enabled", Type: "INTEGER", NotNull: true, Default: "1"},
		},
		Unique: [][]string{{"workspace_id", "name"}},
	},
	{
		Name: "scout_extraction_rules",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "workspace_id", Type: "INTEGER", NotNull: true, References: "scout_workspaces(id)"},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "glob_pattern", Type: "TEXT", NotNull: true},
			{Name: "fields_json", Type: "TEXT", NotNull: true, Default: "'[]'"},
			{Name: "tag_conditions_json", Type: "TEXT", NotNull: true, Default: "'[]'"},
			{Name: "priority", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "enabled", Type: "INTEGER", NotNull: true, Default: "1"},
		},
		Unique: [][]string{{"workspace_id", "name"}},
	},
	{
		Name: "scout_folder_cache",
		Columns: []Column{
			{Name: "source_id", Type: "INTEGER", NotNull: true, References: "scout_sources(id)"},
			{Name: "prefix", Type: "TEXT", NotNull: true, Default: "''"},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "file_count", Type: "INTEGER", Widen: true, NotNull: true, Default: "0"},
			{Name: "is_folder", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "refreshed_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		PrimaryKeyCols: []string{"source_id", "prefix", "name"},
	},
	{
		Name: "scout_settings",
		Columns: []Column{
			{Name: "key", Type: "TEXT", NotNull: true},
			{Name: "value", Type: "TEXT", NotNull: true},
		},
		PrimaryKeyCols: []string{"key"},
	},
	{
		Name: "cf_processing_queue",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "file_id", Type: "INTEGER", References: "scout_files(id)"},
			{Name: "pipeline_run_id", Type: "TEXT"},
			{Name: "plugin_name", Type: "TEXT", NotNull: true},
			{Name: "input_file", Type: "TEXT"},
			{Name: "config_overrides", Type: "TEXT"},
			{Name: "parser_version", Type: "TEXT"},
			{Name: "parser_fingerprint", Type: "TEXT"},
			{Name: "sink_config_json", Type: "TEXT"},
			{Name: "status", Type: "TEXT", NotNull: true, Default: "'queued'", Check: inList("status", jobStatuses)},
			{Name: "completion_status", Type: "TEXT", Check: inList("completion_status", jobCompletionStatuses)},
			{Name: "priority", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "worker_host", Type: "TEXT"},
			{Name: "worker_pid", Type: "INTEGER"},
			{Name: "claim_time", Type: "INTEGER", Widen: true},
			{Name: "scheduled_at", Type: "INTEGER", Widen: true},
			{Name: "end_time", Type: "INTEGER", Widen: true},
			{Name: "result_summary", Type: "TEXT"},
			{Name: "error_message", Type: "TEXT"},
			{Name: "retry_count", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "quarantine_row_count", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "created_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		Indexes: [][]string{{"status", "scheduled_at", "priority"}, {"plugin_name"}},
	},
	{
		Name: "cf_output_materializations",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "materialization_key", Type: "TEXT", NotNull: true},
			{Name: "output_target_key", Type: "TEXT", NotNull: true},
			{Name: "table_name", Type: "TEXT", NotNull: true},
			{Name: "schema_hash", Type: "TEXT", NotNull: true},
			{Name: "row_count", Type: "INTEGER", Widen: true, NotNull: true, Default: "0"},
			{Name: "job_id", Type: "INTEGER", References: "cf_processing_queue(id)"},
			{Name: "created_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		Unique: [][]string{{"materialization_key"}},
	},
	{
		Name: "cf_parser_health",
		Columns: []Column{
			{Name: "plugin_name", Type: "TEXT", NotNull: true},
			{Name: "total_executions", Type: "INTEGER", Widen: true, NotNull: true, Default: "0"},
			{Name: "successes", Type: "INTEGER", Widen: true, NotNull: true, Default: "0"},
			{Name: "consecutive_failures", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "last_failure_reason", Type: "TEXT"},
			{Name: "paused_at", Type: "INTEGER", Widen: true},
			{Name: "created_at", Type: "INTEGER", Widen: true, NotNull: true},
			{Name: "updated_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		PrimaryKeyCols: []string{"plugin_name"},
	},
	{
		Name: "cf_dead_letter",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "original_job_id", Type: "INTEGER", NotNull: true},
			{Name: "file_id", Type: "INTEGER"},
			{Name: "plugin_name", Type: "TEXT", NotNull: true},
			{Name: "error_message", Type: "TEXT"},
			{Name: "retry_count", Type: "INTEGER", NotNull: true, Default: "0"},
			{Name: "moved_at", Type: "INTEGER", Widen: true, NotNull: true},
			{Name: "reason", Type: "TEXT", NotNull: true},
		},
		Indexes: [][]string{{"original_job_id"}},
	},
	{
		Name: "cf_quarantine",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "job_id", Type: "INTEGER", NotNull: true, References: "cf_processing_queue(id)"},
			{Name: "row_index", Type: "INTEGER", Widen: true, NotNull: true},
			{Name: "reason", Type: "TEXT", NotNull: true},
			{Name: "raw_blob", Type: "BLOB"},
			{Name: "created_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		Indexes: [][]string{{"job_id"}},
	},
	{
		Name: "cf_schema_mismatch",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "job_id", Type: "INTEGER", NotNull: true, References: "cf_processing_queue(id)"},
			{Name: "kind", Type: "TEXT", NotNull: true, Check: inList("kind", []string{"missing_column", "extra_column", "order_mismatch", "type_mismatch"})},
			{Name: "column_name", Type: "TEXT", NotNull: true},
			{Name: "expected", Type: "TEXT"},
			{Name: "actual", Type: "TEXT"},
			{Name: "created_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		Indexes: [][]string{{"job_id"}},
	},
	{
		Name: "cf_plugin_manifest",
		Columns: []Column{
			{Name: "plugin_name", Type: "TEXT", NotNull: true},
			{Name: "version", Type: "TEXT", NotNull: true},
			{Name: "runtime_kind", Type: "TEXT", NotNull: true},
			{Name: "entrypoint", Type: "TEXT", NotNull: true},
			{Name: "source_hash", Type: "TEXT"},
			{Name: "signature", Type: "TEXT"},
			{Name: "registered_at", Type: "INTEGER", Widen: true, NotNull: true},
		},
		PrimaryKeyCols: []string{"plugin_name"},
	},
	{
		Name: "cf_plugin_environment",
		Columns: []Column{
			{Name: "plugin_name", Type: "TEXT", NotNull: true, References: "cf_plugin_manifest(plugin_name)"},
			{Name: "key", Type: "TEXT", NotNull: true},
			{Name: "value", Type: "TEXT", NotNull: true},
		},
		PrimaryKeyCols: []string{"plugin_name", "key"},
	},
	{
		Name: "cf_topic_config",
		Columns: []Column{
			{Name: "topic", Type: "TEXT", NotNull: true},
			{Name: "plugin_name", Type: "TEXT", NotNull: true},
			{Name: "sink_target", Type: "TEXT", NotNull: true},
			{Name: "enabled", Type: "INTEGER", NotNull: true, Default: "1"},
		},
		PrimaryKeyCols: []string{"topic"},
	},
}

func inList(col string, values []string) string {
	out := col + " IN ("
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += "'" + v + "'"
	}
	out += ")"
	return out
}
