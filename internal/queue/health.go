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

// ParserHealth mirrors one cf_parser_health row.
type ParserHealth struct {
	PluginName           string
	TotalExecutions      int64
	Successes            int64
	ConsecutiveFailures  int64
	LastFailureReason    *string
	PausedAt             *int64
	CreatedAt            int64
	UpdatedAt            int64
}

func (q *Queue) ensureParserHealthRow(ctx context.Context, pluginName string) error {
	now := nowMillis()
	_, err := q.db.Execute(ctx,
		`INSERT INTO cf_parser_health (plugin_name, total_executions, successes, consecutive_failures, created_at, updated_at)
		 VALUES (?, 0, 0, 0, ?, ?)
		 ON CONFLICT(plugin_name) DO NOTHING`,
		pluginName, now, now)
	return err
}

// RecordParserSuccess upserts counters and resets the
// consecutive-failure streak.
func (q *Queue) RecordParserSuccess(ctx context.Context, pluginName string) error {
	if err := q.ensureParserHealthRow(ctx, pluginName); err != nil {
		return err
	}
	_, err := q.db.Execute(ctx,
		`UPDATE cf_parser_health
		 SET total_executions = total_executions + 1, successes = successes + 1,
		     consecutive_failures = 0, updated_at = ?
		 WHERE plugin_name = ?`,
		nowMillis(), pluginName)
	return err
}

// RecordParserFailure increments counters and the consecutive-failure
// streak, returning the new streak so the caller can apply an
// auto-pause policy.
func (q *Queue) RecordParserFailure(ctx context.Context, pluginName, reason string) (int64, error) {
	if err := q.ensureParserHealthRow(ctx, pluginName); err != nil {
		return 0, err
	}
	streak, err := q.db.QueryScalar(ctx,
		`UPDATE cf_parser_health
		 SET total_executions = total_executions + 1, consecutive_failures = consecutive_failures + 1,
		     last_failure_reason = ?, updated_at = ?
		 WHERE plugin_name = ?
		 RETURNING consecutive_failures`,
		reason, nowMillis(), pluginName)
	if err != nil {
		return 0, err
	}
	return store.FromDbValue[int64](streak)
}

// PauseParser sets paused_at so PopJob's candidate selection skips
// this plugin's jobs.
func (q *Queue) PauseParser(ctx context.Context, pluginName string) error {
	if err := q.ensureParserHealthRow(ctx, pluginName); err != nil {
		return err
	}
	_, err := q.db.Execute(ctx, "UPDATE cf_parser_health SET paused_at = ? WHERE plugin_name = ?", nowMillis(), pluginName)
	return err
}

func (q *Queue) ResumeParser(ctx context.Context, pluginName string) error {
	_, err := q.db.Execute(ctx, "UPDATE cf_parser_health SET paused_at = NULL WHERE plugin_name = ?", pluginName)
	return err
}

func (q *Queue) IsParserPaused(ctx context.Context, pluginName string) (bool, error) {
	row, err := q.db.QueryOptional(ctx, "SELECT paused_at FROM cf_parser_health WHERE plugin_name = ?", pluginName)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	v, ok := row.Get("paused_at")
	if !ok || v == nil {
		return false, nil
	}
	return true, nil
}

func (q *Queue) GetParserHealth(ctx context.Context, pluginName string) (*ParserHealth, error) {
	row, err := q.db.QueryOptional(ctx, "SELECT * FROM cf_parser_health WHERE plugin_name = ?", pluginName)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	h, err := rowToParserHealth(*row)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListParserHealth returns every tracked plugin's health row, used by
// the housekeeping scheduler's health ticker and the status/control
// API's health endpoint.
func (q *Queue) ListParserHealth(ctx context.Context) ([]ParserHealth, error) {
	rows, err := q.db.QueryAll(ctx, "SELECT * FROM cf_parser_health ORDER BY plugin_name")
	if err != nil {
		return nil, err
	}
	out := make([]ParserHealth, 0, len(rows))
	for _, row := range rows {
		h, err := rowToParserHealth(row)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// AutoResumeStalePauses resumes every plugin paused longer than
// cooldown, giving an operator-paused or auto-paused plugin a chance
// to run again without manual intervention. Returns the plugin names
// resumed.
func (q *Queue) AutoResumeStalePauses(ctx context.Context, cooldown time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-cooldown).UnixMilli()
	rows, err := q.db.QueryAll(ctx,
		"SELECT plugin_name FROM cf_parser_health WHERE paused_at IS NOT NULL AND paused_at < ?", cutoff)
	if err != nil {
		return nil, err
	}
	var resumed []string
	for _, row := range rows {
		name, err := store.FromDbValue[string](row.MustGet("plugin_name"))
		if err != nil {
			return resumed, err
		}
		if err := q.ResumeParser(ctx, name); err != nil {
			return resumed, err
		}
		resumed = append(resumed, name)
	}
	return resumed, nil
}

func rowToParserHealth(row store.DbRow) (ParserHealth, error) {
	get := func(col string) store.DbValue { return row.MustGet(col) }

	pluginName, err := store.FromDbValue[string](get("plugin_name"))
	if err != nil {
		return ParserHealth{}, err
	}
	totalExecutions, err := store.FromDbValue[int64](get("total_executions"))
	if err != nil {
		return ParserHealth{}, err
	}
	successes, err := store.FromDbValue[int64](get("successes"))
	if err != nil {
		return ParserHealth{}, err
	}
	consecutiveFailures, err := store.FromDbValue[int64](get("consecutive_failures"))
	if err != nil {
		return ParserHealth{}, err
	}
	lastFailureReason, err := store.OptionalFromDbValue[string](get("last_failure_reason"))
	if err != nil {
		return ParserHealth{}, err
	}
	pausedAt, err := store.OptionalFromDbValue[int64](get("paused_at"))
	if err != nil {
		return ParserHealth{}, err
	}
	createdAt, err := store.FromDbValue[int64](get("created_at"))
	if err != nil {
		return ParserHealth{}, err
	}
	updatedAt, err := store.FromDbValue[int64](get("updated_at"))
	if err != nil {
		return ParserHealth{}, err
	}

	return ParserHealth{
		PluginName: pluginName, TotalExecutions: totalExecutions, Successes: successes,
		ConsecutiveFailures: consecutiveFailures, LastFailureReason: lastFailureReason,
		PausedAt: pausedAt, CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}
