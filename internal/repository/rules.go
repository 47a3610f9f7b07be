// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

type TaggingRule struct {
	ID          int64
	WorkspaceID int64
	Name        string
	RuleKind    string
	GlobPattern string
	TargetTag   string
	Priority    int64
	Enabled     bool
}

func (r *Repository) CreateTaggingRule(ctx context.Context, rule TaggingRule) (TaggingRule, error) {
	_, err := r.db.Execute(ctx,
		`INSERT INTO scout_tagging_rules (workspace_id, name, rule_kind, glob_pattern, target_tag, priority, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.WorkspaceID, rule.Name, "tagging", rule.GlobPattern, rule.TargetTag, rule.Priority, boolToInt(rule.Enabled))
	if err != nil {
		return TaggingRule{}, err
	}
	row, err := r.db.QueryOne(ctx, "SELECT * FROM scout_tagging_rules WHERE workspace_id = ? AND name = ?", rule.WorkspaceID, rule.Name)
	if err != nil {
		return TaggingRule{}, err
	}
	return rowToTaggingRule(row)
}

// ListTaggingRulesByPriority returns enabled rules ordered priority
// DESC, id ASC — higher priority wins ties, and this ordering drives
// application when multiple rules match the same file.
func (r *Repository) ListTaggingRulesByPriority(ctx context.Context, workspaceID int64) ([]TaggingRule, error) {
	rows, err := r.db.QueryAll(ctx,
		"SELECT * FROM scout_tagging_rules WHERE workspace_id = ? AND enabled = 1 ORDER BY priority DESC, id ASC", workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]TaggingRule, 0, len(rows))
	for _, row := range rows {
		rule, err := rowToTaggingRule(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *Repository) SetTaggingRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := r.db.Execute(ctx, "UPDATE scout_tagging_rules SET enabled = ? WHERE id = ?", boolToInt(enabled), id)
	return err
}

func (r *Repository) DeleteTaggingRule(ctx context.Context, id int64) error {
	_, err := r.db.Execute(ctx, "DELETE FROM scout_tagging_rules WHERE id = ?", id)
	return err
}

type ExtractionRule struct {
	ID                int64
	WorkspaceID       int64
	Name              string
	GlobPattern       string
	FieldsJSON        string
	TagConditionsJSON string
	Priority          int64
	Enabled           bool
}

func (r *Repository) CreateExtractionRule(ctx context.Context, rule ExtractionRule) (ExtractionRule, error) {
	if rule.FieldsJSON == "" {
		rule.FieldsJSON = "[]"
	}
	if rule.TagConditionsJSON == "" {
		rule.TagConditionsJSON = "[]"
	}
	_, err := r.db.Execute(ctx,
		`INSERT INTO scout_extraction_rules (workspace_id, name, glob_pattern, fields_json, tag_conditions_json, priority, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.WorkspaceID, rule.Name, rule.GlobPattern, rule.FieldsJSON, rule.TagConditionsJSON, rule.Priority, boolToInt(rule.Enabled))
	if err != nil {
		return ExtractionRule{}, err
	}
	row, err := r.db.QueryOne(ctx, "SELECT * FROM scout_extraction_rules WHERE workspace_id = ? AND name = ?", rule.WorkspaceID, rule.Name)
	if err != nil {
		return ExtractionRule{}, err
	}
	return rowToExtractionRule(row)
}

func (r *Repository) ListExtractionRules(ctx context.Context, workspaceID int64) ([]ExtractionRule, error) {
	rows, err := r.db.QueryAll(ctx, "SELECT * FROM scout_extraction_rules WHERE workspace_id = ? ORDER BY priority DESC, id ASC", workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]ExtractionRule, 0, len(rows))
	for _, row := range rows {
		rule, err := rowToExtractionRule(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func rowToTaggingRule(row store.DbRow) (TaggingRule, error) {
	id, err := store.FromDbValue[int64](row.MustGet("id"))
	if err != nil {
		return TaggingRule{}, err
	}
	workspaceID, err := store.FromDbValue[int64](row.MustGet("workspace_id"))
	if err != nil {
		return TaggingRule{}, err
	}
	name, err := store.FromDbValue[string](row.MustGet("name"))
	if err != nil {
		return TaggingRule{}, err
	}
	kind, err := store.FromDbValue[string](row.MustGet("rule_kind"))
	if err != nil {
		return TaggingRule{}, err
	}
	glob, err := store.FromDbValue[string](row.MustGet("glob_pattern"))
	if err != nil {
		return TaggingRule{}, err
	}
	target, err := store.FromDbValue[string](row.MustGet("target_tag"))
	if err != nil {
		return TaggingRule{}, err
	}
	priority, err := store.FromDbValue[int64](row.MustGet("priority"))
	if err != nil {
		return TaggingRule{}, err
	}
	enabledInt, err := store.FromDbValue[int64](row.MustGet("enabled"))
	if err != nil {
		return TaggingRule{}, err
	}
	return TaggingRule{
		ID: id, WorkspaceID: workspaceID, Name: name, RuleKind: kind,
		GlobPattern: glob, TargetTag: target, Priority: priority, Enabled: enabledInt != 0,
	}, nil
}

func rowToExtractionRule(row store.DbRow) (ExtractionRule, error) {
	id, err := store.FromDbValue[int64](row.MustGet("id"))
	if err != nil {
		return ExtractionRule{}, err
	}
	workspaceID, err := store.FromDbValue[int64](row.MustGet("workspace_id"))
	if err != nil {
		return ExtractionRule{}, err
	}
	name, err := store.FromDbValue[string](row.MustGet("name"))
	if err != nil {
		return ExtractionRule{}, err
	}
	glob, err := store.FromDbValue[string](row.MustGet("glob_pattern"))
	if err != nil {
		return ExtractionRule{}, err
	}
	fields, err := store.FromDbValue[string](row.MustGet("fields_json"))
	if err != nil {
		return ExtractionRule{}, err
	}
	tagConds, err := store.FromDbValue[string](row.MustGet("tag_conditions_json"))
	if err != nil {
		return ExtractionRule{}, err
	}
	priority, err := store.FromDbValue[int64](row.MustGet("priority"))
	if err != nil {
		return ExtractionRule{}, err
	}
	enabledInt, err := store.FromDbValue[int64](row.MustGet("enabled"))
	if err != nil {
		return ExtractionRule{}, err
	}
	return ExtractionRule{
		ID: id, WorkspaceID: workspaceID, Name: name, GlobPattern: glob,
		FieldsJSON: fields, TagConditionsJSON: tagConds, Priority: priority, Enabled: enabledInt != 0,
	}, nil
}
