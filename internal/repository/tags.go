// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

type TagSource string

const (
	TagSourceRule   TagSource = "rule"
	TagSourceManual TagSource = "manual"
)

type FileTag struct {
	WorkspaceID int64
	FileID      int64
	Tag         string
	TagSource   TagSource
	RuleID      int64
	AssignedAt  int64
}

// AssignTag is idempotent with respect to (workspace, file, tag): a
// repeated assignment just refreshes tag_source/rule_id/assigned_at.
func (r *Repository) AssignTag(ctx context.Context, workspaceID, fileID int64, tag string, src TagSource, ruleID int64) error {
	_, err := r.db.Execute(ctx,
		`INSERT INTO scout_file_tags (workspace_id, file_id, tag, tag_source, rule_id, assigned_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(workspace_id, file_id, tag) DO UPDATE SET
		   tag_source = excluded.tag_source, rule_id = excluded.rule_id, assigned_at = excluded.assigned_at`,
		workspaceID, fileID, tag, string(src), nullableInt64(ruleID), nowMillis())
	return err
}

func (r *Repository) RemoveTag(ctx context.Context, workspaceID, fileID int64, tag string) error {
	_, err := r.db.Execute(ctx, "DELETE FROM scout_file_tags WHERE workspace_id = ? AND file_id = ? AND tag = ?", workspaceID, fileID, tag)
	return err
}

func (r *Repository) ListTagsForFile(ctx context.Context, fileID int64) ([]FileTag, error) {
	rows, err := r.db.QueryAll(ctx, "SELECT * FROM scout_file_tags WHERE file_id = ? ORDER BY tag ASC", fileID)
	if err != nil {
		return nil, err
	}
	out := make([]FileTag, 0, len(rows))
	for _, row := range rows {
		t, err := rowToFileTag(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// nullableInt64 turns the zero value into nil so a 0 ruleID (manual
// tagging, no rule) is stored as NULL rather than a misleading 0.
func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func rowToFileTag(row store.DbRow) (FileTag, error) {
	workspaceID, err := store.FromDbValue[int64](row.MustGet("workspace_id"))
	if err != nil {
		return FileTag{}, err
	}
	fileID, err := store.FromDbValue[int64](row.MustGet("file_id"))
	if err != nil {
		return FileTag{}, err
	}
	tag, err := store.FromDbValue[string](row.MustGet("tag"))
	if err != nil {
		return FileTag{}, err
	}
	srcRaw, err := store.FromDbValue[string](row.MustGet("tag_source"))
	if err != nil {
		return FileTag{}, err
	}
	ruleID, err := store.OptionalFromDbValue[int64](row.MustGet("rule_id"))
	if err != nil {
		return FileTag{}, err
	}
	var rid int64
	if ruleID != nil {
		rid = *ruleID
	}
	assignedAt, err := store.FromDbValue[int64](row.MustGet("assigned_at"))
	if err != nil {
		return FileTag{}, err
	}
	return FileTag{
		WorkspaceID: workspaceID, FileID: fileID, Tag: tag,
		TagSource: TagSource(srcRaw), RuleID: rid, AssignedAt: assignedAt,
	}, nil
}
