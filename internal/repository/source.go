// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/casparianflow/flow/internal/store"
)

type Source struct {
	ID                  int64
	WorkspaceID         int64
	Name                string
	CanonicalPath       string
	SourceType          string
	ExecutableHint      string
	PollIntervalSeconds int64
	Enabled             bool
	FileCount           int64
	CreatedAt           int64
	UpdatedAt           int64
}

// CheckSourceOverlap enforces the invariant that a source's canonical
// path is neither a strict ancestor nor a strict descendant of any
// other existing enabled source's path in the same workspace. Equal
// paths (rescan) and siblings are allowed. A stale existing path that
// fails to canonicalize is skipped rather than failing the check.
func (r *Repository) CheckSourceOverlap(ctx context.Context, workspaceID int64, path string) error {
	newCanon, err := filepath.Abs(path)
	if err != nil {
		return nil // unresolvable candidate path is the caller's problem, not an overlap
	}
	newCanon = filepath.Clean(newCanon)

	rows, err := r.db.QueryAll(ctx, "SELECT id, name, canonical_path FROM scout_sources WHERE workspace_id = ? AND enabled = 1", workspaceID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		existingPath, err := store.FromDbValue[string](row.MustGet("canonical_path"))
		if err != nil {
			return err
		}
		existingCanon, err := filepath.Abs(existingPath)
		if err != nil {
			continue // stale, non-canonicalizable existing path: skip
		}
		existingCanon = filepath.Clean(existingCanon)

		if existingCanon == newCanon {
			continue // rescan of the same path is allowed
		}
		if isStrictAncestor(newCanon, existingCanon) {
			name, _ := store.FromDbValue[string](row.MustGet("name"))
			return &SourceIsParentOfExisting{ExistingName: name, ExistingPath: existingCanon}
		}
		if isStrictAncestor(existingCanon, newCanon) {
			name, _ := store.FromDbValue[string](row.MustGet("name"))
			return &SourceIsChildOfExisting{ExistingName: name, ExistingPath: existingCanon}
		}
	}
	return nil
}

// isStrictAncestor reports whether ancestor is a strict prefix
// directory of descendant (both already cleaned, absolute paths).
func isStrictAncestor(ancestor, descendant string) bool {
	if ancestor == descendant {
		return false
	}
	sep := string(filepath.Separator)
	prefix := strings.TrimSuffix(ancestor, sep) + sep
	return strings.HasPrefix(descendant, prefix)
}

func (r *Repository) CreateSource(ctx context.Context, workspaceID int64, name, canonicalPath, sourceType string) (Source, error) {
	if err := r.CheckSourceOverlap(ctx, workspaceID, canonicalPath); err != nil {
		return Source{}, err
	}
	now := nowMillis()
	_, err := r.db.Execute(ctx,
		`INSERT INTO scout_sources (workspace_id, name, canonical_path, source_type, poll_interval_seconds, enabled, file_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 300, 1, 0, ?, ?)`,
		workspaceID, name, canonicalPath, sourceType, now, now)
	if err != nil {
		return Source{}, err
	}
	row, err := r.db.QueryOne(ctx, "SELECT * FROM scout_sources WHERE workspace_id = ? AND name = ?", workspaceID, name)
	if err != nil {
		return Source{}, err
	}
	return rowToSource(row)
}

// ListSourcesByMRU orders by updated_at descending — TouchSource is the
// only mutator of updated_at outside of scan/rename, so this reflects
// most-recently-used.
func (r *Repository) ListSourcesByMRU(ctx context.Context, workspaceID int64) ([]Source, error) {
	rows, err := r.db.QueryAll(ctx, "SELECT * FROM scout_sources WHERE workspace_id = ? ORDER BY updated_at DESC", workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(rows))
	for _, row := range rows {
		s, err := rowToSource(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Repository) ListSources(ctx context.Context, workspaceID int64) ([]Source, error) {
	rows, err := r.db.QueryAll(ctx, "SELECT * FROM scout_sources WHERE workspace_id = ? ORDER BY id ASC", workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(rows))
	for _, row := range rows {
		s, err := rowToSource(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Repository) TouchSource(ctx context.Context, id int64) error {
	_, err := r.db.Execute(ctx, "UPDATE scout_sources SET updated_at = ? WHERE id = ?", nowMillis(), id)
	return err
}

func (r *Repository) UpdateSourceFileCount(ctx context.Context, id, count int64) error {
	_, err := r.db.Execute(ctx, "UPDATE scout_sources SET file_count = ? WHERE id = ?", count, id)
	return err
}

// DeleteSource cascades explicitly — tags, then files, then the
// source — since the columnar schema variant strips FK clauses and the
// DAO must never rely on FK cascade.
func (r *Repository) DeleteSource(ctx context.Context, id int64) error {
	return r.db.Transaction(ctx, func(tx store.Tx) error {
		if _, err := tx.Execute(ctx,
			"DELETE FROM scout_file_tags WHERE file_id IN (SELECT id FROM scout_files WHERE source_id = ?)", id); err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, "DELETE FROM scout_files WHERE source_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.Execute(ctx, "DELETE FROM scout_folder_cache WHERE source_id = ?", id); err != nil {
			return err
		}
		_, err := tx.Execute(ctx, "DELETE FROM scout_sources WHERE id = ?", id)
		return err
	})
}

func rowToSource(row store.DbRow) (Source, error) {
	id, err := store.FromDbValue[int64](row.MustGet("id"))
	if err != nil {
		return Source{}, err
	}
	workspaceID, err := store.FromDbValue[int64](row.MustGet("workspace_id"))
	if err != nil {
		return Source{}, err
	}
	name, err := store.FromDbValue[string](row.MustGet("name"))
	if err != nil {
		return Source{}, err
	}
	canonicalPath, err := store.FromDbValue[string](row.MustGet("canonical_path"))
	if err != nil {
		return Source{}, err
	}
	sourceType, err := store.FromDbValue[string](row.MustGet("source_type"))
	if err != nil {
		return Source{}, err
	}
	hintPtr, err := store.OptionalFromDbValue[string](row.MustGet("executable_hint"))
	if err != nil {
		return Source{}, err
	}
	var hint string
	if hintPtr != nil {
		hint = *hintPtr
	}
	poll, err := store.FromDbValue[int64](row.MustGet("poll_interval_seconds"))
	if err != nil {
		return Source{}, err
	}
	enabledInt, err := store.FromDbValue[int64](row.MustGet("enabled"))
	if err != nil {
		return Source{}, err
	}
	fileCount, err := store.FromDbValue[int64](row.MustGet("file_count"))
	if err != nil {
		return Source{}, err
	}
	createdAt, err := store.FromDbValue[int64](row.MustGet("created_at"))
	if err != nil {
		return Source{}, err
	}
	updatedAt, err := store.FromDbValue[int64](row.MustGet("updated_at"))
	if err != nil {
		return Source{}, err
	}
	return Source{
		ID: id, WorkspaceID: workspaceID, Name: name, CanonicalPath: canonicalPath,
		SourceType: sourceType, ExecutableHint: hint, PollIntervalSeconds: poll,
		Enabled: enabledInt != 0, FileCount: fileCount, CreatedAt: createdAt, UpdatedAt: updatedAt,
	}, nil
}
