// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

type Workspace struct {
	ID        int64
	Name      string
	CreatedAt int64
}

const defaultWorkspaceName = "Default"

// EnsureDefaultWorkspace returns the "Default" workspace, creating it
// if this is the first run. A workspace is never destroyed once
// referenced, so this is safe to call on every startup.
func (r *Repository) EnsureDefaultWorkspace(ctx context.Context) (Workspace, error) {
	row, err := r.db.QueryOptional(ctx, "SELECT id, name, created_at FROM scout_workspaces WHERE name = ?", defaultWorkspaceName)
	if err != nil {
		return Workspace{}, err
	}
	if row != nil {
		return rowToWorkspace(*row)
	}

	now := nowMillis()
	var ws Workspace
	err = r.db.Transaction(ctx, func(tx store.Tx) error {
		if _, err := tx.Execute(ctx, "INSERT INTO scout_workspaces (name, created_at) VALUES (?, ?)", defaultWorkspaceName, now); err != nil {
			return err
		}
		id, err := tx.QueryScalar(ctx, "SELECT id FROM scout_workspaces WHERE name = ?", defaultWorkspaceName)
		if err != nil {
			return err
		}
		wsID, err := store.FromDbValue[int64](id)
		if err != nil {
			return err
		}
		ws = Workspace{ID: wsID, Name: defaultWorkspaceName, CreatedAt: now}
		return nil
	})
	return ws, err
}

func (r *Repository) CreateWorkspace(ctx context.Context, name string) (Workspace, error) {
	now := nowMillis()
	n, err := r.db.Execute(ctx, "INSERT INTO scout_workspaces (name, created_at) VALUES (?, ?)", name, now)
	if err != nil {
		return Workspace{}, err
	}
	_ = n
	row, err := r.db.QueryOne(ctx, "SELECT id, name, created_at FROM scout_workspaces WHERE name = ?", name)
	if err != nil {
		return Workspace{}, err
	}
	return rowToWorkspace(row)
}

func (r *Repository) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	rows, err := r.db.QueryAll(ctx, "SELECT id, name, created_at FROM scout_workspaces ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	out := make([]Workspace, 0, len(rows))
	for _, row := range rows {
		w, err := rowToWorkspace(row)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func rowToWorkspace(row store.DbRow) (Workspace, error) {
	id, err := store.FromDbValue[int64](row.MustGet("id"))
	if err != nil {
		return Workspace{}, err
	}
	name, err := store.FromDbValue[string](row.MustGet("name"))
	if err != nil {
		return Workspace{}, err
	}
	createdAt, err := store.FromDbValue[int64](row.MustGet("created_at"))
	if err != nil {
		return Workspace{}, err
	}
	return Workspace{ID: id, Name: name, CreatedAt: createdAt}, nil
}
