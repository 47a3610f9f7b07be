// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"context"
	"testing"

	"github.com/casparianflow/flow/internal/store"
	"github.com/stretchr/testify/require"
)

func TestApplyRowCreatesAllTables(t *testing.T) {
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, Apply(ctx, b))

	for _, tbl := range Tables {
		rows, err := b.QueryAll(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", tbl.Name)
		require.NoError(t, err)
		require.Lenf(t, rows, 1, "expected table %s to exist", tbl.Name)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, Apply(ctx, b))
	require.NoError(t, Apply(ctx, b))
}

func TestApplyEnforcesUniqueConstraint(t *testing.T) {
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, Apply(ctx, b))

	_, err = b.Execute(ctx, "INSERT INTO scout_workspaces (name, created_at) VALUES (?, ?)", "default", 1)
	require.NoError(t, err)
	_, err = b.Execute(ctx, "INSERT INTO scout_workspaces (name, created_at) VALUES (?, ?)", "default", 2)
	require.Error(t, err)
}

func TestApplyColumnar(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	b, err := store.OpenColumnar(ctx, dir, store.ReadWrite)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, Apply(ctx, b))

	_, err = b.Execute(ctx, "INSERT INTO cf_output_materializations "+
		"(materialization_key, output_target_key, table_name, schema_hash, row_count, created_at) "+
		"VALUES (?, ?, ?, ?, ?, ?)", "k1", "t1", "out", "hash1", 0, 1)
	require.NoError(t, err)

	_, err = b.Execute(ctx, "INSERT INTO cf_output_materializations "+
		"(materialization_key, output_target_key, table_name, schema_hash, row_count, created_at) "+
		"VALUES (?, ?, ?, ?, ?, ?)", "k1", "t2", "out2", "hash2", 0, 2)
	require.Error(t, err, "materialization_key must be unique even without an inline UNIQUE clause")
}

func TestCheckRequiredColumnsFailsClosed(t *testing.T) {
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Execute(ctx, "CREATE TABLE scout_files (id INTEGER PRIMARY KEY, path TEXT)")
	require.NoError(t, err)

	err = checkRequiredColumns(ctx, b)
	require.Error(t, err)
	var mc *ErrMissingColumn
	require.ErrorAs(t, err, &mc)
	require.Equal(t, "scout_files", mc.Table)
}
