// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestBackend(t *testing.T) Backend {
	t.Helper()
	ctx := context.Background()
	b, err := OpenSQLite(ctx, ":memory:", ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	_, err = b.QueryAll(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT, qty INTEGER)")
	require.NoError(t, err)
	return b
}

func TestExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	n, err := b.Execute(ctx, "INSERT INTO widgets (name, qty) VALUES (?, ?)", "bolt", 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rows, err := b.QueryAll(ctx, "SELECT id, name, qty FROM widgets WHERE name = ?", "bolt")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	name, err := FromDbValue[string](rows[0].MustGet("name"))
	require.NoError(t, err)
	require.Equal(t, "bolt", name)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	sentinel := errors.New("boom")
	err := b.Transaction(ctx, func(tx Tx) error {
		if _, err := tx.Execute(ctx, "INSERT INTO widgets (name, qty) VALUES (?, ?)", "nut", 1); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	rows, err := b.QueryAll(ctx, "SELECT id FROM widgets")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestBulkInsertRowsChunks(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	rows := make([][]DbValue, 0, 1200)
	for i := 0; i < 1200; i++ {
		rows = append(rows, []DbValue{"w", int64(i)})
	}
	require.NoError(t, b.BulkInsertRows(ctx, "widgets", []string{"name", "qty"}, rows))

	got, err := b.QueryAll(ctx, "SELECT count(*) AS n FROM widgets")
	require.NoError(t, err)
	n, err := FromDbValue[int64](got[0].MustGet("n"))
	require.NoError(t, err)
	require.EqualValues(t, 1200, n)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	ctx := context.Background()
	_ = openTestBackend(t) // ensure driver registered

	ro, err := OpenSQLite(ctx, ":memory:", ReadOnly)
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Execute(ctx, "CREATE TABLE t (id INTEGER)")
	require.ErrorIs(t, err, ErrReadOnly)
}
