// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"context"
	"fmt"

	"github.com/casparianflow/flow/internal/store"
)

// ErrMissingColumn is wrapped into the error returned when a required
// column is absent — the trigger for "delete the store and restart"
// in place of online migration tooling.
type ErrMissingColumn struct {
	Table  string
	Column string
}

func (e *ErrMissingColumn) Error() string {
	return fmt.Sprintf("schema: table %s is missing required column %q — "+
		"this store predates a breaking schema change; delete the store "+
		"file and restart to rebuild it", e.Table, e.Column)
}

// For both backends, tableExists looks the table up in sqlite_master
// and tableColumns reads PRAGMA table_info, since the current columnar
// variant still delegates its SQL engine to sqlite (see internal/store's
// columnar backend doc comment); tableColumns keeps the dispatch by kind
// so a future non-sqlite columnar engine only has to add a branch there.
func tableExists(ctx context.Context, b store.Backend, table string) (bool, error) {
	row, err := b.QueryOptional(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

func tableColumns(ctx context.Context, b store.Backend, table string) (map[string]bool, error) {
	switch b.Kind() {
	case store.KindRow, store.KindColumnar:
		rows, err := b.QueryAll(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return nil, err
		}
		cols := make(map[string]bool, len(rows))
		for _, r := range rows {
			name, err := store.FromDbValue[string](r.MustGet("name"))
			if err != nil {
				return nil, err
			}
			cols[name] = true
		}
		return cols, nil
	default:
		return nil, fmt.Errorf("schema: unknown backend kind %v", b.Kind())
	}
}

// checkRequiredColumns enforces Required against every table already
// present in the opened backend. A table entirely absent is not an
// error here — Apply creates it fresh via CREATE TABLE IF NOT EXISTS
// before this check runs, so "missing table" never reaches here for a
// store this package itself created; it only fires for a pre-existing
// store whose table is missing a column a newer build expects.
func checkRequiredColumns(ctx context.Context, b store.Backend) error {
	for table, required := range Required {
		exists, err := tableExists(ctx, b, table)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		cols, err := tableColumns(ctx, b, table)
		if err != nil {
			return err
		}
		for _, col := range required {
			if !cols[col] {
				return &ErrMissingColumn{Table: table, Column: col}
			}
		}
	}
	return nil
}
