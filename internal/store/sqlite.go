// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/casparianflow/flow/pkg/log"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

var registerRowDriverOnce sync.Once

const rowDriverName = "sqlite3_scout_hooked"

func registerRowDriver() {
	registerRowDriverOnce.Do(func() {
		sql.Register(rowDriverName, sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &sqlHooks{}))
	})
}

// rowBackend is the row-oriented embedded backend (OLTP), built on a
// sqlite3+sqlx+sqlhooks connection. Writable opens own their
// connection on a dedicated actor goroutine; sqlite itself does not
// multithread a single connection, so a writable rowBackend also pins
// SetMaxOpenConns(1) regardless of the actor.
type rowBackend struct {
	db   *sqlx.DB
	act  *actor
	mode AccessMode
	path string
}

// OpenSQLite opens the row-store backend at path. ":memory:" is treated
// specially for tests, per Backend's contract open_in_memory().
func OpenSQLite(ctx context.Context, path string, mode AccessMode) (Backend, error) {
	return openSQLiteCore(ctx, path, mode)
}

// openSQLiteCore is the shared connection-opening logic behind both the
// row backend and the SQL engine the columnar backend delegates queries
// to (see columnar.go) — same driver, different DSN/path.
func openSQLiteCore(ctx context.Context, path string, mode AccessMode) (*rowBackend, error) {
	registerRowDriver()

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&_foreign_keys=on"
	}
	if mode == ReadOnly {
		dsn += "&mode=ro"
	}

	db, err := sqlx.Open(rowDriverName, dsn)
	if err != nil {
		return nil, databaseErr("open row backend", err)
	}
	// A single sqlite connection does not multithread; all serialization
	// for writes additionally goes through the actor, but pinning this
	// to 1 keeps read-only opens well-behaved too.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, databaseErr("ping row backend", err)
	}

	b := &rowBackend{db: db, mode: mode, path: path}
	if mode == ReadWrite {
		b.act = newActor(KindRow)
	}

	// Schema creation and the column-presence check are the caller's
	// responsibility (internal/schema.Apply), run against the opened
	// Backend — keeping store free of a dependency on schema avoids an
	// import cycle and lets read-only openers skip DDL entirely.
	return b, nil
}

func (b *rowBackend) Kind() Kind        { return KindRow }
func (b *rowBackend) Mode() AccessMode  { return b.mode }

func (b *rowBackend) Close() error {
	if b.act != nil {
		b.act.close()
	}
	return b.db.Close()
}

func (b *rowBackend) run(ctx context.Context, op func() (any, error)) (any, error) {
	if b.act == nil {
		return op()
	}
	return b.act.submit(ctx, op)
}

func (b *rowBackend) Execute(ctx context.Context, sqlText string, args ...any) (int64, error) {
	if b.mode == ReadOnly {
		return 0, ErrReadOnly
	}
	v, err := b.run(ctx, func() (any, error) {
		res, err := b.db.ExecContext(ctx, sqlText, args...)
		if err != nil {
			return int64(0), databaseErr("execute", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return int64(0), databaseErr("rows affected", err)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (b *rowBackend) ExecuteBatch(ctx context.Context, sqlText string) error {
	if b.mode == ReadOnly {
		return ErrReadOnly
	}
	_, err := b.run(ctx, func() (any, error) {
		for _, stmt := range splitStatements(sqlText) {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := b.db.ExecContext(ctx, stmt); err != nil {
				return nil, databaseErr("execute batch", fmt.Errorf("statement %q: %w", stmt, err))
			}
		}
		return nil, nil
	})
	return err
}

// splitStatements splits on ';' — a documented hazard when a string
// literal embeds a semicolon. Schema DDL (the only caller) never does.
func splitStatements(sqlText string) []string {
	return strings.Split(sqlText, ";")
}

func (b *rowBackend) QueryAll(ctx context.Context, sqlText string, args ...any) ([]DbRow, error) {
	v, err := b.run(ctx, func() (any, error) {
		rows, err := b.db.QueryxContext(ctx, sqlText, args...)
		if err != nil {
			return nil, databaseErr("query", err)
		}
		defer rows.Close()
		return scanRows(rows)
	})
	if err != nil {
		return nil, err
	}
	return v.([]DbRow), nil
}

func (b *rowBackend) QueryOptional(ctx context.Context, sqlText string, args ...any) (*DbRow, error) {
	rows, err := b.QueryAll(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (b *rowBackend) QueryOne(ctx context.Context, sqlText string, args ...any) (DbRow, error) {
	row, err := b.QueryOptional(ctx, sqlText, args...)
	if err != nil {
		return DbRow{}, err
	}
	if row == nil {
		return DbRow{}, ErrNoRows
	}
	return *row, nil
}

func (b *rowBackend) QueryScalar(ctx context.Context, sqlText string, args ...any) (DbValue, error) {
	row, err := b.QueryOne(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	if len(row.Values) == 0 {
		return nil, fmt.Errorf("%w: scalar query returned no columns", ErrTypeConversion)
	}
	return row.Values[0], nil
}

func (b *rowBackend) Transaction(ctx context.Context, fn func(Tx) error) error {
	if b.mode == ReadOnly {
		return ErrReadOnly
	}
	_, err := b.run(ctx, func() (any, error) {
		tx, err := b.db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, databaseErr("begin transaction", err)
		}
		txw := &rowTx{tx: tx, ctx: ctx}
		if err := fn(txw); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				log.Warnf("store: rollback after error also failed: %v", rerr)
			}
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, databaseErr("commit transaction", err)
		}
		return nil, nil
	})
	return err
}

func (b *rowBackend) BulkInsertRows(ctx context.Context, table string, columns []string, rows [][]DbValue) error {
	if len(rows) == 0 {
		return nil
	}
	if b.mode == ReadOnly {
		return ErrReadOnly
	}

	perRowParams := len(columns)
	chunkSize := maxBindParams / perRowParams
	if chunkSize < 1 {
		chunkSize = 1
	}

	return b.Transaction(ctx, func(tx Tx) error {
		for start := 0; start < len(rows); start += chunkSize {
			end := min(start+chunkSize, len(rows))
			chunk := rows[start:end]
			stmtSQL, args := buildMultiRowInsert(table, columns, chunk)
			if _, err := tx.Execute(ctx, stmtSQL, args...); err != nil {
				return fmt.Errorf("bulk insert rows %d..%d: %w", start, end, err)
			}
		}
		return nil
	})
}

func buildMultiRowInsert(table string, columns []string, rows [][]DbValue) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholder)
		args = append(args, row...)
	}
	return sb.String(), args
}

// rowTx is the Tx implementation bound to one *sqlx.Tx, used only inside
// Transaction closures running on the owning actor's goroutine.
type rowTx struct {
	tx  *sqlx.Tx
	ctx context.Context
}

func (t *rowTx) Execute(ctx context.Context, sqlText string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, databaseErr("tx execute", err)
	}
	return res.RowsAffected()
}

func (t *rowTx) QueryAll(ctx context.Context, sqlText string, args ...any) ([]DbRow, error) {
	rows, err := t.tx.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, databaseErr("tx query", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (t *rowTx) QueryOptional(ctx context.Context, sqlText string, args ...any) (*DbRow, error) {
	rows, err := t.QueryAll(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (t *rowTx) QueryOne(ctx context.Context, sqlText string, args ...any) (DbRow, error) {
	row, err := t.QueryOptional(ctx, sqlText, args...)
	if err != nil {
		return DbRow{}, err
	}
	if row == nil {
		return DbRow{}, ErrNoRows
	}
	return *row, nil
}

func (t *rowTx) QueryScalar(ctx context.Context, sqlText string, args ...any) (DbValue, error) {
	row, err := t.QueryOne(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	if len(row.Values) == 0 {
		return nil, fmt.Errorf("%w: scalar query returned no columns", ErrTypeConversion)
	}
	return row.Values[0], nil
}

func scanRows(rows *sqlx.Rows) ([]DbRow, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, databaseErr("columns", err)
	}

	var result []DbRow
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, databaseErr("scan", err)
		}
		result = append(result, DbRow{Columns: append([]string(nil), cols...), Values: vals})
	}
	return result, rows.Err()
}
