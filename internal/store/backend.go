// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store provides the uniform façade over the two embedded
// backend variants (row-store and columnar) that the metadata DAO and
// job queue are written against: open/execute/query/transaction/
// bulk-insert, none of it aware of which variant it is talking to.
package store

import "context"

// AccessMode controls whether Open acquires the exclusive write lock.
type AccessMode int

const (
	ReadWrite AccessMode = iota
	ReadOnly
)

// Kind distinguishes the two backend variants so schema rendering
// (internal/schema) knows which template to apply.
type Kind int

const (
	// KindRow is the row-oriented embedded store (OLTP): point lookups,
	// upserts, the job queue's claim/complete traffic.
	KindRow Kind = iota
	// KindColumnar is the columnar-oriented embedded store (OLAP):
	// analytics over large file inventories, bulk appends.
	KindColumnar
)

func (k Kind) String() string {
	if k == KindColumnar {
		return "columnar"
	}
	return "row"
}

// Tx is the query surface available inside a Transaction closure. It is
// identical to Backend's read/write surface minus Transaction and Close
// — nesting transactions is not supported, matching the actor model
// where a transaction already has exclusive access to the connection.
type Tx interface {
	Execute(ctx context.Context, sqlText string, args ...any) (int64, error)
	QueryAll(ctx context.Context, sqlText string, args ...any) ([]DbRow, error)
	QueryOptional(ctx context.Context, sqlText string, args ...any) (*DbRow, error)
	QueryOne(ctx context.Context, sqlText string, args ...any) (DbRow, error)
	QueryScalar(ctx context.Context, sqlText string, args ...any) (DbValue, error)
}

// Backend is the uniform façade over both store variants. All methods
// are synchronous from the caller's perspective: for a writable
// backend they are actually run on the backend's dedicated actor
// goroutine.
type Backend interface {
	Tx

	// ExecuteBatch splits sqlText on ';' (a documented hazard if a string
	// literal embeds a semicolon) and runs each statement in turn; the
	// columnar backend inherits this from the row backend it embeds.
	// Used only for schema DDL, which the schema package
	// controls, so the hazard does not arise in practice.
	ExecuteBatch(ctx context.Context, sqlText string) error

	// Transaction runs fn against a Tx bound to one transaction on this
	// backend's dedicated connection. Any error fn returns causes a
	// ROLLBACK and is propagated to the caller unchanged.
	Transaction(ctx context.Context, fn func(Tx) error) error

	// BulkInsertRows appends many rows using the backend's fastest
	// path: chunked multi-row VALUES for the row backend (capped well
	// under sqlite's ~32k bound-parameter limit), a columnar appender
	// plus Parquet segment export for the columnar backend.
	BulkInsertRows(ctx context.Context, table string, columns []string, rows [][]DbValue) error

	Kind() Kind
	Mode() AccessMode
	Close() error
}

// maxBindParams is the chunk boundary bulk operations stay under; sqlite
// caps bound parameters around 32766 (SQLITE_MAX_VARIABLE_NUMBER default
// in recent releases), so operations chunk well below that.
const maxBindParams = 500
