// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"context"
	"path/filepath"
)

// columnarBackend is the columnar-oriented embedded backend (OLAP). No
// embeddable columnar SQL engine (a DuckDB-equivalent) is wired in, so
// query execution is delegated to the same proven sqlite engine the
// row backend uses, against a
// distinct on-disk path rendered with the columnar schema-template
// variant (internal/schema): BIGINT-widened counters, no FK clauses,
// explicit unique indexes in place of inline row-table constraints.
// What makes this backend genuinely columnar-flavored rather than a
// second row store is BulkInsertRows: every appended row is additionally
// written to an on-disk Parquet segment directory via segmentWriter,
// giving external analytics a columnar artifact to read without going
// through the query surface at all — the "fastest path" the backend
// abstraction's contract describes as an appender. Single-writer across
// processes is enforced with an OS advisory lock file, independent of
// sqlite's own file locking.
type columnarBackend struct {
	*rowBackend
	lock     *advisoryLock
	segments *segmentWriter
}

// OpenColumnar opens the columnar backend rooted at dir: dir/data.db
// for the delegated SQL engine, dir/segments for Parquet exports, and
// dir/.lock for the advisory lock file (writable opens only).
func OpenColumnar(ctx context.Context, dir string, mode AccessMode) (Backend, error) {
	var lock *advisoryLock
	if mode == ReadWrite {
		l, err := acquireLock(filepath.Join(dir, ".lock"))
		if err != nil {
			return nil, err
		}
		lock = l
	}

	core, err := openSQLiteCore(ctx, filepath.Join(dir, "data.db"), mode)
	if err != nil {
		if lock != nil {
			lock.release()
		}
		return nil, err
	}

	segments, err := newSegmentWriter(filepath.Join(dir, "segments"))
	if err != nil {
		core.Close()
		if lock != nil {
			lock.release()
		}
		return nil, err
	}

	return &columnarBackend{rowBackend: core, lock: lock, segments: segments}, nil
}

func (b *columnarBackend) Kind() Kind { return KindColumnar }

func (b *columnarBackend) Close() error {
	if b.segments != nil {
		if err := b.segments.flush(); err != nil {
			return err
		}
	}
	if err := b.rowBackend.Close(); err != nil {
		return err
	}
	if b.lock != nil {
		return b.lock.release()
	}
	return nil
}

func (b *columnarBackend) BulkInsertRows(ctx context.Context, table string, columns []string, rows [][]DbValue) error {
	if err := b.rowBackend.BulkInsertRows(ctx, table, columns, rows); err != nil {
		return err
	}
	return b.segments.appendRows(table, columns, rows)
}
