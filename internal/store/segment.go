// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/casparianflow/flow/pkg/log"
	pq "github.com/parquet-go/parquet-go"
)

// segmentRow is one bulk-inserted row captured for the columnar
// backend's OLAP-facing export: accumulate rows until the estimated
// batch size crosses a threshold, then flush a single Parquet file
// written with a generic writer and Zstd compression. Column values
// are carried as a JSON blob rather than individual typed Parquet
// columns, since the DAO's table shapes vary per call site and a
// dynamically-typed Parquet schema builder isn't warranted here.
type segmentRow struct {
	Table      string `parquet:"table"`
	ColumnsCSV string `parquet:"columns_csv"`
	ValuesJSON []byte `parquet:"values_json"`
	WrittenAt  int64  `parquet:"written_at"`
}

// segmentWriter is the columnar backend's appender: BulkInsertRows
// writes here in addition to the underlying SQL table, so the on-disk
// segment directory accumulates the same rows in a form downstream
// analytics (external to this core) can read directly as Parquet.
type segmentWriter struct {
	mu           sync.Mutex
	dir          string
	maxSizeBytes int64
	rows         []segmentRow
	currentSize  int64
	fileCounter  int
}

const defaultSegmentMaxMB = 64

func newSegmentWriter(dir string) (*segmentWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("store: create segment directory: %w", err)
	}
	return &segmentWriter{
		dir:          dir,
		maxSizeBytes: int64(defaultSegmentMaxMB) * 1024 * 1024,
	}, nil
}

func (w *segmentWriter) appendRows(table string, columns []string, rows [][]DbValue) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UnixMilli()
	columnsCSV := joinCSV(columns)
	for _, row := range rows {
		valuesJSON, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("store: marshal segment row for %s: %w", table, err)
		}
		sr := segmentRow{Table: table, ColumnsCSV: columnsCSV, ValuesJSON: valuesJSON, WrittenAt: now}
		w.rows = append(w.rows, sr)
		w.currentSize += int64(len(valuesJSON)) + int64(len(columnsCSV)) + 32

		if w.currentSize > w.maxSizeBytes {
			if err := w.flushLocked(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *segmentWriter) flushLocked() error {
	if len(w.rows) == 0 {
		return nil
	}

	w.fileCounter++
	name := fmt.Sprintf("segment-%s-%05d.parquet", time.Now().Format("20060102"), w.fileCounter)

	var buf bytes.Buffer
	writer := pq.NewGenericWriter[segmentRow](&buf, pq.Compression(&pq.Zstd))
	if _, err := writer.Write(w.rows); err != nil {
		return fmt.Errorf("store: write segment rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("store: close segment writer: %w", err)
	}

	if err := os.WriteFile(filepath.Join(w.dir, name), buf.Bytes(), 0o640); err != nil {
		return fmt.Errorf("store: write segment file %s: %w", name, err)
	}

	log.Debugf("store: flushed columnar segment %s (%d rows, %d bytes)", name, len(w.rows), buf.Len())
	w.rows = w.rows[:0]
	w.currentSize = 0
	return nil
}

func (w *segmentWriter) flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func joinCSV(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
