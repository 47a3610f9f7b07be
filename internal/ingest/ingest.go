// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest implements the change-aware bulk upsert pipeline:
// classify each scanned entry as new, changed, or unchanged, and
// preserve file identity across renames via the file UID. The scanner
// that walks the filesystem is an external collaborator; this package
// only consumes its output.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/casparianflow/flow/internal/store"
	"golang.org/x/crypto/blake2b"
)

// ScannedFile is one entry the (external) scanner produced for a batch
// upsert call. ContentBytes is optional: most scans are metadata-only
// (path/size/mtime), but a caller that already read a small file's
// contents (e.g. while sniffing its format) can attach them here to
// get a content hash recorded for free, without a second read.
type ScannedFile struct {
	FileUID      string
	Path         string
	RelPath      string
	ParentPath   string
	Basename     string
	Extension    string
	IsDir        bool
	SizeBytes    int64
	MtimeMs      int64
	ContentBytes []byte
}

// contentHash returns the blake2b-256 digest of b as a hex string, or
// "" if b is empty. blake2b is used here rather than the materialization
// key's blake3 so this stays keyed to content alone, not to the same
// hash family as the queue's reproducibility guarantees.
func contentHash(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	sum := blake2b.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// Stats is the result of BatchUpsertFiles's classification pass.
// Errors counts rows that failed even the row-by-row fallback insert;
// they do not abort the batch.
type Stats struct {
	New       int64
	Changed   int64
	Unchanged int64
	Errors    int64
}

const (
	queryChunkSize  = 500
	upsertChunkSize = 100
)

type existingRow struct {
	id        int64
	path      string
	sizeBytes int64
	mtimeMs   int64
}

// BatchUpsertFiles is the bulk ingestion entry point. Empty input is a
// no-op. computeStats=false skips the classification pass entirely —
// the common case for routine rescans, 2-10x faster on large batches.
func BatchUpsertFiles(ctx context.Context, db store.Backend, workspaceID, sourceID int64, files []ScannedFile, optionalTag string, computeStats bool) (Stats, error) {
	if len(files) == 0 {
		return Stats{}, nil
	}

	var stats Stats
	now := time.Now().UnixMilli()

	err := db.Transaction(ctx, func(tx store.Tx) error {
		existingByUID, existingByPath, err := loadExisting(ctx, tx, sourceID, files)
		if err != nil {
			return err
		}

		renamePass(ctx, tx, files, existingByUID, existingByPath, now)

		for start := 0; start < len(files); start += upsertChunkSize {
			end := start + upsertChunkSize
			if end > len(files) {
				end = len(files)
			}
			chunk := files[start:end]
			if err := upsertChunk(ctx, tx, workspaceID, sourceID, chunk, now, &stats); err != nil {
				return err
			}
			if err := clearTagsForResetFiles(ctx, tx, sourceID, chunk, existingByPath); err != nil {
				return err
			}
		}

		if computeStats {
			classify(files, existingByPath, &stats)
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	if optionalTag != "" {
		if err := applyOptionalTag(ctx, db, workspaceID, sourceID, files, optionalTag, now); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// loadExisting queries existing-by-UID and existing-by-path rows for
// the batch's source in chunks of 500, a single IN (...) clause plus
// the source parameter per chunk.
func loadExisting(ctx context.Context, tx store.Tx, sourceID int64, files []ScannedFile) (map[string]existingRow, map[string]existingRow, error) {
	existingByUID := make(map[string]existingRow)
	existingByPath := make(map[string]existingRow)

	for start := 0; start < len(files); start += queryChunkSize {
		end := start + queryChunkSize
		if end > len(files) {
			end = len(files)
		}
		chunk := files[start:end]

		uidSet := map[string]bool{}
		pathSet := map[string]bool{}
		for _, f := range chunk {
			uidSet[f.FileUID] = true
			pathSet[f.Path] = true
		}

		uidRowsByUID, err := queryExistingByUID(ctx, tx, sourceID, keysOf(uidSet))
		if err != nil {
			return nil, nil, err
		}
		for uid, r := range uidRowsByUID {
			existingByUID[uid] = r
		}

		pathRows, err := queryExistingIn(ctx, tx, sourceID, "path", keysOf(pathSet))
		if err != nil {
			return nil, nil, err
		}
		for _, r := range pathRows {
			existingByPath[r.path] = r
		}
	}

	return existingByUID, existingByPath, nil
}

func keysOf(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func queryExistingIn(ctx context.Context, tx store.Tx, sourceID int64, column string, values []string) ([]existingRow, error) {
	if len(values) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(values)
	args = append([]any{sourceID}, args...)
	sqlText := fmt.Sprintf("SELECT id, path, size_bytes, mtime_ms FROM scout_files WHERE source_id = ? AND %s IN (%s)", column, placeholders)
	rows, err := tx.QueryAll(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	return rowsToExisting(rows)
}

func queryExistingByUID(ctx context.Context, tx store.Tx, sourceID int64, uids []string) (map[string]existingRow, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(uids)
	args = append([]any{sourceID}, args...)
	sqlText := fmt.Sprintf("SELECT id, file_uid, path, size_bytes, mtime_ms FROM scout_files WHERE source_id = ? AND file_uid IN (%s)", placeholders)
	rows, err := tx.QueryAll(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]existingRow, len(rows))
	for _, row := range rows {
		id, err := store.FromDbValue[int64](row.MustGet("id"))
		if err != nil {
			return nil, err
		}
		uid, err := store.FromDbValue[string](row.MustGet("file_uid"))
		if err != nil {
			return nil, err
		}
		path, err := store.FromDbValue[string](row.MustGet("path"))
		if err != nil {
			return nil, err
		}
		size, err := store.FromDbValue[int64](row.MustGet("size_bytes"))
		if err != nil {
			return nil, err
		}
		mtime, err := store.FromDbValue[int64](row.MustGet("mtime_ms"))
		if err != nil {
			return nil, err
		}
		out[uid] = existingRow{id: id, path: path, sizeBytes: size, mtimeMs: mtime}
	}
	return out, nil
}

func rowsToExisting(rows []store.DbRow) ([]existingRow, error) {
	out := make([]existingRow, 0, len(rows))
	for _, row := range rows {
		id, err := store.FromDbValue[int64](row.MustGet("id"))
		if err != nil {
			return nil, err
		}
		path, err := store.FromDbValue[string](row.MustGet("path"))
		if err != nil {
			return nil, err
		}
		size, err := store.FromDbValue[int64](row.MustGet("size_bytes"))
		if err != nil {
			return nil, err
		}
		mtime, err := store.FromDbValue[int64](row.MustGet("mtime_ms"))
		if err != nil {
			return nil, err
		}
		out = append(out, existingRow{id: id, path: path, sizeBytes: size, mtimeMs: mtime})
	}
	return out, nil
}

func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	placeholders := ""
	for i, v := range values {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = v
	}
	return placeholders, args
}

// renamePass updates path and derived fields in place for any input
// file whose UID matches an existing row at a different path; status
// and tags are untouched.
func renamePass(ctx context.Context, tx store.Tx, files []ScannedFile, existingByUID map[string]existingRow, existingByPath map[string]existingRow, now int64) {
	for _, f := range files {
		existing, ok := existingByUID[f.FileUID]
		if !ok || existing.path == f.Path {
			continue
		}
		if _, err := tx.Execute(ctx,
			`UPDATE scout_files SET path = ?, rel_path = ?, parent_path = ?, basename = ?, extension = ?, last_seen_at = ?
			 WHERE id = ?`,
			f.Path, f.RelPath, f.ParentPath, f.Basename, f.Extension, now, existing.id); err != nil {
			continue // best-effort; the upsert pass below will still insert-or-conflict correctly
		}
		delete(existingByPath, existing.path)
		existing.path = f.Path
		existingByPath[f.Path] = existing
	}
}

// upsertChunk issues one multi-row INSERT ... ON CONFLICT(source_id, path)
// DO UPDATE for up to 100 files; a chunk-level failure falls back to
// row-by-row insertion so one malformed row cannot fail the batch.
func upsertChunk(ctx context.Context, tx store.Tx, workspaceID, sourceID int64, chunk []ScannedFile, now int64, stats *Stats) error {
	sqlText, args := buildUpsertSQL(workspaceID, sourceID, chunk, now)
	if _, err := tx.Execute(ctx, sqlText, args...); err == nil {
		return nil
	}

	for _, f := range chunk {
		single, singleArgs := buildUpsertSQL(workspaceID, sourceID, []ScannedFile{f}, now)
		if _, err := tx.Execute(ctx, single, singleArgs...); err != nil {
			stats.Errors++
		}
	}
	return nil
}

func buildUpsertSQL(workspaceID, sourceID int64, chunk []ScannedFile, now int64) (string, []any) {
	const valuesPerRow = 14
	sqlText := `INSERT INTO scout_files
		(workspace_id, source_id, file_uid, path, rel_path, parent_path, basename, extension, is_dir,
		 size_bytes, mtime_ms, content_hash, first_seen_at, last_seen_at)
		VALUES `
	args := make([]any, 0, len(chunk)*valuesPerRow)
	placeholder := "(" + repeatPlaceholder(valuesPerRow) + ")"
	for i, f := range chunk {
		if i > 0 {
			sqlText += ", "
		}
		sqlText += placeholder
		isDir := 0
		if f.IsDir {
			isDir = 1
		}
		var hash any
		if h := contentHash(f.ContentBytes); h != "" {
			hash = h
		}
		args = append(args, workspaceID, sourceID, f.FileUID, f.Path, f.RelPath, f.ParentPath, f.Basename, f.Extension,
			isDir, f.SizeBytes, f.MtimeMs, hash, now, now)
	}
	sqlText += ` ON CONFLICT(source_id, path) DO UPDATE SET
		rel_path = excluded.rel_path,
		parent_path = excluded.parent_path,
		basename = excluded.basename,
		extension = excluded.extension,
		is_dir = excluded.is_dir,
		last_seen_at = excluded.last_seen_at,
		status = CASE
			WHEN scout_files.size_bytes != excluded.size_bytes OR scout_files.mtime_ms != excluded.mtime_ms THEN 'pending'
			ELSE scout_files.status
		END,
		size_bytes = excluded.size_bytes,
		mtime_ms = excluded.mtime_ms,
		content_hash = CASE WHEN excluded.content_hash IS NOT NULL THEN excluded.content_hash ELSE scout_files.content_hash END`
	return sqlText, args
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}

// clearTagsForResetFiles clears tags for every file in chunk whose
// size/mtime differs from its pre-upsert row in existingByPath — the
// rows upsertChunk has just reset to pending — matching "status resets
// to pending and any tags are cleared". Brand-new rows have no tags to
// clear, and an unchanged row keeps its tags even if it was already
// pending.
func clearTagsForResetFiles(ctx context.Context, tx store.Tx, sourceID int64, chunk []ScannedFile, existingByPath map[string]existingRow) error {
	paths := make([]string, 0, len(chunk))
	for _, f := range chunk {
		if e, ok := existingByPath[f.Path]; ok && (e.sizeBytes != f.SizeBytes || e.mtimeMs != f.MtimeMs) {
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	placeholders, args := inClause(paths)
	args = append([]any{sourceID}, args...)
	sqlText := fmt.Sprintf(
		`DELETE FROM scout_file_tags WHERE file_id IN (
			SELECT id FROM scout_files WHERE source_id = ? AND status = 'pending' AND path IN (%s)
		)`, placeholders)
	_, err := tx.Execute(ctx, sqlText, args...)
	return err
}

// classify compares each input file against the pre-upsert existing-by-path
// snapshot.
func classify(files []ScannedFile, existingByPath map[string]existingRow, stats *Stats) {
	for _, f := range files {
		existing, ok := existingByPath[f.Path]
		if !ok {
			stats.New++
			continue
		}
		if existing.sizeBytes != f.SizeBytes || existing.mtimeMs != f.MtimeMs {
			stats.Changed++
		} else {
			stats.Unchanged++
		}
	}
}

// applyOptionalTag runs after the main transaction commits: chunked
// INSERT OR IGNORE into scout_file_tags joined to the freshly upserted
// file ids.
func applyOptionalTag(ctx context.Context, db store.Backend, workspaceID, sourceID int64, files []ScannedFile, tag string, now int64) error {
	for start := 0; start < len(files); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(files) {
			end = len(files)
		}
		chunk := files[start:end]
		paths := make([]string, len(chunk))
		for i, f := range chunk {
			paths[i] = f.Path
		}
		placeholders, args := inClause(paths)
		args = append([]any{workspaceID, tag, "rule", now, sourceID}, args...)
		sqlText := fmt.Sprintf(
			`INSERT OR IGNORE INTO scout_file_tags (workspace_id, file_id, tag, tag_source, assigned_at)
			 SELECT ?, id, ?, ?, ? FROM scout_files WHERE source_id = ? AND path IN (%s)`, placeholders)
		if _, err := db.Execute(ctx, sqlText, args...); err != nil {
			return err
		}
	}
	return nil
}
