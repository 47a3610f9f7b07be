// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"strings"

	"github.com/casparianflow/flow/internal/store"
)

// FileStatus is the finite status enum a scout_files row can hold.
// ParseFileStatus never silently coerces an unrecognized value to a
// default — it returns InvalidState, the signal that the store itself
// is corrupt or was written by an incompatible build.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusTagged     FileStatus = "tagged"
	FileStatusQueued     FileStatus = "queued"
	FileStatusProcessing FileStatus = "processing"
	FileStatusProcessed  FileStatus = "processed"
	FileStatusFailed     FileStatus = "failed"
	FileStatusDeleted    FileStatus = "deleted"
)

func ParseFileStatus(v string) (FileStatus, error) {
	switch FileStatus(v) {
	case FileStatusPending, FileStatusTagged, FileStatusQueued, FileStatusProcessing,
		FileStatusProcessed, FileStatusFailed, FileStatusDeleted:
		return FileStatus(v), nil
	default:
		return "", &InvalidState{Table: "scout_files", Column: "status", Value: v}
	}
}

type ExtractionStatus string

const (
	ExtractionStatusPending   ExtractionStatus = "pending"
	ExtractionStatusExtracted ExtractionStatus = "extracted"
	ExtractionStatusTimeout   ExtractionStatus = "timeout"
	ExtractionStatusCrash     ExtractionStatus = "crash"
	ExtractionStatusStale     ExtractionStatus = "stale"
	ExtractionStatusError     ExtractionStatus = "error"
)

func ParseExtractionStatus(v string) (ExtractionStatus, error) {
	switch ExtractionStatus(v) {
	case ExtractionStatusPending, ExtractionStatusExtracted, ExtractionStatusTimeout,
		ExtractionStatusCrash, ExtractionStatusStale, ExtractionStatusError:
		return ExtractionStatus(v), nil
	default:
		return "", &InvalidState{Table: "scout_files", Column: "extraction_status", Value: v}
	}
}

type File struct {
	ID                 int64
	WorkspaceID        int64
	SourceID           int64
	FileUID            string
	Path               string
	RelPath            string
	ParentPath         string
	Basename           string
	Extension          string
	IsDir              bool
	SizeBytes          int64
	MtimeMs            int64
	ContentHash        *string
	Status             FileStatus
	StatusBeforeDelete *string
	MissingScans       int64
	DeletedAt          *int64
	FirstSeenAt        int64
	LastSeenAt         int64
	ProcessedAt        *int64
	SentinelJobID      *int64
	ExtractionMetadata *string
	ExtractionStatus   ExtractionStatus
	ExtractedAt        *int64
}

// ExtensionOf returns the lowercased characters after the last '.' in
// name, or "" when name has no dot.
func ExtensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// ParentPathOf returns the directory portion of a slash-separated
// relative path, "" for a root-level entry.
func ParentPathOf(relPath string) string {
	idx := strings.LastIndex(relPath, "/")
	if idx < 0 {
		return ""
	}
	return relPath[:idx]
}

func (r *Repository) GetFileByID(ctx context.Context, id int64) (File, error) {
	row, err := r.db.QueryOne(ctx, "SELECT * FROM scout_files WHERE id = ?", id)
	if err != nil {
		return File{}, err
	}
	return rowToFile(row)
}

func (r *Repository) GetFileBySourceAndPath(ctx context.Context, sourceID int64, path string) (*File, error) {
	row, err := r.db.QueryOptional(ctx, "SELECT * FROM scout_files WHERE source_id = ? AND path = ?", sourceID, path)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	f, err := rowToFile(*row)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// MarkDeleted moves a file to the deleted status while remembering the
// status it held before, so a later "undelete" (the file reappearing)
// can restore it rather than resetting to pending.
func (r *Repository) MarkDeleted(ctx context.Context, id int64, deletedAt int64) error {
	f, err := r.GetFileByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.db.Execute(ctx,
		"UPDATE scout_files SET status = ?, status_before_delete = ?, deleted_at = ? WHERE id = ?",
		string(FileStatusDeleted), string(f.Status), deletedAt, id)
	return err
}

func (r *Repository) IncrementMissingScans(ctx context.Context, id int64) (int64, error) {
	val, err := r.db.QueryScalar(ctx,
		"UPDATE scout_files SET missing_scans = missing_scans + 1 WHERE id = ? RETURNING missing_scans", id)
	if err != nil {
		return 0, err
	}
	return store.FromDbValue[int64](val)
}

func (r *Repository) ListFilesByStatus(ctx context.Context, sourceID int64, status FileStatus) ([]File, error) {
	rows, err := r.db.QueryAll(ctx, "SELECT * FROM scout_files WHERE source_id = ? AND status = ? ORDER BY id ASC", sourceID, string(status))
	if err != nil {
		return nil, err
	}
	out := make([]File, 0, len(rows))
	for _, row := range rows {
		f, err := rowToFile(row)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func rowToFile(row store.DbRow) (File, error) {
	get := func(col string) store.DbValue { return row.MustGet(col) }

	id, err := store.FromDbValue[int64](get("id"))
	if err != nil {
		return File{}, err
	}
	workspaceID, err := store.FromDbValue[int64](get("workspace_id"))
	if err != nil {
		return File{}, err
	}
	sourceID, err := store.FromDbValue[int64](get("source_id"))
	if err != nil {
		return File{}, err
	}
	fileUID, err := store.FromDbValue[string](get("file_uid"))
	if err != nil {
		return File{}, err
	}
	path, err := store.FromDbValue[string](get("path"))
	if err != nil {
		return File{}, err
	}
	relPath, err := store.FromDbValue[string](get("rel_path"))
	if err != nil {
		return File{}, err
	}
	parentPath, err := store.FromDbValue[string](get("parent_path"))
	if err != nil {
		return File{}, err
	}
	basename, err := store.FromDbValue[string](get("basename"))
	if err != nil {
		return File{}, err
	}
	extension, err := store.FromDbValue[string](get("extension"))
	if err != nil {
		return File{}, err
	}
	isDirInt, err := store.FromDbValue[int64](get("is_dir"))
	if err != nil {
		return File{}, err
	}
	sizeBytes, err := store.FromDbValue[int64](get("size_bytes"))
	if err != nil {
		return File{}, err
	}
	mtimeMs, err := store.FromDbValue[int64](get("mtime_ms"))
	if err != nil {
		return File{}, err
	}
	contentHash, err := store.OptionalFromDbValue[string](get("content_hash"))
	if err != nil {
		return File{}, err
	}
	statusRaw, err := store.FromDbValue[string](get("status"))
	if err != nil {
		return File{}, err
	}
	status, err := ParseFileStatus(statusRaw)
	if err != nil {
		return File{}, err
	}
	statusBeforeDelete, err := store.OptionalFromDbValue[string](get("status_before_delete"))
	if err != nil {
		return File{}, err
	}
	missingScans, err := store.FromDbValue[int64](get("missing_scans"))
	if err != nil {
		return File{}, err
	}
	deletedAt, err := store.OptionalFromDbValue[int64](get("deleted_at"))
	if err != nil {
		return File{}, err
	}
	firstSeenAt, err := store.FromDbValue[int64](get("first_seen_at"))
	if err != nil {
		return File{}, err
	}
	lastSeenAt, err := store.FromDbValue[int64](get("last_seen_at"))
	if err != nil {
		return File{}, err
	}
	processedAt, err := store.OptionalFromDbValue[int64](get("processed_at"))
	if err != nil {
		return File{}, err
	}
	sentinelJobID, err := store.OptionalFromDbValue[int64](get("sentinel_job_id"))
	if err != nil {
		return File{}, err
	}
	extractionMetadata, err := store.OptionalFromDbValue[string](get("extraction_metadata"))
	if err != nil {
		return File{}, err
	}
	extractionStatusRaw, err := store.FromDbValue[string](get("extraction_status"))
	if err != nil {
		return File{}, err
	}
	extractionStatus, err := ParseExtractionStatus(extractionStatusRaw)
	if err != nil {
		return File{}, err
	}
	extractedAt, err := store.OptionalFromDbValue[int64](get("extracted_at"))
	if err != nil {
		return File{}, err
	}

	return File{
		ID: id, WorkspaceID: workspaceID, SourceID: sourceID, FileUID: fileUID,
		Path: path, RelPath: relPath, ParentPath: parentPath, Basename: basename,
		Extension: extension, IsDir: isDirInt != 0, SizeBytes: sizeBytes, MtimeMs: mtimeMs,
		ContentHash: contentHash, Status: status, StatusBeforeDelete: statusBeforeDelete,
		MissingScans: missingScans, DeletedAt: deletedAt, FirstSeenAt: firstSeenAt,
		LastSeenAt: lastSeenAt, ProcessedAt: processedAt, SentinelJobID: sentinelJobID,
		ExtractionMetadata: extractionMetadata, ExtractionStatus: extractionStatus, ExtractedAt: extractedAt,
	}, nil
}
