// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/casparianflow/flow/internal/repository"
	"github.com/casparianflow/flow/internal/schema"
	"github.com/casparianflow/flow/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) (store.Backend, *repository.Repository, int64, int64) {
	t.Helper()
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, schema.Apply(ctx, b))

	repo := repository.New(b)
	w, err := repo.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)
	src, err := repo.CreateSource(ctx, w.ID, "s", "/tmp/s", "local")
	require.NoError(t, err)
	return b, repo, w.ID, src.ID
}

func genFiles(n int, sizeBase int64) []ScannedFile {
	out := make([]ScannedFile, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/tmp/s/file%d.txt", i)
		out[i] = ScannedFile{
			FileUID: fmt.Sprintf("uid-%d", i), Path: path, RelPath: fmt.Sprintf("file%d.txt", i),
			ParentPath: "", Basename: fmt.Sprintf("file%d.txt", i), Extension: "txt",
			SizeBytes: sizeBase + int64(i), MtimeMs: 1000,
		}
	}
	return out
}

// TestBatchUpsertStatistics covers new/unchanged/changed classification
// across repeated batch upserts.
func TestBatchUpsertStatistics(t *testing.T) {
	ctx := context.Background()
	b, _, w, src := newTestBackend(t)

	batch1 := genFiles(150, 1000)
	stats, err := BatchUpsertFiles(ctx, b, w, src, batch1, "", true)
	require.NoError(t, err)
	require.Equal(t, Stats{New: 150}, stats)

	stats, err = BatchUpsertFiles(ctx, b, w, src, batch1, "", true)
	require.NoError(t, err)
	require.Equal(t, Stats{Unchanged: 150}, stats)

	batch3 := genFiles(150, 1000)
	for i := 0; i < 50; i++ {
		batch3[i].SizeBytes += 1000
	}
	stats, err = BatchUpsertFiles(ctx, b, w, src, batch3, "", true)
	require.NoError(t, err)
	require.EqualValues(t, 50, stats.Changed)
	require.EqualValues(t, 100, stats.Unchanged)

	rows, err := b.QueryAll(ctx, "SELECT size_bytes FROM scout_files WHERE path = '/tmp/s/file0.txt'")
	require.NoError(t, err)
	size0, err := store.FromDbValue[int64](rows[0].MustGet("size_bytes"))
	require.NoError(t, err)
	require.EqualValues(t, 2000, size0)

	rows, err = b.QueryAll(ctx, "SELECT size_bytes FROM scout_files WHERE path = '/tmp/s/file100.txt'")
	require.NoError(t, err)
	size100, err := store.FromDbValue[int64](rows[0].MustGet("size_bytes"))
	require.NoError(t, err)
	require.EqualValues(t, 1100, size100)
}

// TestRenamePreservesTagAndStatus covers identity tracking across a
// path rename via file UID.
func TestRenamePreservesTagAndStatus(t *testing.T) {
	ctx := context.Background()
	b, repo, w, src := newTestBackend(t)

	f1 := ScannedFile{FileUID: "u1", Path: "/src/a.txt", RelPath: "a.txt", Basename: "a.txt", Extension: "txt", SizeBytes: 10, MtimeMs: 1}
	_, err := BatchUpsertFiles(ctx, b, w, src, []ScannedFile{f1}, "", false)
	require.NoError(t, err)

	file, err := repo.GetFileBySourceAndPath(ctx, src, "/src/a.txt")
	require.NoError(t, err)
	require.NotNil(t, file)
	require.NoError(t, repo.AssignTag(ctx, w, file.ID, "t", repository.TagSourceManual, 0))
	_, err = b.Execute(ctx, "UPDATE scout_files SET status = 'tagged' WHERE id = ?", file.ID)
	require.NoError(t, err)

	f2 := ScannedFile{FileUID: "u1", Path: "/src/b.txt", RelPath: "b.txt", Basename: "b.txt", Extension: "txt", SizeBytes: 10, MtimeMs: 1}
	_, err = BatchUpsertFiles(ctx, b, w, src, []ScannedFile{f2}, "", false)
	require.NoError(t, err)

	moved, err := repo.GetFileBySourceAndPath(ctx, src, "/src/b.txt")
	require.NoError(t, err)
	require.NotNil(t, moved)
	require.Equal(t, repository.FileStatusTagged, moved.Status)

	tags, err := repo.ListTagsForFile(ctx, moved.ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, "t", tags[0].Tag)

	gone, err := repo.GetFileBySourceAndPath(ctx, src, "/src/a.txt")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestBatchUpsertEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	b, _, w, src := newTestBackend(t)
	stats, err := BatchUpsertFiles(ctx, b, w, src, nil, "", true)
	require.NoError(t, err)
	require.Equal(t, Stats{}, stats)
}

// TestContentHashRecordedWhenBytesSupplied covers the optional
// content-hash path: a file carried with ContentBytes gets content_hash
// populated, one without it does not.
func TestContentHashRecordedWhenBytesSupplied(t *testing.T) {
	ctx := context.Background()
	b, repo, w, src := newTestBackend(t)

	files := []ScannedFile{
		{FileUID: "uid-hashed", Path: "/tmp/s/hashed.txt", RelPath: "hashed.txt", Basename: "hashed.txt",
			Extension: "txt", SizeBytes: 5, MtimeMs: 1000, ContentBytes: []byte("hello")},
		{FileUID: "uid-plain", Path: "/tmp/s/plain.txt", RelPath: "plain.txt", Basename: "plain.txt",
			Extension: "txt", SizeBytes: 5, MtimeMs: 1000},
	}
	_, err := BatchUpsertFiles(ctx, b, w, src, files, "", false)
	require.NoError(t, err)

	hashed, err := repo.GetFileBySourceAndPath(ctx, src, "/tmp/s/hashed.txt")
	require.NoError(t, err)
	require.NotNil(t, hashed)
	require.NotNil(t, hashed.ContentHash)
	require.Equal(t, contentHash([]byte("hello")), *hashed.ContentHash)

	plain, err := repo.GetFileBySourceAndPath(ctx, src, "/tmp/s/plain.txt")
	require.NoError(t, err)
	require.NotNil(t, plain)
	require.Nil(t, plain.ContentHash)
}
