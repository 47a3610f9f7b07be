// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package explorer

import (
	"context"
	"testing"

	"github.com/casparianflow/flow/internal/ingest"
	"github.com/casparianflow/flow/internal/repository"
	"github.com/casparianflow/flow/internal/schema"
	"github.com/casparianflow/flow/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestExplorer(t *testing.T) *Explorer {
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

	files := []ingest.ScannedFile{
		{FileUID: "1", Path: "/tmp/s/logs/2024/a.csv", RelPath: "logs/2024/a.csv", ParentPath: "logs/2024", Basename: "a.csv", Extension: "csv"},
		{FileUID: "2", Path: "/tmp/s/logs/2024/b.csv", RelPath: "logs/2024/b.csv", ParentPath: "logs/2024", Basename: "b.csv", Extension: "csv"},
		{FileUID: "3", Path: "/tmp/s/readme.md", RelPath: "readme.md", ParentPath: "", Basename: "readme.md", Extension: "md"},
	}
	_, err = ingest.BatchUpsertFiles(ctx, b, w.ID, src.ID, files, "", false)
	require.NoError(t, err)

	return New(repo, src.ID)
}

func TestExplorerBrowseAndDrillDown(t *testing.T) {
	ctx := context.Background()
	e := newTestExplorer(t)

	v, err := e.View(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, v.Folders)

	var logsEntry repository.FolderEntry
	var found bool
	for _, f := range v.Folders {
		if f.IsFolder && f.Name == "logs" {
			logsEntry = f
			found = true
		}
	}
	require.True(t, found)

	require.NoError(t, e.DrillDown(logsEntry))
	require.Equal(t, "logs", e.Prefix())

	require.True(t, e.Back())
	require.Equal(t, "", e.Prefix())
}

func TestExplorerNarrowingPreview(t *testing.T) {
	ctx := context.Background()
	e := newTestExplorer(t)

	e.SetPattern("*.csv")
	v, err := e.View(ctx)
	require.NoError(t, err)
	require.Len(t, v.Preview, 2)
}

func TestExplorerBackspaceEdgeCase(t *testing.T) {
	e := newTestExplorer(t)
	e.prefix = "logs/2024"
	e.pattern = ""

	e.Backspace()
	require.Equal(t, "logs", e.prefix)
	require.Equal(t, "*", e.pattern)
}

func TestExplorerDrillDownRejectsFile(t *testing.T) {
	ctx := context.Background()
	e := newTestExplorer(t)

	v, err := e.View(ctx)
	require.NoError(t, err)
	var fileEntry repository.FolderEntry
	var found bool
	for _, f := range v.Folders {
		if !f.IsFolder {
			fileEntry = f
			found = true
		}
	}
	require.True(t, found)
	require.Error(t, e.DrillDown(fileEntry))
}
