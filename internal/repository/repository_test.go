// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/casparianflow/flow/internal/schema"
	"github.com/casparianflow/flow/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	b, err := store.OpenSQLite(ctx, ":memory:", store.ReadWrite)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, schema.Apply(ctx, b))
	return New(b)
}

func TestEnsureDefaultWorkspaceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	w1, err := r.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)
	require.Equal(t, "Default", w1.Name)

	w2, err := r.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)
	require.Equal(t, w1.ID, w2.ID)
}

// TestSourceOverlapScenario covers nested/overlapping source roots.
func TestSourceOverlapScenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	w, err := r.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)

	require.NoError(t, r.CheckSourceOverlap(ctx, w.ID, "/tmp/a"))

	_, err = r.CreateSource(ctx, w.ID, "a", "/tmp/a", "local")
	require.NoError(t, err)

	sources, err := r.ListSources(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	require.NoError(t, r.CheckSourceOverlap(ctx, w.ID, "/tmp/a"))

	err = r.CheckSourceOverlap(ctx, w.ID, "/tmp/a/child")
	require.Error(t, err)
	var childErr *SourceIsChildOfExisting
	require.ErrorAs(t, err, &childErr)
}

// TestMRUOrdering covers most-recently-used source ordering.
func TestMRUOrdering(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	w, err := r.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)

	a, err := r.CreateSource(ctx, w.ID, "A", "/tmp/A", "local")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	b, err := r.CreateSource(ctx, w.ID, "B", "/tmp/B", "local")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	c, err := r.CreateSource(ctx, w.ID, "C", "/tmp/C", "local")
	require.NoError(t, err)

	names := func() []string {
		list, err := r.ListSourcesByMRU(ctx, w.ID)
		require.NoError(t, err)
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = s.Name
		}
		return out
	}

	require.Equal(t, []string{"C", "B", "A"}, names())

	require.NoError(t, r.TouchSource(ctx, a.ID))
	require.Equal(t, []string{"A", "C", "B"}, names())

	require.NoError(t, r.TouchSource(ctx, b.ID))
	require.Equal(t, []string{"B", "A", "C"}, names())
}

func TestTaggingRulePriorityOrdering(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	w, err := r.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)

	_, err = r.CreateTaggingRule(ctx, TaggingRule{WorkspaceID: w.ID, Name: "low", GlobPattern: "*.csv", TargetTag: "csv", Priority: 1, Enabled: true})
	require.NoError(t, err)
	_, err = r.CreateTaggingRule(ctx, TaggingRule{WorkspaceID: w.ID, Name: "high", GlobPattern: "*.csv", TargetTag: "csv-priority", Priority: 10, Enabled: true})
	require.NoError(t, err)
	_, err = r.CreateTaggingRule(ctx, TaggingRule{WorkspaceID: w.ID, Name: "disabled", GlobPattern: "*.csv", TargetTag: "ignored", Priority: 100, Enabled: false})
	require.NoError(t, err)

	rules, err := r.ListTaggingRulesByPriority(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "high", rules[0].Name)
	require.Equal(t, "low", rules[1].Name)
}

func TestExtensionOf(t *testing.T) {
	require.Equal(t, "csv", ExtensionOf("data.CSV"))
	require.Equal(t, "", ExtensionOf("README"))
	require.Equal(t, "gz", ExtensionOf("archive.tar.gz"))
}

func TestFolderCacheRootFallbackAndPopulate(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	w, err := r.EnsureDefaultWorkspace(ctx)
	require.NoError(t, err)
	src, err := r.CreateSource(ctx, w.ID, "s", "/tmp/s", "local")
	require.NoError(t, err)

	now := nowMillis()
	_, err = r.Backend().Execute(ctx,
		`INSERT INTO scout_files (workspace_id, source_id, file_uid, path, rel_path, parent_path, basename, extension,
			is_dir, size_bytes, mtime_ms, status, extraction_status, first_seen_at, last_seen_at)
		 VALUES (?, ?, 'u1', '/tmp/s/logs/a.csv', 'logs/a.csv', 'logs', 'a.csv', 'csv', 0, 10, ?, 'pending', 'pending', ?, ?)`,
		w.ID, src.ID, now, now, now)
	require.NoError(t, err)

	entries, err := r.ListFolderContents(ctx, src.ID, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].IsFolder)
	require.Equal(t, "logs", entries[0].Name)

	require.NoError(t, r.PopulateFolderCacheFromAggregates(ctx, src.ID, map[string]int64{"logs": 1}, nil))
	cached, err := r.ListFolderContents(ctx, src.ID, "")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.Equal(t, "logs", cached[0].Name)
}
