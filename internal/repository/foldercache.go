// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/casparianflow/flow/pkg/log"

	"github.com/casparianflow/flow/internal/store"
)

const (
	maxRootFolders = 500
	maxRootFiles   = 200
)

// FolderEntry is one row of a folder-contents listing: either an
// immediate subfolder (with its subtree file count) or a direct file.
type FolderEntry struct {
	Name      string
	FileCount int64
	IsFolder  bool
}

// PopulateFolderCacheFromAggregates rebuilds one source's folder cache
// atomically from aggregates the scanner already collected:
// rootFolderCounts maps immediate-subfolder name to its subtree file
// count, rootFileNames lists files directly at the root. Both are
// truncated (500 folders, 200 files) and sorted (count DESC, name ASC)
// before insertion; truncation is logged since it silently drops rows
// otherwise.
func (r *Repository) PopulateFolderCacheFromAggregates(ctx context.Context, sourceID int64, rootFolderCounts map[string]int64, rootFileNames []string) error {
	now := nowMillis()

	type named struct {
		name  string
		count int64
	}
	folders := make([]named, 0, len(rootFolderCounts))
	for name, count := range rootFolderCounts {
		folders = append(folders, named{name: name, count: count})
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].count != folders[j].count {
			return folders[i].count > folders[j].count
		}
		return folders[i].name < folders[j].name
	})
	if len(folders) > maxRootFolders {
		log.Debugf("repository: truncating folder cache for source %d: %d folders dropped", sourceID, len(folders)-maxRootFolders)
		folders = folders[:maxRootFolders]
	}

	files := append([]string(nil), rootFileNames...)
	sort.Strings(files)
	if len(files) > maxRootFiles {
		log.Debugf("repository: truncating folder cache for source %d: %d root files dropped", sourceID, len(files)-maxRootFiles)
		files = files[:maxRootFiles]
	}

	return r.db.Transaction(ctx, func(tx store.Tx) error {
		if _, err := tx.Execute(ctx, "DELETE FROM scout_folder_cache WHERE source_id = ?", sourceID); err != nil {
			return err
		}
		for _, f := range folders {
			if _, err := tx.Execute(ctx,
				`INSERT INTO scout_folder_cache (source_id, prefix, name, file_count, is_folder, refreshed_at)
				 VALUES (?, '', ?, ?, 1, ?)`, sourceID, f.name, f.count, now); err != nil {
				return err
			}
		}
		for _, name := range files {
			if _, err := tx.Execute(ctx,
				`INSERT INTO scout_folder_cache (source_id, prefix, name, file_count, is_folder, refreshed_at)
				 VALUES (?, '', ?, 1, 0, ?)`, sourceID, name, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListFolderContents lists immediate subfolders and files under prefix
// for a source: folders first (count DESC), then files (name ASC).
// The preferred path reads pre-aggregated cache rows; a cache miss
// falls back to a live aggregation over scout_files.
func (r *Repository) ListFolderContents(ctx context.Context, sourceID int64, prefix string) ([]FolderEntry, error) {
	rows, err := r.db.QueryAll(ctx,
		"SELECT name, file_count, is_folder FROM scout_folder_cache WHERE source_id = ? AND prefix = ?", sourceID, prefix)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rowsToFolderEntries(rows)
	}
	return r.listFolderContentsLive(ctx, sourceID, prefix)
}

// listFolderContentsLive aggregates scout_files rows under prefix in
// Go rather than with SQL SUBSTR/INSTR arithmetic: it fetches every
// file's parent_path under the prefix (bounded by that subtree) and
// groups by the first path segment past the prefix — a direct file at
// this level if the remainder is empty, otherwise the name of an
// immediate subfolder whose subtree count accumulates across all
// fetched rows below it.
func (r *Repository) listFolderContentsLive(ctx context.Context, sourceID int64, prefix string) ([]FolderEntry, error) {
	var rows []store.DbRow
	var err error
	if prefix == "" {
		rows, err = r.db.QueryAll(ctx, "SELECT parent_path, basename, is_dir FROM scout_files WHERE source_id = ?", sourceID)
	} else {
		rows, err = r.db.QueryAll(ctx,
			"SELECT parent_path, basename, is_dir FROM scout_files WHERE source_id = ? AND (parent_path = ? OR parent_path LIKE ?)",
			sourceID, prefix, prefix+"/%")
	}
	if err != nil {
		return nil, err
	}

	folderCounts := map[string]int64{}
	var directFiles []string
	prefixDepth := 0
	if prefix != "" {
		prefixDepth = strings.Count(prefix, "/") + 1
	}

	for _, row := range rows {
		parentPath, err := store.FromDbValue[string](row.MustGet("parent_path"))
		if err != nil {
			return nil, err
		}
		basename, err := store.FromDbValue[string](row.MustGet("basename"))
		if err != nil {
			return nil, err
		}
		isDirInt, err := store.FromDbValue[int64](row.MustGet("is_dir"))
		if err != nil {
			return nil, err
		}

		if parentPath == prefix {
			if isDirInt != 0 {
				folderCounts[basename] += 0 // ensure it appears even with zero nested files so far
				continue
			}
			directFiles = append(directFiles, basename)
			continue
		}

		// A file nested deeper than prefix: attribute it to the immediate
		// subfolder segment (the path component right after prefix).
		var remainder string
		if prefix == "" {
			remainder = parentPath
		} else {
			remainder = strings.TrimPrefix(parentPath, prefix+"/")
		}
		segments := strings.SplitN(remainder, "/", 2)
		if segments[0] == "" {
			continue
		}
		_ = prefixDepth
		if isDirInt == 0 {
			folderCounts[segments[0]]++
		}
	}

	type named struct {
		name  string
		count int64
	}
	folders := make([]named, 0, len(folderCounts))
	for name, count := range folderCounts {
		folders = append(folders, named{name: name, count: count})
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].count != folders[j].count {
			return folders[i].count > folders[j].count
		}
		return folders[i].name < folders[j].name
	})
	sort.Strings(directFiles)

	out := make([]FolderEntry, 0, len(folders)+len(directFiles))
	for _, f := range folders {
		out = append(out, FolderEntry{Name: f.name, FileCount: f.count, IsFolder: true})
	}
	for _, name := range directFiles {
		out = append(out, FolderEntry{Name: name, FileCount: 1, IsFolder: false})
	}
	return out, nil
}

func rowsToFolderEntries(rows []store.DbRow) ([]FolderEntry, error) {
	var folders, files []FolderEntry
	for _, row := range rows {
		name, err := store.FromDbValue[string](row.MustGet("name"))
		if err != nil {
			return nil, err
		}
		count, err := store.FromDbValue[int64](row.MustGet("file_count"))
		if err != nil {
			return nil, err
		}
		isFolderInt, err := store.FromDbValue[int64](row.MustGet("is_folder"))
		if err != nil {
			return nil, err
		}
		e := FolderEntry{Name: name, FileCount: count, IsFolder: isFolderInt != 0}
		if e.IsFolder {
			folders = append(folders, e)
		} else {
			files = append(files, e)
		}
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].FileCount != folders[j].FileCount {
			return folders[i].FileCount > folders[j].FileCount
		}
		return folders[i].Name < folders[j].Name
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(folders, files...), nil
}
