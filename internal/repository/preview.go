// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

const previewLimit = 100

// PreviewByLikePattern is the LIKE-prefiltered candidate listing the
// folder explorer re-queries after a debounced pattern edit:
// relative paths under sourceID matching likePattern, capped at 100
// and ordered for stable pagination. The caller (internal/explorer)
// is responsible for the glob-to-LIKE translation and any prefix
// composition before calling this.
func (r *Repository) PreviewByLikePattern(ctx context.Context, sourceID int64, likePattern string) ([]string, error) {
	rows, err := r.db.QueryAll(ctx,
		"SELECT rel_path FROM scout_files WHERE source_id = ? AND rel_path LIKE ? ESCAPE '\\' ORDER BY rel_path ASC LIMIT ?",
		sourceID, likePattern, previewLimit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		p, err := store.FromDbValue[string](row.MustGet("rel_path"))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PreviewByExtension uses the (source, extension) composite index
// for the common case of
// narrowing by file extension before applying a finer glob.
func (r *Repository) PreviewByExtension(ctx context.Context, sourceID int64, extension string) ([]string, error) {
	rows, err := r.db.QueryAll(ctx,
		"SELECT rel_path FROM scout_files WHERE source_id = ? AND extension = ? ORDER BY rel_path ASC LIMIT ?",
		sourceID, extension, previewLimit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		p, err := store.FromDbValue[string](row.MustGet("rel_path"))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
