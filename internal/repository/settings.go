// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"

	"github.com/casparianflow/flow/internal/store"
)

// GetSetting reads one runtime knob from scout_settings (string values
// only). Returns ("", false, nil) when the key is unset.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row, err := r.db.QueryOptional(ctx, "SELECT value FROM scout_settings WHERE key = ?", key)
	if err != nil {
		return "", false, err
	}
	if row == nil {
		return "", false, nil
	}
	v, err := store.FromDbValue[string](row.MustGet("value"))
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.Execute(ctx,
		`INSERT INTO scout_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (r *Repository) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryAll(ctx, "SELECT key, value FROM scout_settings")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		k, err := store.FromDbValue[string](row.MustGet("key"))
		if err != nil {
			return nil, err
		}
		v, err := store.FromDbValue[string](row.MustGet("value"))
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
