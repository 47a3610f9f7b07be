// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package repository is the DAO layer: concrete operations on the
// entities described for the metadata store (workspaces, sources,
// files, tags, rules, folder cache, settings) on top of
// internal/store's backend-agnostic façade and internal/schema's
// rendered tables. Every mutation takes its workspace (and, where
// applicable, source) explicitly; every query filters by workspace
// first.
package repository

import (
	"time"

	"github.com/casparianflow/flow/internal/store"
)

// Repository bundles the DAO operations over one opened, schema-applied
// backend. Callers open a store.Backend, run schema.Apply, and wrap it
// here before handing it to ingestion, the rule engine, or the queue.
type Repository struct {
	db store.Backend
}

func New(db store.Backend) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Backend() store.Backend { return r.db }

func nowMillis() int64 { return time.Now().UnixMilli() }
