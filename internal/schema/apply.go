// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"context"
	"fmt"

	"github.com/casparianflow/flow/internal/store"
)

// Apply creates every table in Tables that does not yet exist, then
// runs the column-presence check against what is actually on disk.
// Callers open a Backend (internal/store) and call Apply before
// handing it to internal/repository or internal/queue; store itself
// never imports schema, so this is the one place the dependency runs
// in the schema-depends-on-store direction.
func Apply(ctx context.Context, b store.Backend) error {
	if b.Mode() == store.ReadOnly {
		return checkRequiredColumns(ctx, b)
	}

	var ddl string
	switch b.Kind() {
	case store.KindRow:
		ddl = RenderRow()
	case store.KindColumnar:
		ddl = RenderColumnar()
	default:
		return fmt.Errorf("schema: unknown backend kind %v", b.Kind())
	}

	if err := b.ExecuteBatch(ctx, ddl); err != nil {
		return fmt.Errorf("schema: apply %s DDL: %w", b.Kind(), err)
	}

	return checkRequiredColumns(ctx, b)
}
