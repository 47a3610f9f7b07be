// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by a Backend, matched with errors.Is by callers.
// These are classified by effect, not by underlying driver type: a caller
// deciding whether to retry only needs to know which of these it got.
var (
	// ErrLocked is returned when opening a writable columnar backend whose
	// advisory lock file is already held by another process.
	ErrLocked = errors.New("store: backend is locked by another process")

	// ErrReadOnly is returned when a write is attempted against a backend
	// opened with ReadOnly.
	ErrReadOnly = errors.New("store: backend opened read-only")

	// ErrActorClosed is returned to every caller waiting on a request once
	// the owning actor's goroutine has exited on Close, and to a caller
	// whose own operation panicked (the actor recovers and keeps running).
	ErrActorClosed = errors.New("store: backend actor is no longer running")

	// ErrInvalidState marks an enum discriminator read back from a row that
	// does not belong to its declared finite set. It indicates store
	// corruption or a schema/version drift and must never be silently
	// coerced to a default.
	ErrInvalidState = errors.New("store: unexpected discriminator value")

	// ErrTypeConversion marks a row that did not have the shape a caller
	// expected (wrong column count, unconvertible value).
	ErrTypeConversion = errors.New("store: value has unexpected type")

	// ErrNoRows marks query_one finding no row, matching sql.ErrNoRows in
	// spirit but kept backend-agnostic.
	ErrNoRows = errors.New("store: no rows")
)

// DatabaseError wraps a generic backend failure. It bubbles up to the
// caller unchanged; the core never retries on its own.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

func databaseErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}

// LockedError carries the lock file path so the startup failure message can
// name it directly, per the user-visible-directive requirement in the error
// handling design.
type LockedError struct {
	Path string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("store: lock file %s is held by another process; wait for it to exit or delete the lock file if it is stale", e.Path)
}

func (e *LockedError) Unwrap() error { return ErrLocked }
