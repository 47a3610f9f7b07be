// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import "fmt"

// SourceIsChildOfExisting is returned when a new source's canonical
// path is a strict descendant of an already-registered source's path.
type SourceIsChildOfExisting struct {
	ExistingName string
	ExistingPath string
}

func (e *SourceIsChildOfExisting) Error() string {
	return fmt.Sprintf("this path is inside the existing source %q (%s); select a directory outside it to create a source",
		e.ExistingName, e.ExistingPath)
}

// SourceIsParentOfExisting is returned when a new source's canonical
// path is a strict ancestor of an already-registered source's path.
type SourceIsParentOfExisting struct {
	ExistingName string
	ExistingPath string
}

func (e *SourceIsParentOfExisting) Error() string {
	return fmt.Sprintf("the existing source %q (%s) is inside this path; select a directory that does not contain it",
		e.ExistingName, e.ExistingPath)
}

// SourceNotFound is returned when an operation names a source id that
// does not exist in the workspace it was asked about.
type SourceNotFound struct {
	ID int64
}

func (e *SourceNotFound) Error() string {
	return fmt.Sprintf("source %d does not exist; select a directory to create a source", e.ID)
}

// InvalidState is returned when a row carries an enum discriminator
// this build does not recognize. Never silently coerced to a default,
// since that would mask store corruption or a version skew.
type InvalidState struct {
	Table  string
	Column string
	Value  string
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("%s.%s has unrecognized value %q; this indicates store corruption or a version mismatch — delete the store and restart",
		e.Table, e.Column, e.Value)
}
