// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package queue

import "fmt"

// InvalidState marks an enum discriminator read back from a queue row
// that does not belong to its declared finite set — store corruption
// or a schema/version drift, never silently coerced to a default.
type InvalidState struct {
	Table  string
	Column string
	Value  string
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("queue: %s.%s has unrecognized value %q; delete the store and restart", e.Table, e.Column, e.Value)
}

// DeadLetterNotFound is returned by ReplayDeadLetter when the id
// names no row — either it was already replayed, or never existed.
type DeadLetterNotFound struct {
	ID int64
}

func (e *DeadLetterNotFound) Error() string {
	return fmt.Sprintf("queue: no dead-letter row with id %d", e.ID)
}
