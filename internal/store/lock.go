// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"fmt"
	"os"
	"syscall"
)

// advisoryLock is an OS-level advisory lock file guarding cross-process
// single-writer access to a writable columnar backend. The row backend
// relies on sqlite's own file locking instead, so this is only used by
// the columnar variant.
type advisoryLock struct {
	path string
	file *os.File
}

func acquireLock(path string) (*advisoryLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, databaseErr("open lock file", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, &LockedError{Path: path}
	}

	return &advisoryLock{path: path, file: f}, nil
}

func (l *advisoryLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("store: release lock %s: %w", l.path, err)
	}
	return l.file.Close()
}
