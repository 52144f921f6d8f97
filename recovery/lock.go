/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package recovery implements the single-writer lock and crash-recovery
scan described in spec §4.8: one cross-process writer lock per store,
and an orphaned-page reconciliation pass run at open.
*/
package recovery

import (
	"sync"
	"time"

	"github.com/krotik/quaddb/dberr"

	"github.com/krotik/common/lockutil"
)

/*
WriteLock serializes all structural mutations on a store: a Go-level
mutex for in-process callers plus a lockutil.LockFile watcher for
cross-process mutual exclusion, exactly as the teacher's server layer
holds one lockutil.LockFile per running instance.
*/
type WriteLock struct {
	inProcess sync.Mutex

	file           *lockutil.LockFile
	pollInterval   time.Duration
	acquireTimeout time.Duration

	heldInProcess bool
}

/*
NewWriteLock creates a write lock backed by the lock file at path.
*/
func NewWriteLock(path string, pollInterval, acquireTimeout time.Duration) *WriteLock {
	return &WriteLock{
		file:           lockutil.NewLockFile(path, pollInterval),
		pollInterval:   pollInterval,
		acquireTimeout: acquireTimeout,
	}
}

/*
Acquire blocks the calling goroutine (in-process exclusion) and then
starts watching the cross-process lock file, retrying until
acquireTimeout elapses. It returns dberr.KindBusy on timeout.
*/
func (w *WriteLock) Acquire() error {
	w.inProcess.Lock()

	deadline := time.Now().Add(w.acquireTimeout)
	var lastErr error

	for {
		if err := w.file.Start(); err == nil {
			w.heldInProcess = true
			return nil
		} else {
			lastErr = err
		}

		if time.Now().After(deadline) {
			w.inProcess.Unlock()
			return dberr.Errorf(dberr.KindBusy, "writer lock contention: %v", lastErr)
		}

		time.Sleep(w.pollInterval)
	}
}

/*
Release stops watching the lock file and releases the in-process mutex.
*/
func (w *WriteLock) Release() error {
	if !w.heldInProcess {
		return nil
	}
	err := w.file.Finish()
	w.heldInProcess = false
	w.inProcess.Unlock()
	return err
}
