/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package recovery

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	lock := NewWriteLock(filepath.Join(t.TempDir(), "test.lck"), 10*time.Millisecond, time.Second)

	if err := lock.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}

	// A second, independent acquire/release cycle must succeed once the
	// first has released.
	if err := lock.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
}

func TestReleaseWithoutAcquireIsNoop(t *testing.T) {
	lock := NewWriteLock(filepath.Join(t.TempDir(), "test.lck"), 10*time.Millisecond, time.Second)

	if err := lock.Release(); err != nil {
		t.Errorf("expected releasing an unheld lock to be a no-op, got %v", err)
	}
}

func TestAcquireTimesOutOnContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lck")

	holder := NewWriteLock(path, 5*time.Millisecond, time.Second)
	if err := holder.Acquire(); err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	contender := NewWriteLock(path, 5*time.Millisecond, 50*time.Millisecond)
	if err := contender.Acquire(); err == nil {
		contender.Release()
		t.Fatal("expected contended acquire to time out")
	}
}

func TestSequentialAcquireBlocksInProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lck")
	lock := NewWriteLock(path, 5*time.Millisecond, time.Second)

	if err := lock.Acquire(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		lock.Acquire()
		close(done)
		lock.Release()
	}()

	select {
	case <-done:
		t.Fatal("expected the second acquire to block while the first is held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
	<-done
}
