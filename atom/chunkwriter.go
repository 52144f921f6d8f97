/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package atom implements the persistent atom store (spec §4.1, C1): total,
collision-free interning of byte strings to 32-bit ids, backed by
append-only chunk files plus a hash and an id index kept in two small
B+Trees.
*/
package atom

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/krotik/quaddb/dberr"

	"github.com/krotik/common/fileutil"
)

// chunkSize bounds one content chunk file, per spec §4.1 "append-only 64
// KiB chunks".
const chunkSize int64 = 64 * 1024

/*
chunkWriter is the append-only, chunked byte store backing atom content.
Rollover policy and chunk naming are the same primitives
fileutil.MultiFileBuffer uses for its own log rotation
(SizeBasedRolloverCondition, ConsecutiveNumberIterator); chunkWriter
layers offset/generation tracking on top, since MultiFileBuffer's
io.Writer-shaped API does not return the position a write landed at,
which the atom index needs to record.
*/
type chunkWriter struct {
	mu         sync.Mutex
	base       string
	cond       fileutil.RolloverCondition
	iter       fileutil.FilenameIterator
	generation int
	fp         *os.File

	readMu    sync.Mutex
	readFiles map[int]*os.File
}

func openChunkWriter(dir string) (*chunkWriter, error) {
	base := filepath.Join(dir, "atoms.chunk")

	iter := fileutil.ConsecutiveNumberIterator(0)
	cw := &chunkWriter{
		base:      iter.Basename(base),
		cond:      fileutil.SizeBasedRolloverCondition(chunkSize),
		iter:      iter,
		readFiles: make(map[int]*os.File),
	}

	// Resume: the current generation is the count of already-archived
	// chunk files (base.1, base.2, ...); the live chunk is always `base`
	// itself.
	for {
		if _, err := os.Stat(cw.archivedName(cw.generation + 1)); err != nil {
			break
		}
		cw.generation++
	}

	fp, err := os.OpenFile(cw.base, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0660)
	if err != nil {
		return nil, err
	}
	cw.fp = fp

	return cw, nil
}

func (cw *chunkWriter) archivedName(generation int) string {
	return fmt.Sprintf("%s.%d", cw.base, generation)
}

/*
write appends b to the live chunk, rolling over to a new chunk first if
the live chunk has reached chunkSize. It returns the generation and
byte offset the write landed at.
*/
func (cw *chunkWriter) write(b []byte) (generation int, offset int64, err error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.cond.CheckRollover(cw.base) {
		if err = cw.fp.Close(); err != nil {
			return 0, 0, err
		}
		cw.generation++
		if err = os.Rename(cw.base, cw.archivedName(cw.generation)); err != nil {
			return 0, 0, err
		}
		if cw.fp, err = os.OpenFile(cw.base, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0660); err != nil {
			return 0, 0, err
		}
	}

	stat, err := cw.fp.Stat()
	if err != nil {
		return 0, 0, err
	}
	offset = stat.Size()

	if _, err = cw.fp.Write(b); err != nil {
		return 0, 0, dberr.Errorf(dberr.KindStorageFull, "%v", err)
	}

	return cw.generation, offset, nil
}

/*
readAt returns length bytes at offset within the chunk identified by
generation.
*/
func (cw *chunkWriter) readAt(generation int, offset int64, length int) ([]byte, error) {
	cw.readMu.Lock()
	f, ok := cw.readFiles[generation]
	if !ok {
		name := cw.base
		if generation != cw.currentGeneration() {
			name = cw.archivedName(generation + 1)
		}
		var err error
		f, err = os.Open(name)
		if err != nil {
			cw.readMu.Unlock()
			return nil, err
		}
		cw.readFiles[generation] = f
	}
	cw.readMu.Unlock()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

func (cw *chunkWriter) currentGeneration() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.generation
}

func (cw *chunkWriter) flush() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.fp.Sync()
}

func (cw *chunkWriter) close() error {
	cw.readMu.Lock()
	for _, f := range cw.readFiles {
		f.Close()
	}
	cw.readMu.Unlock()

	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.fp.Close()
}
