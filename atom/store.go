/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package atom

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"github.com/krotik/quaddb/btree"
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/storage/pagefile"
)

// MinAtom is the reserved sentinel "minimum" atom; it is never assigned
// to interned content.
const MinAtom uint32 = 0

// idLayout and hashLayout are the two small B+Tree entry shapes the atom
// store's side indexes use. Neither is one of btree's NonTemporal/
// Temporal layouts because the atom store's payload (a chunk pointer) is
// wider than a plain triple value.
var (
	idLayout   = btree.EntryLayout{KeySize: 4, ValueSize: 16, MetaSize: 0}
	hashLayout = btree.EntryLayout{KeySize: 8, ValueSize: 0, MetaSize: 0}
)

/*
Store is the persistent atom store: total, collision-free interning of
byte strings to 32-bit atom ids (spec §4.1). The counter for the next
atom to assign is kept as the value at the reserved key 0 of the id
index itself, the same "counter lives as just another entry in the
backing store" idiom NamesManager uses for its code counters.
*/
type Store struct {
	mu sync.Mutex

	chunks *chunkWriter

	idFile   *pagefile.File
	idTree   *btree.Tree
	hashFile *pagefile.File
	hashTree *btree.Tree

	nextAtom uint32
}

/*
Open opens (or initializes) the atom store rooted at dir.
*/
func Open(dir string, cacheCapacity int) (*Store, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}

	chunks, err := openChunkWriter(dir)
	if err != nil {
		return nil, err
	}

	idFile, err := pagefile.Open(filepath.Join(dir, "atoms.idx"), cacheCapacity)
	if err != nil {
		return nil, err
	}
	idTree, err := btree.Open(idFile, btree.ByteCompare{}, idLayout)
	if err != nil {
		return nil, err
	}

	hashFile, err := pagefile.Open(filepath.Join(dir, "atoms.hashidx"), cacheCapacity)
	if err != nil {
		return nil, err
	}
	hashTree, err := btree.Open(hashFile, btree.ByteCompare{}, hashLayout)
	if err != nil {
		return nil, err
	}

	s := &Store{
		chunks:   chunks,
		idFile:   idFile,
		idTree:   idTree,
		hashFile: hashFile,
		hashTree: hashTree,
	}

	value, _, found, err := idTree.PointLookup(encodeAtomKey(MinAtom))
	if err != nil {
		return nil, err
	}
	if found {
		s.nextAtom = binary.BigEndian.Uint32(value[0:4])
	} else {
		s.nextAtom = MinAtom + 1
		if err := s.persistCounter(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) persistCounter() error {
	v := make([]byte, 16)
	binary.BigEndian.PutUint32(v[0:4], s.nextAtom)
	err := s.idTree.UpdateEntry(encodeAtomKey(MinAtom), v, nil)
	if dberr.Is(err, dberr.KindNotFound) {
		return s.idTree.Insert(encodeAtomKey(MinAtom), v, nil)
	}
	return err
}

func encodeAtomKey(atom uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, atom)
	return b
}

func encodeHashKey(hash uint32, atom uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], hash)
	binary.BigEndian.PutUint32(b[4:8], atom)
	return b
}

func encodePointer(generation int, offset int64, length int, hash uint32) []byte {
	v := make([]byte, 16)
	binary.BigEndian.PutUint32(v[0:4], uint32(generation))
	binary.BigEndian.PutUint32(v[4:8], uint32(offset))
	binary.BigEndian.PutUint32(v[8:12], uint32(length))
	binary.BigEndian.PutUint32(v[12:16], hash)
	return v
}

func decodePointer(v []byte) (generation int, offset int64, length int, hash uint32) {
	generation = int(binary.BigEndian.Uint32(v[0:4]))
	offset = int64(binary.BigEndian.Uint32(v[4:8]))
	length = int(binary.BigEndian.Uint32(v[8:12]))
	hash = binary.BigEndian.Uint32(v[12:16])
	return
}

/*
fnv1a hashes content with the fixed FNV-1a variant spec §4.1 mandates
("must be stable across processes and versions"). hash/fnv is the
purpose-built standard implementation of exactly this algorithm; no
third-party library in the corpus offers anything more suitable.
*/
func fnv1a(content []byte) uint32 {
	h := fnv.New32a()
	h.Write(content)
	return h.Sum32()
}

func (s *Store) readContent(generation int, offset int64, length int) ([]byte, error) {
	raw, err := s.chunks.readAt(generation, offset, 4+length)
	if err != nil {
		return nil, err
	}
	return raw[4:], nil
}

func (s *Store) findExisting(content []byte, h uint32) (uint32, bool, error) {
	it, err := s.hashTree.RangeScan(encodeHashKey(h, MinAtom), encodeHashKey(h, ^uint32(0)))
	if err != nil {
		return 0, false, err
	}

	for it.Advance() {
		_, candidate := decodeHashKey(it.Current().Key)
		v, _, found, err := s.idTree.PointLookup(encodeAtomKey(candidate))
		if err != nil {
			return 0, false, err
		}
		if !found {
			continue
		}
		gen, off, length, storedHash := decodePointer(v)
		if storedHash != h {
			continue
		}
		stored, err := s.readContent(gen, off, length)
		if err != nil {
			return 0, false, err
		}
		if bytes.Equal(stored, content) {
			return candidate, true, nil
		}
	}
	if err := it.Err(); err != nil {
		return 0, false, err
	}

	return 0, false, nil
}

func decodeHashKey(k []byte) (hash uint32, atom uint32) {
	return binary.BigEndian.Uint32(k[0:4]), binary.BigEndian.Uint32(k[4:8])
}

/*
Intern returns the existing atom for content if present, else appends it
to the chunk store and assigns a new atom. At-most-once assignment per
distinct content (spec §4.1).
*/
func (s *Store) Intern(content []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := fnv1a(content)

	if existing, ok, err := s.findExisting(content, h); err != nil {
		return 0, err
	} else if ok {
		return existing, nil
	}

	lenPrefixed := make([]byte, 4+len(content))
	binary.BigEndian.PutUint32(lenPrefixed[0:4], uint32(len(content)))
	copy(lenPrefixed[4:], content)

	gen, offset, err := s.chunks.write(lenPrefixed)
	if err != nil {
		return 0, err
	}

	atomID := s.nextAtom
	s.nextAtom++

	if err := s.idTree.Insert(encodeAtomKey(atomID), encodePointer(gen, offset, len(content), h), nil); err != nil {
		return 0, err
	}
	if err := s.hashTree.Insert(encodeHashKey(h, atomID), nil, nil); err != nil {
		return 0, err
	}
	if err := s.persistCounter(); err != nil {
		return 0, err
	}

	return atomID, nil
}

/*
InternBatch interns every element of contents in order by calling Intern
for each one (mirrors NamesManager's bulk Encode16/Encode32 idiom). The
store lock is taken once per element, not held across the whole batch.
*/
func (s *Store) InternBatch(contents [][]byte) ([]uint32, error) {
	out := make([]uint32, len(contents))
	for i, c := range contents {
		atomID, err := s.Intern(c)
		if err != nil {
			return nil, err
		}
		out[i] = atomID
	}
	return out, nil
}

/*
Lookup returns the content bytes for atom, or KindNotFound if atom was
never interned by this store.
*/
func (s *Store) Lookup(atomID uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if atomID == MinAtom {
		return nil, dberr.New(dberr.KindNotFound, "atom 0 is the reserved minimum sentinel")
	}

	v, _, found, err := s.idTree.PointLookup(encodeAtomKey(atomID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, dberr.Errorf(dberr.KindNotFound, "atom %d not interned", atomID)
	}

	gen, offset, length, _ := decodePointer(v)
	return s.readContent(gen, offset, length)
}

/*
IDOf resolves content to its existing atom, without interning it. It is
used by queries to resolve bound terms.
*/
func (s *Store) IDOf(content []byte) (uint32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.findExisting(content, fnv1a(content))
}

/*
Count returns the number of atoms interned so far.
*/
func (s *Store) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(s.nextAtom - MinAtom - 1)
}

/*
Flush fences every dirty page and chunk to disk without closing the
atom store, for the top-level store's periodic checkpoint.
*/
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idFile.Flush(); err != nil {
		return err
	}
	if err := s.hashFile.Flush(); err != nil {
		return err
	}
	return s.chunks.flush()
}

/*
Close flushes and closes the atom store's backing files.
*/
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.idFile.Close(); err != nil {
		return err
	}
	if err := s.hashFile.Close(); err != nil {
		return err
	}
	return s.chunks.close()
}
