/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pagefile

import (
	"encoding/binary"

	"github.com/krotik/quaddb/dberr"
)

/*
Magic identifies the page file format. A version bump requires migration
or a fresh build, per the on-disk format contract this package implements.
*/
const Magic uint64 = 0x51554144424B5401 // "QUADBKT" + version 1

// Byte offsets within the metadata page (page id 0).
const (
	metaOffMagic       = 0
	metaOffRootPageID  = 8
	metaOffNextPageID  = 16
	metaOffTripleCount = 24
	metaOffAtomGen     = 32
	metaOffFreeListHd  = 40
)

/*
Header wraps the metadata page (always page id 0) of a page file. It
records the magic number, the root page id, the next free page id, the
triple count and the atom-store generation, per the recovery and
metadata contract of the storage engine.
*/
type Header struct {
	page *Page
}

/*
NewHeader wraps the metadata page. If isNew is true the page is
initialized fresh (magic written, root page allocated separately by the
caller, next page id set to 2, triple count zero). If isNew is false the
existing magic is checked and an error is returned on mismatch.
*/
func NewHeader(page *Page, isNew bool) (*Header, error) {
	h := &Header{page: page}

	area := page.EntryArea()

	if isNew {
		binary.LittleEndian.PutUint64(area[metaOffMagic:], Magic)
		h.SetRootPageID(0)
		h.SetNextPageID(2)
		h.SetTripleCount(0)
		h.SetAtomGeneration(0)
		h.SetFreeListHead(0)
		page.MarkDirty()
		return h, nil
	}

	if err := h.CheckMagic(); err != nil {
		return nil, err
	}

	return h, nil
}

/*
CheckMagic verifies the magic number of this header.
*/
func (h *Header) CheckMagic() error {
	got := binary.LittleEndian.Uint64(h.page.EntryArea()[metaOffMagic:])
	if got != Magic {
		return dberr.Errorf(dberr.KindCorruption, "bad page file magic: got %x want %x", got, Magic)
	}
	return nil
}

/*
RootPageID returns the root page id of the primary tree in this file.
*/
func (h *Header) RootPageID() uint64 {
	return binary.LittleEndian.Uint64(h.page.EntryArea()[metaOffRootPageID:])
}

/*
SetRootPageID sets the root page id.
*/
func (h *Header) SetRootPageID(id uint64) {
	binary.LittleEndian.PutUint64(h.page.EntryArea()[metaOffRootPageID:], id)
	h.page.MarkDirty()
}

/*
NextPageID returns the next unallocated page id.
*/
func (h *Header) NextPageID() uint64 {
	return binary.LittleEndian.Uint64(h.page.EntryArea()[metaOffNextPageID:])
}

/*
SetNextPageID sets the next unallocated page id.
*/
func (h *Header) SetNextPageID(id uint64) {
	binary.LittleEndian.PutUint64(h.page.EntryArea()[metaOffNextPageID:], id)
	h.page.MarkDirty()
}

/*
TripleCount returns the number of logical triples recorded in this file.
*/
func (h *Header) TripleCount() uint64 {
	return binary.LittleEndian.Uint64(h.page.EntryArea()[metaOffTripleCount:])
}

/*
SetTripleCount sets the triple count.
*/
func (h *Header) SetTripleCount(n uint64) {
	binary.LittleEndian.PutUint64(h.page.EntryArea()[metaOffTripleCount:], n)
	h.page.MarkDirty()
}

/*
AtomGeneration returns the generation counter of the companion atom
store, bumped whenever the atom store is compacted or rebuilt.
*/
func (h *Header) AtomGeneration() uint64 {
	return binary.LittleEndian.Uint64(h.page.EntryArea()[metaOffAtomGen:])
}

/*
SetAtomGeneration sets the atom store generation counter.
*/
func (h *Header) SetAtomGeneration(g uint64) {
	binary.LittleEndian.PutUint64(h.page.EntryArea()[metaOffAtomGen:], g)
	h.page.MarkDirty()
}

/*
FreeListHead returns the head of the free page list, or 0 if empty.
*/
func (h *Header) FreeListHead() uint64 {
	return binary.LittleEndian.Uint64(h.page.EntryArea()[metaOffFreeListHd:])
}

/*
SetFreeListHead sets the head of the free page list.
*/
func (h *Header) SetFreeListHead(id uint64) {
	binary.LittleEndian.PutUint64(h.page.EntryArea()[metaOffFreeListHd:], id)
	h.page.MarkDirty()
}
