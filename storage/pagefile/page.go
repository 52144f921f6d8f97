/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package pagefile implements the fixed-size, memory-mapped page storage
that the B+Tree engine (package btree) is built on.

A page is a fixed PageSize slice of a single memory-mapped file. Pages
carry a small header (page id, leaf flag, entry count, parent page id,
next-leaf page id) followed by an entry area whose layout is owned by the
caller (the btree package). Header fields are little-endian; callers that
store composite keys in the entry area must encode them big-endian so
that memcmp equals semantic compare, per the page format described in the
specification this package implements.

Field reads and writes go through encoding/binary rather than typed
struct overlays, so pages work correctly regardless of host alignment
requirements.
*/
package pagefile

import "encoding/binary"

/*
PageSize is the fixed size of every page, in bytes.
*/
const PageSize = 16 * 1024

/*
HeaderSize is the size of the fixed page header at the start of every
page. The remainder of the page (PageSize-HeaderSize bytes) is the entry
area, whose layout is owned by the caller.
*/
const HeaderSize = 32

/*
EntryAreaSize is the number of bytes available to the caller-defined
entry layout on every page.
*/
const EntryAreaSize = PageSize - HeaderSize

// Byte offsets within the fixed page header.
const (
	offPageID       = 0  // uint64
	offFlags        = 8  // byte
	offEntryCount   = 9  // uint16
	offParentPageID = 11 // uint64
	offNextLeafID   = 19 // uint64
	// bytes 27..31 reserved/padding
)

const flagLeaf = byte(1) << 0

/*
Page is a thin typed view over a fixed PageSize byte slice belonging to a
memory-mapped (or file-backed, see mmap_other.go) region. The byte slice
is never copied; Page methods read and write directly into it.
*/
type Page struct {
	raw   []byte // exactly PageSize bytes, a sub-slice of the mapped region
	dirty bool
}

/*
NewPage wraps a raw PageSize byte slice as a Page. The slice is not
copied.
*/
func NewPage(raw []byte) *Page {
	if len(raw) != PageSize {
		panic("pagefile: page buffer must be exactly PageSize bytes")
	}
	return &Page{raw: raw}
}

/*
PageID returns the id of this page.
*/
func (p *Page) PageID() uint64 {
	return binary.LittleEndian.Uint64(p.raw[offPageID:])
}

/*
SetPageID sets the id of this page.
*/
func (p *Page) SetPageID(id uint64) {
	binary.LittleEndian.PutUint64(p.raw[offPageID:], id)
	p.dirty = true
}

/*
IsLeaf returns whether this page is a leaf page.
*/
func (p *Page) IsLeaf() bool {
	return p.raw[offFlags]&flagLeaf != 0
}

/*
SetLeaf sets or clears the leaf flag of this page.
*/
func (p *Page) SetLeaf(leaf bool) {
	if leaf {
		p.raw[offFlags] |= flagLeaf
	} else {
		p.raw[offFlags] &^= flagLeaf
	}
	p.dirty = true
}

/*
EntryCount returns the number of entries currently stored on this page.
*/
func (p *Page) EntryCount() int {
	return int(binary.LittleEndian.Uint16(p.raw[offEntryCount:]))
}

/*
SetEntryCount sets the number of entries stored on this page.
*/
func (p *Page) SetEntryCount(n int) {
	binary.LittleEndian.PutUint16(p.raw[offEntryCount:], uint16(n))
	p.dirty = true
}

/*
ParentPageID returns the id of this page's parent, or 0 if this is the
root.
*/
func (p *Page) ParentPageID() uint64 {
	return binary.LittleEndian.Uint64(p.raw[offParentPageID:])
}

/*
SetParentPageID sets the id of this page's parent.
*/
func (p *Page) SetParentPageID(id uint64) {
	binary.LittleEndian.PutUint64(p.raw[offParentPageID:], id)
	p.dirty = true
}

/*
NextLeaf returns the id of the next leaf in key order, or 0 if this is
the last leaf (or this is not a leaf page).
*/
func (p *Page) NextLeaf() uint64 {
	return binary.LittleEndian.Uint64(p.raw[offNextLeafID:])
}

/*
SetNextLeaf sets the id of the next leaf in key order.
*/
func (p *Page) SetNextLeaf(id uint64) {
	binary.LittleEndian.PutUint64(p.raw[offNextLeafID:], id)
	p.dirty = true
}

/*
EntryArea returns the caller-owned entry area of this page. Writes
through the returned slice mark the page dirty on the next explicit
MarkDirty call; callers doing raw entry-area writes must call MarkDirty
themselves.
*/
func (p *Page) EntryArea() []byte {
	return p.raw[HeaderSize:]
}

/*
MarkDirty marks this page as modified so it will be flushed.
*/
func (p *Page) MarkDirty() {
	p.dirty = true
}

/*
Dirty returns whether this page has unflushed modifications.
*/
func (p *Page) Dirty() bool {
	return p.dirty
}

/*
ClearDirty clears the dirty flag, normally called right after a flush.
*/
func (p *Page) ClearDirty() {
	p.dirty = false
}

/*
reanchor repoints this page's view onto a new backing slice after the
underlying mapping has moved (see File.grow remapping the file). The
page's logical offset and contents are unchanged; only the memory it
reads and writes through moves.
*/
func (p *Page) reanchor(raw []byte) {
	p.raw = raw
}

/*
Reset zeroes the whole page, including the header. Used when a freed
page is recycled for a new allocation.
*/
func (p *Page) Reset() {
	for i := range p.raw {
		p.raw[i] = 0
	}
	p.dirty = true
}
