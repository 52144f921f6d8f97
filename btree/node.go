/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package btree

import (
	"encoding/binary"

	"github.com/krotik/quaddb/storage/pagefile"
)

/*
node is a typed view over a page's entry area, interpreted according to
whether the page is a leaf or internal node. It never copies the
underlying bytes.
*/
type node struct {
	page   *pagefile.Page
	layout EntryLayout
}

func newNode(page *pagefile.Page, layout EntryLayout) *node {
	return &node{page: page, layout: layout}
}

func (n *node) isLeaf() bool { return n.page.IsLeaf() }
func (n *node) count() int   { return n.page.EntryCount() }
func (n *node) id() uint64   { return n.page.PageID() }

// --- Leaf entry access -----------------------------------------------

func (n *node) leafEntrySize() int { return n.layout.LeafEntrySize() }

func (n *node) leafKey(i int) []byte {
	off := i * n.leafEntrySize()
	area := n.page.EntryArea()
	return area[off : off+n.layout.KeySize]
}

func (n *node) leafValue(i int) []byte {
	off := i*n.leafEntrySize() + n.layout.KeySize
	area := n.page.EntryArea()
	return area[off : off+n.layout.ValueSize]
}

func (n *node) leafMeta(i int) []byte {
	if n.layout.MetaSize == 0 {
		return nil
	}
	off := i*n.leafEntrySize() + n.layout.KeySize + n.layout.ValueSize
	area := n.page.EntryArea()
	return area[off : off+n.layout.MetaSize]
}

/*
setLeafEntry writes a full leaf entry (key, value, meta) at slot i,
growing the entry count if i == count().
*/
func (n *node) setLeafEntry(i int, key, value, meta []byte) {
	off := i * n.leafEntrySize()
	area := n.page.EntryArea()
	copy(area[off:], key)
	copy(area[off+n.layout.KeySize:], value)
	if n.layout.MetaSize > 0 {
		copy(area[off+n.layout.KeySize+n.layout.ValueSize:], meta)
	}
	if i >= n.count() {
		n.page.SetEntryCount(i + 1)
	}
	n.page.MarkDirty()
}

/*
insertLeafEntry shifts entries at and after i to the right by one slot
and writes the new entry at i.
*/
func (n *node) insertLeafEntry(i int, key, value, meta []byte) {
	c := n.count()
	sz := n.leafEntrySize()
	area := n.page.EntryArea()
	for j := c; j > i; j-- {
		copy(area[j*sz:], area[(j-1)*sz:j*sz])
	}
	n.page.SetEntryCount(c + 1)
	n.setLeafEntry(i, key, value, meta)
}

/*
removeLeafEntry shifts entries after i to the left by one slot,
overwriting slot i.
*/
func (n *node) removeLeafEntry(i int) {
	c := n.count()
	sz := n.leafEntrySize()
	area := n.page.EntryArea()
	for j := i; j < c-1; j++ {
		copy(area[j*sz:], area[(j+1)*sz:(j+2)*sz])
	}
	n.page.SetEntryCount(c - 1)
	n.page.MarkDirty()
}

// --- Internal entry access --------------------------------------------
//
// Layout: [leftmostChild uint64][key0][child0]...[keyN-1][childN-1]
// child_i is the page id of the subtree covering keys >= key_i (and <
// key_i+1, or unbounded for the last entry). The leftmost child covers
// keys < key0.

func (n *node) internalEntrySize() int { return n.layout.InternalEntrySize() }

func (n *node) leftmostChild() uint64 {
	return binary.BigEndian.Uint64(n.page.EntryArea()[0:8])
}

func (n *node) setLeftmostChild(id uint64) {
	binary.BigEndian.PutUint64(n.page.EntryArea()[0:8], id)
	n.page.MarkDirty()
}

func (n *node) internalKey(i int) []byte {
	off := 8 + i*n.internalEntrySize()
	area := n.page.EntryArea()
	return area[off : off+n.layout.KeySize]
}

func (n *node) internalChild(i int) uint64 {
	off := 8 + i*n.internalEntrySize() + n.layout.KeySize
	area := n.page.EntryArea()
	return binary.BigEndian.Uint64(area[off : off+8])
}

func (n *node) setInternalEntry(i int, key []byte, child uint64) {
	off := 8 + i*n.internalEntrySize()
	area := n.page.EntryArea()
	copy(area[off:], key)
	binary.BigEndian.PutUint64(area[off+n.layout.KeySize:], child)
	if i >= n.count() {
		n.page.SetEntryCount(i + 1)
	}
	n.page.MarkDirty()
}

func (n *node) insertInternalEntry(i int, key []byte, child uint64) {
	c := n.count()
	sz := n.internalEntrySize()
	area := n.page.EntryArea()
	for j := c; j > i; j-- {
		copy(area[8+j*sz:], area[8+(j-1)*sz:8+j*sz])
	}
	n.page.SetEntryCount(c + 1)
	n.setInternalEntry(i, key, child)
}

/*
child returns the child page id covering position i in [0, count()]:
i==0 is the leftmost child, i>0 is internalChild(i-1).
*/
func (n *node) child(i int) uint64 {
	if i == 0 {
		return n.leftmostChild()
	}
	return n.internalChild(i - 1)
}

// --- Capacity -----------------------------------------------------------

func (n *node) maxLeafEntries() int {
	return pagefile.EntryAreaSize / n.leafEntrySize()
}

func (n *node) maxInternalEntries() int {
	return (pagefile.EntryAreaSize - 8) / n.internalEntrySize()
}

func (n *node) isFull() bool {
	if n.isLeaf() {
		return n.count() >= n.maxLeafEntries()
	}
	return n.count() >= n.maxInternalEntries()
}
