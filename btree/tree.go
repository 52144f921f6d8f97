/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package btree

import (
	"sort"
	"sync"

	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/storage/pagefile"
)

/*
Tree is an ordered B+Tree over fixed-width composite keys, backed by one
pagefile.File. All structural mutation is serialized by mu; readers take
mu as well: RangeScan resolves its start leaf under mu, and each Advance
holds mu while it reads the current leaf, so a reader never observes a
page mid-split.
*/
type Tree struct {
	mu     sync.Mutex
	file   *pagefile.File
	cmp    Comparator
	layout EntryLayout
}

/*
Open opens (or, if the underlying file was freshly created, initializes)
a B+Tree over file using the given comparator and entry layout.
*/
func Open(file *pagefile.File, cmp Comparator, layout EntryLayout) (*Tree, error) {
	t := &Tree{file: file, cmp: cmp, layout: layout}

	if file.IsNew {
		id, page, err := file.AllocatePage()
		if err != nil {
			return nil, err
		}
		page.SetLeaf(true)
		file.Unpin(id)
		file.Header().SetRootPageID(id)
	}

	return t, nil
}

/*
File returns the underlying page file.
*/
func (t *Tree) File() *pagefile.File { return t.file }

func (t *Tree) rootID() uint64 { return t.file.Header().RootPageID() }

func (t *Tree) getNode(id uint64) (*node, error) {
	page, err := t.file.Get(id)
	if err != nil {
		return nil, err
	}
	return newNode(page, t.layout), nil
}

func (t *Tree) unpin(id uint64) { t.file.Unpin(id) }

/*
findLeafPath descends from the root to the leaf that would contain key,
returning the page ids visited (root first, leaf last) and, for each
non-leaf level, the child index used to descend from it. A key equal to
a separator always descends into the right child, per the engine's
search rule.

Every visited page, the leaf included, is unpinned before returning;
callers fetch the leaf again with getNode.
*/
func (t *Tree) findLeafPath(key []byte) ([]uint64, []int, error) {
	var ids []uint64
	var idxs []int

	id := t.rootID()

	for {
		ids = append(ids, id)

		n, err := t.getNode(id)
		if err != nil {
			return nil, nil, err
		}

		if n.isLeaf() {
			t.unpin(id)
			return ids, idxs, nil
		}

		c := n.count()
		idx := sort.Search(c, func(i int) bool {
			return t.cmp.Compare(key, n.internalKey(i)) < 0
		})

		child := n.child(idx)
		t.unpin(id)

		idxs = append(idxs, idx)
		id = child
	}
}

func (t *Tree) searchLeaf(n *node, key []byte) (pos int, found bool) {
	c := n.count()
	pos = sort.Search(c, func(i int) bool {
		return t.cmp.Compare(n.leafKey(i), key) >= 0
	})
	found = pos < c && t.cmp.Compare(n.leafKey(pos), key) == 0
	return
}

func padTo(b []byte, size int) []byte {
	out := make([]byte, size)
	copy(out, b)
	return out
}

/*
Insert inserts (key, value, meta) if key is not already present. Insert
is idempotent on exact key match: a repeated insert of the same key is a
no-op and does not create a duplicate entry. value/meta are padded or
truncated to the tree's entry layout widths.
*/
func (t *Tree) Insert(key, value, meta []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(key) != t.layout.KeySize {
		return dberr.Errorf(dberr.KindInvalidInput, "key must be %d bytes, got %d", t.layout.KeySize, len(key))
	}

	value = padTo(value, t.layout.ValueSize)
	if t.layout.MetaSize > 0 {
		meta = padTo(meta, t.layout.MetaSize)
	}

	ids, idxs, err := t.findLeafPath(key)
	if err != nil {
		return err
	}

	leafID := ids[len(ids)-1]
	leaf, err := t.getNode(leafID)
	if err != nil {
		return err
	}

	pos, found := t.searchLeaf(leaf, key)
	if found {
		t.unpin(leafID)
		return nil
	}

	leaf.insertLeafEntry(pos, key, value, meta)
	full := leaf.isFull()
	t.unpin(leafID)

	if !full {
		return nil
	}

	sepKey, rightID, err := t.splitLeaf(leafID)
	if err != nil {
		return err
	}

	return t.propagateSplit(ids, idxs, sepKey, rightID)
}

/*
splitLeaf splits a full leaf page into itself (left half) and a newly
allocated right sibling, returning the separator key (the smallest key
of the right half) to be promoted to the parent.
*/
func (t *Tree) splitLeaf(leftID uint64) ([]byte, uint64, error) {
	left, err := t.getNode(leftID)
	if err != nil {
		return nil, 0, err
	}
	defer t.unpin(leftID)

	c := left.count()
	mid := c / 2

	rightID, rightPage, err := t.file.AllocatePage()
	if err != nil {
		return nil, 0, err
	}
	defer t.unpin(rightID)

	rightPage.SetLeaf(true)
	right := newNode(rightPage, t.layout)

	for i := mid; i < c; i++ {
		right.setLeafEntry(i-mid, left.leafKey(i), left.leafValue(i), left.leafMeta(i))
	}

	rightPage.SetNextLeaf(left.page.NextLeaf())
	left.page.SetNextLeaf(rightID)
	rightPage.SetParentPageID(left.page.ParentPageID())

	sep := make([]byte, t.layout.KeySize)
	copy(sep, right.leafKey(0))

	left.page.SetEntryCount(mid)

	return sep, rightID, nil
}

/*
splitInternal splits a full internal node, promoting its middle key to
the parent and reparenting the children that move to the new right
sibling.
*/
func (t *Tree) splitInternal(leftID uint64) ([]byte, uint64, error) {
	left, err := t.getNode(leftID)
	if err != nil {
		return nil, 0, err
	}
	defer t.unpin(leftID)

	c := left.count()
	mid := c / 2

	sep := make([]byte, t.layout.KeySize)
	copy(sep, left.internalKey(mid))

	rightID, rightPage, err := t.file.AllocatePage()
	if err != nil {
		return nil, 0, err
	}
	defer t.unpin(rightID)

	rightPage.SetLeaf(false)
	rightPage.SetParentPageID(left.page.ParentPageID())
	right := newNode(rightPage, t.layout)

	right.setLeftmostChild(left.child(mid + 1))
	for i := mid + 1; i < c; i++ {
		right.setInternalEntry(i-mid-1, left.internalKey(i), left.child(i+1))
	}

	if err := t.reparentChildren(right, rightID); err != nil {
		return nil, 0, err
	}

	left.page.SetEntryCount(mid)

	return sep, rightID, nil
}

func (t *Tree) reparentChildren(n *node, newParent uint64) error {
	for i := 0; i <= n.count(); i++ {
		cid := n.child(i)
		cp, err := t.file.Get(cid)
		if err != nil {
			return err
		}
		cp.SetParentPageID(newParent)
		t.file.Unpin(cid)
	}
	return nil
}

/*
propagateSplit inserts (sepKey, rightID) into the parent of the node that
just split, recursing upward and creating a new root if the split
reaches the original root.
*/
func (t *Tree) propagateSplit(ids []uint64, idxs []int, sepKey []byte, rightID uint64) error {
	if len(ids) == 1 {
		return t.createNewRoot(ids[0], sepKey, rightID)
	}

	parentID := ids[len(ids)-2]
	idx := idxs[len(idxs)-1]

	parent, err := t.getNode(parentID)
	if err != nil {
		return err
	}

	parent.insertInternalEntry(idx, sepKey, rightID)
	full := parent.isFull()
	t.unpin(parentID)

	rp, err := t.file.Get(rightID)
	if err != nil {
		return err
	}
	rp.SetParentPageID(parentID)
	t.file.Unpin(rightID)

	if !full {
		return nil
	}

	sep2, right2, err := t.splitInternal(parentID)
	if err != nil {
		return err
	}

	return t.propagateSplit(ids[:len(ids)-1], idxs[:len(idxs)-1], sep2, right2)
}

func (t *Tree) createNewRoot(oldRootID uint64, sepKey []byte, rightID uint64) error {
	newRootID, newRootPage, err := t.file.AllocatePage()
	if err != nil {
		return err
	}
	newRootPage.SetLeaf(false)
	newRoot := newNode(newRootPage, t.layout)
	newRoot.setLeftmostChild(oldRootID)
	newRoot.insertInternalEntry(0, sepKey, rightID)
	t.file.Unpin(newRootID)

	if op, err := t.file.Get(oldRootID); err == nil {
		op.SetParentPageID(newRootID)
		t.file.Unpin(oldRootID)
	} else {
		return err
	}

	if rp, err := t.file.Get(rightID); err == nil {
		rp.SetParentPageID(newRootID)
		t.file.Unpin(rightID)
	} else {
		return err
	}

	t.file.Header().SetRootPageID(newRootID)

	return nil
}

/*
PointLookup returns the value and metadata stored for key, or found=false
if key is not present.
*/
func (t *Tree) PointLookup(key []byte) (value, meta []byte, found bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, _, err := t.findLeafPath(key)
	if err != nil {
		return nil, nil, false, err
	}

	leafID := ids[len(ids)-1]
	leaf, err := t.getNode(leafID)
	if err != nil {
		return nil, nil, false, err
	}
	defer t.unpin(leafID)

	pos, ok := t.searchLeaf(leaf, key)
	if !ok {
		return nil, nil, false, nil
	}

	value = append([]byte(nil), leaf.leafValue(pos)...)
	if t.layout.MetaSize > 0 {
		meta = append([]byte(nil), leaf.leafMeta(pos)...)
	}

	return value, meta, true, nil
}

/*
UpdateEntry overwrites the value and metadata of an existing key in
place, without any structural change. It returns dberr.KindNotFound if
the key does not exist.
*/
func (t *Tree) UpdateEntry(key, value, meta []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	value = padTo(value, t.layout.ValueSize)
	if t.layout.MetaSize > 0 {
		meta = padTo(meta, t.layout.MetaSize)
	}

	ids, _, err := t.findLeafPath(key)
	if err != nil {
		return err
	}

	leafID := ids[len(ids)-1]
	leaf, err := t.getNode(leafID)
	if err != nil {
		return err
	}
	defer t.unpin(leafID)

	pos, ok := t.searchLeaf(leaf, key)
	if !ok {
		return dberr.New(dberr.KindNotFound, "key not found")
	}

	leaf.setLeafEntry(pos, key, value, meta)

	return nil
}

/*
Delete removes key from the tree. Rebalancing after a removal is
deferred: a leaf may become sparsely populated but stays reachable via
its parent and sibling links.
*/
func (t *Tree) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, _, err := t.findLeafPath(key)
	if err != nil {
		return err
	}

	leafID := ids[len(ids)-1]
	leaf, err := t.getNode(leafID)
	if err != nil {
		return err
	}
	defer t.unpin(leafID)

	pos, ok := t.searchLeaf(leaf, key)
	if !ok {
		return nil
	}

	leaf.removeLeafEntry(pos)

	return nil
}

/*
Entry is one (key, value, meta) triple yielded by a range scan.
*/
type Entry struct {
	Key   []byte
	Value []byte
	Meta  []byte
}

/*
RangeScan returns an iterator over all entries with min <= key <= max, in
ascending key order. If min > max the iterator yields nothing.
*/
func (t *Tree) RangeScan(min, max []byte) (*RangeIterator, error) {
	t.mu.Lock()
	if t.cmp.Compare(min, max) > 0 {
		t.mu.Unlock()
		return &RangeIterator{done: true}, nil
	}

	ids, _, err := t.findLeafPath(min)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &RangeIterator{
		tree:   t,
		leafID: ids[len(ids)-1],
		pos:    -1,
		min:    append([]byte(nil), min...),
		max:    append([]byte(nil), max...),
	}, nil
}

/*
RangeIterator streams entries from a range scan, one leaf page pinned at
a time.
*/
type RangeIterator struct {
	tree   *Tree
	leafID uint64
	pos    int
	min    []byte
	max    []byte
	done   bool
	cur    Entry
	err    error
}

/*
Advance moves to the next entry. It returns false when the scan is
finished (either exhausted or an error occurred; check Err).
*/
func (it *RangeIterator) Advance() bool {
	if it.done {
		return false
	}

	t := it.tree

	for {
		t.mu.Lock()
		n, err := t.getNode(it.leafID)
		if err != nil {
			t.mu.Unlock()
			it.err = err
			it.done = true
			return false
		}

		if it.pos < 0 {
			it.pos, _ = t.searchLeaf(n, it.min)
		} else {
			it.pos++
		}

		if it.pos >= n.count() {
			next := n.page.NextLeaf()
			t.unpin(it.leafID)
			t.mu.Unlock()

			if next == 0 {
				it.done = true
				return false
			}
			it.leafID = next
			it.pos = 0
			continue
		}

		key := n.leafKey(it.pos)
		if t.cmp.Compare(key, it.max) > 0 {
			t.unpin(it.leafID)
			t.mu.Unlock()
			it.done = true
			return false
		}

		it.cur = Entry{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), n.leafValue(it.pos)...),
		}
		if t.layout.MetaSize > 0 {
			it.cur.Meta = append([]byte(nil), n.leafMeta(it.pos)...)
		}

		t.unpin(it.leafID)
		t.mu.Unlock()
		return true
	}
}

/*
Current returns the entry the last successful Advance moved to.
*/
func (it *RangeIterator) Current() Entry { return it.cur }

/*
Err returns the first error encountered during iteration, if any.
*/
func (it *RangeIterator) Err() error { return it.err }

/*
Walk visits every page reachable from the root, leaves and internal
nodes alike, depth-first. It is used by the recovery scan to distinguish
reachable pages from orphaned ones (spec §4.8).
*/
func (t *Tree) Walk(visit func(pageID uint64) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.walk(t.rootID(), visit)
}

func (t *Tree) walk(id uint64, visit func(pageID uint64) error) error {
	if err := visit(id); err != nil {
		return err
	}

	n, err := t.getNode(id)
	if err != nil {
		return err
	}
	defer t.unpin(id)

	if n.isLeaf() {
		return nil
	}

	c := n.count()
	for i := 0; i <= c; i++ {
		if err := t.walk(n.child(i), visit); err != nil {
			return err
		}
	}
	return nil
}
