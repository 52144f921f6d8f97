/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pagefile

import (
	"os"
	"sync"

	"github.com/krotik/quaddb/dberr"

	"github.com/krotik/common/sortutil"
)

/*
File is a single memory-mapped page file: page 0 is the metadata page
(see Header), every other page is owned by the caller (typically a
btree.Tree). File owns page allocation/free-list bookkeeping and the
single flush/rollback fence described in the recovery contract this
package implements.
*/
type File struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	m      *mapping
	pages  int64 // number of pages currently backing the file
	header *Header
	Cache  *Cache

	// IsNew is true if this file was created (not opened pre-existing) by
	// this call to Open.
	IsNew bool
}

/*
Open opens or creates the page file at path. cacheCapacity bounds the
number of pinned/recently-used Go-level page frames, not bytes.
*/
func Open(path string, cacheCapacity int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0660)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	isNew := stat.Size() == 0

	size := stat.Size()
	if isNew {
		size = PageSize
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}

	m, err := openMapping(f, size)
	if err != nil {
		f.Close()
		return nil, err
	}

	pf := &File{
		path:  path,
		f:     f,
		m:     m,
		pages: size / PageSize,
		IsNew: isNew,
	}
	pf.Cache = NewCache(cacheCapacity, pf)

	header, err := NewHeader(NewPage(m.bytes()[0:PageSize]), isNew)
	if err != nil {
		f.Close()
		return nil, err
	}
	pf.header = header

	return pf, nil
}

/*
Header returns the metadata header of this file.
*/
func (pf *File) Header() *Header {
	return pf.header
}

/*
Path returns the filesystem path of this page file.
*/
func (pf *File) Path() string {
	return pf.path
}

/*
fetchPage returns a Page view backed directly by the mapped bytes for the
given id. Called by Cache on a miss.
*/
func (pf *File) fetchPage(id uint64) (*Page, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if int64(id) >= pf.pages {
		return nil, dberr.Errorf(dberr.KindCorruption, "page %d out of range (have %d pages)", id, pf.pages)
	}

	off := int64(id) * PageSize
	return NewPage(pf.m.bytes()[off : off+PageSize]), nil
}

/*
flushPage fences a single page's writes through the mmap write-back path.
*/
func (pf *File) flushPage(p *Page) error {
	if !p.Dirty() {
		return nil
	}
	if err := pf.m.sync(); err != nil {
		return err
	}
	p.ClearDirty()
	return nil
}

/*
grow extends the file (and remaps it) by one page and returns the new
page's id.
*/
func (pf *File) grow() (uint64, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	newSize := (pf.pages + 1) * PageSize
	if err := pf.f.Truncate(newSize); err != nil {
		return 0, dberr.Errorf(dberr.KindStorageFull, "%v", err)
	}
	if err := pf.m.remap(newSize); err != nil {
		return 0, dberr.Errorf(dberr.KindStorageFull, "%v", err)
	}

	id := uint64(pf.pages)
	pf.pages++

	// remap may relocate or reallocate the whole backing buffer (it always
	// does on the non-unix fallback, and may on unix if the OS cannot
	// extend the mapping in place). Re-anchor the header page view, plus
	// every page already resident in the cache, onto the current mapping
	// before returning; a stale *Page pointing at abandoned memory would
	// silently lose any write made through it after this point.
	data := pf.m.bytes()
	pf.header.page = NewPage(data[0:PageSize])
	pf.Cache.ReanchorAll(func(pageID uint64) []byte {
		off := int64(pageID) * PageSize
		return data[off : off+PageSize]
	})

	return id, nil
}

/*
AllocatePage returns a fresh, zeroed page and its id, reusing a freed
page if the free list is non-empty.
*/
func (pf *File) AllocatePage() (uint64, *Page, error) {
	head := pf.header.FreeListHead()

	if head != 0 {
		page, err := pf.Cache.Get(head)
		if err != nil {
			return 0, nil, err
		}
		next := leUint64(page.EntryArea())
		pf.header.SetFreeListHead(next)
		page.Reset()
		return head, page, nil
	}

	id, err := pf.grow()
	if err != nil {
		return 0, nil, err
	}

	page, err := pf.Cache.Get(id)
	if err != nil {
		return 0, nil, err
	}
	page.Reset()

	return id, page, nil
}

/*
FreePage returns a page to the free list. The page must not be page 0.
*/
func (pf *File) FreePage(id uint64) error {
	if id == 0 {
		return dberr.New(dberr.KindInvalidInput, "cannot free the metadata page")
	}

	page, err := pf.Cache.Get(id)
	if err != nil {
		return err
	}
	defer pf.Cache.Unpin(id)

	page.Reset()
	leePutUint64(page.EntryArea(), pf.header.FreeListHead())
	page.MarkDirty()
	pf.header.SetFreeListHead(id)

	return nil
}

/*
PageCount returns the number of pages currently backing the file,
including the metadata page.
*/
func (pf *File) PageCount() int64 {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.pages
}

/*
FreeListPageIDs walks the free page list and returns every id on it, in
increasing order (sortutil.UInt64s), for orphan-scan reconciliation
(recovery.ScanOrphans treats every free-listed page as accounted for,
not orphaned).
*/
func (pf *File) FreeListPageIDs() ([]uint64, error) {
	var ids []uint64

	id := pf.header.FreeListHead()
	for id != 0 {
		page, err := pf.Cache.Get(id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		next := leUint64(page.EntryArea())
		pf.Cache.Unpin(id)
		id = next
	}

	sortutil.UInt64s(ids)
	return ids, nil
}

/*
Get pins and returns the page with the given id. Callers must call Unpin
when done.
*/
func (pf *File) Get(id uint64) (*Page, error) {
	return pf.Cache.Get(id)
}

/*
Unpin releases a page obtained via Get or AllocatePage.
*/
func (pf *File) Unpin(id uint64) {
	pf.Cache.Unpin(id)
}

/*
Flush fences all modified pages, then the metadata page, to the
underlying file. Metadata is always fenced last so a crash before the
metadata fence completes leaves the file at its previous consistent
state.
*/
func (pf *File) Flush() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if err := pf.m.syncRange(PageSize, len(pf.m.bytes())-PageSize); err != nil {
		return err
	}
	if err := pf.m.syncRange(0, PageSize); err != nil {
		return err
	}
	pf.header.page.ClearDirty()

	return nil
}

/*
Close flushes and closes the underlying file and mapping.
*/
func (pf *File) Close() error {
	if err := pf.Flush(); err != nil {
		return err
	}
	if err := pf.m.close(); err != nil {
		return err
	}
	return pf.f.Close()
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func leePutUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
