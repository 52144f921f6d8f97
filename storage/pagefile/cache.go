/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pagefile

import (
	"container/list"
	"sync"
)

/*
frame is one LRU-tracked page in the cache.
*/
type frame struct {
	page    *Page
	pins    int
	element *list.Element // element in the LRU list, nil while pinned
}

/*
Cache is a bounded LRU cache over the pages of a single File. Capacity is
bounded by page count, not bytes, since pages are fixed size. Pages are
only ever evicted while unpinned; a pinned page's *Page pointer stays
valid until the matching Unpin call.
*/
type Cache struct {
	mu       sync.Mutex
	capacity int
	frames   map[uint64]*frame
	lru      *list.List // least-recently-used unpinned frames, front = least recent
	source   *File
}

/*
NewCache creates a page cache of the given capacity backed by source.
*/
func NewCache(capacity int, source *File) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		frames:   make(map[uint64]*frame),
		lru:      list.New(),
		source:   source,
	}
}

/*
Get returns the page with the given id, pinning it. Callers must call
Unpin once they are done with the returned page and must not retain the
pointer past that call.
*/
func (c *Cache) Get(id uint64) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fr, ok := c.frames[id]; ok {
		if fr.element != nil {
			c.lru.Remove(fr.element)
			fr.element = nil
		}
		fr.pins++
		return fr.page, nil
	}

	page, err := c.source.fetchPage(id)
	if err != nil {
		return nil, err
	}

	if len(c.frames) >= c.capacity {
		if err := c.evictLocked(); err != nil {
			return nil, err
		}
	}

	c.frames[id] = &frame{page: page, pins: 1}

	return page, nil
}

/*
Unpin releases a pin taken by Get. Once a page's pin count reaches zero
it becomes eligible for eviction.
*/
func (c *Cache) Unpin(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fr, ok := c.frames[id]
	if !ok {
		return
	}

	fr.pins--
	if fr.pins <= 0 {
		fr.pins = 0
		fr.element = c.lru.PushBack(id)
	}
}

/*
EvictLRU evicts the single least-recently-used unpinned page, if any.
*/
func (c *Cache) EvictLRU() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictLocked()
}

func (c *Cache) evictLocked() error {
	el := c.lru.Front()
	if el == nil {
		// Everything is pinned; capacity is a soft bound in this case.
		return nil
	}

	id := el.Value.(uint64)
	c.lru.Remove(el)

	fr := c.frames[id]
	if fr.page.Dirty() {
		if err := c.source.flushPage(fr.page); err != nil {
			return err
		}
	}

	delete(c.frames, id)

	return nil
}

/*
InvalidateAll drops every unpinned frame, flushing dirty ones first. Used
after a rollback to force the next Get to re-read pages via the mapping.
*/
func (c *Cache) InvalidateAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.lru.Len() > 0 {
		if err := c.evictLocked(); err != nil {
			return err
		}
	}
	return nil
}

/*
ReanchorAll repoints every resident frame's page (pinned or not) onto its
slice of the current mapping, via at. Called by File.grow immediately
after a remap, since a remap may relocate or reallocate the whole backing
buffer and leave every previously-fetched *Page pointing at abandoned
memory.
*/
func (c *Cache) ReanchorAll(at func(id uint64) []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, fr := range c.frames {
		fr.page.reanchor(at(id))
	}
}

/*
Len returns the number of frames currently resident, pinned or not.
*/
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}
