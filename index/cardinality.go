/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import "sync"

/*
CardinalityCounters keeps per-predicate and per-object triple counts,
maintained in O(1) time on every insert (spec §4.6, "derived from
per-predicate and per-object frequency counters kept in O(1) time on
insert"), the same running-counter-in-the-main-store idiom as the
teacher's per-kind EdgeCount.
*/
type CardinalityCounters struct {
	mu          sync.Mutex
	predicate   map[uint32]uint64
	object      map[uint32]uint64
	tripleTotal uint64
}

/*
NewCardinalityCounters creates an empty counter set.
*/
func NewCardinalityCounters() *CardinalityCounters {
	return &CardinalityCounters{
		predicate: make(map[uint32]uint64),
		object:    make(map[uint32]uint64),
	}
}

/*
Observe records one inserted triple.
*/
func (c *CardinalityCounters) Observe(p, o uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predicate[p]++
	c.object[o]++
	c.tripleTotal++
}

/*
Unobserve records one deleted triple, undoing a prior Observe.
*/
func (c *CardinalityCounters) Unobserve(p, o uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.predicate[p] > 0 {
		c.predicate[p]--
	}
	if c.object[o] > 0 {
		c.object[o]--
	}
	if c.tripleTotal > 0 {
		c.tripleTotal--
	}
}

/*
PredicateCount estimates the number of triples with the given predicate.
*/
func (c *CardinalityCounters) PredicateCount(p uint32) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predicate[p]
}

/*
ObjectCount estimates the number of triples with the given object.
*/
func (c *CardinalityCounters) ObjectCount(o uint32) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.object[o]
}

/*
Total returns the total number of triples observed.
*/
func (c *CardinalityCounters) Total() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripleTotal
}
