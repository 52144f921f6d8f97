/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import (
	"github.com/krotik/common/bitutil"

	"github.com/krotik/quaddb/index"
)

/*
PathExpr is a property path expression over predicate atoms (spec §4.6).
*/
type PathExpr interface {
	// step yields every o reachable from s in exactly one hop of this
	// expression's atomic form.
	step(st Store, s uint32) ([]uint32, error)
}

/*
PredPath is `p`: the atomic single-predicate step.
*/
type PredPath struct {
	Predicate uint32
}

func (p PredPath) step(st Store, s uint32) ([]uint32, error) {
	it, err := st.Query(index.Bound(s), index.Bound(p.Predicate), index.Unbound, nil)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for it.Advance() {
		out = append(out, it.Current().Object)
	}
	return out, it.Err()
}

/*
InversePath is `^E`: swap start and end.
*/
type InversePath struct {
	Predicate uint32
}

func (p InversePath) step(st Store, s uint32) ([]uint32, error) {
	it, err := st.Query(index.Unbound, index.Bound(p.Predicate), index.Bound(s), nil)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for it.Advance() {
		out = append(out, it.Current().Subject)
	}
	return out, it.Err()
}

/*
NegatedSetPath is `!(p1|p2|...)`: emit (s, o) where the connecting
predicate is not in the set.
*/
type NegatedSetPath struct {
	Excluded map[uint32]bool
}

func (p NegatedSetPath) step(st Store, s uint32) ([]uint32, error) {
	it, err := st.Query(index.Bound(s), index.Unbound, index.Unbound, nil)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for it.Advance() {
		r := it.Current()
		if !p.Excluded[r.Predicate] {
			out = append(out, r.Object)
		}
	}
	return out, it.Err()
}

/*
SeqPath is `E1 / E2`: sequence join through an intermediate node,
projected out.
*/
type SeqPath struct {
	First, Second PathExpr
}

func (p SeqPath) step(st Store, s uint32) ([]uint32, error) {
	mids, err := p.First.step(st, s)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint32]bool)
	var out []uint32
	for _, m := range mids {
		ends, err := p.Second.step(st, m)
		if err != nil {
			return nil, err
		}
		for _, e := range ends {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}

/*
AltPath is `E1 | E2`: set union of (s, o) pairs.
*/
type AltPath struct {
	First, Second PathExpr
}

func (p AltPath) step(st Store, s uint32) ([]uint32, error) {
	a, err := p.First.step(st, s)
	if err != nil {
		return nil, err
	}
	b, err := p.Second.step(st, s)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint32]bool, len(a)+len(b))
	var out []uint32
	for _, x := range append(a, b...) {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out, nil
}

/*
PathResult is one emitted (start, end) pair with the path length that
produced it, carried for diagnostics (spec §4.6).
*/
type PathResult struct {
	Start, End uint32
	Length     int
}

/*
inlineVisited is the bounded-inline-array-plus-heap-spill visited set
required by spec §9 for BFS frontiers: up to 64 atoms are tracked with
no allocation, and only a query touching more distinct nodes than that
spills to a map.
*/
type inlineVisited struct {
	inline    [64]uint32
	inlineLen int
	spill     map[uint32]bool
}

func (v *inlineVisited) seen(a uint32) bool {
	for i := 0; i < v.inlineLen; i++ {
		if v.inline[i] == a {
			return true
		}
	}
	return v.spill != nil && v.spill[a]
}

func (v *inlineVisited) mark(a uint32) {
	if v.seen(a) {
		return
	}
	if v.inlineLen < len(v.inline) {
		v.inline[v.inlineLen] = a
		v.inlineLen++
		return
	}
	if v.spill == nil {
		v.spill = make(map[uint32]bool)
	}
	v.spill[a] = true
}

// snapshot returns the current visited set as a packed diagnostic form,
// reusing the teacher's posting-list bit-packer (bitutil.PackList).
func (v *inlineVisited) snapshot() string {
	all := make([]uint64, 0, v.inlineLen+len(v.spill))
	var highest uint64
	for i := 0; i < v.inlineLen; i++ {
		all = append(all, uint64(v.inline[i]))
		if uint64(v.inline[i]) > highest {
			highest = uint64(v.inline[i])
		}
	}
	for a := range v.spill {
		all = append(all, uint64(a))
		if uint64(a) > highest {
			highest = uint64(a)
		}
	}
	return bitutil.PackList(all, highest)
}

// unpackVisited restores an inlineVisited from PackList's packed form,
// used when resuming a diagnostic replay of a prior BFS.
func unpackVisited(packed string) *inlineVisited {
	v := &inlineVisited{}
	for _, a := range bitutil.UnpackList(packed) {
		v.mark(uint32(a))
	}
	return v
}

/*
TransitiveClosure evaluates `E+` (or `E*` when includeReflexive is set)
from a single bound start atom via breadth-first frontier expansion,
emitting each reachable (start, end) exactly once, in order of
increasing path length (spec §4.6).
*/
func TransitiveClosure(st Store, e PathExpr, start uint32, includeReflexive bool) ([]PathResult, error) {
	var out []PathResult
	if includeReflexive {
		out = append(out, PathResult{Start: start, End: start, Length: 0})
	}

	visited := &inlineVisited{}
	visited.mark(start)

	frontier := []uint32{start}
	length := 0

	for len(frontier) > 0 {
		length++

		var next []uint32
		for _, cur := range frontier {
			nexts, err := e.step(st, cur)
			if err != nil {
				return nil, err
			}
			for _, n := range nexts {
				if visited.seen(n) {
					continue
				}
				visited.mark(n)
				out = append(out, PathResult{Start: start, End: n, Length: length})
				next = append(next, n)
			}
		}
		frontier = next
	}

	return out, nil
}

/*
ZeroOrOne evaluates `E?`: E's direct results unioned with the reflexive
pair (start, start).
*/
func ZeroOrOne(st Store, e PathExpr, start uint32) ([]PathResult, error) {
	ends, err := e.step(st, start)
	if err != nil {
		return nil, err
	}
	out := []PathResult{{Start: start, End: start, Length: 0}}
	for _, end := range ends {
		out = append(out, PathResult{Start: start, End: end, Length: 1})
	}
	return out, nil
}
