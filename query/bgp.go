/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import (
	"sort"

	"github.com/krotik/quaddb/index"
	"github.com/krotik/quaddb/keymodel"
)

// hashJoinThreshold is the right-hand pattern's cardinality estimate
// above which a hash join is used instead of indexed nested-loop (spec
// §4.6). The left side's size is not considered.
const hashJoinThreshold = 1000

/*
BGP evaluates a basic graph pattern: a sequence of triple patterns
sharing variables, reordered by ascending estimated cardinality and
joined left to right.
*/
type BGP struct {
	st           Store
	card         *index.CardinalityCounters
	patterns     []Term3
	temporalPred *keymodel.TemporalPredicate

	left Iterator
	cur  Solution
	err  error
}

/*
NewBGP builds a BGP evaluator. Patterns are reordered once, at
construction, by estimateCardinality; the first pattern seeds the left
side with a full scan bound only by its own ground terms, and every
following pattern is joined on top.
*/
func NewBGP(st Store, card *index.CardinalityCounters, patterns []Term3, temporalPred *keymodel.TemporalPredicate) (*BGP, error) {
	ordered := reorderByCardinality(card, patterns)

	b := &BGP{st: st, card: card, patterns: ordered, temporalPred: temporalPred}

	if len(ordered) == 0 {
		return b, nil
	}

	first, err := NewPatternIterator(st, ordered[0], Solution{}, temporalPred)
	if err != nil {
		return nil, err
	}
	b.left = first

	bound := variableNames(ordered[0])
	for _, p := range ordered[1:] {
		b.left = b.join(b.left, p, bound)
		for name := range variableNames(p) {
			bound[name] = struct{}{}
		}
	}

	return b, nil
}

func variableNames(p Term3) map[string]struct{} {
	names := make(map[string]struct{}, 3)
	for _, t := range []Term{p.Subject, p.Predicate, p.Object} {
		if t.Kind() == VarTerm {
			names[t.Name()] = struct{}{}
		}
	}
	return names
}

func estimateCardinality(card *index.CardinalityCounters, p Term3) uint64 {
	if p.Predicate.Kind() == AtomTerm {
		return card.PredicateCount(p.Predicate.AtomValue())
	}
	if p.Object.Kind() == AtomTerm {
		return card.ObjectCount(p.Object.AtomValue())
	}
	return card.Total()
}

func reorderByCardinality(card *index.CardinalityCounters, patterns []Term3) []Term3 {
	ordered := make([]Term3, len(patterns))
	copy(ordered, patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return estimateCardinality(card, ordered[i]) < estimateCardinality(card, ordered[j])
	})
	return ordered
}

// join picks a join strategy for the next pattern based on its
// estimated cardinality relative to hashJoinThreshold (spec §4.6): a
// low-cardinality right-hand pattern drives indexed nested-loop, a
// high-cardinality one drives a hash join keyed on shared variables.
func (b *BGP) join(left Iterator, right Term3, bound map[string]struct{}) Iterator {
	est := estimateCardinality(b.card, right)
	if est <= hashJoinThreshold {
		return newNestedLoopJoin(b.st, left, right, b.temporalPred)
	}
	return newHashJoin(b.st, left, right, bound, b.temporalPred)
}

/*
Advance moves to the next joined solution.
*/
func (b *BGP) Advance() bool {
	if b.left == nil {
		return false
	}
	if !b.left.Advance() {
		b.err = b.left.Err()
		return false
	}
	b.cur = b.left.Current()
	return true
}

/*
Current returns the last solution produced.
*/
func (b *BGP) Current() Solution { return b.cur }

/*
Err returns the first error encountered while joining.
*/
func (b *BGP) Err() error { return b.err }

/*
nestedLoopJoin substitutes each left solution's bindings into right and
opens a fresh pattern scan per left row (spec §4.6's indexed
nested-loop strategy).
*/
type nestedLoopJoin struct {
	st           Store
	left         Iterator
	right        Term3
	temporalPred *keymodel.TemporalPredicate

	inner *PatternIterator
	cur   Solution
	err   error
}

func newNestedLoopJoin(st Store, left Iterator, right Term3, temporalPred *keymodel.TemporalPredicate) *nestedLoopJoin {
	return &nestedLoopJoin{st: st, left: left, right: right, temporalPred: temporalPred}
}

func (j *nestedLoopJoin) Advance() bool {
	for {
		if j.inner != nil {
			if j.inner.Advance() {
				j.cur = j.inner.Current()
				return true
			}
			if err := j.inner.Err(); err != nil {
				j.err = err
				return false
			}
			j.inner = nil
		}

		if !j.left.Advance() {
			j.err = j.left.Err()
			return false
		}

		inner, err := NewPatternIterator(j.st, j.right, j.left.Current(), j.temporalPred)
		if err != nil {
			j.err = err
			return false
		}
		j.inner = inner
	}
}

func (j *nestedLoopJoin) Current() Solution { return j.cur }
func (j *nestedLoopJoin) Err() error        { return j.err }

/*
hashJoin materializes the right pattern's own unbound scan (the build
side) into a multimap keyed by its shared-variable tuple with left, then
streams left as the probe side (spec §4.6's hash join strategy). The
build side is always the right pattern, whichever side is smaller.
*/
type hashJoin struct {
	left         Iterator
	right        Term3
	sharedVars   []string
	build        map[string][]Solution
	err          error

	probeCur Solution
	matches  []Solution
	matchIdx int
	cur      Solution
}

func newHashJoin(st Store, left Iterator, right Term3, bound map[string]struct{}, temporalPred *keymodel.TemporalPredicate) *hashJoin {
	j := &hashJoin{left: left, right: right}

	shared := sharedVariableNames(right, bound)

	buildIt, err := NewPatternIterator(st, right, Solution{}, temporalPred)
	if err != nil {
		j.err = err
		return j
	}

	j.build = make(map[string][]Solution)
	for buildIt.Advance() {
		row := buildIt.Current()
		key := hashKey(row, shared)
		j.build[key] = append(j.build[key], row)
	}
	if err := buildIt.Err(); err != nil {
		j.err = err
	}
	j.sharedVars = shared

	return j
}

// sharedVariableNames returns the variables in p that are already bound
// on the left side of the join, the only ones a build/probe key can
// legitimately be keyed on. A variable p introduces fresh (not in bound)
// has no counterpart on the left, so including it in the key would
// compare against the left's zero value and never match.
func sharedVariableNames(p Term3, bound map[string]struct{}) []string {
	var names []string
	for _, t := range []Term{p.Subject, p.Predicate, p.Object} {
		if t.Kind() == VarTerm {
			if _, ok := bound[t.Name()]; ok {
				names = append(names, t.Name())
			}
		}
	}
	return names
}

func hashKey(sol Solution, vars []string) string {
	key := make([]byte, 0, 4*len(vars))
	for _, v := range vars {
		a := sol[v]
		key = append(key, byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
	}
	return string(key)
}

func (j *hashJoin) Advance() bool {
	if j.err != nil {
		return false
	}

	for {
		if j.matchIdx < len(j.matches) {
			m := j.matches[j.matchIdx]
			j.matchIdx++
			if compatible(j.probeCur, m) {
				j.cur = j.probeCur.Merge(m)
				return true
			}
			continue
		}

		if !j.left.Advance() {
			j.err = j.left.Err()
			return false
		}
		j.probeCur = j.left.Current()
		j.matches = j.build[hashKey(j.probeCur, j.sharedVars)]
		j.matchIdx = 0
	}
}

func (j *hashJoin) Current() Solution { return j.cur }
func (j *hashJoin) Err() error        { return j.err }
