/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import (
	"github.com/krotik/quaddb/index"
	"github.com/krotik/quaddb/keymodel"
)

/*
Store is the minimal surface the query layer needs from the storage
core, satisfied by *index.Store. No adapter over *quad.Store is
provided, so named-graph queries do not go through this interface.
*/
type Store interface {
	Query(sub, pred, obj index.BoundTerm, temporalPred *keymodel.TemporalPredicate) (*index.ResultIterator, error)
}

/*
PatternIterator wraps one multi-index-store range scan and binds the
pattern's variables from each result, with no buffering (spec §4.6,
"wraps a multi-index-store iterator; no buffering").
*/
type PatternIterator struct {
	pattern Term3
	inner   *index.ResultIterator
	base    Solution
	cur     Solution
	err     error
}

/*
Term3 is a bare triple pattern without a graph term, the shape
PatternIterator scans directly against a Store.
*/
type Term3 struct {
	Subject, Predicate, Object Term
}

/*
NewPatternIterator starts a scan for pattern against st, with base
already bound (e.g. from an outer BGP's left-hand solution during
indexed nested-loop join). temporalPred is nil for a non-temporal store
or an AllTime scan.
*/
func NewPatternIterator(st Store, pattern Term3, base Solution, temporalPred *keymodel.TemporalPredicate) (*PatternIterator, error) {
	sub := pattern.Subject.ToBoundTerm(base)
	pred := pattern.Predicate.ToBoundTerm(base)
	obj := pattern.Object.ToBoundTerm(base)

	inner, err := st.Query(sub, pred, obj, temporalPred)
	if err != nil {
		return nil, err
	}
	return &PatternIterator{pattern: pattern, inner: inner, base: base}, nil
}

/*
Advance moves to the next result that is compatible with base, binding
the pattern's unbound variables from it.
*/
func (it *PatternIterator) Advance() bool {
	for it.inner.Advance() {
		r := it.inner.Current()

		cand := it.base.Clone()
		if !bindTerm(cand, it.pattern.Subject, r.Subject) {
			continue
		}
		if !bindTerm(cand, it.pattern.Predicate, r.Predicate) {
			continue
		}
		if !bindTerm(cand, it.pattern.Object, r.Object) {
			continue
		}

		it.cur = cand
		return true
	}
	it.err = it.inner.Err()
	return false
}

/*
Current returns the solution the last successful Advance produced.
*/
func (it *PatternIterator) Current() Solution { return it.cur }

/*
Err returns the first error encountered by the underlying scan.
*/
func (it *PatternIterator) Err() error { return it.err }

// bindTerm reports whether binding term to value is consistent with any
// existing binding of the same variable already present in sol, and
// performs the binding when it is a variable seen for the first time.
func bindTerm(sol Solution, term Term, value uint32) bool {
	if term.Kind() != VarTerm {
		return true
	}
	if existing, ok := sol[term.Name()]; ok {
		return existing == value
	}
	sol[term.Name()] = value
	return true
}
