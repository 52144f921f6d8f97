/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

/*
Solution is one variable binding row. Copying a Solution copies the
underlying map reference; operators that must not mutate a caller's
binding call Clone first.
*/
type Solution map[string]uint32

/*
Get looks up a variable's binding.
*/
func (s Solution) Get(name string) (uint32, bool) {
	a, ok := s[name]
	return a, ok
}

/*
Bound reports whether name is bound in this solution (SPARQL's bound()).
*/
func (s Solution) Bound(name string) bool {
	_, ok := s[name]
	return ok
}

/*
Clone returns an independent copy, safe for the callee to mutate.
*/
func (s Solution) Clone() Solution {
	c := make(Solution, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

/*
Merge returns a new solution with every binding of s plus every binding
of other. Callers only invoke Merge after confirming shared variables
agree (see BGP's join compatibility check); a colliding key here
silently takes other's value.
*/
func (s Solution) Merge(other Solution) Solution {
	m := s.Clone()
	for k, v := range other {
		m[k] = v
	}
	return m
}

/*
compatible reports whether s and other agree on every variable they
both bind, the join-compatibility test every join operator applies
before merging two candidate solutions.
*/
func compatible(s, other Solution) bool {
	for k, v := range other {
		if existing, ok := s[k]; ok && existing != v {
			return false
		}
	}
	return true
}

/*
Iterator is the cooperative streaming interface every query operator
implements: Advance moves to the next solution (or returns false when
exhausted or on error), Current returns the row Advance last produced,
Err reports the first error encountered.
*/
type Iterator interface {
	Advance() bool
	Current() Solution
	Err() error
}
