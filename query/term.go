/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package query implements the streaming operator layer over the storage
core (spec §4.6, C6): pattern matching, joins, OPTIONAL/UNION, FILTER,
property paths, solution modifiers and aggregates. Every operator is a
single-threaded cooperative iterator exposing Advance/Current, mirroring
the teacher's own traversal iterators in eql/interpreter/traversal.go —
nothing is materialized unless the operator's semantics require it
(ORDER BY, DISTINCT, hash-join build side, GROUP BY).
*/
package query

import "github.com/krotik/quaddb/index"

/*
Term is a triple-pattern position: either a ground atom or a variable.
Parsing a "?x"-shaped token into a Term once, at plan time, means the
hot loop of every downstream operator only ever switches on a tag byte
instead of re-testing a string, the same plan-time resolution the
teacher's where.go/lookup.go do before entering a traversal.
*/
type Term struct {
	kind TermKind
	atom uint32
	name string
}

/*
TermKind distinguishes an atom term from a variable term.
*/
type TermKind uint8

const (
	AtomTerm TermKind = iota
	VarTerm
)

/*
Atom builds a ground term.
*/
func Atom(a uint32) Term { return Term{kind: AtomTerm, atom: a} }

/*
Var builds a variable term named name (without the leading "?").
*/
func Var(name string) Term { return Term{kind: VarTerm, name: name} }

/*
Kind reports whether this term is ground or a variable.
*/
func (t Term) Kind() TermKind { return t.kind }

/*
AtomValue returns the ground atom. Only meaningful when Kind() == AtomTerm.
*/
func (t Term) AtomValue() uint32 { return t.atom }

/*
Name returns the variable's name. Only meaningful when Kind() == VarTerm.
*/
func (t Term) Name() string { return t.name }

/*
ToBoundTerm converts a plan-time Term to the index layer's BoundTerm,
resolving a variable through a partial solution if it is already bound
there, and leaving it Unbound otherwise.
*/
func (t Term) ToBoundTerm(sol Solution) index.BoundTerm {
	switch t.kind {
	case AtomTerm:
		return index.Bound(t.atom)
	case VarTerm:
		if a, ok := sol.Get(t.name); ok {
			return index.Bound(a)
		}
	}
	return index.Unbound
}

/*
Pattern is one triple pattern: a Subject/Predicate/Object each a Term,
optionally scoped to a named graph term (AtomTerm only; an unbound graph
term means "default graph" for non-quad-aware callers).
*/
type Pattern struct {
	Subject, Predicate, Object Term
	Graph                      Term
}
