/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krotik/quaddb/atom"
	"github.com/krotik/quaddb/index"
	"github.com/krotik/quaddb/keymodel"
)

// Small fixed vocabulary shared by every test in this file. Atoms are
// plain uint32s at this layer; interning lives one layer up in package
// atom.
const (
	alice uint32 = 100
	bob   uint32 = 101
	carol uint32 = 102

	knows  uint32 = 200
	name   uint32 = 201
	age    uint32 = 202

	aliceName uint32 = 300
	bobName   uint32 = 301
	carolName uint32 = 302
)

func openTestStore(t *testing.T) *index.Store {
	t.Helper()
	st, err := index.Open(t.TempDir(), false, 64, keymodel.SystemClock{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func openTestAtomStore(t *testing.T) *atom.Store {
	t.Helper()
	st, err := atom.Open(t.TempDir(), 64)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func drainSolutions(it Iterator) ([]Solution, error) {
	var out []Solution
	for it.Advance() {
		out = append(out, it.Current())
	}
	return out, it.Err()
}

func TestPatternIteratorBindsVariables(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	require.NoError(t, st.InsertTriple(alice, knows, carol))

	pattern := Term3{Subject: Atom(alice), Predicate: Atom(knows), Object: Var("friend")}
	it, err := NewPatternIterator(st, pattern, Solution{}, nil)
	require.NoError(t, err)

	rows, err := drainSolutions(it)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var friends []uint32
	for _, r := range rows {
		f, ok := r.Get("friend")
		require.True(t, ok)
		friends = append(friends, f)
	}
	assert.ElementsMatch(t, []uint32{bob, carol}, friends)
}

func TestBGPJoinsAcrossPatterns(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	require.NoError(t, st.InsertTriple(bob, name, bobName))
	require.NoError(t, st.InsertTriple(carol, name, carolName))

	patterns := []Term3{
		{Subject: Atom(alice), Predicate: Atom(knows), Object: Var("friend")},
		{Subject: Var("friend"), Predicate: Atom(name), Object: Var("friendName")},
	}
	bgp, err := NewBGP(st, st.Cardinality, patterns, nil)
	require.NoError(t, err)

	rows, err := drainSolutions(bgp)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	friend, _ := rows[0].Get("friend")
	friendName, _ := rows[0].Get("friendName")
	assert.Equal(t, bob, friend)
	assert.Equal(t, bobName, friendName)
}

func TestBGPEmptyOnIncompatibleJoin(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	// alice never knows carol, so the ground first pattern matches nothing
	// and the join never reaches the second pattern.
	require.NoError(t, st.InsertTriple(bob, name, bobName))

	patterns := []Term3{
		{Subject: Atom(alice), Predicate: Atom(knows), Object: Atom(carol)},
		{Subject: Atom(carol), Predicate: Atom(name), Object: Var("n")},
	}
	bgp, err := NewBGP(st, st.Cardinality, patterns, nil)
	require.NoError(t, err)

	rows, err := drainSolutions(bgp)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBGPUsesHashJoinAboveThreshold(t *testing.T) {
	st := openTestStore(t)

	// Push the "knows" predicate's cardinality above hashJoinThreshold so
	// the second pattern's join picks the hash-join strategy.
	for i := uint32(0); i < hashJoinThreshold+10; i++ {
		require.NoError(t, st.InsertTriple(alice, knows, 1000+i))
	}
	require.NoError(t, st.InsertTriple(1000, name, aliceName))

	patterns := []Term3{
		{Subject: Atom(alice), Predicate: Atom(knows), Object: Var("x")},
		{Subject: Var("x"), Predicate: Atom(name), Object: Var("n")},
	}
	bgp, err := NewBGP(st, st.Cardinality, patterns, nil)
	require.NoError(t, err)

	rows, err := drainSolutions(bgp)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	x, _ := rows[0].Get("x")
	assert.Equal(t, uint32(1000), x)
}

func TestOptionalEmitsLeftWhenNoMatch(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	require.NoError(t, st.InsertTriple(bob, name, bobName))
	// carol has no name.
	require.NoError(t, st.InsertTriple(alice, knows, carol))

	left, err := NewPatternIterator(st, Term3{Subject: Atom(alice), Predicate: Atom(knows), Object: Var("friend")}, Solution{}, nil)
	require.NoError(t, err)

	opt := NewOptional(left, func(sol Solution) (Iterator, error) {
		return NewPatternIterator(st, Term3{Subject: Var("friend"), Predicate: Atom(name), Object: Var("n")}, sol, nil)
	})

	rows, err := drainSolutions(opt)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var sawUnbound, sawBound bool
	for _, r := range rows {
		if r.Bound("n") {
			sawBound = true
		} else {
			sawUnbound = true
		}
	}
	assert.True(t, sawBound, "expected bob's row to bind n")
	assert.True(t, sawUnbound, "expected carol's row to leave n unbound")
}

func TestUnionConcatenatesBothSides(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	require.NoError(t, st.InsertTriple(alice, name, aliceName))

	left, err := NewPatternIterator(st, Term3{Subject: Atom(alice), Predicate: Atom(knows), Object: Var("x")}, Solution{}, nil)
	require.NoError(t, err)
	right, err := NewPatternIterator(st, Term3{Subject: Atom(alice), Predicate: Atom(name), Object: Var("x")}, Solution{}, nil)
	require.NoError(t, err)

	rows, err := drainSolutions(NewUnion(left, right))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFilterDropsFailingRows(t *testing.T) {
	st := openTestStore(t)
	atoms := openTestAtomStore(t)

	age30, err := atoms.Intern([]byte("30"))
	require.NoError(t, err)
	age15, err := atoms.Intern([]byte("15"))
	require.NoError(t, err)
	require.NoError(t, st.InsertTriple(alice, age, age30))
	require.NoError(t, st.InsertTriple(bob, age, age15))

	it, err := NewPatternIterator(st, Term3{Subject: Var("p"), Predicate: Atom(age), Object: Var("a")}, Solution{}, nil)
	require.NoError(t, err)

	// "a" is bound to an atom interning a numeric literal, not an IRI;
	// VarExpr resolves it back to its magnitude via the atom store
	// before comparing.
	resolve := NumResolveFromLookup(atoms.Lookup)
	filtered := NewFilter(it, CompareExpr{Left: VarExpr{Name: "a", Resolve: resolve}, Right: LitExpr{Value: Num(18)}, Op: OpGe})

	rows, err := drainSolutions(filtered)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	p, _ := rows[0].Get("p")
	assert.Equal(t, alice, p)
}

func TestFilterEBVSemantics(t *testing.T) {
	assert.False(t, Invalid.EBV())
	assert.False(t, Num(0).EBV())
	assert.True(t, Num(1).EBV())
	assert.False(t, Str("").EBV())
	assert.True(t, Str("x").EBV())
	assert.True(t, IRI(1).EBV())
}

func TestArithExprDivisionByZeroIsInvalid(t *testing.T) {
	e := ArithExpr{Left: LitExpr{Value: Num(1)}, Right: LitExpr{Value: Num(0)}, Op: OpDiv}
	v := e.Eval(Solution{})
	assert.False(t, v.EBV())
}

func TestArithExprComputesResult(t *testing.T) {
	e := ArithExpr{Left: LitExpr{Value: Num(4)}, Right: LitExpr{Value: Num(2)}, Op: OpAdd}
	v := e.Eval(Solution{})
	assert.Equal(t, Num(6), v)
}

func TestBoundExpr(t *testing.T) {
	sol := Solution{"x": 1}
	assert.True(t, BoundExpr{Name: "x"}.Eval(sol).EBV())
	assert.False(t, BoundExpr{Name: "y"}.Eval(sol).EBV())
}

func TestDistinctDropsDuplicates(t *testing.T) {
	rows := []Solution{{"x": 1}, {"x": 1}, {"x": 2}}
	d := NewDistinct(&sliceIterator{rows: rows}, []string{"x"})

	out, err := drainSolutions(d)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestOrderByStableMultiKey(t *testing.T) {
	rows := []Solution{
		{"a": 1, "b": 2},
		{"a": 1, "b": 1},
		{"a": 0, "b": 9},
	}
	ob := NewOrderBy(&sliceIterator{rows: rows}, []OrderKey{{Var: "a"}, {Var: "b"}})

	out, err := drainSolutions(ob)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, uint32(0), out[0]["a"])
	assert.Equal(t, uint32(1), out[1]["a"])
	assert.Equal(t, uint32(1), out[1]["b"])
	assert.Equal(t, uint32(2), out[2]["b"])
}

func TestSliceLimitOffset(t *testing.T) {
	rows := []Solution{{"x": 0}, {"x": 1}, {"x": 2}, {"x": 3}}
	sl := NewSlice(&sliceIterator{rows: rows}, 1, 2)

	out, err := drainSolutions(sl)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(1), out[0]["x"])
	assert.Equal(t, uint32(2), out[1]["x"])
}

func TestSliceUnboundedLimit(t *testing.T) {
	rows := []Solution{{"x": 0}, {"x": 1}}
	sl := NewSlice(&sliceIterator{rows: rows}, 0, -1)

	out, err := drainSolutions(sl)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestGroupByAggregates(t *testing.T) {
	rows := []Solution{
		{"g": 1, "v": 10},
		{"g": 1, "v": 20},
		{"g": 2, "v": 5},
	}
	gb := NewGroupBy(&sliceIterator{rows: rows}, []string{"g"}, []Aggregation{
		{Func: AggSum, Var: "v", As: "total"},
		{Func: AggCount, Var: "v", As: "n"},
	}, nil)

	out, err := drainSolutions(gb)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byGroup := map[uint32]Solution{}
	for _, r := range out {
		byGroup[r["g"]] = r
	}
	assert.Equal(t, uint32(30), byGroup[1]["total"])
	assert.Equal(t, uint32(2), byGroup[1]["n"])
	assert.Equal(t, uint32(5), byGroup[2]["total"])
}

func TestGroupByResolvesInternedLiterals(t *testing.T) {
	atoms := openTestAtomStore(t)

	ten, err := atoms.Intern([]byte("10"))
	require.NoError(t, err)
	twenty, err := atoms.Intern([]byte("20"))
	require.NoError(t, err)

	rows := []Solution{
		{"g": 1, "v": ten},
		{"g": 1, "v": twenty},
	}
	gb := NewGroupBy(&sliceIterator{rows: rows}, []string{"g"}, []Aggregation{
		{Func: AggSum, Var: "v", As: "total"},
		{Func: AggAvg, Var: "v", As: "avg"},
	}, NumResolveFromLookup(atoms.Lookup))

	out, err := drainSolutions(gb)
	require.NoError(t, err)
	require.Len(t, out, 1)
	// The interned atom ids for "10"/"20" are arbitrary intern-order
	// integers; only resolving them back through the atom store yields
	// the real magnitudes 10 and 20 rather than the atom ids themselves.
	assert.Equal(t, uint32(30), out[0]["total"])
	assert.Equal(t, uint32(15), out[0]["avg"])
}

func TestTransitiveClosureBFSOrder(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	require.NoError(t, st.InsertTriple(bob, knows, carol))

	results, err := TransitiveClosure(st, PredPath{Predicate: knows}, alice, false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, bob, results[0].End)
	assert.Equal(t, 1, results[0].Length)
	assert.Equal(t, carol, results[1].End)
	assert.Equal(t, 2, results[1].Length)
}

func TestTransitiveClosureReflexive(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))

	results, err := TransitiveClosure(st, PredPath{Predicate: knows}, alice, true)
	require.NoError(t, err)
	require.True(t, len(results) >= 1)
	assert.Equal(t, alice, results[0].Start)
	assert.Equal(t, alice, results[0].End)
	assert.Equal(t, 0, results[0].Length)
}

func TestTransitiveClosureHandlesCycles(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	require.NoError(t, st.InsertTriple(bob, knows, alice))

	results, err := TransitiveClosure(st, PredPath{Predicate: knows}, alice, false)
	require.NoError(t, err)
	// alice -> bob -> alice(seen, skipped): exactly one result.
	require.Len(t, results, 1)
	assert.Equal(t, bob, results[0].End)
}

func TestZeroOrOnePath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))

	results, err := ZeroOrOne(st, PredPath{Predicate: knows}, alice)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, alice, results[0].End)
	assert.Equal(t, bob, results[1].End)
}

func TestInversePath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))

	out, err := InversePath{Predicate: knows}.step(st, bob)
	require.NoError(t, err)
	assert.Equal(t, []uint32{alice}, out)
}

func TestSeqAndAltPath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertTriple(alice, knows, bob))
	require.NoError(t, st.InsertTriple(bob, name, bobName))
	require.NoError(t, st.InsertTriple(alice, name, aliceName))

	seq := SeqPath{First: PredPath{Predicate: knows}, Second: PredPath{Predicate: name}}
	out, err := seq.step(st, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint32{bobName}, out)

	alt := AltPath{First: PredPath{Predicate: knows}, Second: PredPath{Predicate: name}}
	out2, err := alt.step(st, alice)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{bob, aliceName}, out2)
}

// sliceIterator is a bare in-memory Iterator over a fixed slice, used to
// test solution modifiers/aggregates without going through the storage
// layer.
type sliceIterator struct {
	rows []Solution
	pos  int
}

func (s *sliceIterator) Advance() bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceIterator) Current() Solution { return s.rows[s.pos-1] }
func (s *sliceIterator) Err() error        { return nil }
