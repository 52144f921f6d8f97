/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

/*
AggregateFunc is one aggregate kind (spec §4.6).
*/
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

/*
Aggregation names one aggregate over Var, bound to output variable As.
*/
type Aggregation struct {
	Func AggregateFunc
	Var  string
	As   string
}

type accumulator struct {
	count int64
	sum   float64
	min   float64
	max   float64
	init  bool
}

func (a *accumulator) observe(v float64) {
	a.count++
	a.sum += v
	if !a.init {
		a.min, a.max = v, v
		a.init = true
		return
	}
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
}

func (a *accumulator) result(fn AggregateFunc) float64 {
	switch fn {
	case AggCount:
		return float64(a.count)
	case AggSum:
		return a.sum
	case AggAvg:
		if a.count == 0 {
			return 0
		}
		return a.sum / float64(a.count)
	case AggMin:
		return a.min
	case AggMax:
		return a.max
	}
	return 0
}

/*
GroupBy hashes solutions by their group-key tuple, one accumulator per
group and per requested aggregation (spec §4.6, "GROUP BY hashes
solutions by the group key tuple; one accumulator per group"). Emitting
requires draining the input, since a group's final value cannot be
known until every member has been seen; COUNT/SUM/AVG/MIN/MAX all
support this streaming-accumulator, buffered-emission shape uniformly
here, since GROUP BY makes any single aggregate a two-pass operation
regardless of whether the aggregate itself could stream ungrouped.
*/
type GroupBy struct {
	groupVars []string
	aggs      []Aggregation

	rows    []Solution
	pos     int
	err     error
}

/*
NewGroupBy drains inner, computing one output row per distinct
groupVars tuple with every requested aggregation resolved. resolve turns
a bound atom back into the numeric magnitude of the literal it interns
(query.NumResolveFromLookup, backed by the atom store); a nil resolve
treats each aggregated atom as its own magnitude, for callers already
working with raw numeric atoms rather than interned literals.
*/
func NewGroupBy(inner Iterator, groupVars []string, aggs []Aggregation, resolve NumResolve) *GroupBy {
	g := &GroupBy{groupVars: groupVars, aggs: aggs}

	type group struct {
		key  Solution
		accs map[string]*accumulator
	}
	groups := make(map[string]*group)
	var order []string

	for inner.Advance() {
		sol := inner.Current()
		key := hashKey(sol, groupVars)

		grp, ok := groups[key]
		if !ok {
			gk := make(Solution, len(groupVars))
			for _, v := range groupVars {
				if a, ok := sol.Get(v); ok {
					gk[v] = a
				}
			}
			grp = &group{key: gk, accs: make(map[string]*accumulator, len(aggs))}
			for _, agg := range aggs {
				grp.accs[agg.As] = &accumulator{}
			}
			groups[key] = grp
			order = append(order, key)
		}

		for _, agg := range aggs {
			if v, ok := sol.Get(agg.Var); ok {
				n := float64(v)
				if resolve != nil {
					if rn, ok := resolve(v); ok {
						n = rn
					}
				}
				grp.accs[agg.As].observe(n)
			}
		}
	}
	g.err = inner.Err()
	if g.err != nil {
		return g
	}

	for _, key := range order {
		grp := groups[key]
		row := grp.key.Clone()
		for _, agg := range aggs {
			row[agg.As] = uint32(grp.accs[agg.As].result(agg.Func))
		}
		g.rows = append(g.rows, row)
	}

	return g
}

func (g *GroupBy) Advance() bool {
	if g.err != nil || g.pos >= len(g.rows) {
		return false
	}
	g.pos++
	return true
}

func (g *GroupBy) Current() Solution { return g.rows[g.pos-1] }
func (g *GroupBy) Err() error        { return g.err }
