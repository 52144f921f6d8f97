/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import "strconv"

/*
Value is a filter expression's runtime value: either a numeric literal,
a string literal, an IRI-tagged atom, or invalid (the result of an
unbound variable or a type error). Invalid never propagates an error; it
propagates SPARQL's "effective boolean value" false, per spec §4.6's
failure rule ("arithmetic on non-numeric values... produce unbound
results, not fatal").
*/
type Value struct {
	valid   bool
	isNum   bool
	num     float64
	str     string
	isIRI   bool
	atom    uint32
	hasAtom bool
}

/*
Invalid is the zero Value: unbound or a type error.
*/
var Invalid = Value{}

/*
Num builds a numeric value.
*/
func Num(n float64) Value { return Value{valid: true, isNum: true, num: n} }

/*
Str builds a string literal value.
*/
func Str(s string) Value { return Value{valid: true, str: s} }

/*
IRI builds an IRI-tagged atom value.
*/
func IRI(atom uint32) Value { return Value{valid: true, isIRI: true, atom: atom, hasAtom: true} }

/*
EBV computes the SPARQL effective boolean value: an invalid value or a
numeric zero is false, a numeric non-zero is true, an empty string is
false, any other string is true, an IRI is true.
*/
func (v Value) EBV() bool {
	if !v.valid {
		return false
	}
	if v.isNum {
		return v.num != 0
	}
	if v.isIRI {
		return true
	}
	return v.str != ""
}

/*
Expr is a filter expression node. Eval evaluates it against one
candidate solution; nodes that turn a bound atom back into a string or
number (StrExpr, VarExpr) carry their own Resolve function for that.
*/
type Expr interface {
	Eval(sol Solution) Value
}

/*
NumResolve resolves a bound atom back to the numeric magnitude of the
literal it interns, mirroring StrExpr's atom-to-string resolution. A
variable bound to a non-numeric atom (a real IRI) reports ok = false.
*/
type NumResolve func(atom uint32) (n float64, ok bool)

/*
NumResolveFromLookup builds a NumResolve over an atom store's Lookup,
resolving an atom's interned content to its decimal string form and
parsing that as a float64 (spec §4.6's atom-to-string-to-number path for
arithmetic and SUM/AVG/MIN/MAX over bound variables).
*/
func NumResolveFromLookup(lookup func(atom uint32) ([]byte, error)) NumResolve {
	return func(atom uint32) (float64, bool) {
		content, err := lookup(atom)
		if err != nil {
			return 0, false
		}
		n, err := strconv.ParseFloat(string(content), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
}

/*
VarExpr looks up a variable's binding. When Resolve is set and the
binding resolves to a number, it evaluates numerically; otherwise it
falls back to an IRI-tagged atom, since anything Resolve can't parse as
a number is treated as an opaque identifier rather than a type error.
*/
type VarExpr struct {
	Name    string
	Resolve NumResolve
}

func (e VarExpr) Eval(sol Solution) Value {
	a, ok := sol.Get(e.Name)
	if !ok {
		return Invalid
	}
	if e.Resolve != nil {
		if n, ok := e.Resolve(a); ok {
			return Num(n)
		}
	}
	return IRI(a)
}

/*
LitExpr is a constant value.
*/
type LitExpr struct {
	Value Value
}

func (e LitExpr) Eval(Solution) Value { return e.Value }

/*
BoundExpr implements SPARQL's bound(?var).
*/
type BoundExpr struct {
	Name string
}

func (e BoundExpr) Eval(sol Solution) Value {
	if sol.Bound(e.Name) {
		return Value{valid: true, isNum: true, num: 1}
	}
	return Value{valid: true, isNum: true, num: 0}
}

/*
IsIRIExpr implements SPARQL's isIRI(?var): true when the variable is
bound to any atom (every atom in this store denotes an IRI or is
treated as one for this purpose; literal-typed atoms are out of scope).
*/
type IsIRIExpr struct {
	Inner Expr
}

func (e IsIRIExpr) Eval(sol Solution) Value {
	v := e.Inner.Eval(sol)
	if v.valid && v.isIRI {
		return Value{valid: true, isNum: true, num: 1}
	}
	return Value{valid: true, isNum: true, num: 0}
}

/*
StrExpr implements SPARQL's str(): the decimal string form of a bound
atom, resolved through resolve.
*/
type StrExpr struct {
	Inner   Expr
	Resolve func(atom uint32) string
}

func (e StrExpr) Eval(sol Solution) Value {
	v := e.Inner.Eval(sol)
	if !v.valid {
		return Invalid
	}
	if v.isIRI {
		if e.Resolve != nil {
			return Str(e.Resolve(v.atom))
		}
		return Str(strconv.FormatUint(uint64(v.atom), 10))
	}
	return Str(v.str)
}

/*
CompareOp is one comparison operator.
*/
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

/*
CompareExpr compares two sub-expressions numerically if both are
numeric, lexicographically (spec §4.6, "lexicographic string compare")
if both are strings, and by atom id if both are IRI atoms; any other
mix is a type error (Invalid).
*/
type CompareExpr struct {
	Left, Right Expr
	Op          CompareOp
}

func (e CompareExpr) Eval(sol Solution) Value {
	l, r := e.Left.Eval(sol), e.Right.Eval(sol)
	if !l.valid || !r.valid {
		return Invalid
	}

	var cmp int
	switch {
	case l.isNum && r.isNum:
		switch {
		case l.num < r.num:
			cmp = -1
		case l.num > r.num:
			cmp = 1
		}
	case !l.isNum && !r.isNum && !l.isIRI && !r.isIRI:
		switch {
		case l.str < r.str:
			cmp = -1
		case l.str > r.str:
			cmp = 1
		}
	case l.isIRI && r.isIRI:
		switch {
		case l.atom < r.atom:
			cmp = -1
		case l.atom > r.atom:
			cmp = 1
		}
	default:
		return Invalid
	}

	var result bool
	switch e.Op {
	case OpEq:
		result = cmp == 0
	case OpNe:
		result = cmp != 0
	case OpLt:
		result = cmp < 0
	case OpLe:
		result = cmp <= 0
	case OpGt:
		result = cmp > 0
	case OpGe:
		result = cmp >= 0
	}
	if result {
		return Value{valid: true, isNum: true, num: 1}
	}
	return Value{valid: true, isNum: true, num: 0}
}

/*
ArithOp is one arithmetic operator over numeric literals.
*/
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

/*
ArithExpr performs arithmetic on two numeric sub-expressions; a
non-numeric operand or division by zero evaluates to Invalid rather
than erroring the query (spec §4.6's failure rule).
*/
type ArithExpr struct {
	Left, Right Expr
	Op          ArithOp
}

func (e ArithExpr) Eval(sol Solution) Value {
	l, r := e.Left.Eval(sol), e.Right.Eval(sol)
	if !l.valid || !r.valid || !l.isNum || !r.isNum {
		return Invalid
	}
	switch e.Op {
	case OpAdd:
		return Num(l.num + r.num)
	case OpSub:
		return Num(l.num - r.num)
	case OpMul:
		return Num(l.num * r.num)
	case OpDiv:
		if r.num == 0 {
			return Invalid
		}
		return Num(l.num / r.num)
	}
	return Invalid
}

/*
Filter drops candidate solutions for which expr's effective boolean
value is false, including any unbound-variable or type-error case
(spec §4.6, FILTER).
*/
type Filter struct {
	inner Iterator
	expr  Expr
	cur   Solution
	err   error
}

/*
NewFilter wraps inner with expr.
*/
func NewFilter(inner Iterator, expr Expr) *Filter {
	return &Filter{inner: inner, expr: expr}
}

func (f *Filter) Advance() bool {
	for f.inner.Advance() {
		sol := f.inner.Current()
		if f.expr.Eval(sol).EBV() {
			f.cur = sol
			return true
		}
	}
	f.err = f.inner.Err()
	return false
}

func (f *Filter) Current() Solution { return f.cur }
func (f *Filter) Err() error        { return f.err }
