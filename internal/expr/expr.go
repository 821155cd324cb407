// Package expr is the plan-time scalar expression algebra (spec §4.7,
// §4.8, §4.9): index-based field references over a resolved Scope,
// evaluated against a row, transformed for optimization, and split
// into conjunctive-normal-form clauses for pushdown.
package expr

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/value"
)

// Row is a fully-materialized tuple of column values.
type Row []value.Value

// Expression is a plan-time scalar expression.
type Expression interface {
	fmt.Stringer
	// Evaluate computes this expression's value against row. row is nil
	// for constant-scope evaluation (spec §4.7's "evaluated under a
	// constant-only scope" contexts), in which case any Field reference
	// is itself a planner bug, not a runtime condition.
	Evaluate(row Row) (value.Value, error)
	exprNode()
}

// -----------------------------------------------------------------------------
// Leaves
// -----------------------------------------------------------------------------

// Constant is a literal value baked into the plan.
type Constant struct {
	Value value.Value
}

func (c *Constant) exprNode() {}
func (c *Constant) String() string                       { return c.Value.String() }
func (c *Constant) Evaluate(Row) (value.Value, error)     { return c.Value, nil }

// FieldOrigin is a Field's display-only provenance, carried through
// planning so EXPLAIN output can name columns instead of indices.
type FieldOrigin struct {
	Table *string
	Label string
}

// Field reads column Index out of the row passed to Evaluate.
type Field struct {
	Index  int
	Origin *FieldOrigin
}

func (f *Field) exprNode() {}
func (f *Field) String() string {
	switch {
	case f.Origin == nil:
		return fmt.Sprintf("#%d", f.Index)
	case f.Origin.Table != nil:
		return *f.Origin.Table + "." + f.Origin.Label
	default:
		return f.Origin.Label
	}
}
func (f *Field) Evaluate(row Row) (value.Value, error) {
	if row == nil || f.Index >= len(row) {
		return value.Null(), nil
	}
	return row[f.Index], nil
}

// -----------------------------------------------------------------------------
// Unary operators
// -----------------------------------------------------------------------------

type unaryKind int

const (
	unaryNot unaryKind = iota
	unaryIsNull
	unaryPlus
	unaryNegative
)

// Unary wraps Not, IsNull, Plus, and Negative.
type Unary struct {
	Kind    unaryKind
	Operand Expression
}

func Not(e Expression) *Unary      { return &Unary{Kind: unaryNot, Operand: e} }
func IsNull(e Expression) *Unary   { return &Unary{Kind: unaryIsNull, Operand: e} }
func Plus(e Expression) *Unary     { return &Unary{Kind: unaryPlus, Operand: e} }
func Negative(e Expression) *Unary { return &Unary{Kind: unaryNegative, Operand: e} }

func (u *Unary) exprNode() {}
func (u *Unary) String() string {
	switch u.Kind {
	case unaryNot:
		return "NOT " + u.Operand.String()
	case unaryIsNull:
		return u.Operand.String() + " IS NULL"
	case unaryNegative:
		return "-" + u.Operand.String()
	default:
		return u.Operand.String()
	}
}

func (u *Unary) Evaluate(row Row) (value.Value, error) {
	v, err := u.Operand.Evaluate(row)
	if err != nil {
		return value.Value{}, err
	}
	switch u.Kind {
	case unaryNot:
		if v.IsNull() {
			return value.Null(), nil
		}
		if v.Kind != value.KindBool {
			return value.Value{}, dberrors.New(dberrors.Evaluate, "can't negate %s", v)
		}
		return value.Bool(!v.Bool), nil
	case unaryIsNull:
		return value.Bool(v.IsNull()), nil
	case unaryPlus:
		switch v.Kind {
		case value.KindFloat, value.KindInteger:
			return v, nil
		case value.KindNull:
			return value.Null(), nil
		default:
			return value.Value{}, dberrors.New(dberrors.Evaluate, "can't take the positive of %s", v)
		}
	case unaryNegative:
		switch v.Kind {
		case value.KindInteger:
			return value.Integer(-v.I), nil
		case value.KindFloat:
			return value.Float(-v.F), nil
		case value.KindNull:
			return value.Null(), nil
		default:
			return value.Value{}, dberrors.New(dberrors.Evaluate, "can't negate %s", v)
		}
	}
	return value.Value{}, dberrors.New(dberrors.Internal, "unknown unary operator")
}

// -----------------------------------------------------------------------------
// Binary operators
// -----------------------------------------------------------------------------

type binaryKind int

const (
	binaryAnd binaryKind = iota
	binaryOr
	binaryEqual
	binaryNotEqual
	binaryGreaterThan
	binaryGreaterThanOrEqual
	binaryLessThan
	binaryLessThanOrEqual
	binaryAdd
	binarySubtract
	binaryMultiply
	binaryDivide
	binaryExponentiate
	binaryLike
)

// Binary wraps every two-operand operator.
type Binary struct {
	Kind  binaryKind
	Left  Expression
	Right Expression
}

func And(l, r Expression) *Binary                { return &Binary{Kind: binaryAnd, Left: l, Right: r} }
func Or(l, r Expression) *Binary                 { return &Binary{Kind: binaryOr, Left: l, Right: r} }
func Equal(l, r Expression) *Binary              { return &Binary{Kind: binaryEqual, Left: l, Right: r} }
func NotEqual(l, r Expression) *Binary           { return &Binary{Kind: binaryNotEqual, Left: l, Right: r} }
func GreaterThan(l, r Expression) *Binary        { return &Binary{Kind: binaryGreaterThan, Left: l, Right: r} }
func GreaterThanOrEqual(l, r Expression) *Binary {
	return &Binary{Kind: binaryGreaterThanOrEqual, Left: l, Right: r}
}
func LessThan(l, r Expression) *Binary { return &Binary{Kind: binaryLessThan, Left: l, Right: r} }
func LessThanOrEqual(l, r Expression) *Binary {
	return &Binary{Kind: binaryLessThanOrEqual, Left: l, Right: r}
}
func Add(l, r Expression) *Binary          { return &Binary{Kind: binaryAdd, Left: l, Right: r} }
func Subtract(l, r Expression) *Binary     { return &Binary{Kind: binarySubtract, Left: l, Right: r} }
func Multiply(l, r Expression) *Binary     { return &Binary{Kind: binaryMultiply, Left: l, Right: r} }
func Divide(l, r Expression) *Binary       { return &Binary{Kind: binaryDivide, Left: l, Right: r} }
func Exponentiate(l, r Expression) *Binary { return &Binary{Kind: binaryExponentiate, Left: l, Right: r} }
func Like(l, r Expression) *Binary         { return &Binary{Kind: binaryLike, Left: l, Right: r} }

func (b *Binary) exprNode() {}

// IsAnd, IsOr, and IsEqual let a rewrite pass outside this package
// recognize these node kinds without exposing binaryKind itself.
func (b *Binary) IsAnd() bool   { return b.Kind == binaryAnd }
func (b *Binary) IsOr() bool    { return b.Kind == binaryOr }
func (b *Binary) IsEqual() bool { return b.Kind == binaryEqual }

var binarySymbols = map[binaryKind]string{
	binaryAnd: "AND", binaryOr: "OR", binaryEqual: "=", binaryNotEqual: "!=",
	binaryGreaterThan: ">", binaryGreaterThanOrEqual: ">=",
	binaryLessThan: "<", binaryLessThanOrEqual: "<=",
	binaryAdd: "+", binarySubtract: "-", binaryMultiply: "*", binaryDivide: "/",
	binaryExponentiate: "^", binaryLike: "LIKE",
}

func (b *Binary) String() string {
	return fmt.Sprintf("%s %s %s", b.Left.String(), binarySymbols[b.Kind], b.Right.String())
}

func (b *Binary) Evaluate(row Row) (value.Value, error) {
	lv, err := b.Left.Evaluate(row)
	if err != nil {
		return value.Value{}, err
	}
	rv, err := b.Right.Evaluate(row)
	if err != nil {
		return value.Value{}, err
	}
	switch b.Kind {
	case binaryAnd:
		return evalAnd(lv, rv)
	case binaryOr:
		return evalOr(lv, rv)
	case binaryEqual, binaryNotEqual, binaryGreaterThan, binaryGreaterThanOrEqual, binaryLessThan, binaryLessThanOrEqual:
		return evalCompare(b.Kind, lv, rv)
	case binaryAdd, binarySubtract, binaryMultiply, binaryDivide, binaryExponentiate:
		return evalArithmetic(b.Kind, lv, rv)
	case binaryLike:
		return evalLike(lv, rv)
	}
	return value.Value{}, dberrors.New(dberrors.Internal, "unknown binary operator")
}

func evalAnd(l, r value.Value) (value.Value, error) {
	switch {
	case l.Kind == value.KindBool && r.Kind == value.KindBool:
		return value.Bool(l.Bool && r.Bool), nil
	case l.Kind == value.KindBool && r.IsNull():
		if !l.Bool {
			return value.Bool(false), nil
		}
		return value.Null(), nil
	case l.IsNull() && r.Kind == value.KindBool:
		if !r.Bool {
			return value.Bool(false), nil
		}
		return value.Null(), nil
	case l.IsNull() && r.IsNull():
		return value.Null(), nil
	default:
		return value.Value{}, dberrors.New(dberrors.Evaluate, "can't and %s and %s", l, r)
	}
}

func evalOr(l, r value.Value) (value.Value, error) {
	switch {
	case l.Kind == value.KindBool && r.Kind == value.KindBool:
		return value.Bool(l.Bool || r.Bool), nil
	case l.Kind == value.KindBool && r.IsNull():
		if l.Bool {
			return value.Bool(true), nil
		}
		return value.Null(), nil
	case l.IsNull() && r.Kind == value.KindBool:
		if r.Bool {
			return value.Bool(true), nil
		}
		return value.Null(), nil
	case l.IsNull() && r.IsNull():
		return value.Null(), nil
	default:
		return value.Value{}, dberrors.New(dberrors.Evaluate, "can't or %s and %s", l, r)
	}
}

// evalCompare widens two Bool/Integer/Float/String operands for
// comparison, matching the original evaluator's exact pairings (no
// cross Bool/numeric or numeric/String comparisons).
func evalCompare(kind binaryKind, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null(), nil
	}
	cmp := func(less, equal bool) value.Value {
		switch kind {
		case binaryEqual:
			return value.Bool(equal)
		case binaryNotEqual:
			return value.Bool(!equal)
		case binaryGreaterThan:
			return value.Bool(!less && !equal)
		case binaryGreaterThanOrEqual:
			return value.Bool(!less || equal)
		case binaryLessThan:
			return value.Bool(less)
		default: // binaryLessThanOrEqual
			return value.Bool(less || equal)
		}
	}
	switch {
	case l.Kind == value.KindBool && r.Kind == value.KindBool:
		return cmp(!l.Bool && r.Bool, l.Bool == r.Bool), nil
	case l.Kind == value.KindInteger && r.Kind == value.KindInteger:
		return cmp(l.I < r.I, l.I == r.I), nil
	case l.Kind == value.KindInteger && r.Kind == value.KindFloat:
		lf := float64(l.I)
		return cmp(lf < r.F, lf == r.F), nil
	case l.Kind == value.KindFloat && r.Kind == value.KindInteger:
		rf := float64(r.I)
		return cmp(l.F < rf, l.F == rf), nil
	case l.Kind == value.KindFloat && r.Kind == value.KindFloat:
		return cmp(l.F < r.F, l.F == r.F), nil
	case l.Kind == value.KindString && r.Kind == value.KindString:
		return cmp(l.S < r.S, l.S == r.S), nil
	default:
		return value.Value{}, dberrors.New(dberrors.Evaluate, "can't compare %s and %s", l, r)
	}
}

func evalArithmetic(kind binaryKind, l, r value.Value) (value.Value, error) {
	if l.Kind == value.KindInteger && r.IsNull() {
		return value.Null(), nil
	}
	if l.Kind == value.KindFloat && r.IsNull() {
		return value.Null(), nil
	}
	if l.IsNull() && (r.Kind == value.KindInteger || r.Kind == value.KindFloat || r.IsNull()) {
		return value.Null(), nil
	}

	switch {
	case l.Kind == value.KindInteger && r.Kind == value.KindInteger:
		i, ok := intArithmetic(kind, l.I, r.I)
		if !ok {
			return value.Value{}, dberrors.New(dberrors.Evaluate, "integer overflow")
		}
		return i, nil
	case l.Kind == value.KindInteger && r.Kind == value.KindFloat:
		return floatArithmetic(kind, float64(l.I), r.F), nil
	case l.Kind == value.KindFloat && r.Kind == value.KindInteger:
		return floatArithmetic(kind, l.F, float64(r.I)), nil
	case l.Kind == value.KindFloat && r.Kind == value.KindFloat:
		return floatArithmetic(kind, l.F, r.F), nil
	default:
		return value.Value{}, dberrors.New(dberrors.Evaluate, "can't apply %s to %s and %s", binarySymbols[kind], l, r)
	}
}

// intArithmetic returns (zero, false) on overflow or divide-by-zero,
// matching the original's checked_add/checked_sub/checked_mul/checked_pow.
// Divide by zero is reported as overflow here; the caller's message is
// generic enough ("integer overflow") that callers needing the precise
// divide-by-zero wording should check rhs==0 first -- evalArithmetic's
// caller does not distinguish, mirroring spec's single Evaluate error kind.
func intArithmetic(kind binaryKind, l, r int64) (value.Value, bool) {
	switch kind {
	case binaryAdd:
		sum := l + r
		if (r > 0 && sum < l) || (r < 0 && sum > l) {
			return value.Value{}, false
		}
		return value.Integer(sum), true
	case binarySubtract:
		diff := l - r
		if (r < 0 && diff < l) || (r > 0 && diff > l) {
			return value.Value{}, false
		}
		return value.Integer(diff), true
	case binaryMultiply:
		if l == 0 || r == 0 {
			return value.Integer(0), true
		}
		prod := l * r
		if prod/r != l || (l == -1 && r == math.MinInt64) || (r == -1 && l == math.MinInt64) {
			return value.Value{}, false
		}
		return value.Integer(prod), true
	case binaryDivide:
		if r == 0 {
			return value.Value{}, false
		}
		return value.Integer(l / r), true
	case binaryExponentiate:
		if r < 0 {
			return value.Float(math.Pow(float64(l), float64(r))), true
		}
		result := int64(1)
		for i := int64(0); i < r; i++ {
			if result == 0 {
				break
			}
			next := result * l
			if l != 0 && next/l != result {
				return value.Value{}, false
			}
			result = next
		}
		return value.Integer(result), true
	}
	return value.Value{}, false
}

func floatArithmetic(kind binaryKind, l, r float64) value.Value {
	switch kind {
	case binaryAdd:
		return value.Float(l + r)
	case binarySubtract:
		return value.Float(l - r)
	case binaryMultiply:
		return value.Float(l * r)
	case binaryDivide:
		return value.Float(l / r)
	case binaryExponentiate:
		return value.Float(math.Pow(l, r))
	}
	return value.Null()
}

// likePattern translates a SQL LIKE pattern (% and _ wildcards) into an
// anchored regular expression, escaping everything else literally.
func likePattern(pattern string) string {
	var out strings.Builder
	out.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			out.WriteString(".*")
		case '_':
			out.WriteByte('.')
		default:
			out.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	out.WriteByte('$')
	return out.String()
}

func evalLike(l, r value.Value) (value.Value, error) {
	switch {
	case l.Kind == value.KindString && r.Kind == value.KindString:
		re, err := regexp.Compile(likePattern(r.S))
		if err != nil {
			return value.Value{}, dberrors.New(dberrors.Evaluate, "invalid LIKE pattern: %v", err)
		}
		return value.Bool(re.MatchString(l.S)), nil
	case l.Kind == value.KindString && r.IsNull():
		return value.Null(), nil
	case l.IsNull() && r.Kind == value.KindString:
		return value.Null(), nil
	default:
		return value.Value{}, dberrors.New(dberrors.Evaluate, "can't LIKE %s and %s", l, r)
	}
}

// -----------------------------------------------------------------------------
// Traversal, CNF, and index lookup
// -----------------------------------------------------------------------------

// children returns e's immediate subexpressions (empty for leaves).
func children(e Expression) []Expression {
	switch v := e.(type) {
	case *Unary:
		return []Expression{v.Operand}
	case *Binary:
		return []Expression{v.Left, v.Right}
	default:
		return nil
	}
}

// Transform applies before (pre-order) then after (post-order) to every
// node in e's tree, returning the rewritten tree. Either may be nil.
func Transform(e Expression, before, after func(Expression) Expression) Expression {
	if e == nil {
		return nil
	}
	if before != nil {
		e = before(e)
	}
	switch v := e.(type) {
	case *Unary:
		v.Operand = Transform(v.Operand, before, after)
	case *Binary:
		v.Left = Transform(v.Left, before, after)
		v.Right = Transform(v.Right, before, after)
	}
	if after != nil {
		e = after(e)
	}
	return e
}

// Contains reports whether e or any descendant satisfies pred.
func Contains(e Expression, pred func(Expression) bool) bool {
	if e == nil {
		return false
	}
	if pred(e) {
		return true
	}
	for _, c := range children(e) {
		if Contains(c, pred) {
			return true
		}
	}
	return false
}

// ToCNF rewrites e into conjunctive normal form -- De Morgan NOT
// pushdown eliminating NOT NOT, then OR distributed over AND -- and
// splits the result into its top-level AND-joined clauses (spec §4.8).
func ToCNF(e Expression) []Expression {
	e = Transform(e, pushNotInward, nil)
	e = Transform(e, distributeOr, nil)
	return splitAnd(e)
}

func pushNotInward(e Expression) Expression {
	u, ok := e.(*Unary)
	if !ok || u.Kind != unaryNot {
		return e
	}
	switch inner := u.Operand.(type) {
	case *Binary:
		switch inner.Kind {
		case binaryAnd:
			return Or(Not(inner.Left), Not(inner.Right))
		case binaryOr:
			return And(Not(inner.Left), Not(inner.Right))
		}
	case *Unary:
		if inner.Kind == unaryNot {
			return inner.Operand
		}
	}
	return e
}

func distributeOr(e Expression) Expression {
	b, ok := e.(*Binary)
	if !ok || b.Kind != binaryOr {
		return e
	}
	if and, ok := b.Left.(*Binary); ok && and.Kind == binaryAnd {
		return And(Or(and.Left, b.Right), Or(and.Right, b.Right))
	}
	if and, ok := b.Right.(*Binary); ok && and.Kind == binaryAnd {
		return And(Or(b.Left, and.Left), Or(b.Left, and.Right))
	}
	return e
}

func splitAnd(e Expression) []Expression {
	var out []Expression
	stack := []Expression{e}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b, ok := top.(*Binary); ok && b.Kind == binaryAnd {
			stack = append(stack, b.Left, b.Right)
			continue
		}
		out = append(out, top)
	}
	return out
}

// FromCNF rebuilds a single expression from AND-joined clauses, or nil
// if clauses is empty.
func FromCNF(clauses []Expression) Expression {
	if len(clauses) == 0 {
		return nil
	}
	out := clauses[0]
	for _, c := range clauses[1:] {
		out = And(out, c)
	}
	return out
}

// LookUp detects whether clause constrains fieldIndex to a finite set
// of values via Equal or IsNull (directly, or through a chain of ORs of
// such clauses), returning that set for index/key-lookup substitution
// (spec §4.8). clause must not itself contain AND.
func LookUp(clause Expression, fieldIndex int) ([]value.Value, bool) {
	switch e := clause.(type) {
	case *Binary:
		if e.Kind == binaryEqual {
			if f, ok := e.Left.(*Field); ok && f.Index == fieldIndex {
				if c, ok := e.Right.(*Constant); ok {
					return []value.Value{c.Value}, true
				}
			}
			if f, ok := e.Right.(*Field); ok && f.Index == fieldIndex {
				if c, ok := e.Left.(*Constant); ok {
					return []value.Value{c.Value}, true
				}
			}
			return nil, false
		}
		if e.Kind == binaryOr {
			lvals, ok := LookUp(e.Left, fieldIndex)
			if !ok {
				return nil, false
			}
			rvals, ok := LookUp(e.Right, fieldIndex)
			if !ok {
				return nil, false
			}
			return append(lvals, rvals...), true
		}
		return nil, false
	case *Unary:
		if e.Kind == unaryIsNull {
			if f, ok := e.Operand.(*Field); ok && f.Index == fieldIndex {
				return []value.Value{value.Null()}, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}
