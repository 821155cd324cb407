package expr

import (
	"testing"

	"github.com/coledb/coledb/internal/value"
	"github.com/stretchr/testify/require"
)

// boolRow builds a row of Bool values, one per leaf Field index, used
// to drive an expression tree through every combination of its
// leaves' truth values.
func boolRow(values ...bool) Row {
	row := make(Row, len(values))
	for i, b := range values {
		row[i] = value.Bool(b)
	}
	return row
}

func evalBool(t *testing.T, e Expression, row Row) bool {
	t.Helper()
	v, err := e.Evaluate(row)
	require.NoError(t, err)
	require.Equal(t, value.KindBool, v.Kind)
	return v.Bool
}

// TestToCNFPreservesSemanticsForOrOfAnd exercises (a AND b) OR c, the
// shape reachable from filter pushdown and index-lookup substitution
// for a predicate like "(a=1 AND b=2) OR c=3". The naive
// And(Or(a,b), c) distribution is false when a=false, b=false, c=true,
// while the source expression and the correct CNF are both true.
func TestToCNFPreservesSemanticsForOrOfAnd(t *testing.T) {
	a, b, c := &Field{Index: 0}, &Field{Index: 1}, &Field{Index: 2}
	original := Or(And(a, b), c)

	clauses := ToCNF(original)
	rewritten := FromCNF(clauses)

	for _, av := range []bool{false, true} {
		for _, bv := range []bool{false, true} {
			for _, cv := range []bool{false, true} {
				row := boolRow(av, bv, cv)
				want := evalBool(t, original, row)
				got := evalBool(t, rewritten, row)
				require.Equalf(t, want, got, "a=%v b=%v c=%v", av, bv, cv)
			}
		}
	}
}

// TestToCNFOrOfAndOnTheRight mirrors the above with the AND on the
// right operand of the OR, exercising distributeOr's other branch.
func TestToCNFOrOfAndOnTheRight(t *testing.T) {
	a, b, c := &Field{Index: 0}, &Field{Index: 1}, &Field{Index: 2}
	original := Or(c, And(a, b))

	rewritten := FromCNF(ToCNF(original))

	for _, av := range []bool{false, true} {
		for _, bv := range []bool{false, true} {
			for _, cv := range []bool{false, true} {
				row := boolRow(av, bv, cv)
				want := evalBool(t, original, row)
				got := evalBool(t, rewritten, row)
				require.Equalf(t, want, got, "a=%v b=%v c=%v", av, bv, cv)
			}
		}
	}
}

// TestToCNFIdempotent confirms re-running ToCNF on its own output
// yields the same clauses (spec §8's "CNF idempotence" property) for
// the OR-of-AND shape this review fixed. splitAnd collects clauses
// with a stack, so clause order may differ between passes.
func TestToCNFIdempotent(t *testing.T) {
	a, b, c := &Field{Index: 0}, &Field{Index: 1}, &Field{Index: 2}
	original := Or(And(a, b), c)

	once := ToCNF(original)
	twice := ToCNF(FromCNF(once))

	require.ElementsMatch(t, clauseStrings(once), clauseStrings(twice))
}

func clauseStrings(clauses []Expression) []string {
	out := make([]string, len(clauses))
	for i, c := range clauses {
		out[i] = c.String()
	}
	return out
}
