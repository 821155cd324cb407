package optimizer

import (
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
)

// FilterPushdown moves a Filter's predicate as close to the rows it
// constrains as it can: into a Scan's own Filter field directly below
// it, or split clause-by-clause across a NestedLoopJoin's two sides
// (spec §4.8), leaving only the clauses that reference both sides on
// the join itself.
//
// Grounded on optimizer.rs's FilterPushdown: its optimize() matches a
// bare Filter over a Scan or NestedLoopJoin and merges the predicate
// into the child via push_down, and separately (for a NestedLoopJoin
// with no enclosing Filter) calls push_down_join to redistribute the
// join's own existing predicate. Ported directly, including
// push_down_join's CNF split and per-clause field-index test
// (i < LeftSize is a left-only clause, i >= LeftSize is a right-only
// clause rebased by i - LeftSize, anything else stays mixed on the
// join).
type FilterPushdown struct{}

func (FilterPushdown) Optimize(node plan.Node) (plan.Node, error) {
	rewrite := func(n plan.Node) (plan.Node, error) {
		if f, ok := n.(*plan.Filter); ok {
			switch src := f.Source.(type) {
			case *plan.Scan:
				src.Filter = mergePredicate(src.Filter, f.Predicate)
				return src, nil
			case *plan.NestedLoopJoin:
				if !src.Outer {
					src.Predicate = mergePredicate(src.Predicate, f.Predicate)
					return pushDownJoin(src), nil
				}
			}
			return f, nil
		}
		if j, ok := n.(*plan.NestedLoopJoin); ok && !j.Outer {
			return pushDownJoin(j), nil
		}
		return n, nil
	}
	return walk(node, rewrite)
}

func mergePredicate(existing, add expr.Expression) expr.Expression {
	if existing == nil {
		return add
	}
	return expr.And(existing, add)
}

// pushDownJoin splits j's predicate into left-only, right-only, and
// mixed clauses, pushes the left/right clauses into the corresponding
// side (a nested Scan's Filter, or as far down as push_down reaches),
// and keeps only the mixed clauses as j's own Predicate.
func pushDownJoin(j *plan.NestedLoopJoin) *plan.NestedLoopJoin {
	if j.Predicate == nil {
		return j
	}
	clauses := expr.ToCNF(j.Predicate)
	var left, right, mixed []expr.Expression
	for _, c := range clauses {
		refsLeft := expr.Contains(c, func(e expr.Expression) bool {
			f, ok := e.(*expr.Field)
			return ok && f.Index < j.LeftSize
		})
		refsRight := expr.Contains(c, func(e expr.Expression) bool {
			f, ok := e.(*expr.Field)
			return ok && f.Index >= j.LeftSize
		})
		switch {
		case refsLeft && !refsRight:
			left = append(left, c)
		case refsRight && !refsLeft:
			right = append(right, rebase(c, -j.LeftSize))
		default:
			mixed = append(mixed, c)
		}
	}
	j.Left = pushDown(j.Left, expr.FromCNF(left))
	j.Right = pushDown(j.Right, expr.FromCNF(right))
	j.Predicate = expr.FromCNF(mixed)
	return j
}

// pushDown merges predicate into n if n is a Scan, otherwise wraps n
// in a Filter. nil predicate is a no-op.
func pushDown(n plan.Node, predicate expr.Expression) plan.Node {
	if predicate == nil {
		return n
	}
	if scan, ok := n.(*plan.Scan); ok {
		scan.Filter = mergePredicate(scan.Filter, predicate)
		return scan
	}
	return &plan.Filter{Source: n, Predicate: predicate}
}

// rebase shifts every Field index in e by delta. Field leaves are
// replaced by freshly allocated nodes, but expr.Transform writes the
// new children into e's interior nodes in place, so e itself is
// updated as well as returned.
func rebase(e expr.Expression, delta int) expr.Expression {
	return expr.Transform(e, nil, func(node expr.Expression) expr.Expression {
		f, ok := node.(*expr.Field)
		if !ok {
			return node
		}
		return &expr.Field{Index: f.Index + delta, Origin: f.Origin}
	})
}
