// Package optimizer rewrites a plan.Node tree bottom-up, preserving
// its semantics while lowering its cost (spec §4.8).
//
// Grounded on original_source/src/sql/plan/optimizer.rs's five passes
// (NoopCleaner, ConstantFolder, FilterPushdown, IndexLookup, JoinType),
// ported pass-for-pass. The generic Node::transform/transform_expressions
// combinators that optimizer.rs calls into are not present anywhere in
// the retrieved original source (only their ast/expression-level
// namesakes are), so the walk this package uses instead is an
// original, Go-shaped combinator: a single post-order traversal that
// rewrites every node's own embedded expressions, then applies the
// pass's structural rewrite bottom-up. Doing the structural rewrite
// bottom-up (rather than the top-down-then-recurse shape implied by
// optimizer.rs's calls) also means a chain of nested Filter nodes
// collapses fully in one FilterPushdown pass instead of needing
// multiple passes to converge.
package optimizer

import (
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
)

// Optimizer rewrites a plan tree while preserving its semantics.
type Optimizer interface {
	Optimize(node plan.Node) (plan.Node, error)
}

// Chain runs a fixed sequence of optimizers, feeding each one's output
// into the next.
type Chain []Optimizer

func (c Chain) Optimize(node plan.Node) (plan.Node, error) {
	var err error
	for _, o := range c {
		node, err = o.Optimize(node)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Standard returns the default pipeline in the order spec §4.8
// prescribes: fold constants, clean up noop logic, push filters down,
// substitute index/key lookups, then lower equi-joins to HashJoin.
func Standard(catalog *sqlengine.Transaction) Chain {
	return Chain{
		ConstantFolder{},
		NoopCleaner{},
		FilterPushdown{},
		IndexLookup{Catalog: catalog},
		HashJoinLowering{},
	}
}

// children returns n's immediate child nodes, in a stable order.
func children(n plan.Node) []plan.Node {
	switch v := n.(type) {
	case *plan.Update:
		return []plan.Node{v.Source}
	case *plan.Delete:
		return []plan.Node{v.Source}
	case *plan.NestedLoopJoin:
		return []plan.Node{v.Left, v.Right}
	case *plan.HashJoin:
		return []plan.Node{v.Left, v.Right}
	case *plan.Filter:
		return []plan.Node{v.Source}
	case *plan.Projection:
		return []plan.Node{v.Source}
	case *plan.Aggregation:
		return []plan.Node{v.Source}
	case *plan.Order:
		return []plan.Node{v.Source}
	case *plan.Limit:
		return []plan.Node{v.Source}
	case *plan.Offset:
		return []plan.Node{v.Source}
	default:
		return nil
	}
}

// withChildren writes kids back into n's child positions, in the same
// order children(n) reported them.
func withChildren(n plan.Node, kids []plan.Node) plan.Node {
	switch v := n.(type) {
	case *plan.Update:
		v.Source = kids[0]
	case *plan.Delete:
		v.Source = kids[0]
	case *plan.NestedLoopJoin:
		v.Left, v.Right = kids[0], kids[1]
	case *plan.HashJoin:
		v.Left, v.Right = kids[0], kids[1]
	case *plan.Filter:
		v.Source = kids[0]
	case *plan.Projection:
		v.Source = kids[0]
	case *plan.Aggregation:
		v.Source = kids[0]
	case *plan.Order:
		v.Source = kids[0]
	case *plan.Limit:
		v.Source = kids[0]
	case *plan.Offset:
		v.Source = kids[0]
	}
	return n
}

// mapExpressions rewrites every Expression embedded directly in n
// (not in its child nodes) via fn, applied bottom-up over each
// expression's own subtree.
func mapExpressions(n plan.Node, fn func(expr.Expression) expr.Expression) plan.Node {
	switch v := n.(type) {
	case *plan.Filter:
		v.Predicate = expr.Transform(v.Predicate, nil, fn)
	case *plan.Scan:
		if v.Filter != nil {
			v.Filter = expr.Transform(v.Filter, nil, fn)
		}
	case *plan.NestedLoopJoin:
		if v.Predicate != nil {
			v.Predicate = expr.Transform(v.Predicate, nil, fn)
		}
	case *plan.Projection:
		for i := range v.Expressions {
			v.Expressions[i].Expression = expr.Transform(v.Expressions[i].Expression, nil, fn)
		}
	case *plan.Aggregation:
		for i := range v.Inputs {
			v.Inputs[i] = expr.Transform(v.Inputs[i], nil, fn)
		}
	case *plan.Order:
		for i := range v.Orders {
			v.Orders[i].Expression = expr.Transform(v.Orders[i].Expression, nil, fn)
		}
	case *plan.Limit:
		v.Limit = expr.Transform(v.Limit, nil, fn)
	case *plan.Offset:
		v.Offset = expr.Transform(v.Offset, nil, fn)
	case *plan.Update:
		for i := range v.Set {
			v.Set[i].Expression = expr.Transform(v.Set[i].Expression, nil, fn)
		}
	case *plan.Insert:
		for r := range v.Expressions {
			for c := range v.Expressions[r] {
				v.Expressions[r][c] = expr.Transform(v.Expressions[r][c], nil, fn)
			}
		}
	}
	return n
}

// walk recurses into n's children bottom-up, then hands the
// (already-rewritten) node to rewrite.
func walk(n plan.Node, rewrite func(plan.Node) (plan.Node, error)) (plan.Node, error) {
	kids := children(n)
	if len(kids) > 0 {
		newKids := make([]plan.Node, len(kids))
		for i, k := range kids {
			nk, err := walk(k, rewrite)
			if err != nil {
				return nil, err
			}
			newKids[i] = nk
		}
		n = withChildren(n, newKids)
	}
	return rewrite(n)
}

// isField reports whether e is a Field reference.
func isField(e expr.Expression) bool {
	_, ok := e.(*expr.Field)
	return ok
}
