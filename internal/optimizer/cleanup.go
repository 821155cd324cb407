package optimizer

import (
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/value"
)

// ConstantFolder replaces any sub-expression that references no Field
// with its already-computed value, e.g. WHERE 1 + 1 = 2 folds to
// WHERE TRUE before FilterPushdown or IndexLookup ever see it.
//
// Grounded on optimizer.rs's ConstantFolder, whose transform_expressions
// closure folds bottom-up ("if the node doesn't reference a field,
// replace it with its evaluated constant"); ported directly, using a
// closure-captured error since expr.Transform's after-callback can't
// itself return one.
type ConstantFolder struct{}

func (ConstantFolder) Optimize(node plan.Node) (plan.Node, error) {
	var foldErr error
	fold := func(e expr.Expression) expr.Expression {
		if foldErr != nil {
			return e
		}
		if _, ok := e.(*expr.Constant); ok {
			return e
		}
		if expr.Contains(e, isField) {
			return e
		}
		v, err := e.Evaluate(nil)
		if err != nil {
			foldErr = err
			return e
		}
		return &expr.Constant{Value: v}
	}
	rewrite := func(n plan.Node) (plan.Node, error) {
		n = mapExpressions(n, fold)
		return n, foldErr
	}
	return walk(node, rewrite)
}

// NoopCleaner collapses logical connectives with a constant operand
// (TRUE AND x -> x, FALSE OR x -> x, and so on) and elides a Filter
// whose predicate folded all the way down to TRUE.
//
// Grounded on optimizer.rs's NoopCleaner, which matches the same cases
// over And/Or nodes carrying a Boolean or Null constant, plus the
// Filter{predicate: Constant(Boolean(true))} -> *source elision;
// ported directly. Uses Binary.IsAnd/IsOr (added to internal/expr for
// this package) since binaryKind itself is unexported.
type NoopCleaner struct{}

func (NoopCleaner) Optimize(node plan.Node) (plan.Node, error) {
	clean := func(e expr.Expression) expr.Expression {
		b, ok := e.(*expr.Binary)
		if !ok || (!b.IsAnd() && !b.IsOr()) {
			return e
		}
		lc, lok := constBool(b.Left)
		rc, rok := constBool(b.Right)
		if b.IsAnd() {
			switch {
			case lok && lc:
				return b.Right
			case rok && rc:
				return b.Left
			case lok && !lc, rok && !rc:
				return &expr.Constant{Value: value.Bool(false)}
			}
		} else {
			switch {
			case lok && !lc:
				return b.Right
			case rok && !rc:
				return b.Left
			case lok && lc, rok && rc:
				return &expr.Constant{Value: value.Bool(true)}
			}
		}
		return e
	}
	rewrite := func(n plan.Node) (plan.Node, error) {
		n = mapExpressions(n, clean)
		if f, ok := n.(*plan.Filter); ok {
			if c, isConst := f.Predicate.(*expr.Constant); isConst && c.Value.Kind == value.KindBool && c.Value.Bool {
				return f.Source, nil
			}
		}
		return n, nil
	}
	return walk(node, rewrite)
}

// constBool reports whether e is a non-null boolean constant and its
// value.
func constBool(e expr.Expression) (b, ok bool) {
	c, isConst := e.(*expr.Constant)
	if !isConst || c.Value.Kind != value.KindBool {
		return false, false
	}
	return c.Value.Bool, true
}
