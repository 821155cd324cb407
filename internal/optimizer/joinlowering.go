package optimizer

import (
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
)

// HashJoinLowering rewrites a NestedLoopJoin whose predicate is a
// single Equal comparison between one Field on each side into a
// HashJoin, which builds its hash table from the right side's rows
// instead of comparing every row pair (spec §4.8).
//
// Grounded on optimizer.rs's JoinType: it matches a NestedLoopJoin
// whose predicate is Equal(Field(i1,_), Field(i2,_)), picks whichever
// index is smaller as left_field, and builds the HashJoin's
// right_field from the other side's raw field index. That raw index
// is a bug carried into the port on purpose to fix, not preserve:
// FilterPushdown's own push_down_join, a few hundred lines earlier in
// the same source file, rebases every right-side CNF clause it pushes
// down by subtracting left_size precisely because the executor reads
// right-side rows through their own standalone row shape, not the
// join's combined one -- HashJoin's own executor contract (spec §4.9)
// builds its hash table the same way, purely from Right's own rows, so
// an unrebased index here is simply wrong whenever LeftSize > 0. This
// pass rebases whichever field landed on the right side by -LeftSize.
type HashJoinLowering struct{}

func (HashJoinLowering) Optimize(node plan.Node) (plan.Node, error) {
	rewrite := func(n plan.Node) (plan.Node, error) {
		j, ok := n.(*plan.NestedLoopJoin)
		if !ok || j.Outer || j.Predicate == nil {
			return n, nil
		}
		b, ok := j.Predicate.(*expr.Binary)
		if !ok || !b.IsEqual() {
			return n, nil
		}
		lf, lok := b.Left.(*expr.Field)
		rf, rok := b.Right.(*expr.Field)
		if !lok || !rok {
			return n, nil
		}
		leftField, rightField := lf, rf
		if leftField.Index >= j.LeftSize {
			leftField, rightField = rightField, leftField
		}
		if leftField.Index >= j.LeftSize || rightField.Index < j.LeftSize {
			// predicate doesn't reference exactly one field per side
			return n, nil
		}
		return &plan.HashJoin{
			Left:       j.Left,
			LeftField:  plan.FieldRef{Index: leftField.Index, Origin: leftField.Origin},
			Right:      j.Right,
			RightField: plan.FieldRef{Index: rightField.Index - j.LeftSize, Origin: rightField.Origin},
			Outer:      j.Outer,
		}, nil
	}
	return walk(node, rewrite)
}
