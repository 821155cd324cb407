package optimizer

import (
	"testing"

	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/coledb/coledb/internal/store"
	"github.com/coledb/coledb/internal/value"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *sqlengine.Transaction {
	t.Helper()
	m := mvcc.New(store.NewBTreeStore())
	txn, err := m.Begin(mvcc.ReadWrite())
	require.NoError(t, err)
	catalog := sqlengine.NewTransaction(txn)

	require.NoError(t, catalog.CreateTable(sqlengine.Table{
		Name: "accounts",
		Columns: []sqlengine.Column{
			{Name: "id", Type: value.TypeInteger, PrimaryKey: true},
			{Name: "owner", Type: value.TypeString, Index: true},
			{Name: "balance", Type: value.TypeInteger},
		},
	}))
	return catalog
}

func TestConstantFolderFoldsArithmetic(t *testing.T) {
	scan := &plan.Scan{Table: "accounts"}
	filter := &plan.Filter{
		Source:    scan,
		Predicate: expr.Equal(expr.Add(&expr.Constant{Value: value.Integer(1)}, &expr.Constant{Value: value.Integer(1)}), &expr.Constant{Value: value.Integer(2)}),
	}

	out, err := ConstantFolder{}.Optimize(filter)
	require.NoError(t, err)

	f, ok := out.(*plan.Filter)
	require.True(t, ok)
	c, ok := f.Predicate.(*expr.Constant)
	require.True(t, ok, "expected predicate to fold to a constant, got %T", f.Predicate)
	require.True(t, c.Value.Bool)
}

func TestNoopCleanerElidesAlwaysTrueFilter(t *testing.T) {
	scan := &plan.Scan{Table: "accounts"}
	filter := &plan.Filter{Source: scan, Predicate: &expr.Constant{Value: value.Bool(true)}}

	out, err := NoopCleaner{}.Optimize(filter)
	require.NoError(t, err)
	require.Same(t, plan.Node(scan), out)
}

func TestNoopCleanerCollapsesAndWithTrueOperand(t *testing.T) {
	scan := &plan.Scan{Table: "accounts"}
	rest := expr.GreaterThan(&expr.Field{Index: 2}, &expr.Constant{Value: value.Integer(0)})
	filter := &plan.Filter{Source: scan, Predicate: expr.And(&expr.Constant{Value: value.Bool(true)}, rest)}

	out, err := NoopCleaner{}.Optimize(filter)
	require.NoError(t, err)
	f, ok := out.(*plan.Filter)
	require.True(t, ok)
	require.Equal(t, rest.String(), f.Predicate.String())
}

func TestFilterPushdownMergesIntoScan(t *testing.T) {
	scan := &plan.Scan{Table: "accounts"}
	predicate := expr.Equal(&expr.Field{Index: 0}, &expr.Constant{Value: value.Integer(1)})
	filter := &plan.Filter{Source: scan, Predicate: predicate}

	out, err := FilterPushdown{}.Optimize(filter)
	require.NoError(t, err)

	s, ok := out.(*plan.Scan)
	require.True(t, ok, "expected the Filter to be absorbed into the Scan, got %T", out)
	require.Equal(t, predicate.String(), s.Filter.String())
}

func TestFilterPushdownSplitsJoinPredicate(t *testing.T) {
	left := &plan.Scan{Table: "accounts"}
	right := &plan.Scan{Table: "notes"}
	join := &plan.NestedLoopJoin{
		Left:     left,
		Right:    right,
		LeftSize: 3,
		Predicate: expr.And(
			expr.Equal(&expr.Field{Index: 0}, &expr.Field{Index: 3}),
			expr.Equal(&expr.Field{Index: 1}, &expr.Constant{Value: value.String("alice")}),
		),
	}

	out, err := FilterPushdown{}.Optimize(join)
	require.NoError(t, err)

	j, ok := out.(*plan.NestedLoopJoin)
	require.True(t, ok)
	require.Equal(t, "#0 = #3", j.Predicate.String())

	leftScan, ok := j.Left.(*plan.Scan)
	require.True(t, ok)
	require.Equal(t, "#1 = alice", leftScan.Filter.String())
}

func TestFilterPushdownRebasesRightSideFieldIndex(t *testing.T) {
	left := &plan.Scan{Table: "accounts"}
	right := &plan.Scan{Table: "notes"}
	join := &plan.NestedLoopJoin{
		Left:      left,
		Right:     right,
		LeftSize:  3,
		Predicate: expr.Equal(&expr.Field{Index: 4}, &expr.Constant{Value: value.String("hi")}),
	}

	out, err := FilterPushdown{}.Optimize(join)
	require.NoError(t, err)

	j, ok := out.(*plan.NestedLoopJoin)
	require.True(t, ok)
	require.Nil(t, j.Predicate)

	rightScan, ok := j.Right.(*plan.Scan)
	require.True(t, ok)
	require.Equal(t, "#1 = hi", rightScan.Filter.String())
}

func TestIndexLookupSubstitutesKeyLookup(t *testing.T) {
	catalog := newTestCatalog(t)
	scan := &plan.Scan{
		Table:  "accounts",
		Filter: expr.Equal(&expr.Field{Index: 0}, &expr.Constant{Value: value.Integer(7)}),
	}

	out, err := IndexLookup{Catalog: catalog}.Optimize(scan)
	require.NoError(t, err)

	kl, ok := out.(*plan.KeyLookup)
	require.True(t, ok, "expected a KeyLookup, got %T", out)
	require.Equal(t, []value.Value{value.Integer(7)}, kl.Keys)
}

func TestIndexLookupSubstitutesSecondaryIndexWithResidual(t *testing.T) {
	catalog := newTestCatalog(t)
	scan := &plan.Scan{
		Table: "accounts",
		Filter: expr.And(
			expr.Equal(&expr.Field{Index: 1}, &expr.Constant{Value: value.String("alice")}),
			expr.GreaterThan(&expr.Field{Index: 2}, &expr.Constant{Value: value.Integer(0)}),
		),
	}

	out, err := IndexLookup{Catalog: catalog}.Optimize(scan)
	require.NoError(t, err)

	f, ok := out.(*plan.Filter)
	require.True(t, ok, "expected a residual Filter over the IndexLookup, got %T", out)
	il, ok := f.Source.(*plan.IndexLookup)
	require.True(t, ok, "expected an IndexLookup under the residual Filter, got %T", f.Source)
	require.Equal(t, "owner", il.Column)
	require.Equal(t, []value.Value{value.String("alice")}, il.Values)
}

func TestHashJoinLoweringRebasesRightField(t *testing.T) {
	left := &plan.Scan{Table: "accounts"}
	right := &plan.Scan{Table: "notes"}
	join := &plan.NestedLoopJoin{
		Left:      left,
		Right:     right,
		LeftSize:  3,
		Predicate: expr.Equal(&expr.Field{Index: 0}, &expr.Field{Index: 4}),
	}

	out, err := HashJoinLowering{}.Optimize(join)
	require.NoError(t, err)

	hj, ok := out.(*plan.HashJoin)
	require.True(t, ok, "expected a HashJoin, got %T", out)
	require.Equal(t, 0, hj.LeftField.Index)
	require.Equal(t, 1, hj.RightField.Index, "RightField.Index must be rebased against Right's own row shape")
}

func TestStandardPipelineRunsEndToEnd(t *testing.T) {
	catalog := newTestCatalog(t)
	scan := &plan.Scan{
		Table:  "accounts",
		Filter: expr.Equal(&expr.Field{Index: 0}, &expr.Constant{Value: value.Integer(1)}),
	}
	node := &plan.Filter{Source: scan, Predicate: &expr.Constant{Value: value.Bool(true)}}

	out, err := Standard(catalog).Optimize(node)
	require.NoError(t, err)

	_, ok := out.(*plan.KeyLookup)
	require.True(t, ok, "expected the full pipeline to collapse down to a KeyLookup, got %T", out)
}
