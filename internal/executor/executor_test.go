package executor

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

func newTxn(t *testing.T) *sqlengine.Transaction {
	t.Helper()
	m := mvcc.New(store.NewBTreeStore())
	txn, err := m.Begin(mvcc.ReadWrite())
	require.NoError(t, err)
	sqlTxn := sqlengine.NewTransaction(txn)

	require.NoError(t, sqlTxn.CreateTable(sqlengine.Table{
		Name: "accounts",
		Columns: []sqlengine.Column{
			{Name: "id", Type: value.TypeInteger, PrimaryKey: true},
			{Name: "owner", Type: value.TypeString, Index: true},
			{Name: "balance", Type: value.TypeInteger},
		},
	}))
	for _, row := range []Row{
		{value.Integer(1), value.String("alice"), value.Integer(100)},
		{value.Integer(2), value.String("bob"), value.Integer(50)},
		{value.Integer(3), value.String("alice"), value.Integer(25)},
	} {
		require.NoError(t, sqlTxn.Create("accounts", row))
	}
	return sqlTxn
}

func TestExecuteScan(t *testing.T) {
	txn := newTxn(t)
	rs, err := Execute(&plan.Scan{Table: "accounts"}, txn)
	require.NoError(t, err)
	require.Equal(t, ResultQuery, rs.Kind)
	require.Len(t, rs.Rows, 3)
}

func TestExecuteKeyLookupDropsMisses(t *testing.T) {
	txn := newTxn(t)
	rs, err := Execute(&plan.KeyLookup{Table: "accounts", Keys: []value.Value{value.Integer(1), value.Integer(99)}}, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, value.Integer(1), rs.Rows[0][0])
}

func TestExecuteIndexLookupUnionsKeys(t *testing.T) {
	txn := newTxn(t)
	rs, err := Execute(&plan.IndexLookup{Table: "accounts", Column: "owner", Values: []value.Value{value.String("alice")}}, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
}

func TestExecuteFilterDropsNullAndFalse(t *testing.T) {
	txn := newTxn(t)
	scan := &plan.Scan{Table: "accounts"}
	filter := &plan.Filter{Source: scan, Predicate: expr.GreaterThan(&expr.Field{Index: 2}, &expr.Constant{Value: value.Integer(30)})}
	rs, err := Execute(filter, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)
	require.Equal(t, value.String("alice"), rs.Rows[0][1])
}

func TestExecuteProjectionLabelsFromFieldOrigin(t *testing.T) {
	txn := newTxn(t)
	scan := &plan.Scan{Table: "accounts"}
	proj := &plan.Projection{
		Source: scan,
		Expressions: []plan.ProjectItem{
			{Expression: &expr.Field{Index: 1}},
		},
	}
	rs, err := Execute(proj, txn)
	require.NoError(t, err)
	require.Equal(t, "owner", *rs.Columns[0])
}

func TestExecuteOrderDescending(t *testing.T) {
	txn := newTxn(t)
	scan := &plan.Scan{Table: "accounts"}
	order := &plan.Order{
		Source: scan,
		Orders: []plan.OrderItem{{Expression: &expr.Field{Index: 2}, Descending: true}},
	}
	rs, err := Execute(order, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 3)
	require.Equal(t, value.Integer(100), rs.Rows[0][2])
	require.Equal(t, value.Integer(25), rs.Rows[2][2])
}

func TestExecuteLimitAndOffset(t *testing.T) {
	txn := newTxn(t)
	scan := &plan.Scan{Table: "accounts"}
	limited := &plan.Limit{Source: scan, Limit: &expr.Constant{Value: value.Integer(2)}}
	rs, err := Execute(limited, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)

	scan2 := &plan.Scan{Table: "accounts"}
	offsetNode := &plan.Offset{Source: scan2, Offset: &expr.Constant{Value: value.Integer(2)}}
	rs2, err := Execute(offsetNode, txn)
	require.NoError(t, err)
	require.Len(t, rs2.Rows, 1)
}

func TestExecuteNestedLoopJoinOuterPadsEveryUnmatchedLeftRow(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, txn.CreateTable(sqlengine.Table{
		Name: "notes",
		Columns: []sqlengine.Column{
			{Name: "account_id", Type: value.TypeInteger, PrimaryKey: true},
			{Name: "body", Type: value.TypeString},
		},
	}))
	require.NoError(t, txn.Create("notes", Row{value.Integer(1), value.String("hi")}))

	left := &plan.Scan{Table: "accounts"}
	right := &plan.Scan{Table: "notes"}
	join := &plan.NestedLoopJoin{
		Left:      left,
		Right:     right,
		LeftSize:  3,
		Predicate: expr.Equal(&expr.Field{Index: 0}, &expr.Field{Index: 3}),
		Outer:     true,
	}
	rs, err := Execute(join, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 3, "every left row should appear exactly once: one match, two outer-padded misses")

	nullPadded := 0
	for _, row := range rs.Rows {
		if row[4].IsNull() {
			nullPadded++
		}
	}
	require.Equal(t, 2, nullPadded, "both unmatched left rows must be padded, not just the first one found")
}

func TestExecuteHashJoinRebasesRightField(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, txn.CreateTable(sqlengine.Table{
		Name: "notes",
		Columns: []sqlengine.Column{
			{Name: "account_id", Type: value.TypeInteger, PrimaryKey: true},
			{Name: "body", Type: value.TypeString},
		},
	}))
	require.NoError(t, txn.Create("notes", Row{value.Integer(2), value.String("hi bob")}))

	left := &plan.Scan{Table: "accounts"}
	right := &plan.Scan{Table: "notes"}
	join := &plan.HashJoin{
		Left:       left,
		LeftField:  plan.FieldRef{Index: 0},
		Right:      right,
		RightField: plan.FieldRef{Index: 0},
	}
	rs, err := Execute(join, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, value.String("bob"), rs.Rows[0][1])
	require.Equal(t, value.String("hi bob"), rs.Rows[0][4])
}

func TestExecuteAggregationGroupsAndSums(t *testing.T) {
	txn := newTxn(t)
	scan := &plan.Scan{Table: "accounts"}
	agg := &plan.Aggregation{
		Source:     scan,
		Aggregates: []plan.Aggregate{plan.AggregateSum},
		Inputs:     []expr.Expression{&expr.Field{Index: 2}, &expr.Field{Index: 1}},
		GroupCount: 1,
	}
	rs, err := Execute(agg, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)

	totals := map[string]int64{}
	for _, row := range rs.Rows {
		totals[row[1].S] = row[0].I
	}
	require.Equal(t, int64(125), totals["alice"])
	require.Equal(t, int64(50), totals["bob"])
}

func TestExecuteAggregationEmptyInputNoGroupByYieldsOneRow(t *testing.T) {
	m := mvcc.New(store.NewBTreeStore())
	mvccTxn, err := m.Begin(mvcc.ReadWrite())
	require.NoError(t, err)
	txn := sqlengine.NewTransaction(mvccTxn)
	require.NoError(t, txn.CreateTable(sqlengine.Table{
		Name:    "empty",
		Columns: []sqlengine.Column{{Name: "id", Type: value.TypeInteger, PrimaryKey: true}},
	}))

	agg := &plan.Aggregation{
		Source:     &plan.Scan{Table: "empty"},
		Aggregates: []plan.Aggregate{plan.AggregateCount},
		Inputs:     []expr.Expression{&expr.Field{Index: 0}},
		GroupCount: 0,
	}
	rs, err := Execute(agg, txn)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	require.Equal(t, value.Integer(0), rs.Rows[0][0])
}

func TestExecuteInsertEvaluatesExpressionsInColumnOrder(t *testing.T) {
	txn := newTxn(t)
	insert := &plan.Insert{
		Table:   "accounts",
		Columns: []string{"id", "owner", "balance"},
		Expressions: [][]expr.Expression{
			{&expr.Constant{Value: value.Integer(4)}, &expr.Constant{Value: value.String("carol")}, &expr.Constant{Value: value.Integer(10)}},
		},
	}
	rs, err := Execute(insert, txn)
	require.NoError(t, err)
	require.Equal(t, ResultCreate, rs.Kind)
	require.Equal(t, uint64(1), rs.Count)

	row, found, err := txn.Read("accounts", value.Integer(4))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, value.String("carol"), row[1])
}

func TestExecuteUpdateEvaluatesAgainstOriginalRow(t *testing.T) {
	txn := newTxn(t)
	update := &plan.Update{
		Table:  "accounts",
		Source: &plan.Scan{Table: "accounts", Filter: expr.Equal(&expr.Field{Index: 0}, &expr.Constant{Value: value.Integer(1)})},
		Set: []plan.SetItem{
			{Index: 2, Expression: expr.Subtract(&expr.Field{Index: 2}, &expr.Constant{Value: value.Integer(10)})},
		},
	}
	rs, err := Execute(update, txn)
	require.NoError(t, err)
	require.Equal(t, ResultUpdate, rs.Kind)
	require.Equal(t, uint64(1), rs.Count)

	row, _, err := txn.Read("accounts", value.Integer(1))
	require.NoError(t, err)
	require.Equal(t, value.Integer(90), row[2])
}

func TestExecuteDeleteReportsDeleteKind(t *testing.T) {
	txn := newTxn(t)
	del := &plan.Delete{
		Table:  "accounts",
		Source: &plan.Scan{Table: "accounts", Filter: expr.Equal(&expr.Field{Index: 0}, &expr.Constant{Value: value.Integer(2)})},
	}
	rs, err := Execute(del, txn)
	require.NoError(t, err)
	require.Equal(t, ResultDelete, rs.Kind, "Delete must report ResultDelete, not ResultUpdate")
	require.Equal(t, uint64(1), rs.Count)

	_, found, err := txn.Read("accounts", value.Integer(2))
	require.NoError(t, err)
	require.False(t, found)
}

func TestExecuteCreateAndDropTable(t *testing.T) {
	txn := newTxn(t)
	rs, err := Execute(&plan.CreateTable{
		Table:   "widgets",
		Columns: []plan.Column{{Name: "id", Type: value.TypeInteger, PrimaryKey: true}},
	}, txn)
	require.NoError(t, err)
	require.Equal(t, ResultCreateTable, rs.Kind)
	require.Equal(t, "widgets", rs.Name)

	rs2, err := Execute(&plan.DropTable{Table: "widgets"}, txn)
	require.NoError(t, err)
	require.Equal(t, ResultDropTable, rs2.Kind)
}
