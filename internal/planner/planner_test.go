package planner

import (
	"testing"

	"github.com/coledb/coledb/ast"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/coledb/coledb/internal/store"
	"github.com/coledb/coledb/internal/value"
	"github.com/coledb/coledb/lexer"
	"github.com/coledb/coledb/parser"
	"github.com/stretchr/testify/require"
)

func parseStatement(t *testing.T, sql string) ast.Statement {
	t.Helper()
	p := parser.New(lexer.New(sql))
	stmt := p.ParseStatement()
	require.Empty(t, p.Errors())
	require.NotNil(t, stmt)
	return stmt
}

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

func TestBuildPlanCreateTable(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, note STRING DEFAULT 'none')")
	plan, err := p.BuildPlan(stmt)
	require.NoError(t, err)
	require.Equal(t, "CreateTable: widgets", plan.Root.String())
}

func TestBuildPlanInsertDefaultsColumnOrder(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "INSERT INTO accounts VALUES (1, 'alice', 100)")
	pl, err := p.BuildPlan(stmt)
	require.NoError(t, err)

	insert, ok := pl.Root.(*plan.Insert)
	require.True(t, ok)
	require.Equal(t, []string{"id", "owner", "balance"}, insert.Columns)
}

func TestBuildPlanInsertRejectsMismatchedRowLength(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "INSERT INTO accounts (id, owner) VALUES (1, 'alice', 100)")
	_, err := p.BuildPlan(stmt)
	require.Error(t, err)
}

func TestBuildPlanUpdateSetReferencesOwnRow(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "UPDATE accounts SET balance = balance - 10 WHERE id = 1")
	pl, err := p.BuildPlan(stmt)
	require.NoError(t, err)

	upd, ok := pl.Root.(*plan.Update)
	require.True(t, ok)
	require.Len(t, upd.Set, 1)
	require.Equal(t, 2, upd.Set[0].Index)
}

func TestBuildPlanSelectWhereAndOrderAndLimit(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "SELECT owner, balance FROM accounts WHERE balance > 0 ORDER BY balance DESC LIMIT 5")
	pl, err := p.BuildPlan(stmt)
	require.NoError(t, err)

	limit, ok := pl.Root.(*plan.Limit)
	require.True(t, ok, "expected a Limit node, got %T", pl.Root)
	order, ok := limit.Source.(*plan.Order)
	require.True(t, ok, "expected an Order node under Limit, got %T", limit.Source)
	require.True(t, order.Orders[0].Descending)
}

func TestBuildPlanSelectGroupByAndAggregate(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "SELECT owner, SUM(balance) FROM accounts GROUP BY owner")
	pl, err := p.BuildPlan(stmt)
	require.NoError(t, err)

	proj, ok := pl.Root.(*plan.Projection)
	require.True(t, ok, "expected a Projection node, got %T", pl.Root)
	agg, ok := proj.Source.(*plan.Aggregation)
	require.True(t, ok, "expected an Aggregation node under Projection, got %T", proj.Source)
	require.Equal(t, []plan.Aggregate{plan.AggregateSum}, agg.Aggregates)
	require.Equal(t, 1, agg.GroupCount)
	require.Len(t, agg.Inputs, 2)
}

func TestBuildPlanSelectHavingReferencesAggregate(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "SELECT owner, SUM(balance) AS total FROM accounts GROUP BY owner HAVING SUM(balance) > 100")
	_, err := p.BuildPlan(stmt)
	require.NoError(t, err)
}

func TestBuildPlanSelectStarRejectsGroupBy(t *testing.T) {
	catalog := newTestCatalog(t)
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "SELECT * FROM accounts GROUP BY owner")
	_, err := p.BuildPlan(stmt)
	require.Error(t, err)
}

func TestBuildPlanRightJoinExecutesAsLeftWithRestoreProjection(t *testing.T) {
	catalog := newTestCatalog(t)
	require.NoError(t, catalog.CreateTable(sqlengine.Table{
		Name: "notes",
		Columns: []sqlengine.Column{
			{Name: "account_id", Type: value.TypeInteger, PrimaryKey: true},
			{Name: "body", Type: value.TypeString},
		},
	}))
	p := NewPlanner(catalog)

	stmt := parseStatement(t, "SELECT accounts.id, notes.body FROM accounts RIGHT JOIN notes ON accounts.id = notes.account_id")
	pl, err := p.BuildPlan(stmt)
	require.NoError(t, err)

	proj, ok := pl.Root.(*plan.Projection)
	require.True(t, ok, "expected a Projection node, got %T", pl.Root)
	restore, ok := proj.Source.(*plan.Projection)
	require.True(t, ok, "expected RIGHT JOIN's restore Projection under the select Projection, got %T", proj.Source)
	_, ok = restore.Source.(*plan.NestedLoopJoin)
	require.True(t, ok, "expected a NestedLoopJoin under the restore Projection, got %T", restore.Source)
}
