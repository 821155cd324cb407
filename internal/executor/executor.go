// Package executor runs an optimized plan.Node tree against a live
// sqlengine.Transaction and materializes its result (spec §4.9).
//
// Execution is pull-based but eager: Execute walks the tree bottom-up
// and each node fully computes its Rows before returning, rather than
// yielding rows lazily. Nothing about the ResultSet contract forces
// this -- a later pass could turn Execute into a row iterator without
// changing any caller -- but eager execution is what the source this
// is grounded on does throughout sql/execution/, and a SQL subset with
// no streaming requirement in its spec doesn't earn the added
// complexity of one (see DESIGN.md, and spec §9 on this tradeoff).
package executor

import (
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
)

// Row is one materialized tuple of the result set.
type Row = expr.Row

// ResultKind distinguishes ResultSet's variants, mirroring the source's
// ResultSet enum (spec §4.9).
type ResultKind int

const (
	ResultBegin ResultKind = iota
	ResultCommit
	ResultRollback
	ResultCreate
	ResultDelete
	ResultUpdate
	ResultCreateTable
	ResultDropTable
	ResultQuery
	ResultExplain
)

// ResultSet is the outcome of executing one statement: either a count
// carrying result (Create/Delete/Update/CreateTable/DropTable/
// Begin/Commit/Rollback), a materialized Query (Columns/Rows), or an
// Explain plan tree.
type ResultSet struct {
	Kind    ResultKind
	Count   uint64
	Name    string
	TxnID   uint64
	Mode    mvcc.Mode
	Columns []*string
	Rows    []Row
	Plan    plan.Node
}

// Execute runs node against txn and returns its materialized result.
func Execute(node plan.Node, txn *sqlengine.Transaction) (ResultSet, error) {
	switch n := node.(type) {
	case *plan.Scan:
		return execScan(n, txn)
	case *plan.KeyLookup:
		return execKeyLookup(n, txn)
	case *plan.IndexLookup:
		return execIndexLookup(n, txn)
	case *plan.Nothing:
		return execNothing()
	case *plan.Filter:
		return execFilter(n, txn)
	case *plan.Projection:
		return execProjection(n, txn)
	case *plan.Order:
		return execOrder(n, txn)
	case *plan.Limit:
		return execLimit(n, txn)
	case *plan.Offset:
		return execOffset(n, txn)
	case *plan.NestedLoopJoin:
		return execNestedLoopJoin(n, txn)
	case *plan.HashJoin:
		return execHashJoin(n, txn)
	case *plan.Aggregation:
		return execAggregation(n, txn)
	case *plan.Insert:
		return execInsert(n, txn)
	case *plan.Update:
		return execUpdate(n, txn)
	case *plan.Delete:
		return execDelete(n, txn)
	case *plan.CreateTable:
		return execCreateTable(n, txn)
	case *plan.DropTable:
		return execDropTable(n, txn)
	default:
		return ResultSet{}, dberrors.New(dberrors.Executor, "no executor for plan node %T", node)
	}
}

// columnNames returns table's column names as display labels, in
// column order.
func columnNames(table sqlengine.Table) []*string {
	names := make([]*string, len(table.Columns))
	for i, c := range table.Columns {
		name := c.Name
		names[i] = &name
	}
	return names
}

func requireQuery(rs ResultSet) (ResultSet, error) {
	if rs.Kind != ResultQuery {
		return ResultSet{}, dberrors.New(dberrors.Executor, "expected a query result, got kind %d", rs.Kind)
	}
	return rs, nil
}
