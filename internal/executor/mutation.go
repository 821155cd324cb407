package executor

import (
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
)

// Grounded on original_source/src/sql/execution/mutation.rs's Insert,
// Update, and Delete.
//
// Dropped: the source's Insert re-derives each row's column order and
// default-value fallback at execution time (building a name->value map,
// then walking the table's own column list filling in defaults or
// erroring). planner.buildInsert already resolves column order and
// folds in defaults once, at plan time (see DESIGN.md), so
// plan.Insert.Columns/Expressions arrive already in table-column
// order with every default already an expr.Constant -- redoing that
// work here would just be duplicated, divergence-prone logic.
//
// Bug fix, not preserved: the source's Delete executor returns
// `ResultSet::Update { count }` instead of `ResultSet::Delete { count
// }` -- a copy-paste artifact from the Update executor defined
// directly above it in the same file. This executor reports
// ResultDelete.

func execInsert(n *plan.Insert, txn *sqlengine.Transaction) (ResultSet, error) {
	var count uint64
	for _, rowExprs := range n.Expressions {
		row := make(Row, len(rowExprs))
		for i, e := range rowExprs {
			v, err := e.Evaluate(nil)
			if err != nil {
				return ResultSet{}, err
			}
			row[i] = v
		}
		if err := txn.Create(n.Table, row); err != nil {
			return ResultSet{}, err
		}
		count++
	}
	return ResultSet{Kind: ResultCreate, Count: count}, nil
}

func execUpdate(n *plan.Update, txn *sqlengine.Transaction) (ResultSet, error) {
	table, err := txn.MustReadTable(n.Table)
	if err != nil {
		return ResultSet{}, err
	}
	keyIndex, err := primaryKeyIndex(table)
	if err != nil {
		return ResultSet{}, err
	}

	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}

	var count uint64
	for _, row := range src.Rows {
		pk := row[keyIndex]
		newRow := append(Row{}, row...)
		for _, item := range n.Set {
			v, err := item.Expression.Evaluate(row)
			if err != nil {
				return ResultSet{}, err
			}
			newRow[item.Index] = v
		}
		if err := txn.Update(n.Table, pk, newRow); err != nil {
			return ResultSet{}, err
		}
		count++
	}
	return ResultSet{Kind: ResultUpdate, Count: count}, nil
}

func execDelete(n *plan.Delete, txn *sqlengine.Transaction) (ResultSet, error) {
	table, err := txn.MustReadTable(n.Table)
	if err != nil {
		return ResultSet{}, err
	}
	keyIndex, err := primaryKeyIndex(table)
	if err != nil {
		return ResultSet{}, err
	}

	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}

	var count uint64
	for _, row := range src.Rows {
		if err := txn.Delete(n.Table, row[keyIndex]); err != nil {
			return ResultSet{}, err
		}
		count++
	}
	return ResultSet{Kind: ResultDelete, Count: count}, nil
}

func primaryKeyIndex(table sqlengine.Table) (int, error) {
	for i, c := range table.Columns {
		if c.PrimaryKey {
			return i, nil
		}
	}
	return 0, dberrors.New(dberrors.Executor, "table %s has no primary key", table.Name)
}
