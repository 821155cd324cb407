package executor

import (
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/coledb/coledb/internal/value"
)

// Grounded on original_source/src/sql/execution/join.rs's
// NestedLoopJoin and HashJoin.
//
// Bug fix, not preserved: the source's NestedLoopJoin::generate_row
// builds base_res (the matches found for the current left row) but
// never appends it to the running result -- res only ever gains a row
// via the *no-match* branch, and that branch's own condition
// (`res.len() == 0 && outer`) checks the accumulated *overall* result
// size rather than whether the current left row itself matched
// anything, so outer-join padding fires for at most one left row total
// instead of per left row with no match. This executor tracks whether
// each left row matched anything in its own inner loop instead.

func execNestedLoopJoin(n *plan.NestedLoopJoin, txn *sqlengine.Transaction) (ResultSet, error) {
	left, err := executeQuery(n.Left, txn)
	if err != nil {
		return ResultSet{}, err
	}
	right, err := executeQuery(n.Right, txn)
	if err != nil {
		return ResultSet{}, err
	}

	columns := append(append([]*string{}, left.Columns...), right.Columns...)
	padding := make(Row, len(right.Columns))
	for i := range padding {
		padding[i] = value.Null()
	}

	var rows []Row
	for _, lrow := range left.Rows {
		matched := false
		for _, rrow := range right.Rows {
			row := make(Row, 0, len(lrow)+len(rrow))
			row = append(row, lrow...)
			row = append(row, rrow...)
			if n.Predicate == nil {
				rows = append(rows, row)
				matched = true
				continue
			}
			result, err := n.Predicate.Evaluate(row)
			if err != nil {
				return ResultSet{}, err
			}
			if result.Kind == value.KindBool && result.Bool {
				rows = append(rows, row)
				matched = true
			}
		}
		if !matched && n.Outer {
			row := make(Row, 0, len(lrow)+len(padding))
			row = append(row, lrow...)
			row = append(row, padding...)
			rows = append(rows, row)
		}
	}
	return ResultSet{Kind: ResultQuery, Columns: columns, Rows: rows}, nil
}

func execHashJoin(n *plan.HashJoin, txn *sqlengine.Transaction) (ResultSet, error) {
	left, err := executeQuery(n.Left, txn)
	if err != nil {
		return ResultSet{}, err
	}
	right, err := executeQuery(n.Right, txn)
	if err != nil {
		return ResultSet{}, err
	}

	table := make(map[any][]Row, len(right.Rows))
	for _, row := range right.Rows {
		if n.RightField.Index >= len(row) {
			return ResultSet{}, dberrors.New(dberrors.Executor, "hash join right field index %d out of bounds for row of width %d", n.RightField.Index, len(row))
		}
		key := row[n.RightField.Index].HashKey()
		table[key] = append(table[key], row)
	}

	columns := append(append([]*string{}, left.Columns...), right.Columns...)
	padding := make(Row, len(right.Columns))
	for i := range padding {
		padding[i] = value.Null()
	}

	var rows []Row
	for _, lrow := range left.Rows {
		if n.LeftField.Index >= len(lrow) {
			return ResultSet{}, dberrors.New(dberrors.Executor, "hash join left field index %d out of bounds for row of width %d", n.LeftField.Index, len(lrow))
		}
		matches, ok := table[lrow[n.LeftField.Index].HashKey()]
		switch {
		case ok:
			for _, match := range matches {
				row := make(Row, 0, len(lrow)+len(match))
				row = append(row, lrow...)
				row = append(row, match...)
				rows = append(rows, row)
			}
		case n.Outer:
			row := make(Row, 0, len(lrow)+len(padding))
			row = append(row, lrow...)
			row = append(row, padding...)
			rows = append(rows, row)
		}
	}
	return ResultSet{Kind: ResultQuery, Columns: columns, Rows: rows}, nil
}
