package executor

import (
	"sort"

	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/coledb/coledb/internal/value"
)

// Grounded on original_source/src/sql/execution/query.rs's Filter,
// Projection, Order, Limit, and Offset, ported directly.

func execFilter(n *plan.Filter, txn *sqlengine.Transaction) (ResultSet, error) {
	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}
	rows := make([]Row, 0, len(src.Rows))
	for _, row := range src.Rows {
		result, err := n.Predicate.Evaluate(row)
		if err != nil {
			return ResultSet{}, err
		}
		switch {
		case result.IsNull(), result.Kind == value.KindBool && !result.Bool:
			continue
		case result.Kind == value.KindBool && result.Bool:
			rows = append(rows, row)
		default:
			return ResultSet{}, dberrors.New(dberrors.Executor, "filter predicate must evaluate to a boolean, got %s", result.Kind)
		}
	}
	return ResultSet{Kind: ResultQuery, Columns: src.Columns, Rows: rows}, nil
}

func execProjection(n *plan.Projection, txn *sqlengine.Transaction) (ResultSet, error) {
	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}

	columns := make([]*string, len(n.Expressions))
	for i, item := range n.Expressions {
		switch {
		case item.Label != nil:
			label := *item.Label
			columns[i] = &label
		default:
			if f, ok := item.Expression.(*expr.Field); ok && f.Index < len(src.Columns) {
				columns[i] = src.Columns[f.Index]
			}
		}
	}

	rows := make([]Row, len(src.Rows))
	for r, row := range src.Rows {
		out := make(Row, len(n.Expressions))
		for i, item := range n.Expressions {
			v, err := item.Expression.Evaluate(row)
			if err != nil {
				return ResultSet{}, err
			}
			out[i] = v
		}
		rows[r] = out
	}
	return ResultSet{Kind: ResultQuery, Columns: columns, Rows: rows}, nil
}

func execOrder(n *plan.Order, txn *sqlengine.Transaction) (ResultSet, error) {
	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}

	keys := make([][]value.Value, len(src.Rows))
	for r, row := range src.Rows {
		key := make([]value.Value, len(n.Orders))
		for i, ord := range n.Orders {
			v, err := ord.Expression.Evaluate(row)
			if err != nil {
				return ResultSet{}, err
			}
			key[i] = v
		}
		keys[r] = key
	}

	idx := make([]int, len(src.Rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		for i, ord := range n.Orders {
			c := value.Compare(ka[i], kb[i])
			if c == 0 {
				continue
			}
			if ord.Descending {
				c = -c
			}
			return c < 0
		}
		return false
	})

	rows := make([]Row, len(src.Rows))
	for i, j := range idx {
		rows[i] = src.Rows[j]
	}
	return ResultSet{Kind: ResultQuery, Columns: src.Columns, Rows: rows}, nil
}

func execLimit(n *plan.Limit, txn *sqlengine.Transaction) (ResultSet, error) {
	limit, err := n.Limit.Evaluate(nil)
	if err != nil {
		return ResultSet{}, err
	}
	if limit.Kind != value.KindInteger {
		return ResultSet{}, dberrors.New(dberrors.Executor, "LIMIT must evaluate to an integer, got %s", limit.Kind)
	}
	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}
	count := int(limit.I)
	if count < 0 {
		count = 0
	}
	if count > len(src.Rows) {
		count = len(src.Rows)
	}
	return ResultSet{Kind: ResultQuery, Columns: src.Columns, Rows: src.Rows[:count]}, nil
}

func execOffset(n *plan.Offset, txn *sqlengine.Transaction) (ResultSet, error) {
	offset, err := n.Offset.Evaluate(nil)
	if err != nil {
		return ResultSet{}, err
	}
	if offset.Kind != value.KindInteger {
		return ResultSet{}, dberrors.New(dberrors.Executor, "OFFSET must evaluate to an integer, got %s", offset.Kind)
	}
	src, err := executeQuery(n.Source, txn)
	if err != nil {
		return ResultSet{}, err
	}
	count := int(offset.I)
	if count < 0 {
		count = 0
	}
	if count > len(src.Rows) {
		count = len(src.Rows)
	}
	return ResultSet{Kind: ResultQuery, Columns: src.Columns, Rows: src.Rows[count:]}, nil
}

// executeQuery runs node and requires its result to be a Query, for
// operators whose Source must itself produce rows.
func executeQuery(node plan.Node, txn *sqlengine.Transaction) (ResultSet, error) {
	rs, err := Execute(node, txn)
	if err != nil {
		return ResultSet{}, err
	}
	return requireQuery(rs)
}
