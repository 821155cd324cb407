package optimizer

import (
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
)

// IndexLookup replaces a Scan's full-table walk with a direct
// primary-key or secondary-index lookup whenever its Filter pins a
// column to a finite set of values (spec §4.8).
//
// Grounded on optimizer.rs's IndexLookup: for each Scan with a filter,
// it CNF-splits the filter, and for every clause tries look_up against
// the primary key column first, then each indexed column, substituting
// a KeyLookup/IndexLookup node carrying the looked-up values plus a
// residual Filter over whatever CNF clauses weren't consumed. Ported
// directly; Catalog replaces the original's borrowed catalog reference
// since Go has no borrow checker to enforce the lifetime for us.
type IndexLookup struct {
	Catalog *sqlengine.Transaction
}

func (o IndexLookup) Optimize(node plan.Node) (plan.Node, error) {
	var lookErr error
	rewrite := func(n plan.Node) (plan.Node, error) {
		scan, ok := n.(*plan.Scan)
		if !ok || scan.Filter == nil || lookErr != nil {
			return n, lookErr
		}
		table, found, err := o.Catalog.ReadTable(scan.Table)
		if err != nil {
			return nil, err
		}
		if !found {
			return n, nil
		}
		clauses := expr.ToCNF(scan.Filter)
		var residual []expr.Expression
		var replacement plan.Node
		for i, clause := range clauses {
			if replacement != nil {
				residual = append(residual, clauses[i:]...)
				break
			}
			if _, keyIdx, hasKey := keyColumn(table); hasKey {
				if values, matched := expr.LookUp(clause, keyIdx); matched {
					replacement = &plan.KeyLookup{Table: scan.Table, Alias: scan.Alias, Keys: values}
					continue
				}
			}
			if col, idx, matched := indexedColumn(table, clause); matched {
				values, _ := expr.LookUp(clause, idx)
				replacement = &plan.IndexLookup{Table: scan.Table, Alias: scan.Alias, Column: col, Values: values}
				continue
			}
			residual = append(residual, clause)
		}
		if replacement == nil {
			return n, nil
		}
		if len(residual) == 0 {
			return replacement, nil
		}
		return &plan.Filter{Source: replacement, Predicate: expr.FromCNF(residual)}, nil
	}
	result, err := walk(node, rewrite)
	if err != nil {
		return nil, err
	}
	return result, lookErr
}

// keyColumn returns the table's primary key column name and index, if
// it has one.
func keyColumn(table sqlengine.Table) (name string, index int, ok bool) {
	for i, c := range table.Columns {
		if c.PrimaryKey {
			return c.Name, i, true
		}
	}
	return "", 0, false
}

// indexedColumn returns the name and index of an Index column that
// clause could be resolved against.
func indexedColumn(table sqlengine.Table, clause expr.Expression) (name string, index int, ok bool) {
	for i, c := range table.Columns {
		if !c.Index {
			continue
		}
		if _, matched := expr.LookUp(clause, i); matched {
			return c.Name, i, true
		}
	}
	return "", 0, false
}
