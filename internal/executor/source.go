package executor

import (
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
	"github.com/coledb/coledb/internal/value"
)

// Grounded on original_source/src/sql/execution/source.rs's Scan,
// KeyLookUp, IndexLookUp, and Nothing, ported directly.

func execScan(n *plan.Scan, txn *sqlengine.Transaction) (ResultSet, error) {
	table, err := txn.MustReadTable(n.Table)
	if err != nil {
		return ResultSet{}, err
	}
	rows, err := txn.Scan(n.Table, n.Filter)
	if err != nil {
		return ResultSet{}, err
	}
	return ResultSet{Kind: ResultQuery, Columns: columnNames(table), Rows: rows}, nil
}

func execKeyLookup(n *plan.KeyLookup, txn *sqlengine.Transaction) (ResultSet, error) {
	table, err := txn.MustReadTable(n.Table)
	if err != nil {
		return ResultSet{}, err
	}
	var rows []Row
	for _, key := range n.Keys {
		row, found, err := txn.Read(n.Table, key)
		if err != nil {
			return ResultSet{}, err
		}
		if found {
			rows = append(rows, row)
		}
	}
	return ResultSet{Kind: ResultQuery, Columns: columnNames(table), Rows: rows}, nil
}

func execIndexLookup(n *plan.IndexLookup, txn *sqlengine.Transaction) (ResultSet, error) {
	table, err := txn.MustReadTable(n.Table)
	if err != nil {
		return ResultSet{}, err
	}

	seen := make(map[any]struct{})
	var keys []value.Value
	for _, v := range n.Values {
		entries, err := txn.ReadIndex(n.Table, n.Column, v)
		if err != nil {
			return ResultSet{}, err
		}
		for _, pk := range entries {
			key := pk.HashKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, pk)
		}
	}

	var rows []Row
	for _, pk := range keys {
		row, found, err := txn.Read(n.Table, pk)
		if err != nil {
			return ResultSet{}, err
		}
		if found {
			rows = append(rows, row)
		}
	}
	return ResultSet{Kind: ResultQuery, Columns: columnNames(table), Rows: rows}, nil
}

func execNothing() (ResultSet, error) {
	return ResultSet{Kind: ResultQuery, Rows: []Row{{}}}, nil
}
