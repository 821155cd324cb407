package executor

import (
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
)

// Grounded on original_source/src/sql/execution/schema.rs's
// CreateTable and DeleteTable, ported directly.

func execCreateTable(n *plan.CreateTable, txn *sqlengine.Transaction) (ResultSet, error) {
	columns := make([]sqlengine.Column, len(n.Columns))
	for i, c := range n.Columns {
		columns[i] = sqlengine.Column{
			Name:       c.Name,
			Type:       c.Type,
			PrimaryKey: c.PrimaryKey,
			Nullable:   c.Nullable,
			Default:    c.Default,
			HasDefault: c.HasDefault,
			Unique:     c.Unique,
			Index:      c.Index,
		}
	}
	table := sqlengine.Table{Name: n.Table, Columns: columns}
	if err := txn.CreateTable(table); err != nil {
		return ResultSet{}, err
	}
	return ResultSet{Kind: ResultCreateTable, Name: n.Table}, nil
}

func execDropTable(n *plan.DropTable, txn *sqlengine.Transaction) (ResultSet, error) {
	if err := txn.DeleteTable(n.Table); err != nil {
		return ResultSet{}, err
	}
	return ResultSet{Kind: ResultDropTable, Name: n.Table}, nil
}
