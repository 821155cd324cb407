// Package sqlengine layers tables, rows, and indexes on top of an
// mvcc.Transaction (spec §4.4). Keys are encoded with a SQL-level
// prefix (Table/Index/Row) before going through the MVCC record key
// space; rows and indexes are gob-encoded blobs, while the key bytes
// themselves use internal/encoding's order-preserving codecs.
package sqlengine

import (
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/value"
)

// Table is a SQL table definition (spec §3).
type Table struct {
	Name    string
	Columns []Column
}

// Column is one column of a Table (spec §3).
type Column struct {
	Name       string
	Type       value.ColumnType
	PrimaryKey bool
	Nullable   bool
	Default    value.Value
	HasDefault bool
	Unique     bool
	Index      bool
}

// Validate checks the invariants of spec §3: exactly one primary key,
// the primary key is not nullable, and every column's default (if any)
// either matches its declared type or the column is nullable.
//
// Grounded on original_source/src/sql/mod.rs's Table::validate.
func (t Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Columns))
	pkCount := 0
	for _, c := range t.Columns {
		if _, dup := seen[c.Name]; dup {
			return dberrors.New(dberrors.Schema, "duplicate column %q in table %q", c.Name, t.Name)
		}
		seen[c.Name] = struct{}{}

		if c.PrimaryKey {
			pkCount++
			if c.Nullable {
				return dberrors.New(dberrors.Schema, "primary key column %q cannot be nullable", c.Name)
			}
		}

		if c.HasDefault {
			if dt, ok := c.Default.Datatype(); ok {
				if dt != c.Type {
					return dberrors.New(dberrors.Schema, "default value for column %q does not match its type", c.Name)
				}
			} else if !c.Nullable {
				return dberrors.New(dberrors.Schema, "column %q has a null default but is not nullable", c.Name)
			}
		} else if c.Nullable {
			return dberrors.New(dberrors.Schema, "nullable column %q must declare a default value", c.Name)
		}
	}
	if pkCount != 1 {
		return dberrors.New(dberrors.Schema, "table %q must have exactly one primary key column, found %d", t.Name, pkCount)
	}
	return nil
}

// ColumnIndex returns the index of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// PrimaryKeyIndex returns the index of the table's primary key column.
// Validate must have already confirmed exactly one exists.
func (t Table) PrimaryKeyIndex() int {
	for i, c := range t.Columns {
		if c.PrimaryKey {
			return i
		}
	}
	return -1
}

// RowKey extracts the primary key value from a row.
//
// Grounded on original_source/src/sql/mod.rs's Table::get_row_key.
func (t Table) RowKey(row []value.Value) value.Value {
	return row[t.PrimaryKeyIndex()]
}

// CheckRow validates a row's shape (column count) and per-column types
// and nullability. Uniqueness is checked separately by the transaction,
// since it requires consulting other rows.
//
// Grounded on original_source/src/sql/mod.rs's Table::check_row.
func (t Table) CheckRow(row []value.Value) error {
	if len(row) != len(t.Columns) {
		return dberrors.New(dberrors.Row, "table %q expects %d columns, got %d", t.Name, len(t.Columns), len(row))
	}
	for i, c := range t.Columns {
		if err := c.validateValue(row[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateValue checks a single value's type and nullability against
// its column's declaration, not its uniqueness.
func (c Column) validateValue(v value.Value) error {
	if v.IsNull() {
		if !c.Nullable {
			return dberrors.New(dberrors.Row, "column %q cannot be null", c.Name)
		}
		return nil
	}
	if dt, ok := v.Datatype(); !ok || dt != c.Type {
		return dberrors.New(dberrors.Row, "column %q expects type %s, got %s", c.Name, c.Type, v.String())
	}
	return nil
}
