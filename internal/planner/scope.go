// Package planner turns a parsed ast.Statement into a plan.Node tree
// (spec §4.7), resolving every field reference to a positional index
// via a Scope (spec §4.7.1).
package planner

import (
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/sqlengine"
)

// scopeColumn is one entry of a Scope's output column list: the table
// it came from (nil if anonymous/computed) and its label (nil if
// unreachable by name, only by positional index).
type scopeColumn struct {
	table *string
	label *string
}

// Scope is the name-resolution context threaded through planning: the
// tables registered so far, the ordered output column list, and the
// qualified/unqualified lookup maps built from it (spec §4.7.1).
type Scope struct {
	constant    bool
	tables      map[string]sqlengine.Table
	columns     []scopeColumn
	qualified   map[[2]string]int
	unqualified map[string]int
	ambiguous   map[string]struct{}
}

// NewScope returns an empty scope with no tables registered yet.
func NewScope() *Scope {
	return &Scope{
		tables:      make(map[string]sqlengine.Table),
		qualified:   make(map[[2]string]int),
		unqualified: make(map[string]int),
		ambiguous:   make(map[string]struct{}),
	}
}

// ConstantScope returns a scope that rejects every table/column
// reference, used wherever the spec requires "evaluated against a
// constant-only scope" (CREATE TABLE defaults, INSERT values,
// LIMIT/OFFSET expressions).
func ConstantScope() *Scope {
	s := NewScope()
	s.constant = true
	return s
}

// ColumnSize reports the number of columns currently in scope.
func (s *Scope) ColumnSize() int { return len(s.columns) }

// RegisterTable adds every column of table to the scope, in order,
// under both its qualified (table.column) and unqualified (column)
// names. A name already unqualified-registered by an earlier table
// becomes ambiguous and can only be looked up qualified from then on.
func (s *Scope) RegisterTable(table sqlengine.Table) error {
	if s.constant {
		return dberrors.New(dberrors.Plan, "constant scope cannot register a table")
	}
	if _, dup := s.tables[table.Name]; dup {
		return dberrors.New(dberrors.Plan, "table %q already registered in this scope", table.Name)
	}
	tableName := table.Name
	for _, c := range table.Columns {
		s.addColumn(&tableName, &c.Name)
	}
	s.tables[table.Name] = table
	return nil
}

// addColumn appends one column to the scope and updates the qualified/
// unqualified lookup maps, marking a repeated unqualified label
// ambiguous rather than overwriting it.
func (s *Scope) addColumn(table, label *string) {
	index := len(s.columns)
	if label != nil {
		if table != nil {
			s.qualified[[2]string{*table, *label}] = index
		}
		if _, exists := s.unqualified[*label]; exists {
			delete(s.unqualified, *label)
			s.ambiguous[*label] = struct{}{}
		} else {
			s.unqualified[*label] = index
		}
	}
	s.columns = append(s.columns, scopeColumn{table: table, label: label})
}

// columnAt returns the table/label of the scope's column at index i,
// as registered by RegisterTable or carried forward by Project.
func (s *Scope) columnAt(i int) (table *string, label *string) {
	c := s.columns[i]
	return c.table, c.label
}

// ColumnIndex resolves a (table?, name) reference to its position in
// the current output column list.
func (s *Scope) ColumnIndex(table *string, name string) (int, error) {
	if s.constant {
		return 0, dberrors.New(dberrors.Plan, "cannot reference column %q in a constant expression", name)
	}
	if table != nil {
		if _, ok := s.tables[*table]; !ok {
			return 0, dberrors.New(dberrors.Plan, "unknown table %q", *table)
		}
		index, ok := s.qualified[[2]string{*table, name}]
		if !ok {
			return 0, dberrors.New(dberrors.Plan, "no column %s.%s", *table, name)
		}
		return index, nil
	}
	if _, ambiguous := s.ambiguous[name]; ambiguous {
		return 0, dberrors.New(dberrors.Plan, "column reference %q is ambiguous", name)
	}
	index, ok := s.unqualified[name]
	if !ok {
		return 0, dberrors.New(dberrors.Plan, "unknown column %q", name)
	}
	return index, nil
}

// projected is one output column a Project call rebuilds the scope
// from: field carries provenance for a bare Field(i) projection (used
// to preserve that column's reachability by name through the
// projection), label an explicit rename.
type projected struct {
	fieldIndex int
	isField    bool
	label      *string
}

// Project replaces the scope's column list with a new one derived from
// a Projection node's output expressions, matching spec §4.7.1's rule:
// an explicit label renames; a bare Field(i) with no label keeps that
// field's own origin; anything else becomes an anonymous, index-only
// column.
func (s *Scope) Project(items []projected) error {
	if s.constant {
		return dberrors.New(dberrors.Plan, "cannot project a constant scope")
	}
	next := &Scope{
		tables:      s.tables,
		qualified:   make(map[[2]string]int),
		unqualified: make(map[string]int),
		ambiguous:   make(map[string]struct{}),
	}
	for _, it := range items {
		switch {
		case it.label != nil:
			next.addColumn(nil, it.label)
		case it.isField:
			src := s.columns[it.fieldIndex]
			next.addColumn(src.table, src.label)
		default:
			next.addColumn(nil, nil)
		}
	}
	*s = *next
	return nil
}
