// Package ast defines the Abstract Syntax Tree nodes produced by coledb's
// SQL parser (spec §4.6). The tree is name-based: field references carry
// an optional table qualifier and are resolved against a Scope at plan
// time (see package planner); nothing here is index-resolved.
package ast

import (
	"fmt"
	"strings"

	"github.com/coledb/coledb/internal/value"
	"github.com/coledb/coledb/token"
)

// Node is any AST node.
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement is a top-level SQL statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a name-based scalar expression.
type Expression interface {
	Node
	expressionNode()
}

// -----------------------------------------------------------------------------
// Transaction control
// -----------------------------------------------------------------------------

// BeginStatement starts a transaction. Version, if non-nil, requests a
// read-only snapshot as of that transaction id (spec §4.3 Mode).
type BeginStatement struct {
	Token    token.Token
	ReadOnly bool
	Version  *uint64
}

func (b *BeginStatement) statementNode()       {}
func (b *BeginStatement) TokenLiteral() string { return b.Token.Literal }
func (b *BeginStatement) String() string {
	var out strings.Builder
	out.WriteString("BEGIN")
	if b.ReadOnly {
		out.WriteString(" TRANSACTION READ ONLY")
	}
	if b.Version != nil {
		fmt.Fprintf(&out, " AS OF SYSTEM TIME %d", *b.Version)
	}
	return out.String()
}

// CommitStatement commits the session's current transaction.
type CommitStatement struct{ Token token.Token }

func (c *CommitStatement) statementNode()       {}
func (c *CommitStatement) TokenLiteral() string { return c.Token.Literal }
func (c *CommitStatement) String() string       { return "COMMIT" }

// RollbackStatement aborts the session's current transaction.
type RollbackStatement struct{ Token token.Token }

func (r *RollbackStatement) statementNode()       {}
func (r *RollbackStatement) TokenLiteral() string { return r.Token.Literal }
func (r *RollbackStatement) String() string       { return "ROLLBACK" }

// ExplainStatement wraps another statement, requesting its plan instead
// of its execution.
type ExplainStatement struct {
	Token     token.Token
	Statement Statement
}

func (e *ExplainStatement) statementNode()       {}
func (e *ExplainStatement) TokenLiteral() string { return e.Token.Literal }
func (e *ExplainStatement) String() string       { return "EXPLAIN " + e.Statement.String() }

// -----------------------------------------------------------------------------
// Schema DDL
// -----------------------------------------------------------------------------

// Column describes one column in a CREATE TABLE statement.
type Column struct {
	Name       string
	Type       value.ColumnType
	PrimaryKey bool
	// Nullable is nil when the column omitted NULL/NOT NULL entirely
	// (the planner then defaults it per spec §4.7).
	Nullable *bool
	Default  Expression
	Unique   bool
	Index    bool
}

func (c *Column) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "%s %s", c.Name, c.Type)
	if c.PrimaryKey {
		out.WriteString(" PRIMARY KEY")
	}
	if c.Nullable != nil {
		if *c.Nullable {
			out.WriteString(" NULL")
		} else {
			out.WriteString(" NOT NULL")
		}
	}
	if c.Default != nil {
		out.WriteString(" DEFAULT " + c.Default.String())
	}
	if c.Unique {
		out.WriteString(" UNIQUE")
	}
	if c.Index {
		out.WriteString(" INDEX")
	}
	return out.String()
}

// CreateTableStatement creates a table with the given columns.
type CreateTableStatement struct {
	Token   token.Token
	Name    string
	Columns []*Column
}

func (c *CreateTableStatement) statementNode()       {}
func (c *CreateTableStatement) TokenLiteral() string { return c.Token.Literal }
func (c *CreateTableStatement) String() string {
	cols := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = col.String()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", c.Name, strings.Join(cols, ", "))
}

// DropTableStatement drops a table by name.
type DropTableStatement struct {
	Token token.Token
	Name  string
}

func (d *DropTableStatement) statementNode()       {}
func (d *DropTableStatement) TokenLiteral() string { return d.Token.Literal }
func (d *DropTableStatement) String() string       { return "DROP TABLE " + d.Name }

// -----------------------------------------------------------------------------
// DML
// -----------------------------------------------------------------------------

// InsertStatement inserts one or more rows into a table. Columns is nil
// when the statement omitted the column list (full column order applies,
// resolved by the planner).
type InsertStatement struct {
	Token   token.Token
	Table   string
	Columns []string
	Values  [][]Expression
}

func (i *InsertStatement) statementNode()       {}
func (i *InsertStatement) TokenLiteral() string { return i.Token.Literal }
func (i *InsertStatement) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "INSERT INTO %s", i.Table)
	if i.Columns != nil {
		fmt.Fprintf(&out, " (%s)", strings.Join(i.Columns, ", "))
	}
	out.WriteString(" VALUES ")
	rows := make([]string, len(i.Values))
	for r, row := range i.Values {
		vals := make([]string, len(row))
		for c, v := range row {
			vals[c] = v.String()
		}
		rows[r] = "(" + strings.Join(vals, ", ") + ")"
	}
	out.WriteString(strings.Join(rows, ", "))
	return out.String()
}

// UpdateStatement rewrites matching rows in a table. Set is ordered for
// deterministic String() output; each assignment's expression is
// resolved against the table being updated, so it may reference the
// row's own columns (see package planner's deviation note, recorded in
// DESIGN.md).
type UpdateStatement struct {
	Token  token.Token
	Table  string
	Set    []SetClause
	Filter Expression
}

// SetClause is one `column = expr` assignment in an UPDATE statement.
type SetClause struct {
	Column     string
	Expression Expression
}

func (u *UpdateStatement) statementNode()       {}
func (u *UpdateStatement) TokenLiteral() string { return u.Token.Literal }
func (u *UpdateStatement) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "UPDATE %s SET ", u.Table)
	sets := make([]string, len(u.Set))
	for i, s := range u.Set {
		sets[i] = s.Column + " = " + s.Expression.String()
	}
	out.WriteString(strings.Join(sets, ", "))
	if u.Filter != nil {
		out.WriteString(" WHERE " + u.Filter.String())
	}
	return out.String()
}

// DeleteStatement removes matching rows from a table.
type DeleteStatement struct {
	Token  token.Token
	Table  string
	Filter Expression
}

func (d *DeleteStatement) statementNode()       {}
func (d *DeleteStatement) TokenLiteral() string { return d.Token.Literal }
func (d *DeleteStatement) String() string {
	out := "DELETE FROM " + d.Table
	if d.Filter != nil {
		out += " WHERE " + d.Filter.String()
	}
	return out
}

// -----------------------------------------------------------------------------
// SELECT
// -----------------------------------------------------------------------------

// SelectItem is one projected expression, optionally aliased.
type SelectItem struct {
	Expression Expression
	Label      *string
}

// OrderType is the sort direction of an ORDER BY term.
type OrderType int

const (
	Ascending OrderType = iota
	Descending
)

func (o OrderType) String() string {
	if o == Ascending {
		return "ASC"
	}
	return "DESC"
}

// OrderTerm is one ORDER BY expression and its direction.
type OrderTerm struct {
	Expression Expression
	Order      OrderType
}

// SelectStatement is a full SELECT query, holding every optional clause
// in its parsed form (spec §4.6).
type SelectStatement struct {
	Token   token.Token
	Select  []SelectItem
	From    FromItem // nil when FROM is omitted
	Filter  Expression
	GroupBy []Expression
	Having  Expression
	Order   []OrderTerm
	Offset  Expression
	Limit   Expression
}

func (s *SelectStatement) statementNode()       {}
func (s *SelectStatement) TokenLiteral() string { return s.Token.Literal }
func (s *SelectStatement) String() string {
	var out strings.Builder
	out.WriteString("SELECT ")
	if len(s.Select) == 0 {
		out.WriteString("*")
	} else {
		items := make([]string, len(s.Select))
		for i, it := range s.Select {
			str := it.Expression.String()
			if it.Label != nil {
				str += " AS " + *it.Label
			}
			items[i] = str
		}
		out.WriteString(strings.Join(items, ", "))
	}
	if s.From != nil {
		out.WriteString(" FROM " + s.From.String())
	}
	if s.Filter != nil {
		out.WriteString(" WHERE " + s.Filter.String())
	}
	if len(s.GroupBy) > 0 {
		groups := make([]string, len(s.GroupBy))
		for i, g := range s.GroupBy {
			groups[i] = g.String()
		}
		out.WriteString(" GROUP BY " + strings.Join(groups, ", "))
	}
	if s.Having != nil {
		out.WriteString(" HAVING " + s.Having.String())
	}
	if len(s.Order) > 0 {
		orders := make([]string, len(s.Order))
		for i, o := range s.Order {
			orders[i] = o.Expression.String() + " " + o.Order.String()
		}
		out.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if s.Offset != nil {
		out.WriteString(" OFFSET " + s.Offset.String())
	}
	if s.Limit != nil {
		out.WriteString(" LIMIT " + s.Limit.String())
	}
	return out.String()
}

// -----------------------------------------------------------------------------
// FROM / JOIN
// -----------------------------------------------------------------------------

// JoinType is the kind of join connecting two FromItems.
type JoinType int

const (
	JoinCross JoinType = iota
	JoinInner
	JoinLeft
	JoinRight
)

func (j JoinType) String() string {
	switch j {
	case JoinCross:
		return "CROSS JOIN"
	case JoinInner:
		return "JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	default:
		return "JOIN"
	}
}

// FromItem is either a base table or a join of two FromItems.
type FromItem interface {
	Node
	fromItemNode()
}

// TableItem names a single table, with an optional alias.
type TableItem struct {
	Name  string
	Alias *string
}

func (t *TableItem) fromItemNode()        {}
func (t *TableItem) TokenLiteral() string { return t.Name }
func (t *TableItem) String() string {
	if t.Alias != nil {
		return t.Name + " AS " + *t.Alias
	}
	return t.Name
}

// JoinItem connects two FromItems, with an optional predicate (absent
// for CROSS JOIN, and for JOIN/LEFT/RIGHT without an ON clause).
type JoinItem struct {
	Left      FromItem
	Right     FromItem
	JoinType  JoinType
	Predicate Expression
}

func (j *JoinItem) fromItemNode()        {}
func (j *JoinItem) TokenLiteral() string { return j.JoinType.String() }
func (j *JoinItem) String() string {
	out := j.Left.String() + " " + j.JoinType.String() + " " + j.Right.String()
	if j.Predicate != nil {
		out += " ON " + j.Predicate.String()
	}
	return out
}

// -----------------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------------

// Literal is a constant value appearing directly in SQL text.
type Literal struct {
	Token token.Token
	Value value.Value
}

func (l *Literal) expressionNode()      {}
func (l *Literal) TokenLiteral() string { return l.Token.Literal }
func (l *Literal) String() string       { return l.Value.String() }

// FieldReference names a column, optionally qualified by a table or
// alias name.
type FieldReference struct {
	Token token.Token
	Table *string
	Name  string
}

func (f *FieldReference) expressionNode()      {}
func (f *FieldReference) TokenLiteral() string { return f.Token.Literal }
func (f *FieldReference) String() string {
	if f.Table != nil {
		return *f.Table + "." + f.Name
	}
	return f.Name
}

// ColumnRef is a planner-internal placeholder produced while rewriting
// a SELECT list for aggregates/GROUP BY: it stands in for "whatever
// expression ends up at this position of the eventual output," letting
// the planner swap an aggregate call or a GROUP BY key out of the
// SELECT list and leave a plain positional reference behind. Never
// produced by the parser.
type ColumnRef struct {
	Index int
}

func (c *ColumnRef) expressionNode()      {}
func (c *ColumnRef) TokenLiteral() string { return "" }
func (c *ColumnRef) String() string       { return fmt.Sprintf("#%d", c.Index) }

// FunctionCall is a named function applied to a single argument, e.g.
// `COUNT(x)` or `COUNT(*)` (the latter parses its argument as a literal
// true placeholder, per spec §4.6).
type FunctionCall struct {
	Token    token.Token
	Name     string
	Argument Expression
}

func (f *FunctionCall) expressionNode()      {}
func (f *FunctionCall) TokenLiteral() string { return f.Token.Literal }
func (f *FunctionCall) String() string       { return f.Name + "(" + f.Argument.String() + ")" }

// OperatorKind identifies a unary or binary operation.
type OperatorKind int

const (
	OpNegative OperatorKind = iota // unary -
	OpPlus                         // unary +
	OpNot                          // unary NOT / !
	OpIsNull                       // postfix IS NULL

	OpAnd
	OpOr
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpExponentiate
	OpLike
)

// UnaryOperation is a prefix or postfix unary operator over a single
// operand (Negative, Plus, Not, IsNull).
type UnaryOperation struct {
	Token    token.Token
	Operator OperatorKind
	Operand  Expression
}

func (u *UnaryOperation) expressionNode()      {}
func (u *UnaryOperation) TokenLiteral() string { return u.Token.Literal }
func (u *UnaryOperation) String() string {
	switch u.Operator {
	case OpNegative:
		return "(-" + u.Operand.String() + ")"
	case OpPlus:
		return "(+" + u.Operand.String() + ")"
	case OpNot:
		return "(NOT " + u.Operand.String() + ")"
	case OpIsNull:
		return "(" + u.Operand.String() + " IS NULL)"
	default:
		return u.Operand.String()
	}
}

// BinaryOperation is an infix operator over two operands.
type BinaryOperation struct {
	Token    token.Token
	Operator OperatorKind
	Left     Expression
	Right    Expression
}

var binarySymbols = map[OperatorKind]string{
	OpAnd: "AND", OpOr: "OR", OpEqual: "=", OpNotEqual: "!=",
	OpGreaterThan: ">", OpGreaterThanOrEqual: ">=",
	OpLessThan: "<", OpLessThanOrEqual: "<=",
	OpAdd: "+", OpSubtract: "-", OpMultiply: "*", OpDivide: "/",
	OpExponentiate: "^", OpLike: "LIKE",
}

func (b *BinaryOperation) expressionNode()      {}
func (b *BinaryOperation) TokenLiteral() string { return b.Token.Literal }
func (b *BinaryOperation) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), binarySymbols[b.Operator], b.Right.String())
}

// Transform applies before (pre-order) and after (post-order) callbacks
// to every Expression reachable from expr, replacing each node with
// whatever its callbacks return. Either callback may be nil. Children are
// always visited before the after callback looks at the parent.
func Transform(expr Expression, before, after func(Expression) Expression) Expression {
	if expr == nil {
		return nil
	}
	if before != nil {
		expr = before(expr)
	}
	switch e := expr.(type) {
	case *UnaryOperation:
		e.Operand = Transform(e.Operand, before, after)
	case *BinaryOperation:
		e.Left = Transform(e.Left, before, after)
		e.Right = Transform(e.Right, before, after)
	case *FunctionCall:
		e.Argument = Transform(e.Argument, before, after)
	}
	if after != nil {
		expr = after(expr)
	}
	return expr
}

// Contains reports whether expr or any of its descendants satisfies pred.
func Contains(expr Expression, pred func(Expression) bool) bool {
	if expr == nil {
		return false
	}
	if pred(expr) {
		return true
	}
	switch e := expr.(type) {
	case *UnaryOperation:
		return Contains(e.Operand, pred)
	case *BinaryOperation:
		return Contains(e.Left, pred) || Contains(e.Right, pred)
	case *FunctionCall:
		return Contains(e.Argument, pred)
	}
	return false
}

// ContainsAggregate reports whether expr contains a call to one of the
// recognized aggregate function names (case-insensitive match left to
// the caller via isAggregate).
func ContainsAggregate(expr Expression, isAggregate func(name string) bool) bool {
	return Contains(expr, func(e Expression) bool {
		fn, ok := e.(*FunctionCall)
		return ok && isAggregate(fn.Name)
	})
}
