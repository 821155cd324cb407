// Package plan defines coledb's logical/physical plan node tree (spec
// §4.7) and its EXPLAIN tree-drawing renderer.
package plan

import (
	"fmt"
	"strings"

	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/value"
)

// Aggregate names one aggregate function recognized in SELECT lists.
type Aggregate int

const (
	AggregateSum Aggregate = iota
	AggregateAverage
	AggregateCount
	AggregateMax
	AggregateMin
)

func (a Aggregate) String() string {
	switch a {
	case AggregateSum:
		return "Sum"
	case AggregateAverage:
		return "Average"
	case AggregateCount:
		return "Count"
	case AggregateMax:
		return "Max"
	case AggregateMin:
		return "Min"
	default:
		return "?"
	}
}

// ParseAggregate maps a case-insensitive function name to an Aggregate.
func ParseAggregate(name string) (Aggregate, bool) {
	switch strings.ToUpper(name) {
	case "SUM":
		return AggregateSum, true
	case "AVERAGE", "AVG":
		return AggregateAverage, true
	case "COUNT":
		return AggregateCount, true
	case "MAX":
		return AggregateMax, true
	case "MIN":
		return AggregateMin, true
	default:
		return 0, false
	}
}

// Column describes one output column of a CreateTable plan node.
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

// ProjectItem is one projected expression and its optional output label
// (nil reuses the label already carried by the source column).
type ProjectItem struct {
	Expression expr.Expression
	Label      *string
}

// OrderItem is one ORDER BY expression and its direction.
type OrderItem struct {
	Expression expr.Expression
	Descending bool
}

// SetItem is one `#i = expr` assignment in an Update node.
type SetItem struct {
	Index      int
	Expression expr.Expression
}

// FieldRef names a join key field for HashJoin's EXPLAIN rendering.
type FieldRef struct {
	Index  int
	Origin *expr.FieldOrigin
}

func (f FieldRef) displayWithPrefix(prefix string) string {
	switch {
	case f.Origin == nil:
		return fmt.Sprintf("%s #%d", prefix, f.Index)
	case f.Origin.Table != nil:
		return *f.Origin.Table + "." + f.Origin.Label
	default:
		return f.Origin.Label
	}
}

// Node is one node in a plan tree.
type Node interface {
	fmt.Stringer
	planNode()
}

type CreateTable struct {
	Table   string
	Columns []Column
}

type DropTable struct {
	Table string
}

type Insert struct {
	Table       string
	Columns     []string
	Expressions [][]expr.Expression
}

type Update struct {
	Table  string
	Source Node
	Set    []SetItem
}

type Delete struct {
	Table  string
	Source Node
}

type Scan struct {
	Table  string
	Alias  *string
	Filter expr.Expression
}

// NestedLoopJoin joins Left and Right row-by-row. LeftSize is the
// column count of Left's output, used to rebase Right-side field
// indices during filter pushdown and predicate evaluation (spec §4.8).
type NestedLoopJoin struct {
	Left      Node
	Right     Node
	LeftSize  int
	Predicate expr.Expression
	Outer     bool
}

type HashJoin struct {
	Left       Node
	LeftField  FieldRef
	Right      Node
	RightField FieldRef
	Outer      bool
}

type Filter struct {
	Source    Node
	Predicate expr.Expression
}

type Projection struct {
	Source      Node
	Expressions []ProjectItem
}

// Aggregation groups rows of Source by the trailing GroupCount columns
// of Inputs and folds the leading len(Aggregates) columns through each
// matching Aggregate. Inputs is evaluated against Source's raw row
// shape (not the eventual SELECT list) so it must carry the
// expressions to aggregate/group on explicitly; the original source
// this plan tree is grounded on computes that same expression list
// only to fold it into scope bookkeeping and never stores it on the
// node itself, which leaves its own Aggregation executor with no way
// to recover which column holds which input — Inputs exists to fix
// that (see DESIGN.md).
type Aggregation struct {
	Source     Node
	Aggregates []Aggregate
	Inputs     []expr.Expression
	GroupCount int
}

type Order struct {
	Source Node
	Orders []OrderItem
}

type Limit struct {
	Source Node
	Limit  expr.Expression
}

type Offset struct {
	Source Node
	Offset expr.Expression
}

type IndexLookup struct {
	Table  string
	Alias  *string
	Column string
	Values []value.Value
}

type KeyLookup struct {
	Table string
	Alias *string
	Keys  []value.Value
}

type Nothing struct{}

func (*CreateTable) planNode()    {}
func (*DropTable) planNode()      {}
func (*Insert) planNode()         {}
func (*Update) planNode()         {}
func (*Delete) planNode()         {}
func (*Scan) planNode()           {}
func (*NestedLoopJoin) planNode() {}
func (*HashJoin) planNode()       {}
func (*Filter) planNode()         {}
func (*Projection) planNode()     {}
func (*Aggregation) planNode()    {}
func (*Order) planNode()          {}
func (*Limit) planNode()          {}
func (*Offset) planNode()         {}
func (*IndexLookup) planNode()    {}
func (*KeyLookup) planNode()      {}
func (*Nothing) planNode()        {}

func (n *CreateTable) String() string    { return Format(n) }
func (n *DropTable) String() string      { return Format(n) }
func (n *Insert) String() string         { return Format(n) }
func (n *Update) String() string         { return Format(n) }
func (n *Delete) String() string         { return Format(n) }
func (n *Scan) String() string           { return Format(n) }
func (n *NestedLoopJoin) String() string { return Format(n) }
func (n *HashJoin) String() string       { return Format(n) }
func (n *Filter) String() string         { return Format(n) }
func (n *Projection) String() string     { return Format(n) }
func (n *Aggregation) String() string    { return Format(n) }
func (n *Order) String() string          { return Format(n) }
func (n *Limit) String() string          { return Format(n) }
func (n *Offset) String() string         { return Format(n) }
func (n *IndexLookup) String() string    { return Format(n) }
func (n *KeyLookup) String() string      { return Format(n) }
func (n *Nothing) String() string        { return Format(n) }

// Plan wraps a root Node, the unit of output for EXPLAIN (spec §4.7).
type Plan struct {
	Root Node
}

// Format renders node as an EXPLAIN tree using "├─ "/"└─ " branch
// markers, matching spec §4.7's tree-drawing convention.
func Format(node Node) string {
	return format(node, "", true, true)
}

func format(node Node, indent string, root, last bool) string {
	s := indent
	if !last {
		s += "├─ "
		indent += "│  "
	} else if !root {
		s += "└─ "
		indent += "   "
	}

	switch n := node.(type) {
	case *Aggregation:
		names := make([]string, len(n.Aggregates))
		for i, a := range n.Aggregates {
			names[i] = a.String()
		}
		s += fmt.Sprintf("Aggregation: %s\n", strings.Join(names, ", "))
		s += format(n.Source, indent, false, true)
	case *CreateTable:
		s += fmt.Sprintf("CreateTable: %s\n", n.Table)
	case *Delete:
		s += fmt.Sprintf("Delete: %s\n", n.Table)
		s += format(n.Source, indent, false, true)
	case *DropTable:
		s += fmt.Sprintf("DropTable: %s\n", n.Table)
	case *Filter:
		s += fmt.Sprintf("Filter: %s\n", n.Predicate)
		s += format(n.Source, indent, false, true)
	case *HashJoin:
		kind := "inner"
		if n.Outer {
			kind = "outer"
		}
		s += fmt.Sprintf("HashJoin: %s on %s = %s\n", kind, n.LeftField.displayWithPrefix("left"), n.RightField.displayWithPrefix("right"))
		s += format(n.Left, indent, false, false)
		s += format(n.Right, indent, false, true)
	case *IndexLookup:
		s += fmt.Sprintf("IndexLookup: %s", n.Table)
		if n.Alias != nil {
			s += fmt.Sprintf(" as %s", *n.Alias)
		}
		s += fmt.Sprintf(" column %s", n.Column)
		s += valuesSuffix(n.Values)
		s += "\n"
	case *Insert:
		s += fmt.Sprintf("Insert: %s (%d rows)\n", n.Table, len(n.Expressions))
	case *KeyLookup:
		s += fmt.Sprintf("KeyLookup: %s", n.Table)
		if n.Alias != nil {
			s += fmt.Sprintf(" as %s", *n.Alias)
		}
		s += valuesSuffix(n.Keys)
		s += "\n"
	case *Limit:
		s += fmt.Sprintf("Limit: %s\n", n.Limit)
		s += format(n.Source, indent, false, true)
	case *NestedLoopJoin:
		kind := "inner"
		if n.Outer {
			kind = "outer"
		}
		s += fmt.Sprintf("NestedLoopJoin: %s", kind)
		if n.Predicate != nil {
			s += fmt.Sprintf(" on %s", n.Predicate)
		}
		s += "\n"
		s += format(n.Left, indent, false, false)
		s += format(n.Right, indent, false, true)
	case *Nothing:
		s += "Nothing\n"
	case *Offset:
		s += fmt.Sprintf("Offset: %s\n", n.Offset)
		s += format(n.Source, indent, false, true)
	case *Order:
		parts := make([]string, len(n.Orders))
		for i, o := range n.Orders {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = fmt.Sprintf("%s %s", o.Expression, dir)
		}
		s += fmt.Sprintf("Order: %s\n", strings.Join(parts, ", "))
		s += format(n.Source, indent, false, true)
	case *Projection:
		parts := make([]string, len(n.Expressions))
		for i, e := range n.Expressions {
			parts[i] = e.Expression.String()
		}
		s += fmt.Sprintf("Projection: %s\n", strings.Join(parts, ", "))
		s += format(n.Source, indent, false, true)
	case *Scan:
		s += fmt.Sprintf("Scan: %s", n.Table)
		if n.Alias != nil {
			s += fmt.Sprintf(" as %s", *n.Alias)
		}
		if n.Filter != nil {
			s += fmt.Sprintf(" (%s)", n.Filter)
		}
		s += "\n"
	case *Update:
		parts := make([]string, len(n.Set))
		for i, set := range n.Set {
			parts[i] = fmt.Sprintf("#%d=%s", set.Index, set.Expression)
		}
		s += fmt.Sprintf("Update: %s (%s)\n", n.Table, strings.Join(parts, ","))
		s += format(n.Source, indent, false, true)
	}

	if root {
		s = strings.TrimRight(s, "\n")
	}
	return s
}

func valuesSuffix(values []value.Value) string {
	if len(values) == 0 || len(values) >= 10 {
		if len(values) == 0 {
			return ""
		}
		return fmt.Sprintf(" (%d values)", len(values))
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return fmt.Sprintf(" (%s)", strings.Join(parts, ", "))
}
