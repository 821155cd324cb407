package planner

import (
	"github.com/coledb/coledb/ast"
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/expr"
	"github.com/coledb/coledb/internal/plan"
	"github.com/coledb/coledb/internal/sqlengine"
)

// Planner turns a parsed ast.Statement into a plan.Node tree (spec
// §4.7), resolving field references against a transaction's catalog.
//
// Grounded on original_source/src/sql/plan/planner.rs's Planner/
// build_node, with the deviations recorded in DESIGN.md.
type Planner struct {
	catalog *sqlengine.Transaction
}

// NewPlanner returns a planner resolving table lookups against catalog.
func NewPlanner(catalog *sqlengine.Transaction) *Planner {
	return &Planner{catalog: catalog}
}

// BuildPlan compiles stmt into a Plan ready for EXPLAIN or execution.
func (p *Planner) BuildPlan(stmt ast.Statement) (*plan.Plan, error) {
	node, err := p.buildNode(stmt)
	if err != nil {
		return nil, err
	}
	return &plan.Plan{Root: node}, nil
}

func (p *Planner) buildNode(stmt ast.Statement) (plan.Node, error) {
	switch s := stmt.(type) {
	case *ast.BeginStatement, *ast.CommitStatement, *ast.RollbackStatement, *ast.ExplainStatement:
		return nil, dberrors.New(dberrors.Plan, "statement cannot reach the planner: %s", stmt.String())

	case *ast.CreateTableStatement:
		return p.buildCreateTable(s)

	case *ast.DropTableStatement:
		return &plan.DropTable{Table: s.Name}, nil

	case *ast.InsertStatement:
		return p.buildInsert(s)

	case *ast.DeleteStatement:
		return p.buildDelete(s)

	case *ast.UpdateStatement:
		return p.buildUpdate(s)

	case *ast.SelectStatement:
		return p.buildSelect(s)

	default:
		return nil, dberrors.New(dberrors.Plan, "unsupported statement type")
	}
}

func (p *Planner) buildCreateTable(s *ast.CreateTableStatement) (plan.Node, error) {
	seen := make(map[string]struct{}, len(s.Columns))
	columns := make([]plan.Column, len(s.Columns))
	for i, c := range s.Columns {
		if _, dup := seen[c.Name]; dup {
			return nil, dberrors.New(dberrors.Plan, "table has repeated column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}

		nullable := false
		if c.Nullable != nil {
			nullable = *c.Nullable
		}
		col := plan.Column{
			Name:       c.Name,
			Type:       c.Type,
			PrimaryKey: c.PrimaryKey,
			Nullable:   nullable,
			Unique:     c.Unique,
			Index:      c.Index,
		}
		if c.Default != nil {
			built, err := buildExpression(ConstantScope(), c.Default)
			if err != nil {
				return nil, err
			}
			v, err := built.Evaluate(nil)
			if err != nil {
				return nil, err
			}
			col.Default = v
			col.HasDefault = true
		}
		columns[i] = col
	}
	return &plan.CreateTable{Table: s.Name, Columns: columns}, nil
}

// buildInsert resolves the target table and, when the statement omits
// an explicit column list, defaults it to the table's full column
// order — this belongs only here, never duplicated in the executor.
//
// Deviation: the original source this is grounded on checks
// `values.len() != columns.len()`, comparing the row count to the
// column count instead of validating each row's own length; that only
// happens to work for single-row inserts. Checked per row here instead.
func (p *Planner) buildInsert(s *ast.InsertStatement) (plan.Node, error) {
	table, err := p.catalog.MustReadTable(s.Table)
	if err != nil {
		return nil, err
	}
	columns := s.Columns
	if columns == nil {
		columns = make([]string, len(table.Columns))
		for i, c := range table.Columns {
			columns[i] = c.Name
		}
	}

	scope := NewScope()
	if err := scope.RegisterTable(table); err != nil {
		return nil, err
	}
	for _, name := range columns {
		if _, err := scope.ColumnIndex(&s.Table, name); err != nil {
			return nil, err
		}
	}

	expressions := make([][]expr.Expression, len(s.Values))
	for r, row := range s.Values {
		if len(row) != len(columns) {
			return nil, dberrors.New(dberrors.Plan, "INSERT row %d has %d values, expected %d", r, len(row), len(columns))
		}
		built := make([]expr.Expression, len(row))
		for c, v := range row {
			e, err := buildExpression(ConstantScope(), v)
			if err != nil {
				return nil, err
			}
			built[c] = e
		}
		expressions[r] = built
	}

	return &plan.Insert{Table: s.Table, Columns: columns, Expressions: expressions}, nil
}

func (p *Planner) buildDelete(s *ast.DeleteStatement) (plan.Node, error) {
	table, err := p.catalog.MustReadTable(s.Table)
	if err != nil {
		return nil, err
	}
	scope := NewScope()
	if err := scope.RegisterTable(table); err != nil {
		return nil, err
	}

	var filter expr.Expression
	if s.Filter != nil {
		filter, err = buildExpression(scope, s.Filter)
		if err != nil {
			return nil, err
		}
	}

	return &plan.Delete{
		Table:  s.Table,
		Source: &plan.Scan{Table: s.Table, Filter: filter},
	}, nil
}

// buildUpdate resolves SET targets under the table's registered scope
// so a SET value expression can reference the row being updated (e.g.
// `SET balance = balance - 10`). The source this is grounded on builds
// SET values under a constant-only scope instead, which would reject
// that — a restriction with no apparent upside, so it is not
// reproduced here (see DESIGN.md).
func (p *Planner) buildUpdate(s *ast.UpdateStatement) (plan.Node, error) {
	table, err := p.catalog.MustReadTable(s.Table)
	if err != nil {
		return nil, err
	}
	scope := NewScope()
	if err := scope.RegisterTable(table); err != nil {
		return nil, err
	}

	var filter expr.Expression
	if s.Filter != nil {
		filter, err = buildExpression(scope, s.Filter)
		if err != nil {
			return nil, err
		}
	}

	set := make([]plan.SetItem, len(s.Set))
	for i, clause := range s.Set {
		index, err := scope.ColumnIndex(&s.Table, clause.Column)
		if err != nil {
			return nil, err
		}
		value, err := buildExpression(scope, clause.Expression)
		if err != nil {
			return nil, err
		}
		set[i] = plan.SetItem{Index: index, Expression: value}
	}

	return &plan.Update{
		Table:  s.Table,
		Source: &plan.Scan{Table: s.Table, Filter: filter},
		Set:    set,
	}, nil
}

func (p *Planner) buildSelect(s *ast.SelectStatement) (plan.Node, error) {
	var node plan.Node
	scope := NewScope()
	var err error

	switch {
	case s.From != nil:
		node, err = p.buildFromItem(scope, s.From)
		if err != nil {
			return nil, err
		}
	case len(s.Select) > 0:
		node = &plan.Nothing{}
	default:
		return nil, dberrors.New(dberrors.Plan, "SELECT with no FROM and no select list")
	}

	if s.Filter != nil {
		predicate, err := buildExpression(scope, s.Filter)
		if err != nil {
			return nil, err
		}
		node = &plan.Filter{Source: node, Predicate: predicate}
	}

	if len(s.Select) == 0 && len(s.GroupBy) > 0 {
		return nil, dberrors.New(dberrors.Plan, "cannot use 'select *' together with GROUP BY")
	}

	havingExpr := s.Having
	orderTerms := append([]ast.OrderTerm(nil), s.Order...)
	hidden := 0

	if len(s.Select) > 0 {
		selectItems := append([]ast.SelectItem(nil), s.Select...)

		if havingExpr != nil {
			transformed, n, err := transformAndInjectHidden(havingExpr, &selectItems)
			if err != nil {
				return nil, err
			}
			havingExpr = transformed
			hidden += n
		}
		for i := range orderTerms {
			transformed, n, err := transformAndInjectHidden(orderTerms[i].Expression, &selectItems)
			if err != nil {
				return nil, err
			}
			orderTerms[i].Expression = transformed
			hidden += n
		}

		aggregates, err := extractAggregates(&selectItems)
		if err != nil {
			return nil, err
		}
		groups, err := extractGroupBy(len(aggregates), &selectItems, s.GroupBy)
		if err != nil {
			return nil, err
		}
		if len(aggregates) > 0 || len(groups) > 0 {
			node, err = buildAggregates(scope, aggregates, groups, node)
			if err != nil {
				return nil, err
			}
		}

		items := make([]plan.ProjectItem, len(selectItems))
		projItems := make([]projected, len(selectItems))
		for i, it := range selectItems {
			e, err := buildExpression(scope, it.Expression)
			if err != nil {
				return nil, err
			}
			items[i] = plan.ProjectItem{Expression: e, Label: it.Label}
			projItems[i] = projectedFor(e, it.Label)
		}
		if err := scope.Project(projItems); err != nil {
			return nil, err
		}
		node = &plan.Projection{Source: node, Expressions: items}
	}

	if havingExpr != nil {
		predicate, err := buildExpression(scope, havingExpr)
		if err != nil {
			return nil, err
		}
		node = &plan.Filter{Source: node, Predicate: predicate}
	}

	if len(orderTerms) > 0 {
		orders := make([]plan.OrderItem, len(orderTerms))
		for i, t := range orderTerms {
			e, err := buildExpression(scope, t.Expression)
			if err != nil {
				return nil, err
			}
			orders[i] = plan.OrderItem{Expression: e, Descending: t.Order == ast.Descending}
		}
		node = &plan.Order{Source: node, Orders: orders}
	}

	if s.Offset != nil {
		e, err := buildExpression(ConstantScope(), s.Offset)
		if err != nil {
			return nil, err
		}
		node = &plan.Offset{Source: node, Offset: e}
	}

	// The source this is grounded on has a copy-paste bug here: it
	// builds the LIMIT clause into a second Node::Offset instead of a
	// Node::Limit. Fixed here.
	if s.Limit != nil {
		e, err := buildExpression(ConstantScope(), s.Limit)
		if err != nil {
			return nil, err
		}
		node = &plan.Limit{Source: node, Limit: e}
	}

	if hidden > 0 {
		size := scope.ColumnSize()
		items := make([]plan.ProjectItem, size-hidden)
		for i := range items {
			items[i] = plan.ProjectItem{Expression: &expr.Field{Index: i}}
		}
		node = &plan.Projection{Source: node, Expressions: items}
	}

	return node, nil
}

// projectedFor derives the scope-rebuild descriptor for one projected
// output expression, per spec §4.7.1: an explicit label renames; a
// bare field reference (no override label) preserves its origin;
// anything else becomes anonymous.
func projectedFor(e expr.Expression, label *string) projected {
	if label != nil {
		return projected{label: label}
	}
	if f, ok := e.(*expr.Field); ok {
		return projected{isField: true, fieldIndex: f.Index}
	}
	return projected{}
}

// buildFromItem builds the Scan/NestedLoopJoin tree under a FROM
// clause, registering tables into scope in left-to-right evaluation
// order. RIGHT JOIN always executes as a LEFT JOIN internally (the
// operands are swapped before recursing) with a trailing Projection
// restoring the original column order.
func (p *Planner) buildFromItem(scope *Scope, from ast.FromItem) (plan.Node, error) {
	switch f := from.(type) {
	case *ast.TableItem:
		table, err := p.catalog.MustReadTable(f.Name)
		if err != nil {
			return nil, err
		}
		if err := scope.RegisterTable(table); err != nil {
			return nil, err
		}
		return &plan.Scan{Table: f.Name, Alias: f.Alias}, nil

	case *ast.JoinItem:
		left, right, joinType := f.Left, f.Right, f.JoinType
		if joinType == ast.JoinRight {
			left, right = right, left
		}

		leftNode, err := p.buildFromItem(scope, left)
		if err != nil {
			return nil, err
		}
		leftSize := scope.ColumnSize()

		rightNode, err := p.buildFromItem(scope, right)
		if err != nil {
			return nil, err
		}

		var predicate expr.Expression
		if f.Predicate != nil {
			predicate, err = buildExpression(scope, f.Predicate)
			if err != nil {
				return nil, err
			}
		}

		outer := joinType == ast.JoinLeft || joinType == ast.JoinRight
		var node plan.Node = &plan.NestedLoopJoin{
			Left:      leftNode,
			Right:     rightNode,
			LeftSize:  leftSize,
			Predicate: predicate,
			Outer:     outer,
		}

		if joinType == ast.JoinRight {
			size := scope.ColumnSize()
			order := make([]int, 0, size)
			for i := leftSize; i < size; i++ {
				order = append(order, i)
			}
			for i := 0; i < leftSize; i++ {
				order = append(order, i)
			}

			items := make([]plan.ProjectItem, len(order))
			projItems := make([]projected, len(order))
			for pos, i := range order {
				table, label := scope.columnAt(i)
				if label == nil {
					return nil, dberrors.New(dberrors.Plan, "RIGHT JOIN column %d has no name", i)
				}
				items[pos] = plan.ProjectItem{Expression: &expr.Field{Index: i, Origin: &expr.FieldOrigin{Table: table, Label: *label}}}
				projItems[pos] = projected{isField: true, fieldIndex: i}
			}
			if err := scope.Project(projItems); err != nil {
				return nil, err
			}
			node = &plan.Projection{Source: node, Expressions: items}
		}

		return node, nil

	default:
		return nil, dberrors.New(dberrors.Plan, "unsupported FROM item")
	}
}

// aggregateItem is one aggregate call extracted out of a SELECT list:
// the function and the expression it aggregates over.
type aggregateItem struct {
	Aggregate plan.Aggregate
	Argument  ast.Expression
}

// extractAggregates replaces every aggregate-function call in
// selectItems with a ColumnRef placeholder and returns the extracted
// (function, argument) pairs in left-to-right encounter order, which
// is also the column order the Aggregation node will produce.
func extractAggregates(selectItems *[]ast.SelectItem) ([]aggregateItem, error) {
	var results []aggregateItem
	var extractErr error

	items := *selectItems
	for i := range items {
		items[i].Expression = ast.Transform(items[i].Expression, func(e ast.Expression) ast.Expression {
			fn, ok := e.(*ast.FunctionCall)
			if !ok {
				return e
			}
			agg, ok := plan.ParseAggregate(fn.Name)
			if !ok {
				extractErr = dberrors.New(dberrors.Plan, "unknown aggregate function %q", fn.Name)
				return e
			}
			results = append(results, aggregateItem{Aggregate: agg, Argument: fn.Argument})
			return &ast.ColumnRef{Index: len(results) - 1}
		}, nil)
		if extractErr != nil {
			return nil, extractErr
		}
	}

	for _, r := range results {
		if ast.ContainsAggregate(r.Argument, isAggregateName) {
			return nil, dberrors.New(dberrors.Plan, "aggregate function cannot reference another aggregate")
		}
	}
	return results, nil
}

// groupItem is one GROUP BY key: the expression to group on and, when
// it was lifted out of the SELECT list, the label it carried there.
type groupItem struct {
	Expression ast.Expression
	Label      *string
}

// extractGroupBy resolves each GROUP BY expression against the SELECT
// list (by label, then by structural equality), swapping any match out
// for a ColumnRef placeholder positioned after the aggregate columns.
// A GROUP BY expression with no match in the SELECT list is grouped on
// directly without a label.
func extractGroupBy(offset int, selectItems *[]ast.SelectItem, groupBy []ast.Expression) ([]groupItem, error) {
	var groups []groupItem
	items := *selectItems

	for _, g := range groupBy {
		if fr, ok := g.(*ast.FieldReference); ok && fr.Table == nil {
			index := -1
			for i, it := range items {
				if it.Label != nil && *it.Label == fr.Name {
					index = i
					break
				}
			}
			if index >= 0 {
				swapped := items[index].Expression
				label := items[index].Label
				items[index].Expression = &ast.ColumnRef{Index: offset + len(groups)}
				groups = append(groups, groupItem{Expression: swapped, Label: label})
				continue
			}
		}

		index := -1
		for i, it := range items {
			if astExprEqual(it.Expression, g) {
				index = i
				break
			}
		}
		if index >= 0 {
			swapped := items[index].Expression
			label := items[index].Label
			items[index].Expression = &ast.ColumnRef{Index: offset + len(groups)}
			groups = append(groups, groupItem{Expression: swapped, Label: label})
			continue
		}

		groups = append(groups, groupItem{Expression: g, Label: nil})
	}

	for _, g := range groups {
		if ast.ContainsAggregate(g.Expression, isAggregateName) {
			return nil, dberrors.New(dberrors.Plan, "GROUP BY expression cannot contain an aggregate")
		}
	}
	return groups, nil
}

// buildAggregates builds the Aggregation node over source: aggregate
// arguments occupy the leading Inputs columns (one per aggregates
// entry, in order), group-by keys occupy the rest. scope is
// rewritten to match the Aggregation's output: aggregate columns
// become anonymous (the executor recovers them positionally by
// Column(i), same as the source this is grounded on), group-by
// columns keep their source origin (or label, if renamed from the
// SELECT list) so outer clauses can still reference them by name.
func buildAggregates(scope *Scope, aggregates []aggregateItem, groups []groupItem, source plan.Node) (plan.Node, error) {
	inputs := make([]expr.Expression, 0, len(aggregates)+len(groups))
	aggs := make([]plan.Aggregate, 0, len(aggregates))
	projItems := make([]projected, 0, len(aggregates)+len(groups))

	for _, a := range aggregates {
		e, err := buildExpression(scope, a.Argument)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, e)
		aggs = append(aggs, a.Aggregate)
		projItems = append(projItems, projected{})
	}
	for _, g := range groups {
		e, err := buildExpression(scope, g.Expression)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, e)
		projItems = append(projItems, projectedFor(e, g.Label))
	}

	if err := scope.Project(projItems); err != nil {
		return nil, err
	}

	return &plan.Aggregation{
		Source:     source,
		Aggregates: aggs,
		Inputs:     inputs,
		GroupCount: len(groups),
	}, nil
}

// transformAndInjectHidden rewrites expr (a HAVING predicate or an
// ORDER BY term) so it only ever references the eventual SELECT list
// positionally, injecting any field or function call it still needs
// as a new, unlabeled ("hidden") entry at the end of selectItems. The
// trailing Projection the caller adds once hidden>0 strips those extra
// columns back off before the result reaches the client.
func transformAndInjectHidden(target ast.Expression, selectItems *[]ast.SelectItem) (ast.Expression, int, error) {
	hidden := 0

	items := *selectItems
	for i := range items {
		item := items[i]
		if astExprEqual(item.Expression, target) {
			target = &ast.ColumnRef{Index: i}
		}
		if item.Label != nil {
			label := *item.Label
			target = ast.Transform(target, nil, func(e ast.Expression) ast.Expression {
				if fr, ok := e.(*ast.FieldReference); ok && fr.Table == nil && fr.Name == label {
					return &ast.ColumnRef{Index: i}
				}
				return e
			})
		}
	}

	// Undo the substitution above wherever it landed inside a function
	// call's argument: that call is about to be extracted into its own
	// Aggregation, which can't yet reference a Column(i) position in a
	// SELECT list still being built.
	target = ast.Transform(target, nil, func(e ast.Expression) ast.Expression {
		fn, ok := e.(*ast.FunctionCall)
		if !ok {
			return e
		}
		fn.Argument = ast.Transform(fn.Argument, nil, func(inner ast.Expression) ast.Expression {
			if ref, ok := inner.(*ast.ColumnRef); ok {
				return (*selectItems)[ref.Index].Expression
			}
			return inner
		})
		return fn
	})

	var injectErr error
	target = ast.Transform(target, func(e ast.Expression) ast.Expression {
		switch v := e.(type) {
		case *ast.FieldReference:
			*selectItems = append(*selectItems, ast.SelectItem{Expression: e})
			hidden++
			return &ast.ColumnRef{Index: len(*selectItems) - 1}
		case *ast.FunctionCall:
			if _, ok := plan.ParseAggregate(v.Name); !ok {
				injectErr = dberrors.New(dberrors.Plan, "unknown aggregate function %q", v.Name)
				return e
			}
			*selectItems = append(*selectItems, ast.SelectItem{Expression: e})
			hidden++
			return &ast.ColumnRef{Index: len(*selectItems) - 1}
		default:
			return e
		}
	}, nil)
	if injectErr != nil {
		return nil, 0, injectErr
	}

	return target, hidden, nil
}

func isAggregateName(name string) bool {
	_, ok := plan.ParseAggregate(name)
	return ok
}

// astExprEqual reports whether two AST expressions are structurally
// identical, via their canonical String() form.
func astExprEqual(a, b ast.Expression) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
