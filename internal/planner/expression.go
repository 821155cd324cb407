package planner

import (
	"github.com/coledb/coledb/ast"
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/expr"
)

// buildExpression translates a parsed ast.Expression into the
// index-resolved plan-time expr.Expression algebra, resolving every
// field reference against scope.
//
// Grounded on original_source/src/sql/plan/planner.rs's
// build_expresion, with one deliberate deviation: `!=`/`<>`, `>=`, and
// `<=` compile directly to first-class expr.Binary comparisons instead
// of being desugared into Not(Equal)/Or(Equal,GreaterThan)/
// Or(Equal,LessThan) (tracked in DESIGN.md).
func buildExpression(scope *Scope, e ast.Expression) (expr.Expression, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return &expr.Constant{Value: n.Value}, nil

	case *ast.ColumnRef:
		return &expr.Field{Index: n.Index}, nil

	case *ast.FieldReference:
		index, err := scope.ColumnIndex(n.Table, n.Name)
		if err != nil {
			return nil, err
		}
		return &expr.Field{Index: index, Origin: &expr.FieldOrigin{Table: n.Table, Label: n.Name}}, nil

	case *ast.FunctionCall:
		return nil, dberrors.New(dberrors.Plan, "unexpected aggregate function %s outside SELECT list", n.Name)

	case *ast.UnaryOperation:
		operand, err := buildExpression(scope, n.Operand)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case ast.OpNegative:
			return expr.Negative(operand), nil
		case ast.OpPlus:
			return expr.Plus(operand), nil
		case ast.OpNot:
			return expr.Not(operand), nil
		case ast.OpIsNull:
			return expr.IsNull(operand), nil
		default:
			return nil, dberrors.New(dberrors.Plan, "unsupported unary operator")
		}

	case *ast.BinaryOperation:
		left, err := buildExpression(scope, n.Left)
		if err != nil {
			return nil, err
		}
		right, err := buildExpression(scope, n.Right)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case ast.OpAnd:
			return expr.And(left, right), nil
		case ast.OpOr:
			return expr.Or(left, right), nil
		case ast.OpEqual:
			return expr.Equal(left, right), nil
		case ast.OpNotEqual:
			return expr.NotEqual(left, right), nil
		case ast.OpGreaterThan:
			return expr.GreaterThan(left, right), nil
		case ast.OpGreaterThanOrEqual:
			return expr.GreaterThanOrEqual(left, right), nil
		case ast.OpLessThan:
			return expr.LessThan(left, right), nil
		case ast.OpLessThanOrEqual:
			return expr.LessThanOrEqual(left, right), nil
		case ast.OpAdd:
			return expr.Add(left, right), nil
		case ast.OpSubtract:
			return expr.Subtract(left, right), nil
		case ast.OpMultiply:
			return expr.Multiply(left, right), nil
		case ast.OpDivide:
			return expr.Divide(left, right), nil
		case ast.OpExponentiate:
			return expr.Exponentiate(left, right), nil
		case ast.OpLike:
			return expr.Like(left, right), nil
		default:
			return nil, dberrors.New(dberrors.Plan, "unsupported binary operator")
		}

	default:
		return nil, dberrors.New(dberrors.Plan, "unsupported expression node")
	}
}
