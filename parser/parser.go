// Package parser implements coledb's recursive-descent statement parser
// and Pratt (precedence-climbing) expression parser (spec §4.6).
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/coledb/coledb/ast"
	"github.com/coledb/coledb/internal/value"
	"github.com/coledb/coledb/lexer"
	"github.com/coledb/coledb/token"
)

// Precedence levels, matching spec §4.6's table (higher binds tighter).
const (
	_ int = iota
	PrecOr
	PrecAnd
	PrecEquality   // = != <> LIKE
	PrecComparison // < <= > >=
	PrecAdditive   // + - (binary)
	PrecMultiplicative
	PrecExponent // ^ (right-assoc)
	PrecUnary    // prefix +/-/NOT/!, postfix IS NULL
)

var precedences = map[token.Type]int{
	token.OR:       PrecOr,
	token.AND:      PrecAnd,
	token.EQ:       PrecEquality,
	token.NEQ:      PrecEquality,
	token.LIKE:     PrecEquality,
	token.LT:       PrecComparison,
	token.LTE:      PrecComparison,
	token.GT:       PrecComparison,
	token.GTE:      PrecComparison,
	token.PLUS:     PrecAdditive,
	token.MINUS:    PrecAdditive,
	token.ASTERISK: PrecMultiplicative,
	token.SLASH:    PrecMultiplicative,
	token.CARET:    PrecExponent,
}

var binaryOperators = map[token.Type]ast.OperatorKind{
	token.AND:      ast.OpAnd,
	token.OR:       ast.OpOr,
	token.EQ:       ast.OpEqual,
	token.NEQ:      ast.OpNotEqual,
	token.LIKE:     ast.OpLike,
	token.LT:       ast.OpLessThan,
	token.LTE:      ast.OpLessThanOrEqual,
	token.GT:       ast.OpGreaterThan,
	token.GTE:      ast.OpGreaterThanOrEqual,
	token.PLUS:     ast.OpAdd,
	token.MINUS:    ast.OpSubtract,
	token.ASTERISK: ast.OpMultiply,
	token.SLASH:    ast.OpDivide,
	token.CARET:    ast.OpExponentiate,
}

// Parser consumes a token stream and produces a single ast.Statement.
type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	errors []string
}

// New creates a Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns every parse error reported so far.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *Parser) curIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peekToken.Type == t }

// accept consumes and returns true if the current token matches t.
func (p *Parser) accept(t token.Type) bool {
	if p.curIs(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches t, else records an error.
func (p *Parser) expect(t token.Type) bool {
	if p.accept(t) {
		return true
	}
	p.errorf("line %d: expected %s, got %s %q", p.curToken.Line, t, p.curToken.Type, p.curToken.Literal)
	return false
}

// ParseStatement parses exactly one statement terminated by ';' and EOF,
// matching spec §4.6's top-level dispatch on leading keyword.
func (p *Parser) ParseStatement() ast.Statement {
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return stmt
	}
	p.expect(token.SEMICOLON)
	if !p.curIs(token.EOF) {
		p.errorf("line %d: unexpected trailing token %s %q", p.curToken.Line, p.curToken.Type, p.curToken.Literal)
	}
	return stmt
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.BEGIN:
		return p.parseBegin()
	case token.COMMIT:
		tok := p.curToken
		p.nextToken()
		return &ast.CommitStatement{Token: tok}
	case token.ROLLBACK:
		tok := p.curToken
		p.nextToken()
		return &ast.RollbackStatement{Token: tok}
	case token.CREATE:
		return p.parseCreateTable()
	case token.DROP:
		return p.parseDropTable()
	case token.SELECT:
		return p.parseSelect()
	case token.INSERT:
		return p.parseInsert()
	case token.UPDATE:
		return p.parseUpdate()
	case token.DELETE:
		return p.parseDelete()
	case token.EXPLAIN:
		tok := p.curToken
		p.nextToken()
		return &ast.ExplainStatement{Token: tok, Statement: p.parseStatement()}
	default:
		p.errorf("line %d: unexpected token %s %q", p.curToken.Line, p.curToken.Type, p.curToken.Literal)
		return nil
	}
}

// -----------------------------------------------------------------------------
// Transaction control
// -----------------------------------------------------------------------------

func (p *Parser) parseBegin() ast.Statement {
	tok := p.curToken
	p.expect(token.BEGIN)

	stmt := &ast.BeginStatement{Token: tok}
	if p.accept(token.READ) {
		if p.accept(token.ONLY) {
			stmt.ReadOnly = true
		} else {
			p.expect(token.WRITE)
		}
	}
	if p.accept(token.AS) {
		p.expect(token.VERSION)
		if !p.curIs(token.NUMBER) {
			p.errorf("line %d: expected a version number, got %s", p.curToken.Line, p.curToken.Type)
			return stmt
		}
		n, err := strconv.ParseUint(p.curToken.Literal, 10, 64)
		if err != nil {
			p.errorf("line %d: invalid version number %q", p.curToken.Line, p.curToken.Literal)
		}
		stmt.Version = &n
		p.nextToken()
	}
	return stmt
}

// -----------------------------------------------------------------------------
// Schema DDL
// -----------------------------------------------------------------------------

func (p *Parser) parseCreateTable() ast.Statement {
	tok := p.curToken
	p.expect(token.CREATE)
	p.expect(token.TABLE)
	name := p.parseIdent()
	p.expect(token.LPAREN)

	var columns []*ast.Column
	for {
		columns = append(columns, p.parseColumn())
		if !p.accept(token.COMMA) {
			break
		}
	}
	p.expect(token.RPAREN)
	if len(columns) == 0 {
		p.errorf("line %d: cannot create a table with zero columns", tok.Line)
	}
	return &ast.CreateTableStatement{Token: tok, Name: name, Columns: columns}
}

func (p *Parser) parseColumn() *ast.Column {
	col := &ast.Column{Name: p.parseIdent()}
	col.Type = p.parseColumnType()

	for {
		switch p.curToken.Type {
		case token.PRIMARY:
			p.nextToken()
			p.expect(token.KEY)
			col.PrimaryKey = true
		case token.NULL:
			p.nextToken()
			if col.Nullable != nil && !*col.Nullable {
				p.errorf("column %s cannot be both NOT NULL and NULL", col.Name)
			}
			t := true
			col.Nullable = &t
		case token.NOT:
			p.nextToken()
			p.expect(token.NULL)
			if col.Nullable != nil && *col.Nullable {
				p.errorf("column %s cannot be both NULL and NOT NULL", col.Name)
			}
			f := false
			col.Nullable = &f
		case token.DEFAULT:
			p.nextToken()
			col.Default = p.parseExpression(PrecOr)
		case token.UNIQUE:
			p.nextToken()
			col.Unique = true
		case token.INDEX:
			p.nextToken()
			col.Index = true
		default:
			return col
		}
	}
}

func (p *Parser) parseColumnType() value.ColumnType {
	tok := p.curToken
	var ct value.ColumnType
	switch tok.Type {
	case token.BOOL, token.BOOLEAN:
		ct = value.TypeBool
	case token.DOUBLE, token.FLOAT_KW:
		ct = value.TypeFloat
	case token.INT, token.INTEGER:
		ct = value.TypeInteger
	case token.STRING_KW, token.TEXT, token.VARCHAR:
		ct = value.TypeString
	default:
		p.errorf("line %d: expected a column type, got %s %q", tok.Line, tok.Type, tok.Literal)
		return value.TypeString
	}
	p.nextToken()
	return ct
}

func (p *Parser) parseDropTable() ast.Statement {
	tok := p.curToken
	p.expect(token.DROP)
	p.expect(token.TABLE)
	return &ast.DropTableStatement{Token: tok, Name: p.parseIdent()}
}

// -----------------------------------------------------------------------------
// DML
// -----------------------------------------------------------------------------

func (p *Parser) parseInsert() ast.Statement {
	tok := p.curToken
	p.expect(token.INSERT)
	p.expect(token.INTO)
	table := p.parseIdent()

	var columns []string
	if p.accept(token.LPAREN) {
		for {
			columns = append(columns, p.parseIdent())
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
	}

	p.expect(token.VALUES)
	var values [][]ast.Expression
	for {
		p.expect(token.LPAREN)
		var row []ast.Expression
		for {
			row = append(row, p.parseExpression(PrecOr))
			if !p.accept(token.COMMA) {
				break
			}
		}
		p.expect(token.RPAREN)
		values = append(values, row)
		if !p.accept(token.COMMA) {
			break
		}
	}

	return &ast.InsertStatement{Token: tok, Table: table, Columns: columns, Values: values}
}

func (p *Parser) parseUpdate() ast.Statement {
	tok := p.curToken
	p.expect(token.UPDATE)
	table := p.parseIdent()
	p.expect(token.SET)

	var sets []ast.SetClause
	for {
		col := p.parseIdent()
		p.expect(token.EQ)
		sets = append(sets, ast.SetClause{Column: col, Expression: p.parseExpression(PrecOr)})
		if !p.accept(token.COMMA) {
			break
		}
	}

	var filter ast.Expression
	if p.accept(token.WHERE) {
		filter = p.parseExpression(PrecOr)
	}
	return &ast.UpdateStatement{Token: tok, Table: table, Set: sets, Filter: filter}
}

func (p *Parser) parseDelete() ast.Statement {
	tok := p.curToken
	p.expect(token.DELETE)
	p.expect(token.FROM)
	table := p.parseIdent()

	var filter ast.Expression
	if p.accept(token.WHERE) {
		filter = p.parseExpression(PrecOr)
	}
	return &ast.DeleteStatement{Token: tok, Table: table, Filter: filter}
}

// -----------------------------------------------------------------------------
// SELECT
// -----------------------------------------------------------------------------

func (p *Parser) parseSelect() ast.Statement {
	tok := p.curToken
	p.expect(token.SELECT)

	stmt := &ast.SelectStatement{Token: tok}
	stmt.Select = p.parseSelectClause()
	stmt.From = p.parseFromClause()
	if p.accept(token.WHERE) {
		stmt.Filter = p.parseExpression(PrecOr)
	}
	stmt.GroupBy = p.parseGroupByClause()
	if p.accept(token.HAVING) {
		stmt.Having = p.parseExpression(PrecOr)
	}
	stmt.Order = p.parseOrderByClause()
	stmt.Offset, stmt.Limit = p.parseLimitOffsetClause()
	return stmt
}

func (p *Parser) parseSelectClause() []ast.SelectItem {
	if p.accept(token.ASTERISK) {
		return nil
	}
	var items []ast.SelectItem
	for {
		expr := p.parseExpression(PrecOr)
		var label *string
		if p.accept(token.AS) {
			ident := p.parseIdent()
			label = &ident
		} else if p.curIs(token.IDENT) {
			ident := p.parseIdent()
			label = &ident
		}
		items = append(items, ast.SelectItem{Expression: expr, Label: label})
		if !p.accept(token.COMMA) {
			break
		}
	}
	return items
}

func (p *Parser) parseFromClause() ast.FromItem {
	if !p.accept(token.FROM) {
		return nil
	}
	from := p.parseJoinChain()
	for p.accept(token.COMMA) {
		// A comma-separated table list is a chain of inner joins with
		// no predicate (spec §4.6).
		rhs := p.parseJoinChain()
		from = &ast.JoinItem{Left: from, Right: rhs, JoinType: ast.JoinInner}
	}
	return from
}

func (p *Parser) parseJoinChain() ast.FromItem {
	left := p.parseTableItem()
	for {
		jt, ok := p.parseJoinType()
		if !ok {
			return left
		}
		right := p.parseTableItem()
		var predicate ast.Expression
		if jt != ast.JoinCross && p.accept(token.ON) {
			predicate = p.parseExpression(PrecOr)
		}
		left = &ast.JoinItem{Left: left, Right: right, JoinType: jt, Predicate: predicate}
	}
}

func (p *Parser) parseJoinType() (ast.JoinType, bool) {
	switch p.curToken.Type {
	case token.CROSS:
		p.nextToken()
		p.expect(token.JOIN)
		return ast.JoinCross, true
	case token.INNER:
		p.nextToken()
		p.expect(token.JOIN)
		return ast.JoinInner, true
	case token.JOIN:
		p.nextToken()
		return ast.JoinInner, true
	case token.LEFT:
		p.nextToken()
		p.accept(token.OUTER)
		p.expect(token.JOIN)
		return ast.JoinLeft, true
	case token.RIGHT:
		p.nextToken()
		p.accept(token.OUTER)
		p.expect(token.JOIN)
		return ast.JoinRight, true
	default:
		return 0, false
	}
}

func (p *Parser) parseTableItem() ast.FromItem {
	name := p.parseIdent()
	var alias *string
	if p.accept(token.AS) {
		a := p.parseIdent()
		alias = &a
	} else if p.curIs(token.IDENT) {
		a := p.parseIdent()
		alias = &a
	}
	return &ast.TableItem{Name: name, Alias: alias}
}

func (p *Parser) parseGroupByClause() []ast.Expression {
	if !p.accept(token.GROUP) {
		return nil
	}
	p.expect(token.BY)
	var exprs []ast.Expression
	for {
		exprs = append(exprs, p.parseExpression(PrecOr))
		if !p.accept(token.COMMA) {
			break
		}
	}
	return exprs
}

func (p *Parser) parseOrderByClause() []ast.OrderTerm {
	if !p.accept(token.ORDER) {
		return nil
	}
	p.expect(token.BY)
	var terms []ast.OrderTerm
	for {
		expr := p.parseExpression(PrecOr)
		order := ast.Ascending
		if p.accept(token.DESC) {
			order = ast.Descending
		} else if p.accept(token.ASC) {
			order = ast.Ascending
		}
		terms = append(terms, ast.OrderTerm{Expression: expr, Order: order})
		if !p.accept(token.COMMA) {
			break
		}
	}
	return terms
}

// parseLimitOffsetClause handles LIMIT/OFFSET in either order, or the
// `LIMIT a,b` shorthand (a=offset, b=limit), per spec §4.6.
func (p *Parser) parseLimitOffsetClause() (offset, limit ast.Expression) {
	if p.accept(token.LIMIT) {
		expr := p.parseExpression(PrecOr)
		switch {
		case p.accept(token.OFFSET):
			limit = expr
			offset = p.parseExpression(PrecOr)
		case p.accept(token.COMMA):
			offset = expr
			limit = p.parseExpression(PrecOr)
		default:
			limit = expr
		}
		return offset, limit
	}
	if p.accept(token.OFFSET) {
		offset = p.parseExpression(PrecOr)
		if p.accept(token.LIMIT) {
			limit = p.parseExpression(PrecOr)
		}
	}
	return offset, limit
}

// -----------------------------------------------------------------------------
// Expressions (Pratt / precedence climbing)
// -----------------------------------------------------------------------------

// parseExpression climbs from minPrec, matching spec §4.6's table:
// prefix unary ops and the IS NULL postfix bind tightest (PrecUnary);
// binary operators loop left-to-right except `^`, which recurses at
// its own precedence to stay right-associative.
func (p *Parser) parseExpression(minPrec int) ast.Expression {
	left := p.parseUnary(minPrec)

	for {
		prec, ok := precedences[p.curToken.Type]
		if !ok || prec < minPrec {
			break
		}
		opTok := p.curToken
		opKind := binaryOperators[opTok.Type]
		p.nextToken()

		nextMin := prec + 1
		if opTok.Type == token.CARET {
			nextMin = prec // right-associative: allow equal precedence to recurse
		}
		right := p.parseExpression(nextMin)
		left = &ast.BinaryOperation{Token: opTok, Operator: opKind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary(minPrec int) ast.Expression {
	var expr ast.Expression
	switch p.curToken.Type {
	case token.PLUS:
		tok := p.curToken
		p.nextToken()
		expr = &ast.UnaryOperation{Token: tok, Operator: ast.OpPlus, Operand: p.parseExpression(PrecUnary)}
	case token.MINUS:
		tok := p.curToken
		p.nextToken()
		expr = &ast.UnaryOperation{Token: tok, Operator: ast.OpNegative, Operand: p.parseExpression(PrecUnary)}
	case token.NOT, token.NOT_OP:
		tok := p.curToken
		p.nextToken()
		expr = &ast.UnaryOperation{Token: tok, Operator: ast.OpNot, Operand: p.parseExpression(PrecUnary)}
	default:
		expr = p.parseAtom()
	}

	for p.curIs(token.IS) && PrecUnary >= minPrec {
		tok := p.curToken
		p.nextToken()
		not := p.accept(token.NOT)
		p.expect(token.NULL)
		isNull := ast.Expression(&ast.UnaryOperation{Token: tok, Operator: ast.OpIsNull, Operand: expr})
		if not {
			expr = &ast.UnaryOperation{Token: tok, Operator: ast.OpNot, Operand: isNull}
		} else {
			expr = isNull
		}
	}
	return expr
}

// parseAtom parses a literal, parenthesized expression, function call,
// or (qualified) field reference (spec §4.6 Atoms).
func (p *Parser) parseAtom() ast.Expression {
	tok := p.curToken
	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		if i, err := strconv.ParseInt(tok.Literal, 10, 64); err == nil {
			return &ast.Literal{Token: tok, Value: value.Integer(i)}
		}
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf("line %d: invalid number literal %q", tok.Line, tok.Literal)
		}
		return &ast.Literal{Token: tok, Value: value.Float(f)}
	case token.STRING:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value.String(tok.Literal)}
	case token.NULL:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value.Null()}
	case token.TRUE:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value.Bool(true)}
	case token.FALSE:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value.Bool(false)}
	case token.INFINITY:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value.Float(math.Inf(1))}
	case token.NAN:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value.Float(math.NaN())}
	case token.LPAREN:
		p.nextToken()
		expr := p.parseExpression(PrecOr)
		p.expect(token.RPAREN)
		return expr
	case token.IDENT:
		return p.parseIdentOrCall()
	default:
		p.errorf("line %d: expected an expression, got %s %q", tok.Line, tok.Type, tok.Literal)
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value.Null()}
	}
}

func (p *Parser) parseIdentOrCall() ast.Expression {
	tok := p.curToken
	name := tok.Literal
	p.nextToken()

	if p.accept(token.LPAREN) {
		var arg ast.Expression
		if strings.ToUpper(name) == "COUNT" && p.accept(token.ASTERISK) {
			arg = &ast.Literal{Token: tok, Value: value.Bool(true)}
		} else {
			arg = p.parseExpression(PrecOr)
		}
		p.expect(token.RPAREN)
		return &ast.FunctionCall{Token: tok, Name: name, Argument: arg}
	}

	if p.accept(token.DOT) {
		field := p.parseIdent()
		return &ast.FieldReference{Token: tok, Table: &name, Name: field}
	}
	return &ast.FieldReference{Token: tok, Name: name}
}

func (p *Parser) parseIdent() string {
	if !p.curIs(token.IDENT) {
		p.errorf("line %d: expected an identifier, got %s %q", p.curToken.Line, p.curToken.Type, p.curToken.Literal)
		return ""
	}
	lit := p.curToken.Literal
	p.nextToken()
	return lit
}
