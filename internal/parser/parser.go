package parser

import (
	"fmt"
	"strconv"

	"github.com/fallen/migen/internal/ast"
	"github.com/fallen/migen/internal/lexer"
	"github.com/fallen/migen/internal/token"
)

type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	peek token.Token

	errors     []string
	incomplete bool
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// init cur/peek
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns lexer errors followed by parser errors, each formatted as
// "line:col: message".
func (p *Parser) Errors() []string {
	errs := append([]string{}, p.l.Errors()...)
	return append(errs, p.errors...)
}

// Incomplete reports whether parsing failed only because the input ended
// early, e.g. a block header with no body yet. Interactive callers use it to
// ask for more lines.
func (p *Parser) Incomplete() bool {
	return p.incomplete
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
	if p.cur.Kind == token.EOF {
		p.incomplete = true
	}
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.errorf(p.cur.Pos, "expected %s, got %s (%q)", kind, p.cur.Kind, p.cur.Lexeme)
	}
	tok := p.cur
	p.nextToken()
	return tok
}

// expectNewline ends a simple statement. On error the rest of the line is
// dropped so one mistake produces one diagnostic.
func (p *Parser) expectNewline() {
	if p.cur.Kind == token.Newline {
		p.nextToken()
		return
	}
	p.errorf(p.cur.Pos, "expected end of line, got %s (%q)", p.cur.Kind, p.cur.Lexeme)
	p.synchronize()
}

func (p *Parser) synchronize() {
	for p.cur.Kind != token.Newline && p.cur.Kind != token.EOF {
		p.nextToken()
	}
	if p.cur.Kind == token.Newline {
		p.nextToken()
	}
}

// ---------- Top-level ----------

func (p *Parser) ParseModule() *ast.Module {
	mod := &ast.Module{}

	for p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Newline {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			mod.Body = append(mod.Body, stmt)
		} else {
			p.synchronize()
		}
	}

	return mod
}

func (p *Parser) parseFuncDef() ast.Stmt {
	defTok := p.cur
	p.nextToken()

	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected function name after 'def'")
		return nil
	}
	nameTok := p.cur
	p.nextToken()

	p.expect(token.LParen)
	var params []*ast.Param
	for p.cur.Kind == token.Ident {
		params = append(params, &ast.Param{
			Name:    p.cur.Lexeme,
			NamePos: p.cur.Pos,
		})
		p.nextToken()
		if p.cur.Kind != token.Comma {
			break
		}
		p.nextToken()
	}
	p.expect(token.RParen)

	body := p.parseSuite()

	return &ast.FuncDef{
		DefPos:  defTok.Pos,
		Name:    nameTok.Lexeme,
		NamePos: nameTok.Pos,
		Params:  params,
		Body:    body,
	}
}

// ---------- Statements ----------

// parseSuite parses `: NEWLINE INDENT stmt+ DEDENT` or a single simple
// statement on the same line as the colon.
func (p *Parser) parseSuite() []ast.Stmt {
	p.expect(token.Colon)

	if p.cur.Kind != token.Newline {
		stmt := p.parseSimpleStatement()
		if stmt == nil {
			return nil
		}
		return []ast.Stmt{stmt}
	}
	p.nextToken()

	if p.cur.Kind != token.Indent {
		if p.cur.Kind == token.Dedent && (p.peek.Kind == token.Dedent || p.peek.Kind == token.EOF) {
			p.incomplete = true
		}
		p.errorf(p.cur.Pos, "expected an indented block")
		return nil
	}
	p.nextToken()

	var body []ast.Stmt
	for p.cur.Kind != token.Dedent && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Newline {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			body = append(body, stmt)
		} else {
			p.synchronize()
		}
	}
	p.expect(token.Dedent)

	return body
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur.Kind {
	case token.Def:
		return p.parseFuncDef()
	case token.If:
		return p.parseIfStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.For:
		return p.parseForStmt()
	case token.Indent:
		p.errorf(p.cur.Pos, "unexpected indent")
		p.nextToken()
		return nil
	case token.Elif, token.Else:
		p.errorf(p.cur.Pos, "'%s' without matching 'if'", p.cur.Lexeme)
		return nil
	default:
		return p.parseSimpleStatement()
	}
}

func (p *Parser) parseSimpleStatement() ast.Stmt {
	var stmt ast.Stmt

	switch p.cur.Kind {
	case token.Return:
		retTok := p.cur
		p.nextToken()
		var result ast.Expr
		if p.cur.Kind != token.Newline {
			result = p.parseExpr()
		}
		stmt = &ast.ReturnStmt{ReturnPos: retTok.Pos, Result: result}
	case token.Pass:
		stmt = &ast.PassStmt{PassPos: p.cur.Pos}
		p.nextToken()
	case token.Break:
		stmt = &ast.BreakStmt{BreakPos: p.cur.Pos}
		p.nextToken()
	case token.Continue:
		stmt = &ast.ContinueStmt{ContinuePos: p.cur.Pos}
		p.nextToken()
	default:
		stmt = p.parseExprOrAssign()
	}

	p.expectNewline()
	return stmt
}

func (p *Parser) parseExprOrAssign() ast.Stmt {
	first := p.parseExprOrYield()
	if p.cur.Kind != token.Assign {
		return &ast.ExprStmt{Expression: first}
	}

	assignPos := p.cur.Pos
	targets := []ast.Expr{first}
	var value ast.Expr
	for p.cur.Kind == token.Assign {
		p.nextToken()
		e := p.parseExprOrYield()
		if p.cur.Kind == token.Assign {
			targets = append(targets, e)
		} else {
			value = e
		}
	}

	for _, t := range targets {
		switch t.(type) {
		case *ast.Name, *ast.AttributeExpr:
		default:
			p.errorf(t.Pos(), "cannot assign to %s", describe(t))
		}
	}

	return &ast.AssignStmt{
		Targets:   targets,
		AssignPos: assignPos,
		Value:     value,
	}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	// also entered on 'elif'
	ifTok := p.cur
	p.nextToken()

	cond := p.parseExpr()
	body := p.parseSuite()

	stmt := &ast.IfStmt{
		IfPos: ifTok.Pos,
		Cond:  cond,
		Body:  body,
	}

	switch p.cur.Kind {
	case token.Elif:
		stmt.Else = []ast.Stmt{p.parseIfStmt()}
	case token.Else:
		p.nextToken()
		stmt.Else = p.parseSuite()
	}

	return stmt
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	whileTok := p.cur
	p.nextToken()
	cond := p.parseExpr()
	body := p.parseSuite()

	if p.cur.Kind == token.Else {
		p.errorf(p.cur.Pos, "'else' clause on a loop is not supported")
	}

	return &ast.WhileStmt{
		WhilePos: whileTok.Pos,
		Cond:     cond,
		Body:     body,
	}
}

func (p *Parser) parseForStmt() ast.Stmt {
	forTok := p.cur
	p.nextToken()

	target := p.parsePostfix()
	p.expect(token.In)
	iter := p.parseExpr()
	body := p.parseSuite()

	if p.cur.Kind == token.Else {
		p.errorf(p.cur.Pos, "'else' clause on a loop is not supported")
	}

	return &ast.ForStmt{
		ForPos: forTok.Pos,
		Target: target,
		Iter:   iter,
		Body:   body,
	}
}

// ---------- Expressions ----------

func (p *Parser) parseExprOrYield() ast.Expr {
	if p.cur.Kind != token.Yield {
		return p.parseExpr()
	}
	yieldTok := p.cur
	p.nextToken()
	var value ast.Expr
	if p.cur.Kind != token.Newline && p.cur.Kind != token.Assign && p.cur.Kind != token.EOF {
		value = p.parseExpr()
	}
	return &ast.YieldExpr{
		YieldPos: yieldTok.Pos,
		Value:    value,
	}
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.Expr {
	return p.parseBoolOp(token.Or, p.parseAnd)
}

func (p *Parser) parseAnd() ast.Expr {
	return p.parseBoolOp(token.And, p.parseNot)
}

func (p *Parser) parseBoolOp(op token.Kind, operand func() ast.Expr) ast.Expr {
	first := operand()
	if p.cur.Kind != op {
		return first
	}
	e := &ast.BoolOpExpr{
		OpPos:  p.cur.Pos,
		Op:     op,
		Values: []ast.Expr{first},
	}
	for p.cur.Kind == op {
		p.nextToken()
		e.Values = append(e.Values, operand())
	}
	return e
}

func (p *Parser) parseNot() ast.Expr {
	if p.cur.Kind == token.Not {
		opTok := p.cur
		p.nextToken()
		return &ast.UnaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			X:     p.parseNot(),
		}
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() ast.Expr {
	left := p.parseBitOr()
	if !p.cur.Kind.IsComparison() {
		return left
	}
	e := &ast.CompareExpr{Left: left}
	for p.cur.Kind.IsComparison() {
		opTok := p.cur
		p.nextToken()
		e.Ops = append(e.Ops, opTok.Kind)
		e.OpPos = append(e.OpPos, opTok.Pos)
		e.Comparators = append(e.Comparators, p.parseBitOr())
	}
	return e
}

func (p *Parser) parseBitOr() ast.Expr {
	return p.parseBinary(p.parseBitXor, token.Pipe)
}

func (p *Parser) parseBitXor() ast.Expr {
	return p.parseBinary(p.parseBitAnd, token.Caret)
}

func (p *Parser) parseBitAnd() ast.Expr {
	return p.parseBinary(p.parseShift, token.Amp)
}

func (p *Parser) parseShift() ast.Expr {
	return p.parseBinary(p.parseAdditive, token.Shl, token.Shr)
}

func (p *Parser) parseAdditive() ast.Expr {
	return p.parseBinary(p.parseMultiplicative, token.Plus, token.Minus)
}

func (p *Parser) parseMultiplicative() ast.Expr {
	return p.parseBinary(p.parseUnary, token.Star, token.Slash, token.Percent)
}

// parseBinary parses a left-associative chain of the given operators.
func (p *Parser) parseBinary(operand func() ast.Expr, ops ...token.Kind) ast.Expr {
	left := operand()
	for isOneOf(p.cur.Kind, ops) {
		opTok := p.cur
		p.nextToken()
		right := operand()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.cur.Kind == token.Minus || p.cur.Kind == token.Plus || p.cur.Kind == token.Tilde {
		opTok := p.cur
		p.nextToken()
		x := p.parseUnary()
		return &ast.UnaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			X:     x,
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()

	for {
		switch p.cur.Kind {
		case token.Dot:
			// Attribute access: expr.name
			p.nextToken()
			if p.cur.Kind != token.Ident {
				p.errorf(p.cur.Pos, "expected identifier after '.'")
				return expr
			}
			nameTok := p.cur
			p.nextToken()
			expr = &ast.AttributeExpr{
				X:       expr,
				Name:    nameTok.Lexeme,
				NamePos: nameTok.Pos,
			}
		case token.LParen:
			lparen := p.cur
			p.nextToken()
			args := p.parseExprList(token.RParen)
			rparen := p.expect(token.RParen)
			expr = &ast.CallExpr{
				Func:   expr,
				LParen: lparen.Pos,
				Args:   args,
				RParen: rparen.Pos,
			}
		default:
			return expr
		}
	}
}

// parseExprList parses comma-separated expressions up to (not including)
// the closing token. A trailing comma is allowed.
func (p *Parser) parseExprList(closing token.Kind) []ast.Expr {
	var list []ast.Expr
	for p.cur.Kind != closing && p.cur.Kind != token.EOF {
		list = append(list, p.parseExpr())
		if p.cur.Kind != token.Comma {
			break
		}
		p.nextToken()
	}
	return list
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur.Kind {
	case token.Ident:
		tok := p.cur
		p.nextToken()
		return &ast.Name{
			Name:    tok.Lexeme,
			NamePos: tok.Pos,
		}
	case token.Int:
		tok := p.cur
		p.nextToken()
		val, err := strconv.ParseInt(tok.Lexeme, 0, 64)
		if err != nil {
			p.errorf(tok.Pos, "invalid integer literal %q: %v", tok.Lexeme, err)
			val = 0
		}
		return &ast.IntLiteral{
			Value:  val,
			LitPos: tok.Pos,
			Raw:    tok.Lexeme,
		}
	case token.True, token.False:
		tok := p.cur
		p.nextToken()
		return &ast.BoolLiteral{
			Value:  tok.Kind == token.True,
			LitPos: tok.Pos,
		}
	case token.LParen:
		p.nextToken()
		expr := p.parseExpr()
		p.expect(token.RParen)
		return expr
	case token.LBracket:
		// list literal: [expr, expr, ...]
		lbr := p.cur
		p.nextToken()
		elems := p.parseExprList(token.RBracket)
		rbr := p.expect(token.RBracket)
		return &ast.ListLiteral{
			LBracket: lbr.Pos,
			Elements: elems,
			RBracket: rbr.Pos,
		}
	default:
		tok := p.cur
		p.errorf(tok.Pos, "unexpected token in expression: %s", tok.Kind)
		if tok.Kind != token.EOF && tok.Kind != token.Newline {
			p.nextToken()
		}
		return &ast.IntLiteral{
			Value:  0,
			LitPos: tok.Pos,
			Raw:    "0",
		}
	}
}

func isOneOf(k token.Kind, kinds []token.Kind) bool {
	for _, c := range kinds {
		if k == c {
			return true
		}
	}
	return false
}

func describe(e ast.Expr) string {
	switch e.(type) {
	case *ast.IntLiteral, *ast.BoolLiteral, *ast.ListLiteral:
		return "literal"
	case *ast.CallExpr:
		return "function call"
	case *ast.YieldExpr:
		return "yield expression"
	default:
		return "expression"
	}
}
