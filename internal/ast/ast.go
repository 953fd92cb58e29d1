package ast

import "github.com/fallen/migen/internal/token"

// Basic interfaces

type Node interface {
	Pos() token.Position
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

// Module is a whole source file: a sequence of top-level statements.
type Module struct {
	Body []Stmt
}

func (m *Module) Pos() token.Position {
	if len(m.Body) > 0 {
		return m.Body[0].Pos()
	}
	return token.Position{Line: 1, Column: 1}
}

// ---------- Statements ----------

type FuncDef struct {
	DefPos  token.Position
	Name    string
	NamePos token.Position
	Params  []*Param
	Body    []Stmt
}

func (s *FuncDef) Pos() token.Position { return s.DefPos }
func (s *FuncDef) stmtNode()           {}

type Param struct {
	Name    string
	NamePos token.Position
}

func (p *Param) Pos() token.Position { return p.NamePos }

// AssignStmt is `t1 = t2 = ... = value`. Targets are in source order.
type AssignStmt struct {
	Targets   []Expr
	AssignPos token.Position
	Value     Expr
}

func (s *AssignStmt) Pos() token.Position { return s.Targets[0].Pos() }
func (s *AssignStmt) stmtNode()           {}

type ExprStmt struct {
	Expression Expr
}

func (s *ExprStmt) Pos() token.Position { return s.Expression.Pos() }
func (s *ExprStmt) stmtNode()           {}

// IfStmt covers if/elif/else. An elif chain is an IfStmt nested as the
// sole statement of Else.
type IfStmt struct {
	IfPos token.Position
	Cond  Expr
	Body  []Stmt
	Else  []Stmt // nil when there is no else branch
}

func (s *IfStmt) Pos() token.Position { return s.IfPos }
func (s *IfStmt) stmtNode()           {}

type WhileStmt struct {
	WhilePos token.Position
	Cond     Expr
	Body     []Stmt
}

func (s *WhileStmt) Pos() token.Position { return s.WhilePos }
func (s *WhileStmt) stmtNode()           {}

type ForStmt struct {
	ForPos token.Position
	Target Expr
	Iter   Expr
	Body   []Stmt
}

func (s *ForStmt) Pos() token.Position { return s.ForPos }
func (s *ForStmt) stmtNode()           {}

type ReturnStmt struct {
	ReturnPos token.Position
	Result    Expr // may be nil
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnPos }
func (s *ReturnStmt) stmtNode()           {}

type PassStmt struct {
	PassPos token.Position
}

func (s *PassStmt) Pos() token.Position { return s.PassPos }
func (s *PassStmt) stmtNode()           {}

type BreakStmt struct {
	BreakPos token.Position
}

func (s *BreakStmt) Pos() token.Position { return s.BreakPos }
func (s *BreakStmt) stmtNode()           {}

type ContinueStmt struct {
	ContinuePos token.Position
}

func (s *ContinueStmt) Pos() token.Position { return s.ContinuePos }
func (s *ContinueStmt) stmtNode()           {}

// ---------- Expressions ----------

type Name struct {
	Name    string
	NamePos token.Position
}

func (e *Name) Pos() token.Position { return e.NamePos }
func (e *Name) exprNode()           {}

type IntLiteral struct {
	Value  int64
	LitPos token.Position
	Raw    string
}

func (e *IntLiteral) Pos() token.Position { return e.LitPos }
func (e *IntLiteral) exprNode()           {}

type BoolLiteral struct {
	Value  bool
	LitPos token.Position
}

func (e *BoolLiteral) Pos() token.Position { return e.LitPos }
func (e *BoolLiteral) exprNode()           {}

type BinaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.Left.Pos() }
func (e *BinaryExpr) exprNode()           {}

// CompareExpr is a comparison chain `Left Ops[0] Comparators[0] Ops[1] ...`.
type CompareExpr struct {
	Left        Expr
	Ops         []token.Kind
	OpPos       []token.Position
	Comparators []Expr
}

func (e *CompareExpr) Pos() token.Position { return e.Left.Pos() }
func (e *CompareExpr) exprNode()           {}

// BoolOpExpr is `a and b and ...` or `a or b or ...`.
type BoolOpExpr struct {
	OpPos  token.Position
	Op     token.Kind
	Values []Expr
}

func (e *BoolOpExpr) Pos() token.Position { return e.Values[0].Pos() }
func (e *BoolOpExpr) exprNode()           {}

type UnaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	X     Expr
}

func (e *UnaryExpr) Pos() token.Position { return e.OpPos }
func (e *UnaryExpr) exprNode()           {}

type CallExpr struct {
	Func   Expr
	LParen token.Position
	Args   []Expr
	RParen token.Position
}

func (e *CallExpr) Pos() token.Position { return e.Func.Pos() }
func (e *CallExpr) exprNode()           {}

type AttributeExpr struct {
	X       Expr
	Name    string
	NamePos token.Position
}

func (e *AttributeExpr) Pos() token.Position { return e.X.Pos() }
func (e *AttributeExpr) exprNode()           {}

type ListLiteral struct {
	LBracket token.Position
	Elements []Expr
	RBracket token.Position
}

func (e *ListLiteral) Pos() token.Position { return e.LBracket }
func (e *ListLiteral) exprNode()           {}

type YieldExpr struct {
	YieldPos token.Position
	Value    Expr // may be nil for a bare `yield`
}

func (e *YieldExpr) Pos() token.Position { return e.YieldPos }
func (e *YieldExpr) exprNode()           {}
