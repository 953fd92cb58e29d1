package compiler

import (
	"github.com/fallen/migen/internal/ast"
	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/register"
	"github.com/fallen/migen/internal/token"
)

var binaryOps = map[token.Kind]hdl.Op{
	token.Plus:  hdl.OpAdd,
	token.Minus: hdl.OpSub,
	token.Star:  hdl.OpMul,
	token.Shl:   hdl.OpShl,
	token.Shr:   hdl.OpShr,
	token.Pipe:  hdl.OpOr,
	token.Caret: hdl.OpXor,
	token.Amp:   hdl.OpAnd,
}

var compareOps = map[token.Kind]hdl.Op{
	token.Eq:    hdl.OpEq,
	token.NotEq: hdl.OpNe,
	token.Lt:    hdl.OpLt,
	token.LtEq:  hdl.OpLe,
	token.Gt:    hdl.OpGt,
	token.GtEq:  hdl.OpGe,
}

// operand is the result of lowering an expression: a hardware value, or a
// freshly created register when the caller allowed one.
type operand struct {
	value hdl.Value
	reg   *register.Open
}

func (c *compiler) lowerExpr(env *Env, e ast.Expr) (hdl.Value, error) {
	op, err := c.lowerOperand(env, e, false, "")
	if err != nil {
		return nil, err
	}
	return op.value, nil
}

// lowerOperand lowers e. A Register(...) call is accepted only when
// allowRegister is set; the new register is named regName.
func (c *compiler) lowerOperand(env *Env, e ast.Expr, allowRegister bool, regName string) (operand, error) {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return operand{value: hdl.NewConst(e.Value)}, nil
	case *ast.BoolLiteral:
		if e.Value {
			return operand{value: hdl.ConstOf(1, 1)}, nil
		}
		return operand{value: hdl.ConstOf(0, 1)}, nil
	case *ast.Name:
		v, err := c.lowerName(env, e)
		return operand{value: v}, err
	case *ast.BinaryExpr:
		v, err := c.lowerBinary(env, e)
		return operand{value: v}, err
	case *ast.CompareExpr:
		v, err := c.lowerCompare(env, e)
		return operand{value: v}, err
	case *ast.CallExpr:
		return c.lowerCall(env, e, allowRegister, regName)
	default:
		return operand{}, unsupported(e.Pos(), "%s in expression", describeExpr(e))
	}
}

func (c *compiler) lowerName(env *Env, e *ast.Name) (hdl.Value, error) {
	b, ok := env.Lookup(e.Name)
	if !ok {
		return nil, unbound(e.Pos(), e.Name)
	}
	switch b := b.(type) {
	case ValueBinding:
		return b.Value, nil
	case RegisterBinding:
		return b.Register.Storage(), nil
	case IntBinding:
		return hdl.NewConst(b.Value), nil
	case IntrinsicBinding:
		return nil, unsupported(e.Pos(), "intrinsic %s used as a value", b.Intrinsic)
	case ResourceBinding:
		return nil, unsupported(e.Pos(), "I/O resource %q used as a value", e.Name)
	default:
		return nil, unsupported(e.Pos(), "name %q bound to %T", e.Name, b)
	}
}

func (c *compiler) lowerBinary(env *Env, e *ast.BinaryExpr) (hdl.Value, error) {
	op, ok := binaryOps[e.Op]
	if !ok {
		return nil, unsupported(e.OpPos, "operator %s", e.Op)
	}
	left, err := c.lowerExpr(env, e.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.lowerExpr(env, e.Right)
	if err != nil {
		return nil, err
	}
	return hdl.Binary(op, left, right), nil
}

// lowerCompare turns `a < b < c` into `(a < b) & (b < c)`. Every operand is
// lowered once; a middle operand is shared by the two comparisons using it.
func (c *compiler) lowerCompare(env *Env, e *ast.CompareExpr) (hdl.Value, error) {
	test, err := c.lowerExpr(env, e.Left)
	if err != nil {
		return nil, err
	}
	var result hdl.Value
	for i, kind := range e.Ops {
		op, ok := compareOps[kind]
		if !ok {
			return nil, unsupported(e.OpPos[i], "comparison operator %s", kind)
		}
		next, err := c.lowerExpr(env, e.Comparators[i])
		if err != nil {
			return nil, err
		}
		cmp := hdl.Binary(op, test, next)
		if result == nil {
			result = cmp
		} else {
			result = hdl.Binary(hdl.OpAnd, result, cmp)
		}
		test = next
	}
	return result, nil
}

func (c *compiler) lowerCall(env *Env, e *ast.CallExpr, allowRegister bool, regName string) (operand, error) {
	fn, ok := e.Func.(*ast.Name)
	if !ok {
		return operand{}, unsupported(e.Pos(), "call of %s", describeExpr(e.Func))
	}
	b, ok := env.Lookup(fn.Name)
	if !ok {
		return operand{}, unbound(fn.Pos(), fn.Name)
	}
	in, ok := b.(IntrinsicBinding)
	if !ok {
		if _, isRes := b.(ResourceBinding); isRes {
			return operand{}, unsupported(e.Pos(), "I/O resource %q called outside a yield statement", fn.Name)
		}
		return operand{}, unsupported(e.Pos(), "call to %q", fn.Name)
	}

	switch in.Intrinsic {
	case RegisterIntrinsic:
		if !allowRegister {
			return operand{}, unsupported(e.Pos(), "Register() must be assigned directly to one or more names")
		}
		if len(e.Args) != 1 {
			return operand{}, &ArityError{Pos: e.Pos(), Func: fn.Name, Got: len(e.Args), Want: "exactly 1 argument"}
		}
		width, err := c.constInt(env, e.Args[0])
		if err != nil {
			return operand{}, err
		}
		if width < 1 {
			return operand{}, unsupported(e.Args[0].Pos(), "register width %d", width)
		}
		return operand{reg: register.New(regName, int(width), c.pool)}, nil

	case BitsliceIntrinsic:
		if len(e.Args) != 2 && len(e.Args) != 3 {
			return operand{}, &ArityError{Pos: e.Pos(), Func: fn.Name, Got: len(e.Args), Want: "2 or 3 arguments"}
		}
		v, err := c.lowerExpr(env, e.Args[0])
		if err != nil {
			return operand{}, err
		}
		lo, err := c.constInt(env, e.Args[1])
		if err != nil {
			return operand{}, err
		}
		hi := lo + 1
		if len(e.Args) == 3 {
			if hi, err = c.constInt(env, e.Args[2]); err != nil {
				return operand{}, err
			}
		}
		if lo < 0 || hi <= lo || hi > int64(v.Width()) {
			return operand{}, unsupported(e.Pos(), "bit slice [%d:%d] of a %d-bit value", lo, hi, v.Width())
		}
		return operand{value: &hdl.Slice{X: v, Lo: int(lo), Hi: int(hi)}}, nil

	default:
		return operand{}, unsupported(e.Pos(), "intrinsic %s", in.Intrinsic)
	}
}

// constInt evaluates e at compile time. Integer and boolean literals, names
// bound to integers, unary signs and the binary operators fold.
func (c *compiler) constInt(env *Env, e ast.Expr) (int64, error) {
	switch e := e.(type) {
	case *ast.IntLiteral:
		return e.Value, nil
	case *ast.BoolLiteral:
		if e.Value {
			return 1, nil
		}
		return 0, nil
	case *ast.Name:
		if b, ok := env.Lookup(e.Name); ok {
			if ib, ok := b.(IntBinding); ok {
				return ib.Value, nil
			}
			return 0, unsupported(e.Pos(), "%q is not a compile-time integer", e.Name)
		}
		return 0, unbound(e.Pos(), e.Name)
	case *ast.UnaryExpr:
		x, err := c.constInt(env, e.X)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.Minus:
			return -x, nil
		case token.Plus:
			return x, nil
		case token.Tilde:
			return ^x, nil
		}
	case *ast.BinaryExpr:
		l, err := c.constInt(env, e.Left)
		if err != nil {
			return 0, err
		}
		r, err := c.constInt(env, e.Right)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.Plus:
			return l + r, nil
		case token.Minus:
			return l - r, nil
		case token.Star:
			return l * r, nil
		case token.Pipe:
			return l | r, nil
		case token.Caret:
			return l ^ r, nil
		case token.Amp:
			return l & r, nil
		case token.Shl, token.Shr:
			if r < 0 || r > 63 {
				return 0, unsupported(e.OpPos, "shift count %d", r)
			}
			if e.Op == token.Shl {
				return l << uint(r), nil
			}
			return l >> uint(r), nil
		}
	}
	return 0, unsupported(e.Pos(), "%s is not a compile-time integer", describeExpr(e))
}

func describeExpr(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Name:
		return "name " + e.Name
	case *ast.IntLiteral:
		return "integer literal"
	case *ast.BoolLiteral:
		return "boolean literal"
	case *ast.BinaryExpr:
		return "operator " + e.Op.String()
	case *ast.CompareExpr:
		return "comparison"
	case *ast.BoolOpExpr:
		return "boolean operator " + e.Op.String()
	case *ast.UnaryExpr:
		return "unary operator " + e.Op.String()
	case *ast.CallExpr:
		return "call"
	case *ast.AttributeExpr:
		return "attribute ." + e.Name
	case *ast.ListLiteral:
		return "list literal"
	case *ast.YieldExpr:
		return "yield"
	default:
		return "expression"
	}
}
