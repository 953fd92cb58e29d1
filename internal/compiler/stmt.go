package compiler

import (
	"errors"
	"fmt"

	"github.com/fallen/migen/internal/ast"
	"github.com/fallen/migen/internal/fsm"
	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
	"github.com/fallen/migen/internal/register"
)

// maxUnroll bounds the iteration count of a single for loop.
const maxUnroll = 1 << 16

// assembler sequences the states of consecutive statements. Each statement
// contributes states and an exit set; when the next statement brings states
// of its own, every pending exit is made to fall through to its entry.
type assembler struct {
	states []*fsm.State
	exits  []*fsm.State
}

func (a *assembler) add(states, exits []*fsm.State) {
	if len(states) == 0 {
		return
	}
	for _, x := range a.exits {
		x.Prepend(fsm.Goto(states[0]))
	}
	a.states = append(a.states, states...)
	a.exits = exits
}

// lowerBlock compiles a statement list. The entry state is the first
// returned state.
func (c *compiler) lowerBlock(env *Env, body []ast.Stmt) (states, exits []*fsm.State, err error) {
	var a assembler
	for _, s := range body {
		if err := c.lowerStmt(env, &a, s); err != nil {
			return nil, nil, err
		}
	}
	return a.states, a.exits, nil
}

func (c *compiler) lowerStmt(env *Env, a *assembler, s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.AssignStmt:
		return c.lowerAssign(env, a, s)
	case *ast.IfStmt:
		return c.lowerIf(env, a, s)
	case *ast.WhileStmt:
		return c.lowerWhile(env, a, s)
	case *ast.ForStmt:
		return c.lowerFor(env, a, s)
	case *ast.ExprStmt:
		return c.lowerExprStmt(env, a, s)
	case *ast.FuncDef:
		return unsupported(s.Pos(), "nested function definition")
	case *ast.ReturnStmt:
		return unsupported(s.Pos(), "return statement")
	case *ast.PassStmt:
		return unsupported(s.Pos(), "pass statement")
	case *ast.BreakStmt:
		return unsupported(s.Pos(), "break statement")
	case *ast.ContinueStmt:
		return unsupported(s.Pos(), "continue statement")
	default:
		return unsupported(s.Pos(), "statement %T", s)
	}
}

// lowerAssign handles the two assignment forms. `a = b = Register(w)`
// declares a register under every target name and emits no state;
// `a.store = b.store = expr` loads every target register in one new state.
func (c *compiler) lowerAssign(env *Env, a *assembler, s *ast.AssignStmt) error {
	allNames := true
	for _, t := range s.Targets {
		if _, ok := t.(*ast.Name); !ok {
			allNames = false
			break
		}
	}
	regName := ""
	if n, ok := s.Targets[0].(*ast.Name); ok {
		regName = n.Name
	}

	op, err := c.lowerOperand(env, s.Value, allNames, regName)
	if err != nil {
		return err
	}

	if op.reg != nil {
		c.registers = append(c.registers, op.reg)
		for _, t := range s.Targets {
			n := t.(*ast.Name)
			if !env.Bind(n.Name, RegisterBinding{Register: op.reg}) {
				return &ScopeError{Pos: n.Pos(), Name: n.Name, Reason: "is a loop variable and cannot be reassigned"}
			}
		}
		c.log("register %q width %d", op.reg.Name(), op.reg.Storage().Bits)
		return nil
	}

	loads := make([]hdl.Stmt, 0, len(s.Targets))
	for _, t := range s.Targets {
		reg, err := c.storeTarget(env, t)
		if err != nil {
			return err
		}
		loads = append(loads, reg.Load(hdl.Extend(op.value, reg.Storage().Bits)))
	}
	st := fsm.NewState(loads...)
	a.add([]*fsm.State{st}, []*fsm.State{st})
	return nil
}

// storeTarget resolves `name.store` to the register bound to name.
func (c *compiler) storeTarget(env *Env, t ast.Expr) (*register.Open, error) {
	attr, ok := t.(*ast.AttributeExpr)
	if !ok || attr.Name != "store" {
		return nil, unsupported(t.Pos(), "assignment to %s: only register.store can be assigned", describeExpr(t))
	}
	n, ok := attr.X.(*ast.Name)
	if !ok {
		return nil, unsupported(t.Pos(), "store into %s", describeExpr(attr.X))
	}
	return c.lookupRegister(env, n)
}

func (c *compiler) lookupRegister(env *Env, n *ast.Name) (*register.Open, error) {
	b, ok := env.Lookup(n.Name)
	if !ok {
		return nil, unbound(n.Pos(), n.Name)
	}
	rb, ok := b.(RegisterBinding)
	if !ok {
		return nil, unsupported(n.Pos(), "%q is not a register", n.Name)
	}
	return rb.Register, nil
}

// lowerIf emits a guard state branching to the entry of either arm. Without
// a non-empty else arm the guard itself falls through when the test fails.
func (c *compiler) lowerIf(env *Env, a *assembler, s *ast.IfStmt) error {
	test, err := c.lowerExpr(env, s.Cond)
	if err != nil {
		return err
	}
	statesT, exitsT, err := c.lowerBlock(env, s.Body)
	if err != nil {
		return err
	}
	statesF, exitsF, err := c.lowerBlock(env, s.Else)
	if err != nil {
		return err
	}
	if len(statesT) == 0 {
		return unsupported(s.Pos(), "if branch without any state-producing statement")
	}

	branch := &hdl.If{Cond: test, Then: []hdl.Stmt{fsm.Goto(statesT[0])}}
	guard := fsm.NewState(branch)

	exits := make([]*fsm.State, 0, len(exitsT)+len(exitsF)+1)
	exits = append(exits, exitsT...)
	exits = append(exits, exitsF...)
	if len(statesF) > 0 {
		branch.Else = []hdl.Stmt{fsm.Goto(statesF[0])}
	} else {
		exits = append(exits, guard)
	}

	states := make([]*fsm.State, 0, 1+len(statesT)+len(statesF))
	states = append(states, guard)
	states = append(states, statesT...)
	states = append(states, statesF...)
	a.add(states, exits)
	return nil
}

// lowerWhile emits a guard state entering the body while the test holds;
// the body's exits loop back to the guard, which is the only exit.
func (c *compiler) lowerWhile(env *Env, a *assembler, s *ast.WhileStmt) error {
	test, err := c.lowerExpr(env, s.Cond)
	if err != nil {
		return err
	}
	statesB, exitsB, err := c.lowerBlock(env, s.Body)
	if err != nil {
		return err
	}
	if len(statesB) == 0 {
		return unsupported(s.Pos(), "while body without any state-producing statement")
	}

	guard := fsm.NewState(&hdl.If{Cond: test, Then: []hdl.Stmt{fsm.Goto(statesB[0])}})
	for _, x := range exitsB {
		x.Prepend(fsm.Goto(guard))
	}
	a.add(append([]*fsm.State{guard}, statesB...), []*fsm.State{guard})
	return nil
}

// lowerFor unrolls the loop, compiling the body once per iteration with the
// target bound to that iteration's integer. Iterations are chained in
// order.
func (c *compiler) lowerFor(env *Env, a *assembler, s *ast.ForStmt) error {
	target, ok := s.Target.(*ast.Name)
	if !ok {
		return unsupported(s.Target.Pos(), "for loop target %s", describeExpr(s.Target))
	}
	if _, bound := env.Lookup(target.Name); bound {
		return &ScopeError{Pos: target.Pos(), Name: target.Name, Reason: "is already bound and cannot be a loop variable"}
	}
	values, err := c.iterValues(env, s.Iter)
	if err != nil {
		return err
	}

	var states, exits []*fsm.State
	for _, v := range values {
		env.Push(target.Name, IntBinding{Value: v})
		statesB, exitsB, err := c.lowerBlock(env, s.Body)
		env.Pop(target.Name)
		if err != nil {
			return err
		}
		if len(statesB) == 0 {
			continue
		}
		for _, x := range exits {
			x.Prepend(fsm.Goto(statesB[0]))
		}
		states = append(states, statesB...)
		exits = exitsB
	}
	c.log("unrolled for %s over %d values into %d states", target.Name, len(values), len(states))
	a.add(states, exits)
	return nil
}

// iterValues evaluates the iterable of a for loop: a list literal of
// compile-time integers or a call to range with one to three of them.
func (c *compiler) iterValues(env *Env, iter ast.Expr) ([]int64, error) {
	switch it := iter.(type) {
	case *ast.ListLiteral:
		values := make([]int64, len(it.Elements))
		for i, el := range it.Elements {
			v, err := c.constInt(env, el)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil

	case *ast.CallExpr:
		fn, ok := it.Func.(*ast.Name)
		if !ok || fn.Name != "range" {
			break
		}
		if len(it.Args) < 1 || len(it.Args) > 3 {
			return nil, &ArityError{Pos: it.Pos(), Func: "range", Got: len(it.Args), Want: "1 to 3 arguments"}
		}
		args := make([]int64, len(it.Args))
		for i, arg := range it.Args {
			v, err := c.constInt(env, arg)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		start, stop, step := int64(0), args[0], int64(1)
		if len(args) >= 2 {
			start, stop = args[0], args[1]
		}
		if len(args) == 3 {
			step = args[2]
		}
		if step == 0 {
			return nil, unsupported(it.Args[2].Pos(), "range() step of zero")
		}
		var values []int64
		for v := start; (step > 0 && v < stop) || (step < 0 && v > stop); v += step {
			if len(values) == maxUnroll {
				return nil, unsupported(it.Pos(), "loop unrolls to more than %d iterations", maxUnroll)
			}
			values = append(values, v)
		}
		return values, nil
	}
	return nil, unsupported(iter.Pos(), "iteration over %s: only list literals and range() can be unrolled", describeExpr(iter))
}

// lowerExprStmt compiles `yield resource(args)` into the resource's
// transaction states.
func (c *compiler) lowerExprStmt(env *Env, a *assembler, s *ast.ExprStmt) error {
	y, ok := s.Expression.(*ast.YieldExpr)
	if !ok {
		return unsupported(s.Pos(), "expression statement")
	}
	call, ok := y.Value.(*ast.CallExpr)
	if !ok {
		return unsupported(y.Pos(), "yield of something other than an I/O call")
	}
	fn, ok := call.Func.(*ast.Name)
	if !ok {
		return unsupported(call.Pos(), "yield of a call to %s", describeExpr(call.Func))
	}
	b, ok := env.Lookup(fn.Name)
	if !ok {
		return unbound(fn.Pos(), fn.Name)
	}
	rb, ok := b.(ResourceBinding)
	if !ok {
		return unsupported(call.Pos(), "%q is not an I/O resource", fn.Name)
	}

	states, exits, err := rb.Resource.Sequence(argLowerer{c: c, env: env}, call.Args)
	if err != nil {
		var argErr *ioseq.ArgError
		if errors.As(err, &argErr) {
			want := "exactly 1 argument"
			if argErr.Want != 1 {
				want = fmt.Sprintf("exactly %d arguments", argErr.Want)
			}
			return &ArityError{Pos: call.Pos(), Func: fn.Name, Got: argErr.Got, Want: want}
		}
		return err
	}
	a.add(states, exits)
	return nil
}

// argLowerer evaluates resource arguments in the yield statement's scope.
type argLowerer struct {
	c   *compiler
	env *Env
}

func (l argLowerer) Value(e ast.Expr) (hdl.Value, error) {
	return l.c.lowerExpr(l.env, e)
}

func (l argLowerer) Register(e ast.Expr) (*register.Open, error) {
	n, ok := e.(*ast.Name)
	if !ok {
		return nil, unsupported(e.Pos(), "%s where a register name is expected", describeExpr(e))
	}
	return l.c.lookupRegister(l.env, n)
}
