// Package compiler translates a single restricted function into a finite
// state machine plus the register load logic it drives.
//
// Every statement becomes zero or more FSM states and an exit set: the
// states that transition to whatever follows. Registers may be loaded from
// several places; each load only drives the register's source selector, and
// the selector encodings are fixed after the whole function is compiled.
package compiler

import (
	"fmt"
	"log"

	"github.com/fallen/migen/internal/ast"
	"github.com/fallen/migen/internal/fsm"
	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
	"github.com/fallen/migen/internal/lexer"
	"github.com/fallen/migen/internal/parser"
	"github.com/fallen/migen/internal/register"
)

// Options is the enclosing scope a function is compiled in.
type Options struct {
	// Scope binds compile-time integers, usable as register widths, loop
	// bounds and constants.
	Scope map[string]int64
	// Values binds hardware values the function may read.
	Values map[string]hdl.Value
	// Resources are the I/O endpoints callable from yield statements.
	Resources []ioseq.Resource
	// Logger receives progress messages when set.
	Logger *log.Logger
}

// Result is a compiled function.
type Result struct {
	Name string
	// States are the abstract states in machine order, with register loads
	// resolved and transitions still symbolic.
	States    []*fsm.State
	Machine   *fsm.Machine
	Registers []*register.Finalized
	// Fragment holds the register load logic followed by the FSM.
	Fragment *hdl.Fragment
	IO       []ioseq.Resource
}

type compiler struct {
	pool      *register.Pool
	registers []*register.Open
	logger    *log.Logger
}

func (c *compiler) log(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Parse parses src, returning every syntax diagnostic as a *SyntaxError.
func Parse(src string) (*ast.Module, error) {
	p := parser.New(lexer.New(src))
	mod := p.ParseModule()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, &SyntaxError{Errors: errs}
	}
	return mod, nil
}

// Compile parses and compiles src.
func Compile(src string, opts Options) (*Result, error) {
	mod, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return CompileModule(mod, opts)
}

// CompileModule compiles a parsed module, which must hold exactly one
// function definition.
func CompileModule(mod *ast.Module, opts Options) (*Result, error) {
	fn, err := singleFunction(mod)
	if err != nil {
		return nil, err
	}
	env, err := newEnv(opts)
	if err != nil {
		return nil, err
	}

	c := &compiler{pool: register.NewPool(), logger: opts.Logger}
	states, _, err := c.lowerBlock(env, fn.Body)
	if err != nil {
		return nil, err
	}
	c.log("%s: %d states, %d registers", fn.Name, len(states), len(c.registers))

	regs := make([]*register.Finalized, len(c.registers))
	for i, r := range c.registers {
		regs[i] = r.Finalize()
	}
	for i, st := range states {
		body, err := hdl.Rewrite(st.Body, register.ResolveLoads)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		st.Body = body
	}

	m, err := fsm.Realize(states)
	if err != nil {
		return nil, err
	}
	fsmFrag, err := m.Fragment()
	if err != nil {
		return nil, err
	}

	frags := make([]*hdl.Fragment, 0, len(regs)+1)
	for _, r := range regs {
		frags = append(frags, r.Lower())
	}
	frags = append(frags, fsmFrag)
	frag := hdl.Merge(frags...)
	if err := frag.CheckResolved(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", fn.Name, err)
	}

	return &Result{
		Name:      fn.Name,
		States:    states,
		Machine:   m,
		Registers: regs,
		Fragment:  frag,
		IO:        opts.Resources,
	}, nil
}

func singleFunction(mod *ast.Module) (*ast.FuncDef, error) {
	if len(mod.Body) != 1 {
		return nil, unsupported(mod.Pos(), "module with %d top-level statements; exactly one function definition is required", len(mod.Body))
	}
	fn, ok := mod.Body[0].(*ast.FuncDef)
	if !ok {
		return nil, unsupported(mod.Pos(), "top-level statement other than a function definition")
	}
	return fn, nil
}
