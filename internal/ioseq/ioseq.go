// Package ioseq compiles `yield resource(args)` statements into the states
// of a resource's handshake.
package ioseq

import (
	"fmt"

	"github.com/fallen/migen/internal/ast"
	"github.com/fallen/migen/internal/fsm"
	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/register"
)

// Lowerer evaluates call arguments in the scope of the yield statement.
type Lowerer interface {
	Value(e ast.Expr) (hdl.Value, error)
	Register(e ast.Expr) (*register.Open, error)
}

type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "output"
	}
	return "input"
}

// Port is a signal crossing the boundary of the generated module.
type Port struct {
	Signal *hdl.Signal
	Dir    Direction
}

// Resource is an I/O endpoint usable from a yield statement.
type Resource interface {
	Name() string
	Ports() []Port
	// Sequence returns the states of one transaction and the subset of
	// them that fall through to whatever follows.
	Sequence(lw Lowerer, args []ast.Expr) (states, exits []*fsm.State, err error)
}

type ArgError struct {
	Resource string
	Got      int
	Want     int
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s() takes exactly %d argument(s) (%d given)", e.Resource, e.Want, e.Got)
}

func high() *hdl.Const {
	return hdl.ConstOf(1, 1)
}

// Sink is an output port with a strobe/acknowledge handshake: the module
// presents data with stb raised and stays put until ack is seen.
type Sink struct {
	name string
	Data *hdl.Signal
	Stb  *hdl.Signal
	Ack  *hdl.Signal
}

func NewSink(name string, width int) *Sink {
	return &Sink{
		name: name,
		Data: hdl.NewSignal(name+"_data", width),
		Stb:  hdl.NewSignal(name+"_stb", 1),
		Ack:  hdl.NewSignal(name+"_ack", 1),
	}
}

func (s *Sink) Name() string { return s.name }

func (s *Sink) Ports() []Port {
	return []Port{
		{Signal: s.Data, Dir: Out},
		{Signal: s.Stb, Dir: Out},
		{Signal: s.Ack, Dir: In},
	}
}

func (s *Sink) Sequence(lw Lowerer, args []ast.Expr) ([]*fsm.State, []*fsm.State, error) {
	if len(args) != 1 {
		return nil, nil, &ArgError{Resource: s.name, Got: len(args), Want: 1}
	}
	v, err := lw.Value(args[0])
	if err != nil {
		return nil, nil, err
	}
	st := fsm.NewState(
		hdl.Eq(s.Stb, high()),
		hdl.Eq(s.Data, hdl.Extend(v, s.Data.Bits)),
	)
	st.Append(&hdl.If{
		Cond: hdl.Binary(hdl.OpEq, s.Ack, hdl.ConstOf(0, 1)),
		Then: []hdl.Stmt{fsm.Goto(st)},
	})
	return []*fsm.State{st}, []*fsm.State{st}, nil
}

// Source is an input port with the same handshake seen from the other side:
// the module raises ack and waits for stb, then captures data into a
// register.
type Source struct {
	name string
	Data *hdl.Signal
	Stb  *hdl.Signal
	Ack  *hdl.Signal
}

func NewSource(name string, width int) *Source {
	return &Source{
		name: name,
		Data: hdl.NewSignal(name+"_data", width),
		Stb:  hdl.NewSignal(name+"_stb", 1),
		Ack:  hdl.NewSignal(name+"_ack", 1),
	}
}

func (s *Source) Name() string { return s.name }

func (s *Source) Ports() []Port {
	return []Port{
		{Signal: s.Data, Dir: In},
		{Signal: s.Stb, Dir: In},
		{Signal: s.Ack, Dir: Out},
	}
}

func (s *Source) Sequence(lw Lowerer, args []ast.Expr) ([]*fsm.State, []*fsm.State, error) {
	if len(args) != 1 {
		return nil, nil, &ArgError{Resource: s.name, Got: len(args), Want: 1}
	}
	reg, err := lw.Register(args[0])
	if err != nil {
		return nil, nil, err
	}
	st := fsm.NewState(hdl.Eq(s.Ack, high()))
	st.Append(&hdl.If{
		Cond: s.Stb,
		Then: []hdl.Stmt{reg.Load(s.Data)},
		Else: []hdl.Stmt{fsm.Goto(st)},
	})
	return []*fsm.State{st}, []*fsm.State{st}, nil
}
