// Package fsm turns an ordered list of abstract states into a numbered
// finite state machine.
package fsm

import (
	"errors"
	"fmt"

	"github.com/fallen/migen/internal/hdl"
)

var (
	ErrUnknownState   = errors.New("fsm: transition to a state outside the machine")
	ErrDuplicateState = errors.New("fsm: state listed twice")
)

// State is the body of one FSM state before it has a number. States are
// compared by identity.
type State struct {
	Body []hdl.Stmt
}

func NewState(body ...hdl.Stmt) *State {
	return &State{Body: body}
}

// Prepend inserts stmt at the head of the body. A transition placed first
// acts as the default that later conditional transitions override.
func (s *State) Prepend(stmt hdl.Stmt) {
	s.Body = append([]hdl.Stmt{stmt}, s.Body...)
}

func (s *State) Append(stmts ...hdl.Stmt) {
	s.Body = append(s.Body, stmts...)
}

// NextState requests a transition to Target in the next cycle.
type NextState struct {
	hdl.Placeholder
	Target *State
}

func Goto(target *State) *NextState {
	return &NextState{Target: target}
}

// Machine is a realized state machine. States[0] is the reset state.
type Machine struct {
	States []*State
	State  *hdl.Signal
	Next   *hdl.Signal

	index map[*State]int
}

// Realize numbers states in list order.
func Realize(states []*State) (*Machine, error) {
	m := &Machine{
		States: states,
		index:  make(map[*State]int, len(states)),
	}
	for i, s := range states {
		if s == nil {
			return nil, fmt.Errorf("fsm: state %d is nil", i)
		}
		if _, dup := m.index[s]; dup {
			return nil, fmt.Errorf("%w (positions %d and %d)", ErrDuplicateState, m.index[s], i)
		}
		m.index[s] = i
	}
	width := hdl.BitsFor(int64(max(len(states)-1, 0)))
	m.State = hdl.NewSignal("state", width)
	m.Next = hdl.NewSignal("next_state", width)
	return m, nil
}

// Index returns the number assigned to s.
func (m *Machine) Index(s *State) (int, bool) {
	i, ok := m.index[s]
	return i, ok
}

// Fragment builds the next-state network: next_state defaults to the
// current state, each state's body runs under a case arm, and the state
// register loads next_state on every clock edge.
func (m *Machine) Fragment() (*hdl.Fragment, error) {
	if len(m.States) == 0 {
		return &hdl.Fragment{}, nil
	}

	arms := make([]hdl.CaseArm, len(m.States))
	for i, s := range m.States {
		body, err := hdl.Rewrite(s.Body, m.lowerTransition)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		arms[i] = hdl.CaseArm{
			Match: hdl.ConstOf(int64(i), m.State.Bits),
			Body:  body,
		}
	}

	return &hdl.Fragment{
		Comb: []hdl.Stmt{
			hdl.Eq(m.Next, m.State),
			&hdl.Case{Test: m.State, Arms: arms},
		},
		Sync: []hdl.Stmt{
			hdl.Eq(m.State, m.Next),
		},
	}, nil
}

func (m *Machine) lowerTransition(s hdl.Stmt) (hdl.Stmt, error) {
	ns, ok := s.(*NextState)
	if !ok {
		return s, nil
	}
	i, ok := m.index[ns.Target]
	if !ok {
		return nil, ErrUnknownState
	}
	return hdl.Eq(m.Next, hdl.ConstOf(int64(i), m.Next.Bits)), nil
}

// Describe renders a transition marker with its target's number, for
// listings of abstract states.
func (m *Machine) Describe(u hdl.Unresolved) string {
	if ns, ok := u.(*NextState); ok {
		if i, ok := m.index[ns.Target]; ok {
			return fmt.Sprintf("goto S%d", i)
		}
		return "goto <unknown>"
	}
	return fmt.Sprintf("<%T>", u)
}
