// Package sim executes a resolved hardware fragment one clock cycle at a
// time. Values are unsigned and truncated to the width of the expression
// that produced them, which is how the Verilog backend renders them.
package sim

import (
	"errors"
	"fmt"

	"github.com/fallen/migen/internal/hdl"
)

var (
	ErrCombLoop    = errors.New("sim: combinational logic does not settle")
	ErrDriven      = errors.New("sim: signal is driven by the design")
	ErrBothDomains = errors.New("sim: signal driven from both comb and sync logic")
)

// maxSettle bounds the comb passes per evaluation. Every generated design
// settles in one; feedback between comb signals needs more.
const maxSettle = 16

// Simulator holds the current value of every signal in a fragment.
type Simulator struct {
	comb []hdl.Stmt
	sync []hdl.Stmt

	combDriven map[*hdl.Signal]bool
	syncDriven []*hdl.Signal
	values     map[*hdl.Signal]uint64
	cycle      int
}

// New prepares f for simulation and applies reset.
func New(f *hdl.Fragment) (*Simulator, error) {
	if err := f.CheckResolved(); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	s := &Simulator{
		comb:       f.Comb,
		sync:       f.Sync,
		combDriven: make(map[*hdl.Signal]bool),
		values:     make(map[*hdl.Signal]uint64),
	}
	for _, t := range targets(f.Comb) {
		s.combDriven[t] = true
	}
	for _, t := range targets(f.Sync) {
		if s.combDriven[t] {
			return nil, fmt.Errorf("%w: %s", ErrBothDomains, t.Name)
		}
		s.syncDriven = append(s.syncDriven, t)
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// targets lists assigned signals in order of first assignment.
func targets(stmts []hdl.Stmt) []*hdl.Signal {
	seen := make(map[*hdl.Signal]bool)
	var out []*hdl.Signal
	_ = hdl.Walk(stmts, func(st hdl.Stmt) error {
		if a, ok := st.(*hdl.Assign); ok && !seen[a.Target] {
			seen[a.Target] = true
			out = append(out, a.Target)
		}
		return nil
	})
	return out
}

func mask(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}
	return v & (1<<uint(width) - 1)
}

// Reset loads every sync-driven signal with its reset value and settles the
// comb logic. Inputs keep their values.
func (s *Simulator) Reset() error {
	for _, sig := range s.syncDriven {
		s.values[sig] = mask(uint64(sig.Reset), sig.Bits)
	}
	s.cycle = 0
	return s.settle()
}

// Cycle returns the number of clock edges since reset.
func (s *Simulator) Cycle() int { return s.cycle }

// Set drives an input. Comb logic is settled again so that Get reflects it.
func (s *Simulator) Set(sig *hdl.Signal, v uint64) error {
	if s.combDriven[sig] || s.isSync(sig) {
		return fmt.Errorf("%w: %s", ErrDriven, sig.Name)
	}
	s.values[sig] = mask(v, sig.Bits)
	return s.settle()
}

func (s *Simulator) isSync(sig *hdl.Signal) bool {
	for _, t := range s.syncDriven {
		if t == sig {
			return true
		}
	}
	return false
}

// Get returns the current value of sig.
func (s *Simulator) Get(sig *hdl.Signal) uint64 {
	return s.values[sig]
}

// Eval computes v from the current signal values.
func (s *Simulator) Eval(v hdl.Value) uint64 {
	switch v := v.(type) {
	case *hdl.Signal:
		return s.values[v]
	case *hdl.Const:
		return mask(uint64(v.Value), v.Bits)
	case *hdl.Slice:
		return mask(s.Eval(v.X)>>uint(v.Lo), v.Hi-v.Lo)
	case *hdl.BinOp:
		return mask(binary(v.Op, s.Eval(v.Left), s.Eval(v.Right)), v.Width())
	default:
		panic(fmt.Sprintf("sim: unknown value %T", v))
	}
}

func binary(op hdl.Op, l, r uint64) uint64 {
	switch op {
	case hdl.OpAdd:
		return l + r
	case hdl.OpSub:
		return l - r
	case hdl.OpMul:
		return l * r
	case hdl.OpShl:
		if r >= 64 {
			return 0
		}
		return l << r
	case hdl.OpShr:
		if r >= 64 {
			return 0
		}
		return l >> r
	case hdl.OpOr:
		return l | r
	case hdl.OpXor:
		return l ^ r
	case hdl.OpAnd:
		return l & r
	case hdl.OpEq:
		return truth(l == r)
	case hdl.OpNe:
		return truth(l != r)
	case hdl.OpLt:
		return truth(l < r)
	case hdl.OpLe:
		return truth(l <= r)
	case hdl.OpGt:
		return truth(l > r)
	case hdl.OpGe:
		return truth(l >= r)
	default:
		panic(fmt.Sprintf("sim: unknown operator %v", op))
	}
}

func truth(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// settle re-runs the comb block until no comb signal changes. Each pass
// starts from the reset values, so a signal no statement assigns in this
// cycle falls back to its default.
func (s *Simulator) settle() error {
	for pass := 0; pass < maxSettle; pass++ {
		next := make(map[*hdl.Signal]uint64, len(s.combDriven))
		for sig := range s.combDriven {
			next[sig] = mask(uint64(sig.Reset), sig.Bits)
		}
		s.exec(s.comb, func(t *hdl.Signal, v uint64) { next[t] = v })

		changed := false
		for sig, v := range next {
			if s.values[sig] != v {
				s.values[sig] = v
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
	return ErrCombLoop
}

// exec runs stmts against the current values, handing every executed
// assignment to store.
func (s *Simulator) exec(stmts []hdl.Stmt, store func(*hdl.Signal, uint64)) {
	for _, st := range stmts {
		switch st := st.(type) {
		case *hdl.Assign:
			store(st.Target, mask(s.Eval(st.Value), st.Target.Bits))
		case *hdl.If:
			if s.Eval(st.Cond) != 0 {
				s.exec(st.Then, store)
			} else {
				s.exec(st.Else, store)
			}
		case *hdl.Case:
			test := s.Eval(st.Test)
			matched := false
			for _, arm := range st.Arms {
				if test == s.Eval(arm.Match) {
					s.exec(arm.Body, store)
					matched = true
					break
				}
			}
			if !matched {
				s.exec(st.Default, store)
			}
		default:
			panic(fmt.Sprintf("sim: unknown statement %T", st))
		}
	}
}

// Step advances one clock edge: sync assignments read the values from
// before the edge and commit together. It reports whether any sync-driven
// signal changed.
func (s *Simulator) Step() (bool, error) {
	pending := make(map[*hdl.Signal]uint64)
	s.exec(s.sync, func(t *hdl.Signal, v uint64) { pending[t] = v })

	changed := false
	for sig, v := range pending {
		if s.values[sig] != v {
			s.values[sig] = v
			changed = true
		}
	}
	s.cycle++
	return changed, s.settle()
}
