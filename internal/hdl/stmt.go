package hdl

import (
	"errors"
	"fmt"
)

// Stmt is a statement inside a comb or sync block.
type Stmt interface {
	stmtNode()
}

// Assign drives Target with Value. In a comb block the last assignment
// executed in a cycle wins.
type Assign struct {
	Target *Signal
	Value  Value
}

func (a *Assign) stmtNode() {}

// Eq builds `target = value`.
func Eq(target *Signal, value Value) *Assign {
	return &Assign{Target: target, Value: value}
}

type If struct {
	Cond Value
	Then []Stmt
	Else []Stmt
}

func (i *If) stmtNode() {}

type CaseArm struct {
	Match *Const
	Body  []Stmt
}

// Case dispatches on Test. Values matching no arm run Default, which may be
// empty.
type Case struct {
	Test    Value
	Arms    []CaseArm
	Default []Stmt
}

func (c *Case) stmtNode() {}

// Placeholder is embedded by statements that stand in for something only
// known after a later pass. Every placeholder must be rewritten away before
// a fragment is handed to a backend.
type Placeholder struct{}

func (Placeholder) stmtNode()   {}
func (Placeholder) unresolved() {}

// Unresolved is satisfied by any statement embedding Placeholder.
type Unresolved interface {
	Stmt
	unresolved()
}

var ErrUnresolved = errors.New("unresolved placeholder")

// Fragment is a unit of hardware: statements evaluated combinationally and
// statements committed on the clock edge.
type Fragment struct {
	Comb []Stmt
	Sync []Stmt
}

// Merge concatenates fragments in order.
func Merge(frags ...*Fragment) *Fragment {
	out := &Fragment{}
	for _, f := range frags {
		if f == nil {
			continue
		}
		out.Comb = append(out.Comb, f.Comb...)
		out.Sync = append(out.Sync, f.Sync...)
	}
	return out
}

// Rewrite applies fn to both blocks of the fragment.
func (f *Fragment) Rewrite(fn func(Stmt) (Stmt, error)) (*Fragment, error) {
	comb, err := Rewrite(f.Comb, fn)
	if err != nil {
		return nil, err
	}
	sync, err := Rewrite(f.Sync, fn)
	if err != nil {
		return nil, err
	}
	return &Fragment{Comb: comb, Sync: sync}, nil
}

// CheckResolved fails if any placeholder survives in the fragment.
func (f *Fragment) CheckResolved() error {
	if err := CheckResolved(f.Comb); err != nil {
		return err
	}
	return CheckResolved(f.Sync)
}

// Rewrite returns a copy of stmts in which fn has been applied to every leaf
// statement (anything but If and Case, whose bodies are walked instead). fn
// returns its argument to keep a statement. The input is not modified.
func Rewrite(stmts []Stmt, fn func(Stmt) (Stmt, error)) ([]Stmt, error) {
	if stmts == nil {
		return nil, nil
	}
	out := make([]Stmt, 0, len(stmts))
	for _, s := range stmts {
		switch s := s.(type) {
		case *If:
			then, err := Rewrite(s.Then, fn)
			if err != nil {
				return nil, err
			}
			els, err := Rewrite(s.Else, fn)
			if err != nil {
				return nil, err
			}
			out = append(out, &If{Cond: s.Cond, Then: then, Else: els})
		case *Case:
			arms := make([]CaseArm, len(s.Arms))
			for i, arm := range s.Arms {
				body, err := Rewrite(arm.Body, fn)
				if err != nil {
					return nil, err
				}
				arms[i] = CaseArm{Match: arm.Match, Body: body}
			}
			def, err := Rewrite(s.Default, fn)
			if err != nil {
				return nil, err
			}
			out = append(out, &Case{Test: s.Test, Arms: arms, Default: def})
		default:
			r, err := fn(s)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// Walk calls fn for every statement, containers before their bodies, and
// stops at the first error.
func Walk(stmts []Stmt, fn func(Stmt) error) error {
	for _, s := range stmts {
		if err := fn(s); err != nil {
			return err
		}
		switch s := s.(type) {
		case *If:
			if err := Walk(s.Then, fn); err != nil {
				return err
			}
			if err := Walk(s.Else, fn); err != nil {
				return err
			}
		case *Case:
			for _, arm := range s.Arms {
				if err := Walk(arm.Body, fn); err != nil {
					return err
				}
			}
			if err := Walk(s.Default, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func CheckResolved(stmts []Stmt) error {
	return Walk(stmts, func(s Stmt) error {
		if _, ok := s.(Unresolved); ok {
			return fmt.Errorf("%w: %T", ErrUnresolved, s)
		}
		return nil
	})
}
