package compiler

import (
	"fmt"
	"strings"

	"github.com/fallen/migen/internal/token"
)

// SyntaxError carries every lexer and parser diagnostic of a source text.
type SyntaxError struct {
	Errors []string
}

func (e *SyntaxError) Error() string {
	return strings.Join(e.Errors, "\n")
}

// UnsupportedError is raised for any construct outside the compilable
// subset: statement kinds, operators, call targets, iterables.
type UnsupportedError struct {
	Pos  token.Position
	What string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%d:%d: unsupported: %s", e.Pos.Line, e.Pos.Column, e.What)
}

// ArityError is a call to an intrinsic or I/O resource with the wrong
// number of arguments.
type ArityError struct {
	Pos  token.Position
	Func string
	Got  int
	Want string
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%d:%d: %s() takes %s (%d given)", e.Pos.Line, e.Pos.Column, e.Func, e.Want, e.Got)
}

// ScopeError is a name that is unbound where it is used, or bound where a
// fresh name is required.
type ScopeError struct {
	Pos    token.Position
	Name   string
	Reason string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%d:%d: %q %s", e.Pos.Line, e.Pos.Column, e.Name, e.Reason)
}

func unsupported(pos token.Position, format string, args ...interface{}) error {
	return &UnsupportedError{Pos: pos, What: fmt.Sprintf(format, args...)}
}

func unbound(pos token.Position, name string) error {
	return &ScopeError{Pos: pos, Name: name, Reason: "is not defined"}
}
