// Package hdl is a small hardware description model: fixed-width values,
// combinational and synchronous statements, and fragments that group them.
package hdl

import "math/bits"

// BitsFor returns the minimum width able to represent v. Negative values
// get a two's complement width; zero needs one bit.
func BitsFor(v int64) int {
	if v < 0 {
		return bits.Len64(uint64(^v)) + 1
	}
	if v == 0 {
		return 1
	}
	return bits.Len64(uint64(v))
}

// Value is anything that can appear on the right-hand side of an
// assignment.
type Value interface {
	Width() int
	valueNode()
}

// Signal is a named wire or register. Comb-driven signals fall back to
// Reset in every cycle where no statement assigns them; sync-driven ones
// load Reset on system reset.
type Signal struct {
	Name  string
	Bits  int
	Reset int64
}

// NewSignal creates a signal of the given width. Widths below one are
// clamped to one.
func NewSignal(name string, width int) *Signal {
	if width < 1 {
		width = 1
	}
	return &Signal{Name: name, Bits: width}
}

func (s *Signal) Width() int { return s.Bits }
func (s *Signal) valueNode() {}

type Const struct {
	Value int64
	Bits  int
}

// NewConst returns a constant just wide enough for v.
func NewConst(v int64) *Const {
	return &Const{Value: v, Bits: BitsFor(v)}
}

// ConstOf returns a constant of an explicit width.
func ConstOf(v int64, width int) *Const {
	if width < 1 {
		width = 1
	}
	return &Const{Value: v, Bits: width}
}

func (c *Const) Width() int { return c.Bits }
func (c *Const) valueNode() {}

// Extend widens a negative constant to width, keeping its two's complement
// value. Other values are returned as is and zero-extend on assignment.
func Extend(v Value, width int) Value {
	c, ok := v.(*Const)
	if !ok || c.Value >= 0 || c.Bits >= width {
		return v
	}
	return ConstOf(c.Value, width)
}

type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpShl
	OpShr
	OpOr
	OpXor
	OpAnd
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opSymbols = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpShl: "<<",
	OpShr: ">>",
	OpOr:  "|",
	OpXor: "^",
	OpAnd: "&",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opSymbols) {
		return opSymbols[op]
	}
	return "?"
}

// IsComparison reports whether op yields a single-bit truth value.
func (op Op) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

type BinOp struct {
	Op    Op
	Left  Value
	Right Value
}

func Binary(op Op, left, right Value) *BinOp {
	return &BinOp{Op: op, Left: left, Right: right}
}

// maxShiftBits bounds the growth of a left shift by a non-constant amount.
const maxShiftBits = 6

func (b *BinOp) Width() int {
	l, r := b.Left.Width(), b.Right.Width()
	switch b.Op {
	case OpAdd, OpSub:
		return max(l, r) + 1
	case OpMul:
		return l + r
	case OpShl:
		if c, ok := b.Right.(*Const); ok && c.Value >= 0 {
			return l + int(c.Value)
		}
		return l + (1 << min(r, maxShiftBits)) - 1
	case OpShr:
		return l
	case OpOr, OpXor, OpAnd:
		return max(l, r)
	default:
		return 1
	}
}

func (b *BinOp) valueNode() {}

// Slice selects bits [Lo, Hi) of X.
type Slice struct {
	X  Value
	Lo int
	Hi int
}

func (s *Slice) Width() int { return s.Hi - s.Lo }
func (s *Slice) valueNode() {}

// WalkValue calls fn for v and every value nested inside it, parents first.
func WalkValue(v Value, fn func(Value)) {
	if v == nil {
		return
	}
	fn(v)
	switch v := v.(type) {
	case *BinOp:
		WalkValue(v.Left, fn)
		WalkValue(v.Right, fn)
	case *Slice:
		WalkValue(v.X, fn)
	}
}
