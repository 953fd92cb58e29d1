package hdl_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/fallen/migen/internal/hdl"
)

type marker struct {
	hdl.Placeholder
	id int
}

func TestBitsFor(t *testing.T) {
	tests := []struct {
		v    int64
		want int
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 2}, {4, 3},
		{255, 8}, {256, 9},
		{-1, 1}, {-2, 2}, {-128, 8}, {-129, 9},
	}
	for _, tt := range tests {
		if got := hdl.BitsFor(tt.v); got != tt.want {
			t.Errorf("BitsFor(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestBinOpWidth(t *testing.T) {
	a := hdl.NewSignal("a", 4)
	b := hdl.NewSignal("b", 8)
	s := hdl.NewSignal("s", 2)

	tests := []struct {
		v    hdl.Value
		want int
	}{
		{hdl.Binary(hdl.OpAdd, a, b), 9},
		{hdl.Binary(hdl.OpSub, a, a), 5},
		{hdl.Binary(hdl.OpMul, a, b), 12},
		{hdl.Binary(hdl.OpShl, a, hdl.NewConst(3)), 7},
		{hdl.Binary(hdl.OpShl, a, s), 7},
		{hdl.Binary(hdl.OpShr, a, b), 4},
		{hdl.Binary(hdl.OpAnd, a, b), 8},
		{hdl.Binary(hdl.OpLt, a, b), 1},
		{&hdl.Slice{X: b, Lo: 2, Hi: 5}, 3},
	}
	for i, tt := range tests {
		if got := tt.v.Width(); got != tt.want {
			t.Errorf("tests[%d] %s: width %d, want %d", i, hdl.FormatValue(tt.v), got, tt.want)
		}
	}
}

func TestSignalWidthClamped(t *testing.T) {
	if w := hdl.NewSignal("z", 0).Width(); w != 1 {
		t.Fatalf("expected width 1, got %d", w)
	}
	if c := hdl.ConstOf(5, 0); c.Width() != 1 {
		t.Fatalf("expected width 1, got %d", c.Width())
	}
}

func TestExtend(t *testing.T) {
	x := hdl.NewSignal("x", 2)
	if hdl.Extend(x, 8) != hdl.Value(x) {
		t.Fatalf("signals are left alone")
	}
	pos := hdl.NewConst(3)
	if hdl.Extend(pos, 8) != hdl.Value(pos) {
		t.Fatalf("non-negative constants are left alone")
	}
	c := hdl.Extend(hdl.NewConst(-2), 8).(*hdl.Const)
	if c.Value != -2 || c.Bits != 8 {
		t.Fatalf("expected -2 in 8 bits, got %d in %d", c.Value, c.Bits)
	}
	wide := hdl.ConstOf(-1, 16)
	if hdl.Extend(wide, 8) != hdl.Value(wide) {
		t.Fatalf("wider constants are left alone")
	}
}

func TestRewriteCopiesContainers(t *testing.T) {
	x := hdl.NewSignal("x", 1)
	m := &marker{id: 1}
	orig := []hdl.Stmt{
		&hdl.If{Cond: x, Then: []hdl.Stmt{m}},
		&hdl.Case{Test: x, Arms: []hdl.CaseArm{{Match: hdl.ConstOf(0, 1), Body: []hdl.Stmt{m}}}},
	}

	out, err := hdl.Rewrite(orig, func(s hdl.Stmt) (hdl.Stmt, error) {
		if _, ok := s.(*marker); ok {
			return hdl.Eq(x, hdl.ConstOf(1, 1)), nil
		}
		return s, nil
	})
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := hdl.CheckResolved(out); err != nil {
		t.Fatalf("rewritten statements still unresolved: %v", err)
	}
	if err := hdl.CheckResolved(orig); !errors.Is(err, hdl.ErrUnresolved) {
		t.Fatalf("input should be left untouched, got %v", err)
	}
	if out[0] == orig[0] {
		t.Fatalf("containers should be copied")
	}
}

func TestRewriteStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := hdl.Rewrite([]hdl.Stmt{&marker{}}, func(hdl.Stmt) (hdl.Stmt, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestWalkOrder(t *testing.T) {
	x := hdl.NewSignal("x", 1)
	a, b, c := &marker{id: 1}, &marker{id: 2}, &marker{id: 3}
	stmts := []hdl.Stmt{
		&hdl.If{Cond: x, Then: []hdl.Stmt{a}, Else: []hdl.Stmt{b}},
		c,
	}
	var ids []int
	_ = hdl.Walk(stmts, func(s hdl.Stmt) error {
		if m, ok := s.(*marker); ok {
			ids = append(ids, m.id)
		}
		return nil
	})
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("unexpected walk order %v", ids)
	}
}

func TestMerge(t *testing.T) {
	x := hdl.NewSignal("x", 1)
	f := hdl.Merge(
		&hdl.Fragment{Comb: []hdl.Stmt{hdl.Eq(x, x)}},
		nil,
		&hdl.Fragment{Sync: []hdl.Stmt{hdl.Eq(x, x)}, Comb: []hdl.Stmt{hdl.Eq(x, x)}},
	)
	if len(f.Comb) != 2 || len(f.Sync) != 1 {
		t.Fatalf("unexpected merge %d/%d", len(f.Comb), len(f.Sync))
	}
}

func TestWalkValue(t *testing.T) {
	a := hdl.NewSignal("a", 4)
	v := &hdl.Slice{X: hdl.Binary(hdl.OpAdd, a, hdl.NewConst(1)), Lo: 0, Hi: 2}
	n := 0
	hdl.WalkValue(v, func(hdl.Value) { n++ })
	if n != 4 {
		t.Fatalf("expected 4 nodes, got %d", n)
	}
}

func TestFprint(t *testing.T) {
	x := hdl.NewSignal("x", 4)
	y := hdl.NewSignal("y", 4)
	stmts := []hdl.Stmt{
		&hdl.If{
			Cond: hdl.Binary(hdl.OpEq, x, hdl.NewConst(0)),
			Then: []hdl.Stmt{hdl.Eq(y, &hdl.Slice{X: x, Lo: 1, Hi: 3})},
			Else: []hdl.Stmt{&marker{id: 7}},
		},
	}
	var sb strings.Builder
	hdl.Fprint(&sb, stmts, 0, func(u hdl.Unresolved) string { return "marker" })
	want := "if (x == 0):\n  y = x[1:3]\nelse:\n  marker\n"
	if sb.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", sb.String(), want)
	}
}
