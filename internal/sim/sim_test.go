package sim_test

import (
	"errors"
	"testing"

	"github.com/fallen/migen/internal/compiler"
	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
	"github.com/fallen/migen/internal/sim"
)

func run(t *testing.T, src string, opts compiler.Options, inputs map[string][]uint64, limit int) ([]sim.Transfer, int) {
	t.Helper()
	res, err := compiler.Compile(src, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s, err := sim.New(res.Fragment)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	b, err := sim.NewBench(s, res.IO, inputs)
	if err != nil {
		t.Fatalf("bench: %v", err)
	}
	transfers, cycles, err := b.Run(limit)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return transfers, cycles
}

func values(transfers []sim.Transfer, resource string) []uint64 {
	var out []uint64
	for _, tr := range transfers {
		if tr.Resource == resource {
			out = append(out, tr.Value)
		}
	}
	return out
}

func expectValues(t *testing.T, got []uint64, want ...uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCounterRunsToCompletion(t *testing.T) {
	src := `def count():
    n = Register(4)
    while n < LIMIT:
        n.store = n + 1
        yield tx(n)
`
	opts := compiler.Options{
		Scope:     map[string]int64{"LIMIT": 9},
		Resources: []ioseq.Resource{ioseq.NewSink("tx", 4)},
	}
	transfers, cycles := run(t, src, opts, nil, 1000)

	expectValues(t, values(transfers, "tx"), 1, 2, 3, 4, 5, 6, 7, 8, 9)
	if cycles >= 1000 {
		t.Fatalf("the machine should go idle once n reaches the limit")
	}
	for _, tr := range transfers {
		if tr.Dir != ioseq.Out {
			t.Fatalf("unexpected transfer %s", tr)
		}
	}
	// guard, increment and send take one cycle each
	if transfers[1].Cycle-transfers[0].Cycle != 3 {
		t.Fatalf("expected three cycles per iteration, got %d", transfers[1].Cycle-transfers[0].Cycle)
	}
}

func TestUnrolledEcho(t *testing.T) {
	src := `def echo():
    r = Register(8)
    for i in range(3):
        yield rx(r)
        yield tx(r + i)
`
	opts := compiler.Options{
		Resources: []ioseq.Resource{ioseq.NewSource("rx", 8), ioseq.NewSink("tx", 8)},
	}

	transfers, cycles := run(t, src, opts, map[string][]uint64{"rx": {10, 20, 30}}, 20)
	expectValues(t, values(transfers, "rx"), 10, 20, 30)
	got := values(transfers, "tx")
	if len(got) < 3 {
		t.Fatalf("expected at least three sends, got %v", got)
	}
	expectValues(t, got[:3], 10, 21, 32)
	// the last send is never left, so it repeats until the limit
	if cycles != 20 {
		t.Fatalf("expected the run to hit the limit, stopped after %d", cycles)
	}

	transfers, cycles = run(t, src, opts, map[string][]uint64{"rx": {10}}, 20)
	expectValues(t, values(transfers, "tx"), 10)
	if cycles >= 20 {
		t.Fatalf("a starved source should leave the machine idle")
	}
}

func TestBranches(t *testing.T) {
	src := `def parity():
    r = Register(4)
    while True:
        yield rx(r)
        if r & 1:
            yield tx(1)
        else:
            yield tx(0)
`
	opts := compiler.Options{
		Resources: []ioseq.Resource{ioseq.NewSource("rx", 4), ioseq.NewSink("tx", 1)},
	}
	transfers, _ := run(t, src, opts, map[string][]uint64{"rx": {3, 4, 7, 8}}, 100)
	expectValues(t, values(transfers, "tx"), 1, 0, 1, 0)
}

func TestBenchInputs(t *testing.T) {
	res, err := compiler.Compile("def f():\n    r = Register(1)\n    yield rx(r)\n", compiler.Options{
		Resources: []ioseq.Resource{ioseq.NewSource("rx", 1)},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s, err := sim.New(res.Fragment)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if _, err := sim.NewBench(s, res.IO, map[string][]uint64{"nope": {1}}); err == nil {
		t.Fatalf("expected an error for an unknown resource")
	}
}

func TestEval(t *testing.T) {
	x := hdl.NewSignal("x", 8)
	y := hdl.NewSignal("y", 8)
	s, err := sim.New(&hdl.Fragment{Comb: []hdl.Stmt{hdl.Eq(y, x)}})
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if err := s.Set(x, 0x1b5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := s.Get(x); got != 0xb5 {
		t.Fatalf("inputs are truncated to their width, got %#x", got)
	}
	if got := s.Get(y); got != 0xb5 {
		t.Fatalf("comb logic should follow the input, got %#x", got)
	}

	tests := []struct {
		v    hdl.Value
		want uint64
	}{
		{hdl.Binary(hdl.OpSub, hdl.ConstOf(0, 4), hdl.ConstOf(1, 4)), 31},
		{hdl.Binary(hdl.OpAdd, x, x), 0x16a},
		{&hdl.Slice{X: x, Lo: 4, Hi: 8}, 0xb},
		{&hdl.Slice{X: x, Lo: 0, Hi: 1}, 1},
		{hdl.Binary(hdl.OpShl, hdl.ConstOf(1, 1), hdl.NewConst(3)), 8},
		{hdl.Binary(hdl.OpGe, x, hdl.NewConst(0xb5)), 1},
		{hdl.Binary(hdl.OpLt, x, hdl.NewConst(0xb5)), 0},
		{hdl.NewConst(-1), 1},
	}
	for i, tt := range tests {
		if got := s.Eval(tt.v); got != tt.want {
			t.Errorf("tests[%d] %s = %d, want %d", i, hdl.FormatValue(tt.v), got, tt.want)
		}
	}
}

func TestSyncCommitsTogether(t *testing.T) {
	a := &hdl.Signal{Name: "a", Bits: 4, Reset: 1}
	b := &hdl.Signal{Name: "b", Bits: 4, Reset: 2}
	s, err := sim.New(&hdl.Fragment{Sync: []hdl.Stmt{hdl.Eq(a, b), hdl.Eq(b, a)}})
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	changed, err := s.Step()
	if err != nil || !changed {
		t.Fatalf("step: changed=%v err=%v", changed, err)
	}
	if s.Get(a) != 2 || s.Get(b) != 1 {
		t.Fatalf("expected a swap, got a=%d b=%d", s.Get(a), s.Get(b))
	}
	if err := s.Set(a, 0); !errors.Is(err, sim.ErrDriven) {
		t.Fatalf("expected ErrDriven, got %v", err)
	}
	if err := s.Reset(); err != nil || s.Get(a) != 1 || s.Cycle() != 0 {
		t.Fatalf("reset should restore a=1 at cycle 0")
	}
}

func TestFragmentErrors(t *testing.T) {
	a := hdl.NewSignal("a", 1)
	b := hdl.NewSignal("b", 1)
	loop := &hdl.Fragment{Comb: []hdl.Stmt{
		hdl.Eq(a, hdl.Binary(hdl.OpXor, b, hdl.ConstOf(1, 1))),
		hdl.Eq(b, a),
	}}
	if _, err := sim.New(loop); !errors.Is(err, sim.ErrCombLoop) {
		t.Fatalf("expected ErrCombLoop, got %v", err)
	}

	both := &hdl.Fragment{
		Comb: []hdl.Stmt{hdl.Eq(a, hdl.ConstOf(1, 1))},
		Sync: []hdl.Stmt{hdl.Eq(a, hdl.ConstOf(0, 1))},
	}
	if _, err := sim.New(both); !errors.Is(err, sim.ErrBothDomains) {
		t.Fatalf("expected ErrBothDomains, got %v", err)
	}
}

func step(t *testing.T, s *sim.Simulator, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestSubtractionWrapsAtExpressionWidth(t *testing.T) {
	src := `def f():
    x = Register(4)
    y = Register(8)
    y.store = x - 1
`
	res, err := compiler.Compile(src, compiler.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s, err := sim.New(res.Fragment)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	step(t, s, 2)
	y := res.Registers[1].Storage()
	// x - 1 is five bits wide, as is the wire the Verilog output computes it in
	if got := s.Get(y); got != 31 {
		t.Fatalf("expected 31, got %d", got)
	}
}

func TestNegativeStoreIsSignExtended(t *testing.T) {
	src := `def f():
    r = Register(4)
    for i in range(-2, -1):
        r.store = i
`
	res, err := compiler.Compile(src, compiler.Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s, err := sim.New(res.Fragment)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	step(t, s, 1)
	if got := s.Get(res.Registers[0].Storage()); got != 14 {
		t.Fatalf("expected 14, got %d", got)
	}
}
