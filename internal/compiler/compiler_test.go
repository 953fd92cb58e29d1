package compiler_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/fallen/migen/internal/compiler"
	"github.com/fallen/migen/internal/fsm"
	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
)

func compile(t *testing.T, src string, opts compiler.Options) *compiler.Result {
	t.Helper()
	res, err := compiler.Compile(src, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return res
}

func gotoTarget(t *testing.T, s hdl.Stmt) *fsm.State {
	t.Helper()
	ns, ok := s.(*fsm.NextState)
	if !ok {
		t.Fatalf("expected *fsm.NextState, got %T", s)
	}
	return ns.Target
}

func branch(t *testing.T, s hdl.Stmt) *hdl.If {
	t.Helper()
	b, ok := s.(*hdl.If)
	if !ok {
		t.Fatalf("expected *hdl.If, got %T", s)
	}
	return b
}

func assign(t *testing.T, s hdl.Stmt) *hdl.Assign {
	t.Helper()
	a, ok := s.(*hdl.Assign)
	if !ok {
		t.Fatalf("expected *hdl.Assign, got %T", s)
	}
	return a
}

func TestSequentialStoresAreChained(t *testing.T) {
	src := `def f():
    r = Register(8)
    r.store = 5
    r.store = 6
`
	res := compile(t, src, compiler.Options{})
	if res.Name != "f" {
		t.Fatalf("expected name f, got %q", res.Name)
	}
	if len(res.States) != 2 {
		t.Fatalf("expected 2 states, got %d", len(res.States))
	}
	if got := gotoTarget(t, res.States[0].Body[0]); got != res.States[1] {
		t.Fatalf("state 0 does not fall through to state 1")
	}
	if len(res.States[1].Body) != 1 {
		t.Fatalf("last state should only load, got %d statements", len(res.States[1].Body))
	}

	if len(res.Registers) != 1 {
		t.Fatalf("expected 1 register, got %d", len(res.Registers))
	}
	reg := res.Registers[0]
	if reg.Name() != "r" || reg.Storage().Bits != 8 {
		t.Fatalf("unexpected register %s/%d", reg.Name(), reg.Storage().Bits)
	}
	if reg.Selector().Name != "regsel_r" || reg.Selector().Bits != 2 {
		t.Fatalf("unexpected selector %s/%d", reg.Selector().Name, reg.Selector().Bits)
	}

	load := assign(t, res.States[0].Body[1])
	if load.Target != reg.Selector() {
		t.Fatalf("state 0 should drive the selector")
	}
	if c := load.Value.(*hdl.Const); c.Value != 1 {
		t.Fatalf("expected code 1, got %d", c.Value)
	}
	if c := assign(t, res.States[1].Body[0]).Value.(*hdl.Const); c.Value != 2 {
		t.Fatalf("expected code 2, got %d", c.Value)
	}
}

func TestRegisterDeclarationEmitsNoState(t *testing.T) {
	src := `def f():
    a = b = Register(4)
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 0 {
		t.Fatalf("expected no states, got %d", len(res.States))
	}
	if len(res.Registers) != 1 || res.Registers[0].Name() != "a" {
		t.Fatalf("expected one register named a")
	}
	if len(res.Fragment.Comb) != 0 {
		t.Fatalf("an empty machine should emit no comb logic")
	}
}

func TestAliasedRegisterNames(t *testing.T) {
	src := `def f():
    a = b = Register(4)
    b.store = 3
    a.store = 3
`
	res := compile(t, src, compiler.Options{})
	if len(res.Registers) != 1 {
		t.Fatalf("expected both names to share one register, got %d", len(res.Registers))
	}
	if len(res.States) != 2 {
		t.Fatalf("expected 2 states, got %d", len(res.States))
	}
}

func TestMultiTargetStoreSharesOneState(t *testing.T) {
	src := `def f():
    a = Register(4)
    b = Register(4)
    a.store = b.store = 3
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 1 {
		t.Fatalf("expected 1 state, got %d", len(res.States))
	}
	body := res.States[0].Body
	if len(body) != 2 {
		t.Fatalf("expected 2 loads, got %d", len(body))
	}
	if assign(t, body[0]).Target != res.Registers[0].Selector() ||
		assign(t, body[1]).Target != res.Registers[1].Selector() {
		t.Fatalf("loads target the wrong selectors")
	}
}

func TestIfWithoutElse(t *testing.T) {
	src := `def f():
    r = Register(4)
    if r == 0:
        r.store = 1
    r.store = 2
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 3 {
		t.Fatalf("expected 3 states, got %d", len(res.States))
	}
	guard, then, after := res.States[0], res.States[1], res.States[2]

	if gotoTarget(t, guard.Body[0]) != after {
		t.Fatalf("guard should fall through to the following statement")
	}
	b := branch(t, guard.Body[1])
	if gotoTarget(t, b.Then[0]) != then {
		t.Fatalf("guard should enter the then arm")
	}
	if b.Else != nil {
		t.Fatalf("guard without else arm should not have an else transition")
	}
	if gotoTarget(t, then.Body[0]) != after {
		t.Fatalf("then arm should fall through")
	}
}

func TestIfElse(t *testing.T) {
	src := `def f():
    r = Register(4)
    if r == 0:
        r.store = 1
    else:
        r.store = 2
    r.store = 3
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 4 {
		t.Fatalf("expected 4 states, got %d", len(res.States))
	}
	guard, then, els, after := res.States[0], res.States[1], res.States[2], res.States[3]

	b := branch(t, guard.Body[0])
	if gotoTarget(t, b.Then[0]) != then || gotoTarget(t, b.Else[0]) != els {
		t.Fatalf("guard branches to the wrong arms")
	}
	if len(guard.Body) != 1 {
		t.Fatalf("guard with an else arm is not an exit")
	}
	if gotoTarget(t, then.Body[0]) != after || gotoTarget(t, els.Body[0]) != after {
		t.Fatalf("both arms should fall through")
	}
}

func TestElifChain(t *testing.T) {
	src := `def f():
    r = Register(4)
    if r == 0:
        r.store = 1
    elif r == 1:
        r.store = 2
    else:
        r.store = 3
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 5 {
		t.Fatalf("expected 5 states, got %d", len(res.States))
	}
	outer := branch(t, res.States[0].Body[0])
	if gotoTarget(t, outer.Else[0]) != res.States[2] {
		t.Fatalf("outer else should enter the elif guard")
	}
	inner := branch(t, res.States[2].Body[0])
	if gotoTarget(t, inner.Then[0]) != res.States[3] || gotoTarget(t, inner.Else[0]) != res.States[4] {
		t.Fatalf("elif guard branches to the wrong arms")
	}
}

func TestWhileLoop(t *testing.T) {
	src := `def f():
    r = Register(4)
    while r < 10:
        r.store = r + 1
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 2 {
		t.Fatalf("expected 2 states, got %d", len(res.States))
	}
	guard, body := res.States[0], res.States[1]
	b := branch(t, guard.Body[0])
	if gotoTarget(t, b.Then[0]) != body {
		t.Fatalf("guard should enter the body")
	}
	if gotoTarget(t, body.Body[0]) != guard {
		t.Fatalf("body should loop back to the guard")
	}
}

func TestWhileFollowedByStatement(t *testing.T) {
	src := `def f():
    r = Register(4)
    while r < 10:
        r.store = r + 1
    r.store = 0
`
	res := compile(t, src, compiler.Options{})
	guard, body, after := res.States[0], res.States[1], res.States[2]
	if gotoTarget(t, guard.Body[0]) != after {
		t.Fatalf("guard should be the loop's only exit")
	}
	if gotoTarget(t, body.Body[0]) != guard {
		t.Fatalf("body should not fall through past the guard")
	}
}

func TestForRangeUnrolls(t *testing.T) {
	src := `def f():
    r = Register(4)
    for i in range(3):
        r.store = i
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 3 {
		t.Fatalf("expected 3 states, got %d", len(res.States))
	}
	for i := 0; i < 2; i++ {
		if gotoTarget(t, res.States[i].Body[0]) != res.States[i+1] {
			t.Fatalf("iteration %d is not chained to the next", i)
		}
	}
	reg := res.Registers[0]
	sources := reg.Sources()
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	for i, s := range sources {
		if c := s.(*hdl.Const); c.Value != int64(i) {
			t.Fatalf("source %d: expected %d, got %d", i, i, c.Value)
		}
	}
	if reg.Selector().Bits != 2 {
		t.Fatalf("expected 2-bit selector, got %d", reg.Selector().Bits)
	}
}

func TestForRangeForms(t *testing.T) {
	tests := []struct {
		iter string
		want []int64
	}{
		{"[5, 7]", []int64{5, 7}},
		{"range(2, 5)", []int64{2, 3, 4}},
		{"range(10, 0, -4)", []int64{10, 6, 2}},
		{"range(N)", []int64{0, 1}},
		{"range(0)", nil},
	}

	for _, tt := range tests {
		src := "def f():\n    r = Register(8)\n    for i in " + tt.iter + ":\n        r.store = i\n"
		res := compile(t, src, compiler.Options{Scope: map[string]int64{"N": 2}})
		sources := res.Registers[0].Sources()
		if len(sources) != len(tt.want) {
			t.Fatalf("%s: expected %d iterations, got %d", tt.iter, len(tt.want), len(sources))
		}
		for i, s := range sources {
			if c := s.(*hdl.Const); c.Value != tt.want[i] {
				t.Fatalf("%s: iteration %d: expected %d, got %d", tt.iter, i, tt.want[i], c.Value)
			}
		}
	}
}

func TestLoopVariableScoping(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		scope map[string]int64
		bad   string
	}{
		{
			name: "shadows register",
			src: `def f():
    r = Register(4)
    for r in range(2):
        pass
`,
			bad: "r",
		},
		{
			name: "shadows scope constant",
			src: `def f():
    r = Register(4)
    for N in range(2):
        r.store = N
`,
			scope: map[string]int64{"N": 3},
			bad:   "N",
		},
		{
			name: "nested loops reuse the name",
			src: `def f():
    r = Register(4)
    for i in range(2):
        for i in range(2):
            r.store = i
`,
			bad: "i",
		},
		{
			name: "rebound in body",
			src: `def f():
    for i in range(2):
        i = Register(4)
`,
			bad: "i",
		},
	}

	for _, tt := range tests {
		_, err := compiler.Compile(tt.src, compiler.Options{Scope: tt.scope})
		var scopeErr *compiler.ScopeError
		if !errors.As(err, &scopeErr) {
			t.Fatalf("%s: expected *ScopeError, got %v", tt.name, err)
		}
		if scopeErr.Name != tt.bad {
			t.Fatalf("%s: expected error about %q, got %q", tt.name, tt.bad, scopeErr.Name)
		}
	}
}

func TestLoopVariableIsReleasedAfterLoop(t *testing.T) {
	src := `def f():
    r = Register(4)
    for i in range(2):
        r.store = i
    for i in [3]:
        r.store = i
`
	res := compile(t, src, compiler.Options{})
	if len(res.States) != 3 {
		t.Fatalf("expected 3 states, got %d", len(res.States))
	}
}

func TestComparisonChain(t *testing.T) {
	src := `def f():
    r = Register(4)
    if 0 <= r < 10:
        r.store = 1
`
	res := compile(t, src, compiler.Options{})
	cond, ok := branch(t, res.States[0].Body[0]).Cond.(*hdl.BinOp)
	if !ok || cond.Op != hdl.OpAnd {
		t.Fatalf("expected a conjunction, got %s", hdl.FormatValue(cond))
	}
	left := cond.Left.(*hdl.BinOp)
	right := cond.Right.(*hdl.BinOp)
	if left.Op != hdl.OpLe || right.Op != hdl.OpLt {
		t.Fatalf("unexpected comparisons %s", hdl.FormatValue(cond))
	}
	storage := res.Registers[0].Storage()
	if left.Right != storage || right.Left != storage {
		t.Fatalf("the middle operand should be shared by both comparisons")
	}
}

func TestBitslice(t *testing.T) {
	x := hdl.NewSignal("x", 8)
	src := `def f():
    r = Register(3)
    r.store = bitslice(x, 2, 5)
    r.store = bitslice(x, 7)
`
	res := compile(t, src, compiler.Options{Values: map[string]hdl.Value{"x": x}})
	sources := res.Registers[0].Sources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	s0 := sources[0].(*hdl.Slice)
	if s0.X != x || s0.Lo != 2 || s0.Hi != 5 {
		t.Fatalf("unexpected slice %s", hdl.FormatValue(s0))
	}
	if s1 := sources[1].(*hdl.Slice); s1.Width() != 1 || s1.Lo != 7 {
		t.Fatalf("unexpected single bit %s", hdl.FormatValue(s1))
	}
}

func TestBitsliceSingleIndex(t *testing.T) {
	x := hdl.NewSignal("x", 8)
	src := `def f():
    r = Register(1)
    r.store = bitslice(x, 2)
    r.store = bitslice(x, 2, 3)
`
	res := compile(t, src, compiler.Options{Values: map[string]hdl.Value{"x": x}})
	sources := res.Registers[0].Sources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	one, two := sources[0].(*hdl.Slice), sources[1].(*hdl.Slice)
	if one.X != two.X || one.Lo != two.Lo || one.Hi != two.Hi {
		t.Fatalf("expected identical slices, got %s and %s", hdl.FormatValue(one), hdl.FormatValue(two))
	}
	if one.Lo != 2 || one.Hi != 3 {
		t.Fatalf("expected bit 2, got %s", hdl.FormatValue(one))
	}
}

func TestNegativeLoopValuesAreSignExtended(t *testing.T) {
	src := `def f():
    r = Register(4)
    for i in range(-2, 1):
        r.store = i
`
	res := compile(t, src, compiler.Options{})
	sources := res.Registers[0].Sources()
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	for i, want := range []int64{-2, -1, 0} {
		c := sources[i].(*hdl.Const)
		if c.Value != want {
			t.Fatalf("iteration %d: expected %d, got %d", i, want, c.Value)
		}
		if want < 0 && c.Bits != 4 {
			t.Fatalf("iteration %d: negative value should take the register width, got %d bits", i, c.Bits)
		}
	}
}

func TestSharedSourceKeepsItsCode(t *testing.T) {
	x := hdl.NewSignal("x", 4)
	src := `def f():
    r = Register(4)
    r.store = x
    r.store = 1
    r.store = x
`
	res := compile(t, src, compiler.Options{Values: map[string]hdl.Value{"x": x}})
	reg := res.Registers[0]
	if len(reg.Sources()) != 2 {
		t.Fatalf("expected 2 distinct sources, got %d", len(reg.Sources()))
	}
	first := assign(t, res.States[0].Body[1]).Value.(*hdl.Const)
	last := assign(t, res.States[2].Body[0]).Value.(*hdl.Const)
	if first.Value != 1 || last.Value != 1 {
		t.Fatalf("loads of the same value should share code 1, got %d and %d", first.Value, last.Value)
	}
	if code, ok := reg.Code(x); !ok || code != 1 {
		t.Fatalf("expected x to have code 1, got %d", code)
	}
}

func TestYieldSourceAndSink(t *testing.T) {
	rx := ioseq.NewSource("rx", 8)
	tx := ioseq.NewSink("tx", 8)
	src := `def echo():
    r = Register(8)
    yield rx(r)
    yield tx(r + 1)
`
	res := compile(t, src, compiler.Options{Resources: []ioseq.Resource{rx, tx}})
	if len(res.States) != 2 {
		t.Fatalf("expected 2 states, got %d", len(res.States))
	}
	if len(res.IO) != 2 {
		t.Fatalf("expected the resources to be reported")
	}

	recv := res.States[0]
	if gotoTarget(t, recv.Body[0]) != res.States[1] {
		t.Fatalf("receive state should fall through to the send")
	}
	if assign(t, recv.Body[1]).Target != rx.Ack {
		t.Fatalf("receive state should raise ack")
	}
	wait := branch(t, recv.Body[2])
	if wait.Cond != rx.Stb {
		t.Fatalf("receive should wait on stb")
	}
	if assign(t, wait.Then[0]).Target != res.Registers[0].Selector() {
		t.Fatalf("strobe should load the register")
	}
	if gotoTarget(t, wait.Else[0]) != recv {
		t.Fatalf("receive should stay put without stb")
	}

	send := res.States[1]
	if assign(t, send.Body[0]).Target != tx.Stb || assign(t, send.Body[1]).Target != tx.Data {
		t.Fatalf("send state should drive stb and data")
	}
	if gotoTarget(t, branch(t, send.Body[2]).Then[0]) != send {
		t.Fatalf("send should stay put without ack")
	}
}

func TestFragmentIsResolved(t *testing.T) {
	src := `def f():
    r = Register(4)
    while r < 10:
        if r == 3:
            r.store = r + 2
        else:
            r.store = r + 1
`
	res := compile(t, src, compiler.Options{})
	if err := res.Fragment.CheckResolved(); err != nil {
		t.Fatalf("fragment has placeholders: %v", err)
	}
	if len(res.Fragment.Sync) != 2 {
		t.Fatalf("expected register logic then the state register, got %d sync statements", len(res.Fragment.Sync))
	}
	if _, ok := res.Fragment.Sync[0].(*hdl.Case); !ok {
		t.Fatalf("register logic should come first")
	}
	if a := assign(t, res.Fragment.Sync[1]); a.Target != res.Machine.State {
		t.Fatalf("state register should load last")
	}
}

func TestUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"return", "def f():\n    return\n"},
		{"pass", "def f():\n    pass\n"},
		{"division", "def f():\n    r = Register(4)\n    r.store = r / 2\n"},
		{"boolean operator", "def f():\n    r = Register(4)\n    if r and r:\n        r.store = 1\n"},
		{"negation", "def f():\n    r = Register(4)\n    r.store = -r\n"},
		{"empty while", "def f():\n    while 1:\n        r = Register(4)\n"},
		{"empty if", "def f():\n    if 1:\n        r = Register(4)\n"},
		{"nested function", "def f():\n    def g():\n        pass\n"},
		{"two functions", "def f():\n    pass\ndef g():\n    pass\n"},
		{"no function", "x = 1\n"},
		{"plain expression", "def f():\n    r = Register(4)\n    r + 1\n"},
		{"nested register", "def f():\n    r = Register(4)\n    r.store = Register(4) + 1\n"},
		{"register into attribute", "def f():\n    r = Register(4)\n    r.store = Register(4)\n"},
		{"plain name target", "def f():\n    r = Register(4)\n    r = 3\n"},
		{"iterate name", "def f():\n    r = Register(4)\n    for i in r:\n        r.store = i\n"},
		{"non-constant width", "def f():\n    r = Register(4)\n    s = Register(r)\n"},
		{"slice out of range", "def f():\n    r = Register(4)\n    r.store = bitslice(r, 2, 6)\n"},
		{"yield non-resource", "def f():\n    r = Register(4)\n    yield Register(r)\n"},
		{"intrinsic as value", "def f():\n    r = Register(4)\n    r.store = bitslice\n"},
	}

	for _, tt := range tests {
		_, err := compiler.Compile(tt.src, compiler.Options{})
		var unsupported *compiler.UnsupportedError
		if !errors.As(err, &unsupported) {
			t.Fatalf("%s: expected *UnsupportedError, got %v", tt.name, err)
		}
	}
}

func TestArity(t *testing.T) {
	tx := ioseq.NewSink("tx", 8)
	tests := []struct {
		src string
		fn  string
		got int
	}{
		{"def f():\n    r = Register()\n", "Register", 0},
		{"def f():\n    r = Register(1, 2)\n", "Register", 2},
		{"def f():\n    r = Register(4)\n    r.store = bitslice(r)\n", "bitslice", 1},
		{"def f():\n    r = Register(4)\n    r.store = bitslice(r, 0, 1, 2)\n", "bitslice", 4},
		{"def f():\n    r = Register(4)\n    for i in range():\n        r.store = i\n", "range", 0},
		{"def f():\n    yield tx(1, 2)\n", "tx", 2},
	}

	for _, tt := range tests {
		_, err := compiler.Compile(tt.src, compiler.Options{Resources: []ioseq.Resource{tx}})
		var arity *compiler.ArityError
		if !errors.As(err, &arity) {
			t.Fatalf("%q: expected *ArityError, got %v", tt.src, err)
		}
		if arity.Func != tt.fn || arity.Got != tt.got {
			t.Fatalf("%q: expected %s with %d args, got %s with %d", tt.src, tt.fn, tt.got, arity.Func, arity.Got)
		}
	}
}

func TestUnboundName(t *testing.T) {
	src := `def f():
    r = Register(4)
    r.store = q
`
	_, err := compiler.Compile(src, compiler.Options{})
	var scopeErr *compiler.ScopeError
	if !errors.As(err, &scopeErr) || scopeErr.Name != "q" {
		t.Fatalf("expected unbound q, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "3:15:") {
		t.Fatalf("expected position 3:15, got %q", err.Error())
	}
}

func TestSyntaxErrors(t *testing.T) {
	_, err := compiler.Compile("def f(:\n    pass\n", compiler.Options{})
	var syntax *compiler.SyntaxError
	if !errors.As(err, &syntax) || len(syntax.Errors) == 0 {
		t.Fatalf("expected *SyntaxError, got %v", err)
	}
}

func TestConflictingScope(t *testing.T) {
	_, err := compiler.Compile("def f():\n    pass\n", compiler.Options{
		Scope:  map[string]int64{"x": 1},
		Values: map[string]hdl.Value{"x": hdl.NewSignal("x", 1)},
	})
	if err == nil || !strings.Contains(err.Error(), `"x"`) {
		t.Fatalf("expected conflict on x, got %v", err)
	}
}
