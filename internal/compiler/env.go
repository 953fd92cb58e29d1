package compiler

import (
	"fmt"
	"sort"

	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
	"github.com/fallen/migen/internal/register"
)

// Binding is what a name refers to during compilation.
type Binding interface {
	binding()
}

// ValueBinding is a hardware value from the enclosing scope.
type ValueBinding struct {
	Value hdl.Value
}

type RegisterBinding struct {
	Register *register.Open
}

// IntBinding is a compile-time integer: a scope constant or the current
// value of an unrolled loop variable.
type IntBinding struct {
	Value int64
}

type IntrinsicBinding struct {
	Intrinsic Intrinsic
}

type ResourceBinding struct {
	Resource ioseq.Resource
}

func (ValueBinding) binding()     {}
func (RegisterBinding) binding()  {}
func (IntBinding) binding()       {}
func (IntrinsicBinding) binding() {}
func (ResourceBinding) binding()  {}

type Intrinsic int

const (
	RegisterIntrinsic Intrinsic = iota
	BitsliceIntrinsic
)

func (i Intrinsic) String() string {
	switch i {
	case RegisterIntrinsic:
		return "Register"
	case BitsliceIntrinsic:
		return "bitslice"
	default:
		return fmt.Sprintf("Intrinsic(%d)", int(i))
	}
}

// Intrinsics maps the names under which intrinsics are pre-bound.
var Intrinsics = map[string]Intrinsic{
	"Register": RegisterIntrinsic,
	"bitslice": BitsliceIntrinsic,
}

// Env is the symbol environment of one compilation. Loop variables are
// pushed and popped around each unrolled iteration; ordinary bindings live
// until compilation ends.
type Env struct {
	names    map[string]Binding
	loopVars []string
}

func NewEnv() *Env {
	return &Env{names: make(map[string]Binding)}
}

func (e *Env) Lookup(name string) (Binding, bool) {
	b, ok := e.names[name]
	return b, ok
}

// Bind sets name, replacing an earlier ordinary binding. Active loop
// variables cannot be rebound.
func (e *Env) Bind(name string, b Binding) bool {
	if e.isLoopVar(name) {
		return false
	}
	e.names[name] = b
	return true
}

// Push binds a loop variable. It fails if name is bound in any way.
func (e *Env) Push(name string, b Binding) bool {
	if _, exists := e.names[name]; exists {
		return false
	}
	e.names[name] = b
	e.loopVars = append(e.loopVars, name)
	return true
}

// Pop removes the innermost loop variable, which must be name.
func (e *Env) Pop(name string) {
	n := len(e.loopVars)
	if n == 0 || e.loopVars[n-1] != name {
		panic(fmt.Sprintf("compiler: unbalanced loop variable %q", name))
	}
	e.loopVars = e.loopVars[:n-1]
	delete(e.names, name)
}

func (e *Env) isLoopVar(name string) bool {
	for _, v := range e.loopVars {
		if v == name {
			return true
		}
	}
	return false
}

// Names lists bound names in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.names))
	for n := range e.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// newEnv builds the initial environment: intrinsics, then the enclosing
// scope of options. A name may be bound only once.
func newEnv(opts Options) (*Env, error) {
	env := NewEnv()
	for name, in := range Intrinsics {
		env.names[name] = IntrinsicBinding{Intrinsic: in}
	}

	bind := func(name string, b Binding) error {
		if _, exists := env.names[name]; exists {
			return fmt.Errorf("scope: %q is bound more than once", name)
		}
		env.names[name] = b
		return nil
	}

	for _, name := range sortedKeys(opts.Scope) {
		if err := bind(name, IntBinding{Value: opts.Scope[name]}); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(opts.Values) {
		if err := bind(name, ValueBinding{Value: opts.Values[name]}); err != nil {
			return nil, err
		}
	}
	for _, res := range opts.Resources {
		if err := bind(res.Name(), ResourceBinding{Resource: res}); err != nil {
			return nil, err
		}
	}
	return env, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
