package compiler_test

import (
	"reflect"
	"testing"

	"github.com/fallen/migen/internal/compiler"
)

func TestEnvLoopVariables(t *testing.T) {
	env := compiler.NewEnv()
	if !env.Bind("a", compiler.IntBinding{Value: 1}) {
		t.Fatalf("plain bind failed")
	}
	if env.Push("a", compiler.IntBinding{Value: 2}) {
		t.Fatalf("push over an existing binding should fail")
	}
	if !env.Push("i", compiler.IntBinding{Value: 0}) {
		t.Fatalf("push of a fresh name failed")
	}
	if env.Bind("i", compiler.IntBinding{Value: 5}) {
		t.Fatalf("bind over a loop variable should fail")
	}
	if !env.Bind("a", compiler.IntBinding{Value: 3}) {
		t.Fatalf("rebinding a plain name should succeed")
	}

	if got := env.Names(); !reflect.DeepEqual(got, []string{"a", "i"}) {
		t.Fatalf("unexpected names %v", got)
	}

	env.Pop("i")
	if _, ok := env.Lookup("i"); ok {
		t.Fatalf("pop should unbind the loop variable")
	}
	b, _ := env.Lookup("a")
	if b.(compiler.IntBinding).Value != 3 {
		t.Fatalf("unexpected binding %v", b)
	}
}

func TestEnvUnbalancedPopPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	env := compiler.NewEnv()
	env.Push("i", compiler.IntBinding{})
	env.Push("j", compiler.IntBinding{})
	env.Pop("i")
}
