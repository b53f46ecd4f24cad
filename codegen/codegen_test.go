// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"neugram.io/tern/extern"
	"neugram.io/tern/jit"
	"neugram.io/tern/parser"
	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/typecheck"
)

func checked(t *testing.T, source string, opts typecheck.Options) *typecheck.Result {
	t.Helper()
	f, err := parser.ParseFile("test.tn", []byte(source))
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	if opts.Externs == nil {
		opts.Externs = extern.Builtins()
	}
	res, errs := typecheck.Check(f, opts)
	if errs != nil {
		t.Fatalf("check %q: %v", source, errs)
	}
	return res
}

// compile compiles source as a program into a fresh unit.
func compile(t *testing.T, source string, stdout *bytes.Buffer) (*jit.Unit, *Program, error) {
	t.Helper()
	res := checked(t, source, typecheck.Options{})
	unit := jit.NewUnit(jit.Options{Stdout: stdout})
	g := New(unit, Options{Externs: extern.Builtins()})
	p, err := g.CompileProgram(res.File)
	return unit, p, err
}

func run(t *testing.T, source string) (int64, error) {
	t.Helper()
	unit, p, err := compile(t, source, nil)
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	return unit.Call(p.Addr)
}

var programTests = []struct {
	source string
	want   int64
}{
	{"1 + 2 * 3", 7},
	{"let x = 5; x = x + 1; x", 6},
	{"let f = fn(x ~ int) -> int { x * x }; f(7)", 49},
	{"let fact = fn(n ~ int) -> int { 1 if n < 2 else n * fact(n - 1) }; fact(5)", 120},
	{"let f = fn(n ~ int, acc ~ int) -> int { acc if n < 1 else f(n - 1, acc + n) }; f(100000, 0)", 5000050000},

	{"-7 / 2", -3},
	{"-7 % 2", -1},
	{"let b = { let t = 4; t * t }; b + 1", 17},
	{"let n = 5; 1 if n < 3 else 2 if n < 6 else 3", 2},
	{"let i = 0; let s = 0; while i < 10 { i = i + 1; s = s + i; }; s", 55},
	{"true && !false", 1},
	{"1 == 2 || 3 != 3", 0},
	{"let boom = fn() -> bool { 1 / 0 == 0 }; false && boom()", 0},
	{"let boom = fn() -> bool { 1 / 0 == 0 }; 1 if true || boom() else 2", 1},

	// Captures.
	{"let x = 10; let add = fn(y ~ int) -> int { x + y }; add(5)", 15},
	{"let x = 10; let add = fn(y ~ int) { x + y }; x = 20; add(5)", 15},
	{"let k = 4; let g = fn(x ~ int) -> int { x + k }; let h = fn(y ~ int) -> int { g(y) * 2 }; h(1)", 10},
	{"let a = 3; let outer = fn() -> int { let mid = fn() -> int { let inner = fn() -> int { a * 2 }; inner() }; mid() }; outer()", 6},
	{"let base = 1; let fact = fn(n ~ int) -> int { base if n < 2 else n * fact(n - 1) }; fact(5)", 120},
	{"let step = 2; let count = fn(n ~ int, acc ~ int) -> int { acc if n < 1 else count(n - step, acc + 1) }; count(100000, 0)", 50000},

	// Function values.
	{"let inc = fn(x ~ int) -> int { x + 1 }; let apply = fn(f ~ fn(int) -> int, x ~ int) -> int { f(x) }; apply(inc, 41)", 42},
	{"let apply = fn(f ~ fn(int) -> int, x ~ int) -> int { f(x) }; apply(fn(y ~ int) -> int { y * 3 }, 5)", 15},
	{"let twice = fn(x ~ int) -> int { x * 2 }; let g = twice; g(21)", 42},
	{"(fn(x ~ int) -> int { x - 1 })(8)", 7},

	// Structs and strings.
	{"type P = struct { x ~ int, ok ~ bool, y ~ int }; let p = P { x: 3, ok: true, y: 4 }; p.x * p.y", 12},
	{"type P = struct { x ~ int, ok ~ bool, y ~ int }; let p = P { y: 4, ok: true, x: 3 }; p.ok", 1},
	{"type In = struct { v ~ int }; type Out = struct { in ~ In }; let o = Out { in: In { v: 9 } }; o.in.v", 9},
	{"type P = struct { x ~ int }; let mk = fn(v ~ int) { P { x: v } }; mk(3).x + mk(4).x", 7},
	{`extern fn strlen(s ~ str) -> int; strlen("hello")`, 5},
	{`extern fn min(a ~ int, b ~ int) -> int; extern fn max(a ~ int, b ~ int) -> int; min(3, 8) * max(3, 8)`, 24},
}

func TestPrograms(t *testing.T) {
	for _, test := range programTests {
		got, err := run(t, test.source)
		if err != nil {
			t.Errorf("%s: %v", test.source, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s = %d, want %d", test.source, got, test.want)
		}
	}
}

func TestTailLoop(t *testing.T) {
	res := checked(t, "let f = fn(n ~ int, acc ~ int) -> int { acc if n < 1 else f(n - 1, acc + n) };", typecheck.Options{})
	var lit *expr.FuncLiteral
	syntax.Walk(res.File.Body(), func(c *syntax.Cursor) bool {
		if fn, ok := c.Node.(*expr.FuncLiteral); ok && fn.Name == "f" {
			lit = fn
		}
		return true
	}, nil)
	if lit == nil {
		t.Fatal("no function literal f")
	}

	unit := jit.NewUnit(jit.Options{})
	fb, err := New(unit, Options{}).CompileFunction("f", lit)
	if err != nil {
		t.Fatal(err)
	}
	body := unit.Body(fb.Ref)
	if n := body.Count(jit.OpCall); n != 0 {
		t.Errorf("tail recursive f makes %d calls:\n%s", n, body)
	}
	if err := unit.Finalize(); err != nil {
		t.Fatal(err)
	}
	addr, err := unit.Address(fb.Ref)
	if err != nil {
		t.Fatal(err)
	}
	got, err := unit.Call(addr, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5050 {
		t.Errorf("f(100, 0) = %d, want 5050", got)
	}
}

func TestOutput(t *testing.T) {
	const source = `
extern fn puts(s ~ str) -> unit;
extern fn print_int(x ~ int) -> unit;
extern fn print_bool(b ~ bool) -> unit;
let greet = fn(name ~ str) { puts(name) };
let u = greet("hello, tern");
print_int(6 * 7);
print_bool(1 < 2);
`
	var out bytes.Buffer
	unit, p, err := compile(t, source, &out)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := unit.Call(p.Addr); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "hello, tern\n42\ntrue\n"; got != want {
		t.Errorf("output %q, want %q", got, want)
	}
}

func TestRuntimeErrors(t *testing.T) {
	_, err := run(t, "let f = fn(n ~ int) -> int { 0 if n < 1 else 1 + f(n - 1) }; f(100000)")
	if errors.Cause(err) != jit.ErrStackExhausted {
		t.Errorf("deep recursion: err = %v, want %v", err, jit.ErrStackExhausted)
	}

	_, err = run(t, "let z = 0; 1 / z")
	if err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("1 / 0: err = %v, want division by zero", err)
	}
}

var compileErrorTests = []struct {
	source string
	want   string
}{
	{"let k = 1; let g = fn(x ~ int) -> int { x + k }; let h = g; 0", "cannot be used as a value"},
	{"let f = fn() -> int { 1 }; f = fn() -> int { 2 }; 0", "cannot assign to function f"},
}

func TestCompileErrors(t *testing.T) {
	for _, test := range compileErrorTests {
		_, _, err := compile(t, test.source, nil)
		if err == nil {
			t.Errorf("%s: compiled without error", test.source)
			continue
		}
		if _, ok := err.(*Error); !ok {
			t.Errorf("%s: error %T, want *Error", test.source, err)
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: error %q does not contain %q", test.source, err, test.want)
		}
	}
}

func TestLibrary(t *testing.T) {
	const lib = `
extern fn abs(x ~ int) -> int;
type Pair = struct { a ~ int, b ~ int };
let square = fn(x ~ int) -> int { x * x };
let dist = fn(p ~ Pair) -> int { abs(p.a - p.b) };
let sumsq = fn(n ~ int, acc ~ int) -> int { acc if n < 1 else sumsq(n - 1, acc + square(n)) };
`
	libRes := checked(t, lib, typecheck.Options{Path: "lib.tn"})
	unit := jit.NewUnit(jit.Options{})
	g := New(unit, Options{Externs: extern.Builtins()})
	x, err := g.CompileLibrary(libRes.File)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"abs", "square", "dist", "sumsq"} {
		if x[name] == nil {
			t.Errorf("library does not export %s", name)
		}
	}

	const main = `import "lib.tn"; let p = Pair { a: 2, b: 9 }; square(dist(p)) + sumsq(3, 0)`
	mainRes := checked(t, main, typecheck.Options{
		Externs: extern.Builtins(),
		Imports: map[string]*typecheck.Exports{"lib.tn": libRes.Exports},
	})
	g = New(unit, Options{Externs: extern.Builtins(), Imports: map[string]Exports{"lib.tn": x}})
	p, err := g.CompileProgram(mainRes.File)
	if err != nil {
		t.Fatal(err)
	}
	got, err := unit.Call(p.Addr)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(49 + 14); got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestLibraryTopLevel(t *testing.T) {
	sources := []string{
		"let x = 1;",
		"let f = fn() -> int { 1 }; f();",
		"let f = fn() -> int { 1 }; f()",
	}
	for _, source := range sources {
		res := checked(t, source, typecheck.Options{})
		g := New(jit.NewUnit(jit.Options{}), Options{})
		_, err := g.CompileLibrary(res.File)
		if err == nil || !strings.Contains(err.Error(), "expected a function declaration at top level") {
			t.Errorf("%s: err = %v, want a top-level declaration error", source, err)
		}
	}
}

func TestNestingTooDeep(t *testing.T) {
	source := strings.Repeat("(", 30) + "1" + strings.Repeat(")", 30)
	res := checked(t, source, typecheck.Options{})
	g := New(jit.NewUnit(jit.Options{}), Options{MaxDepth: 10})
	_, err := g.CompileProgram(res.File)
	if err == nil || !strings.Contains(err.Error(), "nested too deeply") {
		t.Errorf("err = %v, want nesting error", err)
	}
}

func TestTailLoopCaptures(t *testing.T) {
	const source = "let step = 2; let count = fn(n ~ int, acc ~ int) -> int { acc if n < 1 else count(n - step, acc + 1) }; count(10, 0)"
	unit, p, err := compile(t, source, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer unit.Close()
	ref, ok := unit.Lookup("count")
	if !ok {
		t.Fatal("count not declared")
	}
	f := unit.Body(ref)
	// The capture is read from the entry block; only the declared
	// parameters are carried around the loop.
	if got := len(f.Params(1)); got != 2 {
		t.Errorf("loop block has %d parameters, want 2:\n%s", got, f)
	}
	res, err := unit.Call(p.Addr)
	if err != nil {
		t.Fatal(err)
	}
	if res != 5 {
		t.Errorf("count(10, 0) = %d, want 5", res)
	}
}
