// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"neugram.io/tern/extern"
)

var (
	unary  = Signature{Params: []Repr{I64}, Result: I64}
	binary = Signature{Params: []Repr{I64, I64}, Result: I64}
	thunk  = Signature{Result: I64}
)

// define builds a function with body, defines it under ref and
// returns it.
func define(t *testing.T, u *Unit, ref FuncRef, name string, sig Signature, body func(b *Builder, params []Value)) *Function {
	t.Helper()
	f := NewFunction(name, sig)
	b := NewBuilder(f)
	entry := b.CreateBlock()
	params := b.AppendSignatureParams(entry)
	b.SwitchToBlock(entry)
	b.SealBlock(entry)
	body(b, params)
	b.SealAllBlocks()
	if err := u.Define(ref, f); err != nil {
		t.Fatalf("define %s: %v\n%s", name, err, f)
	}
	return f
}

func call(t *testing.T, u *Unit, ref FuncRef, args ...int64) int64 {
	t.Helper()
	if err := u.Finalize(); err != nil {
		t.Fatal(err)
	}
	addr, err := u.Address(ref)
	if err != nil {
		t.Fatal(err)
	}
	res, err := u.Call(addr, args...)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestAdd(t *testing.T) {
	u := NewUnit(Options{})
	ref := u.Declare("add", binary)
	define(t, u, ref, "add", binary, func(b *Builder, p []Value) {
		b.Return(b.Iadd(p[0], p[1]))
	})
	if got := call(t, u, ref, 3, 4); got != 7 {
		t.Errorf("add(3, 4) = %d, want 7", got)
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		op   func(b *Builder, x, y Value) Value
		x, y int64
		want int64
	}{
		{(*Builder).Isub, 3, 5, -2},
		{(*Builder).Imul, -3, 5, -15},
		{(*Builder).Sdiv, -7, 2, -3},
		{(*Builder).Srem, -7, 2, -1},
		{func(b *Builder, x, y Value) Value { return b.Ineg(x) }, 9, 0, -9},
		{func(b *Builder, x, y Value) Value { return b.Icmp(Sle, x, y) }, 2, 2, 1},
		{func(b *Builder, x, y Value) Value { return b.Icmp(Sgt, x, y) }, 2, 2, 0},
		{func(b *Builder, x, y Value) Value { return b.Bnot(b.Icmp(Ne, x, y)) }, 2, 2, 1},
	}
	for i, test := range tests {
		u := NewUnit(Options{})
		ref := u.Declare("op", binary)
		define(t, u, ref, "op", binary, func(b *Builder, p []Value) {
			v := test.op(b, p[0], p[1])
			if b.Func().values[v] == I8 {
				// Widen through a branch to return an I64.
				yes, no, done := b.CreateBlock(), b.CreateBlock(), b.CreateBlock()
				res := b.AppendBlockParam(done, I64)
				b.Brif(v, yes, nil, no, nil)
				b.SwitchToBlock(yes)
				b.Jump(done, []Value{b.Iconst(I64, 1)})
				b.SwitchToBlock(no)
				b.Jump(done, []Value{b.Iconst(I64, 0)})
				b.SwitchToBlock(done)
				v = res
			}
			b.Return(v)
		})
		if got := call(t, u, ref, test.x, test.y); got != test.want {
			t.Errorf("%d: got %d, want %d", i, got, test.want)
		}
	}
}

func sumLoop(b *Builder, p []Value) {
	header, body, exit := b.CreateBlock(), b.CreateBlock(), b.CreateBlock()
	i, acc := b.DeclareVar(I64), b.DeclareVar(I64)
	b.DefVar(i, b.Iconst(I64, 1))
	b.DefVar(acc, b.Iconst(I64, 0))
	b.Jump(header, nil)

	b.SwitchToBlock(header)
	b.Brif(b.Icmp(Sle, b.UseVar(i), p[0]), body, nil, exit, nil)

	b.SwitchToBlock(body)
	b.SealBlock(body)
	b.DefVar(acc, b.Iadd(b.UseVar(acc), b.UseVar(i)))
	b.DefVar(i, b.Iadd(b.UseVar(i), b.Iconst(I64, 1)))
	b.Jump(header, nil)
	b.SealBlock(header)

	b.SwitchToBlock(exit)
	b.SealBlock(exit)
	b.Return(b.UseVar(acc))
}

func TestVariables(t *testing.T) {
	u := NewUnit(Options{})
	ref := u.Declare("sum", unary)
	f := define(t, u, ref, "sum", unary, sumLoop)
	if got := len(f.blocks[1].params); got != 2 {
		t.Errorf("loop header has %d parameters, want 2:\n%s", got, f)
	}
	if got := call(t, u, ref, 100000); got != 5000050000 {
		t.Errorf("sum(100000) = %d, want 5000050000", got)
	}
}

func defineFact(t *testing.T, u *Unit) FuncRef {
	ref := u.Declare("fact", unary)
	define(t, u, ref, "fact", unary, func(b *Builder, p []Value) {
		base, rec := b.CreateBlock(), b.CreateBlock()
		b.Brif(b.Icmp(Slt, p[0], b.Iconst(I64, 2)), base, nil, rec, nil)
		b.SwitchToBlock(base)
		b.Return(b.Iconst(I64, 1))
		b.SwitchToBlock(rec)
		r := b.Call(ref, unary, []Value{b.Isub(p[0], b.Iconst(I64, 1))})
		b.Return(b.Imul(p[0], r))
	})
	return ref
}

func TestRecursion(t *testing.T) {
	u := NewUnit(Options{})
	ref := defineFact(t, u)
	if got := call(t, u, ref, 5); got != 120 {
		t.Errorf("fact(5) = %d, want 120", got)
	}
}

func TestStackExhausted(t *testing.T) {
	u := NewUnit(Options{MaxCallDepth: 100})
	ref := defineFact(t, u)
	if err := u.Finalize(); err != nil {
		t.Fatal(err)
	}
	addr, _ := u.Address(ref)
	if _, err := u.Call(addr, 99); err != nil {
		t.Errorf("fact(99): %v", err)
	}
	_, err := u.Call(addr, 1000)
	if errors.Cause(err) != ErrStackExhausted {
		t.Errorf("fact(1000): err = %v, want %v", err, ErrStackExhausted)
	}
}

func TestCallIndirect(t *testing.T) {
	u := NewUnit(Options{})
	sq := u.Declare("square", unary)
	define(t, u, sq, "square", unary, func(b *Builder, p []Value) {
		b.Return(b.Imul(p[0], p[0]))
	})
	main := u.Declare("main", thunk)
	define(t, u, main, "main", thunk, func(b *Builder, p []Value) {
		addr := b.FuncAddr(sq)
		b.Return(b.CallIndirect(unary, addr, []Value{b.Iconst(I64, 7)}))
	})
	if got := call(t, u, main); got != 49 {
		t.Errorf("got %d, want 49", got)
	}
}

func TestExtern(t *testing.T) {
	out := new(bytes.Buffer)
	u := NewUnit(Options{Stdout: out})
	printInt, _ := extern.Builtins().Lookup("print_int")
	pr := u.DeclareExtern("print_int", Signature{Params: []Repr{I64}}, printInt.Impl)
	main := u.Declare("main", thunk)
	define(t, u, main, "main", thunk, func(b *Builder, p []Value) {
		if v := b.Call(pr, Signature{Params: []Repr{I64}}, []Value{b.Iconst(I64, 42)}); v != NoValue {
			t.Errorf("void call produced %s", v)
		}
		b.Return(b.Iconst(I64, 0))
	})
	call(t, u, main)
	if got := out.String(); got != "42\n" {
		t.Errorf("output %q, want %q", got, "42\n")
	}
}

func TestMemory(t *testing.T) {
	u := NewUnit(Options{})
	main := u.Declare("main", thunk)
	define(t, u, main, "main", thunk, func(b *Builder, p []Value) {
		obj := b.Alloc(9)
		b.Store(I64, b.Iconst(I64, 5), obj, 0)
		b.Store(I8, b.Iconst(I8, 1), obj, 8)
		flag := b.Load(I8, obj, 8)
		yes, no := b.CreateBlock(), b.CreateBlock()
		b.Brif(flag, yes, nil, no, nil)
		b.SwitchToBlock(yes)
		b.Return(b.Load(I64, obj, 0))
		b.SwitchToBlock(no)
		b.Trap("flag not stored")
	})
	if got := call(t, u, main); got != 5 {
		t.Errorf("got %d, want 5", got)
	}

	addr, err := u.StaticData([]byte("tern\x00"))
	if err != nil {
		t.Fatal(err)
	}
	if s, err := u.ReadString(addr); err != nil || s != "tern" {
		t.Errorf("ReadString = %q, %v; want %q", s, err, "tern")
	}
	if _, err := u.Memory().Load(I64, 0); err == nil {
		t.Error("load of address 0 succeeded")
	}
}

func TestRuntimeErrors(t *testing.T) {
	u := NewUnit(Options{})
	div := u.Declare("div", binary)
	define(t, u, div, "div", binary, func(b *Builder, p []Value) {
		b.Return(b.Sdiv(p[0], p[1]))
	})
	trap := u.Declare("trap", thunk)
	define(t, u, trap, "trap", thunk, func(b *Builder, p []Value) {
		b.Trap("unreachable")
	})
	if err := u.Finalize(); err != nil {
		t.Fatal(err)
	}
	addr, _ := u.Address(div)
	if _, err := u.Call(addr, 1, 0); err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("1 / 0: err = %v", err)
	}
	addr, _ = u.Address(trap)
	if _, err := u.Call(addr); err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("trap: err = %v", err)
	}
	if _, err := u.Call(12345); err == nil {
		t.Error("call of invalid address succeeded")
	}
}

func TestDefineErrors(t *testing.T) {
	u := NewUnit(Options{})

	ref := u.Declare("f", unary)
	f := NewFunction("f", unary)
	b := NewBuilder(f)
	entry := b.CreateBlock()
	b.AppendSignatureParams(entry)
	b.SealBlock(entry)
	if err := u.Define(ref, f); err == nil || !strings.Contains(err.Error(), "terminator") {
		t.Errorf("unterminated block: err = %v", err)
	}

	g := NewFunction("g", binary)
	if err := u.Define(ref, g); err == nil || !strings.Contains(err.Error(), "signature") {
		t.Errorf("signature mismatch: err = %v", err)
	}

	if err := u.Finalize(); err == nil {
		t.Error("finalize with an undefined function succeeded")
	}
}

func TestFuncRefUnique(t *testing.T) {
	u1, u2 := NewUnit(Options{}), NewUnit(Options{})
	seen := make(map[FuncRef]bool)
	for i := 0; i < 100; i++ {
		for _, u := range []*Unit{u1, u2} {
			ref := u.Declare("f", thunk)
			if seen[ref] {
				t.Fatalf("duplicate handle %s", ref)
			}
			seen[ref] = true
		}
	}
}

func TestString(t *testing.T) {
	u := NewUnit(Options{})
	ref := u.Declare("sum", unary)
	f := define(t, u, ref, "sum", unary, sumLoop)
	s := f.String()
	for _, want := range []string{"function sum(i64) -> i64", "icmp sle", "brif", "jump block1("} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in:\n%s", want, s)
		}
	}
}

func TestNativeAddress(t *testing.T) {
	u := NewUnit(Options{})
	defer u.Close()
	sq := u.Declare("square", unary)
	define(t, u, sq, "square", unary, func(b *Builder, p []Value) {
		b.Return(b.Imul(p[0], p[0]))
	})
	apply := u.Declare("apply", binary)
	define(t, u, apply, "apply", binary, func(b *Builder, p []Value) {
		b.Return(b.CallIndirect(unary, p[0], []Value{p[1]}))
	})
	if err := u.Finalize(); err != nil {
		t.Fatal(err)
	}
	sqAddr, _ := u.Address(sq)
	applyAddr, _ := u.Address(apply)
	if sqAddr == 0 || sqAddr == applyAddr {
		t.Fatalf("addresses %#x and %#x", sqAddr, applyAddr)
	}
	if _, err := u.Memory().Load(I8, sqAddr); err == nil {
		t.Errorf("code address %#x is inside unit memory", sqAddr)
	}
	// Generated code calls the address the host was given.
	res, err := u.Call(applyAddr, sqAddr, 12)
	if err != nil {
		t.Fatal(err)
	}
	if res != 144 {
		t.Errorf("apply(square, 12) = %d, want 144", res)
	}
}

func TestIncrementalFinalize(t *testing.T) {
	u := NewUnit(Options{})
	defer u.Close()
	fact := defineFact(t, u)
	if err := u.Finalize(); err != nil {
		t.Fatal(err)
	}
	factAddr, _ := u.Address(fact)

	main := u.Declare("main", thunk)
	define(t, u, main, "main", thunk, func(b *Builder, p []Value) {
		x := b.Call(fact, unary, []Value{b.Iconst(I64, 6)})
		y := b.CallIndirect(unary, b.FuncAddr(fact), []Value{b.Iconst(I64, 3)})
		b.Return(b.Iadd(x, y))
	})
	if got := call(t, u, main); got != 726 {
		t.Errorf("main() = %d, want 726", got)
	}
	if addr, _ := u.Address(fact); addr != factAddr {
		t.Errorf("fact moved from %#x to %#x", factAddr, addr)
	}
}

func TestHostError(t *testing.T) {
	u := NewUnit(Options{})
	defer u.Close()
	fail := u.DeclareExtern("fail", unary, func(h extern.Host, args []int64) (int64, error) {
		if args[0] > 2 {
			return 0, errors.Errorf("bad argument %d", args[0])
		}
		return args[0] * 10, nil
	})
	main := u.Declare("main", unary)
	define(t, u, main, "main", unary, func(b *Builder, p []Value) {
		b.Return(b.Call(fail, unary, []Value{p[0]}))
	})
	if got := call(t, u, main, 2); got != 20 {
		t.Errorf("main(2) = %d, want 20", got)
	}
	addr, _ := u.Address(main)
	_, err := u.Call(addr, 3)
	if err == nil || !strings.Contains(err.Error(), "fail: bad argument 3") {
		t.Errorf("main(3): err = %v", err)
	}
	if got, err := u.Call(addr, 1); err != nil || got != 10 {
		t.Errorf("main(1) after a failed call = %d, %v", got, err)
	}
}

func TestDivideOverflow(t *testing.T) {
	const minInt = -1 << 63
	tests := []struct {
		op   func(b *Builder, x, y Value) Value
		want int64
	}{
		{(*Builder).Sdiv, minInt},
		{(*Builder).Srem, 0},
	}
	for i, test := range tests {
		u := NewUnit(Options{})
		ref := u.Declare("op", binary)
		define(t, u, ref, "op", binary, func(b *Builder, p []Value) {
			b.Return(test.op(b, p[0], p[1]))
		})
		if got := call(t, u, ref, minInt, -1); got != test.want {
			t.Errorf("%d: got %d, want %d", i, got, test.want)
		}
		u.Close()
	}
}

func TestClose(t *testing.T) {
	u := NewUnit(Options{})
	ref := defineFact(t, u)
	addr := call(t, u, ref, 3)
	if addr != 6 {
		t.Fatalf("fact(3) = %d, want 6", addr)
	}
	code, _ := u.Address(ref)
	if err := u.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := u.Call(code, 3); err == nil {
		t.Error("call into a closed unit succeeded")
	}
	if _, err := u.StaticData([]byte("x\x00")); err == nil {
		t.Error("allocation in a closed unit succeeded")
	}
	if err := u.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLoopInvariantVariable(t *testing.T) {
	u := NewUnit(Options{})
	defer u.Close()
	ref := u.Declare("count", unary)
	f := define(t, u, ref, "count", unary, func(b *Builder, p []Value) {
		loop, exit := b.CreateBlock(), b.CreateBlock()
		n, step := b.DeclareVar(I64), b.DeclareVar(I64)
		b.DefVar(n, p[0])
		b.DefVar(step, b.Iconst(I64, 3))
		b.Jump(loop, nil)

		b.SwitchToBlock(loop)
		b.DefVar(n, b.Isub(b.UseVar(n), b.UseVar(step)))
		b.Brif(b.Icmp(Sgt, b.UseVar(n), b.Iconst(I64, 0)), loop, nil, exit, nil)
		b.SealBlock(loop)

		b.SwitchToBlock(exit)
		b.SealBlock(exit)
		b.Return(b.UseVar(n))
	})
	// step is defined once, so only n is carried around the loop.
	if got := len(f.Params(1)); got != 1 {
		t.Errorf("loop has %d parameters, want 1:\n%s", got, f)
	}
	if got := call(t, u, ref, 10); got != -2 {
		t.Errorf("count(10) = %d, want -2", got)
	}
}
