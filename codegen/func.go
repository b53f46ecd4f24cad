// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"neugram.io/tern/analysis"
	"neugram.io/tern/jit"
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax/expr"
)

// funcState is the function whose body is being compiled.
type funcState struct {
	b    *jit.Builder
	fn   *expr.FuncLiteral
	self jit.FuncRef

	// tail holds the self calls in tail position. They jump to loop
	// instead of calling.
	tail analysis.TailCalls
	loop jit.Block
}

// slot is a captured name and the leading parameters holding it.
type slot struct {
	name  string
	reprs []jit.Repr
	fn    *FunctionBinding // nil for a variable
	v     *Variable
}

// letFunc compiles `let name = fn`. A function with a declared result
// is bound before its body is compiled and may call itself.
func (g *Generator) letFunc(name string, fn *expr.FuncLiteral) *FunctionBinding {
	self := fn.Result != nil
	caps := analysis.AnalyzeCaptures(fn, g.env, g.cur)[fn]
	fb := g.function(fn, name, caps, self)
	if !self {
		g.bind(name, fb)
	}
	return fb
}

// slots resolves captured names in the current scope. A captured
// function contributes the values it captured itself.
func (g *Generator) slots(fn *expr.FuncLiteral, caps []analysis.Capture, self bool) []slot {
	var slots []slot
	for _, c := range caps {
		if self && c.Name == fn.Name {
			continue
		}
		r := g.env.Resolve(g.cur, c.Name)
		if !r.Found {
			panic("codegen: unresolved capture " + c.Name)
		}
		switch b := r.Value.(type) {
		case *FunctionBinding:
			slots = append(slots, slot{name: c.Name, reprs: b.CaptureReprs, fn: b})
		case *Variable:
			s := slot{name: c.Name, v: b}
			if r := Repr(b.Type); r != jit.Void {
				s.reprs = []jit.Repr{r}
			}
			slots = append(slots, s)
		}
	}
	return slots
}

// captured returns the current values of the captured slots.
func (g *Generator) captured(slots []slot) []jit.Value {
	var vals []jit.Value
	for _, s := range slots {
		switch {
		case s.fn != nil:
			vals = append(vals, s.fn.Captures...)
		case len(s.reprs) > 0:
			vals = append(vals, g.useVar(s.v))
		}
	}
	return vals
}

// function compiles fn under name. It returns a binding valid in the
// scope fn is defined in.
func (g *Generator) function(fn *expr.FuncLiteral, name string, caps []analysis.Capture, self bool) *FunctionBinding {
	ft := fn.FuncType()
	if ft == nil {
		panic("codegen: function literal not type checked")
	}
	slots := g.slots(fn, caps, self)

	var sig jit.Signature
	var captureReprs []jit.Repr
	for _, s := range slots {
		captureReprs = append(captureReprs, s.reprs...)
	}
	sig.Params = append(sig.Params, captureReprs...)
	sig.Params = append(sig.Params, Signature(ft).Params...)
	sig.Result = Repr(ft.Result)

	ref := g.unit.Declare(name, sig)
	outer := &FunctionBinding{
		Name:         name,
		Ref:          ref,
		Sig:          sig,
		Type:         ft,
		CaptureReprs: captureReprs,
	}
	if g.fs != nil {
		outer.Captures = g.captured(slots)
	}
	if self {
		g.bind(name, outer)
	}

	savedFS, savedCur := g.fs, g.cur
	defer func() { g.fs, g.cur = savedFS, savedCur }()

	f := jit.NewFunction(name, sig)
	b := jit.NewBuilder(f)
	g.fs = &funcState{b: b, fn: fn, self: ref}
	g.cur = g.env.Child(g.cur, scope.Function)

	entry := b.CreateBlock()
	params := b.AppendSignatureParams(entry)
	b.SwitchToBlock(entry)
	b.SealBlock(entry)

	// Captured values come first.
	n := 0
	for _, s := range slots {
		vals := params[n : n+len(s.reprs)]
		n += len(s.reprs)
		if s.fn != nil {
			inner := *s.fn
			inner.Captures = vals
			g.bind(s.name, &inner)
			continue
		}
		v := g.declareVar(s.v.Type)
		if len(vals) > 0 {
			b.DefVar(v.Var, vals[0])
		}
		g.bind(s.name, v)
	}
	if self {
		inner := *outer
		inner.Captures = params[:n]
		g.bind(name, &inner)
	}
	declared := params[n:]

	if self {
		g.fs.tail = analysis.AnalyzeTailCalls(fn)
	}
	if len(g.fs.tail) > 0 {
		// The loop block carries the declared parameters. A tail
		// call jumps back to it with new arguments.
		loop := b.CreateBlock()
		var loopParams []jit.Value
		for _, r := range Signature(ft).Params {
			loopParams = append(loopParams, b.AppendBlockParam(loop, r))
		}
		b.Jump(loop, declared)
		b.SwitchToBlock(loop)
		g.fs.loop = loop
		g.bindParams(fn, loopParams)
		res, tailed := g.block(fn.Body)
		if !tailed {
			b.Return(res)
		}
		b.SealBlock(loop)
	} else {
		g.bindParams(fn, declared)
		res, tailed := g.block(fn.Body)
		if !tailed {
			b.Return(res)
		}
	}
	b.SealAllBlocks()

	if err := g.unit.Define(ref, f); err != nil {
		panic("codegen: " + err.Error() + "\n" + f.String())
	}
	g.log.Debug("compiled function", "name", name, "captures", len(slots), "tail_calls", len(g.fs.tail))
	return outer
}

func (g *Generator) bindParams(fn *expr.FuncLiteral, vals []jit.Value) {
	i := 0
	for _, p := range fn.Params {
		v := g.declareVar(p.Type)
		if Repr(p.Type) != jit.Void {
			g.fs.b.DefVar(v.Var, vals[i])
			i++
		}
		g.bind(p.Name, v)
	}
}
