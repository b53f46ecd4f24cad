// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"fmt"

	"neugram.io/tern/analysis"
	"neugram.io/tern/jit"
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
	"neugram.io/tern/syntax/token"
)

func (g *Generator) declareVar(t tipe.Type) *Variable {
	return &Variable{Var: g.fs.b.DeclareVar(Repr(t)), Type: t}
}

func (g *Generator) useVar(v *Variable) jit.Value {
	return g.fs.b.UseVar(v.Var)
}

// lookup resolves name in the current scope. Variables of enclosing
// functions are only reachable by capture.
func (g *Generator) lookup(name string) Binding {
	r := g.env.Resolve(g.cur, name)
	if !r.Found {
		panic(fmt.Sprintf("codegen: %s is not bound", name))
	}
	if _, ok := r.Value.(*Variable); ok && r.Boundaries > 0 {
		panic(fmt.Sprintf("codegen: variable %s of an enclosing function was not captured", name))
	}
	return r.Value
}

// block compiles b. The bool result reports that control left the
// block through a tail call, leaving no value.
func (g *Generator) block(b *expr.Block) (jit.Value, bool) {
	saved := g.cur
	g.cur = g.env.Child(g.cur, scope.Block)
	defer func() { g.cur = saved }()

	for _, s := range b.Stmts {
		g.stmt(s.(stmt.Stmt))
	}
	if b.Result == nil {
		return jit.NoValue, false
	}
	return g.expr(b.Result)
}

func (g *Generator) stmt(s stmt.Stmt) {
	switch s := s.(type) {
	case *stmt.Var:
		if fn, ok := s.Value.(*expr.FuncLiteral); ok {
			g.letFunc(s.Name, fn)
			return
		}
		val := g.value(s.Value)
		v := g.declareVar(s.Type)
		g.fs.b.DefVar(v.Var, val)
		g.bind(s.Name, v)
	case *stmt.Extern:
		g.extern(s)
	case *stmt.Import:
		g.importStmt(s)
	case *stmt.TypeDecl:
	case *stmt.Simple:
		g.value(s.Expr)
	default:
		panic(fmt.Sprintf("codegen: unexpected statement %T", s))
	}
}

// value compiles an expression that cannot be in tail position.
func (g *Generator) value(e expr.Expr) jit.Value {
	v, tailed := g.expr(e)
	if tailed {
		panic("codegen: tail call outside tail position")
	}
	return v
}

func (g *Generator) expr(e expr.Expr) (jit.Value, bool) {
	g.depth++
	defer func() { g.depth-- }()
	if g.depth > g.opts.MaxDepth {
		g.errorf(e.Pos(), "expression nested too deeply")
	}

	b := g.fs.b
	switch e := e.(type) {
	case *expr.BasicLiteral:
		switch v := e.Value.(type) {
		case int64:
			return b.Iconst(jit.I64, v), false
		case bool:
			if v {
				return b.Iconst(jit.I8, 1), false
			}
			return b.Iconst(jit.I8, 0), false
		case string:
			data := append([]byte(v), 0)
			addr, err := g.unit.StaticData(data)
			if err != nil {
				g.errorf(e.Pos(), "string literal: %v", err)
			}
			return b.Iconst(jit.I64, addr), false
		}

	case *expr.Ident:
		switch bd := g.lookup(e.Name).(type) {
		case *Variable:
			return g.useVar(bd), false
		case *FunctionBinding:
			return g.funcValue(e, bd), false
		}

	case *expr.Group:
		return g.expr(e.Expr)

	case *expr.Block:
		return g.block(e)

	case *expr.Unary:
		x := g.value(e.Expr)
		switch e.Op {
		case token.Sub:
			return b.Ineg(x), false
		case token.Not:
			return b.Bnot(x), false
		}

	case *expr.Binary:
		return g.binary(e), false

	case *expr.Cond:
		return g.cond(e)

	case *expr.While:
		g.while(e)
		return jit.NoValue, false

	case *expr.Assign:
		val := g.value(e.Right)
		switch bd := g.lookup(e.Left.Name).(type) {
		case *Variable:
			b.DefVar(bd.Var, val)
		case *FunctionBinding:
			g.errorf(e.Pos(), "cannot assign to function %s", e.Left.Name)
		}
		return val, false

	case *expr.Selector:
		obj := g.value(e.Left)
		st := e.Left.Tipe().(*tipe.Struct)
		off, ok := FieldOffset(st, e.Right.Name)
		if !ok {
			panic("codegen: unknown field " + e.Right.Name)
		}
		r := Repr(e.Type)
		if r == jit.Void {
			return jit.NoValue, false
		}
		return b.Load(r, obj, off), false

	case *expr.StructLiteral:
		st := e.Type.(*tipe.Struct)
		_, size := Layout(st)
		addr := b.Alloc(size)
		for _, f := range e.Fields {
			val := g.value(f.Value)
			off, _ := FieldOffset(st, f.Name.Name)
			if r := Repr(f.Value.Tipe()); r != jit.Void {
				b.Store(r, val, addr, off)
			}
		}
		return addr, false

	case *expr.FuncLiteral:
		fb := g.function(e, "", analysis.AnalyzeCaptures(e, g.env, g.cur)[e], false)
		return g.funcValue(e, fb), false

	case *expr.Call:
		return g.call(e)
	}
	panic(fmt.Sprintf("codegen: unexpected expression %T", e))
}

// funcValue returns the code address of a function used as a value.
func (g *Generator) funcValue(e expr.Expr, fb *FunctionBinding) jit.Value {
	if len(fb.CaptureReprs) > 0 {
		g.errorf(e.Pos(), "function %s captures variables and cannot be used as a value", fb.Name)
	}
	return g.fs.b.FuncAddr(fb.Ref)
}

var conds = map[token.Token]jit.Cond{
	token.Equal:        jit.Eq,
	token.NotEqual:     jit.Ne,
	token.Less:         jit.Slt,
	token.LessEqual:    jit.Sle,
	token.Greater:      jit.Sgt,
	token.GreaterEqual: jit.Sge,
}

func (g *Generator) binary(e *expr.Binary) jit.Value {
	b := g.fs.b
	if e.Op == token.LogicalAnd || e.Op == token.LogicalOr {
		x := g.value(e.Left)
		rhs, merge := b.CreateBlock(), b.CreateBlock()
		res := b.AppendBlockParam(merge, jit.I8)
		if e.Op == token.LogicalAnd {
			b.Brif(x, rhs, nil, merge, []jit.Value{x})
		} else {
			b.Brif(x, merge, []jit.Value{x}, rhs, nil)
		}
		b.SwitchToBlock(rhs)
		b.SealBlock(rhs)
		y := g.value(e.Right)
		b.Jump(merge, []jit.Value{y})
		b.SwitchToBlock(merge)
		b.SealBlock(merge)
		return res
	}

	x := g.value(e.Left)
	y := g.value(e.Right)
	switch e.Op {
	case token.Add:
		return b.Iadd(x, y)
	case token.Sub:
		return b.Isub(x, y)
	case token.Mul:
		return b.Imul(x, y)
	case token.Div:
		return b.Sdiv(x, y)
	case token.Rem:
		return b.Srem(x, y)
	}
	if c, ok := conds[e.Op]; ok {
		return b.Icmp(c, x, y)
	}
	panic(fmt.Sprintf("codegen: unknown binary operator %s", e.Op))
}

// cond compiles a conditional as a diamond. A branch that tail calls
// does not reach the merge block; if neither does, the merge block
// is unreachable.
func (g *Generator) cond(e *expr.Cond) (jit.Value, bool) {
	b := g.fs.b
	c := g.value(e.Cond)
	then, els, merge := b.CreateBlock(), b.CreateBlock(), b.CreateBlock()
	r := Repr(e.Type)
	res := jit.NoValue
	if r != jit.Void {
		res = b.AppendBlockParam(merge, r)
	}
	b.Brif(c, then, nil, els, nil)
	b.SealBlock(then)
	b.SealBlock(els)

	branch := func(blk jit.Block, x expr.Expr) bool {
		b.SwitchToBlock(blk)
		v, tailed := g.expr(x)
		if tailed {
			return true
		}
		var args []jit.Value
		if r != jit.Void {
			args = []jit.Value{v}
		}
		b.Jump(merge, args)
		return false
	}
	thenTailed := branch(then, e.Then)
	elseTailed := branch(els, e.Else)

	b.SwitchToBlock(merge)
	b.SealBlock(merge)
	if thenTailed && elseTailed {
		b.Trap("unreachable")
		return jit.NoValue, true
	}
	return res, false
}

func (g *Generator) while(e *expr.While) {
	b := g.fs.b
	header, body, exit := b.CreateBlock(), b.CreateBlock(), b.CreateBlock()
	b.Jump(header, nil)

	b.SwitchToBlock(header)
	c := g.value(e.Cond)
	b.Brif(c, body, nil, exit, nil)

	b.SwitchToBlock(body)
	b.SealBlock(body)
	if _, tailed := g.block(e.Body); tailed {
		panic("codegen: tail call in loop body")
	}
	b.Jump(header, nil)
	b.SealBlock(header)

	b.SwitchToBlock(exit)
	b.SealBlock(exit)
}

func (g *Generator) args(args []expr.Expr) []jit.Value {
	var vals []jit.Value
	for _, a := range args {
		v := g.value(a)
		if Repr(a.Tipe()) != jit.Void {
			vals = append(vals, v)
		}
	}
	return vals
}

func (g *Generator) call(e *expr.Call) (jit.Value, bool) {
	b := g.fs.b
	var fb *FunctionBinding
	switch callee := expr.Unwrap(e.Func).(type) {
	case *expr.Ident:
		fb, _ = g.lookup(callee.Name).(*FunctionBinding)
	case *expr.FuncLiteral:
		fb = g.function(callee, "", analysis.AnalyzeCaptures(callee, g.env, g.cur)[callee], false)
	}

	if fb != nil && fb.Ref == g.fs.self && g.fs.tail[e] {
		b.Jump(g.fs.loop, g.args(e.Args))
		return jit.NoValue, true
	}
	if fb != nil {
		args := append(append([]jit.Value(nil), fb.Captures...), g.args(e.Args)...)
		return b.Call(fb.Ref, fb.Sig, args), false
	}

	addr := g.value(e.Func)
	ft := e.Func.Tipe().(*tipe.Func)
	return b.CallIndirect(Signature(ft), addr, g.args(e.Args)), false
}
