// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typecheck

import (
	"neugram.io/tern/diag"
	"neugram.io/tern/format"
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
	"neugram.io/tern/syntax/token"
)

func (c *Checker) expr(e expr.Expr) expr.Expr {
	chained := c.chainNext
	c.chainNext = false

	if c.depth >= c.opts.MaxDepth {
		if !c.reportedDeep {
			c.reportedDeep = true
			c.report(diag.New(diag.NestingTooDeep, "expression nested more than %d levels deep", c.opts.MaxDepth).
				WithPrimary(e.Span(), "nesting limit reached here"))
		}
		return &expr.Bad{Position: e.Span(), Type: tipe.Never}
	}
	c.depth++
	defer func() { c.depth-- }()

	switch e := e.(type) {
	case *expr.Bad:
		return &expr.Bad{Position: e.Position, Error: e.Error, Type: tipe.Never}

	case *expr.BasicLiteral:
		res := &expr.BasicLiteral{Position: e.Position, Value: e.Value}
		switch e.Value.(type) {
		case int64:
			res.Type = tipe.Integer
		case bool:
			res.Type = tipe.Boolean
		case string:
			res.Type = tipe.String
		default:
			panic(c.internalf("unknown literal %T", e.Value))
		}
		return res

	case *expr.Ident:
		return c.ident(e)

	case *expr.Group:
		x := c.expr(e.Expr)
		return &expr.Group{Position: e.Position, Expr: x, Type: x.Tipe()}

	case *expr.Unary:
		x := c.expr(e.Expr)
		res := &expr.Unary{Position: e.Position, Op: e.Op, Expr: x}
		switch e.Op {
		case token.Sub:
			res.Type = tipe.Integer
		case token.Not:
			res.Type = tipe.Boolean
		default:
			panic(c.internalf("unknown unary operator %s", e.Op))
		}
		if !tipe.Compatible(res.Type, x.Tipe()) {
			c.invalidOperand(e.Op, x)
		}
		return res

	case *expr.Binary:
		return c.binary(e)

	case *expr.Block:
		return c.block(e)

	case *expr.Cond:
		return c.cond(e, chained)

	case *expr.FuncLiteral:
		return c.funcLiteral(e)

	case *expr.Call:
		return c.call(e)

	case *expr.Selector:
		return c.selector(e)

	case *expr.Assign:
		return c.assign(e)

	case *expr.While:
		cond := c.expr(e.Cond)
		c.expectType(cond, tipe.Boolean, "loop condition")
		body := c.block(e.Body)
		return &expr.While{Position: e.Position, Cond: cond, Body: body, Type: tipe.Unit}

	case *expr.StructLiteral:
		return c.structLiteral(e)
	}
	panic(c.internalf("unknown expression %T", e))
}

func (c *Checker) ident(e *expr.Ident) *expr.Ident {
	res := &expr.Ident{Position: e.Position, Name: e.Name, Type: tipe.Never}
	o, ok := c.lookup(e.Name)
	switch {
	case !ok:
		c.notFound(e.Name, e.Position, true)
	case !o.IsValue():
		c.report(diag.New(diag.InvalidOperand, "`%s` is a type, not a value", e.Name).
			WithPrimary(e.Position, "used as a value"))
	default:
		res.Type = o.Type
	}
	return res
}

func (c *Checker) invalidOperand(op token.Token, x expr.Expr) {
	c.report(diag.New(diag.InvalidOperand, "invalid operand for %s: `%s`", op, format.Type(x.Tipe())).
		WithPrimary(x.Span(), "has type `%s`", format.Type(x.Tipe())))
}

// operandType is the operand type an operator accepts. Equality
// accepts any type that passes equatable.
func operandType(op token.Token) tipe.Type {
	switch op {
	case token.Add, token.Sub, token.Mul, token.Div, token.Rem,
		token.Less, token.LessEqual, token.Greater, token.GreaterEqual:
		return tipe.Integer
	case token.LogicalAnd, token.LogicalOr:
		return tipe.Boolean
	}
	return nil
}

func equatable(t tipe.Type) bool {
	return t == tipe.Integer || t == tipe.Boolean || tipe.IsNever(t)
}

func (c *Checker) binary(e *expr.Binary) *expr.Binary {
	left := c.expr(e.Left)
	right := c.expr(e.Right)
	res := &expr.Binary{Position: e.Position, Op: e.Op, Left: left, Right: right}

	t := c.agree([]expr.Expr{left, right}, "binary expression")
	switch e.Op {
	case token.Add, token.Sub, token.Mul, token.Div, token.Rem:
		res.Type = tipe.Integer
	case token.LogicalAnd, token.LogicalOr, token.Equal, token.NotEqual,
		token.Less, token.LessEqual, token.Greater, token.GreaterEqual:
		res.Type = tipe.Boolean
	default:
		panic(c.internalf("unknown binary operator %s", e.Op))
	}
	if tipe.IsNever(t) {
		return res
	}
	if want := operandType(e.Op); want != nil {
		if !tipe.Compatible(want, t) {
			c.invalidOperand(e.Op, left)
		}
	} else if !equatable(t) {
		c.invalidOperand(e.Op, left)
	}
	return res
}

func (c *Checker) block(e *expr.Block) *expr.Block {
	c.pushScope(scope.Block)
	defer c.popScope()

	res := &expr.Block{Position: e.Position}
	for _, s := range e.Stmts {
		res.Stmts = append(res.Stmts, c.stmt(s.(stmt.Stmt)))
	}
	res.Type = tipe.Unit
	if e.Result != nil {
		res.Result = c.expr(e.Result)
		res.Type = res.Result.Tipe()
	}
	return res
}

// cond checks a conditional. A chain of conditionals,
//
//	a if c1 else b if c2 else d
//
// is checked as one: the branches a, b and d must agree and the
// agreement is reported at the head of the chain.
func (c *Checker) cond(e *expr.Cond, chained bool) *expr.Cond {
	cond := c.expr(e.Cond)
	c.expectType(cond, tipe.Boolean, "condition")
	then := c.expr(e.Then)
	if _, ok := e.Else.(*expr.Cond); ok {
		c.chainNext = true
	}
	els := c.expr(e.Else)
	c.chainNext = false

	res := &expr.Cond{
		Position: e.Position,
		Then:     then,
		Cond:     cond,
		Else:     els,
		Chained:  chained,
		Type:     then.Tipe(),
	}
	if chained {
		if tipe.IsNever(res.Type) {
			res.Type = els.Tipe()
		}
		return res
	}

	branches := []expr.Expr{then}
	for {
		next, ok := els.(*expr.Cond)
		if !ok || !next.Chained {
			branches = append(branches, els)
			break
		}
		branches = append(branches, next.Then)
		els = next.Else
	}
	t := c.agree(branches, "conditional branches")
	if tipe.IsNever(res.Type) {
		res.Type = t
	}
	return res
}

func (c *Checker) funcLiteral(e *expr.FuncLiteral) *expr.FuncLiteral {
	res := &expr.FuncLiteral{
		Position: e.Position,
		Name:     e.Name,
		Scope:    c.cur,
	}
	t := &tipe.Func{}
	for _, p := range e.Params {
		pt := c.resolve(p.Type, p.Position)
		t.Params = append(t.Params, pt)
		res.Params = append(res.Params, expr.Param{Position: p.Position, Name: p.Name, Type: pt})
	}
	if e.Result != nil {
		t.Result = c.resolve(e.Result, e.Position)
		res.Result = t.Result
	}

	c.pushScope(scope.Function)
	for _, p := range res.Params {
		c.declare(p.Name, &Obj{Kind: ObjVar, Type: p.Type, Span: p.Position})
	}
	res.Body = c.block(e.Body)
	c.popScope()

	if t.Result == nil {
		t.Result = res.Body.Type
	} else {
		body := expr.Expr(res.Body)
		if res.Body.Result != nil {
			body = res.Body.Result
		}
		c.expectType(body, t.Result, "function result")
	}
	res.Type = t
	return res
}

func (c *Checker) paramNames(fn expr.Expr) []string {
	switch fn := expr.Unwrap(fn).(type) {
	case *expr.Ident:
		if o, ok := c.lookup(fn.Name); ok {
			return o.ParamNames
		}
	case *expr.FuncLiteral:
		return paramNames(fn.Params)
	}
	return nil
}

func (c *Checker) call(e *expr.Call) *expr.Call {
	fn := c.expr(e.Func)
	res := &expr.Call{Position: e.Position, Func: fn, Type: tipe.Never}
	for _, arg := range e.Args {
		res.Args = append(res.Args, c.expr(arg))
	}

	ft, ok := fn.Tipe().(*tipe.Func)
	if !ok {
		if !tipe.IsNever(fn.Tipe()) {
			c.report(diag.New(diag.NotCallable, "cannot call non-function `%s`", format.Type(fn.Tipe())).
				WithPrimary(fn.Span(), "has type `%s`", format.Type(fn.Tipe())))
		}
		return res
	}
	res.Type = ft.Result

	names := c.paramNames(e.Func)
	for i, arg := range res.Args {
		if i >= len(ft.Params) {
			c.report(diag.New(diag.UnexpectedArgument, "unexpected argument %d: function takes %d", i+1, len(ft.Params)).
				WithPrimary(arg.Span(), "unexpected argument"))
			continue
		}
		c.expectType(arg, ft.Params[i], "argument")
	}
	for i := len(res.Args); i < len(ft.Params); i++ {
		name := ""
		if i < len(names) {
			name = " `" + names[i] + "`"
		}
		c.report(diag.New(diag.MissingParameter, "missing parameter%s of type `%s`", name, format.Type(ft.Params[i])).
			WithPrimary(e.Position, "in this call"))
	}
	return res
}

func (c *Checker) selector(e *expr.Selector) *expr.Selector {
	left := c.expr(e.Left)
	res := &expr.Selector{
		Position: e.Position,
		Left:     left,
		Right:    &expr.Ident{Position: e.Right.Position, Name: e.Right.Name, Type: tipe.Never},
		Type:     tipe.Never,
	}
	if tipe.IsNever(left.Tipe()) {
		return res
	}
	st, ok := left.Tipe().(*tipe.Struct)
	if !ok {
		c.report(diag.New(diag.InvalidOperand, "field access on non-struct type `%s`", format.Type(left.Tipe())).
			WithPrimary(left.Span(), "has type `%s`", format.Type(left.Tipe())))
		return res
	}
	_, ft, ok := st.Field(e.Right.Name)
	if !ok {
		c.unknownField(st, e.Right)
		return res
	}
	res.Right.Type = ft
	res.Type = ft
	return res
}

func (c *Checker) unknownField(st *tipe.Struct, name *expr.Ident) {
	d := diag.New(diag.UnknownField, "no field `%s` in `%s`", name.Name, format.Type(st)).
		WithPrimary(name.Position, "unknown field")
	c.report(c.suggest(d, name.Name, st.FieldNames()))
}

func (c *Checker) assign(e *expr.Assign) *expr.Assign {
	right := c.expr(e.Right)
	res := &expr.Assign{
		Position: e.Position,
		Left:     &expr.Ident{Position: e.Left.Position, Name: e.Left.Name, Type: tipe.Never},
		Right:    right,
		Type:     right.Tipe(),
	}
	o, ok := c.lookup(e.Left.Name)
	switch {
	case !ok:
		c.notFound(e.Left.Name, e.Left.Position, true)
	case o.Kind != ObjVar:
		c.report(diag.New(diag.InvalidOperand, "cannot assign to %s `%s`", kindNoun(o.Kind), e.Left.Name).
			WithPrimary(e.Left.Position, "not a variable"))
	default:
		res.Left.Type = o.Type
		c.expectType(right, o.Type, "assignment")
	}
	return res
}

func kindNoun(k ObjKind) string {
	switch k {
	case ObjExtern:
		return "extern function"
	case ObjType:
		return "type"
	}
	return "variable"
}

func (c *Checker) structLiteral(e *expr.StructLiteral) *expr.StructLiteral {
	res := &expr.StructLiteral{
		Position: e.Position,
		Name:     &expr.Ident{Position: e.Name.Position, Name: e.Name.Name, Type: tipe.Never},
		Type:     tipe.Never,
	}
	var st *tipe.Struct
	o, ok := c.lookup(e.Name.Name)
	switch {
	case !ok:
		c.notFound(e.Name.Name, e.Name.Position, false)
	case o.Kind != ObjType:
		c.report(diag.New(diag.InvalidOperand, "`%s` is not a type", e.Name.Name).
			WithPrimary(e.Name.Position, "expected a struct type"))
	default:
		if st, ok = o.Type.(*tipe.Struct); !ok {
			c.report(diag.New(diag.InvalidOperand, "`%s` is not a struct type", e.Name.Name).
				WithPrimary(e.Name.Position, "has type `%s`", format.Type(o.Type)))
		}
	}
	if st != nil {
		res.Name.Type = st
		res.Type = st
	}

	seen := make(map[string]bool)
	for _, f := range e.Fields {
		value := c.expr(f.Value)
		init := expr.FieldInit{
			Name:  &expr.Ident{Position: f.Name.Position, Name: f.Name.Name, Type: tipe.Never},
			Value: value,
		}
		res.Fields = append(res.Fields, init)
		if st == nil {
			continue
		}
		if seen[f.Name.Name] {
			c.report(diag.New(diag.DuplicateField, "field `%s` initialized twice", f.Name.Name).
				WithPrimary(f.Name.Position, "duplicate field"))
			continue
		}
		seen[f.Name.Name] = true
		_, ft, ok := st.Field(f.Name.Name)
		if !ok {
			c.unknownField(st, f.Name)
			continue
		}
		init.Name.Type = ft
		c.expectType(value, ft, "field `"+f.Name.Name+"`")
	}
	if st != nil {
		for _, f := range st.Fields {
			if !seen[f.Name] {
				c.report(diag.New(diag.MissingField, "missing field `%s` in `%s` literal", f.Name, st.Name).
					WithPrimary(e.Position, "field `%s` not initialized", f.Name))
			}
		}
	}
	return res
}
