// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typecheck implements the tern type checker.
//
// Check walks an untyped tree and returns a new, isomorphic tree with
// a type on every expression. It never stops at the first problem:
// anything whose type cannot be determined gets tipe.Never, which
// matches every other type, and checking carries on so one pass
// reports every independent error.
package typecheck

import (
	"fmt"

	"neugram.io/tern/diag"
	"neugram.io/tern/extern"
	"neugram.io/tern/format"
	"neugram.io/tern/internal/fuzzy"
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
)

// DefaultMaxDepth bounds expression nesting when Options.MaxDepth is 0.
const DefaultMaxDepth = 2000

type Options struct {
	// Externs validates extern declarations. Nil means no host
	// functions exist.
	Externs *extern.Registry

	// Imports maps an import path, as written in the importing file,
	// to the exports of the module it names.
	Imports map[string]*Exports

	// Path is the canonical path of the file being checked, recorded
	// in its Exports.
	Path string

	MaxDepth int
	Matcher  *fuzzy.Matcher
}

// Result is a successfully checked file.
type Result struct {
	File    *syntax.File // typed copy of the input
	Env     *Env         // every scope created while checking
	Exports *Exports
}

type Checker struct {
	opts  Options
	env   *Env
	cur   scope.ID
	diags diag.List

	depth        int
	reportedDeep bool
	chainNext    bool // the next Cond checked is the Else of a chain
}

func New(opts Options) *Checker {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Matcher == nil {
		opts.Matcher = fuzzy.Default
	}
	env := scope.New[*Obj]()
	declareUniverse(env)
	return &Checker{
		opts: opts,
		env:  env,
		cur:  env.Root(),
	}
}

// Check type checks f. It returns either a typed copy of f or the
// complete list of diagnostics, never both.
func Check(f *syntax.File, opts Options) (*Result, diag.List) {
	c := New(opts)
	return c.File(f)
}

// File checks f with c. A Checker checks a single file.
func (c *Checker) File(f *syntax.File) (*Result, diag.List) {
	main := c.stmt(f.Main).(*stmt.Var)
	if len(c.diags) > 0 {
		return nil, c.diags
	}
	typed := &syntax.File{Filename: f.Filename, Main: main}
	return &Result{
		File:    typed,
		Env:     c.env,
		Exports: c.exports(typed),
	}, nil
}

// Diagnostics returns the diagnostics reported so far.
func (c *Checker) Diagnostics() diag.List { return c.diags }

func (c *Checker) exports(f *syntax.File) *Exports {
	x := &Exports{Path: c.opts.Path, Objs: make(map[string]*Obj)}
	for _, d := range syntax.Decls(f) {
		switch s := d.Stmt.(type) {
		case *stmt.Var:
			o := &Obj{Kind: ObjVar, Type: s.Type, Span: s.NamePos, Module: c.opts.Path}
			if fn, ok := s.Value.(*expr.FuncLiteral); ok {
				o.ParamNames = paramNames(fn.Params)
			}
			x.add(s.Name, o)
		case *stmt.Extern:
			x.add(s.Name, &Obj{Kind: ObjExtern, Type: s.Type, Span: s.Position, ParamNames: paramNames(s.Params), Module: c.opts.Path})
		case *stmt.TypeDecl:
			x.add(s.Name, &Obj{Kind: ObjType, Type: s.Type, Span: s.Position, Module: c.opts.Path})
		}
	}
	return x
}

func paramNames(params []expr.Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

func (c *Checker) pushScope(kind scope.Kind) {
	c.cur = c.env.Child(c.cur, kind)
}

func (c *Checker) popScope() {
	c.cur = c.env.Parent(c.cur)
}

func (c *Checker) declare(name string, o *Obj) {
	c.env.Declare(c.cur, name, o)
}

func (c *Checker) lookup(name string) (*Obj, bool) {
	return c.env.Lookup(c.cur, name)
}

func (c *Checker) report(d *diag.Diagnostic) {
	c.diags = append(c.diags, d)
}

// visible returns the visible names of values, or of types.
func (c *Checker) visible(values bool) []string {
	var names []string
	for _, name := range c.env.Visible(c.cur) {
		o, _ := c.lookup(name)
		if o.IsValue() == values {
			names = append(names, name)
		}
	}
	return names
}

func (c *Checker) suggest(d *diag.Diagnostic, needle string, candidates []string) *diag.Diagnostic {
	if s, ok := c.opts.Matcher.Suggest(needle, candidates); ok {
		d.WithHelp("did you mean `%s`?", s)
	}
	return d
}

func (c *Checker) notFound(name string, span src.Span, values bool) {
	what := "value"
	if !values {
		what = "type"
	}
	d := diag.New(diag.DeclarationNotFound, "declaration of %s `%s` not found", what, name).
		WithPrimary(span, "not found in this scope")
	c.report(c.suggest(d, name, c.visible(values)))
}

func (c *Checker) mismatch(span src.Span, want, got tipe.Type, context string) {
	c.report(diag.New(diag.TypeMismatch, "type mismatch in %s: expected `%s`, found `%s`",
		context, format.Type(want), format.Type(got)).
		WithPrimary(span, "has type `%s`", format.Type(got)))
}

// expectType reports a mismatch unless e's type agrees with want.
func (c *Checker) expectType(e expr.Expr, want tipe.Type, context string) bool {
	if tipe.Compatible(want, e.Tipe()) {
		return true
	}
	c.mismatch(e.Span(), want, e.Tipe(), context)
	return false
}

func (c *Checker) stmt(s stmt.Stmt) stmt.Stmt {
	switch s := s.(type) {
	case *stmt.Var:
		return c.varDecl(s)

	case *stmt.TypeDecl:
		t := c.resolve(s.Type, s.Position)
		if st, ok := t.(*tipe.Struct); ok && st.Name != s.Name {
			named := *st
			named.Name = s.Name
			t = &named
		}
		c.declare(s.Name, &Obj{Kind: ObjType, Type: t, Span: s.Position})
		return &stmt.TypeDecl{Position: s.Position, Name: s.Name, Type: t}

	case *stmt.Extern:
		return c.externDecl(s)

	case *stmt.Import:
		exports, ok := c.opts.Imports[s.Path]
		if !ok {
			c.report(diag.New(diag.UnresolvedImport, "import %q was not loaded", s.Path).
				WithPrimary(s.Position, "unresolved import"))
		} else {
			for _, name := range exports.Names {
				c.declare(name, exports.Objs[name])
			}
		}
		return &stmt.Import{Position: s.Position, Path: s.Path}

	case *stmt.Simple:
		return &stmt.Simple{Position: s.Position, Expr: c.expr(s.Expr)}

	case *stmt.Bad:
		return &stmt.Bad{Position: s.Position, Error: s.Error}
	}
	panic(c.internalf("unknown statement %T", s))
}

func (c *Checker) varDecl(s *stmt.Var) *stmt.Var {
	var declared tipe.Type
	if s.Type != nil {
		declared = c.resolve(s.Type, s.NamePos)
	}

	// A function literal with a written result type may refer to
	// itself: its type is known before its body is checked.
	if fn, ok := s.Value.(*expr.FuncLiteral); ok && fn.Result != nil {
		sig := c.signature(fn)
		if declared == nil || tipe.Compatible(declared, sig) {
			c.declare(s.Name, &Obj{Kind: ObjVar, Type: sig, Span: s.NamePos, ParamNames: paramNames(fn.Params)})
		}
	}

	value := c.expr(s.Value)
	t := value.Tipe()
	if declared != nil {
		c.expectType(value, declared, "variable declaration")
		if !tipe.IsNever(declared) {
			t = declared
		}
	}
	o := &Obj{Kind: ObjVar, Type: t, Span: s.NamePos}
	if fn, ok := s.Value.(*expr.FuncLiteral); ok {
		o.ParamNames = paramNames(fn.Params)
	}
	c.declare(s.Name, o)
	return &stmt.Var{
		Position: s.Position,
		Name:     s.Name,
		NamePos:  s.NamePos,
		Type:     t,
		Value:    value,
	}
}

// signature resolves the written parameter and result types of fn
// without reporting anything; problems are reported when the literal
// itself is checked.
func (c *Checker) signature(fn *expr.FuncLiteral) *tipe.Func {
	saved := len(c.diags)
	t := &tipe.Func{}
	for _, p := range fn.Params {
		t.Params = append(t.Params, c.resolve(p.Type, p.Position))
	}
	t.Result = c.resolve(fn.Result, fn.Position)
	c.diags = c.diags[:saved]
	return t
}

func (c *Checker) externDecl(s *stmt.Extern) *stmt.Extern {
	t := &tipe.Func{}
	for _, p := range s.Params {
		t.Params = append(t.Params, c.resolve(p.Type, p.Position))
	}
	t.Result = c.resolve(s.Result, s.Position)

	host, ok := c.opts.Externs.Lookup(s.Name)
	if !ok {
		d := diag.New(diag.UnknownExternFunction, "unknown extern function `%s`", s.Name).
			WithPrimary(s.Position, "no host function with this name")
		c.report(c.suggest(d, s.Name, c.opts.Externs.Names()))
	} else if !tipe.Compatible(host.Type, t) {
		c.report(diag.New(diag.TypeMismatch, "extern `%s` declared as `%s`, host function has type `%s`",
			s.Name, format.Type(t), format.Type(host.Type)).
			WithPrimary(s.Position, "declared here"))
	}
	c.declare(s.Name, &Obj{Kind: ObjExtern, Type: t, Span: s.Position, ParamNames: paramNames(s.Params)})
	return &stmt.Extern{
		Position: s.Position,
		Name:     s.Name,
		Params:   append([]expr.Param(nil), s.Params...),
		Result:   s.Result,
		Type:     t,
	}
}

// resolve replaces type names in t with the types they name.
func (c *Checker) resolve(t tipe.Type, span src.Span) tipe.Type {
	switch t := t.(type) {
	case nil:
		return tipe.Never
	case tipe.Basic:
		return t
	case *tipe.Unresolved:
		o, ok := c.lookup(t.Name)
		if !ok {
			c.notFound(t.Name, span, false)
			return tipe.Never
		}
		if o.Kind != ObjType {
			c.report(diag.New(diag.InvalidOperand, "`%s` is a value, not a type", t.Name).
				WithPrimary(span, "expected a type").
				WithSecondary(o.Span, "`%s` declared here", t.Name))
			return tipe.Never
		}
		return o.Type
	case *tipe.Func:
		res := &tipe.Func{}
		for _, p := range t.Params {
			res.Params = append(res.Params, c.resolve(p, span))
		}
		res.Result = c.resolve(t.Result, span)
		return res
	case *tipe.Struct:
		res := &tipe.Struct{Name: t.Name}
		seen := make(map[string]bool)
		for _, f := range t.Fields {
			if seen[f.Name] {
				c.report(diag.New(diag.DuplicateField, "duplicate field `%s` in struct type", f.Name).
					WithPrimary(span, "declared here"))
				continue
			}
			seen[f.Name] = true
			res.Fields = append(res.Fields, tipe.StructField{Name: f.Name, Type: c.resolve(f.Type, span)})
		}
		return res
	}
	panic(c.internalf("unknown type %T", t))
}

type internalError string

func (e internalError) Error() string { return string(e) }

func (c *Checker) internalf(format string, args ...interface{}) error {
	return internalError("typecheck: internal error: " + fmt.Sprintf(format, args...))
}
