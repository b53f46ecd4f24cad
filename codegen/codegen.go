// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codegen lowers checked tern trees into a jit.Unit.
//
// Each function literal becomes a jit function whose parameters are
// its captured variables followed by its declared parameters. A
// function bound by `let` is declared in the unit before its body is
// compiled, so it can call itself whether or not it captures. A
// function whose body calls itself in tail position is compiled into
// a loop.
package codegen

import (
	"fmt"
	"io"
	"log/slog"

	"neugram.io/tern/extern"
	"neugram.io/tern/jit"
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
	"neugram.io/tern/typecheck"
)

type Options struct {
	Logger  *slog.Logger
	Externs *extern.Registry

	// Imports maps each import path, as written in the file being
	// compiled, to the compiled exports of that module.
	Imports map[string]Exports

	// MaxDepth bounds expression nesting. Zero means
	// typecheck.DefaultMaxDepth.
	MaxDepth int
}

// Binding is what a name is bound to during code generation: a
// *Variable or a *FunctionBinding.
type Binding interface {
	binding()
}

// Variable is a local of the function being compiled.
type Variable struct {
	Var  jit.Variable
	Type tipe.Type
}

// FunctionBinding is a function known at compile time. Calls of it
// pass Captures ahead of the declared arguments.
type FunctionBinding struct {
	Name string
	Ref  jit.FuncRef
	Sig  jit.Signature
	Type *tipe.Func

	// Captures are the values of the captured variables at the point
	// the function was defined, in the function being compiled.
	Captures []jit.Value

	// CaptureReprs are the representations of the leading parameters
	// of Sig holding captured values.
	CaptureReprs []jit.Repr
}

func (*Variable) binding()        {}
func (*FunctionBinding) binding() {}

// Exports are the compiled top-level functions of a module.
type Exports map[string]*FunctionBinding

type Env = scope.Tree[Binding]

// Error is a code generation error.
type Error struct {
	Pos src.Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("codegen: %s: %s", e.Pos, e.Msg)
}

// Program is a compiled whole program.
type Program struct {
	Ref  jit.FuncRef
	Addr int64     // code address of the entry function
	Type tipe.Type // of the value returned by the entry function
}

// Generator compiles into one unit. A Generator, like its unit, must
// only be used by one goroutine at a time.
type Generator struct {
	unit *jit.Unit
	opts Options
	log  *slog.Logger

	env   *Env
	cur   scope.ID
	fs    *funcState // nil outside function bodies
	depth int
}

func New(unit *jit.Unit, opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = typecheck.DefaultMaxDepth
	}
	env := scope.New[Binding]()
	return &Generator{
		unit: unit,
		opts: opts,
		log:  opts.Logger.With("component", "codegen"),
		env:  env,
		cur:  env.Root(),
	}
}

func (g *Generator) errorf(pos src.Pos, format string, args ...interface{}) {
	panic(&Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// catch converts a panicking *Error into a returned error. Any other
// panic is a bug and propagates.
func catch(err *error) {
	if x := recover(); x != nil {
		e, ok := x.(*Error)
		if !ok {
			panic(x)
		}
		*err = e
	}
}

func (g *Generator) bind(name string, b Binding) {
	g.env.Declare(g.cur, name, b)
}

// CompileProgram compiles a checked file as a whole program and
// finalizes the unit. The file's statements become the body of the
// entry function.
func (g *Generator) CompileProgram(f *syntax.File) (p *Program, err error) {
	defer catch(&err)

	fn := f.Func()
	ft := fn.FuncType()
	if ft == nil {
		return nil, &Error{Pos: fn.Pos(), Msg: "file is not type checked"}
	}
	fb := g.function(fn, syntax.MainName, nil, false)
	if err := g.unit.Finalize(); err != nil {
		return nil, err
	}
	addr, err := g.unit.Address(fb.Ref)
	if err != nil {
		return nil, err
	}
	g.log.Debug("compiled program", "file", f.Filename, "result", ft.Result)
	return &Program{Ref: fb.Ref, Addr: addr, Type: ft.Result}, nil
}

// CompileLibrary compiles the top-level declarations of a checked
// file imported by other modules. Only function declarations, externs,
// types and imports may appear at the top level of a library.
func (g *Generator) CompileLibrary(f *syntax.File) (x Exports, err error) {
	defer catch(&err)

	g.cur = g.env.Child(g.env.Root(), scope.Block)
	defer func() { g.cur = g.env.Root() }()

	x = make(Exports)
	for _, s := range f.Body().Stmts {
		switch s := s.(type) {
		case *stmt.Var:
			fn, ok := s.Value.(*expr.FuncLiteral)
			if !ok {
				g.errorf(s.Pos(), "expected a function declaration at top level")
			}
			x[s.Name] = g.letFunc(s.Name, fn)
		case *stmt.Extern:
			x[s.Name] = g.extern(s)
		case *stmt.Import:
			g.importStmt(s)
		case *stmt.TypeDecl:
		default:
			g.errorf(s.(stmt.Stmt).Pos(), "expected a function declaration at top level")
		}
	}
	if r := f.Body().Result; r != nil {
		g.errorf(r.Pos(), "expected a function declaration at top level")
	}
	if err := g.unit.Finalize(); err != nil {
		return nil, err
	}
	return x, nil
}

// CompileFunction compiles a capture-free function literal declared
// at the top level and returns its handle. The unit is not finalized.
func (g *Generator) CompileFunction(name string, fn *expr.FuncLiteral) (fb *FunctionBinding, err error) {
	defer catch(&err)
	return g.function(fn, name, nil, fn.Result != nil), nil
}

func (g *Generator) importStmt(s *stmt.Import) {
	x, ok := g.opts.Imports[s.Path]
	if !ok {
		g.errorf(s.Pos(), "import %q was not compiled", s.Path)
	}
	for name, fb := range x {
		g.bind(name, fb)
	}
}

func (g *Generator) extern(s *stmt.Extern) *FunctionBinding {
	host, ok := g.opts.Externs.Lookup(s.Name)
	if !ok {
		g.errorf(s.Pos(), "unknown extern function %s", s.Name)
	}
	sig := Signature(s.Type)
	fb := &FunctionBinding{
		Name: s.Name,
		Ref:  g.unit.DeclareExtern(s.Name, sig, host.Impl),
		Sig:  sig,
		Type: s.Type,
	}
	g.bind(s.Name, fb)
	return fb
}
