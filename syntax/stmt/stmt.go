// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stmt defines data structures representing tern statements.
package stmt

import (
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/tipe"
)

type Stmt interface {
	stmt()
	Pos() src.Pos // implements syntax.Node
	Span() src.Span
}

// Import makes the top-level declarations of another file visible:
//
//	import "lib/math.tn";
type Import struct {
	Position src.Span
	Path     string
}

// TypeDecl names a type:
//
//	type Point = struct { x ~ int, y ~ int };
type TypeDecl struct {
	Position src.Span
	Name     string
	Type     tipe.Type // resolved once checked
}

// Var declares a variable:
//
//	let x ~ int = 5;
type Var struct {
	Position src.Span
	Name     string
	NamePos  src.Span
	Type     tipe.Type // declared type, nil if omitted; the value's type once checked
	Value    expr.Expr
}

// Extern declares a host function callable from tern code:
//
//	extern fn print_int(x ~ int) -> unit;
type Extern struct {
	Position src.Span
	Name     string
	Params   []expr.Param
	Result   tipe.Type
	Type     *tipe.Func // set once checked
}

// Simple is an expression evaluated for its effect.
type Simple struct {
	Position src.Span
	Expr     expr.Expr
}

type Bad struct {
	Position src.Span
	Error    error
}

func (s *Import) stmt()   {}
func (s *TypeDecl) stmt() {}
func (s *Var) stmt()      {}
func (s *Extern) stmt()   {}
func (s *Simple) stmt()   {}
func (s *Bad) stmt()      {}

func (s *Import) Pos() src.Pos   { return s.Position.Start }
func (s *TypeDecl) Pos() src.Pos { return s.Position.Start }
func (s *Var) Pos() src.Pos      { return s.Position.Start }
func (s *Extern) Pos() src.Pos   { return s.Position.Start }
func (s *Simple) Pos() src.Pos   { return s.Position.Start }
func (s *Bad) Pos() src.Pos      { return s.Position.Start }

func (s *Import) Span() src.Span   { return s.Position }
func (s *TypeDecl) Span() src.Span { return s.Position }
func (s *Var) Span() src.Span      { return s.Position }
func (s *Extern) Span() src.Span   { return s.Position }
func (s *Simple) Span() src.Span   { return s.Position }
func (s *Bad) Span() src.Span      { return s.Position }
