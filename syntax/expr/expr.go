// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package expr defines data structures representing tern expressions.
//
// The same node types describe both the parser's output and the type
// checker's output. A node produced by the parser has a nil Type; the
// type checker returns a fresh, isomorphic tree in which every
// expression carries its resolved Type.
package expr

import (
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/tipe"
	"neugram.io/tern/syntax/token"
)

type Expr interface {
	expr()
	Pos() src.Pos   // implements syntax.Node
	Span() src.Span // source text covered by the expression
	Tipe() tipe.Type
}

// Stmt is implemented by every stmt.Stmt. It is declared here so a
// Block can hold statements without importing package stmt.
type Stmt interface {
	Pos() src.Pos
	Span() src.Span
}

type Bad struct {
	Position src.Span
	Error    error
	Type     tipe.Type
}

// BasicLiteral is an integer, boolean or string constant.
type BasicLiteral struct {
	Position src.Span
	Value    interface{} // int64, bool, string
	Type     tipe.Type
}

type Ident struct {
	Position src.Span
	Name     string
	Type     tipe.Type
}

type Unary struct {
	Position src.Span
	Op       token.Token // Sub, Not
	Expr     Expr
	Type     tipe.Type
}

type Binary struct {
	Position src.Span
	Op       token.Token // Add, Sub, Mul, Div, Rem, LogicalAnd, LogicalOr, Equal, NotEqual, Less, ...
	Left     Expr
	Right    Expr
	Type     tipe.Type
}

// Group is a parenthesized expression.
type Group struct {
	Position src.Span
	Expr     Expr
	Type     tipe.Type
}

// Block is a sequence of statements followed by an optional result.
// A block without a Result has type unit.
type Block struct {
	Position src.Span
	Stmts    []Stmt // each a stmt.Stmt
	Result   Expr
	Type     tipe.Type
}

// Cond is the conditional expression:
//
//	Then if Cond else Else
type Cond struct {
	Position src.Span
	Then     Expr
	Cond     Expr
	Else     Expr
	Type     tipe.Type

	// Chained is set by the type checker on a Cond that is the Else
	// branch of another Cond. Branch agreement of a chain is checked
	// once, at its head.
	Chained bool
}

// Param is a declared parameter of a function literal or extern.
type Param struct {
	Position src.Span
	Name     string
	Type     tipe.Type
}

type FuncLiteral struct {
	Position src.Span
	Name     string    // set when the literal is the value of a let
	Params   []Param   //
	Result   tipe.Type // declared result; nil means infer from Body
	Body     *Block
	Type     tipe.Type // *tipe.Func once checked

	// Scope is the type environment scope the literal was checked in,
	// its definition site. Only meaningful on checked trees.
	Scope scope.ID
}

type Call struct {
	Position src.Span
	Func     Expr
	Args     []Expr
	Type     tipe.Type
}

// Selector is a field access, Left.Right.
type Selector struct {
	Position src.Span
	Left     Expr
	Right    *Ident
	Type     tipe.Type
}

// Assign stores Right into the variable Left. Its value is Right.
type Assign struct {
	Position src.Span
	Left     *Ident
	Right    Expr
	Type     tipe.Type
}

type While struct {
	Position src.Span
	Cond     Expr
	Body     *Block
	Type     tipe.Type
}

// FieldInit is one `name: value` element of a StructLiteral.
type FieldInit struct {
	Name  *Ident
	Value Expr
}

// StructLiteral constructs a value of a declared struct type:
//
//	Point { x: 1, y: 2 }
type StructLiteral struct {
	Position src.Span
	Name     *Ident
	Fields   []FieldInit
	Type     tipe.Type
}

func (e *Bad) expr()           {}
func (e *BasicLiteral) expr()  {}
func (e *Ident) expr()         {}
func (e *Unary) expr()         {}
func (e *Binary) expr()        {}
func (e *Group) expr()         {}
func (e *Block) expr()         {}
func (e *Cond) expr()          {}
func (e *FuncLiteral) expr()   {}
func (e *Call) expr()          {}
func (e *Selector) expr()      {}
func (e *Assign) expr()        {}
func (e *While) expr()         {}
func (e *StructLiteral) expr() {}

func (e *Bad) Pos() src.Pos           { return e.Position.Start }
func (e *BasicLiteral) Pos() src.Pos  { return e.Position.Start }
func (e *Ident) Pos() src.Pos         { return e.Position.Start }
func (e *Unary) Pos() src.Pos         { return e.Position.Start }
func (e *Binary) Pos() src.Pos        { return e.Position.Start }
func (e *Group) Pos() src.Pos         { return e.Position.Start }
func (e *Block) Pos() src.Pos         { return e.Position.Start }
func (e *Cond) Pos() src.Pos          { return e.Position.Start }
func (e *FuncLiteral) Pos() src.Pos   { return e.Position.Start }
func (e *Call) Pos() src.Pos          { return e.Position.Start }
func (e *Selector) Pos() src.Pos      { return e.Position.Start }
func (e *Assign) Pos() src.Pos        { return e.Position.Start }
func (e *While) Pos() src.Pos         { return e.Position.Start }
func (e *StructLiteral) Pos() src.Pos { return e.Position.Start }

func (e *Bad) Span() src.Span           { return e.Position }
func (e *BasicLiteral) Span() src.Span  { return e.Position }
func (e *Ident) Span() src.Span         { return e.Position }
func (e *Unary) Span() src.Span         { return e.Position }
func (e *Binary) Span() src.Span        { return e.Position }
func (e *Group) Span() src.Span         { return e.Position }
func (e *Block) Span() src.Span         { return e.Position }
func (e *Cond) Span() src.Span          { return e.Position }
func (e *FuncLiteral) Span() src.Span   { return e.Position }
func (e *Call) Span() src.Span          { return e.Position }
func (e *Selector) Span() src.Span      { return e.Position }
func (e *Assign) Span() src.Span        { return e.Position }
func (e *While) Span() src.Span         { return e.Position }
func (e *StructLiteral) Span() src.Span { return e.Position }

func (e *Bad) Tipe() tipe.Type           { return e.Type }
func (e *BasicLiteral) Tipe() tipe.Type  { return e.Type }
func (e *Ident) Tipe() tipe.Type         { return e.Type }
func (e *Unary) Tipe() tipe.Type         { return e.Type }
func (e *Binary) Tipe() tipe.Type        { return e.Type }
func (e *Group) Tipe() tipe.Type         { return e.Type }
func (e *Block) Tipe() tipe.Type         { return e.Type }
func (e *Cond) Tipe() tipe.Type          { return e.Type }
func (e *FuncLiteral) Tipe() tipe.Type   { return e.Type }
func (e *Call) Tipe() tipe.Type          { return e.Type }
func (e *Selector) Tipe() tipe.Type      { return e.Type }
func (e *Assign) Tipe() tipe.Type        { return e.Type }
func (e *While) Tipe() tipe.Type         { return e.Type }
func (e *StructLiteral) Tipe() tipe.Type { return e.Type }

// FuncType returns the checked type of a function literal.
func (e *FuncLiteral) FuncType() *tipe.Func {
	t, _ := e.Type.(*tipe.Func)
	return t
}

// Unwrap strips any number of enclosing groups.
func Unwrap(e Expr) Expr {
	for {
		g, ok := e.(*Group)
		if !ok {
			return e
		}
		e = g.Expr
	}
}
