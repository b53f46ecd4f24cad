// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package syntax defines an Abstract Syntax Tree, an AST, for tern.
//
// Nodes in the AST are represented by Node objects. The particular nodes
// for expressions, statements, and types are defined in the respective
// packages:
//
//	syntax/expr
//	syntax/stmt
//	syntax/tipe
//
package syntax

import (
	"fmt"

	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/stmt"
)

// A Node is a node in the syntax tree.
type Node interface {
	Pos() src.Pos
}

// MainName is the name of the wrapper declaration every file is
// parsed into.
const MainName = "main"

// File is a parsed source file.
//
// By convention a file is a single variable declaration whose value
// is a function literal with no parameters. The literal's body holds
// the program's real statements:
//
//	let main = fn() { <file contents> }
type File struct {
	Filename string
	Main     *stmt.Var
}

func (f *File) Pos() src.Pos { return f.Main.Pos() }

// Func returns the wrapper function literal.
func (f *File) Func() *expr.FuncLiteral {
	return f.Main.Value.(*expr.FuncLiteral)
}

// Body returns the block holding the file's statements.
func (f *File) Body() *expr.Block {
	return f.Func().Body
}

// Wrap builds the File wrapper around a parsed top-level block.
func Wrap(filename string, body *expr.Block) *File {
	fn := &expr.FuncLiteral{
		Position: body.Position,
		Name:     MainName,
		Body:     body,
	}
	return &File{
		Filename: filename,
		Main: &stmt.Var{
			Position: body.Position,
			Name:     MainName,
			NamePos:  body.Position,
			Value:    fn,
		},
	}
}

// DeclKind classifies a top-level declaration.
type DeclKind int

const (
	DeclVar DeclKind = iota
	DeclExtern
	DeclType
)

func (k DeclKind) String() string {
	switch k {
	case DeclVar:
		return "let"
	case DeclExtern:
		return "extern"
	case DeclType:
		return "type"
	}
	return fmt.Sprintf("DeclKind(%d)", int(k))
}

// Decl is a top-level declaration of a file.
type Decl struct {
	Kind DeclKind
	Name string
	Stmt stmt.Stmt
}

// Decls returns the top-level declarations of s in source order.
// It panics if s does not have the wrapper shape described on File.
func Decls(f *File) []Decl {
	var decls []Decl
	for _, s := range f.Body().Stmts {
		switch s := s.(type) {
		case *stmt.Var:
			decls = append(decls, Decl{Kind: DeclVar, Name: s.Name, Stmt: s})
		case *stmt.Extern:
			decls = append(decls, Decl{Kind: DeclExtern, Name: s.Name, Stmt: s})
		case *stmt.TypeDecl:
			decls = append(decls, Decl{Kind: DeclType, Name: s.Name, Stmt: s})
		}
	}
	return decls
}

// Imports returns the import statements of f in source order.
func Imports(f *File) []*stmt.Import {
	var imports []*stmt.Import
	for _, s := range f.Body().Stmts {
		if s, ok := s.(*stmt.Import); ok {
			imports = append(imports, s)
		}
	}
	return imports
}
