// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

import (
	"fmt"
	"reflect"

	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/stmt"
)

// Walk traverses a syntax tree, calling preFn and postFn for each node.
//
// If a preFn is provided it is called for each node before its children
// are traversed. If preFn returns false no children are traversed.
//
// If a postFn is provided it is called for each node after its children
// are traversed.
func Walk(root Node, preFn, postFn WalkFunc) (result Node) {
	type rootNode struct {
		Node
	}
	parent := &rootNode{Node: root}

	w := walker{preFn: preFn, postFn: postFn}
	w.walk(parent, root, "Node")

	return root
}

// A WalkFunc is invoked by Walk when traversing nodes in a syntax tree.
//
// The return value determines how traversal will proceed, it is
// described in detail in the Walk function documentation.
type WalkFunc func(*Cursor) bool

// A Cursor describes a Node during a syntax tree traversal.
type Cursor struct {
	Node   Node   // the current Node
	Parent Node   // the parent of the current Node
	Name   string // name of the parent field containing the current Node
	Index  int    // index in the parent's slice field, or -1
}

type walker struct {
	preFn  WalkFunc
	postFn WalkFunc
	c      Cursor // reusable Cursor
}

func (w *walker) walk(parent, node Node, fieldName string) {
	w.walkIndex(parent, node, fieldName, -1)
}

func (w *walker) walkIndex(parent, node Node, fieldName string, index int) {
	// typed nil -> untyped nil
	if v := reflect.ValueOf(node); v.Kind() == reflect.Ptr && v.IsNil() {
		node = nil
	}
	if node == nil {
		return
	}

	oldCursor := w.c
	w.c = Cursor{
		Node:   node,
		Parent: parent,
		Name:   fieldName,
		Index:  index,
	}
	defer func() { w.c = oldCursor }()

	if w.preFn != nil && !w.preFn(&w.c) {
		return
	}

	switch node := node.(type) {
	case *File:
		w.walk(node, node.Main, "Main")

	case *stmt.Import, *stmt.TypeDecl, *stmt.Extern, *stmt.Bad:
		// done

	case *stmt.Var:
		w.walk(node, node.Value, "Value")

	case *stmt.Simple:
		w.walk(node, node.Expr, "Expr")

	case *expr.Bad, *expr.BasicLiteral, *expr.Ident:
		// done

	case *expr.Unary:
		w.walk(node, node.Expr, "Expr")

	case *expr.Binary:
		w.walk(node, node.Left, "Left")
		w.walk(node, node.Right, "Right")

	case *expr.Group:
		w.walk(node, node.Expr, "Expr")

	case *expr.Block:
		for i, s := range node.Stmts {
			w.walkIndex(node, s, "Stmts", i)
		}
		w.walk(node, node.Result, "Result")

	case *expr.Cond:
		w.walk(node, node.Then, "Then")
		w.walk(node, node.Cond, "Cond")
		w.walk(node, node.Else, "Else")

	case *expr.FuncLiteral:
		w.walk(node, node.Body, "Body")

	case *expr.Call:
		w.walk(node, node.Func, "Func")
		for i, a := range node.Args {
			w.walkIndex(node, a, "Args", i)
		}

	case *expr.Selector:
		w.walk(node, node.Left, "Left")
		w.walk(node, node.Right, "Right")

	case *expr.Assign:
		w.walk(node, node.Left, "Left")
		w.walk(node, node.Right, "Right")

	case *expr.While:
		w.walk(node, node.Cond, "Cond")
		w.walk(node, node.Body, "Body")

	case *expr.StructLiteral:
		w.walk(node, node.Name, "Name")
		for i, f := range node.Fields {
			w.walkIndex(node, f.Value, "Fields", i)
		}

	default:
		panic(fmt.Sprintf("syntax.Walk: unknown node type %T", node))
	}

	if w.postFn != nil {
		w.postFn(&w.c)
	}
}
