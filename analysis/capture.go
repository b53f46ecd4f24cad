// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package analysis computes facts about checked function literals
// that the code generator needs: which variables a function captures
// from enclosing scopes, and which of its calls are self calls in
// tail position.
package analysis

import (
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
)

// A Capture is a variable read by a function but declared outside it.
// Captures are by value.
type Capture struct {
	Name string
	Type tipe.Type

	// Level is the number of function boundaries between the
	// function's definition site and the scope declaring the
	// variable. A function capturing a variable of the scope it is
	// defined in has level 0.
	Level int

	// Resolved is false if no enclosing scope declares Name.
	// Checked trees do not produce unresolved captures.
	Resolved bool
}

// Captures maps each function literal to its captures, in order of
// first reference.
type Captures map[*expr.FuncLiteral][]Capture

// Lookup returns the named capture of fn.
func (c Captures) Lookup(fn *expr.FuncLiteral, name string) (Capture, bool) {
	for _, cp := range c[fn] {
		if cp.Name == name {
			return cp, true
		}
	}
	return Capture{}, false
}

// AnalyzeCaptures computes the captures of fn and of every function
// literal nested in its body.
//
// The environment env must reflect the names visible at fn's
// definition site, the scope site. Names not declared within fn are
// resolved there. Scopes of kind scope.Function in env count as
// function boundaries.
func AnalyzeCaptures[T any](fn *expr.FuncLiteral, env *scope.Tree[T], site scope.ID) Captures {
	a := &captureAnalyzer[T]{
		env:    env,
		site:   site,
		result: make(Captures),
	}
	syntax.Walk(fn, a.pre, a.post)
	return a.result
}

type captureFrame struct {
	fn     *expr.FuncLiteral
	locals []map[string]bool // innermost block last
	seen   map[string]bool   // captured names
}

type captureAnalyzer[T any] struct {
	env    *scope.Tree[T]
	site   scope.ID
	frames []*captureFrame
	result Captures
}

func (a *captureAnalyzer[T]) top() *captureFrame {
	return a.frames[len(a.frames)-1]
}

func (a *captureAnalyzer[T]) pushBlock() {
	f := a.top()
	f.locals = append(f.locals, make(map[string]bool))
}

func (a *captureAnalyzer[T]) popBlock() {
	f := a.top()
	f.locals = f.locals[:len(f.locals)-1]
}

func (a *captureAnalyzer[T]) declare(name string) {
	f := a.top()
	f.locals[len(f.locals)-1][name] = true
}

func (f *captureFrame) isLocal(name string) bool {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i][name] {
			return true
		}
	}
	return false
}

func (a *captureAnalyzer[T]) enter(fn *expr.FuncLiteral) {
	f := &captureFrame{fn: fn, seen: make(map[string]bool)}
	a.frames = append(a.frames, f)
	a.result[fn] = nil

	a.pushBlock()
	for _, p := range fn.Params {
		a.declare(p.Name)
	}
}

func (a *captureAnalyzer[T]) leave() {
	a.popBlock()
	a.frames = a.frames[:len(a.frames)-1]
}

// reference records that name, of type t, is read in the innermost
// function. Every function between the innermost and the one that
// declares name captures it.
func (a *captureAnalyzer[T]) reference(name string, t tipe.Type) {
	k := len(a.frames) - 1
	if a.frames[k].isLocal(name) {
		return
	}
	declaring := -1
	for j := k - 1; j >= 0; j-- {
		if a.frames[j].isLocal(name) {
			declaring = j
			break
		}
	}

	// base is the level of the outermost capturing frame.
	base, resolved := 0, true
	if declaring < 0 {
		r := a.env.Resolve(a.site, name)
		base, resolved = r.Boundaries, r.Found
	}
	for i := declaring + 1; i <= k; i++ {
		f := a.frames[i]
		if f.seen[name] {
			continue
		}
		f.seen[name] = true
		a.result[f.fn] = append(a.result[f.fn], Capture{
			Name:     name,
			Type:     t,
			Level:    base + i - (declaring + 1),
			Resolved: resolved,
		})
	}
}

func (a *captureAnalyzer[T]) pre(c *syntax.Cursor) bool {
	switch n := c.Node.(type) {
	case *expr.FuncLiteral:
		a.enter(n)
	case *expr.Block:
		a.pushBlock()
	case *stmt.Var:
		// A function with a declared result may call itself by the
		// name it is bound to.
		if fn, ok := n.Value.(*expr.FuncLiteral); ok && fn.Result != nil {
			a.declare(n.Name)
		}
	case *stmt.Extern:
		a.declare(n.Name)
	case *expr.Ident:
		switch c.Parent.(type) {
		case *expr.Selector:
			if c.Name == "Right" {
				return false // field name
			}
		case *expr.StructLiteral:
			if c.Name == "Name" {
				return false // type name
			}
		}
		a.reference(n.Name, n.Type)
	}
	return true
}

func (a *captureAnalyzer[T]) post(c *syntax.Cursor) bool {
	switch n := c.Node.(type) {
	case *expr.FuncLiteral:
		a.leave()
	case *expr.Block:
		a.popBlock()
	case *stmt.Var:
		if fn, ok := n.Value.(*expr.FuncLiteral); !ok || fn.Result == nil {
			a.declare(n.Name)
		}
	}
	return true
}
