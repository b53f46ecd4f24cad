// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tipe defines data structures representing tern types.
//
// Go took the usual spelling of type.
package tipe

import "fmt"

type Type interface {
	tipe()
}

type Basic string

const (
	// Never is the type of an expression that has already been
	// reported as erroneous. It matches every other type.
	Never   Basic = "never"
	Unit    Basic = "unit"
	Integer Basic = "int"
	Boolean Basic = "bool"
	String  Basic = "str"
)

// Func is the type of a function value. Captured variables are not
// part of a function's type.
type Func struct {
	Params []Type
	Result Type
}

// Struct is a record type. Name is the name the struct was declared
// under, if any; it is used for printing only.
type Struct struct {
	Name   string
	Fields []StructField
}

// StructField is a field of a Struct. It is not a tern type.
type StructField struct {
	Name string
	Type Type
}

// Unresolved is a type name as written in source, before the type
// checker has looked it up.
type Unresolved struct {
	Name string
}

var (
	_ = Type(Basic(""))
	_ = Type((*Func)(nil))
	_ = Type((*Struct)(nil))
	_ = Type((*Unresolved)(nil))
)

func (t Basic) tipe()       {}
func (t *Func) tipe()       {}
func (t *Struct) tipe()     {}
func (t *Unresolved) tipe() {}

// Field returns the index and type of the named field.
func (t *Struct) Field(name string) (int, Type, bool) {
	for i, f := range t.Fields {
		if f.Name == name {
			return i, f.Type, true
		}
	}
	return -1, nil, false
}

// FieldNames returns the field names in declaration order.
func (t *Struct) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

func IsNever(t Type) bool { return t == Never }

func IsUnit(t Type) bool { return t == Unit }

// Size is the number of bytes a value of type t occupies in memory.
// Strings, structs and functions are represented by an address.
func Size(t Type) int64 {
	switch t := t.(type) {
	case Basic:
		switch t {
		case Integer, String:
			return 8
		case Boolean:
			return 1
		case Unit, Never:
			return 0
		}
	case *Func, *Struct:
		return 8
	}
	panic(fmt.Sprintf("tipe.Size: unsized type %T", t))
}

// Equal reports whether x and y are structurally identical.
// Never is only equal to Never.
func Equal(x, y Type) bool {
	eq := equaler{}
	return eq.equal(x, y)
}

// Compatible reports whether x and y agree, treating Never as a
// wildcard at any depth.
func Compatible(x, y Type) bool {
	eq := equaler{neverMatches: true}
	return eq.equal(x, y)
}

type equaler struct {
	neverMatches bool
}

func (eq *equaler) equal(x, y Type) bool {
	if eq.neverMatches && (x == Never || y == Never) {
		return true
	}
	if x == y {
		return true
	}
	switch x := x.(type) {
	case Basic:
		y, ok := y.(Basic)
		if !ok {
			return false
		}
		return x == y
	case *Func:
		y, ok := y.(*Func)
		if !ok {
			return false
		}
		if x == nil || y == nil {
			return false
		}
		if len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if !eq.equal(x.Params[i], y.Params[i]) {
				return false
			}
		}
		return eq.equal(x.Result, y.Result)
	case *Struct:
		y, ok := y.(*Struct)
		if !ok {
			return false
		}
		if x == nil || y == nil {
			return false
		}
		if len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Name != y.Fields[i].Name {
				return false
			}
			if !eq.equal(x.Fields[i].Type, y.Fields[i].Type) {
				return false
			}
		}
		return true
	case *Unresolved:
		y, ok := y.(*Unresolved)
		if !ok {
			return false
		}
		if x == nil || y == nil {
			return false
		}
		return x.Name == y.Name
	case nil:
		return y == nil
	}
	panic(fmt.Sprintf("tipe.Equal TODO %T\n", x))
}
