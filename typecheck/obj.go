// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typecheck

import (
	"neugram.io/tern/scope"
	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/tipe"
)

// Env is the type environment: every scope created while checking a
// file, with names bound to the objects they declare.
type Env = scope.Tree[*Obj]

type ObjKind int

const (
	ObjUnknown ObjKind = iota
	ObjVar
	ObjExtern
	ObjType
)

func (o ObjKind) String() string {
	switch o {
	case ObjUnknown:
		return "ObjUnknown"
	case ObjVar:
		return "ObjVar"
	case ObjExtern:
		return "ObjExtern"
	case ObjType:
		return "ObjType"
	default:
		return "Obj:unknown_kind"
	}
}

// Obj is a declared name.
type Obj struct {
	Kind ObjKind
	Type tipe.Type
	Span src.Span // declaring identifier, zero for universe objects

	// ParamNames names the parameters of a function declared with a
	// literal or an extern, for diagnostics. It may be nil.
	ParamNames []string

	// Module is the canonical path of the module that declared the
	// object when it was brought in by an import, else "".
	Module string
}

// IsValue reports whether o names a value rather than a type.
func (o *Obj) IsValue() bool {
	return o.Kind == ObjVar || o.Kind == ObjExtern
}

// Exports are the top-level declarations of a checked file, visible
// to files that import it.
type Exports struct {
	Path  string
	Names []string // declaration order, no duplicates
	Objs  map[string]*Obj
}

func (x *Exports) add(name string, o *Obj) {
	if _, exists := x.Objs[name]; !exists {
		x.Names = append(x.Names, name)
	}
	x.Objs[name] = o
}
