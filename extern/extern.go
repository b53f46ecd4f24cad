// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package extern holds the host functions tern programs may declare
// with `extern fn`.
//
// The type checker consults a Registry to validate extern
// declarations; the code generator links the registered
// implementations into the code unit.
package extern

import (
	"fmt"
	"io"
	"sort"

	"neugram.io/tern/syntax/tipe"
)

// Host is the view of the running program an implementation gets.
type Host interface {
	// ReadString reads the NUL-terminated string at addr.
	ReadString(addr int64) (string, error)
	// Output is where the program's printed output goes.
	Output() io.Writer
}

// Impl implements a host function. Arguments and the result use the
// code unit's representation: integers as themselves, booleans as 0
// or 1, strings as addresses. Functions returning unit return 0.
type Impl func(h Host, args []int64) (int64, error)

// Func is a registered host function.
type Func struct {
	Name string
	Type *tipe.Func
	Impl Impl
}

// Registry maps extern names to host functions.
type Registry struct {
	funcs map[string]*Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*Func)}
}

// Register adds f, replacing any function of the same name.
func (r *Registry) Register(f *Func) {
	r.funcs[f.Name] = f
}

func (r *Registry) Lookup(name string) (*Func, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.funcs[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fn(result tipe.Type, params ...tipe.Type) *tipe.Func {
	return &tipe.Func{Params: params, Result: result}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Builtins returns a registry holding the standard host functions.
func Builtins() *Registry {
	r := NewRegistry()
	r.Register(&Func{
		Name: "print_int",
		Type: fn(tipe.Unit, tipe.Integer),
		Impl: func(h Host, args []int64) (int64, error) {
			_, err := fmt.Fprintln(h.Output(), args[0])
			return 0, err
		},
	})
	r.Register(&Func{
		Name: "print_bool",
		Type: fn(tipe.Unit, tipe.Boolean),
		Impl: func(h Host, args []int64) (int64, error) {
			_, err := fmt.Fprintln(h.Output(), args[0] != 0)
			return 0, err
		},
	})
	r.Register(&Func{
		Name: "puts",
		Type: fn(tipe.Unit, tipe.String),
		Impl: func(h Host, args []int64) (int64, error) {
			s, err := h.ReadString(args[0])
			if err != nil {
				return 0, err
			}
			_, err = fmt.Fprintln(h.Output(), s)
			return 0, err
		},
	})
	r.Register(&Func{
		Name: "strlen",
		Type: fn(tipe.Integer, tipe.String),
		Impl: func(h Host, args []int64) (int64, error) {
			s, err := h.ReadString(args[0])
			return int64(len(s)), err
		},
	})
	r.Register(&Func{
		Name: "abs",
		Type: fn(tipe.Integer, tipe.Integer),
		Impl: func(h Host, args []int64) (int64, error) {
			if args[0] < 0 {
				return -args[0], nil
			}
			return args[0], nil
		},
	})
	r.Register(&Func{
		Name: "min",
		Type: fn(tipe.Integer, tipe.Integer, tipe.Integer),
		Impl: func(h Host, args []int64) (int64, error) {
			if args[1] < args[0] {
				return args[1], nil
			}
			return args[0], nil
		},
	})
	r.Register(&Func{
		Name: "max",
		Type: fn(tipe.Integer, tipe.Integer, tipe.Integer),
		Impl: func(h Host, args []int64) (int64, error) {
			if args[1] > args[0] {
				return args[1], nil
			}
			return args[0], nil
		},
	})
	r.Register(&Func{
		Name: "streq",
		Type: fn(tipe.Boolean, tipe.String, tipe.String),
		Impl: func(h Host, args []int64) (int64, error) {
			a, err := h.ReadString(args[0])
			if err != nil {
				return 0, err
			}
			b, err := h.ReadString(args[1])
			return boolInt(a == b), err
		},
	})
	return r
}
