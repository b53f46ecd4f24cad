// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codegen

import (
	"fmt"

	"neugram.io/tern/jit"
	"neugram.io/tern/syntax/tipe"
)

// Repr is the machine representation of values of type t.
// Strings, structs and functions are addresses.
func Repr(t tipe.Type) jit.Repr {
	switch t := t.(type) {
	case tipe.Basic:
		switch t {
		case tipe.Integer, tipe.String:
			return jit.I64
		case tipe.Boolean:
			return jit.I8
		case tipe.Unit:
			return jit.Void
		}
	case *tipe.Func, *tipe.Struct:
		return jit.I64
	}
	panic(fmt.Sprintf("codegen: no representation for %T %v", t, t))
}

// Signature is the signature of an indirect call of a value of type t.
// Unit parameters are not passed.
func Signature(t *tipe.Func) jit.Signature {
	sig := jit.Signature{Result: Repr(t.Result)}
	for _, p := range t.Params {
		if r := Repr(p); r != jit.Void {
			sig.Params = append(sig.Params, r)
		}
	}
	return sig
}

// Layout returns the byte offset of each field of st and the size of
// st. Fields are laid out in declaration order with no padding.
func Layout(st *tipe.Struct) (offsets []int64, size int64) {
	for _, f := range st.Fields {
		offsets = append(offsets, size)
		size += tipe.Size(f.Type)
	}
	return offsets, size
}

// FieldOffset returns the byte offset of the named field.
func FieldOffset(st *tipe.Struct, name string) (int64, bool) {
	i, _, ok := st.Field(name)
	if !ok {
		return 0, false
	}
	offsets, _ := Layout(st)
	return offsets[i], true
}
