// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"neugram.io/tern/codegen"
	"neugram.io/tern/jit"
	"neugram.io/tern/syntax/tipe"
)

// Value is the result of running a program.
type Value struct {
	Type tipe.Type
	Raw  int64 // the result as returned by the code unit

	Str    string  // for str
	Fields []Value // for structs, in declaration order
}

func (v Value) String() string {
	buf := new(bytes.Buffer)
	v.write(buf)
	return buf.String()
}

func (v Value) write(buf *bytes.Buffer) {
	switch t := v.Type.(type) {
	case tipe.Basic:
		switch t {
		case tipe.Integer:
			buf.WriteString(strconv.FormatInt(v.Raw, 10))
		case tipe.Boolean:
			buf.WriteString(strconv.FormatBool(v.Raw != 0))
		case tipe.String:
			buf.WriteString(strconv.Quote(v.Str))
		case tipe.Unit:
			buf.WriteString("()")
		default:
			fmt.Fprintf(buf, "<%s>", t)
		}
	case *tipe.Struct:
		buf.WriteString(t.Name)
		buf.WriteByte('{')
		for i, f := range v.Fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(t.Fields[i].Name)
			buf.WriteString(": ")
			f.write(buf)
		}
		buf.WriteByte('}')
	case *tipe.Func:
		fmt.Fprintf(buf, "fn@%#x", v.Raw)
	default:
		fmt.Fprintf(buf, "<%T>", t)
	}
}

func decode(mem *jit.Memory, t tipe.Type, raw int64) (Value, error) {
	v := Value{Type: t, Raw: raw}
	switch t := t.(type) {
	case tipe.Basic:
		if t == tipe.String {
			s, err := mem.ReadString(raw)
			if err != nil {
				return v, errors.Wrap(err, "tern: decode string result")
			}
			v.Str = s
		}
	case *tipe.Struct:
		offsets, _ := codegen.Layout(t)
		for i, f := range t.Fields {
			r := codegen.Repr(f.Type)
			var fraw int64
			if r != jit.Void {
				var err error
				fraw, err = mem.Load(r, raw+offsets[i])
				if err != nil {
					return v, errors.Wrapf(err, "tern: decode field %s", f.Name)
				}
			}
			fv, err := decode(mem, f.Type, fraw)
			if err != nil {
				return v, err
			}
			v.Fields = append(v.Fields, fv)
		}
	}
	return v, nil
}
