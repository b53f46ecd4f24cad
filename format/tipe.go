// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package format

import (
	"bytes"

	"neugram.io/tern/syntax/tipe"
)

func (p *printer) tipe(t tipe.Type) {
	if t == nil {
		p.buf.WriteString("<nil>")
		return
	}
	switch t := t.(type) {
	case tipe.Basic:
		p.buf.WriteString(string(t))
	case *tipe.Struct:
		if t.Name != "" && !p.expandStruct {
			p.buf.WriteString(t.Name)
			return
		}
		p.expandStruct = false
		if len(t.Fields) == 0 {
			p.buf.WriteString("struct {}")
			return
		}
		p.buf.WriteString("struct { ")
		for i, sf := range t.Fields {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.buf.WriteString(sf.Name)
			p.buf.WriteString(" ~ ")
			p.tipe(sf.Type)
		}
		p.buf.WriteString(" }")
	case *tipe.Func:
		p.buf.WriteString("fn(")
		for i, param := range t.Params {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.tipe(param)
		}
		p.buf.WriteString(") -> ")
		p.tipe(t.Result)
	case *tipe.Unresolved:
		p.buf.WriteString(t.Name)
	default:
		p.printf("format: unknown type %T", t)
	}
}

func WriteType(buf *bytes.Buffer, t tipe.Type) {
	p := printer{buf: buf}
	p.tipe(t)
}

// Type formats t the way it is written in source. Declared struct
// types are printed by name.
func Type(t tipe.Type) string {
	buf := new(bytes.Buffer)
	WriteType(buf, t)
	return buf.String()
}

// TypeExpanded formats t, spelling out a declared struct's fields.
func TypeExpanded(t tipe.Type) string {
	buf := new(bytes.Buffer)
	p := printer{buf: buf, expandStruct: true}
	p.tipe(t)
	return buf.String()
}
