// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package format

import (
	"bytes"
	"strconv"

	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/stmt"
)

func (p *printer) stmt(s stmt.Stmt) {
	switch s := s.(type) {
	case *stmt.Import:
		p.buf.WriteString("import ")
		p.buf.WriteString(strconv.Quote(s.Path))
	case *stmt.TypeDecl:
		p.printf("type %s = ", s.Name)
		p.expandStruct = true
		p.tipe(s.Type)
		p.expandStruct = false
	case *stmt.Var:
		p.printf("let %s", s.Name)
		if s.Type != nil {
			p.buf.WriteString(" ~ ")
			p.tipe(s.Type)
		}
		p.buf.WriteString(" = ")
		p.expr(s.Value)
	case *stmt.Extern:
		p.printf("extern fn %s(", s.Name)
		p.params(s.Params)
		p.buf.WriteString(") -> ")
		p.tipe(s.Result)
	case *stmt.Simple:
		p.expr(s.Expr)
	case *stmt.Bad:
		p.printf("bad(%q)", s.Error)
	default:
		p.printf("format: unknown stmt %T", s)
	}
}

func WriteStmt(buf *bytes.Buffer, s stmt.Stmt) {
	p := printer{buf: buf}
	p.stmt(s)
}

func Stmt(s stmt.Stmt) string {
	buf := new(bytes.Buffer)
	WriteStmt(buf, s)
	return buf.String()
}

// File prints the statements of f one per line, without the wrapper
// declaration the parser adds.
func File(f *syntax.File) string {
	buf := new(bytes.Buffer)
	p := printer{buf: buf}
	body := f.Body()
	for _, s := range body.Stmts {
		p.stmt(s.(stmt.Stmt))
		buf.WriteString(";\n")
	}
	if body.Result != nil {
		p.expr(body.Result)
		buf.WriteByte('\n')
	}
	return buf.String()
}
