// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package format prints tern syntax trees and types as source text.
package format

import (
	"bytes"
	"fmt"
	"strconv"

	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/stmt"
)

type printer struct {
	buf          *bytes.Buffer
	indent       int
	expandStruct bool
}

func (p *printer) expr(e expr.Expr) {
	switch e := e.(type) {
	case nil:
		p.buf.WriteString("<nil>")
	case *expr.Bad:
		fmt.Fprintf(p.buf, "bad(%q)", e.Error)
	case *expr.BasicLiteral:
		switch v := e.Value.(type) {
		case string:
			p.buf.WriteString(strconv.Quote(v))
		default:
			fmt.Fprint(p.buf, v)
		}
	case *expr.Ident:
		p.buf.WriteString(e.Name)
	case *expr.Unary:
		p.buf.WriteString(e.Op.String())
		p.expr(e.Expr)
	case *expr.Binary:
		p.expr(e.Left)
		p.printf(" %s ", e.Op)
		p.expr(e.Right)
	case *expr.Group:
		p.buf.WriteByte('(')
		p.expr(e.Expr)
		p.buf.WriteByte(')')
	case *expr.Block:
		p.block(e)
	case *expr.Cond:
		p.expr(e.Then)
		p.buf.WriteString(" if ")
		p.expr(e.Cond)
		p.buf.WriteString(" else ")
		p.expr(e.Else)
	case *expr.FuncLiteral:
		p.buf.WriteString("fn(")
		p.params(e.Params)
		p.buf.WriteByte(')')
		if e.Result != nil {
			p.buf.WriteString(" -> ")
			p.tipe(e.Result)
		}
		p.buf.WriteByte(' ')
		p.block(e.Body)
	case *expr.Call:
		p.expr(e.Func)
		p.buf.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.expr(arg)
		}
		p.buf.WriteByte(')')
	case *expr.Selector:
		p.expr(e.Left)
		p.buf.WriteByte('.')
		p.buf.WriteString(e.Right.Name)
	case *expr.Assign:
		p.expr(e.Left)
		p.buf.WriteString(" = ")
		p.expr(e.Right)
	case *expr.While:
		p.buf.WriteString("while ")
		p.expr(e.Cond)
		p.buf.WriteByte(' ')
		p.block(e.Body)
	case *expr.StructLiteral:
		p.buf.WriteString(e.Name.Name)
		p.buf.WriteString(" {")
		for i, f := range e.Fields {
			if i > 0 {
				p.buf.WriteByte(',')
			}
			p.printf(" %s: ", f.Name.Name)
			p.expr(f.Value)
		}
		p.buf.WriteString(" }")
	default:
		p.printf("format: unknown expr %T", e)
	}
}

func (p *printer) params(params []expr.Param) {
	for i, param := range params {
		if i > 0 {
			p.buf.WriteString(", ")
		}
		p.buf.WriteString(param.Name)
		p.buf.WriteString(" ~ ")
		p.tipe(param.Type)
	}
}

// block prints a block on one line. Files print their statements
// one per line instead; see File.
func (p *printer) block(b *expr.Block) {
	if b == nil {
		p.buf.WriteString("{}")
		return
	}
	if len(b.Stmts) == 0 && b.Result == nil {
		p.buf.WriteString("{}")
		return
	}
	p.buf.WriteString("{ ")
	for _, s := range b.Stmts {
		p.stmt(s.(stmt.Stmt))
		p.buf.WriteString("; ")
	}
	if b.Result != nil {
		p.expr(b.Result)
		p.buf.WriteByte(' ')
	}
	p.buf.WriteByte('}')
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.buf, format, args...)
}

func (p *printer) newline() {
	p.buf.WriteByte('\n')
	for i := 0; i < p.indent; i++ {
		p.buf.WriteByte('\t')
	}
}

func WriteExpr(buf *bytes.Buffer, e expr.Expr) {
	p := printer{buf: buf}
	p.expr(e)
}

func Expr(e expr.Expr) string {
	buf := new(bytes.Buffer)
	WriteExpr(buf, e)
	return buf.String()
}
