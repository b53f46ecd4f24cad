// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package format

import (
	"bytes"
	"fmt"
	"strconv"

	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/stmt"
)

// Debug prints e as a fully parenthesized S-expression. When typed is
// set, each expression is followed by ":type".
func Debug(e expr.Expr, typed bool) string {
	d := debugger{buf: new(bytes.Buffer), typed: typed}
	d.expr(e)
	return d.buf.String()
}

type debugger struct {
	buf   *bytes.Buffer
	typed bool
}

func (d *debugger) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.buf, format, args...)
}

func (d *debugger) expr(e expr.Expr) {
	switch e := e.(type) {
	case nil:
		d.buf.WriteString("nil")
		return
	case *expr.Bad:
		d.buf.WriteString("(bad)")
	case *expr.BasicLiteral:
		if s, ok := e.Value.(string); ok {
			d.buf.WriteString(strconv.Quote(s))
		} else {
			d.printf("%v", e.Value)
		}
	case *expr.Ident:
		d.buf.WriteString(e.Name)
	case *expr.Unary:
		d.printf("(%s ", e.Op)
		d.expr(e.Expr)
		d.buf.WriteByte(')')
	case *expr.Binary:
		d.printf("(%s ", e.Op)
		d.expr(e.Left)
		d.buf.WriteByte(' ')
		d.expr(e.Right)
		d.buf.WriteByte(')')
	case *expr.Group:
		d.buf.WriteString("(group ")
		d.expr(e.Expr)
		d.buf.WriteByte(')')
	case *expr.Block:
		d.buf.WriteString("(block")
		for _, s := range e.Stmts {
			d.buf.WriteByte(' ')
			d.stmt(s.(stmt.Stmt))
		}
		if e.Result != nil {
			d.buf.WriteString(" => ")
			d.expr(e.Result)
		}
		d.buf.WriteByte(')')
	case *expr.Cond:
		d.buf.WriteString("(if ")
		d.expr(e.Cond)
		d.buf.WriteByte(' ')
		d.expr(e.Then)
		d.buf.WriteByte(' ')
		d.expr(e.Else)
		d.buf.WriteByte(')')
	case *expr.FuncLiteral:
		d.buf.WriteString("(fn (")
		for i, p := range e.Params {
			if i > 0 {
				d.buf.WriteByte(' ')
			}
			d.printf("%s~%s", p.Name, Type(p.Type))
		}
		d.buf.WriteString(") ")
		if e.Result != nil {
			d.printf("%s ", Type(e.Result))
		}
		d.expr(e.Body)
		d.buf.WriteByte(')')
	case *expr.Call:
		d.buf.WriteString("(call ")
		d.expr(e.Func)
		for _, a := range e.Args {
			d.buf.WriteByte(' ')
			d.expr(a)
		}
		d.buf.WriteByte(')')
	case *expr.Selector:
		d.buf.WriteString("(. ")
		d.expr(e.Left)
		d.printf(" %s)", e.Right.Name)
	case *expr.Assign:
		d.printf("(= %s ", e.Left.Name)
		d.expr(e.Right)
		d.buf.WriteByte(')')
	case *expr.While:
		d.buf.WriteString("(while ")
		d.expr(e.Cond)
		d.buf.WriteByte(' ')
		d.expr(e.Body)
		d.buf.WriteByte(')')
	case *expr.StructLiteral:
		d.printf("(new %s", e.Name.Name)
		for _, f := range e.Fields {
			d.printf(" %s:", f.Name.Name)
			d.expr(f.Value)
		}
		d.buf.WriteByte(')')
	default:
		d.printf("(unknown %T)", e)
	}
	if d.typed {
		d.printf(":%s", Type(e.Tipe()))
	}
}

func (d *debugger) stmt(s stmt.Stmt) {
	switch s := s.(type) {
	case *stmt.Var:
		d.printf("(let %s ", s.Name)
		d.expr(s.Value)
		d.buf.WriteByte(')')
	case *stmt.Simple:
		d.expr(s.Expr)
	default:
		d.printf("(%s)", Stmt(s))
	}
}
