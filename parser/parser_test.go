// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package parser

import (
	"strings"
	"testing"

	"neugram.io/tern/format"
	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
)

type parserTest struct {
	input string
	want  string // format.Debug of the parsed expression
}

var parserTests = []parserTest{
	{"foo", "foo"},
	{"x + y", "(+ x y)"},
	{"x + y + 9", "(+ (+ x y) 9)"},
	{"x + (y + 7)", "(+ x (group (+ y 7)))"},
	{"x + y * z", "(+ x (* y z))"},
	{"1 + 2 * 3 - 4", "(- (+ 1 (* 2 3)) 4)"},
	{"a < b && c || d", "(|| (&& (< a b) c) d)"},
	{"-x * !y", "(* (- x) (! y))"},
	{"quit()", "(call quit)"},
	{"min(1, 2)", "(call min 1 2)"},
	{"f(1)(2)", "(call (call f 1) 2)"},
	{"p.x.y", "(. (. p x) y)"},
	{"true", "true"},
	{`"hi"`, `"hi"`},
	{"x = y = 1", "(= x (= y 1))"},
	{"a if c else b", "(if c a b)"},
	{"a if c1 else b if c2 else d", "(if c1 a (if c2 b d))"},
	{"1 if n < 2 else n * fact(n - 1)", "(if (< n 2) 1 (* n (call fact (- n 1))))"},
	{"{ 1 }", "(block => 1)"},
	{"{ 1; }", "(block 1)"},
	{"{ let x = 1; x }", "(block (let x 1) => x)"},
	{"{}", "(block)"},
	{"fn(x ~ int) -> int { x * x }", "(fn (x~int) int (block => (* x x)))"},
	{"fn() { }", "(fn () (block))"},
	{"while i < n { i = i + 1; }", "(while (< i n) (block (= i (+ i 1))))"},
	{"Point { x: 1, y: 2 }", "(new Point x:1 y:2)"},
	{"Point {}", "(new Point)"},
	{"(fn(x ~ int) -> int { x })(3)", "(call (group (fn (x~int) int (block => x))) 3)"},
}

func TestParseExpr(t *testing.T) {
	for _, test := range parserTests {
		e, err := ParseExpr([]byte(test.input))
		if err != nil {
			t.Errorf("ParseExpr(%q): error: %v", test.input, err)
			continue
		}
		if got := format.Debug(e, false); got != test.want {
			t.Errorf("ParseExpr(%q):\n got: %s\nwant: %s", test.input, got, test.want)
		}
	}
}

func TestParseFileWrapper(t *testing.T) {
	source := `import "lib.tn";
type Point = struct { x ~ int, y ~ int };
extern fn print_int(x ~ int) -> unit;
let f = fn(x ~ int) -> int { x * x };
f(7)
`
	f, err := ParseFile("main.tn", []byte(source))
	if err != nil {
		t.Fatal(err)
	}
	if f.Main.Name != syntax.MainName {
		t.Errorf("wrapper name = %q", f.Main.Name)
	}
	fn, ok := f.Main.Value.(*expr.FuncLiteral)
	if !ok {
		t.Fatalf("wrapper value is %T", f.Main.Value)
	}
	if len(fn.Params) != 0 || fn.Result != nil {
		t.Errorf("wrapper signature has params or a result")
	}
	body := f.Body()
	if len(body.Stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(body.Stmts))
	}
	if body.Result == nil {
		t.Fatalf("missing result expression")
	}

	decls := syntax.Decls(f)
	wantDecls := []struct {
		kind syntax.DeclKind
		name string
	}{
		{syntax.DeclType, "Point"},
		{syntax.DeclExtern, "print_int"},
		{syntax.DeclVar, "f"},
	}
	if len(decls) != len(wantDecls) {
		t.Fatalf("got %d decls, want %d", len(decls), len(wantDecls))
	}
	for i, d := range decls {
		if d.Kind != wantDecls[i].kind || d.Name != wantDecls[i].name {
			t.Errorf("decl %d = %s %s, want %s %s", i, d.Kind, d.Name, wantDecls[i].kind, wantDecls[i].name)
		}
	}
	imports := syntax.Imports(f)
	if len(imports) != 1 || imports[0].Path != "lib.tn" {
		t.Errorf("imports = %v", imports)
	}

	td := body.Stmts[1].(*stmt.TypeDecl)
	st, ok := td.Type.(*tipe.Struct)
	if !ok || st.Name != "Point" || len(st.Fields) != 2 {
		t.Errorf("type decl = %#v", td.Type)
	}
	v := body.Stmts[3].(*stmt.Var)
	if lit := v.Value.(*expr.FuncLiteral); lit.Name != "f" {
		t.Errorf("function literal name = %q, want f", lit.Name)
	}
}

func TestPositions(t *testing.T) {
	f, err := ParseFile("pos.tn", []byte("let x = 1;\nlet y = x +\n  zz;\n"))
	if err != nil {
		t.Fatal(err)
	}
	v := f.Body().Stmts[1].(*stmt.Var)
	b := v.Value.(*expr.Binary)
	zz := b.Right.(*expr.Ident)
	if zz.Pos().Line != 3 || zz.Pos().Column != 3 {
		t.Errorf("zz at %s, want pos.tn:3:3", zz.Pos())
	}
	if got := zz.Span().Text([]byte("let x = 1;\nlet y = x +\n  zz;\n")); got != "zz" {
		t.Errorf("zz span text = %q", got)
	}
	if b.Pos().Line != 2 || b.Pos().Column != 9 {
		t.Errorf("binary at %s, want pos.tn:2:9", b.Pos())
	}
}

var errorTests = []struct {
	input string
	want  string
}{
	{"let = 1", `expected "ident"`},
	{"1 +", "expected operand"},
	{"f(1, 2", `expected ")"`},
	{"let x = 1 let y = 2", `expected ";"`},
	{"3 = 4", "cannot assign to a literal"},
	{`"unterminated`, "string literal not terminated"},
	{"a if b", `expected "else"`},
	{"x @ y", "unexpected character"},
}

func TestParseErrors(t *testing.T) {
	for _, test := range errorTests {
		_, err := ParseFile("err.tn", []byte(test.input))
		if err == nil {
			t.Errorf("ParseFile(%q): no error, want %q", test.input, test.want)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("ParseFile(%q): error %v, want %q", test.input, err, test.want)
		}
	}
}

func TestDeepNesting(t *testing.T) {
	src := strings.Repeat("(", MaxDepth+10) + "1" + strings.Repeat(")", MaxDepth+10)
	_, err := ParseExpr([]byte(src))
	if err == nil || !strings.Contains(err.Error(), "nested too deeply") {
		t.Errorf("deep nesting: err = %v", err)
	}
}
