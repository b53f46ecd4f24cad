// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"golang.org/x/tools/txtar"

	"neugram.io/tern/diag"
	"neugram.io/tern/modcache"
	"neugram.io/tern/module"
)

var fileTests = []struct {
	file string
	want string
	out  string
}{
	{"sum.tn", "5000050000", ""},
	{"fact.tn", "120", ""},
	{"collatz.tn", "111", ""},
	{"point.tn", "Point{x: 3, y: 4, on: true}", ""},
	{"name.tn", `"tern"`, ""},
	{"hello.tn", "()", "hello, tern\n0\n1\n4\n"},
}

func TestFiles(t *testing.T) {
	for _, test := range fileTests {
		var out bytes.Buffer
		p, err := CompileFile(Options{Stdout: &out}, filepath.Join("testdata", test.file))
		if err != nil {
			t.Errorf("%s: %v", test.file, err)
			continue
		}
		v, err := p.Run()
		if err != nil {
			t.Errorf("%s: run: %v", test.file, err)
			continue
		}
		if got := v.String(); got != test.want {
			t.Errorf("%s = %s, want %s", test.file, got, test.want)
		}
		if got := out.String(); got != test.out {
			t.Errorf("%s: output %q, want %q", test.file, got, test.out)
		}
	}
}

func extract(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(dir, f.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	dir, err := module.Canonical(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

const modules = `
-- main.tn --
import "geom/vec.tn";
import "geom/area.tn";
let v = Vec { x: 3, y: 4 };
area(v) + dot(v, v)
-- geom/vec.tn --
type Vec = struct { x ~ int, y ~ int };
let dot = fn(a ~ Vec, b ~ Vec) -> int { a.x * b.x + a.y * b.y };
-- geom/area.tn --
import "vec.tn";
let area = fn(v ~ Vec) -> int { v.x * v.y };
`

func TestModules(t *testing.T) {
	dir := extract(t, modules)
	p, err := CompileFile(Options{}, filepath.Join(dir, "main.tn"))
	if err != nil {
		t.Fatal(err)
	}
	var rel []string
	for _, m := range p.Modules {
		r, _ := filepath.Rel(dir, m)
		rel = append(rel, filepath.ToSlash(r))
	}
	if want := []string{"geom/vec.tn", "geom/area.tn", "main.tn"}; !reflect.DeepEqual(rel, want) {
		t.Errorf("modules %v, want %v", rel, want)
	}
	v, err := p.Run()
	if err != nil {
		t.Fatal(err)
	}
	if got := v.String(); got != "37" {
		t.Errorf("result %s, want 37", got)
	}
}

var moduleErrorTests = []struct {
	name    string
	archive string
	phase   string
	module  string // failing module, relative
	source  string // text found in the reported source
}{
	{
		name: "type error in import",
		archive: `
-- main.tn --
import "lib.tn";
one()
-- lib.tn --
let one = fn() -> int { true };
`,
		phase:  PhaseTypecheck,
		module: "lib.tn",
		source: "{ true }",
	},
	{
		name: "parse error in import",
		archive: `
-- main.tn --
import "lib.tn";
1
-- lib.tn --
let one = ;
`,
		phase:  PhaseParse,
		module: "lib.tn",
		source: "let one = ;",
	},
	{
		name: "statement at library top level",
		archive: `
-- main.tn --
import "lib.tn";
1
-- lib.tn --
let one = 1;
`,
		phase:  PhaseCodegen,
		module: "lib.tn",
		source: "let one = 1;",
	},
	{
		name: "type error in main",
		archive: `
-- main.tn --
import "lib.tn";
one() + true
-- lib.tn --
let one = fn() -> int { 1 };
`,
		phase:  PhaseTypecheck,
		module: "main.tn",
		source: "one() + true",
	},
}

func TestModuleErrors(t *testing.T) {
	for _, test := range moduleErrorTests {
		dir := extract(t, test.archive)
		_, err := CompileFile(Options{}, filepath.Join(dir, "main.tn"))
		cerr, ok := err.(*Error)
		if !ok {
			t.Errorf("%s: err = %v, want *Error", test.name, err)
			continue
		}
		if cerr.Phase != test.phase {
			t.Errorf("%s: phase %s, want %s", test.name, cerr.Phase, test.phase)
		}
		if want := filepath.Join(dir, test.module); cerr.Module != want {
			t.Errorf("%s: module %s, want %s", test.name, cerr.Module, want)
		}
		if !strings.Contains(string(cerr.Source), test.source) {
			t.Errorf("%s: source %q does not contain %q", test.name, cerr.Source, test.source)
		}
	}
}

func TestTypecheckDiagnostics(t *testing.T) {
	_, err := CompileSource(Options{}, "in.tn", []byte("let result = 1; resutl + true"))
	diags, ok := errors.Cause(err).(diag.List)
	if !ok {
		t.Fatalf("cause %T, want diag.List", errors.Cause(err))
	}
	if diags.Count(diag.DeclarationNotFound) != 1 {
		t.Errorf("got %v, want one declaration not found", diags)
	}
}

func TestCycle(t *testing.T) {
	dir := extract(t, `
-- a.tn --
import "b.tn";
1
-- b.tn --
import "a.tn";
let f = fn() -> int { 2 };
`)
	err := Check(Options{}, filepath.Join(dir, "a.tn"))
	cerr, ok := errors.Cause(err).(*module.CircularDependencyError)
	if !ok {
		t.Fatalf("err = %v, want a circular dependency", err)
	}
	if len(cerr.Cycle) != 3 {
		t.Errorf("cycle %v, want a -> b -> a", cerr.Cycle)
	}
	for _, name := range []string{"a.tn", "b.tn"} {
		if !strings.Contains(err.Error(), filepath.Join(dir, name)) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check(Options{}, filepath.Join("testdata", "sum.tn")); err != nil {
		t.Error(err)
	}
	err := Check(Options{}, filepath.Join("testdata", "missing.tn"))
	if !os.IsNotExist(errors.Cause(err)) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestRuntimeError(t *testing.T) {
	p, err := CompileSource(Options{MaxCallDepth: 100}, "deep.tn", []byte("let f = fn(n ~ int) -> int { 0 if n < 1 else 1 + f(n - 1) }; f(1000)"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(); err == nil || !strings.Contains(err.Error(), "call stack exhausted") {
		t.Errorf("err = %v, want call stack exhausted", err)
	}
}

func TestProgramClose(t *testing.T) {
	p, err := CompileSource(Options{}, "close.tn", []byte("let s = \"done\"; s"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Addr() == 0 {
		t.Error("program has no entry address")
	}
	v, err := p.Run()
	if err != nil {
		t.Fatal(err)
	}
	if got := v.String(); got != `"done"` {
		t.Errorf("got %s, want %q", got, "done")
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(); err == nil {
		t.Error("run after Close succeeded")
	}
}

func TestStart(t *testing.T) {
	c := Start(context.Background(), Options{}, filepath.Join("testdata", "fact.tn"))
	res, ok := <-c
	if !ok {
		t.Fatal("no result")
	}
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	v, err := res.Program.Run()
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "120" {
		t.Errorf("fact.tn = %s, want 120", v)
	}
	if _, ok := <-c; ok {
		t.Error("second result delivered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = <-Start(ctx, Options{}, filepath.Join("testdata", "fact.tn"))
	if res.Err != context.Canceled || res.Program != nil {
		t.Errorf("canceled start: %+v", res)
	}
}

func TestCache(t *testing.T) {
	cache, err := modcache.Open(":memory:", modcache.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	dir := extract(t, modules)
	main := filepath.Join(dir, "main.tn")
	if _, err := CompileFile(Options{Cache: cache}, main); err != nil {
		t.Fatal(err)
	}
	stale, err := cache.Stale(main)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("stale after build: %v", stale)
	}

	vec := filepath.Join(dir, "geom", "vec.tn")
	if err := os.WriteFile(vec, []byte("type Vec = struct { x ~ int, y ~ int };\nlet dot = fn(a ~ Vec, b ~ Vec) -> int { 0 };\n"), 0644); err != nil {
		t.Fatal(err)
	}
	stale, err = cache.Stale(main)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{vec}; !reflect.DeepEqual(stale, want) {
		t.Errorf("stale %v, want %v", stale, want)
	}
}

func TestSession(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(Options{Stdout: &out}, filepath.Join(t.TempDir(), "session.tn"))

	inputs := []struct {
		src  string
		want string
		err  bool
	}{
		{src: "let x = 4;", want: "()"},
		{src: "let sq = fn(n ~ int) -> int { n * n };", want: "()"},
		{src: "sq(x) + 1", want: "17"},
		{src: "let y = nope;", err: true},
		{src: "y", err: true},
		{src: "x = 10; x", want: "10"},
		{src: "x", want: "4"},
	}
	for _, in := range inputs {
		v, err := s.Exec([]byte(in.src))
		if in.err {
			if err == nil {
				t.Errorf("%s: no error", in.src)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", in.src, err)
			continue
		}
		if got := v.String(); got != in.want {
			t.Errorf("%s = %s, want %s", in.src, got, in.want)
		}
	}
	if s.ExecCount != len(inputs) {
		t.Errorf("ExecCount = %d, want %d", s.ExecCount, len(inputs))
	}
	if got := len(s.Declarations()); got != 2 {
		t.Errorf("kept %d declarations, want 2: %v", got, s.Declarations())
	}

	s.Display(&out, Value{})
	if out.Len() != 0 {
		t.Errorf("displayed %q", out.String())
	}

	_, completions, _ := s.Completer("let z = s", len("let z = s"))
	if want := []string{"sq", "strlen", "struct"}; !reflect.DeepEqual(completions, want) {
		t.Errorf("completions %v, want %v", completions, want)
	}
}
