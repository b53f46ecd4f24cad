// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compiler

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"neugram.io/tern/parser"
	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
	"neugram.io/tern/syntax/token"
)

// Session is an interactive sequence of inputs. Each input is
// compiled as a whole program together with the declarations of the
// inputs accepted before it, so declarations are evaluated again on
// every input.
type Session struct {
	opts Options
	path string // the program file inputs pretend to be

	decls []string // source of accepted declarations
	names map[string]bool

	ExecCount int // number of inputs executed
}

// NewSession starts a session. Imports are resolved relative to the
// directory of path.
func NewSession(opts Options, path string) *Session {
	opts.defaults()
	return &Session{opts: opts, path: path, names: make(map[string]bool)}
}

// Exec compiles and runs src. If it succeeds, the declarations in src
// are kept for later inputs.
func (s *Session) Exec(src []byte) (Value, error) {
	s.ExecCount++
	prog := strings.Join(append(append([]string(nil), s.decls...), string(src)), "\n")
	p, err := CompileSource(s.opts, s.path, []byte(prog))
	if err != nil {
		return Value{}, err
	}
	defer p.Close()
	v, err := p.Run()
	if err != nil {
		return Value{}, err
	}
	s.keep(src)
	return v, nil
}

func (s *Session) keep(src []byte) {
	f, err := parser.ParseFile(s.path, src)
	if err != nil {
		return
	}
	for _, st := range f.Body().Stmts {
		switch st.(type) {
		case *stmt.Var, *stmt.TypeDecl, *stmt.Extern, *stmt.Import:
		default:
			continue
		}
		text := strings.TrimSpace(st.Span().Text(src))
		if !strings.HasSuffix(text, ";") {
			text += ";"
		}
		s.decls = append(s.decls, text)
	}
	for _, d := range syntax.Decls(f) {
		s.names[d.Name] = true
	}
}

// Declarations returns the source of the declarations kept so far.
func (s *Session) Declarations() []string {
	return append([]string(nil), s.decls...)
}

// Display writes v to w. Unit values are not displayed.
func (s *Session) Display(w io.Writer, v Value) {
	if v.Type == nil || v.Type == tipe.Unit {
		return
	}
	fmt.Fprintln(w, v)
}

// Completer completes the word before pos from keywords, declared
// names and extern functions. It has the signature of a
// liner.WordCompleter.
func (s *Session) Completer(line string, pos int) (prefix string, completions []string, suffix string) {
	if pos != len(line) || strings.TrimSpace(line) == "" {
		return line, nil, ""
	}
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) + 1
	word := line[start:]
	if word == "" {
		return line, nil, ""
	}

	seen := make(map[string]bool)
	add := func(name string) {
		if strings.HasPrefix(name, word) && !seen[name] {
			seen[name] = true
			completions = append(completions, name)
		}
	}
	for kw := range token.Keywords {
		add(kw)
	}
	for name := range s.names {
		add(name)
	}
	for _, name := range s.opts.Externs.Names() {
		add(name)
	}
	sort.Strings(completions)
	return line[:start], completions, ""
}
