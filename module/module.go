// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package module loads a tern program and the files it imports.
//
// Modules are keyed by canonical path. Each is read and parsed once,
// however many files import it. Import paths are resolved relative
// to the directory of the importing file.
package module

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"neugram.io/tern/parser"
	"neugram.io/tern/syntax"
)

// Module is a loaded source file.
type Module struct {
	Path   string // canonical
	Source []byte
	File   *syntax.File
	Decls  []syntax.Decl

	// Imports maps each import path, as written, to the canonical
	// path of the imported module, in source order of first import.
	Imports map[string]string
	Deps    []string
}

type Options struct {
	Logger *slog.Logger

	// Parse parses a file. If nil, parser.ParseFile is used.
	Parse func(path string, source []byte) (*syntax.File, error)

	// ReadFile reads a file. If nil, os.ReadFile is used.
	ReadFile func(path string) ([]byte, error)
}

// CircularDependencyError reports an import cycle. Cycle starts and
// ends with the same path.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "module: circular dependency: " + strings.Join(e.Cycle, " -> ")
}

// ParseError is a failure to parse a module. Source is the text of
// the module that failed, not of its importer.
type ParseError struct {
	Path   string
	Source []byte
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("module: parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Cause() error { return e.Err }

type state int

const (
	unvisited state = iota
	loading
	loaded
)

// Loader loads modules. A Loader is not safe for concurrent use.
type Loader struct {
	opts Options
	log  *slog.Logger

	state   map[string]state
	modules map[string]*Module
	order   []string // load order
	stack   []string // modules being loaded
}

func NewLoader(opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Parse == nil {
		opts.Parse = parser.ParseFile
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	return &Loader{
		opts:    opts,
		log:     opts.Logger.With("component", "module"),
		state:   make(map[string]state),
		modules: make(map[string]*Module),
	}
}

// Canonical returns the canonical form of path: absolute, cleaned,
// with symbolic links resolved when the file exists.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "module: resolve %s", path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// Resolve returns the path of an import written in the module at from.
func Resolve(from, imp string) string {
	if filepath.IsAbs(imp) {
		return filepath.Clean(imp)
	}
	return filepath.Join(filepath.Dir(from), imp)
}

// Load loads the module at path and, recursively, everything it
// imports.
func (l *Loader) Load(path string) (*Module, error) {
	path, err := Canonical(path)
	if err != nil {
		return nil, err
	}
	switch l.state[path] {
	case loaded:
		l.log.Debug("module already loaded", "path", path)
		return l.modules[path], nil
	case loading:
		i := 0
		for l.stack[i] != path {
			i++
		}
		cycle := append(append([]string(nil), l.stack[i:]...), path)
		l.log.Warn("import cycle", "cycle", cycle)
		return nil, &CircularDependencyError{Cycle: cycle}
	}

	l.state[path] = loading
	l.stack = append(l.stack, path)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

	source, err := l.opts.ReadFile(path)
	if err != nil {
		delete(l.state, path)
		return nil, errors.Wrapf(err, "module: read %s", path)
	}
	f, err := l.opts.Parse(path, source)
	if err != nil {
		delete(l.state, path)
		return nil, &ParseError{Path: path, Source: source, Err: err}
	}
	l.log.Debug("parsed module", "path", path, "bytes", len(source))

	m := &Module{
		Path:    path,
		Source:  source,
		File:    f,
		Decls:   syntax.Decls(f),
		Imports: make(map[string]string),
	}
	for _, imp := range syntax.Imports(f) {
		dep, err := l.Load(Resolve(path, imp.Path))
		if err != nil {
			delete(l.state, path)
			return nil, err
		}
		if _, dup := m.Imports[imp.Path]; !dup {
			m.Imports[imp.Path] = dep.Path
			m.Deps = append(m.Deps, dep.Path)
		}
	}

	l.state[path] = loaded
	l.modules[path] = m
	l.order = append(l.order, path)
	return m, nil
}

// Module returns the loaded module at canonical path.
func (l *Loader) Module(path string) (*Module, bool) {
	m, ok := l.modules[path]
	return m, ok
}

// Modules returns the loaded modules sorted by path.
func (l *Loader) Modules() []*Module {
	paths := make([]string, 0, len(l.modules))
	for p := range l.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	ms := make([]*Module, len(paths))
	for i, p := range paths {
		ms[i] = l.modules[p]
	}
	return ms
}

// InDependencyOrder returns the loaded modules with every module
// after the modules it imports.
func (l *Loader) InDependencyOrder() ([]*Module, error) {
	var res []*Module
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(path string) error
	visit = func(path string) error {
		if visited[path] {
			return nil
		}
		if onStack[path] {
			i := 0
			for stack[i] != path {
				i++
			}
			return &CircularDependencyError{Cycle: append(append([]string(nil), stack[i:]...), path)}
		}
		m := l.modules[path]
		if m == nil {
			return errors.Errorf("module: %s is not loaded", path)
		}
		onStack[path] = true
		stack = append(stack, path)
		for _, dep := range m.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		onStack[path] = false
		visited[path] = true
		res = append(res, m)
		return nil
	}
	for _, path := range l.order {
		if err := visit(path); err != nil {
			return nil, err
		}
	}
	return res, nil
}
