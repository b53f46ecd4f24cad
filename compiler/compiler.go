// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compiler drives the tern pipeline: it loads a program and
// its imports, type checks and compiles each module into one code
// unit, and runs the result.
//
// This package is designed for embedding tern into a program.
package compiler

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"

	"neugram.io/tern/codegen"
	"neugram.io/tern/extern"
	"neugram.io/tern/jit"
	"neugram.io/tern/modcache"
	"neugram.io/tern/module"
	"neugram.io/tern/syntax/tipe"
	"neugram.io/tern/typecheck"
)

type Options struct {
	Logger  *slog.Logger
	Externs *extern.Registry // extern.Builtins() if nil
	Stdout  io.Writer        // output of the program, os.Stdout if nil

	MaxCallDepth int

	// Cache, if set, records the modules of every successful build.
	Cache *modcache.Cache

	// ReadFile reads source files. If nil, os.ReadFile is used.
	ReadFile func(path string) ([]byte, error)
}

func (opts *Options) defaults() {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Externs == nil {
		opts.Externs = extern.Builtins()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
}

// Phases of compilation, as reported in Error.
const (
	PhaseLoad      = "load"
	PhaseParse     = "parse"
	PhaseTypecheck = "typecheck"
	PhaseCodegen   = "codegen"
	PhaseInternal  = "internal"
)

// Error is a compilation failure in one module. Source is that
// module's text, so diagnostics can be printed against the right file.
type Error struct {
	Phase  string
	Module string
	Source []byte
	Err    error
}

func (e *Error) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("tern: %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("tern: %s: %s: %v", e.Phase, e.Module, e.Err)
}

func (e *Error) Cause() error { return e.Err }

// Program is a compiled program.
type Program struct {
	Path    string
	Modules []string // canonical paths, dependencies first
	Type    tipe.Type

	unit *jit.Unit
	addr int64
}

// Run calls the program's entry function and decodes its result.
func (p *Program) Run() (Value, error) {
	raw, err := p.unit.Call(p.addr)
	if err != nil {
		return Value{}, errors.Wrap(err, "tern: run")
	}
	return decode(p.unit.Memory(), p.Type, raw)
}

// Addr returns the address of the machine code of the program's entry
// function, 0 for a program that was only checked.
func (p *Program) Addr() int64 { return p.addr }

// Close releases the program's code and memory.
func (p *Program) Close() error {
	if p.unit == nil {
		return nil
	}
	return p.unit.Close()
}

// CompileFile compiles the program at path and the modules it imports.
func CompileFile(opts Options, path string) (*Program, error) {
	opts.defaults()
	b := &build{opts: opts}
	return b.compile(path, false)
}

// CompileSource compiles source as if it were the file name. Imports
// are resolved relative to the directory of name.
func CompileSource(opts Options, name string, source []byte) (*Program, error) {
	opts.defaults()
	path, err := module.Canonical(name)
	if err != nil {
		return nil, &Error{Phase: PhaseLoad, Module: name, Err: err}
	}
	read := opts.ReadFile
	opts.ReadFile = func(p string) ([]byte, error) {
		if p == path {
			return source, nil
		}
		return read(p)
	}
	b := &build{opts: opts}
	return b.compile(path, false)
}

// Check loads and type checks the program at path without compiling it.
func Check(opts Options, path string) error {
	opts.defaults()
	b := &build{opts: opts}
	_, err := b.compile(path, true)
	return err
}

// build is one compilation. All modules share its unit.
type build struct {
	opts Options
	unit *jit.Unit

	cur *module.Module // module being compiled, for internal errors
}

func (b *build) compile(path string, checkOnly bool) (p *Program, err error) {
	log := b.opts.Logger.With("component", "compiler")
	defer func() {
		if x := recover(); x != nil {
			e := &Error{Phase: PhaseInternal, Err: errors.Errorf("%v", x)}
			if b.cur != nil {
				e.Module, e.Source = b.cur.Path, b.cur.Source
			}
			log.Error("internal compiler error", "err", e)
			p, err = nil, e
		}
	}()

	start := time.Now()
	loader := module.NewLoader(module.Options{Logger: b.opts.Logger, ReadFile: b.opts.ReadFile})
	root, err := loader.Load(path)
	if err != nil {
		return nil, loadError(path, err)
	}
	ms, err := loader.InDependencyOrder()
	if err != nil {
		return nil, loadError(path, err)
	}
	log.Info("loaded", "path", root.Path, "modules", len(ms), "elapsed", time.Since(start))

	start = time.Now()
	checked := make(map[string]*typecheck.Result)
	for _, m := range ms {
		b.cur = m
		imports := make(map[string]*typecheck.Exports)
		for imp, dep := range m.Imports {
			imports[imp] = checked[dep].Exports
		}
		res, diags := typecheck.Check(m.File, typecheck.Options{
			Externs: b.opts.Externs,
			Imports: imports,
			Path:    m.Path,
		})
		if diags != nil {
			return nil, &Error{Phase: PhaseTypecheck, Module: m.Path, Source: m.Source, Err: diags}
		}
		checked[m.Path] = res
	}
	log.Info("checked", "path", root.Path, "elapsed", time.Since(start))
	b.cur = nil

	var paths []string
	for _, m := range ms {
		paths = append(paths, m.Path)
	}
	rootRes := checked[root.Path]
	p = &Program{Path: root.Path, Modules: paths, Type: rootRes.File.Func().FuncType().Result}
	if checkOnly {
		return p, nil
	}

	start = time.Now()
	b.unit = jit.NewUnit(jit.Options{
		Logger:       b.opts.Logger,
		Stdout:       b.opts.Stdout,
		MaxCallDepth: b.opts.MaxCallDepth,
	})
	done := false
	defer func() {
		if !done {
			b.unit.Close()
		}
	}()
	compiled := make(map[string]codegen.Exports)
	for _, m := range ms {
		b.cur = m
		imports := make(map[string]codegen.Exports)
		for imp, dep := range m.Imports {
			imports[imp] = compiled[dep]
		}
		g := codegen.New(b.unit, codegen.Options{
			Logger:  b.opts.Logger,
			Externs: b.opts.Externs,
			Imports: imports,
		})
		if m != root {
			x, err := g.CompileLibrary(checked[m.Path].File)
			if err != nil {
				return nil, &Error{Phase: PhaseCodegen, Module: m.Path, Source: m.Source, Err: err}
			}
			compiled[m.Path] = x
			continue
		}
		prog, err := g.CompileProgram(checked[m.Path].File)
		if err != nil {
			return nil, &Error{Phase: PhaseCodegen, Module: m.Path, Source: m.Source, Err: err}
		}
		p.unit, p.addr = b.unit, prog.Addr
	}
	b.cur = nil
	log.Info("compiled", "path", root.Path, "elapsed", time.Since(start))

	if b.opts.Cache != nil {
		if err := b.opts.Cache.Record(root.Path, ms); err != nil {
			log.Warn("recording build failed", "err", err)
		}
	}
	done = true
	return p, nil
}

func loadError(path string, err error) error {
	if perr, ok := err.(*module.ParseError); ok {
		return &Error{Phase: PhaseParse, Module: perr.Path, Source: perr.Source, Err: perr.Err}
	}
	return &Error{Phase: PhaseLoad, Module: path, Err: err}
}
