// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import (
	"io"
	"log/slog"
	"runtime/cgo"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"neugram.io/tern/extern"
)

// FuncRef is a handle to a function declared in a Unit. Handles are
// unique across every unit in the process.
type FuncRef struct {
	id ulid.ULID
}

func (r FuncRef) IsZero() bool { return r.id == ulid.ULID{} }

func (r FuncRef) String() string {
	if r.IsZero() {
		return "fn:nil"
	}
	return "fn:" + r.id.String()
}

// DefaultMaxCallDepth bounds the depth of the call stack when
// Options.MaxCallDepth is 0.
const DefaultMaxCallDepth = 10000

// ErrStackExhausted is returned when a call exceeds the maximum
// call depth.
var ErrStackExhausted = errors.New("jit: call stack exhausted")

type Options struct {
	Logger       *slog.Logger
	Stdout       io.Writer // output of host functions, io.Discard if nil
	MaxCallDepth int
	MemoryLimit  int64
}

type funcEntry struct {
	ref       FuncRef
	name      string
	sig       Signature
	body      *Function
	impl      extern.Impl
	hostID    int
	symbol    string
	addr      int64 // machine code
	entry     int64 // trampoline called by Call
	finalized bool
}

// Unit is a code unit: the functions of one compilation and the
// memory they run in. Finalize compiles functions to machine code
// with LLVM's MCJIT.
//
// A Unit has a single writer. Declare, Define, DeclareExtern and
// Finalize must not be called concurrently. The address and signature
// of a finalized function never change and may be read, and the
// function called, from any goroutine.
type Unit struct {
	opts Options
	log  *slog.Logger
	mem  *Memory
	self cgo.Handle

	mu      sync.RWMutex
	funcs   map[FuncRef]*funcEntry
	code    map[int64]*funcEntry // by code address
	order   []*funcEntry         // declaration order
	externs []*funcEntry         // by host call id
	native  *native
	closed  bool

	hostMu  sync.Mutex
	hostErr error
}

func NewUnit(opts Options) *Unit {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	u := &Unit{
		opts:  opts,
		log:   opts.Logger.With("component", "jit"),
		mem:   NewMemory(opts.MemoryLimit),
		funcs: make(map[FuncRef]*funcEntry),
		code:  make(map[int64]*funcEntry),
	}
	u.self = cgo.NewHandle(u)
	return u
}

// Close releases the machine code and memory of the unit. Addresses
// it handed out are invalid afterwards.
func (u *Unit) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	if u.native != nil {
		u.native.dispose()
		u.native = nil
	}
	u.mem.close()
	u.self.Delete()
	u.log.Debug("close", "funcs", len(u.order))
	return nil
}

// Memory returns the unit's address space.
func (u *Unit) Memory() *Memory { return u.mem }

// Declare reserves a handle for a function with the given signature.
// The handle may be called from other functions before its body is
// defined; it must be defined before the next Finalize.
func (u *Unit) Declare(name string, sig Signature) FuncRef {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := &funcEntry{ref: FuncRef{id: ulid.Make()}, name: name, sig: sig}
	u.funcs[e.ref] = e
	u.order = append(u.order, e)
	u.log.Debug("declare", "func", name, "ref", e.ref, "sig", sig)
	return e.ref
}

// DeclareExtern declares a host function. It needs no definition.
func (u *Unit) DeclareExtern(name string, sig Signature, impl extern.Impl) FuncRef {
	ref := u.Declare(name, sig)
	u.mu.Lock()
	e := u.funcs[ref]
	e.impl = impl
	e.hostID = len(u.externs)
	u.externs = append(u.externs, e)
	u.mu.Unlock()
	return ref
}

// Define supplies the body of a declared function.
func (u *Unit) Define(ref FuncRef, f *Function) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	e := u.funcs[ref]
	switch {
	case e == nil:
		return errors.Errorf("jit: define %s: undeclared function", ref)
	case e.impl != nil:
		return errors.Errorf("jit: define %s: %s is an extern", ref, e.name)
	case e.body != nil:
		return errors.Errorf("jit: define %s: %s already defined", ref, e.name)
	case !e.sig.equal(f.Sig):
		return errors.Errorf("jit: define %s: signature %s does not match declaration %s", e.name, f.Sig, e.sig)
	}
	if err := u.verify(f); err != nil {
		return errors.Wrapf(err, "jit: define %s", e.name)
	}
	e.body = f
	u.log.Debug("define", "func", e.name, "blocks", f.NumBlocks())
	return nil
}

// Finalize compiles every function declared since the last Finalize
// into one LLVM module and links it into the unit's engine. It fails
// if a declared function has no definition.
func (u *Unit) Finalize() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return errors.New("jit: finalize of a closed unit")
	}
	var batch []*funcEntry
	for _, e := range u.order {
		if e.finalized {
			continue
		}
		if e.body == nil && e.impl == nil {
			return errors.Errorf("jit: finalize: function %s declared but not defined", e.name)
		}
		batch = append(batch, e)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := u.compile(batch); err != nil {
		return err
	}
	for _, e := range batch {
		e.finalized = true
		u.code[e.addr] = e
	}
	u.log.Debug("finalize", "funcs", len(batch), "modules", u.native.modules)
	return nil
}

// Address returns the address of the machine code of a finalized
// function.
func (u *Unit) Address(ref FuncRef) (int64, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	e := u.funcs[ref]
	if e == nil || !e.finalized {
		return 0, errors.Errorf("jit: %s is not finalized", ref)
	}
	return e.addr, nil
}

// Signature returns the declared signature of ref.
func (u *Unit) Signature(ref FuncRef) (Signature, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	e := u.funcs[ref]
	if e == nil {
		return Signature{}, false
	}
	return e.sig, true
}

// Body returns the definition of ref, nil for externs and undefined
// functions.
func (u *Unit) Body(ref FuncRef) *Function {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if e := u.funcs[ref]; e != nil {
		return e.body
	}
	return nil
}

// StaticData copies b into memory that lives as long as the unit and
// returns its address.
func (u *Unit) StaticData(b []byte) (int64, error) {
	return u.mem.AllocBytes(b)
}

// Lookup returns the most recently declared function called name.
func (u *Unit) Lookup(name string) (FuncRef, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for i := len(u.order) - 1; i >= 0; i-- {
		if e := u.order[i]; e.name == name {
			return e.ref, true
		}
	}
	return FuncRef{}, false
}

func (u *Unit) entryAt(addr int64) (*funcEntry, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return nil, errors.New("jit: call into a closed unit")
	}
	e := u.code[addr]
	if e == nil {
		return nil, errors.Errorf("jit: call of invalid code address %#x", addr)
	}
	return e, nil
}

// Call runs the function at code address addr on the calling thread.
// A trap in generated code unwinds to Call and is returned as an
// error.
func (u *Unit) Call(addr int64, args ...int64) (int64, error) {
	e, err := u.entryAt(addr)
	if err != nil {
		return 0, err
	}
	if len(args) != len(e.sig.Params) {
		return 0, errors.Errorf("jit: %s called with %d arguments, want %d", e.name, len(args), len(e.sig.Params))
	}
	res, code, msg := nativeCall(e.entry, args, u.opts.MaxCallDepth)
	switch code {
	case trapNone:
		return res, nil
	case trapDivZero:
		return 0, errors.Errorf("jit: %s: integer division by zero", msg)
	case trapStack:
		return 0, errors.Wrapf(ErrStackExhausted, "in %s", msg)
	case trapNoMem:
		return 0, ErrOutOfMemory
	case trapHost:
		return 0, u.takeHostErr()
	}
	return 0, errors.Errorf("jit: trap: %s", msg)
}

// ReadString implements extern.Host.
func (u *Unit) ReadString(addr int64) (string, error) {
	return u.mem.ReadString(addr)
}

// Output implements extern.Host.
func (u *Unit) Output() io.Writer { return u.opts.Stdout }

var _ extern.Host = (*Unit)(nil)
