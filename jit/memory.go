// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import (
	"sync"

	"github.com/pkg/errors"
)

// Memory is the native memory a program runs in. Addresses are real
// pointers, read and written directly by generated code. Memory is a
// bump allocator: nothing is freed until the unit is closed.
type Memory struct {
	mu     sync.RWMutex
	arena  arena
	closed bool
}

// DefaultMemoryLimit bounds the total size of a program's memory.
const DefaultMemoryLimit = 1 << 30

// ErrOutOfMemory is returned when an allocation exceeds the limit.
var ErrOutOfMemory = errors.New("jit: out of memory")

var errMemoryClosed = errors.New("jit: memory of a closed unit")

func NewMemory(limit int64) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{arena: newArena(limit)}
}

// Alloc returns the address of size fresh zero bytes.
func (m *Memory) Alloc(size int64) (int64, error) {
	if size < 0 {
		return 0, errors.Errorf("jit: negative allocation size %d", size)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, errMemoryClosed
	}
	addr := m.arena.alloc(size)
	if addr == 0 {
		return 0, ErrOutOfMemory
	}
	return addr, nil
}

// AllocBytes copies b into fresh memory.
func (m *Memory) AllocBytes(b []byte) (int64, error) {
	addr, err := m.Alloc(int64(len(b)))
	if err != nil {
		return 0, err
	}
	pokeBytes(addr, b)
	return addr, nil
}

func (m *Memory) check(addr, size int64) error {
	if m.closed {
		return errMemoryClosed
	}
	if !m.arena.contains(addr, size) {
		return errors.Errorf("jit: memory access out of bounds: %d bytes at %#x", size, addr)
	}
	return nil
}

// Load reads a value of representation r at addr.
func (m *Memory) Load(r Repr, addr int64) (int64, error) {
	if r == Void {
		return 0, errors.Errorf("jit: load of %s", r)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(addr, r.Size()); err != nil {
		return 0, err
	}
	return peek(r, addr), nil
}

// Store writes v, of representation r, at addr.
func (m *Memory) Store(r Repr, addr, v int64) error {
	if r == Void {
		return errors.Errorf("jit: store of %s", r)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(addr, r.Size()); err != nil {
		return err
	}
	poke(r, addr, v)
	return nil
}

// ReadString reads the NUL-terminated string at addr.
func (m *Memory) ReadString(addr int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(addr, 0); err != nil {
		return "", err
	}
	n := m.arena.strlen(addr)
	if n < 0 {
		return "", errors.Errorf("jit: unterminated string at %#x", addr)
	}
	return peekString(addr, n), nil
}

// Size reports the number of bytes allocated so far.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0
	}
	return m.arena.size()
}

func (m *Memory) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.arena.free()
	}
}
