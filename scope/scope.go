// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scope implements lexical environments as an arena of scope
// records addressed by index.
//
// Each scope maps names to a value of type T and stores the index of its
// parent. The type checker binds names to declared types, the code
// generator binds them to compiled values and function handles.
// Declarations only touch the scope they are made in; lookups walk
// parent indexes toward the root. Absence is reported with ok == false,
// never as an error.
package scope

// ID addresses a scope within a Tree.
type ID int32

// None is the parent of a root scope.
const None ID = -1

// Kind classifies a scope.
type Kind uint8

const (
	Root     Kind = iota
	Function      // parameters of a function literal
	Block         // a braced block or a loop body
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case Function:
		return "function"
	case Block:
		return "block"
	}
	return "unknown"
}

type record[T any] struct {
	parent ID
	kind   Kind
	names  map[string]T
	order  []string // declaration order, for deterministic listings
}

// Tree is an arena of scopes. The zero value is not usable; call New.
type Tree[T any] struct {
	scopes []record[T]
}

// New returns a Tree holding a single root scope.
func New[T any]() *Tree[T] {
	t := &Tree[T]{}
	t.scopes = append(t.scopes, record[T]{parent: None, kind: Root})
	return t
}

// Root returns the index of the root scope.
func (t *Tree[T]) Root() ID { return 0 }

// Len reports how many scopes have been created.
func (t *Tree[T]) Len() int { return len(t.scopes) }

// Child creates a new scope whose parent is id.
func (t *Tree[T]) Child(id ID, kind Kind) ID {
	t.check(id)
	t.scopes = append(t.scopes, record[T]{parent: id, kind: kind})
	return ID(len(t.scopes) - 1)
}

func (t *Tree[T]) Parent(id ID) ID {
	t.check(id)
	return t.scopes[id].parent
}

func (t *Tree[T]) Kind(id ID) Kind {
	t.check(id)
	return t.scopes[id].kind
}

// Declare binds name to v in scope id, replacing any binding of the
// same name made earlier in that scope.
func (t *Tree[T]) Declare(id ID, name string, v T) {
	t.check(id)
	s := &t.scopes[id]
	if s.names == nil {
		s.names = make(map[string]T)
	}
	if _, exists := s.names[name]; !exists {
		s.order = append(s.order, name)
	}
	s.names[name] = v
}

// LookupLocal reports the binding of name made directly in scope id.
func (t *Tree[T]) LookupLocal(id ID, name string) (v T, ok bool) {
	t.check(id)
	v, ok = t.scopes[id].names[name]
	return v, ok
}

// Lookup returns the nearest binding of name visible from id.
func (t *Tree[T]) Lookup(id ID, name string) (v T, ok bool) {
	r := t.Resolve(id, name)
	return r.Value, r.Found
}

// Resolution describes where a name was found.
type Resolution[T any] struct {
	Value T
	Found bool
	Scope ID  // declaring scope
	Hops  int // parent links followed from the starting scope

	// Boundaries counts the Function scopes walked through before
	// reaching the declaring scope. A name declared in a function's
	// own parameter scope or below has zero boundaries.
	Boundaries int
}

// Resolve walks from id toward the root looking for name.
func (t *Tree[T]) Resolve(id ID, name string) Resolution[T] {
	var r Resolution[T]
	for cur := id; cur != None; cur = t.scopes[cur].parent {
		t.check(cur)
		s := &t.scopes[cur]
		if v, ok := s.names[name]; ok {
			r.Value, r.Found, r.Scope = v, true, cur
			return r
		}
		if s.kind == Function {
			r.Boundaries++
		}
		r.Hops++
	}
	r.Scope = None
	return r
}

// Visible returns every name visible from id, nearest scope first,
// without duplicates. Shadowed outer names are omitted.
func (t *Tree[T]) Visible(id ID) []string {
	var names []string
	seen := make(map[string]bool)
	for cur := id; cur != None; cur = t.scopes[cur].parent {
		t.check(cur)
		for _, name := range t.scopes[cur].order {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// Names returns the names declared directly in scope id, in
// declaration order.
func (t *Tree[T]) Names(id ID) []string {
	t.check(id)
	return append([]string(nil), t.scopes[id].order...)
}

// IsAncestor reports whether anc is id or one of its parents.
func (t *Tree[T]) IsAncestor(anc, id ID) bool {
	for cur := id; cur != None; cur = t.scopes[cur].parent {
		if cur == anc {
			return true
		}
	}
	return false
}

func (t *Tree[T]) check(id ID) {
	if id < 0 || int(id) >= len(t.scopes) {
		panic("scope: invalid scope index")
	}
}
