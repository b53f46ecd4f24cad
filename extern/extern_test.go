// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package extern

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"testing"

	"neugram.io/tern/syntax/tipe"
)

type fakeHost struct {
	strs map[int64]string
	out  bytes.Buffer
}

func (h *fakeHost) ReadString(addr int64) (string, error) {
	s, ok := h.strs[addr]
	if !ok {
		return "", fmt.Errorf("bad address %d", addr)
	}
	return s, nil
}

func (h *fakeHost) Output() io.Writer { return &h.out }

func TestBuiltins(t *testing.T) {
	r := Builtins()
	h := &fakeHost{strs: map[int64]string{8: "hello", 16: "hello"}}

	tests := []struct {
		name string
		args []int64
		want int64
	}{
		{"abs", []int64{-4}, 4},
		{"min", []int64{3, -2}, -2},
		{"max", []int64{3, -2}, 3},
		{"strlen", []int64{8}, 5},
		{"streq", []int64{8, 16}, 1},
		{"print_int", []int64{42}, 0},
		{"puts", []int64{8}, 0},
	}
	for _, test := range tests {
		f, ok := r.Lookup(test.name)
		if !ok {
			t.Fatalf("%s not registered", test.name)
		}
		if len(f.Type.Params) != len(test.args) {
			t.Errorf("%s: %d params, test passes %d", test.name, len(f.Type.Params), len(test.args))
		}
		got, err := f.Impl(h, test.args)
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s(%v) = %d, want %d", test.name, test.args, got, test.want)
		}
	}
	if got := h.out.String(); got != "42\nhello\n" {
		t.Errorf("output = %q", got)
	}
	if _, err := r.funcs["puts"].Impl(h, []int64{99}); err == nil {
		t.Errorf("puts of a bad address succeeded")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&Func{Name: "b", Type: &tipe.Func{Result: tipe.Unit}})
	r.Register(&Func{Name: "a", Type: &tipe.Func{Result: tipe.Unit}})
	if got := r.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
	var nilReg *Registry
	if _, ok := nilReg.Lookup("a"); ok {
		t.Errorf("nil registry lookup succeeded")
	}
}
