// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tipe

import "testing"

var point = &Struct{Name: "Point", Fields: []StructField{{"x", Integer}, {"y", Integer}}}

var equalTests = []struct {
	x, y       Type
	equal      bool
	compatible bool
}{
	{Integer, Integer, true, true},
	{Integer, Boolean, false, false},
	{Never, Integer, false, true},
	{Integer, Never, false, true},
	{Never, Never, true, true},
	{
		&Func{Params: []Type{Integer}, Result: Integer},
		&Func{Params: []Type{Integer}, Result: Integer},
		true, true,
	},
	{
		&Func{Params: []Type{Integer}, Result: Integer},
		&Func{Params: []Type{Integer, Integer}, Result: Integer},
		false, false,
	},
	{
		&Func{Params: []Type{Never}, Result: Integer},
		&Func{Params: []Type{Boolean}, Result: Integer},
		false, true,
	},
	{point, &Struct{Fields: []StructField{{"x", Integer}, {"y", Integer}}}, true, true},
	{point, &Struct{Fields: []StructField{{"y", Integer}, {"x", Integer}}}, false, false},
}

func TestEqual(t *testing.T) {
	for i, test := range equalTests {
		if got := Equal(test.x, test.y); got != test.equal {
			t.Errorf("%d: Equal(%v, %v) = %v, want %v", i, test.x, test.y, got, test.equal)
		}
		if got := Compatible(test.x, test.y); got != test.compatible {
			t.Errorf("%d: Compatible(%v, %v) = %v, want %v", i, test.x, test.y, got, test.compatible)
		}
	}
}

func TestSize(t *testing.T) {
	sizes := []struct {
		t    Type
		size int64
	}{
		{Integer, 8},
		{Boolean, 1},
		{Unit, 0},
		{String, 8},
		{point, 8},
		{&Func{Result: Unit}, 8},
	}
	for _, s := range sizes {
		if got := Size(s.t); got != s.size {
			t.Errorf("Size(%v) = %d, want %d", s.t, got, s.size)
		}
	}
}
