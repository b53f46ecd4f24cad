// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diag

import (
	"bytes"
	"strings"
	"testing"

	"neugram.io/tern/syntax/src"
)

func span(off, line, col, width int) src.Span {
	start := src.Pos{Filename: "a.tn", Offset: off, Line: int32(line), Column: int16(col)}
	end := start
	end.Offset += width
	end.Column += int16(width)
	return src.Span{Start: start, End: end}
}

func TestDiagnosticError(t *testing.T) {
	d := New(DeclarationNotFound, "declaration of `%s` not found", "resutl").
		WithPrimary(span(4, 1, 5, 6), "not found in this scope").
		WithHelp("did you mean `%s`?", "result")

	got := d.Error()
	for _, want := range []string{"a.tn:1:5", "error[T0002]", "resutl", "did you mean `result`?"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
	if DeclarationNotFound.Name() != "DeclarationNotFound" {
		t.Errorf("Name() = %q", DeclarationNotFound.Name())
	}
}

func TestList(t *testing.T) {
	l := List{
		New(TypeMismatch, "second").WithPrimary(span(10, 2, 1, 1), ""),
		NewWarning(InvalidOperand, "warn").WithPrimary(span(0, 1, 1, 1), ""),
		New(TypeMismatch, "first").WithPrimary(span(2, 1, 3, 1), ""),
	}
	if !l.HasErrors() || l.Err() == nil {
		t.Fatal("list with errors reports none")
	}
	if n := l.Count(TypeMismatch); n != 2 {
		t.Errorf("Count(TypeMismatch) = %d, want 2", n)
	}
	l.Sort()
	if l[0].Message != "warn" || l[1].Message != "first" || l[2].Message != "second" {
		t.Errorf("Sort order: %v, %v, %v", l[0].Message, l[1].Message, l[2].Message)
	}
	if !strings.Contains(l.Error(), "(and 2 more)") {
		t.Errorf("Error() = %q", l.Error())
	}
	if (List{NewWarning(InvalidOperand, "w")}).Err() != nil {
		t.Errorf("warnings alone should not be an error")
	}
}

func TestPrint(t *testing.T) {
	source := []byte("let x = 1;\nresutl + 1\n")
	d := New(DeclarationNotFound, "not found").WithPrimary(span(11, 2, 1, 6), "here")
	var buf bytes.Buffer
	Print(&buf, List{d}, source)
	want := "    resutl + 1\n    ^^^^^^ here\n"
	if !strings.HasSuffix(buf.String(), want) {
		t.Errorf("Print:\n%s\nwant suffix:\n%s", buf.String(), want)
	}
}
