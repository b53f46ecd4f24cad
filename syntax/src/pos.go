// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package src provides source code position tracking.
package src

import "fmt"

// Pos is a position in a source file.
type Pos struct {
	Filename string // path as provided by the user
	Offset   int    // byte offset, starting at 0
	Line     int32  // line number, valid values start at 1
	Column   int16
}

func (p Pos) String() string {
	if p.Filename == "" && p.Line == 0 {
		return "<unknown line>"
	}
	if p.Column == 0 {
		return fmt.Sprintf("%s:%d", p.Filename, p.Line)
	} else {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
}

// Span is a half-open range of source text.
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string {
	if s.End.Line == 0 || s.End == s.Start {
		return s.Start.String()
	}
	if s.End.Line == s.Start.Line {
		return fmt.Sprintf("%s-%d", s.Start, s.End.Column)
	}
	return fmt.Sprintf("%s-%d:%d", s.Start, s.End.Line, s.End.Column)
}

// Join returns the smallest span covering both s and t.
func Join(s, t Span) Span {
	r := s
	if t.Start.Offset < r.Start.Offset {
		r.Start = t.Start
	}
	if t.End.Offset > r.End.Offset {
		r.End = t.End
	}
	return r
}

// Text returns the source text covered by s, or "" when s does not
// fall inside source.
func (s Span) Text(source []byte) string {
	if s.Start.Offset < 0 || s.End.Offset > len(source) || s.Start.Offset > s.End.Offset {
		return ""
	}
	return string(source[s.Start.Offset:s.End.Offset])
}
