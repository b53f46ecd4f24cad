// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diag

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// List is every diagnostic reported by one pass.
type List []*Diagnostic

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%v (and %d more)", l[0], len(l)-1)
}

// Err returns l as an error, or nil if l has no error-severity
// diagnostics.
func (l List) Err() error {
	if l.HasErrors() {
		return l
	}
	return nil
}

func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Count returns how many diagnostics carry code c.
func (l List) Count(c Code) int {
	n := 0
	for _, d := range l {
		if d.Code == c {
			n++
		}
	}
	return n
}

// Filter returns the diagnostics carrying code c.
func (l List) Filter(c Code) List {
	var res List
	for _, d := range l {
		if d.Code == c {
			res = append(res, d)
		}
	}
	return res
}

// Sort orders l by source position, keeping report order for
// diagnostics at the same position.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		pi, pj := l[i].Pos(), l[j].Pos()
		if pi.Filename != pj.Filename {
			return pi.Filename < pj.Filename
		}
		return pi.Offset < pj.Offset
	})
}

// Print writes each diagnostic of l on its own line, followed by the
// source line of its primary label when source is available.
func Print(w io.Writer, l List, source []byte) {
	for _, d := range l {
		fmt.Fprintln(w, d.Error())
		for _, lab := range d.Labels {
			line := sourceLine(source, lab.Span.Start.Offset)
			if line == "" {
				continue
			}
			col := int(lab.Span.Start.Column)
			width := lab.Span.End.Offset - lab.Span.Start.Offset
			if width < 1 || lab.Span.End.Line != lab.Span.Start.Line {
				width = 1
			}
			marker := "-"
			if lab.Primary {
				marker = "^"
			}
			fmt.Fprintf(w, "    %s\n", line)
			if col > 0 {
				fmt.Fprintf(w, "    %s%s %s\n", strings.Repeat(" ", col-1), strings.Repeat(marker, width), lab.Message)
			}
		}
	}
}

func sourceLine(source []byte, off int) string {
	if off < 0 || off > len(source) {
		return ""
	}
	start := off
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	end := off
	for end < len(source) && source[end] != '\n' {
		end++
	}
	return string(source[start:end])
}
