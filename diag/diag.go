// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diag defines the diagnostics reported by the type checker
// and module loader.
//
// A Diagnostic has a severity, a stable code, a message, zero or more
// labeled source spans and zero or more help strings. Diagnostics are
// collected, not returned one at a time: a List holds every problem
// found in one pass and implements error.
package diag

import (
	"fmt"
	"strings"

	"neugram.io/tern/syntax/src"
)

type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	}
	return "unknown"
}

// Label attaches a message to a span of source.
type Label struct {
	Span    src.Span
	Message string
	Primary bool
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Labels   []Label
	Help     []string
}

// New returns an error-severity diagnostic.
func New(code Code, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Severity: Error,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewWarning returns a warning-severity diagnostic.
func NewWarning(code Code, format string, args ...interface{}) *Diagnostic {
	d := New(code, format, args...)
	d.Severity = Warning
	return d
}

// WithPrimary adds the label marking where the problem is.
func (d *Diagnostic) WithPrimary(span src.Span, format string, args ...interface{}) *Diagnostic {
	d.Labels = append(d.Labels, Label{Span: span, Message: fmt.Sprintf(format, args...), Primary: true})
	return d
}

// WithSecondary adds a label giving context.
func (d *Diagnostic) WithSecondary(span src.Span, format string, args ...interface{}) *Diagnostic {
	d.Labels = append(d.Labels, Label{Span: span, Message: fmt.Sprintf(format, args...)})
	return d
}

func (d *Diagnostic) WithHelp(format string, args ...interface{}) *Diagnostic {
	d.Help = append(d.Help, fmt.Sprintf(format, args...))
	return d
}

// Pos returns the start of the primary label, or the first label.
func (d *Diagnostic) Pos() src.Pos {
	for _, l := range d.Labels {
		if l.Primary {
			return l.Span.Start
		}
	}
	if len(d.Labels) > 0 {
		return d.Labels[0].Span.Start
	}
	return src.Pos{}
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	if pos := d.Pos(); pos.Line > 0 {
		fmt.Fprintf(&b, "%s: ", pos)
	}
	fmt.Fprintf(&b, "%s[%s]: %s", d.Severity, d.Code, d.Message)
	for _, h := range d.Help {
		fmt.Fprintf(&b, " (help: %s)", h)
	}
	return b.String()
}
