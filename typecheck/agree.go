// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typecheck

import (
	"neugram.io/tern/diag"
	"neugram.io/tern/format"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/tipe"
)

// agree checks that the expressions in es have the same type and
// returns it.
//
// Two candidates are compared directly and a disagreement is
// reported once, citing both, with the result Never. With more
// candidates the most frequent type wins, ties going to the earliest,
// and each expression of another type is reported against it.
// Never candidates are skipped: they have already been reported.
func (c *Checker) agree(es []expr.Expr, context string) tipe.Type {
	var cands []expr.Expr
	for _, e := range es {
		if !tipe.IsNever(e.Tipe()) {
			cands = append(cands, e)
		}
	}
	if len(cands) == 0 {
		return tipe.Never
	}

	if len(cands) <= 2 {
		if len(cands) == 2 && !tipe.Compatible(cands[0].Tipe(), cands[1].Tipe()) {
			x, y := cands[0], cands[1]
			c.report(diag.New(diag.TypeMismatch, "type mismatch in %s: `%s` and `%s`",
				context, format.Type(x.Tipe()), format.Type(y.Tipe())).
				WithPrimary(y.Span(), "has type `%s`", format.Type(y.Tipe())).
				WithSecondary(x.Span(), "has type `%s`", format.Type(x.Tipe())))
			return tipe.Never
		}
		return cands[0].Tipe()
	}

	type group struct {
		t     tipe.Type
		count int
	}
	var groups []*group
	for _, e := range cands {
		found := false
		for _, g := range groups {
			if tipe.Equal(g.t, e.Tipe()) {
				g.count++
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, &group{t: e.Tipe(), count: 1})
		}
	}
	major := groups[0]
	for _, g := range groups[1:] {
		if g.count > major.count {
			major = g
		}
	}
	for _, e := range cands {
		if !tipe.Compatible(major.t, e.Tipe()) {
			c.report(diag.New(diag.TypeMismatch, "type mismatch in %s: expected `%s`, found `%s`",
				context, format.Type(major.t), format.Type(e.Tipe())).
				WithPrimary(e.Span(), "has type `%s`", format.Type(e.Tipe())).
				WithHelp("%d of %d branches have type `%s`", major.count, len(cands), format.Type(major.t)))
		}
	}
	return major.t
}
