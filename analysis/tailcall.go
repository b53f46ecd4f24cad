// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analysis

import "neugram.io/tern/syntax/expr"

// TailPositions returns the expressions in tail position of body:
// those whose value, when reached, is the value of body itself.
//
// body is in tail position. So are both branches of a conditional in
// tail position, the result of a block in tail position and the
// expression inside a group in tail position. Nothing else is.
func TailPositions(body expr.Expr) []expr.Expr {
	var res []expr.Expr
	var walk func(e expr.Expr)
	walk = func(e expr.Expr) {
		res = append(res, e)
		switch e := e.(type) {
		case *expr.Cond:
			walk(e.Then)
			walk(e.Else)
		case *expr.Block:
			if e.Result != nil {
				walk(e.Result)
			}
		case *expr.Group:
			walk(e.Expr)
		}
	}
	walk(body)
	return res
}

// TailCalls is the set of self calls in tail position of a function.
type TailCalls map[*expr.Call]bool

// AnalyzeTailCalls returns the calls in tail position of fn's body
// whose callee is fn's own name.
func AnalyzeTailCalls(fn *expr.FuncLiteral) TailCalls {
	calls := make(TailCalls)
	if fn.Name == "" || fn.Body == nil {
		return calls
	}
	for _, e := range TailPositions(fn.Body) {
		if call, ok := e.(*expr.Call); ok && IsSelfCall(fn, call) {
			calls[call] = true
		}
	}
	return calls
}

// IsSelfCall reports whether call names fn as its callee.
func IsSelfCall(fn *expr.FuncLiteral, call *expr.Call) bool {
	id, ok := expr.Unwrap(call.Func).(*expr.Ident)
	return ok && fn.Name != "" && id.Name == fn.Name
}

// IsTailRecursive reports whether some tail position of fn's body is
// a call of fn itself.
func IsTailRecursive(fn *expr.FuncLiteral) bool {
	return len(AnalyzeTailCalls(fn)) > 0
}
