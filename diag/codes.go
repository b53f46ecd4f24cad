// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package diag

// Code identifies a kind of diagnostic. Codes are stable across
// releases so tests and tools can match on them.
type Code string

const (
	// Type checker errors (T prefix)
	TypeMismatch          Code = "T0001"
	DeclarationNotFound   Code = "T0002"
	MissingParameter      Code = "T0003"
	UnexpectedArgument    Code = "T0004"
	UnknownField          Code = "T0005"
	UnknownExternFunction Code = "T0006"
	MissingField          Code = "T0007"
	DuplicateField        Code = "T0008"
	NotCallable           Code = "T0009"
	InvalidOperand        Code = "T0010"
	NestingTooDeep        Code = "T0011"

	// Module errors (M prefix)
	CircularDependency Code = "M0001"
	ParseError         Code = "M0002"
	UnresolvedImport   Code = "M0003"
	ModuleNotFound     Code = "M0004"

	// Internal errors
	InternalError Code = "I0001"
)

var codeNames = map[Code]string{
	TypeMismatch:          "TypeMismatch",
	DeclarationNotFound:   "DeclarationNotFound",
	MissingParameter:      "MissingParameter",
	UnexpectedArgument:    "UnexpectedArgument",
	UnknownField:          "UnknownField",
	UnknownExternFunction: "UnknownExternFunction",
	MissingField:          "MissingField",
	DuplicateField:        "DuplicateField",
	NotCallable:           "NotCallable",
	InvalidOperand:        "InvalidOperand",
	NestingTooDeep:        "NestingTooDeep",
	CircularDependency:    "CircularDependency",
	ParseError:            "ParseError",
	UnresolvedImport:      "UnresolvedImport",
	ModuleNotFound:        "ModuleNotFound",
	InternalError:         "InternalError",
}

// Name returns the descriptive name of the code, e.g. "TypeMismatch".
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return string(c)
}
