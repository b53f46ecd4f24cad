// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package token defines data structures representing tern tokens.
package token

import "fmt"

// Token is a tern lexical token.
type Token int

const (
	Unknown Token = iota
	Comment
	EOF

	// Constants

	Ident  // E.g. funcName
	Int    // E.g. 1001
	String // E.g. "a string"

	// Expression Operators

	Add          // +
	Sub          // -
	Mul          // *
	Div          // /
	Rem          // %
	LogicalAnd   // &&
	LogicalOr    // ||
	Equal        // ==
	Less         // <
	Greater      // >
	Assign       // =
	Not          // !
	NotEqual     // !=
	LessEqual    // <=
	GreaterEqual // >=
	Tilde        // ~
	Arrow        // ->

	LeftParen  // (
	LeftBrace  // {
	RightParen // )
	RightBrace // }
	Comma      // ,
	Period     // .
	Semicolon  // ;
	Colon      // :

	// Keywords

	Let
	Fn
	If
	Else
	While
	Type
	Struct
	Extern
	Import
	True
	False
)

var tokens = map[string]Token{
	"unknown": Unknown,
	"comment": Comment,
	"EOF":     EOF,
	"ident":   Ident,
	"integer": Int,
	"string":  String,
	"+":       Add,
	"-":       Sub,
	"*":       Mul,
	"/":       Div,
	"%":       Rem,
	"&&":      LogicalAnd,
	"||":      LogicalOr,
	"==":      Equal,
	"<":       Less,
	">":       Greater,
	"=":       Assign,
	"!":       Not,
	"!=":      NotEqual,
	"<=":      LessEqual,
	">=":      GreaterEqual,
	"~":       Tilde,
	"->":      Arrow,
	"(":       LeftParen,
	"{":       LeftBrace,
	")":       RightParen,
	"}":       RightBrace,
	",":       Comma,
	".":       Period,
	";":       Semicolon,
	":":       Colon,
}

var Keywords = map[string]Token{
	"let":    Let,
	"fn":     Fn,
	"if":     If,
	"else":   Else,
	"while":  While,
	"type":   Type,
	"struct": Struct,
	"extern": Extern,
	"import": Import,
	"true":   True,
	"false":  False,
}

func Keyword(n string) Token {
	return Keywords[n]
}

var tokenStrings = make(map[Token]string, len(tokens)+len(Keywords))

func init() {
	for s, t := range tokens {
		tokenStrings[t] = s
	}
	for s, t := range Keywords {
		tokenStrings[t] = s
	}
}

func (t Token) String() string {
	if s := tokenStrings[t]; s != "" {
		return s
	}
	return fmt.Sprintf("Token:%d", t)
}

// Precedence reports the binding power of a binary operator.
// Non-operators have precedence 0.
func (t Token) Precedence() int {
	switch t {
	case LogicalOr:
		return 1
	case LogicalAnd:
		return 2
	case Equal, NotEqual, Less, LessEqual, Greater, GreaterEqual:
		return 3
	case Add, Sub:
		return 4
	case Mul, Div, Rem:
		return 5
	}
	return 0
}

// IsComparison reports whether t is an operator producing a bool
// from two integers or two like-typed operands.
func (t Token) IsComparison() bool {
	switch t {
	case Equal, NotEqual, Less, LessEqual, Greater, GreaterEqual:
		return true
	}
	return false
}
