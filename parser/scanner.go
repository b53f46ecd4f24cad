// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package parser

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"

	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/token"
)

const bom = 0xFEFF // byte order marker

// Scanner splits tern source into tokens.
// Whitespace, including newlines, is insignificant.
type Scanner struct {
	// Current Token
	Token   token.Token
	Literal interface{} // string for Ident and String, int64 for Int
	Start   src.Pos     // first byte of the current token
	End     src.Pos     // just past the current token

	// Scanner state
	filename string
	src      []byte
	r        rune // current rune, -1 at end of input
	off      int  // offset of r
	nextOff  int  // offset just past r
	line     int32
	col      int16
	errs     []Error
}

func NewScanner(filename string, source []byte) *Scanner {
	s := &Scanner{
		filename: filename,
		src:      source,
		line:     1,
	}
	s.next()
	return s
}

func (s *Scanner) pos() src.Pos {
	return src.Pos{Filename: s.filename, Offset: s.off, Line: s.line, Column: s.col}
}

func (s *Scanner) errorf(pos src.Pos, format string, a ...interface{}) {
	s.errs = append(s.errs, Error{Pos: pos, Msg: fmt.Sprintf(format, a...)})
}

func (s *Scanner) next() {
	if s.r == '\n' {
		s.line++
		s.col = 0
	}
	if s.nextOff >= len(s.src) {
		s.off = len(s.src)
		s.r = -1
		s.col++
		return
	}
	s.off = s.nextOff
	s.col++
	var w int
	s.r, w = rune(s.src[s.off]), 1
	switch {
	case s.r == 0:
		s.errorf(s.pos(), "bad UTF-8: zero byte")
	case s.r >= 0x80:
		s.r, w = utf8.DecodeRune(s.src[s.off:])
		if s.r == utf8.RuneError && w == 1 {
			s.errorf(s.pos(), "bad UTF-8")
		} else if s.r == bom {
			s.errorf(s.pos(), "bad byte order marker")
		}
	}
	s.nextOff = s.off + w
}

func (s *Scanner) skipWhitespace() {
	for s.r == ' ' || s.r == '\t' || s.r == '\n' || s.r == '\r' {
		s.next()
	}
}

func isLetter(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func (s *Scanner) scanIdentifier() string {
	off := s.off
	for isLetter(s.r) || unicode.IsDigit(s.r) {
		s.next()
	}
	return string(s.src[off:s.off])
}

func (s *Scanner) scanNumber() (token.Token, interface{}) {
	start := s.pos()
	for '0' <= s.r && s.r <= '9' {
		s.next()
	}
	str := string(s.src[start.Offset:s.off])
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		s.errorf(start, "bad int literal: %q", str)
		return token.Unknown, nil
	}
	return token.Int, v
}

func (s *Scanner) scanString() (token.Token, interface{}) {
	start := s.pos()
	s.next() // opening quote
	var buf []byte
	for {
		switch s.r {
		case '"':
			s.next()
			return token.String, string(buf)
		case -1, '\n':
			s.errorf(start, "string literal not terminated")
			return token.Unknown, nil
		case '\\':
			s.next()
			switch s.r {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			case '\\':
				buf = append(buf, '\\')
			case '"':
				buf = append(buf, '"')
			case '0':
				buf = append(buf, 0)
			default:
				s.errorf(s.pos(), "unknown escape sequence \\%c", s.r)
			}
			s.next()
		default:
			buf = utf8.AppendRune(buf, s.r)
			s.next()
		}
	}
}

func (s *Scanner) skipComment() {
	// already at the second '/'
	for s.r >= 0 && s.r != '\n' {
		s.next()
	}
}

// Next advances to the next token.
func (s *Scanner) Next() {
	for {
		s.skipWhitespace()
		if s.r == '/' && s.nextOff < len(s.src) && s.src[s.nextOff] == '/' {
			s.skipComment()
			continue
		}
		break
	}

	s.Start = s.pos()
	s.Literal = nil
	defer func() { s.End = s.pos() }()

	r := s.r
	switch {
	case isLetter(r):
		lit := s.scanIdentifier()
		if kw := token.Keyword(lit); kw != token.Unknown {
			s.Token = kw
		} else {
			s.Token = token.Ident
			s.Literal = lit
		}
		return
	case '0' <= r && r <= '9':
		s.Token, s.Literal = s.scanNumber()
		return
	case r == '"':
		s.Token, s.Literal = s.scanString()
		return
	}

	s.next()
	switch r {
	case -1:
		s.Token = token.EOF
	case '(':
		s.Token = token.LeftParen
	case ')':
		s.Token = token.RightParen
	case '{':
		s.Token = token.LeftBrace
	case '}':
		s.Token = token.RightBrace
	case ',':
		s.Token = token.Comma
	case ';':
		s.Token = token.Semicolon
	case ':':
		s.Token = token.Colon
	case '.':
		s.Token = token.Period
	case '~':
		s.Token = token.Tilde
	case '+':
		s.Token = token.Add
	case '*':
		s.Token = token.Mul
	case '/':
		s.Token = token.Div
	case '%':
		s.Token = token.Rem
	case '-':
		s.Token = s.choose('>', token.Arrow, token.Sub)
	case '=':
		s.Token = s.choose('=', token.Equal, token.Assign)
	case '!':
		s.Token = s.choose('=', token.NotEqual, token.Not)
	case '<':
		s.Token = s.choose('=', token.LessEqual, token.Less)
	case '>':
		s.Token = s.choose('=', token.GreaterEqual, token.Greater)
	case '&':
		s.Token = s.choose('&', token.LogicalAnd, token.Unknown)
	case '|':
		s.Token = s.choose('|', token.LogicalOr, token.Unknown)
	default:
		s.Token = token.Unknown
	}
	if s.Token == token.Unknown {
		s.errorf(s.Start, "unexpected character %q", r)
	}
}

func (s *Scanner) choose(second rune, two, one token.Token) token.Token {
	if s.r == second {
		s.next()
		return two
	}
	return one
}
