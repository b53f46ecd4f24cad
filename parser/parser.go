// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package parser implements a parser for tern source files.
//
// The parser produces untyped trees: every expression's Type is nil,
// except for type annotations written in the source.
package parser

import (
	"bytes"
	"fmt"

	"neugram.io/tern/syntax"
	"neugram.io/tern/syntax/expr"
	"neugram.io/tern/syntax/src"
	"neugram.io/tern/syntax/stmt"
	"neugram.io/tern/syntax/tipe"
	"neugram.io/tern/syntax/token"
)

// MaxDepth bounds the nesting of expressions the parser accepts.
const MaxDepth = 2000

type Parser struct {
	s         *Scanner
	noCompLit bool // to resolve struct literal parsing in while conditions
	depth     int
	prevEnd   src.Pos // end of the previous token
	errs      []Error
}

// New returns a parser reading source, which came from filename.
func New(filename string, source []byte) *Parser {
	p := &Parser{s: NewScanner(filename, source)}
	p.next()
	return p
}

// ParseFile parses a complete source file into the wrapper shape
// described on syntax.File.
func ParseFile(filename string, source []byte) (*syntax.File, error) {
	p := New(filename, source)
	f := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		return f, errs
	}
	return f, nil
}

// ParseExpr parses a single expression.
func ParseExpr(source []byte) (expr.Expr, error) {
	p := New("", source)
	e := p.parseExpr()
	if p.s.Token != token.EOF {
		p.errorf("unexpected %s after expression", p.s.Token)
	}
	if errs := p.Errors(); len(errs) > 0 {
		return e, errs
	}
	return e, nil
}

// Errors returns every error reported by the scanner and parser so far.
func (p *Parser) Errors() Errors {
	var errs Errors
	errs = append(errs, p.s.errs...)
	errs = append(errs, p.errs...)
	return errs
}

// ParseFile parses statements up to the end of input.
func (p *Parser) ParseFile() *syntax.File {
	start := p.s.Start
	stmts, result := p.parseStmts(token.EOF)
	body := &expr.Block{
		Position: src.Span{Start: start, End: p.s.End},
		Stmts:    stmts,
		Result:   result,
	}
	return syntax.Wrap(start.Filename, body)
}

func (p *Parser) next() {
	p.prevEnd = p.s.End
	p.s.Next()
}

func (p *Parser) span(start src.Pos) src.Span {
	return src.Span{Start: start, End: p.prevEnd}
}

// parseStmts parses statements until the closing token. An expression
// not followed by a semicolon is the result.
func (p *Parser) parseStmts(closing token.Token) (stmts []expr.Stmt, result expr.Expr) {
	for p.s.Token != closing && p.s.Token != token.EOF {
		start := p.s.Start
		var s stmt.Stmt
		switch p.s.Token {
		case token.Let:
			s = p.parseVar()
		case token.Type:
			s = p.parseTypeDecl()
		case token.Extern:
			s = p.parseExtern()
		case token.Import:
			s = p.parseImport()
		case token.Semicolon:
			p.next()
			continue
		default:
			x := p.parseExpr()
			if p.s.Token == closing {
				return stmts, x
			}
			s = &stmt.Simple{Position: p.span(start), Expr: x}
		}
		stmts = append(stmts, s)
		if p.s.Token == closing {
			break
		}
		if !p.expect(token.Semicolon) {
			p.skipTo(closing)
			continue
		}
		p.next()
	}
	return stmts, nil
}

// skipTo advances past the next semicolon, stopping early at closing.
func (p *Parser) skipTo(closing token.Token) {
	for p.s.Token != token.EOF && p.s.Token != closing {
		if p.s.Token == token.Semicolon {
			p.next()
			return
		}
		p.next()
	}
}

func (p *Parser) parseVar() stmt.Stmt {
	start := p.s.Start
	p.next() // let
	name := p.parseIdent()
	s := &stmt.Var{Name: name.Name, NamePos: name.Position}
	if p.s.Token == token.Tilde {
		p.next()
		s.Type = p.parseType()
	}
	p.expect(token.Assign)
	p.next()
	s.Value = p.parseExpr()
	if fn, ok := s.Value.(*expr.FuncLiteral); ok {
		fn.Name = s.Name
	}
	s.Position = p.span(start)
	return s
}

func (p *Parser) parseTypeDecl() stmt.Stmt {
	start := p.s.Start
	p.next() // type
	name := p.parseIdent()
	p.expect(token.Assign)
	p.next()
	t := p.parseType()
	if st, ok := t.(*tipe.Struct); ok && st.Name == "" {
		st.Name = name.Name
	}
	return &stmt.TypeDecl{Position: p.span(start), Name: name.Name, Type: t}
}

func (p *Parser) parseExtern() stmt.Stmt {
	start := p.s.Start
	p.next() // extern
	p.expect(token.Fn)
	p.next()
	name := p.parseIdent()
	params := p.parseParams()
	var result tipe.Type = tipe.Unit
	if p.s.Token == token.Arrow {
		p.next()
		result = p.parseType()
	}
	return &stmt.Extern{Position: p.span(start), Name: name.Name, Params: params, Result: result}
}

func (p *Parser) parseImport() stmt.Stmt {
	start := p.s.Start
	p.next() // import
	path := ""
	if p.expect(token.String) {
		path = p.s.Literal.(string)
		p.next()
	}
	return &stmt.Import{Position: p.span(start), Path: path}
}

func (p *Parser) enter() bool {
	p.depth++
	if p.depth > MaxDepth {
		p.errorf("expression nested too deeply")
		return false
	}
	return true
}

func (p *Parser) leave() { p.depth-- }

// parseExpr parses an assignment or anything tighter.
func (p *Parser) parseExpr() expr.Expr {
	start := p.s.Start
	if !p.enter() {
		defer p.leave()
		return p.bad(start, "expression nested too deeply")
	}
	defer p.leave()

	x := p.parseCond()
	if p.s.Token != token.Assign {
		return x
	}
	p.next()
	ident, ok := x.(*expr.Ident)
	if !ok {
		p.errorfAt(x.Pos(), "cannot assign to %s", describe(x))
		p.parseExpr()
		return p.bad(start, "invalid assignment")
	}
	right := p.parseExpr()
	return &expr.Assign{Position: p.span(start), Left: ident, Right: right}
}

// parseCond parses `a if cond else b`. The else branch may itself be
// a conditional.
func (p *Parser) parseCond() expr.Expr {
	start := p.s.Start
	x := p.parseBinaryExpr(1)
	if p.s.Token != token.If {
		return x
	}
	p.next()
	cond := p.parseBinaryExpr(1)
	p.expect(token.Else)
	p.next()
	els := p.parseCond()
	return &expr.Cond{Position: p.span(start), Then: x, Cond: cond, Else: els}
}

func (p *Parser) parseBinaryExpr(minPrec int) expr.Expr {
	start := p.s.Start
	x := p.parseUnaryExpr()
	for prec := p.s.Token.Precedence(); prec >= minPrec; prec-- {
		for {
			op := p.s.Token
			if op.Precedence() != prec {
				break
			}
			p.next()
			y := p.parseBinaryExpr(prec + 1)
			x = &expr.Binary{
				Position: p.span(start),
				Op:       op,
				Left:     x,
				Right:    y,
			}
		}
	}
	return x
}

func (p *Parser) parseUnaryExpr() expr.Expr {
	start := p.s.Start
	switch p.s.Token {
	case token.Sub, token.Not:
		op := p.s.Token
		p.next()
		if !p.enter() {
			p.leave()
			return p.bad(start, "expression nested too deeply")
		}
		x := p.parseUnaryExpr()
		p.leave()
		return &expr.Unary{Position: p.span(start), Op: op, Expr: x}
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() expr.Expr {
	start := p.s.Start
	x := p.parseOperand()
	for {
		switch p.s.Token {
		case token.LeftParen:
			args := p.parseArgs()
			x = &expr.Call{Position: p.span(start), Func: x, Args: args}
		case token.Period:
			p.next()
			right := p.parseIdent()
			x = &expr.Selector{Position: p.span(start), Left: x, Right: right}
		case token.LeftBrace:
			ident, ok := x.(*expr.Ident)
			if !ok || p.noCompLit {
				return x
			}
			x = p.parseStructLiteral(ident)
		default:
			return x
		}
	}
}

func (p *Parser) expectCommaOr(otherwise token.Token, msg string) bool {
	switch {
	case p.s.Token == token.Comma:
		p.next()
		return true
	case p.s.Token == otherwise:
		return false
	default:
		p.errorf("unexpected %s in %s", p.s.Token, msg)
		return false
	}
}

func (p *Parser) parseArgs() []expr.Expr {
	p.expect(token.LeftParen)
	p.next()
	var args []expr.Expr
	for p.s.Token != token.RightParen && p.s.Token != token.EOF {
		args = append(args, p.parseExpr())
		if !p.expectCommaOr(token.RightParen, "argument list") {
			break
		}
	}
	p.expect(token.RightParen)
	p.next()
	return args
}

func (p *Parser) parseStructLiteral(name *expr.Ident) expr.Expr {
	p.next() // {
	lit := &expr.StructLiteral{Name: name}
	for p.s.Token != token.RightBrace && p.s.Token != token.EOF {
		fieldName := p.parseIdent()
		p.expect(token.Colon)
		p.next()
		value := p.parseExpr()
		lit.Fields = append(lit.Fields, expr.FieldInit{Name: fieldName, Value: value})
		if !p.expectCommaOr(token.RightBrace, "struct literal") {
			break
		}
	}
	p.expect(token.RightBrace)
	p.next()
	lit.Position = p.span(name.Pos())
	return lit
}

func (p *Parser) parseOperand() expr.Expr {
	start := p.s.Start
	switch p.s.Token {
	case token.Int, token.String:
		x := &expr.BasicLiteral{Position: p.tokSpan(), Value: p.s.Literal}
		p.next()
		return x
	case token.True, token.False:
		x := &expr.BasicLiteral{Position: p.tokSpan(), Value: p.s.Token == token.True}
		p.next()
		return x
	case token.Ident:
		return p.parseIdent()
	case token.LeftParen:
		p.next()
		noCompLit := p.noCompLit
		p.noCompLit = false
		x := p.parseExpr()
		p.noCompLit = noCompLit
		p.expect(token.RightParen)
		p.next()
		return &expr.Group{Position: p.span(start), Expr: x}
	case token.LeftBrace:
		return p.parseBlock()
	case token.Fn:
		return p.parseFunc()
	case token.While:
		p.next()
		noCompLit := p.noCompLit
		p.noCompLit = true
		cond := p.parseExpr()
		p.noCompLit = noCompLit
		body := p.parseBlock()
		return &expr.While{Position: p.span(start), Cond: cond, Body: body}
	}
	p.errorf("expected operand, found %s", p.s.Token)
	if p.s.Token != token.EOF && p.s.Token != token.Semicolon && p.s.Token != token.RightBrace {
		p.next()
	}
	return p.bad(start, "expected operand")
}

func (p *Parser) parseBlock() *expr.Block {
	start := p.s.Start
	if !p.expect(token.LeftBrace) {
		return &expr.Block{Position: p.span(start)}
	}
	p.next()
	noCompLit := p.noCompLit
	p.noCompLit = false
	stmts, result := p.parseStmts(token.RightBrace)
	p.noCompLit = noCompLit
	p.expect(token.RightBrace)
	p.next()
	return &expr.Block{Position: p.span(start), Stmts: stmts, Result: result}
}

func (p *Parser) parseFunc() *expr.FuncLiteral {
	start := p.s.Start
	p.next() // fn
	fn := &expr.FuncLiteral{}
	fn.Params = p.parseParams()
	if p.s.Token == token.Arrow {
		p.next()
		fn.Result = p.parseType()
	}
	fn.Body = p.parseBlock()
	fn.Position = p.span(start)
	return fn
}

func (p *Parser) parseParams() []expr.Param {
	p.expect(token.LeftParen)
	p.next()
	var params []expr.Param
	for p.s.Token != token.RightParen && p.s.Token != token.EOF {
		start := p.s.Start
		name := p.parseIdent()
		p.expect(token.Tilde)
		p.next()
		t := p.parseType()
		params = append(params, expr.Param{Position: p.span(start), Name: name.Name, Type: t})
		if !p.expectCommaOr(token.RightParen, "parameter list") {
			break
		}
	}
	p.expect(token.RightParen)
	p.next()
	return params
}

func (p *Parser) parseType() tipe.Type {
	switch p.s.Token {
	case token.Ident:
		name := p.s.Literal.(string)
		p.next()
		switch name {
		case "int":
			return tipe.Integer
		case "bool":
			return tipe.Boolean
		case "unit":
			return tipe.Unit
		case "str":
			return tipe.String
		}
		return &tipe.Unresolved{Name: name}
	case token.Fn:
		p.next()
		p.expect(token.LeftParen)
		p.next()
		t := &tipe.Func{Result: tipe.Unit}
		for p.s.Token != token.RightParen && p.s.Token != token.EOF {
			t.Params = append(t.Params, p.parseType())
			if !p.expectCommaOr(token.RightParen, "function type") {
				break
			}
		}
		p.expect(token.RightParen)
		p.next()
		if p.s.Token == token.Arrow {
			p.next()
			t.Result = p.parseType()
		}
		return t
	case token.Struct:
		p.next()
		p.expect(token.LeftBrace)
		p.next()
		t := &tipe.Struct{}
		for p.s.Token != token.RightBrace && p.s.Token != token.EOF {
			name := p.parseIdent()
			p.expect(token.Tilde)
			p.next()
			t.Fields = append(t.Fields, tipe.StructField{Name: name.Name, Type: p.parseType()})
			if !p.expectCommaOr(token.RightBrace, "struct type") {
				break
			}
		}
		p.expect(token.RightBrace)
		p.next()
		return t
	}
	p.errorf("expected type, found %s", p.s.Token)
	return tipe.Never
}

func (p *Parser) parseIdent() *expr.Ident {
	name := "_"
	sp := p.tokSpan()
	if p.expect(token.Ident) {
		name = p.s.Literal.(string)
		p.next()
	}
	return &expr.Ident{Position: sp, Name: name}
}

func (p *Parser) tokSpan() src.Span {
	return src.Span{Start: p.s.Start, End: p.s.End}
}

func (p *Parser) bad(start src.Pos, msg string) *expr.Bad {
	return &expr.Bad{Position: p.span(start), Error: fmt.Errorf("%s", msg)}
}

func describe(x expr.Expr) string {
	switch x.(type) {
	case *expr.BasicLiteral:
		return "a literal"
	case *expr.Call:
		return "a call"
	case *expr.Selector:
		return "a field"
	}
	return "this expression"
}

type Errors []Error

func (e Errors) Error() string {
	buf := new(bytes.Buffer)
	buf.WriteString("tern: parser errors:\n")
	for _, err := range e {
		fmt.Fprintf(buf, "%s: %v\n", err.Pos, err.Msg)
	}
	return buf.String()
}

type Error struct {
	Pos src.Pos
	Msg string
}

func (e Error) Error() string {
	return fmt.Sprintf("tern: parser: %s (%s)", e.Msg, e.Pos)
}

func (p *Parser) errorf(format string, a ...interface{}) {
	p.errorfAt(p.s.Start, format, a...)
}

func (p *Parser) errorfAt(pos src.Pos, format string, a ...interface{}) {
	p.errs = append(p.errs, Error{Pos: pos, Msg: fmt.Sprintf(format, a...)})
}

func (p *Parser) expect(t token.Token) bool {
	met := t == p.s.Token
	if !met {
		p.errorf("expected %q, found %q", t, p.s.Token)
	}
	return met
}
