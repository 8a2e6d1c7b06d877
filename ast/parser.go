// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"fmt"
	"strconv"
	"unicode"
)

// Parser state for a single input. The concrete syntax is line
// oriented: one sentence per line, with continuation while a
// parenthesized argument list is open or the previous token is a comma
// or the rule separator.
//
//	server("web")
//	error(x) :- server(x), not healthy(x)
//	insert[quarantine(x)] :- error(x)
//	nova:servers(id, name)
//
// Barewords are variables. Constants are quoted strings, numbers, and
// the booleans true/false. Comments run from '#' to end of line. A
// trailing period after a sentence is accepted and ignored.
type parser struct {
	file   string
	tokens []token
	pos    int
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNewline
	tokenIdent
	tokenString
	tokenNumber
	tokenLparen
	tokenRparen
	tokenLbracket
	tokenRbracket
	tokenComma
	tokenColon
	tokenColonDash
	tokenPeriod
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of input"
	case tokenNewline:
		return "end of line"
	case tokenIdent:
		return "identifier"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	case tokenLparen:
		return "("
	case tokenRparen:
		return ")"
	case tokenLbracket:
		return "["
	case tokenRbracket:
		return "]"
	case tokenComma:
		return ","
	case tokenColon:
		return ":"
	case tokenColonDash:
		return ":-"
	case tokenPeriod:
		return "."
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	text string
	row  int
	col  int
}

// ParseModule parses a sequence of sentences and returns them in rule
// form: bare atoms become rules with empty bodies. filename is used
// for error locations only. All parse errors are collected and
// returned together as Errors.
func ParseModule(filename, input string) ([]*Rule, error) {
	formulas, err := parseFormulas(filename, input)
	if err != nil {
		return nil, err
	}
	rules := make([]*Rule, 0, len(formulas))
	var errs Errors
	for _, f := range formulas {
		rule, ok := ToRule(f)
		if !ok {
			errs = append(errs, NewError(ParseErr, f.Loc(), "negated sentence cannot stand alone: %v", f))
			continue
		}
		rules = append(rules, rule)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return rules, nil
}

// ParseStatement parses exactly one sentence and returns it as a
// Formula: a *Literal for a bare (possibly negated) atom, a *Rule
// otherwise.
func ParseStatement(input string) (Formula, error) {
	formulas, err := parseFormulas("", input)
	if err != nil {
		return nil, err
	}
	switch len(formulas) {
	case 0:
		return nil, NewError(ParseErr, nil, "empty input")
	case 1:
		return formulas[0], nil
	default:
		return nil, NewError(ParseErr, formulas[1].Loc(), "expected exactly one sentence")
	}
}

// ParseRule parses exactly one sentence in rule form: bare atoms
// become rules with empty bodies.
func ParseRule(input string) (*Rule, error) {
	formula, err := ParseStatement(input)
	if err != nil {
		return nil, err
	}
	rule, ok := ToRule(formula)
	if !ok {
		return nil, NewError(ParseErr, formula.Loc(), "negated sentence cannot stand alone: %v", formula)
	}
	return rule, nil
}

// ParseLiteral parses exactly one (possibly negated, possibly modal)
// literal.
func ParseLiteral(input string) (*Literal, error) {
	lits, err := ParseQuery(input)
	if err != nil {
		return nil, err
	}
	if len(lits) != 1 {
		return nil, NewError(ParseErr, lits[1].Loc(), "expected exactly one literal")
	}
	return lits[0], nil
}

// ParseQuery parses a comma separated sequence of literals.
func ParseQuery(input string) ([]*Literal, error) {
	tokens, err := scan("", input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	p.skipSeparators()
	if p.peek().kind == tokenEOF {
		return nil, NewError(ParseErr, nil, "empty query")
	}
	lits, err := p.parseLiterals()
	if err != nil {
		return nil, err
	}
	p.skipSeparators()
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, p.errUnexpected(tok)
	}
	return lits, nil
}

// MustParseRule parses the input or panics. For use in tests and
// static initialization.
func MustParseRule(input string) *Rule {
	rule, err := ParseRule(input)
	if err != nil {
		panic(err)
	}
	return rule
}

// MustParseLiteral parses the input or panics. For use in tests and
// static initialization.
func MustParseLiteral(input string) *Literal {
	lit, err := ParseLiteral(input)
	if err != nil {
		panic(err)
	}
	return lit
}

// MustParseModule parses the input or panics. For use in tests and
// static initialization.
func MustParseModule(input string) []*Rule {
	rules, err := ParseModule("", input)
	if err != nil {
		panic(err)
	}
	return rules
}

func parseFormulas(filename, input string) ([]Formula, error) {
	tokens, err := scan(filename, input)
	if err != nil {
		return nil, err
	}
	p := &parser{file: filename, tokens: tokens}
	var formulas []Formula
	var errs Errors
	for {
		p.skipSeparators()
		if p.peek().kind == tokenEOF {
			break
		}
		formula, err := p.parseSentence()
		if err != nil {
			errs = appendErr(errs, err)
			p.recover()
			continue
		}
		formulas = append(formulas, formula)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return formulas, nil
}

func appendErr(errs Errors, err error) Errors {
	switch err := err.(type) {
	case Errors:
		return append(errs, err...)
	case *Error:
		return append(errs, err)
	default:
		return append(errs, NewError(ParseErr, nil, "%v", err))
	}
}

// recover advances past the current sentence so that parsing can
// continue after an error.
func (p *parser) recover() {
	for {
		switch p.peek().kind {
		case tokenEOF:
			return
		case tokenNewline:
			p.next()
			return
		default:
			p.next()
		}
	}
}

func (p *parser) parseSentence() (Formula, error) {
	head, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenColonDash {
		p.skipPeriod()
		if err := p.expectEnd(); err != nil {
			return nil, err
		}
		return head, nil
	}
	p.next()
	body, err := p.parseLiterals()
	if err != nil {
		return nil, err
	}
	p.skipPeriod()
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return &Rule{Head: head, Body: body, Location: head.Location}, nil
}

func (p *parser) parseLiterals() ([]*Literal, error) {
	var lits []*Literal
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		lits = append(lits, lit)
		if p.peek().kind != tokenComma {
			return lits, nil
		}
		p.next()
		p.skipNewlines()
	}
}

func (p *parser) parseLiteral() (*Literal, error) {
	tok := p.peek()
	negated := false
	if tok.kind == tokenIdent && tok.text == "not" {
		negated = true
		p.next()
	}
	lit, err := p.parseModalAtom()
	if err != nil {
		return nil, err
	}
	lit.Negated = negated
	if negated {
		lit.Location = p.loc(tok)
	}
	return lit, nil
}

func (p *parser) parseModalAtom() (*Literal, error) {
	tok := p.peek()
	if tok.kind != tokenIdent {
		return nil, p.errUnexpected(tok)
	}
	if isModal(tok.text) && p.peekAt(1).kind == tokenLbracket {
		p.next()
		p.next()
		lit, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRbracket); err != nil {
			return nil, err
		}
		lit.Modal = tok.text
		lit.Location = p.loc(tok)
		return lit, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (*Literal, error) {
	tok := p.peek()
	if tok.kind != tokenIdent {
		return nil, p.errUnexpected(tok)
	}
	if tok.text == "not" || tok.text == "true" || tok.text == "false" {
		return nil, NewError(ParseErr, p.loc(tok), "unexpected keyword %v", tok.text)
	}
	p.next()

	lit := &Literal{Table: tok.text, Location: p.loc(tok)}

	if p.peek().kind == tokenColon {
		p.next()
		tableTok := p.peek()
		if tableTok.kind != tokenIdent {
			return nil, p.errUnexpected(tableTok)
		}
		p.next()
		lit.Theory = tok.text
		lit.Table = tableTok.text
	}

	if p.peek().kind != tokenLparen {
		return lit, nil
	}
	p.next()
	p.skipNewlines()

	if p.peek().kind == tokenRparen {
		p.next()
		return lit, nil
	}

	for {
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		lit.Args = append(lit.Args, term)
		switch tok := p.peek(); tok.kind {
		case tokenComma:
			p.next()
			p.skipNewlines()
		case tokenRparen:
			p.next()
			return lit, nil
		default:
			return nil, p.errUnexpected(tok)
		}
	}
}

func (p *parser) parseTerm() (*Term, error) {
	tok := p.peek()
	switch tok.kind {
	case tokenIdent:
		p.next()
		switch tok.text {
		case "true":
			return &Term{Value: Boolean(true), Location: p.loc(tok)}, nil
		case "false":
			return &Term{Value: Boolean(false), Location: p.loc(tok)}, nil
		case "not":
			return nil, NewError(ParseErr, p.loc(tok), "unexpected keyword not")
		}
		return &Term{Value: Var(tok.text), Location: p.loc(tok)}, nil
	case tokenString:
		p.next()
		unquoted, err := strconv.Unquote(tok.text)
		if err != nil {
			return nil, NewError(ParseErr, p.loc(tok), "illegal string literal: %v", tok.text)
		}
		return &Term{Value: String(unquoted), Location: p.loc(tok)}, nil
	case tokenNumber:
		p.next()
		return &Term{Value: Number(tok.text), Location: p.loc(tok)}, nil
	}
	return nil, p.errUnexpected(tok)
}

func (p *parser) peek() token {
	return p.peekAt(0)
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset < len(p.tokens) {
		return p.tokens[p.pos+offset]
	}
	return token{kind: tokenEOF}
}

func (p *parser) next() token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) error {
	tok := p.peek()
	if tok.kind != kind {
		return NewError(ParseErr, p.loc(tok), "expected %v but got %v", kind, describe(tok))
	}
	p.next()
	return nil
}

// expectEnd requires the sentence to be finished: a newline or the end
// of input.
func (p *parser) expectEnd() error {
	switch tok := p.peek(); tok.kind {
	case tokenNewline:
		p.next()
		return nil
	case tokenEOF:
		return nil
	default:
		return p.errUnexpected(tok)
	}
}

func (p *parser) skipPeriod() {
	if p.peek().kind == tokenPeriod {
		p.next()
	}
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tokenNewline {
		p.next()
	}
}

func (p *parser) skipSeparators() {
	for {
		switch p.peek().kind {
		case tokenNewline, tokenPeriod:
			p.next()
		default:
			return
		}
	}
}

func (p *parser) loc(tok token) *Location {
	return NewLocation([]byte(tok.text), p.file, tok.row, tok.col)
}

func (p *parser) errUnexpected(tok token) error {
	return NewError(ParseErr, p.loc(tok), "unexpected %v", describe(tok))
}

func describe(tok token) string {
	switch tok.kind {
	case tokenIdent, tokenNumber:
		return fmt.Sprintf("%v %q", tok.kind, tok.text)
	case tokenString:
		return fmt.Sprintf("string %v", tok.text)
	default:
		return tok.kind.String()
	}
}

func isModal(s string) bool {
	switch s {
	case ModalInsert, ModalDelete, ModalExecute:
		return true
	}
	return false
}

// scan tokenizes the input. Newlines inside an open argument list, or
// following a comma or rule separator, are dropped so that sentences
// may continue across lines.
func scan(filename, input string) ([]token, error) {
	var tokens []token
	depth := 0
	row := 1
	col := 1

	emit := func(kind tokenKind, text string, tokRow, tokCol int) {
		tokens = append(tokens, token{kind: kind, text: text, row: tokRow, col: tokCol})
	}

	runes := []rune(input)
	for i := 0; i < len(runes); {
		r := runes[i]
		tokRow, tokCol := row, col

		advance := func(n int) {
			for j := 0; j < n; j++ {
				if runes[i+j] == '\n' {
					row++
					col = 1
				} else {
					col++
				}
			}
			i += n
		}

		switch {
		case r == '\n':
			if depth == 0 && !continues(tokens) {
				emit(tokenNewline, "\n", tokRow, tokCol)
			}
			advance(1)
		case r == ' ' || r == '\t' || r == '\r':
			advance(1)
		case r == '#':
			for i < len(runes) && runes[i] != '\n' {
				advance(1)
			}
		case r == '(':
			depth++
			emit(tokenLparen, "(", tokRow, tokCol)
			advance(1)
		case r == ')':
			if depth > 0 {
				depth--
			}
			emit(tokenRparen, ")", tokRow, tokCol)
			advance(1)
		case r == '[':
			depth++
			emit(tokenLbracket, "[", tokRow, tokCol)
			advance(1)
		case r == ']':
			if depth > 0 {
				depth--
			}
			emit(tokenRbracket, "]", tokRow, tokCol)
			advance(1)
		case r == ',':
			emit(tokenComma, ",", tokRow, tokCol)
			advance(1)
		case r == '.':
			emit(tokenPeriod, ".", tokRow, tokCol)
			advance(1)
		case r == ':':
			if i+1 < len(runes) && runes[i+1] == '-' {
				emit(tokenColonDash, ":-", tokRow, tokCol)
				advance(2)
			} else {
				emit(tokenColon, ":", tokRow, tokCol)
				advance(1)
			}
		case r == '"':
			j := i + 1
			for j < len(runes) {
				if runes[j] == '\\' {
					j += 2
					continue
				}
				if runes[j] == '"' || runes[j] == '\n' {
					break
				}
				j++
			}
			if j >= len(runes) || runes[j] != '"' {
				loc := NewLocation(nil, filename, tokRow, tokCol)
				return nil, NewError(ParseErr, loc, "non-terminated string")
			}
			emit(tokenString, string(runes[i:j+1]), tokRow, tokCol)
			advance(j + 1 - i)
		case r == '-' || unicode.IsDigit(r):
			j := i
			if runes[j] == '-' {
				j++
			}
			start := j
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			if j == start {
				loc := NewLocation(nil, filename, tokRow, tokCol)
				return nil, NewError(ParseErr, loc, "illegal token %q", string(r))
			}
			if j < len(runes) && runes[j] == '.' && j+1 < len(runes) && unicode.IsDigit(runes[j+1]) {
				j++
				for j < len(runes) && unicode.IsDigit(runes[j]) {
					j++
				}
			}
			emit(tokenNumber, string(runes[i:j]), tokRow, tokCol)
			advance(j - i)
		case isIdentStart(r):
			j := i + 1
			for j < len(runes) && isIdentRune(runes[j]) {
				j++
			}
			emit(tokenIdent, string(runes[i:j]), tokRow, tokCol)
			advance(j - i)
		default:
			loc := NewLocation(nil, filename, tokRow, tokCol)
			return nil, NewError(ParseErr, loc, "illegal token %q", string(r))
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, row: row, col: col})
	return tokens, nil
}

// continues reports whether the sentence in progress extends onto the
// next line.
func continues(tokens []token) bool {
	if len(tokens) == 0 {
		return false
	}
	switch tokens[len(tokens)-1].kind {
	case tokenComma, tokenColonDash:
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
