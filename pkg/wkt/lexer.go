// Package wkt reads single-ring polygon literals of the form
// POLYGON ((x1 y1, x2 y2, ...)) used to describe clip windows.
package wkt

import (
	"fmt"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokAtom
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokAtom:
		return "word"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokAtom {
		return fmt.Sprintf("%q", t.text)
	}
	return t.kind.String()
}

// lexer splits WKT text into atoms and punctuation. Whitespace, including
// line breaks, and ';' (the EWKT SRID separator) only delimit atoms.
type lexer struct {
	src string
	pos int
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == ';'
}

func (l *lexer) next() token {
	for l.pos < len(l.src) && isDelimiter(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}
	}

	start := l.pos
	switch l.src[l.pos] {
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}
	case ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}
	}

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '(' || c == ')' || c == ',' || isDelimiter(rune(c)) {
			break
		}
		l.pos++
	}
	return token{kind: tokAtom, text: l.src[start:l.pos], pos: start}
}
