package where

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp // comparison operator
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '\'' || c == '"':
		quote := c
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.src) && l.src[l.pos] != quote {
			sb.WriteByte(l.src[l.pos])
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("unterminated string at offset %d", start)
		}
		l.pos++
		return token{kind: tokString, text: sb.String(), pos: start}, nil
	case strings.ContainsRune("=!<>", rune(c)):
		for l.pos < len(l.src) && strings.ContainsRune("=!<>", rune(l.src[l.pos])) {
			l.pos++
		}
		op := l.src[start:l.pos]
		switch op {
		case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
			return token{kind: tokOp, text: op, pos: start}, nil
		case "!":
			return token{kind: tokNot, text: op, pos: start}, nil
		}
		return token{}, fmt.Errorf("invalid operator %q at offset %d", op, start)
	case c == '&' || c == '|':
		for l.pos < len(l.src) && (l.src[l.pos] == '&' || l.src[l.pos] == '|') {
			l.pos++
		}
		switch l.src[start:l.pos] {
		case "&&":
			return token{kind: tokAnd, text: "&&", pos: start}, nil
		case "||":
			return token{kind: tokOr, text: "||", pos: start}, nil
		}
		return token{}, fmt.Errorf("invalid operator %q at offset %d", l.src[start:l.pos], start)
	case c == '-' || c >= '0' && c <= '9':
		l.pos++
		for l.pos < len(l.src) && (l.src[l.pos] >= '0' && l.src[l.pos] <= '9' || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
	case isIdentStart(rune(c)):
		l.pos++
		for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
			l.pos++
		}
		word := l.src[start:l.pos]
		switch word {
		case "and":
			return token{kind: tokAnd, text: word, pos: start}, nil
		case "or":
			return token{kind: tokOr, text: word, pos: start}, nil
		case "not":
			return token{kind: tokNot, text: word, pos: start}, nil
		}
		return token{kind: tokIdent, text: word, pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at offset %d", c, start)
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

type parser struct {
	lex *lexer
	cur token
}

// Parse parses one where-expression. Syntax errors carry the offending
// offset so callers can render precise diagnostics.
func Parse(src string) (Expr, error) {
	p := &parser{lex: &lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.cur.text, p.cur.pos)
	}
	return expr, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	switch p.cur.kind {
	case tokNot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Inner: inner}, nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, fmt.Errorf("expected ) at offset %d", p.cur.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	case tokIdent:
		return p.parseCmp()
	}
	return nil, fmt.Errorf("expected expression at offset %d", p.cur.pos)
}

func (p *parser) parseCmp() (Expr, error) {
	field := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	var op string
	switch {
	case p.cur.kind == tokOp:
		op = p.cur.text
	case p.cur.kind == tokIdent && p.cur.text == OpContains:
		op = OpContains
	default:
		return nil, fmt.Errorf("expected operator after %q at offset %d", field, p.cur.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &CmpExpr{Field: field, Op: op, Value: lit}, nil
}

func (p *parser) parseLiteral() (Literal, error) {
	tok := p.cur

	var lit Literal
	switch tok.kind {
	case tokString:
		lit = Literal{Kind: LitString, Str: tok.text}
	case tokNumber:
		n, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid number %q at offset %d", tok.text, tok.pos)
		}
		lit = Literal{Kind: LitNumber, Num: n, Str: tok.text}
	case tokIdent:
		switch tok.text {
		case "true":
			lit = Literal{Kind: LitBool, Bool: true}
		case "false":
			lit = Literal{Kind: LitBool, Bool: false}
		default:
			// Bare words read as strings: status == done.
			lit = Literal{Kind: LitString, Str: tok.text}
		}
	default:
		return Literal{}, fmt.Errorf("expected literal at offset %d", tok.pos)
	}

	if err := p.advance(); err != nil {
		return Literal{}, err
	}
	return lit, nil
}
