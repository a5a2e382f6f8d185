package condition

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
)

// ParseError reports a malformed statement with the byte offset of the
// offending token.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse condition at %d: %s", e.Offset, e.Message)
}

// Parse reads a statement in either namespace back into an expression.
// Archive attribute names are mapped back to their live names, so the
// live and archive renderings of one tree parse to the same tree. values
// supplies the bound values by name (without "$").
func Parse(statement string, values map[string]content.Value) (Expr, error) {
	toks, err := tokenize(statement)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, nil
	}
	p := &parser{toks: toks, values: values}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return e, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokName
	tokBinding
	tokString
	tokOp
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, &ParseError{Offset: i, Message: "unterminated name"}
			}
			toks = append(toks, token{kind: tokName, text: s[i+1 : i+end], pos: i})
			i += end + 1
		case c == '\'':
			var sb strings.Builder
			j := i + 1
			for {
				if j >= len(s) {
					return nil, &ParseError{Offset: i, Message: "unterminated literal"}
				}
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						sb.WriteByte('\'')
						j += 2
						continue
					}
					break
				}
				sb.WriteByte(s[j])
				j++
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), pos: i})
			i = j + 1
		case c == '$':
			j := i + 1
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, &ParseError{Offset: i, Message: "empty binding name"}
			}
			toks = append(toks, token{kind: tokBinding, text: s[i+1 : j], pos: i})
			i = j
		case c == '<':
			if i+1 < len(s) && (s[i+1] == '>' || s[i+1] == '=') {
				toks = append(toks, token{kind: tokOp, text: s[i : i+2], pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tokOp, text: "<", pos: i})
				i++
			}
		case c == '>':
			if i+1 < len(s) && s[i+1] == '=' {
				toks = append(toks, token{kind: tokOp, text: ">=", pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tokOp, text: ">", pos: i})
				i++
			}
		case c == '=':
			toks = append(toks, token{kind: tokOp, text: "=", pos: i})
			i++
		case strings.IndexByte("(),.*", c) >= 0:
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		case isIdentByte(c):
			j := i
			for j < len(s) && isIdentByte(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j], pos: i})
			i = j
		default:
			return nil, &ParseError{Offset: i, Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c < 0x80 && (unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)))
}

type parser struct {
	toks   []token
	pos    int
	values map[string]content.Value
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokPunct, text: "<end>", pos: -1}
	}
	return p.toks[p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	off := -1
	if !p.done() {
		off = p.toks[p.pos].pos
	}
	return &ParseError{Offset: off, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) keyword(word string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) punct(s string) bool {
	t := p.peek()
	if t.kind == tokPunct && t.text == s {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	if !p.punct(s) {
		return p.errorf("expected %q, got %q", s, p.peek().text)
	}
	return nil
}

func (p *parser) or() (Expr, error) {
	first, err := p.and()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.keyword("OR") {
		t, err := p.and()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return Disjoin(terms...), nil
}

func (p *parser) and() (Expr, error) {
	first, err := p.unary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for p.keyword("AND") {
		t, err := p.unary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return Conjoin(terms...), nil
}

func (p *parser) unary() (Expr, error) {
	if p.keyword("NOT") {
		t, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Not{Term: t}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	if p.punct("(") {
		e, err := p.or()
		if err != nil {
			return nil, err
		}
		return e, p.expect(")")
	}
	t := p.peek()
	if t.kind == tokIdent {
		switch strings.ToUpper(t.text) {
		case "ISDESCENDANTNODE", "ISCHILDNODE", "ISSAMENODE":
			p.pos++
			return p.position(strings.ToUpper(t.text))
		case "CONTAINS":
			p.pos++
			return p.contains()
		}
	}
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	if p.keyword("IS") {
		prop, ok := left.(Property)
		if !ok {
			return nil, p.errorf("IS NULL requires a property operand")
		}
		not := p.keyword("NOT")
		if !p.keyword("NULL") {
			return nil, p.errorf("expected NULL")
		}
		if not {
			return IsNotNull{Property: prop}, nil
		}
		return IsNull{Property: prop}, nil
	}
	var op Op
	switch tok := p.peek(); {
	case tok.kind == tokOp:
		op = Op(tok.text)
		p.pos++
	case tok.kind == tokIdent && strings.EqualFold(tok.text, "LIKE"):
		op = OpLike
		p.pos++
	default:
		return nil, p.errorf("expected comparison, got %q", tok.text)
	}
	val, err := p.binding()
	if err != nil {
		return nil, err
	}
	return Comparison{Left: left, Op: op, Value: val}, nil
}

func (p *parser) binding() (content.Value, error) {
	t := p.peek()
	if t.kind != tokBinding {
		return nil, p.errorf("expected binding, got %q", t.text)
	}
	p.pos++
	v, ok := p.values[t.text]
	if !ok || v == nil {
		return nil, &ParseError{Offset: t.pos, Message: fmt.Sprintf("no value bound for $%s", t.text)}
	}
	return v, nil
}

func (p *parser) selector() (string, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", p.errorf("expected selector, got %q", t.text)
	}
	p.pos++
	return t.text, nil
}

func (p *parser) position(fn string) (Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	sel, err := p.selector()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokString {
		return nil, p.errorf("expected path literal")
	}
	p.pos++
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	switch fn {
	case "ISDESCENDANTNODE":
		return Descendant{Selector: sel, Path: t.text}, nil
	case "ISCHILDNODE":
		return Child{Selector: sel, Path: t.text}, nil
	default:
		return SameNode{Selector: sel, Path: t.text}, nil
	}
}

func (p *parser) contains() (Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	sel, err := p.selector()
	if err != nil {
		return nil, err
	}
	if err := p.expect("."); err != nil {
		return nil, err
	}
	prop := AllProperties
	if !p.punct("*") {
		t := p.peek()
		if t.kind != tokName {
			return nil, p.errorf("expected property name or *")
		}
		p.pos++
		prop = LiveName(t.text)
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	val, err := p.binding()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return Contains{Selector: sel, Property: prop, Text: val.String()}, nil
}

func (p *parser) operand() (Operand, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return nil, p.errorf("expected operand, got %q", t.text)
	}
	switch strings.ToUpper(t.text) {
	case "LENGTH":
		p.pos++
		if err := p.expect("("); err != nil {
			return nil, err
		}
		prop, err := p.property()
		if err != nil {
			return nil, err
		}
		return Length{Of: prop}, p.expect(")")
	case "NAME", "LOCALNAME":
		p.pos++
		if err := p.expect("("); err != nil {
			return nil, err
		}
		sel, err := p.selector()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if strings.EqualFold(t.text, "NAME") {
			return NodeName{Selector: sel}, nil
		}
		return LocalName{Selector: sel}, nil
	case "LOWER", "UPPER":
		p.pos++
		if err := p.expect("("); err != nil {
			return nil, err
		}
		inner, err := p.operand()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if strings.EqualFold(t.text, "LOWER") {
			return Lower{Of: inner}, nil
		}
		return Upper{Of: inner}, nil
	}
	return p.property()
}

func (p *parser) property() (Property, error) {
	sel, err := p.selector()
	if err != nil {
		return Property{}, err
	}
	if err := p.expect("."); err != nil {
		return Property{}, err
	}
	t := p.peek()
	if t.kind != tokName {
		return Property{}, p.errorf("expected [name], got %q", t.text)
	}
	p.pos++
	return Property{Selector: sel, Name: LiveName(t.text)}, nil
}
