// A small recursive-descent parser for structured query strings.
//
// Grammar:
//
//	query   := andExpr { "or" andExpr }
//	andExpr := term { "and" term }
//	term    := field operator value
//	value   := string | number | true | false | "[" value { "," value } "]"
//
// "and" binds tighter than "or", so the output maps directly onto the
// 2D OrFilters form. Strings are single- or double-quoted; bare words are
// accepted as string values for convenience. There is no parenthesized
// grouping; queries needing it are built as OrFilters directly.

package filters

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse converts a structured query string into the 2D filter form.
// Returns an error when the input does not follow the grammar; callers
// typically fall back to a full-text match on error.
func Parse(query string) (OrFilters, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	out, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected token %q", p.peek().text)
	}
	return out, nil
}

type tokenKind int

const (
	tokEOF  tokenKind = iota // end of input
	tokWord                  // field names, keywords, bare values
	tokOp                    // symbolic operators: == != < <= > >=
	tokString                // quoted string
	tokNumber
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
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
			toks = append(toks, token{tokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, s[i+1 : i+1+end]})
			i += end + 2
		case c == '=' || c == '!' || c == '<' || c == '>':
			j := i + 1
			if j < len(s) && s[j] == '=' {
				j++
			}
			op := s[i:j]
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q at offset %d", op, i)
			}
			toks = append(toks, token{tokOp, op})
			i = j
		case c == '-' || c == '.' || unicode.IsDigit(rune(c)):
			j := i + 1
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j]})
			i = j
		default:
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
			}
			toks = append(toks, token{tokWord, s[i:j]})
			i = j
		}
	}
	return toks, nil
}

// isWordByte accepts field name characters, including the aspect key
// separator ':' and the scoped-filter marker '@'.
func isWordByte(c byte) bool {
	return c == '_' || c == '-' || c == '.' || c == ':' || c == '@' || c == '/' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseQuery() (OrFilters, error) {
	var out OrFilters
	group, err := p.parseAndGroup()
	if err != nil {
		return nil, err
	}
	out = append(out, group)
	for !p.done() {
		t := p.peek()
		if t.kind != tokWord || !strings.EqualFold(t.text, "or") {
			break
		}
		p.next()
		group, err := p.parseAndGroup()
		if err != nil {
			return nil, err
		}
		out = append(out, group)
	}
	return out, nil
}

func (p *parser) parseAndGroup() (Filters, error) {
	var group Filters
	f, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	group = append(group, f)
	for !p.done() {
		t := p.peek()
		if t.kind != tokWord || !strings.EqualFold(t.text, "and") {
			break
		}
		p.next()
		f, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		group = append(group, f)
	}
	return group, nil
}

func (p *parser) parseTerm() (Filter, error) {
	field := p.next()
	if field.kind != tokWord {
		return Filter{}, fmt.Errorf("expected field name, got %q", field.text)
	}
	op := p.next()
	var operator Operator
	switch op.kind {
	case tokOp:
		operator = Operator(op.text)
	case tokWord:
		operator = Operator(strings.ToLower(op.text))
	default:
		return Filter{}, fmt.Errorf("expected operator after %q, got %q", field.text, op.text)
	}
	if !operator.Valid() {
		return Filter{}, fmt.Errorf("unknown operator %q", op.text)
	}
	value, err := p.parseValue()
	if err != nil {
		return Filter{}, err
	}
	return Filter{Field: field.text, Operator: operator, Value: value}, nil
}

func (p *parser) parseValue() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return n, nil
	case tokWord:
		switch strings.ToLower(t.text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		// Bare word as string value.
		return t.text, nil
	case tokLBracket:
		var list []any
		for {
			if p.peek().kind == tokRBracket {
				p.next()
				return list, nil
			}
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			list = append(list, v)
			switch p.peek().kind {
			case tokComma:
				p.next()
			case tokRBracket:
				p.next()
				return list, nil
			default:
				return nil, fmt.Errorf("expected ',' or ']' in list, got %q", p.peek().text)
			}
		}
	default:
		return nil, fmt.Errorf("expected value, got %q", t.text)
	}
}
