package expr

import (
	"strings"
	"unicode/utf8"

	"github.com/hugr-lab/vizql/errs"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
	tokTrue
	tokFalse
	tokNull
)

type token struct {
	kind  tokenKind
	text  string // raw source text (for numbers: source; for strings: raw incl. quotes)
	str   string // decoded string value, only for tokString
	start int
	end   int
}

// lexer tokenizes the JS-subset grammar. It is a simple hand-written
// scanner, not a DFA generator — the grammar is small and fixed.
type lexer struct {
	src []byte
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []byte(src)}
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) byteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

// next returns the next token, or a Parse error for malformed input
// (unrecognized byte, unterminated string).
func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, start: start, end: start}, nil
	}

	r, size := utf8.DecodeRune(l.src[l.pos:])

	switch {
	case isIdentStart(r):
		l.pos += size
		for l.pos < len(l.src) {
			r2, size2 := utf8.DecodeRune(l.src[l.pos:])
			if !isIdentCont(r2) {
				break
			}
			l.pos += size2
		}
		text := string(l.src[start:l.pos])
		switch text {
		case "true":
			return token{kind: tokTrue, text: text, start: start, end: l.pos}, nil
		case "false":
			return token{kind: tokFalse, text: text, start: start, end: l.pos}, nil
		case "null":
			return token{kind: tokNull, text: text, start: start, end: l.pos}, nil
		default:
			return token{kind: tokIdent, text: text, start: start, end: l.pos}, nil
		}

	case r >= '0' && r <= '9':
		return l.lexNumber(start)

	case r == '\'' || r == '"':
		return l.lexString(start, byte(r))

	default:
		return l.lexPunct(start)
	}
}

func (l *lexer) lexNumber(start int) (token, error) {
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	if l.peekByte() == '.' {
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
	}
	if l.peekByte() == 'e' || l.peekByte() == 'E' {
		save := l.pos
		l.pos++
		if l.peekByte() == '+' || l.peekByte() == '-' {
			l.pos++
		}
		if l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	text := string(l.src[start:l.pos])
	return token{kind: tokNumber, text: text, start: start, end: l.pos}, nil
}

func (l *lexer) lexString(start int, quote byte) (token, error) {
	l.pos++ // consume opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, errs.NewSpan(errs.Parse, start, l.pos, "unterminated string literal")
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			break
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.src) {
				return token{}, errs.NewSpan(errs.Parse, start, l.pos, "unterminated string literal")
			}
			esc := l.src[l.pos]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '\'':
				sb.WriteByte('\'')
			case '"':
				sb.WriteByte('"')
			case '0':
				sb.WriteByte(0)
			default:
				sb.WriteByte(esc)
			}
			l.pos++
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{kind: tokString, text: string(l.src[start:l.pos]), str: sb.String(), start: start, end: l.pos}, nil
}

func (l *lexer) lexPunct(start int) (token, error) {
	three := string(l.src[start:min(start+3, len(l.src))])
	two := string(l.src[start:min(start+2, len(l.src))])
	one := string(l.src[start : start+1])

	for _, p := range []string{">>>"} {
		if three == p {
			l.pos += 3
			return token{kind: tokPunct, text: p, start: start, end: l.pos}, nil
		}
	}
	for _, p := range []string{"===", "!==", "<<=", ">>="} {
		if three == p {
			l.pos += 3
			return token{kind: tokPunct, text: p, start: start, end: l.pos}, nil
		}
	}
	for _, p := range []string{"==", "!=", "<=", ">=", "&&", "||", "<<", ">>"} {
		if two == p {
			l.pos += 2
			return token{kind: tokPunct, text: p, start: start, end: l.pos}, nil
		}
	}
	switch one {
	case "+", "-", "*", "/", "%", "<", ">", "&", "^", "|", "!", "(", ")", "[", "]", "{", "}", ",", ":", "?", ".":
		l.pos++
		return token{kind: tokPunct, text: one, start: start, end: l.pos}, nil
	}
	return token{}, errs.NewSpan(errs.Parse, start, start+1, "unrecognized token %q", one)
}
