package evaluator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokMul
	tokDiv
	tokPow
	tokPercent
	tokBang
	tokLParen
	tokRParen
	tokSqrt
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var symbolTokens = map[rune]tokenKind{
	'+': tokPlus,
	'-': tokMinus,
	'−': tokMinus,
	'*': tokMul,
	'×': tokMul,
	'/': tokDiv,
	'÷': tokDiv,
	'^': tokPow,
	'%': tokPercent,
	'!': tokBang,
	'(': tokLParen,
	')': tokRParen,
	'√': tokSqrt,
}

// tokenize splits input into tokens; whitespace is skipped and ',' is a
// digit-group separator inside numbers.
func tokenize(input string) ([]token, error) {
	var out []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isDigit(r) || r == '.':
			start := i
			var b strings.Builder
			seenDot := false
			for i < len(input) {
				c, sz := utf8.DecodeRuneInString(input[i:])
				if c == ',' {
					i += sz
					continue
				}
				if c == '.' {
					if seenDot {
						return nil, newError(ErrSyntax, i, "unexpected '.'")
					}
					seenDot = true
				} else if !isDigit(c) {
					break
				}
				b.WriteRune(c)
				i += sz
			}
			text := b.String()
			if text == "." {
				return nil, newError(ErrSyntax, start, "lone '.'")
			}
			out = append(out, token{kind: tokNumber, text: text, pos: start})
		case unicode.IsLetter(r) || r == 'π':
			start := i
			for i < len(input) {
				c, sz := utf8.DecodeRuneInString(input[i:])
				if !unicode.IsLetter(c) && !isDigit(c) && c != 'π' {
					break
				}
				i += sz
			}
			out = append(out, token{kind: tokIdent, text: strings.ToLower(input[start:i]), pos: start})
		default:
			kind, ok := symbolTokens[r]
			if !ok {
				return nil, newError(ErrSyntax, i, "unexpected %q", r)
			}
			out = append(out, token{kind: kind, text: string(r), pos: i})
			i += size
		}
	}
	out = append(out, token{kind: tokEOF, pos: len(input)})
	return out, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
