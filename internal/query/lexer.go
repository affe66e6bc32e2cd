package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenWord
	tokenString
	tokenNumber
	tokenTrue
	tokenFalse
	tokenNull
	tokenPipe
)

type token struct {
	typ     tokenType
	literal string
	pos     int
}

func parseError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

func lex(input string) ([]token, error) {
	tokens := make([]token, 0, len(input)/4+1)
	pos := 0

	for pos < len(input) {
		if r, width := utf8.DecodeRuneInString(input[pos:]); isSpace(r) {
			pos += width
			continue
		}

		switch input[pos] {
		case '|':
			tokens = append(tokens, token{typ: tokenPipe, pos: pos})
			pos++
			continue
		case '\'', '"':
			literal, nextPos, err := lexString(input, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenString, literal: literal, pos: pos})
			pos = nextPos
			continue
		}

		start := pos
		nextPos, err := lexWord(input, pos)
		if err != nil {
			return nil, err
		}
		pos = nextPos

		literal := input[start:pos]
		switch {
		case literal == "true":
			tokens = append(tokens, token{typ: tokenTrue, pos: start})
		case literal == "false":
			tokens = append(tokens, token{typ: tokenFalse, pos: start})
		case literal == "null":
			tokens = append(tokens, token{typ: tokenNull, pos: start})
		case isNumberLiteral(literal):
			tokens = append(tokens, token{typ: tokenNumber, literal: literal, pos: start})
		default:
			tokens = append(tokens, token{typ: tokenWord, literal: literal, pos: start})
		}
	}

	tokens = append(tokens, token{typ: tokenEOF, pos: len(input)})
	return tokens, nil
}

// lexWord consumes a bare word. Quotes inside a word (a[href="x y"]) are
// kept verbatim together with the quoted run.
func lexWord(input string, start int) (int, error) {
	pos := start
	for pos < len(input) {
		ch := input[pos]
		r, width := utf8.DecodeRuneInString(input[pos:])
		if isSpace(r) || ch == '|' {
			break
		}

		if ch == '\'' || ch == '"' {
			end := strings.IndexByte(input[pos+1:], ch)
			if end < 0 {
				return 0, parseError("unterminated quote in %q at position %d", input[start:], pos)
			}
			pos += end + 2
			continue
		}

		pos += width
	}
	return pos, nil
}

func lexString(input string, start int) (string, int, error) {
	quote := input[start]
	var b strings.Builder

	for pos := start + 1; pos < len(input); pos++ {
		ch := input[pos]
		if ch == quote {
			return b.String(), pos + 1, nil
		}

		if ch == '\\' {
			pos++
			if pos >= len(input) {
				return "", 0, parseError("unterminated escape sequence at position %d", start)
			}
			switch escaped := input[pos]; escaped {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(escaped)
			}
			continue
		}

		b.WriteByte(ch)
	}

	return "", 0, parseError("unterminated string at position %d", start)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

// isNumberLiteral accepts -?digits(.digits)? only; ParseFloat alone would
// also accept words such as "inf".
func isNumberLiteral(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}

	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if digits == 0 {
		return false
	}

	if i < len(s) && s[i] == '.' {
		i++
		frac := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			frac++
		}
		if frac == 0 {
			return false
		}
	}

	if i != len(s) {
		return false
	}

	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
