package query

import (
	"strconv"
)

// ParseExpression parses a pipe expression such as
//
//	select "ul > li" {0,} | read attribute href
//
// An empty expression yields an empty query.
func ParseExpression(input string) (Query, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := parser{tokens: tokens, input: input}
	return p.parseQuery()
}

type parser struct {
	tokens []token
	pos    int
	input  string
}

func (p *parser) current() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.typ != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseQuery() (Query, error) {
	if p.current().typ == tokenEOF {
		return Query{}, nil
	}

	var q Query
	for {
		instruction, err := p.parseInstruction()
		if err != nil {
			return nil, err
		}
		q = append(q, instruction)

		switch tok := p.advance(); tok.typ {
		case tokenEOF:
			return q, nil
		case tokenPipe:
			continue
		default:
			return nil, parseError("unexpected token at position %d in %q", tok.pos, p.input)
		}
	}
}

func (p *parser) parseInstruction() (Instruction, error) {
	name := p.advance()
	if name.typ != tokenWord {
		return Instruction{}, parseError("expected subroutine name at position %d in %q", name.pos, p.input)
	}

	instruction := Instruction{Subroutine: name.literal}
	for {
		tok := p.current()
		if tok.typ == tokenPipe || tok.typ == tokenEOF {
			break
		}
		p.advance()

		param, err := tokenValue(tok)
		if err != nil {
			return Instruction{}, err
		}
		instruction.Parameters = append(instruction.Parameters, param)
	}

	return instruction, nil
}

func tokenValue(tok token) (any, error) {
	switch tok.typ {
	case tokenWord, tokenString:
		return tok.literal, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.literal, 64)
		if err != nil {
			return nil, parseError("invalid number %q at position %d", tok.literal, tok.pos)
		}
		return f, nil
	case tokenTrue:
		return true, nil
	case tokenFalse:
		return false, nil
	case tokenNull:
		return nil, nil
	default:
		return nil, parseError("unexpected token at position %d", tok.pos)
	}
}
