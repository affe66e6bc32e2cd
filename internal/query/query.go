// Package query holds the canonical instruction model consumed by the
// interpreter and the normalizers that build it from the terse authoring
// forms: pipe expressions, YAML query files and plain Go values.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AdoptSubroutine is the reserved instruction that branches into named
// sub-queries.
const AdoptSubroutine = "adopt"

// ErrParse indicates a query that could not be normalized.
var ErrParse = errors.New("query parse error")

// Instruction is a single named operation with ordered parameters.
type Instruction struct {
	Subroutine string
	Parameters []any
}

// Query is one linear instruction pipeline.
type Query []Instruction

// Branch is a named sub-query of an adopt instruction.
type Branch struct {
	Name  string
	Query Query
}

// Branches is the ordered mapping passed as the single adopt parameter.
type Branches []Branch

// Adopt builds an adopt instruction.
func Adopt(branches ...Branch) Instruction {
	return Instruction{
		Subroutine: AdoptSubroutine,
		Parameters: []any{Branches(branches)},
	}
}

// New builds an instruction from a subroutine name and parameters.
func New(subroutine string, parameters ...any) Instruction {
	return Instruction{
		Subroutine: subroutine,
		Parameters: parameters,
	}
}

// IsAdopt reports whether the instruction is the reserved adopt instruction.
func (i Instruction) IsAdopt() bool {
	return i.Subroutine == AdoptSubroutine
}

// String renders the instruction in expression form.
func (i Instruction) String() string {
	if len(i.Parameters) == 0 {
		return i.Subroutine
	}

	parts := make([]string, 0, len(i.Parameters)+1)
	parts = append(parts, i.Subroutine)
	for _, p := range i.Parameters {
		parts = append(parts, formatParameter(p))
	}
	return strings.Join(parts, " ")
}

// String renders the query in expression form. Adopt branches are rendered
// inline as {name: query; ...} which is for diagnostics only.
func (q Query) String() string {
	parts := make([]string, 0, len(q))
	for _, instruction := range q {
		parts = append(parts, instruction.String())
	}
	return strings.Join(parts, " | ")
}

// String renders the branches for diagnostics.
func (b Branches) String() string {
	parts := make([]string, 0, len(b))
	for _, branch := range b {
		parts = append(parts, fmt.Sprintf("%s: %s", branch.Name, branch.Query))
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

func formatParameter(p any) string {
	switch v := p.(type) {
	case nil:
		return "null"
	case string:
		if needsQuoting(v) {
			return strconv.Quote(v)
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case Branches:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	switch s {
	case "true", "false", "null":
		return true
	}
	if isNumberLiteral(s) {
		return true
	}
	for _, r := range s {
		if isSpace(r) || r == '|' || r == '"' || r == '\'' || r == '\\' {
			return true
		}
	}
	return false
}
