package query

import (
	"fmt"
	"maps"
	"slices"
)

// Normalize converts a denormalized query into its canonical form.
//
// Accepted inputs are an expression string, a Query, an Instruction,
// Branches (one adopt instruction), a map[string]any (one adopt instruction
// with keys in sorted order) and a []any mixing any of those.
func Normalize(input any) (Query, error) {
	switch v := input.(type) {
	case nil:
		return Query{}, nil
	case Query:
		return v, nil
	case []Instruction:
		return Query(v), nil
	case Instruction:
		return Query{v}, nil
	case string:
		return ParseExpression(v)
	case []string:
		out := Query{}
		for index, item := range v {
			q, err := ParseExpression(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", index, err)
			}
			out = append(out, q...)
		}
		return out, nil
	case Branches:
		return Query{Adopt(v...)}, nil
	case map[string]any:
		branches := make(Branches, 0, len(v))
		for _, name := range slices.Sorted(maps.Keys(v)) {
			q, err := Normalize(v[name])
			if err != nil {
				return nil, fmt.Errorf("branch %q: %w", name, err)
			}
			branches = append(branches, Branch{Name: name, Query: q})
		}
		return Query{Adopt(branches...)}, nil
	case []any:
		out := Query{}
		for index, item := range v {
			q, err := Normalize(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", index, err)
			}
			out = append(out, q...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported query type %T", ErrParse, input)
	}
}
