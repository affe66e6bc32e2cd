package subroutine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/value"
)

// Unbounded is the Max of a quantifier without an upper limit.
const Unbounded = -1

// Quantifier bounds the number of nodes a selector must match and optionally
// picks one of them.
type Quantifier struct {
	Min      int
	Max      int
	Index    int
	HasIndex bool
}

// DefaultQuantifier requires at least one match.
var DefaultQuantifier = Quantifier{Min: 1, Max: Unbounded}

var quantifierPattern = regexp.MustCompile(`^(?:\{(\d+)(?:(,)(\d*))?\})?(?:\[(\d+)\])?$`)

// ParseQuantifier parses {m}, {m,}, {m,n}, each optionally followed by an
// accessor [i]. A bare [i] means {1,}[i].
func ParseQuantifier(expression string) (Quantifier, error) {
	match := quantifierPattern.FindStringSubmatch(expression)
	if expression == "" || match == nil {
		return Quantifier{}, fmt.Errorf("%w: invalid quantifier %q", ErrInvalidParameters, expression)
	}

	q := DefaultQuantifier

	if match[1] != "" {
		minimum, err := strconv.Atoi(match[1])
		if err != nil {
			return Quantifier{}, fmt.Errorf("%w: invalid quantifier %q: %v", ErrInvalidParameters, expression, err)
		}
		q.Min, q.Max = minimum, minimum

		if match[2] == "," {
			q.Max = Unbounded
			if match[3] != "" {
				maximum, err := strconv.Atoi(match[3])
				if err != nil {
					return Quantifier{}, fmt.Errorf("%w: invalid quantifier %q: %v", ErrInvalidParameters, expression, err)
				}
				if maximum < minimum {
					return Quantifier{}, fmt.Errorf("%w: quantifier %q has max below min", ErrInvalidParameters, expression)
				}
				q.Max = maximum
			}
		}
	}

	if match[4] != "" {
		index, err := strconv.Atoi(match[4])
		if err != nil {
			return Quantifier{}, fmt.Errorf("%w: invalid accessor %q: %v", ErrInvalidParameters, expression, err)
		}
		q.Index, q.HasIndex = index, true
	}

	return q, nil
}

// Allows reports whether count matches satisfy the quantifier bounds.
func (q Quantifier) Allows(count int) bool {
	if count < q.Min {
		return false
	}
	return q.Max == Unbounded || count <= q.Max
}

// Select navigates to descendants of a node:
//
//	select <selector> [quantifier]
//
// A match count outside the quantifier yields value.Invalid. Without an
// accessor the matches are returned as a List, which the interpreter fans
// out; with an accessor the single node is returned.
func Select(ctx context.Context, evaluator document.Evaluator, subject value.Result, parameters []any) (value.Result, error) {
	node, err := nodeSubject(NameSelect, subject)
	if err != nil {
		return nil, err
	}

	if err := expectParameters(NameSelect, parameters, 1, 2); err != nil {
		return nil, err
	}

	selector, err := stringParameter(NameSelect, parameters, 0, "selector")
	if err != nil {
		return nil, err
	}

	quantifier := DefaultQuantifier
	if len(parameters) == 2 {
		expression, err := stringParameter(NameSelect, parameters, 1, "quantifier")
		if err != nil {
			return nil, err
		}
		if quantifier, err = ParseQuantifier(expression); err != nil {
			return nil, err
		}
	}

	nodes, err := evaluator.QuerySelectorAll(ctx, node, selector)
	if err != nil {
		return nil, err
	}

	if !quantifier.Allows(len(nodes)) {
		return value.Invalid, nil
	}

	if quantifier.HasIndex {
		if quantifier.Index >= len(nodes) {
			return value.Invalid, nil
		}
		return value.NewNode(nodes[quantifier.Index]), nil
	}

	return value.Nodes(nodes), nil
}
