package subroutine

import (
	"context"
	"fmt"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/predicate"
	"github.com/jacoelho/surgeon/internal/value"
)

// Node test operators.
const (
	TestMatches   = "matches"
	TestHas       = "has"
	TestAttribute = "attribute"
)

// NewTest returns the test subroutine backed by predicates:
//
//	test matches <selector>      node matches selector
//	test has <selector>          any descendant matches selector
//	test attribute <name>        node carries the attribute
//	test <operator> [operand...] scalar predicate, e.g. test cel "value > 2.0"
//
// A null scalar yields value.Invalid. Every other outcome is a boolean.
func NewTest(predicates *predicate.Evaluator) Subroutine {
	return func(ctx context.Context, evaluator document.Evaluator, subject value.Result, parameters []any) (value.Result, error) {
		operator, err := stringParameter(NameTest, parameters, 0, "operator")
		if err != nil {
			return nil, err
		}

		switch current := subject.(type) {
		case value.Node:
			return testNode(ctx, evaluator, current.Node, operator, parameters)
		case value.Scalar:
			if current.Value == nil {
				return value.Invalid, nil
			}
			return testScalar(predicates, current.Value, operator, parameters)
		default:
			return nil, fmt.Errorf("%w: %s expects a node or scalar, got %s", ErrUnexpectedSubject, NameTest, value.Kind(subject))
		}
	}
}

func testNode(ctx context.Context, evaluator document.Evaluator, node document.Node, operator string, parameters []any) (value.Result, error) {
	routine := NameTest + " " + operator
	if err := expectParameters(routine, parameters, 2, 2); err != nil {
		return nil, err
	}
	operand, err := stringParameter(routine, parameters, 1, "operand")
	if err != nil {
		return nil, err
	}

	switch operator {
	case TestMatches:
		matched, err := evaluator.Matches(ctx, node, operand)
		if err != nil {
			return nil, err
		}
		return value.Bool(matched), nil
	case TestHas:
		nodes, err := evaluator.QuerySelectorAll(ctx, node, operand)
		if err != nil {
			return nil, err
		}
		return value.Bool(len(nodes) > 0), nil
	case TestAttribute:
		_, ok, err := evaluator.AttributeValue(ctx, node, operand)
		if err != nil {
			return nil, err
		}
		return value.Bool(ok), nil
	default:
		return nil, fmt.Errorf("%w: unknown node test %q", ErrInvalidParameters, operator)
	}
}

func testScalar(predicates *predicate.Evaluator, actual any, operator string, parameters []any) (value.Result, error) {
	check, err := predicates.Compile(operator, parameters[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	ok, err := predicates.Evaluate(check, actual)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", NameTest, operator, err)
	}
	return value.Bool(ok), nil
}
