// Package subroutine defines the instruction handlers the interpreter
// dispatches to and the built-in read, select and test routines.
package subroutine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/predicate"
	"github.com/jacoelho/surgeon/internal/value"
)

var (
	// ErrUnexpectedSubject indicates a routine received a result of the wrong kind.
	ErrUnexpectedSubject = errors.New("unexpected subject")

	// ErrInvalidParameters indicates missing, extra or malformed parameters.
	ErrInvalidParameters = errors.New("invalid parameters")
)

// Subroutine transforms the current result. It returns value.Invalid when
// the subject legitimately holds no data, and must not mutate its inputs.
type Subroutine func(ctx context.Context, evaluator document.Evaluator, subject value.Result, parameters []any) (value.Result, error)

// Registry maps instruction names to subroutines.
type Registry map[string]Subroutine

// Names of the built-in subroutines.
const (
	NameRead   = "read"
	NameSelect = "select"
	NameTest   = "test"
)

// Builtins returns a fresh registry holding read, select and test.
func Builtins() Registry {
	return Registry{
		NameRead:   Read,
		NameSelect: Select,
		NameTest:   NewTest(predicate.NewEvaluator()),
	}
}

// Merge combines user subroutines with builtins. A user subroutine
// registered under a built-in name replaces the built-in.
func Merge(user, builtins Registry) Registry {
	merged := make(Registry, len(user)+len(builtins))
	maps.Copy(merged, builtins)
	maps.Copy(merged, user)
	return merged
}

func nodeSubject(routine string, subject value.Result) (document.Node, error) {
	n, ok := subject.(value.Node)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects a node, got %s", ErrUnexpectedSubject, routine, value.Kind(subject))
	}
	return n.Node, nil
}

// stringParameter reads parameters[i] as text. Numbers are accepted since a
// bare numeric word is parsed as a number.
func stringParameter(routine string, parameters []any, i int, name string) (string, error) {
	if i >= len(parameters) {
		return "", fmt.Errorf("%w: %s requires %s", ErrInvalidParameters, routine, name)
	}

	switch p := parameters[i].(type) {
	case string:
		return p, nil
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %s %s must be a string, got %T", ErrInvalidParameters, routine, name, parameters[i])
	}
}

func expectParameters(routine string, parameters []any, low, high int) error {
	if len(parameters) < low || len(parameters) > high {
		if low == high {
			return fmt.Errorf("%w: %s expects %d parameters, got %d", ErrInvalidParameters, routine, low, len(parameters))
		}
		return fmt.Errorf("%w: %s expects %d to %d parameters, got %d", ErrInvalidParameters, routine, low, high, len(parameters))
	}
	return nil
}
