// Package predicate evaluates comparison operators and CEL expressions
// against scalar values produced by extraction.
package predicate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	// ErrUnsupported indicates an operator name that is not known.
	ErrUnsupported = errors.New("unsupported predicate operation")

	// ErrInvalidCheck indicates operands an operator cannot be compiled with.
	ErrInvalidCheck = errors.New("invalid predicate check")

	// ErrInvalidInput indicates a scalar the operator cannot be applied to.
	ErrInvalidInput = errors.New("invalid predicate input")
)

type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpRegex              Operator = "regex"
	OpExists             Operator = "exists"
	OpLength             Operator = "length"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpIn                 Operator = "in"
	OpTypeIs             Operator = "type_is"
	OpCEL                Operator = "cel"
)

// operand count bounds; a negative max is unbounded
type arity struct {
	min, max int
}

func (a arity) String() string {
	switch {
	case a.max < 0:
		return fmt.Sprintf("at least %d operand(s)", a.min)
	case a.min == a.max:
		return fmt.Sprintf("exactly %d operand(s)", a.min)
	default:
		return fmt.Sprintf("%d to %d operands", a.min, a.max)
	}
}

var operators = map[Operator]arity{
	OpEquals:             {1, 1},
	OpNotEquals:          {1, 1},
	OpContains:           {1, 1},
	OpNotContains:        {1, 1},
	OpStartsWith:         {1, 1},
	OpEndsWith:           {1, 1},
	OpRegex:              {1, 1},
	OpExists:             {0, 0},
	OpLength:             {1, 1},
	OpGreaterThan:        {1, 1},
	OpLessThan:           {1, 1},
	OpGreaterThanOrEqual: {1, 1},
	OpLessThanOrEqual:    {1, 1},
	OpIn:                 {1, -1},
	OpTypeIs:             {1, 1},
	OpCEL:                {1, 1},
}

// Scalar type names accepted by type_is.
var typeNames = []string{"string", "number", "boolean", "null"}

// Check is an operator bound to validated operands. Build it with Compile.
type Check struct {
	Operator Operator
	Operands []any
}

// Evaluator compiles checks and caches regular expressions and CEL programs.
// It is safe for concurrent use.
type Evaluator struct {
	patterns sync.Map // string -> *regexp.Regexp
	programs sync.Map // string -> cel.Program
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Compile validates operator and operands. Regular expressions and CEL
// programs are compiled here so that mistakes surface before evaluation.
func (e *Evaluator) Compile(operator string, operands []any) (Check, error) {
	op := Operator(operator)
	bounds, ok := operators[op]
	if !ok {
		return Check{}, fmt.Errorf("%w: %q", ErrUnsupported, operator)
	}

	if len(operands) < bounds.min || (bounds.max >= 0 && len(operands) > bounds.max) {
		return Check{}, fmt.Errorf("%w: %s takes %s, got %d", ErrInvalidCheck, op, bounds, len(operands))
	}

	switch op {
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		if _, err := textOperand(op, operands[0]); err != nil {
			return Check{}, err
		}
	case OpRegex:
		if _, err := e.pattern(operands[0]); err != nil {
			return Check{}, err
		}
	case OpLength:
		if _, err := toCount(operands[0]); err != nil {
			return Check{}, fmt.Errorf("%w: %s: %v", ErrInvalidCheck, op, err)
		}
	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		if _, ok := toNumber(operands[0]); !ok {
			return Check{}, fmt.Errorf("%w: %s requires a number, got %v", ErrInvalidCheck, op, operands[0])
		}
	case OpTypeIs:
		if _, err := typeOperand(operands[0]); err != nil {
			return Check{}, err
		}
	case OpCEL:
		if _, err := e.program(operands[0]); err != nil {
			return Check{}, err
		}
	}

	return Check{Operator: op, Operands: operands}, nil
}

// Evaluate applies a compiled check to actual.
func (e *Evaluator) Evaluate(check Check, actual any) (bool, error) {
	switch check.Operator {
	case OpExists:
		return exists(actual), nil
	case OpEquals:
		return equal(actual, check.Operands[0]), nil
	case OpNotEquals:
		return !equal(actual, check.Operands[0]), nil
	case OpIn:
		return slices.ContainsFunc(check.Operands, func(candidate any) bool {
			return equal(actual, candidate)
		}), nil
	case OpContains:
		return compareText(check, actual, strings.Contains)
	case OpNotContains:
		return compareText(check, actual, func(s, substr string) bool {
			return !strings.Contains(s, substr)
		})
	case OpStartsWith:
		return compareText(check, actual, strings.HasPrefix)
	case OpEndsWith:
		return compareText(check, actual, strings.HasSuffix)
	case OpRegex:
		return e.matchPattern(check, actual)
	case OpLength:
		return length(check, actual)
	case OpGreaterThan:
		return compareNumbers(check, actual, func(a, b float64) bool { return a > b })
	case OpLessThan:
		return compareNumbers(check, actual, func(a, b float64) bool { return a < b })
	case OpGreaterThanOrEqual:
		return compareNumbers(check, actual, func(a, b float64) bool { return a >= b })
	case OpLessThanOrEqual:
		return compareNumbers(check, actual, func(a, b float64) bool { return a <= b })
	case OpTypeIs:
		name, err := typeOperand(check.Operands[0])
		if err != nil {
			return false, err
		}
		return typeOf(actual) == name, nil
	case OpCEL:
		return e.evaluateCEL(check, actual)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupported, check.Operator)
	}
}

// equal compares numbers by value so that text "12" equals the number 12.
func equal(actual, expected any) bool {
	if reflect.DeepEqual(actual, expected) {
		return true
	}

	if want, ok := expected.(float64); ok {
		if got, ok := toNumber(actual); ok {
			return got == want
		}
	}
	if got, ok := actual.(float64); ok {
		if want, ok := toNumber(expected); ok {
			return got == want
		}
	}
	return false
}

func exists(actual any) bool {
	switch current := actual.(type) {
	case nil:
		return false
	case string:
		return current != ""
	default:
		return true
	}
}

func compareText(check Check, actual any, compare func(actual, operand string) bool) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("%w: %s requires text, got %T", ErrInvalidInput, check.Operator, actual)
	}

	operand, err := textOperand(check.Operator, check.Operands[0])
	if err != nil {
		return false, err
	}
	return compare(s, operand), nil
}

func (e *Evaluator) matchPattern(check Check, actual any) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("%w: %s requires text, got %T", ErrInvalidInput, check.Operator, actual)
	}

	re, err := e.pattern(check.Operands[0])
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func (e *Evaluator) pattern(operand any) (*regexp.Regexp, error) {
	expression, err := textOperand(OpRegex, operand)
	if err != nil {
		return nil, err
	}

	if cached, ok := e.patterns.Load(expression); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid regex %q: %v", ErrInvalidCheck, expression, err)
	}

	e.patterns.Store(expression, re)
	return re, nil
}

// length counts runes.
func length(check Check, actual any) (bool, error) {
	s, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("%w: %s requires text, got %T", ErrInvalidInput, check.Operator, actual)
	}

	want, err := toCount(check.Operands[0])
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidCheck, check.Operator, err)
	}
	return utf8.RuneCountInString(s) == want, nil
}

func compareNumbers(check Check, actual any, compare func(actual, operand float64) bool) (bool, error) {
	got, ok := toNumber(actual)
	if !ok {
		return false, fmt.Errorf("%w: %s requires a number, got %q", ErrInvalidInput, check.Operator, fmt.Sprint(actual))
	}

	want, ok := toNumber(check.Operands[0])
	if !ok {
		return false, fmt.Errorf("%w: %s requires a number, got %v", ErrInvalidCheck, check.Operator, check.Operands[0])
	}
	return compare(got, want), nil
}

func typeOperand(operand any) (string, error) {
	name, err := textOperand(OpTypeIs, operand)
	if err != nil {
		return "", err
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if !slices.Contains(typeNames, name) {
		return "", fmt.Errorf("%w: %s requires one of %s, got %q", ErrInvalidCheck, OpTypeIs, strings.Join(typeNames, ", "), name)
	}
	return name, nil
}

func typeOf(actual any) string {
	switch actual.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	default:
		return fmt.Sprintf("%T", actual)
	}
}

func textOperand(op Operator, operand any) (string, error) {
	s, ok := operand.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s requires a string operand, got %T", ErrInvalidCheck, op, operand)
	}
	return s, nil
}
