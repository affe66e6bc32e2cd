package surgeon

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/query"
	"github.com/jacoelho/surgeon/internal/subroutine"
	"github.com/jacoelho/surgeon/internal/value"
)

// Option configures Evaluate.
type Option func(*options)

type options struct {
	concurrency int
	logger      *slog.Logger
}

// WithConcurrency evaluates up to n fan-out elements or adopt branches of a
// single branching step at once. Results keep their sequential order.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLogger sets the logger used for instruction tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type engine struct {
	registry    subroutine.Registry
	evaluator   document.Evaluator
	concurrency int
	logger      *slog.Logger
}

// Evaluate runs instructions against root.
//
// Each instruction receives the result of the previous one. When a step
// yields a List, the remaining instructions run against every element and
// their results form the returned List. An adopt instruction evaluates each
// named branch against the current result and returns a Mapping; any
// instruction after it is ignored.
func Evaluate(
	ctx context.Context,
	registry subroutine.Registry,
	evaluator document.Evaluator,
	instructions query.Query,
	root value.Result,
	opts ...Option,
) (value.Result, error) {
	o := options{
		concurrency: 1,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &engine{
		registry:    registry,
		evaluator:   evaluator,
		concurrency: o.concurrency,
		logger:      o.logger,
	}
	return e.evaluate(ctx, instructions, root)
}

func (e *engine) evaluate(ctx context.Context, instructions query.Query, root value.Result) (value.Result, error) {
	result := root

	for index, instruction := range instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if instruction.IsAdopt() {
			if ignored := len(instructions) - index - 1; ignored > 0 {
				e.logger.WarnContext(ctx, "instructions after adopt are ignored",
					slog.Int("ignored", ignored),
					slog.String("query", instructions.String()),
				)
			}
			return e.adopt(ctx, instruction, result)
		}

		routine, ok := e.registry[instruction.Subroutine]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrSubroutineNotFound, instruction.Subroutine)
		}

		e.logger.DebugContext(ctx, "dispatch",
			slog.String("instruction", instruction.String()),
			slog.String("subject", value.Kind(result)),
		)

		lastResult := result
		next, err := routine(ctx, e.evaluator, result, instruction.Parameters)
		if err != nil {
			return nil, err
		}
		if value.IsInvalid(next) {
			return nil, &InvalidDataError{Instruction: instruction, Input: lastResult}
		}
		result = next

		if list, ok := result.(value.List); ok {
			return e.fanOut(ctx, instructions[index+1:], list)
		}
	}

	return result, nil
}

func (e *engine) fanOut(ctx context.Context, remaining query.Query, list value.List) (value.Result, error) {
	results, err := e.each(ctx, len(list), func(ctx context.Context, i int) (value.Result, error) {
		return e.evaluate(ctx, remaining, list[i])
	})
	if err != nil {
		return nil, err
	}
	return value.List(results), nil
}

func (e *engine) adopt(ctx context.Context, instruction query.Instruction, subject value.Result) (value.Result, error) {
	if len(instruction.Parameters) != 1 {
		return nil, fmt.Errorf("%w: adopt expects 1 parameter, got %d", ErrUnexpectedParameterLength, len(instruction.Parameters))
	}

	var branches query.Branches
	switch p := instruction.Parameters[0].(type) {
	case query.Branches:
		branches = p
	case []query.Branch:
		branches = p
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidAdoptParameter, instruction.Parameters[0])
	}

	results, err := e.each(ctx, len(branches), func(ctx context.Context, i int) (value.Result, error) {
		return e.evaluate(ctx, branches[i].Query, subject)
	})
	if err != nil {
		return nil, err
	}

	mapping := make(value.Mapping, 0, len(branches))
	for i, branch := range branches {
		mapping = append(mapping, value.Field{Name: branch.Name, Value: results[i]})
	}
	return mapping, nil
}

// each runs fn for 0..n-1 and collects the results by index. With
// concurrency above one the calls share an errgroup; the first error cancels
// the rest.
func (e *engine) each(ctx context.Context, n int, fn func(context.Context, int) (value.Result, error)) ([]value.Result, error) {
	results := make([]value.Result, n)

	if e.concurrency <= 1 || n <= 1 {
		for i := range n {
			r, err := fn(ctx, i)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range n {
		g.Go(func() error {
			r, err := fn(gctx, i)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
