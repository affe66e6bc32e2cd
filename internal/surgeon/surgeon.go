// Package surgeon interprets extraction queries against documents.
//
// A query is a pipeline of instructions dispatched to subroutines. The
// interpreter threads a current result through the pipeline, fans out over
// lists and branches into named sub-queries with adopt. See Evaluate for the
// algorithm and New for the library entry point.
package surgeon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/document/htmldoc"
	"github.com/jacoelho/surgeon/internal/query"
	"github.com/jacoelho/surgeon/internal/subroutine"
	"github.com/jacoelho/surgeon/internal/value"
)

// Config assembles a Surgeon. Zero fields take defaults: the static HTML
// evaluator, a discarding logger and sequential evaluation.
type Config struct {
	// Subroutines are merged over the builtins; a user entry wins.
	Subroutines subroutine.Registry
	Evaluator   document.Evaluator
	Logger      *slog.Logger
	Concurrency int
}

// Surgeon evaluates queries with a fixed registry and evaluator.
type Surgeon struct {
	registry  subroutine.Registry
	evaluator document.Evaluator
	options   []Option
}

// New validates cfg and builds a Surgeon.
func New(cfg Config) (*Surgeon, error) {
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency must be >= 0, got %d", ErrInvalidConfig, cfg.Concurrency)
	}

	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = htmldoc.New()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}

	return &Surgeon{
		registry:  subroutine.Merge(cfg.Subroutines, subroutine.Builtins()),
		evaluator: evaluator,
		options: []Option{
			WithConcurrency(concurrency),
			WithLogger(logger),
		},
	}, nil
}

// Evaluator returns the evaluator queries run against.
func (s *Surgeon) Evaluator() document.Evaluator {
	return s.evaluator
}

// Query normalizes instructions and evaluates them against subject. A string
// subject is parsed with the evaluator and a value.Result is used as is. Any
// other non-nil value is taken to be a node of the evaluator.
func (s *Surgeon) Query(ctx context.Context, instructions any, subject any) (value.Result, error) {
	q, err := query.Normalize(instructions)
	if err != nil {
		return nil, err
	}

	root, err := s.root(ctx, subject)
	if err != nil {
		return nil, err
	}

	return Evaluate(ctx, s.registry, s.evaluator, q, root, s.options...)
}

func (s *Surgeon) root(ctx context.Context, subject any) (value.Result, error) {
	switch current := subject.(type) {
	case nil:
		return nil, ErrNilSubject
	case string:
		node, err := s.evaluator.ParseDocument(ctx, current)
		if err != nil {
			return nil, err
		}
		return value.NewNode(node), nil
	case value.Result:
		return current, nil
	default:
		return value.NewNode(current), nil
	}
}
