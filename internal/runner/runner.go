package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jacoelho/surgeon/internal/config"
	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/document/browser"
	"github.com/jacoelho/surgeon/internal/document/htmldoc"
	"github.com/jacoelho/surgeon/internal/document/jsondoc"
	"github.com/jacoelho/surgeon/internal/exit"
	"github.com/jacoelho/surgeon/internal/loader"
	"github.com/jacoelho/surgeon/internal/output"
	"github.com/jacoelho/surgeon/internal/query"
	"github.com/jacoelho/surgeon/internal/ratelimit"
	"github.com/jacoelho/surgeon/internal/subroutine"
	"github.com/jacoelho/surgeon/internal/surgeon"
	"github.com/jacoelho/surgeon/internal/template"
)

type Runner struct {
	config    *config.Config
	loader    *loader.Loader
	limiter   *ratelimit.Limiter
	format    output.Format
	output    io.Writer
	errOutput io.Writer
}

func New(cfg *config.Config) (*Runner, *exit.Result) {
	client, err := cfg.HTTPClient()
	if err != nil {
		return nil, exit.Errorf("Error creating runner: %v\n", err)
	}

	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, exit.Errorf("Error creating runner: %v\n", err)
	}

	limiter := ratelimit.New(cfg.RateLimit)
	documents := loader.New(client, limiter)
	if cfg.UserAgent != "" {
		documents.SetUserAgent(cfg.UserAgent)
	}

	return &Runner{
		config:    cfg,
		loader:    documents,
		limiter:   limiter,
		format:    format,
		output:    os.Stdout,
		errOutput: os.Stderr,
	}, nil
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
}

// SetStdin replaces the reader behind the "-" document.
func (r *Runner) SetStdin(in io.Reader) {
	r.loader.SetStdin(in)
}

func (r *Runner) payloadWriter() io.Writer {
	if r.output == nil {
		return io.Discard
	}
	return r.output
}

func (r *Runner) errorWriter() io.Writer {
	if r.errOutput == nil {
		return io.Discard
	}
	return r.errOutput
}

func (r *Runner) logf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errorWriter(), format, args...)
}

func (r *Runner) logger() *slog.Logger {
	level := slog.LevelWarn
	if r.config.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(r.errorWriter(), &slog.HandlerOptions{Level: level}))
}

// Run queries every document and writes the results. It returns the process
// exit code for the first failure.
func (r *Runner) Run(ctx context.Context) int {
	q, err := r.loadQuery()
	if err != nil {
		r.logf("Error loading query: %v\n", err)
		return ExitCode(err)
	}

	evaluator, closeEvaluator, err := r.newEvaluator(ctx)
	if err != nil {
		r.logf("Error creating evaluator: %v\n", err)
		return exit.CodeFailure
	}
	defer closeEvaluator()

	logger := r.logger()
	logger.DebugContext(ctx, "run",
		slog.Int("documents", len(r.config.Documents)),
		slog.String("evaluator", r.config.Evaluator),
		slog.Float64("rate_limit", r.limiter.Limit()),
	)

	s, err := surgeon.New(surgeon.Config{
		Evaluator:   evaluator,
		Logger:      logger,
		Concurrency: r.config.Concurrency,
	})
	if err != nil {
		r.logf("Error creating surgeon: %v\n", err)
		return exit.CodeFailure
	}

	records, summary, firstError := r.queryDocuments(ctx, s, q)

	if len(records) > 0 {
		if err := output.Write(r.payloadWriter(), r.format, records); err != nil {
			r.logf("Error formatting results: %v\n", err)
			if firstError == nil {
				firstError = err
			}
		}
	}

	if r.config.Summary {
		if err := summary.Format(r.format, r.errorWriter()); err != nil {
			r.logf("Error formatting summary: %v\n", err)
		}
	}

	return ExitCode(firstError)
}

func (r *Runner) queryDocuments(ctx context.Context, s *surgeon.Surgeon, q query.Query) ([]output.Record, *output.Summary, error) {
	records := make([]output.Record, 0, len(r.config.Documents))
	summary := output.NewSummary(len(r.config.Documents))

	overallStart := time.Now()
	defer func() {
		summary.SetTotalDuration(time.Since(overallStart))
	}()

	var firstError error
	for _, source := range r.config.Documents {
		if err := ctx.Err(); err != nil {
			r.logf("\nInterrupted after %d of %d documents\n", summary.ProcessedDocuments, len(r.config.Documents))
			if firstError == nil {
				firstError = err
			}
			break
		}

		start := time.Now()
		result, err := r.queryDocument(ctx, s, q, source)
		summary.Add(output.DocumentResult{
			Document: source,
			Duration: time.Since(start),
			Error:    err,
		})

		if err != nil {
			r.logf("Error in document %s: %v\n", source, err)
			if firstError == nil {
				firstError = err
			}
			continue
		}

		records = append(records, output.Record{Document: source, Result: result})
	}

	return records, summary, firstError
}

func (r *Runner) queryDocument(ctx context.Context, s *surgeon.Surgeon, q query.Query, source string) (any, error) {
	subject := source

	// the browser navigates to remote documents itself
	if r.config.Evaluator != config.EvaluatorBrowser || !config.IsRemote(source) {
		doc, err := r.loader.Load(ctx, source)
		if err != nil {
			return nil, err
		}
		subject = doc.Content
	}

	result, err := s.Query(ctx, q, subject)
	if err != nil {
		return nil, err
	}

	serializer, _ := s.Evaluator().(document.Serializer)
	return output.Plain(ctx, serializer, result)
}

func (r *Runner) loadQuery() (query.Query, error) {
	if r.config.Expression != "" {
		source, err := template.Render("expression", r.config.Expression, r.config.Variables)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", query.ErrParse, err)
		}
		return query.ParseExpression(source)
	}

	data, err := os.ReadFile(r.config.QueryFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file %s: %w", r.config.QueryFile, err)
	}

	source, err := template.Render(r.config.QueryFile, string(data), r.config.Variables)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", query.ErrParse, r.config.QueryFile, err)
	}

	q, err := query.Unmarshal([]byte(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse query file %s: %w", r.config.QueryFile, err)
	}
	return q, nil
}

func (r *Runner) newEvaluator(ctx context.Context) (document.Evaluator, func(), error) {
	switch r.config.Evaluator {
	case config.EvaluatorJSON:
		return jsondoc.New(), func() {}, nil
	case config.EvaluatorBrowser:
		tab, cancel := browser.NewContext(ctx)
		return browser.New(tab), cancel, nil
	case config.EvaluatorHTML, "":
		return htmldoc.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownEvaluator, r.config.Evaluator)
	}
}

// ExitCode maps an evaluation error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exit.CodeSuccess
	case errors.Is(err, surgeon.ErrInvalidData):
		return exit.CodeInvalidData
	case errors.Is(err, surgeon.ErrSurgeon),
		errors.Is(err, query.ErrParse),
		errors.Is(err, subroutine.ErrInvalidParameters),
		errors.Is(err, subroutine.ErrUnexpectedSubject),
		errors.Is(err, document.ErrInvalidSelector):
		return exit.CodeStructural
	default:
		return exit.CodeFailure
	}
}
