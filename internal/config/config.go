package config

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jacoelho/surgeon/internal/exit"
	"github.com/jacoelho/surgeon/internal/httpclient"
)

const (
	// DefaultTimeout is the default timeout for fetching remote documents.
	DefaultTimeout = 30 * time.Second

	// Stdin is the document argument that reads from standard input.
	Stdin = "-"
)

// Evaluator backends.
const (
	EvaluatorHTML    = "html"
	EvaluatorJSON    = "json"
	EvaluatorBrowser = "browser"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

var (
	ErrNoArguments           = errors.New("no arguments provided")
	ErrNoDocuments           = errors.New("no documents specified")
	ErrNoQuery               = errors.New("one of --query or --expr is required")
	ErrConflictingQuery      = errors.New("--query and --expr are mutually exclusive")
	ErrUnknownEvaluator      = errors.New("unknown evaluator")
	ErrUnknownFormat         = errors.New("unknown output format")
	ErrInvalidConcurrency    = errors.New("concurrency must not be negative")
	ErrInvalidVariableFormat = errors.New("variable must be in format name=value")
	ErrEmptyVariableName     = errors.New("variable name cannot be empty")
)

var (
	evaluators = []string{EvaluatorHTML, EvaluatorJSON, EvaluatorBrowser}
	formats    = []string{FormatJSON, FormatYAML, FormatText}
)

// Config represents the complete configuration for the surgeon tool.
type Config struct {
	// Query
	Documents  []string
	QueryFile  string
	Expression string

	// Evaluation
	Evaluator   string
	Format      string
	Concurrency int
	Debug       bool
	Summary     bool

	// HTTP client configuration
	Insecure       bool
	CACertFile     string
	RequestTimeout time.Duration
	RateLimit      float64 // Fetches per second (0 = unlimited)
	UserAgent      string  // Empty keeps the loader default

	// Template variables
	Variables map[string]any
}

// TLSConfig returns a TLS configuration based on the config settings.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.Insecure,
	}

	if c.CACertFile != "" {
		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}

		caCert, err := os.ReadFile(c.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", c.CACertFile, err)
		}

		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", c.CACertFile)
		}

		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// HTTPClient creates an HTTP client configured with the settings from this Config.
func (c *Config) HTTPClient() (*http.Client, error) {
	tlsConfig, err := c.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
	}

	return httpclient.New(tlsConfig, c.RequestTimeout), nil
}

// IsRemote reports whether a document argument is fetched over HTTP.
func IsRemote(document string) bool {
	return strings.HasPrefix(document, "http://") || strings.HasPrefix(document, "https://")
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if len(c.Documents) == 0 {
		return ErrNoDocuments
	}

	switch {
	case c.QueryFile == "" && c.Expression == "":
		return ErrNoQuery
	case c.QueryFile != "" && c.Expression != "":
		return ErrConflictingQuery
	}

	if c.QueryFile != "" {
		if _, err := os.Stat(c.QueryFile); err != nil {
			return fmt.Errorf("query file %s not found: %w", c.QueryFile, err)
		}
	}

	for _, document := range c.Documents {
		if document == Stdin || IsRemote(document) {
			continue
		}
		if _, err := os.Stat(document); err != nil {
			return fmt.Errorf("document %s not found: %w", document, err)
		}
	}

	if !slices.Contains(evaluators, c.Evaluator) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownEvaluator, c.Evaluator, strings.Join(evaluators, ", "))
	}
	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, c.Format, strings.Join(formats, ", "))
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.Concurrency)
	}

	if c.CACertFile != "" {
		if _, err := os.Stat(c.CACertFile); err != nil {
			return fmt.Errorf("CA certificate file %s not found: %w", c.CACertFile, err)
		}
	}

	return nil
}

// variablesFlag collects repeated --variable name=value flags.
type variablesFlag map[string]any

func (v variablesFlag) String() string {
	pairs := make([]string, 0, len(v))
	for _, name := range slices.Sorted(maps.Keys(v)) {
		pairs = append(pairs, fmt.Sprintf("%s=%v", name, v[name]))
	}
	return strings.Join(pairs, ",")
}

func (v variablesFlag) Set(pair string) error {
	name, val, ok := strings.Cut(pair, "=")
	if !ok {
		return fmt.Errorf("%w, got: %s", ErrInvalidVariableFormat, pair)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyVariableName
	}

	v[name] = val
	return nil
}

// Parse parses command-line arguments and returns a validated Config.
// If parsing fails or help is requested, returns nil config and exit result.
func Parse(args []string) (*Config, *exit.Result) {
	if len(args) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoArguments, Usage())
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)

	// usage and errors are reported through exit.Result
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)

	var (
		queryFile    = fs.String("query", "", "Path to a YAML query file")
		expression   = fs.String("expr", "", "Inline query expression")
		evaluator    = fs.String("evaluator", EvaluatorHTML, "Document evaluator: html, json or browser")
		format       = fs.String("format", FormatJSON, "Output format: json, yaml or text")
		concurrency  = fs.Int("concurrency", 1, "Branches evaluated at once per fan-out or adopt")
		debug        = fs.Bool("debug", false, "Log every dispatched instruction")
		summary      = fs.Bool("summary", false, "Print a run summary to stderr")
		insecure     = fs.Bool("insecure", false, "Skip TLS certificate verification")
		caCertFile   = fs.String("cacert", "", "Path to CA certificate file for TLS verification")
		variables    = make(variablesFlag)
		variableFile = fs.String("variable-file", "", "Path to key=value file containing template variables")
		timeout      = fs.Duration("timeout", DefaultTimeout, "HTTP request timeout")
		rateLimit    = fs.Float64("rate-limit", 0, "Rate limit in fetches per second (0 for unlimited)")
		userAgent    = fs.String("user-agent", "", "User-Agent header for remote documents")
	)

	fs.Var(variables, "variable", "Variable in format name=value (can be used multiple times)")

	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil, exit.Success(Usage())
		}
		return nil, exit.Errorf("Error: failed to parse arguments: %v\n\n%s", err, Usage())
	}

	documents := fs.Args()
	if len(documents) == 0 {
		return nil, exit.Errorf("Error: %v\n\n%s", ErrNoDocuments, Usage())
	}

	// file variables first, command-line variables override them
	finalVariables := make(map[string]any)
	if *variableFile != "" {
		fileVariables, err := loadVariableFile(*variableFile)
		if err != nil {
			return nil, exit.Errorf("Error: failed to load variable file: %v\n\n%s", err, Usage())
		}
		maps.Copy(finalVariables, fileVariables)
	}
	maps.Copy(finalVariables, variables)

	config := &Config{
		Documents:      documents,
		QueryFile:      *queryFile,
		Expression:     *expression,
		Evaluator:      strings.ToLower(*evaluator),
		Format:         strings.ToLower(*format),
		Concurrency:    *concurrency,
		Debug:          *debug,
		Summary:        *summary,
		Insecure:       *insecure,
		CACertFile:     *caCertFile,
		RequestTimeout: *timeout,
		RateLimit:      *rateLimit,
		UserAgent:      *userAgent,
		Variables:      finalVariables,
	}

	if err := config.Validate(); err != nil {
		return nil, exit.Errorf("Error: %v\n\n%s", err, Usage())
	}

	return config, nil
}

// loadVariableFile reads key=value lines. Blank lines and lines starting
// with # are skipped.
func loadVariableFile(filename string) (map[string]any, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	defer file.Close()

	variables := make(map[string]any)
	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid format at line %d: %s (expected key=value)", lineNum, line)
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty key at line %d: %s", lineNum, line)
		}
		variables[key] = strings.TrimSpace(val)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	return variables, nil
}

// Usage returns a usage string for the CLI tool.
func Usage() string {
	return `surgeon - extract structured data from documents

Usage: surgeon [options] <document> [document] ...

Documents are file paths, - for standard input, or http(s) URLs.

Options:
  --query FILE            YAML query file
  --expr EXPR             Inline query expression, e.g. "select a | read attribute href"
  --evaluator NAME        Document evaluator: html, json or browser (default: html)
  --format NAME           Output format: json, yaml or text (default: json)
  --concurrency N         Branches evaluated at once per fan-out or adopt (default: 1)
  --debug                 Log every dispatched instruction to stderr
  --summary               Print a run summary to stderr
  --insecure              Skip TLS certificate verification
  --cacert FILE           Path to CA certificate file for TLS verification
  --timeout DURATION      HTTP request timeout (default: 30s)
  --rate-limit N          Rate limit in fetches per second (0 for unlimited)
  --user-agent VALUE      User-Agent header for remote documents (default: surgeon/1)
  --variable NAME=VALUE   Template variable (can be used multiple times)
  --variable-file FILE    Path to key=value file containing template variables
  -h, --help              Show this help message

Exit codes:
  0 success, 1 failure, 2 a query found no data, 3 malformed query

Examples:
  surgeon --expr "select a | read attribute href" page.html
  surgeon --query article.yaml https://example.com/post
  surgeon --evaluator json --expr "select $.items[*].id | read text" data.json
  curl -s https://example.com | surgeon --expr "select title [0] | read text" -
  surgeon --query site.yaml --variable SECTION=news page.html`
}
