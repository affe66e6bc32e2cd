// Package loader reads the raw documents handed to the CLI: local files,
// standard input and http(s) URLs.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/jacoelho/surgeon/internal/config"
	"github.com/jacoelho/surgeon/internal/ratelimit"
)

const (
	// MaxDocumentSize bounds how much of a single document is read.
	MaxDocumentSize = 64 << 20 // 64 MiB

	defaultUserAgent   = "surgeon/1"
	defaultAcceptTypes = "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8"
)

var (
	ErrHTTPStatus     = errors.New("unexpected HTTP status")
	ErrDocumentTooBig = errors.New("document exceeds size limit")
	ErrStdinConsumed  = errors.New("standard input can only be read once")
)

// Document is a loaded raw document.
type Document struct {
	Source  string
	Content string
}

// Loader fetches documents. Remote fetches share one client and rate limiter.
type Loader struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	userAgent string

	mu        sync.Mutex
	stdin     io.Reader
	stdinUsed bool
}

// New creates a loader reading standard input from os.Stdin.
func New(client *http.Client, limiter *ratelimit.Limiter) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if limiter == nil {
		limiter = ratelimit.New(0)
	}

	return &Loader{
		client:    client,
		limiter:   limiter,
		userAgent: defaultUserAgent,
		stdin:     os.Stdin,
	}
}

// SetStdin replaces the reader used for the "-" source.
func (l *Loader) SetStdin(r io.Reader) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stdin = r
	l.stdinUsed = false
}

// SetUserAgent sets the User-Agent header sent with remote fetches.
func (l *Loader) SetUserAgent(userAgent string) {
	l.userAgent = userAgent
}

// Load reads source according to its form.
func (l *Loader) Load(ctx context.Context, source string) (Document, error) {
	var (
		content []byte
		err     error
	)

	switch {
	case source == config.Stdin:
		content, err = l.readStdin()
	case config.IsRemote(source):
		content, err = l.fetch(ctx, source)
	default:
		content, err = readFile(source)
	}
	if err != nil {
		return Document{}, err
	}

	return Document{Source: source, Content: string(content)}, nil
}

func (l *Loader) readStdin() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stdinUsed {
		return nil, ErrStdinConsumed
	}
	l.stdinUsed = true

	content, err := readLimited(l.stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read standard input: %w", err)
	}
	return content, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", defaultAcceptTypes)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrHTTPStatus, url, resp.Status)
	}

	content, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	return content, nil
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", path, err)
	}
	defer file.Close()

	content, err := readLimited(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return content, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > MaxDocumentSize {
		return nil, ErrDocumentTooBig
	}
	return content, nil
}
