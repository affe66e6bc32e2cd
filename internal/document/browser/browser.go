// Package browser evaluates queries against a live page driven through the
// Chrome DevTools Protocol.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/jacoelho/surgeon/internal/document"
)

// ErrScript indicates a page script raised an exception.
var ErrScript = errors.New("page script exception")

// Evaluator runs every query inside one browser tab. Calls are serialised
// because a tab executes one CDP command sequence at a time.
type Evaluator struct {
	tab context.Context
	mu  sync.Mutex
}

// New wraps a tab context created with chromedp.NewContext or NewContext.
func New(tab context.Context) *Evaluator {
	return &Evaluator{tab: tab}
}

var _ document.Evaluator = (*Evaluator)(nil)
var _ document.Serializer = (*Evaluator)(nil)

// NewContext starts a headless browser and opens a tab. The returned cancel
// closes both.
func NewContext(parent context.Context, opts ...chromedp.ExecAllocatorOption) (context.Context, context.CancelFunc) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocOpts = append(allocOpts, opts...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	return tabCtx, func() {
		tabCancel()
		allocCancel()
	}
}

// ParseDocument navigates to subject when it is an http(s) URL, otherwise
// loads it as HTML markup. The root is the page's html element.
func (e *Evaluator) ParseDocument(ctx context.Context, subject string) (document.Node, error) {
	target := subject
	if !isURL(subject) {
		target = "data:text/html;charset=utf-8," + url.PathEscape(subject)
	}

	var nodes []*cdp.Node
	err := e.run(ctx,
		chromedp.Navigate(target),
		chromedp.Nodes("html", &nodes, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", document.ErrParse, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: page has no document element", document.ErrParse)
	}

	return nodes[0], nil
}

func (e *Evaluator) QuerySelectorAll(ctx context.Context, node document.Node, selector string) ([]document.Node, error) {
	n, err := asCDPNode(node)
	if err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	err = e.run(ctx, chromedp.Nodes(selector, &nodes,
		chromedp.ByQueryAll,
		chromedp.FromNode(n),
		chromedp.AtLeast(0),
	))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", document.ErrInvalidSelector, selector, err)
	}

	out := make([]document.Node, 0, len(nodes))
	for _, found := range nodes {
		out = append(out, found)
	}
	return out, nil
}

func (e *Evaluator) Matches(ctx context.Context, node document.Node, selector string) (bool, error) {
	n, err := asCDPNode(node)
	if err != nil {
		return false, err
	}

	var matched bool
	fn := fmt.Sprintf("function() { return this.matches(%s); }", jsString(selector))
	if err := e.callOn(ctx, n, fn, &matched); err != nil {
		if errors.Is(err, ErrScript) {
			return false, fmt.Errorf("%w: %s: %v", document.ErrInvalidSelector, selector, err)
		}
		return false, err
	}
	return matched, nil
}

// lookup is the shape returned by the attribute and property scripts.
type lookup struct {
	Found bool `json:"found"`
	Value any  `json:"value"`
}

func (e *Evaluator) AttributeValue(ctx context.Context, node document.Node, name string) (string, bool, error) {
	n, err := asCDPNode(node)
	if err != nil {
		return "", false, err
	}

	quoted := jsString(name)
	fn := fmt.Sprintf(
		"function() { return this.hasAttribute && this.hasAttribute(%s) ? {found: true, value: this.getAttribute(%s)} : {found: false}; }",
		quoted, quoted,
	)

	var result lookup
	if err := e.callOn(ctx, n, fn, &result); err != nil {
		return "", false, err
	}
	if !result.Found {
		return "", false, nil
	}

	s, _ := result.Value.(string)
	return s, true, nil
}

// PropertyValue reads any DOM property, so textContent, innerHTML and
// outerHTML come straight from the live node.
func (e *Evaluator) PropertyValue(ctx context.Context, node document.Node, name string) (any, bool, error) {
	n, err := asCDPNode(node)
	if err != nil {
		return nil, false, err
	}

	quoted := jsString(name)
	fn := fmt.Sprintf(
		"function() { return (%s in this) ? {found: true, value: this[%s]} : {found: false}; }",
		quoted, quoted,
	)

	var result lookup
	if err := e.callOn(ctx, n, fn, &result); err != nil {
		return nil, false, err
	}
	return result.Value, result.Found, nil
}

// Serialize renders the node as outer HTML.
func (e *Evaluator) Serialize(ctx context.Context, node document.Node) (any, error) {
	v, _, err := e.PropertyValue(ctx, node, document.PropertyOuterHTML)
	return v, err
}

// run executes actions on the tab and aborts them when ctx is cancelled.
func (e *Evaluator) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	runCtx, cancel := context.WithCancel(e.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// callOn invokes fn with this bound to the node and decodes the result.
func (e *Evaluator) callOn(ctx context.Context, n *cdp.Node, fn string, out any) error {
	return e.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		object, err := dom.ResolveNode().WithBackendNodeID(n.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		defer func() {
			_ = runtime.ReleaseObject(object.ObjectID).Do(ctx)
		}()

		result, exception, err := runtime.CallFunctionOn(fn).
			WithObjectID(object.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("call function: %w", err)
		}
		if exception != nil {
			return fmt.Errorf("%w: %s", ErrScript, exception.Text)
		}
		if result == nil || len(result.Value) == 0 {
			return nil
		}

		if err := json.Unmarshal(result.Value, out); err != nil {
			return fmt.Errorf("decode script result: %w", err)
		}
		return nil
	}))
}

func asCDPNode(node document.Node) (*cdp.Node, error) {
	n, ok := node.(*cdp.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: expected *cdp.Node, got %T", document.ErrUnsupportedNode, node)
	}
	return n, nil
}

func isURL(subject string) bool {
	s := strings.TrimSpace(subject)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
