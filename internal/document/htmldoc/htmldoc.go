// Package htmldoc is the static tree evaluator: documents are parsed once with
// golang.org/x/net/html and queried with CSS selectors.
package htmldoc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/jacoelho/surgeon/internal/document"
)

// Properties understood in addition to the common ones.
const (
	PropertyTagName           = "tagName"
	PropertyNodeName          = "nodeName"
	PropertyChildElementCount = "childElementCount"
)

// Evaluator answers node queries over *html.Node trees. Compiled selectors
// are cached; the evaluator is safe for concurrent use.
type Evaluator struct {
	selectors sync.Map // string -> goquery.Matcher
}

// New creates a static HTML evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

var _ document.Evaluator = (*Evaluator)(nil)
var _ document.Serializer = (*Evaluator)(nil)

// ParseDocument parses subject and returns the document node.
func (e *Evaluator) ParseDocument(_ context.Context, subject string) (document.Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(subject))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", document.ErrParse, err)
	}

	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty document", document.ErrParse)
	}

	return doc.Nodes[0], nil
}

func (e *Evaluator) QuerySelectorAll(_ context.Context, node document.Node, selector string) ([]document.Node, error) {
	n, err := asHTMLNode(node)
	if err != nil {
		return nil, err
	}

	matcher, err := e.compile(selector)
	if err != nil {
		return nil, err
	}

	found := goquery.NewDocumentFromNode(n).FindMatcher(matcher).Nodes
	out := make([]document.Node, 0, len(found))
	for _, match := range found {
		out = append(out, match)
	}
	return out, nil
}

func (e *Evaluator) Matches(_ context.Context, node document.Node, selector string) (bool, error) {
	n, err := asHTMLNode(node)
	if err != nil {
		return false, err
	}

	matcher, err := e.compile(selector)
	if err != nil {
		return false, err
	}

	return n.Type == html.ElementNode && matcher.Match(n), nil
}

func (e *Evaluator) AttributeValue(_ context.Context, node document.Node, name string) (string, bool, error) {
	n, err := asHTMLNode(node)
	if err != nil {
		return "", false, err
	}

	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == name {
			return attr.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *Evaluator) PropertyValue(_ context.Context, node document.Node, name string) (any, bool, error) {
	n, err := asHTMLNode(node)
	if err != nil {
		return nil, false, err
	}

	sel := goquery.NewDocumentFromNode(n).Selection

	switch name {
	case document.PropertyTextContent:
		return sel.Text(), true, nil
	case document.PropertyInnerHTML:
		inner, err := sel.Html()
		if err != nil {
			return nil, false, fmt.Errorf("render inner HTML: %w", err)
		}
		return inner, true, nil
	case document.PropertyOuterHTML:
		outer, err := goquery.OuterHtml(sel)
		if err != nil {
			return nil, false, fmt.Errorf("render outer HTML: %w", err)
		}
		return outer, true, nil
	case PropertyTagName, PropertyNodeName:
		if n.Type != html.ElementNode {
			return nil, false, nil
		}
		return strings.ToUpper(n.Data), true, nil
	case PropertyChildElementCount:
		return float64(sel.Children().Length()), true, nil
	default:
		return nil, false, nil
	}
}

// Serialize renders the node as outer HTML.
func (e *Evaluator) Serialize(ctx context.Context, node document.Node) (any, error) {
	v, _, err := e.PropertyValue(ctx, node, document.PropertyOuterHTML)
	return v, err
}

func (e *Evaluator) compile(selector string) (goquery.Matcher, error) {
	if cached, ok := e.selectors.Load(selector); ok {
		return cached.(goquery.Matcher), nil
	}

	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", document.ErrInvalidSelector, strconv.Quote(selector), err)
	}

	e.selectors.Store(selector, goquery.Matcher(compiled))
	return compiled, nil
}

func asHTMLNode(node document.Node) (*html.Node, error) {
	n, ok := node.(*html.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: expected *html.Node, got %T", document.ErrUnsupportedNode, node)
	}
	return n, nil
}
