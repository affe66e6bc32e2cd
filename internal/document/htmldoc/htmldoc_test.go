package htmldoc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/jacoelho/surgeon/internal/document"
)

const testHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1 class="title">Welcome</h1>
	<ul>
		<li><a href="/one" data-id="1">One</a></li>
		<li><a href="/two">Two</a></li>
	</ul>
</body>
</html>`

func parse(t *testing.T, e *Evaluator) document.Node {
	t.Helper()

	root, err := e.ParseDocument(context.Background(), testHTML)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	return root
}

func TestQuerySelectorAll(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	tests := []struct {
		name     string
		selector string
		want     []string
		wantErr  error
	}{
		{name: "all links", selector: "a", want: []string{"One", "Two"}},
		{name: "attribute selector", selector: "a[data-id]", want: []string{"One"}},
		{name: "descendant", selector: "ul li a[href='/two']", want: []string{"Two"}},
		{name: "no match", selector: "table", want: []string{}},
		{name: "invalid selector", selector: "a[", wantErr: document.ErrInvalidSelector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := e.QuerySelectorAll(ctx, root, tt.selector)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("QuerySelectorAll() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("QuerySelectorAll() error = %v", err)
			}

			got := make([]string, 0, len(nodes))
			for _, n := range nodes {
				text, ok, err := e.PropertyValue(ctx, n, document.PropertyTextContent)
				if err != nil || !ok {
					t.Fatalf("PropertyValue() = (%v, %v, %v)", text, ok, err)
				}
				got = append(got, text.(string))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("QuerySelectorAll() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuerySelectorAllIsScopedToNode(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	items, err := e.QuerySelectorAll(ctx, root, "li")
	if err != nil {
		t.Fatalf("QuerySelectorAll(li) error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("QuerySelectorAll(li) len = %d, want 2", len(items))
	}

	links, err := e.QuerySelectorAll(ctx, items[1], "a")
	if err != nil {
		t.Fatalf("QuerySelectorAll(a) error = %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("QuerySelectorAll(a) len = %d, want 1", len(links))
	}

	href, ok, err := e.AttributeValue(ctx, links[0], "href")
	if err != nil || !ok || href != "/two" {
		t.Errorf("AttributeValue(href) = (%q, %v, %v), want (/two, true, nil)", href, ok, err)
	}
}

func TestMatches(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	headings, err := e.QuerySelectorAll(ctx, root, "h1")
	if err != nil || len(headings) != 1 {
		t.Fatalf("QuerySelectorAll(h1) = (%v, %v)", headings, err)
	}

	tests := []struct {
		selector string
		want     bool
	}{
		{selector: "h1", want: true},
		{selector: ".title", want: true},
		{selector: "h2", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, err := e.Matches(ctx, headings[0], tt.selector)
			if err != nil {
				t.Fatalf("Matches() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.selector, got, tt.want)
			}
		})
	}

	if ok, err := e.Matches(ctx, root, "html"); err != nil || ok {
		t.Errorf("Matches(document, html) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestAttributeValue(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	links, err := e.QuerySelectorAll(ctx, root, "a")
	if err != nil {
		t.Fatalf("QuerySelectorAll() error = %v", err)
	}

	id, ok, err := e.AttributeValue(ctx, links[0], "data-id")
	if err != nil || !ok || id != "1" {
		t.Errorf("AttributeValue(data-id) = (%q, %v, %v), want (1, true, nil)", id, ok, err)
	}

	_, ok, err = e.AttributeValue(ctx, links[1], "data-id")
	if err != nil || ok {
		t.Errorf("AttributeValue(missing) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestPropertyValue(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	lists, err := e.QuerySelectorAll(ctx, root, "ul")
	if err != nil || len(lists) != 1 {
		t.Fatalf("QuerySelectorAll(ul) = (%v, %v)", lists, err)
	}
	links, err := e.QuerySelectorAll(ctx, root, "a")
	if err != nil {
		t.Fatalf("QuerySelectorAll(a) error = %v", err)
	}

	tests := []struct {
		name     string
		node     document.Node
		property string
		want     any
		wantOK   bool
	}{
		{name: "tag name", node: links[0], property: PropertyTagName, want: "A", wantOK: true},
		{name: "inner html", node: links[0], property: document.PropertyInnerHTML, want: "One", wantOK: true},
		{name: "outer html", node: links[1], property: document.PropertyOuterHTML, want: `<a href="/two">Two</a>`, wantOK: true},
		{name: "child count", node: lists[0], property: PropertyChildElementCount, want: float64(2), wantOK: true},
		{name: "unknown", node: links[0], property: "nope", want: nil, wantOK: false},
		{name: "tag name of document", node: root, property: PropertyTagName, want: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := e.PropertyValue(ctx, tt.node, tt.property)
			if err != nil {
				t.Fatalf("PropertyValue() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("PropertyValue() ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("PropertyValue() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnsupportedNode(t *testing.T) {
	ctx := context.Background()
	e := New()

	if _, err := e.QuerySelectorAll(ctx, "not a node", "a"); !errors.Is(err, document.ErrUnsupportedNode) {
		t.Errorf("QuerySelectorAll() error = %v, want ErrUnsupportedNode", err)
	}
	if _, _, err := e.AttributeValue(ctx, (*html.Node)(nil), "a"); !errors.Is(err, document.ErrUnsupportedNode) {
		t.Errorf("AttributeValue() error = %v, want ErrUnsupportedNode", err)
	}
}

func TestSelectorCache(t *testing.T) {
	e := New()

	first, err := e.compile("a")
	if err != nil {
		t.Fatalf("compile() error = %v", err)
	}
	second, err := e.compile("a")
	if err != nil {
		t.Fatalf("compile() error = %v", err)
	}

	if _, ok := e.selectors.Load("a"); !ok {
		t.Fatal("selector not cached")
	}
	if first == nil || second == nil {
		t.Fatal("compile() returned nil matcher")
	}
}
