package jsondoc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jacoelho/surgeon/internal/document"
)

const testJSON = `{
	"user": {"name": "John Doe", "age": 30, "tags": ["a", "b"]},
	"items": [
		{"id": 1, "price": 5},
		{"id": 2, "price": 15}
	],
	"active": true
}`

func parse(t *testing.T, e *Evaluator) document.Node {
	t.Helper()

	root, err := e.ParseDocument(context.Background(), testJSON)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	return root
}

func values(nodes []document.Node) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.(*Node).Value)
	}
	return out
}

func TestParseDocument(t *testing.T) {
	e := New()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "object", input: testJSON},
		{name: "scalar", input: "42"},
		{name: "empty", input: "  ", wantErr: true},
		{name: "invalid", input: "{invalid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ParseDocument(context.Background(), tt.input)
			if tt.wantErr {
				if !errors.Is(err, document.ErrParse) {
					t.Fatalf("ParseDocument() error = %v, want ErrParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDocument() error = %v", err)
			}
		})
	}
}

func TestQuerySelectorAll(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	tests := []struct {
		name     string
		selector string
		want     []any
		wantErr  bool
	}{
		{name: "member", selector: "$.user.name", want: []any{"John Doe"}},
		{name: "wildcard", selector: "$.items[*].id", want: []any{float64(1), float64(2)}},
		{name: "filter", selector: "$.items[?@.price > 10].id", want: []any{float64(2)}},
		{name: "no match", selector: "$.missing", want: []any{}},
		{name: "invalid", selector: "$[invalid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := e.QuerySelectorAll(ctx, root, tt.selector)
			if tt.wantErr {
				if !errors.Is(err, document.ErrInvalidSelector) {
					t.Fatalf("QuerySelectorAll() error = %v, want ErrInvalidSelector", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("QuerySelectorAll() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, values(nodes)); diff != "" {
				t.Errorf("QuerySelectorAll() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuerySelectorAllRelativeToNode(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	items, err := e.QuerySelectorAll(ctx, root, "$.items[*]")
	if err != nil || len(items) != 2 {
		t.Fatalf("QuerySelectorAll(items) = (%v, %v)", items, err)
	}

	prices, err := e.QuerySelectorAll(ctx, items[1], "$.price")
	if err != nil {
		t.Fatalf("QuerySelectorAll(price) error = %v", err)
	}
	if diff := cmp.Diff([]any{float64(15)}, values(prices)); diff != "" {
		t.Errorf("relative select mismatch (-want +got):\n%s", diff)
	}
}

func TestMatches(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	items, err := e.QuerySelectorAll(ctx, root, "$.items[*]")
	if err != nil {
		t.Fatalf("QuerySelectorAll() error = %v", err)
	}

	tests := []struct {
		name     string
		node     document.Node
		selector string
		want     bool
	}{
		{name: "comparison true", node: items[1], selector: "@.price > 10", want: true},
		{name: "comparison false", node: items[0], selector: "@.price > 10", want: false},
		{name: "existence", node: root, selector: "@.user.tags", want: true},
		{name: "missing", node: root, selector: "@.nothing", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Matches(ctx, tt.node, tt.selector)
			if err != nil {
				t.Fatalf("Matches() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.selector, got, tt.want)
			}
		})
	}
}

func TestAttributeAndProperty(t *testing.T) {
	ctx := context.Background()
	e := New()
	root := parse(t, e)

	users, err := e.QuerySelectorAll(ctx, root, "$.user")
	if err != nil || len(users) != 1 {
		t.Fatalf("QuerySelectorAll(user) = (%v, %v)", users, err)
	}
	user := users[0]

	age, ok, err := e.AttributeValue(ctx, user, "age")
	if err != nil || !ok || age != "30" {
		t.Errorf("AttributeValue(age) = (%q, %v, %v), want (30, true, nil)", age, ok, err)
	}

	if _, ok, _ := e.AttributeValue(ctx, user, "tags"); ok {
		t.Error("AttributeValue(tags) should not expose composite members")
	}
	if _, ok, _ := e.AttributeValue(ctx, user, "missing"); ok {
		t.Error("AttributeValue(missing) should not be found")
	}

	tests := []struct {
		name     string
		property string
		want     any
		wantOK   bool
	}{
		{name: "length", property: PropertyLength, want: float64(3), wantOK: true},
		{name: "type", property: PropertyType, want: "object", wantOK: true},
		{name: "member", property: "tags", want: []any{"a", "b"}, wantOK: true},
		{name: "text of object", property: document.PropertyTextContent, want: `{"age":30,"name":"John Doe","tags":["a","b"]}`, wantOK: true},
		{name: "missing", property: "nope", want: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := e.PropertyValue(ctx, user, tt.property)
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

func TestSerialize(t *testing.T) {
	e := New()

	got, err := e.Serialize(context.Background(), &Node{Value: []any{"x"}})
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if diff := cmp.Diff([]any{"x"}, got); diff != "" {
		t.Errorf("Serialize() mismatch (-want +got):\n%s", diff)
	}

	if _, err := e.Serialize(context.Background(), "x"); !errors.Is(err, document.ErrUnsupportedNode) {
		t.Errorf("Serialize() error = %v, want ErrUnsupportedNode", err)
	}
}
