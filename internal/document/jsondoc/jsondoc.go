// Package jsondoc evaluates queries over JSON documents. Selectors are
// RFC 9535 JSONPath expressions relative to the current node.
package jsondoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/theory/jsonpath"

	"github.com/jacoelho/surgeon/internal/document"
)

// Properties understood in addition to the common ones.
const (
	PropertyLength = "length"
	PropertyType   = "type"
)

// Node is a handle on a decoded JSON value.
type Node struct {
	Value any
}

// Evaluator answers node queries over decoded JSON. Compiled paths are
// cached; the evaluator is safe for concurrent use.
type Evaluator struct {
	paths sync.Map // string -> *jsonpath.Path
}

// New creates a JSON evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

var _ document.Evaluator = (*Evaluator)(nil)
var _ document.Serializer = (*Evaluator)(nil)

// ParseDocument decodes subject and returns its root value.
func (e *Evaluator) ParseDocument(_ context.Context, subject string) (document.Node, error) {
	if len(bytes.TrimSpace([]byte(subject))) == 0 {
		return nil, fmt.Errorf("%w: body is empty", document.ErrParse)
	}

	var data any
	if err := json.Unmarshal([]byte(subject), &data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON data: %v", document.ErrParse, err)
	}

	return &Node{Value: data}, nil
}

// QuerySelectorAll selects every value matched by the JSONPath selector.
func (e *Evaluator) QuerySelectorAll(_ context.Context, node document.Node, selector string) ([]document.Node, error) {
	n, err := asJSONNode(node)
	if err != nil {
		return nil, err
	}

	path, err := e.compile(selector)
	if err != nil {
		return nil, err
	}

	results := path.Select(n.Value)
	out := make([]document.Node, 0, len(results))
	for _, v := range results {
		out = append(out, &Node{Value: v})
	}
	return out, nil
}

// Matches applies selector as a filter expression to the node, so
// "@.price > 10" or "@.tags" test the node itself.
func (e *Evaluator) Matches(_ context.Context, node document.Node, selector string) (bool, error) {
	n, err := asJSONNode(node)
	if err != nil {
		return false, err
	}

	path, err := e.compile("$[?" + selector + "]")
	if err != nil {
		return false, err
	}

	return len(path.Select([]any{n.Value})) > 0, nil
}

// AttributeValue reads a scalar member of an object node.
func (e *Evaluator) AttributeValue(_ context.Context, node document.Node, name string) (string, bool, error) {
	n, err := asJSONNode(node)
	if err != nil {
		return "", false, err
	}

	object, ok := n.Value.(map[string]any)
	if !ok {
		return "", false, nil
	}

	member, ok := object[name]
	if !ok {
		return "", false, nil
	}

	switch member.(type) {
	case map[string]any, []any:
		return "", false, nil
	}

	return scalarText(member), true, nil
}

// PropertyValue returns the common properties, length and type, and falls
// back to the raw value of an object member.
func (e *Evaluator) PropertyValue(_ context.Context, node document.Node, name string) (any, bool, error) {
	n, err := asJSONNode(node)
	if err != nil {
		return nil, false, err
	}

	switch name {
	case document.PropertyTextContent:
		if isComposite(n.Value) {
			encoded, err := encode(n.Value)
			if err != nil {
				return nil, false, err
			}
			return encoded, true, nil
		}
		return scalarText(n.Value), true, nil
	case document.PropertyInnerHTML, document.PropertyOuterHTML:
		encoded, err := encode(n.Value)
		if err != nil {
			return nil, false, err
		}
		return encoded, true, nil
	case PropertyLength:
		switch v := n.Value.(type) {
		case []any:
			return float64(len(v)), true, nil
		case map[string]any:
			return float64(len(v)), true, nil
		case string:
			return float64(len([]rune(v))), true, nil
		default:
			return nil, false, nil
		}
	case PropertyType:
		return typeName(n.Value), true, nil
	}

	if object, ok := n.Value.(map[string]any); ok {
		member, ok := object[name]
		return member, ok, nil
	}
	return nil, false, nil
}

// Serialize returns the decoded value itself.
func (e *Evaluator) Serialize(_ context.Context, node document.Node) (any, error) {
	n, err := asJSONNode(node)
	if err != nil {
		return nil, err
	}
	return n.Value, nil
}

func (e *Evaluator) compile(selector string) (*jsonpath.Path, error) {
	if cached, ok := e.paths.Load(selector); ok {
		return cached.(*jsonpath.Path), nil
	}

	path, err := jsonpath.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSONPath %s: %v", document.ErrInvalidSelector, selector, err)
	}

	e.paths.Store(selector, path)
	return path, nil
}

func asJSONNode(node document.Node) (*Node, error) {
	n, ok := node.(*Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: expected *jsondoc.Node, got %T", document.ErrUnsupportedNode, node)
	}
	return n, nil
}

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

func scalarText(v any) string {
	switch current := v.(type) {
	case nil:
		return ""
	case string:
		return current
	case float64:
		return strconv.FormatFloat(current, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(current)
	default:
		return fmt.Sprintf("%v", current)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return "object"
	}
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode JSON: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
