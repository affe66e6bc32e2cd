// Package value models the results threaded through query evaluation.
//
// Result is a closed sum type: Node, Scalar, List and Mapping are the only
// implementations, plus the Invalid sentinel that subroutines return when a
// step found no data.
package value

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jacoelho/surgeon/internal/document"
)

// Result is the value produced by one evaluation step.
type Result interface {
	result()
}

// Node wraps a document node.
type Node struct {
	Node document.Node
}

// Scalar holds a string, float64, bool or nil.
type Scalar struct {
	Value any
}

// List is produced by automatic fan-out.
type List []Result

// Field is one named entry of a Mapping.
type Field struct {
	Name  string
	Value Result
}

// Mapping preserves the order in which adopt branches were declared.
type Mapping []Field

func (Node) result()    {}
func (Scalar) result()  {}
func (List) result()    {}
func (Mapping) result() {}

type invalid struct{}

func (invalid) result() {}

func (invalid) String() string { return "<invalid>" }

// Invalid signals that a subroutine legitimately found no data.
// Compare with IsInvalid, never with structural equality.
var Invalid Result = invalid{}

// IsInvalid reports whether r is the Invalid sentinel.
func IsInvalid(r Result) bool {
	_, ok := r.(invalid)
	return ok
}

// NewNode wraps a document node.
func NewNode(n document.Node) Node {
	return Node{Node: n}
}

// String returns a string scalar.
func String(s string) Scalar {
	return Scalar{Value: s}
}

// Number returns a numeric scalar.
func Number(f float64) Scalar {
	return Scalar{Value: f}
}

// Bool returns a boolean scalar.
func Bool(b bool) Scalar {
	return Scalar{Value: b}
}

// Null returns the null scalar.
func Null() Scalar {
	return Scalar{}
}

// Nodes converts backend nodes into a List of Node results.
func Nodes(nodes []document.Node) List {
	out := make(List, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NewNode(n))
	}
	return out
}

// FromAny converts a decoded backend value into a Result. Slices become
// Lists, maps become Mappings ordered by key and numbers become float64.
func FromAny(v any) Result {
	switch current := v.(type) {
	case nil:
		return Null()
	case Result:
		return current
	case string:
		return String(current)
	case bool:
		return Bool(current)
	case float64:
		return Number(current)
	case float32:
		return Number(float64(current))
	case int:
		return Number(float64(current))
	case int64:
		return Number(float64(current))
	case int32:
		return Number(float64(current))
	case uint64:
		return Number(float64(current))
	case []any:
		out := make(List, 0, len(current))
		for _, item := range current {
			out = append(out, FromAny(item))
		}
		return out
	case map[string]any:
		out := make(Mapping, 0, len(current))
		for _, key := range slices.Sorted(maps.Keys(current)) {
			out = append(out, Field{Name: key, Value: FromAny(current[key])})
		}
		return out
	default:
		return String(fmt.Sprint(current))
	}
}

// Get returns the value of the last field named name.
func (m Mapping) Get(name string) (Result, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Name == name {
			return m[i].Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (m Mapping) Names() []string {
	names := make([]string, 0, len(m))
	for _, f := range m {
		names = append(names, f.Name)
	}
	return names
}

// Kind names the case of r for diagnostics.
func Kind(r Result) string {
	switch r.(type) {
	case nil:
		return "nil"
	case Node:
		return "node"
	case Scalar:
		return "scalar"
	case List:
		return "list"
	case Mapping:
		return "mapping"
	case invalid:
		return "invalid"
	default:
		return fmt.Sprintf("%T", r)
	}
}

// Describe renders r briefly, without consulting the evaluator.
func Describe(r Result) string {
	switch v := r.(type) {
	case nil:
		return "<nil>"
	case Node:
		return fmt.Sprintf("<node %T>", v.Node)
	case Scalar:
		if s, ok := v.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", v.Value)
	case List:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Describe(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Mapping:
		parts := make([]string, 0, len(v))
		for _, f := range v {
			parts = append(parts, f.Name+": "+Describe(f.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case invalid:
		return v.String()
	default:
		return fmt.Sprintf("%v", r)
	}
}
