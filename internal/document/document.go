// Package document defines the capability surface an evaluator backend
// exposes to the interpreter and its built-in subroutines.
package document

import (
	"context"
	"errors"
)

var (
	// ErrParse indicates the raw subject could not be turned into a document.
	ErrParse = errors.New("parse document")

	// ErrInvalidSelector indicates a selector the backend cannot compile.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrUnsupportedNode indicates a node handle that belongs to another backend.
	ErrUnsupportedNode = errors.New("unsupported node")
)

// Node is an opaque handle into a document tree. Only the Evaluator that
// produced it knows its structure.
type Node any

// Evaluator parses documents and answers primitive node queries.
//
// All methods take a context so that backends driving a live page can block
// on I/O. Implementations used with concurrent evaluation must be safe for
// concurrent reads.
type Evaluator interface {
	// ParseDocument returns the root node of subject.
	ParseDocument(ctx context.Context, subject string) (Node, error)

	// QuerySelectorAll returns the descendants of node matching selector in
	// document order. No match is an empty slice, not an error.
	QuerySelectorAll(ctx context.Context, node Node, selector string) ([]Node, error)

	// Matches reports whether node itself matches selector.
	Matches(ctx context.Context, node Node, selector string) (bool, error)

	// AttributeValue returns the named attribute and whether it is present.
	AttributeValue(ctx context.Context, node Node, name string) (string, bool, error)

	// PropertyValue returns the named property and whether it is present.
	// Every backend supports "textContent", "innerHTML" and "outerHTML".
	PropertyValue(ctx context.Context, node Node, name string) (any, bool, error)
}

// Serializer is implemented by evaluators that can render a node for output.
type Serializer interface {
	Serialize(ctx context.Context, node Node) (any, error)
}

// Common property names understood by every evaluator.
const (
	PropertyTextContent = "textContent"
	PropertyInnerHTML   = "innerHTML"
	PropertyOuterHTML   = "outerHTML"
)
