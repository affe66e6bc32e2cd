package subroutine

import (
	"context"
	"fmt"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/value"
)

// Read kinds.
const (
	ReadText      = "text"
	ReadHTML      = "html"
	ReadAttribute = "attribute"
	ReadProperty  = "property"
)

// Read extracts a value from a node:
//
//	read text
//	read html
//	read attribute <name>
//	read property <name>
//
// A missing attribute or property yields value.Invalid.
func Read(ctx context.Context, evaluator document.Evaluator, subject value.Result, parameters []any) (value.Result, error) {
	node, err := nodeSubject(NameRead, subject)
	if err != nil {
		return nil, err
	}

	kind, err := stringParameter(NameRead, parameters, 0, "kind")
	if err != nil {
		return nil, err
	}

	switch kind {
	case ReadText:
		if err := expectParameters(NameRead+" "+kind, parameters, 1, 1); err != nil {
			return nil, err
		}
		return readProperty(ctx, evaluator, node, document.PropertyTextContent)
	case ReadHTML:
		if err := expectParameters(NameRead+" "+kind, parameters, 1, 1); err != nil {
			return nil, err
		}
		return readProperty(ctx, evaluator, node, document.PropertyInnerHTML)
	case ReadAttribute:
		if err := expectParameters(NameRead+" "+kind, parameters, 2, 2); err != nil {
			return nil, err
		}
		name, err := stringParameter(NameRead, parameters, 1, "attribute name")
		if err != nil {
			return nil, err
		}

		attr, ok, err := evaluator.AttributeValue(ctx, node, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return value.Invalid, nil
		}
		return value.String(attr), nil
	case ReadProperty:
		if err := expectParameters(NameRead+" "+kind, parameters, 2, 2); err != nil {
			return nil, err
		}
		name, err := stringParameter(NameRead, parameters, 1, "property name")
		if err != nil {
			return nil, err
		}
		return readProperty(ctx, evaluator, node, name)
	default:
		return nil, fmt.Errorf("%w: unknown read kind %q", ErrInvalidParameters, kind)
	}
}

func readProperty(ctx context.Context, evaluator document.Evaluator, node document.Node, name string) (value.Result, error) {
	v, ok, err := evaluator.PropertyValue(ctx, node, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return value.Invalid, nil
	}
	return value.FromAny(v), nil
}
