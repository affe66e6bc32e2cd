package query

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
)

// Parse decodes a YAML query file.
//
// A scalar is an expression, a sequence concatenates the instructions of its
// items and a mapping becomes one adopt instruction whose branches follow the
// document order of the keys:
//
//	# articles.yaml
//	- select article
//	- title: select h1 {1}[0] | read text
//	  links:
//	    - select a {0,}
//	    - read attribute href
func Parse(r io.Reader) (Query, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}

	return Unmarshal(data)
}

// Unmarshal decodes YAML query content.
func Unmarshal(data []byte) (Query, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Query{}, nil
	}

	var file queryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if file.query == nil {
		return Query{}, nil
	}
	return file.query, nil
}

type queryFile struct {
	query Query
}

// UnmarshalYAML walks the AST directly so mapping order survives decoding.
func (f *queryFile) UnmarshalYAML(node ast.Node) error {
	q, err := nodeToQuery(node)
	if err != nil {
		return err
	}
	f.query = q
	return nil
}

func nodeToQuery(node ast.Node) (Query, error) {
	switch n := node.(type) {
	case nil, *ast.NullNode:
		return Query{}, nil
	case *ast.StringNode:
		return ParseExpression(n.Value)
	case *ast.LiteralNode:
		return ParseExpression(n.Value.Value)
	case *ast.DocumentNode:
		return nodeToQuery(n.Body)
	case *ast.SequenceNode:
		out := Query{}
		for index, item := range n.Values {
			q, err := nodeToQuery(item)
			if err != nil {
				return nil, fmt.Errorf("sequence item %d: %w", index, err)
			}
			out = append(out, q...)
		}
		return out, nil
	case *ast.MappingNode:
		branches, err := mappingBranches(n.Values)
		if err != nil {
			return nil, err
		}
		return Query{Adopt(branches...)}, nil
	case *ast.MappingValueNode:
		branches, err := mappingBranches([]*ast.MappingValueNode{n})
		if err != nil {
			return nil, err
		}
		return Query{Adopt(branches...)}, nil
	default:
		return nil, fmt.Errorf("%w: query must be an expression, sequence or mapping, got %s", ErrParse, node.Type())
	}
}

func mappingBranches(pairs []*ast.MappingValueNode) (Branches, error) {
	branches := make(Branches, 0, len(pairs))
	for _, pair := range pairs {
		name, err := branchName(pair.Key)
		if err != nil {
			return nil, err
		}

		q, err := nodeToQuery(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("branch %q: %w", name, err)
		}

		branches = append(branches, Branch{
			Name:  name,
			Query: q,
		})
	}
	return branches, nil
}

// branchName takes the literal text of a scalar key, so 1: and true: name
// branches "1" and "true".
func branchName(key ast.MapKeyNode) (string, error) {
	if key.IsMergeKey() {
		return "", fmt.Errorf("%w: merge keys are not adopt branches", ErrParse)
	}

	switch k := key.(type) {
	case *ast.StringNode:
		return k.Value, nil
	case ast.ScalarNode:
		return k.GetToken().Value, nil
	default:
		return "", fmt.Errorf("%w: adopt branch name must be a scalar, got %s", ErrParse, key.Type())
	}
}
