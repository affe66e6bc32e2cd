// Package output renders query results and run summaries.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/value"
)

// Format selects how results and summaries are written.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatText
)

var (
	ErrUnknownFormat   = errors.New("unknown output format")
	ErrNotSerializable = errors.New("evaluator cannot serialize nodes")
)

// ParseFormat maps a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return FormatJSON, nil
	case "yaml":
		return FormatYAML, nil
	case "text":
		return FormatText, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Member is one entry of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its key order when encoded.
type Object []Member

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalJSON(m.Key)
		if err != nil {
			return nil, err
		}
		val, err := marshalJSON(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o Object) MarshalYAML() (any, error) {
	slice := make(yaml.MapSlice, 0, len(o))
	for _, m := range o {
		slice = append(slice, yaml.MapItem{Key: m.Key, Value: m.Value})
	}
	return slice, nil
}

// Record pairs a document with the plain result extracted from it.
type Record struct {
	Document string
	Result   any
}

// Plain converts a result into values the encoders understand. Nodes are
// rendered with serializer; mappings keep their branch order.
func Plain(ctx context.Context, serializer document.Serializer, r value.Result) (any, error) {
	switch v := r.(type) {
	case nil:
		return nil, nil
	case value.Scalar:
		return v.Value, nil
	case value.Node:
		if serializer == nil {
			return nil, ErrNotSerializable
		}
		return serializer.Serialize(ctx, v.Node)
	case value.List:
		out := make([]any, 0, len(v))
		for _, item := range v {
			plain, err := Plain(ctx, serializer, item)
			if err != nil {
				return nil, err
			}
			out = append(out, plain)
		}
		return out, nil
	case value.Mapping:
		out := make(Object, 0, len(v))
		for _, field := range v {
			plain, err := Plain(ctx, serializer, field.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", field.Name, err)
			}
			out = append(out, Member{Key: field.Name, Value: plain})
		}
		return out, nil
	default:
		if value.IsInvalid(r) {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected result %s", value.Kind(r))
	}
}

// Write renders records to w. A single record is written bare; several are
// written as a sequence of {document, result} objects.
func Write(w io.Writer, format Format, records []Record) error {
	if format == FormatText {
		return writeText(w, records)
	}

	var payload any
	if len(records) == 1 {
		payload = records[0].Result
	} else {
		list := make([]any, 0, len(records))
		for _, record := range records {
			list = append(list, Object{
				{Key: "document", Value: record.Document},
				{Key: "result", Value: record.Result},
			})
		}
		payload = list
	}

	switch format {
	case FormatYAML:
		return writeYAML(w, payload)
	default:
		return writeJSON(w, payload)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.MarshalWithOptions(v, yaml.UseLiteralStyleIfMultiline(true))
	if err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeText(w io.Writer, records []Record) error {
	for _, record := range records {
		if len(records) > 1 {
			if _, err := fmt.Fprintf(w, "==> %s <==\n", record.Document); err != nil {
				return err
			}
		}
		if err := textLines(w, "", record.Result); err != nil {
			return err
		}
	}
	return nil
}

// textLines writes strings raw, list items one per line and object members
// as "key: value" lines. Nested structures are written as compact JSON.
func textLines(w io.Writer, prefix string, v any) error {
	switch current := v.(type) {
	case []any:
		for _, item := range current {
			if err := textLines(w, prefix, item); err != nil {
				return err
			}
		}
		return nil
	case Object:
		for _, m := range current {
			if err := textLines(w, prefix+m.Key+": ", m.Value); err != nil {
				return err
			}
		}
		return nil
	}

	line, err := textValue(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s%s\n", prefix, line)
	return err
}

func textValue(v any) (string, error) {
	switch current := v.(type) {
	case string:
		return current, nil
	case nil:
		return "null", nil
	default:
		data, err := marshalJSON(current)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
