package subroutine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jacoelho/surgeon/internal/document"
	"github.com/jacoelho/surgeon/internal/document/htmldoc"
	"github.com/jacoelho/surgeon/internal/predicate"
	"github.com/jacoelho/surgeon/internal/value"
)

const testHTML = `<html><body>
<h1 class="title" data-id="7">Welcome <em>home</em></h1>
<ul>
	<li><a href="/one">One</a></li>
	<li><a href="/two">Two</a></li>
	<li><a href="/three">Three</a></li>
</ul>
</body></html>`

func setup(t *testing.T) (*htmldoc.Evaluator, value.Result) {
	t.Helper()

	e := htmldoc.New()
	root, err := e.ParseDocument(context.Background(), testHTML)
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	return e, value.NewNode(root)
}

func first(t *testing.T, e document.Evaluator, root value.Result, selector string) value.Result {
	t.Helper()

	got, err := Select(context.Background(), e, root, []any{selector, "[0]"})
	if err != nil {
		t.Fatalf("Select(%q) error = %v", selector, err)
	}
	if value.IsInvalid(got) {
		t.Fatalf("Select(%q) found nothing", selector)
	}
	return got
}

func TestMerge(t *testing.T) {
	custom := func(context.Context, document.Evaluator, value.Result, []any) (value.Result, error) {
		return value.String("custom"), nil
	}

	builtins := Builtins()
	merged := Merge(Registry{NameRead: custom, "extra": custom}, builtins)

	got, err := merged[NameRead](context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("merged read error = %v", err)
	}
	if diff := cmp.Diff(value.Result(value.String("custom")), got); diff != "" {
		t.Errorf("user subroutine should win (-want +got):\n%s", diff)
	}

	for _, name := range []string{NameRead, NameSelect, NameTest, "extra"} {
		if _, ok := merged[name]; !ok {
			t.Errorf("merged registry missing %q", name)
		}
	}
	if len(builtins) != 3 {
		t.Errorf("Merge() modified builtins: len = %d", len(builtins))
	}
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	e, root := setup(t)
	heading := first(t, e, root, "h1")

	tests := []struct {
		name       string
		subject    value.Result
		parameters []any
		want       value.Result
		wantErr    error
	}{
		{name: "text", subject: heading, parameters: []any{"text"}, want: value.String("Welcome home")},
		{name: "html", subject: heading, parameters: []any{"html"}, want: value.String("Welcome <em>home</em>")},
		{name: "attribute", subject: heading, parameters: []any{"attribute", "data-id"}, want: value.String("7")},
		{name: "missing attribute", subject: heading, parameters: []any{"attribute", "href"}, want: value.Invalid},
		{name: "property", subject: heading, parameters: []any{"property", htmldoc.PropertyTagName}, want: value.String("H1")},
		{name: "missing property", subject: heading, parameters: []any{"property", "nope"}, want: value.Invalid},
		{name: "unknown kind", subject: heading, parameters: []any{"colour"}, wantErr: ErrInvalidParameters},
		{name: "no kind", subject: heading, parameters: nil, wantErr: ErrInvalidParameters},
		{name: "attribute without name", subject: heading, parameters: []any{"attribute"}, wantErr: ErrInvalidParameters},
		{name: "text with extra parameter", subject: heading, parameters: []any{"text", "x"}, wantErr: ErrInvalidParameters},
		{name: "scalar subject", subject: value.String("x"), parameters: []any{"text"}, wantErr: ErrUnexpectedSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(ctx, e, tt.subject, tt.parameters)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Read() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if value.IsInvalid(tt.want) {
				if !value.IsInvalid(got) {
					t.Fatalf("Read() = %s, want invalid", value.Describe(got))
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseQuantifier(t *testing.T) {
	tests := []struct {
		input   string
		want    Quantifier
		wantErr bool
	}{
		{input: "{2}", want: Quantifier{Min: 2, Max: 2}},
		{input: "{0,}", want: Quantifier{Min: 0, Max: Unbounded}},
		{input: "{1,3}", want: Quantifier{Min: 1, Max: 3}},
		{input: "{0,1}[0]", want: Quantifier{Min: 0, Max: 1, Index: 0, HasIndex: true}},
		{input: "[2]", want: Quantifier{Min: 1, Max: Unbounded, Index: 2, HasIndex: true}},
		{input: "{3,1}", wantErr: true},
		{input: "{a}", wantErr: true},
		{input: "[-1]", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseQuantifier(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameters) {
					t.Fatalf("ParseQuantifier() error = %v, want ErrInvalidParameters", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuantifier() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseQuantifier() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	e, root := setup(t)

	tests := []struct {
		name        string
		parameters  []any
		wantCount   int
		wantSingle  bool
		wantInvalid bool
		wantErr     error
	}{
		{name: "default quantifier", parameters: []any{"a"}, wantCount: 3},
		{name: "no match", parameters: []any{"table"}, wantInvalid: true},
		{name: "zero allowed", parameters: []any{"table", "{0,}"}, wantCount: 0},
		{name: "exact count", parameters: []any{"a", "{3}"}, wantCount: 3},
		{name: "count mismatch", parameters: []any{"a", "{2}"}, wantInvalid: true},
		{name: "range", parameters: []any{"a", "{1,5}"}, wantCount: 3},
		{name: "accessor", parameters: []any{"a", "[1]"}, wantSingle: true},
		{name: "accessor out of range", parameters: []any{"a", "{0,}[5]"}, wantInvalid: true},
		{name: "invalid quantifier", parameters: []any{"a", "many"}, wantErr: ErrInvalidParameters},
		{name: "invalid selector", parameters: []any{"a["}, wantErr: document.ErrInvalidSelector},
		{name: "missing selector", parameters: nil, wantErr: ErrInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(ctx, e, root, tt.parameters)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Select() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}

			switch {
			case tt.wantInvalid:
				if !value.IsInvalid(got) {
					t.Fatalf("Select() = %s, want invalid", value.Describe(got))
				}
			case tt.wantSingle:
				n, ok := got.(value.Node)
				if !ok {
					t.Fatalf("Select() = %s, want a single node", value.Kind(got))
				}
				text, _, _ := e.PropertyValue(ctx, n.Node, document.PropertyTextContent)
				if text != "Two" {
					t.Errorf("Select() node text = %v, want Two", text)
				}
			default:
				list, ok := got.(value.List)
				if !ok {
					t.Fatalf("Select() = %s, want a list", value.Kind(got))
				}
				if len(list) != tt.wantCount {
					t.Errorf("Select() len = %d, want %d", len(list), tt.wantCount)
				}
			}
		})
	}
}

func TestSelectRequiresNode(t *testing.T) {
	_, err := Select(context.Background(), htmldoc.New(), value.List{}, []any{"a"})
	if !errors.Is(err, ErrUnexpectedSubject) {
		t.Fatalf("Select() error = %v, want ErrUnexpectedSubject", err)
	}
}

func TestTest(t *testing.T) {
	ctx := context.Background()
	e, root := setup(t)
	heading := first(t, e, root, "h1")
	test := NewTest(predicate.NewEvaluator())

	tests := []struct {
		name        string
		subject     value.Result
		parameters  []any
		want        bool
		wantInvalid bool
		wantErr     error
	}{
		{name: "matches", subject: heading, parameters: []any{"matches", ".title"}, want: true},
		{name: "does not match", subject: heading, parameters: []any{"matches", "h2"}, want: false},
		{name: "has descendant", subject: heading, parameters: []any{"has", "em"}, want: true},
		{name: "has no descendant", subject: heading, parameters: []any{"has", "a"}, want: false},
		{name: "attribute present", subject: heading, parameters: []any{"attribute", "data-id"}, want: true},
		{name: "unknown node test", subject: heading, parameters: []any{"equals", "x"}, wantErr: ErrInvalidParameters},
		{name: "equals", subject: value.String("x"), parameters: []any{"equals", "x"}, want: true},
		{name: "numeric text", subject: value.String("12"), parameters: []any{"greater_than", float64(10)}, want: true},
		{name: "regex", subject: value.String("/docs/a"), parameters: []any{"regex", "^/docs"}, want: true},
		{name: "in", subject: value.String("b"), parameters: []any{"in", "a", "b"}, want: true},
		{name: "exists", subject: value.String(""), parameters: []any{"exists"}, want: false},
		{name: "cel", subject: value.Number(3), parameters: []any{"cel", "value > 2.0"}, want: true},
		{name: "null subject", subject: value.Null(), parameters: []any{"exists"}, wantInvalid: true},
		{name: "unknown operator", subject: value.String("x"), parameters: []any{"near", "y"}, wantErr: ErrInvalidParameters},
		{name: "missing operand", subject: value.String("x"), parameters: []any{"equals"}, wantErr: ErrInvalidParameters},
		{name: "extra operand", subject: value.String("x"), parameters: []any{"equals", "a", "b"}, wantErr: ErrInvalidParameters},
		{name: "predicate failure", subject: value.String("x"), parameters: []any{"greater_than", float64(1)}, wantErr: predicate.ErrInvalidInput},
		{name: "list subject", subject: value.List{}, parameters: []any{"exists"}, wantErr: ErrUnexpectedSubject},
		{name: "no operator", subject: value.String("x"), parameters: nil, wantErr: ErrInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := test(ctx, e, tt.subject, tt.parameters)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("test() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("test() error = %v", err)
			}
			if tt.wantInvalid {
				if !value.IsInvalid(got) {
					t.Fatalf("test() = %s, want invalid", value.Describe(got))
				}
				return
			}
			if diff := cmp.Diff(value.Result(value.Bool(tt.want)), got); diff != "" {
				t.Errorf("test() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type failingEvaluator struct {
	document.Evaluator
	err error
}

func (f failingEvaluator) QuerySelectorAll(context.Context, document.Node, string) ([]document.Node, error) {
	return nil, f.err
}

func TestSelectPropagatesEvaluatorError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Select(context.Background(), failingEvaluator{err: boom}, value.NewNode("root"), []any{"a"})
	if !errors.Is(err, boom) {
		t.Fatalf("Select() error = %v, want %v", err, boom)
	}
}
