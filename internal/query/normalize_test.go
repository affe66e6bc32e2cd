package query

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    Query
		wantErr bool
	}{
		{
			name:  "nil",
			input: nil,
			want:  Query{},
		},
		{
			name:  "canonical query passes through",
			input: Query{New("read", "text")},
			want:  Query{New("read", "text")},
		},
		{
			name:  "instruction",
			input: New("select", "a"),
			want:  Query{New("select", "a")},
		},
		{
			name:  "expression",
			input: "select a | read text",
			want:  Query{New("select", "a"), New("read", "text")},
		},
		{
			name:  "string slice",
			input: []string{"select a", "read text"},
			want:  Query{New("select", "a"), New("read", "text")},
		},
		{
			name: "mixed slice ending in map",
			input: []any{
				"select article {0,}",
				map[string]any{
					"title": "select h1 {1}[0] | read text",
					"links": []any{"select a {0,}", "read attribute href"},
				},
			},
			want: Query{
				New("select", "article", "{0,}"),
				Adopt(
					Branch{Name: "links", Query: Query{New("select", "a", "{0,}"), New("read", "attribute", "href")}},
					Branch{Name: "title", Query: Query{New("select", "h1", "{1}[0]"), New("read", "text")}},
				),
			},
		},
		{
			name: "branches keep order",
			input: Branches{
				{Name: "z", Query: Query{New("read", "text")}},
				{Name: "a", Query: Query{}},
			},
			want: Query{
				Adopt(
					Branch{Name: "z", Query: Query{New("read", "text")}},
					Branch{Name: "a", Query: Query{}},
				),
			},
		},
		{
			name:    "unsupported type",
			input:   42,
			wantErr: true,
		},
		{
			name:    "nested error",
			input:   []any{"select a", map[string]any{"x": 1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize() = %v, want error", got)
				}
				if !errors.Is(err, ErrParse) {
					t.Errorf("Normalize() error = %v, want ErrParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstructionIsAdopt(t *testing.T) {
	if !Adopt().IsAdopt() {
		t.Error("Adopt().IsAdopt() = false")
	}
	if New("select", "a").IsAdopt() {
		t.Error("select IsAdopt() = true")
	}
}
