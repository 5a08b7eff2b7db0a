package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateScalars(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		in      any
		want    any
		wantErr bool
	}{
		{name: "string ok", schema: String(), in: "hello", want: "hello"},
		{name: "string rejects number", schema: String(), in: 5, wantErr: true},
		{name: "number ok", schema: Number(), in: 2.5, want: 2.5},
		{name: "number coerces int", schema: Number(), in: 5, want: 5.0},
		{name: "number rejects numeric string", schema: Number(), in: "5", wantErr: true},
		{name: "integer ok", schema: Int(), in: 7, want: 7},
		{name: "integer coerces whole float", schema: Int(), in: 7.0, want: 7},
		{name: "integer rejects fraction", schema: Int(), in: 7.5, wantErr: true},
		{name: "bool ok", schema: Bool(), in: true, want: true},
		{name: "bool rejects string", schema: Bool(), in: "true", wantErr: true},
		{name: "any passes through", schema: Any(), in: map[string]any{"x": 1}, want: map[string]any{"x": 1}},
		{name: "nil schema passes through", schema: nil, in: 42, want: 42},
		{name: "enum ok", schema: OneOf("red", "blue"), in: "red", want: "red"},
		{name: "enum rejects others", schema: OneOf("red", "blue"), in: "green", wantErr: true},
		{name: "required rejects null", schema: String(), in: nil, wantErr: true},
		{name: "optional accepts null", schema: String().Opt(), in: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.schema.Validate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate(%v) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%v) returned error: %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Validate(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestValidateObject(t *testing.T) {
	s := Object(map[string]*Schema{
		"num":  Number(),
		"name": String().Opt(),
	})

	got, err := s.Validate(map[string]any{"num": 5, "extra": "kept"})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	want := map[string]any{"num": 5.0, "extra": "kept"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coerced object mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.Validate(map[string]any{"name": "x"}); err == nil {
		t.Error("expected missing required field error")
	}
	if _, err := s.Validate("not an object"); err == nil {
		t.Error("expected type error for non-object")
	}
}

func TestValidateObjectStringNotCoerced(t *testing.T) {
	s := Object(map[string]*Schema{"num": Number()})
	_, err := s.Validate(map[string]any{"num": "5"})
	if err == nil {
		t.Fatal("expected validation error for string in number field")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Issues) != 1 || verr.Issues[0].Path != "num" {
		t.Errorf("issues = %+v, want single issue at path num", verr.Issues)
	}
}

func TestValidateStructFlattened(t *testing.T) {
	type point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	s := Object(map[string]*Schema{"x": Number(), "y": Number()})
	got, err := s.Validate(point{X: 1, Y: 2})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	want := map[string]any{"x": 1.0, "y": 2.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flattened struct mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	s := Object(map[string]*Schema{
		"a": Number(),
		"b": String(),
		"c": Bool(),
	})
	_, err := s.Validate(map[string]any{"a": "x", "b": 1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Issues) != 3 {
		t.Fatalf("issue count = %d, want 3 (got %v)", len(verr.Issues), verr.Issues)
	}
	msg := verr.Error()
	for _, path := range []string{"a", "b", "c"} {
		if !strings.Contains(msg, path) {
			t.Errorf("error message %q missing path %q", msg, path)
		}
	}
}

func TestValidateArrayAndTuple(t *testing.T) {
	arr := Array(Int())
	got, err := arr.Validate([]any{1, 2.0, 3})
	if err != nil {
		t.Fatalf("array Validate returned error: %v", err)
	}
	if diff := cmp.Diff([]any{1, 2, 3}, got); diff != "" {
		t.Errorf("array mismatch (-want +got):\n%s", diff)
	}
	if _, err := arr.Validate([]any{1, "two"}); err == nil {
		t.Error("expected element type error")
	}

	tup := Tuple(Number(), String())
	if _, err := tup.Validate([]any{1, "a"}); err != nil {
		t.Errorf("tuple Validate returned error: %v", err)
	}
	if _, err := tup.Validate([]any{1}); err == nil {
		t.Error("expected arity error")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
		want   string
	}{
		{"string", String(), "string"},
		{"number", Number(), "number"},
		{"nil", nil, "any value"},
		{"enum", OneOf("a", "b"), `one of "a" | "b"`},
		{"array", Array(Number()), "array of number"},
		{"tuple", Tuple(Number(), String()), "tuple of (number, string)"},
		{
			"object sorted",
			Object(map[string]*Schema{"b": String().Opt(), "a": Number()}),
			"object with fields {a: number, b?: string}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.schema.Describe(); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}
