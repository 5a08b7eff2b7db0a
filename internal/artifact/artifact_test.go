package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fnforge/internal/sandbox"
	"fnforge/internal/schema"
)

func loadEntry(t *testing.T, code string) *sandbox.Entry {
	t.Helper()
	engine := sandbox.NewEngine(sandbox.DefaultPolicy())
	p, err := engine.Compile(code)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	entry, err := engine.Load(context.Background(), p)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return entry
}

func TestCallWithoutSchemas(t *testing.T) {
	a := New(loadEntry(t, "func double(n int) int { return n * 2 }"), nil, nil)

	got, err := a.Call(context.Background(), 5)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if got != 10 {
		t.Errorf("double(5) = %v, want 10", got)
	}
	if a.Name() != "double" {
		t.Errorf("Name() = %q, want double", a.Name())
	}
}

func TestCallNamed(t *testing.T) {
	code := `func double(n int) int { return n * 2 }
func triple(n int) int { return n * 3 }`
	a := New(loadEntry(t, code), nil, nil)

	got, err := a.CallNamed(context.Background(), "triple", 4)
	if err != nil {
		t.Fatalf("CallNamed returned error: %v", err)
	}
	if got != 12 {
		t.Errorf("triple(4) = %v, want 12", got)
	}

	// The entry name works through CallNamed as well
	got, err = a.CallNamed(context.Background(), "double", 4)
	if err != nil {
		t.Fatalf("CallNamed(double) returned error: %v", err)
	}
	if got != 8 {
		t.Errorf("double(4) = %v, want 8", got)
	}

	_, err = a.CallNamed(context.Background(), "quadruple", 4)
	var exec *ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("unknown name error = %v, want *ExecutionError", err)
	}
}

func TestInputValidationPrecedesExecution(t *testing.T) {
	// The function would panic if it ever ran
	code := `func explode(m map[string]any) int {
	panic("should not run")
}`
	in := schema.Object(map[string]*schema.Schema{"num": schema.Number()})
	a := New(loadEntry(t, code), in, nil)

	_, err := a.Call(context.Background(), map[string]any{"num": "5"})
	var inv *InvalidInputError
	if !errors.As(err, &inv) {
		t.Fatalf("error = %v, want *InvalidInputError", err)
	}
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("wrapped schema.ValidationError not reachable")
	}
	if len(verr.Issues) != 1 || verr.Issues[0].Path != "num" {
		t.Errorf("issues = %+v", verr.Issues)
	}
}

func TestMultipleArgsValidateAsTuple(t *testing.T) {
	code := `import "strings"

func repeat(s string, times int) string { return strings.Repeat(s, times) }`
	in := schema.Tuple(schema.String(), schema.Int())
	a := New(loadEntry(t, code), in, nil)

	got, err := a.Call(context.Background(), "ab", float64(2))
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if got != "abab" {
		t.Errorf("repeat(ab, 2) = %v, want abab", got)
	}

	if _, err := a.Call(context.Background(), "ab", "not a count"); err == nil {
		t.Error("expected tuple validation error")
	}
}

func TestOutputValidation(t *testing.T) {
	code := `func describe(n int) map[string]any {
	return map[string]any{"value": n, "sign": "positive"}
}`
	out := schema.Object(map[string]*schema.Schema{
		"value": schema.Int(),
		"sign":  schema.String(),
	})
	a := New(loadEntry(t, code), nil, out)

	got, err := a.Call(context.Background(), 3)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	want := map[string]any{"value": 3, "sign": "positive"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestOutputValidationFailure(t *testing.T) {
	a := New(loadEntry(t, `func oops() string { return "not a number" }`),
		nil, schema.Number())

	_, err := a.Call(context.Background())
	var inv *InvalidOutputError
	if !errors.As(err, &inv) {
		t.Fatalf("error = %v, want *InvalidOutputError", err)
	}
}

func TestExecutionErrorWrapsFunctionError(t *testing.T) {
	code := `import "errors"

func fail() (int, error) { return 0, errors.New("boom") }`
	a := New(loadEntry(t, code), nil, nil)

	_, err := a.Call(context.Background())
	var exec *ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("error = %v, want *ExecutionError", err)
	}
	if exec.Name != "fail" {
		t.Errorf("ExecutionError name = %q, want fail", exec.Name)
	}
}

func TestNormalize(t *testing.T) {
	type pair struct {
		A int    `json:"a"`
		B string `json:"b"`
	}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"scalar", 42, 42},
		{"string", "x", "x"},
		{"array passes through", []any{1, 2}, []any{1, 2}},
		{"struct flattened", pair{A: 1, B: "x"}, map[string]any{"a": float64(1), "b": "x"}},
		{"pointer to struct flattened", &pair{A: 2, B: "y"}, map[string]any{"a": float64(2), "b": "y"}},
		{"typed map flattened", map[string]int{"n": 3}, map[string]any{"n": float64(3)}},
		{"plain map kept", map[string]any{"n": 3}, map[string]any{"n": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, normalize(tt.in)); diff != "" {
				t.Errorf("normalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
