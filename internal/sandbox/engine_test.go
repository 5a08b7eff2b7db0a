package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func mustLoad(t *testing.T, e *Engine, code string) *Entry {
	t.Helper()
	p, err := e.Compile(code)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	entry, err := e.Load(context.Background(), p)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return entry
}

func TestLoadAndInvoke(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, "func double(n int) int { return n * 2 }")

	if entry.Name != "double" {
		t.Errorf("entry name = %q, want double", entry.Name)
	}
	got, err := entry.Invoke(context.Background(), "double", []any{5})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if got != 10 {
		t.Errorf("double(5) = %v, want 10", got)
	}
}

func TestInvokeCoercesNumericArgs(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, "func double(n int) int { return n * 2 }")

	// JSON-decoded arguments arrive as float64
	got, err := entry.Invoke(context.Background(), "double", []any{float64(5)})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if got != 10 {
		t.Errorf("double(5.0) = %v, want 10", got)
	}
}

func TestInvokeStringFunction(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, `import "strings"

func shout(s string) string { return strings.ToUpper(s) + "!" }`)

	got, err := entry.Invoke(context.Background(), "shout", []any{"hey"})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if got != "HEY!" {
		t.Errorf("shout(hey) = %v, want HEY!", got)
	}
}

func TestInvokeErrorReturn(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, `import "errors"

func safeDiv(a, b int) (int, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}`)

	got, err := entry.Invoke(context.Background(), "safeDiv", []any{10, 2})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if got != 5 {
		t.Errorf("safeDiv(10,2) = %v, want 5", got)
	}

	_, err = entry.Invoke(context.Background(), "safeDiv", []any{1, 0})
	if err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("error = %v, want division by zero", err)
	}
}

func TestInvokeContextParameter(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, `import "context"

func withCtx(ctx context.Context, n int) int {
	_ = ctx
	return n + 1
}`)

	got, err := entry.Invoke(context.Background(), "withCtx", []any{41})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if got != 42 {
		t.Errorf("withCtx(41) = %v, want 42", got)
	}
}

func TestInvokeArityMismatch(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, "func double(n int) int { return n * 2 }")

	if _, err := entry.Invoke(context.Background(), "double", []any{1, 2}); err == nil {
		t.Error("expected arity error for extra argument")
	}
	if _, err := entry.Invoke(context.Background(), "double", nil); err == nil {
		t.Error("expected arity error for missing argument")
	}
}

func TestInvokeUnknownName(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, "func double(n int) int { return n * 2 }")

	if _, err := entry.Invoke(context.Background(), "nosuch", []any{1}); err == nil {
		t.Error("expected error for unknown function name")
	}
}

func TestInvokePanicRecovered(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, `func boom() int {
	var xs []int
	return xs[3]
}`)

	if _, err := entry.Invoke(context.Background(), "boom", nil); err == nil {
		t.Error("expected error from panicking function")
	}
}

func TestInvokeTimeout(t *testing.T) {
	e := NewEngine(Policy{ExecTimeout: 50 * time.Millisecond})
	entry := mustLoad(t, e, `import "time"

func slow() int {
	time.Sleep(300 * time.Millisecond)
	return 1
}`)

	_, err := entry.Invoke(context.Background(), "slow", nil)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout", err)
	}
	// Let the interpreted goroutine drain before the test binary exits
	time.Sleep(300 * time.Millisecond)
}

func TestLoadReportsTypeErrors(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	p, err := e.Compile("func f() int { return undefinedThing }")
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	_, err = e.Load(context.Background(), p)
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CompileError", err)
	}
}

func TestLoadIsolatesState(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	code := `var counter = 0

func bump() int {
	counter++
	return counter
}`

	p, err := e.Compile(code)
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}

	first, err := e.Load(context.Background(), p)
	if err != nil {
		t.Fatalf("first Load returned error: %v", err)
	}
	if v, _ := first.Invoke(context.Background(), "bump", nil); v != 1 {
		t.Errorf("first bump = %v, want 1", v)
	}
	if v, _ := first.Invoke(context.Background(), "bump", nil); v != 2 {
		t.Errorf("second bump = %v, want 2", v)
	}

	// A fresh load starts from scratch
	second, err := e.Load(context.Background(), p)
	if err != nil {
		t.Fatalf("second Load returned error: %v", err)
	}
	if v, _ := second.Invoke(context.Background(), "bump", nil); v != 1 {
		t.Errorf("fresh load bump = %v, want 1", v)
	}
}

func TestEntryNames(t *testing.T) {
	e := NewEngine(DefaultPolicy())
	entry := mustLoad(t, e, `func b() int { return 2 }
func a() int { return 1 }`)

	names := entry.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
	if !entry.Has("a") || entry.Has("z") {
		t.Error("Has() misreports bindings")
	}
}
