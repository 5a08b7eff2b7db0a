package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Entry is the invocable table of a loaded program: the scanned entry point
// plus every other top-level function binding.
type Entry struct {
	Name        string
	fns         map[string]reflect.Value
	execTimeout time.Duration
}

// Names lists the program's function bindings in sorted order.
func (e *Entry) Names() []string {
	names := make([]string, 0, len(e.fns))
	for name := range e.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the program binds a function under name.
func (e *Entry) Has(name string) bool {
	_, ok := e.fns[name]
	return ok
}

// Invoke calls the named function with the given arguments. A leading
// context.Context parameter is filled from ctx, a trailing error return is
// split off, and panics in interpreted code come back as errors. Execution
// runs under the policy timeout.
func (e *Entry) Invoke(ctx context.Context, name string, args []any) (any, error) {
	fn, ok := e.fns[name]
	if !ok {
		return nil, fmt.Errorf("no function %q in program", name)
	}

	if e.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.execTimeout)
		defer cancel()
	}

	in, err := buildArgs(ctx, fn.Type(), args)
	if err != nil {
		return nil, err
	}

	resultChan := make(chan any, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("panic in %s: %v", name, r)
			}
		}()
		out := fn.Call(in)
		result, err := splitResults(fn.Type(), out)
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("execution of %s timed out: %w", name, ctx.Err())
	}
}

// buildArgs maps caller arguments onto the function's parameters, injecting
// ctx when the first parameter is a context.Context.
func buildArgs(ctx context.Context, t reflect.Type, args []any) ([]reflect.Value, error) {
	offset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		offset = 1
	}

	expected := t.NumIn() - offset
	if t.IsVariadic() {
		if len(args) < expected-1 {
			return nil, fmt.Errorf("function expects at least %d argument(s), got %d", expected-1, len(args))
		}
	} else if len(args) != expected {
		return nil, fmt.Errorf("function expects %d argument(s), got %d", expected, len(args))
	}

	in := make([]reflect.Value, 0, len(args)+offset)
	if offset == 1 {
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, arg := range args {
		idx := i + offset
		var paramType reflect.Type
		if t.IsVariadic() && idx >= t.NumIn()-1 {
			paramType = t.In(t.NumIn() - 1).Elem()
		} else {
			paramType = t.In(idx)
		}
		v, err := coerceArg(arg, paramType)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in = append(in, v)
	}
	return in, nil
}

// coerceArg converts one argument to the parameter type: direct assignment,
// then numeric conversion, then a JSON round trip for map-to-struct shapes.
func coerceArg(arg any, paramType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch paramType.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			return reflect.Zero(paramType), nil
		default:
			return reflect.Value{}, fmt.Errorf("cannot pass nil as %s", paramType)
		}
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(paramType) {
		return v, nil
	}
	if v.Type().ConvertibleTo(paramType) && isScalarKind(v.Kind()) && isScalarKind(paramType.Kind()) {
		return v.Convert(paramType), nil
	}

	raw, err := json.Marshal(arg)
	if err == nil {
		np := reflect.New(paramType)
		if json.Unmarshal(raw, np.Interface()) == nil {
			return np.Elem(), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("value of type %T not usable as %s", arg, paramType)
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return true
	default:
		return false
	}
}

// splitResults separates a trailing error return from the value results.
func splitResults(t reflect.Type, out []reflect.Value) (any, error) {
	n := t.NumOut()
	if n == 0 {
		return nil, nil
	}
	if t.Out(n-1) == errorType {
		last := out[n-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		values := make([]any, len(out))
		for i, v := range out {
			values[i] = v.Interface()
		}
		return values, nil
	}
}
