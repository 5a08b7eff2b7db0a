// Package artifact wraps a loaded program entry as the callable surface the
// caller sees: inputs are schema-validated before any interpreted code runs,
// results are normalized to plain data and validated on the way out.
package artifact

import (
	"context"
	"encoding/json"
	"reflect"

	"fnforge/internal/sandbox"
	"fnforge/internal/schema"
)

// Artifact is an invocable program entry with optional input and output
// schemas.
type Artifact struct {
	entry *sandbox.Entry
	in    *schema.Schema
	out   *schema.Schema
}

// New wraps an entry. Either schema may be nil.
func New(entry *sandbox.Entry, in, out *schema.Schema) *Artifact {
	return &Artifact{entry: entry, in: in, out: out}
}

// Name returns the entry point's identifier.
func (a *Artifact) Name() string { return a.entry.Name }

// Names lists every function the program binds, entry point included.
func (a *Artifact) Names() []string { return a.entry.Names() }

// Call invokes the entry point.
func (a *Artifact) Call(ctx context.Context, args ...any) (any, error) {
	return a.CallNamed(ctx, a.entry.Name, args...)
}

// CallNamed invokes any bound function by name through the same
// validate-invoke-normalize-validate pipeline as the entry point.
func (a *Artifact) CallNamed(ctx context.Context, name string, args ...any) (any, error) {
	args, err := a.validateInput(args)
	if err != nil {
		return nil, err
	}

	result, err := a.entry.Invoke(ctx, name, args)
	if err != nil {
		return nil, &ExecutionError{Name: name, Err: err}
	}

	result = normalize(result)

	if a.out != nil {
		validated, err := a.out.Validate(result)
		if err != nil {
			return nil, &InvalidOutputError{Err: err}
		}
		result = validated
	}
	return result, nil
}

// validateInput checks arguments against the input schema before anything
// is invoked. One argument validates directly; several validate as a tuple.
func (a *Artifact) validateInput(args []any) ([]any, error) {
	if a.in == nil {
		return args, nil
	}
	switch len(args) {
	case 1:
		validated, err := a.in.Validate(args[0])
		if err != nil {
			return nil, &InvalidInputError{Err: err}
		}
		return []any{validated}, nil
	default:
		tuple := make([]any, len(args))
		copy(tuple, args)
		validated, err := a.in.Validate(tuple)
		if err != nil {
			return nil, &InvalidInputError{Err: err}
		}
		if vs, ok := validated.([]any); ok {
			return vs, nil
		}
		return args, nil
	}
}

// normalize flattens record-shaped results (structs, maps) into plain
// map[string]any through a JSON round trip, so serialization carries only
// the function's own data. Arrays, scalars, and functions pass through.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number, []any, map[string]any:
		return v
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Map {
		return v
	}

	raw, err := json.Marshal(rv.Interface())
	if err != nil {
		return v
	}
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return v
	}
	return flat
}
