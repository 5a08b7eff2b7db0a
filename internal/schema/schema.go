// Package schema implements the structural schema engine used to validate
// function inputs and outputs and to describe expected shapes in prompts.
// Schemas are plain values so they round-trip through JSON and YAML, which
// lets stored artifacts and spec files carry their own schema snapshots.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind identifies the shape a schema accepts.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBool    Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindTuple   Kind = "tuple"
	KindAny     Kind = "any"
)

// Schema describes one value shape. A nil *Schema accepts anything.
type Schema struct {
	Kind     Kind               `json:"kind" yaml:"kind"`
	Fields   map[string]*Schema `json:"fields,omitempty" yaml:"fields,omitempty"`
	Elem     *Schema            `json:"elem,omitempty" yaml:"elem,omitempty"`
	Items    []*Schema          `json:"items,omitempty" yaml:"items,omitempty"`
	Optional bool               `json:"optional,omitempty" yaml:"optional,omitempty"`
	Enum     []string           `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// String returns a string schema.
func String() *Schema { return &Schema{Kind: KindString} }

// Number returns a floating point number schema.
func Number() *Schema { return &Schema{Kind: KindNumber} }

// Int returns an integer schema.
func Int() *Schema { return &Schema{Kind: KindInteger} }

// Bool returns a boolean schema.
func Bool() *Schema { return &Schema{Kind: KindBool} }

// Any returns a schema that accepts any value.
func Any() *Schema { return &Schema{Kind: KindAny} }

// Object returns an object schema with the given named fields.
func Object(fields map[string]*Schema) *Schema {
	return &Schema{Kind: KindObject, Fields: fields}
}

// Array returns an array schema whose elements match elem.
func Array(elem *Schema) *Schema { return &Schema{Kind: KindArray, Elem: elem} }

// Tuple returns a fixed-arity schema, one item schema per position.
func Tuple(items ...*Schema) *Schema { return &Schema{Kind: KindTuple, Items: items} }

// OneOf returns a string schema restricted to the given values.
func OneOf(values ...string) *Schema { return &Schema{Kind: KindString, Enum: values} }

// Opt marks the schema optional and returns it for chaining.
func (s *Schema) Opt() *Schema {
	s.Optional = true
	return s
}

// Issue is a single validation failure with the path that produced it.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError carries every issue found in one validation pass, not just
// the first.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "schema validation failed"
	}
	parts := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		if iss.Path == "" {
			parts[i] = iss.Message
		} else {
			parts[i] = fmt.Sprintf("%s: %s", iss.Path, iss.Message)
		}
	}
	return fmt.Sprintf("schema validation failed (%d issue(s)): %s",
		len(e.Issues), strings.Join(parts, "; "))
}

// Validate checks v against the schema and returns the value in canonical
// form: numbers coerced to their declared kind, structs flattened to plain
// maps. String values are never coerced to numbers. A nil schema accepts v
// unchanged.
func (s *Schema) Validate(v any) (any, error) {
	if s == nil {
		return v, nil
	}
	var issues []Issue
	out := s.validate("", v, &issues)
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return out, nil
}

func (s *Schema) validate(path string, v any, issues *[]Issue) any {
	if s == nil || s.Kind == KindAny || s.Kind == "" {
		return v
	}
	if v == nil {
		if s.Optional {
			return nil
		}
		addIssue(issues, path, fmt.Sprintf("expected %s, got null", s.Kind))
		return nil
	}

	switch s.Kind {
	case KindString:
		str, ok := v.(string)
		if !ok {
			addIssue(issues, path, fmt.Sprintf("expected string, got %s", typeName(v)))
			return nil
		}
		if len(s.Enum) > 0 && !contains(s.Enum, str) {
			addIssue(issues, path, fmt.Sprintf("%q is not one of %s", str, strings.Join(s.Enum, ", ")))
			return nil
		}
		return str

	case KindNumber:
		f, ok := asFloat(v)
		if !ok {
			addIssue(issues, path, fmt.Sprintf("expected number, got %s", typeName(v)))
			return nil
		}
		return f

	case KindInteger:
		f, ok := asFloat(v)
		if !ok {
			addIssue(issues, path, fmt.Sprintf("expected integer, got %s", typeName(v)))
			return nil
		}
		if f != math.Trunc(f) {
			addIssue(issues, path, fmt.Sprintf("expected integer, got %v", v))
			return nil
		}
		return int(f)

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			addIssue(issues, path, fmt.Sprintf("expected boolean, got %s", typeName(v)))
			return nil
		}
		return b

	case KindObject:
		m, ok := asMap(v)
		if !ok {
			addIssue(issues, path, fmt.Sprintf("expected object, got %s", typeName(v)))
			return nil
		}
		out := make(map[string]any, len(m))
		for name, field := range s.Fields {
			fv, present := m[name]
			if !present {
				if !field.isOptional() {
					addIssue(issues, joinPath(path, name), "missing required field")
				}
				continue
			}
			out[name] = field.validate(joinPath(path, name), fv, issues)
		}
		for name, fv := range m {
			if _, declared := s.Fields[name]; !declared {
				out[name] = fv
			}
		}
		return out

	case KindArray:
		items, ok := asSlice(v)
		if !ok {
			addIssue(issues, path, fmt.Sprintf("expected array, got %s", typeName(v)))
			return nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = s.Elem.validate(fmt.Sprintf("%s[%d]", path, i), item, issues)
		}
		return out

	case KindTuple:
		items, ok := asSlice(v)
		if !ok {
			addIssue(issues, path, fmt.Sprintf("expected %d values, got %s", len(s.Items), typeName(v)))
			return nil
		}
		if len(items) != len(s.Items) {
			addIssue(issues, path, fmt.Sprintf("expected %d values, got %d", len(s.Items), len(items)))
			return nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = s.Items[i].validate(fmt.Sprintf("%s[%d]", path, i), item, issues)
		}
		return out

	default:
		addIssue(issues, path, fmt.Sprintf("unknown schema kind %q", s.Kind))
		return nil
	}
}

func (s *Schema) isOptional() bool { return s == nil || s.Optional }

// Describe renders the schema as a short human readable hint suitable for
// inclusion in a generation prompt.
func (s *Schema) Describe() string {
	if s == nil {
		return "any value"
	}
	switch s.Kind {
	case KindString:
		if len(s.Enum) > 0 {
			quoted := make([]string, len(s.Enum))
			for i, e := range s.Enum {
				quoted[i] = fmt.Sprintf("%q", e)
			}
			return "one of " + strings.Join(quoted, " | ")
		}
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBool:
		return "boolean"
	case KindAny, "":
		return "any value"
	case KindArray:
		return "array of " + s.Elem.Describe()
	case KindTuple:
		parts := make([]string, len(s.Items))
		for i, item := range s.Items {
			parts[i] = item.Describe()
		}
		return "tuple of (" + strings.Join(parts, ", ") + ")"
	case KindObject:
		names := make([]string, 0, len(s.Fields))
		for name := range s.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			field := s.Fields[name]
			opt := ""
			if field.isOptional() {
				opt = "?"
			}
			parts[i] = fmt.Sprintf("%s%s: %s", name, opt, field.Describe())
		}
		return "object with fields {" + strings.Join(parts, ", ") + "}"
	default:
		return string(s.Kind)
	}
}

func addIssue(issues *[]Issue, path, msg string) {
	*issues = append(*issues, Issue{Path: path, Message: msg})
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asMap accepts map[string]any directly and flattens other map and struct
// values through a JSON round trip so only plain data survives.
func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	switch v.(type) {
	case string, bool, float32, float64, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number, []any:
		return nil, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var s []any
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return s, true
}
