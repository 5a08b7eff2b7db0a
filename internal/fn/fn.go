// Package fn defines the function specification: the caller-facing value
// describing a procedure to synthesize (template, few-shot examples,
// schemas, model choice) plus the build lifecycle of its generated code.
// Specifications are immutable by convention: fluent methods return derived
// copies, while the generated code and save state evolve on a given
// instance as builds resolve.
package fn

import (
	"context"
	"errors"

	"fnforge/internal/artifact"
)

// Example is one input/output pair used for few-shot conditioning.
type Example struct {
	Input  any `json:"input" yaml:"input"`
	Output any `json:"output" yaml:"output"`
}

// Options is the per-specification configuration bag. Zero values defer to
// model or provider defaults.
type Options struct {
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens       int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	ForceRegenerate bool     `json:"force_regenerate,omitempty" yaml:"force_regenerate,omitempty"`
}

// Runtime resolves a specification to a callable artifact and persists it.
// Mirrors build.Builder to avoid an import cycle.
type Runtime interface {
	Resolve(ctx context.Context, spec *Spec) (*artifact.Artifact, error)
	Persist(ctx context.Context, spec *Spec, name string) (string, error)
}

// ErrNoRuntime is returned when a specification is invoked before a runtime
// has been bound with Via.
var ErrNoRuntime = errors.New("specification has no runtime bound")
