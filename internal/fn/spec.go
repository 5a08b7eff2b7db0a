package fn

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"fnforge/internal/artifact"
	"fnforge/internal/schema"
	"fnforge/internal/template"
)

// Spec describes a function to synthesize. Fluent methods return derived
// copies; methods that change what would be generated (schemas, examples,
// model, bound variables) drop the cached code so the next build
// regenerates. The mutex guards the fields a build mutates in place.
type Spec struct {
	mu        sync.Mutex
	tmpl      *template.Template
	examples  []Example
	modelRef  any // alias string or model.Descriptor
	opts      Options
	in        *schema.Schema
	out       *schema.Schema
	vars      map[string]any
	persistID string
	runtime   Runtime

	buildKey      string
	generatedCode string
	needsSave     bool
}

// Define builds a specification from template text. Placeholders use
// {name} syntax.
func Define(text string) *Spec {
	return New(template.Parse(text))
}

// New builds a specification around an assembled template.
func New(tmpl *template.Template) *Spec {
	return &Spec{tmpl: tmpl, buildKey: uuid.NewString()}
}

// clone copies the specification with a fresh build key. Concurrent calls
// on one instance share a key; every derived instance gets its own.
func (s *Spec) clone() *Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Spec{
		tmpl:          s.tmpl,
		examples:      append([]Example(nil), s.examples...),
		modelRef:      s.modelRef,
		opts:          s.opts,
		in:            s.in,
		out:           s.out,
		persistID:     s.persistID,
		runtime:       s.runtime,
		buildKey:      uuid.NewString(),
		generatedCode: s.generatedCode,
		needsSave:     s.needsSave,
	}
	if len(s.vars) > 0 {
		c.vars = make(map[string]any, len(s.vars))
		for k, v := range s.vars {
			c.vars[k] = v
		}
	}
	return c
}

// Inputs sets the input schema. Drops cached code.
func (s *Spec) Inputs(in *schema.Schema) *Spec {
	c := s.clone()
	c.in = in
	c.generatedCode = ""
	return c
}

// Outputs sets the output schema. Drops cached code.
func (s *Spec) Outputs(out *schema.Schema) *Spec {
	c := s.clone()
	c.out = out
	c.generatedCode = ""
	return c
}

// WithExamples replaces the few-shot examples. Drops cached code.
func (s *Spec) WithExamples(examples ...Example) *Spec {
	c := s.clone()
	c.examples = append([]Example(nil), examples...)
	c.generatedCode = ""
	return c
}

// Using selects the model: a registry alias string or a concrete
// model.Descriptor. Drops cached code.
func (s *Spec) Using(ref any) *Spec {
	c := s.clone()
	c.modelRef = ref
	c.generatedCode = ""
	return c
}

// WithOptions replaces the option bag. Cached code is kept: temperature and
// token limits only matter when a generation actually runs, and
// ForceRegenerate is a per-call directive rather than a generation input.
func (s *Spec) WithOptions(opts Options) *Spec {
	c := s.clone()
	c.opts = opts
	return c
}

// Bind sets the variable bag rendered into the template at generation time.
// Call arguments are not template variables; they feed the generated
// function. Drops cached code.
func (s *Spec) Bind(vars map[string]any) *Spec {
	c := s.clone()
	c.vars = make(map[string]any, len(vars))
	for k, v := range vars {
		c.vars[k] = v
	}
	c.generatedCode = ""
	return c
}

// Persist records the identity under which the artifact saves and loads.
// No I/O happens here; the next build loads or saves under this id.
func (s *Spec) Persist(id string) *Spec {
	c := s.clone()
	c.persistID = id
	c.needsSave = id != ""
	return c
}

// Via binds the runtime that resolves and persists this specification.
func (s *Spec) Via(rt Runtime) *Spec {
	c := s.clone()
	c.runtime = rt
	return c
}

// Build resolves the specification to a callable artifact, generating,
// loading, or reusing cached code as the build state dictates.
func (s *Spec) Build(ctx context.Context) (*artifact.Artifact, error) {
	rt := s.Runtime()
	if rt == nil {
		return nil, ErrNoRuntime
	}
	return rt.Resolve(ctx, s)
}

// Call resolves the artifact and invokes its entry function.
func (s *Spec) Call(ctx context.Context, args ...any) (any, error) {
	art, err := s.Build(ctx)
	if err != nil {
		return nil, err
	}
	return art.Call(ctx, args...)
}

// Save writes the artifact durably, generating first when no code is
// cached. An empty name falls back to the persist id. Returns the new
// version id.
func (s *Spec) Save(ctx context.Context, name string) (string, error) {
	rt := s.Runtime()
	if rt == nil {
		return "", ErrNoRuntime
	}
	if name == "" {
		name = s.PersistID()
	}
	if name == "" {
		return "", errors.New("save requires a name or a persist id")
	}
	return rt.Persist(ctx, s, name)
}

// AdoptStored installs a persisted artifact on this instance: code always,
// examples and schemas only where the specification carries none of its
// own. Clears needsSave.
func (s *Spec) AdoptStored(code string, examples []Example, in, out *schema.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generatedCode = code
	if len(s.examples) == 0 && len(examples) > 0 {
		s.examples = append([]Example(nil), examples...)
	}
	if s.in == nil {
		s.in = in
	}
	if s.out == nil {
		s.out = out
	}
	s.needsSave = false
}

// Template returns the prompt template.
func (s *Spec) Template() *template.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tmpl
}

// Examples returns a copy of the few-shot examples.
func (s *Spec) Examples() []Example {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Example(nil), s.examples...)
}

// ModelRef returns the model alias or descriptor, nil when unset.
func (s *Spec) ModelRef() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelRef
}

// Options returns the option bag.
func (s *Spec) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// InputSchema returns the input schema, nil when unset.
func (s *Spec) InputSchema() *schema.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in
}

// OutputSchema returns the output schema, nil when unset.
func (s *Spec) OutputSchema() *schema.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Vars returns a copy of the bound template variables.
func (s *Spec) Vars() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.vars) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// PersistID returns the persistence identity, empty when unset.
func (s *Spec) PersistID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistID
}

// NeedsSave reports whether the in-memory artifact has not yet been
// written back under the persist id.
func (s *Spec) NeedsSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsSave
}

// SetNeedsSave updates the save flag. The flag only holds while a persist
// id is set.
func (s *Spec) SetNeedsSave(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsSave = v && s.persistID != ""
}

// GeneratedCode returns the cached artifact source, empty when not built.
func (s *Spec) GeneratedCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generatedCode
}

// SetGeneratedCode adopts newly generated source.
func (s *Spec) SetGeneratedCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generatedCode = code
}

// BuildKey identifies this instance for in-flight build memoization.
func (s *Spec) BuildKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildKey
}

// Runtime returns the bound runtime, nil when unbound.
func (s *Spec) Runtime() Runtime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime
}
