// Package model defines model descriptors, the alias registry, and the
// adapters that talk to LLM providers. Resolution is explicit: callers hold
// a Registry instance and an adapter Factory rather than reaching into
// globals, so two pipelines can run against different model sets.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Message represents a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CallOptions carries per-call generation settings. Zero values mean
// provider defaults.
type CallOptions struct {
	Temperature *float64
	MaxTokens   int
}

// Descriptor identifies a concrete model behind a provider.
type Descriptor struct {
	Name      string `json:"name"`                 // registry alias
	Provider  string `json:"provider"`             // anthropic, openai, gemini
	Model     string `json:"model"`                // provider-side model id
	BaseURL   string `json:"base_url,omitempty"`   // override for proxies/self-hosted
	MaxTokens int    `json:"max_tokens,omitempty"` // response token cap
	Chat      bool   `json:"chat"`                 // supports multi-turn messages
}

// Adapter is the narrow surface the pipeline needs from a provider client.
type Adapter interface {
	// Complete sends a single prompt and returns the completion text.
	Complete(ctx context.Context, prompt string, opts CallOptions) (string, error)
	// Chat sends an ordered message list and returns the reply text.
	Chat(ctx context.Context, msgs []Message, opts CallOptions) (string, error)
}

// AdapterResolver turns a descriptor into a live adapter.
type AdapterResolver interface {
	AdapterFor(ctx context.Context, d Descriptor) (Adapter, error)
}

// NotFoundError reports an alias with no registered descriptor.
type NotFoundError struct {
	Alias string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model %q not found in registry", e.Alias)
}

// ErrNoModel is returned when neither the specification nor the registry
// default names a model.
var ErrNoModel = errors.New("no model specified and no default registered")

// Registry maps aliases to model descriptors. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Descriptor
	def    string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Descriptor)}
}

// Register adds or replaces a descriptor under its Name.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[d.Name] = d
}

// Resolve looks up an alias.
func (r *Registry) Resolve(alias string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[alias]
	if !ok {
		return Descriptor{}, &NotFoundError{Alias: alias}
	}
	return d, nil
}

// SetDefault marks an already registered alias as the registry default.
func (r *Registry) SetDefault(alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[alias]; !ok {
		return &NotFoundError{Alias: alias}
	}
	r.def = alias
	return nil
}

// Default returns the default descriptor, or ErrNoModel when none is set.
func (r *Registry) Default() (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.def == "" {
		return Descriptor{}, ErrNoModel
	}
	d, ok := r.models[r.def]
	if !ok {
		return Descriptor{}, ErrNoModel
	}
	return d, nil
}

// List returns registered aliases in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
