package model

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Provider names
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Credentials carries provider API keys resolved from config or environment.
type Credentials struct {
	AnthropicKey string
	OpenAIKey    string
	GeminiKey    string
}

// CredentialsFromEnv reads the standard provider key variables.
func CredentialsFromEnv() Credentials {
	return Credentials{
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiKey:    os.Getenv("GEMINI_API_KEY"),
	}
}

// Merge overlays non-empty keys from other on top of c.
func (c Credentials) Merge(other Credentials) Credentials {
	if other.AnthropicKey != "" {
		c.AnthropicKey = other.AnthropicKey
	}
	if other.OpenAIKey != "" {
		c.OpenAIKey = other.OpenAIKey
	}
	if other.GeminiKey != "" {
		c.GeminiKey = other.GeminiKey
	}
	return c
}

// ActiveProvider returns the first provider with a key, in priority order
// anthropic > openai > gemini, or "" when none is configured.
func (c Credentials) ActiveProvider() string {
	switch {
	case c.AnthropicKey != "":
		return ProviderAnthropic
	case c.OpenAIKey != "":
		return ProviderOpenAI
	case c.GeminiKey != "":
		return ProviderGemini
	default:
		return ""
	}
}

func (c Credentials) keyFor(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return c.AnthropicKey
	case ProviderOpenAI:
		return c.OpenAIKey
	case ProviderGemini:
		return c.GeminiKey
	default:
		return ""
	}
}

// Factory builds and caches adapters per descriptor.
type Factory struct {
	creds Credentials

	mu    sync.Mutex
	cache map[string]Adapter
}

// NewFactory creates an adapter factory using the given credentials.
func NewFactory(creds Credentials) *Factory {
	return &Factory{
		creds: creds,
		cache: make(map[string]Adapter),
	}
}

// AdapterFor returns a live adapter for the descriptor, reusing a cached
// instance when the same provider/model pair was seen before.
func (f *Factory) AdapterFor(ctx context.Context, d Descriptor) (Adapter, error) {
	key := d.Provider + "/" + d.Model + "/" + d.BaseURL

	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.cache[key]; ok {
		return a, nil
	}

	apiKey := f.creds.keyFor(d.Provider)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", d.Provider)
	}

	var (
		adapter Adapter
		err     error
	)
	switch d.Provider {
	case ProviderAnthropic:
		adapter = NewAnthropicAdapter(AnthropicConfig{
			APIKey:    apiKey,
			BaseURL:   d.BaseURL,
			Model:     d.Model,
			MaxTokens: d.MaxTokens,
		})
	case ProviderOpenAI:
		adapter = NewOpenAIAdapter(OpenAIConfig{
			APIKey:    apiKey,
			BaseURL:   d.BaseURL,
			Model:     d.Model,
			MaxTokens: d.MaxTokens,
		})
	case ProviderGemini:
		adapter, err = NewGeminiAdapter(ctx, GeminiConfig{
			APIKey:    apiKey,
			Model:     d.Model,
			MaxTokens: d.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown provider: %s", d.Provider)
	}

	f.cache[key] = adapter
	return adapter, nil
}

// DefaultRegistry registers the builtin aliases and sets the default to the
// first provider with a configured key. With no keys at all the registry has
// no default, and resolution reports ErrNoModel.
func DefaultRegistry(creds Credentials) *Registry {
	r := NewRegistry()
	r.Register(Descriptor{
		Name: "claude-sonnet", Provider: ProviderAnthropic,
		Model: "claude-sonnet-4-20250514", MaxTokens: 4096, Chat: true,
	})
	r.Register(Descriptor{
		Name: "gpt-4o", Provider: ProviderOpenAI,
		Model: "gpt-4o", MaxTokens: 4096, Chat: true,
	})
	r.Register(Descriptor{
		Name: "gemini-flash", Provider: ProviderGemini,
		Model: "gemini-2.5-flash", MaxTokens: 8192, Chat: true,
	})

	switch creds.ActiveProvider() {
	case ProviderAnthropic:
		_ = r.SetDefault("claude-sonnet")
	case ProviderOpenAI:
		_ = r.SetDefault("gpt-4o")
	case ProviderGemini:
		_ = r.SetDefault("gemini-flash")
	}
	return r
}
