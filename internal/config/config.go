// Package config loads and saves the forge user configuration from
// .forge/config.json. The file is the single source of truth for provider
// credentials, the model override, sandbox policy, data paths, and the
// logging block; environment variables layer on top of it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fnforge/internal/model"
	"fnforge/internal/sandbox"
)

// UserConfig holds all forge configuration from .forge/config.json.
//
// Supported models by provider:
//   - anthropic: claude-sonnet-4-20250514 (default)
//   - openai:    gpt-4o (default)
//   - gemini:    gemini-2.5-flash (default)
type UserConfig struct {
	// =========================================================================
	// LLM PROVIDER CONFIGURATION
	// =========================================================================

	// Provider selection (anthropic, openai, gemini). When empty the first
	// configured key wins, in that order.
	Provider string `json:"provider,omitempty"`

	// API keys for each provider
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"` // Anthropic/Claude
	OpenAIAPIKey    string `json:"openai_api_key,omitempty"`    // OpenAI
	GeminiAPIKey    string `json:"gemini_api_key,omitempty"`    // Google Gemini

	// Optional model override for specs that do not name one
	// (see supported models above)
	Model string `json:"model,omitempty"`

	// =========================================================================
	// DATA PATHS
	// =========================================================================

	// StorePath is the SQLite artifact store. Relative paths resolve
	// against the workspace root. Default: .forge/store.db
	StorePath string `json:"store_path,omitempty"`

	// FunctionsDir holds the YAML function spec library. Relative paths
	// resolve against the workspace root. Default: .forge/functions
	FunctionsDir string `json:"functions_dir,omitempty"`

	// =========================================================================
	// SANDBOX
	// =========================================================================

	// Sandbox policy for generated code (allowed imports, execution timeout)
	Sandbox *SandboxConfig `json:"sandbox,omitempty"`

	// =========================================================================
	// LOGGING
	// =========================================================================

	// Logging configuration for the categorized file logger
	Logging *LoggingConfig `json:"logging,omitempty"`
}

// SandboxConfig configures the interpreter sandbox for generated code.
type SandboxConfig struct {
	// AllowedImports whitelists standard library packages generated code
	// may import. Empty keeps the built-in whitelist.
	AllowedImports []string `json:"allowed_imports,omitempty"`

	// ExecTimeout bounds a single invocation, as a duration string
	// ("5s", "250ms"). Empty or invalid keeps the default.
	ExecTimeout string `json:"exec_timeout,omitempty"`
}

// LoggingConfig configures the categorized file logger under .forge/logs/.
// The field names mirror what internal/logging reads from config.json.
type LoggingConfig struct {
	Level      string          `json:"level,omitempty"`       // debug, info, warn, error
	JSONFormat bool            `json:"json_format,omitempty"` // structured JSON entries
	DebugMode  bool            `json:"debug_mode,omitempty"`  // master toggle - false = no logging
	Categories map[string]bool `json:"categories,omitempty"`  // per-category toggles
}

// Default returns a config whose zero values resolve through the
// Get* accessors to working defaults.
func Default() *UserConfig {
	return &UserConfig{}
}

// DefaultPath returns the default path to .forge/config.json.
func DefaultPath() string {
	root, err := FindWorkspaceRoot()
	if err != nil {
		return filepath.Join(".forge", "config.json")
	}
	return filepath.Join(root, ".forge", "config.json")
}

// FindWorkspaceRoot attempts to find the project root by looking for .forge
// or go.mod. If not found, returns the current working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".forge")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}

// Load reads configuration from path and applies environment overrides.
// A missing file yields the defaults, not an error.
func Load(path string) (*UserConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path, creating the directory if needed.
func (c *UserConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. Environment
// keys win over file keys.
func (c *UserConfig) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.AnthropicAPIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAIAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.GeminiAPIKey = key
	}
	if m := os.Getenv("FORGE_MODEL"); m != "" {
		c.Model = m
	}
}

// GetActiveProvider returns the provider and API key to use.
// Priority: explicit provider setting > first available key.
func (c *UserConfig) GetActiveProvider() (provider string, apiKey string) {
	if c.Provider != "" {
		switch c.Provider {
		case model.ProviderAnthropic:
			if c.AnthropicAPIKey != "" {
				return model.ProviderAnthropic, c.AnthropicAPIKey
			}
		case model.ProviderOpenAI:
			if c.OpenAIAPIKey != "" {
				return model.ProviderOpenAI, c.OpenAIAPIKey
			}
		case model.ProviderGemini:
			if c.GeminiAPIKey != "" {
				return model.ProviderGemini, c.GeminiAPIKey
			}
		}
	}

	if c.AnthropicAPIKey != "" {
		return model.ProviderAnthropic, c.AnthropicAPIKey
	}
	if c.OpenAIAPIKey != "" {
		return model.ProviderOpenAI, c.OpenAIAPIKey
	}
	if c.GeminiAPIKey != "" {
		return model.ProviderGemini, c.GeminiAPIKey
	}

	return "", ""
}

// Credentials maps the configured keys into the adapter factory's form.
func (c *UserConfig) Credentials() model.Credentials {
	return model.Credentials{
		AnthropicKey: c.AnthropicAPIKey,
		OpenAIKey:    c.OpenAIAPIKey,
		GeminiKey:    c.GeminiAPIKey,
	}
}

// GetSandboxPolicy returns the sandbox policy with defaults applied.
func (c *UserConfig) GetSandboxPolicy() sandbox.Policy {
	pol := sandbox.DefaultPolicy()
	if c.Sandbox == nil {
		return pol
	}
	if len(c.Sandbox.AllowedImports) > 0 {
		allowed := make(map[string]bool, len(c.Sandbox.AllowedImports))
		for _, imp := range c.Sandbox.AllowedImports {
			allowed[imp] = true
		}
		pol.AllowedImports = allowed
	}
	if c.Sandbox.ExecTimeout != "" {
		if d, err := time.ParseDuration(c.Sandbox.ExecTimeout); err == nil && d > 0 {
			pol.ExecTimeout = d
		}
	}
	return pol
}

// GetLoggingConfig returns the logging block with defaults applied.
func (c *UserConfig) GetLoggingConfig() LoggingConfig {
	if c.Logging != nil {
		cfg := *c.Logging
		if cfg.Level == "" {
			cfg.Level = "info"
		}
		return cfg
	}
	return LoggingConfig{Level: "info"}
}

// GetStorePath returns the artifact store path resolved against root.
func (c *UserConfig) GetStorePath(root string) string {
	p := c.StorePath
	if p == "" {
		p = filepath.Join(".forge", "store.db")
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// GetFunctionsDir returns the spec library directory resolved against root.
func (c *UserConfig) GetFunctionsDir(root string) string {
	p := c.FunctionsDir
	if p == "" {
		p = filepath.Join(".forge", "functions")
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
