package model

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"fnforge/internal/logging"
)

// GeminiAdapter implements Adapter for Google Gemini via the genai SDK.
type GeminiAdapter struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// GeminiConfig holds configuration for the Gemini adapter.
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// NewGeminiAdapter creates a Gemini adapter. The SDK client is created
// eagerly so configuration errors surface at construction.
func NewGeminiAdapter(ctx context.Context, cfg GeminiConfig) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiAdapter{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Complete sends a single prompt and returns the completion.
func (g *GeminiAdapter) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	return g.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts)
}

// Chat sends a message list. System turns become the system instruction,
// assistant turns map to the model role.
func (g *GeminiAdapter) Chat(ctx context.Context, msgs []Message, opts CallOptions) (string, error) {
	config := &genai.GenerateContentConfig{}

	maxTokens := g.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	config.MaxOutputTokens = int32(maxTokens)
	if opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*opts.Temperature))
	}

	var contents []*genai.Content
	var system []string
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	logging.ModelDebug("gemini request: model=%s contents=%d", g.model, len(contents))

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("no completion returned")
	}
	logging.ModelDebug("gemini response: %d bytes", len(text))
	return strings.TrimSpace(text), nil
}
