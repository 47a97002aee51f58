// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/pdiddy/deep-research/pkg/types"
)

// GeminiClient generates text through the Google GenAI SDK.
type GeminiClient struct {
	cfg    types.ModelConfig
	client *genai.Client
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, cfg types.ModelConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{cfg: cfg, client: client}, nil
}

// Generate sends the prompt to the model configured for the request kind.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	model := modelFor(c.cfg, req.Kind)

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generating content with %s: %w", model, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model %s returned empty response", model)
	}
	return text, nil
}
