// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm abstracts the language-model providers behind a single
// generate-text capability. Each pipeline stage describes its call with a
// Kind so providers can route to stage-specific models.
package llm

import (
	"context"
	"fmt"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Kind identifies which stage a generation request serves. Providers use it
// to pick the configured model for that stage.
type Kind string

const (
	KindQueryGen   Kind = "query_generation"
	KindSearch     Kind = "web_search"
	KindReflection Kind = "reflection"
	KindAnswer     Kind = "answer_generation"
)

// Request is one generation call.
type Request struct {
	Kind   Kind
	Prompt string
}

// Client generates text from a prompt. Implementations must be safe for
// concurrent use; the search fan-out invokes one client from many
// goroutines.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// New constructs the client selected by the configuration. DemoMode wins
// over the provider setting.
func New(ctx context.Context, cfg types.EngineConfig) (Client, error) {
	if cfg.DemoMode || cfg.Provider == types.ProviderDemo {
		return NewDemoClient(), nil
	}
	switch cfg.Provider {
	case types.ProviderOpenAI:
		return NewOpenAIClient(cfg.ModelConfig), nil
	case types.ProviderGemini:
		return NewGeminiClient(ctx, cfg.ModelConfig)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// modelFor maps a request kind to the configured model identifier.
func modelFor(cfg types.ModelConfig, kind Kind) string {
	switch kind {
	case KindQueryGen:
		return cfg.QueryModel
	case KindSearch:
		return cfg.SearchModel
	case KindReflection:
		return cfg.ReflectionModel
	default:
		return cfg.AnswerModel
	}
}
