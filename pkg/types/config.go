// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Provider identifies the language-model backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderDemo   Provider = "demo"
)

// ModelConfig holds per-stage model identifiers and the API credential.
type ModelConfig struct {
	// Provider selects the backend: openai, gemini, or demo.
	Provider Provider `json:"provider" yaml:"provider"`

	// APIKey is the authentication key for the provider API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// QueryModel generates search queries (default "gpt-4o-mini").
	QueryModel string `json:"query_model" yaml:"query_model"`

	// SearchModel synthesizes search findings (default "gpt-4o-search-preview").
	SearchModel string `json:"search_model" yaml:"search_model"`

	// ReflectionModel judges evidence sufficiency (default "o4-mini").
	ReflectionModel string `json:"reflection_model" yaml:"reflection_model"`

	// AnswerModel synthesizes the final answer (default "o4-mini").
	AnswerModel string `json:"answer_model" yaml:"answer_model"`

	// MaxRetries is the number of retry attempts for rate-limited API
	// calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// EngineConfig holds the research parameters for one orchestrator instance.
type EngineConfig struct {
	ModelConfig `yaml:",inline"`

	// InitialQueriesCount caps how many queries query generation may
	// produce (default 3).
	InitialQueriesCount int `json:"initial_queries_count" yaml:"initial_queries_count"`

	// MaxResearchLoops bounds the reflect-and-search cycle (default 2).
	MaxResearchLoops int `json:"max_research_loops" yaml:"max_research_loops"`

	// MaxSourcesPerQuery caps sources kept from one search task (default 10).
	MaxSourcesPerQuery int `json:"max_sources_per_query" yaml:"max_sources_per_query"`

	// SearchTimeout bounds each search task; a timed-out task resolves as
	// a failed evidence record (default 30s).
	SearchTimeout time.Duration `json:"search_timeout" yaml:"search_timeout"`

	// ParallelSearchLimit bounds concurrent search tasks within one
	// fan-out batch (default 5).
	ParallelSearchLimit int `json:"parallel_search_limit" yaml:"parallel_search_limit"`

	// MinSourcesForSufficiency is advisory context given to the
	// reflection stage (default 5).
	MinSourcesForSufficiency int `json:"min_sources_for_sufficiency" yaml:"min_sources_for_sufficiency"`

	// DemoMode bypasses the language-model dependency with deterministic
	// canned output. Overrides Provider.
	DemoMode bool `json:"demo_mode" yaml:"demo_mode"`
}

// DefaultEngineConfig returns the documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ModelConfig: ModelConfig{
			Provider:        ProviderOpenAI,
			QueryModel:      "gpt-4o-mini",
			SearchModel:     "gpt-4o-search-preview",
			ReflectionModel: "o4-mini",
			AnswerModel:     "o4-mini",
			MaxRetries:      3,
		},
		InitialQueriesCount:      3,
		MaxResearchLoops:         2,
		MaxSourcesPerQuery:       10,
		SearchTimeout:            30 * time.Second,
		ParallelSearchLimit:      5,
		MinSourcesForSufficiency: 5,
	}
}

// Validate checks that the configuration can start a run. A missing API key
// outside demo mode is the one hard failure that precedes the pipeline.
func (c EngineConfig) Validate() error {
	if c.MaxResearchLoops < 0 {
		return fmt.Errorf("max_research_loops must be >= 0, got %d", c.MaxResearchLoops)
	}
	if c.DemoMode || c.Provider == ProviderDemo {
		return nil
	}
	if c.APIKey == "" {
		return fmt.Errorf("no API key configured for provider %q and demo mode is off", c.Provider)
	}
	return nil
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	// Host is the listen address (default "0.0.0.0").
	Host string `json:"host" yaml:"host"`

	// Port is the listen port (default 2024).
	Port int `json:"port" yaml:"port"`
}

// ArchiveConfig holds settings for the optional run archive.
type ArchiveConfig struct {
	// Enabled turns on checkpointing of completed runs.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir is the base directory for the archive database (default
	// "archive/").
	Dir string `json:"dir" yaml:"dir"`
}

// Config groups all configuration for the deep-research process.
type Config struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
}
