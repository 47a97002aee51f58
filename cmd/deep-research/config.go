// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long: `Config prints the effective configuration after merging the config
file, environment variables, secrets, and defaults. The API key is shown
only as a presence flag.`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := resolveConfig(cmd)

	out := map[string]any{
		"provider":           string(cfg.Engine.Provider),
		"demo_mode":          cfg.Engine.DemoMode,
		"api_key_configured": cfg.Engine.APIKey != "",
		"models": map[string]string{
			"query":      cfg.Engine.QueryModel,
			"search":     cfg.Engine.SearchModel,
			"reflection": cfg.Engine.ReflectionModel,
			"answer":     cfg.Engine.AnswerModel,
		},
		"research": map[string]any{
			"initial_queries_count":       cfg.Engine.InitialQueriesCount,
			"max_research_loops":          cfg.Engine.MaxResearchLoops,
			"max_sources_per_query":       cfg.Engine.MaxSourcesPerQuery,
			"search_timeout":              cfg.Engine.SearchTimeout.String(),
			"parallel_search_limit":       cfg.Engine.ParallelSearchLimit,
			"min_sources_for_sufficiency": cfg.Engine.MinSourcesForSufficiency,
		},
		"server": map[string]any{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		},
		"archive": map[string]any{
			"enabled": cfg.Archive.Enabled,
			"dir":     cfg.Archive.Dir,
		},
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	os.Stdout.Write(data)

	if err := cfg.Engine.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "\nwarning: %v\n", err)
	}
	return nil
}

func init() {
	configCmd.Flags().Bool("demo", false, "resolve as if running in demo mode")
	configCmd.Flags().String("provider", "", "language model provider: openai or gemini")

	rootCmd.AddCommand(configCmd)
}
