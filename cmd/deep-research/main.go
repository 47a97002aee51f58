// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the deep-research CLI. It runs the
// research pipeline from the terminal, serves it over HTTP, and inspects
// the run archive.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the deep-research CLI.
var rootCmd = &cobra.Command{
	Use:   "deep-research",
	Short: "Iterative web research with cited answers",
	Long: `deep-research answers questions by generating search queries, running
them in parallel against a search-capable language model, reflecting on the
gathered evidence, and looping until the evidence suffices. The final answer
cites the sources it drew from.

Run a question directly with the research command, or start the HTTP server
with serve to stream progress over SSE or WebSocket.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./deep-research.yaml or ~/.config/deep-research/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("deep-research")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "deep-research"))
		}
	}

	viper.SetEnvPrefix("DEEP_RESEARCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the CLI logger. Errors only by default so pipeline
// output stays readable; --verbose switches to the development logger.
func newLogger(cmd *cobra.Command) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		log, err := zap.NewDevelopment()
		if err == nil {
			return log
		}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// resolveConfig assembles the runtime configuration from config file,
// environment, secrets, and command flags, in increasing precedence.
func resolveConfig(cmd *cobra.Command) types.Config {
	eng := types.DefaultEngineConfig()

	if v := viper.GetString("provider"); v != "" {
		eng.Provider = types.Provider(v)
	}
	if viper.IsSet("demo_mode") {
		eng.DemoMode = viper.GetBool("demo_mode")
	}
	if v := viper.GetString("models.query"); v != "" {
		eng.QueryModel = v
	}
	if v := viper.GetString("models.search"); v != "" {
		eng.SearchModel = v
	}
	if v := viper.GetString("models.reflection"); v != "" {
		eng.ReflectionModel = v
	}
	if v := viper.GetString("models.answer"); v != "" {
		eng.AnswerModel = v
	}
	if v := viper.GetInt("initial_queries_count"); v > 0 {
		eng.InitialQueriesCount = v
	}
	if v := viper.GetInt("max_research_loops"); v > 0 {
		eng.MaxResearchLoops = v
	}
	if v := viper.GetInt("parallel_search_limit"); v > 0 {
		eng.ParallelSearchLimit = v
	}
	if v := viper.GetInt("max_sources_per_query"); v > 0 {
		eng.MaxSourcesPerQuery = v
	}
	if v := viper.GetInt("search_timeout_seconds"); v > 0 {
		eng.SearchTimeout = time.Duration(v) * time.Second
	}
	if v := viper.GetInt("min_sources_for_sufficiency"); v > 0 {
		eng.MinSourcesForSufficiency = v
	}

	eng.APIKey = resolveAPIKey(eng.Provider)

	if f := cmd.Flags().Lookup("demo"); f != nil && f.Changed {
		eng.DemoMode, _ = cmd.Flags().GetBool("demo")
	}
	if f := cmd.Flags().Lookup("provider"); f != nil && f.Changed {
		p, _ := cmd.Flags().GetString("provider")
		eng.Provider = types.Provider(p)
		eng.APIKey = resolveAPIKey(eng.Provider)
	}
	if f := cmd.Flags().Lookup("max-loops"); f != nil && f.Changed {
		eng.MaxResearchLoops, _ = cmd.Flags().GetInt("max-loops")
	}
	if f := cmd.Flags().Lookup("initial-queries"); f != nil && f.Changed {
		eng.InitialQueriesCount, _ = cmd.Flags().GetInt("initial-queries")
	}

	cfg := types.Config{
		Engine: eng,
		Server: types.ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Archive: types.ArchiveConfig{
			Enabled: viper.GetBool("archive.enabled"),
			Dir:     viper.GetString("archive.dir"),
		},
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 2024
	}
	if cfg.Archive.Dir == "" {
		cfg.Archive.Dir = "archive"
	}
	return cfg
}

// resolveAPIKey looks up the provider credential: environment first, then
// the .secrets/ directory.
func resolveAPIKey(provider types.Provider) string {
	return secrets.APIKeyFor(provider, loadedSecrets)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
