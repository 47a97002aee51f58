// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/archive"
	"github.com/pdiddy/deep-research/internal/engine"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Answer a question with iterative web research",
	Long: `Research runs the full pipeline for one question: query generation,
parallel web search, reflection, and answer generation. Progress prints to
stderr as each stage starts and completes; the cited answer prints to stdout.

With --demo the pipeline runs on canned responses and needs no API key.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	cfg := resolveConfig(cmd)
	log := newLogger(cmd)
	defer log.Sync()

	eng, closeFn, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := eng.RunStream(ctx, question, types.ModeEvents)
	if err != nil {
		return err
	}

	var result *types.FinalResult
	for ev := range events {
		switch ev.Type {
		case types.EventNodeStart:
			fmt.Fprintf(os.Stderr, "▶ %s\n", ev.NodeID)
		case types.EventNodeComplete:
			fmt.Fprintf(os.Stderr, "✓ %s (%dms)\n", ev.NodeID, ev.DurationMS)
		case types.EventComplete:
			result = ev.Result
		case types.EventError:
			return fmt.Errorf("research failed: %s", ev.Err)
		}
	}
	if result == nil {
		return fmt.Errorf("research ended without a result")
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.FinalAnswer)
	if len(result.Citations) > 0 {
		fmt.Println("\nSources:")
		shown := result.Citations
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, url := range shown {
			fmt.Printf("  - %s\n", url)
		}
		if extra := len(result.Citations) - len(shown); extra > 0 {
			fmt.Printf("  ... and %d more\n", extra)
		}
	}
	fmt.Printf("\n%d queries, %d evidence records, %d sources, %d loop(s)\n",
		result.Summary.TotalQueries, result.Summary.TotalEvidenceRecords,
		result.Summary.TotalSources, result.Summary.ResearchLoops)
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}
	return nil
}

// buildEngine assembles the provider client and engine from the resolved
// configuration. The returned closer releases the archive store, if any.
func buildEngine(cfg types.Config, log *zap.Logger) (*engine.Engine, func(), error) {
	client, err := llm.New(context.Background(), cfg.Engine)
	if err != nil {
		return nil, nil, err
	}

	opts := []engine.Option{engine.WithLogger(log)}
	closeFn := func() {}
	if cfg.Archive.Enabled {
		store, err := archive.NewStore(cfg.Archive)
		if err != nil {
			return nil, nil, fmt.Errorf("opening run archive: %w", err)
		}
		opts = append(opts, engine.WithArchiver(store))
		closeFn = func() { store.Close() }
	}

	return engine.New(client, cfg.Engine, opts...), closeFn, nil
}

func init() {
	researchCmd.Flags().Bool("demo", false, "run with canned responses (no API key required)")
	researchCmd.Flags().String("provider", "", "language model provider: openai or gemini")
	researchCmd.Flags().Int("max-loops", 0, "maximum research loops")
	researchCmd.Flags().Int("initial-queries", 0, "number of initial search queries")
	researchCmd.Flags().Bool("json", false, "output the result as JSON")

	rootCmd.AddCommand(researchCmd)
}
