// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/archive"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the research run archive",
	Long: `Runs lists and inspects archived research runs. Runs are archived when
archive.enabled is set in the configuration; each archived run keeps the
question, the final answer, and every evidence record.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-50s  %-6s  %-8s  %s\n",
		"ID", "Question", "Loops", "Sources", "Archived")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for _, r := range runs {
		question := r.Question
		if len(question) > 50 {
			question = question[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-50s  %-6d  %-8d  %s\n",
			r.ID, question, r.LoopCount, r.SourceCount,
			r.ArchivedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(os.Stdout, "\n%d run(s)\n", len(runs))
	return nil
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one archived run with its evidence",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Question: %s\n", run.Question)
	fmt.Printf("Phase:    %s  (loops: %d, tasks: %d, sources: %d)\n",
		run.Phase, run.LoopCount, run.TotalTasks, run.SourceCount)
	fmt.Printf("Archived: %s\n\n", run.ArchivedAt.Format("2006-01-02 15:04:05"))
	fmt.Println(run.FinalAnswer)

	if len(run.Evidence) > 0 {
		fmt.Printf("\nEvidence (%d records):\n", len(run.Evidence))
		for _, rec := range run.Evidence {
			marker := " "
			if rec.IsError() {
				marker = "!"
			}
			fmt.Printf("  %s %-22s %s (%d sources)\n",
				marker, rec.TaskID, rec.Query, len(rec.SourceURLs))
		}
	}
	return nil
}

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the run archive to YAML",
	RunE:  runRunsExport,
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ExportYAML(context.Background()); err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("archive-dir")
	fmt.Printf("Exported to %s/export.yaml\n", dir)
	return nil
}

func openArchive(cmd *cobra.Command) (*archive.Store, error) {
	cfg := resolveConfig(cmd)
	if dir, _ := cmd.Flags().GetString("archive-dir"); dir != "" {
		cfg.Archive.Dir = dir
	}
	return archive.NewStore(cfg.Archive)
}

func init() {
	runsCmd.PersistentFlags().String("archive-dir", "archive", "run archive directory")

	runsListCmd.Flags().Int("limit", 50, "maximum runs to list (0 = all)")
	runsShowCmd.Flags().Bool("json", false, "output the run as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)

	rootCmd.AddCommand(runsCmd)
}
