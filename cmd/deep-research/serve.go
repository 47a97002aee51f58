// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research engine over HTTP",
	Long: `Serve starts the HTTP API. Clients can run research synchronously via
POST /research, stream progress over SSE via POST /research/stream, or
connect a WebSocket at /research/ws. The thread endpoints provide a
message-oriented surface for graph protocol clients.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := resolveConfig(cmd)
	if f := cmd.Flags().Lookup("host"); f.Changed {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if f := cmd.Flags().Lookup("port"); f.Changed {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	log := newLogger(cmd)
	defer log.Sync()

	eng, closeFn, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	srv := server.New(eng, cfg, log, version)
	return srv.ListenAndServe()
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "address to bind")
	serveCmd.Flags().Int("port", 2024, "port to listen on")
	serveCmd.Flags().Bool("demo", false, "serve with canned responses (no API key required)")
	serveCmd.Flags().String("provider", "", "language model provider: openai or gemini")

	rootCmd.AddCommand(serveCmd)
}
