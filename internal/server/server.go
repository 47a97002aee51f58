// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the research engine over HTTP: a non-streaming
// run endpoint, an SSE progress stream, a WebSocket progress stream, and a
// thread-style compatibility surface. The handlers hold no pipeline logic;
// they consume the engine's event channel and re-encode it per transport.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/engine"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Server wires the research engine to the HTTP transports.
type Server struct {
	engine  *engine.Engine
	cfg     types.Config
	log     *zap.Logger
	version string
}

// New creates a Server.
func New(eng *engine.Engine, cfg types.Config, log *zap.Logger, version string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: eng, cfg: cfg, log: log, version: version}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("HEAD /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("HEAD /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleConfig)

	mux.HandleFunc("POST /research", s.handleResearch)
	mux.HandleFunc("POST /research/stream", s.handleResearchStream)
	mux.HandleFunc("GET /research/ws", s.handleResearchWS)

	mux.HandleFunc("POST /threads", s.handleCreateThread)
	mux.HandleFunc("POST /threads/{thread_id}/runs", s.handleThreadRun)
	mux.HandleFunc("GET /threads/{thread_id}/runs", s.handleThreadRunGet)

	return mux
}

// ListenAndServe starts the server and blocks.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.log.Info("server listening", zap.String("addr", addr))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// researchRequest is the body accepted by the run endpoints.
type researchRequest struct {
	Question   string `json:"question"`
	StreamMode string `json:"stream_mode,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Deep Research Engine API v" + s.version,
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"timestamp":         time.Now().UTC(),
		"version":           s.version,
		"websocket_enabled": true,
	})
}

// handleConfig reports the resolved configuration, with the credential
// reduced to a presence flag.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	eng := s.cfg.Engine
	writeJSON(w, http.StatusOK, map[string]any{
		"demo_mode":          eng.DemoMode,
		"provider":           eng.Provider,
		"api_key_configured": eng.APIKey != "",
		"config_valid":       eng.Validate() == nil,
		"models": map[string]string{
			"query_generator": eng.QueryModel,
			"web_searcher":    eng.SearchModel,
			"reflection":      eng.ReflectionModel,
			"answer":          eng.AnswerModel,
		},
		"research_parameters": map[string]any{
			"initial_queries_count":       eng.InitialQueriesCount,
			"max_research_loops":          eng.MaxResearchLoops,
			"max_sources_per_query":       eng.MaxSourcesPerQuery,
			"search_timeout_seconds":      int(eng.SearchTimeout.Seconds()),
			"parallel_search_limit":       eng.ParallelSearchLimit,
			"min_sources_for_sufficiency": eng.MinSourcesForSufficiency,
		},
	})
}

// handleResearch runs the pipeline to completion and returns the terminal
// payload in one response.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}

	result, err := s.engine.Run(r.Context(), req.Question)
	if err != nil {
		s.log.Warn("research run failed", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      false,
			"final_answer": "Error occurred during research process.",
			"citations":    []string{},
			"error":        err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
