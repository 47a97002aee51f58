// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// threadRunRequest mirrors the message-oriented run format used by graph
// protocol clients: the question travels as the first message's content.
type threadRunRequest struct {
	Input struct {
		Messages []struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		} `json:"messages"`
	} `json:"input"`
	StreamMode string `json:"stream_mode,omitempty"`
}

// handleCreateThread mints a thread identifier. Threads carry no server
// state; the identifier only gives clients a handle to address runs at.
func (s *Server) handleCreateThread(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"thread_id": uuid.NewString(),
	})
}

// handleThreadRun starts a run on a thread and streams it back over SSE.
func (s *Server) handleThreadRun(w http.ResponseWriter, r *http.Request) {
	var req threadRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	var question string
	if len(req.Input.Messages) > 0 {
		question = req.Input.Messages[0].Content
	}
	s.streamSSE(w, r, researchRequest{Question: question, StreamMode: req.StreamMode})
}

// handleThreadRunGet is the EventSource-friendly variant: browsers cannot
// POST an EventSource, so the question arrives as a query parameter.
func (s *Server) handleThreadRunGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.streamSSE(w, r, researchRequest{
		Question:   q.Get("question"),
		StreamMode: q.Get("stream_mode"),
	})
}
