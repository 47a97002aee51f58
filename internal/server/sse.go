// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

// sseWriter frames events as Server-Sent Events. Each frame carries a
// monotonically increasing numeric id, an event line naming the type, and a
// single data line holding the JSON payload.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	nextID  int
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Cache-Control")
	return &sseWriter{w: w, flusher: flusher, nextID: 1}, nil
}

// WriteEvent emits one frame and flushes it to the client.
func (s *sseWriter) WriteEvent(ev types.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.nextID, ev.Type, payload); err != nil {
		return err
	}
	s.nextID++
	s.flusher.Flush()
	return nil
}

// handleResearchStream streams pipeline progress over SSE. The stream mode
// in the request selects state snapshots or node lifecycle events.
func (s *Server) handleResearchStream(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.streamSSE(w, r, req)
}

func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request, req researchRequest) {
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}
	mode := types.StreamMode(req.StreamMode)
	if mode == "" {
		mode = types.ModeValues
	}

	events, err := s.engine.RunStream(r.Context(), req.Question, mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for ev := range events {
		if err := sse.WriteEvent(ev); err != nil {
			// Client went away; the engine notices via the request
			// context and winds the run down on its own.
			s.log.Debug("sse write failed", zap.Error(err))
			return
		}
	}
}
