// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary origins, same as the SSE
	// endpoints with their open CORS policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// handleResearchWS serves research runs over a WebSocket. The client sends a
// JSON request per run and receives the event stream back as JSON text
// messages; the connection stays open for further runs until the client
// closes it.
func (s *Server) handleResearchWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var req researchRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if !s.runOverWS(r, conn, req) {
			return
		}
	}
}

// runOverWS executes one research run and streams its events to the
// connection. It reports whether the connection is still usable.
func (s *Server) runOverWS(r *http.Request, conn *websocket.Conn, req researchRequest) bool {
	if req.Question == "" {
		return wsSend(conn, map[string]string{
			"type":  "error",
			"error": "question cannot be empty",
		})
	}
	mode := types.StreamMode(req.StreamMode)
	if mode == "" {
		mode = types.ModeValues
	}

	events, err := s.engine.RunStream(r.Context(), req.Question, mode)
	if err != nil {
		return wsSend(conn, map[string]string{"type": "error", "error": err.Error()})
	}

	if !wsSend(conn, map[string]string{
		"type":     "research_started",
		"question": req.Question,
	}) {
		drain(events)
		return false
	}

	for ev := range events {
		if !wsSend(conn, ev) {
			drain(events)
			return false
		}
	}
	return true
}

func wsSend(conn *websocket.Conn, v any) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v) == nil
}

func drain(events <-chan types.Event) {
	for range events {
	}
}
