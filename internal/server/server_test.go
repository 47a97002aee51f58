package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/internal/engine"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := types.Config{Engine: types.DefaultEngineConfig()}
	cfg.Engine.DemoMode = true

	eng := engine.New(llm.NewDemoClient(), cfg.Engine)
	srv := New(eng, cfg, nil, "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

// --- info endpoints ---

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestConfigEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["demo_mode"])
	assert.Equal(t, true, body["config_valid"])
	assert.Equal(t, false, body["api_key_configured"])

	models, ok := body["models"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", models["query_generator"])
}

// --- synchronous research ---

func TestResearchEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/research", map[string]string{"question": "what is Go"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result types.FinalResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.FinalAnswer)
	assert.NotEmpty(t, result.Citations)
	assert.Equal(t, 3, result.Summary.TotalQueries)
}

func TestResearchEndpointRejectsEmptyQuestion(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/research", map[string]string{"question": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResearchEndpointRejectsBadBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/research", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- SSE stream ---

// sseFrame is one parsed Server-Sent Event.
type sseFrame struct {
	id    int
	event string
	data  string
}

func readSSEFrames(t *testing.T, resp *http.Response) []sseFrame {
	t.Helper()
	var frames []sseFrame
	var cur sseFrame
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.event != "" {
				frames = append(frames, cur)
			}
			cur = sseFrame{}
		case strings.HasPrefix(line, "id: "):
			id, err := strconv.Atoi(strings.TrimPrefix(line, "id: "))
			require.NoError(t, err)
			cur.id = id
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
	return frames
}

func TestResearchStreamEventsMode(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/research/stream", map[string]string{
		"question":    "what is Go",
		"stream_mode": "events",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	frames := readSSEFrames(t, resp)
	require.NotEmpty(t, frames)

	for i, f := range frames {
		assert.Equal(t, i+1, f.id, "frame ids must be monotonic from 1")
		require.NotEmpty(t, f.data, "frame %d has no data line", i)
		var ev types.Event
		require.NoError(t, json.Unmarshal([]byte(f.data), &ev))
		assert.Equal(t, string(ev.Type), f.event, "event line must match payload type")
	}

	last := frames[len(frames)-1]
	assert.Equal(t, "complete", last.event)
	var terminal types.Event
	require.NoError(t, json.Unmarshal([]byte(last.data), &terminal))
	require.NotNil(t, terminal.Result)
	assert.True(t, terminal.Result.Success)

	sawNodeStart := false
	for _, f := range frames {
		if f.event == "node_start" {
			sawNodeStart = true
		}
	}
	assert.True(t, sawNodeStart, "events mode should carry node lifecycle frames")
}

func TestResearchStreamValuesMode(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/research/stream", map[string]string{"question": "what is Go"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames := readSSEFrames(t, resp)
	require.NotEmpty(t, frames)
	assert.Equal(t, "state_update", frames[0].event)
	assert.Equal(t, "complete", frames[len(frames)-1].event)

	var ev types.Event
	require.NoError(t, json.Unmarshal([]byte(frames[0].data), &ev))
	require.NotNil(t, ev.State)
	assert.Equal(t, "what is Go", ev.State.OriginalQuestion)
}

func TestResearchStreamRejectsEmptyQuestion(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/research/stream", map[string]string{"question": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- threads ---

func TestThreadLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/threads", struct{}{})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	threadID := created["thread_id"]
	require.NotEmpty(t, threadID)

	runResp := postJSON(t, ts.URL+"/threads/"+threadID+"/runs", map[string]any{
		"input": map[string]any{
			"messages": []map[string]string{
				{"type": "human", "content": "what is Go"},
			},
		},
	})
	defer runResp.Body.Close()
	require.Equal(t, http.StatusOK, runResp.StatusCode)

	frames := readSSEFrames(t, runResp)
	require.NotEmpty(t, frames)
	assert.Equal(t, "complete", frames[len(frames)-1].event)
}

func TestThreadRunViaGet(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/threads/any-thread/runs?question=what+is+Go&stream_mode=events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames := readSSEFrames(t, resp)
	require.NotEmpty(t, frames)
	assert.Equal(t, "complete", frames[len(frames)-1].event)
}

// --- WebSocket ---

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/research/ws"
}

func TestWebSocketResearch(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{
		"question":    "what is Go",
		"stream_mode": "events",
	}))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "research_started", first["type"])
	assert.Equal(t, "what is Go", first["question"])

	sawComplete := false
	for !sawComplete {
		var ev types.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == types.EventComplete {
			sawComplete = true
			require.NotNil(t, ev.Result)
			assert.True(t, ev.Result.Success)
		}
	}
}

func TestWebSocketEmptyQuestion(t *testing.T) {
	ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"question": ""}))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg["type"])
	assert.NotEmpty(t, msg["error"])
}
