// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// emitter converts stage transitions and state updates into the run's
// sequenced event stream. The sequence counter and start-time table are
// scoped to one run. Safe for concurrent use: the search fan-out emits
// per-task events from worker goroutines.
type emitter struct {
	mu        sync.Mutex
	mode      types.StreamMode
	ch        chan<- types.Event
	ctx       context.Context
	seq       int
	starts    map[string]time.Time
	completed bool
}

func newEmitter(ctx context.Context, mode types.StreamMode, ch chan<- types.Event) *emitter {
	return &emitter{
		mode:   mode,
		ch:     ch,
		ctx:    ctx,
		starts: make(map[string]time.Time),
	}
}

// send assigns the sequence number and delivers the event. Buffer space is
// used first so a cancelled run still hands its terminal event to a consumer
// that is draining; delivery is abandoned only when the channel is full and
// the run context is gone, so a departed consumer cannot wedge the pipeline.
func (em *emitter) send(ev types.Event) {
	ev.Seq = em.seq
	em.seq++
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case em.ch <- ev:
		return
	default:
	}
	select {
	case em.ch <- ev:
	case <-em.ctx.Done():
	}
}

// NodeStart emits a node_start event for a stage or fan-out task.
// Event mode only.
func (em *emitter) NodeStart(nodeID string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.mode != types.ModeEvents {
		return
	}
	now := time.Now().UTC()
	em.starts[nodeID] = now
	em.send(types.Event{Type: types.EventNodeStart, NodeID: nodeID, Timestamp: now})
}

// NodeComplete emits a node_complete event carrying the duration since the
// matching node_start. Event mode only.
func (em *emitter) NodeComplete(nodeID string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.mode != types.ModeEvents {
		return
	}
	now := time.Now().UTC()
	var dur int64
	if start, ok := em.starts[nodeID]; ok {
		dur = now.Sub(start).Milliseconds()
		delete(em.starts, nodeID)
	}
	em.send(types.Event{
		Type:       types.EventNodeComplete,
		NodeID:     nodeID,
		Timestamp:  now,
		DurationMS: dur,
	})
}

// Snapshot emits the full state after a stage completes. Values mode only.
func (em *emitter) Snapshot(state *types.ResearchState) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.mode != types.ModeValues {
		return
	}
	em.send(types.Event{Type: types.EventStateUpdate, State: state.Clone()})
}

// Complete emits the terminal complete event. Emitted exactly once per run,
// in either mode.
func (em *emitter) Complete(result types.FinalResult) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.completed {
		return
	}
	em.completed = true
	em.send(types.Event{Type: types.EventComplete, Result: &result})
}

// Fail emits a terminal error event for a run that cannot reach the answer
// stage (cancellation, transport loss).
func (em *emitter) Fail(msg string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.completed {
		return
	}
	em.completed = true
	em.send(types.Event{Type: types.EventError, Err: msg})
}
