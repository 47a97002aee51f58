// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StreamMode selects how a run reports progress.
type StreamMode string

const (
	// ModeValues emits a full state snapshot after every stage completes.
	ModeValues StreamMode = "values"

	// ModeEvents emits fine-grained node_start/node_complete lifecycle
	// events, including one pair per fanned-out search task.
	ModeEvents StreamMode = "events"
)

// EventType tags a progress event.
type EventType string

const (
	EventStateUpdate  EventType = "state_update"
	EventNodeStart    EventType = "node_start"
	EventNodeComplete EventType = "node_complete"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Event is one element of a run's progress stream. Sequence numbers are
// scoped per run and strictly increase in emission order; the terminal
// complete event is emitted exactly once.
type Event struct {
	Type EventType `json:"type"`

	// Seq is the per-run monotonically increasing sequence number.
	Seq int `json:"seq"`

	// NodeID names the stage or fan-out task this event refers to.
	// Empty for state_update, complete, and error events.
	NodeID string `json:"nodeId,omitempty"`

	// Timestamp is the wall-clock emission time.
	Timestamp time.Time `json:"timestamp"`

	// DurationMS is set on node_complete: milliseconds since the matching
	// node_start.
	DurationMS int64 `json:"duration,omitempty"`

	// State carries the full state snapshot for state_update events.
	State *ResearchState `json:"data,omitempty"`

	// Result carries the final payload for complete events.
	Result *FinalResult `json:"final_result,omitempty"`

	// Err carries the message for error events.
	Err string `json:"error,omitempty"`
}
