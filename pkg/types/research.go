// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research pipeline:
// the per-run research state, the evidence records produced by search tasks,
// the progress event stream, and the configuration surface.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Phase identifies where a research run currently is. It is set only by the
// active stage and drives progress reporting.
type Phase string

const (
	PhaseGeneratingQueries Phase = "generating_queries"
	PhaseSearchWeb         Phase = "search_web"
	PhaseReflection        Phase = "reflection"
	PhaseGeneratingAnswer  Phase = "generating_answer"
	PhaseCompleted         Phase = "completed"
	PhaseError             Phase = "error"
)

// EvidenceRecord is the write-once output of a single search task. Failed
// searches still produce a record (RelevanceScore 0.0, Summary holding the
// error text) so that fan-in always receives one record per dispatched task.
type EvidenceRecord struct {
	// ID is a unique identifier generated at creation.
	ID string `json:"id" yaml:"id"`

	// Query is the search query text that produced this record.
	Query string `json:"query" yaml:"query"`

	// Summary holds the synthesized findings, or the error message for a
	// failed task.
	Summary string `json:"summary" yaml:"summary"`

	// SourceURLs lists the URLs referenced in the findings. May be empty.
	SourceURLs []string `json:"source_urls" yaml:"source_urls"`

	// TaskID correlates the record to its fan-out task, e.g. "initial_0"
	// or "followup_1_2".
	TaskID string `json:"task_id" yaml:"task_id"`

	// RelevanceScore is a value between 0.0 and 1.0. 0.0 is reserved for
	// error records.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// CreatedAt is the record creation timestamp.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// IsError reports whether this record was produced by a failed search task.
func (r EvidenceRecord) IsError() bool {
	return r.RelevanceScore == 0.0
}

// ResearchSummary holds the run-level counts attached to the final answer.
type ResearchSummary struct {
	// TotalQueries is the length of the last generated query list.
	TotalQueries int `json:"total_queries" yaml:"total_queries"`

	// TotalEvidenceRecords counts every evidence record across all loops.
	TotalEvidenceRecords int `json:"total_evidence_records" yaml:"total_evidence_records"`

	// TotalSources counts the deduplicated citations.
	TotalSources int `json:"total_sources" yaml:"total_sources"`

	// ResearchLoops is the final loop count.
	ResearchLoops int `json:"research_loops" yaml:"research_loops"`

	// CompletionTime is when the answer stage finished.
	CompletionTime time.Time `json:"completion_time" yaml:"completion_time"`
}

// ResearchState is the mutable accumulator threaded through the pipeline.
// One instance exists per run; it is owned exclusively by that run's engine
// and discarded (or archived) once the run reaches a terminal phase.
type ResearchState struct {
	// RunID identifies the run, for archival and log correlation.
	RunID string `json:"run_id" yaml:"run_id"`

	// OriginalQuestion is set once at run start and never mutated.
	OriginalQuestion string `json:"original_question" yaml:"original_question"`

	// StartedAt is the run start time.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	// QueryList is replaced each time query generation runs.
	QueryList []string `json:"query_list" yaml:"query_list"`

	// Rationale is the query-generation explanation. Informational only.
	Rationale string `json:"rationale" yaml:"rationale"`

	// EvidenceRecords accumulates across loop iterations in fan-in
	// completion order. Appended to, never replaced.
	EvidenceRecords []EvidenceRecord `json:"evidence_records" yaml:"evidence_records"`

	// DiscoveredSources is the deduplicated set of source URLs, in
	// first-seen order. Grows monotonically.
	DiscoveredSources []string `json:"discovered_sources" yaml:"discovered_sources"`

	// IsSufficient is the reflection verdict for the current loop.
	IsSufficient bool `json:"is_sufficient" yaml:"is_sufficient"`

	// KnowledgeGap describes what information is still missing.
	KnowledgeGap string `json:"knowledge_gap" yaml:"knowledge_gap"`

	// FollowUpQueries is empty unless reflection decided more research
	// is needed.
	FollowUpQueries []string `json:"follow_up_queries" yaml:"follow_up_queries"`

	// LoopCount is incremented once per reflection invocation. Bounded
	// above by the configured max research loops.
	LoopCount int `json:"loop_count" yaml:"loop_count"`

	// TotalTasksRun is the cumulative count of search tasks executed.
	TotalTasksRun int `json:"total_tasks_run" yaml:"total_tasks_run"`

	// FinalAnswer is set only by the answer stage.
	FinalAnswer string `json:"final_answer" yaml:"final_answer"`

	// Citations is the deduplicated URL list in first-seen order, set only
	// by the answer stage.
	Citations []string `json:"citations" yaml:"citations"`

	// Summary is the run-level report, set only by the answer stage.
	Summary ResearchSummary `json:"research_summary" yaml:"research_summary"`

	// CurrentPhase is the externally visible "where are we" signal.
	CurrentPhase Phase `json:"current_phase" yaml:"current_phase"`

	// Errors is append-only; stage failures land here and never abort
	// the run.
	Errors []string `json:"errors" yaml:"errors"`
}

// NewResearchState creates the state for a single run.
func NewResearchState(question string) *ResearchState {
	return &ResearchState{
		RunID:            uuid.NewString(),
		OriginalQuestion: question,
		StartedAt:        time.Now().UTC(),
		CurrentPhase:     PhaseGeneratingQueries,
	}
}

// AddSources merges urls into DiscoveredSources, keeping first-seen order.
// Merging an already-merged set is a no-op.
func (s *ResearchState) AddSources(urls []string) {
	seen := make(map[string]bool, len(s.DiscoveredSources))
	for _, u := range s.DiscoveredSources {
		seen[u] = true
	}
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		s.DiscoveredSources = append(s.DiscoveredSources, u)
	}
}

// Clone returns a deep copy of the state. Progress snapshots are cloned so
// that consumers never observe later mutations by the running pipeline.
func (s *ResearchState) Clone() *ResearchState {
	c := *s
	c.QueryList = append([]string(nil), s.QueryList...)
	c.EvidenceRecords = append([]EvidenceRecord(nil), s.EvidenceRecords...)
	c.DiscoveredSources = append([]string(nil), s.DiscoveredSources...)
	c.FollowUpQueries = append([]string(nil), s.FollowUpQueries...)
	c.Citations = append([]string(nil), s.Citations...)
	c.Errors = append([]string(nil), s.Errors...)
	for i := range c.EvidenceRecords {
		c.EvidenceRecords[i].SourceURLs = append([]string(nil), s.EvidenceRecords[i].SourceURLs...)
	}
	return &c
}

// FinalResult is the payload of the terminal complete event, and the return
// value of a non-streaming run.
type FinalResult struct {
	Success     bool            `json:"success" yaml:"success"`
	FinalAnswer string          `json:"final_answer" yaml:"final_answer"`
	Citations   []string        `json:"citations" yaml:"citations"`
	Summary     ResearchSummary `json:"research_summary" yaml:"research_summary"`
	Errors      []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}
