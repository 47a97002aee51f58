// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage implements the five research pipeline stages: query
// generation, web search, aggregation, reflection, and answer synthesis.
// Every stage degrades to a safe default on failure and records the failure
// in the run state; no stage error ever aborts a run.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Stages binds the stage functions to a language-model client and the run
// configuration. One Stages value serves all concurrent runs; it holds no
// per-run state.
type Stages struct {
	client llm.Client
	cfg    types.EngineConfig
	log    *zap.Logger
}

// New creates the stage set.
func New(client llm.Client, cfg types.EngineConfig, log *zap.Logger) *Stages {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stages{client: client, cfg: cfg, log: log}
}

// fallbackQueries derives deterministic queries from the question. Used when
// the model fails, returns unparseable output, or omits a query list.
func fallbackQueries(question string) []string {
	return []string{
		question + " research",
		question + " analysis",
		question + " overview",
	}
}

// GenerateQueries produces up to InitialQueriesCount search queries plus a
// rationale. This stage never fails the run: on model failure or unparseable
// output it falls back to the templated queries and records the failure.
func (s *Stages) GenerateQueries(ctx context.Context, state *types.ResearchState) {
	question := state.OriginalQuestion

	prompt, err := renderQueryGenPrompt(question)
	if err == nil {
		var raw string
		raw, err = s.client.Generate(ctx, llm.Request{Kind: llm.KindQueryGen, Prompt: prompt})
		if err == nil {
			queries, rationale, parseErr := parseQueryGen(raw)
			if parseErr != nil {
				err = parseErr
			} else {
				if len(queries) == 0 {
					queries = fallbackQueries(question)
				}
				if rationale == "" {
					rationale = "Generated research queries"
				}
				state.QueryList = capQueries(queries, s.cfg.InitialQueriesCount)
				state.Rationale = rationale
				state.CurrentPhase = types.PhaseSearchWeb
				s.log.Debug("generated queries",
					zap.Int("count", len(state.QueryList)),
					zap.String("question", question))
				return
			}
		}
	}

	s.log.Warn("query generation failed, using fallback queries", zap.Error(err))
	state.Errors = append(state.Errors, fmt.Sprintf("Query generation failed: %v", err))
	state.QueryList = capQueries(fallbackQueries(question), s.cfg.InitialQueriesCount)
	state.Rationale = "Fallback queries derived from the question"
	state.CurrentPhase = types.PhaseSearchWeb
}

func capQueries(queries []string, limit int) []string {
	if limit > 0 && len(queries) > limit {
		return queries[:limit]
	}
	return queries
}

// Search executes one search task and always returns exactly one evidence
// record. Model errors and timeouts resolve as a zero-relevance record with
// the error text as the summary; the returned error strings are appended to
// the run's error list by the caller. Safe for concurrent invocation.
func (s *Stages) Search(ctx context.Context, query, taskID, question string) (types.EvidenceRecord, []string) {
	timeout := s.cfg.SearchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt, err := renderSearchPrompt(query, question)
	if err == nil {
		var summary string
		summary, err = s.client.Generate(ctx, llm.Request{Kind: llm.KindSearch, Prompt: prompt})
		if err == nil {
			urls := ExtractURLs(summary)
			if s.cfg.MaxSourcesPerQuery > 0 && len(urls) > s.cfg.MaxSourcesPerQuery {
				urls = urls[:s.cfg.MaxSourcesPerQuery]
			}
			return types.EvidenceRecord{
				ID:             "search-" + uuid.NewString(),
				Query:          query,
				Summary:        summary,
				SourceURLs:     urls,
				TaskID:         taskID,
				RelevanceScore: 0.9,
				CreatedAt:      time.Now().UTC(),
			}, nil
		}
	}

	s.log.Warn("search task failed",
		zap.String("task_id", taskID),
		zap.String("query", query),
		zap.Error(err))

	return types.EvidenceRecord{
		ID:             "error-" + uuid.NewString(),
		Query:          query,
		Summary:        err.Error(),
		SourceURLs:     nil,
		TaskID:         taskID,
		RelevanceScore: 0.0,
		CreatedAt:      time.Now().UTC(),
	}, []string{fmt.Sprintf("Web search failed for %q: %v", query, err)}
}

// Aggregate folds a fan-in batch into the state: evidence records append in
// completion order, discovered sources merge as a deduplicated set union,
// and the cumulative task count advances. Pure merge; it cannot fail in a
// way that blocks the run.
func (s *Stages) Aggregate(state *types.ResearchState, batch []types.EvidenceRecord) {
	state.EvidenceRecords = append(state.EvidenceRecords, batch...)
	for _, rec := range batch {
		state.AddSources(rec.SourceURLs)
	}
	state.TotalTasksRun += len(batch)
	state.CurrentPhase = types.PhaseReflection

	s.log.Debug("aggregated search batch",
		zap.Int("batch", len(batch)),
		zap.Int("evidence_total", len(state.EvidenceRecords)),
		zap.Int("sources", len(state.DiscoveredSources)))
}

// Reflect judges whether the accumulated evidence answers the question and
// produces follow-up queries when it does not. On model failure or
// unparseable output it defaults to sufficient — the deliberate safeguard
// against looping forever on malformed model output — and records the error.
// The loop counter advances exactly once per invocation.
func (s *Stages) Reflect(ctx context.Context, state *types.ResearchState) {
	prompt, err := renderReflectionPrompt(reflectionInput{
		Question:    state.OriginalQuestion,
		Findings:    formatFindingsForReflection(state.EvidenceRecords),
		SourceCount: len(state.DiscoveredSources),
		LoopCount:   state.LoopCount,
		MinSources:  s.cfg.MinSourcesForSufficiency,
	})
	if err == nil {
		var raw string
		raw, err = s.client.Generate(ctx, llm.Request{Kind: llm.KindReflection, Prompt: prompt})
		if err == nil {
			out, parseErr := parseReflection(raw)
			if parseErr != nil {
				err = parseErr
			} else {
				state.IsSufficient = out.IsSufficient
				state.KnowledgeGap = out.KnowledgeGap
				state.FollowUpQueries = out.FollowUpQueries
				state.LoopCount++
				if out.IsSufficient {
					state.CurrentPhase = types.PhaseGeneratingAnswer
				} else {
					state.CurrentPhase = types.PhaseSearchWeb
				}
				s.log.Debug("reflection complete",
					zap.Bool("sufficient", out.IsSufficient),
					zap.Int("follow_ups", len(out.FollowUpQueries)),
					zap.Int("loop", state.LoopCount))
				return
			}
		}
	}

	s.log.Warn("reflection failed, assuming sufficient", zap.Error(err))
	state.IsSufficient = true
	state.KnowledgeGap = fmt.Sprintf("Reflection error: %v", err)
	state.FollowUpQueries = nil
	state.LoopCount++
	state.CurrentPhase = types.PhaseGeneratingAnswer
	state.Errors = append(state.Errors, fmt.Sprintf("Reflection failed: %v", err))
}

// Answer synthesizes the final answer with citations. This is the terminal
// stage and never leaves the run without some answer: on failure it returns
// an apology string, empty citations, and the error phase.
func (s *Stages) Answer(ctx context.Context, state *types.ResearchState) {
	prompt, err := renderAnswerPrompt(answerInput{
		Question: state.OriginalQuestion,
		Findings: formatFindingsForAnswer(state.EvidenceRecords),
		Sources:  formatSourcesList(state.DiscoveredSources),
	})
	if err == nil {
		var answer string
		answer, err = s.client.Generate(ctx, llm.Request{Kind: llm.KindAnswer, Prompt: prompt})
		if err == nil {
			state.FinalAnswer = answer
			state.Citations = collectCitations(state.EvidenceRecords)
			state.Summary = types.ResearchSummary{
				TotalQueries:         len(state.QueryList),
				TotalEvidenceRecords: len(state.EvidenceRecords),
				TotalSources:         len(state.Citations),
				ResearchLoops:        state.LoopCount,
				CompletionTime:       time.Now().UTC(),
			}
			state.CurrentPhase = types.PhaseCompleted
			s.log.Debug("answer generated", zap.Int("citations", len(state.Citations)))
			return
		}
	}

	s.log.Error("answer generation failed", zap.Error(err))
	state.FinalAnswer = fmt.Sprintf("I apologize, but I encountered an error while generating the final answer: %v", err)
	state.Citations = nil
	state.Summary = types.ResearchSummary{
		TotalQueries:         len(state.QueryList),
		TotalEvidenceRecords: len(state.EvidenceRecords),
		ResearchLoops:        state.LoopCount,
		CompletionTime:       time.Now().UTC(),
	}
	state.CurrentPhase = types.PhaseError
	state.Errors = append(state.Errors, fmt.Sprintf("Answer generation failed: %v", err))
}

// collectCitations gathers every source URL across the evidence records,
// deduplicated in first-seen order.
func collectCitations(records []types.EvidenceRecord) []string {
	var citations []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, u := range rec.SourceURLs {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			citations = append(citations, u)
		}
	}
	return citations
}
