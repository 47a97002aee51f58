// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine drives the cyclic research pipeline: query generation,
// parallel search fan-out, aggregation, reflection, and answer synthesis,
// looping until the evidence is judged sufficient or the loop bound is hit.
// Progress is streamed as a sequenced event channel consumed identically by
// the SSE and WebSocket transports.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/stage"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Node identifiers used in progress events.
const (
	nodeGenerateQueries  = "generate_queries"
	nodeWebSearch        = "web_search"
	nodeAggregateResults = "aggregate_results"
	nodeReflection       = "reflection"
	nodeAnswerGeneration = "answer_generation"
)

// archiveTimeout bounds the checkpoint write after a run finishes.
const archiveTimeout = 10 * time.Second

// Archiver checkpoints a finished run. Implemented by the archive store;
// optional.
type Archiver interface {
	SaveRun(ctx context.Context, state *types.ResearchState) error
}

// Engine executes research runs. One Engine serves many concurrent runs;
// each run owns its own ResearchState and event sequence. The only shared
// resource is the language-model client, which must be safe for concurrent
// invocation.
type Engine struct {
	stages  *stage.Stages
	cfg     types.EngineConfig
	log     *zap.Logger
	archive Archiver
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithArchiver enables checkpointing of completed runs.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archive = a }
}

// New creates an Engine with the given language-model client injected.
func New(client llm.Client, cfg types.EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stages = stage.New(client, cfg, e.log)
	return e
}

// Run executes a run to completion and returns the terminal payload. It
// drains the event stream internally.
func (e *Engine) Run(ctx context.Context, question string) (types.FinalResult, error) {
	events, err := e.RunStream(ctx, question, types.ModeValues)
	if err != nil {
		return types.FinalResult{Success: false}, err
	}

	var streamErr string
	for ev := range events {
		switch ev.Type {
		case types.EventComplete:
			if ev.Result != nil {
				return *ev.Result, nil
			}
		case types.EventError:
			streamErr = ev.Err
		}
	}
	if streamErr != "" {
		return types.FinalResult{Success: false, Errors: []string{streamErr}}, fmt.Errorf("research run failed: %s", streamErr)
	}
	return types.FinalResult{Success: false}, fmt.Errorf("research run ended without a final result")
}

// RunStream starts a run and returns its progress event channel. The
// channel is closed after the terminal event. Validation failures (empty
// question, unusable configuration) are the only errors returned before the
// pipeline starts; everything afterwards degrades inside the run.
func (e *Engine) RunStream(ctx context.Context, question string, mode types.StreamMode) (<-chan types.Event, error) {
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if mode == "" {
		mode = types.ModeValues
	}
	if mode != types.ModeValues && mode != types.ModeEvents {
		return nil, fmt.Errorf("unknown stream mode %q", mode)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	ch := make(chan types.Event, 64)
	go e.run(ctx, question, mode, ch)
	return ch, nil
}

// run executes the state machine for one research run.
func (e *Engine) run(ctx context.Context, question string, mode types.StreamMode, ch chan<- types.Event) {
	defer close(ch)

	em := newEmitter(ctx, mode, ch)
	state := types.NewResearchState(question)

	e.log.Info("research run started",
		zap.String("question", question),
		zap.String("mode", string(mode)))

	for {
		// Query generation re-runs on every loop iteration; the fan-out
		// routing below prefers reflection's follow-up queries when the
		// previous iteration produced any.
		em.NodeStart(nodeGenerateQueries)
		e.stages.GenerateQueries(ctx, state)
		em.NodeComplete(nodeGenerateQueries)
		em.Snapshot(state)

		queries, prefix := state.QueryList, "initial"
		if len(state.FollowUpQueries) > 0 {
			queries = state.FollowUpQueries
			prefix = fmt.Sprintf("followup_%d", state.LoopCount)
		}

		em.NodeStart(nodeWebSearch)
		batch, errs := e.fanOut(ctx, em, question, queries, prefix)
		em.NodeComplete(nodeWebSearch)
		state.Errors = append(state.Errors, errs...)

		em.NodeStart(nodeAggregateResults)
		e.stages.Aggregate(state, batch)
		em.NodeComplete(nodeAggregateResults)
		em.Snapshot(state)

		if err := ctx.Err(); err != nil {
			e.abort(em, state, err)
			return
		}

		em.NodeStart(nodeReflection)
		e.stages.Reflect(ctx, state)
		em.NodeComplete(nodeReflection)
		em.Snapshot(state)

		// Three independent stop conditions with OR semantics: any one
		// routes to the answer stage, guaranteeing termination even if
		// the model claims "insufficient" forever.
		if state.IsSufficient ||
			state.LoopCount >= e.cfg.MaxResearchLoops ||
			len(state.FollowUpQueries) == 0 {
			break
		}

		if err := ctx.Err(); err != nil {
			e.abort(em, state, err)
			return
		}
	}

	em.NodeStart(nodeAnswerGeneration)
	e.stages.Answer(ctx, state)
	em.NodeComplete(nodeAnswerGeneration)
	em.Snapshot(state)

	result := types.FinalResult{
		Success:     state.FinalAnswer != "",
		FinalAnswer: state.FinalAnswer,
		Citations:   state.Citations,
		Summary:     state.Summary,
		Errors:      state.Errors,
	}
	em.Complete(result)

	e.checkpoint(state)

	e.log.Info("research run finished",
		zap.String("phase", string(state.CurrentPhase)),
		zap.Int("loops", state.LoopCount),
		zap.Int("evidence", len(state.EvidenceRecords)),
		zap.Int("errors", len(state.Errors)))
}

// fanOut dispatches one search task per query with bounded parallelism and
// joins on all of them. Each dispatched task yields exactly one evidence
// record, success or failure, so the returned batch length always equals
// len(queries). Records are collected in completion order.
func (e *Engine) fanOut(ctx context.Context, em *emitter, question string, queries []string, prefix string) ([]types.EvidenceRecord, []string) {
	if len(queries) == 0 {
		return nil, nil
	}

	// Tasks already dispatched must reach the barrier even if the run is
	// cancelled meanwhile; each task carries its own timeout.
	searchCtx := context.WithoutCancel(ctx)

	type taskResult struct {
		record types.EvidenceRecord
		errs   []string
	}
	results := make(chan taskResult, len(queries))

	limit := e.cfg.ParallelSearchLimit
	if limit <= 0 {
		limit = 5
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, q := range queries {
		taskID := fmt.Sprintf("%s_%d", prefix, i)
		g.Go(func() error {
			em.NodeStart(taskID)
			rec, errs := e.stages.Search(searchCtx, q, taskID, question)
			em.NodeComplete(taskID)
			results <- taskResult{record: rec, errs: errs}
			return nil
		})
	}
	g.Wait()
	close(results)

	batch := make([]types.EvidenceRecord, 0, len(queries))
	var errs []string
	for r := range results {
		batch = append(batch, r.record)
		errs = append(errs, r.errs...)
	}
	return batch, errs
}

// abort ends a cancelled run with a terminal error event.
func (e *Engine) abort(em *emitter, state *types.ResearchState, err error) {
	state.CurrentPhase = types.PhaseError
	state.Errors = append(state.Errors, fmt.Sprintf("Run cancelled: %v", err))
	em.Fail(fmt.Sprintf("research run cancelled: %v", err))
	e.log.Warn("research run cancelled", zap.Error(err))
}

// checkpoint archives a finished run when an archiver is configured.
func (e *Engine) checkpoint(state *types.ResearchState) {
	if e.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := e.archive.SaveRun(ctx, state); err != nil {
		e.log.Warn("archiving run failed", zap.Error(err))
	}
}
