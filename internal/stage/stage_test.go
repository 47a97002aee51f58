package stage

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// --- mock client ---

// scriptedClient returns a canned response (or error) per request kind.
type scriptedClient struct {
	responses map[llm.Kind]string
	errs      map[llm.Kind]error
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (string, error) {
	if err := c.errs[req.Kind]; err != nil {
		return "", err
	}
	return c.responses[req.Kind], nil
}

func testStages(client llm.Client) *Stages {
	cfg := types.DefaultEngineConfig()
	cfg.DemoMode = true
	return New(client, cfg, nil)
}

// --- GenerateQueries ---

func TestGenerateQueriesParsesModelOutput(t *testing.T) {
	client := &scriptedClient{responses: map[llm.Kind]string{
		llm.KindQueryGen: `{"queries": ["go generics history", "go generics design"], "rationale": "two angles"}`,
	}}
	s := testStages(client)

	state := types.NewResearchState("history of Go generics")
	s.GenerateQueries(context.Background(), state)

	want := []string{"go generics history", "go generics design"}
	if !reflect.DeepEqual(state.QueryList, want) {
		t.Errorf("QueryList = %v, want %v", state.QueryList, want)
	}
	if state.Rationale != "two angles" {
		t.Errorf("Rationale = %q", state.Rationale)
	}
	if state.CurrentPhase != types.PhaseSearchWeb {
		t.Errorf("CurrentPhase = %q, want %q", state.CurrentPhase, types.PhaseSearchWeb)
	}
	if len(state.Errors) != 0 {
		t.Errorf("unexpected errors: %v", state.Errors)
	}
}

func TestGenerateQueriesCapsToConfiguredCount(t *testing.T) {
	client := &scriptedClient{responses: map[llm.Kind]string{
		llm.KindQueryGen: `{"queries": ["a", "b", "c", "d", "e"]}`,
	}}
	s := testStages(client)

	state := types.NewResearchState("q")
	s.GenerateQueries(context.Background(), state)

	if len(state.QueryList) != 3 {
		t.Errorf("len(QueryList) = %d, want 3", len(state.QueryList))
	}
}

func TestGenerateQueriesFallbackOnModelError(t *testing.T) {
	client := &scriptedClient{errs: map[llm.Kind]error{
		llm.KindQueryGen: errors.New("model unavailable"),
	}}
	s := testStages(client)

	state := types.NewResearchState("quantum computing")
	s.GenerateQueries(context.Background(), state)

	want := []string{
		"quantum computing research",
		"quantum computing analysis",
		"quantum computing overview",
	}
	if !reflect.DeepEqual(state.QueryList, want) {
		t.Errorf("QueryList = %v, want %v", state.QueryList, want)
	}
	if len(state.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(state.Errors))
	}
	if state.CurrentPhase != types.PhaseSearchWeb {
		t.Errorf("CurrentPhase = %q, want %q", state.CurrentPhase, types.PhaseSearchWeb)
	}
}

func TestGenerateQueriesFallbackOnMissingListIsSilent(t *testing.T) {
	client := &scriptedClient{responses: map[llm.Kind]string{
		llm.KindQueryGen: `{"rationale": "no list today"}`,
	}}
	s := testStages(client)

	state := types.NewResearchState("q")
	s.GenerateQueries(context.Background(), state)

	if len(state.QueryList) != 3 {
		t.Errorf("len(QueryList) = %d, want 3 fallback queries", len(state.QueryList))
	}
	if len(state.Errors) != 0 {
		t.Errorf("missing query list should not record an error, got %v", state.Errors)
	}
}

// --- Search ---

func TestSearchProducesEvidenceRecord(t *testing.T) {
	client := &scriptedClient{responses: map[llm.Kind]string{
		llm.KindSearch: "Findings with https://example.com/a and https://example.org/b cited.",
	}}
	s := testStages(client)

	rec, errs := s.Search(context.Background(), "some query", "initial_0", "question")
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !strings.HasPrefix(rec.ID, "search-") {
		t.Errorf("ID = %q, want search- prefix", rec.ID)
	}
	if rec.TaskID != "initial_0" || rec.Query != "some query" {
		t.Errorf("record identity = %q/%q", rec.TaskID, rec.Query)
	}
	if rec.RelevanceScore != 0.9 {
		t.Errorf("RelevanceScore = %v, want 0.9", rec.RelevanceScore)
	}
	want := []string{"https://example.com/a", "https://example.org/b"}
	if !reflect.DeepEqual(rec.SourceURLs, want) {
		t.Errorf("SourceURLs = %v, want %v", rec.SourceURLs, want)
	}
	if rec.IsError() {
		t.Error("successful record classified as error")
	}
}

func TestSearchFailureYieldsErrorRecord(t *testing.T) {
	client := &scriptedClient{errs: map[llm.Kind]error{
		llm.KindSearch: errors.New("rate limited"),
	}}
	s := testStages(client)

	rec, errs := s.Search(context.Background(), "q", "initial_1", "question")
	if !strings.HasPrefix(rec.ID, "error-") {
		t.Errorf("ID = %q, want error- prefix", rec.ID)
	}
	if rec.RelevanceScore != 0.0 {
		t.Errorf("RelevanceScore = %v, want 0.0", rec.RelevanceScore)
	}
	if !strings.Contains(rec.Summary, "rate limited") {
		t.Errorf("Summary = %q, want error text", rec.Summary)
	}
	if len(rec.SourceURLs) != 0 {
		t.Errorf("SourceURLs = %v, want none", rec.SourceURLs)
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if !rec.IsError() {
		t.Error("failed record not classified as error")
	}
}

func TestSearchCapsSources(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("many links:")
	for i := 0; i < 15; i++ {
		sb.WriteString(" https://example.com/p")
		sb.WriteByte(byte('a' + i))
	}
	client := &scriptedClient{responses: map[llm.Kind]string{llm.KindSearch: sb.String()}}
	s := testStages(client)

	rec, _ := s.Search(context.Background(), "q", "initial_0", "question")
	if len(rec.SourceURLs) != 10 {
		t.Errorf("len(SourceURLs) = %d, want cap of 10", len(rec.SourceURLs))
	}
}

// --- Aggregate ---

func TestAggregateMergesBatch(t *testing.T) {
	s := testStages(&scriptedClient{})
	state := types.NewResearchState("q")

	batch := []types.EvidenceRecord{
		{ID: "search-1", SourceURLs: []string{"https://a.com/x", "https://b.com/y"}},
		{ID: "search-2", SourceURLs: []string{"https://b.com/y", "https://c.com/z"}},
	}
	s.Aggregate(state, batch)

	if len(state.EvidenceRecords) != 2 {
		t.Errorf("len(EvidenceRecords) = %d, want 2", len(state.EvidenceRecords))
	}
	wantSources := []string{"https://a.com/x", "https://b.com/y", "https://c.com/z"}
	if !reflect.DeepEqual(state.DiscoveredSources, wantSources) {
		t.Errorf("DiscoveredSources = %v, want %v", state.DiscoveredSources, wantSources)
	}
	if state.TotalTasksRun != 2 {
		t.Errorf("TotalTasksRun = %d, want 2", state.TotalTasksRun)
	}
	if state.CurrentPhase != types.PhaseReflection {
		t.Errorf("CurrentPhase = %q, want %q", state.CurrentPhase, types.PhaseReflection)
	}

	// A second batch accumulates rather than replaces.
	s.Aggregate(state, []types.EvidenceRecord{{ID: "search-3", SourceURLs: []string{"https://a.com/x"}}})
	if len(state.EvidenceRecords) != 3 {
		t.Errorf("len(EvidenceRecords) = %d after second batch, want 3", len(state.EvidenceRecords))
	}
	if !reflect.DeepEqual(state.DiscoveredSources, wantSources) {
		t.Errorf("DiscoveredSources changed on duplicate merge: %v", state.DiscoveredSources)
	}
	if state.TotalTasksRun != 3 {
		t.Errorf("TotalTasksRun = %d, want 3", state.TotalTasksRun)
	}
}

// --- Reflect ---

func TestReflectInsufficientSetsFollowUps(t *testing.T) {
	client := &scriptedClient{responses: map[llm.Kind]string{
		llm.KindReflection: `{"is_sufficient": false, "knowledge_gap": "needs benchmarks", "follow_up_queries": ["go benchmarks 2026"]}`,
	}}
	s := testStages(client)

	state := types.NewResearchState("q")
	s.Reflect(context.Background(), state)

	if state.IsSufficient {
		t.Error("IsSufficient = true, want false")
	}
	if state.KnowledgeGap != "needs benchmarks" {
		t.Errorf("KnowledgeGap = %q", state.KnowledgeGap)
	}
	if !reflect.DeepEqual(state.FollowUpQueries, []string{"go benchmarks 2026"}) {
		t.Errorf("FollowUpQueries = %v", state.FollowUpQueries)
	}
	if state.LoopCount != 1 {
		t.Errorf("LoopCount = %d, want 1", state.LoopCount)
	}
	if state.CurrentPhase != types.PhaseSearchWeb {
		t.Errorf("CurrentPhase = %q, want %q", state.CurrentPhase, types.PhaseSearchWeb)
	}
}

func TestReflectDefaultsSufficientOnGarbage(t *testing.T) {
	client := &scriptedClient{responses: map[llm.Kind]string{
		llm.KindReflection: "I think we need more data??",
	}}
	s := testStages(client)

	state := types.NewResearchState("q")
	s.Reflect(context.Background(), state)

	if !state.IsSufficient {
		t.Error("IsSufficient = false, want true on unparseable output")
	}
	if state.LoopCount != 1 {
		t.Errorf("LoopCount = %d, want 1", state.LoopCount)
	}
	if state.CurrentPhase != types.PhaseGeneratingAnswer {
		t.Errorf("CurrentPhase = %q, want %q", state.CurrentPhase, types.PhaseGeneratingAnswer)
	}
	if len(state.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(state.Errors))
	}
}

// --- Answer ---

func TestAnswerCollectsCitations(t *testing.T) {
	client := &scriptedClient{responses: map[llm.Kind]string{
		llm.KindAnswer: "The answer. [Source: a.com]",
	}}
	s := testStages(client)

	state := types.NewResearchState("q")
	state.QueryList = []string{"q1", "q2"}
	state.LoopCount = 1
	state.EvidenceRecords = []types.EvidenceRecord{
		{SourceURLs: []string{"https://a.com/x", "https://b.com/y"}},
		{SourceURLs: []string{"https://b.com/y"}},
	}
	s.Answer(context.Background(), state)

	if state.FinalAnswer != "The answer. [Source: a.com]" {
		t.Errorf("FinalAnswer = %q", state.FinalAnswer)
	}
	wantCitations := []string{"https://a.com/x", "https://b.com/y"}
	if !reflect.DeepEqual(state.Citations, wantCitations) {
		t.Errorf("Citations = %v, want %v", state.Citations, wantCitations)
	}
	sum := state.Summary
	if sum.TotalQueries != 2 || sum.TotalEvidenceRecords != 2 || sum.TotalSources != 2 || sum.ResearchLoops != 1 {
		t.Errorf("Summary = %+v", sum)
	}
	if state.CurrentPhase != types.PhaseCompleted {
		t.Errorf("CurrentPhase = %q, want %q", state.CurrentPhase, types.PhaseCompleted)
	}
}

func TestAnswerFailureKeepsRunAlive(t *testing.T) {
	client := &scriptedClient{errs: map[llm.Kind]error{
		llm.KindAnswer: errors.New("model down"),
	}}
	s := testStages(client)

	state := types.NewResearchState("q")
	s.Answer(context.Background(), state)

	if !strings.Contains(state.FinalAnswer, "I apologize") {
		t.Errorf("FinalAnswer = %q, want apology", state.FinalAnswer)
	}
	if len(state.Citations) != 0 {
		t.Errorf("Citations = %v, want none", state.Citations)
	}
	if state.CurrentPhase != types.PhaseError {
		t.Errorf("CurrentPhase = %q, want %q", state.CurrentPhase, types.PhaseError)
	}
	if len(state.Errors) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(state.Errors))
	}
}
