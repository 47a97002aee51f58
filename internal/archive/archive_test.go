package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.ArchiveConfig{Enabled: true, Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleState(question string) *types.ResearchState {
	state := types.NewResearchState(question)
	state.QueryList = []string{"q1", "q2"}
	state.EvidenceRecords = []types.EvidenceRecord{
		{
			ID:             "search-1",
			Query:          "q1",
			Summary:        "findings",
			SourceURLs:     []string{"https://a.com/x", "https://b.com/y"},
			TaskID:         "initial_0",
			RelevanceScore: 0.9,
			CreatedAt:      time.Now().UTC(),
		},
		{
			ID:             "error-2",
			Query:          "q2",
			Summary:        "timed out",
			TaskID:         "initial_1",
			RelevanceScore: 0.0,
			CreatedAt:      time.Now().UTC(),
		},
	}
	state.AddSources([]string{"https://a.com/x", "https://b.com/y"})
	state.LoopCount = 1
	state.TotalTasksRun = 2
	state.FinalAnswer = "the answer"
	state.CurrentPhase = types.PhaseCompleted
	return state
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := sampleState("what is Go")
	require.NoError(t, store.SaveRun(ctx, state))

	run, err := store.GetRun(ctx, state.RunID)
	require.NoError(t, err)

	assert.Equal(t, state.RunID, run.ID)
	assert.Equal(t, "what is Go", run.Question)
	assert.Equal(t, "the answer", run.FinalAnswer)
	assert.Equal(t, string(types.PhaseCompleted), run.Phase)
	assert.Equal(t, 1, run.LoopCount)
	assert.Equal(t, 2, run.TotalTasks)
	assert.Equal(t, 2, run.SourceCount)

	require.Len(t, run.Evidence, 2)
	assert.Equal(t, "search-1", run.Evidence[0].ID)
	assert.Equal(t, []string{"https://a.com/x", "https://b.com/y"}, run.Evidence[0].SourceURLs)
	assert.True(t, run.Evidence[1].IsError())
}

func TestSaveRunIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := sampleState("q")
	require.NoError(t, store.SaveRun(ctx, state))

	state.FinalAnswer = "revised answer"
	require.NoError(t, store.SaveRun(ctx, state))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "re-saving a run must replace, not duplicate")

	run, err := store.GetRun(ctx, state.RunID)
	require.NoError(t, err)
	assert.Equal(t, "revised answer", run.FinalAnswer)
	assert.Len(t, run.Evidence, 2, "evidence must not duplicate on re-save")
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleState("first")
	require.NoError(t, store.SaveRun(ctx, first))
	time.Sleep(5 * time.Millisecond)
	second := sampleState("second")
	require.NoError(t, store.SaveRun(ctx, second))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].Question)
	assert.Equal(t, "first", runs[1].Question)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExportYAML(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(types.ArchiveConfig{Enabled: true, Dir: dir})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, sampleState("exported question")))
	require.NoError(t, store.ExportYAML(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "export.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "exported question")
	assert.Contains(t, string(data), "the answer")
}
