package depthexploration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
	"github.com/Aman-CERP/amanmcp/internal/research/unifiedsearch"
)

func TestExplore_GeneratesAndRunsFollowupQueries(t *testing.T) {
	c1 := researchtest.NewChunk("retry.go", "func RetryWithBackoff() error { return nil }", 1, 3)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1})

	llm := researchtest.NewFakeLLMProvider()
	llm.Structured = []any{
		aspectQueryResult{Queries: []struct {
			Query     string `json:"query"`
			Rationale string `json:"rationale"`
		}{{Query: "backoff", Rationale: "covers retry timing"}}},
	}

	svc := NewService(llm, unifiedsearch.NewService(store, nil), store)
	files := []FileAspects{{FilePath: "retry.go", UnansweredAspects: []string{"backoff timing"}}}

	out, err := svc.Explore(context.Background(), "how does retry work", files, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, c1.ID, out[0].ID)
}

func TestExplore_CapsAtMaxExplorationFiles(t *testing.T) {
	store := researchtest.NewFakeChunkStore(nil)
	llm := researchtest.NewFakeLLMProvider()

	svc := NewService(llm, unifiedsearch.NewService(store, nil), store)
	files := []FileAspects{
		{FilePath: "a.go"}, {FilePath: "b.go"}, {FilePath: "c.go"},
	}

	out, err := svc.Explore(context.Background(), "q", files, Options{MaxExplorationFiles: 2, QueriesPerFile: 1})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExplore_ToleratesGenerationFailure(t *testing.T) {
	store := researchtest.NewFakeChunkStore(nil)
	llm := researchtest.NewFakeLLMProvider()
	// No scripted Structured response: CompleteStructured falls back to
	// "{}", which unmarshals into zero queries, so Explore should return
	// no chunks without erroring.
	svc := NewService(llm, unifiedsearch.NewService(store, nil), store)

	out, err := svc.Explore(context.Background(), "q", []FileAspects{{FilePath: "a.go"}}, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, out)
}
