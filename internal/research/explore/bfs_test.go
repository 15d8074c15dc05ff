package explore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
)

func TestBFS_ExploreRaw_MergesFollowupResults(t *testing.T) {
	c1 := researchtest.NewChunk("a.go", "func ParseConfig() error { return nil }", 1, 3)
	c2 := researchtest.NewChunk("b.go", "func LoadConfig() (*Config, error) { return nil, nil }", 1, 3)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1, c2})

	llm := researchtest.NewFakeLLMProvider()
	llm.Structured = []any{followupResult{Questions: []string{"config loading"}}}

	bfs := NewBFS(store, llm, nil)
	out, stats, err := bfs.ExploreRaw(context.Background(), "config", []*collab.Chunk{c1})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.BranchesRun, 1)
	assert.NotEmpty(t, out)
}

func TestBFS_ExploreRaw_NoLLMReturnsInitial(t *testing.T) {
	c1 := researchtest.NewChunk("a.go", "x", 1, 1)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1})
	bfs := NewBFS(store, nil, nil)

	out, _, err := bfs.ExploreRaw(context.Background(), "q", []*collab.Chunk{c1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, c1.ID, out[0].ID)
}
