package explore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
)

func TestWide_ExploreRaw_NoLLMKeepsInitial(t *testing.T) {
	c1 := researchtest.NewChunk("a.go", "x", 1, 1)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1})

	wide := NewWide(store, nil, nil)
	out, _, err := wide.ExploreRaw(context.Background(), "q", []*collab.Chunk{c1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, c1.ID, out[0].ID)
}

func TestWide_ExploreRaw_SkipsDepthExplorationWhenDisabled(t *testing.T) {
	c1 := researchtest.NewChunk("a.go", "x", 1, 1)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1})
	llm := researchtest.NewFakeLLMProvider()

	wide := NewWide(store, llm, researchtest.NewFakeEmbeddingProvider())
	wide.DepthExplorationOn = false

	out, _, err := wide.ExploreRaw(context.Background(), "q", []*collab.Chunk{c1})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
