package explore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
)

func TestParallel_ExploreRaw_MergesBothStrategies(t *testing.T) {
	c1 := researchtest.NewChunk("a.go", "x", 1, 1)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1})

	bfs := NewBFS(store, nil, nil)
	wide := NewWide(store, nil, nil)
	par := NewParallel(store, bfs, wide)

	out, stats, err := par.ExploreRaw(context.Background(), "q", []*collab.Chunk{c1})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, stats.ChunksFound)
}
