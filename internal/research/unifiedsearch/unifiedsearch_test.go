package unifiedsearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

func TestSearch_MergesSemanticAndRegexResults(t *testing.T) {
	c1 := researchtest.NewChunk("a.go", "func ParseConfig() error { return nil }", 1, 3)
	c2 := researchtest.NewChunk("b.go", "func LoadConfig() (*Config, error) { return nil, nil }", 1, 3)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1, c2})

	svc := NewService(store, nil)
	results, err := svc.Search(context.Background(), []string{"config"}, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_ErrorsOnNoQueries(t *testing.T) {
	store := researchtest.NewFakeChunkStore(nil)
	svc := NewService(store, nil)
	_, err := svc.Search(context.Background(), nil, DefaultOptions())
	assert.Error(t, err)
}

func TestExtractSymbols_FiltersGenericsAndCaps(t *testing.T) {
	c := researchtest.NewChunk("a.go", "x", 1, 1)
	c.Symbols = []*store.Symbol{
		{Name: "self"},
		{Name: "a"},
		{Name: "123"},
		{Name: "HandleRequest"},
		{Name: "ParseConfig"},
	}

	symbols := extractSymbols([]*collab.Chunk{c}, 5)
	assert.Equal(t, []string{"HandleRequest", "ParseConfig"}, symbols)
}

func TestUnify_SemanticTakesPriority(t *testing.T) {
	semantic := []*collab.Chunk{researchtest.NewChunk("a.go", "x", 1, 1)}
	regex := []*collab.Chunk{semantic[0], researchtest.NewChunk("b.go", "y", 1, 1)}

	out := unify(semantic, regex)
	require.Len(t, out, 2)
	assert.Equal(t, semantic[0].ID, out[0].ID)
}

func TestSearch_RerankScoresAndSorts(t *testing.T) {
	c1 := researchtest.NewChunk("a.go", "totally unrelated content", 1, 1)
	c2 := researchtest.NewChunk("b.go", "query term appears here: widget", 1, 1)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1, c2})
	embedder := &researchtest.FakeEmbeddingProvider{Dim: 4, Reranker: true}

	svc := NewService(store, embedder)
	results, err := svc.Search(context.Background(), []string{"widget"}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)
}
