package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/config"
	"github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
)

func TestResearch_SinglePassEndToEnd(t *testing.T) {
	c1 := researchtest.NewChunk("retry.go", "func RetryWithBackoff() error { return nil }", 1, 3)
	c2 := researchtest.NewChunk("backoff.go", "func ExponentialBackoff(attempt int) time.Duration { return 0 }", 1, 3)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1, c2})

	llm := researchtest.NewFakeLLMProvider()
	embedder := researchtest.NewFakeEmbeddingProvider()
	embedder.Reranker = true

	cfg := config.NewConfig().Research
	svc := NewService(store, llm, embedder, cfg)

	answer, err := svc.Research(context.Background(), "how does retry work", nil)
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.NotEmpty(t, answer.Text)
}

func TestResearch_RerankUnsupportedIsTerminal(t *testing.T) {
	c1 := researchtest.NewChunk("retry.go", "func RetryWithBackoff() error { return nil }", 1, 3)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1})
	llm := researchtest.NewFakeLLMProvider()
	embedder := researchtest.NewFakeEmbeddingProvider() // Reranker left false

	svc := NewService(store, llm, embedder, config.NewConfig().Research)
	_, err := svc.Research(context.Background(), "how does retry work", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeResearchRerankRequired, errors.GetCode(err))
}

func TestResearch_EmptyQueryErrors(t *testing.T) {
	store := researchtest.NewFakeChunkStore(nil)
	llm := researchtest.NewFakeLLMProvider()
	embedder := researchtest.NewFakeEmbeddingProvider()

	svc := NewService(store, llm, embedder, config.NewConfig().Research)
	_, err := svc.Research(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestResearch_NoResultsErrors(t *testing.T) {
	store := researchtest.NewFakeChunkStore(nil)
	llm := researchtest.NewFakeLLMProvider()
	embedder := researchtest.NewFakeEmbeddingProvider()

	svc := NewService(store, llm, embedder, config.NewConfig().Research)
	_, err := svc.Research(context.Background(), "nothing matches this at all", nil)
	assert.Error(t, err)
}

func TestStrategyFor_DefaultsToParallelForUnknownAlgorithm(t *testing.T) {
	store := researchtest.NewFakeChunkStore(nil)
	llm := researchtest.NewFakeLLMProvider()
	embedder := researchtest.NewFakeEmbeddingProvider()

	svc := NewService(store, llm, embedder, config.NewConfig().Research)
	assert.Same(t, svc.parallel, svc.strategyFor("made-up"))
	assert.Same(t, svc.bfs, svc.strategyFor("v1"))
	assert.Same(t, svc.wide, svc.strategyFor("v2"))
	assert.Same(t, svc.parallel, svc.strategyFor("v3"))
}
