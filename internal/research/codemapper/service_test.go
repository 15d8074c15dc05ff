package codemapper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/config"
	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/orchestrator"
	"github.com/Aman-CERP/amanmcp/internal/research/progress"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
	"github.com/Aman-CERP/amanmcp/internal/ui"
)

type recordingRenderer struct {
	mu     sync.Mutex
	events []ui.ProgressEvent
}

func (r *recordingRenderer) Start(context.Context) error { return nil }

func (r *recordingRenderer) UpdateProgress(e ui.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingRenderer) AddError(ui.ErrorEvent)      {}
func (r *recordingRenderer) Complete(ui.CompletionStats) {}
func (r *recordingRenderer) Stop() error                 { return nil }

func TestService_Run_ProducesTopicsAndIndex(t *testing.T) {
	c1 := researchtest.NewChunk("retry.go", "func RetryWithBackoff() error { return nil }", 1, 3)
	c2 := researchtest.NewChunk("backoff.go", "func ExponentialBackoff(attempt int) time.Duration { return 0 }", 1, 3)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1, c2})

	llm := researchtest.NewFakeLLMProvider()
	llm.Structured = []any{
		map[string]any{
			"architectural": []string{"How retries are implemented"},
			"operational":   []string{"Deploying the service"},
		},
	}
	embedder := researchtest.NewFakeEmbeddingProvider()
	embedder.Reranker = true

	researchSvc := orchestrator.NewService(store, llm, embedder, config.NewConfig().Research)
	cmCfg := config.NewConfig().Research.CodeMapper
	svc := NewService(store, llm, researchSvc, cmCfg)

	scopeFiles, err := store.GetScopeFilePaths(context.Background(), nil)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), "root", scopeFiles, Metadata{GeneratedAt: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Len(t, result.Topics, 3)
	assert.Contains(t, result.Combined.Content, "Code Map: root")
	assert.Contains(t, result.Index.Content, "Code Map Index: root")
	require.NotNil(t, result.UnreferencedFiles)
}

func TestResolveJobs_WarnsAboveThreshold(t *testing.T) {
	assert.Equal(t, 8, resolveJobs(8, 20))
}

func TestService_Run_EmitsPOIProgress(t *testing.T) {
	c1 := researchtest.NewChunk("retry.go", "func RetryWithBackoff() error { return nil }", 1, 3)
	store := researchtest.NewFakeChunkStore([]*collab.Chunk{c1})

	llm := researchtest.NewFakeLLMProvider()
	llm.Structured = []any{
		map[string]any{
			"architectural": []string{"How retries are implemented"},
		},
	}
	embedder := researchtest.NewFakeEmbeddingProvider()
	embedder.Reranker = true

	researchSvc := orchestrator.NewService(store, llm, embedder, config.NewConfig().Research)
	cmCfg := config.NewConfig().Research.CodeMapper
	svc := NewService(store, llm, researchSvc, cmCfg)

	renderer := &recordingRenderer{}
	bus := progress.NewBus()
	bus.SetConsumer(renderer)
	svc.SetProgressBus(bus)

	scopeFiles, err := store.GetScopeFilePaths(context.Background(), nil)
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), "root", scopeFiles, Metadata{GeneratedAt: time.Now()})
	require.NoError(t, err)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	var sawPOI, sawResearch bool
	for _, e := range renderer.events {
		if e.Stage == ui.StageCodeMapperPOI {
			sawPOI = true
		}
		if e.Stage == ui.StageResearchSearch || e.Stage == ui.StageResearchSynthesize {
			sawResearch = true
		}
	}
	assert.True(t, sawPOI, "expected at least one StageCodeMapperPOI event")
	assert.True(t, sawResearch, "expected inner research phase events to reach the same consumer")
}
