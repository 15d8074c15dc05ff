package synthesis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/citation"
	"github.com/Aman-CERP/amanmcp/internal/research/clustering"
	"github.com/Aman-CERP/amanmcp/internal/research/evidence"
	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
)

func longAnswer(body string) string {
	return body + strings.Repeat(" filler text to clear the minimum answer length threshold.", 3)
}

func TestSinglePass_ReturnsAnswerWithSourcesFooter(t *testing.T) {
	llm := researchtest.NewFakeLLMProvider()
	llm.Responses = []string{longAnswer("The config loader reads YAML then applies env overrides [1].")}

	svc := NewService(llm)
	refMap := citation.BuildReferenceMap([]string{"config.go"})
	ledger := evidence.NewLedger()

	result, err := svc.SinglePass(context.Background(), "how is config loaded", []ChunkExcerpt{{FilePath: "config.go", Content: "..."}}, ledger, refMap)
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "## Sources")
}

func TestSinglePass_RejectsShortAnswer(t *testing.T) {
	llm := researchtest.NewFakeLLMProvider()
	llm.Responses = []string{"too short"}

	svc := NewService(llm)
	refMap := citation.BuildReferenceMap([]string{"a.go"})
	ledger := evidence.NewLedger()

	_, err := svc.SinglePass(context.Background(), "q", nil, ledger, refMap)
	assert.ErrorIs(t, err, ErrAnswerTooShort)
}

func TestMapReduce_SynthesizesEachClusterAndReduces(t *testing.T) {
	llm := researchtest.NewFakeLLMProvider()
	llm.Responses = []string{
		longAnswer("cluster one summary referencing [1]"),
		longAnswer("cluster two summary referencing [1]"),
		longAnswer("final integrated answer covering both clusters with citations [1] and [2]."),
	}

	svc := NewService(llm)
	clusters := []clustering.ClusterGroup{
		{ClusterID: 0, FilePaths: []string{"a.go"}, TotalTokens: 1000},
		{ClusterID: 1, FilePaths: []string{"b.go"}, TotalTokens: 2000},
	}
	excerptsByFile := map[string][]ChunkExcerpt{
		"a.go": {{FilePath: "a.go", Content: "..."}},
		"b.go": {{FilePath: "b.go", Content: "..."}},
	}
	ledger := evidence.NewLedger()

	result, err := svc.MapReduce(context.Background(), "root question", clusters, excerptsByFile, ledger, 3000)
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "## Sources")
}

func TestClusterOutputBudget_FloorsAndCaps(t *testing.T) {
	assert.Equal(t, minClusterOutputTokens, clusterOutputBudget(1, 1000000))
	assert.Equal(t, halfTargetOutputTokens, clusterOutputBudget(1000000, 1000001))
}
