package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/researchtest"
)

func TestExpand_PrependsRootAndDedupes(t *testing.T) {
	llm := researchtest.NewFakeLLMProvider()
	llm.Structured = []any{
		expansionResult{Queries: []string{"how does retry work", "how does retry work", "backoff timing"}},
	}

	svc := NewService(llm)
	out := svc.Expand(context.Background(), "how does retry work", 3)

	require.Equal(t, "how does retry work", out[0])
	assert.Len(t, out, 2)
	assert.Equal(t, "backoff timing", out[1])
}

func TestExpand_ZeroNDisablesExpansion(t *testing.T) {
	llm := researchtest.NewFakeLLMProvider()
	llm.Structured = []any{expansionResult{Queries: []string{"x"}}}

	svc := NewService(llm)
	out := svc.Expand(context.Background(), "root", 0)
	assert.Equal(t, []string{"root"}, out)
}

func TestExpand_NilLLMDegradesGracefully(t *testing.T) {
	svc := NewService(nil)
	out := svc.Expand(context.Background(), "root", 3)
	assert.Equal(t, []string{"root"}, out)
}

func TestExpand_CapsAtN(t *testing.T) {
	llm := researchtest.NewFakeLLMProvider()
	llm.Structured = []any{
		expansionResult{Queries: []string{"a", "b", "c", "d"}},
	}

	svc := NewService(llm)
	out := svc.Expand(context.Background(), "root", 2)
	assert.Len(t, out, 3) // root + 2
}
