package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSynthesisBudgets_Tiers(t *testing.T) {
	c := NewCalculator()

	tiny := c.CalculateSynthesisBudgets(RepoStats{ChunkCount: 100}) // 2000 LOC
	assert.Equal(t, 30_000, tiny.InputTokens)

	small := c.CalculateSynthesisBudgets(RepoStats{ChunkCount: 800}) // 16000 LOC
	assert.Equal(t, 50_000, small.InputTokens)

	medium := c.CalculateSynthesisBudgets(RepoStats{ChunkCount: 3000}) // 60000 LOC
	assert.Equal(t, 80_000, medium.InputTokens)

	large := c.CalculateSynthesisBudgets(RepoStats{ChunkCount: 10000}) // 200000 LOC
	assert.Equal(t, 150_000, large.InputTokens)

	assert.Equal(t, synthesisOutputTokens, tiny.OutputTokens)
	assert.Equal(t, synthesisOverheadTokens, tiny.Overhead)
}

func TestCalculateSynthesisBudgets_AbsoluteCap(t *testing.T) {
	c := &Calculator{AbsoluteInputCap: 40_000}
	b := c.CalculateSynthesisBudgets(RepoStats{ChunkCount: 10000})
	assert.Equal(t, 40_000, b.InputTokens)
}

func TestGetAdaptiveTokenBudgets_ScalesWithDepth(t *testing.T) {
	root := GetAdaptiveTokenBudgets(0, 4, false)
	deepest := GetAdaptiveTokenBudgets(4, 4, false)

	assert.Equal(t, 10_000, root.FileContentTokens)
	assert.Equal(t, 50_000, deepest.FileContentTokens)
	assert.Equal(t, 15_000, root.LLMInputTokens)
	assert.Equal(t, 60_000, deepest.LLMInputTokens)
	assert.Greater(t, deepest.AnswerOutputTokens, root.AnswerOutputTokens)
}

func TestGetAdaptiveTokenBudgets_LeafVsInternal(t *testing.T) {
	leaf := GetAdaptiveTokenBudgets(2, 4, true)
	internal := GetAdaptiveTokenBudgets(2, 4, false)
	assert.NotEqual(t, leaf.AnswerOutputTokens, internal.AnswerOutputTokens)
}

func TestGetAdaptiveTokenBudgets_ZeroMaxDepthDoesNotDivideByZero(t *testing.T) {
	assert.NotPanics(t, func() {
		GetAdaptiveTokenBudgets(0, 0, true)
	})
}
