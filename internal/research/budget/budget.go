// Package budget computes LLM token budgets for the research pipeline: how
// much input context a synthesis call may consume based on repo size, and
// how the file-content / prompt / output allowances shrink as exploration
// gets deeper (so a depth-4 leaf doesn't try to read as much as the root).
package budget

// RepoStats summarizes the scope a synthesis call will run against.
// ChunkCount drives a rough lines-of-code estimate (chunks * 20, matching
// the original's heuristic that a typical chunk spans ~20 lines).
type RepoStats struct {
	ChunkCount int
}

// SynthesisBudgets bounds a single synthesis (map-reduce or single-pass)
// LLM call.
type SynthesisBudgets struct {
	InputTokens  int
	OutputTokens int
	Overhead     int
}

// synthesisOutputTokens is the fixed output allowance across all repo size
// tiers; only the input budget scales with repo size.
const synthesisOutputTokens = 30_000

// synthesisOverheadTokens covers system-prompt and formatting overhead not
// counted against the input budget proper.
const synthesisOverheadTokens = 5_000

// repoSizeTier is a LOC-estimate breakpoint and its associated input
// token budget.
type repoSizeTier struct {
	maxLOC      int
	inputTokens int
}

// tiers must stay sorted ascending by maxLOC; the last tier's maxLOC is
// ignored (catch-all for "large").
var tiers = []repoSizeTier{
	{maxLOC: 5_000, inputTokens: 30_000},   // tiny
	{maxLOC: 20_000, inputTokens: 50_000},  // small
	{maxLOC: 80_000, inputTokens: 80_000},  // medium
	{maxLOC: 1 << 30, inputTokens: 150_000}, // large (catch-all)
}

// Calculator computes synthesis and adaptive exploration budgets. An
// AbsoluteInputCap of zero means no cap is applied (the per-tier value is
// used as-is); it mirrors the env-overridable absolute ceiling in the
// original (CHUNKHOUND_SYNTHESIS_INPUT_TOKENS_MAX).
type Calculator struct {
	AbsoluteInputCap int
}

// NewCalculator returns a Calculator with no absolute input cap.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// CalculateSynthesisBudgets derives the input/output/overhead token
// budgets for a synthesis call over the given repo stats.
func (c *Calculator) CalculateSynthesisBudgets(stats RepoStats) SynthesisBudgets {
	estimatedLOC := stats.ChunkCount * 20

	inputTokens := tiers[len(tiers)-1].inputTokens
	for _, tier := range tiers {
		if estimatedLOC <= tier.maxLOC {
			inputTokens = tier.inputTokens
			break
		}
	}

	if c.AbsoluteInputCap > 0 && inputTokens > c.AbsoluteInputCap {
		inputTokens = c.AbsoluteInputCap
	}

	return SynthesisBudgets{
		InputTokens:  inputTokens,
		OutputTokens: synthesisOutputTokens,
		Overhead:     synthesisOverheadTokens,
	}
}

// AdaptiveBudgets bounds one exploration node's LLM usage: how much file
// content it may read, how large its own LLM input/output may be, and how
// much it may spend drafting follow-up questions.
type AdaptiveBudgets struct {
	FileContentTokens  int
	LLMInputTokens     int
	AnswerOutputTokens int
	FollowupTokens     int
}

// linearScale interpolates between lo (depth 0) and hi (depth == maxDepth)
// proportional to depthRatio, clamped to [0,1] by the caller.
func linearScale(lo, hi, depthRatio float64) int {
	return int(lo + (hi-lo)*depthRatio)
}

// GetAdaptiveTokenBudgets computes the per-node budgets for an exploration
// node at the given depth. isLeaf nodes get the leaf-output formula
// (11k+8k*depthRatio becomes internal-output for non-leaves; leaves use
// 18k+3k*depthRatio) since leaves synthesize a final answer while internal
// nodes only need to summarize enough to guide their children.
func GetAdaptiveTokenBudgets(depth, maxDepth int, isLeaf bool) AdaptiveBudgets {
	effectiveMax := maxDepth
	if effectiveMax < 1 {
		effectiveMax = 1
	}
	depthRatio := float64(depth) / float64(effectiveMax)
	if depthRatio > 1 {
		depthRatio = 1
	}
	if depthRatio < 0 {
		depthRatio = 0
	}

	fileContent := linearScale(10_000, 50_000, depthRatio)
	llmInput := linearScale(15_000, 60_000, depthRatio)
	followup := linearScale(8_000, 15_000, depthRatio)

	var answerOutput int
	if isLeaf {
		answerOutput = 18_000 + int(3_000*depthRatio)
	} else {
		answerOutput = 11_000 + int(8_000*depthRatio)
	}

	return AdaptiveBudgets{
		FileContentTokens:  fileContent,
		LLMInputTokens:     llmInput,
		AnswerOutputTokens: answerOutput,
		FollowupTokens:     followup,
	}
}

// LegacyFixedBudgets is used when ResearchConfig disables adaptive
// budgeting (the original's ENABLE_ADAPTIVE_BUDGETS=False path): every
// node gets the same allowance regardless of depth.
func LegacyFixedBudgets() AdaptiveBudgets {
	return AdaptiveBudgets{
		FileContentTokens:  30_000,
		LLMInputTokens:     40_000,
		AnswerOutputTokens: 15_000,
		FollowupTokens:     10_000,
	}
}
