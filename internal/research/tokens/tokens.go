// Package tokens estimates LLM token counts for text the research pipeline
// needs to budget: prompts, file excerpts, and synthesis output.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is the cl100k_base BPE used by the teacher's supported
// OpenAI-compatible and Anthropic-compatible chat models; it is a close
// enough approximation for budgeting purposes across providers.
const defaultEncoding = "cl100k_base"

// Estimator estimates the token count of a string. LLMProvider
// implementations may supply a more accurate model-specific estimator;
// Estimator is the fallback used when they don't.
type Estimator interface {
	Estimate(text string) int
}

// TiktokenEstimator wraps tiktoken-go's BPE encoder.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator builds an Estimator over the cl100k_base encoding.
// Falls back to a character-heuristic estimator if the encoding can't be
// loaded (e.g. offline with no cached BPE ranks file).
func NewTiktokenEstimator() Estimator {
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return HeuristicEstimator{}
	}
	return &TiktokenEstimator{enc: enc}
}

// Estimate returns the number of BPE tokens text encodes to.
func (t *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// HeuristicEstimator approximates token count as roughly 4 characters per
// token, the standard rule of thumb for English code/prose when no BPE
// encoder is available.
type HeuristicEstimator struct{}

// Estimate implements Estimator using the chars-per-token heuristic.
func (HeuristicEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
