// Package query implements the research core's query-expansion step: an
// LLM call that proposes diverse, sentence-form paraphrases of the root
// query so unified search's parallel semantic pass covers more of the
// embedding space than the single original phrasing would.
package query

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
)

func boolPtr(b bool) *bool { return &b }

var expansionSchema = &collab.JSONSchema{
	Type: "object",
	Properties: map[string]*collab.JSONSchema{
		"queries": {
			Type:  "array",
			Items: &collab.JSONSchema{Type: "string"},
		},
	},
	Required:             []string{"queries"},
	AdditionalProperties: boolPtr(false),
}

type expansionResult struct {
	Queries []string `json:"queries"`
}

// Service expands a root query into a diverse set of paraphrases via a
// structured LLM call.
type Service struct {
	llm collab.LLMProvider
}

// NewService builds a Service.
func NewService(llm collab.LLMProvider) *Service {
	return &Service{llm: llm}
}

// Expand asks the LLM for up to n additional sentence-form paraphrases of
// rootQuery, then returns rootQuery prepended to the deduplicated result.
// A nil llm, n<=0, or an LLM failure degrades to just [rootQuery] — query
// expansion is an optional enrichment, never a hard dependency.
func (s *Service) Expand(ctx context.Context, rootQuery string, n int) []string {
	out := []string{rootQuery}
	if s.llm == nil || n <= 0 || strings.TrimSpace(rootQuery) == "" {
		return out
	}

	prompt := "Root question: " + rootQuery +
		"\n\nPropose up to " + strconv.Itoa(n) +
		" additional, diverse, sentence-form search queries that would help answer this question by surfacing different relevant code. Do not repeat the root question."

	raw, err := s.llm.CompleteStructured(ctx, collab.CompletionRequest{
		Prompt:          prompt,
		Schema:          expansionSchema,
		MaxOutputTokens: 512,
	})
	if err != nil {
		return out
	}

	var parsed expansionResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return out
	}

	seen := map[string]bool{strings.ToLower(strings.TrimSpace(rootQuery)): true}
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) >= n+1 {
			break
		}
	}
	return out
}
