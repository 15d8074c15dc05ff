package codemapper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
)

func boolPtr(b bool) *bool { return &b }

// planSchema forces the HyDE planning call into exactly the two PoI
// lists the pipeline needs.
var planSchema = &collab.JSONSchema{
	Type: "object",
	Properties: map[string]*collab.JSONSchema{
		"architectural": {Type: "array", Items: &collab.JSONSchema{Type: "string"}},
		"operational":   {Type: "array", Items: &collab.JSONSchema{Type: "string"}},
	},
	Required:             []string{"architectural", "operational"},
	AdditionalProperties: boolPtr(false),
}

type planResult struct {
	Architectural []string `json:"architectural"`
	Operational   []string `json:"operational"`
}

// snippetCharsPerToken mirrors the 4-chars-per-token approximation the
// planning prompt budgets sampled code against.
const snippetCharsPerToken = 4

// buildScopePrompt composes the HyDE planning prompt: the (possibly
// capped) scope file list plus a token-budgeted sample of their content,
// split proportionally across files so no single large file consumes the
// whole snippet budget.
func buildScopePrompt(ctx context.Context, store collab.ChunkStore, scopeLabel string, filePaths []string, t tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scope: %s\n\n", scopeLabel)
	b.WriteString("Files in scope:\n")
	if len(filePaths) == 0 {
		b.WriteString("(no files discovered)\n")
	} else {
		for _, p := range filePaths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	b.WriteString("\nSampled code:\n\n")

	charBudget := t.snippetTokenBudget * snippetCharsPerToken
	contents := make(map[string]string, len(filePaths))
	totalChars := 0
	for _, p := range filePaths {
		content, err := store.ReadFileContent(ctx, p)
		if err != nil || content == "" {
			continue
		}
		contents[p] = content
		totalChars += len(content)
	}
	if totalChars == 0 || charBudget <= 0 {
		b.WriteString("(no sample code snippets available)\n")
		return b.String()
	}

	ratio := 1.0
	if totalChars > charBudget {
		ratio = float64(charBudget) / float64(totalChars)
	}

	order := make([]string, 0, len(contents))
	for p := range contents {
		order = append(order, p)
	}
	sort.Strings(order)

	any := false
	for _, p := range order {
		content := contents[p]
		target := int(float64(len(content)) * ratio)
		if target <= 0 {
			continue
		}
		if target > len(content) {
			target = len(content)
		}
		fmt.Fprintf(&b, "File: %s\n```\n%s\n```\n\n", p, content[:target])
		any = true
	}
	if !any {
		b.WriteString("(no sample code snippets available)\n")
	}

	return b.String()
}

// plan runs the HyDE planning call and returns the combined, quickstart-
// ensured PoI list: architectural points first, then operational.
func plan(ctx context.Context, llm collab.LLMProvider, scopePrompt string, t tier) ([]POI, error) {
	prompt := scopePrompt +
		"\nIdentify the most important topics a new contributor or operator would need documented about this codebase. " +
		"Produce two lists:\n" +
		"- \"architectural\": how the system is designed and implemented (responsibilities, key types, important flows, constraints).\n" +
		"- \"operational\": how to run, configure, and operate this codebase day to day.\n"

	raw, err := llm.CompleteStructured(ctx, collab.CompletionRequest{
		Prompt: prompt,
		Schema: planSchema,
	})
	if err != nil {
		return nil, err
	}

	var parsed planResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	arch := capPoints(nonEmpty(parsed.Architectural), t.architecturalPoints)
	ops := ensureOperationalQuickstart(nonEmpty(parsed.Operational), t.operationalPoints)

	pois := make([]POI, 0, len(arch)+len(ops))
	for _, text := range arch {
		pois = append(pois, POI{Mode: ModeArchitectural, Text: text})
	}
	for _, text := range ops {
		pois = append(pois, POI{Mode: ModeOperational, Text: text})
	}
	return pois, nil
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
