package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/evidence"
)

func boolPtr(b bool) *bool { return &b }

// factSchema forces one fact-extraction call into a flat list of
// atomic, citable facts, each grounded on a specific file and line
// range, tagged with an LLM-determined category, a categorical
// confidence label, and the entities it concerns.
var factSchema = &collab.JSONSchema{
	Type: "object",
	Properties: map[string]*collab.JSONSchema{
		"facts": {
			Type: "array",
			Items: &collab.JSONSchema{
				Type: "object",
				Properties: map[string]*collab.JSONSchema{
					"statement":  {Type: "string", Description: "one atomic, verifiable claim a reader could cite"},
					"file_path":  {Type: "string", Description: "source file the fact is grounded on"},
					"start_line": {Type: "number", Description: "first line of the grounding range"},
					"end_line":   {Type: "number", Description: "last line of the grounding range"},
					"category":   {Type: "string", Description: "architecture, behavior, configuration, or similar"},
					"confidence": {Type: "string", Enum: []string{"definite", "likely", "inferred", "uncertain"}},
					"entities":   {Type: "array", Items: &collab.JSONSchema{Type: "string"}},
				},
				Required:             []string{"statement", "file_path", "start_line", "end_line", "category", "confidence", "entities"},
				AdditionalProperties: boolPtr(false),
			},
		},
	},
	Required:             []string{"facts"},
	AdditionalProperties: boolPtr(false),
}

type factExtractionResult struct {
	Facts []struct {
		Statement  string   `json:"statement"`
		FilePath   string   `json:"file_path"`
		StartLine  int      `json:"start_line"`
		EndLine    int      `json:"end_line"`
		Category   string   `json:"category"`
		Confidence string   `json:"confidence"`
		Entities   []string `json:"entities"`
	} `json:"facts"`
}

// extractFacts asks the LLM to pull out grounded, citable facts from one
// cluster's combined content (or the whole corpus, for single-pass
// synthesis, which passes clusterID 0), tagging every extracted fact
// with its own source file/line range rather than the whole cluster's
// file list. A nil llm or extraction failure degrades to no facts,
// never a hard failure — the ledger's constants still carry
// symbol-level grounding on their own.
func extractFacts(ctx context.Context, llm collab.LLMProvider, rootQuery string, clusterID int, content string) []evidence.FactEntry {
	if llm == nil || content == "" {
		return nil
	}

	prompt := "Root question: " + rootQuery +
		"\n\nExtract specific, verifiable facts about how this code works (not opinions or summaries). " +
		"Each fact should be a standalone statement a reader could cite, grounded on the exact file and line " +
		"range it came from, with a category and a confidence label (definite/likely/inferred/uncertain) " +
		"and the symbols/config keys/types it concerns as entities.\n\n" +
		content

	raw, err := llm.CompleteStructured(ctx, collab.CompletionRequest{
		Prompt:          prompt,
		Schema:          factSchema,
		MaxOutputTokens: 2048,
	})
	if err != nil {
		return nil
	}

	var parsed factExtractionResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}

	out := make([]evidence.FactEntry, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		if f.Statement == "" {
			continue
		}
		out = append(out, evidence.FactEntry{
			Statement:  f.Statement,
			FilePath:   f.FilePath,
			StartLine:  f.StartLine,
			EndLine:    f.EndLine,
			Category:   f.Category,
			Confidence: evidence.ParseConfidenceLevel(f.Confidence),
			Entities:   f.Entities,
			ClusterID:  clusterID,
		})
	}
	return out
}
