package explore

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/unifiedsearch"
)

// maxFollowupsPerNode bounds how many follow-up questions one BFS node
// generates, and fileSaturationLines is the "lines seen" heuristic past
// which a file is considered fully explored and its branch terminated.
const (
	maxFollowupsPerNode = 3
	fileSaturationLines = 50
)

var followupSchema = &collab.JSONSchema{
	Type: "object",
	Properties: map[string]*collab.JSONSchema{
		"questions": {
			Type:  "array",
			Items: &collab.JSONSchema{Type: "string"},
		},
	},
	Required:             []string{"questions"},
	AdditionalProperties: boolPtr(false),
}

func boolPtr(b bool) *bool { return &b }

type followupResult struct {
	Questions []string `json:"questions"`
}

// BFS is the fixed-depth-1 exploration strategy: initial chunks are
// treated as the root node, each generates up to maxFollowupsPerNode
// follow-up questions, and each follow-up runs one unified search whose
// results merge back before elbow filtering and file reranking.
type BFS struct {
	store         collab.ChunkStore
	llm           collab.LLMProvider
	embedder      collab.EmbeddingProvider
	unifiedSearch *unifiedsearch.Service
}

// NewBFS builds a BFS strategy.
func NewBFS(store collab.ChunkStore, llm collab.LLMProvider, embedder collab.EmbeddingProvider) *BFS {
	return &BFS{store: store, llm: llm, embedder: embedder, unifiedSearch: unifiedsearch.NewService(store, embedder)}
}

// ExploreRaw runs the BFS traversal and returns the merged, unfiltered
// chunk set (used standalone by Parallel before a shared filter pass).
func (b *BFS) ExploreRaw(ctx context.Context, rootQuery string, initial []*collab.Chunk) ([]*collab.Chunk, Stats, error) {
	stats := Stats{ChunksFound: len(initial)}

	linesSeenByFile := make(map[string]int)
	for _, c := range initial {
		linesSeenByFile[c.FilePath] += c.EndLine - c.StartLine + 1
	}

	questions, err := b.generateFollowups(ctx, rootQuery, initial)
	if err != nil {
		return initial, stats, nil
	}

	var branches [][]*collab.Chunk
	for _, q := range questions {
		stats.BranchesRun++
		results, err := b.unifiedSearch.Search(ctx, []string{rootQuery, q}, unifiedsearch.DefaultOptions())
		if err != nil {
			continue
		}

		var fresh []*collab.Chunk
		for _, c := range results {
			if linesSeenByFile[c.FilePath] >= fileSaturationLines {
				stats.TerminatedEarly++
				continue
			}
			fresh = append(fresh, c)
			linesSeenByFile[c.FilePath] += c.EndLine - c.StartLine + 1
		}
		branches = append(branches, fresh)
	}

	merged := DedupeHighestScoreWins(append(branches, initial)...)
	stats.ChunksFound = len(merged)
	return merged, stats, nil
}

// Explore runs ExploreRaw, then elbow-filters, reranks files by
// representative document, and reads file content for the surviving
// chunks.
func (b *BFS) Explore(ctx context.Context, rootQuery string, initial []*collab.Chunk, phase1Threshold float64, constantsContext string) ([]*collab.Chunk, Stats, map[string]string, error) {
	merged, stats, err := b.ExploreRaw(ctx, rootQuery, initial)
	if err != nil {
		return nil, stats, nil, err
	}

	filtered := FilterByElbow(merged, phase1Threshold)

	order, err := RerankFileRepresentatives(ctx, b.embedder, rootQuery, filtered)
	if err == nil {
		filtered = reorderByFile(filtered, order)
	}

	fileContents, err := ReadFiles(ctx, b.store, filtered)
	if err != nil {
		return nil, stats, nil, err
	}
	stats.FilesExplored = len(fileContents)
	return filtered, stats, fileContents, nil
}

func (b *BFS) generateFollowups(ctx context.Context, rootQuery string, chunks []*collab.Chunk) ([]string, error) {
	if b.llm == nil || len(chunks) == 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(
		"Root question: %s\nExplored so far: %d chunks across %d files.\nPropose up to %d follow-up questions that would reveal information not yet covered.",
		rootQuery, len(chunks), len(distinctFiles(chunks)), maxFollowupsPerNode,
	)
	raw, err := b.llm.CompleteStructured(ctx, collab.CompletionRequest{Prompt: prompt, Schema: followupSchema, MaxOutputTokens: 512})
	if err != nil {
		return nil, err
	}
	var parsed followupResult
	if err := unmarshalJSON(raw, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Questions) > maxFollowupsPerNode {
		parsed.Questions = parsed.Questions[:maxFollowupsPerNode]
	}
	return parsed.Questions, nil
}

func distinctFiles(chunks []*collab.Chunk) map[string]bool {
	out := make(map[string]bool)
	for _, c := range chunks {
		out[c.FilePath] = true
	}
	return out
}

func reorderByFile(chunks []*collab.Chunk, fileOrder []string) []*collab.Chunk {
	rank := make(map[string]int, len(fileOrder))
	for i, p := range fileOrder {
		rank[p] = i
	}
	out := make([]*collab.Chunk, len(chunks))
	copy(out, chunks)
	stableSortByRank(out, rank)
	return out
}
