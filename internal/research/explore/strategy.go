// Package explore implements the research core's three interchangeable
// exploration strategies (BFS, Wide Coverage, Parallel composite) behind
// a single Strategy contract, plus the shared file-reading and
// file-representative-reranking helpers they all use.
package explore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/elbow"
	"github.com/Aman-CERP/amanmcp/internal/research/reader"
)

func unmarshalJSON(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

// stableSortByRank orders chunks by the rank of their FilePath in rank,
// putting files absent from rank last in their existing relative order.
func stableSortByRank(chunks []*collab.Chunk, rank map[string]int) {
	sort.SliceStable(chunks, func(i, j int) bool {
		ri, oki := rank[chunks[i].FilePath]
		rj, okj := rank[chunks[j].FilePath]
		if !oki {
			ri = len(rank)
		}
		if !okj {
			rj = len(rank)
		}
		return ri < rj
	})
}

// Stats summarizes one exploration run for progress reporting.
type Stats struct {
	FilesExplored   int
	ChunksFound     int
	BranchesRun     int
	TerminatedEarly int
}

// Strategy is the shared contract BFS, Wide, and Parallel implement.
// Explore runs the full pipeline (elbow filter + file read); ExploreRaw
// stops after chunk discovery so Parallel can merge two raw runs before
// filtering and reading once.
type Strategy interface {
	Explore(ctx context.Context, rootQuery string, initial []*collab.Chunk, phase1Threshold float64, constantsContext string) ([]*collab.Chunk, Stats, map[string]string, error)
	ExploreRaw(ctx context.Context, rootQuery string, initial []*collab.Chunk) ([]*collab.Chunk, Stats, error)
}

// maxChunksPerFileRepr/maxTokensPerFileRepr bound the per-file
// representative document built for end-of-BFS file reranking.
const (
	maxChunksPerFileRepr = 5
	maxTokensPerFileRepr = 2000
)

// RerankFileRepresentatives builds a per-file "representative document"
// (its top maxChunksPerFileRepr chunks by rerank score, each truncated to
// roughly maxTokensPerFileRepr*4 characters), reranks those documents
// against rootQuery, and returns the distinct file paths from chunks
// reordered so the highest-reranked file comes first. Chunks within a
// file keep their relative order.
func RerankFileRepresentatives(ctx context.Context, embedder collab.EmbeddingProvider, rootQuery string, chunks []*collab.Chunk) ([]string, error) {
	byFile := make(map[string][]*collab.Chunk)
	var order []string
	for _, c := range chunks {
		if _, ok := byFile[c.FilePath]; !ok {
			order = append(order, c.FilePath)
		}
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}
	if len(order) <= 1 || embedder == nil || !embedder.SupportsReranking() {
		return order, nil
	}

	docs := make([]string, len(order))
	for i, path := range order {
		docs[i] = buildRepresentativeDoc(byFile[path])
	}

	scores, err := embedder.Rerank(ctx, rootQuery, docs)
	if err != nil {
		return order, nil // tolerate rerank failure, keep discovery order
	}

	type scored struct {
		path  string
		score float64
	}
	ranked := make([]scored, len(order))
	for i, path := range order {
		ranked[i] = scored{path: path, score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.path
	}
	return out, nil
}

func buildRepresentativeDoc(chunks []*collab.Chunk) string {
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].RerankScore > chunks[j].RerankScore })
	if len(chunks) > maxChunksPerFileRepr {
		chunks = chunks[:maxChunksPerFileRepr]
	}
	maxChars := maxTokensPerFileRepr * 4
	budget := maxChars
	var doc []byte
	for _, c := range chunks {
		content := c.Content
		if len(content) > budget {
			content = content[:budget]
		}
		doc = append(doc, []byte(content)...)
		doc = append(doc, '\n')
		budget -= len(content)
		if budget <= 0 {
			break
		}
	}
	return string(doc)
}

// FilterByElbow applies the elbow-based relevance cutoff: the higher of
// phase1Threshold and the data-driven elbow threshold over chunks'
// RerankScore (falling back to plain score-order when no rerank score is
// set).
func FilterByElbow(chunks []*collab.Chunk, phase1Threshold float64) []*collab.Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		scores[i] = chunkScore(c)
	}
	cutoff := elbow.ComputeThresholdFromScores(append([]float64(nil), scores...))
	if phase1Threshold > cutoff {
		cutoff = phase1Threshold
	}

	var out []*collab.Chunk
	for i, c := range chunks {
		if scores[i] >= cutoff {
			out = append(out, c)
		}
	}
	return out
}

func chunkScore(c *collab.Chunk) float64 {
	if c.RerankScore != 0 {
		return c.RerankScore
	}
	return 0
}

// ReadFiles loads full file content for every distinct file path among
// chunks and expands each chunk to its natural boundary, returning a
// path→content map. A file whose content can't be read is skipped with
// its chunks left unexpanded; reader.ExpandToNaturalBoundary surfaces its
// own data-loss error when a chunk is expanded with no content loaded.
func ReadFiles(ctx context.Context, store collab.ChunkStore, chunks []*collab.Chunk) (map[string]string, error) {
	fileContents := make(map[string]string)
	byPath := make(map[string][]*collab.Chunk)
	for _, c := range chunks {
		byPath[c.FilePath] = append(byPath[c.FilePath], c)
	}

	for path, members := range byPath {
		content, err := store.ReadFileContent(ctx, path)
		if err != nil || content == "" {
			continue
		}
		fileContents[path] = content
		lines := reader.NewFileLines(content)
		for _, c := range members {
			_ = reader.ExpandToNaturalBoundary(c, lines)
		}
	}
	return fileContents, nil
}

// DedupeHighestScoreWins merges multiple chunk slices by id, keeping
// whichever copy has the higher RerankScore on collisions — the merge
// rule every strategy (BFS traversal, depth exploration, gap filling,
// parallel composition) uses.
func DedupeHighestScoreWins(groups ...[]*collab.Chunk) []*collab.Chunk {
	best := make(map[string]*collab.Chunk)
	var order []string
	for _, group := range groups {
		for _, c := range group {
			if c == nil || c.Chunk == nil {
				continue
			}
			existing, ok := best[c.ID]
			if !ok {
				order = append(order, c.ID)
				best[c.ID] = c
				continue
			}
			if c.RerankScore > existing.RerankScore {
				best[c.ID] = c
			}
		}
	}
	out := make([]*collab.Chunk, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}
