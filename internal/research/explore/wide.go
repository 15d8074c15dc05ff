package explore

import (
	"context"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/depthexploration"
	"github.com/Aman-CERP/amanmcp/internal/research/gapdetection"
	"github.com/Aman-CERP/amanmcp/internal/research/unifiedsearch"
)

// topFilesForDepthExploration bounds how many of the initial chunks'
// highest-average-rerank-score files get depth exploration.
const topFilesForDepthExploration = 5

// Wide is the wide-coverage exploration strategy: depth exploration over
// the top files (if enabled) followed by gap detection, with no
// BFS-style traversal or per-branch termination heuristics.
type Wide struct {
	store              collab.ChunkStore
	llm                collab.LLMProvider
	embedder           collab.EmbeddingProvider
	unifiedSearch      *unifiedsearch.Service
	depthExploration   *depthexploration.Service
	gapDetection       *gapdetection.Service
	DepthExplorationOn bool
	GapOptions         gapdetection.Options
	// DepthExplorationOptions bounds the per-file aspect-query fan-out;
	// callers wire this from config.ResearchConfig rather than relying
	// on depthexploration.DefaultOptions().
	DepthExplorationOptions depthexploration.Options
}

// NewWide builds a Wide strategy with depth exploration enabled by
// default.
func NewWide(store collab.ChunkStore, llm collab.LLMProvider, embedder collab.EmbeddingProvider) *Wide {
	us := unifiedsearch.NewService(store, embedder)
	return &Wide{
		store:                   store,
		llm:                     llm,
		embedder:                embedder,
		unifiedSearch:           us,
		depthExploration:        depthexploration.NewService(llm, us, store),
		gapDetection:            gapdetection.NewService(llm, embedder),
		DepthExplorationOn:      true,
		GapOptions:              gapdetection.DefaultOptions(),
		DepthExplorationOptions: depthexploration.DefaultOptions(),
	}
}

// ExploreRaw runs depth exploration (if enabled) then gap detection,
// returning the merged, unfiltered chunk set.
func (w *Wide) ExploreRaw(ctx context.Context, rootQuery string, initial []*collab.Chunk) ([]*collab.Chunk, Stats, error) {
	stats := Stats{ChunksFound: len(initial)}
	covered := initial

	if w.DepthExplorationOn && w.llm != nil {
		topFiles := topAverageRerankFiles(initial, topFilesForDepthExploration)
		explored, err := w.depthExploration.Explore(ctx, rootQuery, topFiles, w.DepthExplorationOptions)
		if err == nil {
			covered = DedupeHighestScoreWins(covered, explored)
		}
	}

	if w.llm != nil {
		opts := w.GapOptions
		if opts.MaxGaps <= 0 {
			opts = gapdetection.DefaultOptions()
		}

		shards := w.gapDetection.BuildShards(ctx, coveredFileSummaries(covered), opts)
		candidates, err := w.gapDetection.DetectGaps(ctx, rootQuery, shards)
		if err == nil && len(candidates) > 0 {
			unified := w.gapDetection.UnifyGaps(ctx, candidates, opts)
			selected := gapdetection.ElbowSelect(unified, opts)
			filled := w.fillGaps(ctx, rootQuery, selected)
			covered = DedupeHighestScoreWins(covered, filled)
		}
	}

	stats.ChunksFound = len(covered)
	return covered, stats, nil
}

// coveredFileSummaries collapses per-chunk coverage into one content
// blob per file, the unit gap detection shards over.
func coveredFileSummaries(chunks []*collab.Chunk) []gapdetection.FileSummary {
	order := make([]string, 0)
	byFile := make(map[string]string)
	for _, c := range chunks {
		if c == nil || c.Chunk == nil {
			continue
		}
		if _, ok := byFile[c.FilePath]; !ok {
			order = append(order, c.FilePath)
		}
		byFile[c.FilePath] += c.Content + "\n"
	}
	out := make([]gapdetection.FileSummary, len(order))
	for i, p := range order {
		out[i] = gapdetection.FileSummary{FilePath: p, Content: byFile[p]}
	}
	return out
}

// Explore runs ExploreRaw, elbow-filters, and reads file content.
func (w *Wide) Explore(ctx context.Context, rootQuery string, initial []*collab.Chunk, phase1Threshold float64, constantsContext string) ([]*collab.Chunk, Stats, map[string]string, error) {
	covered, stats, err := w.ExploreRaw(ctx, rootQuery, initial)
	if err != nil {
		return nil, stats, nil, err
	}

	filtered := FilterByElbow(covered, phase1Threshold)
	fileContents, err := ReadFiles(ctx, w.store, filtered)
	if err != nil {
		return nil, stats, nil, err
	}
	stats.FilesExplored = len(fileContents)
	return filtered, stats, fileContents, nil
}

// fillGaps runs unified search for each selected gap, reranked against
// the compound [rootQuery, gap.Query] pair, then expands each gap's hits
// to their surrounding context window before merging.
func (w *Wide) fillGaps(ctx context.Context, rootQuery string, gaps []gapdetection.UnifiedGap) []*collab.Chunk {
	var out []*collab.Chunk
	for _, g := range gaps {
		results, err := w.unifiedSearch.Search(ctx, []string{rootQuery, g.Query}, unifiedsearch.DefaultOptions())
		if err != nil || len(results) == 0 {
			continue
		}
		if expanded, err := unifiedsearch.ExpandChunkWindows(ctx, w.store, results, unifiedsearch.DefaultWindowLines); err == nil {
			results = expanded
		}
		out = append(out, results...)
	}
	return out
}

func topAverageRerankFiles(chunks []*collab.Chunk, limit int) []depthexploration.FileAspects {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	var order []string
	byFile := make(map[string][]*collab.Chunk)
	for _, c := range chunks {
		if _, ok := sums[c.FilePath]; !ok {
			order = append(order, c.FilePath)
		}
		sums[c.FilePath] += c.RerankScore
		counts[c.FilePath]++
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	avgs := make([]fileAvg, len(order))
	for i, p := range order {
		avgs[i] = fileAvg{path: p, mean: sums[p] / float64(counts[p])}
	}
	sortAvgsDescending(avgs)

	if len(avgs) > limit {
		avgs = avgs[:limit]
	}
	out := make([]depthexploration.FileAspects, len(avgs))
	for i, a := range avgs {
		out[i] = depthexploration.FileAspects{FilePath: a.path, Chunks: byFile[a.path]}
	}
	return out
}

type fileAvg struct {
	path string
	mean float64
}

func sortAvgsDescending(avgs []fileAvg) {
	for i := 1; i < len(avgs); i++ {
		for j := i; j > 0 && avgs[j].mean > avgs[j-1].mean; j-- {
			avgs[j], avgs[j-1] = avgs[j-1], avgs[j]
		}
	}
}

