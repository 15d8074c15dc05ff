// Package unifiedsearch runs the research core's primary retrieval step:
// parallel dense search across one or more expanded queries, symbol-driven
// regex backfill to catch exact-name matches dense search misses, and an
// optional rerank pass (single-query or averaged across a compound query
// set) before results are handed to exploration.
package unifiedsearch

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
)

// Options configures a single unified search call. Zero values fall back
// to the defaults below via WithDefaults.
type Options struct {
	// MaxSymbols bounds how many extracted symbols get a regex backfill
	// query of their own.
	MaxSymbols int
	// RegexAugmentationRatio scales how many regex results to pull in
	// relative to the semantic result count.
	RegexAugmentationRatio float64
	// RegexMinResults is the floor on total regex results regardless of
	// the ratio computation.
	RegexMinResults int
	// RegexScanPageSize is how many results one regex page fetches.
	RegexScanPageSize int
	// MaxRegexPages bounds the internal pagination loop per symbol.
	MaxRegexPages int
	// SemanticLimit bounds how many results each semantic query
	// requests.
	SemanticLimit int
}

// DefaultOptions mirrors core/config/research_config.py's defaults.
func DefaultOptions() Options {
	return Options{
		MaxSymbols:              5,
		RegexAugmentationRatio:  0.3,
		RegexMinResults:         20,
		RegexScanPageSize:       100,
		MaxRegexPages:           20,
		SemanticLimit:           30,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxSymbols <= 0 {
		o.MaxSymbols = d.MaxSymbols
	}
	if o.RegexAugmentationRatio <= 0 {
		o.RegexAugmentationRatio = d.RegexAugmentationRatio
	}
	if o.RegexMinResults <= 0 {
		o.RegexMinResults = d.RegexMinResults
	}
	if o.RegexScanPageSize <= 0 {
		o.RegexScanPageSize = d.RegexScanPageSize
	}
	if o.MaxRegexPages <= 0 {
		o.MaxRegexPages = d.MaxRegexPages
	}
	if o.SemanticLimit <= 0 {
		o.SemanticLimit = d.SemanticLimit
	}
	return o
}

// Service performs unified search against a ChunkStore, optionally
// reranking through an EmbeddingProvider.
type Service struct {
	store    collab.ChunkStore
	embedder collab.EmbeddingProvider
}

// NewService builds a Service. embedder may be nil; reranking is then
// skipped and results keep their semantic/regex discovery order.
func NewService(store collab.ChunkStore, embedder collab.EmbeddingProvider) *Service {
	return &Service{store: store, embedder: embedder}
}

// identifierStopwords excludes generic parameter names that aren't
// useful as regex backfill queries on their own.
var identifierStopwords = map[string]bool{"self": true, "cls": true, "this": true}

// Search runs the full unified search pipeline: parallel semantic search
// over expandedQueries (queries[0] is treated as the root query for
// rerank purposes), symbol extraction and regex backfill, result
// unification, and (if embedder supports it) a rerank pass.
func (s *Service) Search(ctx context.Context, expandedQueries []string, opts Options) ([]*collab.Chunk, error) {
	opts = opts.withDefaults()
	if len(expandedQueries) == 0 {
		return nil, fmt.Errorf("unifiedsearch: at least one query is required")
	}

	semanticResults, err := s.parallelSemanticSearch(ctx, expandedQueries, opts.SemanticLimit)
	if err != nil {
		return nil, err
	}

	symbols := extractSymbols(semanticResults, opts.MaxSymbols)
	regexResults, err := s.searchBySymbols(ctx, symbols, len(semanticResults), opts)
	if err != nil {
		return nil, err
	}

	unified := unify(semanticResults, regexResults)

	if s.embedder != nil && s.embedder.SupportsReranking() {
		if err := s.rerank(ctx, expandedQueries, unified); err != nil {
			return nil, fmt.Errorf("unifiedsearch: rerank failed: %w", err)
		}
	}

	return unified, nil
}

// parallelSemanticSearch fans out one dense-vector query per string in
// queries via an errgroup, tolerating individual query failures: a
// failed query is dropped (and its error swallowed) rather than failing
// the whole search, matching the original's asyncio.gather(... ,
// return_exceptions=True) behavior.
func (s *Service) parallelSemanticSearch(ctx context.Context, queries []string, limit int) ([]*collab.Chunk, error) {
	results := make([][]*collab.Chunk, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			chunks, err := s.store.SearchSemantic(gctx, q, limit)
			if err != nil {
				// Per-query errors are tolerated: one bad expansion
				// shouldn't sink the whole search.
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*collab.Chunk
	seen := make(map[string]bool)
	for _, chunks := range results {
		for _, c := range chunks {
			if c == nil || c.Chunk == nil || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// identifierPattern matches a bare identifier token, used to decide
// whether a symbol name is regex-safe to search for as-is.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// extractSymbols pulls candidate symbol names out of search results,
// preferring the chunk's own symbol list, falling back to
// metadata["parameters"], then to the chunk's primary name when its
// content type isn't a generic one. Single-character, purely numeric,
// and generic-identifier names are filtered out, then the result is
// capped at maxSymbols.
func extractSymbols(chunks []*collab.Chunk, maxSymbols int) []string {
	seen := make(map[string]bool)
	var out []string

	add := func(name string) bool {
		if len(out) >= maxSymbols {
			return false
		}
		name = strings.TrimSpace(name)
		if len(name) <= 1 || isNumeric(name) || identifierStopwords[strings.ToLower(name)] {
			return true
		}
		if !identifierPattern.MatchString(name) {
			return true
		}
		key := strings.ToLower(name)
		if seen[key] {
			return true
		}
		seen[key] = true
		out = append(out, name)
		return len(out) < maxSymbols
	}

	for _, c := range chunks {
		if c.Chunk == nil {
			continue
		}
		if len(c.Symbols) > 0 {
			for _, sym := range c.Symbols {
				if !add(sym.Name) {
					return out
				}
			}
			continue
		}
		if params, ok := c.Metadata["parameters"]; ok {
			for _, p := range strings.Split(params, ",") {
				if !add(p) {
					return out
				}
			}
			continue
		}
		if name, ok := c.Metadata["name"]; ok && string(c.ContentType) != "text" {
			if !add(name) {
				return out
			}
		}
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// searchBySymbols runs one paginated regex scan per symbol (bounded by
// opts.MaxRegexPages pages each), deduping against results already
// collected from either semantic search or an earlier symbol's scan.
// targetPerSymbol is derived from the dynamic ratio formula: the regex
// backfill grows with the semantic result count, floored at
// RegexMinResults, and divided evenly across however many symbols were
// extracted.
func (s *Service) searchBySymbols(ctx context.Context, symbols []string, semanticCount int, opts Options) ([]*collab.Chunk, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	target := int(float64(semanticCount) * opts.RegexAugmentationRatio)
	if target < opts.RegexMinResults {
		target = opts.RegexMinResults
	}
	targetPerSymbol := target / len(symbols)
	if targetPerSymbol < 1 {
		targetPerSymbol = 1
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var out []*collab.Chunk

	g, gctx := errgroup.WithContext(ctx)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			pattern := `\b` + regexp.QuoteMeta(sym) + `\b`
			collected := 0
			for page := 0; page < opts.MaxRegexPages && collected < targetPerSymbol; page++ {
				chunks, err := s.store.SearchRegexAsync(gctx, pattern, page*opts.RegexScanPageSize, opts.RegexScanPageSize)
				if err != nil {
					return nil // tolerate per-symbol failures
				}
				if len(chunks) == 0 {
					break
				}
				mu.Lock()
				for _, c := range chunks {
					if c == nil || c.Chunk == nil || seen[c.ID] {
						continue
					}
					seen[c.ID] = true
					out = append(out, c)
					collected++
					if collected >= targetPerSymbol {
						break
					}
				}
				mu.Unlock()
				if len(chunks) < opts.RegexScanPageSize {
					break // last page
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// unify merges semantic and regex results into one chunk-id-keyed list,
// preferring the semantic copy of a chunk when both lists contain it
// (semantic results carry vector-search context the regex path doesn't).
func unify(semantic, regex []*collab.Chunk) []*collab.Chunk {
	seen := make(map[string]bool, len(semantic)+len(regex))
	out := make([]*collab.Chunk, 0, len(semantic)+len(regex))
	for _, c := range semantic {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	for _, c := range regex {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// rerank scores every chunk against each query in queries and assigns
// RerankScore as the average, the "compound rerank" mode used when
// unified search was given more than one query (e.g. a root query plus a
// decomposed sub-query). A single-query call is just the degenerate
// case of that average over one term.
func (s *Service) rerank(ctx context.Context, queries []string, chunks []*collab.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = c.Content
	}

	sums := make([]float64, len(chunks))
	batch := s.embedder.MaxRerankBatchSize()
	if batch <= 0 {
		batch = len(docs)
	}

	for _, q := range queries {
		for start := 0; start < len(docs); start += batch {
			end := start + batch
			if end > len(docs) {
				end = len(docs)
			}
			scores, err := s.embedder.Rerank(ctx, q, docs[start:end])
			if err != nil {
				return err
			}
			for i, sc := range scores {
				sums[start+i] += sc
			}
		}
	}

	for i, c := range chunks {
		c.RerankScore = sums[i] / float64(len(queries))
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].RerankScore > chunks[j].RerankScore
	})
	return nil
}
