// Package depthexploration generates the follow-up aspect queries an
// exploration node uses to go one level deeper: given a node's current
// chunks and the aspects of the root query it hasn't yet answered, ask an
// LLM for targeted follow-up questions, then run each through unified
// search in parallel.
package depthexploration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/unifiedsearch"
)

func unmarshalInto(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

// Options configures depth exploration for one node.
type Options struct {
	// MaxExplorationFiles bounds how many of the node's top files get
	// their own follow-up queries generated.
	MaxExplorationFiles int
	// QueriesPerFile bounds how many follow-up queries one file's
	// exploration generates.
	QueriesPerFile int
}

// DefaultOptions mirrors the research config's exploration defaults.
func DefaultOptions() Options {
	return Options{MaxExplorationFiles: 5, QueriesPerFile: 2}
}

// aspectQuerySchema forces the LLM into a flat list of follow-up
// questions for one file, each with a short rationale tying it back to
// the unanswered aspect it targets.
var aspectQuerySchema = &collab.JSONSchema{
	Type: "object",
	Properties: map[string]*collab.JSONSchema{
		"queries": {
			Type: "array",
			Items: &collab.JSONSchema{
				Type: "object",
				Properties: map[string]*collab.JSONSchema{
					"query":     {Type: "string"},
					"rationale": {Type: "string"},
				},
				Required:             []string{"query", "rationale"},
				AdditionalProperties: boolPtr(false),
			},
		},
	},
	Required:             []string{"queries"},
	AdditionalProperties: boolPtr(false),
}

func boolPtr(b bool) *bool { return &b }

type aspectQueryResult struct {
	Queries []struct {
		Query     string `json:"query"`
		Rationale string `json:"rationale"`
	} `json:"queries"`
}

// Service generates and runs follow-up aspect queries.
type Service struct {
	llm           collab.LLMProvider
	unifiedSearch *unifiedsearch.Service
	store         collab.ChunkStore
}

// NewService builds a Service. store is optional; when nil, follow-up
// hits skip context-window expansion.
func NewService(llm collab.LLMProvider, unifiedSearch *unifiedsearch.Service, store collab.ChunkStore) *Service {
	return &Service{llm: llm, unifiedSearch: unifiedSearch, store: store}
}

// FileAspects is one file's worth of follow-up exploration input: the
// file path, the chunks already retrieved from it, and the unanswered
// aspects of the root query that remain.
type FileAspects struct {
	FilePath          string
	Chunks            []*collab.Chunk
	UnansweredAspects []string
}

// Explore generates follow-up queries for up to opts.MaxExplorationFiles
// of files (files should already be ordered by relevance; callers
// typically pass the output of RerankFileRepresentatives), runs each
// generated query through unified search, and returns the combined,
// deduped chunk set.
func (s *Service) Explore(ctx context.Context, rootQuery string, files []FileAspects, opts Options) ([]*collab.Chunk, error) {
	if opts.MaxExplorationFiles <= 0 {
		opts = DefaultOptions()
	}
	if len(files) > opts.MaxExplorationFiles {
		files = files[:opts.MaxExplorationFiles]
	}

	var mu sync.Mutex
	var results [][]*collab.Chunk

	g, gctx := errgroup.WithContext(ctx)
	for _, fa := range files {
		fa := fa
		g.Go(func() error {
			queries, err := s.generateQueries(gctx, rootQuery, fa, opts.QueriesPerFile)
			if err != nil {
				return nil // tolerate per-file generation failures
			}
			if len(queries) == 0 {
				return nil
			}
			chunks, err := s.unifiedSearch.Search(gctx, queries, unifiedsearch.DefaultOptions())
			if err != nil {
				return nil
			}
			if s.store != nil && len(chunks) > 0 {
				if expanded, err := unifiedsearch.ExpandChunkWindows(gctx, s.store, chunks, unifiedsearch.DefaultWindowLines); err == nil {
					chunks = expanded
				}
			}
			mu.Lock()
			results = append(results, chunks)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dedupe(results), nil
}

func (s *Service) generateQueries(ctx context.Context, rootQuery string, fa FileAspects, limit int) ([]string, error) {
	prompt := fmt.Sprintf(
		"Root question: %s\nFile: %s\nUnanswered aspects: %v\nPropose up to %d follow-up search queries that would resolve the unanswered aspects using this file's context.",
		rootQuery, fa.FilePath, fa.UnansweredAspects, limit,
	)

	raw, err := s.llm.CompleteStructured(ctx, collab.CompletionRequest{
		Prompt:          prompt,
		Schema:          aspectQuerySchema,
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return nil, err
	}

	var parsed aspectQueryResult
	if err := unmarshalInto(raw, &parsed); err != nil {
		return nil, err
	}

	queries := make([]string, 0, len(parsed.Queries))
	for i, q := range parsed.Queries {
		if i >= limit {
			break
		}
		queries = append(queries, q.Query)
	}
	return queries, nil
}

func dedupe(results [][]*collab.Chunk) []*collab.Chunk {
	seen := make(map[string]bool)
	var out []*collab.Chunk
	for _, chunks := range results {
		for _, c := range chunks {
			if c == nil || c.Chunk == nil || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}
