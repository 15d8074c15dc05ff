// Package collab defines the external collaborator interfaces the deep
// research core depends on: a chunk store, an embedding provider, and an
// LLM provider. None of these are implemented here — the research core
// consumes whatever concrete adapter wires them to internal/store,
// internal/embed, and an LLM transport (e.g. an Anthropic or OpenAI
// client), exactly as store.MetadataStore and embed.Embedder are consumed
// by internal/search today.
package collab

import (
	"context"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/store"
)

// Chunk is the research pipeline's working unit. It embeds a store.Chunk
// and layers on the annotations exploration/synthesis accumulate as a
// chunk moves through the pipeline (rerank score, boundary-expansion
// bookkeeping). Embedding rather than duplicating store.Chunk keeps the
// two representations from drifting apart.
type Chunk struct {
	*store.Chunk

	// RerankScore is the cross-encoder/compound-rerank score, set once a
	// chunk has passed through a Reranker. Zero until then.
	RerankScore float64

	// ExpandedStartLine/ExpandedEndLine record the boundary-expanded
	// range after reader.ExpandToNaturalBoundary runs; both are zero
	// until expansion happens, and re-running expansion on an already
	// expanded chunk is a no-op (idempotence is checked against these).
	ExpandedStartLine int
	ExpandedEndLine   int

	// WindowExpanded marks a chunk that went through unified search's
	// context-window expansion (neighboring chunks pulled in around a
	// hit), so later passes don't expand it again.
	WindowExpanded bool
}

// ScopeStats summarizes a search scope (a project or a subset of it) for
// budget calculation.
type ScopeStats struct {
	ChunkCount int
	FileCount  int
}

// ChunkStore is the read-side persistence contract the research core
// needs beyond plain keyword/vector search: range reads, file lookups,
// and scope introspection. A concrete implementation adapts
// store.MetadataStore plus the BM25/vector indices already wired in
// internal/search.
type ChunkStore interface {
	// SearchSemantic runs a single dense-vector query and returns the
	// top results, already joined against chunk metadata.
	SearchSemantic(ctx context.Context, query string, limit int) ([]*Chunk, error)

	// SearchRegexAsync runs a regex/keyword scan (typically backed by
	// BM25 or a literal grep) and returns matches up to limit, starting
	// at the given page offset for paginated callers.
	SearchRegexAsync(ctx context.Context, pattern string, offset, limit int) ([]*Chunk, error)

	// GetChunksInRange returns every chunk for fileID whose line range
	// intersects [startLine, endLine], used for window expansion and
	// natural-boundary expansion.
	GetChunksInRange(ctx context.Context, fileID string, startLine, endLine int) ([]*Chunk, error)

	// GetFileByPath resolves a project-relative path to its file record.
	GetFileByPath(ctx context.Context, path string) (*store.File, error)

	// GetScopeFilePaths lists every file path within the given scope
	// prefixes (empty scopes means the whole project).
	GetScopeFilePaths(ctx context.Context, scopes []string) ([]string, error)

	// GetScopeStats reports chunk/file counts for a scope, feeding the
	// budget calculator's repo-size tiering.
	GetScopeStats(ctx context.Context, scopes []string) (ScopeStats, error)

	// ReadFileContent returns the full current content of path, used by
	// natural-boundary expansion and single-pass synthesis when a file's
	// budget allows reading it whole rather than by chunk excerpt.
	ReadFileContent(ctx context.Context, path string) (string, error)
}

// EmbeddingProvider is the subset of embed.Embedder the research core
// needs, plus an optional reranking extension. Implementations that don't
// support reranking should return SupportsReranking() == false; callers
// fall back to elbow-threshold ordering on raw vector/BM25 scores.
type EmbeddingProvider interface {
	// EmbedBatch embeds a batch of texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// SupportsReranking reports whether Rerank is implemented.
	SupportsReranking() bool

	// Rerank scores each document against query, returning scores in
	// the same order as documents. Only called when SupportsReranking
	// is true.
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)

	// MaxRerankBatchSize bounds how many documents a single Rerank call
	// may receive; callers chunk larger batches accordingly.
	MaxRerankBatchSize() int
}

// JSONSchema is a recursive JSON Schema object used to force structured
// LLM output. Every nested object schema must set AdditionalProperties to
// a non-nil false pointer for providers that require closed schemas.
type JSONSchema struct {
	Type                 string                 `json:"type"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
}

// CompletionRequest parameterizes a single LLM call.
type CompletionRequest struct {
	System            string
	Prompt            string
	MaxOutputTokens   int
	Timeout           time.Duration
	// Schema, when non-nil, forces structured output matching it;
	// CompleteStructured uses this, Complete leaves it nil.
	Schema *JSONSchema
}

// LLMProvider is the synthesis/exploration LLM transport. Concrete
// adapters wrap an Anthropic or OpenAI-compatible client.
type LLMProvider interface {
	// Complete returns the model's free-form text response.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CompleteStructured returns the model's response as raw JSON bytes
	// conforming to req.Schema (req.Schema must be non-nil).
	CompleteStructured(ctx context.Context, req CompletionRequest) ([]byte, error)

	// EstimateTokens estimates the token count of text for this
	// provider's tokenizer. Callers fall back to
	// internal/research/tokens when a provider can't estimate.
	EstimateTokens(text string) int

	// SynthesisConcurrency bounds how many synthesis/gap-detection LLM
	// calls may run concurrently against this provider.
	SynthesisConcurrency() int
}
