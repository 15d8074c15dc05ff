// Package researchtest provides deterministic fakes for the three
// external collaborators (collab.ChunkStore, collab.EmbeddingProvider,
// collab.LLMProvider) so research-core packages can be tested without a
// real index, embedder, or LLM.
package researchtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

// FakeChunkStore is an in-memory collab.ChunkStore backed by a flat
// chunk list, with a trivial "contains substring" semantic search and a
// real regexp-based regex search so tests can exercise unified search's
// unification logic without a real index.
type FakeChunkStore struct {
	Chunks      []*collab.Chunk
	Files       map[string]*store.File
	FileContent map[string]string
}

// NewFakeChunkStore builds a store from chunks, deriving FileID from
// FilePath if unset.
func NewFakeChunkStore(chunks []*collab.Chunk) *FakeChunkStore {
	for _, c := range chunks {
		if c.FileID == "" {
			c.FileID = c.FilePath
		}
	}
	return &FakeChunkStore{Chunks: chunks, Files: make(map[string]*store.File)}
}

// SearchSemantic returns every chunk whose content contains query,
// case-insensitively, up to limit.
func (f *FakeChunkStore) SearchSemantic(_ context.Context, query string, limit int) ([]*collab.Chunk, error) {
	q := strings.ToLower(query)
	var out []*collab.Chunk
	for _, c := range f.Chunks {
		if strings.Contains(strings.ToLower(c.Content), q) {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// SearchRegexAsync runs pattern against every chunk's content, paginating
// over the match set starting at offset.
func (f *FakeChunkStore) SearchRegexAsync(_ context.Context, pattern string, offset, limit int) ([]*collab.Chunk, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var matches []*collab.Chunk
	for _, c := range f.Chunks {
		if re.MatchString(c.Content) {
			matches = append(matches, c)
		}
	}
	if offset >= len(matches) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

// GetChunksInRange returns every chunk for fileID overlapping
// [startLine, endLine].
func (f *FakeChunkStore) GetChunksInRange(_ context.Context, fileID string, startLine, endLine int) ([]*collab.Chunk, error) {
	var out []*collab.Chunk
	for _, c := range f.Chunks {
		if c.FileID != fileID {
			continue
		}
		if c.EndLine < startLine || c.StartLine > endLine {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// GetFileByPath returns the registered File record for path, if any.
func (f *FakeChunkStore) GetFileByPath(_ context.Context, path string) (*store.File, error) {
	if file, ok := f.Files[path]; ok {
		return file, nil
	}
	return nil, nil
}

// GetScopeFilePaths returns every distinct file path under any of
// scopes (or all files when scopes is empty).
func (f *FakeChunkStore) GetScopeFilePaths(_ context.Context, scopes []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, c := range f.Chunks {
		if len(scopes) == 0 || matchesAnyScope(c.FilePath, scopes) {
			seen[c.FilePath] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// GetScopeStats reports chunk/file counts within scopes.
func (f *FakeChunkStore) GetScopeStats(ctx context.Context, scopes []string) (collab.ScopeStats, error) {
	paths, err := f.GetScopeFilePaths(ctx, scopes)
	if err != nil {
		return collab.ScopeStats{}, err
	}
	fileSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		fileSet[p] = true
	}
	count := 0
	for _, c := range f.Chunks {
		if fileSet[c.FilePath] {
			count++
		}
	}
	return collab.ScopeStats{ChunkCount: count, FileCount: len(paths)}, nil
}

// ReadFileContent returns the registered content for path, or the
// concatenation of every chunk belonging to that path if no content was
// registered directly via FileContent.
func (f *FakeChunkStore) ReadFileContent(_ context.Context, path string) (string, error) {
	if content, ok := f.FileContent[path]; ok {
		return content, nil
	}
	var sb strings.Builder
	for _, c := range f.Chunks {
		if c.FilePath == path {
			sb.WriteString(c.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func matchesAnyScope(path string, scopes []string) bool {
	for _, s := range scopes {
		if strings.HasPrefix(path, s) {
			return true
		}
	}
	return false
}

// FakeEmbeddingProvider returns deterministic hash-derived vectors so
// clustering/reranking tests are reproducible without a real model.
type FakeEmbeddingProvider struct {
	Dim      int
	Reranker bool
}

// NewFakeEmbeddingProvider returns a provider with an 8-dimensional
// embedding space.
func NewFakeEmbeddingProvider() *FakeEmbeddingProvider {
	return &FakeEmbeddingProvider{Dim: 8}
}

// EmbedBatch hashes each text into a deterministic unit vector.
func (f *FakeEmbeddingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, f.Dim)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, dim)
	for i := 0; i < dim; i++ {
		v[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return v
}

// SupportsReranking reports whether Reranker was enabled.
func (f *FakeEmbeddingProvider) SupportsReranking() bool { return f.Reranker }

// Rerank scores documents by how many words they share with query.
func (f *FakeEmbeddingProvider) Rerank(_ context.Context, query string, documents []string) ([]float64, error) {
	qWords := strings.Fields(strings.ToLower(query))
	scores := make([]float64, len(documents))
	for i, d := range documents {
		dl := strings.ToLower(d)
		score := 0.0
		for _, w := range qWords {
			if strings.Contains(dl, w) {
				score++
			}
		}
		scores[i] = score
	}
	return scores, nil
}

// MaxRerankBatchSize returns a generous fixed batch size.
func (f *FakeEmbeddingProvider) MaxRerankBatchSize() int { return 64 }

// FakeLLMProvider returns canned or rule-based responses; Responses, if
// set, is consumed in FIFO order by Complete/CompleteStructured calls so
// a test can script multi-call sequences.
type FakeLLMProvider struct {
	Responses    []string
	Structured   []any
	callIdx      int
	structIdx    int
	Concurrency  int
}

// NewFakeLLMProvider returns a provider with concurrency 4.
func NewFakeLLMProvider() *FakeLLMProvider {
	return &FakeLLMProvider{Concurrency: 4}
}

// Complete returns the next scripted response, or req.Prompt echoed back
// if none remain.
func (f *FakeLLMProvider) Complete(_ context.Context, req collab.CompletionRequest) (string, error) {
	if f.callIdx < len(f.Responses) {
		r := f.Responses[f.callIdx]
		f.callIdx++
		return r, nil
	}
	return "echo: " + req.Prompt, nil
}

// CompleteStructured marshals the next scripted structured response.
func (f *FakeLLMProvider) CompleteStructured(_ context.Context, req collab.CompletionRequest) ([]byte, error) {
	if f.structIdx < len(f.Structured) {
		v := f.Structured[f.structIdx]
		f.structIdx++
		return json.Marshal(v)
	}
	return []byte("{}"), nil
}

// EstimateTokens approximates tokens as len(text)/4.
func (f *FakeLLMProvider) EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// SynthesisConcurrency returns the configured concurrency.
func (f *FakeLLMProvider) SynthesisConcurrency() int {
	if f.Concurrency <= 0 {
		return 4
	}
	return f.Concurrency
}

// NewChunk builds a collab.Chunk for tests, deriving an ID from the file
// path and start line the way the real index does.
func NewChunk(filePath, content string, startLine, endLine int) *collab.Chunk {
	id := sha256.Sum256([]byte(filePath + ":" + content))
	return &collab.Chunk{
		Chunk: &store.Chunk{
			ID:        hex.EncodeToString(id[:])[:16],
			FileID:    filePath,
			FilePath:  filePath,
			Content:   content,
			StartLine: startLine,
			EndLine:   endLine,
		},
	}
}
