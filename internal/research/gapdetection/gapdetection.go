// Package gapdetection finds the aspects of a root query that the
// coverage gathered so far doesn't answer. It shards covered content by
// token budget (clustering first when the content is large enough that
// a naive pack would split related files), asks an LLM for gap
// candidates per shard in parallel, unifies near-duplicate candidates
// across shards by embedding similarity, scores the unified gaps by
// vote count and confidence, and elbow-selects how many to actually
// fill.
package gapdetection

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanmcp/internal/research/clustering"
	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/elbow"
	"github.com/Aman-CERP/amanmcp/internal/research/tokens"
)

// clusterSkipTokens is the total-content threshold above which shards are
// built from clustered files (so a shard doesn't split a cohesive group
// of related files) rather than a flat greedy pack.
const clusterSkipTokens = 50_000

// defaultShardTokenBudget targets this many tokens per shard when
// greedily packing files into shards.
const defaultShardTokenBudget = 40_000

// Options configures gap detection, unification, and selection.
type Options struct {
	// MinGaps and MaxGaps bound how many unified gaps ElbowSelect keeps.
	MinGaps int
	MaxGaps int
	// SimilarityThreshold is the cosine-similarity floor for two gap
	// candidates to be unified into the same gap.
	SimilarityThreshold float64
	// ShardTokenBudget overrides defaultShardTokenBudget when positive.
	ShardTokenBudget int
}

// DefaultOptions mirrors the research config's gap-detection defaults.
func DefaultOptions() Options {
	return Options{MinGaps: 0, MaxGaps: 5, SimilarityThreshold: 0.85, ShardTokenBudget: defaultShardTokenBudget}
}

func boolPtr(b bool) *bool { return &b }

// gapSchema forces one LLM gap-detection call into a flat list of
// candidate queries, each with a rationale and a confidence in [0,1].
var gapSchema = &collab.JSONSchema{
	Type: "object",
	Properties: map[string]*collab.JSONSchema{
		"gaps": {
			Type: "array",
			Items: &collab.JSONSchema{
				Type: "object",
				Properties: map[string]*collab.JSONSchema{
					"query":      {Type: "string"},
					"rationale":  {Type: "string"},
					"confidence": {Type: "number"},
				},
				Required:             []string{"query", "rationale", "confidence"},
				AdditionalProperties: boolPtr(false),
			},
		},
	},
	Required:             []string{"gaps"},
	AdditionalProperties: boolPtr(false),
}

type gapResult struct {
	Gaps []struct {
		Query      string  `json:"query"`
		Rationale  string  `json:"rationale"`
		Confidence float64 `json:"confidence"`
	} `json:"gaps"`
}

// unifySchema forces the per-cluster unification call into one merged
// query string describing the common gap a cluster of near-duplicate
// candidates all point at.
var unifySchema = &collab.JSONSchema{
	Type: "object",
	Properties: map[string]*collab.JSONSchema{
		"query": {Type: "string"},
	},
	Required:             []string{"query"},
	AdditionalProperties: boolPtr(false),
}

type unifyResult struct {
	Query string `json:"query"`
}

// GapCandidate is one shard's LLM-proposed unanswered aspect of the root
// query.
type GapCandidate struct {
	Query       string
	Rationale   string
	Confidence  float64
	SourceShard int
}

// UnifiedGap merges near-duplicate candidates (possibly from different
// shards) proposing the same underlying gap.
type UnifiedGap struct {
	Query         string
	Sources       []GapCandidate
	VoteCount     int
	AvgConfidence float64
	Score         float64
}

// Shard is one token-bounded slice of covered content handed to a single
// gap-detection LLM call.
type Shard struct {
	Index   int
	Summary string
}

// Service detects, unifies, and selects gaps in research coverage.
type Service struct {
	llm       collab.LLMProvider
	embedder  collab.EmbeddingProvider
	estimator tokens.Estimator
}

// NewService builds a Service, using a tiktoken-backed token Estimator
// for shard budgeting.
func NewService(llm collab.LLMProvider, embedder collab.EmbeddingProvider) *Service {
	return &Service{llm: llm, embedder: embedder, estimator: tokens.NewTiktokenEstimator()}
}

// FileSummary is one file's worth of covered content, used to build
// token-bounded shards.
type FileSummary struct {
	FilePath string
	Content  string
}

// BuildShards splits files into token-bounded shards. When the total
// content exceeds clusterSkipTokens, files are first grouped by
// embedding similarity via k-means (k = ceil(total/shardBudget), capped
// at len(files)) so a shard doesn't split a cohesive set of related
// files; otherwise files are greedily packed in order up to the shard
// budget.
func (s *Service) BuildShards(ctx context.Context, files []FileSummary, opts Options) []Shard {
	budget := opts.ShardTokenBudget
	if budget <= 0 {
		budget = defaultShardTokenBudget
	}
	if len(files) == 0 {
		return nil
	}

	totalTokens := 0
	fileTokens := make([]int, len(files))
	for i, f := range files {
		fileTokens[i] = s.estimator.Estimate(f.Content)
		totalTokens += fileTokens[i]
	}

	if totalTokens <= clusterSkipTokens || s.embedder == nil {
		return packShards(files, fileTokens, budget)
	}

	contents := make([]string, len(files))
	for i, f := range files {
		contents[i] = f.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil || len(vectors) != len(files) {
		return packShards(files, fileTokens, budget)
	}

	k := int(math.Ceil(float64(totalTokens) / float64(budget)))
	if k < 1 {
		k = 1
	}
	if k > len(files) {
		k = len(files)
	}
	labels := clustering.KMeans(vectors, k)

	byLabel := make(map[int][]int)
	var order []int
	for i, l := range labels {
		if _, ok := byLabel[l]; !ok {
			order = append(order, l)
		}
		byLabel[l] = append(byLabel[l], i)
	}
	sort.Ints(order)

	shards := make([]Shard, 0, len(order))
	for idx, l := range order {
		var sb []FileSummary
		for _, i := range byLabel[l] {
			sb = append(sb, files[i])
		}
		shards = append(shards, Shard{Index: idx, Summary: summarizeFiles(sb)})
	}
	return shards
}

func packShards(files []FileSummary, fileTokens []int, budget int) []Shard {
	var shards []Shard
	var cur []FileSummary
	curTokens := 0
	flush := func() {
		if len(cur) == 0 {
			return
		}
		shards = append(shards, Shard{Index: len(shards), Summary: summarizeFiles(cur)})
		cur = nil
		curTokens = 0
	}
	for i, f := range files {
		if curTokens > 0 && curTokens+fileTokens[i] > budget {
			flush()
		}
		cur = append(cur, f)
		curTokens += fileTokens[i]
	}
	flush()
	if len(shards) == 0 {
		shards = append(shards, Shard{Index: 0, Summary: summarizeFiles(files)})
	}
	return shards
}

func summarizeFiles(files []FileSummary) string {
	var out string
	for _, f := range files {
		out += "### " + f.FilePath + "\n" + f.Content + "\n\n"
	}
	return out
}

// DetectGaps runs one gap-detection LLM call per shard in parallel
// (bounded by the LLM provider's advertised synthesis concurrency),
// tagging each returned candidate with its source shard index. Per-shard
// failures are tolerated; the phase only returns an error if the parent
// context itself was cancelled.
func (s *Service) DetectGaps(ctx context.Context, rootQuery string, shards []Shard) ([]GapCandidate, error) {
	if s.llm == nil || len(shards) == 0 {
		return nil, nil
	}

	concurrency := s.llm.SynthesisConcurrency()
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	var candidates []GapCandidate

	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		shard := shard
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			prompt := "Root question: " + rootQuery +
				"\n\nGiven the following covered content, list the aspects of the root question that remain unanswered, each as a standalone search query.\n\n" +
				shard.Summary

			raw, err := s.llm.CompleteStructured(gctx, collab.CompletionRequest{
				Prompt:          prompt,
				Schema:          gapSchema,
				MaxOutputTokens: 2048,
			})
			if err != nil {
				return nil // tolerate per-shard failures
			}

			var parsed gapResult
			if err := json.Unmarshal(raw, &parsed); err != nil {
				return nil
			}

			mu.Lock()
			for _, gp := range parsed.Gaps {
				candidates = append(candidates, GapCandidate{
					Query:       gp.Query,
					Rationale:   gp.Rationale,
					Confidence:  gp.Confidence,
					SourceShard: shard.Index,
				})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// UnifyGaps groups near-duplicate candidates by embedding cosine
// similarity (single-linkage: a candidate joins the first cluster any of
// whose members it's similar enough to), refines multi-member clusters
// into one merged query via an LLM call, and computes each unified
// gap's vote count, average confidence, and score.
//
// score = vote_count * avg_confidence * (1 + 0.3*shard_bonus)
// shard_bonus = 1 / (1 + min_source_shard)
//
// A lower minimum source shard (the gap was already visible in the
// earliest shard) nudges the score up slightly; repeated discovery
// across shards (vote_count) and confidence remain the dominant terms.
func (s *Service) UnifyGaps(ctx context.Context, candidates []GapCandidate, opts Options) []UnifiedGap {
	if len(candidates) == 0 {
		return nil
	}
	if opts.SimilarityThreshold <= 0 {
		opts = DefaultOptions()
	}

	clusters := clusterCandidates(ctx, s.embedder, candidates, opts.SimilarityThreshold)

	unified := make([]UnifiedGap, 0, len(clusters))
	for _, members := range clusters {
		query := members[0].Query
		if len(members) > 1 && s.llm != nil {
			if q := s.refineQuery(ctx, members); q != "" {
				query = q
			}
		}

		confSum := 0.0
		minShard := members[0].SourceShard
		for _, m := range members {
			confSum += m.Confidence
			if m.SourceShard < minShard {
				minShard = m.SourceShard
			}
		}
		voteCount := len(members)
		avgConfidence := confSum / float64(voteCount)
		shardBonus := 1.0 / (1.0 + float64(minShard))
		score := float64(voteCount) * avgConfidence * (1 + 0.3*shardBonus)

		unified = append(unified, UnifiedGap{
			Query:         query,
			Sources:       members,
			VoteCount:     voteCount,
			AvgConfidence: avgConfidence,
			Score:         score,
		})
	}

	sort.Slice(unified, func(i, j int) bool { return unified[i].Score > unified[j].Score })
	return unified
}

func (s *Service) refineQuery(ctx context.Context, members []GapCandidate) string {
	prompt := "The following search queries all point at the same underlying gap in coverage. Merge them into one concise search query.\n\n"
	for _, m := range members {
		prompt += "- " + m.Query + " (" + m.Rationale + ")\n"
	}

	raw, err := s.llm.CompleteStructured(ctx, collab.CompletionRequest{
		Prompt:          prompt,
		Schema:          unifySchema,
		MaxOutputTokens: 256,
	})
	if err != nil {
		return ""
	}
	var parsed unifyResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	return parsed.Query
}

func clusterCandidates(ctx context.Context, embedder collab.EmbeddingProvider, candidates []GapCandidate, threshold float64) [][]GapCandidate {
	if embedder == nil {
		out := make([][]GapCandidate, len(candidates))
		for i, c := range candidates {
			out[i] = []GapCandidate{c}
		}
		return out
	}

	queries := make([]string, len(candidates))
	for i, c := range candidates {
		queries[i] = c.Query
	}
	vectors, err := embedder.EmbedBatch(ctx, queries)
	if err != nil || len(vectors) != len(candidates) {
		out := make([][]GapCandidate, len(candidates))
		for i, c := range candidates {
			out[i] = []GapCandidate{c}
		}
		return out
	}

	var clusterVectors [][]float32
	var clusters [][]GapCandidate

	for i, v := range vectors {
		best := -1
		bestSim := -1.0
		for ci, cv := range clusterVectors {
			sim := cosineSimilarity(v, cv)
			if sim > bestSim {
				bestSim = sim
				best = ci
			}
		}
		if best >= 0 && bestSim >= threshold {
			clusters[best] = append(clusters[best], candidates[i])
		} else {
			clusterVectors = append(clusterVectors, v)
			clusters = append(clusters, []GapCandidate{candidates[i]})
		}
	}
	return clusters
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ElbowSelect picks how many of the score-sorted unified gaps to keep.
// It prefers the Kneedle elbow index when that falls within
// [MinGaps,MaxGaps]; otherwise it falls back to keeping every gap
// scoring at least half the top gap's score. The result is always
// clamped to [MinGaps,MaxGaps] and to the available gap count.
func ElbowSelect(gaps []UnifiedGap, opts Options) []UnifiedGap {
	if len(gaps) == 0 {
		return nil
	}
	maxGaps := opts.MaxGaps
	if maxGaps <= 0 {
		maxGaps = len(gaps)
	}
	minGaps := opts.MinGaps
	if minGaps < 0 {
		minGaps = 0
	}

	scores := make([]float64, len(gaps))
	for i, g := range gaps {
		scores[i] = g.Score
	}

	keep := halfOfTopFallback(scores)
	if idx := elbow.FindKneedle(scores); idx >= 0 {
		candidate := idx + 1
		if candidate >= minGaps && candidate <= maxGaps {
			keep = candidate
		}
	}

	if keep < minGaps {
		keep = minGaps
	}
	if keep > maxGaps {
		keep = maxGaps
	}
	if keep > len(gaps) {
		keep = len(gaps)
	}
	if keep < 0 {
		keep = 0
	}
	return gaps[:keep]
}

func halfOfTopFallback(scores []float64) int {
	if len(scores) == 0 {
		return 0
	}
	top := scores[0]
	n := 0
	for _, s := range scores {
		if s >= 0.5*top {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}
