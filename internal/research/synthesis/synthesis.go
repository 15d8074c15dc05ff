// Package synthesis turns filtered, read chunks plus an evidence ledger
// into a cited final answer: a single-pass synthesis call for small
// enough input, or a map-reduce pass (one synthesis per cluster, then a
// reducer call) when the input was clustered.
package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanmcp/internal/research/budget"
	"github.com/Aman-CERP/amanmcp/internal/research/citation"
	"github.com/Aman-CERP/amanmcp/internal/research/clustering"
	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/evidence"
)

// minAnswerLength rejects synthesis output shorter than this as an LLM
// failure (empty/truncated response), never a legitimately short answer.
const minAnswerLength = 100

// singlePassTimeout and outputTokenBudget mirror the fixed single-pass
// synthesis budget from the spec: 30k output tokens, 10 minutes.
const (
	singlePassTimeout = 10 * time.Minute
	outputTokenBudget = 30000
)

// ErrAnswerTooShort is returned when the synthesized answer is shorter
// than minAnswerLength characters.
var ErrAnswerTooShort = fmt.Errorf("synthesis: answer shorter than %d characters, treated as LLM failure", minAnswerLength)

// Result is a completed synthesis: the cited answer body plus the
// sources footer appended outside the LLM's own token budget, and any
// citation-validation warnings (never failures).
type Result struct {
	Answer   string
	Warnings []int
}

// Service synthesizes answers from evidence and filtered chunks.
type Service struct {
	llm   collab.LLMProvider
	calc  budget.Calculator
}

// NewService builds a synthesis Service.
func NewService(llm collab.LLMProvider) *Service {
	return &Service{llm: llm}
}

// ChunkExcerpt is one piece of file/chunk content to splice into a
// synthesis prompt, already expanded to its natural boundary by the
// caller.
type ChunkExcerpt struct {
	FilePath string
	Content  string
}

// SinglePass builds one synthesis prompt containing the reference table,
// the evidence ledger's rendered context, and excerpts, then calls the
// synthesis LLM once.
func (s *Service) SinglePass(ctx context.Context, rootQuery string, excerpts []ChunkExcerpt, ledger *evidence.Ledger, refMap *citation.ReferenceMap) (Result, error) {
	prompt := buildPrompt(rootQuery, excerpts, ledger, refMap)

	raw, err := s.llm.Complete(ctx, collab.CompletionRequest{
		Prompt:          prompt,
		MaxOutputTokens: outputTokenBudget,
		Timeout:         singlePassTimeout,
	})
	if err != nil {
		return Result{}, err
	}
	if len(strings.TrimSpace(raw)) < minAnswerLength {
		return Result{}, ErrAnswerTooShort
	}

	warnings := citation.ValidateCitations(raw, refMap)
	answer := raw + citation.BuildSourcesFooter(refMap)
	answer = ledger.InsertIntoReport(answer)
	return Result{Answer: answer, Warnings: warnings}, nil
}

// halfTargetOutputTokens caps a single cluster's output budget at half
// the fixed single-pass target, so clusters combining in the reduce step
// can't individually consume the whole reducer's effective context.
const halfTargetOutputTokens = outputTokenBudget / 2 // 15,000 tokens

// minClusterOutputTokens floors a cluster's proportional output budget.
const minClusterOutputTokens = 5000

// MapReduce synthesizes each cluster independently (bounded by the
// LLM provider's advertised synthesis concurrency), remaps cluster-local
// citations to a global reference map, then calls the reducer LLM with
// the combined summaries.
func (s *Service) MapReduce(ctx context.Context, rootQuery string, clusters []clustering.ClusterGroup, excerptsByFile map[string][]ChunkExcerpt, ledger *evidence.Ledger, totalInputTokens int) (Result, error) {
	if len(clusters) == 0 {
		return Result{}, fmt.Errorf("synthesis: map-reduce requires at least one cluster")
	}

	allFiles := make(map[string]bool)
	for _, cl := range clusters {
		for _, f := range cl.FilePaths {
			allFiles[f] = true
		}
	}
	globalMap := citation.BuildReferenceMap(sortedKeys(allFiles))

	concurrency := s.llm.SynthesisConcurrency()
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	summaries := make([]string, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	for i, cl := range clusters {
		i, cl := i, cl
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			localMap := citation.BuildReferenceMap(cl.FilePaths)
			var excerpts []ChunkExcerpt
			for _, f := range cl.FilePaths {
				excerpts = append(excerpts, excerptsByFile[f]...)
			}

			outputBudget := clusterOutputBudget(cl.TotalTokens, totalInputTokens)
			prompt := buildClusterPrompt(rootQuery, excerpts, ledger, localMap)
			raw, err := s.llm.Complete(gctx, collab.CompletionRequest{
				Prompt:          prompt,
				MaxOutputTokens: outputBudget,
				Timeout:         singlePassTimeout,
			})
			if err != nil {
				return nil // a failed cluster degrades the reduce input, doesn't fail the phase
			}

			remapped := citation.RemapClusterCitations(raw, localMap, globalMap)
			summaries[i] = remapped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	reducePrompt := buildReducePrompt(rootQuery, summaries, ledger, globalMap)
	raw, err := s.llm.Complete(ctx, collab.CompletionRequest{
		Prompt:          reducePrompt,
		MaxOutputTokens: outputTokenBudget,
		Timeout:         singlePassTimeout,
	})
	if err != nil {
		return Result{}, err
	}
	if len(strings.TrimSpace(raw)) < minAnswerLength {
		return Result{}, ErrAnswerTooShort
	}

	warnings := citation.ValidateCitations(raw, globalMap)
	answer := raw + citation.BuildSourcesFooter(globalMap)
	answer = ledger.InsertIntoReport(answer)
	return Result{Answer: answer, Warnings: warnings}, nil
}

func clusterOutputBudget(clusterTokens, totalInputTokens int) int {
	proportion := 1.0
	if totalInputTokens > 0 {
		proportion = float64(clusterTokens) / float64(totalInputTokens)
	}
	proportional := int(float64(totalInputTokens) * proportion)
	if proportional < minClusterOutputTokens {
		proportional = minClusterOutputTokens
	}
	if proportional > halfTargetOutputTokens {
		proportional = halfTargetOutputTokens
	}
	return proportional
}

func buildPrompt(rootQuery string, excerpts []ChunkExcerpt, ledger *evidence.Ledger, refMap *citation.ReferenceMap) string {
	var sb strings.Builder
	sb.WriteString("Root question: ")
	sb.WriteString(rootQuery)
	sb.WriteString("\n\n")
	sb.WriteString(refMap.RenderTable())
	sb.WriteString("\n\n")
	sb.WriteString(ledger.Render(evidence.TierCompact))
	sb.WriteString("\n\n")
	for _, e := range excerpts {
		fmt.Fprintf(&sb, "### %s\n%s\n\n", e.FilePath, e.Content)
	}
	sb.WriteString("\nAnswer the root question, citing files as [N] using the reference table above.")
	return sb.String()
}

func buildClusterPrompt(rootQuery string, excerpts []ChunkExcerpt, ledger *evidence.Ledger, localMap *citation.ReferenceMap) string {
	var sb strings.Builder
	sb.WriteString("Root question: ")
	sb.WriteString(rootQuery)
	sb.WriteString("\n\nSummarize this cluster's relevant content, citing files as [N] using this cluster's local reference table.\n\n")
	sb.WriteString(localMap.RenderTable())
	sb.WriteString("\n\n")
	sb.WriteString(ledger.Render(evidence.TierIndexed))
	sb.WriteString("\n\n")
	for _, e := range excerpts {
		fmt.Fprintf(&sb, "### %s\n%s\n\n", e.FilePath, e.Content)
	}
	return sb.String()
}

func buildReducePrompt(rootQuery string, summaries []string, ledger *evidence.Ledger, globalMap *citation.ReferenceMap) string {
	var sb strings.Builder
	sb.WriteString("Root question: ")
	sb.WriteString(rootQuery)
	sb.WriteString("\n\nIntegrate the following cluster summaries into one coherent, cited answer. Citations already use the global reference numbers below.\n\n")
	sb.WriteString(globalMap.RenderTable())
	sb.WriteString("\n\n")
	for i, sum := range summaries {
		if sum == "" {
			continue
		}
		fmt.Fprintf(&sb, "## Cluster %d\n%s\n\n", i, sum)
	}
	sb.WriteString(ledger.FormatProgressTable())
	return sb.String()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
