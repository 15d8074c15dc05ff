// Package orchestrator wires the research core's components — query
// expansion, unified search, one of three exploration strategies,
// evidence-ledger construction, and single-pass or map-reduce synthesis
// — into the single entry point a caller (the MCP tool handler, the
// code-mapper pipeline) invokes per research question.
package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/amanmcp/internal/config"
	"github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/research/budget"
	"github.com/Aman-CERP/amanmcp/internal/research/citation"
	"github.com/Aman-CERP/amanmcp/internal/research/clustering"
	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/depthexploration"
	"github.com/Aman-CERP/amanmcp/internal/research/evidence"
	"github.com/Aman-CERP/amanmcp/internal/research/explore"
	"github.com/Aman-CERP/amanmcp/internal/research/gapdetection"
	"github.com/Aman-CERP/amanmcp/internal/research/progress"
	"github.com/Aman-CERP/amanmcp/internal/research/query"
	"github.com/Aman-CERP/amanmcp/internal/research/synthesis"
	"github.com/Aman-CERP/amanmcp/internal/research/tokens"
	"github.com/Aman-CERP/amanmcp/internal/research/unifiedsearch"
	"github.com/Aman-CERP/amanmcp/internal/ui"
)

// Answer is one completed research call's result: the cited answer
// body, any citation-validation warnings, the exploration stats, and
// any evidence conflicts surfaced along the way.
type Answer struct {
	Text      string
	Warnings  []int
	Stats     explore.Stats
	Conflicts []evidence.FactConflict
	// ReferencedFiles is every file path whose content fed synthesis,
	// sorted, used by callers (e.g. the code-mapper pipeline) that need
	// to track coverage across many research calls.
	ReferencedFiles []string
}

// Service orchestrates one research call end-to-end over a fixed chunk
// store, embedding provider, and LLM provider.
type Service struct {
	store    collab.ChunkStore
	llm      collab.LLMProvider
	embedder collab.EmbeddingProvider
	cfg      config.ResearchConfig

	queryService  *query.Service
	unifiedSearch *unifiedsearch.Service
	clustering    *clustering.Service
	budgetCalc    *budget.Calculator
	estimator     tokens.Estimator

	bfs      *explore.BFS
	wide     *explore.Wide
	parallel *explore.Parallel

	// bus is the progress-emission event bus (spec §9): nil until
	// SetProgressBus attaches one, in which case every phase transition
	// within Research emits to it. Producers never branch on whether a
	// consumer is actually attached.
	bus *progress.Bus
}

// SetProgressBus attaches the progress event bus Research reports phase
// transitions to. Calling it with nil (the zero value) leaves emission
// as a no-op, matching spec.md's "consumer renders (TUI or null)".
func (s *Service) SetProgressBus(bus *progress.Bus) {
	s.bus = bus
}

// emit reports a phase transition to the attached progress bus, if
// any, tagging it with the research call's correlation ID so a
// consumer can group events from concurrent calls.
func (s *Service) emit(callID string, stage ui.Stage, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(ui.ProgressEvent{Stage: stage, Message: callID + ": " + message})
}

// NewService builds a Service and the strategy instances it dispatches
// to, sharing one unified-search instance across all three.
func NewService(store collab.ChunkStore, llm collab.LLMProvider, embedder collab.EmbeddingProvider, cfg config.ResearchConfig) *Service {
	bfs := explore.NewBFS(store, llm, embedder)
	wide := explore.NewWide(store, llm, embedder)
	wide.DepthExplorationOn = cfg.DepthExplorationEnabled
	wide.GapOptions = gapdetection.Options{
		MinGaps:             cfg.MinGaps,
		MaxGaps:             cfg.MaxGaps,
		SimilarityThreshold: cfg.GapSimilarityThreshold,
		ShardTokenBudget:    cfg.ShardBudget,
	}
	wide.DepthExplorationOptions = depthExplorationOptionsFromConfig(cfg)
	parallel := explore.NewParallel(store, bfs, wide)

	calc := budget.NewCalculator()
	calc.AbsoluteInputCap = cfg.AbsoluteInputTokenCap

	return &Service{
		store:         store,
		llm:           llm,
		embedder:      embedder,
		cfg:           cfg,
		queryService:  query.NewService(llm),
		unifiedSearch: unifiedsearch.NewService(store, embedder),
		clustering:    clustering.NewService(embedder, tokens.NewTiktokenEstimator()),
		budgetCalc:    calc,
		estimator:     tokens.NewTiktokenEstimator(),
		bfs:           bfs,
		wide:          wide,
		parallel:      parallel,
	}
}

// strategyFor resolves the configured algorithm name to a concrete
// Strategy. Unrecognized names fall back to "v3" (Parallel), the widest
// and most expensive option, on the theory that an unrecognized
// algorithm should degrade toward over-coverage rather than
// under-coverage.
func (s *Service) strategyFor(algorithm string) explore.Strategy {
	switch algorithm {
	case "v1":
		return s.bfs
	case "v2":
		return s.wide
	default:
		return s.parallel
	}
}

// searchOptionsFromConfig translates the research config's unified
// search knobs into unifiedsearch.Options, leaving anything the config
// doesn't cover at unifiedsearch's own defaults.
func (s *Service) searchOptionsFromConfig() unifiedsearch.Options {
	opts := unifiedsearch.DefaultOptions()
	if s.cfg.MaxSymbols > 0 {
		opts.MaxSymbols = s.cfg.MaxSymbols
	}
	if s.cfg.RegexAugmentationRatio > 0 {
		opts.RegexAugmentationRatio = s.cfg.RegexAugmentationRatio
	}
	if s.cfg.RegexMinResults > 0 {
		opts.RegexMinResults = s.cfg.RegexMinResults
	}
	if s.cfg.RegexScanPageSize > 0 {
		opts.RegexScanPageSize = s.cfg.RegexScanPageSize
	}
	if s.cfg.InitialPageSize > 0 {
		opts.SemanticLimit = s.cfg.InitialPageSize
	}
	return opts
}

// Research runs one complete deep-research pass over rootQuery, scoped
// to scopes (empty means the whole project): query expansion, unified
// search, the configured exploration strategy, evidence-ledger
// construction with LLM fact extraction, and single-pass or map-reduce
// synthesis depending on how the filtered content compares to the
// scope's synthesis budget.
func (s *Service) Research(ctx context.Context, rootQuery string, scopes []string) (*Answer, error) {
	callID := uuid.NewString()
	slog.Debug("research_call_start", slog.String("research_call_id", callID), slog.String("query", rootQuery))

	if rootQuery == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "research: root query is empty", nil)
	}
	if s.embedder == nil || !s.embedder.SupportsReranking() {
		return nil, errors.New(errors.ErrCodeResearchRerankRequired, "research: code research requires a provider with reranking support", nil)
	}

	queries := []string{rootQuery}
	if s.cfg.QueryExpansionEnabled {
		queries = s.queryService.Expand(ctx, rootQuery, s.cfg.NumExpandedQueries)
	}

	s.emit(callID, ui.StageResearchSearch, "unified search")
	initial, err := s.unifiedSearch.Search(ctx, queries, s.searchOptionsFromConfig())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSearchFailed, err)
	}
	if s.cfg.WindowExpansionEnabled && len(initial) > 0 {
		windowLines := s.cfg.WindowExpansionLines
		if windowLines <= 0 {
			windowLines = unifiedsearch.DefaultWindowLines
		}
		if expanded, werr := unifiedsearch.ExpandChunkWindows(ctx, s.store, initial, windowLines); werr == nil {
			initial = expanded
		}
	}
	if len(initial) == 0 {
		return nil, errors.New(errors.ErrCodeResearchNoResults, "research: no results for root query", nil)
	}

	s.emit(callID, ui.StageResearchExplore, "strategy "+s.cfg.Algorithm)
	strategy := s.strategyFor(s.cfg.Algorithm)
	filtered, stats, fileContents, err := strategy.Explore(ctx, rootQuery, initial, s.cfg.RelevanceThreshold, "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSearchFailed, err)
	}
	if len(filtered) > 0 && len(fileContents) == 0 {
		return nil, errors.New(errors.ErrCodeResearchDataLoss, "research: chunks survived filtering but no file content was read", nil)
	}

	ledger := evidence.FromChunks(filtered)

	scopeStats, err := s.store.GetScopeStats(ctx, scopes)
	if err != nil {
		scopeStats = collab.ScopeStats{ChunkCount: len(filtered)}
	}
	budgets := s.budgetCalc.CalculateSynthesisBudgets(budget.RepoStats{ChunkCount: scopeStats.ChunkCount})

	totalTokens := 0
	for _, content := range fileContents {
		totalTokens += s.estimator.Estimate(content)
	}

	var result synthesis.Result
	synth := synthesis.NewService(s.llm)

	if totalTokens <= budgets.InputTokens || len(fileContents) <= 1 {
		for _, facts := range extractFacts(ctx, s.llm, rootQuery, 0, joinFileContents(fileContents)) {
			facts.CreatedAt = time.Now()
			ledger.AddFact(facts)
		}
		ledger.DetectConflicts()

		excerpts := buildExcerpts(fileContents, filtered)
		refMap := citation.BuildReferenceMap(sortedFileOrder(fileContents))
		s.emit(callID, ui.StageResearchSynthesize, "single-pass synthesis")
		result, err = synth.SinglePass(ctx, rootQuery, excerpts, ledger, refMap)
	} else {
		nClusters := int(math.Ceil(float64(totalTokens) / float64(budgets.InputTokens)))
		if nClusters < 1 {
			nClusters = 1
		}
		s.emit(callID, ui.StageResearchCluster, "map-reduce synthesis")
		clusters, cerr := s.clustering.ClusterFiles(ctx, fileContents, nClusters)
		if cerr != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, cerr)
		}

		for _, cl := range clusters {
			var clusterContent string
			for _, p := range cl.FilePaths {
				clusterContent += fileContents[p] + "\n"
			}
			for _, f := range extractFacts(ctx, s.llm, rootQuery, cl.ClusterID, clusterContent) {
				f.CreatedAt = time.Now()
				ledger.AddFact(f)
			}
		}
		ledger.DetectConflicts()

		excerptsByFile := buildExcerptsByFile(fileContents, filtered)
		s.emit(callID, ui.StageResearchSynthesize, "map-reduce synthesis")
		result, err = synth.MapReduce(ctx, rootQuery, clusters, excerptsByFile, ledger, totalTokens)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResearchLLMEmpty, err)
	}

	s.emit(callID, ui.StageResearchComplete, "done")
	slog.Debug("research_call_complete", slog.String("research_call_id", callID), slog.Int("files_referenced", len(fileContents)))

	return &Answer{
		Text:            result.Answer,
		Warnings:        result.Warnings,
		Stats:           stats,
		Conflicts:       ledger.Conflicts(),
		ReferencedFiles: sortedFileOrder(fileContents),
	}, nil
}

func joinFileContents(fileContents map[string]string) string {
	var out string
	for _, p := range sortedFileOrder(fileContents) {
		out += fileContents[p] + "\n"
	}
	return out
}

// depthExplorationOptionsFromConfig translates the research config's
// depth-exploration knobs into the options Wide passes to every depth
// exploration call.
func depthExplorationOptionsFromConfig(cfg config.ResearchConfig) depthexploration.Options {
	opts := depthexploration.DefaultOptions()
	if cfg.MaxExplorationFiles > 0 {
		opts.MaxExplorationFiles = cfg.MaxExplorationFiles
	}
	if cfg.ExplorationQueriesPerFile > 0 {
		opts.QueriesPerFile = cfg.ExplorationQueriesPerFile
	}
	return opts
}
