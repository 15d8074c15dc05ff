package codemapper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Aman-CERP/amanmcp/internal/config"
	"github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/orchestrator"
	"github.com/Aman-CERP/amanmcp/internal/research/progress"
	"github.com/Aman-CERP/amanmcp/internal/ui"
)

// operationalSectionPreamble/architecturalSectionPreamble frame each
// PoI's deep-research call so the synthesized section reads as
// documentation rather than a raw Q&A answer.
const (
	operationalSectionPreamble = "Expand the following OPERATIONAL point of interest into a detailed, " +
		"operator/runbook-style documentation section. Focus on step-by-step workflows, setup, configuration, " +
		"common recipes, and troubleshooting, grounded in the code.\n\nPoint of interest:\n"
	architecturalSectionPreamble = "Expand the following ARCHITECTURAL point of interest into a detailed, " +
		"agent-facing documentation section. Explain how the relevant code and configuration implement this " +
		"behavior, including responsibilities, key types, important flows, and constraints.\n\nPoint of interest:\n"
)

// Service runs the code-mapper pipeline over one scope at a time,
// delegating each point of interest to its own orchestrator.Service.Research
// call.
type Service struct {
	store    collab.ChunkStore
	llm      collab.LLMProvider
	research *orchestrator.Service
	cfg      config.CodeMapperConfig

	// bus is the progress-emission event bus (spec §9): nil until
	// SetProgressBus attaches one, in which case every PoI job emits a
	// StageCodeMapperPOI event tagged with its own correlation ID.
	bus *progress.Bus
}

// NewService builds a code-mapper Service sharing the given research
// orchestrator for every PoI call.
func NewService(store collab.ChunkStore, llm collab.LLMProvider, research *orchestrator.Service, cfg config.CodeMapperConfig) *Service {
	return &Service{
		store:    store,
		llm:      llm,
		research: research,
		cfg:      cfg,
	}
}

// SetProgressBus attaches the progress event bus PoI jobs report to, and
// forwards it to the shared research orchestrator so phase transitions
// inside each PoI's Research call report to the same consumer.
func (s *Service) SetProgressBus(bus *progress.Bus) {
	s.bus = bus
	if s.research != nil {
		s.research.SetProgressBus(bus)
	}
}

// Run plans points of interest for scopeLabel (a scope's file paths,
// already resolved by the caller) and expands every one into its own
// Markdown section through the PoI work queue, returning the assembled
// documents.
func (s *Service) Run(ctx context.Context, scopeLabel string, scopeFiles []string, meta Metadata) (*Result, error) {
	t := tierFor(s.cfg.Comprehensiveness)

	scopeCap := t.scopeFileCap
	if s.cfg.MaxScopeFiles > 0 && s.cfg.MaxScopeFiles < scopeCap {
		scopeCap = s.cfg.MaxScopeFiles
	}
	plannerFiles := scopeFiles
	if scopeCap > 0 && len(plannerFiles) > scopeCap {
		plannerFiles = plannerFiles[:scopeCap]
	}

	prompt := buildScopePrompt(ctx, s.store, scopeLabel, plannerFiles, t)
	pois, err := plan(ctx, s.llm, prompt, t)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodeMapperNoPoints, err)
	}
	if len(pois) == 0 {
		return nil, errors.New(errors.ErrCodeCodeMapperNoPoints, "code mapper: HyDE planning produced no points of interest", nil)
	}

	workers := resolveJobs(s.cfg.Jobs, len(pois))

	referenced := make(map[string]bool)
	var referencedMu sync.Mutex

	outcomes, err := runPOIQueue(ctx, workers, pois, func(ctx context.Context, index int, poi POI) (string, error) {
		section, files, err := s.researchPOI(ctx, scopeLabel, index, len(pois), poi)
		if err != nil {
			return "", err
		}
		referencedMu.Lock()
		for _, f := range files {
			referenced[f] = true
		}
		referencedMu.Unlock()
		return section, nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSearchFailed, err)
	}

	result := buildResult(scopeLabel, meta, outcomes, referenced, scopeFiles)
	return &result, nil
}

// researchPOI runs one PoI's deep-research call and renders its Markdown
// section (heading + cited body).
func (s *Service) researchPOI(ctx context.Context, scopeLabel string, index, total int, poi POI) (string, []string, error) {
	runID := uuid.NewString()
	slog.Debug("code_mapper_poi_start", slog.String("poi_run_id", runID), slog.Int("index", index), slog.Int("total", total))
	if s.bus != nil {
		s.bus.Emit(ui.ProgressEvent{
			Stage:   ui.StageCodeMapperPOI,
			Current: index + 1,
			Total:   total,
			Message: runID + ": " + deriveHeading(poi.Text),
		})
	}

	preamble := architecturalSectionPreamble
	if poi.Mode == ModeOperational {
		preamble = operationalSectionPreamble
	}
	query := preamble + poi.Text

	answer, err := s.research.Research(ctx, query, []string{scopeLabel})
	if err != nil {
		return "", nil, err
	}
	if isEmptyResearchResult(answer.Text) {
		return "", nil, nil
	}

	heading := deriveHeading(poi.Text)
	section := fmt.Sprintf("# %s\n\n%s\n", heading, answer.Text)
	return section, answer.ReferencedFiles, nil
}
