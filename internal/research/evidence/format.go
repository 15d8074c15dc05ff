package evidence

import (
	"fmt"
	"sort"
	"strings"
)

// PromptTier selects how densely the ledger renders itself into an LLM
// prompt. Deeper exploration nodes get terser tiers so ledger context
// doesn't crowd out the node's own file content budget.
type PromptTier int

const (
	// TierVerbose renders every fact with its sources and confidence
	// label, for root-level / single-pass synthesis prompts.
	TierVerbose PromptTier = iota
	// TierCompact drops per-fact sources, one line per fact.
	TierCompact
	// TierIndexed numbers facts for later back-reference without
	// restating file paths at all.
	TierIndexed
	// TierSummary collapses to a simple count-by-confidence line, for
	// the deepest, most budget-constrained nodes.
	TierSummary
)

// sortedConstants returns constants sorted by file path then line, for
// deterministic prompt rendering.
func (l *Ledger) sortedConstants() []*ConstantEntry {
	out := make([]*ConstantEntry, 0, len(l.constants))
	for _, c := range l.constants {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// sortedFacts returns every fact sorted by confidence descending,
// truncated to MaxFactsLimit — the same hard cap the original enforces
// to keep the facts section within its token budget.
func (l *Ledger) sortedFacts() []*FactEntry {
	out := make([]*FactEntry, 0, len(l.facts))
	for _, f := range l.facts {
		out = append(out, f)
	}
	sortFactsByConfidence(out)
	if len(out) > MaxFactsLimit {
		out = out[:MaxFactsLimit]
	}
	return out
}

// FormatConstants renders the constants section at the given tier.
func (l *Ledger) FormatConstants(tier PromptTier) string {
	constants := l.sortedConstants()
	if len(constants) == 0 {
		return ""
	}

	var b strings.Builder
	switch tier {
	case TierSummary:
		fmt.Fprintf(&b, "Constants: %d symbols indexed.\n", len(constants))
	case TierIndexed:
		b.WriteString("## Constants\n")
		for i, c := range constants {
			fmt.Fprintf(&b, "[C%d] %s\n", i+1, c.Statement)
		}
	case TierCompact:
		b.WriteString("## Constants\n")
		for _, c := range constants {
			fmt.Fprintf(&b, "- %s\n", c.Statement)
		}
	default: // TierVerbose
		b.WriteString("## Constants\n")
		for _, c := range constants {
			fmt.Fprintf(&b, "- %s (%s)\n", c.Statement, fmtLine(c.FilePath, c.Line))
		}
	}
	return b.String()
}

// FormatFacts renders the facts section at the given tier.
func (l *Ledger) FormatFacts(tier PromptTier) string {
	facts := l.sortedFacts()
	if len(facts) == 0 {
		return ""
	}

	var b strings.Builder
	switch tier {
	case TierSummary:
		counts := map[ConfidenceLevel]int{}
		for _, f := range facts {
			counts[f.Confidence]++
		}
		fmt.Fprintf(&b, "Facts: %d definite, %d likely, %d inferred, %d uncertain.\n",
			counts[ConfidenceDefinite], counts[ConfidenceLikely], counts[ConfidenceInferred], counts[ConfidenceUncertain])
	case TierIndexed:
		b.WriteString("## Facts\n")
		for i, f := range facts {
			fmt.Fprintf(&b, "[F%d] %s\n", i+1, f.Statement)
		}
	case TierCompact:
		b.WriteString("## Facts\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s (%s)\n", f.Statement, f.Confidence)
		}
	default: // TierVerbose
		b.WriteString("## Facts\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s [%s confidence, source: %s]\n",
				f.Statement, f.Confidence, fmtLine(f.FilePath, f.StartLine))
		}
	}
	return b.String()
}

// Render combines FormatConstants and FormatFacts at the given tier into
// a single prompt section.
func (l *Ledger) Render(tier PromptTier) string {
	var parts []string
	if c := l.FormatConstants(tier); c != "" {
		parts = append(parts, c)
	}
	if f := l.FormatFacts(tier); f != "" {
		parts = append(parts, f)
	}
	return strings.Join(parts, "\n")
}

// FormatProgressTable renders a short human-readable summary table of
// ledger size and conflict count, for progress/debug output.
func (l *Ledger) FormatProgressTable() string {
	return fmt.Sprintf("constants=%d facts=%d conflicts=%d", len(l.constants), len(l.facts), len(l.conflicts))
}

// sourcesMarker is where GetReportSuffix's output gets inserted ahead of,
// matching the synthesis report's own "## Sources" footer ordering.
const sourcesMarker = "## Sources"

// GetReportSuffix renders the ledger's "## Evidence" section: constants
// and facts with confidence tags, followed by an "## Evidence Conflicts"
// subsection when any were detected. The Evidence section always
// renders when the ledger holds any constants or facts, independent of
// whether conflicts exist — a clean research call with zero conflicts
// still owes its reader the grounding it cited from.
func (l *Ledger) GetReportSuffix() string {
	constants := l.FormatConstants(TierVerbose)
	facts := l.FormatFacts(TierVerbose)
	if constants == "" && facts == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Evidence\n\n")
	if constants != "" {
		b.WriteString(constants)
		b.WriteString("\n")
	}
	if facts != "" {
		b.WriteString(facts)
	}

	if len(l.conflicts) > 0 {
		b.WriteString("\n### Evidence Conflicts\n\n")
		for _, c := range l.conflicts {
			factA, okA := l.facts[c.FactIDA]
			factB, okB := l.facts[c.FactIDB]
			if !okA || !okB {
				continue
			}
			fmt.Fprintf(&b, "- %s (%s) vs. %s (%s): %s\n",
				factA.Statement, c.FactIDA, factB.Statement, c.FactIDB, c.Reason)
		}
	}
	return b.String()
}

// InsertIntoReport splices the ledger's report suffix (the "## Evidence"
// section) into report just before the first "## Sources" heading, or
// appends it to the end if no such heading exists. An empty suffix (no
// constants or facts at all) returns report unchanged.
func (l *Ledger) InsertIntoReport(report string) string {
	suffix := l.GetReportSuffix()
	if suffix == "" {
		return report
	}
	idx := strings.Index(report, sourcesMarker)
	if idx < 0 {
		return report + "\n\n" + suffix
	}
	return report[:idx] + suffix + "\n" + report[idx:]
}
