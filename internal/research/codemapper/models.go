// Package codemapper implements the code-mapper PoI pipeline: a HyDE-style
// planning pass over a scope's file list and sampled code produces a set
// of "points of interest," each of which is expanded into its own
// documentation section by a full deep-research call, with a bounded
// worker queue and pessimistic backoff when the synthesis provider starts
// failing.
package codemapper

import "time"

// POIMode distinguishes the two PoI lists the HyDE planner produces.
type POIMode string

const (
	ModeArchitectural POIMode = "architectural"
	ModeOperational   POIMode = "operational"
)

// POI is one point of interest: a topic the pipeline will expand into its
// own research call and Markdown section.
type POI struct {
	Mode POIMode
	Text string
}

// Metadata is the commit/LLM provenance block every emitted Markdown
// document is prefixed with.
type Metadata struct {
	CreatedFromSHA  string
	GeneratedAt     time.Time
	LLMConfig       map[string]string
	GenerationStats map[string]string
}
