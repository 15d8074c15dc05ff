package codemapper

import "strings"

// quickstartPhrases is the closed set of phrases that count as an
// existing quickstart-style operational PoI.
var quickstartPhrases = []string{
	"quickstart",
	"getting started",
	"local run",
	"run locally",
}

// quickstartInjection is the canonical PoI injected at position 1 when the
// operational list lacks anything quickstart-like.
const quickstartInjection = "**Quickstart / Local run**: How to install, configure, and run this project end-to-end in a local development environment."

// ensureOperationalQuickstart injects a canonical Quickstart PoI at
// position 1 when none of points already reads as one, then truncates to
// maxPoints. A list that already has a quickstart-like entry is truncated
// unchanged.
func ensureOperationalQuickstart(points []string, maxPoints int) []string {
	for _, p := range points {
		lower := strings.ToLower(strings.TrimSpace(p))
		if lower == "" {
			continue
		}
		for _, phrase := range quickstartPhrases {
			if strings.Contains(lower, phrase) {
				return capPoints(points, maxPoints)
			}
		}
	}

	injected := append([]string{quickstartInjection}, points...)
	return capPoints(injected, maxPoints)
}

func capPoints(points []string, maxPoints int) []string {
	if maxPoints > 0 && len(points) > maxPoints {
		return points[:maxPoints]
	}
	return points
}
