package codemapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureOperationalQuickstart_InjectsWhenAbsent(t *testing.T) {
	points := []string{"Deploying to production", "Monitoring and alerts"}
	out := ensureOperationalQuickstart(points, 3)
	assert.Equal(t, quickstartInjection, out[0])
	assert.Len(t, out, 3)
}

func TestEnsureOperationalQuickstart_LeavesExistingQuickstartAlone(t *testing.T) {
	points := []string{"**Getting Started**: clone and run", "Deploying to production"}
	out := ensureOperationalQuickstart(points, 5)
	assert.Equal(t, points, out)
}

func TestEnsureOperationalQuickstart_RespectsMaxPoints(t *testing.T) {
	points := []string{"a", "b", "c"}
	out := ensureOperationalQuickstart(points, 2)
	assert.Len(t, out, 2)
	assert.Equal(t, quickstartInjection, out[0])
}

func TestDeriveHeading_StripsEmphasisAndSeparator(t *testing.T) {
	assert.Equal(t, "Quickstart / Local run", deriveHeading("**Quickstart / Local run**: how to run it"))
	assert.Equal(t, "Configuration", deriveHeading("Configuration - env vars and config files"))
}

func TestSlugify_ProducesKebabCase(t *testing.T) {
	assert.Equal(t, "quickstart-local-run", slugify("Quickstart / Local run"))
}

func TestTierFor_FallsBackToMedium(t *testing.T) {
	assert.Equal(t, tiers["medium"], tierFor("not-a-real-tier"))
	assert.Equal(t, tiers["high"], tierFor("high"))
}

func TestIsEmptyResearchResult(t *testing.T) {
	assert.True(t, isEmptyResearchResult(""))
	assert.True(t, isEmptyResearchResult("No relevant code context found for: retry logic"))
	assert.False(t, isEmptyResearchResult("Retries are implemented in backoff.go [1]."))
}
