package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFactID_Deterministic(t *testing.T) {
	id1 := GenerateFactID("the cache is never invalidated", "cache.go", 1, 5)
	id2 := GenerateFactID("the cache is never invalidated", "cache.go", 1, 5)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 12)
}

func TestGenerateFactID_DiffersOnInput(t *testing.T) {
	a := GenerateFactID("x", "a.go", 1, 2)
	b := GenerateFactID("y", "a.go", 1, 2)
	assert.NotEqual(t, a, b)
}

func TestGenerateFactID_DiffersOnLineRange(t *testing.T) {
	a := GenerateFactID("x", "a.go", 1, 2)
	b := GenerateFactID("x", "a.go", 3, 4)
	assert.NotEqual(t, a, b)
}

func TestAddFact_UpdatesEntityIndex(t *testing.T) {
	l := NewLedger()
	l.AddFact(FactEntry{ID: "f1", Statement: "cache never expires", Entities: []string{"Cache"}, Confidence: ConfidenceDefinite})

	facts := l.GetFactsForEntity("cache")
	require.Len(t, facts, 1)
	assert.Equal(t, "f1", facts[0].ID)
}

func TestAddFact_ReplacesStaleEntityLinks(t *testing.T) {
	l := NewLedger()
	l.AddFact(FactEntry{ID: "f1", Statement: "v1", Entities: []string{"Foo"}, Confidence: ConfidenceLikely})
	l.AddFact(FactEntry{ID: "f1", Statement: "v2", Entities: []string{"Bar"}, Confidence: ConfidenceLikely})

	assert.Empty(t, l.GetFactsForEntity("Foo"))
	facts := l.GetFactsForEntity("Bar")
	require.Len(t, facts, 1)
	assert.Equal(t, "v2", facts[0].Statement)
}

func TestDetectConflicts_NegationMismatch(t *testing.T) {
	l := NewLedger()
	l.AddFact(FactEntry{ID: "f1", Statement: "the server always retries on timeout", Entities: []string{"Server"}, Confidence: ConfidenceDefinite})
	l.AddFact(FactEntry{ID: "f2", Statement: "the server does not retry on timeout", Entities: []string{"Server"}, Confidence: ConfidenceDefinite})

	conflicts := l.DetectConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "negation mismatch", conflicts[0].Reason)
}

func TestDetectConflicts_NumericMismatch(t *testing.T) {
	l := NewLedger()
	l.AddFact(FactEntry{ID: "f1", Statement: "the batch size is 32", Entities: []string{"Batch"}, Confidence: ConfidenceDefinite})
	l.AddFact(FactEntry{ID: "f2", Statement: "the batch size is 64", Entities: []string{"Batch"}, Confidence: ConfidenceDefinite})

	conflicts := l.DetectConflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "numeric value mismatch", conflicts[0].Reason)
}

func TestDetectConflicts_NoConflictWhenConsistent(t *testing.T) {
	l := NewLedger()
	l.AddFact(FactEntry{ID: "f1", Statement: "the batch size is 32", Entities: []string{"Batch"}, Confidence: ConfidenceDefinite})
	l.AddFact(FactEntry{ID: "f2", Statement: "batch size defaults to 32 items", Entities: []string{"Batch"}, Confidence: ConfidenceDefinite})

	conflicts := l.DetectConflicts()
	assert.Empty(t, conflicts)
}

func TestToDictFromDict_RoundTrip(t *testing.T) {
	l := NewLedger()
	l.AddConstant(ConstantEntry{ID: "c1", Statement: "func Foo defined in foo.go", FilePath: "foo.go", Line: 10, Symbol: "Foo"})
	l.AddFact(FactEntry{ID: "f1", Statement: "Foo always validates input", Entities: []string{"Foo"}, Confidence: ConfidenceLikely, FilePath: "foo.go", StartLine: 12, EndLine: 20, Category: "behavior", ClusterID: 1})
	l.DetectConflicts()

	data, err := l.ToDict()
	require.NoError(t, err)

	restored, err := FromDict(data)
	require.NoError(t, err)

	assert.Equal(t, l.FormatProgressTable(), restored.FormatProgressTable())
	facts := restored.GetFactsForEntity("Foo")
	require.Len(t, facts, 1)
	assert.Equal(t, "Foo always validates input", facts[0].Statement)
	assert.Equal(t, "foo.go", facts[0].FilePath)
	assert.Equal(t, 12, facts[0].StartLine)
	assert.Equal(t, 1, facts[0].ClusterID)
}

func TestMaxFactsLimit_Truncates(t *testing.T) {
	l := NewLedger()
	for i := 0; i < MaxFactsLimit+50; i++ {
		path := string(rune(i))
		l.AddFact(FactEntry{
			ID:         GenerateFactID("fact", path, 0, 0),
			Statement:  "fact",
			FilePath:   path,
			Confidence: ConfidenceUncertain,
		})
	}
	out := l.sortedFacts()
	assert.Len(t, out, MaxFactsLimit)
}

func TestInsertIntoReport_EmptyLedgerLeavesReportUnchanged(t *testing.T) {
	l := NewLedger()
	report := "# Answer\n\n## Sources\n1. a.go\n"
	assert.Equal(t, report, l.InsertIntoReport(report))
}

func TestInsertIntoReport_NoConflictsStillRendersEvidence(t *testing.T) {
	l := NewLedger()
	l.AddFact(FactEntry{ID: "f1", Statement: "a always validates b", Entities: []string{"X"}, Confidence: ConfidenceDefinite, FilePath: "x.go", StartLine: 1, EndLine: 2})

	report := "# Answer\n\n## Sources\n1. x.go\n"
	out := l.InsertIntoReport(report)
	assert.Less(t, indexOf(out, "## Evidence"), indexOf(out, "## Sources"))
	assert.NotContains(t, out, "## Evidence Conflicts")
}

func TestInsertIntoReport_InsertsBeforeSources(t *testing.T) {
	l := NewLedger()
	l.AddFact(FactEntry{ID: "f1", Statement: "a always b", Entities: []string{"X"}, Confidence: ConfidenceDefinite, FilePath: "x.go"})
	l.AddFact(FactEntry{ID: "f2", Statement: "a does not b", Entities: []string{"X"}, Confidence: ConfidenceDefinite, FilePath: "x.go"})
	l.DetectConflicts()

	report := "# Answer\n\n## Sources\n1. a.go\n"
	out := l.InsertIntoReport(report)
	assert.Less(t, indexOf(out, "## Evidence Conflicts"), indexOf(out, "## Sources"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
