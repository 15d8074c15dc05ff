// Package evidence maintains the running ledger of constants and
// LLM-extracted facts a research call accumulates as it explores, so the
// final synthesis can cite grounded evidence instead of re-deriving it,
// and so contradictory facts surface as conflicts rather than silently
// overwriting each other.
package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
)

// MaxFactsLimit caps how many facts the ledger will format into a prompt,
// keeping the facts section well under the ~15k token ceiling the
// original enforces for evidence context.
const MaxFactsLimit = 500

// Ledger accumulates constants (metadata-sourced) and facts
// (LLM-extracted) discovered during a research call, with an entity
// index for fast lookup and heuristic conflict detection between facts.
type Ledger struct {
	constants   map[string]*ConstantEntry
	facts       map[string]*FactEntry
	entityIndex map[string][]string // entity -> fact IDs
	conflicts   []FactConflict
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		constants:   make(map[string]*ConstantEntry),
		facts:       make(map[string]*FactEntry),
		entityIndex: make(map[string][]string),
	}
}

// FromChunks seeds a ledger's constants from chunk symbol metadata: one
// ConstantEntry per symbol, statement built as "<kind> <name> in <file>".
func FromChunks(chunks []*collab.Chunk) *Ledger {
	l := NewLedger()
	l.ReplaceConstantsFromChunks(chunks)
	return l
}

// ReplaceConstantsFromChunks clears existing constants and rebuilds them
// from chunks' symbol metadata. Used when a later exploration pass
// re-derives scope constants from a superset of chunks; facts are left
// untouched.
func (l *Ledger) ReplaceConstantsFromChunks(chunks []*collab.Chunk) {
	l.constants = make(map[string]*ConstantEntry)
	for _, c := range chunks {
		if c.Chunk == nil {
			continue
		}
		for _, sym := range c.Symbols {
			stmt := fmt.Sprintf("%s %s defined in %s", sym.Type, sym.Name, c.FilePath)
			id := GenerateFactID(stmt, c.FilePath, sym.StartLine, sym.StartLine)
			l.constants[id] = &ConstantEntry{
				ID:        id,
				Statement: stmt,
				FilePath:  c.FilePath,
				Line:      sym.StartLine,
				Symbol:    sym.Name,
			}
		}
	}
}

// AddConstant inserts or overwrites a constant by ID.
func (l *Ledger) AddConstant(c ConstantEntry) {
	l.constants[c.ID] = &c
}

// AddFact inserts or overwrites a fact by ID and updates the entity index
// transactively: if a fact with the same ID already existed under
// different entities, those stale entity links are removed first.
func (l *Ledger) AddFact(f FactEntry) {
	if f.ID == "" {
		f.ID = GenerateFactID(f.Statement, f.FilePath, f.StartLine, f.EndLine)
	}
	if old, ok := l.facts[f.ID]; ok {
		for _, e := range old.Entities {
			l.removeEntityLink(e, f.ID)
		}
	}
	l.facts[f.ID] = &f
	for _, e := range f.Entities {
		key := strings.ToLower(e)
		l.entityIndex[key] = appendUnique(l.entityIndex[key], f.ID)
	}
}

func (l *Ledger) removeEntityLink(entity, factID string) {
	key := strings.ToLower(entity)
	ids := l.entityIndex[key]
	out := ids[:0]
	for _, id := range ids {
		if id != factID {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		delete(l.entityIndex, key)
	} else {
		l.entityIndex[key] = out
	}
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Merge folds other's constants and facts into l, re-running AddFact for
// every fact so the entity index stays consistent. Conflicts detected in
// other are not carried over; callers should call DetectConflicts after
// merging.
func (l *Ledger) Merge(other *Ledger) {
	if other == nil {
		return
	}
	for id, c := range other.constants {
		l.constants[id] = c
	}
	for _, f := range other.facts {
		l.AddFact(*f)
	}
}

// GetFactsForFiles returns every fact mentioning at least one of files.
func (l *Ledger) GetFactsForFiles(files []string) []*FactEntry {
	fileSet := make(map[string]bool, len(files))
	for _, f := range files {
		fileSet[f] = true
	}
	var out []*FactEntry
	for _, f := range l.facts {
		if fileSet[f.FilePath] {
			out = append(out, f)
		}
	}
	sortFactsByConfidence(out)
	return out
}

// GetFactsForEntity returns facts linked to entity via the entity index.
func (l *Ledger) GetFactsForEntity(entity string) []*FactEntry {
	ids := l.entityIndex[strings.ToLower(entity)]
	out := make([]*FactEntry, 0, len(ids))
	for _, id := range ids {
		if f, ok := l.facts[id]; ok {
			out = append(out, f)
		}
	}
	sortFactsByConfidence(out)
	return out
}

// GetRelatedFacts returns the union of facts sharing any entity with
// factID's own entities, excluding factID itself.
func (l *Ledger) GetRelatedFacts(factID string) []*FactEntry {
	f, ok := l.facts[factID]
	if !ok {
		return nil
	}
	seen := map[string]bool{factID: true}
	var out []*FactEntry
	for _, e := range f.Entities {
		for _, id := range l.entityIndex[strings.ToLower(e)] {
			if seen[id] {
				continue
			}
			seen[id] = true
			if related, ok := l.facts[id]; ok {
				out = append(out, related)
			}
		}
	}
	sortFactsByConfidence(out)
	return out
}

func sortFactsByConfidence(facts []*FactEntry) {
	sort.SliceStable(facts, func(i, j int) bool {
		return facts[i].Confidence.Rank() > facts[j].Confidence.Rank()
	})
}

// negationPattern flags facts that assert an absolute negative
// ("never", "cannot", "must not", ...); two facts about the same subject
// where one is negated and the other isn't are a conflict signal even
// without understanding either statement's semantics.
var negationPattern = regexp.MustCompile(`(?i)\b(never|always|cannot|must not|does not|is not|are not|no longer|impossible|forbidden|prohibited)\b`)

// numericPattern extracts numeric tokens so two facts citing different
// numbers for what looks like the same thing can be flagged.
var numericPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)

// DetectConflicts re-scans every pair of facts sharing an entity and
// records heuristic conflicts into l.conflicts (dropping any from a
// previous run). This is not a semantic check: it only flags negation
// mismatches or disjoint numeric tokens between facts about the same
// entity, the same heuristic the original evidence ledger uses.
func (l *Ledger) DetectConflicts() []FactConflict {
	l.conflicts = l.conflicts[:0]
	checked := make(map[[2]string]bool)

	for entity, ids := range l.entityIndex {
		_ = entity
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a, b := ids[i], ids[j]
				if a > b {
					a, b = b, a
				}
				key := [2]string{a, b}
				if checked[key] {
					continue
				}
				checked[key] = true

				factA, okA := l.facts[a]
				factB, okB := l.facts[b]
				if !okA || !okB {
					continue
				}
				if reason, conflict := checkConflict(factA.Statement, factB.Statement); conflict {
					l.conflicts = append(l.conflicts, FactConflict{
						FactIDA: a,
						FactIDB: b,
						Reason:  reason,
					})
				}
			}
		}
	}
	return l.conflicts
}

// checkConflict applies the negation/numeric heuristics to a pair of
// fact statements.
func checkConflict(a, b string) (reason string, conflict bool) {
	negA := negationPattern.MatchString(a)
	negB := negationPattern.MatchString(b)
	if negA != negB {
		return "negation mismatch", true
	}

	numsA := numericPattern.FindAllString(a, -1)
	numsB := numericPattern.FindAllString(b, -1)
	if len(numsA) > 0 && len(numsB) > 0 && !sameSet(numsA, numsB) {
		return "numeric value mismatch", true
	}

	return "", false
}

func sameSet(a, b []string) bool {
	setA := make(map[string]bool, len(a))
	for _, v := range a {
		setA[v] = true
	}
	setB := make(map[string]bool, len(b))
	for _, v := range b {
		setB[v] = true
	}
	if len(setA) != len(setB) {
		return false
	}
	for v := range setA {
		if !setB[v] {
			return false
		}
	}
	return true
}

// Conflicts returns the conflicts recorded by the last DetectConflicts
// call.
func (l *Ledger) Conflicts() []FactConflict {
	return l.conflicts
}
