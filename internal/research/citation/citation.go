// Package citation builds and reconciles the numbered file-reference maps
// that cited synthesis answers rely on: "[3]" in an answer means the third
// file in that answer's reference table. Cluster-local reference maps
// produced during map-reduce synthesis get remapped onto one global map
// before the final answer is assembled.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ReferenceMap assigns small integer citation numbers to file paths in
// first-discovery order, the way a reader moving through cited chunks
// would naturally number sources.
type ReferenceMap struct {
	pathToNum map[string]int
	numToPath map[int]string
	next      int
}

// NewReferenceMap returns an empty map; citation numbers start at 1.
func NewReferenceMap() *ReferenceMap {
	return &ReferenceMap{
		pathToNum: make(map[string]int),
		numToPath: make(map[int]string),
		next:      1,
	}
}

// Add assigns the next unused number to path if it hasn't been seen
// before, and returns path's number either way.
func (m *ReferenceMap) Add(path string) int {
	if n, ok := m.pathToNum[path]; ok {
		return n
	}
	n := m.next
	m.next++
	m.pathToNum[path] = n
	m.numToPath[n] = path
	return n
}

// BuildReferenceMap assigns numbers to filePaths in the order given,
// skipping duplicates, matching how synthesis builds a reference map by
// walking cited chunks in retrieval order.
func BuildReferenceMap(filePaths []string) *ReferenceMap {
	m := NewReferenceMap()
	for _, p := range filePaths {
		m.Add(p)
	}
	return m
}

// Number returns path's citation number and whether it is present.
func (m *ReferenceMap) Number(path string) (int, bool) {
	n, ok := m.pathToNum[path]
	return n, ok
}

// Path returns the file path assigned to citation number n.
func (m *ReferenceMap) Path(n int) (string, bool) {
	p, ok := m.numToPath[n]
	return p, ok
}

// Len returns how many distinct files have been assigned numbers.
func (m *ReferenceMap) Len() int {
	return len(m.numToPath)
}

// RenderTable formats the reference map as a Markdown-friendly numbered
// list in citation-number order, for inclusion in an LLM prompt.
func (m *ReferenceMap) RenderTable() string {
	var b strings.Builder
	for i := 1; i < m.next; i++ {
		path, ok := m.numToPath[i]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "[%d] %s\n", i, path)
	}
	return b.String()
}

// citationPattern matches "[N]" citation markers in synthesis output.
var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// RemapClusterCitations rewrites every "[N]" citation in text, where N is
// a cluster-local reference number, to "[M]" where M is that same file's
// number in the global reference map. Citations whose local number isn't
// in localMap are left untouched (caller should surface that via
// ValidateCitations as a warning, not fail synthesis over it).
func RemapClusterCitations(text string, localMap, globalMap *ReferenceMap) string {
	return citationPattern.ReplaceAllStringFunc(text, func(match string) string {
		numStr := match[1 : len(match)-1]
		localNum, err := strconv.Atoi(numStr)
		if err != nil {
			return match
		}
		path, ok := localMap.Path(localNum)
		if !ok {
			return match
		}
		globalNum, ok := globalMap.Number(path)
		if !ok {
			globalNum = globalMap.Add(path)
		}
		return fmt.Sprintf("[%d]", globalNum)
	})
}

// ValidateCitations scans text for "[N]" markers and returns the set of
// numbers that have no corresponding entry in refMap. Per the research
// core's error-handling design, an unmapped citation is a warning the
// caller should log, never a reason to fail synthesis.
func ValidateCitations(text string, refMap *ReferenceMap) []int {
	seen := make(map[int]bool)
	var missing []int
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		if _, ok := refMap.Path(n); !ok {
			missing = append(missing, n)
		}
	}
	sort.Ints(missing)
	return missing
}

// BuildSourcesFooter renders a "## Sources" section listing every file in
// refMap, for appending to a synthesis answer outside the LLM's own token
// budget (the model never has to spend output tokens enumerating sources
// itself).
func BuildSourcesFooter(refMap *ReferenceMap) string {
	var b strings.Builder
	b.WriteString("## Sources\n\n")
	for i := 1; i <= refMap.Len(); i++ {
		path, ok := refMap.Path(i)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", i, path)
	}
	return b.String()
}

// FilterChunksToFiles keeps only chunks whose FilePath is in files,
// preserving input order. This is the consistency invariant map-reduce
// synthesis relies on: a cluster's reference map must only ever contain
// files that chunk filtering actually included in its prompt.
func FilterChunksToFiles[T interface{ Path() string }](chunks []T, files map[string]bool) []T {
	out := make([]T, 0, len(chunks))
	for _, c := range chunks {
		if files[c.Path()] {
			out = append(out, c)
		}
	}
	return out
}
