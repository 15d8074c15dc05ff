package orchestrator

import (
	"sort"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/reader"
	"github.com/Aman-CERP/amanmcp/internal/research/synthesis"
)

// buildExcerpts collapses filtered chunks back down to one excerpt per
// file: the union of every chunk's boundary-expanded range (falling back
// to its raw range when expansion never ran, e.g. the file couldn't be
// read), sliced out of that file's full content. Files present in
// fileContents but with no surviving chunks are skipped.
func buildExcerpts(fileContents map[string]string, chunks []*collab.Chunk) []synthesis.ChunkExcerpt {
	byFile := make(map[string][]*collab.Chunk)
	var order []string
	for _, c := range chunks {
		if c == nil || c.Chunk == nil {
			continue
		}
		if _, ok := byFile[c.FilePath]; !ok {
			order = append(order, c.FilePath)
		}
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	out := make([]synthesis.ChunkExcerpt, 0, len(order))
	for _, path := range order {
		content, ok := fileContents[path]
		if !ok || content == "" {
			continue
		}
		out = append(out, synthesis.ChunkExcerpt{FilePath: path, Content: excerptFor(content, byFile[path])})
	}
	return out
}

// buildExcerptsByFile is buildExcerpts's map-reduce shape: one
// ChunkExcerpt slice per file path, keyed for clustering.ClusterGroup's
// FilePaths to look up directly.
func buildExcerptsByFile(fileContents map[string]string, chunks []*collab.Chunk) map[string][]synthesis.ChunkExcerpt {
	excerpts := buildExcerpts(fileContents, chunks)
	out := make(map[string][]synthesis.ChunkExcerpt, len(excerpts))
	for _, e := range excerpts {
		out[e.FilePath] = append(out[e.FilePath], e)
	}
	return out
}

func excerptFor(content string, chunks []*collab.Chunk) string {
	lines := reader.NewFileLines(content)

	start, end := chunks[0].StartLine, chunks[0].EndLine
	if chunks[0].ExpandedStartLine != 0 {
		start = chunks[0].ExpandedStartLine
	}
	if chunks[0].ExpandedEndLine != 0 {
		end = chunks[0].ExpandedEndLine
	}
	for _, c := range chunks[1:] {
		s, e := c.StartLine, c.EndLine
		if c.ExpandedStartLine != 0 {
			s = c.ExpandedStartLine
		}
		if c.ExpandedEndLine != 0 {
			e = c.ExpandedEndLine
		}
		if s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}

	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return content
	}

	// A file whose surviving ranges cover nearly all of it is cheaper to
	// quote whole than to reconstruct as a patchwork of near-adjacent
	// slices.
	if float64(end-start+1) >= 0.8*float64(len(lines)) {
		return content
	}

	return joinLines(lines[start-1 : end])
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// sortedFileOrder returns fileContents' keys sorted, the deterministic
// citation-numbering order single-pass synthesis uses when no other
// retrieval order is available.
func sortedFileOrder(fileContents map[string]string) []string {
	out := make([]string, 0, len(fileContents))
	for p := range fileContents {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
