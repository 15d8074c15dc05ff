// Package reader expands a chunk's line range to the nearest natural code
// boundary (a whole function, class, or struct) so synthesis never quotes
// a function signature without its body, or a body without its signature.
package reader

import (
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
)

// MaxExpansionLines caps how far a single expansion may grow a chunk's
// range, preventing one boundary-expand call from pulling in an entire
// file when a function happens to be huge.
const MaxExpansionLines = 300

// completeUnitPadding is how many extra lines of context we still add
// even when a chunk's metadata says it already spans a complete
// function/class/struct — callers usually want a line of blank space and
// a decorator/comment line above, not just the bare symbol body.
const completeUnitPadding = 3

// FileLines is a 1-indexed view over a file's content: FileLines[0] is
// line 1. Callers build it once per file and reuse it across chunks.
type FileLines []string

// NewFileLines splits content on newlines into a FileLines.
func NewFileLines(content string) FileLines {
	return FileLines(strings.Split(content, "\n"))
}

// ErrDataLoss is returned when chunks are supplied for expansion but no
// file content was loaded to expand them against — failing fast here
// avoids silently returning truncated, boundary-unaware excerpts.
type ErrDataLoss struct {
	FilePath string
}

func (e ErrDataLoss) Error() string {
	return "data-loss detected: no file content loaded for " + e.FilePath
}

// ExpandToNaturalBoundary grows chunk's line range outward to the
// nearest enclosing function/class/struct boundary using language-aware
// heuristics (indentation for Python, brace-depth for C-family
// languages), capped at MaxExpansionLines total lines. If the chunk's
// own metadata indicates it is already a complete unit
// ("complete_unit"="true"), only completeUnitPadding lines are added.
// Re-running expansion on an already-expanded chunk (ExpandedStartLine
// and ExpandedEndLine both set) is a no-op, making expansion idempotent.
func ExpandToNaturalBoundary(chunk *collab.Chunk, lines FileLines) error {
	if chunk == nil || chunk.Chunk == nil {
		return nil
	}
	if lines == nil {
		return ErrDataLoss{FilePath: chunk.FilePath}
	}
	if chunk.ExpandedStartLine != 0 && chunk.ExpandedEndLine != 0 {
		return nil // already expanded; idempotent
	}

	start, end := chunk.StartLine, chunk.EndLine

	if chunk.Metadata != nil && chunk.Metadata["complete_unit"] == "true" {
		start, end = padRange(start, end, completeUnitPadding, len(lines))
		chunk.ExpandedStartLine = start
		chunk.ExpandedEndLine = end
		return nil
	}

	switch languageFamily(chunk.Language) {
	case familyIndentation:
		start, end = expandIndentation(lines, start, end)
	case familyBrace:
		start, end = expandBraces(lines, start, end)
	default:
		start, end = padRange(start, end, completeUnitPadding, len(lines))
	}

	if end-start+1 > MaxExpansionLines {
		// Keep the original start, cap the end so we never balloon past
		// the budget even if the heuristic walked too far.
		end = start + MaxExpansionLines - 1
	}

	chunk.ExpandedStartLine = start
	chunk.ExpandedEndLine = end
	return nil
}

func padRange(start, end, pad, maxLine int) (int, int) {
	start -= pad
	if start < 1 {
		start = 1
	}
	end += pad
	if end > maxLine {
		end = maxLine
	}
	return start, end
}

type languageClass int

const (
	familyOther languageClass = iota
	familyIndentation
	familyBrace
)

func languageFamily(lang string) languageClass {
	switch strings.ToLower(lang) {
	case "python", "yaml":
		return familyIndentation
	case "go", "typescript", "javascript", "java", "c", "cpp", "c++", "rust", "csharp", "c#":
		return familyBrace
	default:
		return familyOther
	}
}

// expandIndentation walks upward/downward from [start,end] while the
// line's indentation is deeper than the block's opening line, the same
// heuristic Python tooling uses to find an enclosing def/class.
func expandIndentation(lines FileLines, start, end int) (int, int) {
	baseIndent := indentOf(lines, start)

	s := start
	for s > 1 {
		prevIndent := indentOf(lines, s-1)
		if isBlank(lines, s-1) {
			s--
			continue
		}
		if prevIndent >= baseIndent {
			break
		}
		s--
		baseIndent = prevIndent
	}

	e := end
	for e < len(lines) {
		if isBlank(lines, e+1) {
			e++
			continue
		}
		if indentOf(lines, e+1) < indentOf(lines, start) {
			break
		}
		e++
	}

	return s, e
}

func indentOf(lines FileLines, lineNo int) int {
	if lineNo < 1 || lineNo > len(lines) {
		return 0
	}
	line := lines[lineNo-1]
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 4
		} else {
			break
		}
	}
	return n
}

func isBlank(lines FileLines, lineNo int) bool {
	if lineNo < 1 || lineNo > len(lines) {
		return true
	}
	return strings.TrimSpace(lines[lineNo-1]) == ""
}

// expandBraces walks outward counting brace depth until it finds the
// enclosing balanced block, the heuristic used for C-family languages
// where indentation isn't semantically load-bearing.
func expandBraces(lines FileLines, start, end int) (int, int) {
	depth := 0
	s := start
	for s > 1 {
		depth += braceDelta(lines, s-1)
		if depth > 0 {
			break
		}
		s--
	}

	depth = 0
	e := end
	for e < len(lines) {
		depth += braceDelta(lines, e+1)
		e++
		if depth < 0 {
			break
		}
	}

	return s, e
}

func braceDelta(lines FileLines, lineNo int) int {
	if lineNo < 1 || lineNo > len(lines) {
		return 0
	}
	line := lines[lineNo-1]
	delta := 0
	for _, r := range line {
		switch r {
		case '{':
			delta--
		case '}':
			delta++
		}
	}
	return delta
}
