package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

func newChunk(lang string, start, end int, meta map[string]string) *collab.Chunk {
	return &collab.Chunk{
		Chunk: &store.Chunk{
			Language:  lang,
			StartLine: start,
			EndLine:   end,
			Metadata:  meta,
		},
	}
}

func TestExpandToNaturalBoundary_NilLinesFailsFast(t *testing.T) {
	c := newChunk("go", 5, 6, nil)
	err := ExpandToNaturalBoundary(c, nil)
	require.Error(t, err)
	assert.IsType(t, ErrDataLoss{}, err)
}

func TestExpandToNaturalBoundary_Idempotent(t *testing.T) {
	content := "package a\n\nfunc Foo() {\n\tdoStuff()\n}\n"
	lines := NewFileLines(content)
	c := newChunk("go", 4, 4, nil)

	require.NoError(t, ExpandToNaturalBoundary(c, lines))
	firstStart, firstEnd := c.ExpandedStartLine, c.ExpandedEndLine

	require.NoError(t, ExpandToNaturalBoundary(c, lines))
	assert.Equal(t, firstStart, c.ExpandedStartLine)
	assert.Equal(t, firstEnd, c.ExpandedEndLine)
}

func TestExpandToNaturalBoundary_CompleteUnitOnlyPads(t *testing.T) {
	content := "line1\nline2\nline3\nline4\nline5\nline6\nline7\n"
	lines := NewFileLines(content)
	c := newChunk("go", 4, 4, map[string]string{"complete_unit": "true"})

	require.NoError(t, ExpandToNaturalBoundary(c, lines))
	assert.Equal(t, 1, c.ExpandedStartLine)
	assert.Equal(t, 7, c.ExpandedEndLine)
}

func TestExpandToNaturalBoundary_CapsAtMaxExpansionLines(t *testing.T) {
	lineCount := 1000
	content := ""
	for i := 0; i < lineCount; i++ {
		content += "x\n"
	}
	lines := NewFileLines(content)
	c := newChunk("unknown", 500, 500, nil)

	require.NoError(t, ExpandToNaturalBoundary(c, lines))
	assert.LessOrEqual(t, c.ExpandedEndLine-c.ExpandedStartLine+1, MaxExpansionLines)
}

func TestExpandIndentation_PythonFunction(t *testing.T) {
	content := "def foo():\n    x = 1\n    y = 2\n    return x + y\n\ndef bar():\n    pass\n"
	lines := NewFileLines(content)
	c := newChunk("python", 2, 3, nil)

	require.NoError(t, ExpandToNaturalBoundary(c, lines))
	assert.Equal(t, 1, c.ExpandedStartLine)
	assert.Equal(t, 4, c.ExpandedEndLine)
}
