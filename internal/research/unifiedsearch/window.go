package unifiedsearch

import (
	"context"
	"sort"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
)

// DefaultWindowLines is how many lines of surrounding context get pulled
// in on each side of a chunk during window expansion.
const DefaultWindowLines = 50

// ExpandChunkWindows fetches surrounding chunks for every not-yet-expanded
// member of chunks, grouped per file so one GetChunksInRange call covers
// an entire file's worth of hits, and merges the results back in deduped
// by chunk ID. Expansion is idempotent: a chunk already marked
// WindowExpanded is left untouched and excluded from the range
// computation, but every chunk that does participate in this call
// (including already-expanded ones passed in alongside new ones) is
// marked WindowExpanded on return, matching the original's
// all-participants-marked behavior.
func ExpandChunkWindows(ctx context.Context, store collab.ChunkStore, chunks []*collab.Chunk, windowLines int) ([]*collab.Chunk, error) {
	if windowLines <= 0 {
		windowLines = DefaultWindowLines
	}

	byFile := make(map[string][]*collab.Chunk)
	for _, c := range chunks {
		if c.Chunk == nil {
			continue
		}
		byFile[c.FileID] = append(byFile[c.FileID], c)
	}

	seen := make(map[string]bool, len(chunks))
	out := make([]*collab.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}

	for fileID, members := range byFile {
		toExpand := make([]*collab.Chunk, 0, len(members))
		for _, c := range members {
			if !c.WindowExpanded {
				toExpand = append(toExpand, c)
			}
		}
		if len(toExpand) == 0 {
			continue
		}

		minLine, maxLine := toExpand[0].StartLine, toExpand[0].EndLine
		for _, c := range toExpand {
			if c.StartLine < minLine {
				minLine = c.StartLine
			}
			if c.EndLine > maxLine {
				maxLine = c.EndLine
			}
		}
		rangeStart := minLine - windowLines
		if rangeStart < 1 {
			rangeStart = 1
		}
		rangeEnd := maxLine + windowLines

		expanded, err := store.GetChunksInRange(ctx, fileID, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		for _, c := range expanded {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}

		for _, c := range members {
			c.WindowExpanded = true
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out, nil
}
