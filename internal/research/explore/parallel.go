package explore

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
)

// Parallel runs BFS and Wide concurrently in raw mode and merges their
// results before a single elbow filter and file-read pass.
type Parallel struct {
	store collab.ChunkStore
	bfs   *BFS
	wide  *Wide
}

// NewParallel builds a Parallel strategy from a BFS and Wide instance
// sharing the same chunk store.
func NewParallel(store collab.ChunkStore, bfs *BFS, wide *Wide) *Parallel {
	return &Parallel{store: store, bfs: bfs, wide: wide}
}

// ExploreRaw runs BFS and Wide concurrently; if both fail, the combined
// error is returned; if exactly one fails, exploration continues with
// the survivor's result alone.
func (p *Parallel) ExploreRaw(ctx context.Context, rootQuery string, initial []*collab.Chunk) ([]*collab.Chunk, Stats, error) {
	type outcome struct {
		chunks []*collab.Chunk
		stats  Stats
		err    error
	}

	bfsCh := make(chan outcome, 1)
	wideCh := make(chan outcome, 1)

	go func() {
		chunks, stats, err := p.bfs.ExploreRaw(ctx, rootQuery, initial)
		bfsCh <- outcome{chunks, stats, err}
	}()
	go func() {
		chunks, stats, err := p.wide.ExploreRaw(ctx, rootQuery, initial)
		wideCh <- outcome{chunks, stats, err}
	}()

	bfsOut := <-bfsCh
	wideOut := <-wideCh

	if bfsOut.err != nil && wideOut.err != nil {
		return nil, Stats{}, fmt.Errorf("explore: both BFS and Wide failed: bfs=%w wide=%v", bfsOut.err, wideOut.err)
	}

	var groups [][]*collab.Chunk
	stats := Stats{}
	if bfsOut.err == nil {
		groups = append(groups, bfsOut.chunks)
		stats.BranchesRun += bfsOut.stats.BranchesRun
		stats.TerminatedEarly += bfsOut.stats.TerminatedEarly
	}
	if wideOut.err == nil {
		groups = append(groups, wideOut.chunks)
	}

	merged := DedupeHighestScoreWins(groups...)
	stats.ChunksFound = len(merged)
	return merged, stats, nil
}

// Explore runs ExploreRaw, applies one elbow filter over the merged
// result, and reads file content for the survivors.
func (p *Parallel) Explore(ctx context.Context, rootQuery string, initial []*collab.Chunk, phase1Threshold float64, constantsContext string) ([]*collab.Chunk, Stats, map[string]string, error) {
	merged, stats, err := p.ExploreRaw(ctx, rootQuery, initial)
	if err != nil {
		return nil, stats, nil, err
	}

	filtered := FilterByElbow(merged, phase1Threshold)
	fileContents, err := ReadFiles(ctx, p.store, filtered)
	if err != nil {
		return nil, stats, nil, err
	}
	stats.FilesExplored = len(fileContents)
	return filtered, stats, fileContents, nil
}
