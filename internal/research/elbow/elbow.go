// Package elbow finds the "knee" of a descending relevance-score curve so
// the research pipeline can cut result lists at a data-driven point instead
// of a fixed top-K.
package elbow

import (
	"math"
	"sort"
)

// minDistanceThreshold is the minimum normalized perpendicular distance a
// candidate knee must have from the chord between the first and last point.
// Below this the curve is close enough to a straight line that no knee is
// considered meaningful.
const minDistanceThreshold = 0.01

// FindKneedle locates the elbow index in a descending-sorted score slice
// using the Kneedle algorithm: normalize scores and positions to [0,1],
// draw a chord from the first to the last point, and pick the index with
// maximum perpendicular distance from that chord.
//
// Returns -1 when fewer than three points are supplied, all scores are
// identical, or the chord is degenerate (vertical), or the best distance
// falls below minDistanceThreshold.
func FindKneedle(sortedScores []float64) int {
	n := len(sortedScores)
	if n < 3 {
		return -1
	}

	minScore, maxScore := sortedScores[0], sortedScores[0]
	for _, s := range sortedScores {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	scoreRange := maxScore - minScore
	if scoreRange == 0 {
		return -1
	}

	// Normalize x (position) and y (score) to [0, 1].
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range sortedScores {
		xs[i] = float64(i) / float64(n-1)
		ys[i] = (s - minScore) / scoreRange
	}

	x1, y1 := xs[0], ys[0]
	x2, y2 := xs[n-1], ys[n-1]

	dx := x2 - x1
	if dx == 0 {
		return -1
	}
	// Line through (x1,y1)-(x2,y2): y = m*x + b, rearranged to m*x - y + b = 0.
	m := (y2 - y1) / dx
	b := y1 - m*x1
	denom := math.Sqrt(m*m + 1)

	bestIdx := -1
	bestDist := 0.0
	for i := 0; i < n; i++ {
		dist := math.Abs(m*xs[i]-ys[i]+b) / denom
		if dist > bestDist {
			bestDist = dist
			bestIdx = i
		}
	}

	if bestDist < minDistanceThreshold {
		return -1
	}
	return bestIdx
}

// ScoredItem is the minimal shape elbow.Threshold needs from a ranked
// result: anything exposing a rerank/relevance score.
type ScoredItem interface {
	RelevanceScore() float64
}

// ComputeThreshold sorts items descending by score, tries Kneedle, and
// falls back to the score at the midpoint index when no knee is found.
// An empty slice yields the default threshold of 0.5, matching the
// original's behavior for "no information available".
func ComputeThreshold(items []ScoredItem) float64 {
	if len(items) == 0 {
		return 0.5
	}

	scores := make([]float64, len(items))
	for i, it := range items {
		scores[i] = it.RelevanceScore()
	}
	return ComputeThresholdFromScores(scores)
}

// ComputeThresholdFromScores is the score-slice-only variant of
// ComputeThreshold, for callers that already have a flat list of scores
// (e.g. gap-unification scores rather than chunk objects).
func ComputeThresholdFromScores(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.5
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sortDescending(sorted)

	if idx := FindKneedle(sorted); idx >= 0 {
		return sorted[idx]
	}
	return sorted[len(sorted)/2]
}

func sortDescending(s []float64) {
	sort.Sort(sort.Reverse(sort.Float64Slice(s)))
}
