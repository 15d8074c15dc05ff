package clustering

import (
	"context"
	"fmt"
	"sort"

	"github.com/Aman-CERP/amanmcp/internal/research/collab"
	"github.com/Aman-CERP/amanmcp/internal/research/tokens"
)

// ClusterGroup is a set of files clustered together for one map-reduce
// synthesis pass, with the token total the map-phase prompt builder
// needs to size its output budget.
type ClusterGroup struct {
	ClusterID    int
	FilePaths    []string
	FilesContent map[string]string
	TotalTokens  int
}

// Service embeds files and clusters them, backed by an embedding
// provider for vectors and a token estimator for sizing.
type Service struct {
	embedder  collab.EmbeddingProvider
	estimator tokens.Estimator
}

// NewService builds a Service. estimator may be nil, in which case a
// TiktokenEstimator is created lazily.
func NewService(embedder collab.EmbeddingProvider, estimator tokens.Estimator) *Service {
	if estimator == nil {
		estimator = tokens.NewTiktokenEstimator()
	}
	return &Service{embedder: embedder, estimator: estimator}
}

func (s *Service) countTokens(content string) int {
	return s.estimator.Estimate(content)
}

// ClusterFiles embeds every file's content and partitions them into
// nClusters groups via k-means. nClusters is clamped to the number of
// files; 1 cluster (or a single file) short-circuits straight to one
// group without calling the embedder.
func (s *Service) ClusterFiles(ctx context.Context, files map[string]string, nClusters int) ([]ClusterGroup, error) {
	paths := sortedKeys(files)
	if nClusters > len(paths) {
		nClusters = len(paths)
	}

	if nClusters <= 1 || len(paths) <= 1 {
		return []ClusterGroup{s.buildGroup(0, paths, files)}, nil
	}

	contents := make([]string, len(paths))
	for i, p := range paths {
		contents[i] = files[p]
	}

	vectors, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embedding files for clustering: %w", err)
	}

	labels := KMeans(vectors, nClusters)
	return s.groupByLabel(paths, files, labels), nil
}

func (s *Service) buildGroup(id int, paths []string, files map[string]string) ClusterGroup {
	content := make(map[string]string, len(paths))
	total := 0
	for _, p := range paths {
		content[p] = files[p]
		total += s.countTokens(files[p])
	}
	return ClusterGroup{ClusterID: id, FilePaths: paths, FilesContent: content, TotalTokens: total}
}

func (s *Service) groupByLabel(paths []string, files map[string]string, labels []int) []ClusterGroup {
	byLabel := make(map[int][]string)
	for i, p := range paths {
		byLabel[labels[i]] = append(byLabel[labels[i]], p)
	}

	ids := make([]int, 0, len(byLabel))
	for id := range byLabel {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	groups := make([]ClusterGroup, 0, len(ids))
	for newID, oldID := range ids {
		groups = append(groups, s.buildGroup(newID, byLabel[oldID], files))
	}
	return groups
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
