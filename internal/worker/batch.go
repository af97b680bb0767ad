package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/citeverify/internal/model"
)

// ClusterVerifier verifies every citation of a cluster
type ClusterVerifier interface {
	VerifyCluster(ctx context.Context, cluster model.Cluster) ([]model.VerificationResult, error)
}

// ClusterJob verifies one cluster
type ClusterJob struct {
	Cluster  model.Cluster
	Verifier ClusterVerifier
}

// Execute executes the cluster job
func (j *ClusterJob) Execute(ctx context.Context) Result {
	results, err := j.Verifier.VerifyCluster(ctx, j.Cluster)
	return &ClusterResult{
		Cluster: j.Cluster,
		Results: results,
		Error:   err,
	}
}

// ClusterResult represents the result of a cluster job
type ClusterResult struct {
	Cluster model.Cluster
	Results []model.VerificationResult
	Error   error
}

// GetError returns the error from the cluster result
func (r *ClusterResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies many clusters with bounded concurrency
type BatchProcessor struct {
	verifier    ClusterVerifier
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verifier ClusterVerifier, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
	}
}

// ProcessClusters verifies clusters concurrently; results follow input order
func (b *BatchProcessor) ProcessClusters(ctx context.Context, clusters []model.Cluster) []*ClusterResult {
	if len(clusters) == 0 {
		return []*ClusterResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, c := range clusters {
		pool.Submit(&ClusterJob{Cluster: c, Verifier: b.verifier})
	}

	results := pool.Wait()

	out := make([]*ClusterResult, len(clusters))
	for i := range clusters {
		if i < len(results) {
			if r, ok := results[i].(*ClusterResult); ok && r != nil {
				out[i] = r
				continue
			}
		}
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("cluster not processed")
		}
		out[i] = &ClusterResult{Cluster: clusters[i], Error: err}
	}
	return out
}

// ProcessFile reads clusters from a file and verifies them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClusterResult, error) {
	clusters, err := ReadClustersFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read clusters: %w", err)
	}

	return b.ProcessClusters(ctx, clusters), nil
}

// ReadClustersFromFile reads one cluster per line from a file
func ReadClustersFromFile(filePath string) ([]model.Cluster, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadClusters(file)
}

// ReadClusters parses clusters, one per line:
//
//	citation[; parallel citation...] [| case name [| context]]
//
// Blank lines and lines starting with # are skipped; duplicate lines are dropped.
func ReadClusters(r io.Reader) ([]model.Cluster, error) {
	var clusters []model.Cluster
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true

		cluster, err := ParseClusterLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		clusters = append(clusters, cluster)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return clusters, nil
}

// ParseClusterLine parses a single cluster line
func ParseClusterLine(line string) (model.Cluster, error) {
	fields := strings.SplitN(line, "|", 3)

	var citations []string
	for _, c := range strings.Split(fields[0], ";") {
		if c = strings.TrimSpace(c); c != "" {
			citations = append(citations, c)
		}
	}
	if len(citations) == 0 {
		return model.Cluster{}, fmt.Errorf("no citation in %q", line)
	}

	cluster := model.Cluster{
		ID:        uuid.NewString(),
		Citations: citations,
	}
	if len(fields) > 1 {
		cluster.CaseNameHint = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		cluster.Context = strings.TrimSpace(fields[2])
	}
	return cluster, nil
}
