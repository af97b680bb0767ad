package verify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/model"
)

// parallelDiscount scales the confidence carried over to a parallel citation
const parallelDiscount = 0.9

// VerifyCluster verifies each citation of a cluster, then propagates a
// direct verification to the members no source confirmed. Results follow
// the order of cluster.Citations.
func (b *Batch) VerifyCluster(ctx context.Context, cluster model.Cluster) ([]model.VerificationResult, error) {
	if len(cluster.Citations) == 0 {
		return nil, ErrEmptyCluster
	}

	results := make([]model.VerificationResult, len(cluster.Citations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.orch.cfg.CitationConcurrency)
	for i, citation := range cluster.Citations {
		g.Go(func() error {
			r, err := b.Verify(gctx, citation, cluster.CaseNameHint, cluster.Context)
			if err != nil {
				return fmt.Errorf("verify %q: %w", citation, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.orch.propagate(cluster, results)
	return results, nil
}

// propagate marks unconfirmed members true_by_parallel when another member
// was verified directly, and unifies the case name across the cluster.
// Members a source resolved to a different case keep their unconfirmed result.
func (o *Orchestrator) propagate(cluster model.Cluster, results []model.VerificationResult) {
	best := -1
	for i, r := range results {
		if r.Verified != model.StatusTrue {
			continue
		}
		if best < 0 || r.Confidence > results[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return
	}

	anchor := results[best]
	for i := range results {
		r := &results[i]
		switch r.Verified {
		case model.StatusTrue:
			if match.Similarity(r.CaseName, anchor.CaseName) >= o.cfg.SimilarityThreshold {
				r.CaseName = anchor.CaseName
				continue
			}
			o.logger.Warn("parallel citations resolve to different cases",
				zap.String("cluster_id", cluster.ID),
				zap.String("citation", r.Citation),
				zap.String("case_name", r.CaseName),
				zap.String("anchor_case_name", anchor.CaseName))

		case model.StatusUnconfirmed:
			if r.FoundCaseName != "" {
				o.logger.Warn("parallel citation resolves to a different case",
					zap.String("cluster_id", cluster.ID),
					zap.String("citation", r.Citation),
					zap.String("found_case_name", r.FoundCaseName),
					zap.String("anchor_case_name", anchor.CaseName))
				break
			}
			*r = model.VerificationResult{
				Citation:          r.Citation,
				Verified:          model.StatusTrueByParallel,
				CaseName:          anchor.CaseName,
				CanonicalDate:     anchor.CanonicalDate,
				Court:             anchor.Court,
				URL:               anchor.URL,
				Source:            anchor.Source,
				Confidence:        anchor.Confidence * parallelDiscount,
				Explanation:       fmt.Sprintf("Parallel citation %s verified by %s", anchor.Citation, anchor.Source),
				ParallelCitations: []string{anchor.Citation},
			}
		}
		r.EnforceURLInvariant()
	}
}
