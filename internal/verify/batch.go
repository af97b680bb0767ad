package verify

import (
	"context"

	"github.com/google/uuid"

	"github.com/ppiankov/citeverify/internal/breaker"
	"github.com/ppiankov/citeverify/internal/model"
)

// Batch groups lookups that share one circuit breaker, typically all the
// citations of a document. Safe for concurrent use.
type Batch struct {
	ID      string
	orch    *Orchestrator
	breaker *breaker.BatchBreaker
}

// NewBatch starts a batch with a fresh breaker
func (o *Orchestrator) NewBatch() *Batch {
	id := uuid.NewString()
	return &Batch{
		ID:      id,
		orch:    o,
		breaker: breaker.New(o.cfg.FailureThreshold, o.logger.Named("breaker").With(zapBatch(id))),
	}
}

// Verify verifies one citation. Per-source failures become data in the
// result; only input errors and cache corruption are returned.
func (b *Batch) Verify(ctx context.Context, citation, hint, docContext string) (model.VerificationResult, error) {
	return b.orch.verify(ctx, b, citation, hint, docContext)
}

// Breaker exposes the batch's circuit breaker
func (b *Batch) Breaker() *breaker.BatchBreaker {
	return b.breaker
}
