package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/metrics"
	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/sources"
	"github.com/ppiankov/citeverify/internal/worker"
)

// sourceOutcome is the outcome of one source call
type sourceOutcome struct {
	source  string
	cand    model.Candidate
	err     error
	outcome string
}

func (a sourceOutcome) answered() bool {
	return a.outcome == metrics.OutcomeFound || a.outcome == metrics.OutcomeNotFound
}

type cascadeOutcome struct {
	candidates  []model.Candidate
	total       int
	consumed    int
	unavailable int // errors, timeouts, rate limits and skips
	stopped     bool
	timedOut    bool
	cancelled   bool
}

// stable reports whether every source answered, so a negative result would
// not change on retry
func (c cascadeOutcome) stable() bool {
	return !c.timedOut && !c.cancelled && c.unavailable == 0 && (c.stopped || c.consumed == c.total)
}

func zapBatch(id string) zap.Field {
	return zap.String("batch_id", id)
}

// cascade queries verifiers in priority order with up to CascadeWindow calls
// in flight. Results are consumed strictly in order, so the first hit that
// passes the early-stop test wins; once it does, no further source is started
// and in-flight lower-priority calls are cancelled.
func (b *Batch) cascade(ctx context.Context, q sources.Query, verifiers []sources.Verifier) cascadeOutcome {
	o := b.orch
	out := cascadeOutcome{total: len(verifiers)}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	window := max(1, o.cfg.CascadeWindow)
	pending := make([]chan sourceOutcome, len(verifiers))
	next := 0

	for i := range verifiers {
		for next < len(verifiers) && next < i+window {
			ch := make(chan sourceOutcome, 1)
			pending[next] = ch
			go func(v sources.Verifier) {
				ch <- b.attempt(ctx, v, q)
			}(verifiers[next])
			next++
		}

		var a sourceOutcome
		select {
		case a = <-pending[i]:
		case <-ctx.Done():
			out.markDone(ctx.Err())
			return out
		}

		out.consumed++
		if !a.answered() {
			out.unavailable++
			if errors.Is(a.err, context.DeadlineExceeded) || errors.Is(a.err, context.Canceled) {
				if err := ctx.Err(); err != nil {
					out.markDone(err)
					return out
				}
			}
			continue
		}

		out.candidates = append(out.candidates, a.cand)
		if o.stopsCascade(a.cand, q.CaseNameHint) {
			out.stopped = true
			o.logger.Debug("cascade stopped early",
				zap.String("citation", q.Citation),
				zap.String("source", a.source),
				zap.Int("sources_tried", out.consumed))
			return out
		}
	}
	return out
}

func (c *cascadeOutcome) markDone(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		c.timedOut = true
	} else {
		c.cancelled = true
	}
}

// stopsCascade reports whether a candidate is good enough to end the cascade
func (o *Orchestrator) stopsCascade(c model.Candidate, hint string) bool {
	if !c.Verified || !match.IsValidCaseName(c.CaseName) {
		return false
	}
	return hint == "" || match.Similarity(hint, c.CaseName) >= o.cfg.SimilarityThreshold
}

// attempt calls one source with breaker, rate-limit and timeout guards.
// It never returns an error; failures are classified into the outcome.
func (b *Batch) attempt(ctx context.Context, v sources.Verifier, q sources.Query) sourceOutcome {
	o := b.orch
	name := v.Name()
	a := sourceOutcome{source: name}
	logger := o.logger.With(zap.String("source", name), zap.String("citation", q.Citation), zapBatch(b.ID))

	defer func() {
		metrics.SourceAttempts.WithLabelValues(name, a.outcome).Inc()
	}()

	if err := ctx.Err(); err != nil {
		a.outcome, a.err = metrics.OutcomeSkipped, err
		return a
	}
	if err := b.breaker.Allow(name); err != nil {
		logger.Debug("skipping source with open breaker")
		a.outcome, a.err = metrics.OutcomeSkipped, err
		return a
	}
	if err := o.limiter.Acquire(ctx, name); err != nil {
		if errors.Is(err, worker.ErrLimitExhausted) {
			logger.Debug("skipping rate-limited source")
			a.outcome = metrics.OutcomeRateLimited
		} else {
			a.outcome = metrics.OutcomeSkipped
		}
		a.err = err
		return a
	}

	ctx, span := o.tracer.Start(ctx, "verify.source", trace.WithAttributes(
		attribute.String("source", name),
		attribute.String("kind", v.Kind().String()),
	))
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	cand, err := safeVerify(sctx, v, q)
	latency := time.Since(start)
	metrics.SourceLatency.WithLabelValues(name).Observe(latency.Seconds())

	rec := model.SourceAttempt{Source: name, Latency: latency, At: start}

	switch {
	case err == nil:
		b.breaker.RecordSuccess(name)
		if cand.Source == "" {
			cand.Source = name
		}
		rec.Responded = true
		rec.Success = cand.Verified && match.IsValidCaseName(cand.CaseName)
		a.cand = cand
		a.outcome = metrics.OutcomeNotFound
		if cand.Verified {
			a.outcome = metrics.OutcomeFound
		}

	case errors.Is(err, sources.ErrRateLimited):
		rec.RateLimited = true
		a.outcome = metrics.OutcomeRateLimited
		logger.Info("source rate limited", zap.Error(err))

	case errors.Is(err, sources.ErrDisallowed):
		rec.Skipped = true
		a.outcome = metrics.OutcomeSkipped
		logger.Debug("source disallowed by robots.txt", zap.Error(err))

	case ctx.Err() != nil:
		// Cascade deadline or early stop, not the source's fault
		rec.Skipped = true
		a.outcome = metrics.OutcomeSkipped
		err = ctx.Err()

	case errors.Is(sctx.Err(), context.DeadlineExceeded):
		a.outcome = metrics.OutcomeTimeout
		if b.breaker.RecordFailure(name) {
			logger.Warn("source disabled for the rest of the batch")
		}
		logger.Warn("source timed out", zap.Duration("timeout", o.cfg.SourceTimeout))

	default:
		a.outcome = metrics.OutcomeError
		if b.breaker.RecordFailure(name) {
			logger.Warn("source disabled for the rest of the batch")
		}
		logger.Warn("source failed", zap.Error(err))
	}

	if err != nil {
		a.err = err
		rec.Error = err.Error()
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("outcome", a.outcome))
	o.predictor.Record(rec)

	logger.Debug("source attempt",
		zap.String("outcome", a.outcome),
		zap.Duration("latency", latency),
		zap.String("case_name", a.cand.CaseName))
	return a
}

// safeVerify isolates the cascade from a panicking adapter
func safeVerify(ctx context.Context, v sources.Verifier, q sources.Query) (cand model.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cand = model.Candidate{}
			err = &sources.SourceError{Source: v.Name(), Op: "verify", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return v.Verify(ctx, q)
}
