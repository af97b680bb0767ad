// Package verify sequences the verification pipeline for a citation: cache
// check, the prioritized source cascade, fusion, URL confirmation and cache
// write.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/citeverify/internal/cache"
	"github.com/ppiankov/citeverify/internal/fusion"
	"github.com/ppiankov/citeverify/internal/linkrot"
	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/metrics"
	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/normalize"
	"github.com/ppiankov/citeverify/internal/predict"
	"github.com/ppiankov/citeverify/internal/sources"
	"github.com/ppiankov/citeverify/internal/worker"
)

const tracerName = "github.com/ppiankov/citeverify/internal/verify"

// implausibleConfidence is the confidence of a citation rejected by the reporter table
const implausibleConfidence = 0.95

var (
	// ErrEmptyCitation is returned for a blank citation string
	ErrEmptyCitation = errors.New("empty citation")

	// ErrEmptyCluster is returned for a cluster without citations
	ErrEmptyCluster = errors.New("empty cluster")
)

// Options wires the orchestrator's collaborators. Only Registry is required.
type Options struct {
	Registry  *sources.Registry
	Predictor *predict.Predictor // Built from Registry when nil
	Cache     *cache.Manager     // nil disables caching
	Fusion    *fusion.Engine     // Default engine when nil
	Linkrot   *linkrot.Detector  // nil skips URL confirmation
	Limiter   *worker.Limiter    // Default limits when nil
	Config    model.VerificationConfig
	Logger    *zap.Logger
}

// Orchestrator verifies citations. Safe for concurrent use; per-batch state
// lives in Batch.
type Orchestrator struct {
	registry  *sources.Registry
	predictor *predict.Predictor
	cache     *cache.Manager
	fusion    *fusion.Engine
	linkrot   *linkrot.Detector
	limiter   *worker.Limiter
	cfg       model.VerificationConfig
	flight    singleflight.Group
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New creates an orchestrator
func New(opts Options) *Orchestrator {
	defaults := model.DefaultConfig().Verification
	cfg := opts.Config
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = defaults.GlobalTimeout
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaults.SourceTimeout
	}
	if cfg.CascadeWindow <= 0 {
		cfg.CascadeWindow = defaults.CascadeWindow
	}
	if cfg.CitationConcurrency <= 0 {
		cfg.CitationConcurrency = defaults.CitationConcurrency
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = match.Threshold
	}

	logger := logging.OrNop(opts.Logger)
	registry := opts.Registry
	if registry == nil {
		registry = sources.NewRegistry()
	}

	o := &Orchestrator{
		registry:  registry,
		predictor: opts.Predictor,
		cache:     opts.Cache,
		fusion:    opts.Fusion,
		linkrot:   opts.Linkrot,
		limiter:   opts.Limiter,
		cfg:       cfg,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
	if o.predictor == nil {
		o.predictor = predict.New(PredictorSources(registry), logger)
	}
	if o.fusion == nil {
		o.fusion = fusion.NewEngine(nil, cfg.SimilarityThreshold, logger)
	}
	if o.limiter == nil {
		o.limiter = worker.NewLimiterFromConfig(model.DefaultConfig().RateLimiting)
	}
	return o
}

// NewFromConfig builds an orchestrator with the default sources, rate limits
// and linkrot detector described by cfg
func NewFromConfig(cfg *model.Config, cm *cache.Manager, logger *zap.Logger) *Orchestrator {
	opts := Options{
		Registry: sources.NewDefaultRegistry(cfg, logger),
		Cache:    cm,
		Limiter:  worker.NewLimiterFromConfig(cfg.RateLimiting),
		Config:   cfg.Verification,
		Logger:   logger,
	}
	if cfg.Linkrot.Enabled {
		opts.Linkrot = linkrot.NewDetector(cfg.Linkrot, cfg.HTTP, cm, logger)
	}
	return New(opts)
}

// PredictorSources describes the registry's verifiers for the predictor
func PredictorSources(r *sources.Registry) []predict.Source {
	all := r.All()
	out := make([]predict.Source, len(all))
	for i, v := range all {
		out[i] = predict.Source{Name: v.Name(), Kind: v.Kind()}
		if jc, ok := v.(sources.JurisdictionCoverage); ok {
			out[i].Jurisdictions = jc.Jurisdictions()
		}
	}
	return out
}

// Predictor returns the orchestrator's source predictor
func (o *Orchestrator) Predictor() *predict.Predictor {
	return o.predictor
}

// Verify verifies one citation in a batch of its own
func (o *Orchestrator) Verify(ctx context.Context, citation, hint, docContext string) (model.VerificationResult, error) {
	return o.NewBatch().Verify(ctx, citation, hint, docContext)
}

// VerifyCluster verifies a cluster in a batch of its own
func (o *Orchestrator) VerifyCluster(ctx context.Context, cluster model.Cluster) ([]model.VerificationResult, error) {
	return o.NewBatch().VerifyCluster(ctx, cluster)
}

// verify runs the pipeline for one citation within batch b
func (o *Orchestrator) verify(ctx context.Context, b *Batch, citation, hint, docContext string) (model.VerificationResult, error) {
	if strings.TrimSpace(citation) == "" {
		return model.VerificationResult{}, ErrEmptyCitation
	}

	ctx, span := o.tracer.Start(ctx, "verify.citation", trace.WithAttributes(
		attribute.String("citation", citation),
		attribute.Bool("has_hint", hint != ""),
		attribute.String("batch_id", b.ID),
	))
	defer span.End()

	key := cache.ResultKey(citation, hint)

	cached, ok, err := o.checkCache(key, citation, hint)
	if err != nil {
		span.RecordError(err)
		return model.VerificationResult{}, fmt.Errorf("cache check: %w", err)
	}
	if ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		cached.Citation = citation
		return cached, nil
	}

	// The shared lookup outlives any single caller; the cascade is bounded
	// by the global timeout instead.
	ch := o.flight.DoChan(key, func() (any, error) {
		return o.lookup(context.WithoutCancel(ctx), b, key, citation, hint, docContext), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.VerificationResult{}, res.Err
		}
		result := res.Val.(model.VerificationResult)
		result.Citation = citation
		span.SetAttributes(
			attribute.String("status", string(result.Verified)),
			attribute.Bool("coalesced", res.Shared),
		)
		return result, nil

	case <-ctx.Done():
		span.SetAttributes(attribute.String("status", string(model.StatusUnconfirmed)))
		return model.VerificationResult{
			Citation:    citation,
			Verified:    model.StatusUnconfirmed,
			Explanation: fmt.Sprintf("Verification abandoned: %v", ctx.Err()),
		}, nil
	}
}

// checkCache looks up the hinted key, then falls back to the hint-less
// entry when its case name still matches the hint
func (o *Orchestrator) checkCache(key, citation, hint string) (model.VerificationResult, bool, error) {
	result, ok, err := o.cache.Get(key)
	if err != nil || ok || hint == "" {
		return result, ok, err
	}

	result, ok, err = o.cache.Get(cache.ResultKey(citation, ""))
	if err != nil || !ok {
		return model.VerificationResult{}, false, err
	}

	switch {
	case result.Verified == model.StatusFalse:
		return result, true, nil
	case result.Verified.IsVerified() && match.Similarity(hint, result.CaseName) >= o.cfg.SimilarityThreshold:
		return result, true, nil
	default:
		o.logger.Debug("cached result does not match hint",
			zap.String("citation", citation),
			zap.String("cached_name", result.CaseName),
			zap.String("hint", hint))
		return model.VerificationResult{}, false, nil
	}
}

// lookup runs plausibility, the cascade, fusion and the cache write
func (o *Orchestrator) lookup(ctx context.Context, b *Batch, key, citation, hint, docContext string) model.VerificationResult {
	normalized := normalize.Normalize(citation)

	if ok, reason := normalize.Plausible(normalized); !ok {
		result := model.VerificationResult{
			Citation:    citation,
			Verified:    model.StatusFalse,
			Confidence:  implausibleConfidence,
			Explanation: "Citation cannot exist: " + reason,
		}
		o.finish(key, result, true)
		return result
	}

	cascadeCtx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()

	q := sources.Query{
		Citation:     citation,
		Normalized:   normalized,
		Variants:     normalize.GenerateVariants(citation),
		CaseNameHint: hint,
		Context:      docContext,
	}

	out := b.cascade(cascadeCtx, q, o.orderedVerifiers(normalized, hint))
	result := o.fusion.Fuse(out.candidates, citation, hint)

	if !result.Verified.IsVerified() {
		switch {
		case out.timedOut:
			result.Explanation = fmt.Sprintf("Verification timed out after %s before any source confirmed the citation", o.cfg.GlobalTimeout)
		case out.unavailable > 0:
			result.Explanation += fmt.Sprintf(" (%d of %d sources unavailable)", out.unavailable, out.total)
		}
	}

	if result.Verified.IsVerified() && o.linkrot != nil && result.URL != "" {
		result.URL = o.linkrot.Confirm(ctx, result.URL, linkrot.Metadata{
			CaseName: result.CaseName,
			Citation: normalized.Text,
		})
	}
	result.EnforceURLInvariant()

	o.finish(key, result, out.stable())
	return result
}

// finish records the outcome and persists it when the result is cacheable:
// positive verifications, and determinations reached with every source answering
func (o *Orchestrator) finish(key string, result model.VerificationResult, stable bool) {
	metrics.Verifications.WithLabelValues(string(result.Verified)).Inc()

	if !result.Verified.IsVerified() && !stable {
		o.logger.Debug("not caching transient result",
			zap.String("citation", result.Citation),
			zap.String("explanation", result.Explanation))
		return
	}

	if err := o.cache.Set(key, result, 0); err != nil {
		o.logger.Warn("failed to cache verification result",
			zap.String("citation", result.Citation),
			zap.Error(err))
	}
}

// orderedVerifiers resolves the predictor's order against the registry
func (o *Orchestrator) orderedVerifiers(n model.NormalizedCitation, hint string) []sources.Verifier {
	order := o.predictor.PredictBestSources(n, hint)
	out := make([]sources.Verifier, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if v, ok := o.registry.Get(name); ok {
			out = append(out, v)
			seen[name] = true
		}
	}
	// Sources registered after the predictor was built go last
	for _, v := range o.registry.All() {
		if !seen[v.Name()] {
			out = append(out, v)
		}
	}
	return out
}
