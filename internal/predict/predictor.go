// Package predict ranks verification sources by how likely they are to
// resolve a citation, learning from recorded source attempts.
package predict

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/model"
)

const (
	// historySize is the number of recent attempts kept per source
	historySize = 50

	jurisdictionBonus = 0.15
	maxLatencyPenalty = 0.2
)

// Source describes a rankable source
type Source struct {
	Name          string
	Kind          model.SourceKind
	Jurisdictions []string // Jurisdictions with dedicated coverage; empty means general
}

// SourceStats summarizes recent attempts for one source
type SourceStats struct {
	Attempts    int           `json:"attempts"`
	SuccessRate float64       `json:"success_rate"`
	MeanLatency time.Duration `json:"mean_latency"`
}

type history struct {
	outcomes  []float64 // 1 success, 0 miss
	latencies []float64 // seconds
}

func (h *history) add(success bool, latency time.Duration) {
	v := 0.0
	if success {
		v = 1.0
	}
	h.outcomes = appendBounded(h.outcomes, v)
	h.latencies = appendBounded(h.latencies, latency.Seconds())
}

func appendBounded(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historySize {
		s = s[len(s)-historySize:]
	}
	return s
}

// Predictor orders sources for a citation. Safe for concurrent use.
type Predictor struct {
	mu      sync.RWMutex
	sources []Source // Default priority order
	stats   map[string]*history
	logger  *zap.Logger
}

// New creates a predictor. The order of sources is the default priority.
func New(sources []Source, logger *zap.Logger) *Predictor {
	return &Predictor{
		sources: append([]Source(nil), sources...),
		stats:   make(map[string]*history),
		logger:  logging.OrNop(logger),
	}
}

// PredictBestSources returns every known source name ordered by predicted
// usefulness. Kinds are never interleaved: all structured APIs, then legal
// databases, then search engines. Within a kind, sources are ranked by
// smoothed success rate, latency and jurisdiction coverage; sources without
// history keep their default relative order.
func (p *Predictor) PredictBestSources(citation model.NormalizedCitation, caseName string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	type ranked struct {
		name  string
		kind  model.SourceKind
		score float64
	}

	list := make([]ranked, len(p.sources))
	for i, src := range p.sources {
		list[i] = ranked{name: src.Name, kind: src.Kind, score: p.score(src, citation)}
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].kind != list[j].kind {
			return list[i].kind < list[j].kind
		}
		return list[i].score > list[j].score
	})

	order := make([]string, len(list))
	for i, r := range list {
		order[i] = r.name
	}

	p.logger.Debug("predicted source order",
		zap.String("citation", citation.Text),
		zap.Bool("has_name", caseName != ""),
		zap.Strings("order", order))

	return order
}

func (p *Predictor) score(src Source, citation model.NormalizedCitation) float64 {
	score := 0.5
	if h, ok := p.stats[src.Name]; ok && len(h.outcomes) > 0 {
		successes := stat.Mean(h.outcomes, nil) * float64(len(h.outcomes))
		score = (successes + 1) / float64(len(h.outcomes)+2)

		if len(h.latencies) > 0 {
			penalty := stat.Mean(h.latencies, nil) / 10 * maxLatencyPenalty
			score -= min(penalty, maxLatencyPenalty)
		}
	}

	if citation.Jurisdiction != "" {
		for _, j := range src.Jurisdictions {
			if j == citation.Jurisdiction {
				score += jurisdictionBonus
				break
			}
		}
	}
	return score
}

// Record folds a source attempt into the statistics. Errors and timeouts
// count as failures; rate-limited and skipped attempts are ignored.
func (p *Predictor) Record(attempt model.SourceAttempt) {
	if attempt.RateLimited || attempt.Skipped {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.stats[attempt.Source]
	if !ok {
		h = &history{}
		p.stats[attempt.Source] = h
	}
	h.add(attempt.Success, attempt.Latency)
}

// Stats returns the recent statistics for a source
func (p *Predictor) Stats(name string) SourceStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h, ok := p.stats[name]
	if !ok || len(h.outcomes) == 0 {
		return SourceStats{}
	}
	return SourceStats{
		Attempts:    len(h.outcomes),
		SuccessRate: stat.Mean(h.outcomes, nil),
		MeanLatency: time.Duration(stat.Mean(h.latencies, nil) * float64(time.Second)),
	}
}

// Sources returns the known sources in default order
func (p *Predictor) Sources() []Source {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Source(nil), p.sources...)
}
