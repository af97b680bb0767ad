// Package breaker implements the per-batch source circuit breaker: after a
// run of consecutive failures a source is skipped for the rest of the batch.
package breaker

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/metrics"
)

// State represents the breaker state for one source
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow for a source whose breaker is open
var ErrOpen = errors.New("circuit breaker is open")

// Counts holds per-source statistics for the batch
type Counts struct {
	Requests            uint32
	TotalSuccesses      uint32
	TotalFailures       uint32
	ConsecutiveFailures uint32
}

type entry struct {
	state  State
	counts Counts
}

// BatchBreaker tracks every source within one batch. Safe for concurrent use.
// There is no half-open state: an open source stays open until the batch ends.
type BatchBreaker struct {
	threshold uint32
	logger    *zap.Logger

	mu      sync.Mutex
	sources map[string]*entry
}

// New creates a breaker that opens after threshold consecutive failures
func New(threshold int, logger *zap.Logger) *BatchBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &BatchBreaker{
		threshold: uint32(threshold),
		logger:    logging.OrNop(logger),
		sources:   make(map[string]*entry),
	}
}

func (b *BatchBreaker) get(source string) *entry {
	e, ok := b.sources[source]
	if !ok {
		e = &entry{}
		b.sources[source] = e
	}
	return e
}

// Allow reports whether source may be queried
func (b *BatchBreaker) Allow(source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(source)
	if e.state == StateOpen {
		return ErrOpen
	}
	e.counts.Requests++
	return nil
}

// RecordSuccess records a response (found or not found) and resets the failure run
func (b *BatchBreaker) RecordSuccess(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(source)
	e.counts.TotalSuccesses++
	e.counts.ConsecutiveFailures = 0
}

// RecordFailure records a transient failure and reports whether it opened the breaker
func (b *BatchBreaker) RecordFailure(source string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.get(source)
	e.counts.TotalFailures++
	e.counts.ConsecutiveFailures++

	if e.state == StateClosed && e.counts.ConsecutiveFailures >= b.threshold {
		e.state = StateOpen
		metrics.BreakerTrips.WithLabelValues(source).Inc()
		b.logger.Warn("circuit breaker opened for batch",
			zap.String("source", source),
			zap.Uint32("consecutive_failures", e.counts.ConsecutiveFailures))
		return true
	}
	return false
}

// State returns the breaker state for source
func (b *BatchBreaker) State(source string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.sources[source]; ok {
		return e.state
	}
	return StateClosed
}

// Counts returns the statistics for source
func (b *BatchBreaker) Counts(source string) Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.sources[source]; ok {
		return e.counts
	}
	return Counts{}
}

// Tripped returns the sorted names of sources with an open breaker
func (b *BatchBreaker) Tripped() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for name, e := range b.sources {
		if e.state == StateOpen {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
