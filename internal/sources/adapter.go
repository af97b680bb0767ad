// Package sources implements the per-source verifiers: the structured
// citation API, legal-database scrapers and general search engines.
package sources

import (
	"context"
	"sort"
	"sync"

	"github.com/ppiankov/citeverify/internal/model"
)

// Query is what every verifier receives for one citation
type Query struct {
	Citation     string                   // Raw citation as supplied
	Normalized   model.NormalizedCitation // Parsed form
	Variants     []string                 // Spelling variants, Citation first
	CaseNameHint string
	Context      string
}

// Verifier is the common contract for a verification source.
//
// Verify returns a candidate with Verified=false when the source has no
// record of the citation; it returns an error (always a *SourceError) only
// on transport or parse failure.
type Verifier interface {
	Name() string
	Kind() model.SourceKind
	Verify(ctx context.Context, q Query) (model.Candidate, error)
}

// JurisdictionCoverage is implemented by verifiers with dedicated coverage
// of particular jurisdictions
type JurisdictionCoverage interface {
	Jurisdictions() []string
}

// Registry holds verifiers in default priority order
type Registry struct {
	mu        sync.RWMutex
	verifiers []Verifier
	byName    map[string]Verifier
}

// NewRegistry creates an empty registry
func NewRegistry(verifiers ...Verifier) *Registry {
	r := &Registry{byName: make(map[string]Verifier)}
	for _, v := range verifiers {
		r.Register(v)
	}
	return r
}

// Register adds a verifier, replacing any verifier with the same name
func (r *Registry) Register(v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[v.Name()]; exists {
		for i, existing := range r.verifiers {
			if existing.Name() == v.Name() {
				r.verifiers[i] = v
			}
		}
	} else {
		r.verifiers = append(r.verifiers, v)
	}
	r.byName[v.Name()] = v
}

// Get returns the named verifier
func (r *Registry) Get(name string) (Verifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byName[name]
	return v, ok
}

// All returns the verifiers in default priority order: by kind, then by
// registration order
func (r *Registry) All() []Verifier {
	r.mu.RLock()
	out := append([]Verifier(nil), r.verifiers...)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind() < out[j].Kind()
	})
	return out
}

// Names returns verifier names in default priority order
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, v := range all {
		names[i] = v.Name()
	}
	return names
}

// Len returns the number of registered verifiers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.verifiers)
}
