// Package fusion merges candidate answers from several sources into one
// verification result.
package fusion

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/normalize"
)

const (
	// corroborationBoost is added per additional independent agreeing source
	corroborationBoost = 0.05
	maxConfidence      = 0.99
)

// Engine fuses candidates
type Engine struct {
	classifier *Classifier
	threshold  float64
	logger     *zap.Logger
}

// NewEngine creates a fusion engine. threshold <= 0 uses match.Threshold.
func NewEngine(classifier *Classifier, threshold float64, logger *zap.Logger) *Engine {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if threshold <= 0 {
		threshold = match.Threshold
	}
	return &Engine{
		classifier: classifier,
		threshold:  threshold,
		logger:     logging.OrNop(logger),
	}
}

type member struct {
	cand model.Candidate
	tier Tier
}

type group struct {
	members []member
	cites   map[string]bool
}

func (g *group) canonical() member { return g.members[0] }

// support sums tier-weighted confidence over distinct sources
func (g *group) support() float64 {
	seen := make(map[string]bool)
	total := 0.0
	for _, m := range g.members {
		if seen[m.cand.Source] {
			continue
		}
		seen[m.cand.Source] = true
		total += m.cand.Confidence * m.tier.Weight()
	}
	return total
}

// Fuse merges candidates for citation into one result. Candidates that are
// not positive hits or whose case name fails the validity filter are
// discarded before grouping. With a hint, only groups whose name matches it
// can verify the citation.
func (e *Engine) Fuse(candidates []model.Candidate, citation, hint string) model.VerificationResult {
	result := model.VerificationResult{
		Citation: citation,
		Verified: model.StatusUnconfirmed,
	}

	valid := make([]member, 0, len(candidates))
	for _, c := range candidates {
		if !c.Verified {
			continue
		}
		if !match.IsValidCaseName(c.CaseName) {
			e.logger.Debug("discarding candidate with invalid case name",
				zap.String("source", c.Source), zap.String("case_name", c.CaseName))
			continue
		}
		valid = append(valid, member{cand: c, tier: e.classifier.Classify(c)})
	}

	if len(valid) == 0 {
		result.Explanation = "No source returned a valid case name for this citation"
		return result
	}

	// Most reliable first so each group's canonical member is its best source
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].tier != valid[j].tier {
			return valid[i].tier < valid[j].tier
		}
		return valid[i].cand.Confidence > valid[j].cand.Confidence
	})

	groups := e.group(valid, citation)

	var matching []*group
	if hint != "" {
		for _, g := range groups {
			if match.Similarity(hint, g.canonical().cand.CaseName) >= e.threshold {
				matching = append(matching, g)
			}
		}
		if len(matching) == 0 {
			found := groups[0].canonical().cand
			result.Explanation = fmt.Sprintf("Citation resolves to %q (%s), which does not match %q",
				found.CaseName, found.Source, hint)
			result.FoundCaseName = found.CaseName
			return result
		}
	} else {
		matching = groups
	}

	best := matching[0]
	for _, g := range matching[1:] {
		if g.support() > best.support() {
			best = g
		}
	}

	return e.resolve(best, citation)
}

// group clusters members whose names match and whose citations overlap
func (e *Engine) group(members []member, citation string) []*group {
	target := normalize.Normalize(citation).Text

	var groups []*group
	for _, m := range members {
		cites := candidateCites(m.cand, target)

		var placed bool
		for _, g := range groups {
			if match.Similarity(g.canonical().cand.CaseName, m.cand.CaseName) < e.threshold {
				continue
			}
			if !overlaps(g.cites, cites) {
				continue
			}
			g.members = append(g.members, m)
			for c := range cites {
				g.cites[c] = true
			}
			placed = true
			break
		}

		if !placed {
			groups = append(groups, &group{members: []member{m}, cites: cites})
		}
	}
	return groups
}

func (e *Engine) resolve(g *group, citation string) model.VerificationResult {
	canon := g.canonical()

	result := model.VerificationResult{
		Citation:      citation,
		Verified:      model.StatusTrue,
		CaseName:      canon.cand.CaseName,
		CanonicalDate: canon.cand.Date,
		Court:         canon.cand.Court,
		URL:           canon.cand.URL,
		Source:        canon.cand.Source,
	}

	seen := map[string]bool{canon.cand.Source: true}
	parallel := make(map[string]bool)
	target := normalize.Normalize(citation).Text

	for _, m := range g.members {
		if result.CanonicalDate == "" {
			result.CanonicalDate = m.cand.Date
		}
		if result.Court == "" {
			result.Court = m.cand.Court
		}
		if result.URL == "" {
			result.URL = m.cand.URL
		}
		for _, pc := range m.cand.ParallelCitations {
			if n := normalize.Normalize(pc).Text; n != target {
				parallel[n] = true
			}
		}
		if !seen[m.cand.Source] {
			seen[m.cand.Source] = true
			result.Corroborating = append(result.Corroborating, m.cand.Source)
		}
	}

	for pc := range parallel {
		result.ParallelCitations = append(result.ParallelCitations, pc)
	}
	sort.Strings(result.ParallelCitations)

	confidence := canon.cand.Confidence * canon.tier.Weight()
	confidence += corroborationBoost * float64(len(result.Corroborating))
	result.Confidence = min(confidence, maxConfidence)

	result.Explanation = fmt.Sprintf("Verified by %s", canon.cand.Source)
	if len(result.Corroborating) > 0 {
		result.Explanation += fmt.Sprintf(" (corroborated by %s)", strings.Join(result.Corroborating, ", "))
	}

	result.EnforceURLInvariant()
	return result
}

// candidateCites returns the normalized citations a candidate vouches for.
// A candidate that does not echo a citation is taken to answer the target.
func candidateCites(c model.Candidate, target string) map[string]bool {
	cites := make(map[string]bool)
	if c.Citation == "" {
		cites[target] = true
	} else {
		cites[normalize.Normalize(c.Citation).Text] = true
	}
	for _, pc := range c.ParallelCitations {
		cites[normalize.Normalize(pc).Text] = true
	}
	return cites
}

func overlaps(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}
