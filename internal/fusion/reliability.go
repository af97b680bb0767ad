package fusion

import (
	"net/url"
	"strings"

	"github.com/ppiankov/citeverify/internal/model"
)

// Tier is the reliability class of a candidate's origin
type Tier int

const (
	TierPrimary   Tier = iota // Structured court data and official reporters
	TierSecondary             // Curated legal databases
	TierTertiary              // Search results and unknown sites
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	default:
		return "tertiary"
	}
}

// Weight scales candidate confidence by tier
func (t Tier) Weight() float64 {
	switch t {
	case TierPrimary:
		return 1.0
	case TierSecondary:
		return 0.9
	default:
		return 0.75
	}
}

var (
	defaultSourceTiers = map[string]Tier{
		"courtlistener": TierPrimary,
		"cornell_lii":   TierSecondary,
		"justia":        TierSecondary,
		"casemine":      TierSecondary,
		"leagle":        TierSecondary,
		"findlaw":       TierSecondary,
		"casetext":      TierSecondary,
	}

	defaultPrimaryDomains = []string{
		"courtlistener.com",
		"supremecourt.gov",
		"uscourts.gov",
		"courts.wa.gov",
		"govinfo.gov",
	}

	defaultSecondaryDomains = []string{
		"justia.com",
		"law.cornell.edu",
		"casemine.com",
		"leagle.com",
		"findlaw.com",
		"casetext.com",
		"vlex.com",
	}
)

// Classifier assigns reliability tiers to candidates
type Classifier struct {
	sources   map[string]Tier
	primary   map[string]bool
	secondary map[string]bool
}

// NewClassifier creates a classifier with the built-in source and domain tiers
func NewClassifier() *Classifier {
	c := &Classifier{
		sources:   make(map[string]Tier, len(defaultSourceTiers)),
		primary:   make(map[string]bool),
		secondary: make(map[string]bool),
	}
	for name, tier := range defaultSourceTiers {
		c.sources[name] = tier
	}
	for _, d := range defaultPrimaryDomains {
		c.primary[d] = true
	}
	for _, d := range defaultSecondaryDomains {
		c.secondary[d] = true
	}
	return c
}

// SetSourceTier overrides the tier of a named source
func (c *Classifier) SetSourceTier(source string, tier Tier) {
	c.sources[source] = tier
}

// Classify returns the tier of a candidate. Known sources use their own tier;
// anything else (including search engines) is judged by the result URL's host.
func (c *Classifier) Classify(cand model.Candidate) Tier {
	if tier, ok := c.sources[cand.Source]; ok {
		return tier
	}
	return c.ClassifyURL(cand.URL)
}

// ClassifyURL classifies a URL by host
func (c *Classifier) ClassifyURL(rawURL string) Tier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return TierTertiary
	}

	host := strings.ToLower(parsed.Hostname())

	if matchesDomain(host, c.primary) {
		return TierPrimary
	}
	if matchesDomain(host, c.secondary) {
		return TierSecondary
	}

	// Official court sites
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".uscourts.gov") {
		return TierPrimary
	}

	return TierTertiary
}

// matchesDomain reports whether host equals or is a subdomain of a listed domain
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
