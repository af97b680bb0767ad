package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/model"
)

// SiteProfile describes how to search one legal database
type SiteProfile struct {
	Name          string
	BaseURL       string
	SearchPath    string // Format string receiving the query-escaped search terms
	ResultPath    string // Substring of hrefs that point at case pages
	Jurisdictions []string
	Confidence    float64
}

// DefaultSiteProfiles returns the built-in legal database profiles in
// default priority order
func DefaultSiteProfiles() []SiteProfile {
	return []SiteProfile{
		{
			Name:          "justia",
			BaseURL:       "https://law.justia.com",
			SearchPath:    "/search?query=%s",
			ResultPath:    "/cases/",
			Jurisdictions: []string{"federal", "washington"},
			Confidence:    0.85,
		},
		{
			Name:          "cornell_lii",
			BaseURL:       "https://www.law.cornell.edu",
			SearchPath:    "/search/site/%s",
			ResultPath:    "/supremecourt/text/",
			Jurisdictions: []string{"federal"},
			Confidence:    0.85,
		},
		{
			Name:       "casemine",
			BaseURL:    "https://www.casemine.com",
			SearchPath: "/search/us?q=%s",
			ResultPath: "/judgement/us/",
			Confidence: 0.8,
		},
		{
			Name:          "leagle",
			BaseURL:       "https://www.leagle.com",
			SearchPath:    "/leaglesearch?q=%s",
			ResultPath:    "/decision/",
			Jurisdictions: []string{"washington", "regional"},
			Confidence:    0.8,
		},
		{
			Name:       "findlaw",
			BaseURL:    "https://caselaw.findlaw.com",
			SearchPath: "/search.html?query=%s",
			ResultPath: "/court/",
			Confidence: 0.75,
		},
	}
}

// WithBaseURL returns a copy of the profile pointed at baseURL
func (p SiteProfile) WithBaseURL(baseURL string) SiteProfile {
	p.BaseURL = baseURL
	return p
}

// SiteScraper verifies citations against a legal database's search page
type SiteScraper struct {
	BaseAdapter
	profile SiteProfile
	fetcher *Fetcher
}

// NewSiteScraper creates a scraper for profile
func NewSiteScraper(profile SiteProfile, fetcher *Fetcher) *SiteScraper {
	profile.BaseURL = strings.TrimRight(profile.BaseURL, "/")
	return &SiteScraper{profile: profile, fetcher: fetcher}
}

// Name returns the source name
func (s *SiteScraper) Name() string { return s.profile.Name }

// Kind returns the source kind
func (s *SiteScraper) Kind() model.SourceKind { return model.KindLegalDatabase }

// Jurisdictions returns covered jurisdictions
func (s *SiteScraper) Jurisdictions() []string { return s.profile.Jurisdictions }

// Verify searches the site for the citation and returns the best case link
// whose listing mentions it
func (s *SiteScraper) Verify(ctx context.Context, q Query) (model.Candidate, error) {
	miss := model.Candidate{Source: s.profile.Name}

	searchURL := s.profile.BaseURL + fmt.Sprintf(s.profile.SearchPath, url.QueryEscape(searchTerms(q, false)))
	res, err := s.fetcher.Get(ctx, s.profile.Name, searchURL)
	if err != nil {
		return miss, err
	}
	if res.NotFound {
		return miss, nil
	}

	doc, err := s.ParseHTML(bytes.NewReader(res.Body))
	if err != nil {
		return miss, newSourceError(s.profile.Name, "parse html", res.StatusCode, err)
	}

	links := s.FindAll(doc, func(n *html.Node) bool {
		return s.IsElement(n, "a") && strings.Contains(s.GetAttribute(n, "href"), s.profile.ResultPath)
	})

	hits := make([]hit, 0, len(links))
	for _, a := range links {
		h := hit{
			title: s.ExtractText(a),
			url:   s.ResolveURL(res.FinalURL, s.GetAttribute(a, "href")),
		}
		if block := s.Ancestor(a, "li", "article", "tr", "div"); block != nil {
			h.text = s.ExtractText(block)
		}
		hits = append(hits, h)
	}

	best, ok := bestHit(hits, q)
	if !ok {
		return miss, nil
	}
	return best.candidate(s.profile.Name, s.profile.Confidence, q), nil
}

// hit is one search result
type hit struct {
	title string
	url   string
	text  string // Surrounding listing text (snippet)
}

var (
	titleSeparators = []string{" | ", " :: ", " - ", " – ", " — "}
	trailingCiteRe  = regexp.MustCompile(`,\s*\d.*$`)
)

// caseName extracts a case name from a result title
func (h hit) caseName() string {
	title := strings.TrimSpace(h.title)
	parts := []string{title}
	for _, sep := range titleSeparators {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}

	for _, p := range parts {
		p = strings.TrimSpace(trailingCiteRe.ReplaceAllString(strings.TrimSpace(p), ""))
		if match.IsValidCaseName(p) {
			return p
		}
	}
	return ""
}

func (h hit) candidate(source string, confidence float64, q Query) model.Candidate {
	name := h.caseName()
	if q.CaseNameHint != "" && !match.Matches(q.CaseNameHint, name) {
		confidence = min(confidence, hintMismatchConfidence)
	}
	return model.Candidate{
		Verified:   true,
		CaseName:   name,
		URL:        h.url,
		Confidence: confidence,
		Source:     source,
		Citation:   q.Normalized.Text,
	}
}

// bestHit returns the hit with a valid case name that mentions the citation
// and best matches the hint; earlier hits win ties
func bestHit(hits []hit, q Query) (hit, bool) {
	best := -1
	bestScore := -1.0
	for i, h := range hits {
		name := h.caseName()
		if name == "" || !mentionsCitation(h.title+" "+h.text, q) {
			continue
		}
		score := 0.0
		if q.CaseNameHint != "" {
			score = match.Similarity(q.CaseNameHint, name)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return hit{}, false
	}
	return hits[best], true
}

// mentionsCitation reports whether text contains the citation or one of its variants
func mentionsCitation(text string, q Query) bool {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	candidates := append([]string{q.Normalized.Text}, q.Variants...)
	for _, v := range candidates {
		v = strings.ToLower(strings.Join(strings.Fields(v), " "))
		if v != "" && containsBounded(text, v) {
			return true
		}
	}
	return false
}

// containsBounded reports whether sub occurs in text without a digit
// directly before or after it, so "47 U.S. 48" is not found in "347 U.S. 483"
func containsBounded(text, sub string) bool {
	for from := 0; from <= len(text)-len(sub); {
		i := strings.Index(text[from:], sub)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(sub)
		if !isDigitAt(text, start-1) && !isDigitAt(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func isDigitAt(s string, i int) bool {
	return i >= 0 && i < len(s) && s[i] >= '0' && s[i] <= '9'
}

// searchTerms builds the query text: the quoted citation, plus the hint for
// general search engines
func searchTerms(q Query, withHint bool) string {
	cite := q.Normalized.Text
	if cite == "" {
		cite = strings.TrimSpace(q.Citation)
	}
	terms := `"` + cite + `"`
	if withHint && q.CaseNameHint != "" {
		terms += " " + q.CaseNameHint
	}
	return terms
}
