package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/citeverify/internal/fusion"
	"github.com/ppiankov/citeverify/internal/model"
)

const searchConfidence = 0.6

// EngineProfile describes a general web search engine
type EngineProfile struct {
	Name       string
	BaseURL    string
	SearchPath string // Format string receiving the query-escaped search terms
	parse      func(b *BaseAdapter, doc *html.Node, pageURL string) []hit
}

// DefaultEngineProfiles returns the built-in search engines in default priority order
func DefaultEngineProfiles() []EngineProfile {
	return []EngineProfile{
		{Name: "duckduckgo", BaseURL: "https://html.duckduckgo.com", SearchPath: "/html/?q=%s", parse: parseDuckDuckGo},
		{Name: "bing", BaseURL: "https://www.bing.com", SearchPath: "/search?q=%s", parse: parseBing},
		{Name: "google", BaseURL: "https://www.google.com", SearchPath: "/search?q=%s&hl=en", parse: parseGoogle},
	}
}

// WithBaseURL returns a copy of the profile pointed at baseURL
func (p EngineProfile) WithBaseURL(baseURL string) EngineProfile {
	p.BaseURL = baseURL
	return p
}

// SearchEngine verifies citations through web search results restricted to
// recognized legal hosts
type SearchEngine struct {
	BaseAdapter
	profile    EngineProfile
	fetcher    *Fetcher
	classifier *fusion.Classifier
}

// NewSearchEngine creates a search verifier for profile
func NewSearchEngine(profile EngineProfile, fetcher *Fetcher) *SearchEngine {
	profile.BaseURL = strings.TrimRight(profile.BaseURL, "/")
	return &SearchEngine{profile: profile, fetcher: fetcher, classifier: fusion.NewClassifier()}
}

// Name returns the source name
func (s *SearchEngine) Name() string { return s.profile.Name }

// Kind returns the source kind
func (s *SearchEngine) Kind() model.SourceKind { return model.KindSearchEngine }

// Verify searches for the quoted citation and returns the best result on a
// legal host whose title is a valid case name
func (s *SearchEngine) Verify(ctx context.Context, q Query) (model.Candidate, error) {
	miss := model.Candidate{Source: s.profile.Name}

	searchURL := s.profile.BaseURL + fmt.Sprintf(s.profile.SearchPath, url.QueryEscape(searchTerms(q, true)))
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

	var legal []hit
	for _, h := range s.profile.parse(&s.BaseAdapter, doc, res.FinalURL) {
		if s.classifier.ClassifyURL(h.url) != fusion.TierTertiary {
			legal = append(legal, h)
		}
	}

	best, ok := bestHit(legal, q)
	if !ok {
		return miss, nil
	}
	return best.candidate(s.profile.Name, searchConfidence, q), nil
}

// parseDuckDuckGo reads the HTML endpoint: a.result__a links wrapping
// /l/?uddg= redirects, with snippets in .result__snippet
func parseDuckDuckGo(b *BaseAdapter, doc *html.Node, pageURL string) []hit {
	var hits []hit
	for _, a := range b.FindAll(doc, func(n *html.Node) bool { return b.IsElement(n, "a") && b.HasClass(n, "result__a") }) {
		h := hit{
			title: b.ExtractText(a),
			url:   unwrapRedirect(b.ResolveURL(pageURL, b.GetAttribute(a, "href")), "uddg"),
		}
		if block := b.Ancestor(a, "div"); block != nil {
			if result := b.Ancestor(block, "div"); result != nil {
				block = result
			}
			h.text = b.ExtractText(block)
		}
		hits = append(hits, h)
	}
	return hits
}

// parseBing reads li.b_algo results with the title link in h2
func parseBing(b *BaseAdapter, doc *html.Node, pageURL string) []hit {
	var hits []hit
	for _, li := range b.FindAll(doc, func(n *html.Node) bool { return b.IsElement(n, "li") && b.HasClass(n, "b_algo") }) {
		h2 := b.FindFirst(li, func(n *html.Node) bool { return b.IsElement(n, "h2") })
		if h2 == nil {
			continue
		}
		a := b.FindFirst(h2, func(n *html.Node) bool { return b.IsElement(n, "a") })
		if a == nil {
			continue
		}
		hits = append(hits, hit{
			title: b.ExtractText(a),
			url:   b.ResolveURL(pageURL, b.GetAttribute(a, "href")),
			text:  b.ExtractText(li),
		})
	}
	return hits
}

// parseGoogle reads result anchors that contain an h3 title; hrefs may be
// /url?q= redirects
func parseGoogle(b *BaseAdapter, doc *html.Node, pageURL string) []hit {
	var hits []hit
	for _, a := range b.FindAll(doc, func(n *html.Node) bool { return b.IsElement(n, "a") }) {
		h3 := b.FindFirst(a, func(n *html.Node) bool { return b.IsElement(n, "h3") })
		if h3 == nil {
			continue
		}
		h := hit{
			title: b.ExtractText(h3),
			url:   unwrapRedirect(b.ResolveURL(pageURL, b.GetAttribute(a, "href")), "q"),
		}
		if block := b.Ancestor(a, "div"); block != nil {
			if result := b.Ancestor(block, "div"); result != nil {
				block = result
			}
			h.text = b.ExtractText(block)
		}
		hits = append(hits, h)
	}
	return hits
}

// unwrapRedirect returns the target of a search engine redirect link, or
// rawURL when it is not a redirect carrying param
func unwrapRedirect(rawURL, param string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if target := parsed.Query().Get(param); strings.HasPrefix(target, "http") {
		return target
	}
	return rawURL
}
