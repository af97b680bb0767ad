package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/normalize"
)

const (
	courtListenerName = "courtlistener"
	citationLookupAPI = "/api/rest/v4/citation-lookup/"

	courtListenerConfidence = 0.95
	// hintMismatchConfidence is used when the found case name does not match the hint
	hintMismatchConfidence = 0.6
)

// CourtListener queries the CourtListener citation-lookup API
type CourtListener struct {
	fetcher *Fetcher
	baseURL string
	token   string
}

// NewCourtListener creates the structured API verifier
func NewCourtListener(fetcher *Fetcher, baseURL, token string) *CourtListener {
	return &CourtListener{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Name returns the source name
func (c *CourtListener) Name() string { return courtListenerName }

// Kind returns the source kind
func (c *CourtListener) Kind() model.SourceKind { return model.KindAPI }

// Jurisdictions returns covered jurisdictions
func (c *CourtListener) Jurisdictions() []string {
	return []string{"federal", "washington", "regional"}
}

type clCitation struct {
	Volume   int    `json:"volume"`
	Reporter string `json:"reporter"`
	Page     string `json:"page"`
}

type clCluster struct {
	ID          int          `json:"id"`
	AbsoluteURL string       `json:"absolute_url"`
	CaseName    string       `json:"case_name"`
	DateFiled   string       `json:"date_filed"`
	Citations   []clCitation `json:"citations"`
}

type clLookup struct {
	Citation            string      `json:"citation"`
	NormalizedCitations []string    `json:"normalized_citations"`
	Status              int         `json:"status"`
	ErrorMessage        string      `json:"error_message"`
	Clusters            []clCluster `json:"clusters"`
}

// Verify looks up the normalized citation. Uninterpretable citations are a
// miss without a request.
func (c *CourtListener) Verify(ctx context.Context, q Query) (model.Candidate, error) {
	miss := model.Candidate{Source: courtListenerName}
	if !q.Normalized.Interpretable() {
		return miss, nil
	}

	form := url.Values{"text": {q.Normalized.Text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+citationLookupAPI, strings.NewReader(form.Encode()))
	if err != nil {
		return miss, newSourceError(courtListenerName, "create request", 0, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	res, err := c.fetcher.Do(courtListenerName, req)
	if err != nil {
		return miss, err
	}
	if res.NotFound {
		return miss, nil
	}

	var lookups []clLookup
	if err := json.Unmarshal(res.Body, &lookups); err != nil {
		return miss, newSourceError(courtListenerName, "decode response", res.StatusCode, err)
	}

	for _, l := range lookups {
		switch l.Status {
		case http.StatusOK, http.StatusMultipleChoices:
		case http.StatusTooManyRequests:
			return miss, newSourceError(courtListenerName, "lookup", l.Status, fmt.Errorf("%s", l.ErrorMessage))
		default:
			continue
		}

		cluster, ok := pickCluster(l.Clusters, q.CaseNameHint)
		if !ok {
			continue
		}
		return c.candidate(cluster, q), nil
	}

	return miss, nil
}

// pickCluster returns the cluster with a valid name best matching hint
func pickCluster(clusters []clCluster, hint string) (clCluster, bool) {
	best := -1
	bestScore := -1.0
	for i, cl := range clusters {
		if !match.IsValidCaseName(cl.CaseName) {
			continue
		}
		score := 0.0
		if hint != "" {
			score = match.Similarity(hint, cl.CaseName)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return clCluster{}, false
	}
	return clusters[best], true
}

func (c *CourtListener) candidate(cl clCluster, q Query) model.Candidate {
	cand := model.Candidate{
		Verified:   true,
		CaseName:   cl.CaseName,
		Date:       cl.DateFiled,
		Confidence: courtListenerConfidence,
		Source:     courtListenerName,
		Citation:   q.Normalized.Text,
	}
	if cl.AbsoluteURL != "" {
		cand.URL = c.baseURL + cl.AbsoluteURL
	}
	if q.CaseNameHint != "" && !match.Matches(q.CaseNameHint, cl.CaseName) {
		cand.Confidence = hintMismatchConfidence
	}

	self := q.Normalized.Text
	for _, cite := range cl.Citations {
		text := normalize.Normalize(fmt.Sprintf("%d %s %s", cite.Volume, cite.Reporter, cite.Page)).Text
		if text != self {
			cand.ParallelCitations = append(cand.ParallelCitations, text)
		}
	}
	return cand
}
