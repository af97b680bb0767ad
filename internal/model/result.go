package model

import "time"

// VerifiedStatus is the verification outcome for a citation
type VerifiedStatus string

const (
	StatusTrue           VerifiedStatus = "true"             // Confirmed by a data source
	StatusFalse          VerifiedStatus = "false"            // Proven invalid (e.g. impossible volume)
	StatusUnconfirmed    VerifiedStatus = "unconfirmed"      // Plausible but no source confirmed it
	StatusTrueByParallel VerifiedStatus = "true_by_parallel" // A parallel citation in the cluster was confirmed
)

// IsVerified reports whether the status counts as a positive verification
func (s VerifiedStatus) IsVerified() bool {
	return s == StatusTrue || s == StatusTrueByParallel
}

// VerificationResult is the output of the pipeline for one citation
type VerificationResult struct {
	Citation      string         `json:"citation"`
	Verified      VerifiedStatus `json:"verified"`
	CaseName      string         `json:"case_name,omitempty"`
	CanonicalDate string         `json:"canonical_date,omitempty"` // ISO date
	Court         string         `json:"court,omitempty"`
	URL           string         `json:"url,omitempty"`
	Source        string         `json:"source,omitempty"`
	Confidence    float64        `json:"confidence"`
	Explanation   string         `json:"explanation,omitempty"`

	// Sources that agreed with the canonical answer (fusion corroboration)
	Corroborating []string `json:"corroborating,omitempty"`
	// Parallel citations reported by the source, if any
	ParallelCitations []string `json:"parallel_citations,omitempty"`
	// Case a source found under this citation when it did not match the hint
	FoundCaseName string `json:"found_case_name,omitempty"`
}

// EnforceURLInvariant clears the URL unless the result is verified.
// A URL on an unverified result would present an unconfirmed case as findable.
func (r *VerificationResult) EnforceURLInvariant() {
	if !r.Verified.IsVerified() {
		r.URL = ""
	}
}

// Candidate is one source adapter's normalized answer for a citation
type Candidate struct {
	Verified          bool     `json:"verified"`
	CaseName          string   `json:"case_name,omitempty"`
	Date              string   `json:"date,omitempty"`
	Court             string   `json:"court,omitempty"`
	URL               string   `json:"url,omitempty"`
	Confidence        float64  `json:"confidence"`
	Source            string   `json:"source"`
	Citation          string   `json:"citation,omitempty"` // Citation text the source matched
	ParallelCitations []string `json:"parallel_citations,omitempty"`
}

// SourceAttempt records one adapter call, used for source statistics
type SourceAttempt struct {
	Source      string        `json:"source"`
	Success     bool          `json:"success"` // Source answered and confirmed the citation
	Responded   bool          `json:"responded"`
	Latency     time.Duration `json:"latency"`
	Error       string        `json:"error,omitempty"`
	RateLimited bool          `json:"rate_limited,omitempty"`
	Skipped     bool          `json:"skipped,omitempty"` // Cancelled or disallowed, says nothing about the source
	At          time.Time     `json:"at"`
}

// URLState classifies the liveness of a URL
type URLState string

const (
	URLAccessible URLState = "accessible"
	URLLinkrot    URLState = "linkrot"
	URLPaywall    URLState = "paywall"
)

// URLStatus is the result of a URL liveness check
type URLStatus struct {
	URL        string    `json:"url"`
	Status     URLState  `json:"status"`
	StatusCode int       `json:"status_code,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// SourceKind groups sources by precision; the cascade exhausts lower kinds first
type SourceKind int

const (
	KindAPI           SourceKind = iota // Structured citation API
	KindLegalDatabase                   // Site-specific legal database scraper
	KindSearchEngine                    // General web search
)

func (k SourceKind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindLegalDatabase:
		return "legal_database"
	case KindSearchEngine:
		return "search_engine"
	default:
		return "unknown"
	}
}
