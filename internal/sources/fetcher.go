package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/util"
)

// Fetcher performs outbound requests for verifiers with a shared client,
// user agent, body limit and optional robots.txt compliance
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil disables robots.txt checks
}

// NewFetcher creates a fetcher from HTTP settings
func NewFetcher(cfg model.HTTPConfig, timeout time.Duration) *Fetcher {
	client := util.NewHTTPClient(cfg, timeout)
	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent)
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 2_000_000
	}
	return f
}

// FetchResult contains a response body and metadata
type FetchResult struct {
	Body       []byte
	StatusCode int
	FinalURL   string
	NotFound   bool // 404 or 410: the resource does not exist
}

// Get fetches an HTML page for source, honoring robots.txt
func (f *Fetcher) Get(ctx context.Context, source, rawURL string) (*FetchResult, error) {
	if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
		return nil, &SourceError{Source: source, Op: "robots", Err: ErrDisallowed}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newSourceError(source, "create request", 0, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	return f.Do(source, req)
}

// Do executes req. 2xx and 404/410 responses are results; anything else is
// a *SourceError (429 marked rate-limited).
func (f *Fetcher) Do(source string, req *http.Request) (*FetchResult, error) {
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, newSourceError(source, "fetch", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result := &FetchResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.NotFound = true
		return result, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, newSourceError(source, "fetch", resp.StatusCode,
			fmt.Errorf("unexpected status: %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, newSourceError(source, "read body", resp.StatusCode, err)
	}
	result.Body = body
	return result, nil
}
