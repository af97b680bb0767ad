// Package linkrot checks whether case URLs are still live and proposes
// replacements for dead ones.
package linkrot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/cache"
	"github.com/ppiankov/citeverify/internal/logging"
	"github.com/ppiankov/citeverify/internal/metrics"
	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/util"
)

const (
	checkMaxRetries = 2

	// maxRecoveryChecks bounds how many recovery candidates are re-checked
	maxRecoveryChecks = 6
	checkWorkers      = 3
)

// checkSleepFunc is the sleep function used between retries (injectable for tests)
var checkSleepFunc = time.Sleep

// Detector checks URL liveness with caching
type Detector struct {
	httpClient *http.Client
	cache      *cache.Manager
	userAgent  string
	archiveAPI string
	logger     *zap.Logger
}

// NewDetector creates a linkrot detector. cm may be nil.
func NewDetector(cfg model.LinkrotConfig, httpCfg model.HTTPConfig, cm *cache.Manager, logger *zap.Logger) *Detector {
	return &Detector{
		httpClient: util.NewHTTPClient(httpCfg, cfg.Timeout),
		cache:      cm,
		userAgent:  httpCfg.UserAgent,
		archiveAPI: cfg.ArchiveAPI,
		logger:     logging.OrNop(logger),
	}
}

// CheckURLStatus classifies a URL as accessible (< 400), paywall (403) or
// linkrot (anything else). Definitive answers are cached; transport failures
// return an error and are not cached.
func (d *Detector) CheckURLStatus(ctx context.Context, rawURL string) (model.URLStatus, error) {
	if cached, ok := d.cache.GetURLStatus(rawURL); ok {
		return cached, nil
	}

	var (
		status model.URLStatus
		err    error
	)
	for attempt := 0; attempt < checkMaxRetries; attempt++ {
		status, err = d.check(ctx, rawURL)
		if !isRetryable(status, err) || ctx.Err() != nil {
			break
		}
		if attempt < checkMaxRetries-1 {
			checkSleepFunc(time.Duration(1<<uint(attempt)) * 500 * time.Millisecond)
		}
	}
	if err != nil {
		return model.URLStatus{URL: rawURL, Status: model.URLLinkrot}, err
	}

	metrics.LinkChecks.WithLabelValues(string(status.Status)).Inc()
	if cerr := d.cache.SetURLStatus(status); cerr != nil {
		d.logger.Debug("url status not cached", zap.String("url", rawURL), zap.Error(cerr))
	}
	return status, nil
}

func (d *Detector) check(ctx context.Context, rawURL string) (model.URLStatus, error) {
	code, err := d.probe(ctx, http.MethodHead, rawURL)
	if err != nil {
		return model.URLStatus{}, err
	}

	// Some legal sites reject HEAD outright
	if code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented {
		if code, err = d.probe(ctx, http.MethodGet, rawURL); err != nil {
			return model.URLStatus{}, err
		}
	}

	return model.URLStatus{
		URL:        rawURL,
		Status:     Classify(code),
		StatusCode: code,
		CheckedAt:  time.Now(),
	}, nil
}

func (d *Detector) probe(ctx context.Context, method, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-1023")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, nil
}

// Classify maps an HTTP status code to a URL state
func Classify(code int) model.URLState {
	switch {
	case code > 0 && code < 400:
		return model.URLAccessible
	case code == http.StatusForbidden:
		return model.URLPaywall
	default:
		return model.URLLinkrot
	}
}

// isRetryable reports transient failures worth one more probe
func isRetryable(status model.URLStatus, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return status.StatusCode >= 500 || status.StatusCode == http.StatusTooManyRequests
}

// CheckAll checks URLs concurrently. Results are index-aligned with urls;
// a URL whose check failed has a zero Status.
func (d *Detector) CheckAll(ctx context.Context, urls []string) []model.URLStatus {
	results := make([]model.URLStatus, len(urls))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, checkWorkers)

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.URLStatus{URL: u}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			status, err := d.CheckURLStatus(ctx, u)
			if err != nil {
				status = model.URLStatus{URL: u}
			}
			results[idx] = status
		}(i, u)
	}

	wg.Wait()
	return results
}

// Confirm returns a URL fit to publish for a verified result. Live and
// paywalled URLs are returned as-is. A dead URL is replaced by the first
// recovery candidate that re-checks accessible, or dropped. An inconclusive
// check keeps the URL.
func (d *Detector) Confirm(ctx context.Context, rawURL string, meta Metadata) string {
	if rawURL == "" {
		return ""
	}

	status, err := d.CheckURLStatus(ctx, rawURL)
	if err != nil {
		d.logger.Debug("url check inconclusive", zap.String("url", rawURL), zap.Error(err))
		return rawURL
	}
	if status.Status != model.URLLinkrot {
		return rawURL
	}

	candidates := d.RecoverDeadLink(ctx, rawURL, meta)
	if len(candidates) > maxRecoveryChecks {
		candidates = candidates[:maxRecoveryChecks]
	}

	for _, s := range d.CheckAll(ctx, candidates) {
		if s.Status == model.URLAccessible {
			d.logger.Info("recovered dead link", zap.String("url", rawURL), zap.String("replacement", s.URL))
			return s.URL
		}
	}

	d.logger.Info("dropping dead link", zap.String("url", rawURL), zap.Int("status_code", status.StatusCode))
	return ""
}
