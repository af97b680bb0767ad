package linkrot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/citeverify/internal/normalize"
)

// Metadata describes the case behind a URL for reconstruction
type Metadata struct {
	CaseName string
	Citation string
}

// mirrors maps hosts to hosts known to serve the same paths
var mirrors = map[string][]string{
	"supreme.justia.com":    {"law.justia.com"},
	"law.justia.com":        {"supreme.justia.com"},
	"www.courtlistener.com": {"courtlistener.com"},
	"courtlistener.com":     {"www.courtlistener.com"},
	"www.leagle.com":        {"leagle.com"},
	"leagle.com":            {"www.leagle.com"},
	"casetext.com":          {"www.casetext.com"},
	"www.law.cornell.edu":   {"law.cornell.edu"},
	"caselaw.findlaw.com":   {"www.findlaw.com"},
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

type waybackResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// RecoverDeadLink proposes replacement URLs for a dead link, in order: web
// archive snapshot, mirror hosts, then URLs reconstructed from the citation
// and case name. None of the candidates are checked.
func (d *Detector) RecoverDeadLink(ctx context.Context, rawURL string, meta Metadata) []string {
	var candidates []string
	seen := map[string]bool{rawURL: true}
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			candidates = append(candidates, u)
		}
	}

	if snapshot, err := d.archiveSnapshot(ctx, rawURL); err != nil {
		d.logger.Debug("archive lookup failed", zap.String("url", rawURL), zap.Error(err))
	} else {
		add(snapshot)
	}

	for _, u := range mirrorURLs(rawURL) {
		add(u)
	}

	for _, u := range reconstructURLs(meta) {
		add(u)
	}

	return candidates
}

func (d *Detector) archiveSnapshot(ctx context.Context, rawURL string) (string, error) {
	if d.archiveAPI == "" {
		return "", nil
	}

	endpoint := d.archiveAPI + "?url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("archive request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("archive status %d", resp.StatusCode)
	}

	var wr waybackResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&wr); err != nil {
		return "", fmt.Errorf("decode archive response: %w", err)
	}

	closest := wr.ArchivedSnapshots.Closest
	if !closest.Available || closest.Status != "200" {
		return "", nil
	}
	return closest.URL, nil
}

// mirrorURLs swaps the host for its known mirrors and upgrades http to https
func mirrorURLs(rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil
	}

	var out []string
	if parsed.Scheme == "http" {
		u := *parsed
		u.Scheme = "https"
		out = append(out, u.String())
	}

	for _, host := range mirrors[strings.ToLower(parsed.Host)] {
		u := *parsed
		u.Scheme = "https"
		u.Host = host
		out = append(out, u.String())
	}
	return out
}

// reconstructURLs guesses canonical case URLs from citation components and
// the case name
func reconstructURLs(meta Metadata) []string {
	var out []string

	if meta.Citation != "" {
		n := normalize.Normalize(meta.Citation)
		if n.Interpretable() {
			c := n.Components
			if c.Reporter == "U.S." {
				out = append(out, fmt.Sprintf("https://supreme.justia.com/cases/federal/us/%d/%d/", c.Volume, c.Page))
			}
			out = append(out, fmt.Sprintf("https://www.courtlistener.com/c/%s/%d/%d/",
				url.PathEscape(c.Reporter), c.Volume, c.Page))
		}
	}

	if slug := caseSlug(meta.CaseName); slug != "" {
		out = append(out, "https://casetext.com/case/"+slug)
	}
	return out
}

// caseSlug renders "Brown v. Board of Education" as "brown-v-board-of-education"
func caseSlug(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
