package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citeverify/internal/model"
)

func TestNewProxyFunc(t *testing.T) {
	f := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443")

	req := httptest.NewRequest(http.MethodGet, "https://law.justia.com/", nil)
	u, err := f(req)
	require.NoError(t, err)
	assert.Equal(t, "secure-proxy:8443", u.Host)

	req = httptest.NewRequest(http.MethodGet, "http://law.justia.com/", nil)
	u, err = f(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy:8080", u.Host)
}

func TestNewHTTPClient_RedirectLimit(t *testing.T) {
	var hits atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, server.URL+"/loop", http.StatusFound)
	}))
	defer server.Close()

	client := NewHTTPClient(model.HTTPConfig{}, 5*time.Second)
	_, err := client.Get(server.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(maxRedirects), hits.Load())
}

func TestRobotsChecker(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
			_, _ = w.Write([]byte("User-agent: CiteVerify\nDisallow: /search\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rc := NewRobotsChecker(server.Client(), "CiteVerify/0.1 (+https://github.com/ppiankov/citeverify)")
	ctx := context.Background()

	allowed, delay, err := rc.CanFetch(ctx, server.URL+"/cases/federal/us/347/483/")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2*time.Second, delay)

	assert.False(t, rc.IsAllowed(ctx, server.URL+"/search?q=347+U.S.+483"))
	assert.Equal(t, int32(1), fetches.Load(), "robots.txt should be cached per host")

	rc.Clear()
	rc.IsAllowed(ctx, server.URL+"/")
	assert.Equal(t, int32(2), fetches.Load())
}

func TestRobotsChecker_MissingAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	rc := NewRobotsChecker(server.Client(), "CiteVerify/0.1")
	assert.True(t, rc.IsAllowed(context.Background(), server.URL+"/anything"))
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "CiteVerify", NormalizeUserAgent("CiteVerify/0.1 (+https://github.com/ppiankov/citeverify)"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}
