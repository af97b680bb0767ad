package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/normalize"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(model.HTTPConfig{UserAgent: "CiteVerify/test", MaxBodyBytes: 1 << 20}, 5*time.Second)
}

func newQuery(citation, hint string) Query {
	return Query{
		Citation:     citation,
		Normalized:   normalize.Normalize(citation),
		Variants:     normalize.GenerateVariants(citation),
		CaseNameHint: hint,
	}
}

const brownLookup = `[{"citation":"347 U.S. 483","normalized_citations":["347 U.S. 483"],"status":200,"error_message":"",
"clusters":[{"id":105221,"absolute_url":"/opinion/105221/brown-v-board-of-education/","case_name":"Brown v. Board of Education",
"date_filed":"1954-05-17","citations":[{"volume":347,"reporter":"U.S.","page":"483"},{"volume":74,"reporter":"S. Ct.","page":"686"},
{"volume":98,"reporter":"L. Ed.","page":"873"}]}]}]`

func TestCourtListener_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, citationLookupAPI, r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "347 U.S. 483", r.PostForm.Get("text"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(brownLookup))
	}))
	defer server.Close()

	cl := NewCourtListener(newTestFetcher(), server.URL+"/", "secret")
	cand, err := cl.Verify(context.Background(), newQuery("347 U. S. 483", ""))
	require.NoError(t, err)

	assert.True(t, cand.Verified)
	assert.Equal(t, "Brown v. Board of Education", cand.CaseName)
	assert.Equal(t, "1954-05-17", cand.Date)
	assert.Equal(t, server.URL+"/opinion/105221/brown-v-board-of-education/", cand.URL)
	assert.Equal(t, courtListenerConfidence, cand.Confidence)
	assert.Equal(t, "347 U.S. 483", cand.Citation)
	assert.Contains(t, cand.ParallelCitations, "74 S. Ct. 686")
	assert.NotContains(t, cand.ParallelCitations, "347 U.S. 483")
}

func TestCourtListener_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"citation":"722 U.S. 866","status":404,"error_message":"Citation not found","clusters":[]}]`))
	}))
	defer server.Close()

	cl := NewCourtListener(newTestFetcher(), server.URL, "")
	cand, err := cl.Verify(context.Background(), newQuery("722 U.S. 866", ""))
	require.NoError(t, err)
	assert.False(t, cand.Verified)
	assert.Equal(t, courtListenerName, cand.Source)
}

func TestCourtListener_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"detail":"throttled"}`, true},
		{"server error", http.StatusBadGateway, "", false},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"bad token"}`, false},
		{"bad json", http.StatusOK, `<html>`, false},
		{"item throttled", http.StatusOK, `[{"citation":"347 U.S. 483","status":429,"error_message":"too many citations"}]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			cl := NewCourtListener(newTestFetcher(), server.URL, "")
			cand, err := cl.Verify(context.Background(), newQuery("347 U.S. 483", ""))
			require.Error(t, err)
			assert.False(t, cand.Verified)

			var se *SourceError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, courtListenerName, se.Source)
			assert.Equal(t, tt.rateLimited, errors.Is(err, ErrRateLimited))
		})
	}
}

func TestCourtListener_UninterpretableSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	cl := NewCourtListener(newTestFetcher(), server.URL, "")
	cand, err := cl.Verify(context.Background(), newQuery("Brown v. Board of Education", ""))
	require.NoError(t, err)
	assert.False(t, cand.Verified)
	assert.Equal(t, int32(0), hits.Load())
}

func TestCourtListener_AmbiguousPicksHintMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"citation":"200 Wn.2d 72","status":300,"clusters":[
{"absolute_url":"/opinion/1/other/","case_name":"State v. Other","date_filed":"2022-09-01","citations":[]},
{"absolute_url":"/opinion/2/convoyant/","case_name":"Convoyant, LLC v. DeepThink, LLC","date_filed":"2022-09-15",
 "citations":[{"volume":200,"reporter":"Wash. 2d","page":"72"},{"volume":514,"reporter":"P.3d","page":"643"}]}]}]`))
	}))
	defer server.Close()

	cl := NewCourtListener(newTestFetcher(), server.URL, "")
	cand, err := cl.Verify(context.Background(), newQuery("200 Wn.2d 72", "Convoyant LLC v. DeepThink LLC"))
	require.NoError(t, err)

	assert.True(t, cand.Verified)
	assert.Equal(t, "Convoyant, LLC v. DeepThink, LLC", cand.CaseName)
	assert.Equal(t, courtListenerConfidence, cand.Confidence)
	assert.Equal(t, []string{"514 P.3d 643"}, cand.ParallelCitations)
}

func TestCourtListener_HintMismatchLowersConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(brownLookup))
	}))
	defer server.Close()

	cl := NewCourtListener(newTestFetcher(), server.URL, "")
	cand, err := cl.Verify(context.Background(), newQuery("347 U.S. 483", "Roe v. Wade"))
	require.NoError(t, err)
	assert.True(t, cand.Verified)
	assert.Equal(t, hintMismatchConfidence, cand.Confidence)
}

func TestCourtListener_InvalidCaseNameIsMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"citation":"347 U.S. 483","status":200,"clusters":[{"absolute_url":"/x/","case_name":"courtlistener.com"}]}]`))
	}))
	defer server.Close()

	cl := NewCourtListener(newTestFetcher(), server.URL, "")
	cand, err := cl.Verify(context.Background(), newQuery("347 U.S. 483", ""))
	require.NoError(t, err)
	assert.False(t, cand.Verified)
	assert.Empty(t, cand.URL)
}
