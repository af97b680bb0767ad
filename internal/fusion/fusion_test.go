package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ppiankov/citeverify/internal/match"
	"github.com/ppiankov/citeverify/internal/model"
)

func brown(source string, confidence float64) model.Candidate {
	return model.Candidate{
		Verified:   true,
		CaseName:   "Brown v. Board of Education",
		Date:       "1954-05-17",
		URL:        "https://example.test/" + source + "/brown",
		Confidence: confidence,
		Source:     source,
		Citation:   "347 U.S. 483",
	}
}

func TestFuse_SingleCandidate(t *testing.T) {
	e := NewEngine(nil, 0, zaptest.NewLogger(t))

	r := e.Fuse([]model.Candidate{brown("courtlistener", 0.95)}, "347 U.S. 483", "")
	assert.Equal(t, model.StatusTrue, r.Verified)
	assert.Equal(t, "Brown v. Board of Education", r.CaseName)
	assert.Equal(t, "courtlistener", r.Source)
	assert.InDelta(t, 0.95, r.Confidence, 1e-9)
	assert.Empty(t, r.Corroborating)
}

func TestFuse_CorroborationRaisesConfidence(t *testing.T) {
	e := NewEngine(nil, 0, nil)

	single := e.Fuse([]model.Candidate{brown("justia", 0.8)}, "347 U.S. 483", "")
	both := e.Fuse([]model.Candidate{brown("justia", 0.8), brown("leagle", 0.7)}, "347 U.S. 483", "")

	assert.Greater(t, both.Confidence, single.Confidence)
	assert.Equal(t, "justia", both.Source)
	assert.Equal(t, []string{"leagle"}, both.Corroborating)
	assert.Contains(t, both.Explanation, "corroborated by leagle")
}

func TestFuse_PrefersReliableSource(t *testing.T) {
	e := NewEngine(nil, 0, nil)

	search := brown("bing", 0.9)
	search.URL = "https://randomblog.example/brown"
	db := brown("casemine", 0.6)
	db.URL = ""

	r := e.Fuse([]model.Candidate{search, db}, "347 U.S. 483", "")
	assert.Equal(t, "casemine", r.Source)
	assert.Equal(t, "https://randomblog.example/brown", r.URL, "URL is filled from a group member")
}

func TestFuse_DiscardsInvalidNames(t *testing.T) {
	e := NewEngine(nil, 0, nil)

	bad := []model.Candidate{
		{Verified: true, CaseName: "casetext.com", Source: "bing", Confidence: 0.9, URL: "https://casetext.com/x"},
		{Verified: true, CaseName: "Search Results", Source: "duckduckgo", Confidence: 0.9},
		{Verified: false, CaseName: "Brown v. Board of Education", Source: "justia"},
	}

	r := e.Fuse(bad, "347 U.S. 483", "")
	assert.Equal(t, model.StatusUnconfirmed, r.Verified)
	assert.Empty(t, r.URL)
	assert.Empty(t, r.CaseName)
	assert.NotEmpty(t, r.Explanation)
}

func TestFuse_HintMismatch(t *testing.T) {
	e := NewEngine(nil, 0, nil)

	r := e.Fuse([]model.Candidate{brown("courtlistener", 0.95)}, "347 U.S. 483", "Roe v. Wade")
	assert.Equal(t, model.StatusUnconfirmed, r.Verified)
	assert.Empty(t, r.URL)
	assert.Contains(t, r.Explanation, "Brown v. Board of Education")
	assert.Contains(t, r.Explanation, "Roe v. Wade")
	assert.Equal(t, "Brown v. Board of Education", r.FoundCaseName)
}

func TestFuse_HintSelectsMatchingGroup(t *testing.T) {
	e := NewEngine(nil, 0, nil)

	other := model.Candidate{
		Verified: true, CaseName: "Plessy v. Ferguson", Source: "courtlistener",
		Confidence: 0.95, Citation: "347 U.S. 483",
	}

	r := e.Fuse([]model.Candidate{other, brown("leagle", 0.7)}, "347 U.S. 483", "Brown v. Board of Education")
	require.Equal(t, model.StatusTrue, r.Verified)
	assert.Equal(t, "leagle", r.Source)
}

func TestFuse_GroupsByCitationOverlap(t *testing.T) {
	e := NewEngine(nil, 0, nil)

	wn := model.Candidate{
		Verified: true, CaseName: "Convoyant, LLC v. DeepThink, LLC", Source: "courtlistener",
		Confidence: 0.95, Citation: "200 Wn.2d 72", ParallelCitations: []string{"514 P.3d 643"},
	}
	pac := model.Candidate{
		Verified: true, CaseName: "Convoyant LLC v. Deepthink LLC", Source: "justia",
		Confidence: 0.8, Citation: "514 P.3d 643",
	}

	r := e.Fuse([]model.Candidate{wn, pac}, "200 Wn.2d 72", "")
	assert.Equal(t, "courtlistener", r.Source)
	assert.Equal(t, []string{"justia"}, r.Corroborating)
	assert.Equal(t, []string{"514 P.3d 643"}, r.ParallelCitations)
}

func TestFuse_NeverVerifiesInvalidName(t *testing.T) {
	e := NewEngine(nil, 0, nil)
	names := []string{"", "Justia", "law.justia.com", "Brown Board", "https://x.com/a v. b", "Opinion"}

	for _, name := range names {
		r := e.Fuse([]model.Candidate{{Verified: true, CaseName: name, Source: "courtlistener", Confidence: 1}}, "347 U.S. 483", "")
		assert.False(t, r.Verified.IsVerified(), "name %q", name)
		assert.False(t, match.IsValidCaseName(name))
	}
}

func TestClassifier(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		cand model.Candidate
		want Tier
	}{
		{model.Candidate{Source: "courtlistener"}, TierPrimary},
		{model.Candidate{Source: "justia"}, TierSecondary},
		{model.Candidate{Source: "bing", URL: "https://law.justia.com/cases/federal/us/347/483/"}, TierSecondary},
		{model.Candidate{Source: "bing", URL: "https://www.courts.wa.gov/opinions/pdf/1000.pdf"}, TierPrimary},
		{model.Candidate{Source: "google", URL: "https://www.supremecourt.gov/opinions/x.pdf"}, TierPrimary},
		{model.Candidate{Source: "duckduckgo", URL: "https://blog.example.com/brown"}, TierTertiary},
		{model.Candidate{Source: "duckduckgo", URL: "::not a url"}, TierTertiary},
	}

	for _, tt := range tests {
		t.Run(tt.cand.Source+" "+tt.cand.URL, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.cand))
		})
	}

	c.SetSourceTier("bing", TierPrimary)
	assert.Equal(t, TierPrimary, c.Classify(model.Candidate{Source: "bing"}))
}
