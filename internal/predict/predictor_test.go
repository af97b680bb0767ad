package predict

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/normalize"
)

func testSources() []Source {
	return []Source{
		{Name: "courtlistener", Kind: model.KindAPI},
		{Name: "justia", Kind: model.KindLegalDatabase},
		{Name: "casemine", Kind: model.KindLegalDatabase},
		{Name: "leagle", Kind: model.KindLegalDatabase, Jurisdictions: []string{"washington"}},
		{Name: "duckduckgo", Kind: model.KindSearchEngine},
		{Name: "bing", Kind: model.KindSearchEngine},
	}
}

func TestPredictBestSources_DefaultOrder(t *testing.T) {
	p := New(testSources(), zaptest.NewLogger(t))

	got := p.PredictBestSources(normalize.Normalize("347 U.S. 483"), "")
	assert.Equal(t, []string{"courtlistener", "justia", "casemine", "leagle", "duckduckgo", "bing"}, got)
}

func TestPredictBestSources_JurisdictionBonus(t *testing.T) {
	p := New(testSources(), nil)

	got := p.PredictBestSources(normalize.Normalize("200 Wn.2d 72"), "")
	assert.Equal(t, "leagle", got[1])
}

func TestPredictBestSources_LearnsFromHistory(t *testing.T) {
	p := New(testSources(), nil)

	for i := 0; i < 10; i++ {
		p.Record(model.SourceAttempt{Source: "justia", Responded: true, Success: false, Latency: time.Second})
		p.Record(model.SourceAttempt{Source: "casemine", Responded: true, Success: true, Latency: 200 * time.Millisecond})
		p.Record(model.SourceAttempt{Source: "bing", Responded: true, Success: true, Latency: 100 * time.Millisecond})
	}

	got := p.PredictBestSources(normalize.Normalize("347 U.S. 483"), "Brown v. Board")
	assert.Equal(t, "casemine", got[1])
	assert.Less(t, indexOf(got, "justia"), indexOf(got, "duckduckgo"), "legal databases stay ahead of search engines")
	assert.Less(t, indexOf(got, "bing"), indexOf(got, "duckduckgo"))
}

func TestPredictBestSources_TotalOrdering(t *testing.T) {
	p := New(testSources(), nil)
	for i := 0; i < 20; i++ {
		p.Record(model.SourceAttempt{Source: fmt.Sprintf("unknown-%d", i%3), Responded: true})
	}

	for _, cite := range []string{"347 U.S. 483", "514 P.3d 643", "garbage", ""} {
		got := p.PredictBestSources(normalize.Normalize(cite), "")
		assert.ElementsMatch(t, []string{"courtlistener", "justia", "casemine", "leagle", "duckduckgo", "bing"}, got)
	}
}

func TestRecord_IgnoresRateLimitedAndSkipped(t *testing.T) {
	p := New(testSources(), nil)

	p.Record(model.SourceAttempt{Source: "justia", RateLimited: true, Responded: true})
	p.Record(model.SourceAttempt{Source: "justia", Skipped: true, Error: "context canceled"})
	assert.Equal(t, 0, p.Stats("justia").Attempts)

	p.Record(model.SourceAttempt{Source: "justia", Responded: true, Success: true, Latency: 2 * time.Second})
	p.Record(model.SourceAttempt{Source: "justia", Responded: true, Success: false, Latency: 4 * time.Second})

	s := p.Stats("justia")
	assert.Equal(t, 2, s.Attempts)
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
	assert.Equal(t, 3*time.Second, s.MeanLatency)
}

func TestRecord_FailuresCount(t *testing.T) {
	p := New(testSources(), nil)

	p.Record(model.SourceAttempt{Source: "justia", Error: "context deadline exceeded", Latency: 5 * time.Second})
	p.Record(model.SourceAttempt{Source: "justia", Error: "justia search: status 503"})

	s := p.Stats("justia")
	assert.Equal(t, 2, s.Attempts)
	assert.Equal(t, 0.0, s.SuccessRate)
}

func TestPredictBestSources_DemotesFailingSource(t *testing.T) {
	p := New(testSources(), nil)

	for i := 0; i < 20; i++ {
		p.Record(model.SourceAttempt{Source: "justia", Error: "context deadline exceeded", Latency: 5 * time.Second})
		p.Record(model.SourceAttempt{Source: "casemine", Responded: true, Success: i%3 == 0, Latency: 500 * time.Millisecond})
	}

	got := p.PredictBestSources(normalize.Normalize("347 U.S. 483"), "")
	assert.Less(t, indexOf(got, "casemine"), indexOf(got, "justia"))
	assert.Less(t, indexOf(got, "justia"), indexOf(got, "duckduckgo"), "kinds are never interleaved")
}

func TestRecord_BoundedHistory(t *testing.T) {
	p := New(testSources(), nil)
	for i := 0; i < historySize*2; i++ {
		p.Record(model.SourceAttempt{Source: "bing", Responded: true, Success: i >= historySize})
	}
	s := p.Stats("bing")
	assert.Equal(t, historySize, s.Attempts)
	assert.Equal(t, 1.0, s.SuccessRate)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
