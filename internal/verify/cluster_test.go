package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citeverify/internal/model"
	"github.com/ppiankov/citeverify/internal/normalize"
	"github.com/ppiankov/citeverify/internal/sources"
	"github.com/ppiankov/citeverify/internal/worker"
)

var _ worker.ClusterVerifier = (*Batch)(nil)
var _ worker.ClusterVerifier = (*Orchestrator)(nil)

const convoyant = "Convoyant, LLC v. DeepThink, LLC"

func convoyantAPI() *mockVerifier {
	return &mockVerifier{name: "courtlistener", kind: model.KindAPI,
		fn: func(ctx context.Context, q sources.Query) (model.Candidate, error) {
			if q.Normalized.Text != "200 Wn.2d 72" {
				return model.Candidate{Source: "courtlistener"}, nil
			}
			return model.Candidate{
				Verified:          true,
				Source:            "courtlistener",
				CaseName:          convoyant,
				Date:              "2022-09-08",
				URL:               "https://www.courtlistener.com/opinion/6896542/convoyant-llc-v-deepthink-llc/",
				Confidence:        0.95,
				Citation:          "200 Wn.2d 72",
				ParallelCitations: []string{"514 P.3d 643"},
			}, nil
		}}
}

func TestVerifyCluster_ParallelPropagation(t *testing.T) {
	db := &mockVerifier{name: "leagle", kind: model.KindLegalDatabase}
	o := newTestOrchestrator(t, nil, model.VerificationConfig{}, convoyantAPI(), db)

	results, err := o.VerifyCluster(context.Background(), model.Cluster{
		Citations:    []string{"200 Wn.2d 72", "514 P.3d 643"},
		CaseNameHint: convoyant,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "200 Wn.2d 72", results[0].Citation)
	assert.Equal(t, model.StatusTrue, results[0].Verified)
	assert.Equal(t, "514 P.3d 643", results[1].Citation)
	assert.Equal(t, model.StatusTrueByParallel, results[1].Verified)
	assert.Equal(t, results[0].CaseName, results[1].CaseName)
	assert.Contains(t, results[1].Explanation, "200 Wn.2d 72")
	assert.Less(t, results[1].Confidence, results[0].Confidence)

	for _, r := range results {
		assert.Contains(t, []model.VerifiedStatus{model.StatusTrue, model.StatusTrueByParallel}, r.Verified)
	}
}

func TestVerifyCluster_WrongCaseIsNotPropagated(t *testing.T) {
	api := &mockVerifier{name: "courtlistener", kind: model.KindAPI,
		fn: func(ctx context.Context, q sources.Query) (model.Candidate, error) {
			name := convoyant
			if q.Normalized.Text == "514 P.3d 643" {
				name = "Smith v. Jones"
			}
			return model.Candidate{Verified: true, Source: "courtlistener", CaseName: name, Confidence: 0.95,
				URL: "https://www.courtlistener.com/opinion/1/"}, nil
		}}
	o := newTestOrchestrator(t, nil, model.VerificationConfig{}, api)

	results, err := o.VerifyCluster(context.Background(), model.Cluster{
		Citations:    []string{"200 Wn.2d 72", "514 P.3d 643"},
		CaseNameHint: convoyant,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, model.StatusTrue, results[0].Verified)
	assert.Equal(t, model.StatusUnconfirmed, results[1].Verified)
	assert.Equal(t, "Smith v. Jones", results[1].FoundCaseName)
	assert.Contains(t, results[1].Explanation, "Smith v. Jones")
	assert.Empty(t, results[1].URL)
}

func TestVerifyCluster_UnifiesCanonicalName(t *testing.T) {
	api := &mockVerifier{name: "courtlistener", kind: model.KindAPI,
		fn: func(ctx context.Context, q sources.Query) (model.Candidate, error) {
			name := convoyant
			if normalize.Normalize(q.Citation).Text == "514 P.3d 643" {
				name = "Convoyant LLC v. Deepthink LLC"
			}
			return model.Candidate{Verified: true, Source: "courtlistener", CaseName: name, Confidence: 0.95}, nil
		}}
	o := newTestOrchestrator(t, nil, model.VerificationConfig{}, api)

	results, err := o.VerifyCluster(context.Background(), model.Cluster{
		Citations: []string{"200 Wn.2d 72", "514 P.3d 643"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrue, results[1].Verified)
	assert.Equal(t, results[0].CaseName, results[1].CaseName)
}

func TestVerifyCluster_NothingVerified(t *testing.T) {
	o := newTestOrchestrator(t, nil, model.VerificationConfig{},
		&mockVerifier{name: "courtlistener", kind: model.KindAPI})

	results, err := o.VerifyCluster(context.Background(), model.Cluster{
		Citations: []string{"200 Wn.2d 72", "722 U.S. 866"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnconfirmed, results[0].Verified)
	assert.Equal(t, model.StatusFalse, results[1].Verified)
	for _, r := range results {
		assert.Empty(t, r.URL)
	}
}

func TestVerifyCluster_Errors(t *testing.T) {
	o := newTestOrchestrator(t, nil, model.VerificationConfig{})

	_, err := o.VerifyCluster(context.Background(), model.Cluster{})
	assert.ErrorIs(t, err, ErrEmptyCluster)

	_, err = o.VerifyCluster(context.Background(), model.Cluster{Citations: []string{"200 Wn.2d 72", " "}})
	assert.ErrorIs(t, err, ErrEmptyCitation)
}

func TestBatchProcessor_SharesBreakerAcrossClusters(t *testing.T) {
	flaky := &mockVerifier{name: "justia", kind: model.KindLegalDatabase, fn: failing("justia")}
	o := newTestOrchestrator(t, nil, model.VerificationConfig{FailureThreshold: 2, CitationConcurrency: 1}, flaky)

	batch := o.NewBatch()
	bp := worker.NewBatchProcessor(batch, 1)
	results := bp.ProcessClusters(context.Background(), []model.Cluster{
		{Citations: []string{"347 U.S. 483"}},
		{Citations: []string{"410 U.S. 113"}},
		{Citations: []string{"163 U.S. 537"}},
	})

	require.Len(t, results, 3)
	for _, r := range results {
		require.NoError(t, r.GetError())
	}
	assert.EqualValues(t, 2, flaky.calls.Load())
}
