package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/citeverify/internal/model"
)

type fakeClusterVerifier struct{}

func (fakeClusterVerifier) VerifyCluster(ctx context.Context, c model.Cluster) ([]model.VerificationResult, error) {
	if c.Citations[0] == "fail" {
		return nil, errors.New("verification failed")
	}
	out := make([]model.VerificationResult, len(c.Citations))
	for i, cite := range c.Citations {
		out[i] = model.VerificationResult{Citation: cite, Verified: model.StatusUnconfirmed}
	}
	return out, nil
}

func TestParseClusterLine(t *testing.T) {
	c, err := ParseClusterLine("200 Wn.2d 72; 514 P.3d 643 | Convoyant, LLC v. DeepThink, LLC | trade secrets")
	require.NoError(t, err)
	assert.Equal(t, []string{"200 Wn.2d 72", "514 P.3d 643"}, c.Citations)
	assert.Equal(t, "Convoyant, LLC v. DeepThink, LLC", c.CaseNameHint)
	assert.Equal(t, "trade secrets", c.Context)
	assert.NotEmpty(t, c.ID)

	c, err = ParseClusterLine("347 U.S. 483")
	require.NoError(t, err)
	assert.Equal(t, []string{"347 U.S. 483"}, c.Citations)
	assert.Empty(t, c.CaseNameHint)

	_, err = ParseClusterLine(" ; | Brown v. Board")
	assert.Error(t, err)
}

func TestReadClusters(t *testing.T) {
	input := strings.Join([]string{
		"# brief citations",
		"347 U.S. 483 | Brown v. Board of Education",
		"",
		"347 U.S. 483 | Brown v. Board of Education",
		"410 U.S. 113",
	}, "\n")

	clusters, err := ReadClusters(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "Brown v. Board of Education", clusters[0].CaseNameHint)
	assert.NotEqual(t, clusters[0].ID, clusters[1].ID)

	_, err = ReadClusters(strings.NewReader("347 U.S. 483\n;\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.txt")
	require.NoError(t, os.WriteFile(path, []byte("fail\n347 U.S. 483\n200 Wn.2d 72; 514 P.3d 643\n"), 0644))

	bp := NewBatchProcessor(fakeClusterVerifier{}, 2)
	results, err := bp.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Error(t, results[0].GetError())
	assert.Equal(t, "347 U.S. 483", results[1].Results[0].Citation)
	assert.Len(t, results[2].Results, 2)

	_, err = bp.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestBatchProcessor_Empty(t *testing.T) {
	bp := NewBatchProcessor(fakeClusterVerifier{}, 2)
	assert.Empty(t, bp.ProcessClusters(context.Background(), nil))
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := NewBatchProcessor(fakeClusterVerifier{}, 1)
	results := bp.ProcessClusters(ctx, []model.Cluster{{Citations: []string{"347 U.S. 483"}}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].GetError(), context.Canceled)
}
