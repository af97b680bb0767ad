package breaker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestBatchBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(2, zaptest.NewLogger(t))

	assert.NoError(t, b.Allow("justia"))
	assert.False(t, b.RecordFailure("justia"))
	assert.NoError(t, b.Allow("justia"))
	assert.True(t, b.RecordFailure("justia"))

	assert.ErrorIs(t, b.Allow("justia"), ErrOpen)
	assert.Equal(t, StateOpen, b.State("justia"))
	assert.Equal(t, []string{"justia"}, b.Tripped())

	// Other sources are independent
	assert.NoError(t, b.Allow("bing"))
	assert.Equal(t, StateClosed, b.State("bing"))
}

func TestBatchBreaker_SuccessResetsRun(t *testing.T) {
	b := New(2, nil)

	b.RecordFailure("leagle")
	b.RecordSuccess("leagle")
	assert.False(t, b.RecordFailure("leagle"))
	assert.NoError(t, b.Allow("leagle"))

	c := b.Counts("leagle")
	assert.Equal(t, uint32(2), c.TotalFailures)
	assert.Equal(t, uint32(1), c.TotalSuccesses)
	assert.Equal(t, uint32(1), c.ConsecutiveFailures)
}

func TestBatchBreaker_TripsOnce(t *testing.T) {
	b := New(1, nil)
	assert.True(t, b.RecordFailure("google"))
	assert.False(t, b.RecordFailure("google"))
	assert.Empty(t, New(3, nil).Tripped())
}

func TestBatchBreaker_Concurrent(t *testing.T) {
	b := New(100, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Allow("casemine")
			b.RecordFailure("casemine")
		}()
	}
	wg.Wait()

	c := b.Counts("casemine")
	assert.Equal(t, uint32(50), c.Requests)
	assert.Equal(t, uint32(50), c.ConsecutiveFailures)
	assert.Equal(t, StateClosed, b.State("casemine"))
}
