package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	id    int
	delay time.Duration
	err   error
}

type testResult struct {
	id  int
	err error
}

func (r *testResult) GetError() error { return r.err }

func (j *testJob) Execute(ctx context.Context) Result {
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return &testResult{id: j.id, err: ctx.Err()}
		}
	}
	return &testResult{id: j.id, err: j.err}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	for i := 0; i < 10; i++ {
		// Earlier jobs finish later
		require.True(t, pool.Submit(&testJob{id: i, delay: time.Duration(10-i) * time.Millisecond}))
	}

	results := pool.Wait()
	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, i, r.(*testResult).id)
	}
}

func TestPool_Errors(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	boom := errors.New("boom")
	pool.Submit(&testJob{id: 0})
	pool.Submit(&testJob{id: 1, err: boom})

	results := pool.Wait()
	assert.NoError(t, results[0].GetError())
	assert.ErrorIs(t, results[1].GetError(), boom)
}

type countingJob struct{ running, peak *atomic.Int32 }

func (j countingJob) Execute(ctx context.Context) Result {
	n := j.running.Add(1)
	for {
		p := j.peak.Load()
		if n <= p || j.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	j.running.Add(-1)
	return &testResult{}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	pool := NewPool(context.Background(), 2)
	pool.Start()

	for i := 0; i < 8; i++ {
		pool.Submit(countingJob{&running, &peak})
	}
	pool.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(context.Background(), 1)
	pool.Start()
	pool.Shutdown()

	assert.False(t, pool.Submit(&testJob{id: 1}))
}
