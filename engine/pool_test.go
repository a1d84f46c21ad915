package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// abortRecorder collects the errors passed to abort, keyed by task id
type abortRecorder struct {
	mu     sync.Mutex
	errors map[int64]error
}

func (a *abortRecorder) on(taskID int64) func(err error) {
	return func(err error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.errors == nil {
			a.errors = make(map[int64]error)
		}
		a.errors[taskID] = err
	}
}

func (a *abortRecorder) get(taskID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errors[taskID]
}

func noAbort(error) {}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)
	var running, peak atomic.Int32
	release := make(chan struct{})

	for i := int64(1); i <= 5; i++ {
		pool.Submit(i, func(ctx context.Context) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}, noAbort)
	}

	assert.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	pool.Wait()

	assert.Equal(t, int32(2), peak.Load())
	assert.Zero(t, pool.Running())
}

func TestWorkerPoolCancel(t *testing.T) {
	pool := NewWorkerPool(1)
	aborts := &abortRecorder{}
	started := make(chan struct{})
	var cancelled atomic.Bool

	pool.Submit(1, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	}, aborts.on(1))
	ran := atomic.Bool{}
	pool.Submit(2, func(ctx context.Context) { ran.Store(true) }, aborts.on(2))

	<-started
	assert.True(t, pool.Cancel(2), "queued task can be cancelled")
	assert.True(t, pool.Cancel(1))
	pool.Wait()

	assert.True(t, cancelled.Load())
	assert.False(t, ran.Load())
	assert.False(t, pool.Cancel(1))
	assert.NoError(t, aborts.get(1), "a task that ran to the end is not aborted")
	require.Error(t, aborts.get(2))
	assert.Contains(t, aborts.get(2).Error(), "cancelled before it started")
}

func TestWorkerPoolStartsInSubmissionOrder(t *testing.T) {
	pool := NewWorkerPool(1)
	var mu sync.Mutex
	var order []int64
	gate := make(chan struct{})

	pool.Submit(1, func(context.Context) { <-gate }, noAbort)
	for i := int64(2); i <= 6; i++ {
		id := i
		pool.Submit(id, func(context.Context) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}, noAbort)
	}
	close(gate)
	pool.Wait()

	assert.Equal(t, []int64{2, 3, 4, 5, 6}, order)
}

func TestWorkerPoolShutdownAbortsQueued(t *testing.T) {
	pool := NewWorkerPool(1)
	aborts := &abortRecorder{}
	started := make(chan struct{})

	pool.Submit(1, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}, aborts.on(1))
	for i := int64(2); i <= 3; i++ {
		pool.Submit(i, func(context.Context) { t.Errorf("queued task ran after shutdown") }, aborts.on(i))
	}

	<-started
	pool.Shutdown()

	assert.NoError(t, aborts.get(1))
	assert.Error(t, aborts.get(2))
	assert.Error(t, aborts.get(3))
	assert.Zero(t, pool.Running())
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	pool := NewWorkerPool(1)
	aborts := &abortRecorder{}
	pool.Submit(1, func(context.Context) { panic("boom") }, aborts.on(1))
	pool.Wait()

	require.Error(t, aborts.get(1))
	assert.Contains(t, aborts.get(1).Error(), "task 1 panicked: boom")
	assert.Zero(t, pool.Running())

	// the slot held by the panicking task is free again
	done := make(chan struct{})
	pool.Submit(2, func(context.Context) { close(done) }, noAbort)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not start a task after a panic")
	}
}
