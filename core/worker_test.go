package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerPool_ExecutesTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 4, 16, "test", zap.NewNop().Sugar())
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(100), counter.Load())
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 4, "test", zap.NewNop().Sugar())
	pool.Start()
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.Submit(func() {
		defer wg.Done()
		panic("boom")
	}))
	wg.Wait()

	// The single worker must still be alive to run the next task.
	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive task panic")
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, 4, "test", zap.NewNop().Sugar())
	pool.Start()
	pool.Stop()
	assert.ErrorIs(t, pool.Submit(func() {}), ErrPoolStopped)
}

func TestWorkerPool_ParentContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 2, 4, "test", zap.NewNop().Sugar())
	pool.Start()

	cancel()
	assert.Eventually(t, func() bool {
		return pool.Submit(func() {}) != nil
	}, time.Second, 10*time.Millisecond)
	pool.Stop()
}

func TestWorkerPool_StopRunsQueuedTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 8, "test", zap.NewNop().Sugar())
	pool.Start()

	// Occupy the single worker so the remaining submits stay queued.
	gate := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-gate }))

	var counter atomic.Int64
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(func() { counter.Add(1) }))
	}

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, int64(8), counter.Load(), "tasks accepted before Stop must run")
}

func TestWorkerPool_StopIdempotent(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, 4, "test", zap.NewNop().Sugar())
	pool.Start()
	pool.Stop()
	pool.Stop()
}
