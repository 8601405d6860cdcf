package async

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopysoft/atrium/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestWorkerPoolRunsTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 4, "test", time.Second, testLogger())

	var count atomic.Int64
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int64(20), count.Load())
}

func TestWorkerPoolDrainsOnShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test", time.Second, testLogger())

	var count atomic.Int64
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(2*time.Second))
	assert.Equal(t, int64(5), count.Load())
}

func TestWorkerPoolRejectsAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test", time.Second, testLogger())
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

// A submit racing shutdown can hit the work channel after it closed but
// before the workers finished. The caller must still get an error, not a
// nil that pretends the task was queued.
func TestWorkerPoolSubmitShutdownRace(t *testing.T) {
	pool := &WorkerPool{
		taskName: "test",
		workCh:   make(chan func(context.Context) error),
		doneCh:   make(chan struct{}),
	}
	close(pool.workCh)

	err := pool.Submit(func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shut down")
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test", time.Second, testLogger())

	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		panic("boom")
	}))

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}))

	require.NoError(t, pool.Shutdown(time.Second))
	assert.True(t, ran.Load())
}

func TestWorkerPoolTaskTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test", 20*time.Millisecond, testLogger())

	var sawDeadline atomic.Bool
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			sawDeadline.Store(true)
			return ctx.Err()
		case <-time.After(time.Second):
			return fmt.Errorf("deadline never fired")
		}
	}))

	require.NoError(t, pool.Shutdown(2*time.Second))
	assert.True(t, sawDeadline.Load())
}

func TestWorkerPoolShutdownIdempotent(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test", time.Second, testLogger())
	require.NoError(t, pool.Shutdown(time.Second))
	require.NoError(t, pool.Shutdown(time.Second))
}
