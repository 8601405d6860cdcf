package audit

import (
	"context"
	"time"

	"github.com/canopysoft/atrium/pkg/async"
	"github.com/canopysoft/atrium/pkg/observability"
)

// AsyncLogger decouples audit writes from the request path. Log hands the
// event to a worker pool and returns immediately; the wrapped sink sees
// every event unless the process dies before the drain completes.
type AsyncLogger struct {
	inner Logger
	pool  *async.WorkerPool
}

// NewAsyncLogger wraps a sink with background workers
func NewAsyncLogger(inner Logger, workers int, logger *observability.Logger) *AsyncLogger {
	return &AsyncLogger{
		inner: inner,
		pool:  async.NewWorkerPool(context.Background(), workers, "audit", 10*time.Second, logger),
	}
}

// Log enqueues the event for background delivery. The request context is
// deliberately not used for the write: the response finishing must not
// cancel the audit record.
func (l *AsyncLogger) Log(_ context.Context, event *Event) error {
	return l.pool.Submit(func(ctx context.Context) error {
		return l.inner.Log(ctx, event)
	})
}

// Close drains queued events and closes the wrapped sink
func (l *AsyncLogger) Close() error {
	if err := l.pool.Shutdown(10 * time.Second); err != nil {
		l.inner.Close()
		return err
	}
	return l.inner.Close()
}
