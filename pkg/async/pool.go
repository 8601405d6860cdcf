// Package async provides a managed worker pool for background tasks:
// goroutine lifecycle, panic recovery, per-task timeouts and graceful
// drain on shutdown.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopysoft/atrium/pkg/observability"
)

// WorkerPool runs submitted tasks on a fixed set of workers. Tasks get a
// bounded context; a panicking task takes down neither its worker nor the
// process.
type WorkerPool struct {
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	logger       *observability.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines processing submitted tasks, each
// bounded by timeout.
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration, logger *observability.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues a task. It returns an error once the pool is shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) (err error) {
	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool %s is shut down", p.taskName)
	default:
	}

	// shutdown may close workCh between the check above and the send; the
	// only panic reachable below is that closed-channel send, and the
	// caller must learn the task was not queued
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker pool %s is shut down", p.taskName)
		}
	}()

	select {
	case p.workCh <- fn:
		return nil
	case <-p.doneCh:
		return fmt.Errorf("worker pool %s is shut down", p.taskName)
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the workers to
// drain what was already queued.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		close(p.workCh)

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
		}
	})

	return shutdownErr
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.runTask(id, fn)
		}
	}
}

func (p *WorkerPool) runTask(id int, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(map[string]interface{}{
				"worker": id,
				"task":   p.taskName,
				"panic":  fmt.Sprintf("%v", r),
				"stack":  string(debug.Stack()),
			}).Error("panic in worker task")
		}
	}()

	if err := fn(ctx); err != nil {
		p.logger.WithError(err).WithFields(map[string]interface{}{
			"worker": id,
			"task":   p.taskName,
		}).Warn("worker task failed")
	}
}
