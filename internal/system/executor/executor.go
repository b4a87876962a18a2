// Package executor runs fire-and-forget work off the request path.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/waterreg/registry-server/internal/system/log"
	"golang.org/x/sync/semaphore"
)

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Executor accepts background tasks. Submit never blocks on task execution.
type Executor interface {
	Submit(ctx context.Context, name string, task Task)
}

// Pool runs tasks on goroutines with bounded parallelism.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *log.Logger
}

var _ Executor = (*Pool)(nil)

// NewPool creates a pool running at most workers tasks at once.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Executor")),
	}
}

// Submit schedules task. The task context keeps the values of ctx (such as
// the correlation ID) but not its cancellation.
func (p *Pool) Submit(ctx context.Context, name string, task Task) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("Executor is shut down, task dropped", log.String("task", name))
		return
	}

	taskCtx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(taskCtx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		run(taskCtx, p.logger, name, task)
	}()
}

// Shutdown stops accepting tasks and waits for running ones until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}
}

// Inline runs tasks synchronously in Submit. It is meant for tests and CLI commands.
type Inline struct{}

func (Inline) Submit(ctx context.Context, name string, task Task) {
	run(ctx, log.GetLogger().With(log.String(log.LoggerKeyComponentName, "Executor")), name, task)
}

func run(ctx context.Context, logger *log.Logger, name string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithContext(ctx).Error("Background task panicked", log.String("task", name), log.Any("panic", r))
		}
	}()
	if err := task(ctx); err != nil {
		logger.WithContext(ctx).Warn("Background task failed", log.String("task", name), log.Error(err))
	}
}
