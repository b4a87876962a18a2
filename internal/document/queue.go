package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waterreg/registry-server/internal/system/log"
	"golang.org/x/sync/semaphore"
)

// Backoff types.
const (
	BackoffFixed  = "fixed"
	BackoffLinear = "linear"
)

// Backoff is the wait between attempts.
type Backoff struct {
	Type  string
	Delay time.Duration
}

// After returns the wait following the given failed attempt (1-based).
func (b Backoff) After(attempt int) time.Duration {
	if b.Type == BackoffLinear {
		return b.Delay * time.Duration(attempt)
	}
	return b.Delay
}

// Options configure retry and parallelism.
type Options struct {
	Attempts    int
	Backoff     Backoff
	Concurrency int
}

// DefaultOptions are five attempts one second apart, ten tasks at a time.
func DefaultOptions() Options {
	return Options{
		Attempts:    5,
		Backoff:     Backoff{Type: BackoffFixed, Delay: time.Second},
		Concurrency: 10,
	}
}

// Task is a keyed unit of work producing a string output.
type Task struct {
	Key string
	Run func(ctx context.Context) (string, error)
	// OnAttempt is called after every attempt, if set.
	OnAttempt func(attempt int, err error)
}

// Handle is the pending result of an enqueued task.
type Handle struct {
	Key      string
	done     chan struct{}
	result   string
	err      error
	attempts int
}

// Wait blocks until the task settles or ctx ends.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Attempts returns how many times the task ran. It is valid after Wait.
func (h *Handle) Attempts() int {
	return h.attempts
}

// Queue runs tasks in process with retry. At most Concurrency attempts run at once.
type Queue struct {
	opts   Options
	sem    *semaphore.Weighted
	sleep  func(ctx context.Context, d time.Duration) error
	logger *log.Logger
}

// NewQueue creates a queue, filling unset options from DefaultOptions.
func NewQueue(opts Options) *Queue {
	def := DefaultOptions()
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.Backoff.Type == "" {
		opts.Backoff = def.Backoff
	}
	return &Queue{
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
		sleep:  sleepContext,
		logger: log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DocumentQueue")),
	}
}

// Enqueue starts task in the background and returns its handle.
func (q *Queue) Enqueue(ctx context.Context, task Task) *Handle {
	h := &Handle{Key: task.Key, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.result, h.attempts, h.err = q.retry(ctx, task, true)
	}()
	return h
}

// Run executes task in the calling goroutine with retry. It does not take a
// concurrency slot, so a parent may wait here on its own children.
func (q *Queue) Run(ctx context.Context, task Task) (string, error) {
	result, _, err := q.retry(ctx, task, false)
	return result, err
}

func (q *Queue) retry(ctx context.Context, task Task, bounded bool) (string, int, error) {
	var lastErr error
	for attempt := 1; attempt <= q.opts.Attempts; attempt++ {
		result, err := q.attempt(ctx, task, bounded)
		if task.OnAttempt != nil {
			task.OnAttempt(attempt, err)
		}
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", attempt, ctx.Err()
		}

		q.logger.WithContext(ctx).Warn("Task attempt failed",
			log.String("task", task.Key),
			log.Int("attempt", attempt),
			log.Int("attempts", q.opts.Attempts),
			log.Error(err))

		if attempt < q.opts.Attempts {
			if err := q.sleep(ctx, q.opts.Backoff.After(attempt)); err != nil {
				return "", attempt, err
			}
		}
	}
	return "", q.opts.Attempts, fmt.Errorf("task %s failed after %d attempts: %w", task.Key, q.opts.Attempts, lastErr)
}

func (q *Queue) attempt(ctx context.Context, task Task, bounded bool) (result string, err error) {
	if bounded {
		if err := q.sem.Acquire(ctx, 1); err != nil {
			return "", err
		}
		defer q.sem.Release(1)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Run(ctx)
}

// WaitForChildren waits for every handle and returns their outputs by key.
// Any failed child fails the whole set.
func WaitForChildren(ctx context.Context, handles []*Handle) (map[string]string, error) {
	out := make(map[string]string, len(handles))
	var errs []error
	for _, h := range handles {
		result, err := h.Wait(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("child %s: %w", h.Key, err))
			continue
		}
		out[h.Key] = result
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
