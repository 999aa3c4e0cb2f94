package watch

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// Jobs runs one-shot background operations (model loads, topology
// preparation) that windows start from a handler and poll from Tick.
type Jobs struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewJobs creates a job runner bound to parent.
func NewJobs(parent context.Context) *Jobs {
	ctx, cancel := context.WithCancel(parent)
	g, ctx := errgroup.WithContext(ctx)
	return &Jobs{ctx: ctx, cancel: cancel, group: g}
}

// Close cancels running jobs and waits for them to return.
func (j *Jobs) Close() error {
	j.cancel()
	_ = j.group.Wait()
	return nil
}

// Result is the outcome of a finished task.
type Result[T any] struct {
	ID    string
	Value T
	Err   error
}

// Task is a single-flight slot for one kind of job.
type Task[T any] struct {
	mu      sync.Mutex
	running bool
	id      string
	done    *Result[T]
}

// Start launches fn on jobs unless the task is already running. The
// previous result, if any, is discarded.
func (t *Task[T]) Start(jobs *Jobs, fn func(context.Context) (T, error)) bool {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return false
	}
	id := ulid.Make().String()
	t.running = true
	t.id = id
	t.done = nil
	t.mu.Unlock()

	ctx := jobs.ctx
	jobs.group.Go(func() error {
		v, err := fn(ctx)
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.id == id {
			t.running = false
			t.done = &Result[T]{ID: id, Value: v, Err: err}
		}
		// Job errors belong to the window that started them.
		return nil
	})
	return true
}

// Take returns the finished result once and clears it.
func (t *Task[T]) Take() (Result[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		return Result[T]{}, false
	}
	r := *t.done
	t.done = nil
	return r, true
}
