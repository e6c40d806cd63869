// Package worker provides a pool of workers that each own private state.
//
// Scanning needs one parser per goroutine, so every worker builds its own
// state once at start and hands it to each task it runs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrNotStarted is returned by Submit before Start.
var ErrNotStarted = errors.New("pool not started")

// Task is a unit of work run with the state of the worker executing it.
type Task[S any] interface {
	Execute(ctx context.Context, state S) error
	ID() string
}

// Result contains the result of a task execution.
type Result struct {
	TaskID string
	Worker int
	Error  error
}

// StateFunc builds the private state of worker i.
type StateFunc[S any] func(worker int) (S, error)

// Pool manages a fixed set of stateful workers.
type Pool[S any] struct {
	workers   int
	newState  StateFunc[S]
	tasks     chan Task[S]
	results   chan Result
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   atomic.Bool
	processed atomic.Int64
	errors    atomic.Int64
}

// Config configures the worker pool.
type Config struct {
	Workers   int // Number of workers (default: GOMAXPROCS)
	QueueSize int // Size of task queue (default: workers * 2)
}

// NewPool creates a pool whose workers get their state from newState.
func NewPool[S any](cfg Config, newState StateFunc[S]) *Pool[S] {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool[S]{
		workers:  cfg.Workers,
		newState: newState,
		tasks:    make(chan Task[S], cfg.QueueSize),
		results:  make(chan Result, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start builds every worker's state and starts the workers. No worker
// runs unless all states were built.
func (p *Pool[S]) Start() error {
	if p.started.Load() {
		return nil
	}

	states := make([]S, p.workers)
	if p.newState != nil {
		for i := range states {
			s, err := p.newState(i)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			states[i] = s
		}
	}

	if p.started.Swap(true) {
		return nil
	}
	for i, s := range states {
		p.wg.Add(1)
		go p.worker(i, s)
	}
	return nil
}

func (p *Pool[S]) worker(id int, state S) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case task, ok := <-p.tasks:
			if !ok {
				return
			}

			err := task.Execute(p.ctx, state)

			p.processed.Add(1)
			if err != nil {
				p.errors.Add(1)
			}

			select {
			case p.results <- Result{TaskID: task.ID(), Worker: id, Error: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task, blocking while the queue is full.
func (p *Pool[S]) Submit(task Task[S]) error {
	if !p.started.Load() {
		return ErrNotStarted
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the results channel. It must be drained while tasks are
// being submitted.
func (p *Pool[S]) Results() <-chan Result {
	return p.results
}

// Stop cancels running tasks and stops the pool.
func (p *Pool[S]) Stop() {
	p.cancel()
	close(p.tasks)
	p.wg.Wait()
	close(p.results)
}

// StopWait stops the pool after every queued task has run.
func (p *Pool[S]) StopWait() {
	close(p.tasks)
	p.wg.Wait()
	p.cancel()
	close(p.results)
}

// Stats returns pool statistics.
func (p *Pool[S]) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Processed: p.processed.Load(),
		Errors:    p.errors.Load(),
		Pending:   len(p.tasks),
	}
}

// Stats contains pool statistics.
type Stats struct {
	Workers   int
	Processed int64
	Errors    int64
	Pending   int
}

// String returns a string representation of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("workers=%d processed=%d errors=%d pending=%d",
		s.Workers, s.Processed, s.Errors, s.Pending)
}

// FuncTask wraps a function as a task.
type FuncTask[S any] struct {
	id string
	fn func(ctx context.Context, state S) error
}

// NewFuncTask creates a task from a function.
func NewFuncTask[S any](id string, fn func(ctx context.Context, state S) error) *FuncTask[S] {
	return &FuncTask[S]{id: id, fn: fn}
}

// ID returns the task identifier.
func (f *FuncTask[S]) ID() string {
	return f.id
}

// Execute runs the function.
func (f *FuncTask[S]) Execute(ctx context.Context, state S) error {
	return f.fn(ctx, state)
}
