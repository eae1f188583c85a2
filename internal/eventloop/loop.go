// Package eventloop confines kiosk state to a single goroutine. Timers and
// network continuations are posted back onto the loop instead of touching
// state from their own goroutines.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

var ErrStopped = errors.New("event loop stopped")

// Timer is a cancellable handle. Stop reports whether the callback was
// prevented from running.
type Timer interface {
	Stop() bool
}

type Loop interface {
	Now() time.Time
	// Post queues fn to run on the loop.
	Post(fn func())
	// Go runs work off the loop and posts the continuation it returns, if any.
	Go(work func() func())
	// AfterFunc runs fn on the loop once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// Call runs fn on the loop and waits for it to finish.
	Call(ctx context.Context, fn func()) error
}

// Runner is the production Loop: one goroutine draining an unbounded FIFO.
type Runner struct {
	clk clock.Clock
	log *slog.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

func NewRunner(clk clock.Clock, log *slog.Logger) *Runner {
	if clk == nil {
		clk = clock.New()
	}
	return &Runner{
		clk:  clk,
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled. Tasks still queued at that point are dropped.
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		r.mu.Lock()
		r.stopped = true
		r.queue = nil
		r.mu.Unlock()
		close(r.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		}
		for {
			r.mu.Lock()
			if len(r.queue) == 0 {
				r.mu.Unlock()
				break
			}
			fn := r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]
			r.mu.Unlock()

			r.exec(fn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (r *Runner) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("eventloop: task panicked", "panic", rec, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (r *Runner) Now() time.Time { return r.clk.Now() }

func (r *Runner) Post(fn func()) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, fn)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Go(work func() func()) {
	go func() {
		var cont func()
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("eventloop: work panicked", "panic", rec)
				}
			}()
			cont = work()
		}()
		if cont != nil {
			r.Post(cont)
		}
	}()
}

type runnerTimer struct {
	t       *clock.Timer
	stopped atomic.Bool
}

func (t *runnerTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	t.t.Stop()
	return true
}

// AfterFunc checks the stop flag again on the loop, so a timer stopped after
// its clock fired but before its task ran still never runs.
func (r *Runner) AfterFunc(d time.Duration, fn func()) Timer {
	rt := &runnerTimer{}
	rt.t = r.clk.AfterFunc(d, func() {
		r.Post(func() {
			if rt.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return rt
}

func (r *Runner) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	r.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
