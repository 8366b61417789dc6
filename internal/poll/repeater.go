// Package poll runs a task on a fixed interval until it is stopped.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStarted is returned by Start on a Repeater that is already running or
// was stopped.
var ErrStarted = errors.New("repeater already started")

// Task is one tick of work. Its error is logged and does not stop the
// Repeater.
type Task func(ctx context.Context) error

// Repeater calls a Task immediately on Start and then every interval.
// Ticks never overlap: a slow task delays the next tick.
type Repeater struct {
	name     string
	interval time.Duration
	task     Task
	logger   *slog.Logger

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a stopped Repeater. A non-positive interval is treated as one
// second.
func New(name string, interval time.Duration, task Task, logger *slog.Logger) *Repeater {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repeater{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Interval returns the tick period.
func (r *Repeater) Interval() time.Duration {
	return r.interval
}

// Start runs the first tick synchronously and launches the background loop.
// The loop ends when ctx is cancelled or Stop is called. A Stop issued by
// another goroutine during the first tick cancels it and waits for Start
// to wind the loop down.
func (r *Repeater) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrStarted
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	r.mu.Unlock()

	r.tick(ctx)
	go r.loop(ctx)
	return nil
}

// Stop ends the loop, cancels an in-progress tick and waits for it to
// return. It is safe to call Stop multiple times, and before Start.
func (r *Repeater) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.started = true
		if r.cancel != nil {
			r.cancel()
		}
		r.mu.Unlock()
		close(r.done)
	})
	r.wg.Wait()
}

// Wait blocks until the loop has exited.
func (r *Repeater) Wait() {
	r.wg.Wait()
}

func (r *Repeater) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Repeater) tick(ctx context.Context) {
	if err := r.task(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn("poll tick failed", "task", r.name, "error", err)
	}
}
