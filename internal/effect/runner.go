package effect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// TaskState is the lifecycle of a Runner.
type TaskState int32

const (
	TaskIdle TaskState = iota
	TaskRunning
	TaskCancelling
	TaskFinished
)

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "idle"
	case TaskRunning:
		return "running"
	case TaskCancelling:
		return "cancelling"
	case TaskFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned by Start on a runner that left the idle state.
var ErrAlreadyStarted = errors.New("runner already started")

// Result summarises a finished run.
type Result struct {
	Ticks     int  // ticks actually executed
	Cancelled bool // stopped before all ticks ran
}

// TickFunc is invoked once per tick with the 1-based tick number.
type TickFunc func(n int)

// Runner executes a fixed number of ticks at a fixed rate on its own goroutine.
// Tick deadlines are computed from the start time, so a slow tick shortens the
// following wait instead of shifting every later tick.
type Runner struct {
	ticks    int
	interval time.Duration
	tick     TickFunc

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	result   Result
}

// NewRunner creates an idle runner.
func NewRunner(ticks int, interval time.Duration, tick TickFunc) *Runner {
	return &Runner{
		ticks:    ticks,
		interval: interval,
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop.
func (r *Runner) Start() error {
	if !r.state.CompareAndSwap(int32(TaskIdle), int32(TaskRunning)) {
		return ErrAlreadyStarted
	}
	go r.run()
	return nil
}

// Stop requests cancellation. The loop observes it before the next tick.
// Stop never blocks and may be called any number of times.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.state.CompareAndSwap(int32(TaskRunning), int32(TaskCancelling))
		close(r.stop)
	})
}

// Done is closed once the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Result is valid after Done is closed.
func (r *Runner) Result() Result {
	<-r.done
	return r.result
}

// Wait blocks until the loop exits or ctx ends.
func (r *Runner) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() TaskState {
	return TaskState(r.state.Load())
}

func (r *Runner) run() {
	defer func() {
		r.state.Store(int32(TaskFinished))
		close(r.done)
	}()

	start := time.Now()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for i := 1; i <= r.ticks; i++ {
		wait := time.Until(start.Add(time.Duration(i) * r.interval))
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-r.stop:
				r.result.Cancelled = true
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-r.stop:
				r.result.Cancelled = true
				return
			default:
			}
		}

		r.tick(i)
		r.result.Ticks = i
	}
}
