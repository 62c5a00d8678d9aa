// Package run implements the connectivity-run engine: the cancellable,
// rate-limited sequential dispatch of TCP probes over an ordered task list,
// and the keyed registry that guarantees at most one active run per result
// surface.
package run

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"conncheck/agent/internal/domain"
	"conncheck/agent/internal/probe"
)

// Prober executes one connect attempt for a task. It must never return an
// error: every failure mode is folded into the ProbeResult. The default
// prober is probe.TCP; tests substitute their own.
type Prober func(ctx context.Context, task domain.Task) domain.ProbeResult

// Config describes one run.
type Config struct {
	RunID    string // empty: a fresh uuid
	Key      string
	Tasks    []domain.Task
	SourceIP string        // empty: let the OS pick the local interface
	Delay    time.Duration // pause between task completions, clamped to >= 0
	Timeout  time.Duration // per-probe deadline, zero: probe.DefaultTimeout
	Sink     Sink          // nil: NopSink
	Prober   Prober        // nil: probe.TCP with SourceIP/Timeout applied
}

// Controller owns a single run: the task list, the dispatch loop and the
// run's state. Once stopped it can not be reused; the registry replaces the
// whole controller on restart.
type Controller struct {
	id    string
	key   string
	tasks []domain.Task
	delay time.Duration

	sink   Sink
	prober Prober

	mu    sync.Mutex
	state domain.RunState
	index int

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{} // closed by Stop
	done      chan struct{} // closed when the dispatch loop has halted
}

// New validates the config and builds a controller in the running state.
// Contract violations (empty key, no tasks, bad host/port) are the only
// errors; probe failures never surface here.
func New(cfg Config) (*Controller, error) {
	if cfg.Key == "" {
		return nil, errors.New("run: key is required")
	}
	if len(cfg.Tasks) == 0 {
		return nil, errors.New("run: task list is empty")
	}
	for _, t := range cfg.Tasks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}
	prober := cfg.Prober
	if prober == nil {
		opts := probe.Options{Timeout: cfg.Timeout, SourceIP: cfg.SourceIP}
		prober = func(ctx context.Context, task domain.Task) domain.ProbeResult {
			return probe.TCP(ctx, task.Host, task.Port, opts)
		}
	}
	delay := cfg.Delay
	if delay < 0 {
		delay = 0
	}

	tasks := make([]domain.Task, len(cfg.Tasks))
	copy(tasks, cfg.Tasks)

	id := cfg.RunID
	if id == "" {
		id = uuid.NewString()
	}

	return &Controller{
		id:      id,
		key:     cfg.Key,
		tasks:   tasks,
		delay:   delay,
		sink:    sink,
		prober:  prober,
		state:   domain.RunStateRunning,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// ID identifies this controller instance; a restarted run under the same key
// gets a fresh ID.
func (c *Controller) ID() string { return c.id }

// Key is the result-surface key this run belongs to.
func (c *Controller) Key() string { return c.key }

// Tasks returns a copy of the run's task list.
func (c *Controller) Tasks() []domain.Task {
	out := make([]domain.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Controller) State() domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Index reports dispatch progress: the index of the task currently (or last)
// dispatched, or len(tasks) once the run completed every task.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Done is closed when the dispatch loop has halted and the sink has received
// its final RunStopped call.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Start launches the dispatch loop. Only the first call has any effect.
// The context bounds the whole run; cancelling it behaves like Stop.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.loop(ctx)
	})
}

// Stop requests cooperative cancellation. It never blocks and is idempotent:
// it flips the state to stopping and wakes the dispatch loop, which halts at
// its next checkpoint. An in-flight probe runs to its own completion (bounded
// by the probe timeout) in the background and its result is discarded.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		if c.state == domain.RunStateRunning {
			c.state = domain.RunStateStopping
		}
		c.mu.Unlock()
		close(c.stopped)
	})
}

func (c *Controller) loop(ctx context.Context) {
	defer close(c.done)
	defer c.finish()

	for i, task := range c.tasks {
		if c.State() != domain.RunStateRunning {
			return
		}
		c.setIndex(i)
		c.sink.TaskStarted(i, task)

		// The probe gets its own goroutine so a blocking connect never pins
		// the dispatch loop. The channel is buffered: after a stop the worker
		// still completes its write and exits.
		results := make(chan domain.ProbeResult, 1)
		go func(t domain.Task) {
			results <- c.prober(ctx, t)
		}(task)

		select {
		case res := <-results:
			if c.State() != domain.RunStateRunning {
				// Stop won while the probe was in flight; the result is
				// discarded, never reported.
				return
			}
			c.sink.TaskResult(i, task, res)
		case <-c.stopped:
			return
		case <-ctx.Done():
			c.Stop()
			return
		}

		if i == len(c.tasks)-1 {
			break
		}
		select {
		case <-time.After(c.delay):
		case <-c.stopped:
			return
		case <-ctx.Done():
			c.Stop()
			return
		}
	}

	c.setIndex(len(c.tasks))
}

// finish moves the run to its terminal state and delivers the final sink
// notification. Runs exactly once, on every loop exit path.
func (c *Controller) finish() {
	c.mu.Lock()
	c.state = domain.RunStateStopped
	last := c.index
	c.mu.Unlock()
	c.sink.RunStopped(last, len(c.tasks))
}

func (c *Controller) setIndex(i int) {
	c.mu.Lock()
	c.index = i
	c.mu.Unlock()
}
