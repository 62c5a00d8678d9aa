package run

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"conncheck/agent/internal/domain"
)

// DefaultGrace is the pause between stopping a run and registering its
// replacement, giving the old run's in-flight probe and any pending surface
// update time to settle.
const DefaultGrace = 100 * time.Millisecond

// Registry maps a run key (one per result surface) to at most one active
// controller. It is the sole owner of that association: all creation,
// replacement and teardown goes through it.
type Registry struct {
	grace time.Duration
	log   *slog.Logger

	mu   sync.Mutex
	runs map[string]*Controller
}

func NewRegistry(grace time.Duration, log *slog.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		grace: grace,
		log:   log,
		runs:  make(map[string]*Controller),
	}
}

// Options carries the per-run knobs a caller may set on Request.
type Options struct {
	RunID    string // empty: a fresh uuid
	SourceIP string
	Delay    time.Duration
	Timeout  time.Duration
	Prober   Prober // nil: the real TCP prober
}

// Request starts a run for key, replacing any active one. If the key already
// has a non-stopped run, that run is stopped first; Request waits for its
// loop to halt plus the grace interval before registering the replacement,
// so the two runs' notifications can never interleave.
//
// The registry mutex is held for the whole request. Replacement waits are
// short (the old loop halts at its next checkpoint, then one grace interval),
// so serializing across keys keeps the invariant simple without noticeable
// contention.
func (r *Registry) Request(ctx context.Context, key string, tasks []domain.Task, opts Options, sink Sink) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.runs[key]; ok && old.State() != domain.RunStateStopped {
		r.log.Info("stopping active run before restart", "key", key, "run_id", old.ID())
		old.Stop()
		select {
		case <-old.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		select {
		case <-time.After(r.grace):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctrl, err := New(Config{
		RunID:    opts.RunID,
		Key:      key,
		Tasks:    tasks,
		SourceIP: opts.SourceIP,
		Delay:    opts.Delay,
		Timeout:  opts.Timeout,
		Sink:     sink,
		Prober:   opts.Prober,
	})
	if err != nil {
		return nil, err
	}

	r.runs[key] = ctrl
	ctrl.Start(ctx)
	r.log.Info("run started", "key", key, "run_id", ctrl.ID(), "tasks", len(tasks))
	return ctrl, nil
}

// Get returns the controller currently registered for key, if any. The entry
// stays visible after the run stops, until replaced or torn down.
func (r *Registry) Get(key string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.runs[key]
	return c, ok
}

// Stop requests cancellation of the run for key, if one is registered. The
// entry is kept so the surface can still be inspected.
func (r *Registry) Stop(key string) bool {
	r.mu.Lock()
	c, ok := r.runs[key]
	r.mu.Unlock()
	if !ok {
		return false
	}
	c.Stop()
	return true
}

// Teardown stops the run for key and discards the registry entry. This is the
// "result surface closed" path: the run is gone for good, not restartable.
func (r *Registry) Teardown(key string) {
	r.mu.Lock()
	c, ok := r.runs[key]
	delete(r.runs, key)
	r.mu.Unlock()
	if ok {
		c.Stop()
	}
}

// Shutdown stops every run and waits for their loops to halt, or for the
// context to expire.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	ctrls := make([]*Controller, 0, len(r.runs))
	for key, c := range r.runs {
		delete(r.runs, key)
		ctrls = append(ctrls, c)
	}
	r.mu.Unlock()

	for _, c := range ctrls {
		c.Stop()
	}
	for _, c := range ctrls {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return
		}
	}
}

// RunInfo is a point-in-time view of one registry entry.
type RunInfo struct {
	RunID string          `json:"run_id"`
	Key   string          `json:"key"`
	State domain.RunState `json:"state"`
	Index int             `json:"index"`
	Total int             `json:"total"`
}

// Snapshot lists every registered run, running or not.
func (r *Registry) Snapshot() []RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunInfo, 0, len(r.runs))
	for key, c := range r.runs {
		out = append(out, RunInfo{
			RunID: c.ID(),
			Key:   key,
			State: c.State(),
			Index: c.Index(),
			Total: len(c.tasks),
		})
	}
	return out
}
