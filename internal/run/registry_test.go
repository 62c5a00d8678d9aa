package run

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conncheck/agent/internal/domain"
)

// taggedRecorder captures events from several runs in one global order, so
// interleaving (or its absence) is observable.
type taggedRecorder struct {
	mu     sync.Mutex
	events []taggedEvent
}

type taggedEvent struct {
	tag  string
	kind string
}

func (r *taggedRecorder) add(tag, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, taggedEvent{tag: tag, kind: kind})
}

func (r *taggedRecorder) list() []taggedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]taggedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *taggedRecorder) sink(tag string) Sink {
	return &taggedSink{rec: r, tag: tag}
}

type taggedSink struct {
	rec *taggedRecorder
	tag string
}

func (s *taggedSink) TaskStarted(int, domain.Task)                    { s.rec.add(s.tag, "started") }
func (s *taggedSink) TaskResult(int, domain.Task, domain.ProbeResult) { s.rec.add(s.tag, "result") }
func (s *taggedSink) RunStopped(int, int)                             { s.rec.add(s.tag, "stopped") }

func slowProber(d time.Duration) Prober {
	return func(ctx context.Context, _ domain.Task) domain.ProbeResult {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
		return domain.ProbeResult{Success: true, ErrorKind: domain.ErrorNone}
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(5*time.Millisecond, nil)
}

func TestRegistryRequestStartsRun(t *testing.T) {
	r := newTestRegistry()
	rec := &taggedRecorder{}

	c, err := r.Request(context.Background(), "win-1", makeTasks(3),
		Options{Prober: okProber}, rec.sink("run1"))
	require.NoError(t, err)

	waitDone(t, c)
	got, ok := r.Get("win-1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, domain.RunStateStopped, c.State())
}

func TestRegistryReplacesActiveRun(t *testing.T) {
	r := newTestRegistry()
	rec := &taggedRecorder{}
	ctx := context.Background()

	old, err := r.Request(ctx, "win-1", makeTasks(50),
		Options{Prober: slowProber(10 * time.Millisecond)}, rec.sink("old"))
	require.NoError(t, err)

	// Let the first run make some progress before replacing it.
	require.Eventually(t, func() bool { return len(rec.list()) >= 2 },
		2*time.Second, time.Millisecond)

	replacement, err := r.Request(ctx, "win-1", makeTasks(3),
		Options{Prober: okProber}, rec.sink("new"))
	require.NoError(t, err)

	// Request waits for the old loop to halt, so by now the old run is
	// terminal and the registry points at the replacement.
	assert.NotSame(t, old, replacement)
	assert.Equal(t, domain.RunStateStopped, old.State())
	got, ok := r.Get("win-1")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	waitDone(t, replacement)

	// The two runs' notifications never interleave: every "old" event
	// precedes every "new" event, and the old run's last word is "stopped".
	events := rec.list()
	firstNew := -1
	for i, ev := range events {
		if ev.tag == "new" {
			firstNew = i
			break
		}
	}
	require.GreaterOrEqual(t, firstNew, 1)
	for _, ev := range events[firstNew:] {
		assert.Equal(t, "new", ev.tag)
	}
	assert.Equal(t, taggedEvent{tag: "old", kind: "stopped"}, events[firstNew-1])
}

func TestRegistryReplacesStoppedRunWithoutGraceWait(t *testing.T) {
	r := NewRegistry(time.Hour, nil) // a wait here would hang the test
	ctx := context.Background()

	first, err := r.Request(ctx, "win-1", makeTasks(1), Options{Prober: okProber}, NopSink{})
	require.NoError(t, err)
	waitDone(t, first)

	done := make(chan struct{})
	go func() {
		defer close(done)
		second, err := r.Request(ctx, "win-1", makeTasks(1), Options{Prober: okProber}, NopSink{})
		assert.NoError(t, err)
		waitDone(t, second)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request against a stopped run should not wait for the grace interval")
	}
}

func TestRegistryRejectsInvalidRequest(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Request(context.Background(), "", makeTasks(1), Options{Prober: okProber}, NopSink{})
	assert.Error(t, err)

	_, err = r.Request(context.Background(), "win-1", nil, Options{Prober: okProber}, NopSink{})
	assert.Error(t, err)
	_, ok := r.Get("win-1")
	assert.False(t, ok)
}

func TestRegistryStopAndTeardown(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	c, err := r.Request(ctx, "win-1", makeTasks(50),
		Options{Delay: time.Hour, Prober: okProber}, NopSink{})
	require.NoError(t, err)

	require.True(t, r.Stop("win-1"))
	waitDone(t, c)
	assert.Equal(t, domain.RunStateStopped, c.State())

	// A stopped run stays inspectable until torn down.
	_, ok := r.Get("win-1")
	assert.True(t, ok)

	r.Teardown("win-1")
	_, ok = r.Get("win-1")
	assert.False(t, ok)

	assert.False(t, r.Stop("missing"))
}

func TestRegistryShutdownStopsEverything(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	c1, err := r.Request(ctx, "a", makeTasks(50), Options{Delay: time.Hour, Prober: okProber}, NopSink{})
	require.NoError(t, err)
	c2, err := r.Request(ctx, "b", makeTasks(50), Options{Delay: time.Hour, Prober: okProber}, NopSink{})
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.Shutdown(shutdownCtx)

	assert.Equal(t, domain.RunStateStopped, c1.State())
	assert.Equal(t, domain.RunStateStopped, c2.State())
	assert.Empty(t, r.Snapshot())
}

func TestRegistrySnapshot(t *testing.T) {
	r := newTestRegistry()

	c, err := r.Request(context.Background(), "win-1", makeTasks(2), Options{Prober: okProber}, NopSink{})
	require.NoError(t, err)
	waitDone(t, c)

	infos := r.Snapshot()
	require.Len(t, infos, 1)
	assert.Equal(t, "win-1", infos[0].Key)
	assert.Equal(t, domain.RunStateStopped, infos[0].State)
	assert.Equal(t, 2, infos[0].Index)
	assert.Equal(t, 2, infos[0].Total)
}
