package http

import (
	"log/slog"
	"sync"
	"time"

	"conncheck/agent/internal/domain"
	"conncheck/agent/internal/run"
)

const subscriberBuffer = 64

// Hub fans run notifications out to websocket subscribers, keyed by run key.
// Slow subscribers have events dropped rather than ever stalling a dispatch
// loop.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.TaskEvent]struct{}
	log  *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		subs: make(map[string]map[chan domain.TaskEvent]struct{}),
		log:  log,
	}
}

// Subscribe registers a listener for key. The returned cancel func must be
// called exactly once; the channel is closed by it.
func (h *Hub) Subscribe(key string) (<-chan domain.TaskEvent, func()) {
	ch := make(chan domain.TaskEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan domain.TaskEvent]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[key]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Broadcast delivers ev to every subscriber of ev.Key without blocking.
func (h *Hub) Broadcast(ev domain.TaskEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.Key] {
		select {
		case ch <- ev:
		default:
			h.log.Warn("dropping event for slow websocket subscriber",
				"key", ev.Key, "phase", ev.Phase, "index", ev.Index)
		}
	}
}

// SinkFor builds a run.Sink that broadcasts the run's notifications through
// the hub.
func (h *Hub) SinkFor(key, runID string) run.Sink {
	return &hubSink{hub: h, key: key, runID: runID}
}

type hubSink struct {
	hub   *Hub
	key   string
	runID string
}

func (s *hubSink) event(phase domain.EventPhase, index int) domain.TaskEvent {
	return domain.TaskEvent{
		RunID:     s.runID,
		Key:       s.key,
		Phase:     phase,
		Index:     index,
		Timestamp: time.Now(),
	}
}

func (s *hubSink) TaskStarted(index int, task domain.Task) {
	ev := s.event(domain.PhaseStarted, index)
	ev.Task = task
	s.hub.Broadcast(ev)
}

func (s *hubSink) TaskResult(index int, task domain.Task, result domain.ProbeResult) {
	ev := s.event(domain.PhaseResult, index)
	ev.Task = task
	res := result
	ev.Result = &res
	s.hub.Broadcast(ev)
}

func (s *hubSink) RunStopped(lastIndex, total int) {
	ev := s.event(domain.PhaseStopped, lastIndex)
	ev.Total = total
	s.hub.Broadcast(ev)
}
