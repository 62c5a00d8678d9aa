package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conncheck/agent/internal/domain"
	"conncheck/agent/internal/repository/kafka"
)

// EventSink publishes run notifications and service logs to the outside
// world.
type EventSink interface {
	PublishEvent(ctx context.Context, event domain.TaskEvent) error
	PublishLog(ctx context.Context, entry domain.LogEntry) error
}

// KafkaEventSink writes task events to the results topic and log entries to
// the logs topic.
type KafkaEventSink struct {
	events *kafka.Producer
	logs   *kafka.Producer
	log    *slog.Logger
}

func NewKafkaEventSink(events, logs *kafka.Producer, log *slog.Logger) *KafkaEventSink {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaEventSink{events: events, logs: logs, log: log}
}

func (s *KafkaEventSink) PublishEvent(ctx context.Context, event domain.TaskEvent) error {
	key := fmt.Sprintf("%s-%d", event.RunID, event.Index)
	if err := s.events.PublishEvent(ctx, key, event); err != nil {
		return fmt.Errorf("failed to publish task event: %w", err)
	}
	s.log.Debug("published task event",
		"topic", s.events.Topic(), "run_id", event.RunID, "phase", event.Phase, "index", event.Index)
	return nil
}

func (s *KafkaEventSink) PublishLog(ctx context.Context, entry domain.LogEntry) error {
	key := fmt.Sprintf("%s-%d", entry.RunID, entry.Timestamp.UnixNano())
	if err := s.logs.PublishEvent(ctx, key, entry); err != nil {
		return fmt.Errorf("failed to publish log: %w", err)
	}
	return nil
}

// RunEventSink adapts a run's ordered sink callbacks onto an EventSink. Each
// notification is published synchronously from the dispatch goroutine, which
// preserves per-run ordering on the topic. Publish failures are logged and
// swallowed: infrastructure trouble degrades to lost telemetry, never to an
// aborted run.
type RunEventSink struct {
	RunID  string
	Key    string
	Events EventSink
	Log    *slog.Logger

	// PublishTimeout bounds each publish; zero means 5s.
	PublishTimeout time.Duration
}

func (s *RunEventSink) publish(event domain.TaskEvent) {
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	event.RunID = s.RunID
	event.Key = s.Key
	event.Timestamp = time.Now()

	if err := s.Events.PublishEvent(ctx, event); err != nil && s.Log != nil {
		s.Log.Error("failed to publish run event",
			"run_id", s.RunID, "phase", event.Phase, "index", event.Index, "error", err)
	}
}

func (s *RunEventSink) TaskStarted(index int, task domain.Task) {
	s.publish(domain.TaskEvent{Phase: domain.PhaseStarted, Index: index, Task: task})
}

func (s *RunEventSink) TaskResult(index int, task domain.Task, result domain.ProbeResult) {
	res := result
	s.publish(domain.TaskEvent{Phase: domain.PhaseResult, Index: index, Task: task, Result: &res})
}

func (s *RunEventSink) RunStopped(lastIndex, total int) {
	s.publish(domain.TaskEvent{Phase: domain.PhaseStopped, Index: lastIndex, Total: total})
}
