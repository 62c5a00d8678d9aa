package domain

import "time"

// RunState is the lifecycle of a run. Transitions are one-way:
// running -> stopping (stop requested) -> stopped. Stopped is terminal; a run
// that completes every task goes straight from running to stopped.
type RunState string

const (
	RunStateRunning  RunState = "running"
	RunStateStopping RunState = "stopping"
	RunStateStopped  RunState = "stopped"
)

// EventPhase names the notification types a run emits.
type EventPhase string

const (
	PhaseStarted EventPhase = "started"
	PhaseResult  EventPhase = "result"
	PhaseStopped EventPhase = "stopped"
)

// TaskEvent is the wire form of a run notification, published to Kafka and
// streamed over websockets. For PhaseStopped, Index carries the index of the
// last dispatched task and Task/Result are zero.
type TaskEvent struct {
	RunID     string       `json:"run_id"`
	Key       string       `json:"key"`
	Phase     EventPhase   `json:"phase"`
	Index     int          `json:"index"`
	Task      Task         `json:"task,omitempty"`
	Result    *ProbeResult `json:"result,omitempty"`
	Total     int          `json:"total,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
