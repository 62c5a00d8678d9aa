package run

import "conncheck/agent/internal/domain"

// Sink receives run notifications. For a single run the calls are strictly
// ordered: TaskStarted(i) and TaskResult(i) are fully delivered, in that
// order, before TaskStarted(i+1), and RunStopped is always the final call.
// A run that is stopped mid-flight never delivers TaskResult for the task
// whose probe the stop overtook.
//
// Implementations are called from the run's dispatch goroutine and must not
// block for long; slow consumers should hand off internally.
type Sink interface {
	TaskStarted(index int, task domain.Task)
	TaskResult(index int, task domain.Task, result domain.ProbeResult)

	// RunStopped reports the transition to the stopped state. lastIndex is
	// the index of the last dispatched task (== total when the run completed
	// every task); tasks beyond it were never dispatched and should be
	// presented as cancelled.
	RunStopped(lastIndex, total int)
}

// MultiSink fans every notification out to each sink in order, so one run can
// feed a table, Kafka and a websocket stream at once.
type MultiSink []Sink

func (m MultiSink) TaskStarted(index int, task domain.Task) {
	for _, s := range m {
		s.TaskStarted(index, task)
	}
}

func (m MultiSink) TaskResult(index int, task domain.Task, result domain.ProbeResult) {
	for _, s := range m {
		s.TaskResult(index, task, result)
	}
}

func (m MultiSink) RunStopped(lastIndex, total int) {
	for _, s := range m {
		s.RunStopped(lastIndex, total)
	}
}

// NopSink discards everything. Useful when a caller only cares about the
// handle's terminal state.
type NopSink struct{}

func (NopSink) TaskStarted(int, domain.Task)                    {}
func (NopSink) TaskResult(int, domain.Task, domain.ProbeResult) {}
func (NopSink) RunStopped(int, int)                             {}
