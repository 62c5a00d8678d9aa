// Package surface holds result surfaces: consumers of run notifications that
// present every task's progress. A surface guarantees each task reaches a
// terminal visible state; nothing is left silently unresolved.
package surface

import (
	"sync"

	"conncheck/agent/internal/domain"
)

// TaskStatus is the visible lifecycle of one task on a surface.
type TaskStatus string

const (
	StatusNotTested    TaskStatus = "not_tested"
	StatusTesting      TaskStatus = "testing"
	StatusSuccessful   TaskStatus = "successful"
	StatusUnsuccessful TaskStatus = "unsuccessful"
	StatusCancelled    TaskStatus = "cancelled"
)

// Row is one task's current presentation.
type Row struct {
	Task   domain.Task         `json:"task"`
	Status TaskStatus          `json:"status"`
	Detail string              `json:"detail"`
	Result *domain.ProbeResult `json:"result,omitempty"`
}

// Table is the per-run read model behind GET /runs/:key and the batch CLI's
// exit code. It implements run.Sink; readers take snapshots, never the rows
// themselves.
type Table struct {
	mu      sync.RWMutex
	rows    []Row
	stopped bool
}

// NewTable preloads one "Not tested" row per task, in task order.
func NewTable(tasks []domain.Task) *Table {
	rows := make([]Row, len(tasks))
	for i, t := range tasks {
		rows[i] = Row{Task: t, Status: StatusNotTested, Detail: "Not tested"}
	}
	return &Table{rows: rows}
}

func (t *Table) TaskStarted(index int, _ domain.Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.rows) {
		return
	}
	t.rows[index].Status = StatusTesting
	t.rows[index].Detail = "Testing"
}

func (t *Table) TaskResult(index int, _ domain.Task, result domain.ProbeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.rows) {
		return
	}
	res := result
	t.rows[index].Result = &res
	t.rows[index].Detail = res.StatusText()
	if res.Success {
		t.rows[index].Status = StatusSuccessful
	} else {
		t.rows[index].Status = StatusUnsuccessful
	}
}

// RunStopped marks every row that never reached a result as cancelled. That
// covers tasks never dispatched and the one whose probe the stop overtook.
func (t *Table) RunStopped(_, _ int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for i := range t.rows {
		switch t.rows[i].Status {
		case StatusNotTested, StatusTesting:
			t.rows[i].Status = StatusCancelled
			t.rows[i].Detail = "Cancelled"
		}
	}
}

// Snapshot returns a defensive copy safe for concurrent use.
func (t *Table) Snapshot() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	for i := range out {
		if out[i].Result != nil {
			res := *out[i].Result
			out[i].Result = &res
		}
	}
	return out
}

// Stopped reports whether the run behind this table reached its terminal
// state.
func (t *Table) Stopped() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stopped
}

// Summary counts rows per terminal bucket.
type Summary struct {
	Successful   int `json:"successful"`
	Unsuccessful int `json:"unsuccessful"`
	Cancelled    int `json:"cancelled"`
	Pending      int `json:"pending"`
}

func (t *Table) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var s Summary
	for _, r := range t.rows {
		switch r.Status {
		case StatusSuccessful:
			s.Successful++
		case StatusUnsuccessful:
			s.Unsuccessful++
		case StatusCancelled:
			s.Cancelled++
		default:
			s.Pending++
		}
	}
	return s
}

// AllSucceeded reports whether every task completed with a successful probe.
func (t *Table) AllSucceeded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.rows {
		if r.Status != StatusSuccessful {
			return false
		}
	}
	return len(t.rows) > 0
}
