package domain

import (
	"fmt"
	"strings"
	"time"
)

// Task is one unit of work within a run: a single (host, port) destination
// with a human-readable description. Tasks are created when a run starts and
// never mutated afterwards.
type Task struct {
	Description string `json:"description"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return fmt.Errorf("task %q: host is required", t.Description)
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("task %q: port %d out of range 1-65535", t.Description, t.Port)
	}
	return nil
}

// Addr returns the dialable "host:port" form.
func (t Task) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// RunRequest is the wire form of a run request, consumed from Kafka or the
// HTTP API. Key identifies the result surface the run belongs to; at most one
// run per key is ever active.
type RunRequest struct {
	ID        string    `json:"request_id"`
	Key       string    `json:"key"`
	Tasks     []Task    `json:"tasks"`
	SourceIP  string    `json:"source_ip,omitempty"`
	DelayMs   int       `json:"delay_ms"`
	TimeoutMs int       `json:"timeout_ms,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("run request %s: key is required", r.ID)
	}
	if len(r.Tasks) == 0 {
		return fmt.Errorf("run request %s: no tasks", r.ID)
	}
	for _, t := range r.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("run request %s: %w", r.ID, err)
		}
	}
	return nil
}
