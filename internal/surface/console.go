package surface

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"conncheck/agent/internal/domain"
)

// ConsoleSink renders run progress as one line per task, colored the way the
// desktop tool colored its result rows: green for successful, red for
// unsuccessful, yellow for cancelled.
type ConsoleSink struct {
	mu       sync.Mutex
	w        io.Writer
	tasks    []domain.Task
	reported []bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
}

func NewConsoleSink(w io.Writer, tasks []domain.Task) *ConsoleSink {
	return &ConsoleSink{
		w:        w,
		tasks:    tasks,
		reported: make([]bool, len(tasks)),
		green:    color.New(color.FgGreen),
		red:      color.New(color.FgRed),
		yellow:   color.New(color.FgYellow),
	}
}

func (c *ConsoleSink) TaskStarted(int, domain.Task) {}

func (c *ConsoleSink) TaskResult(index int, task domain.Task, result domain.ProbeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index >= 0 && index < len(c.reported) {
		c.reported[index] = true
	}
	tint := c.green
	if !result.Success {
		tint = c.red
	}
	c.printRow(index, task, tint.Sprint(result.StatusText()))
}

func (c *ConsoleSink) RunStopped(_, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, done := range c.reported {
		if !done {
			c.printRow(i, c.tasks[i], c.yellow.Sprint("Cancelled"))
		}
	}
}

func (c *ConsoleSink) printRow(index int, task domain.Task, status string) {
	fmt.Fprintf(c.w, "%3d/%d  %-28s %-22s %s\n",
		index+1, len(c.tasks), task.Description, task.Addr(), status)
}
