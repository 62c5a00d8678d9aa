package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"conncheck/agent/internal/domain"
)

// TaskSource supplies the ordered task list for a run. How the list is
// populated is the source's business; the run engine only consumes it.
type TaskSource interface {
	Tasks() ([]domain.Task, error)
}

// CSVTaskSource reads tasks from a CSV file with a header row of
// Description, IP, Port — the format the desktop tool used for its
// ResourcesToCheck.csv files. Row order is preserved.
type CSVTaskSource struct {
	Path string
}

func (s CSVTaskSource) Tasks() ([]domain.Task, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer f.Close()

	tasks, err := ParseTasks(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return tasks, nil
}

// ParseTasks decodes the CSV task format from r.
func ParseTasks(r io.Reader) ([]domain.Task, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("task file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var tasks []domain.Task
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		port, err := strconv.Atoi(strings.TrimSpace(record[cols.port]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid port %q", line, record[cols.port])
		}

		task := domain.Task{
			Description: strings.TrimSpace(record[cols.description]),
			Host:        strings.TrimSpace(record[cols.host]),
			Port:        port,
		}
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tasks = append(tasks, task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("task file has no rows")
	}
	return tasks, nil
}

type columnIndex struct {
	description, host, port int
}

func mapColumns(header []string) (columnIndex, error) {
	idx := columnIndex{description: -1, host: -1, port: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "description":
			idx.description = i
		case "ip", "host":
			idx.host = i
		case "port":
			idx.port = i
		}
	}
	if idx.description < 0 || idx.host < 0 || idx.port < 0 {
		return idx, fmt.Errorf("header must contain Description, IP and Port columns, got %v", header)
	}
	return idx, nil
}
