package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conncheck/agent/internal/domain"
)

func TestParseTasks(t *testing.T) {
	in := strings.NewReader(
		"Description,IP,Port\n" +
			"Primary DB, 10.1.2.3, 5432\n" +
			"Web frontend,app.internal,443\n")

	tasks, err := ParseTasks(in)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.Task{Description: "Primary DB", Host: "10.1.2.3", Port: 5432}, tasks[0])
	assert.Equal(t, domain.Task{Description: "Web frontend", Host: "app.internal", Port: 443}, tasks[1])
}

func TestParseTasksColumnOrderIndependent(t *testing.T) {
	in := strings.NewReader("Port,Description,IP\n22,ssh,10.0.0.9\n")

	tasks, err := ParseTasks(in)
	require.NoError(t, err)
	assert.Equal(t, domain.Task{Description: "ssh", Host: "10.0.0.9", Port: 22}, tasks[0])
}

func TestParseTasksErrors(t *testing.T) {
	cases := map[string]string{
		"empty file":     "",
		"missing column": "Description,Port\nweb,80\n",
		"bad port":       "Description,IP,Port\nweb,10.0.0.1,eighty\n",
		"port range":     "Description,IP,Port\nweb,10.0.0.1,70000\n",
		"empty host":     "Description,IP,Port\nweb, ,80\n",
		"no rows":        "Description,IP,Port\n",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTasks(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestCSVTaskSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ResourcesToCheck.csv")
	content := "Description,IP,Port\nDNS,1.1.1.1,53\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tasks, err := CSVTaskSource{Path: path}.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 53, tasks[0].Port)

	_, err = CSVTaskSource{Path: filepath.Join(dir, "missing.csv")}.Tasks()
	assert.Error(t, err)
}
