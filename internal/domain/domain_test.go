package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskValidate(t *testing.T) {
	assert.NoError(t, Task{Description: "web", Host: "10.0.0.1", Port: 443}.Validate())
	assert.Error(t, Task{Host: "", Port: 443}.Validate())
	assert.Error(t, Task{Host: "   ", Port: 443}.Validate())
	assert.Error(t, Task{Host: "h", Port: 0}.Validate())
	assert.Error(t, Task{Host: "h", Port: -1}.Validate())
	assert.Error(t, Task{Host: "h", Port: 65536}.Validate())
	assert.NoError(t, Task{Host: "h", Port: 65535}.Validate())
}

func TestTaskAddr(t *testing.T) {
	assert.Equal(t, "10.0.0.1:443", Task{Host: "10.0.0.1", Port: 443}.Addr())
}

func TestRunRequestValidate(t *testing.T) {
	ok := RunRequest{
		ID:    "r1",
		Key:   "k",
		Tasks: []Task{{Description: "d", Host: "h", Port: 80}},
	}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Key = " "
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Tasks = nil
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Tasks = []Task{{Host: "h", Port: 0}}
	assert.Error(t, bad.Validate())
}

func TestProbeResultStatusText(t *testing.T) {
	assert.Equal(t, "SUCCESSFUL (42 ms)",
		ProbeResult{Success: true, ElapsedMs: 42}.StatusText())
	assert.Equal(t, DetailTimeout,
		ProbeResult{ErrorKind: ErrorTimeout, Error: DetailTimeout}.StatusText())
	assert.Equal(t, DetailRefused,
		ProbeResult{ErrorKind: ErrorRefused, Error: DetailRefused}.StatusText())
	assert.Equal(t, "UNSUCCESSFUL",
		ProbeResult{ErrorKind: ErrorOther}.StatusText())
}
