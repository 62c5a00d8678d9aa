package domain

import "fmt"

// ErrorKind classifies a failed probe.
type ErrorKind string

const (
	ErrorNone    ErrorKind = "none"
	ErrorTimeout ErrorKind = "timeout"
	ErrorRefused ErrorKind = "refused"
	ErrorOther   ErrorKind = "other"
)

// Canonical detail strings for the two OS-signalled failure modes.
const (
	DetailTimeout = "Connection timed out"
	DetailRefused = "Connection refused by remote host"
)

// ProbeResult is the outcome of a single TCP connect attempt. Exactly one of
// the two shapes holds: Success=true with ElapsedMs set, or Success=false
// with ErrorKind != ErrorNone and Error describing the fault. ElapsedMs is
// meaningless on failure.
type ProbeResult struct {
	Success   bool      `json:"success"`
	ElapsedMs int64     `json:"elapsed_ms"`
	ErrorKind ErrorKind `json:"error_kind"`
	Error     string    `json:"error,omitempty"`
}

// StatusText is the single canonical outcome-to-display mapping used by every
// surface (console, table, HTTP).
func (r ProbeResult) StatusText() string {
	if r.Success {
		return fmt.Sprintf("SUCCESSFUL (%d ms)", r.ElapsedMs)
	}
	if r.Error != "" {
		return r.Error
	}
	return "UNSUCCESSFUL"
}
