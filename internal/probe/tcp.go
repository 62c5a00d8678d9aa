// Package probe implements the single TCP connect attempt at the bottom of
// every connectivity run. A probe is stateless: same inputs and same network
// reachability give the same outcome, and nothing is cached between calls.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"conncheck/agent/internal/domain"
)

// DefaultTimeout bounds a connect attempt when the caller does not set one.
const DefaultTimeout = 2 * time.Second

// Options controls a single probe execution.
type Options struct {
	// Timeout is the hard deadline for the connect attempt.
	// Zero or negative means DefaultTimeout.
	Timeout time.Duration

	// SourceIP, when non-empty, binds the local endpoint to (SourceIP, 0)
	// before connecting, so the attempt originates from a specific local
	// interface. Empty means the OS chooses.
	SourceIP string
}

// TCP attempts one TCP connection to (host, port) and classifies the outcome.
// Errors never escape: every failure mode is folded into the returned
// ProbeResult. The connection, if established, is closed before returning.
func TCP(ctx context.Context, host string, port int, opts Options) domain.ProbeResult {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}
	if opts.SourceIP != "" {
		ip := net.ParseIP(opts.SourceIP)
		if ip == nil {
			return failure(domain.ErrorOther, fmt.Sprintf("invalid source IP %q", opts.SourceIP))
		}
		// Port 0 keeps the local port ephemeral; only the interface is pinned.
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(start)

	if err != nil {
		return classify(err)
	}
	_ = conn.Close()

	return domain.ProbeResult{
		Success:   true,
		ElapsedMs: elapsed.Milliseconds(),
		ErrorKind: domain.ErrorNone,
	}
}

// classify maps a dial error onto the probe error taxonomy. Refusal is
// checked before timeout: a RST that arrives close to the deadline still
// counts as refused.
func classify(err error) domain.ProbeResult {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return failure(domain.ErrorRefused, domain.DetailRefused)
	case isTimeout(err):
		return failure(domain.ErrorTimeout, domain.DetailTimeout)
	default:
		return failure(domain.ErrorOther, err.Error())
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func failure(kind domain.ErrorKind, detail string) domain.ProbeResult {
	return domain.ProbeResult{Success: false, ErrorKind: kind, Error: detail}
}
