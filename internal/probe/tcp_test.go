package probe

import (
	"context"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conncheck/agent/internal/domain"
)

// listen opens a real listener on an ephemeral port and returns its port.
func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	port := ln.Addr().(*net.TCPAddr).Port
	return ln, port
}

// closedPort reserves an ephemeral port and releases it, so a connect attempt
// gets an active refusal.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestTCPSuccess(t *testing.T) {
	_, port := listen(t)

	res := TCP(context.Background(), "127.0.0.1", port, Options{})

	assert.True(t, res.Success)
	assert.Equal(t, domain.ErrorNone, res.ErrorKind)
	assert.Empty(t, res.Error)
	assert.GreaterOrEqual(t, res.ElapsedMs, int64(0))
	assert.LessOrEqual(t, res.ElapsedMs, DefaultTimeout.Milliseconds())
}

func TestTCPRefused(t *testing.T) {
	port := closedPort(t)

	res := TCP(context.Background(), "127.0.0.1", port, Options{})

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorRefused, res.ErrorKind)
	assert.Equal(t, domain.DetailRefused, res.Error)
}

func TestTCPWithSourceIP(t *testing.T) {
	_, port := listen(t)

	res := TCP(context.Background(), "127.0.0.1", port, Options{SourceIP: "127.0.0.1"})

	assert.True(t, res.Success)
}

func TestTCPInvalidSourceIP(t *testing.T) {
	_, port := listen(t)

	res := TCP(context.Background(), "127.0.0.1", port, Options{SourceIP: "not-an-ip"})

	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorOther, res.ErrorKind)
	assert.Contains(t, res.Error, "not-an-ip")
}

func TestTCPTimeoutRespected(t *testing.T) {
	// A listener with a saturated backlog is not portable, so exercise the
	// timeout against a non-routed address and accept that some networks
	// report unreachable instead. Either way the deadline must hold.
	const timeout = 250 * time.Millisecond

	start := time.Now()
	res := TCP(context.Background(), "10.255.255.1", 81, Options{Timeout: timeout})
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.NotEqual(t, domain.ErrorNone, res.ErrorKind)
	assert.Less(t, elapsed, timeout+time.Second)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   domain.ErrorKind
		detail string
	}{
		{
			name:   "deadline exceeded",
			err:    os.ErrDeadlineExceeded,
			kind:   domain.ErrorTimeout,
			detail: domain.DetailTimeout,
		},
		{
			name:   "context deadline",
			err:    context.DeadlineExceeded,
			kind:   domain.ErrorTimeout,
			detail: domain.DetailTimeout,
		},
		{
			name: "dial timeout",
			err: &net.OpError{Op: "dial", Net: "tcp",
				Err: os.ErrDeadlineExceeded},
			kind:   domain.ErrorTimeout,
			detail: domain.DetailTimeout,
		},
		{
			name: "refused",
			err: &net.OpError{Op: "dial", Net: "tcp",
				Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}},
			kind:   domain.ErrorRefused,
			detail: domain.DetailRefused,
		},
		{
			name: "unreachable",
			err: &net.OpError{Op: "dial", Net: "tcp",
				Err: &os.SyscallError{Syscall: "connect", Err: syscall.ENETUNREACH}},
			kind: domain.ErrorOther,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := classify(tc.err)
			assert.False(t, res.Success)
			assert.Equal(t, tc.kind, res.ErrorKind)
			if tc.detail != "" {
				assert.Equal(t, tc.detail, res.Error)
			} else {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestTCPClosesConnection(t *testing.T) {
	ln, port := listen(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// The probe closes its side right after connecting, so the read
		// unblocks with EOF rather than hanging.
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
	}()

	res := TCP(context.Background(), "127.0.0.1", port, Options{})
	require.True(t, res.Success)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("probe left its connection open")
	}
}
