package netinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultPublicIPURL returns the caller's address as a bare string.
	DefaultPublicIPURL = "https://api.ipify.org"

	defaultResolveTimeout = 5 * time.Second
	maxBodyBytes          = 256
)

// PublicIPResolver asks an external service for the externally visible
// address, optionally as seen from a specific local interface.
type PublicIPResolver struct {
	url     string
	timeout time.Duration
}

func NewPublicIPResolver(url string, timeout time.Duration) *PublicIPResolver {
	if strings.TrimSpace(url) == "" {
		url = DefaultPublicIPURL
	}
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &PublicIPResolver{url: url, timeout: timeout}
}

// Resolve returns the public IP seen from localIP. An empty localIP lets the
// OS choose the outbound interface. Failures are plain errors; callers treat
// them as "unknown".
func (r *PublicIPResolver) Resolve(ctx context.Context, localIP string) (string, error) {
	dialer := &net.Dialer{Timeout: r.timeout}
	if localIP != "" {
		ip := net.ParseIP(localIP)
		if ip == nil {
			return "", fmt.Errorf("invalid local IP %q", localIP)
		}
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}

	client := &http.Client{
		Timeout: r.timeout,
		Transport: &http.Transport{
			DialContext:       dialer.DialContext,
			DisableKeepAlives: true,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("create public IP request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve public IP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public IP service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read public IP response: %w", err)
	}

	addr := strings.TrimSpace(string(body))
	if net.ParseIP(addr) == nil {
		return "", errors.New("public IP service returned a non-address body")
	}
	return addr, nil
}
