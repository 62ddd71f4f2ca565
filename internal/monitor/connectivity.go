package monitor

import (
	"net"
	"strings"
	"time"
)

// ConnectivityChecker reports whether the device currently has network
// access. A cycle that starts offline is skipped entirely.
type ConnectivityChecker interface {
	Online() bool
}

// DialChecker checks connectivity with a short TCP dial to a well-known
// DNS endpoint.
type DialChecker struct {
	target  string
	timeout time.Duration
}

// NewDialChecker configures a connectivity checker against the given
// "host:port" target.
func NewDialChecker(target string, timeout time.Duration) *DialChecker {
	target = strings.TrimSpace(target)
	if target == "" {
		target = "1.1.1.1"
	}
	if !strings.Contains(target, ":") {
		target = net.JoinHostPort(target, "53")
	}
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &DialChecker{target: target, timeout: timeout}
}

// Online dials the configured endpoint and reports reachability.
func (c *DialChecker) Online() bool {
	conn, err := net.DialTimeout("tcp", c.target, c.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
