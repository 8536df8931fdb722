package remote

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/custodia-labs/newsreel-cli/internal/logger"
)

const (
	// probeInterval is how often the path monitor re-checks the network.
	probeInterval = 15 * time.Second

	// probeTimeout bounds one connectivity probe.
	probeTimeout = 3 * time.Second
)

// Monitor is an asynchronous network path monitor. It probes the API
// host in the background and answers IsReachable without blocking, so
// the scheduler can skip cycles instead of failing them.
type Monitor struct {
	addr     string
	interval time.Duration

	mu        sync.RWMutex
	reachable bool

	// probe is swappable for tests.
	probe func(ctx context.Context, addr string) bool
}

// NewMonitor creates a monitor for the API base URL.
// Until the first probe completes the network is assumed reachable.
func NewMonitor(baseURL string) *Monitor {
	return &Monitor{
		addr:      probeAddr(baseURL),
		interval:  probeInterval,
		reachable: true,
		probe:     dialProbe,
	}
}

// Start runs the probe loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// IsReachable is the non-blocking reachability query.
func (m *Monitor) IsReachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reachable
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	up := m.probe(probeCtx, m.addr)
	cancel()

	m.mu.Lock()
	changed := m.reachable != up
	m.reachable = up
	m.mu.Unlock()

	if changed {
		logger.Info("remote: network reachable=%v", up)
	}
}

// dialProbe attempts a TCP connection to the API host.
func dialProbe(ctx context.Context, addr string) bool {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// probeAddr derives host:port from the API base URL.
func probeAddr(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "http":
			host = net.JoinHostPort(u.Hostname(), "80")
		default:
			host = net.JoinHostPort(u.Hostname(), "443")
		}
	}
	return host
}
