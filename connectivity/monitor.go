// Package connectivity provides reachability monitors for the sync engine.
// A monitor exposes a boolean reachability signal and notifies subscribers
// on transitions only.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/inventakit/go-opqueue/logging"
)

// ProbeMonitor determines reachability by periodically issuing an HTTP HEAD
// request against a health endpoint of the remote store.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *logging.Logger

	mu       sync.RWMutex
	online   bool
	handlers []func(bool)
	started  bool
	stop     chan struct{}
}

// ProbeConfig configures a ProbeMonitor.
type ProbeConfig struct {
	// URL of the health endpoint to probe
	URL string

	// Interval between probes. Defaults to 15 seconds.
	Interval time.Duration

	// Timeout for a single probe request. Defaults to 5 seconds.
	Timeout time.Duration
}

// NewProbeMonitor creates a monitor that starts offline until the first
// successful probe. Call Start to begin probing.
func NewProbeMonitor(config ProbeConfig) *ProbeMonitor {
	if config.Interval == 0 {
		config.Interval = 15 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &ProbeMonitor{
		url:      config.URL,
		interval: config.Interval,
		client:   &http.Client{Timeout: config.Timeout},
		logger:   logging.WithComponent(logging.Component("connectivity")),
		stop:     make(chan struct{}),
	}
}

// Start begins the probe loop. It probes once immediately, then at the
// configured interval until ctx is cancelled or Close is called.
func (m *ProbeMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		m.probe(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.probe(ctx)
			}
		}
	}()
}

func (m *ProbeMonitor) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		m.setOnline(false)
		return
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.setOnline(false)
		return
	}
	resp.Body.Close()

	m.setOnline(resp.StatusCode < http.StatusInternalServerError)
}

func (m *ProbeMonitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	handlers := make([]func(bool), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	m.logger.Info("reachability changed", slog.Bool("online", online))
	for _, h := range handlers {
		h(online)
	}
}

// IsReachable reports the result of the most recent probe.
func (m *ProbeMonitor) IsReachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers a handler invoked on every reachability transition.
func (m *ProbeMonitor) Subscribe(handler func(reachable bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// Close stops the probe loop.
func (m *ProbeMonitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		select {
		case <-m.stop:
		default:
			close(m.stop)
		}
	}
	return nil
}

// ManualMonitor is a reachability signal driven by explicit SetReachable
// calls, for tests and tooling that runs without a network.
type ManualMonitor struct {
	mu       sync.RWMutex
	online   bool
	handlers []func(bool)
}

// NewManualMonitor creates a ManualMonitor in the given initial state.
func NewManualMonitor(online bool) *ManualMonitor {
	return &ManualMonitor{online: online}
}

// IsReachable reports the current state.
func (m *ManualMonitor) IsReachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers a transition handler.
func (m *ManualMonitor) Subscribe(handler func(reachable bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// SetReachable flips the signal; handlers run only on actual transitions.
func (m *ManualMonitor) SetReachable(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	handlers := make([]func(bool), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		h(online)
	}
}
