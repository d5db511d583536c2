// Package netx watches remote reachability. The sync engine treats the
// monitor's online/offline transitions as triggers: going online drains the
// pending change queue, going offline parks it.
package netx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tmorishita/penflow/internal/logging"
)

// TransitionFunc is invoked on every observed state change. online reports
// the new state.
type TransitionFunc func(ctx context.Context, online bool)

// Monitor probes a health endpoint on an interval and reports transitions.
// It starts in the offline state until the first successful probe.
type Monitor struct {
	endpoint string
	interval time.Duration
	client   *http.Client
	logger   logging.Logger

	mu       sync.Mutex
	online   bool
	onChange TransitionFunc

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(endpoint string, interval time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{
		endpoint: endpoint,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// OnTransition registers the callback fired on each state change. Must be
// called before Start.
func (m *Monitor) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start probes once synchronously, so callers read a settled state the
// moment Start returns, then re-probes on every interval tick until Stop
// or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.observe(ctx, m.Probe(ctx))

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.observe(ctx, m.Probe(ctx))
			}
		}
	}()
}

// Stop halts probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Probe performs one reachability check. Any 2xx–4xx response counts as
// reachable; the endpoint answering at all is the signal, not its status.
func (m *Monitor) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (m *Monitor) observe(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := online != m.online
	m.online = online
	fn := m.onChange
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.logger.Info(ctx, "connection restored", "endpoint", m.endpoint)
	} else {
		m.logger.Warn(ctx, "connection lost", "endpoint", m.endpoint)
	}
	if fn != nil {
		fn(ctx, online)
	}
}
