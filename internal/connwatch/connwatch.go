// Package connwatch tracks whether AXIOM's backends (Home Assistant,
// the model server, the MQTT broker) are reachable.
//
// Each watched backend is probed in a loop. While it is down the delay
// between probes doubles from Backoff.Initial up to Backoff.Max; once it
// answers, probing relaxes to Backoff.Poll. Transitions are logged and
// exported as the axiom_backend_up gauge.
package connwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Brent1981/AIProject/internal/metrics"
)

// Probe reports nil when the backend is healthy.
type Probe func(ctx context.Context) error

// Backoff controls probe timing.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Poll    time.Duration
	Timeout time.Duration
}

// DefaultBackoff retries at 2s, 4s, 8s ... up to a minute while a
// backend is down and checks a healthy one every 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 2 * time.Second,
		Max:     60 * time.Second,
		Poll:    30 * time.Second,
		Timeout: 10 * time.Second,
	}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max < b.Initial {
		b.Max = max(d.Max, b.Initial)
	}
	if b.Poll <= 0 {
		b.Poll = d.Poll
	}
	if b.Timeout <= 0 {
		b.Timeout = d.Timeout
	}
	return b
}

// Status is a backend's health as served by GET /api/status.
type Status struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

type watcher struct {
	name    string
	probe   Probe
	backoff Backoff

	mu     sync.Mutex
	status Status
}

func (w *watcher) snapshot() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// record stores a probe result and reports whether readiness changed.
func (w *watcher) record(err error, at time.Time) (changed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ready := err == nil
	changed = ready != w.status.Ready || w.status.LastCheck.IsZero()
	w.status.Ready = ready
	w.status.LastCheck = at
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
	return changed
}

// Manager runs one watcher goroutine per backend.
type Manager struct {
	mu       sync.RWMutex
	watchers []*watcher
	wg       sync.WaitGroup
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{metrics: m, logger: logger.With("component", "connwatch")}
}

// Watch starts probing a backend until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, name string, probe Probe, b Backoff) {
	w := &watcher{name: name, probe: probe, backoff: b.withDefaults()}
	w.status.Name = name

	m.mu.Lock()
	m.watchers = append(m.watchers, w)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, w)
	}()
}

// Status returns every backend's health in registration order.
func (m *Manager) Status() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.watchers))
	for _, w := range m.watchers {
		out = append(out, w.snapshot())
	}
	return out
}

// Wait blocks until every watcher has stopped.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) run(ctx context.Context, w *watcher) {
	delay := w.backoff.Initial
	for {
		err := m.check(ctx, w)
		if ctx.Err() != nil {
			return
		}

		next := w.backoff.Poll
		if err != nil {
			next = delay
			delay = min(delay*2, w.backoff.Max)
		} else {
			delay = w.backoff.Initial
		}

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Manager) check(ctx context.Context, w *watcher) error {
	probeCtx, cancel := context.WithTimeout(ctx, w.backoff.Timeout)
	err := w.probe(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.metrics.ServiceUp(w.name, err == nil)
	if !w.record(err, time.Now()) {
		if err != nil {
			m.logger.Debug("backend still unreachable", "backend", w.name, "error", err)
		}
		return err
	}
	if err != nil {
		m.logger.Warn("backend unreachable", "backend", w.name, "error", err)
	} else {
		m.logger.Info("backend reachable", "backend", w.name)
	}
	return err
}
