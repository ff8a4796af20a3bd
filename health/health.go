// Package health aggregates component liveness checks for the
// gateway's health endpoint.
package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// checkTimeout bounds a single component check so one slow dependency
// cannot stall the whole probe.
const checkTimeout = 2 * time.Second

// Check probes one dependency. A nil return means healthy.
type Check func(ctx context.Context) error

// Report is the aggregate health snapshot.
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checkedAt"`
}

// Monitor runs registered checks on demand.
type Monitor struct {
	logger *slog.Logger

	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor returns an empty monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger.With("component", "health"),
		checks: make(map[string]Check),
	}
}

// Register adds a named check, replacing any previous one.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Report runs all checks and aggregates the result. Components report
// "ok" or their failure message; overall health requires every check
// to pass.
func (m *Monitor) Report(ctx context.Context) Report {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	report := Report{
		Healthy:    true,
		Components: make(map[string]string, len(names)),
		CheckedAt:  time.Now().UTC(),
	}

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checks[name](checkCtx)
		cancel()
		if err != nil {
			report.Healthy = false
			report.Components[name] = err.Error()
			m.logger.Warn("health check failed", "check", name, "error", err)
			continue
		}
		report.Components[name] = "ok"
	}
	return report
}
