// Package health provides connectivity monitoring of the bucket and the
// optional database.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status represents the current health status.
type Status string

const (
	// StatusHealthy indicates the service is functioning normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the service is experiencing issues.
	StatusUnhealthy Status = "unhealthy"
	// StatusUnknown indicates the health status hasn't been determined yet.
	StatusUnknown Status = "unknown"
)

const (
	defaultCheckInterval = 30 * time.Second
	pingTimeout          = 5 * time.Second
)

// Pinger checks one dependency. *s3svc.Service and *dbsvc.Service implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor tracks the connectivity of one dependency.
type Monitor struct {
	mu                  sync.RWMutex
	name                string
	target              Pinger
	status              Status
	lastCheck           time.Time
	lastError           error
	consecutiveFailures int
	logger              *slog.Logger
	checkInterval       time.Duration
	cancel              context.CancelFunc
}

// Info contains current health information.
type Info struct {
	Name                string    `json:"name"`
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Report is the health of every monitored dependency.
type Report struct {
	Status     Status `json:"status"`
	Components []Info `json:"components"`
}

// NewMonitor creates a health monitor for target.
func NewMonitor(name string, target Pinger, logger *slog.Logger) *Monitor {
	return &Monitor{
		name:          name,
		target:        target,
		status:        StatusUnknown,
		logger:        logger,
		checkInterval: defaultCheckInterval,
	}
}

// SetInterval changes the delay between two checks. Call it before Start.
func (m *Monitor) SetInterval(d time.Duration) {
	m.checkInterval = d
}

// Start begins health monitoring in the background.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.Check(ctx)
	go m.healthCheckLoop(ctx)
}

// Stop stops the health monitoring.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Info returns current health information.
func (m *Monitor) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errorMsg := ""
	if m.lastError != nil {
		errorMsg = m.lastError.Error()
	}

	return Info{
		Name:                m.name,
		Status:              m.status,
		LastCheck:           m.lastCheck,
		LastError:           errorMsg,
		ConsecutiveFailures: m.consecutiveFailures,
	}
}

// IsHealthy returns true if the dependency is currently healthy.
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status == StatusHealthy
}

func (m *Monitor) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check pings the dependency once and updates the status.
func (m *Monitor) Check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var err error
	if m.target != nil {
		err = m.target.Ping(pingCtx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCheck = time.Now()

	if m.target == nil || err != nil {
		m.status = StatusUnhealthy
		m.lastError = err
		m.consecutiveFailures++
		if err != nil {
			m.logger.Debug("Health check failed",
				slog.String("component", m.name),
				slog.String("error", err.Error()),
				slog.Int("consecutive_failures", m.consecutiveFailures))
		}
		return
	}

	wasUnhealthy := m.status == StatusUnhealthy
	m.status = StatusHealthy
	m.lastError = nil
	m.consecutiveFailures = 0
	if wasUnhealthy {
		m.logger.Info("Health restored", slog.String("component", m.name))
	}
}

// NewReport combines monitors. The report is healthy only when every
// component is, and unknown while any has not been checked yet.
func NewReport(monitors ...*Monitor) Report {
	r := Report{Status: StatusHealthy, Components: make([]Info, 0, len(monitors))}
	for _, m := range monitors {
		info := m.Info()
		r.Components = append(r.Components, info)
		switch info.Status {
		case StatusUnhealthy:
			r.Status = StatusUnhealthy
		case StatusUnknown:
			if r.Status == StatusHealthy {
				r.Status = StatusUnknown
			}
		}
	}
	return r
}
