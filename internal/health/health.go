// Package health runs liveness checks over the daemon's dependencies
// and aggregates them into a single report.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/jal-drishti/streamd/internal/logger"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents one health check result
type Check struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Report represents the overall health report
type Report struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    float64          `json:"uptime_seconds"`
	Checks    map[string]Check `json:"checks"`
}

// Checker is an interface for health checkers
type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// Registry holds the registered checkers
type Registry struct {
	logger    *logger.Logger
	startTime time.Time
	mu        sync.RWMutex
	checkers  []Checker
}

// NewRegistry creates an empty checker registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		logger:    log,
		startTime: time.Now(),
	}
}

// Register adds a checker
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, checker)
}

// Check runs all checkers and aggregates their results. The overall
// status is the worst individual one: any unhealthy check makes the
// report unhealthy, any degraded one makes it degraded.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make([]Checker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(r.startTime).Seconds(),
		Checks:    make(map[string]Check, len(checkers)),
	}

	for _, checker := range checkers {
		check := checker.Check(ctx)
		report.Checks[checker.Name()] = check

		switch check.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}

		if check.Status != StatusHealthy {
			r.logger.Warn("Health check not passing",
				"check", checker.Name(),
				"status", string(check.Status),
				"message", check.Message,
			)
		}
	}

	return report
}
