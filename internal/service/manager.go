// Package service provides lifecycle management for the long-running
// parts of the daemon.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jal-drishti/streamd/internal/logger"
)

// Service represents a component that can be started and stopped
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// Manager starts registered services in order and stops them in reverse
type Manager struct {
	logger      *logger.Logger
	services    []Service
	stopTimeout time.Duration
	mu          sync.Mutex
	started     []Service
}

// NewManager creates a service manager. stopTimeout bounds each
// service's Stop call during shutdown.
func NewManager(log *logger.Logger, stopTimeout time.Duration) *Manager {
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}
	return &Manager{
		logger:      log,
		stopTimeout: stopTimeout,
	}
}

// Register adds a service. Registration order is start order.
func (m *Manager) Register(svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, svc)
}

// Start starts all registered services in registration order. On the
// first failure, already-started services are stopped and the error is
// returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting services", "count", len(m.services))

	for _, svc := range m.services {
		m.logger.Debug("Starting service", "service", svc.Name())
		if err := svc.Start(ctx); err != nil {
			m.logger.Error("Failed to start service", "service", svc.Name(), "error", err)
			m.stopStarted()
			return fmt.Errorf("failed to start %s: %w", svc.Name(), err)
		}
		m.started = append(m.started, svc)
	}

	m.logger.Info("All services started")
	return nil
}

// Stop stops all started services in reverse order. Every service gets
// its Stop call even when earlier ones fail; the first error is
// returned.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopStarted()
}

func (m *Manager) stopStarted() error {
	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		svc := m.started[i]
		ctx, cancel := context.WithTimeout(context.Background(), m.stopTimeout)
		m.logger.Debug("Stopping service", "service", svc.Name())
		if err := svc.Stop(ctx); err != nil {
			m.logger.Error("Failed to stop service", "service", svc.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to stop %s: %w", svc.Name(), err)
			}
		}
		cancel()
	}
	m.started = nil
	return firstErr
}
