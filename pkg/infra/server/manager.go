package server

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// Manager starts a set of servers together and stops them in reverse order.
type Manager struct {
	servers         []Runnable
	shutdownTimeout time.Duration
	mu              sync.Mutex
	started         bool
}

// NewManager creates a manager. A non-positive timeout uses DefaultShutdownTimeout.
func NewManager(shutdownTimeout time.Duration) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Manager{shutdownTimeout: shutdownTimeout}
}

// AddServer adds a server to the manager.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts all servers. On failure the servers already started are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	if len(m.servers) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("no servers configured")
	}
	m.started = true
	servers := append([]Runnable(nil), m.servers...)
	m.mu.Unlock()

	for i, s := range servers {
		if err := s.Start(ctx); err != nil {
			stopAll(ctx, servers[:i])
			return fmt.Errorf("failed to start server %s: %w", s.Name(), err)
		}
		logger.Infow("Server started", "name", s.Name())
	}
	return nil
}

// Stop stops all servers in reverse start order.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	servers := append([]Runnable(nil), m.servers...)
	m.mu.Unlock()

	return stopAll(ctx, servers)
}

func stopAll(ctx context.Context, servers []Runnable) error {
	var errs []error
	for i := len(servers) - 1; i >= 0; i-- {
		s := servers[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("Server stopped", "name", s.Name())
	}
	return utilerrors.NewAggregate(errs)
}

// Run starts all servers and blocks until ctx is cancelled or a server fails,
// then shuts everything down within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	return m.Wait(ctx)
}

// Wait blocks on started servers until ctx is cancelled or one of them fails,
// then stops all of them within the shutdown timeout.
func (m *Manager) Wait(ctx context.Context) error {
	runErr := m.wait(ctx)
	if runErr == nil {
		logger.Info("Server shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	return utilerrors.NewAggregate([]error{runErr, m.Stop(shutdownCtx)})
}

// wait returns nil on cancellation or the first serving error.
func (m *Manager) wait(ctx context.Context) error {
	cases := []reflect.SelectCase{{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())}}
	var names []string
	for _, s := range m.servers {
		if f, ok := s.(Failer); ok {
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(f.Err())})
			names = append(names, s.Name())
		}
	}

	chosen, v, ok := reflect.Select(cases)
	if chosen == 0 || !ok || v.IsNil() {
		return nil
	}
	err, _ := v.Interface().(error)
	logger.Errorw("Server failed", "name", names[chosen-1], "error", err)
	return fmt.Errorf("server %s: %w", names[chosen-1], err)
}
