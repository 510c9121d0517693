// Package shutdown coordinates signal-driven shutdown: it cancels a shared
// context and releases registered resources in reverse order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"singletask/internal/utils"
)

// CleanupFunc releases one resource. ctx bounds how long it may take.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	shutdown bool
	signals  chan os.Signal

	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	cleanupOnce  sync.Once
	cleanupDone  chan struct{}
	cleanupErr   error
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

// Listen triggers Shutdown on the first SIGINT or SIGTERM (or the given
// signals). Call StopListening to restore default signal handling.
func (m *Manager) Listen(sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	m.mu.Lock()
	if m.signals != nil {
		m.mu.Unlock()
		return
	}
	ch := make(chan os.Signal, 1)
	m.signals = ch
	m.mu.Unlock()

	signal.Notify(ch, sigs...)
	go func() {
		select {
		case sig, ok := <-ch:
			if ok {
				utils.Debugf("received %s, shutting down", sig)
				m.Shutdown()
			}
		case <-m.ctx.Done():
		}
	}()
}

// StopListening stops signal delivery to the manager.
func (m *Manager) StopListening() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signals != nil {
		signal.Stop(m.signals)
	}
}

// RegisterCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first called).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown marks the manager as shutting down and cancels Context.
// Safe to call multiple times.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()
		m.cancel()
	})
}

// Wait runs the registered cleanups once and returns their joined errors,
// or ctx.Err() if ctx ends first. Later calls wait for the same run.
func (m *Manager) Wait(ctx context.Context) error {
	m.cleanupOnce.Do(func() {
		go func() {
			m.cleanupErr = m.runCleanups(ctx)
			close(m.cleanupDone)
		}()
	})

	select {
	case <-m.cleanupDone:
		return m.cleanupErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) runCleanups(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i].fn(ctx); err != nil {
			utils.Warnf("cleanup %s failed: %v", cleanups[i].name, err)
			errs = append(errs, fmt.Errorf("%s: %w", cleanups[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context returns a context that is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}
