// Package shutdown tears a running topology down when the process is
// signalled.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/log"
)

// ErrTimeout is returned when the run loop does not finish within the timeout.
var ErrTimeout = errors.New("shutdown timeout exceeded")

type cleanup struct {
	name string
	fn   func(ctx context.Context) error
}

// Manager handles graceful shutdown of the application
type Manager struct {
	timeout  time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
	errChan  chan error
	exit     func(code int)

	mu         sync.Mutex
	started    bool
	stopOnce   sync.Once
	cleanups   []cleanup
	signalChan chan os.Signal
	quitChan   chan os.Signal

	shutdownOnce sync.Once
	shutdownErr  error
}

// Config contains configuration for the shutdown manager
type Config struct {
	// Timeout bounds the whole graceful shutdown.
	Timeout time.Duration
	// StopChan is closed when shutdown begins. Required.
	StopChan chan struct{}
	// DoneChan, when set, is closed by the caller once its run loop returned.
	DoneChan chan struct{}
	// ErrChan receives the shutdown error of a signal-triggered shutdown.
	ErrChan chan error
	// Exit terminates the process on SIGQUIT. Defaults to os.Exit.
	Exit func(code int)
}

// New creates a new shutdown manager
func New(cfg Config) *Manager {
	exit := cfg.Exit
	if exit == nil {
		exit = os.Exit
	}
	return &Manager{
		timeout:    cfg.Timeout,
		stopChan:   cfg.StopChan,
		doneChan:   cfg.DoneChan,
		errChan:    cfg.ErrChan,
		exit:       exit,
		signalChan: make(chan os.Signal, 1),
		quitChan:   make(chan os.Signal, 1),
	}
}

// RegisterCleanup registers a cleanup function. Cleanups run in reverse
// registration order, so a registry registered after its broker is stopped
// before it.
func (m *Manager) RegisterCleanup(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanup{name: name, fn: fn})
}

// Start begins listening for shutdown signals
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("shutdown manager already started")
	}
	m.started = true
	m.mu.Unlock()

	// SIGTERM and SIGINT: graceful shutdown
	signal.Notify(m.signalChan, syscall.SIGTERM, syscall.SIGINT)

	// SIGQUIT: immediate shutdown, containers are left to the reaper
	signal.Notify(m.quitChan, syscall.SIGQUIT)

	go m.handleSignals()

	return nil
}

// handleSignals processes incoming signals
func (m *Manager) handleSignals() {
	select {
	case s := <-m.signalChan:
		log.Info("Received signal %v, initiating graceful shutdown (timeout: %v)", s, m.timeout)
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		if err := m.Shutdown(ctx); err != nil {
			log.Error("Shutdown error: %v", err)
			if m.errChan != nil {
				select {
				case m.errChan <- err:
				default:
				}
			}
		}

	case s := <-m.quitChan:
		log.Warning("Received signal %v, forcing immediate shutdown", s)
		m.forceShutdown()
	}
}

func (m *Manager) closeStop() {
	m.stopOnce.Do(func() {
		if m.stopChan == nil {
			return
		}
		select {
		case <-m.stopChan:
			// Already closed
		default:
			close(m.stopChan)
		}
	})
}

// Shutdown stops the run loop and then runs every cleanup, even when an
// earlier one fails. Cleanup errors are joined. Only the first call does the
// work; later calls block until it finished and return its result.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.shutdown(ctx)
	})
	return m.shutdownErr
}

func (m *Manager) shutdown(ctx context.Context) error {
	log.Info("=== Graceful Shutdown Initiated ===")
	log.Info("Step 1/3: Stopping run loop")
	m.closeStop()

	if m.doneChan != nil {
		log.Info("Step 2/3: Waiting for run loop (timeout: %v)", m.timeout)
		select {
		case <-m.doneChan:
			log.Info("Run loop finished")
		case <-ctx.Done():
			log.Warning("Shutdown timeout exceeded after %v, forcing termination", m.timeout)
			return ErrTimeout
		}
	}

	log.Info("Step 3/3: Tearing down containers")
	if err := m.executeCleanup(ctx); err != nil {
		log.Error("Cleanup failed: %v", err)
		return err
	}

	log.Info("=== Graceful Shutdown Complete ===")
	return nil
}

// forceShutdown immediately shuts down without waiting
func (m *Manager) forceShutdown() {
	log.Warning("=== Forced Immediate Shutdown ===")
	m.closeStop()
	m.exit(1)
}

// executeCleanup runs all registered cleanup functions, newest first
func (m *Manager) executeCleanup(ctx context.Context) error {
	m.mu.Lock()
	funcs := make([]cleanup, len(m.cleanups))
	copy(funcs, m.cleanups)
	m.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		c := funcs[i]
		log.Debug("Executing cleanup %s (%d/%d)", c.name, len(funcs)-i, len(funcs))
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s failed: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// Stop stops listening for signals.
func (m *Manager) Stop() {
	signal.Stop(m.signalChan)
	signal.Stop(m.quitChan)
}
