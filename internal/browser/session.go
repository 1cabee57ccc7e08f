// Package browser manages the single headless Chrome process shared by the
// page-rendering sources of one search run.
package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/metrics"
)

var (
	// ErrDisabled is returned when headless browsing is switched off in configuration.
	ErrDisabled = errors.New("browser disabled")
	// ErrNotRunning is returned by NewPage before the session has started.
	ErrNotRunning = errors.New("browser not running")
	// ErrClosed is returned once the session has been shut down.
	ErrClosed = errors.New("browser session closed")
)

// DefaultUserAgent is sent by every tab unless configured otherwise.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// State is the lifecycle position of a Session.
type State int

// Session states.
const (
	StateStopped State = iota
	StateStarting
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url, bounded by the session's navigation timeout.
	Navigate(ctx context.Context, url string) error
	// WaitForAny blocks until one of selectors matches and returns it.
	WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error)
	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)
	// Close releases the tab.
	Close() error
}

// Instance is a launched browser process.
type Instance interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context) (Instance, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Instance, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Instance, error) {
	return f(ctx)
}

// Session owns at most one running browser. It is safe for concurrent use.
type Session struct {
	launcher Launcher
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	closed    bool
	instance  Instance
	launchErr error
	ready     chan struct{}
}

// NewSession returns a stopped session that launches through l.
func NewSession(l Launcher, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{launcher: l, logger: logger}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureRunning starts the browser if needed. Concurrent callers share a
// single launch. A failed launch is remembered and returned to later callers.
func (s *Session) EnsureRunning(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		switch s.state {
		case StateRunning:
			s.mu.Unlock()
			return nil
		case StateStarting:
			ready := s.ready
			s.mu.Unlock()
			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			if s.launchErr != nil {
				err := s.launchErr
				s.mu.Unlock()
				return err
			}
			s.state = StateStarting
			s.ready = make(chan struct{})
			s.mu.Unlock()
			return s.launch(ctx)
		}
	}
}

func (s *Session) launch(ctx context.Context) error {
	start := time.Now()
	inst, err := s.launcher.Launch(ctx)
	metrics.ObserveBrowserLaunch(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(s.ready)

	if err != nil {
		s.state = StateStopped
		s.launchErr = err
		s.logger.Warn("browser launch failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	if s.closed {
		s.state = StateStopped
		if closeErr := inst.Close(); closeErr != nil {
			s.logger.Warn("browser close after shutdown failed", zap.Error(closeErr))
		}
		return ErrClosed
	}
	s.instance = inst
	s.state = StateRunning
	s.logger.Info("browser started", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// NewPage opens a tab on the running browser.
func (s *Session) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil, ErrNotRunning
	}
	inst := s.instance
	s.mu.Unlock()
	return inst.NewPage(ctx)
}

// Shutdown stops the browser if it is running. It is idempotent and the
// session cannot be restarted afterwards.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	inst := s.instance
	s.instance = nil
	if s.state == StateRunning {
		s.state = StateStopped
	}
	s.mu.Unlock()

	if inst == nil {
		return nil
	}
	if err := inst.Close(); err != nil {
		s.logger.Warn("browser shutdown failed", zap.Error(err))
		return err
	}
	s.logger.Info("browser stopped")
	return nil
}
