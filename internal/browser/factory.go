package browser

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config controls how browsers are launched.
type Config struct {
	Enabled           bool
	UserAgent         string
	NavigationTimeout time.Duration
	MaxTabs           int
	ExecPath          string
}

// Factory creates one Session per search run.
type Factory struct {
	launcher Launcher
	logger   *zap.Logger
}

// NewFactory returns a factory backed by headless Chrome, or a disabled
// factory when cfg.Enabled is false.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if !cfg.Enabled {
		return NewFactoryWithLauncher(disabledLauncher{}, logger)
	}
	return NewFactoryWithLauncher(newChromeLauncher(cfg), logger)
}

// NewFactoryWithLauncher returns a factory that launches through l.
func NewFactoryWithLauncher(l Launcher, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{launcher: l, logger: logger}
}

// NewSession returns a fresh stopped session.
func (f *Factory) NewSession() *Session {
	return NewSession(f.launcher, f.logger.Named("browser"))
}

type disabledLauncher struct{}

func (disabledLauncher) Launch(context.Context) (Instance, error) {
	return nil, ErrDisabled
}
