// File: internal/session/factory.go
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/cdp"
	"github.com/xkilldash9x/crmpilot/internal/browser/webdriver"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/diagnostics"
	"github.com/xkilldash9x/crmpilot/internal/shared"
)

// ControllerFactory starts a browser and returns the controller driving it.
type ControllerFactory func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Controller, error)

// DefaultControllerFactory picks the backend named by cfg.Driver.
func DefaultControllerFactory(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Controller, error) {
	switch cfg.Driver {
	case config.DriverWebDriver:
		return webdriver.New(ctx, cfg, logger)
	case config.DriverCDP:
		return cdp.New(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

// Factory builds sessions that share one set of run services.
type Factory struct {
	cfg           config.BrowserConfig
	svc           *shared.Services
	capturer      *diagnostics.Capturer
	newController ControllerFactory
	logger        *zap.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithControllerFactory replaces the backend constructor.
func WithControllerFactory(fn ControllerFactory) FactoryOption {
	return func(f *Factory) { f.newController = fn }
}

// WithCapturer replaces the screenshot capturer built from the diagnostics config.
func WithCapturer(c *diagnostics.Capturer) FactoryOption {
	return func(f *Factory) { f.capturer = c }
}

// NewFactory returns a Factory for cfg. svc is shared by every session the
// factory creates.
func NewFactory(cfg config.Interface, svc *shared.Services, logger *zap.Logger, opts ...FactoryOption) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Factory{
		cfg:           cfg.Browser(),
		svc:           svc,
		newController: DefaultControllerFactory,
		logger:        logger,
	}
	for _, o := range opts {
		o(f)
	}
	if f.capturer == nil {
		f.capturer = diagnostics.NewOsCapturer(cfg.Diagnostics(), logger)
	}
	return f
}

// NewSession starts a browser and wraps it in a Session.
func (f *Factory) NewSession(ctx context.Context) (*Session, error) {
	ctrl, err := f.newController(ctx, f.cfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("start %s browser over %s: %w", f.cfg.Kind, f.cfg.Driver, err)
	}
	return New(ctrl, f.cfg, f.svc, f.capturer, f.logger), nil
}
