// File: internal/session/factory_test.go
package session

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/browsertest"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/diagnostics"
	"github.com/xkilldash9x/crmpilot/internal/mocks"
	"github.com/xkilldash9x/crmpilot/internal/shared"
)

func TestFactory(t *testing.T) {
	ctx := context.Background()
	cfg := new(mocks.MockConfig)
	cfg.On("Browser").Return(testBrowserConfig)

	t.Run("builds a session per call", func(t *testing.T) {
		var started int
		f := NewFactory(cfg, shared.NewNopServices(), zaptest.NewLogger(t),
			WithCapturer(diagnostics.NewCapturer(afero.NewMemMapFs(), config.DiagnosticsConfig{}, nil)),
			WithControllerFactory(func(ctx context.Context, bc config.BrowserConfig, _ *zap.Logger) (browser.Controller, error) {
				started++
				assert.Equal(t, testBrowserConfig, bc)
				return browsertest.NewPage(), nil
			}),
		)

		a, err := f.NewSession(ctx)
		require.NoError(t, err)
		b, err := f.NewSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, started)
		assert.NotEqual(t, a.ID(), b.ID())
		assert.Equal(t, testBrowserConfig.WaitTimeout(), a.WaitTimeout())
	})

	t.Run("controller failure", func(t *testing.T) {
		f := NewFactory(cfg, nil, nil,
			WithCapturer(diagnostics.NewCapturer(afero.NewMemMapFs(), config.DiagnosticsConfig{}, nil)),
			WithControllerFactory(func(context.Context, config.BrowserConfig, *zap.Logger) (browser.Controller, error) {
				return nil, errors.New("connection refused")
			}),
		)
		_, err := f.NewSession(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start chrome browser over webdriver")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("default capturer comes from the diagnostics config", func(t *testing.T) {
		withDiag := new(mocks.MockConfig)
		withDiag.On("Browser").Return(testBrowserConfig)
		withDiag.On("Diagnostics").Return(config.DiagnosticsConfig{Enabled: true, ScreenshotDir: "shots"})

		f := NewFactory(withDiag, nil, nil)
		assert.Equal(t, "shots", f.capturer.Dir())
		withDiag.AssertExpectations(t)
	})
}

func TestDefaultControllerFactoryRejectsUnknownDriver(t *testing.T) {
	_, err := DefaultControllerFactory(context.Background(), config.BrowserConfig{Driver: "telepathy"}, zap.NewNop())
	assert.EqualError(t, err, `unknown driver "telepathy"`)
}
