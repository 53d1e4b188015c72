// File: internal/diagnostics/capture.go

// Package diagnostics saves screenshots when an operation fails. Capture is
// best effort: it never returns an error, so a broken screenshot can not
// hide the failure that asked for it.
package diagnostics

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/config"
)

// NoFileCreated is returned in place of a file name when no screenshot was written.
const NoFileCreated = "No File Created"

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Capturer writes screenshots into a directory.
type Capturer struct {
	fs      afero.Fs
	dir     string
	enabled bool
	logger  *zap.Logger
}

// NewCapturer returns a Capturer for cfg writing through fs. A leading ~ in
// the directory is expanded to the user's home.
func NewCapturer(fs afero.Fs, cfg config.DiagnosticsConfig, logger *zap.Logger) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("diagnostics")
	dir := cfg.ScreenshotDir
	if expanded, err := homedir.Expand(dir); err == nil {
		dir = expanded
	} else {
		logger.Warn("Could not expand screenshot directory.", zap.String("dir", dir), zap.Error(err))
	}
	return &Capturer{fs: fs, dir: dir, enabled: cfg.Enabled, logger: logger}
}

// NewOsCapturer is NewCapturer on the real file system.
func NewOsCapturer(cfg config.DiagnosticsConfig, logger *zap.Logger) *Capturer {
	return NewCapturer(afero.NewOsFs(), cfg, logger)
}

// Dir returns the directory screenshots are written to.
func (c *Capturer) Dir() string { return c.dir }

// Capture takes a screenshot and stores it as
// Screenshot_<label>_<id>.png. It returns the file path, or NoFileCreated
// when capture is disabled or any step fails.
func (c *Capturer) Capture(ctx context.Context, shooter browser.Shooter, label string) string {
	if c == nil || !c.enabled || shooter == nil {
		return NoFileCreated
	}
	png, err := shooter.TakeScreenshot(ctx)
	if err != nil {
		c.logger.Warn("Screenshot failed.", zap.String("label", label), zap.Error(err))
		return NoFileCreated
	}
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("Could not create screenshot directory.", zap.String("dir", c.dir), zap.Error(err))
		return NoFileCreated
	}

	name := fmt.Sprintf("Screenshot_%s_%s.png", sanitize(label), uuid.NewString()[:8])
	path := filepath.Join(c.dir, name)
	if err := afero.WriteFile(c.fs, path, png, 0o644); err != nil {
		c.logger.Warn("Could not write screenshot.", zap.String("path", path), zap.Error(err))
		return NoFileCreated
	}
	c.logger.Info("Screenshot saved.", zap.String("path", path), zap.String("label", label))
	return path
}

func sanitize(label string) string {
	s := strings.Trim(unsafeLabel.ReplaceAllString(label, "_"), "_")
	if s == "" {
		return "capture"
	}
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
