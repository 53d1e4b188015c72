// File: internal/browser/webdriver/controller.go

// Package webdriver drives a browser over the W3C WebDriver protocol,
// either through a Selenium server or directly against a browser driver.
package webdriver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

const attributeScript = `return arguments[0].getAttribute(arguments[1]);`

// newRemote opens the wire session. Tests replace it.
var newRemote = selenium.NewRemote

// connectBackOff paces reconnects while the remote end is unreachable.
var connectBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Controller implements browser.Controller over a selenium.WebDriver.
//
// The wire client has no context support, so ctx is checked before each
// call but cannot interrupt one in flight.
type Controller struct {
	wd     selenium.WebDriver
	kind   config.BrowserKind
	path   []string
	logger *zap.Logger
}

var (
	_ browser.Controller    = (*Controller)(nil)
	_ browser.WindowManager = (*Controller)(nil)
	_ browser.ConsoleReader = (*Controller)(nil)
)

// New opens a WebDriver session at cfg.RemoteURL. Network failures are
// retried with exponential backoff until ctx ends or the retry budget runs
// out; an answer from the remote end is final.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Controller, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	caps := Capabilities(cfg)

	var wd selenium.WebDriver
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		wd, err = newRemote(caps, cfg.RemoteURL)
		if err == nil {
			return nil
		}
		var netErr net.Error
		if !errors.As(err, &netErr) {
			return backoff.Permanent(err)
		}
		logger.Warn("WebDriver endpoint unreachable, retrying.",
			zap.String("remote_url", cfg.RemoteURL), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(connectBackOff(), ctx)); err != nil {
		return nil, fmt.Errorf("open webdriver session at %s: %w", cfg.RemoteURL, mapError(err))
	}
	c := NewFromDriver(wd, cfg.Kind, logger)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 && !cfg.Headless {
		if err := wd.ResizeWindow("", cfg.WindowWidth, cfg.WindowHeight); err != nil {
			c.logger.Warn("Could not resize window.", zap.Error(err))
		}
	}
	c.logger.Info("WebDriver session opened.", zap.String("remote_url", cfg.RemoteURL), zap.Bool("headless", cfg.Headless))
	return c, nil
}

// NewFromDriver wraps an open WebDriver session.
func NewFromDriver(wd selenium.WebDriver, kind config.BrowserKind, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{wd: wd, kind: kind, logger: logger.Named("webdriver")}
}

// Capabilities translates the browser configuration into the session
// request sent to the remote end.
func Capabilities(cfg config.BrowserConfig) selenium.Capabilities {
	caps := selenium.Capabilities{"browserName": browserName(cfg.Kind)}
	args := append([]string(nil), cfg.Args...)

	switch cfg.Kind {
	case config.KindChrome, config.KindEdge:
		if cfg.Headless {
			args = append(args, "--headless=new", "--disable-gpu")
			if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
				args = append(args, fmt.Sprintf("--window-size=%d,%d", cfg.WindowWidth, cfg.WindowHeight))
			}
		}
		if cfg.Kind == config.KindEdge {
			caps["ms:edgeOptions"] = map[string]any{"args": args}
			break
		}
		caps.AddChrome(chrome.Capabilities{Args: args})
	case config.KindFirefox:
		if cfg.Headless {
			args = append(args, "-headless")
		}
		caps.AddFirefox(firefox.Capabilities{Args: args})
	case config.KindIE:
		caps["se:ieOptions"] = map[string]any{
			"ie.ensureCleanSession":       true,
			"ignoreProtectedModeSettings": true,
		}
	}
	return caps
}

func browserName(k config.BrowserKind) string {
	switch k {
	case config.KindFirefox:
		return "firefox"
	case config.KindEdge:
		return "MicrosoftEdge"
	case config.KindIE:
		return "internet explorer"
	}
	return "chrome"
}

// by maps a locator strategy onto the WebDriver one.
func by(loc locator.Locator) (string, error) {
	switch loc.Kind {
	case locator.ByID:
		return selenium.ByID, nil
	case locator.ByCSS:
		return selenium.ByCSSSelector, nil
	case locator.ByXPath:
		return selenium.ByXPATH, nil
	case locator.ByLinkText:
		return selenium.ByLinkText, nil
	case locator.ByPartialLinkText:
		return selenium.ByPartialLinkText, nil
	case locator.ByClassName:
		return selenium.ByClassName, nil
	case locator.ByTagName:
		return selenium.ByTagName, nil
	}
	return "", fmt.Errorf("unsupported locator %s", loc)
}

func (c *Controller) FindElement(ctx context.Context, loc locator.Locator) (browser.Element, error) {
	els, err := c.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)
	}
	return els[0], nil
}

func (c *Controller) FindElements(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	strategy, err := by(loc)
	if err != nil {
		return nil, err
	}
	found, err := c.wd.FindElements(strategy, loc.Value)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, mapError(err))
	}
	return c.wrap(found), nil
}

func (c *Controller) wrap(found []selenium.WebElement) []browser.Element {
	out := make([]browser.Element, 0, len(found))
	for _, we := range found {
		out = append(out, &Element{ctrl: c, we: we})
	}
	return out
}

func (c *Controller) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.wd.ExecuteScript(script, unwrapArgs(args))
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// unwrapArgs replaces element handles with the driver's own references so
// they reach the script as DOM nodes.
func unwrapArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if el, ok := a.(*Element); ok {
			out[i] = el.we
			continue
		}
		out[i] = a
	}
	return out
}

// SwitchToFrame enters the child frame whose id, or failing that name, is id.
func (c *Controller) SwitchToFrame(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := c.frameElement(id)
	if err != nil {
		return err
	}
	if err := c.wd.SwitchFrame(frame); err != nil {
		return fmt.Errorf("frame %q: %w", id, mapError(err))
	}
	c.path = append(c.path, id)
	return nil
}

func (c *Controller) frameElement(id string) (selenium.WebElement, error) {
	for _, strategy := range []string{selenium.ByID, selenium.ByName} {
		found, err := c.wd.FindElements(strategy, id)
		if err != nil {
			return nil, fmt.Errorf("frame %q: %w", id, mapError(err))
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}
	return nil, fmt.Errorf("frame %q: %w", id, browser.ErrNoSuchFrame)
}

// SwitchToParentFrame returns to the top document and re-enters every frame
// but the innermost.
func (c *Controller) SwitchToParentFrame(ctx context.Context) error {
	if len(c.path) == 0 {
		return nil
	}
	parents := c.path[: len(c.path)-1 : len(c.path)-1]
	if err := c.SwitchToDefaultContent(ctx); err != nil {
		return err
	}
	for _, id := range parents {
		if err := c.SwitchToFrame(ctx, id); err != nil {
			return fmt.Errorf("re-enter %s: %w", strings.Join(parents, ">"), err)
		}
	}
	return nil
}

func (c *Controller) SwitchToDefaultContent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.wd.SwitchFrame(nil); err != nil {
		return mapError(err)
	}
	c.path = nil
	return nil
}

func (c *Controller) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := c.wd.WindowHandles()
	return handles, mapError(err)
}

func (c *Controller) SwitchToWindow(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.wd.SwitchWindow(handle); err != nil {
		return fmt.Errorf("window %q: %w", handle, mapError(err))
	}
	c.path = nil
	return nil
}

// CloseCurrentWindow closes the window the session is in.
func (c *Controller) CloseCurrentWindow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	handle, err := c.wd.CurrentWindowHandle()
	if err != nil {
		return mapError(err)
	}
	if err := c.wd.CloseWindow(handle); err != nil {
		return fmt.Errorf("close window %q: %w", handle, mapError(err))
	}
	c.path = nil
	return nil
}

func (c *Controller) MaximizeWindow(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(c.wd.MaximizeWindow(""))
}

// ConsoleErrors reads the browser log and keeps the SEVERE entries. The
// remote end drops what it returns, so entries are reported once.
func (c *Controller) ConsoleErrors(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := c.wd.Log(log.Browser)
	if err != nil {
		return nil, fmt.Errorf("read browser log: %w", mapError(err))
	}
	var out []string
	for _, m := range msgs {
		if m.Level == log.Severe {
			out = append(out, m.Message)
		}
	}
	return out, nil
}

func (c *Controller) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := c.wd.CurrentURL()
	return u, mapError(err)
}

func (c *Controller) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.wd.Get(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, mapError(err))
	}
	c.path = nil
	return nil
}

func (c *Controller) TakeScreenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := c.wd.Screenshot()
	return png, mapError(err)
}

func (c *Controller) AlertText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := c.wd.AlertText()
	return text, mapError(err)
}

func (c *Controller) AcceptAlert(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(c.wd.AcceptAlert())
}

func (c *Controller) DismissAlert(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(c.wd.DismissAlert())
}

func (c *Controller) Kind() config.BrowserKind { return c.kind }

func (c *Controller) Close(ctx context.Context) error {
	if err := c.wd.Quit(); err != nil {
		return fmt.Errorf("quit webdriver session: %w", mapError(err))
	}
	c.logger.Info("WebDriver session closed.")
	return nil
}
