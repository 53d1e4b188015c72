// File: internal/session/navigation.go
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/js"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

// ResolveFrameOf finds the frame holding loc and leaves the session there.
// It returns the iframe id ("" for the top document) and whether loc was
// found at all.
func (s *Session) ResolveFrameOf(ctx context.Context, loc locator.Locator) (string, bool, error) {
	var (
		id    string
		found bool
	)
	err := s.do(ctx, "resolve frame", loc.String(), func(ctx context.Context) error {
		var err error
		id, found, err = s.resolver.ResolveFrameOf(ctx, loc)
		return err
	})
	return id, found, err
}

// WaitForPageReady waits until the top document and its displayed iframes
// have loaded. It leaves the session in the top document. wait.WithTimeout
// replaces the session's wait bound.
func (s *Session) WaitForPageReady(ctx context.Context, opts ...wait.Option) error {
	return s.do(ctx, "page ready", "", func(ctx context.Context) error {
		return s.waits.For(ctx, locator.Locator{}, wait.PageReady, opts...)
	})
}

// DOMContentLoadedTime reports seconds from navigation start to DOMContentLoaded.
func (s *Session) DOMContentLoadedTime(ctx context.Context) (float64, error) {
	var secs float64
	err := s.do(ctx, "dom content loaded", "", func(ctx context.Context) error {
		var err error
		secs, err = s.gate.DOMContentLoadedTime(ctx)
		return err
	})
	return secs, err
}

// SwitchToFrame switches to the top document, then into frame id once it
// is available.
func (s *Session) SwitchToFrame(ctx context.Context, id string, opts ...wait.Option) error {
	return s.do(ctx, "switch frame", id, func(ctx context.Context) error {
		return s.resolver.SwitchTo(ctx, id, opts...)
	})
}

// SwitchToNestedFrame enters frame id inside the current frame.
func (s *Session) SwitchToNestedFrame(ctx context.Context, id string, opts ...wait.Option) error {
	return s.do(ctx, "switch nested frame", id, func(ctx context.Context) error {
		return s.resolver.SwitchToNested(ctx, id, opts...)
	})
}

// SwitchToParentFrame moves one frame up.
func (s *Session) SwitchToParentFrame(ctx context.Context) error {
	return s.do(ctx, "switch parent frame", "", s.resolver.SwitchToParent)
}

// SwitchToDefault returns to the top document.
func (s *Session) SwitchToDefault(ctx context.Context) error {
	return s.do(ctx, "switch default", "", s.resolver.SwitchToDefault)
}

// GoTo loads url in the current window. The browser drops any frame
// selection on navigation.
func (s *Session) GoTo(ctx context.Context, url string) error {
	return s.do(ctx, "navigate", url, func(ctx context.Context) error {
		if err := s.ctrl.Navigate(ctx, url); err != nil {
			return err
		}
		s.switcher.Reset()
		return nil
	})
}

// URL returns the current window's address.
func (s *Session) URL(ctx context.Context) (string, error) {
	var u string
	err := s.do(ctx, "url", "", func(ctx context.Context) error {
		var err error
		u, err = s.ctrl.CurrentURL(ctx)
		return err
	})
	return u, err
}

// Refresh reloads the top document through script.
func (s *Session) Refresh(ctx context.Context) error {
	return s.do(ctx, "refresh", "", func(ctx context.Context) error {
		if err := s.switcher.ToDefault(ctx); err != nil {
			return err
		}
		if _, err := s.ctrl.ExecuteScript(ctx, js.Reload); err != nil {
			return err
		}
		s.switcher.Reset()
		return nil
	})
}

// SwitchToWindow makes handle the current window.
func (s *Session) SwitchToWindow(ctx context.Context, handle string) error {
	return s.do(ctx, "switch window", handle, func(ctx context.Context) error {
		return s.switchWindow(ctx, handle)
	})
}

// SwitchToWindowWithURL switches to the first window whose URL contains
// part, or, with contains false, the first whose URL does not. When no
// window qualifies the session is left in the last window examined and
// the error matches browser.ErrNoSuchWindow.
func (s *Session) SwitchToWindowWithURL(ctx context.Context, part string, contains bool) error {
	label := fmt.Sprintf("url contains %q", part)
	if !contains {
		label = fmt.Sprintf("url lacks %q", part)
	}
	return s.do(ctx, "switch window", label, func(ctx context.Context) error {
		handles, err := s.ctrl.WindowHandles(ctx)
		if err != nil {
			return err
		}
		for _, h := range handles {
			if err := s.switchWindow(ctx, h); err != nil {
				return err
			}
			u, err := s.ctrl.CurrentURL(ctx)
			if err != nil {
				return err
			}
			if strings.Contains(u, part) == contains {
				s.logger.Debug("Window matched.", zap.String("handle", h), zap.String("url", u))
				return nil
			}
		}
		return fmt.Errorf("%s among %d windows: %w", label, len(handles), browser.ErrNoSuchWindow)
	})
}

// OpenTab opens url in a new window, waits for it to appear and switches
// to it.
func (s *Session) OpenTab(ctx context.Context, url string) error {
	return s.do(ctx, "open tab", url, func(ctx context.Context) error {
		before, err := s.ctrl.WindowHandles(ctx)
		if err != nil {
			return err
		}
		if _, err := s.ctrl.ExecuteScript(ctx, js.OpenTab, url); err != nil {
			return err
		}
		if err := s.waits.ForWindowCount(ctx, len(before)+1); err != nil {
			return err
		}
		after, err := s.ctrl.WindowHandles(ctx)
		if err != nil {
			return err
		}
		for _, h := range after {
			if !slices.Contains(before, h) {
				return s.switchWindow(ctx, h)
			}
		}
		return fmt.Errorf("new window for %s: %w", url, browser.ErrNoSuchWindow)
	})
}

// CloseTab closes the current window and switches to the first remaining
// one.
func (s *Session) CloseTab(ctx context.Context) error {
	return s.do(ctx, "close tab", "", func(ctx context.Context) error {
		wm, err := s.windowManager()
		if err != nil {
			return err
		}
		if err := wm.CloseCurrentWindow(ctx); err != nil {
			return err
		}
		s.switcher.Reset()
		handles, err := s.ctrl.WindowHandles(ctx)
		if err != nil {
			return err
		}
		if len(handles) == 0 {
			return fmt.Errorf("no window left to switch to: %w", browser.ErrNoSuchWindow)
		}
		return s.switchWindow(ctx, handles[0])
	})
}

// MaximizeWindow maximizes the current window.
func (s *Session) MaximizeWindow(ctx context.Context) error {
	return s.do(ctx, "maximize window", "", func(ctx context.Context) error {
		wm, err := s.windowManager()
		if err != nil {
			return err
		}
		return wm.MaximizeWindow(ctx)
	})
}

func (s *Session) windowManager() (browser.WindowManager, error) {
	wm, ok := s.ctrl.(browser.WindowManager)
	if !ok {
		return nil, fmt.Errorf("%s controller cannot manage windows: %w", s.ctrl.Kind(), errors.ErrUnsupported)
	}
	return wm, nil
}

func (s *Session) switchWindow(ctx context.Context, handle string) error {
	if err := s.ctrl.SwitchToWindow(ctx, handle); err != nil {
		return err
	}
	s.switcher.Reset()
	return nil
}

// AcceptAlert accepts the open dialog. Having no dialog open is not an error.
func (s *Session) AcceptAlert(ctx context.Context) error {
	return s.do(ctx, "accept alert", "", func(ctx context.Context) error {
		if err := s.ctrl.AcceptAlert(ctx); err != nil && !ignore(err, browser.ErrNoAlert) {
			return err
		}
		return nil
	})
}

// DismissAlert dismisses the open dialog. Having no dialog open is not an error.
func (s *Session) DismissAlert(ctx context.Context) error {
	return s.do(ctx, "dismiss alert", "", func(ctx context.Context) error {
		if err := s.ctrl.DismissAlert(ctx); err != nil && !ignore(err, browser.ErrNoAlert) {
			return err
		}
		return nil
	})
}

// AlertText returns the open dialog's message.
func (s *Session) AlertText(ctx context.Context) (string, error) {
	var text string
	err := s.do(ctx, "alert text", "", func(ctx context.Context) error {
		var err error
		text, err = s.ctrl.AlertText(ctx)
		return err
	})
	return text, err
}

// ExecuteScript runs script in the current frame.
func (s *Session) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	var res any
	err := s.do(ctx, "execute script", abbreviate(script), func(ctx context.Context) error {
		var err error
		res, err = s.ctrl.ExecuteScript(ctx, script, args...)
		return err
	})
	return res, err
}

// Screenshot saves a screenshot labelled label and returns its path, or
// diagnostics.NoFileCreated.
func (s *Session) Screenshot(ctx context.Context, label string) string {
	s.svc.Journal.Command("screenshot", s.fields("screenshot", label)...)
	return s.capturer.Capture(ctx, s.ctrl, label)
}

func abbreviate(script string) string {
	script = strings.Join(strings.Fields(script), " ")
	if utf8.RuneCountInString(script) > 60 {
		return string([]rune(script)[:57]) + "..."
	}
	return script
}
