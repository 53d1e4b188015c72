// File: internal/session/actions.go
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/interact"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

// WaitFor blocks until cond holds for loc or the wait times out.
func (s *Session) WaitFor(ctx context.Context, loc locator.Locator, cond wait.Condition, opts ...wait.Option) error {
	return s.do(ctx, "wait "+cond.String(), loc.String(), func(ctx context.Context) error {
		return s.waits.For(ctx, loc, cond, opts...)
	})
}

// WaitForElement blocks until cond holds for an element already resolved.
func (s *Session) WaitForElement(ctx context.Context, el browser.Element, cond wait.Condition, opts ...wait.Option) error {
	return s.do(ctx, "wait "+cond.String(), "element", func(ctx context.Context) error {
		return s.waits.ForElement(ctx, el, cond, opts...)
	})
}

// Find waits for loc to exist and returns the first match.
func (s *Session) Find(ctx context.Context, loc locator.Locator, opts ...wait.Option) (browser.Element, error) {
	var el browser.Element
	err := s.do(ctx, "find", loc.String(), func(ctx context.Context) error {
		var err error
		el, err = s.waits.Await(ctx, loc, wait.Exists, opts...)
		return err
	})
	return el, err
}

// WaitForText waits until text is (or, with visible false, is no longer)
// shown anywhere in the current document.
func (s *Session) WaitForText(ctx context.Context, text string, visible bool, opts ...wait.Option) error {
	return s.do(ctx, "wait text", fmt.Sprintf("%q", text), func(ctx context.Context) error {
		return s.waits.ForText(ctx, text, visible, opts...)
	})
}

// WaitForWindowCount waits until exactly n windows are open.
func (s *Session) WaitForWindowCount(ctx context.Context, n int, opts ...wait.Option) error {
	return s.do(ctx, "wait window_count", fmt.Sprint(n), func(ctx context.Context) error {
		return s.waits.ForWindowCount(ctx, n, opts...)
	})
}

// WaitForLoader waits for a busy indicator to go away rounds times, pausing
// settle between rounds for indicators that flicker.
func (s *Session) WaitForLoader(ctx context.Context, loc locator.Locator, rounds int, settle time.Duration) error {
	return s.do(ctx, "wait loader", loc.String(), func(ctx context.Context) error {
		return s.waits.ForLoader(ctx, loc, rounds, settle)
	})
}

// Click clicks loc once it is actionable. See interact.Interactor.Click for
// the retry and indeterminate outcome rules.
func (s *Session) Click(ctx context.Context, loc locator.Locator, opts interact.ClickOptions) error {
	return s.do(ctx, "click", target(loc, opts.Description), func(ctx context.Context) error {
		return s.actions.Click(ctx, loc, opts)
	})
}

// ClickElement clicks an element already resolved.
func (s *Session) ClickElement(ctx context.Context, el browser.Element, opts interact.ClickOptions) error {
	return s.do(ctx, "click", target(locator.Locator{}, opts.Description), func(ctx context.Context) error {
		return s.actions.ClickElement(ctx, el, opts)
	})
}

// ClickAll clicks each locator in order.
func (s *Session) ClickAll(ctx context.Context, locs ...locator.Locator) error {
	names := make([]string, len(locs))
	for i, l := range locs {
		names[i] = l.String()
	}
	return s.do(ctx, "click all", strings.Join(names, ", "), func(ctx context.Context) error {
		return s.actions.ClickAll(ctx, locs...)
	})
}

// DoubleClick double clicks loc once it is visible.
func (s *Session) DoubleClick(ctx context.Context, loc locator.Locator) error {
	return s.do(ctx, "double click", loc.String(), func(ctx context.Context) error {
		return s.actions.DoubleClick(ctx, loc)
	})
}

// RightClick opens the context menu of loc once it is visible.
func (s *Session) RightClick(ctx context.Context, loc locator.Locator) error {
	return s.do(ctx, "right click", loc.String(), func(ctx context.Context) error {
		return s.actions.RightClick(ctx, loc)
	})
}

// Hover moves the pointer over loc once it is visible.
func (s *Session) Hover(ctx context.Context, loc locator.Locator) error {
	return s.do(ctx, "hover", loc.String(), func(ctx context.Context) error {
		return s.actions.Hover(ctx, loc)
	})
}

// ScrollTo brings loc into view.
func (s *Session) ScrollTo(ctx context.Context, loc locator.Locator) error {
	return s.do(ctx, "scroll", loc.String(), func(ctx context.Context) error {
		return s.actions.ScrollTo(ctx, loc)
	})
}

// SendKeys waits for loc to be clickable and types text into it once.
func (s *Session) SendKeys(ctx context.Context, loc locator.Locator, text string) error {
	return s.do(ctx, "send keys", loc.String(), func(ctx context.Context) error {
		return s.actions.SendKeys(ctx, loc, text)
	})
}

// Clear empties the input at loc.
func (s *Session) Clear(ctx context.Context, loc locator.Locator) error {
	return s.do(ctx, "clear", loc.String(), func(ctx context.Context) error {
		return s.actions.Clear(ctx, loc)
	})
}

// Text returns the visible text of loc once it is visible.
func (s *Session) Text(ctx context.Context, loc locator.Locator) (string, error) {
	var text string
	err := s.do(ctx, "text", loc.String(), func(ctx context.Context) error {
		var err error
		text, err = s.actions.Text(ctx, loc)
		return err
	})
	return text, err
}

// SelectByValue selects the option of the select at loc whose value is v.
func (s *Session) SelectByValue(ctx context.Context, loc locator.Locator, v string) error {
	return s.do(ctx, "select by value", loc.String(), func(ctx context.Context) error {
		return s.actions.SelectByValue(ctx, loc, v)
	})
}

// SelectByText selects the option whose visible text is text.
func (s *Session) SelectByText(ctx context.Context, loc locator.Locator, text string) error {
	return s.do(ctx, "select by text", loc.String(), func(ctx context.Context) error {
		return s.actions.SelectByText(ctx, loc, text)
	})
}

// SelectByIndex selects the nth option.
func (s *Session) SelectByIndex(ctx context.Context, loc locator.Locator, n int) error {
	return s.do(ctx, "select by index", loc.String(), func(ctx context.Context) error {
		return s.actions.SelectByIndex(ctx, loc, n)
	})
}

// SelectOptions lists the option texts of the select at loc.
func (s *Session) SelectOptions(ctx context.Context, loc locator.Locator) ([]string, error) {
	var opts []string
	err := s.do(ctx, "select options", loc.String(), func(ctx context.Context) error {
		var err error
		opts, err = s.actions.SelectOptions(ctx, loc)
		return err
	})
	return opts, err
}

// IsPresent reports whether loc matches now. It never waits or fails.
func (s *Session) IsPresent(ctx context.Context, loc locator.Locator) bool {
	s.svc.Journal.Command("is present", s.fields("is present", loc.String())...)
	return s.actions.IsPresent(ctx, loc)
}

// IsVisible reports whether loc matches a displayed element now.
func (s *Session) IsVisible(ctx context.Context, loc locator.Locator) bool {
	s.svc.Journal.Command("is visible", s.fields("is visible", loc.String())...)
	return s.actions.IsVisible(ctx, loc)
}

// IsTextVisible reports whether text is displayed anywhere now.
func (s *Session) IsTextVisible(ctx context.Context, text string) bool {
	s.svc.Journal.Command("is text visible", s.fields("is text visible", fmt.Sprintf("%q", text))...)
	return s.actions.IsTextVisible(ctx, text)
}

// IsTextInvisible reports whether text is displayed nowhere now.
func (s *Session) IsTextInvisible(ctx context.Context, text string) bool {
	s.svc.Journal.Command("is text invisible", s.fields("is text invisible", fmt.Sprintf("%q", text))...)
	return s.actions.IsTextInvisible(ctx, text)
}

// IsTextAbsentIn reports whether the text of loc lacks text now.
func (s *Session) IsTextAbsentIn(ctx context.Context, loc locator.Locator, text string) bool {
	s.svc.Journal.Command("is text invisible", s.fields("is text invisible", fmt.Sprintf("%s %q", loc, text))...)
	return s.actions.IsTextAbsentIn(ctx, loc, text)
}

// Parent returns the parent element of loc.
func (s *Session) Parent(ctx context.Context, loc locator.Locator) (browser.Element, error) {
	var el browser.Element
	err := s.do(ctx, "parent", loc.String(), func(ctx context.Context) error {
		var err error
		el, err = s.actions.Parent(ctx, loc)
		return err
	})
	return el, err
}

// ClosestAncestor returns the nearest ancestor of loc with the given tag.
func (s *Session) ClosestAncestor(ctx context.Context, loc locator.Locator, tag locator.HTMLTag) (browser.Element, error) {
	var el browser.Element
	err := s.do(ctx, "closest "+tag.String(), loc.String(), func(ctx context.Context) error {
		var err error
		el, err = s.actions.ClosestAncestor(ctx, loc, tag)
		return err
	})
	return el, err
}

// Children returns the element children of loc.
func (s *Session) Children(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	var els []browser.Element
	err := s.do(ctx, "children", loc.String(), func(ctx context.Context) error {
		var err error
		els, err = s.actions.Children(ctx, loc)
		return err
	})
	return els, err
}

func target(loc locator.Locator, description string) string {
	if description != "" {
		return description
	}
	if loc.IsZero() {
		return "element"
	}
	return loc.String()
}
