// File: internal/interact/click.go

// Package interact performs user level actions once their target is
// actionable. Clicks run inside the poll loop so that a node replaced
// between the readiness check and the click is retried rather than reported.
package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/js"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/poll"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

const maxScrollAttempts = 5

var (
	errNotEnabled   = errors.New("element not enabled")
	errNotDisplayed = errors.New("element not displayed")
)

// Interactor drives clicks, typing and selection on one controller.
type Interactor struct {
	ctrl        browser.Controller
	waits       *wait.Engine
	poller      *poll.Poller
	forceScript bool
	logger      *zap.Logger
}

// New returns an Interactor. With forceScriptClick every click is
// dispatched through script regardless of the browser kind.
func New(ctrl browser.Controller, waits *wait.Engine, poller *poll.Poller, forceScriptClick bool, logger *zap.Logger) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interactor{
		ctrl:        ctrl,
		waits:       waits,
		poller:      poller,
		forceScript: forceScriptClick,
		logger:      logger.Named("interact"),
	}
}

// ClickOptions adjusts one click.
type ClickOptions struct {
	// Script dispatches the click through script instead of the driver.
	Script bool
	// Timeout overrides the default bound when positive.
	Timeout time.Duration
	// Description replaces the locator in logs and errors.
	Description string
}

func (o ClickOptions) target(fallback string) string {
	if o.Description != "" {
		return o.Description
	}
	return fallback
}

// Click resolves loc afresh on every attempt and clicks it once it is
// enabled (and, for native clicks, displayed).
//
// Stale references, not-interactable errors and a missing element are
// retried until the timeout, which yields a *browser.TimeoutError. Any other
// driver error raised by the click itself ends the call with an *OpError of
// kind indeterminate: the click may or may not have landed, and the caller
// has to decide.
func (i *Interactor) Click(ctx context.Context, loc locator.Locator, opts ClickOptions) error {
	target := opts.target(loc.String())
	script := i.useScript(opts)
	return i.poller.WithTimeout(opts.Timeout).Until(ctx, "click", target, func(ctx context.Context) poll.Outcome {
		el, err := i.ctrl.FindElement(ctx, loc)
		if err != nil {
			return poll.Classify(err)
		}
		return i.clickOnce(ctx, el, script, target)
	})
}

// ClickElement is Click for an element already in hand. A stale handle
// cannot recover, so it retries until the timeout.
func (i *Interactor) ClickElement(ctx context.Context, el browser.Element, opts ClickOptions) error {
	target := opts.target("element")
	script := i.useScript(opts)
	return i.poller.WithTimeout(opts.Timeout).Until(ctx, "click", target, func(ctx context.Context) poll.Outcome {
		return i.clickOnce(ctx, el, script, target)
	})
}

func (i *Interactor) useScript(opts ClickOptions) bool {
	return opts.Script || i.forceScript || i.ctrl.Kind().RequiresScriptClick()
}

func (i *Interactor) clickOnce(ctx context.Context, el browser.Element, script bool, target string) poll.Outcome {
	enabled, err := el.IsEnabled(ctx)
	if err != nil {
		return poll.Classify(err)
	}
	if !enabled {
		return poll.NotYet(errNotEnabled)
	}

	if script {
		if _, err := i.ctrl.ExecuteScript(ctx, js.Click, el); err != nil {
			return i.clickFailed(ctx, err, target)
		}
		return poll.Ready()
	}

	shown, err := el.IsDisplayed(ctx)
	if err != nil {
		return poll.Classify(err)
	}
	if !shown {
		return poll.NotYet(errNotDisplayed)
	}
	if err := el.Click(ctx); err != nil {
		return i.clickFailed(ctx, err, target)
	}
	return poll.Ready()
}

// clickFailed classifies an error raised by the click itself.
func (i *Interactor) clickFailed(ctx context.Context, err error, target string) poll.Outcome {
	if browser.IsTransient(err) {
		return poll.NotYet(err)
	}
	if ctx.Err() != nil {
		return poll.Fatal(err)
	}
	i.logger.Warn("Click raised a driver error; outcome unknown.", zap.String("target", target), zap.Error(err))
	return poll.Fatal(&browser.OpError{
		Op:     "click",
		Target: target,
		Kind:   browser.FailureIndeterminate,
		Err:    fmt.Errorf("%w: %w", browser.ErrIndeterminate, err),
	})
}

// DoubleClick waits for loc to be visible and dispatches a double click.
func (i *Interactor) DoubleClick(ctx context.Context, loc locator.Locator) error {
	return i.dispatch(ctx, loc, js.DoubleClick, "double click")
}

// Hover waits for loc to be visible and dispatches mouse over events.
func (i *Interactor) Hover(ctx context.Context, loc locator.Locator) error {
	return i.dispatch(ctx, loc, js.Hover, "hover")
}

// RightClick waits for loc to be visible and dispatches a context click.
func (i *Interactor) RightClick(ctx context.Context, loc locator.Locator) error {
	return i.dispatch(ctx, loc, js.ContextClick, "right click")
}

func (i *Interactor) dispatch(ctx context.Context, loc locator.Locator, script, what string) error {
	el, err := i.waits.Await(ctx, loc, wait.Visible)
	if err != nil {
		return err
	}
	if _, err := i.ctrl.ExecuteScript(ctx, script, el); err != nil {
		return fmt.Errorf("%s %s: %w", what, loc, err)
	}
	return nil
}

// ScrollTo scrolls loc into view until nothing overlays its center, giving
// up after a fixed number of scrolls.
func (i *Interactor) ScrollTo(ctx context.Context, loc locator.Locator) error {
	el, err := i.waits.Await(ctx, loc, wait.Exists)
	if err != nil {
		return err
	}
	for attempt := 1; attempt <= maxScrollAttempts; attempt++ {
		if _, err := i.ctrl.ExecuteScript(ctx, js.ScrollIntoView, el); err != nil {
			return fmt.Errorf("scroll to %s: %w", loc, err)
		}
		inView, err := i.ctrl.ExecuteScript(ctx, js.InView, el)
		if err != nil {
			return fmt.Errorf("check %s is in view: %w", loc, err)
		}
		if browser.Truthy(inView) {
			return nil
		}
		i.logger.Debug("Element still covered after scroll.", zap.Stringer("target", loc), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%s not in view after %d scrolls: %w", loc, maxScrollAttempts, browser.ErrNotInteractable)
}

// ClickAll clicks each locator in order, waiting for it to be visible and
// scrolling it into view first.
func (i *Interactor) ClickAll(ctx context.Context, locs ...locator.Locator) error {
	for _, loc := range locs {
		if err := i.waits.For(ctx, loc, wait.Visible); err != nil {
			return err
		}
		if err := i.ScrollTo(ctx, loc); err != nil {
			return err
		}
		if err := i.Click(ctx, loc, ClickOptions{}); err != nil {
			return err
		}
	}
	return nil
}
