// File: internal/pageready/gate.go

// Package pageready blocks until the top document and its visible iframes
// report a usable ready state.
package pageready

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
)

const opPageReady = "pageReady"

var iframes = locator.TagName("iframe")

// Gate waits for page readiness. A script error while reading a ready state
// ends that check and the gate moves on; only the overall timeout fails it.
type Gate struct {
	ctrl     browser.Controller
	frames   *browser.Switcher
	interval time.Duration
	timeout  time.Duration
	clock    poll.Clock
	logger   *zap.Logger
}

// New returns a Gate polling every interval and giving up after timeout.
func New(ctrl browser.Controller, frames *browser.Switcher, interval, timeout time.Duration, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		ctrl:     ctrl,
		frames:   frames,
		interval: interval,
		timeout:  timeout,
		clock:    poll.RealClock,
		logger:   logger.Named("pageready"),
	}
}

// WithClock returns a copy of g driven by c.
func (g *Gate) WithClock(c poll.Clock) *Gate {
	cp := *g
	cp.clock = c
	return &cp
}

// Wait switches to the top level document and blocks until it, and then
// each displayed top level iframe, reports "interactive" or "complete".
//
// Iframes are visited by index and the list is fetched again before each
// one, because frames come and go while the page settles. An index past the
// end of the fresh list ends the walk; a stale iframe is skipped.
func (g *Gate) Wait(ctx context.Context) error {
	return g.WaitWithin(ctx, 0)
}

// WaitWithin is Wait bounded by d instead of the configured timeout. A
// non-positive d keeps the configured one.
func (g *Gate) WaitWithin(ctx context.Context, d time.Duration) error {
	bound := g.timeout
	if d > 0 {
		bound = d
	}
	start := g.clock.Now()
	gateCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	err := g.wait(gateCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &browser.TimeoutError{Op: opPageReady, Timeout: bound, Elapsed: g.clock.Now().Sub(start), Last: err}
	}
	return err
}

func (g *Gate) wait(ctx context.Context) error {
	if err := g.frames.ToDefault(ctx); err != nil {
		return err
	}

	if err := g.pollReady(ctx, js.ReadyState, "document"); err != nil {
		return err
	}

	for i := 0; ; i++ {
		list, err := g.ctrl.FindElements(ctx, iframes)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Debug("Could not enumerate iframes; skipping frame checks.", zap.Error(err))
			return nil
		}
		if i >= len(list) {
			return nil
		}

		frame := list[i]
		displayed, err := frame.IsDisplayed(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Debug("Skipping iframe that went stale.", zap.Int("index", i), zap.Error(err))
			continue
		}
		if !displayed {
			continue
		}
		id, _, err := frame.Attribute(ctx, "id")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Debug("Skipping iframe that went stale.", zap.Int("index", i), zap.Error(err))
			continue
		}

		script, label := js.FrameReadyStateByIndex(i), fmt.Sprintf("iframe[%d]", i)
		if id != "" {
			script, label = js.FrameReadyStateByID(id), "iframe#"+id
		}
		if err := g.pollReady(ctx, script, label); err != nil {
			return err
		}
	}
}

// pollReady evaluates a ready state script until it reports ready. A script
// error ends the check without failing the gate.
func (g *Gate) pollReady(ctx context.Context, script, label string) error {
	for {
		state, err := g.ctrl.ExecuteScript(ctx, script)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Debug("Ready state unavailable; proceeding.", zap.String("document", label), zap.Error(err))
			return nil
		}
		if js.IsReady(state) {
			return nil
		}
		g.logger.Debug("Document still loading.", zap.String("document", label), zap.Any("state", state))
		if err := g.clock.Sleep(ctx, g.interval); err != nil {
			return err
		}
	}
}

// DOMContentLoadedTime reports the seconds from navigation start to the end
// of DOMContentLoaded for the current document.
func (g *Gate) DOMContentLoadedTime(ctx context.Context) (float64, error) {
	v, err := g.ctrl.ExecuteScript(ctx, js.DOMContentLoaded)
	if err != nil {
		return 0, fmt.Errorf("read navigation timing: %w", err)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("unexpected navigation timing result %T", v)
}
