// File: internal/frames/resolver.go

// Package frames locates the iframe that holds an element and moves the
// controller into it.
package frames

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/observability"
	"github.com/xkilldash9x/crmpilot/internal/pageready"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

var iframes = locator.TagName("iframe")

// Resolver searches the top level document and its direct child iframes.
type Resolver struct {
	ctrl   browser.Controller
	frames *browser.Switcher
	gate   *pageready.Gate
	waits  *wait.Engine
	logger *zap.Logger
}

// NewResolver returns a Resolver. All frame switches go through frames.
func NewResolver(ctrl browser.Controller, frames *browser.Switcher, gate *pageready.Gate, waits *wait.Engine, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		ctrl:   ctrl,
		frames: frames,
		gate:   gate,
		waits:  waits,
		logger: logger.Named("resolver"),
	}
}

// ResolveFrameOf finds where loc lives and leaves the controller there.
//
// It returns ("", true, nil) when loc matches in the top level document, the
// iframe id and true when it matches inside one displayed child iframe of
// the top document, and ("", false, nil) with the controller at the top
// level when nothing matches. Only direct children are searched; a target
// in a grandchild frame is reported as not found. The first matching iframe
// in document order wins.
func (r *Resolver) ResolveFrameOf(ctx context.Context, loc locator.Locator) (string, bool, error) {
	logger := observability.OpLogger(r.logger, "resolveFrameOf", loc.String(), "")

	if err := r.gate.Wait(ctx); err != nil {
		if !errors.Is(err, browser.ErrTimeout) {
			return "", false, err
		}
		logger.Warn("Page not ready; searching frames anyway.", zap.Error(err))
	}
	if err := r.frames.ToDefault(ctx); err != nil {
		return "", false, err
	}

	found, err := r.present(ctx, loc)
	if err != nil {
		return "", false, err
	}
	if found {
		logger.Debug("Target is in the top level document.")
		return "", true, nil
	}

	candidates, err := r.candidates(ctx)
	if err != nil {
		return "", false, err
	}
	for _, id := range candidates {
		if err := r.frames.Enter(ctx, id); err != nil {
			if browser.IsTransient(err) {
				logger.Debug("Frame vanished before it could be entered.", zap.String("frame_id", id), zap.Error(err))
				continue
			}
			return "", false, err
		}
		found, err := r.present(ctx, loc)
		if err != nil {
			if resetErr := r.frames.ToDefault(ctx); resetErr != nil {
				logger.Warn("Could not leave frame after a failed search.", zap.String("frame_id", id), zap.Error(resetErr))
			}
			return "", false, err
		}
		if found {
			logger.Debug("Target resolved inside frame.", zap.String("frame_id", id))
			return id, true, nil
		}
		if err := r.frames.ToDefault(ctx); err != nil {
			return "", false, err
		}
	}

	logger.Debug("Target not found in the top document or its frames.", zap.Int("frames_searched", len(candidates)))
	return "", false, nil
}

// candidates lists the ids of the displayed top level iframes in document
// order. An iframe counts as displayed when the driver says so or when its
// inline style says it is visible; iframes without an id are skipped since
// they cannot be switched to by id.
func (r *Resolver) candidates(ctx context.Context) ([]string, error) {
	list, err := r.ctrl.FindElements(ctx, iframes)
	if err != nil {
		if browser.IsTransient(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerate iframes: %w", err)
	}

	var ids []string
	for i, f := range list {
		id, _, err := f.Attribute(ctx, "id")
		if err != nil {
			if browser.IsTransient(err) {
				continue
			}
			return nil, fmt.Errorf("read iframe %d: %w", i, err)
		}
		if id == "" {
			continue
		}
		shown, err := r.displayed(ctx, f)
		if err != nil {
			if browser.IsTransient(err) {
				continue
			}
			return nil, fmt.Errorf("read iframe %q: %w", id, err)
		}
		if shown {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Resolver) displayed(ctx context.Context, f browser.Element) (bool, error) {
	shown, err := f.IsDisplayed(ctx)
	if err != nil || shown {
		return shown, err
	}
	style, _, err := f.Attribute(ctx, "style")
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(style), "visible"), nil
}

// present reports whether loc matches anything in the current document.
func (r *Resolver) present(ctx context.Context, loc locator.Locator) (bool, error) {
	els, err := r.ctrl.FindElements(ctx, loc)
	if err != nil {
		if browser.IsTransient(err) {
			return false, nil
		}
		return false, fmt.Errorf("find %s: %w", loc, err)
	}
	return len(els) > 0, nil
}

// SwitchTo returns to the top level document, waits for the frame id to be
// available there, and enters it.
func (r *Resolver) SwitchTo(ctx context.Context, id string, opts ...wait.Option) error {
	if err := r.frames.ToDefault(ctx); err != nil {
		return err
	}
	return r.SwitchToNested(ctx, id, opts...)
}

// SwitchToNested waits for the frame id inside the current document and
// enters it.
func (r *Resolver) SwitchToNested(ctx context.Context, id string, opts ...wait.Option) error {
	return r.waits.For(ctx, locator.ID(id), wait.FrameAvailable, append([]wait.Option{wait.WithDescription("frame " + id)}, opts...)...)
}

// SwitchToParent moves one frame up.
func (r *Resolver) SwitchToParent(ctx context.Context) error { return r.frames.Parent(ctx) }

// SwitchToDefault moves to the top level document.
func (r *Resolver) SwitchToDefault(ctx context.Context) error { return r.frames.ToDefault(ctx) }

// Current returns the frame context the controller is in.
func (r *Resolver) Current() browser.FrameContext { return r.frames.Current() }
