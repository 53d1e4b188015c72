// File: internal/browser/cdp/element.go
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// Element is a remote object handle to a DOM node in one tab.
type Element struct {
	ctrl *Controller
	tab  *tab
	id   runtime.RemoteObjectID
}

var (
	_ browser.Element  = (*Element)(nil)
	_ browser.Releaser = (*Element)(nil)
)

// Release frees the remote object behind e. The handle is unusable after.
func (e *Element) Release(ctx context.Context) error {
	return e.ctrl.run(ctx, e.tab, chromedp.ActionFunc(func(ctx context.Context) error {
		return runtime.ReleaseObject(e.id).Do(ctx)
	}))
}

// call invokes fn on the node and decodes its result.
func (e *Element) call(ctx context.Context, fn string, args ...any) (any, error) {
	var out any
	err := e.ctrl.run(ctx, e.tab, chromedp.ActionFunc(func(ctx context.Context) error {
		res, err := callOn(ctx, e.id, fn, true, args...)
		if err != nil {
			return err
		}
		out, err = decode(res)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Element) flag(ctx context.Context, fn string) (bool, error) {
	v, err := e.call(ctx, fn)
	if err != nil {
		return false, err
	}
	return browser.Truthy(v), nil
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) { return e.flag(ctx, displayedFn) }
func (e *Element) IsEnabled(ctx context.Context) (bool, error)   { return e.flag(ctx, enabledFn) }
func (e *Element) IsSelected(ctx context.Context) (bool, error)  { return e.flag(ctx, selectedFn) }

func (e *Element) Text(ctx context.Context) (string, error) {
	v, err := e.call(ctx, textFn)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.call(ctx, attributeFn, name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return s, true, nil
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	v, err := e.call(ctx, tagNameFn)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Click dispatches a real mouse click at the center of the node.
func (e *Element) Click(ctx context.Context) error {
	v, err := e.call(ctx, clickPointFn)
	if err != nil {
		return err
	}
	x, y, err := point(v)
	if err != nil {
		return err
	}
	_, err = e.ctrl.runUntilDialog(ctx, e.tab, chromedp.MouseClickXY(x, y))
	return err
}

// point reads the [x, y] pair clickPointFn returns.
func point(v any) (float64, float64, error) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return 0, 0, fmt.Errorf("unexpected click point %v", v)
	}
	x, okX := pair[0].(float64)
	y, okY := pair[1].(float64)
	if !okX || !okY {
		return 0, 0, fmt.Errorf("unexpected click point %v", v)
	}
	return x, y, nil
}

// SendKeys focuses the node and types text as key events.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	focused, err := e.flag(ctx, focusFn)
	if err != nil {
		return err
	}
	if !focused {
		return fmt.Errorf("%w: element cannot take focus", browser.ErrNotInteractable)
	}
	return e.ctrl.run(ctx, e.tab, chromedp.KeyEvent(text))
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.call(ctx, clearFn)
	return err
}

func (e *Element) FindElements(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	var found []browser.Element
	err := e.ctrl.run(ctx, e.tab, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		found, err = e.ctrl.findIn(ctx, e.tab, e.id, loc)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	return found, nil
}
