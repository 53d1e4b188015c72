// File: internal/browser/cdp/controller.go

// Package cdp drives a local Chrome or Edge over the DevTools protocol.
//
// DOM access goes through Runtime.callFunctionOn against the window object
// of the current frame, so frames are entered by walking contentWindow from
// the top document. Cross-origin frames cannot be entered this way.
package cdp

import (
	"context"
	"fmt"
	"slices"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// tab is one attached page target.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	dialog  *page.EventJavascriptDialogOpening
	opened  chan struct{}
	console []string
}

func newTab(ctx context.Context, cancel context.CancelFunc) *tab {
	t := &tab{ctx: ctx, cancel: cancel, opened: make(chan struct{})}
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			t.mu.Lock()
			if t.dialog == nil {
				close(t.opened)
			}
			t.dialog = e
			t.mu.Unlock()
		case *page.EventJavascriptDialogClosed:
			t.clearDialog()
		case *runtime.EventExceptionThrown:
			t.logConsole(exceptionText(e.ExceptionDetails))
		case *runtime.EventConsoleAPICalled:
			if e.Type == runtime.APITypeError {
				t.logConsole(consoleText(e.Args))
			}
		}
	})
	return t
}

func (t *tab) logConsole(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.console = append(t.console, msg)
}

func (t *tab) drainConsole() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.console
	t.console = nil
	return out
}

func (t *tab) pendingDialog() *page.EventJavascriptDialogOpening {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dialog
}

func (t *tab) clearDialog() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dialog != nil {
		t.dialog = nil
		t.opened = make(chan struct{})
	}
}

// dialogOpened is closed when the next dialog opens.
func (t *tab) dialogOpened() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened
}

// Controller implements browser.Controller over chromedp.
type Controller struct {
	kind        config.BrowserKind
	logger      *zap.Logger
	allocCancel context.CancelFunc
	browserCtx  context.Context

	tabs    map[target.ID]*tab
	current *tab
	path    []string
}

var (
	_ browser.Controller    = (*Controller)(nil)
	_ browser.WindowManager = (*Controller)(nil)
	_ browser.ConsoleReader = (*Controller)(nil)
)

// New launches a browser for cfg. The process lives until Close, whatever
// happens to ctx afterwards.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Controller, error) {
	if !cfg.Kind.ChromeLike() {
		return nil, fmt.Errorf("the cdp driver cannot drive %s", cfg.Kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(cfg)...)
	sugar := logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	// The first Run allocates the browser and must not carry a deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch %s: %w", cfg.Kind, err)
	}

	id := chromedp.FromContext(browserCtx).Target.TargetID
	c := &Controller{
		kind:        cfg.Kind,
		logger:      logger,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		tabs:        make(map[target.ID]*tab),
	}
	c.current = newTab(browserCtx, browserCancel)
	c.tabs[id] = c.current

	logger.Info("Browser launched.", zap.String("kind", string(cfg.Kind)), zap.Bool("headless", cfg.Headless))
	return c, nil
}

// run executes actions on t, bounded by both the tab and ctx.
func (c *Controller) run(ctx context.Context, t *tab, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ctx.Err() != nil {
		return fmt.Errorf("%w: the window was closed", browser.ErrNoSuchWindow)
	}
	runCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return mapError(err)
	}
	return nil
}

// runUntilDialog is run for actions that may open a dialog. The protocol
// call blocks while the dialog is up, so it reports interrupted as soon as
// one opens and leaves the call to finish once the dialog is handled.
func (c *Controller) runUntilDialog(ctx context.Context, t *tab, actions ...chromedp.Action) (interrupted bool, err error) {
	if t.pendingDialog() != nil {
		return false, c.run(ctx, t, actions...)
	}
	opened := t.dialogOpened()
	done := make(chan error, 1)
	go func() { done <- c.run(ctx, t, actions...) }()
	select {
	case err := <-done:
		return false, err
	case <-opened:
		c.logger.Debug("Dialog opened during action.")
		return true, nil
	}
}

// callOn invokes fn with `this` bound to obj. It must run inside an action.
func callOn(ctx context.Context, obj runtime.RemoteObjectID, fn string, byValue bool, args ...any) (*runtime.RemoteObject, error) {
	callArgs, err := arguments(args)
	if err != nil {
		return nil, err
	}
	res, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj).
		WithArguments(callArgs).
		WithReturnByValue(byValue).
		WithAwaitPromise(true).
		WithUserGesture(true).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, scriptError(exc)
	}
	return res, nil
}

// arguments encodes script arguments, passing elements by reference.
func arguments(args []any) ([]*runtime.CallArgument, error) {
	out := make([]*runtime.CallArgument, 0, len(args))
	for i, a := range args {
		if el, ok := a.(*Element); ok {
			out = append(out, &runtime.CallArgument{ObjectID: el.id})
			continue
		}
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d: %w", i, err)
		}
		out = append(out, &runtime.CallArgument{Value: b})
	}
	return out, nil
}

// decode unpacks a by-value result. undefined and null both decode to nil.
func decode(res *runtime.RemoteObject) (any, error) {
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(res.Value, &v); err != nil {
		return nil, fmt.Errorf("decode script result: %w", err)
	}
	return v, nil
}

// withWindow runs fn against the window object of the current frame.
func (c *Controller) withWindow(ctx context.Context, fn func(ctx context.Context, win runtime.RemoteObjectID) error) error {
	return c.run(ctx, c.current, c.windowAction(fn))
}

// windowAction resolves the current frame's window inside an action and
// hands it to fn.
func (c *Controller) windowAction(fn func(ctx context.Context, win runtime.RemoteObjectID) error) chromedp.ActionFunc {
	path := slices.Clone(c.path)
	return func(ctx context.Context) error {
		top, exc, err := runtime.Evaluate("window").Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return scriptError(exc)
		}
		win := top.ObjectID
		held := []runtime.RemoteObjectID{win}
		defer func() { releaseAll(ctx, held) }()
		for _, id := range path {
			res, err := callOn(ctx, win, frameWindowFn, false, id)
			if err != nil {
				return fmt.Errorf("frame %q: %w", id, err)
			}
			if res.ObjectID == "" {
				return fmt.Errorf("frame %q: %w", id, browser.ErrNoSuchFrame)
			}
			win = res.ObjectID
			held = append(held, win)
		}
		return fn(ctx, win)
	}
}

// releaseAll frees remote objects inside an action. It runs after the
// action's work, so it does not give up when ctx has just ended.
func releaseAll(ctx context.Context, ids []runtime.RemoteObjectID) {
	ctx = context.WithoutCancel(ctx)
	for _, id := range ids {
		if id != "" {
			_ = runtime.ReleaseObject(id).Do(ctx)
		}
	}
}

// findIn resolves loc below root and returns handles on t.
func (c *Controller) findIn(ctx context.Context, t *tab, root runtime.RemoteObjectID, loc locator.Locator) ([]browser.Element, error) {
	kind, err := strategy(loc)
	if err != nil {
		return nil, err
	}
	list, err := callOn(ctx, root, findFn, false, kind, loc.Value)
	if err != nil {
		return nil, err
	}
	if list.ObjectID == "" {
		return nil, nil
	}
	defer func() { releaseAll(ctx, []runtime.RemoteObjectID{list.ObjectID}) }()

	n, err := callOn(ctx, list.ObjectID, lengthFn, true)
	if err != nil {
		return nil, err
	}
	var count int
	if err := json.Unmarshal(n.Value, &count); err != nil {
		return nil, fmt.Errorf("decode match count: %w", err)
	}
	ids := make([]runtime.RemoteObjectID, 0, count)
	for i := 0; i < count; i++ {
		item, err := callOn(ctx, list.ObjectID, itemFn, false, i)
		if err != nil {
			releaseAll(ctx, ids)
			return nil, err
		}
		ids = append(ids, item.ObjectID)
	}
	out := make([]browser.Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, &Element{ctrl: c, tab: t, id: id})
	}
	return out, nil
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
	var found []browser.Element
	t := c.current
	err := c.withWindow(ctx, func(ctx context.Context, win runtime.RemoteObjectID) error {
		var err error
		found, err = c.findIn(ctx, t, win, loc)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	return found, nil
}

// ExecuteScript runs a WebDriver style script body in the current frame.
// Results come back by value, so returned DOM nodes arrive as plain objects.
// A script that opens a dialog returns nil once the dialog is up.
func (c *Controller) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	var out any
	fn := wrapScript(script)
	interrupted, err := c.runUntilDialog(ctx, c.current, c.windowAction(func(ctx context.Context, win runtime.RemoteObjectID) error {
		res, err := callOn(ctx, win, fn, true, args...)
		if err != nil {
			return err
		}
		out, err = decode(res)
		return err
	}))
	if interrupted {
		return nil, nil
	}
	if navigatedAway(err) {
		c.logger.Debug("Script navigated away from the page.")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SwitchToFrame enters the child frame whose id, or failing that name, is id.
func (c *Controller) SwitchToFrame(ctx context.Context, id string) error {
	err := c.withWindow(ctx, func(ctx context.Context, win runtime.RemoteObjectID) error {
		res, err := callOn(ctx, win, frameWindowFn, false, id)
		if err != nil {
			return err
		}
		if res.ObjectID == "" {
			return browser.ErrNoSuchFrame
		}
		releaseAll(ctx, []runtime.RemoteObjectID{res.ObjectID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("frame %q: %w", id, err)
	}
	c.path = append(c.path, id)
	return nil
}

func (c *Controller) SwitchToParentFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(c.path) > 0 {
		c.path = c.path[: len(c.path)-1 : len(c.path)-1]
	}
	return nil
}

func (c *Controller) SwitchToDefaultContent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.path = nil
	return nil
}

// WindowHandles lists the page targets of the browser.
func (c *Controller) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runCtx, cancel := CombineContext(c.browserCtx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, mapError(err)
	}
	var handles []string
	for _, info := range infos {
		if info.Type == "page" {
			handles = append(handles, string(info.TargetID))
		}
	}
	return handles, nil
}

// SwitchToWindow attaches to the page target handle on first use.
func (c *Controller) SwitchToWindow(ctx context.Context, handle string) error {
	id := target.ID(handle)
	t, ok := c.tabs[id]
	if !ok || t.ctx.Err() != nil {
		handles, err := c.WindowHandles(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(handles, handle) {
			return fmt.Errorf("window %q: %w", handle, browser.ErrNoSuchWindow)
		}
		tabCtx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(id))
		if err := chromedp.Run(tabCtx); err != nil {
			cancel()
			return fmt.Errorf("attach to window %q: %w", handle, mapError(err))
		}
		t = newTab(tabCtx, cancel)
		c.tabs[id] = t
	}
	c.current, c.path = t, nil
	return nil
}

// CloseCurrentWindow closes the current page target and forgets its tab.
func (c *Controller) CloseCurrentWindow(ctx context.Context) error {
	t := c.current
	if err := c.run(ctx, t, page.Close()); err != nil {
		return fmt.Errorf("close window: %w", err)
	}
	for id, known := range c.tabs {
		if known == t {
			delete(c.tabs, id)
		}
	}
	// The first tab's cancel would end the browser.
	if t.ctx != c.browserCtx {
		t.cancel()
	}
	c.path = nil
	return nil
}

// MaximizeWindow maximizes the OS window holding the current tab.
func (c *Controller) MaximizeWindow(ctx context.Context) error {
	return c.run(ctx, c.current, chromedp.ActionFunc(func(ctx context.Context) error {
		id, _, err := cdpbrowser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		return cdpbrowser.SetWindowBounds(id, &cdpbrowser.Bounds{WindowState: cdpbrowser.WindowStateMaximized}).Do(ctx)
	}))
}

// ConsoleErrors returns the uncaught exceptions and console.error calls the
// current tab reported since the previous call.
func (c *Controller) ConsoleErrors(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.current.drainConsole(), nil
}

func (c *Controller) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := c.run(ctx, c.current, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (c *Controller) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, c.current, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	c.path = nil
	return nil
}

func (c *Controller) TakeScreenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	if err := c.run(ctx, c.current, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, err
	}
	return png, nil
}

func (c *Controller) AlertText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d := c.current.pendingDialog()
	if d == nil {
		return "", browser.ErrNoAlert
	}
	return d.Message, nil
}

func (c *Controller) AcceptAlert(ctx context.Context) error  { return c.closeDialog(ctx, true) }
func (c *Controller) DismissAlert(ctx context.Context) error { return c.closeDialog(ctx, false) }

func (c *Controller) closeDialog(ctx context.Context, accept bool) error {
	if c.current.pendingDialog() == nil {
		return browser.ErrNoAlert
	}
	if err := c.run(ctx, c.current, page.HandleJavaScriptDialog(accept)); err != nil {
		return err
	}
	c.current.clearDialog()
	return nil
}

func (c *Controller) Kind() config.BrowserKind { return c.kind }

// Close detaches from every tab and shuts the browser down.
func (c *Controller) Close(ctx context.Context) error {
	for id, t := range c.tabs {
		if t.ctx != c.browserCtx {
			t.cancel()
		}
		delete(c.tabs, id)
	}
	err := chromedp.Cancel(c.browserCtx)
	c.allocCancel()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	c.logger.Info("Browser closed.")
	return nil
}
