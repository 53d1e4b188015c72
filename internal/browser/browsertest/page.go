// File: internal/browser/browsertest/page.go
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/js"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// ScriptFunc handles one script for a Page. It runs without the page lock.
type ScriptFunc func(args []any) (any, error)

// PNG is the screenshot payload returned unless screenshots are failed.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type window struct {
	handle string
	url    string
}

// Page is an in-memory browser.Controller.
type Page struct {
	mu sync.Mutex

	kind  config.BrowserKind
	top   *Document
	stack []*Node // iframes entered, outermost first

	findErrs   map[locator.Locator][]error
	findCounts map[locator.Locator]int
	scripts    map[string]ScriptFunc
	scriptLog  []string
	switchLog  []string

	windows []window
	current int
	nextWin int

	alert        *string
	alertResults []string

	screenshotErr error
	consoleErrs   []string
	maximized     bool
	domLoaded     float64
	reloads       int
	closed        bool
}

var (
	_ browser.Controller    = (*Page)(nil)
	_ browser.WindowManager = (*Page)(nil)
	_ browser.ConsoleReader = (*Page)(nil)
)

// PageOption configures a Page.
type PageOption func(*Page)

// WithKind sets the browser family the page reports.
func WithKind(k config.BrowserKind) PageOption { return func(p *Page) { p.kind = k } }

// NewPage returns a page with an empty, loaded top document in a single window.
func NewPage(opts ...PageOption) *Page {
	p := &Page{
		kind:       config.KindChrome,
		top:        NewDocument(),
		findErrs:   map[locator.Locator][]error{},
		findCounts: map[locator.Locator]int{},
		scripts:    map[string]ScriptFunc{},
		windows:    []window{{handle: "window-0", url: "about:blank"}},
		nextWin:    1,
		domLoaded:  1.25,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Top returns the top level document.
func (p *Page) Top() *Document { return p.top }

// --- test controls ---

// Mutate runs fn with the page lock held.
func (p *Page) Mutate(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

// After runs fn under the page lock once d has elapsed.
func (p *Page) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { p.Mutate(fn) })
}

// Show makes n displayed.
func (p *Page) Show(n *Node) { p.Mutate(func() { n.hidden = false }) }

// Hide makes n not displayed.
func (p *Page) Hide(n *Node) { p.Mutate(func() { n.hidden = true }) }

// Enable makes n enabled.
func (p *Page) Enable(n *Node) { p.Mutate(func() { n.disabled = false }) }

// Remove detaches n; existing handles to it go stale.
func (p *Page) Remove(n *Node) {
	p.Mutate(func() { detach(n) })
}

// Replace swaps old for repl at the same position; handles to old go stale.
func (p *Page) Replace(old, repl *Node) {
	p.Mutate(func() {
		parent := old.parent
		for i, c := range parent.children {
			if c == old {
				repl.parent = parent
				repl.adopt(parent.doc)
				parent.children[i] = repl
				break
			}
		}
		markRemoved(old)
	})
}

// Append adds n under parent while the page is live.
func (p *Page) Append(parent *Node, n *Node) {
	p.Mutate(func() { parent.Add(n) })
}

// AppendTo adds n to d's body while the page is live.
func (p *Page) AppendTo(d *Document, n *Node) {
	p.Mutate(func() { d.Add(n) })
}

// SetReadyState changes a document's ready state.
func (p *Page) SetReadyState(d *Document, state string) {
	p.Mutate(func() { d.readyState = state })
}

// FailReadyState makes reading d's ready state raise err.
func (p *Page) FailReadyState(d *Document, err error) {
	p.Mutate(func() { d.readyErr = err })
}

// FailFind queues errors returned by the next lookups of loc, in order.
func (p *Page) FailFind(loc locator.Locator, errs ...error) {
	p.Mutate(func() { p.findErrs[loc] = append(p.findErrs[loc], errs...) })
}

// HandleScript overrides the page's handling of one exact script.
func (p *Page) HandleScript(script string, fn ScriptFunc) {
	p.Mutate(func() { p.scripts[script] = fn })
}

// FailScreenshots makes TakeScreenshot return err.
func (p *Page) FailScreenshots(err error) { p.Mutate(func() { p.screenshotErr = err }) }

// OpenAlert opens a dialog with the given text.
func (p *Page) OpenAlert(text string) { p.Mutate(func() { p.alert = &text }) }

// OpenWindow adds a window and returns its handle.
func (p *Page) OpenWindow(url string) string {
	var h string
	p.Mutate(func() { h = p.openWindowLocked(url) })
	return h
}

// CloseWindow removes a window.
func (p *Page) CloseWindow(handle string) {
	p.Mutate(func() {
		for i, w := range p.windows {
			if w.handle == handle {
				p.windows = append(p.windows[:i], p.windows[i+1:]...)
				if p.current >= len(p.windows) {
					p.current = len(p.windows) - 1
				}
				return
			}
		}
	})
}

// LogConsoleError records a severe console entry.
func (p *Page) LogConsoleError(msg string) {
	p.Mutate(func() { p.consoleErrs = append(p.consoleErrs, msg) })
}

// --- assertions ---

// Maximized reports whether MaximizeWindow was called.
func (p *Page) Maximized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maximized
}

// Clicks returns how many clicks (native or script) n received.
func (p *Page) Clicks(n *Node) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return n.clicks
}

// Events returns the interaction events n received, in order.
func (p *Page) Events(n *Node) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), n.events...)
}

// Value returns n's value attribute.
func (p *Page) Value(n *Node) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return n.attrs["value"]
}

// IsSelected reports n's selection state.
func (p *Page) IsSelected(n *Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return n.selected
}

// FindCount returns how many times loc was looked up from the document or an element.
func (p *Page) FindCount(loc locator.Locator) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findCounts[loc]
}

// CurrentFrame returns the ids of the frames the controller is switched into.
func (p *Page) CurrentFrame() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.stack))
	for _, f := range p.stack {
		out = append(out, frameName(f))
	}
	return out
}

// SwitchLog returns every frame switch issued, as "default", "parent" or "frame:<id>".
func (p *Page) SwitchLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.switchLog...)
}

// Scripts returns every script executed, in order.
func (p *Page) Scripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scriptLog...)
}

// AlertResults returns "accept" or "dismiss" for every dialog closed.
func (p *Page) AlertResults() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.alertResults...)
}

// Reloads returns how many times the page was reloaded.
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// --- browser.Controller ---

func (p *Page) FindElement(ctx context.Context, loc locator.Locator) (browser.Element, error) {
	els, err := p.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)
	}
	return els[0], nil
}

func (p *Page) FindElements(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return nil, err
	}
	p.findCounts[loc]++
	if err := p.popFindErrLocked(loc); err != nil {
		return nil, err
	}
	doc, err := p.currentDocLocked()
	if err != nil {
		return nil, err
	}
	nodes, err := query(doc.root, loc)
	if err != nil {
		return nil, err
	}
	return p.handles(nodes), nil
}

func (p *Page) ExecuteScript(ctx context.Context, script string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if err := p.usableLocked(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.scriptLog = append(p.scriptLog, script)
	for _, a := range args {
		if h, ok := a.(*Handle); ok {
			if err := h.liveLocked(); err != nil {
				p.mu.Unlock()
				return nil, err
			}
		}
	}
	if fn, ok := p.scripts[script]; ok {
		p.mu.Unlock()
		return fn(args)
	}
	res, hook, err := p.runBuiltinLocked(script, args)
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return res, err
}

func (p *Page) SwitchToFrame(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	doc, err := p.currentDocLocked()
	if err != nil {
		return err
	}
	for _, f := range doc.iframes() {
		if f.attrs["id"] == id || f.attrs["name"] == id {
			p.stack = append(p.stack, f)
			p.switchLog = append(p.switchLog, "frame:"+id)
			return nil
		}
	}
	return fmt.Errorf("frame %q: %w", id, browser.ErrNoSuchFrame)
}

func (p *Page) SwitchToParentFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	if len(p.stack) > 0 {
		p.stack = p.stack[:len(p.stack)-1]
	}
	p.switchLog = append(p.switchLog, "parent")
	return nil
}

func (p *Page) SwitchToDefaultContent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	p.stack = nil
	p.switchLog = append(p.switchLog, "default")
	return nil
}

func (p *Page) WindowHandles(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(p.windows))
	for _, w := range p.windows {
		out = append(out, w.handle)
	}
	return out, nil
}

func (p *Page) SwitchToWindow(ctx context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	for i, w := range p.windows {
		if w.handle == handle {
			p.current = i
			p.stack = nil
			return nil
		}
	}
	return fmt.Errorf("window %q: %w", handle, browser.ErrNoSuchWindow)
}

// CloseCurrentWindow closes the current window. The page is then in no
// window until SwitchToWindow.
func (p *Page) CloseCurrentWindow(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	if err := p.windowLocked(); err != nil {
		return err
	}
	p.windows = append(p.windows[:p.current], p.windows[p.current+1:]...)
	p.current = -1
	p.stack = nil
	return nil
}

func (p *Page) MaximizeWindow(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	p.maximized = true
	return nil
}

func (p *Page) ConsoleErrors(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return nil, err
	}
	out := p.consoleErrs
	p.consoleErrs = nil
	return out, nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return "", err
	}
	if err := p.windowLocked(); err != nil {
		return "", err
	}
	return p.windows[p.current].url, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return err
	}
	if err := p.windowLocked(); err != nil {
		return err
	}
	p.windows[p.current].url = url
	p.stack = nil
	return nil
}

func (p *Page) TakeScreenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return nil, err
	}
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return append([]byte(nil), PNG...), nil
}

func (p *Page) AlertText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alert == nil {
		return "", browser.ErrNoAlert
	}
	return *p.alert, nil
}

func (p *Page) AcceptAlert(ctx context.Context) error { return p.closeAlert("accept") }

func (p *Page) DismissAlert(ctx context.Context) error { return p.closeAlert("dismiss") }

func (p *Page) closeAlert(result string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alert == nil {
		return browser.ErrNoAlert
	}
	p.alert = nil
	p.alertResults = append(p.alertResults, result)
	return nil
}

func (p *Page) Kind() config.BrowserKind { return p.kind }

func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// --- internals ---

func (p *Page) usableLocked() error {
	if p.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

func (p *Page) windowLocked() error {
	if p.current < 0 || p.current >= len(p.windows) {
		return fmt.Errorf("current window was closed: %w", browser.ErrNoSuchWindow)
	}
	return nil
}

func (p *Page) currentDocLocked() (*Document, error) {
	if len(p.stack) == 0 {
		return p.top, nil
	}
	f := p.stack[len(p.stack)-1]
	if f.removed {
		return nil, fmt.Errorf("frame %q was detached: %w", frameName(f), browser.ErrNoSuchFrame)
	}
	return f.content, nil
}

func (p *Page) popFindErrLocked(loc locator.Locator) error {
	q := p.findErrs[loc]
	if len(q) == 0 {
		return nil
	}
	p.findErrs[loc] = q[1:]
	return q[0]
}

func (p *Page) handles(nodes []*Node) []browser.Element {
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Handle{page: p, node: n})
	}
	return out
}

func (p *Page) openWindowLocked(url string) string {
	h := fmt.Sprintf("window-%d", p.nextWin)
	p.nextWin++
	p.windows = append(p.windows, window{handle: h, url: url})
	return h
}

// runBuiltinLocked evaluates the scripts the engine ships. The returned hook,
// if any, must run after the lock is released.
func (p *Page) runBuiltinLocked(script string, args []any) (any, func(), error) {
	doc, err := p.currentDocLocked()
	if err != nil {
		return nil, nil, err
	}

	switch script {
	case js.ReadyState:
		if doc.readyErr != nil {
			return nil, nil, doc.readyErr
		}
		return doc.readyState, nil, nil

	case js.Click:
		n, err := nodeArg(args, 0)
		if err != nil {
			return nil, nil, err
		}
		if n.disabled {
			return nil, nil, nil
		}
		n.clicks++
		n.events = append(n.events, "script-click")
		return nil, n.onClick, nil

	case js.DoubleClick:
		n, err := nodeArg(args, 0)
		if err != nil {
			return nil, nil, err
		}
		n.events = append(n.events, "dblclick")
		return nil, nil, nil

	case js.ContextClick:
		n, err := nodeArg(args, 0)
		if err != nil {
			return nil, nil, err
		}
		n.events = append(n.events, "contextmenu")
		return nil, nil, nil

	case js.Hover:
		n, err := nodeArg(args, 0)
		if err != nil {
			return nil, nil, err
		}
		n.events = append(n.events, "hover")
		return nil, nil, nil

	case js.ScrollIntoView:
		n, err := nodeArg(args, 0)
		if err != nil {
			return nil, nil, err
		}
		n.events = append(n.events, "scroll")
		if n.obscured > 0 {
			n.obscured--
		}
		return nil, nil, nil

	case js.InView:
		n, err := nodeArg(args, 0)
		if err != nil {
			return nil, nil, err
		}
		return n.visible() && n.obscured == 0, nil, nil

	case js.SelectOption:
		return selectOption(args)

	case js.SelectOptions:
		n, err := nodeArg(args, 0)
		if err != nil {
			return nil, nil, err
		}
		var texts []any
		for _, o := range options(n) {
			texts = append(texts, o.text)
		}
		return texts, nil, nil

	case js.DOMContentLoaded:
		return p.domLoaded, nil, nil

	case js.Reload:
		p.reloads++
		return nil, nil, nil

	case js.OpenTab:
		url, _ := args[0].(string)
		p.openWindowLocked(url)
		return nil, nil, nil
	}

	for i, f := range doc.iframes() {
		if (f.attrs["id"] != "" && script == js.FrameReadyStateByID(f.attrs["id"])) || script == js.FrameReadyStateByIndex(i) {
			if f.content.readyErr != nil {
				return nil, nil, f.content.readyErr
			}
			return f.content.readyState, nil, nil
		}
	}

	return nil, nil, fmt.Errorf("%w: browsertest has no handler for script %q", browser.ErrScriptFailed, script)
}

func selectOption(args []any) (any, func(), error) {
	n, err := nodeArg(args, 0)
	if err != nil {
		return nil, nil, err
	}
	if n.tag != "select" {
		return -2, nil, nil
	}
	by, _ := args[1].(string)
	for i, o := range options(n) {
		var hit bool
		switch by {
		case "value":
			hit = o.attrs["value"] == fmt.Sprint(args[2])
		case "text":
			hit = o.text == fmt.Sprint(args[2])
		case "index":
			switch want := args[2].(type) {
			case int:
				hit = i == want
			case float64:
				hit = float64(i) == want
			}
		}
		if hit {
			for _, other := range options(n) {
				other.selected = false
			}
			o.selected = true
			n.events = append(n.events, "change")
			return i, nil, nil
		}
	}
	return -1, nil, nil
}

func options(sel *Node) []*Node {
	var out []*Node
	for _, c := range sel.descendants() {
		if c.tag == "option" {
			out = append(out, c)
		}
	}
	return out
}

func nodeArg(args []any, i int) (*Node, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing argument %d", browser.ErrScriptFailed, i)
	}
	h, ok := args[i].(*Handle)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d is %T, not an element", browser.ErrScriptFailed, i, args[i])
	}
	return h.node, nil
}

func frameName(f *Node) string {
	if id := f.attrs["id"]; id != "" {
		return id
	}
	return f.attrs["name"]
}

func detach(n *Node) {
	if parent := n.parent; parent != nil {
		for i, c := range parent.children {
			if c == n {
				parent.children = append(parent.children[:i], parent.children[i+1:]...)
				break
			}
		}
	}
	markRemoved(n)
}

func markRemoved(n *Node) {
	n.removed = true
	for _, c := range n.children {
		markRemoved(c)
	}
}
