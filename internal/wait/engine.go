// File: internal/wait/engine.go

// Package wait blocks until a condition holds on the page. Every condition
// is evaluated by re-resolving its locator on each attempt, so a node that
// the page replaces between attempts never poisons the wait.
package wait

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/observability"
	"github.com/xkilldash9x/crmpilot/internal/pageready"
	"github.com/xkilldash9x/crmpilot/internal/poll"
)

var (
	errNotDisplayed   = errors.New("element not displayed")
	errStillDisplayed = errors.New("element still displayed")
	errStillPresent   = errors.New("element still present")
	errNotEnabled     = errors.New("element not enabled")
	errNotSelected    = errors.New("element not selected")
	errNotPopulated   = errors.New("select has no options beyond the placeholder")
	errAttrMismatch   = errors.New("attribute does not match")
	errTextMismatch   = errors.New("text does not match")
	errWindowCount    = errors.New("window count differs")
)

const releaseTimeout = 5 * time.Second

type request struct {
	timeout     time.Duration
	description string
	attribute   string
	value       string
	text        string
}

// Option adjusts a single wait.
type Option func(*request)

// WithTimeout overrides the engine's default bound for one wait.
func WithTimeout(d time.Duration) Option { return func(r *request) { r.timeout = d } }

// WithDescription replaces the locator in logs and errors with a readable name.
func WithDescription(s string) Option { return func(r *request) { r.description = s } }

// WithAttribute names the attribute for the attribute conditions.
func WithAttribute(name string) Option { return func(r *request) { r.attribute = name } }

// WithValue sets the substring the attribute value conditions look for.
func WithValue(v string) Option { return func(r *request) { r.value = v } }

// WithText sets the substring the text conditions look for.
func WithText(s string) Option { return func(r *request) { r.text = s } }

func newRequest(opts []Option) request {
	var r request
	for _, o := range opts {
		o(&r)
	}
	return r
}

func (r request) target(fallback string) string {
	if r.description != "" {
		return r.description
	}
	return fallback
}

// Engine evaluates conditions against one controller.
type Engine struct {
	ctrl   browser.Controller
	frames *browser.Switcher
	poller *poll.Poller
	gate   *pageready.Gate
	clock  poll.Clock
	logger *zap.Logger
}

// New returns an Engine. The poller carries the default timeout and interval.
func New(ctrl browser.Controller, frames *browser.Switcher, poller *poll.Poller, gate *pageready.Gate, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ctrl:   ctrl,
		frames: frames,
		poller: poller,
		gate:   gate,
		clock:  poll.RealClock,
		logger: logger.Named("wait"),
	}
}

// WithClock returns a copy of e whose polling and settle pauses run on c.
func (e *Engine) WithClock(c poll.Clock) *Engine {
	cp := *e
	cp.clock = c
	cp.poller = e.poller.WithClock(c)
	return &cp
}

// Timeout returns the default bound applied when no WithTimeout is given.
func (e *Engine) Timeout() time.Duration { return e.poller.Timeout() }

// For blocks until cond holds for loc. It returns nil on success, a
// *browser.TimeoutError when the bound elapses, or the first non-transient
// driver error.
func (e *Engine) For(ctx context.Context, loc locator.Locator, cond Condition, opts ...Option) error {
	_, err := e.Await(ctx, loc, cond, opts...)
	return err
}

// Await is For that also returns the element that satisfied cond, when the
// condition is about a single element. It is nil for the negative, page and
// alert conditions.
func (e *Engine) Await(ctx context.Context, loc locator.Locator, cond Condition, opts ...Option) (browser.Element, error) {
	req := newRequest(opts)
	if err := cond.validate(req); err != nil {
		return nil, err
	}
	if cond == PageReady {
		return nil, e.gate.WaitWithin(ctx, req.timeout)
	}

	var found browser.Element
	err := e.poller.WithTimeout(req.timeout).Until(ctx, "wait "+cond.String(), req.target(loc.String()), func(ctx context.Context) poll.Outcome {
		out, el := e.checkLocator(ctx, loc, cond, req)
		if out.IsReady() {
			found = el
		}
		return out
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ForElement blocks until cond holds for an element already in hand. A
// handle that goes stale satisfies the negative conditions and fails the
// others with a timeout, since it can never become valid again.
func (e *Engine) ForElement(ctx context.Context, el browser.Element, cond Condition, opts ...Option) error {
	req := newRequest(opts)
	if err := cond.validate(req); err != nil {
		return err
	}
	if cond == PageReady {
		return e.gate.WaitWithin(ctx, req.timeout)
	}
	return e.poller.WithTimeout(req.timeout).Until(ctx, "wait "+cond.String(), req.target("element"), func(ctx context.Context) poll.Outcome {
		return e.checkElement(ctx, el, cond, req)
	})
}

// ForText waits for some element whose own text contains text to become
// visible, or with visible false, for every such element to be gone or hidden.
func (e *Engine) ForText(ctx context.Context, text string, visible bool, opts ...Option) error {
	cond := Visible
	if !visible {
		cond = Invisible
	}
	return e.For(ctx, locator.TextContains(text), cond, append([]Option{WithDescription(fmt.Sprintf("text %q", text))}, opts...)...)
}

// ForTextIn waits for the text of loc to contain text, or with present
// false, to stop containing it.
func (e *Engine) ForTextIn(ctx context.Context, loc locator.Locator, text string, present bool, opts ...Option) error {
	cond := TextPresent
	if !present {
		cond = TextAbsent
	}
	return e.For(ctx, loc, cond, append(opts[:len(opts):len(opts)], WithText(text))...)
}

// ForWindowCount waits until the browser has exactly n windows.
func (e *Engine) ForWindowCount(ctx context.Context, n int, opts ...Option) error {
	req := newRequest(opts)
	return e.poller.WithTimeout(req.timeout).Until(ctx, "wait window_count", req.target(fmt.Sprintf("%d windows", n)), func(ctx context.Context) poll.Outcome {
		handles, err := e.ctrl.WindowHandles(ctx)
		if err != nil {
			return poll.Classify(err)
		}
		if len(handles) != n {
			return poll.NotYet(fmt.Errorf("%w: have %d", errWindowCount, len(handles)))
		}
		return poll.Ready()
	})
}

// ForLoader waits for a loading indicator to disappear, rounds times, with
// a settle pause after each round. Pages that chain several spinners show
// the same indicator again right after it first goes away.
func (e *Engine) ForLoader(ctx context.Context, loc locator.Locator, rounds int, settle time.Duration, opts ...Option) error {
	logger := observability.OpLogger(e.logger, "waitLoader", loc.String(), e.frames.Current().String())
	for i := 0; i < rounds; i++ {
		if err := e.For(ctx, loc, Invisible, opts...); err != nil {
			return err
		}
		logger.Debug("Loader gone.", zap.Int("round", i+1))
		if settle <= 0 {
			continue
		}
		if err := e.clock.Sleep(ctx, settle); err != nil {
			return err
		}
	}
	return nil
}

// checkLocator resolves loc afresh and evaluates cond once. Handles it does
// not hand back are released before it returns.
func (e *Engine) checkLocator(ctx context.Context, loc locator.Locator, cond Condition, req request) (_ poll.Outcome, kept browser.Element) {
	if cond == AlertPresent {
		return e.checkAlert(ctx), nil
	}

	els, err := e.ctrl.FindElements(ctx, loc)
	defer func() { releaseExcept(ctx, els, kept) }()
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) || errors.Is(err, browser.ErrStaleReference) {
			if cond.staleMeansDone() {
				return poll.Ready(), nil
			}
		}
		return poll.Classify(err), nil
	}

	switch cond {
	case NotExist:
		if len(els) == 0 {
			return poll.Ready(), nil
		}
		return poll.NotYet(errStillPresent), nil

	case AllPresent:
		if len(els) == 0 {
			return poll.NotYet(fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)), nil
		}
		return poll.Ready(), els[0]

	case AllVisible:
		if len(els) == 0 {
			return poll.NotYet(fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)), nil
		}
		for _, el := range els {
			if out := e.checkElement(ctx, el, Visible, req); !out.IsReady() {
				return out, nil
			}
		}
		return poll.Ready(), els[0]

	case Invisible, TextAbsent, AttributeValueAbsent:
		if len(els) == 0 {
			return poll.Ready(), nil
		}
		return e.checkElement(ctx, els[0], cond, req), nil
	}

	if len(els) == 0 {
		return poll.NotYet(fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)), nil
	}
	el := els[0]
	out := e.checkElement(ctx, el, cond, req)
	if !out.IsReady() || cond == FrameAvailable {
		return out, nil
	}
	return out, el
}

func releaseExcept(ctx context.Context, els []browser.Element, kept browser.Element) {
	drop := make([]browser.Element, 0, len(els))
	for _, el := range els {
		if el != kept {
			drop = append(drop, el)
		}
	}
	if len(drop) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	browser.Release(ctx, drop...)
}

// checkElement evaluates cond once against el.
func (e *Engine) checkElement(ctx context.Context, el browser.Element, cond Condition, req request) poll.Outcome {
	out := e.evaluate(ctx, el, cond, req)
	if out.IsNotYet() && errors.Is(out.Err(), browser.ErrStaleReference) && cond.staleMeansDone() {
		return poll.Ready()
	}
	return out
}

func (e *Engine) evaluate(ctx context.Context, el browser.Element, cond Condition, req request) poll.Outcome {
	switch cond {
	case Exists, AllPresent:
		if _, err := el.TagName(ctx); err != nil {
			return poll.Classify(err)
		}
		return poll.Ready()

	case NotExist:
		if _, err := el.TagName(ctx); err != nil {
			return poll.Classify(err)
		}
		return poll.NotYet(errStillPresent)

	case Visible, AllVisible:
		return expect(el.IsDisplayed(ctx))(errNotDisplayed)

	case Invisible:
		shown, err := el.IsDisplayed(ctx)
		if err != nil {
			return poll.Classify(err)
		}
		if shown {
			return poll.NotYet(errStillDisplayed)
		}
		return poll.Ready()

	case Enabled:
		return expect(el.IsEnabled(ctx))(errNotEnabled)

	case Clickable:
		if out := expect(el.IsDisplayed(ctx))(errNotDisplayed); !out.IsReady() {
			return out
		}
		return expect(el.IsEnabled(ctx))(errNotEnabled)

	case ElementSelected:
		return expect(el.IsSelected(ctx))(errNotSelected)

	case SelectPopulated:
		opts, err := el.FindElements(ctx, locator.TagName("option"))
		if err != nil {
			return poll.Classify(err)
		}
		if len(opts) <= 1 {
			return poll.NotYet(errNotPopulated)
		}
		return poll.Ready()

	case FrameAvailable:
		return e.enterFrame(ctx, el)

	case AttributePresent:
		_, ok, err := el.Attribute(ctx, req.attribute)
		if err != nil {
			return poll.Classify(err)
		}
		if !ok {
			return poll.NotYet(fmt.Errorf("%w: %s missing", errAttrMismatch, req.attribute))
		}
		return poll.Ready()

	case AttributeValueContains, AttributeValueAbsent:
		got, _, err := el.Attribute(ctx, req.attribute)
		if err != nil {
			return poll.Classify(err)
		}
		if strings.Contains(got, req.value) == (cond == AttributeValueContains) {
			return poll.Ready()
		}
		return poll.NotYet(fmt.Errorf("%w: %s=%q", errAttrMismatch, req.attribute, got))

	case TextPresent, TextAbsent:
		got, err := el.Text(ctx)
		if err != nil {
			return poll.Classify(err)
		}
		if strings.Contains(got, req.text) == (cond == TextPresent) {
			return poll.Ready()
		}
		return poll.NotYet(fmt.Errorf("%w: %q", errTextMismatch, got))

	case AlertPresent:
		return e.checkAlert(ctx)
	}
	return poll.Fatal(fmt.Errorf("%w: %s", browser.ErrInvalidCondition, cond))
}

// enterFrame switches into the frame element el once it is displayed. The
// frame is addressed by id, falling back to its name.
func (e *Engine) enterFrame(ctx context.Context, el browser.Element) poll.Outcome {
	if out := expect(el.IsDisplayed(ctx))(errNotDisplayed); !out.IsReady() {
		return out
	}
	id, _, err := el.Attribute(ctx, "id")
	if err != nil {
		return poll.Classify(err)
	}
	if id == "" {
		if id, _, err = el.Attribute(ctx, "name"); err != nil {
			return poll.Classify(err)
		}
	}
	if id == "" {
		return poll.Fatal(fmt.Errorf("%w: frame element has neither id nor name", browser.ErrInvalidCondition))
	}
	if err := e.frames.Enter(ctx, id); err != nil {
		return poll.Classify(err)
	}
	return poll.Ready()
}

func (e *Engine) checkAlert(ctx context.Context) poll.Outcome {
	if _, err := e.ctrl.AlertText(ctx); err != nil {
		if errors.Is(err, browser.ErrNoAlert) {
			return poll.NotYet(err)
		}
		return poll.Classify(err)
	}
	return poll.Ready()
}

// expect turns a boolean check into an Outcome, using reason when it is false.
func expect(ok bool, err error) func(reason error) poll.Outcome {
	return func(reason error) poll.Outcome {
		if err != nil {
			return poll.Classify(err)
		}
		if !ok {
			return poll.NotYet(reason)
		}
		return poll.Ready()
	}
}
