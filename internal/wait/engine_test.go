// File: internal/wait/engine_test.go
package wait

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/browsertest"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/mocks"
	"github.com/xkilldash9x/crmpilot/internal/pageready"
	"github.com/xkilldash9x/crmpilot/internal/poll"
)

const (
	interval = 10 * time.Millisecond
	timeout  = 400 * time.Millisecond
	slack    = 150 * time.Millisecond
)

type fixture struct {
	page   *browsertest.Page
	frames *browser.Switcher
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	p := browsertest.NewPage()
	sw := browser.NewSwitcher(p, logger)
	gate := pageready.New(p, sw, interval, timeout, logger)
	return &fixture{
		page:   p,
		frames: sw,
		engine: New(p, sw, poll.New(timeout, interval, logger), gate, logger),
	}
}

func TestVisibleAfterDelayedShow(t *testing.T) {
	f := newFixture(t)
	btn := f.page.Top().Add(browsertest.El("button", "id", "save").Hidden())
	showTimer := time.AfterFunc(60*time.Millisecond, func() { f.page.Show(btn) })
	defer showTimer.Stop()

	start := time.Now()
	el, err := f.engine.Await(context.Background(), locator.ID("save"), Visible)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Same(t, btn, el.(*browsertest.Handle).Node())
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 60*time.Millisecond+interval+slack)
}

func TestTimeoutIsBounded(t *testing.T) {
	f := newFixture(t)
	const bound = 80 * time.Millisecond

	start := time.Now()
	err := f.engine.For(context.Background(), locator.ID("never"), Visible, WithTimeout(bound))
	elapsed := time.Since(start)

	var te *browser.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "wait visible", te.Op)
	assert.Equal(t, locator.ID("never").String(), te.Target)
	assert.ErrorIs(t, te.Last, browser.ErrElementNotFound)
	assert.GreaterOrEqual(t, elapsed, bound)
	assert.Less(t, elapsed, bound+interval+slack)
}

func TestDescriptionReplacesTarget(t *testing.T) {
	f := newFixture(t)
	err := f.engine.For(context.Background(), locator.ID("never"), Exists, WithTimeout(20*time.Millisecond), WithDescription("Save button"))

	var te *browser.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "Save button", te.Target)
}

func TestReResolvesReplacedElement(t *testing.T) {
	f := newFixture(t)
	old := f.page.Top().Add(browsertest.El("input", "id", "name").Disabled())
	fresh := browsertest.El("input", "id", "name")
	timer := time.AfterFunc(40*time.Millisecond, func() { f.page.Replace(old, fresh) })
	defer timer.Stop()

	el, err := f.engine.Await(context.Background(), locator.ID("name"), Enabled)
	require.NoError(t, err)
	assert.Same(t, fresh, el.(*browsertest.Handle).Node())
	assert.Greater(t, f.page.FindCount(locator.ID("name")), 1, "every attempt resolves the locator again")
}

func TestNotExist(t *testing.T) {
	ctx := context.Background()

	t.Run("absent element succeeds at once", func(t *testing.T) {
		f := newFixture(t)
		start := time.Now()
		require.NoError(t, f.engine.For(ctx, locator.ID("gone"), NotExist))
		assert.Less(t, time.Since(start), timeout/2)
		assert.Equal(t, 1, f.page.FindCount(locator.ID("gone")))
	})

	t.Run("removal ends the wait", func(t *testing.T) {
		f := newFixture(t)
		spinner := f.page.Top().Add(browsertest.El("div", "id", "spinner"))
		timer := time.AfterFunc(40*time.Millisecond, func() { f.page.Remove(spinner) })
		defer timer.Stop()

		require.NoError(t, f.engine.For(ctx, locator.ID("spinner"), NotExist))
	})

	t.Run("lookup failure counts as absent", func(t *testing.T) {
		f := newFixture(t)
		f.page.FailFind(locator.ID("spinner"), browser.ErrStaleReference)
		require.NoError(t, f.engine.For(ctx, locator.ID("spinner"), NotExist))
	})

	t.Run("element that stays times out", func(t *testing.T) {
		f := newFixture(t)
		f.page.Top().Add(browsertest.El("div", "id", "spinner"))
		err := f.engine.For(ctx, locator.ID("spinner"), NotExist, WithTimeout(40*time.Millisecond))
		assert.ErrorIs(t, err, browser.ErrTimeout)
	})
}

func TestInvisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	overlay := f.page.Top().Add(browsertest.El("div", "id", "overlay"))

	timer := time.AfterFunc(30*time.Millisecond, func() { f.page.Hide(overlay) })
	defer timer.Stop()
	require.NoError(t, f.engine.For(ctx, locator.ID("overlay"), Invisible))

	els, err := f.page.FindElements(ctx, locator.ID("overlay"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	f.page.Remove(overlay)

	start := time.Now()
	require.NoError(t, f.engine.ForElement(ctx, els[0], Invisible), "a stale handle is no longer visible")
	assert.Less(t, time.Since(start), timeout/2)
}

func TestStaleHandleNeverBecomesVisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := f.page.Top().Add(browsertest.El("div", "id", "x"))
	el, err := f.page.FindElement(ctx, locator.ID("x"))
	require.NoError(t, err)
	f.page.Remove(n)

	err = f.engine.ForElement(ctx, el, Visible, WithTimeout(30*time.Millisecond))
	var te *browser.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, te.Last, browser.ErrStaleReference)
}

func TestInvalidConditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	loc := locator.ID("x")

	tests := []struct {
		name string
		cond Condition
		opts []Option
	}{
		{"unknown", Condition(99), nil},
		{"zero", Condition(0), nil},
		{"attribute without name", AttributePresent, nil},
		{"attribute value without value", AttributeValueContains, []Option{WithAttribute("class")}},
		{"text without text", TextPresent, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.For(ctx, loc, tt.cond, tt.opts...)
			assert.ErrorIs(t, err, browser.ErrInvalidCondition)
		})
	}
	assert.Zero(t, f.page.FindCount(loc), "invalid conditions fail before touching the page")
}

func TestFatalErrorStopsWait(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("invalid session id")
	f.page.FailFind(locator.ID("x"), boom)

	start := time.Now()
	err := f.engine.For(context.Background(), locator.ID("x"), Visible)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, browser.ErrTimeout)
	assert.Less(t, time.Since(start), timeout/2)
}

func TestClickable(t *testing.T) {
	f := newFixture(t)
	btn := f.page.Top().Add(browsertest.El("button", "id", "go").Hidden().Disabled())
	t1 := time.AfterFunc(20*time.Millisecond, func() { f.page.Show(btn) })
	t2 := time.AfterFunc(50*time.Millisecond, func() { f.page.Enable(btn) })
	defer t1.Stop()
	defer t2.Stop()

	start := time.Now()
	require.NoError(t, f.engine.For(context.Background(), locator.ID("go"), Clickable))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFrameAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		f := newFixture(t)
		f.page.Top().AddFrame("contentIFrame0")

		el, err := f.engine.Await(ctx, locator.ID("contentIFrame0"), FrameAvailable)
		require.NoError(t, err)
		assert.Nil(t, el)
		assert.Equal(t, []string{"contentIFrame0"}, f.page.CurrentFrame())
		assert.Equal(t, "default>contentIFrame0", f.frames.Current().String())
	})

	t.Run("falls back to name", func(t *testing.T) {
		f := newFixture(t)
		f.page.Top().AddFrame("", "name", "nav", "class", "panel")

		require.NoError(t, f.engine.For(ctx, locator.ClassName("panel"), FrameAvailable))
		assert.Equal(t, []string{"nav"}, f.frames.Current().Path())
	})

	t.Run("hidden frame is not available", func(t *testing.T) {
		f := newFixture(t)
		f.page.Top().AddFrame("later", "style", "display:none")

		err := f.engine.For(ctx, locator.ID("later"), FrameAvailable, WithTimeout(30*time.Millisecond))
		assert.ErrorIs(t, err, browser.ErrTimeout)
		assert.True(t, f.frames.Current().IsDefault())
	})
}

func TestSelectPopulated(t *testing.T) {
	f := newFixture(t)
	sel := f.page.Top().Add(browsertest.El("select", "id", "country").Add(browsertest.Option("", "--Select--")))
	timer := time.AfterFunc(30*time.Millisecond, func() { f.page.Append(sel, browsertest.Option("de", "Germany")) })
	defer timer.Stop()

	require.NoError(t, f.engine.For(context.Background(), locator.ID("country"), SelectPopulated))
}

func TestAttributeConditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	row := f.page.Top().Add(browsertest.El("tr", "id", "row", "class", "row busy"))
	loc := locator.ID("row")

	require.NoError(t, f.engine.For(ctx, loc, AttributePresent, WithAttribute("class")))
	require.NoError(t, f.engine.For(ctx, loc, AttributeValueContains, WithAttribute("class"), WithValue("busy")))

	timer := time.AfterFunc(30*time.Millisecond, func() {
		f.page.Replace(row, browsertest.El("tr", "id", "row", "class", "row"))
	})
	defer timer.Stop()
	require.NoError(t, f.engine.For(ctx, loc, AttributeValueAbsent, WithAttribute("class"), WithValue("busy")))

	err := f.engine.For(ctx, loc, AttributePresent, WithAttribute("data-id"), WithTimeout(20*time.Millisecond))
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestTextConditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	status := f.page.Top().Add(browsertest.El("span", "id", "status").WithText("Saving..."))
	timer := time.AfterFunc(30*time.Millisecond, func() {
		f.page.Replace(status, browsertest.El("span", "id", "status").WithText("Saved"))
	})
	defer timer.Stop()

	require.NoError(t, f.engine.ForTextIn(ctx, locator.ID("status"), "Saving", false))
	require.NoError(t, f.engine.ForTextIn(ctx, locator.ID("status"), "Saved", true))
	require.NoError(t, f.engine.ForText(ctx, "Saved", true))
}

func TestAllVisible(t *testing.T) {
	f := newFixture(t)
	f.page.Top().Add(browsertest.El("li", "class", "item"))
	second := f.page.Top().Add(browsertest.El("li", "class", "item").Hidden())
	timer := time.AfterFunc(30*time.Millisecond, func() { f.page.Show(second) })
	defer timer.Stop()

	start := time.Now()
	require.NoError(t, f.engine.For(context.Background(), locator.ClassName("item"), AllVisible))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAlertPresent(t *testing.T) {
	f := newFixture(t)
	timer := time.AfterFunc(30*time.Millisecond, func() { f.page.OpenAlert("Are you sure?") })
	defer timer.Stop()

	require.NoError(t, f.engine.For(context.Background(), locator.Locator{}, AlertPresent))
}

func TestForWindowCount(t *testing.T) {
	f := newFixture(t)
	timer := time.AfterFunc(30*time.Millisecond, func() { f.page.OpenWindow("https://crm.example/report") })
	defer timer.Stop()

	require.NoError(t, f.engine.ForWindowCount(context.Background(), 2))

	err := f.engine.ForWindowCount(context.Background(), 3, WithTimeout(20*time.Millisecond))
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestForLoader(t *testing.T) {
	f := newFixture(t)
	loader := f.page.Top().Add(browsertest.El("div", "id", "loader"))
	timer := time.AfterFunc(20*time.Millisecond, func() { f.page.Hide(loader) })
	defer timer.Stop()

	require.NoError(t, f.engine.ForLoader(context.Background(), locator.ID("loader"), 2, 5*time.Millisecond))
}

// settleClock records pauses instead of sleeping.
type settleClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *settleClock) Now() time.Time { return time.Now() }

func (c *settleClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

func TestForLoaderSettlesOnEngineClock(t *testing.T) {
	f := newFixture(t)
	f.page.Top().Add(browsertest.El("div", "id", "loader").Hidden())
	clock := &settleClock{}

	start := time.Now()
	err := f.engine.WithClock(clock).ForLoader(context.Background(), locator.ID("loader"), 3, time.Hour)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []time.Duration{time.Hour, time.Hour, time.Hour}, clock.sleeps)
}

// releasable counts how often its remote handle was freed.
type releasable struct {
	*mocks.MockElement
	released int
}

func (r *releasable) Release(context.Context) error {
	r.released++
	return nil
}

func TestWaitReleasesUnusedHandles(t *testing.T) {
	logger := zaptest.NewLogger(t)
	first := &releasable{MockElement: new(mocks.MockElement)}
	second := &releasable{MockElement: new(mocks.MockElement)}
	ctrl := new(mocks.MockController)
	ctrl.On("FindElements", mock.Anything, locator.CSS("tr.deal")).Return([]browser.Element{first, second}, nil)
	engine := New(ctrl, browser.NewSwitcher(ctrl, logger), poll.New(timeout, interval, logger), nil, logger)

	t.Run("kept handle survives", func(t *testing.T) {
		first.On("IsDisplayed", mock.Anything).Return(true, nil).Once()
		el, err := engine.Await(context.Background(), locator.CSS("tr.deal"), Visible)
		require.NoError(t, err)
		assert.Same(t, first, el)
		assert.Equal(t, 0, first.released)
		assert.Equal(t, 1, second.released)
	})

	t.Run("negative condition keeps nothing", func(t *testing.T) {
		first.On("IsDisplayed", mock.Anything).Return(false, nil).Once()
		require.NoError(t, engine.For(context.Background(), locator.CSS("tr.deal"), Invisible))
		assert.Equal(t, 1, first.released)
		assert.Equal(t, 2, second.released)
	})
}

func TestPageReadyDelegatesToGate(t *testing.T) {
	f := newFixture(t)
	f.page.Top().Loading("loading")
	timer := time.AfterFunc(30*time.Millisecond, func() { f.page.SetReadyState(f.page.Top(), "complete") })
	defer timer.Stop()

	require.NoError(t, f.engine.For(context.Background(), locator.Locator{}, PageReady))
	assert.Contains(t, f.page.SwitchLog(), "default")
}

func TestPageReadyHonorsPerCallTimeout(t *testing.T) {
	f := newFixture(t)
	f.page.Top().Loading("loading")
	const bound = 50 * time.Millisecond

	start := time.Now()
	err := f.engine.For(context.Background(), locator.Locator{}, PageReady, WithTimeout(bound))
	elapsed := time.Since(start)

	var te *browser.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, bound, te.Timeout)
	assert.GreaterOrEqual(t, elapsed, bound)
	assert.Less(t, elapsed, bound+interval+slack)

	err = f.engine.ForElement(context.Background(), nil, PageReady, WithTimeout(bound))
	require.ErrorAs(t, err, &te)
	assert.Equal(t, bound, te.Timeout)
}

func TestParseCondition(t *testing.T) {
	for c, name := range conditionNames {
		got, err := ParseCondition(name)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCondition("Frame-Available")
	require.NoError(t, err)
	assert.Equal(t, FrameAvailable, got)

	_, err = ParseCondition("sparkling")
	assert.ErrorIs(t, err, browser.ErrInvalidCondition)
	assert.Equal(t, "Condition(42)", Condition(42).String())
}
