// File: internal/interact/interact_test.go
package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/browsertest"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/pageready"
	"github.com/xkilldash9x/crmpilot/internal/poll"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

const (
	interval = 10 * time.Millisecond
	timeout  = 300 * time.Millisecond
)

func newInteractor(t *testing.T, p *browsertest.Page, forceScript bool) *Interactor {
	t.Helper()
	logger := zaptest.NewLogger(t)
	sw := browser.NewSwitcher(p, logger)
	poller := poll.New(timeout, interval, logger)
	gate := pageready.New(p, sw, interval, timeout, logger)
	return New(p, wait.New(p, sw, poller, gate, logger), poller, forceScript, logger)
}

func TestClick(t *testing.T) {
	ctx := context.Background()
	save := locator.ID("save")

	t.Run("stale reference on the first attempt is retried", func(t *testing.T) {
		p := browsertest.NewPage()
		btn := p.Top().Add(browsertest.El("button", "id", "save").FailClicks(browser.ErrStaleReference))
		i := newInteractor(t, p, false)

		require.NoError(t, i.Click(ctx, save, ClickOptions{}))
		assert.Equal(t, 1, p.Clicks(btn))
	})

	t.Run("stale resolution is retried", func(t *testing.T) {
		p := browsertest.NewPage()
		btn := p.Top().Add(browsertest.El("button", "id", "save"))
		p.FailFind(save, browser.ErrStaleReference)
		i := newInteractor(t, p, false)

		require.NoError(t, i.Click(ctx, save, ClickOptions{}))
		assert.Equal(t, 1, p.Clicks(btn))
		assert.Equal(t, 2, p.FindCount(save))
	})

	t.Run("not interactable is retried", func(t *testing.T) {
		p := browsertest.NewPage()
		btn := p.Top().Add(browsertest.El("button", "id", "save").FailClicks(browser.ErrNotInteractable, browser.ErrNotInteractable))
		i := newInteractor(t, p, false)

		require.NoError(t, i.Click(ctx, save, ClickOptions{}))
		assert.Equal(t, 1, p.Clicks(btn))
	})

	t.Run("other driver errors are indeterminate", func(t *testing.T) {
		p := browsertest.NewPage()
		cause := errors.New("unknown error: target window already closed")
		p.Top().Add(browsertest.El("button", "id", "save").FailClicks(cause))
		i := newInteractor(t, p, false)

		start := time.Now()
		err := i.Click(ctx, save, ClickOptions{})
		assert.Less(t, time.Since(start), timeout/2, "indeterminate outcomes are not retried")

		var opErr *browser.OpError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, browser.FailureIndeterminate, opErr.Kind)
		assert.Equal(t, "click", opErr.Op)
		assert.ErrorIs(t, err, browser.ErrIndeterminate)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, browser.ErrTimeout)
	})

	t.Run("waits for enabled and displayed", func(t *testing.T) {
		p := browsertest.NewPage()
		btn := p.Top().Add(browsertest.El("button", "id", "save").Disabled().Hidden())
		t1 := time.AfterFunc(20*time.Millisecond, func() { p.Enable(btn) })
		t2 := time.AfterFunc(40*time.Millisecond, func() { p.Show(btn) })
		defer t1.Stop()
		defer t2.Stop()
		i := newInteractor(t, p, false)

		start := time.Now()
		require.NoError(t, i.Click(ctx, save, ClickOptions{}))
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
		assert.Equal(t, []string{"click"}, p.Events(btn))
	})

	t.Run("replaced element is clicked", func(t *testing.T) {
		p := browsertest.NewPage()
		old := p.Top().Add(browsertest.El("button", "id", "save").Disabled())
		fresh := browsertest.El("button", "id", "save")
		timer := time.AfterFunc(30*time.Millisecond, func() { p.Replace(old, fresh) })
		defer timer.Stop()
		i := newInteractor(t, p, false)

		require.NoError(t, i.Click(ctx, save, ClickOptions{}))
		assert.Equal(t, 1, p.Clicks(fresh))
		assert.Zero(t, p.Clicks(old))
	})

	t.Run("timeout names the operation and target", func(t *testing.T) {
		p := browsertest.NewPage()
		i := newInteractor(t, p, false)

		start := time.Now()
		err := i.Click(ctx, save, ClickOptions{Timeout: 60 * time.Millisecond, Description: "Save button"})
		elapsed := time.Since(start)

		var te *browser.TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "click", te.Op)
		assert.Equal(t, "Save button", te.Target)
		assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
		assert.Less(t, elapsed, 60*time.Millisecond+interval+150*time.Millisecond)
	})
}

func TestScriptClick(t *testing.T) {
	ctx := context.Background()
	save := locator.ID("save")

	tests := []struct {
		name        string
		kind        config.BrowserKind
		forceScript bool
		opts        ClickOptions
	}{
		{"requested", config.KindChrome, false, ClickOptions{Script: true}},
		{"internet explorer", config.KindIE, false, ClickOptions{}},
		{"forced by configuration", config.KindFirefox, true, ClickOptions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := browsertest.NewPage(browsertest.WithKind(tt.kind))
			btn := p.Top().Add(browsertest.El("button", "id", "save").Hidden())
			i := newInteractor(t, p, tt.forceScript)

			require.NoError(t, i.Click(ctx, save, tt.opts), "script clicks do not need the element displayed")
			assert.Equal(t, []string{"script-click"}, p.Events(btn))
		})
	}
}

func TestClickElementStaleHandle(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage()
	n := p.Top().Add(browsertest.El("button", "id", "save"))
	el, err := p.FindElement(ctx, locator.ID("save"))
	require.NoError(t, err)
	p.Remove(n)
	i := newInteractor(t, p, false)

	err = i.ClickElement(ctx, el, ClickOptions{Timeout: 40 * time.Millisecond})
	var te *browser.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, te.Last, browser.ErrStaleReference)
}

func TestSendKeys(t *testing.T) {
	ctx := context.Background()
	name := locator.ID("name")

	t.Run("waits until the field is usable", func(t *testing.T) {
		p := browsertest.NewPage()
		field := p.Top().Add(browsertest.El("input", "id", "name").Hidden())
		timer := time.AfterFunc(30*time.Millisecond, func() { p.Show(field) })
		defer timer.Stop()
		i := newInteractor(t, p, false)

		require.NoError(t, i.SendKeys(ctx, name, "Contoso Ltd"))
		assert.Equal(t, "Contoso Ltd", p.Value(field))
	})

	t.Run("typing failures are not retried", func(t *testing.T) {
		p := browsertest.NewPage()
		field := p.Top().Add(browsertest.El("input", "id", "name").FailKeys(browser.ErrStaleReference))
		i := newInteractor(t, p, false)

		err := i.SendKeys(ctx, name, "x")
		assert.ErrorIs(t, err, browser.ErrStaleReference)
		assert.Empty(t, p.Value(field))
	})

	t.Run("clear empties the value", func(t *testing.T) {
		p := browsertest.NewPage()
		field := p.Top().Add(browsertest.El("input", "id", "name", "value", "old"))
		i := newInteractor(t, p, false)

		require.NoError(t, i.Clear(ctx, name))
		assert.Empty(t, p.Value(field))
	})
}

func TestText(t *testing.T) {
	p := browsertest.NewPage()
	p.Top().Add(browsertest.El("span", "id", "status").WithText("Saved"))
	i := newInteractor(t, p, false)

	got, err := i.Text(context.Background(), locator.ID("status"))
	require.NoError(t, err)
	assert.Equal(t, "Saved", got)
}

func newCountryPage() (*browsertest.Page, map[string]*browsertest.Node) {
	p := browsertest.NewPage()
	opts := map[string]*browsertest.Node{
		"":   browsertest.Option("", "--Select--"),
		"de": browsertest.Option("de", "Germany"),
		"fr": browsertest.Option("fr", "France"),
	}
	p.Top().Add(browsertest.El("select", "id", "country").Add(opts[""], opts["de"], opts["fr"]))
	return p, opts
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	country := locator.ID("country")

	t.Run("by value", func(t *testing.T) {
		p, opts := newCountryPage()
		i := newInteractor(t, p, false)
		require.NoError(t, i.SelectByValue(ctx, country, "fr"))
		assert.True(t, p.IsSelected(opts["fr"]))
	})

	t.Run("by text", func(t *testing.T) {
		p, opts := newCountryPage()
		i := newInteractor(t, p, false)
		require.NoError(t, i.SelectByText(ctx, country, "Germany"))
		assert.True(t, p.IsSelected(opts["de"]))
	})

	t.Run("by index", func(t *testing.T) {
		p, opts := newCountryPage()
		i := newInteractor(t, p, false)
		require.NoError(t, i.SelectByIndex(ctx, country, 2))
		assert.True(t, p.IsSelected(opts["fr"]))
	})

	t.Run("failures", func(t *testing.T) {
		p, _ := newCountryPage()
		p.Top().Add(browsertest.El("input", "id", "name"))
		p.Top().Add(browsertest.El("select", "class", "dup"), browsertest.El("select", "class", "dup"))
		i := newInteractor(t, p, false)

		assert.ErrorIs(t, i.SelectByValue(ctx, country, "it"), browser.ErrOptionNotFound)
		assert.ErrorIs(t, i.SelectByIndex(ctx, country, 7), browser.ErrOptionNotFound)
		assert.ErrorIs(t, i.SelectByIndex(ctx, country, -1), browser.ErrOptionNotFound)
		assert.ErrorIs(t, i.SelectByText(ctx, locator.ID("name"), "x"), browser.ErrNotSelect)
		assert.ErrorIs(t, i.SelectByText(ctx, locator.ClassName("dup"), "x"), browser.ErrAmbiguousMatch)
		assert.ErrorIs(t, i.SelectByText(ctx, locator.ID("missing"), "x"), browser.ErrElementNotFound)
		assert.Equal(t, 1, p.FindCount(locator.ID("missing")), "select does not poll")
	})

	t.Run("options", func(t *testing.T) {
		p, _ := newCountryPage()
		i := newInteractor(t, p, false)
		got, err := i.SelectOptions(ctx, country)
		require.NoError(t, err)
		assert.Equal(t, []string{"--Select--", "Germany", "France"}, got)
	})
}

func TestScrollTo(t *testing.T) {
	ctx := context.Background()

	t.Run("scrolls until uncovered", func(t *testing.T) {
		p := browsertest.NewPage()
		row := p.Top().Add(browsertest.El("tr", "id", "row").Obscured(2))
		i := newInteractor(t, p, false)

		require.NoError(t, i.ScrollTo(ctx, locator.ID("row")))
		assert.Equal(t, []string{"scroll", "scroll"}, p.Events(row))
	})

	t.Run("gives up after five scrolls", func(t *testing.T) {
		p := browsertest.NewPage()
		row := p.Top().Add(browsertest.El("tr", "id", "row").Obscured(10))
		i := newInteractor(t, p, false)

		err := i.ScrollTo(ctx, locator.ID("row"))
		assert.ErrorIs(t, err, browser.ErrNotInteractable)
		assert.Len(t, p.Events(row), maxScrollAttempts)
	})
}

func TestMouseEvents(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage()
	cell := p.Top().Add(browsertest.El("td", "id", "cell"))
	i := newInteractor(t, p, false)

	require.NoError(t, i.DoubleClick(ctx, locator.ID("cell")))
	require.NoError(t, i.Hover(ctx, locator.ID("cell")))
	require.NoError(t, i.RightClick(ctx, locator.ID("cell")))
	assert.Equal(t, []string{"dblclick", "hover", "contextmenu"}, p.Events(cell))
}

func TestClickAll(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage()
	a := p.Top().Add(browsertest.El("input", "id", "a", "type", "checkbox"))
	b := p.Top().Add(browsertest.El("input", "id", "b", "type", "checkbox"))
	i := newInteractor(t, p, false)

	require.NoError(t, i.ClickAll(ctx, locator.ID("a"), locator.ID("b")))
	assert.Equal(t, []string{"scroll", "click"}, p.Events(a))
	assert.Equal(t, []string{"scroll", "click"}, p.Events(b))

	err := i.ClickAll(ctx, locator.ID("a"), locator.ID("missing"))
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage()
	p.Top().Add(browsertest.El("div", "id", "shown").WithText("Account saved"))
	p.Top().Add(browsertest.El("div", "id", "hidden").Hidden())
	i := newInteractor(t, p, false)

	assert.True(t, i.IsPresent(ctx, locator.ID("shown")))
	assert.True(t, i.IsPresent(ctx, locator.ID("hidden")))
	assert.False(t, i.IsPresent(ctx, locator.ID("missing")))
	assert.True(t, i.IsVisible(ctx, locator.ID("shown")))
	assert.False(t, i.IsVisible(ctx, locator.ID("hidden")))
	assert.False(t, i.IsVisible(ctx, locator.ID("missing")))
	assert.True(t, i.IsTextVisible(ctx, "Account saved"))
	assert.False(t, i.IsTextVisible(ctx, "Account deleted"))
}

func TestRelatives(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage()
	cell := browsertest.El("td", "id", "cell")
	row := browsertest.El("tr", "class", "data-row selected").Add(cell, browsertest.El("td"))
	table := browsertest.El("table", "id", "grid").Add(row)
	p.Top().Add(table)
	i := newInteractor(t, p, false)

	parent, err := i.Parent(ctx, locator.ID("cell"))
	require.NoError(t, err)
	assert.Same(t, row, parent.(*browsertest.Handle).Node())

	anc, err := i.ClosestAncestor(ctx, locator.ID("cell"), locator.TagTable)
	require.NoError(t, err)
	assert.Same(t, table, anc.(*browsertest.Handle).Node())

	withAttr, err := i.ClosestWithAttribute(ctx, locator.ID("cell"), "class", "data-row")
	require.NoError(t, err)
	assert.Same(t, row, withAttr.(*browsertest.Handle).Node())

	_, err = i.ClosestWithAttribute(ctx, locator.ID("cell"), "class", "nope")
	assert.ErrorIs(t, err, browser.ErrElementNotFound)

	kids, err := i.Children(ctx, locator.ID("grid"))
	require.NoError(t, err)
	assert.Len(t, kids, 1)
}
