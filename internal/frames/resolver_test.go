// File: internal/frames/resolver_test.go
package frames

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
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/pageready"
	"github.com/xkilldash9x/crmpilot/internal/poll"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

const (
	interval = 10 * time.Millisecond
	timeout  = 300 * time.Millisecond
)

func newResolver(t *testing.T, p *browsertest.Page) *Resolver {
	t.Helper()
	logger := zaptest.NewLogger(t)
	sw := browser.NewSwitcher(p, logger)
	gate := pageready.New(p, sw, interval, timeout, logger)
	waits := wait.New(p, sw, poll.New(timeout, interval, logger), gate, logger)
	return NewResolver(p, sw, gate, waits, logger)
}

func TestResolveFrameOf(t *testing.T) {
	ctx := context.Background()
	target := locator.ID("target")

	t.Run("element in a child frame", func(t *testing.T) {
		p := browsertest.NewPage()
		p.Top().AddFrame("navBar")
		p.Top().AddFrame("panelFrame").Add(browsertest.El("input", "id", "target"))
		r := newResolver(t, p)

		id, found, err := r.ResolveFrameOf(ctx, target)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "panelFrame", id)

		_, err = p.FindElement(ctx, target)
		require.NoError(t, err, "the controller is left inside the frame")
		assert.Equal(t, []string{"panelFrame"}, p.CurrentFrame())
		assert.Equal(t, "default>panelFrame", r.Current().String())
		assert.Equal(t, []string{"default", "default", "frame:navBar", "default", "frame:panelFrame"}, p.SwitchLog())
	})

	t.Run("element in the top document", func(t *testing.T) {
		p := browsertest.NewPage()
		p.Top().Add(browsertest.El("input", "id", "target"))
		p.Top().AddFrame("panelFrame")
		r := newResolver(t, p)

		id, found, err := r.ResolveFrameOf(ctx, target)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, id)
		assert.Empty(t, p.CurrentFrame())
	})

	t.Run("grandchild frames are not searched", func(t *testing.T) {
		p := browsertest.NewPage()
		p.Top().AddFrame("outer").AddFrame("inner").Add(browsertest.El("input", "id", "target"))
		r := newResolver(t, p)

		id, found, err := r.ResolveFrameOf(ctx, target)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, id)
		assert.Empty(t, p.CurrentFrame())
		assert.True(t, r.Current().IsDefault())
	})

	t.Run("first matching frame wins", func(t *testing.T) {
		p := browsertest.NewPage()
		p.Top().AddFrame("a").Add(browsertest.El("input", "id", "target"))
		p.Top().AddFrame("b").Add(browsertest.El("input", "id", "target"))
		r := newResolver(t, p)

		id, _, err := r.ResolveFrameOf(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, "a", id)
	})

	t.Run("hidden and anonymous frames are skipped", func(t *testing.T) {
		p := browsertest.NewPage()
		p.Top().AddFrame("hidden", "style", "display: none").Add(browsertest.El("input", "id", "target"))
		p.Top().AddFrame("").Add(browsertest.El("input", "id", "target"))
		r := newResolver(t, p)

		_, found, err := r.ResolveFrameOf(ctx, target)
		require.NoError(t, err)
		assert.False(t, found)
		assert.NotContains(t, p.SwitchLog(), "frame:hidden")
	})

	t.Run("inline visible style counts as displayed", func(t *testing.T) {
		p := browsertest.NewPage()
		doc := p.Top().AddFrame("dialog", "style", "visibility: visible")
		doc.Add(browsertest.El("input", "id", "target"))
		r := newResolver(t, p)

		frameEl, err := p.FindElement(ctx, locator.ID("dialog"))
		require.NoError(t, err)
		p.Hide(frameEl.(*browsertest.Handle).Node())

		id, found, err := r.ResolveFrameOf(ctx, target)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "dialog", id)
	})

	t.Run("driver failures are returned", func(t *testing.T) {
		p := browsertest.NewPage()
		boom := errors.New("invalid session id")
		p.FailFind(target, boom)
		r := newResolver(t, p)

		_, _, err := r.ResolveFrameOf(ctx, target)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("driver failure inside a frame leaves the frame", func(t *testing.T) {
		p := browsertest.NewPage()
		p.Top().AddFrame("panelFrame")
		boom := errors.New("invalid session id")
		p.FailFind(target, nil, boom)
		r := newResolver(t, p)

		_, _, err := r.ResolveFrameOf(ctx, target)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, p.CurrentFrame())
		assert.True(t, r.Current().IsDefault())
	})

	t.Run("page readiness is awaited first", func(t *testing.T) {
		p := browsertest.NewPage()
		p.Top().Loading("loading")
		p.Top().AddFrame("panelFrame").Add(browsertest.El("input", "id", "target"))
		timer := time.AfterFunc(30*time.Millisecond, func() { p.SetReadyState(p.Top(), "complete") })
		defer timer.Stop()
		r := newResolver(t, p)

		start := time.Now()
		id, found, err := r.ResolveFrameOf(ctx, target)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "panelFrame", id)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})
}

func TestSwitching(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage()
	p.Top().AddFrame("outer").AddFrame("inner")
	r := newResolver(t, p)

	require.NoError(t, r.SwitchTo(ctx, "outer"))
	require.NoError(t, r.SwitchToNested(ctx, "inner"))
	assert.Equal(t, []string{"outer", "inner"}, p.CurrentFrame())
	assert.Equal(t, "default>outer>inner", r.Current().String())

	require.NoError(t, r.SwitchToParent(ctx))
	assert.Equal(t, []string{"outer"}, r.Current().Path())

	require.NoError(t, r.SwitchTo(ctx, "outer"), "SwitchTo starts from the top level")
	assert.Equal(t, []string{"outer"}, p.CurrentFrame())

	require.NoError(t, r.SwitchToDefault(ctx))
	assert.True(t, r.Current().IsDefault())

	err := r.SwitchToNested(ctx, "inner", wait.WithTimeout(30*time.Millisecond))
	assert.ErrorIs(t, err, browser.ErrTimeout, "inner is not a child of the top document")
}
