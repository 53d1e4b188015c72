// File: internal/browser/cdp/scripts_test.go
package cdp

import (
	"strings"
	"testing"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/crmpilot/internal/locator"
)

func TestStrategy(t *testing.T) {
	for loc, want := range map[locator.Locator]string{
		locator.ID("a"):              "id",
		locator.CSS("a"):             "css",
		locator.XPathExpr("//a"):     "xpath",
		locator.LinkText("a"):        "link",
		locator.PartialLinkText("a"): "partial",
		locator.ClassName("a"):       "class",
		locator.TagName("a"):         "tag",
	} {
		got, err := strategy(loc)
		require.NoError(t, err)
		assert.Equal(t, want, got, loc.String())
		assert.Contains(t, findFn, "case '"+want+"'")
	}
	_, err := strategy(locator.Locator{})
	assert.Error(t, err)
}

func TestWrapScript(t *testing.T) {
	got := wrapScript("return document.readyState;")
	assert.True(t, strings.HasPrefix(got, "function() {"))
	assert.Contains(t, got, "const window = this, document = this.document;")
	assert.True(t, strings.HasSuffix(got, "return document.readyState;\n}"))
}

func TestElementFunctionsGuardStaleness(t *testing.T) {
	for name, fn := range map[string]string{
		"displayed": displayedFn, "enabled": enabledFn, "selected": selectedFn, "text": textFn,
		"attribute": attributeFn, "tag": tagNameFn, "click": clickPointFn, "focus": focusFn, "clear": clearFn,
	} {
		assert.True(t, strings.HasPrefix(fn, "function("), name)
		assert.Contains(t, fn, "stale element reference", name)
	}
}

func TestArguments(t *testing.T) {
	el := &Element{id: runtime.RemoteObjectID("node-7")}
	args, err := arguments([]any{el, "class", 21, nil})
	require.NoError(t, err)
	require.Len(t, args, 4)

	assert.Equal(t, runtime.RemoteObjectID("node-7"), args[0].ObjectID)
	assert.Empty(t, args[0].Value)
	assert.Equal(t, `"class"`, string(args[1].Value))
	assert.Equal(t, `21`, string(args[2].Value))
	assert.Equal(t, `null`, string(args[3].Value))

	_, err = arguments([]any{make(chan int)})
	assert.ErrorContains(t, err, "encode argument 0")
}

func TestDecode(t *testing.T) {
	v, err := decode(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = decode(&runtime.RemoteObject{Type: "undefined"})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = decode(&runtime.RemoteObject{Value: []byte(`{"state":"complete","frames":2}`)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"state": "complete", "frames": float64(2)}, v)

	_, err = decode(&runtime.RemoteObject{Value: []byte(`{`)})
	assert.Error(t, err)
}

func TestPoint(t *testing.T) {
	x, y, err := point([]any{float64(120.5), float64(48)})
	require.NoError(t, err)
	assert.Equal(t, 120.5, x)
	assert.Equal(t, 48.0, y)

	for _, bad := range []any{nil, []any{1.0}, []any{"1", 2.0}, "1,2"} {
		_, _, err := point(bad)
		assert.Error(t, err, "%v", bad)
	}
}
