// File: internal/browser/js/scripts_test.go
package js

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameReadyScripts(t *testing.T) {
	assert.Equal(t,
		`return document.getElementById("contentIFrame0").contentDocument.readyState;`,
		FrameReadyStateByID("contentIFrame0"))
	assert.Equal(t,
		`return document.getElementById("a\"b").contentDocument.readyState;`,
		FrameReadyStateByID(`a"b`), "ids are escaped")
	assert.Equal(t,
		`return document.getElementsByTagName('iframe')[2].contentDocument.readyState;`,
		FrameReadyStateByIndex(2))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"x"`, Quote("x"))
	assert.Equal(t, `3`, Quote(3))
	assert.Equal(t, `"\u003cscript\u003e"`, Quote("<script>"), "markup is escaped")
}

func TestIsReady(t *testing.T) {
	assert.True(t, IsReady("complete"))
	assert.True(t, IsReady("interactive"))
	assert.False(t, IsReady("loading"))
	assert.False(t, IsReady(nil))
	assert.False(t, IsReady(true))
}
