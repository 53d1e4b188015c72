// File: internal/browser/js/scripts.go

// Package js holds the scripts the engine injects into pages. Every backend
// runs them through Controller.ExecuteScript, with element arguments bound to
// arguments[0..n].
package js

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

const (
	// ReadyState reads the current document's ready state.
	ReadyState = `return document.readyState;`

	// Click performs a script click on arguments[0].
	Click = `arguments[0].click();`

	// DoubleClick dispatches a bubbling dblclick on arguments[0].
	DoubleClick = `arguments[0].dispatchEvent(new MouseEvent('dblclick', {bubbles: true, cancelable: true, view: window}));`

	// ContextClick dispatches a right button contextmenu event on arguments[0].
	ContextClick = `arguments[0].dispatchEvent(new MouseEvent('contextmenu', {bubbles: true, cancelable: true, view: window, button: 2, buttons: 2}));`

	// Hover dispatches mouseover and mouseenter on arguments[0].
	Hover = `var el = arguments[0];
el.dispatchEvent(new MouseEvent('mouseover', {bubbles: true, view: window}));
el.dispatchEvent(new MouseEvent('mouseenter', {bubbles: false, view: window}));`

	// ScrollIntoView centers arguments[0] in the viewport.
	ScrollIntoView = `arguments[0].scrollIntoView({block: 'center', inline: 'nearest'});`

	// InView reports whether the point at the center of arguments[0] hits the
	// element itself (or a descendant), i.e. nothing overlays it.
	InView = `var el = arguments[0];
var r = el.getBoundingClientRect();
if (r.width === 0 || r.height === 0) { return false; }
var hit = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
return hit === el || el.contains(hit);`

	// SelectOption selects an option of the select element arguments[0].
	// arguments[1] is "value", "text" or "index"; arguments[2] is the needle.
	// It returns the selected index, -1 when no option matched, or -2 when
	// arguments[0] is not a select.
	SelectOption = `var sel = arguments[0], by = arguments[1], want = arguments[2];
if (!sel || sel.tagName.toLowerCase() !== 'select') { return -2; }
for (var i = 0; i < sel.options.length; i++) {
  var o = sel.options[i];
  var hit = (by === 'value' && o.value === want) ||
            (by === 'text' && o.text.trim() === String(want).trim()) ||
            (by === 'index' && i === Number(want));
  if (hit) {
    sel.selectedIndex = i;
    o.selected = true;
    sel.dispatchEvent(new Event('input', {bubbles: true}));
    sel.dispatchEvent(new Event('change', {bubbles: true}));
    return i;
  }
}
return -1;`

	// SelectOptions lists the visible text of every option of arguments[0].
	SelectOptions = `return Array.prototype.map.call(arguments[0].options, function (o) { return o.text; });`

	// DOMContentLoaded reports seconds from navigation start to DOMContentLoaded.
	DOMContentLoaded = `var t = window.performance.timing;
return (t.domContentLoadedEventEnd - t.navigationStart) / 1000;`

	// Reload reloads the current document.
	Reload = `window.location.reload();`

	// OpenTab opens arguments[0] in a new tab or window.
	OpenTab = `window.open(arguments[0], '_blank');`
)

// FrameReadyStateByID reads the ready state of the iframe with the given id
// from the parent document, without switching into it.
func FrameReadyStateByID(id string) string {
	return fmt.Sprintf(`return document.getElementById(%s).contentDocument.readyState;`, Quote(id))
}

// FrameReadyStateByIndex is FrameReadyStateByID for iframes without an id.
func FrameReadyStateByIndex(i int) string {
	return fmt.Sprintf(`return document.getElementsByTagName('iframe')[%d].contentDocument.readyState;`, i)
}

// Quote encodes v as a JavaScript literal safe to splice into a script.
func Quote(v any) string {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

// IsReady reports whether a document.readyState value means the DOM can be used.
func IsReady(state any) bool {
	s, _ := state.(string)
	return s == "interactive" || s == "complete"
}
