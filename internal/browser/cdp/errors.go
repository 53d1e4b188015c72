// File: internal/browser/cdp/errors.go
package cdp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/crmpilot/internal/browser"
)

// errorMarkers maps protocol and in-page error text onto sentinels. Order
// matters: the first match wins.
var errorMarkers = []struct {
	text     string
	sentinel error
}{
	{"stale element reference", browser.ErrStaleReference},
	{"could not find object with given id", browser.ErrStaleReference},
	{"cannot find context with specified id", browser.ErrStaleReference},
	{"execution context was destroyed", browser.ErrStaleReference},
	{"element not interactable", browser.ErrNotInteractable},
	{"no such frame", browser.ErrNoSuchFrame},
	{"no dialog is showing", browser.ErrNoAlert},
}

// navigationMarkers identify a script whose page went away underneath it.
var navigationMarkers = []string{
	"execution context was destroyed",
	"inspected target navigated or closed",
}

var sentinels = []error{
	browser.ErrElementNotFound,
	browser.ErrStaleReference,
	browser.ErrNotInteractable,
	browser.ErrNoSuchFrame,
	browser.ErrNoSuchWindow,
	browser.ErrNoAlert,
	browser.ErrScriptFailed,
	browser.ErrSessionClosed,
}

// mapError wraps err with the sentinel it corresponds to. Errors that
// already carry one, or match nothing, are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}
	if errors.Is(err, chromedp.ErrInvalidContext) {
		return fmt.Errorf("%w: %w", browser.ErrSessionClosed, err)
	}
	msg := strings.ToLower(err.Error())
	for _, m := range errorMarkers {
		if strings.Contains(msg, m.text) {
			return fmt.Errorf("%w: %w", m.sentinel, err)
		}
	}
	return err
}

// scriptError converts an exception thrown in the page.
func scriptError(exc *runtime.ExceptionDetails) error {
	text := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		text = exc.Exception.Description
	}
	err := errors.New(text)
	if mapped := mapError(err); mapped != err {
		return mapped
	}
	return fmt.Errorf("%w: %s", browser.ErrScriptFailed, text)
}

func navigatedAway(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range navigationMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// exceptionText renders an uncaught exception for the console error list.
func exceptionText(exc *runtime.ExceptionDetails) string {
	if exc == nil {
		return ""
	}
	text := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		text = exc.Exception.Description
	}
	if exc.URL != "" {
		return fmt.Sprintf("%s %d:%d %s", exc.URL, exc.LineNumber+1, exc.ColumnNumber+1, text)
	}
	return text
}

// consoleText joins console.error arguments the way the console prints them.
func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		var s string
		if len(a.Value) > 0 && json.Unmarshal(a.Value, &s) == nil {
			parts = append(parts, s)
			continue
		}
		switch {
		case a.Description != "":
			parts = append(parts, a.Description)
		case len(a.Value) > 0:
			parts = append(parts, string(a.Value))
		default:
			parts = append(parts, string(a.Type))
		}
	}
	return strings.Join(parts, " ")
}
