// File: internal/browser/controller.go
package browser

import (
	"context"

	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// Controller is the narrow surface the synchronization engine needs from a
// browser automation backend. Implementations map their native failures onto
// the sentinel errors in this package (ErrElementNotFound, ErrStaleReference,
// ErrNotInteractable, ErrNoSuchFrame, ErrNoAlert).
//
// A Controller is owned by a single session and is not safe for concurrent use.
type Controller interface {
	// FindElement resolves loc in the current frame context.
	FindElement(ctx context.Context, loc locator.Locator) (Element, error)
	// FindElements resolves loc in the current frame context. Zero matches is
	// not an error.
	FindElements(ctx context.Context, loc locator.Locator) ([]Element, error)
	// ExecuteScript runs script in the current frame context. Element values
	// in args are passed to the script as DOM nodes (arguments[i]).
	ExecuteScript(ctx context.Context, script string, args ...any) (any, error)

	SwitchToFrame(ctx context.Context, id string) error
	SwitchToParentFrame(ctx context.Context) error
	SwitchToDefaultContent(ctx context.Context) error

	WindowHandles(ctx context.Context) ([]string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	CurrentURL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	TakeScreenshot(ctx context.Context) ([]byte, error)

	AlertText(ctx context.Context) (string, error)
	AcceptAlert(ctx context.Context) error
	DismissAlert(ctx context.Context) error

	// Kind reports which browser family is being driven.
	Kind() config.BrowserKind
	Close(ctx context.Context) error
}

// Element is a live handle to a resolved node. Any method may return
// ErrStaleReference once the node has been removed or replaced.
type Element interface {
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	IsSelected(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	TagName(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	// FindElements resolves loc relative to this element.
	FindElements(ctx context.Context, loc locator.Locator) ([]Element, error)
}

// Shooter is the part of a Controller diagnostics needs.
type Shooter interface {
	TakeScreenshot(ctx context.Context) ([]byte, error)
}

// ScriptRunner is the part of a Controller that evaluates script.
type ScriptRunner interface {
	ExecuteScript(ctx context.Context, script string, args ...any) (any, error)
}

// WindowManager is implemented by controllers that can close and resize the
// current window. Neither call changes which window is current in the
// caller's view; after closing, callers must switch to a remaining window.
type WindowManager interface {
	CloseCurrentWindow(ctx context.Context) error
	MaximizeWindow(ctx context.Context) error
}

// ConsoleReader is implemented by controllers that expose the browser
// console.
type ConsoleReader interface {
	// ConsoleErrors returns the severe console entries logged since the
	// previous call.
	ConsoleErrors(ctx context.Context) ([]string, error)
}

// Releaser is implemented by handles that pin remote memory until released.
type Releaser interface {
	Release(ctx context.Context) error
}

// Release frees every handle in els that pins remote memory. Errors are
// ignored; a handle that cannot be released is already gone.
func Release(ctx context.Context, els ...Element) {
	for _, el := range els {
		if r, ok := el.(Releaser); ok {
			_ = r.Release(ctx)
		}
	}
}

// Truthy interprets a script result the way JavaScript would for the values
// a WebDriver or DevTools backend can return.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	return true
}

// AsString returns v as a string when the script produced one.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
