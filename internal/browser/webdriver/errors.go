// File: internal/browser/webdriver/errors.go
package webdriver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tebeka/selenium"

	"github.com/xkilldash9x/crmpilot/internal/browser"
)

// errorCodes maps W3C WebDriver error codes onto the engine's sentinels,
// in the order messages are matched.
var errorCodes = []struct {
	code     string
	sentinel error
}{
	{"stale element reference", browser.ErrStaleReference},
	{"no such element", browser.ErrElementNotFound},
	{"element not interactable", browser.ErrNotInteractable},
	{"element click intercepted", browser.ErrNotInteractable},
	{"invalid element state", browser.ErrNotInteractable},
	{"no such frame", browser.ErrNoSuchFrame},
	{"no such window", browser.ErrNoSuchWindow},
	{"no such alert", browser.ErrNoAlert},
	{"no alert open", browser.ErrNoAlert},
	{"javascript error", browser.ErrScriptFailed},
	{"invalid session id", browser.ErrSessionClosed},
}

// mapError wraps err with the sentinel its WebDriver error code names. The
// code is taken from the structured error when the server sent one and
// from the message text otherwise, since older servers only send text.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se *selenium.Error
	if errors.As(err, &se) {
		for _, c := range errorCodes {
			if se.Err == c.code {
				return fmt.Errorf("%w: %w", c.sentinel, err)
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, c := range errorCodes {
		if strings.Contains(msg, c.code) {
			return fmt.Errorf("%w: %w", c.sentinel, err)
		}
	}
	return err
}
