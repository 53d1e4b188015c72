// File: internal/browser/errors.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrElementNotFound is returned when a direct lookup matched nothing.
	ErrElementNotFound = errors.New("element not found")

	// ErrStaleReference is returned when a handle's node was removed or replaced.
	ErrStaleReference = errors.New("stale element reference")

	// ErrNotInteractable is returned when the element exists but cannot take
	// the action yet (covered, disabled, zero size, animating).
	ErrNotInteractable = errors.New("element not interactable")

	// ErrNoSuchFrame is returned when a frame switch names a frame that is not there.
	ErrNoSuchFrame = errors.New("no such frame")

	// ErrNoSuchWindow is returned when no window matches a switch request.
	ErrNoSuchWindow = errors.New("no such window")

	// ErrNoAlert is returned when an alert operation finds no open dialog.
	ErrNoAlert = errors.New("no alert open")

	// ErrNotSelect is returned when a select operation targets a non-select element.
	ErrNotSelect = errors.New("element is not a select")

	// ErrOptionNotFound is returned when no option matches the requested value.
	ErrOptionNotFound = errors.New("option not found")

	// ErrAmbiguousMatch is returned when a locator assumed unique matched several elements.
	ErrAmbiguousMatch = errors.New("locator matched more than one element")

	// ErrInvalidCondition is returned for a wait condition outside the known set.
	ErrInvalidCondition = errors.New("invalid wait condition")

	// ErrIndeterminate is returned when the driver failed mid-action and
	// whether the action landed cannot be told.
	ErrIndeterminate = errors.New("action outcome indeterminate")

	// ErrScriptFailed is returned when injected script raised an exception.
	ErrScriptFailed = errors.New("script execution failed")

	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("wait timed out")

	// ErrSessionClosed is returned for operations on a closed controller.
	ErrSessionClosed = errors.New("browser session closed")
)

// IsTransient reports whether err is one of the conditions a retry loop
// absorbs as "not yet".
func IsTransient(err error) bool {
	return errors.Is(err, ErrStaleReference) ||
		errors.Is(err, ErrNotInteractable) ||
		errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrNoSuchFrame)
}

// TimeoutError is returned when a bounded wait ran out of time.
type TimeoutError struct {
	Op      string
	Target  string
	Timeout time.Duration
	Elapsed time.Duration
	// Last is the most recent transient reason the condition was not met.
	// It is reported in the message but not unwrapped.
	Last error
}

func (e *TimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s timed out after %v", e.Op, e.Timeout)
	if e.Target != "" {
		fmt.Fprintf(&b, " waiting on %s", e.Target)
	}
	if e.Last != nil {
		fmt.Fprintf(&b, " (last: %v)", e.Last)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrTimeout) hold for every TimeoutError.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// FailureKind classifies a final failure for callers building reports.
type FailureKind string

const (
	FailureTimeout          FailureKind = "timeout"
	FailureNotFound         FailureKind = "element_not_found"
	FailureIndeterminate    FailureKind = "indeterminate"
	FailureInvalidCondition FailureKind = "invalid_condition"
	FailureAmbiguous        FailureKind = "ambiguous_match"
	FailureNotSelect        FailureKind = "not_select"
	FailureOptionNotFound   FailureKind = "option_not_found"
	FailureNoAlert          FailureKind = "no_alert"
	FailureScript           FailureKind = "script"
	FailureCanceled         FailureKind = "canceled"
	FailureDriver           FailureKind = "driver"
)

// Classify maps an error onto a FailureKind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, ErrIndeterminate):
		return FailureIndeterminate
	case errors.Is(err, ErrInvalidCondition):
		return FailureInvalidCondition
	case errors.Is(err, ErrAmbiguousMatch):
		return FailureAmbiguous
	case errors.Is(err, ErrNotSelect):
		return FailureNotSelect
	case errors.Is(err, ErrOptionNotFound):
		return FailureOptionNotFound
	case errors.Is(err, ErrElementNotFound):
		return FailureNotFound
	case errors.Is(err, ErrNoAlert):
		return FailureNoAlert
	case errors.Is(err, ErrScriptFailed):
		return FailureScript
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	}
	return FailureDriver
}

// OpError is the final failure of a session operation. It names the
// operation, its target and the failure kind, carries the diagnostic
// screenshot name, and unwraps to the root cause.
type OpError struct {
	Op         string
	Target     string
	Frame      string
	Kind       FailureKind
	Screenshot string
	Err        error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Target != "" {
		b.WriteString(" ")
		b.WriteString(e.Target)
	}
	if e.Frame != "" {
		fmt.Fprintf(&b, " [frame %s]", e.Frame)
	}
	fmt.Fprintf(&b, ": %s: %v", e.Kind, e.Err)
	if e.Screenshot != "" {
		fmt.Fprintf(&b, " (screenshot: %s)", e.Screenshot)
	}
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }
