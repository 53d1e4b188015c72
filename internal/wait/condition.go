// File: internal/wait/condition.go
package wait

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/crmpilot/internal/browser"
)

// Condition is a predicate the engine polls for.
type Condition int

const (
	Visible Condition = iota + 1
	Invisible
	Exists
	NotExist
	Enabled
	Clickable
	// FrameAvailable waits for the frame element and switches into it.
	FrameAvailable
	// SelectPopulated waits for a select to hold more than its placeholder option.
	SelectPopulated
	PageReady
	AllPresent
	AllVisible
	ElementSelected
	AlertPresent
	AttributePresent
	AttributeValueContains
	AttributeValueAbsent
	TextPresent
	TextAbsent
)

var conditionNames = map[Condition]string{
	Visible:                "visible",
	Invisible:              "invisible",
	Exists:                 "exists",
	NotExist:               "not_exist",
	Enabled:                "enabled",
	Clickable:              "clickable",
	FrameAvailable:         "frame_available",
	SelectPopulated:        "select_populated",
	PageReady:              "page_ready",
	AllPresent:             "all_present",
	AllVisible:             "all_visible",
	ElementSelected:        "element_selected",
	AlertPresent:           "alert_present",
	AttributePresent:       "attribute_present",
	AttributeValueContains: "attribute_value_contains",
	AttributeValueAbsent:   "attribute_value_absent",
	TextPresent:            "text_present",
	TextAbsent:             "text_absent",
}

func (c Condition) String() string {
	if n, ok := conditionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Condition(%d)", int(c))
}

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	_, ok := conditionNames[c]
	return ok
}

// ParseCondition maps a condition name to a Condition. Dashes, spaces and
// case are ignored, so "Frame-Available" parses.
func ParseCondition(s string) (Condition, error) {
	norm := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	for c, n := range conditionNames {
		if n == norm {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", browser.ErrInvalidCondition, s)
}

// validate rejects unknown conditions and conditions missing a required option.
func (c Condition) validate(r request) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", browser.ErrInvalidCondition, int(c))
	}
	switch c {
	case AttributePresent:
		if r.attribute == "" {
			return fmt.Errorf("%w: %s needs an attribute name", browser.ErrInvalidCondition, c)
		}
	case AttributeValueContains, AttributeValueAbsent:
		if r.attribute == "" || r.value == "" {
			return fmt.Errorf("%w: %s needs an attribute name and value", browser.ErrInvalidCondition, c)
		}
	case TextPresent, TextAbsent:
		if r.text == "" {
			return fmt.Errorf("%w: %s needs the expected text", browser.ErrInvalidCondition, c)
		}
	}
	return nil
}

// staleMeansDone reports whether a handle going stale satisfies c.
func (c Condition) staleMeansDone() bool {
	return c == NotExist || c == Invisible || c == TextAbsent || c == AttributeValueAbsent
}
