// File: internal/scenario/scenario.go

// Package scenario loads declarative browser scenarios from YAML and runs
// them step by step against a session.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

// Action names a step kind.
type Action string

const (
	ActionNavigate     Action = "navigate"
	ActionWait         Action = "wait"
	ActionClick        Action = "click"
	ActionType         Action = "type"
	ActionClear        Action = "clear"
	ActionSelect       Action = "select"
	ActionFrame        Action = "frame"
	ActionFrameOf      Action = "frame_of"
	ActionParentFrame  Action = "parent_frame"
	ActionDefault      Action = "default"
	ActionPageReady    Action = "page_ready"
	ActionAcceptAlert  Action = "accept_alert"
	ActionDismissAlert Action = "dismiss_alert"
	ActionScreenshot   Action = "screenshot"
	ActionScript       Action = "script"
	ActionSleep        Action = "sleep"
)

var knownActions = map[Action]bool{
	ActionNavigate: true, ActionWait: true, ActionClick: true, ActionType: true,
	ActionClear: true, ActionSelect: true, ActionFrame: true, ActionFrameOf: true,
	ActionParentFrame: true, ActionDefault: true, ActionPageReady: true,
	ActionAcceptAlert: true, ActionDismissAlert: true, ActionScreenshot: true,
	ActionScript: true, ActionSleep: true,
}

// Scenario is a named sequence of steps, optionally starting at a URL.
type Scenario struct {
	Name     string `yaml:"name"`
	StartURL string `yaml:"start_url"`
	Steps    []Step `yaml:"steps"`
}

// Step is one action. Which fields apply depends on Action.
type Step struct {
	Action      Action        `yaml:"action"`
	Target      *LocatorSpec  `yaml:"target"`
	Condition   string        `yaml:"condition"`
	Text        string        `yaml:"text"`
	Value       string        `yaml:"value"`
	Index       *int          `yaml:"index"`
	Attribute   string        `yaml:"attribute"`
	URL         string        `yaml:"url"`
	Frame       string        `yaml:"frame"`
	Nested      bool          `yaml:"nested"`
	Script      string        `yaml:"script"`
	ScriptClick bool          `yaml:"script_click"`
	Timeout     time.Duration `yaml:"timeout"`
	Duration    time.Duration `yaml:"duration"`
	Description string        `yaml:"description"`
}

// LocatorSpec is the YAML form of a locator. Exactly one shape is used:
// by/value, attr/mode/match or tag/attr/contains.
type LocatorSpec struct {
	By       string `yaml:"by"`
	Value    string `yaml:"value"`
	Attr     string `yaml:"attr"`
	Mode     string `yaml:"mode"`
	Match    string `yaml:"match"`
	Tag      string `yaml:"tag"`
	Contains string `yaml:"contains"`
}

// Build turns the target description into a locator.
func (s LocatorSpec) Build() (locator.Locator, error) {
	switch {
	case s.By != "":
		kind, err := locator.ParseKind(s.By)
		if err != nil {
			return locator.Locator{}, err
		}
		if s.Value == "" {
			return locator.Locator{}, fmt.Errorf("locator by %s needs a value", s.By)
		}
		return locator.Locator{Kind: kind, Value: s.Value}, nil
	case s.Tag != "":
		if s.Attr == "" {
			return locator.Locator{}, errors.New("tag locator needs attr")
		}
		return locator.XPath(s.Tag, s.Attr, s.Contains), nil
	case s.Attr != "":
		mode, err := locator.ParseMatchMode(s.Mode)
		if err != nil {
			return locator.Locator{}, err
		}
		return locator.Build(s.Attr, mode, s.Match)
	}
	return locator.Locator{}, errors.New("locator needs by, attr or tag")
}

// Parse decodes and validates one scenario document. Unknown keys are
// rejected so typos fail before a browser starts.
func Parse(data []byte) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Load reads and parses a scenario file from fs.
func Load(fs afero.Fs, path string) (Scenario, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// LoadAll loads every path, stopping at the first bad file.
func LoadAll(fs afero.Fs, paths []string) ([]Scenario, error) {
	out := make([]Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := Load(fs, p)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Validate checks every step before anything runs.
func (sc Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	var errs []error
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, st.Action, err))
		}
	}
	return errors.Join(errs...)
}

func (st Step) validate() error {
	if !knownActions[st.Action] {
		return fmt.Errorf("unknown action %q", st.Action)
	}
	if st.Target != nil {
		if _, err := st.Target.Build(); err != nil {
			return err
		}
	}

	switch st.Action {
	case ActionNavigate:
		if st.URL == "" {
			return errors.New("url is required")
		}
	case ActionWait:
		cond, err := wait.ParseCondition(st.Condition)
		if err != nil {
			return err
		}
		if st.Target == nil && !targetless(cond, st) {
			return fmt.Errorf("condition %s needs a target", cond)
		}
		switch cond {
		case wait.AttributePresent:
			if st.Attribute == "" {
				return fmt.Errorf("condition %s needs attribute", cond)
			}
		case wait.AttributeValueContains, wait.AttributeValueAbsent:
			if st.Attribute == "" || st.Value == "" {
				return fmt.Errorf("condition %s needs attribute and value", cond)
			}
		case wait.TextPresent, wait.TextAbsent:
			if st.Text == "" {
				return fmt.Errorf("condition %s needs text", cond)
			}
		}
	case ActionClick, ActionClear, ActionFrameOf, ActionType:
		if st.Target == nil {
			return errors.New("target is required")
		}
	case ActionSelect:
		if st.Target == nil {
			return errors.New("target is required")
		}
		set := 0
		for _, ok := range []bool{st.Value != "", st.Text != "", st.Index != nil} {
			if ok {
				set++
			}
		}
		if set != 1 {
			return errors.New("select needs exactly one of value, text or index")
		}
	case ActionFrame:
		if st.Frame == "" {
			return errors.New("frame is required")
		}
	case ActionScript:
		if st.Script == "" {
			return errors.New("script is required")
		}
	case ActionSleep:
		if st.Duration <= 0 {
			return errors.New("duration must be positive")
		}
	}
	return nil
}

// targetless reports whether a wait can run without a target.
func targetless(cond wait.Condition, st Step) bool {
	switch cond {
	case wait.PageReady, wait.AlertPresent:
		return true
	case wait.TextPresent, wait.TextAbsent:
		return st.Text != ""
	}
	return false
}
