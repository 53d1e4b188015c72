// File: internal/scenario/scenario_test.go
package scenario

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

const dealScenario = `
name: create deal
start_url: https://crm.example/deals/new
steps:
  - action: page_ready
  - action: wait
    condition: visible
    target: {by: id, value: stage}
    timeout: 5s
  - action: select
    target: {attr: name, mode: prefix, match: stage}
    text: Closed Won
  - action: click
    target: {tag: button, attr: text, contains: Save}
    script_click: true
  - action: sleep
    duration: 250ms
`

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(dealScenario))
	require.NoError(t, err)

	assert.Equal(t, "create deal", sc.Name)
	assert.Equal(t, "https://crm.example/deals/new", sc.StartURL)
	require.Len(t, sc.Steps, 5)
	assert.Equal(t, 5*time.Second, sc.Steps[1].Timeout)
	assert.Equal(t, 250*time.Millisecond, sc.Steps[4].Duration)
	assert.True(t, sc.Steps[3].ScriptClick)

	want := &LocatorSpec{Tag: "button", Attr: "text", Contains: "Save"}
	if diff := cmp.Diff(want, sc.Steps[3].Target); diff != "" {
		t.Errorf("click target mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"no steps", "name: empty\n", "no steps"},
		{"unknown key", "steps:\n  - action: click\n    targett: {by: id, value: x}\n", "targett"},
		{"unknown action", "steps:\n  - action: hover\n", `unknown action "hover"`},
		{"unknown condition", "steps:\n  - action: wait\n    condition: shiny\n    target: {by: id, value: x}\n", "shiny"},
		{"unknown mode", "steps:\n  - action: click\n    target: {attr: id, mode: fuzzy, match: x}\n", "fuzzy"},
		{"unknown strategy", "steps:\n  - action: click\n    target: {by: name, value: x}\n", "unknown locator strategy"},
		{"missing target", "steps:\n  - action: click\n", "target is required"},
		{"wait needs target", "steps:\n  - action: wait\n    condition: visible\n", "needs a target"},
		{"select ambiguous", "steps:\n  - action: select\n    target: {by: id, value: s}\n    text: a\n    value: b\n", "exactly one"},
		{"attribute condition", "steps:\n  - action: wait\n    condition: attribute_value_contains\n    attribute: class\n    target: {by: id, value: x}\n", "needs attribute and value"},
		{"navigate without url", "steps:\n  - action: navigate\n", "url is required"},
		{"sleep without duration", "steps:\n  - action: sleep\n", "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	t.Run("all bad steps are reported", func(t *testing.T) {
		_, err := Parse([]byte("steps:\n  - action: click\n  - action: frame\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step 1 (click)")
		assert.Contains(t, err.Error(), "step 2 (frame)")
	})

	t.Run("invalid condition sentinel", func(t *testing.T) {
		_, err := Parse([]byte("steps:\n  - action: wait\n    condition: shiny\n    target: {by: id, value: x}\n"))
		assert.ErrorIs(t, err, browser.ErrInvalidCondition)
	})
}

func TestTargetlessWaits(t *testing.T) {
	for _, doc := range []string{
		"steps:\n  - action: wait\n    condition: page_ready\n",
		"steps:\n  - action: wait\n    condition: alert_present\n",
		"steps:\n  - action: wait\n    condition: text_present\n    text: Saved\n",
	} {
		_, err := Parse([]byte(doc))
		assert.NoError(t, err, doc)
	}
	_, err := Parse([]byte("steps:\n  - action: wait\n    condition: text_absent\n"))
	assert.Error(t, err, "text conditions without a target need text")
}

func TestLocatorSpecBuild(t *testing.T) {
	tests := []struct {
		spec LocatorSpec
		want locator.Locator
	}{
		{LocatorSpec{By: "id", Value: "save"}, locator.ID("save")},
		{LocatorSpec{By: "css_selector", Value: "div.row"}, locator.CSS("div.row")},
		{LocatorSpec{Attr: "ng-model", Mode: "part", Match: "deal"}, locator.PartMatch("ng-model", "deal")},
		{LocatorSpec{Attr: "title", Mode: "full", Match: "Owner"}, locator.FullMatch("title", "Owner")},
		{LocatorSpec{Tag: "span", Attr: "text", Contains: "Total"}, locator.XPath("span", "text", "Total")},
	}
	for _, tt := range tests {
		got, err := tt.spec.Build()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []LocatorSpec{{}, {By: "id"}, {Tag: "span"}, {Attr: "id", Mode: "nearly"}} {
		_, err := bad.Build()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "scenarios/deal.yaml", []byte(dealScenario), 0o644))
	require.NoError(t, afero.WriteFile(fs, "scenarios/anon.yaml", []byte("steps:\n  - action: default\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "scenarios/bad.yaml", []byte("steps:\n  - action: fly\n"), 0o644))

	all, err := LoadAll(fs, []string{"scenarios/deal.yaml", "scenarios/anon.yaml"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "create deal", all[0].Name)
	assert.Equal(t, "scenarios/anon.yaml", all[1].Name, "unnamed scenarios take their path")

	_, err = LoadAll(fs, []string{"scenarios/deal.yaml", "scenarios/bad.yaml"})
	assert.ErrorContains(t, err, "scenarios/bad.yaml")

	_, err = Load(fs, "scenarios/missing.yaml")
	assert.ErrorContains(t, err, "read scenario")
}
