// File: internal/locator/locator_test.go
package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		attr string
		mode MatchMode
		val  string
		want string
	}{
		{"full", "id", Full, "submit", "[id='submit']"},
		{"prefix", "id", Prefix, "tab_", "[id^='tab_']"},
		{"suffix", "name", Suffix, "_i", "[name$='_i']"},
		{"part", "title", Part, "Save", "[title*='Save']"},
		{"composite attribute", "data-id", Full, "x", "[data-id='x']"},
		{"quote is escaped", "title", Part, "Bob's", `[title*='Bob\'s']`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.attr, tt.mode, tt.val)
			require.NoError(t, err)
			assert.Equal(t, ByCSS, got.Kind)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	for _, mode := range []MatchMode{Full, Prefix, Suffix, Part} {
		a, err := Build("id", mode, "crmGrid")
		require.NoError(t, err)
		b, err := Build("id", mode, "crmGrid")
		require.NoError(t, err)
		assert.Equal(t, a, b, mode.String())
		assert.True(t, a == b, "locators are comparable values")
	}
}

func TestBuildInvalidMode(t *testing.T) {
	_, err := Build("id", MatchMode(42), "x")
	assert.ErrorIs(t, err, ErrInvalidMatchMode)

	_, err = Build("id", 0, "x")
	assert.ErrorIs(t, err, ErrInvalidMatchMode)

	assert.Panics(t, func() { MustBuild("id", MatchMode(9), "x") })
}

func TestMatchHelpers(t *testing.T) {
	assert.Equal(t, "[id='a']", FullMatch("id", "a").Value)
	assert.Equal(t, "[id^='a']", PrefixMatch("id", "a").Value)
	assert.Equal(t, "[id$='a']", SuffixMatch("id", "a").Value)
	assert.Equal(t, "[id*='a']", PartMatch("id", "a").Value)

	l, err := BuildAttr(AttrNgClick, Part, "save()")
	require.NoError(t, err)
	assert.Equal(t, "[ng-click*='save()']", l.Value)
}

func TestXPath(t *testing.T) {
	assert.Equal(t, Locator{Kind: ByXPath, Value: "//a[contains(@title, 'Save')]"}, XPath("a", "title", "Save"))
	assert.Equal(t, "//span[contains(text(), 'New')]", XPath("span", "text", "New").Value)
	assert.Equal(t, "//a[contains(@title, 'Close')]", LinkTitleContains("Close").Value)
	assert.Equal(t, "//span[contains(text(), 'Active')]", SpanTextContains("Active").Value)
	assert.Equal(t, "//*[contains(text(), 'Done')]", TextContains("Done").Value)
	assert.Equal(t, "//button[contains(@aria-controls, 'menu')]", XPathTag(TagButton, AttrAriaControls, "menu").Value)
}

func TestXPathQuoting(t *testing.T) {
	assert.Equal(t, `//*[contains(text(), "Bob's")]`, TextContains("Bob's").Value)
	assert.Equal(t,
		`//*[contains(text(), concat('say "hi" to ', "'", 'em'))]`,
		TextContains(`say "hi" to 'em`).Value)
}

func TestRelativeLocators(t *testing.T) {
	assert.Equal(t, "..", Parent().Value)
	assert.Equal(t, "./*", Children().Value)
	assert.Equal(t, "ancestor::tr[1]", ClosestAncestor(TagTR).Value)
	assert.Equal(t, "ancestor::*[contains(@class, 'row')][1]", ClosestAncestorWith("class", "row").Value)
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, "By.Id: submit", ID("submit").String())
	assert.Equal(t, "By.CssSelector: [id='x']", CSS("[id='x']").String())
	assert.Equal(t, "By.Kind(0): ", Locator{}.String())
	assert.True(t, Locator{}.IsZero())
	assert.False(t, ID("x").IsZero())
}

func TestParsers(t *testing.T) {
	k, err := ParseKind("xpath")
	require.NoError(t, err)
	assert.Equal(t, ByXPath, k)
	_, err = ParseKind("shadow")
	assert.Error(t, err)

	m, err := ParseMatchMode("PartOfName")
	require.NoError(t, err)
	assert.Equal(t, Part, m)
	_, err = ParseMatchMode("fuzzy")
	assert.ErrorIs(t, err, ErrInvalidMatchMode)

	a, err := ParseAttribute("ng_model")
	require.NoError(t, err)
	assert.Equal(t, AttrNgModel, a)
	a, err = ParseAttribute("Class")
	require.NoError(t, err)
	assert.Equal(t, AttrClass, a)
	_, err = ParseAttribute("colour")
	assert.Error(t, err)

	tag, err := ParseTag("dropdown")
	require.NoError(t, err)
	assert.Equal(t, TagSelect, tag)
	tag, err = ParseTag("TD")
	require.NoError(t, err)
	assert.Equal(t, TagTD, tag)
	_, err = ParseTag("blink")
	assert.Error(t, err)
}
