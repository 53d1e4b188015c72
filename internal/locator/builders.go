// File: internal/locator/builders.go
package locator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMatchMode is returned when a MatchMode outside the known set is
// passed to a builder. It signals a programming error in the caller.
var ErrInvalidMatchMode = errors.New("invalid attribute match mode")

// MatchMode selects how an attribute value is compared.
type MatchMode int

const (
	Full MatchMode = iota + 1
	Prefix
	Suffix
	Part
)

func (m MatchMode) String() string {
	switch m {
	case Full:
		return "full"
	case Prefix:
		return "prefix"
	case Suffix:
		return "suffix"
	case Part:
		return "part"
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// operator returns the CSS attribute selector operator prefix for m.
func (m MatchMode) operator() (string, error) {
	switch m {
	case Full:
		return "", nil
	case Prefix:
		return "^", nil
	case Suffix:
		return "$", nil
	case Part:
		return "*", nil
	}
	return "", fmt.Errorf("%w: %d", ErrInvalidMatchMode, int(m))
}

// ParseMatchMode maps a mode name to a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "fullname", "exact":
		return Full, nil
	case "prefix", "prefixofname", "starts_with":
		return Prefix, nil
	case "suffix", "suffixofname", "ends_with":
		return Suffix, nil
	case "part", "partofname", "contains":
		return Part, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMatchMode, s)
}

// Build produces a CSS attribute-match Locator of the form [attr<op>='value'].
// attr may be any attribute name, including composite ones the Attribute
// enumeration does not cover.
func Build(attr string, mode MatchMode, value string) (Locator, error) {
	op, err := mode.operator()
	if err != nil {
		return Locator{}, err
	}
	return CSS(fmt.Sprintf("[%s%s=%s]", attr, op, cssString(value))), nil
}

// MustBuild is Build for modes known at compile time. It panics on an invalid mode.
func MustBuild(attr string, mode MatchMode, value string) Locator {
	l, err := Build(attr, mode, value)
	if err != nil {
		panic(err)
	}
	return l
}

// BuildAttr is Build over the closed Attribute enumeration.
func BuildAttr(attr Attribute, mode MatchMode, value string) (Locator, error) {
	return Build(attr.String(), mode, value)
}

// FullMatch matches elements whose attr equals value.
func FullMatch(attr, value string) Locator { return MustBuild(attr, Full, value) }

// PrefixMatch matches elements whose attr starts with value.
func PrefixMatch(attr, value string) Locator { return MustBuild(attr, Prefix, value) }

// SuffixMatch matches elements whose attr ends with value.
func SuffixMatch(attr, value string) Locator { return MustBuild(attr, Suffix, value) }

// PartMatch matches elements whose attr contains value.
func PartMatch(attr, value string) Locator { return MustBuild(attr, Part, value) }

// XPath produces //tag[contains(@attr, 'value')]. When attr is "text" the
// element's text node is matched instead of an attribute.
func XPath(tag, attr, value string) Locator {
	subject := "@" + attr
	if attr == AttrText.String() {
		subject = "text()"
	}
	return XPathExpr(fmt.Sprintf("//%s[contains(%s, %s)]", tag, subject, xpathString(value)))
}

// XPathTag is XPath over the closed tag and attribute enumerations.
func XPathTag(tag HTMLTag, attr Attribute, value string) Locator {
	return XPath(tag.String(), attr.String(), value)
}

// TextContains matches any element whose own text contains text.
func TextContains(text string) Locator {
	return XPath("*", AttrText.String(), text)
}

// LinkTitleContains matches anchors whose title contains title.
func LinkTitleContains(title string) Locator {
	return XPathTag(TagA, AttrTitle, title)
}

// SpanTextContains matches spans whose text contains text.
func SpanTextContains(text string) Locator {
	return XPathTag(TagSpan, AttrText, text)
}

// Relative locators, resolved against an element rather than the document.

// Parent selects the element's parent.
func Parent() Locator { return XPathExpr("..") }

// Children selects the element's direct children.
func Children() Locator { return XPathExpr("./*") }

// ClosestAncestor selects the nearest ancestor with the given tag.
func ClosestAncestor(tag HTMLTag) Locator {
	return XPathExpr(fmt.Sprintf("ancestor::%s[1]", tag))
}

// ClosestAncestorWith selects the nearest ancestor whose attr contains value.
func ClosestAncestorWith(attr, value string) Locator {
	return XPathExpr(fmt.Sprintf("ancestor::*[contains(@%s, %s)][1]", attr, xpathString(value)))
}

// cssString quotes s as a single-quoted CSS string.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

// xpathString quotes s as an XPath 1.0 literal. XPath has no escape syntax,
// so a value holding both quote kinds is assembled with concat().
func xpathString(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}
