// File: internal/locator/locator.go
package locator

import "fmt"

// Kind is the strategy used to resolve a Locator.
type Kind int

const (
	ByID Kind = iota + 1
	ByCSS
	ByXPath
	ByLinkText
	ByPartialLinkText
	ByClassName
	ByTagName
)

var kindNames = map[Kind]string{
	ByID:              "Id",
	ByCSS:             "CssSelector",
	ByXPath:           "XPath",
	ByLinkText:        "LinkText",
	ByPartialLinkText: "PartialLinkText",
	ByClassName:       "ClassName",
	ByTagName:         "TagName",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the known strategies.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a strategy name (as written in scenario files) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "id":
		return ByID, nil
	case "css", "css_selector":
		return ByCSS, nil
	case "xpath":
		return ByXPath, nil
	case "link_text":
		return ByLinkText, nil
	case "partial_link_text":
		return ByPartialLinkText, nil
	case "class", "class_name":
		return ByClassName, nil
	case "tag", "tag_name":
		return ByTagName, nil
	}
	return 0, fmt.Errorf("unknown locator strategy %q", s)
}

// Locator describes how to find an element. It is a comparable value with
// no runtime state, so two Locators built from the same inputs are equal.
type Locator struct {
	Kind  Kind
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("By.%s: %s", l.Kind, l.Value)
}

// IsZero reports whether l is the zero Locator.
func (l Locator) IsZero() bool { return l == Locator{} }

// ID locates by element id.
func ID(id string) Locator { return Locator{Kind: ByID, Value: id} }

// CSS locates by CSS selector.
func CSS(selector string) Locator { return Locator{Kind: ByCSS, Value: selector} }

// XPathExpr locates by a raw XPath expression.
func XPathExpr(expr string) Locator { return Locator{Kind: ByXPath, Value: expr} }

// LinkText locates anchors by their exact text.
func LinkText(text string) Locator { return Locator{Kind: ByLinkText, Value: text} }

// PartialLinkText locates anchors whose text contains text.
func PartialLinkText(text string) Locator { return Locator{Kind: ByPartialLinkText, Value: text} }

// ClassName locates by a single class name.
func ClassName(name string) Locator { return Locator{Kind: ByClassName, Value: name} }

// TagName locates by tag.
func TagName(tag string) Locator { return Locator{Kind: ByTagName, Value: tag} }
