// File: internal/locator/vocabulary.go
package locator

import (
	"fmt"
	"strings"
)

// Attribute is one of the HTML attributes the CRM UI is commonly located by.
// Its value is the attribute name as it appears in markup.
type Attribute string

const (
	AttrID              Attribute = "id"
	AttrClass           Attribute = "class"
	AttrHref            Attribute = "href"
	AttrType            Attribute = "type"
	AttrName            Attribute = "name"
	AttrValue           Attribute = "value"
	AttrFor             Attribute = "for"
	AttrSrc             Attribute = "src"
	AttrText            Attribute = "text"
	AttrTitle           Attribute = "title"
	AttrStyle           Attribute = "style"
	AttrTabIndex        Attribute = "tabindex"
	AttrRole            Attribute = "role"
	AttrTooltip         Attribute = "tooltip"
	AttrNgClick         Attribute = "ng-click"
	AttrNgDblClick      Attribute = "ng-dblclick"
	AttrNgController    Attribute = "ng-controller"
	AttrNgHide          Attribute = "ng-hide"
	AttrNgShow          Attribute = "ng-show"
	AttrNgInclude       Attribute = "ng-include"
	AttrNgForm          Attribute = "ng-form"
	AttrNgInit          Attribute = "ng-init"
	AttrNgClass         Attribute = "ng-class"
	AttrNgIf            Attribute = "ng-if"
	AttrNgRepeat        Attribute = "ng-repeat"
	AttrNgModel         Attribute = "ng-model"
	AttrNgSwitch        Attribute = "ng-switch"
	AttrAriaControls    Attribute = "aria-controls"
	AttrAriaSelected    Attribute = "aria-selected"
	AttrAriaOwns        Attribute = "aria-owns"
	AttrAriaLabelledBy  Attribute = "aria-labelledby"
	AttrFormControlName Attribute = "formcontrolname"
	AttrFormArrayName   Attribute = "formarrayname"
	AttrWjPart          Attribute = "wj-part"
)

var knownAttributes = map[Attribute]struct{}{}

func init() {
	for _, a := range []Attribute{
		AttrID, AttrClass, AttrHref, AttrType, AttrName, AttrValue, AttrFor, AttrSrc,
		AttrText, AttrTitle, AttrStyle, AttrTabIndex, AttrRole, AttrTooltip,
		AttrNgClick, AttrNgDblClick, AttrNgController, AttrNgHide, AttrNgShow,
		AttrNgInclude, AttrNgForm, AttrNgInit, AttrNgClass, AttrNgIf, AttrNgRepeat,
		AttrNgModel, AttrNgSwitch, AttrAriaControls, AttrAriaSelected, AttrAriaOwns,
		AttrAriaLabelledBy, AttrFormControlName, AttrFormArrayName, AttrWjPart,
	} {
		knownAttributes[a] = struct{}{}
	}
}

func (a Attribute) String() string { return string(a) }

// Valid reports whether a belongs to the known set.
func (a Attribute) Valid() bool {
	_, ok := knownAttributes[a]
	return ok
}

// ParseAttribute accepts markup names ("ng-click") as well as identifier
// spellings ("ng_click", "Class").
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !a.Valid() {
		return "", fmt.Errorf("unknown attribute %q", s)
	}
	return a, nil
}

// HTMLTag is one of the element tags used in structural locators.
type HTMLTag string

const (
	TagInput    HTMLTag = "input"
	TagTextArea HTMLTag = "textarea"
	TagA        HTMLTag = "a"
	TagLink     HTMLTag = "link"
	TagButton   HTMLTag = "button"
	TagDiv      HTMLTag = "div"
	TagSpan     HTMLTag = "span"
	TagLabel    HTMLTag = "label"
	TagUL       HTMLTag = "ul"
	TagLI       HTMLTag = "li"
	TagSelect   HTMLTag = "select"
	TagOption   HTMLTag = "option"
	TagTable    HTMLTag = "table"
	TagTHead    HTMLTag = "thead"
	TagTBody    HTMLTag = "tbody"
	TagTR       HTMLTag = "tr"
	TagTD       HTMLTag = "td"
	TagImg      HTMLTag = "img"
	TagStrong   HTMLTag = "strong"
	TagH2       HTMLTag = "h2"
	TagH3       HTMLTag = "h3"
	TagIFrame   HTMLTag = "iframe"
	TagAny      HTMLTag = "*"
)

var knownTags = map[HTMLTag]struct{}{}

func init() {
	for _, t := range []HTMLTag{
		TagInput, TagTextArea, TagA, TagLink, TagButton, TagDiv, TagSpan, TagLabel,
		TagUL, TagLI, TagSelect, TagOption, TagTable, TagTHead, TagTBody, TagTR, TagTD,
		TagImg, TagStrong, TagH2, TagH3, TagIFrame, TagAny,
	} {
		knownTags[t] = struct{}{}
	}
}

func (t HTMLTag) String() string { return string(t) }

// Valid reports whether t belongs to the known set.
func (t HTMLTag) Valid() bool {
	_, ok := knownTags[t]
	return ok
}

// ParseTag normalizes a tag name and checks it against the known set.
// "textfield" and "dropdown" are accepted as aliases for input and select.
func ParseTag(s string) (HTMLTag, error) {
	switch n := strings.ToLower(strings.TrimSpace(s)); n {
	case "textfield":
		return TagInput, nil
	case "dropdown":
		return TagSelect, nil
	default:
		t := HTMLTag(n)
		if !t.Valid() {
			return "", fmt.Errorf("unknown tag %q", s)
		}
		return t, nil
	}
}
