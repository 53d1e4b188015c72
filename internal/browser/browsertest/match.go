// File: internal/browser/browsertest/match.go
package browsertest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// The fake understands the locator shapes the builders emit plus a few
// plain CSS and XPath forms tests write by hand.
var (
	cssAttrRe   = regexp.MustCompile(`^([\w-]*)\[([\w-]+)([\^$*]?)='((?:[^'\\]|\\.)*)'\]$`)
	cssIDRe     = regexp.MustCompile(`^([\w-]*)#([\w-]+)$`)
	cssTagRe    = regexp.MustCompile(`^[\w-]+$|^\*$`)
	xContainsRe = regexp.MustCompile(`^//([\w-]+|\*)\[contains\((@[\w-]+|text\(\)), ('[^']*'|"[^"]*")\)\]$`)
	xAllRe      = regexp.MustCompile(`^//([\w-]+|\*)$`)
	xAncTagRe   = regexp.MustCompile(`^ancestor::([\w-]+|\*)\[1\]$`)
	xAncAttrRe  = regexp.MustCompile(`^ancestor::\*\[contains\(@([\w-]+), ('[^']*'|"[^"]*")\)\]\[1\]$`)
)

type predicate func(*Node) bool

// query resolves loc against scope. Relative XPath forms are evaluated from
// scope itself; everything else searches scope's descendants.
func query(scope *Node, loc locator.Locator) ([]*Node, error) {
	if loc.Kind == locator.ByXPath {
		switch v := loc.Value; {
		case v == "..":
			if scope.parent == nil || scope.parent == scope.doc.root {
				return nil, nil
			}
			return []*Node{scope.parent}, nil
		case v == "./*":
			var out []*Node
			for _, c := range scope.children {
				if !c.removed {
					out = append(out, c)
				}
			}
			return out, nil
		case xAncTagRe.MatchString(v):
			tag := xAncTagRe.FindStringSubmatch(v)[1]
			return ancestor(scope, func(n *Node) bool { return tag == "*" || n.tag == tag }), nil
		case xAncAttrRe.MatchString(v):
			m := xAncAttrRe.FindStringSubmatch(v)
			attr, want := m[1], unquoteXPath(m[2])
			return ancestor(scope, func(n *Node) bool {
				got, ok := n.attr(attr)
				return ok && strings.Contains(got, want)
			}), nil
		}
	}

	pred, err := compile(loc)
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, n := range scope.descendants() {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func ancestor(n *Node, pred predicate) []*Node {
	for cur := n.parent; cur != nil && cur != n.doc.root; cur = cur.parent {
		if pred(cur) {
			return []*Node{cur}
		}
	}
	return nil
}

func compile(loc locator.Locator) (predicate, error) {
	v := loc.Value
	switch loc.Kind {
	case locator.ByID:
		return attrIs("id", v), nil
	case locator.ByTagName:
		return tagIs(v), nil
	case locator.ByClassName:
		return func(n *Node) bool {
			for _, c := range strings.Fields(n.attrs["class"]) {
				if c == v {
					return true
				}
			}
			return false
		}, nil
	case locator.ByLinkText:
		return func(n *Node) bool { return n.tag == "a" && strings.TrimSpace(n.text) == v }, nil
	case locator.ByPartialLinkText:
		return func(n *Node) bool { return n.tag == "a" && strings.Contains(n.text, v) }, nil
	case locator.ByCSS:
		switch {
		case cssAttrRe.MatchString(v):
			m := cssAttrRe.FindStringSubmatch(v)
			tag, attr, op := m[1], m[2], m[3]
			want := strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(m[4])
			return func(n *Node) bool {
				if tag != "" && n.tag != tag {
					return false
				}
				got, ok := n.attr(attr)
				if !ok {
					return false
				}
				switch op {
				case "^":
					return strings.HasPrefix(got, want)
				case "$":
					return strings.HasSuffix(got, want)
				case "*":
					return strings.Contains(got, want)
				}
				return got == want
			}, nil
		case cssIDRe.MatchString(v):
			m := cssIDRe.FindStringSubmatch(v)
			byID := attrIs("id", m[2])
			tag := m[1]
			return func(n *Node) bool { return (tag == "" || n.tag == tag) && byID(n) }, nil
		case cssTagRe.MatchString(v):
			return tagIs(v), nil
		}
	case locator.ByXPath:
		switch {
		case xContainsRe.MatchString(v):
			m := xContainsRe.FindStringSubmatch(v)
			tag, subject, want := m[1], m[2], unquoteXPath(m[3])
			return func(n *Node) bool {
				if tag != "*" && n.tag != tag {
					return false
				}
				if subject == "text()" {
					return strings.Contains(n.text, want)
				}
				got, ok := n.attr(strings.TrimPrefix(subject, "@"))
				return ok && strings.Contains(got, want)
			}, nil
		case xAllRe.MatchString(v):
			return tagIs(xAllRe.FindStringSubmatch(v)[1]), nil
		}
	}
	return nil, fmt.Errorf("browsertest: unsupported locator %s", loc)
}

func attrIs(name, want string) predicate {
	return func(n *Node) bool {
		got, ok := n.attr(name)
		return ok && got == want
	}
}

func tagIs(tag string) predicate {
	tag = strings.ToLower(tag)
	return func(n *Node) bool { return tag == "*" || n.tag == tag }
}

func unquoteXPath(s string) string {
	return s[1 : len(s)-1]
}
