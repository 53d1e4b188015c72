// File: internal/browser/browsertest/dom.go

// Package browsertest provides an in-memory browser.Controller backed by a
// small DOM model. Nodes can be hidden, disabled, replaced or removed while a
// wait is in flight, which makes the engine's retry behavior observable
// without a real browser.
package browsertest

import (
	"strings"
)

// Node is an element in a fake document. Builder methods are meant for
// setting up a page before it is handed to the code under test; once a test
// is running, mutate nodes through the Page so access is serialized.
type Node struct {
	tag      string
	attrs    map[string]string
	text     string
	hidden   bool
	disabled bool
	selected bool

	parent   *Node
	children []*Node
	doc      *Document
	content  *Document // set for iframes
	removed  bool

	// obscured counts how many more in-view checks report the node as covered.
	obscured int

	clicks    int
	events    []string
	clickErrs []error
	keyErrs   []error
	onClick   func()
}

// El builds a node with the given tag and attribute name/value pairs.
func El(tag string, attrs ...string) *Node {
	n := &Node{tag: strings.ToLower(tag), attrs: map[string]string{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.attrs[attrs[i]] = attrs[i+1]
	}
	return n
}

// IFrame builds an iframe node with its own content document.
func IFrame(attrs ...string) *Node {
	n := El("iframe", attrs...)
	n.content = NewDocument()
	n.content.host = n
	return n
}

// Option builds an <option> with a value and visible text.
func Option(value, text string) *Node {
	return El("option", "value", value).WithText(text)
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	for _, c := range children {
		c.parent = n
		c.adopt(n.doc)
		n.children = append(n.children, c)
	}
	return n
}

func (n *Node) adopt(d *Document) {
	n.doc = d
	for _, c := range n.children {
		c.adopt(d)
	}
}

// WithText sets the node's own text.
func (n *Node) WithText(s string) *Node { n.text = s; return n }

// Hidden marks the node as not displayed.
func (n *Node) Hidden() *Node { n.hidden = true; return n }

// Disabled marks the node as not enabled.
func (n *Node) Disabled() *Node { n.disabled = true; return n }

// Selected marks the node as selected (checkbox, radio or option).
func (n *Node) Selected() *Node { n.selected = true; return n }

// Obscured makes the next k in-view checks report the node as covered.
// Each scroll into view uncovers it by one.
func (n *Node) Obscured(k int) *Node { n.obscured = k; return n }

// FailClicks queues errors returned by the next native clicks, in order.
func (n *Node) FailClicks(errs ...error) *Node { n.clickErrs = append(n.clickErrs, errs...); return n }

// FailKeys queues errors returned by the next SendKeys calls, in order.
func (n *Node) FailKeys(errs ...error) *Node { n.keyErrs = append(n.keyErrs, errs...); return n }

// OnClick registers a hook run after every successful click. It runs without
// the page lock held, so it may call Page mutators.
func (n *Node) OnClick(fn func()) *Node { n.onClick = fn; return n }

// Content returns the document of an iframe node.
func (n *Node) Content() *Document { return n.content }

func (n *Node) attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// visible reports whether the node and all its ancestors are displayed.
func (n *Node) visible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.hidden {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(cur.attrs["style"]), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

// descendants returns the node's descendants in document order. Iframe
// contents are separate documents and are not descended into.
func (n *Node) descendants() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.children {
			if c.removed {
				continue
			}
			out = append(out, c)
			walk(c)
		}
	}
	walk(n)
	return out
}

// Document is a fake DOM document.
type Document struct {
	root       *Node
	host       *Node // iframe hosting this document, nil for the top level
	readyState string
	readyErr   error
}

// NewDocument returns an empty, fully loaded document.
func NewDocument() *Document {
	d := &Document{readyState: "complete"}
	d.root = El("html")
	d.root.doc = d
	return d
}

// Add appends nodes to the document body and returns the last one.
func (d *Document) Add(nodes ...*Node) *Node {
	d.root.Add(nodes...)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// AddFrame appends an iframe with the given id and returns its document.
func (d *Document) AddFrame(id string, attrs ...string) *Document {
	if id != "" {
		attrs = append([]string{"id", id}, attrs...)
	}
	f := IFrame(attrs...)
	d.Add(f)
	return f.content
}

// Loading sets the document's initial ready state.
func (d *Document) Loading(state string) *Document { d.readyState = state; return d }

func (d *Document) iframes() []*Node {
	var out []*Node
	for _, n := range d.root.descendants() {
		if n.tag == "iframe" {
			out = append(out, n)
		}
	}
	return out
}
