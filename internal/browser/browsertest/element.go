// File: internal/browser/browsertest/element.go
package browsertest

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// Handle is the fake's element handle. It goes stale when its node is
// removed or when the controller has left the node's frame.
type Handle struct {
	page *Page
	node *Node
}

var _ browser.Element = (*Handle)(nil)

// Node returns the node behind the handle.
func (h *Handle) Node() *Node { return h.node }

func (h *Handle) liveLocked() error {
	if err := h.page.usableLocked(); err != nil {
		return err
	}
	if h.node.removed {
		return fmt.Errorf("<%s>: %w", h.node.tag, browser.ErrStaleReference)
	}
	doc, err := h.page.currentDocLocked()
	if err != nil {
		return err
	}
	if h.node.doc != doc {
		return fmt.Errorf("<%s> belongs to another frame: %w", h.node.tag, browser.ErrStaleReference)
	}
	return nil
}

// read runs fn under the page lock after checking the handle is live.
func (h *Handle) read(ctx context.Context, fn func(n *Node) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.page.mu.Lock()
	defer h.page.mu.Unlock()
	if err := h.liveLocked(); err != nil {
		return err
	}
	return fn(h.node)
}

func (h *Handle) IsDisplayed(ctx context.Context) (bool, error) {
	var out bool
	err := h.read(ctx, func(n *Node) error { out = n.visible(); return nil })
	return out, err
}

func (h *Handle) IsEnabled(ctx context.Context) (bool, error) {
	var out bool
	err := h.read(ctx, func(n *Node) error { out = !n.disabled; return nil })
	return out, err
}

func (h *Handle) IsSelected(ctx context.Context) (bool, error) {
	var out bool
	err := h.read(ctx, func(n *Node) error { out = n.selected; return nil })
	return out, err
}

func (h *Handle) Text(ctx context.Context) (string, error) {
	var out string
	err := h.read(ctx, func(n *Node) error { out = n.text; return nil })
	return out, err
}

func (h *Handle) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		out string
		ok  bool
	)
	err := h.read(ctx, func(n *Node) error { out, ok = n.attr(name); return nil })
	return out, ok, err
}

func (h *Handle) TagName(ctx context.Context) (string, error) {
	var out string
	err := h.read(ctx, func(n *Node) error { out = n.tag; return nil })
	return out, err
}

func (h *Handle) Click(ctx context.Context) error {
	var hook func()
	err := h.read(ctx, func(n *Node) error {
		if len(n.clickErrs) > 0 {
			e := n.clickErrs[0]
			n.clickErrs = n.clickErrs[1:]
			return e
		}
		if !n.visible() || n.disabled {
			return fmt.Errorf("<%s>: %w", n.tag, browser.ErrNotInteractable)
		}
		n.clicks++
		n.events = append(n.events, "click")
		hook = n.onClick
		return nil
	})
	if err == nil && hook != nil {
		hook()
	}
	return err
}

func (h *Handle) SendKeys(ctx context.Context, text string) error {
	return h.read(ctx, func(n *Node) error {
		if len(n.keyErrs) > 0 {
			e := n.keyErrs[0]
			n.keyErrs = n.keyErrs[1:]
			return e
		}
		if !n.visible() || n.disabled {
			return fmt.Errorf("<%s>: %w", n.tag, browser.ErrNotInteractable)
		}
		n.attrs["value"] += text
		n.events = append(n.events, "keys")
		return nil
	})
}

func (h *Handle) Clear(ctx context.Context) error {
	return h.read(ctx, func(n *Node) error {
		if n.disabled {
			return fmt.Errorf("<%s>: %w", n.tag, browser.ErrNotInteractable)
		}
		n.attrs["value"] = ""
		n.events = append(n.events, "clear")
		return nil
	})
}

func (h *Handle) FindElements(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	var out []browser.Element
	err := h.read(ctx, func(n *Node) error {
		h.page.findCounts[loc]++
		nodes, err := query(n, loc)
		if err != nil {
			return err
		}
		out = h.page.handles(nodes)
		return nil
	})
	return out, err
}
