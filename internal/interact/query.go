// File: internal/interact/query.go
package interact

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// IsPresent reports whether loc matches anything right now. Lookup errors
// count as absent.
func (i *Interactor) IsPresent(ctx context.Context, loc locator.Locator) bool {
	els, err := i.ctrl.FindElements(ctx, loc)
	return err == nil && len(els) > 0
}

// IsVisible reports whether the first match of loc is displayed right now.
func (i *Interactor) IsVisible(ctx context.Context, loc locator.Locator) bool {
	el, err := i.ctrl.FindElement(ctx, loc)
	if err != nil {
		return false
	}
	shown, err := el.IsDisplayed(ctx)
	return err == nil && shown
}

// IsTextVisible reports whether some element whose own text contains text
// is displayed.
func (i *Interactor) IsTextVisible(ctx context.Context, text string) bool {
	return i.IsVisible(ctx, locator.TextContains(text))
}

// IsTextInvisible reports whether no element whose own text contains text
// is displayed. A failed lookup counts as invisible.
func (i *Interactor) IsTextInvisible(ctx context.Context, text string) bool {
	return !i.IsTextVisible(ctx, text)
}

// IsTextAbsentIn reports whether the text of loc does not contain text. A
// missing element counts as not containing it.
func (i *Interactor) IsTextAbsentIn(ctx context.Context, loc locator.Locator, text string) bool {
	el, err := i.ctrl.FindElement(ctx, loc)
	if err != nil {
		return true
	}
	got, err := el.Text(ctx)
	return err != nil || !strings.Contains(got, text)
}

// Parent returns the parent of the first match of loc.
func (i *Interactor) Parent(ctx context.Context, loc locator.Locator) (browser.Element, error) {
	return i.relative(ctx, loc, locator.Parent())
}

// ClosestAncestor returns the nearest ancestor of loc with the given tag.
func (i *Interactor) ClosestAncestor(ctx context.Context, loc locator.Locator, tag locator.HTMLTag) (browser.Element, error) {
	return i.relative(ctx, loc, locator.ClosestAncestor(tag))
}

// ClosestWithAttribute returns the nearest ancestor of loc whose attr
// contains value.
func (i *Interactor) ClosestWithAttribute(ctx context.Context, loc locator.Locator, attr, value string) (browser.Element, error) {
	return i.relative(ctx, loc, locator.ClosestAncestorWith(attr, value))
}

// Children returns the direct children of the first match of loc.
func (i *Interactor) Children(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	el, err := i.ctrl.FindElement(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	kids, err := el.FindElements(ctx, locator.Children())
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", loc, err)
	}
	return kids, nil
}

func (i *Interactor) relative(ctx context.Context, loc, rel locator.Locator) (browser.Element, error) {
	el, err := i.ctrl.FindElement(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	found, err := el.FindElements(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("%s from %s: %w", rel, loc, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%s from %s: %w", rel, loc, browser.ErrElementNotFound)
	}
	return found[0], nil
}
