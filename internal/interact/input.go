// File: internal/interact/input.go
package interact

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/browser/js"
	"github.com/xkilldash9x/crmpilot/internal/locator"
	"github.com/xkilldash9x/crmpilot/internal/wait"
)

// SendKeys waits for loc to be displayed and enabled, then types text once.
// Unlike Click, a failure while typing is returned as is.
func (i *Interactor) SendKeys(ctx context.Context, loc locator.Locator, text string) error {
	el, err := i.waits.Await(ctx, loc, wait.Clickable)
	if err != nil {
		return err
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("send keys to %s: %w", loc, err)
	}
	return nil
}

// Clear waits for loc to be displayed and enabled and clears its value.
func (i *Interactor) Clear(ctx context.Context, loc locator.Locator) error {
	el, err := i.waits.Await(ctx, loc, wait.Clickable)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", loc, err)
	}
	return nil
}

// Text waits for loc to be visible and returns its text.
func (i *Interactor) Text(ctx context.Context, loc locator.Locator) (string, error) {
	el, err := i.waits.Await(ctx, loc, wait.Visible)
	if err != nil {
		return "", err
	}
	s, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", loc, err)
	}
	return s, nil
}

type selectBy string

const (
	byValue selectBy = "value"
	byText  selectBy = "text"
	byIndex selectBy = "index"
)

// SelectByValue selects the option of the select at loc whose value is v.
func (i *Interactor) SelectByValue(ctx context.Context, loc locator.Locator, v string) error {
	return i.selectOption(ctx, loc, byValue, v)
}

// SelectByText selects the option whose visible text is text, ignoring
// surrounding whitespace.
func (i *Interactor) SelectByText(ctx context.Context, loc locator.Locator, text string) error {
	return i.selectOption(ctx, loc, byText, text)
}

// SelectByIndex selects the option at the zero based index n.
func (i *Interactor) SelectByIndex(ctx context.Context, loc locator.Locator, n int) error {
	if n < 0 {
		return fmt.Errorf("select %s index %d: %w", loc, n, browser.ErrOptionNotFound)
	}
	return i.selectOption(ctx, loc, byIndex, n)
}

// selectOption resolves loc once, without polling; callers wait for the
// select beforehand.
func (i *Interactor) selectOption(ctx context.Context, loc locator.Locator, by selectBy, needle any) error {
	el, err := i.uniqueSelect(ctx, loc)
	if err != nil {
		return err
	}
	res, err := i.ctrl.ExecuteScript(ctx, js.SelectOption, el, string(by), needle)
	if err != nil {
		return fmt.Errorf("select %s by %s: %w", loc, by, err)
	}
	idx, ok := asInt(res)
	switch {
	case !ok:
		return fmt.Errorf("select %s by %s: unexpected script result %T: %w", loc, by, res, browser.ErrScriptFailed)
	case idx == -2:
		return fmt.Errorf("select %s: %w", loc, browser.ErrNotSelect)
	case idx < 0:
		return fmt.Errorf("select %s by %s %v: %w", loc, by, needle, browser.ErrOptionNotFound)
	}
	i.logger.Debug("Option selected.", zap.Stringer("target", loc), zap.String("by", string(by)), zap.Int("index", idx))
	return nil
}

// SelectOptions returns the visible text of every option of the select at loc.
func (i *Interactor) SelectOptions(ctx context.Context, loc locator.Locator) ([]string, error) {
	el, err := i.uniqueSelect(ctx, loc)
	if err != nil {
		return nil, err
	}
	res, err := i.ctrl.ExecuteScript(ctx, js.SelectOptions, el)
	if err != nil {
		return nil, fmt.Errorf("list options of %s: %w", loc, err)
	}
	items, ok := res.([]any)
	if !ok && res != nil {
		return nil, fmt.Errorf("list options of %s: unexpected script result %T: %w", loc, res, browser.ErrScriptFailed)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, strings.TrimSpace(fmt.Sprint(it)))
	}
	return out, nil
}

func (i *Interactor) uniqueSelect(ctx context.Context, loc locator.Locator) (browser.Element, error) {
	els, err := i.ctrl.FindElements(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	switch len(els) {
	case 0:
		return nil, fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)
	case 1:
	default:
		return nil, fmt.Errorf("%s matched %d elements: %w", loc, len(els), browser.ErrAmbiguousMatch)
	}
	tag, err := els[0].TagName(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tag of %s: %w", loc, err)
	}
	if !strings.EqualFold(tag, "select") {
		return nil, fmt.Errorf("%s is <%s>: %w", loc, tag, browser.ErrNotSelect)
	}
	return els[0], nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
