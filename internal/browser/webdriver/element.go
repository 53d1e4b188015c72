// File: internal/browser/webdriver/element.go
package webdriver

import (
	"context"
	"fmt"

	"github.com/tebeka/selenium"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// Element is a WebDriver element reference.
type Element struct {
	ctrl *Controller
	we   selenium.WebElement
}

var _ browser.Element = (*Element)(nil)

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.we.IsDisplayed()
	return ok, mapError(err)
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.we.IsEnabled()
	return ok, mapError(err)
}

func (e *Element) IsSelected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.we.IsSelected()
	return ok, mapError(err)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.we.Text()
	return text, mapError(err)
}

// Attribute reads the attribute through script: the driver's own call
// cannot tell an absent attribute from an empty one.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	res, err := e.ctrl.ExecuteScript(ctx, attributeScript, e, name)
	if err != nil {
		return "", false, err
	}
	if res == nil {
		return "", false, nil
	}
	s, ok := res.(string)
	if !ok {
		return fmt.Sprint(res), true, nil
	}
	return s, true, nil
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tag, err := e.we.TagName()
	return tag, mapError(err)
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(e.we.Click())
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(e.we.SendKeys(text))
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(e.we.Clear())
}

func (e *Element) FindElements(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	strategy, err := by(loc)
	if err != nil {
		return nil, err
	}
	found, err := e.we.FindElements(strategy, loc.Value)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, mapError(err))
	}
	return e.ctrl.wrap(found), nil
}
