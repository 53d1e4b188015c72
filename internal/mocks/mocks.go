// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/crmpilot/internal/browser"
	"github.com/xkilldash9x/crmpilot/internal/config"
	"github.com/xkilldash9x/crmpilot/internal/locator"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Diagnostics() config.DiagnosticsConfig {
	args := m.Called()
	return args.Get(0).(config.DiagnosticsConfig)
}

func (m *MockConfig) Journal() config.JournalConfig {
	args := m.Called()
	return args.Get(0).(config.JournalConfig)
}

func (m *MockConfig) Run() config.RunConfig {
	args := m.Called()
	return args.Get(0).(config.RunConfig)
}

func (m *MockConfig) SetBrowserKind(k config.BrowserKind)   { m.Called(k) }
func (m *MockConfig) SetBrowserDriver(d config.DriverKind)  { m.Called(d) }
func (m *MockConfig) SetBrowserHeadless(b bool)             { m.Called(b) }
func (m *MockConfig) SetBrowserRemoteURL(u string)          { m.Called(u) }
func (m *MockConfig) SetBrowserWaitMinutes(minutes float64) { m.Called(minutes) }
func (m *MockConfig) SetRunParallelism(n int)               { m.Called(n) }

// -- Controller Mock --

// MockController mocks browser.Controller.
type MockController struct {
	mock.Mock
}

var _ browser.Controller = (*MockController)(nil)

func (m *MockController) FindElement(ctx context.Context, loc locator.Locator) (browser.Element, error) {
	args := m.Called(ctx, loc)
	el, _ := args.Get(0).(browser.Element)
	return el, args.Error(1)
}

func (m *MockController) FindElements(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	args := m.Called(ctx, loc)
	els, _ := args.Get(0).([]browser.Element)
	return els, args.Error(1)
}

func (m *MockController) ExecuteScript(ctx context.Context, script string, scriptArgs ...any) (any, error) {
	args := m.Called(ctx, script, scriptArgs)
	return args.Get(0), args.Error(1)
}

func (m *MockController) SwitchToFrame(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockController) SwitchToParentFrame(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) SwitchToDefaultContent(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) WindowHandles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	handles, _ := args.Get(0).([]string)
	return handles, args.Error(1)
}

func (m *MockController) SwitchToWindow(ctx context.Context, handle string) error {
	return m.Called(ctx, handle).Error(0)
}

func (m *MockController) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockController) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockController) TakeScreenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	png, _ := args.Get(0).([]byte)
	return png, args.Error(1)
}

func (m *MockController) AlertText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockController) AcceptAlert(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) DismissAlert(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) Kind() config.BrowserKind {
	return m.Called().Get(0).(config.BrowserKind)
}

func (m *MockController) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Element Mock --

// MockElement mocks browser.Element.
type MockElement struct {
	mock.Mock
}

var _ browser.Element = (*MockElement)(nil)

func (m *MockElement) IsDisplayed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) IsEnabled(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) IsSelected(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) Text(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockElement) TagName(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) Click(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) SendKeys(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockElement) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockElement) FindElements(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	args := m.Called(ctx, loc)
	els, _ := args.Get(0).([]browser.Element)
	return els, args.Error(1)
}
