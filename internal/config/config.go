// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface is the read side of the configuration plus the setters the CLI
// uses for flag overrides. Components depend on it rather than on *Config.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Diagnostics() DiagnosticsConfig
	Journal() JournalConfig
	Run() RunConfig

	// flag overrides
	SetBrowserKind(BrowserKind)
	SetBrowserDriver(DriverKind)
	SetBrowserHeadless(bool)
	SetBrowserRemoteURL(string)
	SetBrowserWaitMinutes(float64)

	SetRunParallelism(int)
}

// Config holds the entire application configuration.
// Sections are exported so viper can decode into them; callers go through
// the Interface getters.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	DiagnosticsCfg DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	JournalCfg     JournalConfig     `mapstructure:"journal" yaml:"journal"`
	RunCfg         RunConfig         `mapstructure:"run" yaml:"run"`
}

var _ Interface = (*Config)(nil)

// getters

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Diagnostics() DiagnosticsConfig { return c.DiagnosticsCfg }
func (c *Config) Journal() JournalConfig         { return c.JournalCfg }
func (c *Config) Run() RunConfig                 { return c.RunCfg }

// setters

func (c *Config) SetBrowserKind(k BrowserKind)    { c.BrowserCfg.Kind = k }
func (c *Config) SetBrowserDriver(d DriverKind)   { c.BrowserCfg.Driver = d }
func (c *Config) SetBrowserHeadless(b bool)       { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserRemoteURL(u string)    { c.BrowserCfg.RemoteURL = u }
func (c *Config) SetBrowserWaitMinutes(m float64) { c.BrowserCfg.WaitMinutes = m }

func (c *Config) SetRunParallelism(n int) { c.RunCfg.Parallelism = n }

// LoggerConfig controls the console and rotated-file log outputs.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names a console color (red, green, ...) per log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserKind names the family of browser a session drives.
type BrowserKind string

const (
	KindChrome  BrowserKind = "chrome"
	KindFirefox BrowserKind = "firefox"
	KindIE      BrowserKind = "ie"
	KindEdge    BrowserKind = "edge"
)

// ParseBrowserKind normalizes a user supplied browser name.
func ParseBrowserKind(s string) (BrowserKind, error) {
	switch k := BrowserKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindChrome, KindFirefox, KindIE, KindEdge:
		return k, nil
	case "internetexplorer", "internet explorer":
		return KindIE, nil
	case "msedge":
		return KindEdge, nil
	}
	return "", fmt.Errorf("unknown browser kind %q (want chrome, firefox, ie or edge)", s)
}

// ChromeLike reports whether the browser speaks the DevTools protocol.
func (k BrowserKind) ChromeLike() bool { return k == KindChrome || k == KindEdge }

// RequiresScriptClick reports whether native clicks are unreliable for this
// browser family, so every click goes through a script instead.
func (k BrowserKind) RequiresScriptClick() bool { return k == KindIE }

// DriverKind selects the automation backend.
type DriverKind string

const (
	// DriverWebDriver talks W3C WebDriver to a Selenium server or a browser driver.
	DriverWebDriver DriverKind = "webdriver"
	// DriverCDP launches a local Chrome-like browser over the DevTools protocol.
	DriverCDP DriverKind = "cdp"
)

// BrowserConfig holds settings for the browser session.
type BrowserConfig struct {
	Kind              BrowserKind   `mapstructure:"kind" yaml:"kind"`
	Driver            DriverKind    `mapstructure:"driver" yaml:"driver"`
	RemoteURL         string        `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	WaitMinutes       float64       `mapstructure:"wait_minutes" yaml:"wait_minutes"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PageReadyInterval time.Duration `mapstructure:"page_ready_interval" yaml:"page_ready_interval"`
	ForceScriptClick  bool          `mapstructure:"force_script_click" yaml:"force_script_click"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
}

// WaitTimeout converts the configured wait minutes into the bound applied to
// every wait in a session.
func (b BrowserConfig) WaitTimeout() time.Duration {
	return time.Duration(b.WaitMinutes * float64(time.Minute))
}

// DiagnosticsConfig controls failure screenshots.
type DiagnosticsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// JournalConfig controls the command, issue and info logs shared by sessions.
type JournalConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir        string `mapstructure:"dir" yaml:"dir"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// RunConfig holds settings for the scenario runner.
type RunConfig struct {
	Parallelism int     `mapstructure:"parallelism" yaml:"parallelism"`
	StepRate    float64 `mapstructure:"step_rate" yaml:"step_rate"`
	StepBurst   int     `mapstructure:"step_burst" yaml:"step_burst"`
}

// NewDefaultConfig returns the configuration SetDefaults describes.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults always decode.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "crmpilot")
	v.SetDefault("logger.log_file", "crmpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.kind", string(KindChrome))
	v.SetDefault("browser.driver", string(DriverWebDriver))
	v.SetDefault("browser.remote_url", "http://localhost:4444/wd/hub")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.wait_minutes", 2.0)
	v.SetDefault("browser.poll_interval", "500ms")
	v.SetDefault("browser.page_ready_interval", "500ms")
	v.SetDefault("browser.force_script_click", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Diagnostics --
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.screenshot_dir", "screenshots")

	// -- Journal --
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.dir", "logs")
	v.SetDefault("journal.max_size", 50)
	v.SetDefault("journal.max_backups", 3)
	v.SetDefault("journal.max_age", 14)
	v.SetDefault("journal.compress", false)

	// -- Run --
	v.SetDefault("run.parallelism", 1)
	v.SetDefault("run.step_rate", 0.0)
	v.SetDefault("run.step_burst", 1)
}

// NewConfigFromViper decodes and validates a configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Older test rigs toggle headless mode with RUN_HEADLESS.
	_ = v.BindEnv("browser.headless", "CRMPILOT_BROWSER_HEADLESS", "RUN_HEADLESS")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if err := c.BrowserCfg.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if c.RunCfg.Parallelism < 1 {
		return fmt.Errorf("run.parallelism must be a positive integer")
	}
	if c.RunCfg.StepRate < 0 {
		return fmt.Errorf("run.step_rate must not be negative")
	}
	if c.DiagnosticsCfg.Enabled && c.DiagnosticsCfg.ScreenshotDir == "" {
		return fmt.Errorf("diagnostics.screenshot_dir is required when diagnostics are enabled")
	}
	if c.JournalCfg.Enabled && c.JournalCfg.Dir == "" {
		return fmt.Errorf("journal.dir is required when the journal is enabled")
	}
	return nil
}

// Validate normalizes Kind and rejects settings the chosen driver cannot honor.
func (b *BrowserConfig) Validate() error {
	kind, err := ParseBrowserKind(string(b.Kind))
	if err != nil {
		return err
	}
	b.Kind = kind
	switch b.Driver {
	case DriverWebDriver:
		if b.RemoteURL == "" {
			return fmt.Errorf("remote_url is required for the webdriver driver")
		}
	case DriverCDP:
		if !b.Kind.ChromeLike() {
			return fmt.Errorf("the cdp driver supports chrome and edge only, got %q", b.Kind)
		}
	default:
		return fmt.Errorf("unknown driver %q (want webdriver or cdp)", b.Driver)
	}
	if b.WaitMinutes <= 0 {
		return fmt.Errorf("wait_minutes must be positive")
	}
	if b.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if b.PageReadyInterval <= 0 {
		return fmt.Errorf("page_ready_interval must be a positive duration")
	}
	return nil
}
