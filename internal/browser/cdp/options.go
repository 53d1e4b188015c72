// File: internal/browser/cdp/options.go
package cdp

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/crmpilot/internal/config"
)

// flag is one browser command line switch, without its leading dashes.
type flag struct {
	name  string
	value any
}

// launchFlags translates the browser configuration into command line switches
// layered over chromedp's defaults. User supplied args come last so they win.
func launchFlags(cfg config.BrowserConfig) []flag {
	flags := []flag{
		// Sandboxing fails on hardened hosts and inside containers.
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
		{"headless", cfg.Headless},
	}
	if cfg.Headless {
		flags = append(flags, flag{"disable-gpu", true})
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		flags = append(flags, flag{"window-size", fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight)})
	}

	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			flags = append(flags, flag{name, true})
			continue
		}
		flags = append(flags, flag{name, value})
	}
	return flags
}

// AllocatorOptions returns the chromedp allocator options for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
