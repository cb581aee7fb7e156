// internal/browser/options.go
package browser

import (
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/config"
)

// Options configures one browser session.
type Options struct {
	Headless        bool
	ExecPath        string
	NoSandbox       bool
	IgnoreTLSErrors bool
	Debug           bool
	Args            []string
	WindowWidth     int
	WindowHeight    int
	// Env is appended to the browser's environment, typically DISPLAY.
	Env []string

	PageLoadTimeout time.Duration
	ElementWait     time.Duration
	PollInterval    time.Duration
	ShutdownTimeout time.Duration

	Logger *zap.Logger
}

// OptionsFromConfig maps configuration onto session options.
func OptionsFromConfig(b config.BrowserConfig, t config.TimeoutConfig, logger *zap.Logger) Options {
	return Options{
		Headless:        b.Headless,
		ExecPath:        b.ExecPath,
		NoSandbox:       b.NoSandbox,
		IgnoreTLSErrors: b.IgnoreTLSErrors,
		Debug:           b.Debug,
		Args:            b.Args,
		WindowWidth:     b.WindowWidth,
		WindowHeight:    b.WindowHeight,
		PageLoadTimeout: t.PageLoad,
		ElementWait:     t.ElementWait,
		PollInterval:    t.PollInterval,
		ShutdownTimeout: t.Shutdown,
		Logger:          logger,
	}
}

func (o Options) withDefaults() Options {
	if o.PageLoadTimeout <= 0 {
		o.PageLoadTimeout = 30 * time.Second
	}
	if o.ElementWait <= 0 {
		o.ElementWait = 20 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 10 * time.Second
	}
	if o.WindowWidth <= 0 || o.WindowHeight <= 0 {
		o.WindowWidth, o.WindowHeight = 1024, 768
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// allocatorOptions builds the exec allocator flags. The defaults are spelled
// out rather than taken from chromedp.DefaultExecAllocatorOptions so headless
// can be switched off.
func allocatorOptions(o Options, userDataDir string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-automation", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.WindowSize(o.WindowWidth, o.WindowHeight),
		chromedp.UserDataDir(userDataDir),
	}
	if o.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if o.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	// Router consoles serve self-signed certificates.
	if o.IgnoreTLSErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if len(o.Env) > 0 {
		opts = append(opts, chromedp.Env(o.Env...))
	}

	for _, arg := range o.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		// "key=value" becomes a valued flag, a bare name a boolean one.
		if key, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}
