// File: internal/config/config.go
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Router   RouterConfig  `mapstructure:"router" yaml:"router"`
	Browser  BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Display  DisplayConfig `mapstructure:"display" yaml:"display"`
	Timeouts TimeoutConfig `mapstructure:"timeouts" yaml:"timeouts"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Output   OutputConfig  `mapstructure:"output" yaml:"output"`
}

// LoggerConfig holds all the configuration for the logger.
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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// RouterConfig describes the console to drive. The password is never written back out.
type RouterConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Scheme      string `mapstructure:"scheme" yaml:"scheme"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"-"`
	Model       string `mapstructure:"model" yaml:"model"`
	LocatorFile string `mapstructure:"locator_file" yaml:"locator_file"`
}

// BrowserConfig holds settings for the automated browser instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	NoSandbox       bool     `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool     `mapstructure:"debug" yaml:"debug"`
	Args            []string `mapstructure:"args" yaml:"args"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
}

// DisplayConfig controls the off-screen X display used for headful runs.
type DisplayConfig struct {
	Virtual      bool          `mapstructure:"virtual" yaml:"virtual"`
	Binary       string        `mapstructure:"binary" yaml:"binary"`
	Number       int           `mapstructure:"number" yaml:"number"`
	Width        int           `mapstructure:"width" yaml:"width"`
	Height       int           `mapstructure:"height" yaml:"height"`
	Depth        int           `mapstructure:"depth" yaml:"depth"`
	SocketDir    string        `mapstructure:"socket_dir" yaml:"socket_dir"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
}

// TimeoutConfig holds every fixed wait used by the workflow.
type TimeoutConfig struct {
	Run          time.Duration `mapstructure:"run" yaml:"run"`
	Probe        time.Duration `mapstructure:"probe" yaml:"probe"`
	PageLoad     time.Duration `mapstructure:"page_load" yaml:"page_load"`
	ElementWait  time.Duration `mapstructure:"element_wait" yaml:"element_wait"`
	Auth         time.Duration `mapstructure:"auth" yaml:"auth"`
	SaveConfirm  time.Duration `mapstructure:"save_confirm" yaml:"save_confirm"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Shutdown     time.Duration `mapstructure:"shutdown" yaml:"shutdown"`
}

// MetricsConfig enables a node-exporter textfile describing the last run.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// OutputConfig selects how the final outcome is printed.
type OutputConfig struct {
	JSON bool `mapstructure:"json" yaml:"json"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "filterctl")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Router --
	v.SetDefault("router.host", "192.168.1.1")
	v.SetDefault("router.scheme", "http")
	v.SetDefault("router.username", "admin")
	v.SetDefault("router.password", "")
	v.SetDefault("router.model", "asus")
	v.SetDefault("router.locator_file", "")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.window_width", 1024)
	v.SetDefault("browser.window_height", 768)

	// -- Display --
	v.SetDefault("display.virtual", false)
	v.SetDefault("display.binary", "Xvfb")
	v.SetDefault("display.number", 99)
	v.SetDefault("display.width", 1024)
	v.SetDefault("display.height", 768)
	v.SetDefault("display.depth", 24)
	v.SetDefault("display.socket_dir", "/tmp/.X11-unix")
	v.SetDefault("display.start_timeout", "5s")

	// -- Timeouts --
	v.SetDefault("timeouts.run", "3m")
	v.SetDefault("timeouts.probe", "5s")
	v.SetDefault("timeouts.page_load", "30s")
	v.SetDefault("timeouts.element_wait", "20s")
	v.SetDefault("timeouts.auth", "20s")
	v.SetDefault("timeouts.save_confirm", "15s")
	v.SetDefault("timeouts.poll_interval", "500ms")
	v.SetDefault("timeouts.shutdown", "10s")

	// -- Metrics / Output --
	v.SetDefault("metrics.textfile_path", "")
	v.SetDefault("output.json", false)
}

// BindEnv binds FILTERCTL_* variables plus the bare ROUTER_* names older cron
// wrappers export.
func BindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"router.host":     {"FILTERCTL_ROUTER_HOST", "ROUTER_IP"},
		"router.username": {"FILTERCTL_ROUTER_USERNAME", "ROUTER_USERNAME"},
		"router.password": {"FILTERCTL_ROUTER_PASSWORD", "ROUTER_PASSWORD"},
		"router.scheme":   {"FILTERCTL_ROUTER_SCHEME", "ROUTER_SCHEME"},
		"router.model":    {"FILTERCTL_ROUTER_MODEL", "ROUTER_MODEL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	v.SetEnvPrefix("FILTERCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, p := range []*string{&cfg.Logger.LogFile, &cfg.Router.LocatorFile, &cfg.Metrics.TextfilePath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("expanding path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Credentials are checked
// separately when a connection is built, so read-only commands work without them.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Router.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("router.scheme must be http or https, got %q", c.Router.Scheme)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts: %w", err)
	}
	if err := c.Display.Validate(); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser.window_width and browser.window_height must be positive")
	}
	return nil
}

// Validate checks the timeout settings.
func (t *TimeoutConfig) Validate() error {
	named := map[string]time.Duration{
		"run":           t.Run,
		"probe":         t.Probe,
		"page_load":     t.PageLoad,
		"element_wait":  t.ElementWait,
		"auth":          t.Auth,
		"save_confirm":  t.SaveConfirm,
		"poll_interval": t.PollInterval,
		"shutdown":      t.Shutdown,
	}
	for name, d := range named {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	if t.PollInterval >= t.ElementWait {
		return fmt.Errorf("poll_interval (%s) must be shorter than element_wait (%s)", t.PollInterval, t.ElementWait)
	}
	return nil
}

// Validate checks the DisplayConfig settings.
func (d *DisplayConfig) Validate() error {
	if !d.Virtual {
		return nil
	}
	if d.Binary == "" {
		return fmt.Errorf("binary is required when virtual is enabled")
	}
	if d.Number < 0 {
		return fmt.Errorf("number must not be negative")
	}
	if d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		return fmt.Errorf("width, height and depth must be positive")
	}
	if d.StartTimeout <= 0 {
		return fmt.Errorf("start_timeout must be a positive duration")
	}
	return nil
}

// WriteYAML renders the effective configuration. The router password is omitted.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
