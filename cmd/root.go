// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/filterctl/internal/config"
	"github.com/xkilldash9x/filterctl/internal/observability"
	"github.com/xkilldash9x/filterctl/internal/router"
)

type contextKey string

const configKey contextKey = "filterctl.config"

var (
	cfgFile string
	verbose bool
	quiet   bool
)

// flagKeys maps persistent flags onto configuration keys so flags win over
// environment, file and defaults.
var flagKeys = map[string]string{
	"host":            "router.host",
	"scheme":          "router.scheme",
	"username":        "router.username",
	"password":        "router.password",
	"model":           "router.model",
	"locator-file":    "router.locator_file",
	"headless":        "browser.headless",
	"exec-path":       "browser.exec_path",
	"no-sandbox":      "browser.no_sandbox",
	"virtual-display": "display.virtual",
	"timeout":         "timeouts.run",
	"json":            "output.json",
	"metrics-file":    "metrics.textfile_path",
	"log-file":        "logger.log_file",
}

// NewRootCommand builds a fresh command tree. Each call is independent, which
// keeps flag state from leaking between test executions.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filterctl",
		Short: "Toggle the URL filter on a home router through its web console.",
		Long: `filterctl logs in to a router's admin console with a real browser, switches
URL filtering on or off, saves, and reads the setting back to confirm it stuck.

Credentials come from --password, FILTERCTL_ROUTER_PASSWORD or ROUTER_PASSWORD.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "filterctl"})
				return &router.Error{Kind: router.KindConfiguration, Stage: router.StageConfig, Reason: "loading configuration", Err: err}
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "filterctl"})
				return &router.Error{Kind: router.KindConfiguration, Stage: router.StageConfig, Reason: "loading configuration", Err: err}
			}

			observability.InitializeLogger(cfg.Logger)
			observability.SetLevel(logLevel(cfg.Logger.Level))
			observability.GetLogger().Debug("Starting filterctl.", zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./filterctl.yaml, then ~/.config/filterctl/filterctl.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug detail")
	flags.BoolVarP(&quiet, "quiet", "q", false, "log errors only")
	flags.String("host", "", "router address, optionally with :port (env ROUTER_IP)")
	flags.String("scheme", "", "console scheme, http or https")
	flags.StringP("username", "u", "", "console username (env ROUTER_USERNAME)")
	flags.StringP("password", "p", "", "console password; prefer ROUTER_PASSWORD")
	flags.String("model", "", "router model locator table (see 'filterctl locators list')")
	flags.String("locator-file", "", "YAML locator table to use instead of a built-in model")
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("exec-path", "", "browser executable (default: search PATH)")
	flags.Bool("no-sandbox", false, "disable the browser sandbox (needed when running as root)")
	flags.Bool("virtual-display", false, "start an Xvfb server for the browser")
	flags.Duration("timeout", 0, "overall deadline for one run")
	flags.Bool("json", false, "print the outcome as JSON")
	flags.String("metrics-file", "", "write Prometheus textfile metrics for the run here")
	flags.String("log-file", "", "also write JSON logs to this file, rotated")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.SetVersionTemplate(`{{printf "filterctl version %s\n" .Version}}`)

	cmd.AddCommand(newToggleCmd("activate"))
	cmd.AddCommand(newToggleCmd("deactivate"))
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLocatorsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command line in args and returns the classified error, if any.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return execute(ctx, root)
}

func execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var reported *reportedError
	if errors.As(err, &reported) {
		return reported.err
	}
	var rerr *router.Error
	if !errors.As(err, &rerr) && ctx.Err() == nil {
		// Cobra's own failures: unknown commands, bad flags, wrong arg counts.
		err = &router.Error{Kind: router.KindConfiguration, Stage: router.StageConfig, Reason: "invalid invocation", Err: err}
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return err
}

// initializeConfig reads the config file, environment and flags into v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return err
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if dir, err := homedir.Expand("~/.config/filterctl"); err == nil {
			v.AddConfigPath(dir)
		}
		v.SetConfigName("filterctl")
		v.SetConfigType("yaml")
	}

	if err := config.BindEnv(v); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		// Only explicitly set flags override; otherwise the flag's zero default
		// would mask env and file values.
		if !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

func logLevel(configured string) zapcore.Level {
	switch {
	case verbose:
		return zapcore.DebugLevel
	case quiet:
		return zapcore.ErrorLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(configured))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// getConfigFromContext returns the configuration loaded by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, router.Configf("configuration not loaded")
	}
	return cfg, nil
}

// reportedError marks a failure whose outcome was already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }
