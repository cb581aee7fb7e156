// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/automation"
	"github.com/xkilldash9x/filterctl/internal/config"
	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/observability"
	"github.com/xkilldash9x/filterctl/internal/router"
)

// outcomeRunner is what the commands need from automation.Runner.
type outcomeRunner interface {
	Run(ctx context.Context, conn router.Connection, desired router.State) router.Outcome
	Status(ctx context.Context, conn router.Connection) router.Outcome
}

// newRunner is swapped out in tests.
var newRunner = func(cfg *config.Config, table *locator.Table, logger *zap.Logger) outcomeRunner {
	return automation.NewRunner(cfg, table, logger)
}

var toggleAliases = map[string][]string{
	"activate":   {"enable", "on"},
	"deactivate": {"disable", "off"},
}

func newToggleCmd(action string) *cobra.Command {
	desired, _ := router.ParseAction(action)
	onOff := "on"
	if desired == router.StateDisabled {
		onOff = "off"
	}
	return &cobra.Command{
		Use:     action,
		Aliases: toggleAliases[action],
		Short:   fmt.Sprintf("Turn URL filtering %s, save, and verify it", onOff),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutcome(cmd, desired, func(ctx context.Context, r outcomeRunner, conn router.Connection) router.Outcome {
				return r.Run(ctx, conn, desired)
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Log in and report whether URL filtering is on, without changing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutcome(cmd, router.StateUnknown, func(ctx context.Context, r outcomeRunner, conn router.Connection) router.Outcome {
				return r.Status(ctx, conn)
			})
		},
	}
}

type runFunc func(ctx context.Context, r outcomeRunner, conn router.Connection) router.Outcome

// runOutcome resolves configuration, runs fn and reports its outcome. Setup
// failures are reported as outcomes too, so --json output has one shape.
func runOutcome(cmd *cobra.Command, desired router.State, fn runFunc) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}

	var out router.Outcome
	conn, table, err := prepare(cfg)
	if err != nil {
		out = setupFailure(cfg, desired, err)
	} else {
		out = fn(ctx, newRunner(cfg, table, logger), conn)
	}

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := observability.WriteRunMetrics(path, out); err != nil {
			logger.Warn("Could not write run metrics.", zap.String("path", path), zap.Error(err))
		}
	}

	status := cmd.Name() == "status"
	if err := printOutcome(cmd.OutOrStdout(), out, cfg.Output.JSON, status); err != nil {
		return err
	}
	if !out.Success {
		return &reportedError{err: out.Err}
	}
	return nil
}

// prepare validates caller input before any browser work.
func prepare(cfg *config.Config) (router.Connection, *locator.Table, error) {
	conn, err := router.NewConnection(cfg.Router.Host, cfg.Router.Scheme, cfg.Router.Username, cfg.Router.Password)
	if err != nil {
		return router.Connection{}, nil, err
	}
	table, err := locator.Select(cfg.Router.Model, cfg.Router.LocatorFile)
	if err != nil {
		return router.Connection{}, nil, err
	}
	return conn, table, nil
}

func setupFailure(cfg *config.Config, desired router.State, err error) router.Outcome {
	return router.Outcome{
		RunID:     uuid.NewString(),
		Model:     cfg.Router.Model,
		Desired:   desired,
		Stage:     router.StageOf(err, router.StageConfig),
		Err:       err,
		StartedAt: time.Now(),
	}
}

func printOutcome(w io.Writer, out router.Outcome, asJSON, status bool) error {
	if asJSON {
		data, err := json.MarshalIndent(out.Report(), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding outcome: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	line := out.Summary()
	if status && out.Success {
		line = fmt.Sprintf("URL filtering is %s", out.After)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
