// internal/automation/e2e_test.go
package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/filterctl/internal/config"
	"github.com/xkilldash9x/filterctl/internal/consoletest"
	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/router"
)

func e2eRunner(t *testing.T) (*Runner, func(host string) router.Connection) {
	t.Helper()
	chrome := consoletest.RequireChrome(t)

	cfg := config.NewDefaultConfig()
	cfg.Browser.ExecPath = chrome
	cfg.Browser.NoSandbox = true
	cfg.Timeouts.ElementWait = 3 * time.Second
	cfg.Timeouts.Auth = 5 * time.Second
	cfg.Timeouts.SaveConfirm = 5 * time.Second
	cfg.Timeouts.PollInterval = 50 * time.Millisecond
	cfg.Timeouts.Run = 90 * time.Second
	require.NoError(t, cfg.Validate())

	table, err := locator.Builtin(locator.DefaultModel)
	require.NoError(t, err)

	connect := func(host string) router.Connection {
		conn, err := router.NewConnection(host, "http", "admin", "hunter2")
		require.NoError(t, err)
		return conn
	}
	return NewRunner(cfg, table, zaptest.NewLogger(t)), connect
}

func TestEndToEndAgainstConsole(t *testing.T) {
	runner, connect := e2eRunner(t)
	console := consoletest.New(t, consoletest.Options{Enabled: false})
	conn := connect(console.Host())

	out := runner.Run(context.Background(), conn, router.StateEnabled)
	require.NoError(t, out.Err, console.String())
	assert.True(t, out.Toggled)
	assert.Equal(t, router.StateEnabled, out.After)
	assert.True(t, console.Enabled())

	// A second run in the same state only re-saves.
	out = runner.Run(context.Background(), conn, router.StateEnabled)
	require.NoError(t, out.Err, console.String())
	assert.False(t, out.Toggled)

	status := runner.Status(context.Background(), conn)
	require.NoError(t, status.Err)
	assert.Equal(t, router.StateEnabled, status.After)

	logins, failed, applies := console.Stats()
	assert.Equal(t, 3, logins)
	assert.Zero(t, failed)
	assert.Equal(t, 2, applies)
}

func TestEndToEndWrongPassword(t *testing.T) {
	runner, connect := e2eRunner(t)
	console := consoletest.New(t, consoletest.Options{Password: "correct-horse"})

	out := runner.Run(context.Background(), connect(console.Host()), router.StateEnabled)

	assert.ErrorIs(t, out.Err, router.ErrAuthentication)
	_, failed, applies := console.Stats()
	assert.Equal(t, 1, failed)
	assert.Zero(t, applies)
}

func TestEndToEndIgnoredSave(t *testing.T) {
	runner, connect := e2eRunner(t)
	console := consoletest.New(t, consoletest.Options{Enabled: true, IgnoreApply: true})

	out := runner.Run(context.Background(), connect(console.Host()), router.StateDisabled)

	assert.ErrorIs(t, out.Err, router.ErrVerification)
	assert.Equal(t, router.StateEnabled, out.After)
	assert.True(t, console.Enabled())
}
