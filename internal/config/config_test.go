// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "192.168.1.1", cfg.Router.Host)
	assert.Equal(t, "http", cfg.Router.Scheme)
	assert.Equal(t, "admin", cfg.Router.Username)
	assert.Equal(t, "asus", cfg.Router.Model)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.IgnoreTLSErrors)
	assert.Equal(t, 99, cfg.Display.Number)
	assert.Equal(t, 5*time.Second, cfg.Display.StartTimeout)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.PageLoad)
	assert.Equal(t, 20*time.Second, cfg.Timeouts.ElementWait)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.SaveConfirm)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.PollInterval)
	assert.Equal(t, 3*time.Minute, cfg.Timeouts.Run)

	assert.NoError(t, cfg.Validate(), "defaults must validate without credentials")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		badScheme := *cfg
		badScheme.Router.Scheme = "ftp"
		err := badScheme.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "router.scheme must be http or https")

		badWindow := *cfg
		badWindow.Browser.WindowWidth = 0
		err = badWindow.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "window_width")
	})

	t.Run("Timeout Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Timeouts
		assert.NoError(t, valid.Validate())

		zeroAuth := valid
		zeroAuth.Auth = 0
		err := zeroAuth.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth must be a positive duration")

		slowPoll := valid
		slowPoll.PollInterval = valid.ElementWait
		err = slowPoll.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be shorter than element_wait")
	})

	t.Run("Display Validation", func(t *testing.T) {
		disabled := DisplayConfig{}
		assert.NoError(t, disabled.Validate(), "a disabled virtual display is always valid")

		valid := NewDefaultConfig().Display
		valid.Virtual = true
		assert.NoError(t, valid.Validate())

		noBinary := valid
		noBinary.Binary = ""
		assert.ErrorContains(t, noBinary.Validate(), "binary is required")

		badDepth := valid
		badDepth.Depth = 0
		assert.ErrorContains(t, badDepth.Validate(), "width, height and depth must be positive")

		badTimeout := valid
		badTimeout.StartTimeout = -time.Second
		assert.ErrorContains(t, badTimeout.Validate(), "start_timeout")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
router:
  host: 10.0.0.1
  scheme: https
  model: asus-legacy
timeouts:
  save_confirm: 45s
display:
  virtual: true
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.1", cfg.Router.Host)
		assert.Equal(t, "https", cfg.Router.Scheme)
		assert.Equal(t, "asus-legacy", cfg.Router.Model)
		assert.Equal(t, 45*time.Second, cfg.Timeouts.SaveConfirm)
		assert.True(t, cfg.Display.Virtual)
		// Untouched keys keep their defaults.
		assert.Equal(t, "admin", cfg.Router.Username)
		assert.Equal(t, 20*time.Second, cfg.Timeouts.Auth)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("timeouts.poll_interval", "0s")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "poll_interval must be a positive duration")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
router:
  host: 192.168.50.1
  username: fromfile
`)))

		t.Setenv("ROUTER_IP", "192.168.1.254")
		t.Setenv("ROUTER_PASSWORD", "s3cret")
		t.Setenv("FILTERCTL_ROUTER_USERNAME", "fromenv")
		t.Setenv("FILTERCTL_BROWSER_HEADLESS", "false")
		require.NoError(t, BindEnv(v))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		// Env overrides the file.
		assert.Equal(t, "192.168.1.254", cfg.Router.Host)
		assert.Equal(t, "fromenv", cfg.Router.Username)
		assert.Equal(t, "s3cret", cfg.Router.Password)
		assert.False(t, cfg.Browser.Headless)
	})

	t.Run("Prefixed Variable Wins Over Bare Name", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		t.Setenv("FILTERCTL_ROUTER_HOST", "10.1.1.1")
		t.Setenv("ROUTER_IP", "10.2.2.2")
		require.NoError(t, BindEnv(v))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "10.1.1.1", cfg.Router.Host)
	})
}

func TestPasswordIsNotSerialized(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Router.Password = "hunter2"

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), "host: 192.168.1.1")
}
