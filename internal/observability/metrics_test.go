// internal/observability/metrics_test.go
package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/filterctl/internal/router"
)

func TestWriteRunMetrics(t *testing.T) {
	started := time.Unix(1760000000, 0)

	t.Run("successful run", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "filterctl.prom")
		err := WriteRunMetrics(path, router.Outcome{
			Model:     "asus",
			Desired:   router.StateEnabled,
			Stage:     router.StageComplete,
			Before:    router.StateDisabled,
			After:     router.StateEnabled,
			Toggled:   true,
			Success:   true,
			StartedAt: started,
			Duration:  2500 * time.Millisecond,
		})
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		text := string(raw)
		assert.Contains(t, text, `filterctl_last_run_success{desired="enabled",model="asus"} 1`)
		assert.Contains(t, text, `filterctl_last_run_duration_seconds{desired="enabled",model="asus"} 2.5`)
		assert.Contains(t, text, `filterctl_last_run_toggled{desired="enabled",model="asus"} 1`)
		assert.Contains(t, text, `filterctl_url_filter_state{desired="enabled",model="asus",state="enabled"} 1`)
		assert.Contains(t, text, `filterctl_url_filter_state{desired="enabled",model="asus",state="disabled"} 0`)
		assert.Contains(t, text, `filterctl_last_run_timestamp_seconds{desired="enabled",model="asus"} 1.76e+09`)
		assert.NotContains(t, text, "filterctl_last_run_failure{")
	})

	t.Run("failed run records kind and stage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "filterctl.prom")
		err := WriteRunMetrics(path, router.Outcome{
			Model:     "asus",
			Desired:   router.StateDisabled,
			Stage:     router.StageToggle,
			Before:    router.StateEnabled,
			Err:       router.NewError(router.KindSaveTimeout, router.StageToggle, nil, "no confirmation"),
			StartedAt: started,
		})
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		text := string(raw)
		assert.Contains(t, text, `filterctl_last_run_success{desired="disabled",model="asus"} 0`)
		assert.Contains(t, text, `filterctl_last_run_failure{desired="disabled",kind="SaveTimeoutError",model="asus",stage="toggle"} 1`)
		// With no post-save read, the state series reports what was seen before.
		assert.Contains(t, text, `filterctl_url_filter_state{desired="disabled",model="asus",state="enabled"} 1`)
	})

	t.Run("unwritable directory", func(t *testing.T) {
		err := WriteRunMetrics(filepath.Join(t.TempDir(), "missing", "x.prom"), router.Outcome{Model: "asus"})
		assert.Error(t, err)
	})
}
