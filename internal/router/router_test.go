// File: internal/router/router_test.go
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewConnection(t *testing.T) {
	t.Run("normalizes scheme and builds URLs", func(t *testing.T) {
		conn, err := NewConnection(" 192.168.1.1 ", "HTTPS", "admin", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "https", conn.Scheme)
		assert.Equal(t, "https://192.168.1.1", conn.BaseURL())
		assert.Equal(t, "https://192.168.1.1/Main_Login.asp", conn.URL("Main_Login.asp"))
		assert.Equal(t, "192.168.1.1:443", conn.Address())
	})

	t.Run("keeps an explicit port", func(t *testing.T) {
		conn, err := NewConnection("127.0.0.1:8080", "", "admin", "pw")
		require.NoError(t, err)
		assert.Equal(t, "http", conn.Scheme)
		assert.Equal(t, "127.0.0.1:8080", conn.Address())
	})

	testCases := []struct {
		name     string
		host     string
		scheme   string
		user     string
		password string
		contains string
	}{
		{"missing password", "192.168.1.1", "http", "admin", "", "password is required"},
		{"missing host", "", "http", "admin", "pw", "host is required"},
		{"bad scheme", "192.168.1.1", "ftp", "admin", "pw", "unsupported scheme"},
		{"host with scheme", "http://192.168.1.1", "http", "admin", "pw", "must not contain"},
		{"missing user", "192.168.1.1", "http", "", "pw", "username is required"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConnection(tc.host, tc.scheme, tc.user, tc.password)
			require.Error(t, err)
			assert.Equal(t, KindConfiguration, KindOf(err))
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestSecretNeverLeaks(t *testing.T) {
	conn, err := NewConnection("192.168.1.1", "http", "admin", "hunter2")
	require.NoError(t, err)

	assert.NotContains(t, fmt.Sprintf("%v %+v %#v %s", conn, conn, conn, conn.Password), "hunter2")

	raw, err := json.Marshal(conn)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")

	core, logs := observer.New(zap.DebugLevel)
	zap.New(core).Info("connecting", zap.Object("router", conn), zap.Any("conn", conn))
	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			assert.NotContains(t, fmt.Sprintf("%v", field), "hunter2")
		}
	}
	assert.Equal(t, "hunter2", conn.Password.Reveal())
}

func TestParseAction(t *testing.T) {
	state, err := ParseAction("activate")
	require.NoError(t, err)
	assert.Equal(t, StateEnabled, state)

	state, err = ParseAction("Deactivate")
	require.NoError(t, err)
	assert.Equal(t, StateDisabled, state)

	_, err = ParseAction("toggle")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestErrorClassification(t *testing.T) {
	saveErr := NewError(KindSaveTimeout, StageToggle, context.DeadlineExceeded, "no confirmation after %s", 15*time.Second)
	wrapped := fmt.Errorf("run failed: %w", saveErr)

	assert.ErrorIs(t, wrapped, ErrSaveTimeout)
	assert.NotErrorIs(t, wrapped, ErrVerification)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	assert.Equal(t, KindSaveTimeout, KindOf(wrapped))
	assert.Equal(t, StageToggle, StageOf(wrapped, StageComplete))

	mismatch := VerificationMismatch(StateEnabled, StateDisabled)
	assert.Contains(t, mismatch.Error(), "desired enabled, observed disabled")

	plain := errors.New("websocket closed")
	classified := Classify(StageNavigation, plain)
	assert.Equal(t, KindUnexpected, KindOf(classified))
	assert.Equal(t, StageNavigation, StageOf(classified, StageComplete))
	assert.Same(t, saveErr, Classify(StageNavigation, saveErr))
	assert.Contains(t, Classify(StageToggle, context.Canceled).Error(), "run canceled")
	assert.Nil(t, Classify(StageToggle, nil))
}

func TestOutcomeReport(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	failed := Outcome{
		RunID:     "run-1",
		Model:     "asus",
		Desired:   StateEnabled,
		Stage:     StageVerification,
		Before:    StateDisabled,
		After:     StateDisabled,
		Toggled:   true,
		Err:       VerificationMismatch(StateEnabled, StateDisabled),
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	}
	report := failed.Report()
	assert.Equal(t, "VerificationError", report.ErrorKind)
	assert.Equal(t, 1500.0, report.DurationMs)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"desired":"enabled"`)
	assert.Contains(t, string(raw), `"started_at":"2026-01-02T03:04:05Z"`)
	assert.Contains(t, failed.Summary(), "FAILED at verification")

	ok := Outcome{Desired: StateDisabled, Before: StateDisabled, After: StateDisabled, Success: true}
	assert.Equal(t, "OK: URL filtering is already disabled (was disabled, verified)", ok.Summary())
}
