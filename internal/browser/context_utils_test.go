// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, 100*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondaryDeadline", func(t *testing.T) {
		primary, cancelPrimary := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelPrimary()
		secondary, cancelSecondary := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancelSecondary()

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()

		<-combined.Done()
		assert.ErrorIs(t, secondary.Err(), context.DeadlineExceeded)
		// The combined context is canceled, not expired: it derives from primary.
		assert.ErrorIs(t, combined.Err(), context.Canceled)
		assert.NoError(t, primary.Err())
	})

	t.Run("DeadlineFromPrimary", func(t *testing.T) {
		deadline := time.Now().Add(time.Minute)
		primary, cancelPrimary := context.WithDeadline(context.Background(), deadline)
		defer cancelPrimary()

		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, deadline, got, time.Millisecond)
	})
}

func TestDetach(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), key, "tab-1"), time.Millisecond)
	defer cancel()
	<-parent.Done()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, ok := detached.Deadline()
	assert.False(t, ok)
	assert.Equal(t, "tab-1", detached.Value(key))
}
