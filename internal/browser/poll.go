// internal/browser/poll.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrWaitTimeout is returned when a condition is not met within its timeout.
var ErrWaitTimeout = errors.New("condition not met before timeout")

// Condition is a page predicate checked repeatedly by Poll.
type Condition func(ctx context.Context) (bool, error)

// Any is satisfied as soon as one of conds is. Errors from one condition do not
// stop the others from being checked.
func Any(conds ...Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		var firstErr error
		for _, cond := range conds {
			ok, err := cond(ctx)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if ok {
				return true, nil
			}
		}
		return false, firstErr
	}
}

// Not inverts a condition.
func Not(cond Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// Poll checks cond every interval until it holds or timeout elapses. Predicate
// errors are treated as transient and the last one is reported on timeout. If
// ctx itself ends first, its error is returned unwrapped.
func Poll(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	var lastErr error
	for {
		ok, err := cond(waitCtx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if err := limiter.Wait(waitCtx); err != nil {
			// The limiter refuses early when the next tick would pass the deadline.
			<-waitCtx.Done()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %s (last error: %v)", ErrWaitTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		}
	}
}
