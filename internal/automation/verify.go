// internal/automation/verify.go
package automation

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/router"
)

func unreadable(desired router.State, err error, reason string) error {
	return &router.Error{
		Kind:     router.KindVerification,
		Stage:    router.StageVerification,
		Reason:   reason,
		Desired:  desired,
		Observed: router.StateUnknown,
		Err:      err,
	}
}

// readSettledState waits until the control reads as enabled or disabled and
// returns that reading. Freshly loaded consoles briefly render neither.
func (f *flow) readSettledState(ctx context.Context) (router.State, error) {
	state := router.StateUnknown
	err := f.page.WaitUntil(ctx, f.timeouts.ElementWait, func(ctx context.Context) (bool, error) {
		s, err := f.readState(ctx)
		if err != nil {
			return false, err
		}
		state = s
		return s != router.StateUnknown, nil
	})
	return state, err
}

// verify reloads the filter page and compares what the router now reports
// with desired, exactly once.
func (f *flow) verify(ctx context.Context, pageURL string, desired router.State) (router.State, error) {
	marker, err := f.resolve(locator.FilterMarker)
	if err != nil {
		return router.StateUnknown, err
	}

	if err := f.page.Navigate(ctx, pageURL); err != nil {
		if ctx.Err() != nil {
			return router.StateUnknown, ctx.Err()
		}
		return router.StateUnknown, unreadable(desired, err, "could not reload the URL filter page")
	}
	if err := f.page.WaitUntil(ctx, f.timeouts.ElementWait, f.present(marker)); err != nil {
		if ctx.Err() != nil {
			return router.StateUnknown, ctx.Err()
		}
		return router.StateUnknown, unreadable(desired, err, "URL filter page did not come back after saving")
	}

	observed, err := f.readSettledState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return observed, ctx.Err()
		}
		return observed, unreadable(desired, err, "URL filter state unreadable after saving")
	}
	if observed != desired {
		return observed, router.VerificationMismatch(desired, observed)
	}

	f.logger.Info("Verified URL filter state.", zap.Stringer("state", observed))
	return observed, nil
}
