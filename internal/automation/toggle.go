// internal/automation/toggle.go
package automation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/browser"
	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/router"
)

func toggleError(err error, format string, args ...any) error {
	return router.NewError(router.KindToggleElement, router.StageToggle, err, format, args...)
}

// controlSelectors returns the element that proves the control exists and the
// element to click for the desired state.
func (f *flow) controlSelectors(desired router.State) (probe, target locator.Selector, err error) {
	if f.table.Control == locator.ControlCheckbox {
		sel, err := f.resolve(locator.FilterToggle)
		return sel, sel, err
	}
	enable, err := f.resolve(locator.FilterEnable)
	if err != nil {
		return probe, target, err
	}
	disable, err := f.resolve(locator.FilterDisable)
	if err != nil {
		return probe, target, err
	}
	if desired == router.StateDisabled {
		return enable, disable, nil
	}
	return enable, enable, nil
}

// readState reads the control as the page currently shows it. A radio pair
// with neither or both options checked reads as unknown.
func (f *flow) readState(ctx context.Context) (router.State, error) {
	if f.table.Control == locator.ControlCheckbox {
		sel, err := f.resolve(locator.FilterToggle)
		if err != nil {
			return router.StateUnknown, err
		}
		on, err := f.page.Checked(ctx, sel)
		if err != nil {
			return router.StateUnknown, err
		}
		if on {
			return router.StateEnabled, nil
		}
		return router.StateDisabled, nil
	}

	enable, err := f.resolve(locator.FilterEnable)
	if err != nil {
		return router.StateUnknown, err
	}
	disable, err := f.resolve(locator.FilterDisable)
	if err != nil {
		return router.StateUnknown, err
	}
	on, err := f.page.Checked(ctx, enable)
	if err != nil {
		return router.StateUnknown, err
	}
	off, err := f.page.Checked(ctx, disable)
	if err != nil {
		return router.StateUnknown, err
	}
	switch {
	case on && !off:
		return router.StateEnabled, nil
	case off && !on:
		return router.StateDisabled, nil
	}
	return router.StateUnknown, nil
}

// applyState drives the control to desired and saves. The toggle click is
// skipped when the page already shows desired; the save is always submitted.
func (f *flow) applyState(ctx context.Context, desired router.State) (before router.State, toggled bool, err error) {
	probe, target, err := f.controlSelectors(desired)
	if err != nil {
		return router.StateUnknown, false, err
	}
	apply, err := f.resolve(locator.FilterApply)
	if err != nil {
		return router.StateUnknown, false, err
	}

	if err := f.page.Find(ctx, probe); err != nil {
		if ctx.Err() != nil {
			return router.StateUnknown, false, ctx.Err()
		}
		return router.StateUnknown, false, toggleError(err, "URL filter control not found")
	}

	before, err = f.readState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return router.StateUnknown, false, ctx.Err()
		}
		return router.StateUnknown, false, toggleError(err, "URL filter control could not be read")
	}
	logger := f.logger.With(zap.Stringer("before", before), zap.Stringer("desired", desired))

	if before == desired {
		logger.Info("URL filter already in the requested state; skipping the toggle.")
	} else {
		if err := f.page.Click(ctx, target); err != nil {
			if ctx.Err() != nil {
				return before, false, ctx.Err()
			}
			return before, false, toggleError(err, "could not click %s", target)
		}
		toggled = true
		now, err := f.readState(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return before, toggled, ctx.Err()
			}
			return before, toggled, toggleError(err, "URL filter control could not be read after clicking")
		}
		if now != desired {
			return before, toggled, toggleError(nil, "URL filter control shows %s after clicking %s", now, target)
		}
		logger.Info("URL filter control switched.")
	}

	if err := f.save(ctx, apply); err != nil {
		return before, toggled, err
	}
	return before, toggled, nil
}

// save submits the form and waits for the console to confirm it, either with
// the table's confirmation element or by replacing the document.
func (f *flow) save(ctx context.Context, apply locator.Selector) error {
	if err := f.page.MarkDocument(ctx); err != nil {
		return fmt.Errorf("marking document before save: %w", err)
	}
	if err := f.page.Click(ctx, apply); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return toggleError(err, "could not click the apply control %s", apply)
	}

	conds := []browser.Condition{browser.Not(f.page.DocumentMarked)}
	if f.table.Has(locator.SaveConfirm) {
		confirm, err := f.resolve(locator.SaveConfirm)
		if err != nil {
			return err
		}
		conds = append(conds, f.present(confirm))
	}
	if err := f.page.WaitUntil(ctx, f.timeouts.SaveConfirm, browser.Any(conds...)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return router.NewError(router.KindSaveTimeout, router.StageToggle, err,
			"console did not confirm the save within %s", f.timeouts.SaveConfirm)
	}
	f.logger.Info("Settings saved.")
	return nil
}
