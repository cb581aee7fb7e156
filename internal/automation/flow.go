// internal/automation/flow.go
package automation

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/browser"
	"github.com/xkilldash9x/filterctl/internal/config"
	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/router"
)

// flow carries everything one run's stages share.
type flow struct {
	page     Page
	table    *locator.Table
	conn     router.Connection
	timeouts config.TimeoutConfig
	logger   *zap.Logger

	// stage is updated as the run advances so failures can name where they happened.
	stage *router.Stage
}

func (f *flow) enter(stage router.Stage) {
	if f.stage != nil {
		*f.stage = stage
	}
	f.logger.Debug("Entering stage.", zap.String("stage", string(stage)))
}

// resolve maps a logical element onto its selector. Tables are validated
// before a run starts, so a miss here is a table bug surfaced as UnknownElementError.
func (f *flow) resolve(name locator.Element) (locator.Selector, error) {
	return f.table.Resolve(name)
}

func (f *flow) present(sel locator.Selector) browser.Condition {
	return func(ctx context.Context) (bool, error) {
		return f.page.Present(ctx, sel)
	}
}

func (f *flow) allPresent(sels ...locator.Selector) browser.Condition {
	return func(ctx context.Context) (bool, error) {
		for _, sel := range sels {
			ok, err := f.page.Present(ctx, sel)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

func (f *flow) locationMatches(re *regexp.Regexp) browser.Condition {
	return func(ctx context.Context) (bool, error) {
		loc, err := f.page.Location(ctx)
		if err != nil {
			return false, err
		}
		return re.MatchString(loc), nil
	}
}

// isPresent is a single non-waiting check whose error counts as absence.
func (f *flow) isPresent(ctx context.Context, name locator.Element) bool {
	if !f.table.Has(name) {
		return false
	}
	sel, err := f.resolve(name)
	if err != nil {
		return false
	}
	ok, err := f.page.Present(ctx, sel)
	return err == nil && ok
}
