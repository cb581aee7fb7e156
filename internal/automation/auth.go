// internal/automation/auth.go
package automation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/browser"
	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/router"
)

func authError(err error, format string, args ...any) error {
	return router.NewError(router.KindAuthentication, router.StageAuthentication, err, format, args...)
}

// authenticate loads the login page, submits the credentials and waits for
// proof of a logged-in console. The password is only ever handed to Fill.
func (f *flow) authenticate(ctx context.Context) error {
	loginURL := f.conn.URL(f.table.LoginPath)
	logger := f.logger.With(zap.String("url", loginURL))

	if err := f.page.Navigate(ctx, loginURL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return authError(err, "console unreachable at %s", loginURL)
	}

	user, err := f.resolve(locator.LoginUsername)
	if err != nil {
		return err
	}
	pass, err := f.resolve(locator.LoginPassword)
	if err != nil {
		return err
	}
	submit, err := f.resolve(locator.LoginSubmit)
	if err != nil {
		return err
	}

	if err := f.page.WaitUntil(ctx, f.timeouts.ElementWait, f.allPresent(user, pass)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return authError(err, "login page never loaded")
	}
	logger.Debug("Login page loaded.")

	if err := f.page.Fill(ctx, user, f.conn.Username); err != nil {
		return authError(err, "login page never loaded: username field not writable")
	}
	if err := f.page.Fill(ctx, pass, f.conn.Password.Reveal()); err != nil {
		return authError(err, "login page never loaded: password field not writable")
	}
	if err := f.page.Click(ctx, submit); err != nil {
		return authError(err, "login page never loaded: submit control not clickable")
	}
	logger.Debug("Credentials submitted.", zap.String("username", f.conn.Username))

	authenticated, err := f.authenticatedCondition()
	if err != nil {
		return err
	}
	if err := f.page.WaitUntil(ctx, f.timeouts.Auth, authenticated); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return authError(err, "credentials rejected%s", f.rejectionDetail(ctx))
	}

	logger.Info("Authenticated to router console.", zap.String("username", f.conn.Username))
	return nil
}

// authenticatedCondition holds once the post-login marker shows up or the
// location matches the table's post-login pattern.
func (f *flow) authenticatedCondition() (browser.Condition, error) {
	var conds []browser.Condition
	if f.table.Has(locator.AuthMarker) {
		marker, err := f.resolve(locator.AuthMarker)
		if err != nil {
			return nil, err
		}
		conds = append(conds, f.present(marker))
	}
	if re := f.table.AuthURL(); re != nil {
		conds = append(conds, f.locationMatches(re))
	}
	if len(conds) == 0 {
		_, err := f.resolve(locator.AuthMarker)
		return nil, err
	}
	return browser.Any(conds...), nil
}

// rejectionDetail explains what the console showed instead of a logged-in page.
func (f *flow) rejectionDetail(ctx context.Context) string {
	switch {
	case f.isPresent(ctx, locator.LoginError):
		return " (console reported a login error)"
	case f.isPresent(ctx, locator.LoginPassword):
		return " (login form still shown)"
	default:
		return fmt.Sprintf(" (no sign of a logged-in console within %s)", f.timeouts.Auth)
	}
}
