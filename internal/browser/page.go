// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/locator"
)

// pendingSaveVar is set on the window before a save; a fresh document lacks it.
const pendingSaveVar = "__filterctlPendingSave"

// query translates a locator selector into a chromedp selector and query option.
func query(sel locator.Selector) (string, chromedp.QueryOption, error) {
	switch sel.Strategy {
	case locator.StrategyCSS, "":
		return sel.Value, chromedp.ByQuery, nil
	case locator.StrategyXPath:
		return sel.Value, chromedp.BySearch, nil
	case locator.StrategyID:
		return `[id="` + cssString(sel.Value) + `"]`, chromedp.ByQuery, nil
	case locator.StrategyName:
		return `[name="` + cssString(sel.Value) + `"]`, chromedp.ByQuery, nil
	default:
		return "", nil, fmt.Errorf("unsupported selector strategy %q", sel.Strategy)
	}
}

func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Navigate loads url within the page-load timeout. A missing load event is
// tolerated while ctx is still alive: router consoles keep frames and
// long-poll requests open, and callers wait for concrete elements anyway.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.opts.PageLoadTimeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	err := s.runActions(navCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		s.logger.Debug("Load event not seen before the page-load timeout; continuing.",
			zap.String("url", url), zap.Duration("timeout", s.opts.PageLoadTimeout))
		return nil
	}
	return fmt.Errorf("navigating to %s: %w", url, err)
}

// Location returns the current document URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.runActions(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Present reports whether sel matches at least one node, without waiting.
func (s *Session) Present(ctx context.Context, sel locator.Selector) (bool, error) {
	value, by, err := query(sel)
	if err != nil {
		return false, err
	}
	var nodes []*cdp.Node
	if err := s.runActions(ctx, chromedp.Nodes(value, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// Find waits up to the element-wait timeout for sel to appear.
func (s *Session) Find(ctx context.Context, sel locator.Selector) error {
	err := s.WaitUntil(ctx, s.opts.ElementWait, func(ctx context.Context) (bool, error) {
		return s.Present(ctx, sel)
	})
	if err != nil {
		return fmt.Errorf("element %s: %w", sel, err)
	}
	return nil
}

// Fill replaces the value of an input.
func (s *Session) Fill(ctx context.Context, sel locator.Selector, text string) error {
	value, by, err := query(sel)
	if err != nil {
		return err
	}
	fillCtx, cancel := context.WithTimeout(ctx, s.opts.ElementWait)
	defer cancel()
	if err := s.runActions(fillCtx, chromedp.Clear(value, by), chromedp.SendKeys(value, text, by)); err != nil {
		return fmt.Errorf("filling %s: %w", sel, err)
	}
	return nil
}

// Click clicks the first node matching sel once it is visible.
func (s *Session) Click(ctx context.Context, sel locator.Selector) error {
	value, by, err := query(sel)
	if err != nil {
		return err
	}
	clickCtx, cancel := context.WithTimeout(ctx, s.opts.ElementWait)
	defer cancel()
	if err := s.runActions(clickCtx, chromedp.Click(value, by, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("clicking %s: %w", sel, err)
	}
	return nil
}

// Checked reads the live "checked" property of a radio or checkbox.
func (s *Session) Checked(ctx context.Context, sel locator.Selector) (bool, error) {
	value, by, err := query(sel)
	if err != nil {
		return false, err
	}
	readCtx, cancel := context.WithTimeout(ctx, s.opts.ElementWait)
	defer cancel()
	var checked bool
	if err := s.runActions(readCtx, chromedp.JavascriptAttribute(value, "checked", &checked, by)); err != nil {
		return false, fmt.Errorf("reading %s: %w", sel, err)
	}
	return checked, nil
}

// MarkDocument tags the current document so a later reload can be detected.
func (s *Session) MarkDocument(ctx context.Context) error {
	var ok bool
	return s.runActions(ctx, chromedp.Evaluate("window."+pendingSaveVar+" = true", &ok))
}

// DocumentMarked reports whether the tag set by MarkDocument is still there.
func (s *Session) DocumentMarked(ctx context.Context) (bool, error) {
	var marked bool
	if err := s.runActions(ctx, chromedp.Evaluate("window."+pendingSaveVar+" === true", &marked)); err != nil {
		return false, err
	}
	return marked, nil
}

// Snapshot returns the outer HTML of the current document.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := s.runActions(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// WaitUntil polls cond at the session's poll interval.
func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, cond Condition) error {
	return Poll(ctx, timeout, s.opts.PollInterval, cond)
}
