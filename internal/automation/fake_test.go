// internal/automation/fake_test.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/xkilldash9x/filterctl/internal/browser"
	"github.com/xkilldash9x/filterctl/internal/locator"
)

type fakePage string

const (
	pageBlank  fakePage = "blank"
	pageLogin  fakePage = "login"
	pageHome   fakePage = "home"
	pageFilter fakePage = "filter"
)

// fakeRouter is a scripted console plus the browser tab looking at it. It
// follows the same rules as a real ASUS console: the filter page redirects to
// login until the credentials were accepted, and saving reloads the page.
type fakeRouter struct {
	table *locator.Table
	elems map[locator.Selector]locator.Element

	mu sync.Mutex

	username    string
	password    string
	enabled     bool
	filterPath  string
	ignoreApply bool
	hangApply   bool
	noControl   bool
	navigateErr error

	loggedIn    bool
	rejected    bool
	page        fakePage
	location    string
	pending     bool
	marked      bool
	typed       map[locator.Element]string
	clicks      map[locator.Element]int
	navigations []string
	closed      int
}

func newFakeRouter(table *locator.Table, enabled bool) *fakeRouter {
	elems := make(map[locator.Selector]locator.Element, len(table.Elements))
	for name, sel := range table.Elements {
		elems[sel] = name
	}
	return &fakeRouter{
		table:      table,
		elems:      elems,
		username:   "admin",
		password:   "hunter2",
		enabled:    enabled,
		filterPath: table.FilterPaths[0],
		page:       pageBlank,
		location:   "about:blank",
		typed:      map[locator.Element]string{},
		clicks:     map[locator.Element]int{},
	}
}

func (r *fakeRouter) element(sel locator.Selector) locator.Element {
	return r.elems[sel]
}

func (r *fakeRouter) visible(e locator.Element) bool {
	switch r.page {
	case pageLogin:
		switch e {
		case locator.LoginUsername, locator.LoginPassword, locator.LoginSubmit:
			return true
		case locator.LoginError:
			return r.rejected
		}
	case pageHome:
		return e == locator.AuthMarker
	case pageFilter:
		switch e {
		case locator.AuthMarker, locator.FilterMarker, locator.FilterApply:
			return true
		case locator.FilterEnable, locator.FilterDisable, locator.FilterToggle:
			return !r.noControl
		}
	}
	return false
}

func (r *fakeRouter) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigations = append(r.navigations, target)
	if r.navigateErr != nil {
		return r.navigateErr
	}
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	base := u.Scheme + "://" + u.Host
	r.location = target
	r.marked = false
	switch {
	case u.Path == r.table.LoginPath:
		r.page = pageLogin
	case u.Path == r.filterPath && !r.loggedIn:
		r.page = pageLogin
		r.location = base + r.table.LoginPath
	case u.Path == r.filterPath:
		r.page = pageFilter
		r.pending = r.enabled
	default:
		r.page = pageBlank
	}
	return nil
}

func (r *fakeRouter) Location(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location, nil
}

func (r *fakeRouter) Present(_ context.Context, sel locator.Selector) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible(r.element(sel)), nil
}

func (r *fakeRouter) Find(ctx context.Context, sel locator.Selector) error {
	ok, _ := r.Present(ctx, sel)
	if !ok {
		return fmt.Errorf("element %s: %w", sel, browser.ErrWaitTimeout)
	}
	return nil
}

func (r *fakeRouter) Fill(_ context.Context, sel locator.Selector, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.element(sel)
	if !r.visible(e) {
		return fmt.Errorf("filling %s: node not found", sel)
	}
	r.typed[e] = text
	return nil
}

func (r *fakeRouter) Click(_ context.Context, sel locator.Selector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.element(sel)
	if !r.visible(e) {
		return fmt.Errorf("clicking %s: node not found", sel)
	}
	r.clicks[e]++

	switch e {
	case locator.LoginSubmit:
		u, _ := url.Parse(r.location)
		base := u.Scheme + "://" + u.Host
		if r.typed[locator.LoginUsername] == r.username && r.typed[locator.LoginPassword] == r.password {
			r.loggedIn = true
			r.page = pageHome
			r.location = base + "/index.asp"
		} else {
			r.rejected = true
			r.location = base + r.table.LoginPath + "?error=1"
		}
		r.marked = false
	case locator.FilterEnable:
		r.pending = true
	case locator.FilterDisable:
		r.pending = false
	case locator.FilterToggle:
		r.pending = !r.pending
	case locator.FilterApply:
		if r.hangApply {
			return nil
		}
		if !r.ignoreApply {
			r.enabled = r.pending
		}
		r.pending = r.enabled
		r.marked = false
	}
	return nil
}

func (r *fakeRouter) Checked(_ context.Context, sel locator.Selector) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.element(sel)
	if !r.visible(e) {
		return false, fmt.Errorf("reading %s: node not found", sel)
	}
	switch e {
	case locator.FilterEnable, locator.FilterToggle:
		return r.pending, nil
	case locator.FilterDisable:
		return !r.pending, nil
	}
	return false, errors.New("not a checkable control")
}

func (r *fakeRouter) MarkDocument(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked = true
	return nil
}

func (r *fakeRouter) DocumentMarked(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marked, nil
}

func (r *fakeRouter) Snapshot(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf(`<html><head><title>%s</title></head><body><form>`+
		`<input type="password" name="login_passwd" value="%s"></form></body></html>`, r.page, r.password), nil
}

func (r *fakeRouter) WaitUntil(ctx context.Context, timeout time.Duration, cond browser.Condition) error {
	return browser.Poll(ctx, timeout, time.Millisecond, cond)
}

func (r *fakeRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeRouter) clickCount(e locator.Element) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clicks[e]
}

func (r *fakeRouter) state() (enabled bool, closed int, navigations []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled, r.closed, append([]string(nil), r.navigations...)
}

type fakeSurface struct {
	mu       sync.Mutex
	released int
}

func (s *fakeSurface) Env() []string { return []string{"DISPLAY=:99"} }

func (s *fakeSurface) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

func (s *fakeSurface) releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
