// internal/automation/page.go
package automation

import (
	"context"
	"time"

	"github.com/xkilldash9x/filterctl/internal/browser"
	"github.com/xkilldash9x/filterctl/internal/locator"
)

// Page is the slice of a browser session the workflow drives. *browser.Session
// satisfies it; tests substitute scripted fakes.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Present(ctx context.Context, sel locator.Selector) (bool, error)
	Find(ctx context.Context, sel locator.Selector) error
	Fill(ctx context.Context, sel locator.Selector, text string) error
	Click(ctx context.Context, sel locator.Selector) error
	Checked(ctx context.Context, sel locator.Selector) (bool, error)
	MarkDocument(ctx context.Context) error
	DocumentMarked(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (string, error)
	WaitUntil(ctx context.Context, timeout time.Duration, cond browser.Condition) error
}

// Session is a Page that owns a browser and must be closed.
type Session interface {
	Page
	Close() error
}

// Surface is an acquired display.
type Surface interface {
	Env() []string
	Release() error
}

var _ Session = (*browser.Session)(nil)

// DisplayOpener acquires the display a run renders to.
type DisplayOpener func(ctx context.Context) (Surface, error)

// SessionOpener starts a browser session with the given options.
type SessionOpener func(ctx context.Context, opts browser.Options) (Session, error)

// Prober checks that a console address accepts connections.
type Prober func(ctx context.Context, address string) error
