// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/filterctl/internal/router"
)

// liveSession allows one browser per process at a time.
var liveSession = semaphore.NewWeighted(1)

// Session is a single browser tab driving a router console. It is owned by
// exactly one run and must be closed on every exit path.
type Session struct {
	id     string
	opts   Options
	logger *zap.Logger

	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	profileDir  string

	mu       sync.Mutex
	isClosed bool
}

// Open launches the browser and attaches to its first tab. Every failure is a
// SessionStartError; nothing is left running when Open returns an error.
func Open(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if !liveSession.TryAcquire(1) {
		return nil, router.NewError(router.KindSessionStart, router.StageSession, nil,
			"another browser session is already live in this process")
	}

	id := uuid.NewString()
	logger := opts.Logger.Named("browser").With(zap.String("session_id", id))

	profileDir, err := os.MkdirTemp("", "filterctl-profile-*")
	if err != nil {
		liveSession.Release(1)
		return nil, router.NewError(router.KindSessionStart, router.StageSession, err, "creating browser profile directory")
	}

	// The browser's lifetime belongs to the session, not to ctx; Close ends it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts, profileDir)...)
	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(logger.Sugar().Debugf)}
	if opts.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(logger.Sugar().Debugf), chromedp.WithDebugf(logger.Sugar().Debugf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	s := &Session{
		id:          id,
		opts:        opts,
		logger:      logger,
		allocCancel: allocCancel,
		ctx:         tabCtx,
		cancel:      tabCancel,
		profileDir:  profileDir,
	}

	// The first Run starts the process. It must receive the tab context itself,
	// since chromedp ties the browser to the context of that first call.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	select {
	case err = <-started:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		_ = s.Close()
		return nil, router.NewError(router.KindSessionStart, router.StageSession, err, "launching browser")
	}

	logger.Debug("Browser session opened.", zap.Bool("headless", opts.Headless), zap.String("profile", profileDir))
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Close terminates the browser. It is idempotent and never blocks longer than
// the shutdown timeout.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	done := make(chan error, 1)
	go func() {
		// Cancel on the first tab closes the browser gracefully over CDP.
		done <- chromedp.Cancel(s.ctx)
	}()

	var closeErr error
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, chromedp.ErrInvalidContext) {
			closeErr = fmt.Errorf("closing browser: %w", err)
		}
	case <-time.After(s.opts.ShutdownTimeout):
		s.logger.Warn("Browser did not close in time; killing it.", zap.Duration("timeout", s.opts.ShutdownTimeout))
	}

	s.cancel()
	// The exec allocator's cancel waits for the process to exit.
	s.allocCancel()

	if err := os.RemoveAll(s.profileDir); err != nil {
		s.logger.Warn("Could not remove browser profile.", zap.String("dir", s.profileDir), zap.Error(err))
	}
	liveSession.Release(1)
	return closeErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

// runActions executes actions bounded by both the session lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.Closed() {
		return errSessionClosed
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

var errSessionClosed = errors.New("browser session is closed")
