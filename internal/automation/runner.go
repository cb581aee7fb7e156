// internal/automation/runner.go
package automation

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/browser"
	"github.com/xkilldash9x/filterctl/internal/config"
	"github.com/xkilldash9x/filterctl/internal/display"
	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/router"
)

// diagnosticsTimeout bounds the page capture taken after a failed stage.
const diagnosticsTimeout = 5 * time.Second

// Runner executes one toggle or status run end to end. Every field is required;
// NewRunner wires the production implementations.
type Runner struct {
	Table    *locator.Table
	Timeouts config.TimeoutConfig
	Browser  browser.Options
	Logger   *zap.Logger

	OpenDisplay DisplayOpener
	OpenSession SessionOpener
	Probe       Prober

	now func() time.Time
}

// NewRunner builds a Runner from validated configuration.
func NewRunner(cfg *config.Config, table *locator.Table, logger *zap.Logger) *Runner {
	logger = logger.Named("runner")
	return &Runner{
		Table:    table,
		Timeouts: cfg.Timeouts,
		Browser:  browser.OptionsFromConfig(cfg.Browser, cfg.Timeouts, logger),
		Logger:   logger,
		OpenDisplay: func(ctx context.Context) (Surface, error) {
			s, err := display.Acquire(ctx, cfg.Display, cfg.Browser.Headless, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		OpenSession: func(ctx context.Context, opts browser.Options) (Session, error) {
			s, err := browser.Open(ctx, opts)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		Probe: TCPProbe(cfg.Timeouts.Probe),
		now:   time.Now,
	}
}

// TCPProbe returns a Prober that opens and closes one TCP connection.
func TCPProbe(timeout time.Duration) Prober {
	return func(ctx context.Context, address string) error {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// Run drives the URL filter to desired and reports the outcome. It never
// panics on a browser fault and always releases what it acquired.
func (r *Runner) Run(ctx context.Context, conn router.Connection, desired router.State) router.Outcome {
	if desired != router.StateEnabled && desired != router.StateDisabled {
		return router.Outcome{
			RunID:     uuid.NewString(),
			Model:     r.Table.Model,
			Desired:   desired,
			Stage:     router.StageConfig,
			Err:       router.Configf("desired state must be enabled or disabled, not %s", desired),
			StartedAt: time.Now(),
		}
	}
	return r.execute(ctx, conn, desired, func(ctx context.Context, f *flow, out *router.Outcome) error {
		f.enter(router.StageAuthentication)
		if err := f.authenticate(ctx); err != nil {
			return err
		}

		f.enter(router.StageNavigation)
		pageURL, err := f.openFilterPage(ctx)
		if err != nil {
			return err
		}

		f.enter(router.StageToggle)
		out.Before, out.Toggled, err = f.applyState(ctx, desired)
		if err != nil {
			return err
		}

		f.enter(router.StageVerification)
		out.After, err = f.verify(ctx, pageURL, desired)
		return err
	})
}

// Status logs in and reads the current state without changing anything.
func (r *Runner) Status(ctx context.Context, conn router.Connection) router.Outcome {
	return r.execute(ctx, conn, router.StateUnknown, func(ctx context.Context, f *flow, out *router.Outcome) error {
		f.enter(router.StageAuthentication)
		if err := f.authenticate(ctx); err != nil {
			return err
		}

		f.enter(router.StageNavigation)
		if _, err := f.openFilterPage(ctx); err != nil {
			return err
		}

		f.enter(router.StageVerification)
		state, err := f.readSettledState(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return unreadable(router.StateUnknown, err, "URL filter state unreadable")
		}
		out.Before, out.After = state, state
		return nil
	})
}

type stageFunc func(ctx context.Context, f *flow, out *router.Outcome) error

func (r *Runner) execute(parent context.Context, conn router.Connection, desired router.State, body stageFunc) router.Outcome {
	now := r.now
	if now == nil {
		now = time.Now
	}
	out := router.Outcome{
		RunID:     uuid.NewString(),
		Model:     r.Table.Model,
		Desired:   desired,
		Stage:     router.StageProbe,
		StartedAt: now(),
	}
	logger := r.Logger.With(
		zap.String("run_id", out.RunID),
		zap.Object("router", conn),
		zap.String("model", out.Model),
		zap.Stringer("desired", desired),
	)

	ctx, cancel := context.WithTimeout(parent, r.Timeouts.Run)
	defer cancel()

	err := r.session(ctx, conn, logger, &out, body)

	out.Err = router.Classify(out.Stage, err)
	out.Success = out.Err == nil
	if out.Success {
		out.Stage = router.StageComplete
	}
	out.Duration = now().Sub(out.StartedAt)

	if out.Success {
		logger.Info("Run complete.", zap.Stringer("before", out.Before), zap.Stringer("after", out.After),
			zap.Bool("toggled", out.Toggled), zap.Duration("duration", out.Duration))
	} else {
		logger.Error("Run failed.", zap.String("stage", string(out.Stage)),
			zap.Stringer("kind", router.KindOf(out.Err)), zap.Error(out.Err))
	}
	return out
}

// session acquires the console's prerequisites in order and releases them in
// reverse on every path.
func (r *Runner) session(ctx context.Context, conn router.Connection, logger *zap.Logger, out *router.Outcome, body stageFunc) error {
	address := conn.Address()
	if err := r.Probe(ctx, address); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return router.NewError(router.KindSessionStart, router.StageProbe, err,
			"router console %s is unreachable", address)
	}
	logger.Debug("Console reachable.", zap.String("address", address))

	out.Stage = router.StageDisplay
	surface, err := r.OpenDisplay(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := surface.Release(); err != nil {
			logger.Warn("Failed to release display.", zap.Error(err))
		}
	}()

	out.Stage = router.StageSession
	opts := r.Browser
	opts.Env = append(append([]string(nil), opts.Env...), surface.Env()...)
	opts.Logger = logger
	sess, err := r.OpenSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}()

	f := &flow{
		page:     sess,
		table:    r.Table,
		conn:     conn,
		timeouts: r.Timeouts,
		logger:   logger,
		stage:    &out.Stage,
	}
	err = body(ctx, f, out)
	if err != nil && ctx.Err() == nil {
		r.logPageState(ctx, sess, logger)
	}
	return err
}

// logPageState records where the browser was and which controls it saw, so a
// locator table can be fixed from the log alone.
func (r *Runner) logPageState(runCtx context.Context, page Page, logger *zap.Logger) {
	// The run deadline may be nearly spent; the capture gets its own timeout.
	ctx, cancel := context.WithTimeout(browser.Detach(runCtx), diagnosticsTimeout)
	defer cancel()

	fields := []zap.Field{}
	if loc, err := page.Location(ctx); err == nil {
		fields = append(fields, zap.String("location", loc))
	}
	html, err := page.Snapshot(ctx)
	if err != nil {
		logger.Debug("Could not capture the page after failure.", zap.Error(err))
		return
	}
	summary, err := browser.SummarizeControls(html)
	if err != nil {
		logger.Debug("Could not summarize the page after failure.", zap.Error(err))
		return
	}
	fields = append(fields, zap.String("title", summary.Title), zap.Int("forms", summary.Forms),
		zap.String("controls", summary.String()))
	logger.Warn("Page state at failure.", fields...)
}
