// File: internal/display/display.go
package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/filterctl/internal/config"
	"github.com/xkilldash9x/filterctl/internal/router"
)

// Indirections replaced in tests.
var (
	lookPath    = exec.LookPath
	execCommand = exec.Command
	lookupEnv   = os.LookupEnv
	setenv      = os.Setenv
	unsetenv    = os.Unsetenv
	stopGrace   = 3 * time.Second
)

const (
	// displaySearchSpan bounds how many numbers above display.number are tried.
	displaySearchSpan = 16
	socketPollEvery   = 50 * time.Millisecond
	envDisplay        = "DISPLAY"
)

// Kind describes where a surface's display comes from.
type Kind int

const (
	// KindNone means the browser renders without any X display.
	KindNone Kind = iota
	// KindReal reuses the display already present in the environment.
	KindReal
	// KindVirtual is an Xvfb server owned by this surface.
	KindVirtual
)

func (k Kind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindVirtual:
		return "virtual"
	default:
		return "none"
	}
}

// Surface is a rendering target scoped to one run. Release must be called on
// every exit path; it is safe to call more than once.
type Surface struct {
	kind   Kind
	name   string
	logger *zap.Logger

	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
	stderr  *lockedBuffer

	envApplied  bool
	prevDisplay string
	hadPrev     bool

	releaseOnce sync.Once
	releaseErr  error
}

// Kind reports the surface type.
func (s *Surface) Kind() Kind { return s.kind }

// Name returns the X display name (":99"), or "" for KindNone.
func (s *Surface) Name() string { return s.name }

// Env returns the environment entries a browser process needs for this surface.
func (s *Surface) Env() []string {
	if s.name == "" {
		return nil
	}
	return []string{envDisplay + "=" + s.name}
}

// Acquire returns a surface suitable for the requested browser mode. It fails
// with a DisplayUnavailable error rather than letting a headful browser hang.
func Acquire(ctx context.Context, cfg config.DisplayConfig, headless bool, logger *zap.Logger) (*Surface, error) {
	logger = logger.Named("display")
	current, hasCurrent := lookupEnv(envDisplay)
	hasCurrent = hasCurrent && current != ""

	if !cfg.Virtual {
		switch {
		case headless:
			logger.Debug("Headless browser without a virtual display.")
			return &Surface{kind: KindNone, logger: logger}, nil
		case hasCurrent:
			logger.Debug("Using the existing display.", zap.String("display", current))
			return &Surface{kind: KindReal, name: current, logger: logger}, nil
		default:
			return nil, router.NewError(router.KindDisplayUnavailable, router.StageDisplay, nil,
				"a headful browser needs a display: DISPLAY is unset and display.virtual is disabled")
		}
	}

	bin, err := lookPath(cfg.Binary)
	if err != nil {
		if hasCurrent {
			logger.Warn("Virtual display server not found; falling back to the existing display.",
				zap.String("binary", cfg.Binary), zap.String("display", current))
			return &Surface{kind: KindReal, name: current, logger: logger}, nil
		}
		return nil, router.NewError(router.KindDisplayUnavailable, router.StageDisplay, err,
			"virtual display server %q not found and no DISPLAY is set", cfg.Binary)
	}

	number, err := freeDisplayNumber(cfg)
	if err != nil {
		return nil, err
	}

	s, err := startServer(ctx, bin, number, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.applyEnv()
	logger.Info("Virtual display started.", zap.String("display", s.name),
		zap.String("screen", screenSpec(cfg)), zap.Int("pid", s.cmd.Process.Pid))
	return s, nil
}

func screenSpec(cfg config.DisplayConfig) string {
	return fmt.Sprintf("%dx%dx%d", cfg.Width, cfg.Height, cfg.Depth)
}

func socketPath(cfg config.DisplayConfig, n int) string {
	return filepath.Join(cfg.SocketDir, "X"+strconv.Itoa(n))
}

func lockPath(n int) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf(".X%d-lock", n))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// freeDisplayNumber picks the first number with neither a socket nor a lock file.
func freeDisplayNumber(cfg config.DisplayConfig) (int, error) {
	for n := cfg.Number; n < cfg.Number+displaySearchSpan; n++ {
		if !exists(socketPath(cfg, n)) && !exists(lockPath(n)) {
			return n, nil
		}
	}
	return 0, router.NewError(router.KindDisplayUnavailable, router.StageDisplay, nil,
		"no free display number in :%d-:%d", cfg.Number, cfg.Number+displaySearchSpan-1)
}

func startServer(ctx context.Context, bin string, number int, cfg config.DisplayConfig, logger *zap.Logger) (*Surface, error) {
	name := ":" + strconv.Itoa(number)
	// Not CommandContext: the server must outlive ctx until Release.
	cmd := execCommand(bin, name, "-screen", "0", screenSpec(cfg), "-nolisten", "tcp")
	stderr := &lockedBuffer{}
	cmd.Stdout = stderr
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, router.NewError(router.KindDisplayUnavailable, router.StageDisplay, err,
			"starting virtual display %s", name)
	}

	s := &Surface{
		kind:   KindVirtual,
		name:   name,
		logger: logger,
		cmd:    cmd,
		exited: make(chan struct{}),
		stderr: stderr,
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	if err := s.waitForSocket(ctx, socketPath(cfg, number), cfg.StartTimeout); err != nil {
		_ = s.stop()
		return nil, err
	}
	return s, nil
}

func (s *Surface) waitForSocket(ctx context.Context, socket string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(socketPollEvery), 1)

	for {
		if exists(socket) {
			return nil
		}
		select {
		case <-s.exited:
			return router.NewError(router.KindDisplayUnavailable, router.StageDisplay, s.waitErr,
				"virtual display %s exited during startup: %s", s.name, s.stderr.Tail())
		default:
		}
		if err := limiter.Wait(waitCtx); err != nil {
			// Wait gives up early when the next tick would land past the deadline.
			<-waitCtx.Done()
			if exists(socket) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return router.NewError(router.KindDisplayUnavailable, router.StageDisplay, err,
				"virtual display %s did not create %s within %s", s.name, socket, timeout)
		}
	}
}

func (s *Surface) applyEnv() {
	s.prevDisplay, s.hadPrev = lookupEnv(envDisplay)
	if err := setenv(envDisplay, s.name); err != nil {
		s.logger.Warn("Could not export DISPLAY.", zap.Error(err))
		return
	}
	s.envApplied = true
}

func (s *Surface) restoreEnv() {
	if !s.envApplied {
		return
	}
	if s.hadPrev {
		_ = setenv(envDisplay, s.prevDisplay)
	} else {
		_ = unsetenv(envDisplay)
	}
	s.envApplied = false
}

// stop terminates the server: SIGTERM, a bounded wait, then SIGKILL.
func (s *Surface) stop() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	select {
	case <-s.exited:
		return nil
	default:
	}
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug("SIGTERM failed; killing.", zap.Error(err))
	}
	select {
	case <-s.exited:
		return nil
	case <-time.After(stopGrace):
	}
	s.logger.Warn("Virtual display ignored SIGTERM; killing.", zap.String("display", s.name))
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing virtual display %s: %w", s.name, err)
	}
	<-s.exited
	return nil
}

// Release tears the surface down and restores the previous DISPLAY.
func (s *Surface) Release() error {
	if s == nil {
		return nil
	}
	s.releaseOnce.Do(func() {
		s.releaseErr = s.stop()
		s.restoreEnv()
		if s.kind == KindVirtual {
			s.logger.Debug("Virtual display released.", zap.String("display", s.name))
		}
	})
	return s.releaseErr
}

// lockedBuffer keeps the last bytes of server output for error reports.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

const tailLimit = 512

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.buf.Write(p)
	if over := b.buf.Len() - 4*tailLimit; over > 0 {
		b.buf.Next(over)
	}
	return n, err
}

func (b *lockedBuffer) Tail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buf.Bytes()
	if len(out) > tailLimit {
		out = out[len(out)-tailLimit:]
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return "no output"
	}
	return string(bytes.TrimSpace(out))
}
