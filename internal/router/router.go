// File: internal/router/router.go
package router

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Secret holds a credential that must never reach a log line or a report.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// MarshalText keeps encoders (json, yaml, zap reflection) from leaking the value.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Reveal returns the raw value. Only the login form should ever need it.
func (s Secret) Reveal() string { return string(s) }

// Connection describes how to reach a router console. It is immutable for a run.
type Connection struct {
	Host     string
	Scheme   string
	Username string
	Password Secret
}

// NewConnection normalizes and validates caller input.
func NewConnection(host, scheme, username, password string) (Connection, error) {
	host = strings.TrimSpace(host)
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		scheme = "http"
	}
	if scheme != "http" && scheme != "https" {
		return Connection{}, Configf("unsupported scheme %q (want http or https)", scheme)
	}
	if host == "" {
		return Connection{}, Configf("router host is required")
	}
	if strings.Contains(host, "/") {
		return Connection{}, Configf("router host %q must not contain a scheme or path", host)
	}
	if username == "" {
		return Connection{}, Configf("router username is required")
	}
	if password == "" {
		return Connection{}, Configf("router password is required (--password or ROUTER_PASSWORD)")
	}
	return Connection{Host: host, Scheme: scheme, Username: username, Password: Secret(password)}, nil
}

// BaseURL is the console root, e.g. http://192.168.1.1.
func (c Connection) BaseURL() string {
	return (&url.URL{Scheme: c.Scheme, Host: c.Host}).String()
}

// URL joins a console path onto the base URL.
func (c Connection) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL() + path
}

// Address returns host:port for reachability checks, defaulting the port from the scheme.
func (c Connection) Address() string {
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	port := "80"
	if c.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(strings.Trim(c.Host, "[]"), port)
}

// MarshalLogObject omits the password.
func (c Connection) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("host", c.Host)
	enc.AddString("scheme", c.Scheme)
	enc.AddString("username", c.Username)
	return nil
}

func (c Connection) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.BaseURL())
}

// State is the observed or requested condition of the URL filter.
type State int

const (
	StateUnknown State = iota
	StateEnabled
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseAction maps the CLI intent onto a desired state.
func ParseAction(action string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "activate", "enable", "on":
		return StateEnabled, nil
	case "deactivate", "disable", "off":
		return StateDisabled, nil
	}
	return StateUnknown, Configf("unknown action %q (want activate or deactivate)", action)
}

// Stage names the point a run reached.
type Stage string

const (
	StageConfig         Stage = "configuration"
	StageProbe          Stage = "probe"
	StageDisplay        Stage = "display"
	StageSession        Stage = "session"
	StageAuthentication Stage = "authentication"
	StageNavigation     Stage = "navigation"
	StageToggle         Stage = "toggle"
	StageVerification   Stage = "verification"
	StageComplete       Stage = "complete"
)

// Outcome is produced exactly once per run.
type Outcome struct {
	RunID     string
	Model     string
	Desired   State
	Stage     Stage
	Before    State
	After     State
	Toggled   bool
	Success   bool
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Report is the serializable view of an Outcome.
type Report struct {
	RunID      string  `json:"run_id"`
	Model      string  `json:"model"`
	Desired    State   `json:"desired"`
	Stage      Stage   `json:"stage"`
	Before     State   `json:"before"`
	After      State   `json:"after"`
	Toggled    bool    `json:"toggled"`
	Success    bool    `json:"success"`
	ErrorKind  string  `json:"error_kind,omitempty"`
	Error      string  `json:"error,omitempty"`
	StartedAt  string  `json:"started_at"`
	DurationMs float64 `json:"duration_ms"`
}

func (o Outcome) Report() Report {
	r := Report{
		RunID:      o.RunID,
		Model:      o.Model,
		Desired:    o.Desired,
		Stage:      o.Stage,
		Before:     o.Before,
		After:      o.After,
		Toggled:    o.Toggled,
		Success:    o.Success,
		StartedAt:  o.StartedAt.UTC().Format(time.RFC3339),
		DurationMs: float64(o.Duration) / float64(time.Millisecond),
	}
	if o.Err != nil {
		r.ErrorKind = KindOf(o.Err).String()
		r.Error = o.Err.Error()
	}
	return r
}

// Summary renders the final human-readable status line.
func (o Outcome) Summary() string {
	if o.Success {
		verb := "already"
		if o.Toggled {
			verb = "now"
		}
		return fmt.Sprintf("OK: URL filtering is %s %s (was %s, verified)", verb, o.After, o.Before)
	}
	reason := "unknown error"
	if o.Err != nil {
		reason = o.Err.Error()
	}
	return fmt.Sprintf("FAILED at %s: %s", o.Stage, reason)
}
