// File: internal/router/errors.go
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so the caller can map it to an exit status.
type Kind int

const (
	KindUnexpected Kind = iota
	KindConfiguration
	KindDisplayUnavailable
	KindSessionStart
	KindUnknownElement
	KindAuthentication
	KindPageNotFound
	KindToggleElement
	KindSaveTimeout
	KindVerification
)

var kindNames = map[Kind]string{
	KindUnexpected:         "UnexpectedAutomationError",
	KindConfiguration:      "ConfigurationError",
	KindDisplayUnavailable: "DisplayUnavailable",
	KindSessionStart:       "SessionStartError",
	KindUnknownElement:     "UnknownElementError",
	KindAuthentication:     "AuthenticationError",
	KindPageNotFound:       "PageNotFoundError",
	KindToggleElement:      "ToggleElementError",
	KindSaveTimeout:        "SaveTimeoutError",
	KindVerification:       "VerificationError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the single typed failure surfaced by every stage.
type Error struct {
	Kind   Kind
	Stage  Stage
	Reason string
	// Desired and Observed are only meaningful for KindVerification.
	Desired  State
	Observed State
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Kind == KindVerification {
		fmt.Fprintf(&b, " (desired %s, observed %s)", e.Desired, e.Observed)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: KindSaveTimeout}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == "" || t.Stage == e.Stage)
}

// Sentinels for errors.Is checks.
var (
	ErrDisplayUnavailable = &Error{Kind: KindDisplayUnavailable}
	ErrSessionStart       = &Error{Kind: KindSessionStart}
	ErrUnknownElement     = &Error{Kind: KindUnknownElement}
	ErrAuthentication     = &Error{Kind: KindAuthentication}
	ErrPageNotFound       = &Error{Kind: KindPageNotFound}
	ErrToggleElement      = &Error{Kind: KindToggleElement}
	ErrSaveTimeout        = &Error{Kind: KindSaveTimeout}
	ErrVerification       = &Error{Kind: KindVerification}
	ErrConfiguration      = &Error{Kind: KindConfiguration}
)

// NewError builds a classified error for a stage.
func NewError(kind Kind, stage Stage, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Configf reports invalid caller input.
func Configf(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Stage: StageConfig, Reason: fmt.Sprintf(format, args...)}
}

// VerificationMismatch reports a post-save read that disagrees with intent.
func VerificationMismatch(desired, observed State) *Error {
	return &Error{
		Kind:     KindVerification,
		Stage:    StageVerification,
		Reason:   "router state does not match requested state",
		Desired:  desired,
		Observed: observed,
	}
}

// KindOf classifies any error. Anything not produced by this package is unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnexpected
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// StageOf returns the stage recorded on a classified error, or fallback.
func StageOf(err error, fallback Stage) Stage {
	var e *Error
	if errors.As(err, &e) && e.Stage != "" {
		return e.Stage
	}
	return fallback
}

// Classify wraps an unclassified error as UnexpectedAutomationError for the given stage.
// Already classified errors pass through untouched.
func Classify(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	reason := "unhandled browser fault"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "run deadline exceeded"
	} else if errors.Is(err, context.Canceled) {
		reason = "run canceled"
	}
	return &Error{Kind: KindUnexpected, Stage: stage, Reason: reason, Err: err}
}
