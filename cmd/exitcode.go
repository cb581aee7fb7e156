// File: cmd/exitcode.go
package cmd

import (
	"context"

	"github.com/xkilldash9x/filterctl/internal/router"
)

// Process exit statuses. Scripts key off these, so they never change meaning.
const (
	ExitOK            = 0
	ExitUnexpected    = 1
	ExitConfiguration = 2
	ExitDisplay       = 3
	ExitSessionStart  = 4
	ExitAuth          = 5
	ExitPageNotFound  = 6
	ExitToggleElement = 7
	ExitSaveTimeout   = 8
	ExitVerification  = 9
	ExitInterrupted   = 130
)

var exitCodes = map[router.Kind]int{
	router.KindUnexpected:         ExitUnexpected,
	router.KindConfiguration:      ExitConfiguration,
	router.KindUnknownElement:     ExitConfiguration,
	router.KindDisplayUnavailable: ExitDisplay,
	router.KindSessionStart:       ExitSessionStart,
	router.KindAuthentication:     ExitAuth,
	router.KindPageNotFound:       ExitPageNotFound,
	router.KindToggleElement:      ExitToggleElement,
	router.KindSaveTimeout:        ExitSaveTimeout,
	router.KindVerification:       ExitVerification,
}

// ExitCode maps the result of Execute onto a process exit status. A canceled
// ctx means the user interrupted the run, whatever stage it failed in.
func ExitCode(ctx context.Context, err error) int {
	if err == nil {
		return ExitOK
	}
	if ctx.Err() != nil {
		return ExitInterrupted
	}
	if code, ok := exitCodes[router.KindOf(err)]; ok {
		return code
	}
	return ExitUnexpected
}
