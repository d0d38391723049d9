package main

import (
	"errors"

	"coreagent/pkg/agenterr"
)

// Exit codes per the CLI's external interface: 0 success, 1 generic error,
// 2 auth/subscription rejection, 3 invalid arguments.
const (
	exitOK    = 0
	exitError = 1
	exitAuth  = 2
	exitUsage = 3
)

// errUsage marks an error as an invalid-argument failure (exit code 3)
// rather than a generic one.
type errUsage struct{ err error }

func (e *errUsage) Error() string { return e.err.Error() }
func (e *errUsage) Unwrap() error { return e.err }

func usageError(err error) error {
	return &errUsage{err: err}
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var u *errUsage
	if errors.As(err, &u) {
		return exitUsage
	}
	if kind, ok := agenterr.KindOf(err); ok && kind == agenterr.Auth {
		return exitAuth
	}
	return exitError
}
