// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// Process exit statuses.
const (
	ExitPass  = 0
	ExitFail  = 1
	ExitUsage = 2
)

// ExitError ends the process with Code without printing anything more.
// Commands return it after writing their own verdict, e.g. a FAIL
// summary.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// UsageError wraps a flag, argument, or configuration problem.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usagef builds a UsageError.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// ExitCode maps err to a process exit status, and reports whether the
// error text should still be printed.
func ExitCode(err error) (code int, print bool) {
	if err == nil {
		return ExitPass, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, false
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsage, true
	}
	return ExitFail, true
}
