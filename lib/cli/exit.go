// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ExitError asks main to exit with Code without printing anything
// further. The command has already written its own output.
//
// "proctor replay" uses it to report a terminated session (exit 2),
// which is an outcome, not a failure of the tool.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCode maps a command result to a process exit status: 0 for nil,
// the requested code for an ExitError, 1 otherwise. report is false
// when the error has already been reported.
func ExitCode(err error) (code int, report bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, false
	}
	return 1, true
}
