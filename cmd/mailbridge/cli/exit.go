// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitUndelivered is the exit code of a delivery check whose latest
// attempt failed.
const ExitUndelivered = 2

// ExitError carries a process exit code. main exits with Code and
// prints Reason, if set, instead of a generic error line.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Undelivered reports that message's latest delivery attempt failed.
func Undelivered(message, reason string) error {
	return &ExitError{
		Code:   ExitUndelivered,
		Reason: fmt.Sprintf("message %s was not delivered: %s", message, reason),
	}
}
