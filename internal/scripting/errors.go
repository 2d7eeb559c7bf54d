// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"errors"
	"fmt"
)

var (
	// ErrRunnerClosed is returned by a Runner after Close.
	ErrRunnerClosed = errors.New("script runner is closed")

	// ErrExecutorClosed is returned when submitting to a closed safe executor.
	ErrExecutorClosed = errors.New("safe executor is closed")

	// ErrScript is the sentinel error wrapped by EvalError.
	ErrScript = errors.New("script error")
)

// EvalError is a compile or runtime error raised by one statement.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("script error: %s", e.Message)
}

func (e *EvalError) Unwrap() error { return ErrScript }
