// SPDX-License-Identifier: MPL-2.0

package console

import (
	"errors"
	"time"
)

// Status classifies an Outcome.
type Status string

const (
	// StatusOK means the handler returned without error.
	StatusOK Status = "ok"
	// StatusError means the handler failed or panicked.
	StatusError Status = "error"
	// StatusInterrupted means the invocation was cancelled.
	StatusInterrupted Status = "interrupted"
	// StatusUnknown means no command has the requested name.
	StatusUnknown Status = "unknown"
)

// Outcome is the result of one dispatch.
type Outcome struct {
	Command  string
	Status   Status
	Result   string
	Err      error
	Duration time.Duration
}

// OK reports whether the command succeeded.
func (o Outcome) OK() bool { return o.Status == StatusOK }

// Text is what a transport sends back to the client.
func (o Outcome) Text() string {
	switch o.Status {
	case StatusOK:
		return o.Result
	case StatusInterrupted:
		return ErrInterrupted.Error()
	case StatusUnknown:
		return o.Err.Error()
	default:
		if o.Err == nil {
			return "error"
		}
		return "error: " + o.Err.Error()
	}
}

// Observer is notified after every dispatch.
type Observer interface {
	ObserveCommand(name string, status Status, d time.Duration)
}

// SessionObserver is notified when a transport session opens or closes.
type SessionObserver interface {
	SessionStarted(transport string)
	SessionEnded(transport string)
}

func classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrUnknownCommand):
		return StatusUnknown
	case IsInterrupted(err):
		return StatusInterrupted
	default:
		return StatusError
	}
}
