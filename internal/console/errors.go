// SPDX-License-Identifier: MPL-2.0

package console

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInterrupted is returned by sinks and readers once the invocation's
	// context is cancelled. Its text is the message shown to clients.
	ErrInterrupted = errors.New("interrupted")

	// ErrNoInput is returned by readers on transports that cannot carry
	// interactive input.
	ErrNoInput = errors.New("interactive input is not supported on this transport")

	// ErrDuplicateCommand is the sentinel error wrapped by DuplicateCommandError.
	ErrDuplicateCommand = errors.New("duplicate command")

	// ErrRegistrySealed is returned by Register after Seal.
	ErrRegistrySealed = errors.New("command registry is sealed")

	// ErrUnknownCommand is the sentinel error wrapped by UnknownCommandError.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrEmptyLine is returned by ParseLine for blank input.
	ErrEmptyLine = errors.New("no command specified (type help for usage)")

	// ErrInvalidDomain is the sentinel error wrapped by InvalidDomainError.
	ErrInvalidDomain = errors.New("invalid domain")
)

type (
	// DuplicateCommandError is returned when a command name is registered twice.
	DuplicateCommandError struct {
		Name string
	}

	// UnknownCommandError names the missing command and every registered one.
	UnknownCommandError struct {
		Name  string
		Known []string
	}

	// InvalidDomainError is returned for a -cl flag without a usable value.
	InvalidDomainError struct {
		Flag  string
		Value string
	}
)

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command %q is already registered", e.Name)
}

func (e *DuplicateCommandError) Unwrap() error { return ErrDuplicateCommand }

// Error lists the valid names so the message is useful on its own.
func (e *UnknownCommandError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "unknown command: %s\n\nAvailable commands:\n", e.Name)
	for _, name := range e.Known {
		sb.WriteString("  ")
		sb.WriteString(name)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

func (e *InvalidDomainError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s requires a domain name", e.Flag)
	}
	return fmt.Sprintf("invalid domain %q for %s", e.Value, e.Flag)
}

func (e *InvalidDomainError) Unwrap() error { return ErrInvalidDomain }
