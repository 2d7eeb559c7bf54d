// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// DefaultListenPort is the well-known console port.
	DefaultListenPort ListenPort = 11451

	// MinUnprivilegedPort is the lowest port accepted for a runtime rebind.
	MinUnprivilegedPort ListenPort = 1024
	// MaxListenPort is the highest valid TCP port.
	MaxListenPort ListenPort = 65535
)

var (
	// ErrInvalidListenPort is the sentinel error wrapped by InvalidListenPortError.
	ErrInvalidListenPort = errors.New("invalid listen port")
	// ErrPrivilegedPort is returned when a rebind targets a port below 1024.
	ErrPrivilegedPort = errors.New("privileged port")
)

type (
	// ListenPort represents a TCP port for the console listener.
	// The zero value (0) is valid and means "auto-select an available port".
	// Non-zero values must be in the range 1-65535.
	ListenPort int

	// InvalidListenPortError is returned when a ListenPort value is
	// outside the valid range (0 or 1-65535).
	InvalidListenPortError struct {
		Value ListenPort
	}
)

// ParseListenPort parses a decimal port number and validates it.
func ParseListenPort(s string) (ListenPort, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidListenPort, s)
	}
	p := ListenPort(n)
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return p, nil
}

// String returns the decimal string representation of the ListenPort.
func (p ListenPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error if the ListenPort is outside the valid range.
func (p ListenPort) Validate() error {
	if p < 0 || p > MaxListenPort {
		return &InvalidListenPortError{Value: p}
	}
	return nil
}

// ValidateRebind checks that p can be used as the target of a runtime port
// change. Auto-select is not allowed here and ports below 1024 are rejected.
func (p ListenPort) ValidateRebind() error {
	if p == 0 {
		return &InvalidListenPortError{Value: p}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p < MinUnprivilegedPort {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrPrivilegedPort, p, MinUnprivilegedPort, MaxListenPort)
	}
	return nil
}

// Error implements the error interface for InvalidListenPortError.
func (e *InvalidListenPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d: must be 0 (auto-select) or 1-65535", e.Value)
}

// Unwrap returns ErrInvalidListenPort for errors.Is() compatibility.
func (e *InvalidListenPortError) Unwrap() error { return ErrInvalidListenPort }
