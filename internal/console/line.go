// SPDX-License-Identifier: MPL-2.0

package console

import (
	"strings"
)

const (
	// DomainFlag selects the isolation domain for one invocation.
	DomainFlag = "-cl"
	// DomainFlagLong is the long spelling of DomainFlag.
	DomainFlagLong = "-classloader"
)

// Domain identifies a hosted component boundary. Script state is kept per
// domain. The zero value is SystemDomain.
type Domain string

// SystemDomain is the host/system domain used when no -cl flag is given.
const SystemDomain Domain = ""

// IsSystem reports whether d is the host/system domain.
func (d Domain) IsSystem() bool { return d == SystemDomain }

// String returns "system" for SystemDomain.
func (d Domain) String() string {
	if d.IsSystem() {
		return "system"
	}
	return string(d)
}

// Invocation is one parsed command line.
type Invocation struct {
	// Name is the command name (first non-option token).
	Name string
	// Args are the tokens following the command name.
	Args []string
	// Domain is the target isolation domain.
	Domain Domain
	// Raw is the argument text following the command name, untokenized.
	Raw string
	// Ignored lists unrecognized options that preceded the command name.
	Ignored []string
}

// ParseLine splits a command line on whitespace. Leading options are
// consumed: -cl/-classloader take the following token as the domain,
// anything else starting with '-' is ignored. Tokens after the command name
// are arguments verbatim, including any that look like options. There is no
// quoting.
func ParseLine(line string) (Invocation, error) {
	var inv Invocation

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return inv, ErrEmptyLine
	}

	i := 0
	for i < len(fields) && strings.HasPrefix(fields[i], "-") {
		opt := fields[i]
		if opt == DomainFlag || opt == DomainFlagLong {
			if i+1 >= len(fields) {
				return inv, &InvalidDomainError{Flag: opt}
			}
			inv.Domain = Domain(fields[i+1])
			i += 2
			continue
		}
		inv.Ignored = append(inv.Ignored, opt)
		i++
	}
	if i >= len(fields) {
		return inv, ErrEmptyLine
	}

	inv.Name = fields[i]
	rest := fields[i+1:]
	inv.Args = append(make([]string, 0, len(rest)), rest...)
	inv.Raw = textAfter(line, fields[:i+1])

	return inv, nil
}

// textAfter returns the part of line that follows the given leading fields.
func textAfter(line string, leading []string) string {
	off := 0
	for _, f := range leading {
		off += strings.Index(line[off:], f) + len(f)
	}
	return strings.TrimSpace(line[off:])
}
