// SPDX-License-Identifier: MPL-2.0

// Package console is the transport-independent core of the remote command
// console: the command registry, the per-invocation execution context, the
// output sink and command line parsing.
//
// Transports (socket sessions, the file channel, the in-process CLI) parse a
// line with ParseLine, build an ExecContext around their own Sink and
// LineReader, and hand both to Registry.Dispatch. Dispatch never panics and
// never returns a Go error; every result, including unknown commands,
// handler failures and interruptions, is reported as an Outcome.
package console
