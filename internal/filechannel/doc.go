// SPDX-License-Identifier: MPL-2.0

// Package filechannel carries console commands through files when no socket
// can be bound.
//
// A client allocates <base>/execute_sessions/session_<seq>, writes input.txt
// atomically and waits. The Broker polls for sessions with an input and no
// result, runs the command line, streams output.txt and finally renames
// result.txt into place. The existence of result.txt means completion.
package filechannel
